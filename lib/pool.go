package lib

import (
	"sync"
	"time"
)

// Pool is a typed sync.Pool.
type Pool[T any] struct {
	pool sync.Pool
}

// NewPool
func NewPool[T any](create func() T) *Pool[T] {
	p := &Pool[T]{}
	p.pool.New = func() any {
		return create()
	}
	return p
}

// Get
func (p *Pool[T]) Get() T {
	return p.pool.Get().(T)
}

// Put
func (p *Pool[T]) Put(v T) {
	p.pool.Put(v)
}

var (
	timers = NewPool(func() *time.Timer {
		t := time.NewTimer(time.Hour)
		t.Stop()
		return t
	})
)

// TakeTimer returns a stopped timer. Reset it before use.
func TakeTimer() *time.Timer {
	return timers.Get()
}

// ReleaseTimer stops the timer and puts it back into the pool. Since Go 1.23
// a stopped timer never delivers a stale value, so no draining is needed.
func ReleaseTimer(t *time.Timer) {
	t.Stop()
	timers.Put(t)
}
