// Lock-free MPSC queue (Multiple Producers Single Consumer)

package lib

import (
	"sync/atomic"
)

// QueueMPSC is a lock-free FIFO queue. Any number of goroutines may Push,
// only one goroutine at a time may Pop or Drain.
type QueueMPSC[T any] struct {
	head   atomic.Pointer[itemMPSC[T]]
	tail   atomic.Pointer[itemMPSC[T]]
	length atomic.Int64
}

type itemMPSC[T any] struct {
	value T
	next  atomic.Pointer[itemMPSC[T]]
}

func NewQueueMPSC[T any]() *QueueMPSC[T] {
	q := &QueueMPSC[T]{}
	empty := &itemMPSC[T]{}
	q.head.Store(empty)
	q.tail.Store(empty)
	return q
}

// Push appends value to the queue.
func (q *QueueMPSC[T]) Push(value T) {
	i := &itemMPSC[T]{value: value}
	q.length.Add(1)
	old := q.head.Swap(i)
	old.next.Store(i)
}

// Pop removes the oldest value. Returns false if the queue is empty.
func (q *QueueMPSC[T]) Pop() (T, bool) {
	var zero T
	tail := q.tail.Load()
	next := tail.next.Load()
	if next == nil {
		return zero, false
	}
	value := next.value
	next.value = zero // let the GC free this item
	q.tail.Store(next)
	q.length.Add(-1)
	return value, true
}

// Drain pops everything pushed so far, oldest first.
func (q *QueueMPSC[T]) Drain() []T {
	var values []T
	for {
		v, ok := q.Pop()
		if ok == false {
			return values
		}
		values = append(values, v)
	}
}

// Len returns the number of items in the queue
func (q *QueueMPSC[T]) Len() int64 {
	return q.length.Load()
}
