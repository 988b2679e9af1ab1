package vm

import (
	"sync/atomic"
	"testing"
	"time"

	"ergo.services/dvm/gen"
)

func TestLockOrderDetection(t *testing.T) {
	var violations atomic.Int64
	v := newTestVM(t, func(o *Options) {
		o.LockOrder = LockOrderOptions{
			Enable:      true,
			OnViolation: func() { violations.Add(1) },
		}
	})
	h := v.Handle()

	effect := gen.Effect{Input: tUnit, Output: tInt}
	a, _ := spawn(t, v, gen.EffectHandlers{effect: gen.HandlerReceive{}},
		perform(effect, gen.Unit),
		ret(gen.Unit),
	)
	b, _ := spawn(t, v, nil)
	w, _ := spawn(t, v, nil)

	h.Link(a.ID(), b.ID())
	h.Monitor(w.ID(), a.ID())
	a.Reduce(h, time.Millisecond)
	h.Send(a.ID(), tInt, gen.ValueInteger(1))
	a.Reduce(h, time.Millisecond)
	v.Reset(a.ID(), nil)
	h.Halt(a.ID(), tUnit, nil)

	if n := violations.Load(); n != 0 {
		t.Fatalf("unexpected lock order violations: %d", n)
	}

	// taking status before interpreter is reversed
	a.statusMutex.Lock()
	a.interpreterMutex.Lock()
	a.interpreterMutex.Unlock()
	a.statusMutex.Unlock()

	if violations.Load() == 0 {
		t.Fatal("reversed lock order is not detected")
	}
}
