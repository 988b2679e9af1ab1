package lib

import (
	"fmt"
	"testing"
	"time"
)

func TestTimer(t *testing.T) {
	timer := TakeTimer()
	timer.Reset(time.Millisecond)
	select {
	case <-timer.C:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	ReleaseTimer(timer)

	// a released timer must not fire
	timer = TakeTimer()
	timer.Reset(time.Millisecond)
	ReleaseTimer(timer)
	again := TakeTimer()
	select {
	case <-again.C:
		t.Fatal("stale value from a released timer")
	case <-time.After(5 * time.Millisecond):
	}
	ReleaseTimer(again)
}

func TestBuffer(t *testing.T) {
	b := TakeBuffer()
	b.AppendString("hello")
	b.AppendByte(' ')
	fmt.Fprintf(b, "%d", 42)
	if b.String() != "hello 42" || b.Len() != 8 {
		t.Fatalf("unexpected buffer %q", b.String())
	}
	ReleaseBuffer(b)

	b = TakeBuffer()
	if b.Len() != 0 {
		t.Fatal("buffer from the pool is not empty")
	}
	b.B = make([]byte, 0, maxPooledBufferLength+1)
	ReleaseBuffer(b)
}
