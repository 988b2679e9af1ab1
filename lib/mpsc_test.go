package lib

import (
	"runtime"
	"sync"
	"testing"
)

func TestMPSCsequential(t *testing.T) {
	type vv struct {
		v int64
	}
	l := int64(10)
	queue := NewQueueMPSC[vv]()
	for i := int64(0); i < l; i++ {
		queue.Push(vv{v: i + 100})
	}
	if queue.Len() != l {
		t.Fatal("queue length must be 10")
	}

	for i := int64(0); i < l; i++ {
		v, ok := queue.Pop()
		if ok == false {
			t.Fatal("there must be value")
		}
		if v.v != i+100 {
			t.Fatal("incorrect value. expected", i+100, "got", v)
		}
	}

	if _, ok := queue.Pop(); ok {
		t.Fatal("queue must be empty")
	}
	if queue.Len() != 0 {
		t.Fatal("queue length must be 0")
	}
}

func TestMPSCDrain(t *testing.T) {
	queue := NewQueueMPSC[string]()
	if d := queue.Drain(); len(d) != 0 {
		t.Fatalf("expected empty drain, got %v", d)
	}
	queue.Push("a")
	queue.Push("b")
	queue.Push("c")
	d := queue.Drain()
	if len(d) != 3 || d[0] != "a" || d[1] != "b" || d[2] != "c" {
		t.Fatalf("incorrect drain order: %v", d)
	}
	if queue.Len() != 0 {
		t.Fatalf("queue length must be 0, got %d", queue.Len())
	}
}

func TestMPSCMultiProducer(t *testing.T) {
	const (
		numProducers = 4
		numMessages  = 1000
	)
	queue := NewQueueMPSC[int]()

	var wg sync.WaitGroup
	wg.Add(numProducers)
	for p := 0; p < numProducers; p++ {
		go func(producerID int) {
			defer wg.Done()
			for i := 0; i < numMessages; i++ {
				queue.Push(producerID*numMessages + i)
				if i%100 == 0 {
					runtime.Gosched()
				}
			}
		}(p)
	}
	wg.Wait()

	// every producer's messages must come out in the order they were pushed
	last := make(map[int]int)
	count := 0
	for {
		v, ok := queue.Pop()
		if ok == false {
			break
		}
		producer := v / numMessages
		if prev, found := last[producer]; found && prev >= v {
			t.Fatalf("producer %d: %d popped after %d", producer, v, prev)
		}
		last[producer] = v
		count++
	}
	if count != numProducers*numMessages {
		t.Fatalf("expected %d messages, got %d", numProducers*numMessages, count)
	}
}
