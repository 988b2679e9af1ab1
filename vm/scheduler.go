package vm

import (
	"runtime/debug"
	"sync"
	"time"

	"ergo.services/dvm/gen"
)

// Scheduler drives the d-processes attached to one processor.
type Scheduler interface {
	// Reduce gives the attached d-processes at most target in total. It never
	// fails: failures inside interpreters end up in the status of the
	// d-process.
	Reduce(h Handle, processor gen.ProcessorName, target time.Duration)
	// Attach adds a d-process to the tracked set.
	Attach(p *DProcess)
	// Detach removes a d-process from the tracked set. Unknown ids are ignored.
	Detach(id gen.DProcessID)
}

// Processor is a named host of one scheduler.
type Processor struct {
	name      gen.ProcessorName
	scheduler Scheduler
	log       *log

	mutex    sync.RWMutex
	metadata ProcessorMetadata
}

// ProcessorMetadata
type ProcessorMetadata struct {
	Added      time.Time
	Ticks      uint64
	LastBudget time.Duration
	LastSpent  time.Duration
	Busy       time.Duration
	Failures   uint64
}

func newProcessor(name gen.ProcessorName, scheduler Scheduler, log *log) *Processor {
	return &Processor{
		name:      name,
		scheduler: scheduler,
		log:       log,
		metadata: ProcessorMetadata{
			Added: time.Now(),
		},
	}
}

// Name
func (p *Processor) Name() gen.ProcessorName {
	return p.name
}

// Scheduler
func (p *Processor) Scheduler() Scheduler {
	return p.scheduler
}

// Metadata
func (p *Processor) Metadata() ProcessorMetadata {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.metadata
}

// Log
func (p *Processor) Log() gen.Log {
	return p.log
}

func (p *Processor) reduce(h Handle, budget time.Duration) {
	start := time.Now()
	failed := false

	func() {
		defer func() {
			if r := recover(); r != nil {
				failed = true
				p.log.Panic("scheduler panic: %v", r)
				p.log.Debug("%s", debug.Stack())
			}
		}()
		p.scheduler.Reduce(h, p.name, budget)
	}()

	spent := time.Since(start)
	if spent > budget {
		p.log.Trace("scheduler spent %s of %s", spent, budget)
	}

	p.mutex.Lock()
	p.metadata.Ticks++
	p.metadata.LastBudget = budget
	p.metadata.LastSpent = spent
	p.metadata.Busy += spent
	if failed {
		p.metadata.Failures++
	}
	p.mutex.Unlock()
}
