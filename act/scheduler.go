package act

import (
	"slices"
	"sync"
	"time"

	"ergo.services/dvm/gen"
	"ergo.services/dvm/vm"
)

// OfficialScheduler is the reference round-robin scheduler. It keeps a FIFO
// run queue of the attached d-processes and the last known status of each.
// Every tick the time budget is divided evenly among the d-processes last seen
// Running. Priority is not taken into account.
type OfficialScheduler struct {
	mutex    sync.Mutex
	queue    []*vm.DProcess
	tracked  map[gen.DProcessID]*vm.DProcess
	statuses map[gen.DProcessID]gen.DProcessStatus
}

// CreateOfficialScheduler
func CreateOfficialScheduler() *OfficialScheduler {
	return &OfficialScheduler{
		tracked:  make(map[gen.DProcessID]*vm.DProcess),
		statuses: make(map[gen.DProcessID]gen.DProcessStatus),
	}
}

// Attach adds p to the end of the run queue.
func (s *OfficialScheduler) Attach(p *vm.DProcess) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, exist := s.tracked[p.ID()]; exist {
		return
	}
	s.tracked[p.ID()] = p
	s.statuses[p.ID()] = p.Status()
	s.queue = slices.DeleteFunc(s.queue, func(q *vm.DProcess) bool {
		return q.ID() == p.ID()
	})
	s.queue = append(s.queue, p)
}

// Detach stops tracking id. It is dropped from the run queue on the next tick.
func (s *OfficialScheduler) Detach(id gen.DProcessID) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.tracked, id)
	delete(s.statuses, id)
}

// Reduce runs one tick.
func (s *OfficialScheduler) Reduce(h vm.Handle, processor gen.ProcessorName, target time.Duration) {
	start := time.Now()

	s.mutex.Lock()
	queue := s.queue
	s.queue = nil

	// a d-process detached and attached again between two ticks has a stale
	// entry in the queue
	var running []*vm.DProcess
	kept := queue[:0]
	seen := make(map[gen.DProcessID]bool, len(queue))
	for _, p := range queue {
		if _, tracked := s.tracked[p.ID()]; tracked == false || seen[p.ID()] {
			continue
		}
		seen[p.ID()] = true
		kept = append(kept, p)
		status := p.Status()
		s.statuses[p.ID()] = status
		if gen.IsRunning(status) {
			running = append(running, p)
		}
	}
	s.mutex.Unlock()

	reached := make(map[gen.DProcessID]bool, len(running))
	if len(running) > 0 {
		share := target / time.Duration(len(running))
		for _, p := range running {
			left := target - time.Since(start)
			if left <= 0 {
				break
			}
			if s.isTracked(p.ID()) == false {
				continue
			}
			budget := min(share, left)
			p.Reduce(h, budget)
			reached[p.ID()] = true

			s.mutex.Lock()
			if _, tracked := s.tracked[p.ID()]; tracked {
				s.statuses[p.ID()] = p.Status()
			}
			s.mutex.Unlock()
		}
	}

	// the ones that did not get their share this tick go first next time
	requeue := make([]*vm.DProcess, 0, len(kept))
	for _, p := range kept {
		if reached[p.ID()] == false {
			requeue = append(requeue, p)
		}
	}
	for _, p := range kept {
		if reached[p.ID()] {
			requeue = append(requeue, p)
		}
	}

	s.mutex.Lock()
	fresh := s.queue
	s.queue = make([]*vm.DProcess, 0, len(requeue)+len(fresh))
	queued := make(map[gen.DProcessID]bool, cap(s.queue))
	for _, p := range append(requeue, fresh...) {
		if _, tracked := s.tracked[p.ID()]; tracked == false || queued[p.ID()] {
			continue
		}
		queued[p.ID()] = true
		s.queue = append(s.queue, p)
	}
	s.mutex.Unlock()
}

func (s *OfficialScheduler) isTracked(id gen.DProcessID) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	_, tracked := s.tracked[id]
	return tracked
}

// CachedStatus returns the status id had when the scheduler last looked at
// it.
func (s *OfficialScheduler) CachedStatus(id gen.DProcessID) (gen.DProcessStatus, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	status, found := s.statuses[id]
	return status, found
}

// Tracked returns the ids in run queue order.
func (s *OfficialScheduler) Tracked() []gen.DProcessID {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	ids := make([]gen.DProcessID, 0, len(s.queue))
	for _, p := range s.queue {
		if _, tracked := s.tracked[p.ID()]; tracked {
			ids = append(ids, p.ID())
		}
	}
	return ids
}
