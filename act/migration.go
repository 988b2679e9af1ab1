package act

import (
	"slices"

	"ergo.services/dvm/gen"
	"ergo.services/dvm/vm"
)

func sortIDs(ids []gen.DProcessID) []gen.DProcessID {
	slices.SortFunc(ids, func(a, b gen.DProcessID) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		}
		return 0
	})
	return ids
}

// FirstProcessor attaches every detached d-process that has not terminated to
// the first processor (by name) and detaches the terminated ones. It keeps no
// state.
type FirstProcessor struct {
	vm.MigrationLogicBase
}

// CreateFirstProcessor
func CreateFirstProcessor() *FirstProcessor {
	return &FirstProcessor{}
}

func (f *FirstProcessor) SuggestMigration(h vm.Handle) []vm.MigrationSuggestion {
	processors := h.Processors()

	var suggestions []vm.MigrationSuggestion
	for _, id := range sortIDs(h.DProcesses()) {
		status, err := h.Status(id)
		if err != nil {
			continue
		}
		attachment, err := h.Attachment(id)
		if err != nil {
			continue
		}

		if status.IsTerminal() {
			if attachment.Attached {
				suggestions = append(suggestions, vm.MigrationSuggestion{DProcessID: id, Target: gen.Detached})
			}
			continue
		}

		if attachment.Attached || len(processors) == 0 {
			continue
		}
		suggestions = append(suggestions, vm.MigrationSuggestion{
			DProcessID: id,
			Target:     gen.Attached(processors[0]),
		})
	}
	return suggestions
}

// LeastLoaded spreads the d-processes that have not terminated across the
// processors. New and orphaned d-processes go to the processor with the
// fewest attached ones. On top of that at most MaxMoves d-processes are moved
// per pass from the most loaded processor to the least loaded one while they
// differ by more than one. Terminated d-processes are detached.
//
// It learns about d-processes and processors through the bookkeeping
// callbacks only.
type LeastLoaded struct {
	MaxMoves int

	processors map[gen.ProcessorName]bool
	live       map[gen.DProcessID]bool
}

// CreateLeastLoaded
func CreateLeastLoaded(maxMoves int) *LeastLoaded {
	return &LeastLoaded{
		MaxMoves:   maxMoves,
		processors: make(map[gen.ProcessorName]bool),
		live:       make(map[gen.DProcessID]bool),
	}
}

func (l *LeastLoaded) DProcessSpawned(h vm.Handle, id gen.DProcessID) {
	l.live[id] = true
}

func (l *LeastLoaded) DProcessDeleted(h vm.Handle, id gen.DProcessID) {
	delete(l.live, id)
}

func (l *LeastLoaded) ProcessorAdded(h vm.Handle, name gen.ProcessorName) {
	l.processors[name] = true
}

func (l *LeastLoaded) ProcessorDeleted(h vm.Handle, name gen.ProcessorName) {
	delete(l.processors, name)
}

func (l *LeastLoaded) StatusUpdated(h vm.Handle, id gen.DProcessID, status gen.DProcessStatus) {
	if _, known := l.live[id]; known == false {
		// deleted already
		return
	}
	l.live[id] = status.IsTerminal() == false
}

func (l *LeastLoaded) SuggestMigration(h vm.Handle) []vm.MigrationSuggestion {
	var suggestions []vm.MigrationSuggestion

	load := make(map[gen.ProcessorName][]gen.DProcessID, len(l.processors))
	for name := range l.processors {
		load[name] = nil
	}

	ids := make([]gen.DProcessID, 0, len(l.live))
	for id := range l.live {
		ids = append(ids, id)
	}

	var orphans []gen.DProcessID
	for _, id := range sortIDs(ids) {
		attachment, err := h.Attachment(id)
		if err != nil {
			delete(l.live, id)
			continue
		}
		if l.live[id] == false {
			if attachment.Attached {
				suggestions = append(suggestions, vm.MigrationSuggestion{DProcessID: id, Target: gen.Detached})
			}
			continue
		}
		if attachment.Attached && l.processors[attachment.Processor] {
			load[attachment.Processor] = append(load[attachment.Processor], id)
			continue
		}
		orphans = append(orphans, id)
	}

	if len(load) == 0 {
		return suggestions
	}

	for _, id := range orphans {
		target := leastLoaded(load)
		load[target] = append(load[target], id)
		suggestions = append(suggestions, vm.MigrationSuggestion{DProcessID: id, Target: gen.Attached(target)})
	}

	for moves := 0; moves < l.MaxMoves; moves++ {
		most := mostLoaded(load)
		least := leastLoaded(load)
		if len(load[most])-len(load[least]) <= 1 {
			break
		}
		last := len(load[most]) - 1
		id := load[most][last]
		load[most] = load[most][:last]
		load[least] = append(load[least], id)
		suggestions = append(suggestions, vm.MigrationSuggestion{DProcessID: id, Target: gen.Attached(least)})
	}

	return suggestions
}

func loadNames(load map[gen.ProcessorName][]gen.DProcessID) []gen.ProcessorName {
	names := make([]gen.ProcessorName, 0, len(load))
	for name := range load {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func leastLoaded(load map[gen.ProcessorName][]gen.DProcessID) gen.ProcessorName {
	var least gen.ProcessorName
	first := true
	for _, name := range loadNames(load) {
		if first || len(load[name]) < len(load[least]) {
			least = name
			first = false
		}
	}
	return least
}

func mostLoaded(load map[gen.ProcessorName][]gen.DProcessID) gen.ProcessorName {
	var most gen.ProcessorName
	first := true
	for _, name := range loadNames(load) {
		if first || len(load[name]) > len(load[most]) {
			most = name
			first = false
		}
	}
	return most
}
