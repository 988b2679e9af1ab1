package vm

import (
	"runtime/debug"

	"ergo.services/dvm/gen"
)

// MigrationLogic decides which processor every d-process should be attached
// to. The bookkeeping callbacks are delivered in the order the changes
// happened, right before SuggestMigration is called.
type MigrationLogic interface {
	// SuggestMigration is called once per migration pass. Suggestions naming
	// d-processes or processors that do not exist anymore are ignored.
	SuggestMigration(h Handle) []MigrationSuggestion

	DProcessSpawned(h Handle, id gen.DProcessID)
	DProcessDeleted(h Handle, id gen.DProcessID)
	ProcessorAdded(h Handle, name gen.ProcessorName)
	ProcessorDeleted(h Handle, name gen.ProcessorName)
	StatusUpdated(h Handle, id gen.DProcessID, status gen.DProcessStatus)
}

// MigrationSuggestion
type MigrationSuggestion struct {
	DProcessID gen.DProcessID
	Target     gen.ProcessorAttachment
}

// MigrationLogicBase implements the bookkeeping callbacks of MigrationLogic
// with no-ops. Embed it to implement only what you need.
type MigrationLogicBase struct{}

func (MigrationLogicBase) DProcessSpawned(h Handle, id gen.DProcessID)                          {}
func (MigrationLogicBase) DProcessDeleted(h Handle, id gen.DProcessID)                          {}
func (MigrationLogicBase) ProcessorAdded(h Handle, name gen.ProcessorName)                      {}
func (MigrationLogicBase) ProcessorDeleted(h Handle, name gen.ProcessorName)                    {}
func (MigrationLogicBase) StatusUpdated(h Handle, id gen.DProcessID, status gen.DProcessStatus) {}

type migrationEventKind int

const (
	migrationEventSpawned migrationEventKind = iota
	migrationEventDeleted
	migrationEventProcessorAdded
	migrationEventProcessorDeleted
	migrationEventStatus
)

type migrationEvent struct {
	kind      migrationEventKind
	id        gen.DProcessID
	processor gen.ProcessorName
	status    gen.DProcessStatus
}

func (e migrationEvent) deliver(h Handle, logic MigrationLogic) {
	switch e.kind {
	case migrationEventSpawned:
		logic.DProcessSpawned(h, e.id)
	case migrationEventDeleted:
		logic.DProcessDeleted(h, e.id)
	case migrationEventProcessorAdded:
		logic.ProcessorAdded(h, e.processor)
	case migrationEventProcessorDeleted:
		logic.ProcessorDeleted(h, e.processor)
	case migrationEventStatus:
		logic.StatusUpdated(h, e.id, e.status)
	}
}

// RunMigrationLogic runs one migration pass: pending bookkeeping events are
// delivered, then every suggestion is applied in order. Applying one detaches
// the d-process from its current scheduler, attaches it to the target
// scheduler and only then records the new attachment, so a d-process is never
// tracked by two schedulers. It never fails.
func (v *VM) RunMigrationLogic() {
	v.migrationMutex.Lock()
	defer v.migrationMutex.Unlock()

	if v.migration == nil {
		v.events.Drain()
		return
	}

	h := v.Handle()
	var suggestions []MigrationSuggestion

	func() {
		defer func() {
			if r := recover(); r != nil {
				v.log.Panic("migration logic panic: %v", r)
				v.log.Debug("%s", debug.Stack())
				suggestions = nil
			}
		}()
		for _, event := range v.events.Drain() {
			event.deliver(h, v.migration)
		}
		suggestions = v.migration.SuggestMigration(h)
	}()

	for _, s := range suggestions {
		v.applySuggestion(s)
	}
}

// applySuggestion must be called with migrationMutex held.
func (v *VM) applySuggestion(s MigrationSuggestion) {
	p := v.dprocess(s.DProcessID)
	if p == nil {
		v.log.Trace("migration of unknown d-process %s ignored", s.DProcessID)
		return
	}

	var target *Processor
	if s.Target.Attached {
		if target = v.processor(s.Target.Processor); target == nil {
			v.log.Trace("migration of %s to unknown processor %s ignored", s.DProcessID, s.Target.Processor)
			return
		}
	}

	current := p.Attachment()
	if current == s.Target {
		return
	}
	if current.Attached {
		if from := v.processor(current.Processor); from != nil {
			from.scheduler.Detach(p.id)
		}
	}
	if target != nil {
		target.scheduler.Attach(p)
	}
	p.setAttachment(s.Target)
	p.log.Debug("%s", s.Target)
}
