package vm

import (
	"sort"
	"time"

	"ergo.services/dvm/gen"
)

// Handle is the capability view of a VM given to schedulers, migration logics
// and hosts. It is cheap to copy and does not own anything. Every method takes
// at most one registry lock at a time and releases it before calling into a
// d-process, so it is safe to use from any callback.
type Handle struct {
	vm *VM
}

// Spawn creates a d-process. It starts detached and Running.
func (h Handle) Spawn(manifest gen.DProcessManifest) (gen.DProcessID, error) {
	return h.vm.Spawn(manifest)
}

// Send delivers a message of type ty to the d-process id.
func (h Handle) Send(to gen.DProcessID, ty gen.Type, value gen.Value) error {
	p := h.vm.dprocess(to)
	if p == nil {
		return gen.ErrDProcessUnknown
	}
	return p.ReceiveMessage(h, ty, value)
}

// SendName delivers a message to the d-process registered under name.
func (h Handle) SendName(name string, ty gen.Type, value gen.Value) error {
	id, found := h.Whereis(name)
	if found == false {
		return gen.ErrNameUnknown
	}
	return h.Send(id, ty, value)
}

// Subscribe makes id receive every value published under ty.
func (h Handle) Subscribe(ty gen.Type, id gen.DProcessID) error {
	if h.vm.dprocess(id) == nil {
		return gen.ErrDProcessUnknown
	}
	if err := h.vm.pubsub.subscribe(ty, id); err != nil {
		return err
	}
	// DeleteDProcess drops the d-process from the registry before its
	// subscriptions, so a concurrent deletion is seen here
	if h.vm.dprocess(id) == nil {
		h.vm.pubsub.unsubscribe(ty, id)
		return gen.ErrDProcessUnknown
	}
	return nil
}

// Unsubscribe
func (h Handle) Unsubscribe(ty gen.Type, id gen.DProcessID) error {
	return h.vm.pubsub.unsubscribe(ty, id)
}

// Publish delivers value as a message of type ty to every subscriber of ty.
// Returns the number of d-processes the message was delivered to.
func (h Handle) Publish(ty gen.Type, value gen.Value) int {
	delivered := 0
	for _, id := range h.vm.pubsub.subscribers(ty) {
		if err := h.Send(id, ty, value); err != nil {
			continue
		}
		delivered++
	}
	return delivered
}

// Halt terminates the d-process with StatusHalted. A reduction in progress is
// not interrupted, its result is discarded.
func (h Handle) Halt(id gen.DProcessID, ty gen.Type, reason gen.Value) error {
	p := h.vm.dprocess(id)
	if p == nil {
		return gen.ErrDProcessUnknown
	}
	return p.halt(h, ty, reason)
}

// Link links two d-processes: when one of them terminates the other one is
// halted by link.
func (h Handle) Link(a, b gen.DProcessID) error {
	pa := h.vm.dprocess(a)
	pb := h.vm.dprocess(b)
	if pa == nil || pb == nil {
		return gen.ErrDProcessUnknown
	}
	return linkDProcesses(h, pa, pb)
}

// Unlink
func (h Handle) Unlink(a, b gen.DProcessID) error {
	pa := h.vm.dprocess(a)
	pb := h.vm.dprocess(b)
	if pa == nil || pb == nil {
		return gen.ErrDProcessUnknown
	}
	unlinkDProcesses(pa, pb)
	return nil
}

// Monitor makes watcher receive a DownMessage (type gen.TypeDown) once target
// terminates.
func (h Handle) Monitor(watcher, target gen.DProcessID) error {
	pw := h.vm.dprocess(watcher)
	if pw == nil {
		return gen.ErrDProcessUnknown
	}
	pt := h.vm.dprocess(target)
	if pt == nil {
		return gen.ErrTargetUnknown
	}
	pt.addMonitor(h, pw)
	return nil
}

// Demonitor
func (h Handle) Demonitor(watcher, target gen.DProcessID) error {
	pt := h.vm.dprocess(target)
	if pt == nil {
		return gen.ErrTargetUnknown
	}
	if pt.removeMonitor(watcher) == false {
		return gen.ErrTargetUnknown
	}
	return nil
}

// Register associates name with the d-process id.
func (h Handle) Register(name string, id gen.DProcessID) error {
	p := h.vm.dprocess(id)
	if p == nil {
		return gen.ErrDProcessUnknown
	}
	if err := h.vm.names.register(name, id); err != nil {
		return err
	}
	if h.vm.dprocess(id) == nil {
		h.vm.names.forget(id)
		return gen.ErrDProcessUnknown
	}
	p.log.setSource(gen.MessageLogDProcess{VM: h.vm.name, DProcessID: id, Name: name})
	return nil
}

// Unregister
func (h Handle) Unregister(name string) error {
	id, err := h.vm.names.unregister(name)
	if err != nil {
		return err
	}
	if p := h.vm.dprocess(id); p != nil {
		p.log.setSource(gen.MessageLogDProcess{VM: h.vm.name, DProcessID: id})
	}
	return nil
}

// Whereis
func (h Handle) Whereis(name string) (gen.DProcessID, bool) {
	return h.vm.names.whereis(name)
}

// NameOf returns the name the d-process id is registered with.
func (h Handle) NameOf(id gen.DProcessID) (string, bool) {
	return h.vm.names.name(id)
}

// Flag reads a flag of the d-process id.
func (h Handle) Flag(id gen.DProcessID, name gen.FlagName) (gen.Value, bool) {
	p := h.vm.dprocess(id)
	if p == nil {
		return nil, false
	}
	return p.Flag(name)
}

// Status
func (h Handle) Status(id gen.DProcessID) (gen.DProcessStatus, error) {
	p := h.vm.dprocess(id)
	if p == nil {
		return nil, gen.ErrDProcessUnknown
	}
	return p.Status(), nil
}

// Attachment
func (h Handle) Attachment(id gen.DProcessID) (gen.ProcessorAttachment, error) {
	p := h.vm.dprocess(id)
	if p == nil {
		return gen.Detached, gen.ErrDProcessUnknown
	}
	return p.Attachment(), nil
}

// Metadata
func (h Handle) Metadata(id gen.DProcessID) (gen.DProcessMetadata, error) {
	p := h.vm.dprocess(id)
	if p == nil {
		return gen.DProcessMetadata{}, gen.ErrDProcessUnknown
	}
	return p.Metadata(), nil
}

// DProcesses returns the ids of all d-processes.
func (h Handle) DProcesses() []gen.DProcessID {
	return h.vm.DProcessIDs()
}

// Processors returns the names of all processors, sorted.
func (h Handle) Processors() []gen.ProcessorName {
	return h.vm.ProcessorNames()
}

// SetTimer makes the d-process id receive value as a message of type ty after
// the given duration. A timer with the same name is replaced.
func (h Handle) SetTimer(id gen.DProcessID, name string, after time.Duration, ty gen.Type, value gen.Value) error {
	p := h.vm.dprocess(id)
	if p == nil {
		return gen.ErrDProcessUnknown
	}
	if p.Status().IsTerminal() {
		return gen.ErrDProcessTerminated
	}
	p.setTimer(name, after, ty, value)
	return nil
}

// CancelTimer
func (h Handle) CancelTimer(id gen.DProcessID, name string) error {
	p := h.vm.dprocess(id)
	if p == nil {
		return gen.ErrDProcessUnknown
	}
	return p.cancelTimer(name)
}

// Log returns the logger of the VM.
func (h Handle) Log() gen.Log {
	return h.vm.log
}

func sortedProcessorNames(names []gen.ProcessorName) []gen.ProcessorName {
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
