package vm

import (
	"ergo.services/dvm/gen"
)

// statusGuard is a held write lock of the status of a d-process. It is the
// only thing updateStatus accepts, so the caller can observe the current
// status, decide and commit without releasing the lock in between.
type statusGuard struct {
	p        *DProcess
	reset    bool
	released bool
}

func (p *DProcess) lockStatus() *statusGuard {
	p.statusMutex.Lock()
	return &statusGuard{p: p}
}

func (g *statusGuard) current() gen.DProcessStatus {
	return g.p.status
}

func (g *statusGuard) unlock() {
	if g.released {
		return
	}
	g.released = true
	g.p.statusMutex.Unlock()
}

// updateStatus is the only place the status of a d-process is written. It
// commits status under the held guard, releases it and then propagates the
// change: monitors get a DownMessage, linked d-processes are halted by link and
// the VM is told about the change. A terminal status is never left unless the
// guard was taken by Reset. Returns false if nothing was committed.
func (p *DProcess) updateStatus(h Handle, g *statusGuard, status gen.DProcessStatus) bool {
	if g.p != p || g.released {
		panic("status guard of another d-process or already released")
	}

	old := g.current()
	if old.IsTerminal() && g.reset == false {
		g.unlock()
		return false
	}
	p.status = status

	var monitors, links []gen.DProcessID
	exit, terminated := status.(gen.ExitStatus)
	if terminated {
		// status is taken before monitors and links, so nobody can add a
		// monitor or a link between the commit and the snapshot without
		// seeing the new status
		p.monitorsMutex.RLock()
		monitors = idSet(p.monitors)
		p.monitorsMutex.RUnlock()

		p.linksMutex.RLock()
		links = idSet(p.links)
		p.linksMutex.RUnlock()
	}
	g.unlock()

	if terminated {
		p.log.Debug("terminated: %s", exit)
		p.notifyMonitors(h, monitors, exit)
		p.notifyLinks(h, links, linkExitOf(p.id, exit))
	}

	h.vm.statusUpdated(p.id, old, status)
	return true
}

func (p *DProcess) notifyMonitors(h Handle, monitors []gen.DProcessID, exit gen.ExitStatus) {
	down := gen.DownMessage{From: p.id, Exit: exit}
	for _, id := range monitors {
		watcher := h.vm.dprocess(id)
		if watcher == nil {
			continue
		}
		if err := watcher.ReceiveMessage(h, gen.TypeDown, down.Value()); err != nil {
			p.log.Trace("down message to %s dropped: %s", id, err)
		}
	}
}

func (p *DProcess) notifyLinks(h Handle, links []gen.DProcessID, exit gen.LinkExit) {
	for _, id := range links {
		peer := h.vm.dprocess(id)
		if peer == nil {
			continue
		}
		peer.haltByLink(h, exit)
	}
}

// linkExitOf returns what the links of a terminated d-process are halted with.
// A d-process halted by a link relays the exit it got.
func linkExitOf(id gen.DProcessID, exit gen.ExitStatus) gen.LinkExit {
	if byLink, ok := exit.(gen.StatusHaltedByLink); ok {
		return byLink.LinkExit
	}
	return gen.LinkExit{DProcessID: id, Exit: exit}
}

func (p *DProcess) halt(h Handle, ty gen.Type, reason gen.Value) error {
	if reason == nil {
		reason = gen.Unit
	}
	g := p.lockStatus()
	if g.current().IsTerminal() {
		g.unlock()
		return gen.ErrDProcessTerminated
	}
	p.updateStatus(h, g, gen.StatusHalted{Type: ty, Reason: reason})
	return nil
}

func (p *DProcess) haltByLink(h Handle, exit gen.LinkExit) {
	g := p.lockStatus()
	if g.current().IsTerminal() {
		g.unlock()
		return
	}
	p.updateStatus(h, g, gen.StatusHaltedByLink{LinkExit: exit})
}

// crashDelegated crashes the d-process if it is still waiting for the reply
// of the delegated effect that failed to be sent.
func (p *DProcess) crashDelegated(h Handle, to gen.DProcessID, reason error) {
	g := p.lockStatus()
	delegated, ok := g.current().(gen.StatusDelegated)
	if ok == false || delegated.To != to {
		g.unlock()
		return
	}
	p.updateStatus(h, g, gen.StatusCrashed{Error: reason})
}

func (p *DProcess) resumeEffect(h Handle, value gen.Value) error {
	p.interpreterMutex.Lock()
	g := p.lockStatus()
	if _, ok := g.current().(gen.StatusSuspendedWithEffect); ok == false {
		g.unlock()
		p.interpreterMutex.Unlock()
		return gen.ErrNoEffect
	}
	p.interpreter.EffectOutput(value)
	p.interpreterMutex.Unlock()
	p.updateStatus(h, g, gen.StatusRunning{})
	return nil
}

// Reset replaces the interpreter with a fresh one built by builder (or by the
// builder the d-process was spawned with if nil) and forces the status back to
// Running, even from a terminal status. The identity, links, monitors,
// key-value store and flags are kept. Pending messages are dropped.
func (p *DProcess) Reset(h Handle, builder gen.InterpreterBuilder) {
	p.interpreterMutex.Lock()
	if builder != nil {
		p.builder = builder
	}
	p.interpreter = p.builder.Build()

	p.metadataMutex.Lock()
	p.metadata.Resets++
	p.metadataMutex.Unlock()

	g := p.lockStatus()
	g.reset = true

	p.mailboxMutex.Lock()
	clear(p.mailbox)
	p.mailboxMutex.Unlock()

	p.interpreterMutex.Unlock()
	p.updateStatus(h, g, gen.StatusRunning{})
	p.log.Info("reset")
}

//
// links and monitors
//

// linkDProcesses links a and b. The links locks of both are taken in
// DProcessID order. If either side is terminated already the other one is
// halted by link right away.
func linkDProcesses(h Handle, a, b *DProcess) error {
	if a == b {
		return gen.ErrNotAllowed
	}
	first, second := a, b
	if b.id.Less(a.id) {
		first, second = b, a
	}

	first.linksMutex.Lock()
	second.linksMutex.Lock()
	first.links[second.id] = struct{}{}
	second.links[first.id] = struct{}{}
	second.linksMutex.Unlock()
	first.linksMutex.Unlock()

	// a termination committed before the links were updated was not seen by
	// its notification
	if sa := a.Status(); sa.IsTerminal() {
		b.haltByLink(h, linkExitOf(a.id, sa.(gen.ExitStatus)))
	}
	if sb := b.Status(); sb.IsTerminal() {
		a.haltByLink(h, linkExitOf(b.id, sb.(gen.ExitStatus)))
	}
	return nil
}

func unlinkDProcesses(a, b *DProcess) {
	first, second := a, b
	if b.id.Less(a.id) {
		first, second = b, a
	}

	first.linksMutex.Lock()
	second.linksMutex.Lock()
	delete(first.links, second.id)
	delete(second.links, first.id)
	second.linksMutex.Unlock()
	first.linksMutex.Unlock()
}

// addMonitor makes watcher monitor p. If p is terminated already the watcher
// gets the DownMessage right away and nothing is recorded.
func (p *DProcess) addMonitor(h Handle, watcher *DProcess) {
	p.statusMutex.RLock()
	status := p.status
	if status.IsTerminal() == false {
		p.monitorsMutex.Lock()
		p.monitors[watcher.id] = struct{}{}
		p.monitorsMutex.Unlock()
		p.statusMutex.RUnlock()
		return
	}
	p.statusMutex.RUnlock()

	down := gen.DownMessage{From: p.id, Exit: status.(gen.ExitStatus)}
	if err := watcher.ReceiveMessage(h, gen.TypeDown, down.Value()); err != nil {
		p.log.Trace("down message to %s dropped: %s", watcher.id, err)
	}
}

func (p *DProcess) removeMonitor(watcher gen.DProcessID) bool {
	p.monitorsMutex.Lock()
	defer p.monitorsMutex.Unlock()
	if _, found := p.monitors[watcher]; found == false {
		return false
	}
	delete(p.monitors, watcher)
	return true
}
