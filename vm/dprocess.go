package vm

import (
	"time"

	"ergo.services/dvm/gen"

	"github.com/sasha-s/go-deadlock"
)

// DProcess is an isolated, independently schedulable unit of computation: an
// interpreter plus everything the VM keeps about it. Every concern sits behind
// its own lock so that, for example, reading flags never waits for the
// interpreter to finish a reduction.
//
// Lock order. Code holding more than one of the locks below takes them in the
// order they are declared:
//
//	interpreter, metadata, effect handlers, status, mailbox, attachment,
//	kv-store, flags, timers, monitors, links
//
// Locks of two different d-processes are never held together, with the only
// exception of the links locks taken by link/unlink, which are taken in
// DProcessID order. Notifying peers (links, monitors, subscribers) happens
// with no lock of the notifying d-process held.
//
// Read accessors return snapshots. Writers are unexported: the VM, the Handle
// and the documented entry points below are the only way to change state.
type DProcess struct {
	id  gen.DProcessID
	log *log

	builder          gen.InterpreterBuilder
	interpreter      gen.Interpreter
	interpreterMutex deadlock.RWMutex

	metadata      gen.DProcessMetadata
	metadataMutex deadlock.RWMutex

	effectHandlers      gen.EffectHandlers
	effectHandlersMutex deadlock.RWMutex

	status      gen.DProcessStatus
	statusMutex deadlock.RWMutex

	mailbox      map[gen.Type][]gen.Value
	mailboxMutex deadlock.RWMutex

	attachment      gen.ProcessorAttachment
	attachmentMutex deadlock.RWMutex

	kv      map[gen.Type]gen.Value
	kvMutex deadlock.RWMutex

	flags      gen.Flags
	flagsMutex deadlock.RWMutex

	timers      map[string]dprocessTimer
	timersMutex deadlock.RWMutex

	monitors      map[gen.DProcessID]struct{}
	monitorsMutex deadlock.RWMutex

	links      map[gen.DProcessID]struct{}
	linksMutex deadlock.RWMutex
}

type dprocessTimer struct {
	deadline time.Time
	ty       gen.Type
	value    gen.Value
}

// TimerInfo
type TimerInfo struct {
	Name     string
	Deadline time.Time
	Type     gen.Type
}

func newDProcess(id gen.DProcessID, manifest gen.DProcessManifest, log *log) *DProcess {
	metadata := manifest.Metadata.Copy()
	metadata.Spawned = time.Now()

	handlers := manifest.EffectHandlers.Copy()
	flags := manifest.Flags.Copy()

	return &DProcess{
		id:             id,
		log:            log,
		builder:        manifest.Builder,
		interpreter:    manifest.Builder.Build(),
		metadata:       metadata,
		effectHandlers: handlers,
		status:         gen.StatusRunning{},
		mailbox:        make(map[gen.Type][]gen.Value),
		attachment:     gen.Detached,
		kv:             make(map[gen.Type]gen.Value),
		flags:          flags,
		timers:         make(map[string]dprocessTimer),
		monitors:       make(map[gen.DProcessID]struct{}),
		links:          make(map[gen.DProcessID]struct{}),
	}
}

// ID
func (p *DProcess) ID() gen.DProcessID {
	return p.id
}

// Log returns the logger of this d-process.
func (p *DProcess) Log() gen.Log {
	return p.log
}

// Metadata
func (p *DProcess) Metadata() gen.DProcessMetadata {
	p.metadataMutex.RLock()
	defer p.metadataMutex.RUnlock()
	return p.metadata.Copy()
}

// EffectHandlers
func (p *DProcess) EffectHandlers() gen.EffectHandlers {
	p.effectHandlersMutex.RLock()
	defer p.effectHandlersMutex.RUnlock()
	return p.effectHandlers.Copy()
}

// Status
func (p *DProcess) Status() gen.DProcessStatus {
	p.statusMutex.RLock()
	defer p.statusMutex.RUnlock()
	return p.status
}

// Mailbox returns a copy of the pending messages, per type, oldest first.
func (p *DProcess) Mailbox() map[gen.Type][]gen.Value {
	p.mailboxMutex.RLock()
	defer p.mailboxMutex.RUnlock()
	mailbox := make(map[gen.Type][]gen.Value, len(p.mailbox))
	for ty, queue := range p.mailbox {
		mailbox[ty] = append([]gen.Value(nil), queue...)
	}
	return mailbox
}

// MailboxLen returns the number of pending messages of all types.
func (p *DProcess) MailboxLen() int {
	p.mailboxMutex.RLock()
	defer p.mailboxMutex.RUnlock()
	n := 0
	for _, queue := range p.mailbox {
		n += len(queue)
	}
	return n
}

// Attachment
func (p *DProcess) Attachment() gen.ProcessorAttachment {
	p.attachmentMutex.RLock()
	defer p.attachmentMutex.RUnlock()
	return p.attachment
}

// Store returns the value kept in the key-value store under ty.
func (p *DProcess) Store(ty gen.Type) (gen.Value, bool) {
	p.kvMutex.RLock()
	defer p.kvMutex.RUnlock()
	v, found := p.kv[ty]
	return v, found
}

// Flags
func (p *DProcess) Flags() gen.Flags {
	p.flagsMutex.RLock()
	defer p.flagsMutex.RUnlock()
	return p.flags.Copy()
}

// Flag
func (p *DProcess) Flag(name gen.FlagName) (gen.Value, bool) {
	p.flagsMutex.RLock()
	defer p.flagsMutex.RUnlock()
	v, found := p.flags[name]
	return v, found
}

// Timers
func (p *DProcess) Timers() []TimerInfo {
	p.timersMutex.RLock()
	defer p.timersMutex.RUnlock()
	timers := make([]TimerInfo, 0, len(p.timers))
	for name, t := range p.timers {
		timers = append(timers, TimerInfo{Name: name, Deadline: t.deadline, Type: t.ty})
	}
	return timers
}

// Monitors returns the d-processes watching this one.
func (p *DProcess) Monitors() []gen.DProcessID {
	p.monitorsMutex.RLock()
	defer p.monitorsMutex.RUnlock()
	return idSet(p.monitors)
}

// Links
func (p *DProcess) Links() []gen.DProcessID {
	p.linksMutex.RLock()
	defer p.linksMutex.RUnlock()
	return idSet(p.links)
}

func idSet(set map[gen.DProcessID]struct{}) []gen.DProcessID {
	ids := make([]gen.DProcessID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

//
// unexported writers
//

func (p *DProcess) setAttachment(a gen.ProcessorAttachment) {
	p.attachmentMutex.Lock()
	p.attachment = a
	p.attachmentMutex.Unlock()
}

func (p *DProcess) setFlag(name gen.FlagName, value gen.Value) {
	p.flagsMutex.Lock()
	p.flags[name] = value
	p.flagsMutex.Unlock()
}

func (p *DProcess) setEffectHandler(effect gen.Effect, handler gen.EffectHandler) {
	p.effectHandlersMutex.Lock()
	if handler == nil {
		delete(p.effectHandlers, effect)
	} else {
		p.effectHandlers[effect] = handler
	}
	p.effectHandlersMutex.Unlock()
}

func (p *DProcess) setTimer(name string, after time.Duration, ty gen.Type, value gen.Value) {
	p.timersMutex.Lock()
	p.timers[name] = dprocessTimer{
		deadline: time.Now().Add(after),
		ty:       ty,
		value:    value,
	}
	p.timersMutex.Unlock()
}

func (p *DProcess) cancelTimer(name string) error {
	p.timersMutex.Lock()
	defer p.timersMutex.Unlock()
	if _, found := p.timers[name]; found == false {
		return gen.ErrTimerUnknown
	}
	delete(p.timers, name)
	return nil
}

// fireTimers delivers the messages of all timers due at now to the d-process
// itself.
func (p *DProcess) fireTimers(h Handle, now time.Time) {
	var due []dprocessTimer

	p.timersMutex.Lock()
	for name, t := range p.timers {
		if t.deadline.After(now) {
			continue
		}
		due = append(due, t)
		delete(p.timers, name)
	}
	p.timersMutex.Unlock()

	for _, t := range due {
		if err := p.ReceiveMessage(h, t.ty, t.value); err != nil {
			p.log.Trace("timer message %s dropped: %s", t.ty, err)
		}
	}
}
