package vm

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"ergo.services/dvm/gen"
	"ergo.services/dvm/lib"
	"ergo.services/dvm/lib/osdep"
	"ergo.services/dvm/logger"
)

// VM owns every d-process and processor and drives them. All the methods are
// safe for concurrent use.
type VM struct {
	name    string
	created time.Time
	log     *log

	loggersMutex sync.RWMutex
	loggers      map[string]vmLogger

	processesMutex sync.RWMutex
	processes      map[gen.DProcessID]*DProcess

	processorsMutex sync.RWMutex
	processors      map[gen.ProcessorName]*Processor

	names  registrar
	pubsub pubsub

	// migrationMutex serializes migration passes with the removal of
	// d-processes and processors. It is always taken before any registry lock.
	migrationMutex sync.Mutex
	migration      MigrationLogic
	events         *lib.QueueMPSC[migrationEvent]

	outputsMutex sync.Mutex
	outputs      *lib.QueueMPSC[gen.VMOutput]

	onOutputs func(gen.VMOutputs)
	logLevel  gen.LogLevel
	version   gen.Version
	lockOrder bool
}

type vmLogger struct {
	behavior gen.LoggerBehavior
	levels   map[gen.LogLevel]bool
}

// Info
type Info struct {
	Name        string
	Version     gen.Version
	Uptime      time.Duration
	DProcesses  int
	Running     int
	Terminated  int
	Processors  int
	Names       int
	PendingOuts int64
	UserTime    int64
	SystemTime  int64
	MaxRSS      int64
}

// New creates a VM.
func New(options Options) *VM {
	v := &VM{
		name:       options.Name,
		created:    time.Now(),
		loggers:    make(map[string]vmLogger),
		processes:  make(map[gen.DProcessID]*DProcess),
		processors: make(map[gen.ProcessorName]*Processor),
		migration:  options.MigrationLogic,
		events:     lib.NewQueueMPSC[migrationEvent](),
		outputs:    lib.NewQueueMPSC[gen.VMOutput](),
		onOutputs:  options.OnOutputs,
		logLevel:   options.Log.Level,
		version:    options.Version,
		lockOrder:  options.LockOrder.Enable,
	}
	if v.name == "" {
		v.name = defaultVMName
	}
	v.pubsub.init()

	if options.Log.DefaultLogger.Disable == false {
		v.LoggerAdd("default", logger.CreateConsole(options.Log.DefaultLogger))
	}
	for _, l := range options.Log.Loggers {
		if err := v.LoggerAdd(l.Name, l.Logger, l.Filter...); err != nil {
			panic(fmt.Sprintf("unable to add logger %q: %s", l.Name, err))
		}
	}

	v.log = createLog(options.Log.Level, v.dolog)
	v.log.setSource(gen.MessageLogVM{Name: v.name})

	if options.LockOrder.Enable {
		enableLockOrderDetection(v.log, options.LockOrder.Timeout, options.LockOrder.OnViolation)
		v.log.Warning("lock order detection enabled")
	}

	v.log.Info("started %s", v.version)
	return v
}

// Name
func (v *VM) Name() string {
	return v.name
}

// Log
func (v *VM) Log() gen.Log {
	return v.log
}

// Handle returns the capability view of the VM.
func (v *VM) Handle() Handle {
	return Handle{vm: v}
}

//
// d-processes
//

// Spawn creates a d-process from manifest. It starts detached and Running;
// the migration logic learns about it on the next migration pass.
func (v *VM) Spawn(manifest gen.DProcessManifest) (gen.DProcessID, error) {
	if manifest.Builder == nil {
		return gen.DProcessID{}, fmt.Errorf("%w: manifest has no interpreter builder", gen.ErrIncorrect)
	}

	id := gen.NewDProcessID()
	l := createLog(v.logLevel, v.dolog)
	l.setSource(gen.MessageLogDProcess{VM: v.name, DProcessID: id})

	p := newDProcess(id, manifest, l)

	v.processesMutex.Lock()
	v.processes[id] = p
	v.processesMutex.Unlock()

	v.events.Push(migrationEvent{kind: migrationEventSpawned, id: id})
	p.log.Debug("spawned")
	return id, nil
}

// DeleteDProcess removes a d-process from the VM. A d-process that has not
// terminated yet is halted with gen.TypeHaltDeleted first, so its links and
// monitors are notified.
func (v *VM) DeleteDProcess(id gen.DProcessID) error {
	p := v.dprocess(id)
	if p == nil {
		return gen.ErrDProcessUnknown
	}

	h := v.Handle()
	if p.Status().IsTerminal() == false {
		p.halt(h, gen.TypeHaltDeleted, gen.Unit)
	}

	v.migrationMutex.Lock()
	defer v.migrationMutex.Unlock()

	v.processesMutex.Lock()
	if _, found := v.processes[id]; found == false {
		v.processesMutex.Unlock()
		return gen.ErrDProcessUnknown
	}
	delete(v.processes, id)
	v.processesMutex.Unlock()

	if a := p.Attachment(); a.Attached {
		if processor := v.processor(a.Processor); processor != nil {
			processor.scheduler.Detach(id)
		}
		p.setAttachment(gen.Detached)
	}

	for _, peer := range p.Links() {
		if pp := v.dprocess(peer); pp != nil {
			unlinkDProcesses(p, pp)
		}
	}

	v.names.forget(id)
	v.pubsub.forget(id)

	v.events.Push(migrationEvent{kind: migrationEventDeleted, id: id})
	p.log.Debug("deleted")
	return nil
}

// DProcess returns the d-process id or nil.
func (v *VM) DProcess(id gen.DProcessID) *DProcess {
	return v.dprocess(id)
}

// DProcessIDs returns the ids of all d-processes.
func (v *VM) DProcessIDs() []gen.DProcessID {
	v.processesMutex.RLock()
	defer v.processesMutex.RUnlock()
	ids := make([]gen.DProcessID, 0, len(v.processes))
	for id := range v.processes {
		ids = append(ids, id)
	}
	return ids
}

func (v *VM) dprocess(id gen.DProcessID) *DProcess {
	v.processesMutex.RLock()
	defer v.processesMutex.RUnlock()
	return v.processes[id]
}

// ResumeEffect resumes a d-process suspended with an effect no handler was
// registered for, handing value over as the effect output.
func (v *VM) ResumeEffect(id gen.DProcessID, value gen.Value) error {
	p := v.dprocess(id)
	if p == nil {
		return gen.ErrDProcessUnknown
	}
	return p.resumeEffect(v.Handle(), value)
}

// SetFlag
func (v *VM) SetFlag(id gen.DProcessID, name gen.FlagName, value gen.Value) error {
	p := v.dprocess(id)
	if p == nil {
		return gen.ErrDProcessUnknown
	}
	p.setFlag(name, value)
	return nil
}

// SetEffectHandler replaces the handler of effect. A nil handler removes it.
func (v *VM) SetEffectHandler(id gen.DProcessID, effect gen.Effect, handler gen.EffectHandler) error {
	p := v.dprocess(id)
	if p == nil {
		return gen.ErrDProcessUnknown
	}
	p.setEffectHandler(effect, handler)
	return nil
}

// Reset hot-swaps the interpreter of a d-process. See DProcess.Reset.
func (v *VM) Reset(id gen.DProcessID, builder gen.InterpreterBuilder) error {
	p := v.dprocess(id)
	if p == nil {
		return gen.ErrDProcessUnknown
	}
	p.Reset(v.Handle(), builder)
	return nil
}

//
// processors
//

// AddProcessor registers a processor driven by scheduler.
func (v *VM) AddProcessor(name gen.ProcessorName, scheduler Scheduler) error {
	if name == "" || scheduler == nil {
		return gen.ErrIncorrect
	}

	l := createLog(v.logLevel, v.dolog)
	l.setSource(gen.MessageLogProcessor{VM: v.name, Processor: name})

	v.processorsMutex.Lock()
	if _, exist := v.processors[name]; exist {
		v.processorsMutex.Unlock()
		return gen.ErrProcessorExist
	}
	v.processors[name] = newProcessor(name, scheduler, l)
	v.processorsMutex.Unlock()

	v.events.Push(migrationEvent{kind: migrationEventProcessorAdded, processor: name})
	l.Debug("added")
	return nil
}

// DeleteProcessor removes a processor. Its d-processes become detached.
func (v *VM) DeleteProcessor(name gen.ProcessorName) error {
	v.migrationMutex.Lock()
	defer v.migrationMutex.Unlock()

	v.processorsMutex.Lock()
	processor, found := v.processors[name]
	if found == false {
		v.processorsMutex.Unlock()
		return gen.ErrProcessorUnknown
	}
	delete(v.processors, name)
	v.processorsMutex.Unlock()

	attached := gen.Attached(name)
	v.processesMutex.RLock()
	var detach []*DProcess
	for _, p := range v.processes {
		if p.Attachment() == attached {
			detach = append(detach, p)
		}
	}
	v.processesMutex.RUnlock()

	for _, p := range detach {
		processor.scheduler.Detach(p.id)
		p.setAttachment(gen.Detached)
	}

	v.events.Push(migrationEvent{kind: migrationEventProcessorDeleted, processor: name})
	processor.log.Debug("deleted, %d d-processes detached", len(detach))
	return nil
}

// Processor returns the processor name or nil.
func (v *VM) Processor(name gen.ProcessorName) *Processor {
	return v.processor(name)
}

// ProcessorNames returns the names of all processors, sorted.
func (v *VM) ProcessorNames() []gen.ProcessorName {
	v.processorsMutex.RLock()
	names := make([]gen.ProcessorName, 0, len(v.processors))
	for name := range v.processors {
		names = append(names, name)
	}
	v.processorsMutex.RUnlock()
	return sortedProcessorNames(names)
}

func (v *VM) processor(name gen.ProcessorName) *Processor {
	v.processorsMutex.RLock()
	defer v.processorsMutex.RUnlock()
	return v.processors[name]
}

//
// ticking
//

// Reduce runs one scheduling tick: due timers fire, then duration is divided
// evenly across the processors (in name order) and each scheduler reduces its
// d-processes for its share. It never fails.
func (v *VM) Reduce(duration time.Duration) {
	h := v.Handle()

	now := time.Now()
	v.processesMutex.RLock()
	processes := make([]*DProcess, 0, len(v.processes))
	for _, p := range v.processes {
		processes = append(processes, p)
	}
	v.processesMutex.RUnlock()
	for _, p := range processes {
		p.fireTimers(h, now)
	}

	names := v.ProcessorNames()
	if len(names) == 0 {
		return
	}
	share := duration / time.Duration(len(names))
	for _, name := range names {
		processor := v.processor(name)
		if processor == nil {
			// deleted in the meantime
			continue
		}
		processor.reduce(h, share)
	}
}

// Run ticks the VM until ctx is done. Every tick is a Reduce for tick followed
// by a migration pass. Flushed outputs are passed to Options.OnOutputs if set.
func (v *VM) Run(ctx context.Context, tick time.Duration) error {
	if tick <= 0 {
		return gen.ErrIncorrect
	}

	timer := lib.TakeTimer()
	defer lib.ReleaseTimer(timer)

	v.log.Info("running, tick %s", tick)
	for {
		start := time.Now()
		v.Reduce(tick)
		v.RunMigrationLogic()
		if v.onOutputs != nil {
			if outputs := v.FlushOutputs(); len(outputs) > 0 {
				v.onOutputs(outputs)
			}
		}

		wait := tick - time.Since(start)
		if wait <= 0 {
			select {
			case <-ctx.Done():
				v.log.Info("stopped: %s", ctx.Err())
				return nil
			default:
				continue
			}
		}

		timer.Reset(wait)
		select {
		case <-ctx.Done():
			v.log.Info("stopped: %s", ctx.Err())
			return nil
		case <-timer.C:
		}
	}
}

//
// outputs
//

// FlushOutputs drains the events reported since the previous flush, oldest
// first.
func (v *VM) FlushOutputs() gen.VMOutputs {
	v.outputsMutex.Lock()
	defer v.outputsMutex.Unlock()
	return gen.VMOutputs(v.outputs.Drain())
}

func (v *VM) output(o gen.VMOutput) {
	v.outputs.Push(o)
}

// statusUpdated is called by DProcess.updateStatus once a status change is
// committed and propagated. It takes no locks.
func (v *VM) statusUpdated(id gen.DProcessID, old, status gen.DProcessStatus) {
	v.outputs.Push(gen.VMOutputStatusChanged{DProcessID: id, Status: status})
	if exit, ok := status.(gen.ExitStatus); ok && old.IsTerminal() == false {
		v.outputs.Push(gen.VMOutputProcessExited{DProcessID: id, ExitStatus: exit})
	}
	v.events.Push(migrationEvent{kind: migrationEventStatus, id: id, status: status})
}

//
// info
//

// Info
func (v *VM) Info() Info {
	info := Info{
		Name:        v.name,
		Version:     v.version,
		Uptime:      time.Since(v.created),
		PendingOuts: v.outputs.Len(),
		Names:       v.names.len(),
	}

	v.processesMutex.RLock()
	info.DProcesses = len(v.processes)
	for _, p := range v.processes {
		status := p.Status()
		switch {
		case status.IsTerminal():
			info.Terminated++
		case gen.IsRunning(status):
			info.Running++
		}
	}
	v.processesMutex.RUnlock()

	v.processorsMutex.RLock()
	info.Processors = len(v.processors)
	v.processorsMutex.RUnlock()

	info.UserTime, info.SystemTime = osdep.ResourceUsage()
	info.MaxRSS = osdep.MaxRSS()
	return info
}

//
// logging
//

// LoggerAdd adds a logger. With filter given only the listed levels are
// delivered to it.
func (v *VM) LoggerAdd(name string, behavior gen.LoggerBehavior, filter ...gen.LogLevel) error {
	if name == "" || behavior == nil {
		return gen.ErrIncorrect
	}
	l := vmLogger{behavior: behavior}
	if len(filter) > 0 {
		l.levels = make(map[gen.LogLevel]bool)
		for _, level := range filter {
			l.levels[level] = true
		}
	}

	v.loggersMutex.Lock()
	defer v.loggersMutex.Unlock()
	if _, exist := v.loggers[name]; exist {
		return gen.ErrTaken
	}
	v.loggers[name] = l
	return nil
}

// LoggerDelete removes and terminates a logger.
func (v *VM) LoggerDelete(name string) {
	v.loggersMutex.Lock()
	l, found := v.loggers[name]
	delete(v.loggers, name)
	v.loggersMutex.Unlock()
	if found {
		l.behavior.Terminate()
	}
}

// Loggers returns the names of the loggers, sorted.
func (v *VM) Loggers() []string {
	v.loggersMutex.RLock()
	defer v.loggersMutex.RUnlock()
	names := make([]string, 0, len(v.loggers))
	for name := range v.loggers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (v *VM) dolog(m gen.MessageLog, name string) {
	v.loggersMutex.RLock()
	defer v.loggersMutex.RUnlock()

	if name != "" {
		if l, found := v.loggers[name]; found {
			l.log(m)
			return
		}
	}
	for _, l := range v.loggers {
		l.log(m)
	}
}

func (l vmLogger) log(m gen.MessageLog) {
	if l.levels != nil && l.levels[m.Level] == false {
		return
	}
	l.behavior.Log(m)
}

// Stop terminates the loggers and turns lock order detection off if it was
// enabled. The VM must not be used afterwards.
func (v *VM) Stop() {
	v.log.Info("stopped")
	if v.lockOrder {
		disableLockOrderDetection()
	}

	v.loggersMutex.Lock()
	loggers := v.loggers
	v.loggers = make(map[string]vmLogger)
	v.loggersMutex.Unlock()
	for _, l := range loggers {
		l.behavior.Terminate()
	}
}
