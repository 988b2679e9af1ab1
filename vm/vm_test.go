package vm

import (
	"context"
	"math/rand"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ergo.services/dvm/gen"
)

func TestVMSpawnIncorrect(t *testing.T) {
	v := newTestVM(t)
	if _, err := v.Spawn(gen.DProcessManifest{}); err == nil {
		t.Fatal("spawned with no builder")
	}
}

func TestVMDeleteDProcess(t *testing.T) {
	v := newTestVM(t)
	h := v.Handle()

	p, _ := spawn(t, v, nil)
	w, _ := spawn(t, v, nil)
	l, _ := spawn(t, v, nil)
	h.Monitor(w.ID(), p.ID())
	h.Link(p.ID(), l.ID())
	h.Register("victim", p.ID())
	h.Subscribe(tString, p.ID())

	if err := v.DeleteDProcess(p.ID()); err != nil {
		t.Fatal(err)
	}
	if v.DProcess(p.ID()) != nil {
		t.Fatal("deleted d-process is still registered")
	}
	if err := v.DeleteDProcess(p.ID()); err != gen.ErrDProcessUnknown {
		t.Fatalf("expected ErrDProcessUnknown, got %v", err)
	}

	downs := downMessages(t, w)
	if len(downs) != 1 {
		t.Fatalf("expected one down message, got %d", len(downs))
	}
	halted, ok := downs[0].Exit.(gen.StatusHalted)
	if ok == false || halted.Type != gen.TypeHaltDeleted {
		t.Fatalf("unexpected exit %s", downs[0].Exit)
	}
	if _, ok := l.Status().(gen.StatusHaltedByLink); ok == false {
		t.Fatalf("linked d-process is not halted: %s", l.Status())
	}
	if len(l.Links()) != 0 {
		t.Fatal("link to the deleted d-process is kept")
	}
	if _, found := h.Whereis("victim"); found {
		t.Fatal("name of the deleted d-process is kept")
	}
	if n := h.Publish(tString, gen.ValueString("x")); n != 0 {
		t.Fatal("subscription of the deleted d-process is kept")
	}
}

func TestVMRegistrar(t *testing.T) {
	v := newTestVM(t)
	h := v.Handle()

	a, _ := spawn(t, v, nil)
	b, _ := spawn(t, v, nil)

	if err := h.Register("a", a.ID()); err != nil {
		t.Fatal(err)
	}
	if err := h.Register("a", b.ID()); err != gen.ErrTaken {
		t.Fatalf("expected ErrTaken, got %v", err)
	}
	if err := h.Register("b", a.ID()); err != gen.ErrTaken {
		t.Fatalf("second name: expected ErrTaken, got %v", err)
	}
	if name, _ := h.NameOf(a.ID()); name != "a" {
		t.Fatalf("expected name a, got %q", name)
	}
	if err := h.Register("x", gen.NewDProcessID()); err != gen.ErrDProcessUnknown {
		t.Fatalf("expected ErrDProcessUnknown, got %v", err)
	}
	id, found := h.Whereis("a")
	if found == false || id != a.ID() {
		t.Fatal("whereis failed")
	}
	if err := h.SendName("a", tInt, gen.ValueInteger(1)); err != nil {
		t.Fatal(err)
	}
	if a.MailboxLen() != 1 {
		t.Fatal("message sent by name is not delivered")
	}
	if err := h.Unregister("a"); err != nil {
		t.Fatal(err)
	}
	if err := h.Unregister("a"); err != gen.ErrNameUnknown {
		t.Fatalf("expected ErrNameUnknown, got %v", err)
	}
	if err := h.SendName("a", tInt, gen.ValueInteger(1)); err != gen.ErrNameUnknown {
		t.Fatalf("expected ErrNameUnknown, got %v", err)
	}
}

func TestVMRegisterWhileDeleting(t *testing.T) {
	v := newTestVM(t)
	h := v.Handle()

	for i := 0; i < 300; i++ {
		id, err := v.Spawn(gen.DProcessManifest{Builder: &testBuilder{}})
		if err != nil {
			t.Fatal(err)
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.Register("r", id)
			h.Subscribe(tString, id)
		}()
		go func() {
			defer wg.Done()
			v.DeleteDProcess(id)
		}()
		wg.Wait()

		if n := v.names.len(); n != 0 {
			t.Fatalf("round %d: name of the deleted d-process is kept", i)
		}
		if subscribers := v.pubsub.subscribers(tString); len(subscribers) != 0 {
			t.Fatalf("round %d: subscription of the deleted d-process is kept", i)
		}
	}
}

func TestVMProcessors(t *testing.T) {
	v := newTestVM(t)

	if err := v.AddProcessor("p1", newTestScheduler("p1", nil)); err != nil {
		t.Fatal(err)
	}
	if err := v.AddProcessor("p1", newTestScheduler("p1", nil)); err != gen.ErrProcessorExist {
		t.Fatalf("expected ErrProcessorExist, got %v", err)
	}
	if err := v.AddProcessor("", newTestScheduler("", nil)); err != gen.ErrIncorrect {
		t.Fatalf("expected ErrIncorrect, got %v", err)
	}
	v.AddProcessor("p0", newTestScheduler("p0", nil))

	names := v.ProcessorNames()
	if slices.Equal(names, []gen.ProcessorName{"p0", "p1"}) == false {
		t.Fatalf("unexpected processors %v", names)
	}
	if err := v.DeleteProcessor("p2"); err != gen.ErrProcessorUnknown {
		t.Fatalf("expected ErrProcessorUnknown, got %v", err)
	}
}

func TestVMReduceDividesBudget(t *testing.T) {
	var journal []string
	v := newTestVM(t)

	s1 := newTestScheduler("b", &journal)
	s2 := newTestScheduler("a", &journal)
	v.AddProcessor("b", s1)
	v.AddProcessor("a", s2)

	v.Reduce(10 * time.Millisecond)

	if slices.Equal(journal, []string{"reduce a", "reduce b"}) == false {
		t.Fatalf("processors reduced out of order: %v", journal)
	}
	for _, s := range []*testScheduler{s1, s2} {
		if len(s.budgets) != 1 || s.budgets[0] != 5*time.Millisecond {
			t.Fatalf("unexpected budgets %v", s.budgets)
		}
	}
	if m := v.Processor("a").Metadata(); m.Ticks != 1 || m.LastBudget != 5*time.Millisecond {
		t.Fatalf("unexpected processor metadata %+v", m)
	}
}

type panicScheduler struct {
	*testScheduler
}

func (s *panicScheduler) Reduce(h Handle, processor gen.ProcessorName, target time.Duration) {
	panic("scheduler bug")
}

func TestVMReduceSchedulerPanic(t *testing.T) {
	v := newTestVM(t)
	v.AddProcessor("broken", &panicScheduler{newTestScheduler("broken", nil)})
	v.Reduce(time.Millisecond)
	if v.Processor("broken").Metadata().Failures != 1 {
		t.Fatal("scheduler failure is not counted")
	}
}

func TestVMMigrationApply(t *testing.T) {
	var journal []string
	logic := &suggestLogic{}
	v := newTestVM(t, func(o *Options) { o.MigrationLogic = logic })

	s1 := newTestScheduler("p1", &journal)
	s2 := newTestScheduler("p2", &journal)
	v.AddProcessor("p1", s1)
	v.AddProcessor("p2", s2)
	p, _ := spawn(t, v, nil, ret(gen.ValueInteger(42)))

	logic.suggest(MigrationSuggestion{DProcessID: p.ID(), Target: gen.Attached("p1")})
	v.RunMigrationLogic()

	if slices.Equal(logic.events, []string{"added p1", "added p2", "spawned"}) == false {
		t.Fatalf("unexpected events %v", logic.events)
	}
	if p.Attachment() != gen.Attached("p1") || s1.has(p.ID()) == false {
		t.Fatal("d-process is not attached to p1")
	}

	journal = nil
	logic.suggest(MigrationSuggestion{DProcessID: p.ID(), Target: gen.Attached("p2")})
	v.RunMigrationLogic()
	if slices.Equal(journal, []string{"detach p1", "attach p2"}) == false {
		t.Fatalf("unexpected migration order %v", journal)
	}
	if p.Attachment() != gen.Attached("p2") || s1.has(p.ID()) || s2.has(p.ID()) == false {
		t.Fatal("d-process is not moved to p2")
	}

	// stale suggestions are ignored
	logic.suggest(
		MigrationSuggestion{DProcessID: gen.NewDProcessID(), Target: gen.Attached("p1")},
		MigrationSuggestion{DProcessID: p.ID(), Target: gen.Attached("p3")},
	)
	v.RunMigrationLogic()
	if p.Attachment() != gen.Attached("p2") {
		t.Fatal("stale suggestion was applied")
	}

	v.Reduce(time.Millisecond)
	expectStatus(t, p, gen.StatusReturned{Value: gen.ValueInteger(42)})

	// deleting the processor detaches its d-processes
	if err := v.DeleteProcessor("p2"); err != nil {
		t.Fatal(err)
	}
	if p.Attachment().Attached || s2.has(p.ID()) {
		t.Fatal("d-process is still attached to a deleted processor")
	}
}

// randomLogic suggests random attachments for ids it saw, deleted or not.
type randomLogic struct {
	MigrationLogicBase
	rnd     *rand.Rand
	ids     []gen.DProcessID
	names   []gen.ProcessorName
	updates atomic.Int64
}

func (l *randomLogic) DProcessSpawned(h Handle, id gen.DProcessID) {
	l.ids = append(l.ids, id)
}

func (l *randomLogic) ProcessorAdded(h Handle, name gen.ProcessorName) {
	l.names = append(l.names, name)
}

func (l *randomLogic) StatusUpdated(h Handle, id gen.DProcessID, status gen.DProcessStatus) {
	l.updates.Add(1)
}

func (l *randomLogic) SuggestMigration(h Handle) []MigrationSuggestion {
	var suggestions []MigrationSuggestion
	for _, id := range l.ids {
		target := gen.Detached
		if len(l.names) > 0 && l.rnd.Intn(4) > 0 {
			target = gen.Attached(l.names[l.rnd.Intn(len(l.names))])
		}
		suggestions = append(suggestions, MigrationSuggestion{DProcessID: id, Target: target})
	}
	return suggestions
}

func TestVMMigrationConcurrent(t *testing.T) {
	logic := &randomLogic{rnd: rand.New(rand.NewSource(1))}
	v := newTestVM(t, func(o *Options) { o.MigrationLogic = logic })

	names := []gen.ProcessorName{"p0", "p1", "p2", "p3"}
	schedulers := make(map[gen.ProcessorName]*testScheduler)
	var schedulersMutex sync.Mutex

	stop := make(chan struct{})
	var wg sync.WaitGroup

	// processes come and go
	wg.Add(1)
	go func() {
		defer wg.Done()
		rnd := rand.New(rand.NewSource(2))
		var ids []gen.DProcessID
		for i := 0; i < 300; i++ {
			id, err := v.Spawn(gen.DProcessManifest{Builder: &testBuilder{}})
			if err != nil {
				t.Error(err)
				return
			}
			ids = append(ids, id)
			if rnd.Intn(2) == 0 {
				k := rnd.Intn(len(ids))
				v.DeleteDProcess(ids[k])
				ids = append(ids[:k], ids[k+1:]...)
			}
		}
	}()

	// processors come and go
	wg.Add(1)
	go func() {
		defer wg.Done()
		rnd := rand.New(rand.NewSource(3))
		for i := 0; i < 300; i++ {
			name := names[rnd.Intn(len(names))]
			if rnd.Intn(2) == 0 {
				s := newTestScheduler(string(name), nil)
				if v.AddProcessor(name, s) == nil {
					schedulersMutex.Lock()
					schedulers[name] = s
					schedulersMutex.Unlock()
				}
				continue
			}
			v.DeleteProcessor(name)
		}
	}()

	// ticks
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
			}
			v.Reduce(time.Microsecond)
			v.RunMigrationLogic()
		}
	}()

	wg.Wait()
	close(stop)
	<-done
	v.RunMigrationLogic()

	// every attached d-process is tracked by the scheduler of its processor
	for _, id := range v.DProcessIDs() {
		p := v.DProcess(id)
		a := p.Attachment()
		if a.Attached == false {
			continue
		}
		processor := v.Processor(a.Processor)
		if processor == nil {
			t.Fatalf("%s is attached to the deleted processor %s", id, a.Processor)
		}
		if processor.Scheduler().(*testScheduler).has(id) == false {
			t.Fatalf("%s is attached to %s but not tracked by its scheduler", id, a.Processor)
		}
		for name, s := range schedulers {
			if name != a.Processor && s.has(id) && v.Processor(name) != nil && v.Processor(name).Scheduler() == s {
				t.Fatalf("%s is tracked by two schedulers", id)
			}
		}
	}
}

func TestVMOutputs(t *testing.T) {
	v := newTestVM(t)
	h := v.Handle()

	p, _ := spawn(t, v, nil, ret(gen.Unit))
	p.Reduce(h, time.Millisecond)

	outputs := v.FlushOutputs()
	if len(outputs) != 2 {
		t.Fatalf("expected 2 outputs, got %v", outputs)
	}
	changed, ok := outputs[0].(gen.VMOutputStatusChanged)
	if ok == false || changed.DProcessID != p.ID() {
		t.Fatalf("unexpected first output %s", outputs[0])
	}
	if _, ok := outputs[1].(gen.VMOutputProcessExited); ok == false {
		t.Fatalf("unexpected second output %s", outputs[1])
	}
	if len(v.FlushOutputs()) != 0 {
		t.Fatal("outputs are not drained")
	}
}

func TestVMInfo(t *testing.T) {
	v := newTestVM(t, func(o *Options) { o.Version = gen.Version{Name: "test"} })
	h := v.Handle()

	p, _ := spawn(t, v, nil, ret(gen.Unit))
	spawn(t, v, nil)
	v.AddProcessor("p1", newTestScheduler("p1", nil))
	h.Register("p", p.ID())
	p.Reduce(h, time.Millisecond)

	info := v.Info()
	if info.DProcesses != 2 || info.Running != 1 || info.Terminated != 1 {
		t.Fatalf("unexpected counters %+v", info)
	}
	if info.Processors != 1 || info.Names != 1 || info.Version.Name != "test" {
		t.Fatalf("unexpected info %+v", info)
	}
}

func TestVMRun(t *testing.T) {
	var mutex sync.Mutex
	var outputs gen.VMOutputs

	v := newTestVM(t, func(o *Options) {
		o.MigrationLogic = &attachAllLogic{}
		o.OnOutputs = func(o gen.VMOutputs) {
			mutex.Lock()
			outputs = outputs.Merge(o)
			mutex.Unlock()
		}
	})
	v.AddProcessor("p1", newTestScheduler("p1", nil))
	p, _ := spawn(t, v, nil, ret(gen.ValueInteger(1)))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() {
		for {
			if p.Status().IsTerminal() {
				cancel()
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Millisecond):
			}
		}
	}()

	if err := v.Run(ctx, time.Millisecond); err != nil {
		t.Fatal(err)
	}
	expectStatus(t, p, gen.StatusReturned{Value: gen.ValueInteger(1)})

	// the last tick may have happened before the status was committed
	mutex.Lock()
	outputs = outputs.Merge(v.FlushOutputs())
	exited := outputs.Exited()
	mutex.Unlock()
	if len(exited) != 1 {
		t.Fatalf("expected one exit output, got %v", exited)
	}

	if err := v.Run(ctx, 0); err != gen.ErrIncorrect {
		t.Fatalf("expected ErrIncorrect, got %v", err)
	}
}

// attachAllLogic attaches every spawned d-process to the first processor.
type attachAllLogic struct {
	MigrationLogicBase
	pending []gen.DProcessID
}

func (l *attachAllLogic) DProcessSpawned(h Handle, id gen.DProcessID) {
	l.pending = append(l.pending, id)
}

func (l *attachAllLogic) SuggestMigration(h Handle) []MigrationSuggestion {
	processors := h.Processors()
	if len(processors) == 0 {
		return nil
	}
	var suggestions []MigrationSuggestion
	for _, id := range l.pending {
		suggestions = append(suggestions, MigrationSuggestion{DProcessID: id, Target: gen.Attached(processors[0])})
	}
	l.pending = nil
	return suggestions
}

func TestVMLoggers(t *testing.T) {
	v := newTestVM(t)
	l := &testLogger{}
	if err := v.LoggerAdd("test", l, gen.LogLevelWarning); err != nil {
		t.Fatal(err)
	}
	if err := v.LoggerAdd("test", l); err != gen.ErrTaken {
		t.Fatalf("expected ErrTaken, got %v", err)
	}
	v.Log().SetLevel(gen.LogLevelTrace)
	v.Log().Info("skipped")
	v.Log().Warning("delivered %d", 1)

	if n := l.count(); n != 1 {
		t.Fatalf("expected 1 message, got %d", n)
	}
	if slices.Equal(v.Loggers(), []string{"test"}) == false {
		t.Fatalf("unexpected loggers %v", v.Loggers())
	}
	v.LoggerDelete("test")
	if l.terminated == false {
		t.Fatal("logger is not terminated")
	}
}

type testLogger struct {
	sync.Mutex
	messages   []gen.MessageLog
	terminated bool
}

func (l *testLogger) Log(m gen.MessageLog) {
	l.Lock()
	l.messages = append(l.messages, m)
	l.Unlock()
}

func (l *testLogger) Terminate() {
	l.terminated = true
}

func (l *testLogger) count() int {
	l.Lock()
	defer l.Unlock()
	return len(l.messages)
}
