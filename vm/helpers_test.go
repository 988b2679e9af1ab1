package vm

import (
	"sync"
	"testing"
	"time"

	"ergo.services/dvm/gen"
	"ergo.services/dvm/logger"
)

var (
	tInt    = gen.TypeInteger
	tString = gen.TypeString
	tUnit   = gen.TypeUnit
)

// step produces the next interpreter output. received holds every value
// handed over with EffectOutput so far.
type step func(received []gen.Value) (gen.InterpreterOutput, error)

func ret(v gen.Value) step {
	return func([]gen.Value) (gen.InterpreterOutput, error) {
		return gen.OutputReturned{Value: v}, nil
	}
}

func retLast() step {
	return func(received []gen.Value) (gen.InterpreterOutput, error) {
		if len(received) == 0 {
			return gen.OutputReturned{Value: gen.Unit}, nil
		}
		return gen.OutputReturned{Value: received[len(received)-1]}, nil
	}
}

func perform(effect gen.Effect, input gen.Value) step {
	return func([]gen.Value) (gen.InterpreterOutput, error) {
		return gen.OutputPerformed{Effect: effect, Input: input}, nil
	}
}

func fail(err error) step {
	return func([]gen.Value) (gen.InterpreterOutput, error) {
		return nil, err
	}
}

func boom(v any) step {
	return func([]gen.Value) (gen.InterpreterOutput, error) {
		panic(v)
	}
}

type testInterpreter struct {
	sync.Mutex
	steps      []step
	received   []gen.Value
	reductions int
	budgets    []time.Duration
}

func (i *testInterpreter) Reduce(target time.Duration) (gen.InterpreterOutput, error) {
	i.Lock()
	i.reductions++
	i.budgets = append(i.budgets, target)
	if len(i.steps) == 0 {
		i.Unlock()
		return gen.OutputRunning{}, nil
	}
	s := i.steps[0]
	i.steps = i.steps[1:]
	received := append([]gen.Value(nil), i.received...)
	i.Unlock()
	return s(received)
}

func (i *testInterpreter) EffectOutput(value gen.Value) {
	i.Lock()
	i.received = append(i.received, value)
	i.Unlock()
}

func (i *testInterpreter) Received() []gen.Value {
	i.Lock()
	defer i.Unlock()
	return append([]gen.Value(nil), i.received...)
}

func (i *testInterpreter) Reductions() int {
	i.Lock()
	defer i.Unlock()
	return i.reductions
}

// testBuilder builds a fresh testInterpreter with the same steps every time
// and remembers the last one built.
type testBuilder struct {
	sync.Mutex
	steps []step
	last  *testInterpreter
	built int
}

func (b *testBuilder) Build() gen.Interpreter {
	b.Lock()
	defer b.Unlock()
	b.last = &testInterpreter{steps: append([]step(nil), b.steps...)}
	b.built++
	return b.last
}

func (b *testBuilder) interpreter() *testInterpreter {
	b.Lock()
	defer b.Unlock()
	return b.last
}

func newTestVM(t *testing.T, options ...func(*Options)) *VM {
	t.Helper()
	o := Options{
		Name: t.Name(),
		Log: LogOptions{
			Level:         gen.LogLevelDisabled,
			DefaultLogger: logger.ConsoleOptions{Disable: true},
		},
	}
	for _, f := range options {
		f(&o)
	}
	v := New(o)
	t.Cleanup(v.Stop)
	return v
}

func spawn(t *testing.T, v *VM, handlers gen.EffectHandlers, steps ...step) (*DProcess, *testBuilder) {
	t.Helper()
	b := &testBuilder{steps: steps}
	id, err := v.Spawn(gen.DProcessManifest{
		Builder:        b,
		EffectHandlers: handlers,
	})
	if err != nil {
		t.Fatalf("spawn: %s", err)
	}
	p := v.DProcess(id)
	if p == nil {
		t.Fatal("spawned d-process is unknown")
	}
	return p, b
}

func expectStatus(t *testing.T, p *DProcess, expected gen.DProcessStatus) {
	t.Helper()
	if status := p.Status(); gen.StatusEqual(status, expected) == false {
		t.Fatalf("expected status %q, got %q", expected, status)
	}
}

func downMessages(t *testing.T, p *DProcess) []gen.DownMessage {
	t.Helper()
	var downs []gen.DownMessage
	for _, v := range p.Mailbox()[gen.TypeDown] {
		d, err := gen.ParseDownMessage(v)
		if err != nil {
			t.Fatalf("malformed down message: %s", err)
		}
		downs = append(downs, d)
	}
	return downs
}

// testScheduler reduces every attached d-process with an even share and
// records Attach/Detach calls.
type testScheduler struct {
	sync.Mutex
	name     string
	attached map[gen.DProcessID]*DProcess
	journal  *[]string
	budgets  []time.Duration
}

func newTestScheduler(name string, journal *[]string) *testScheduler {
	return &testScheduler{
		name:     name,
		attached: make(map[gen.DProcessID]*DProcess),
		journal:  journal,
	}
}

func (s *testScheduler) Reduce(h Handle, processor gen.ProcessorName, target time.Duration) {
	s.Lock()
	s.budgets = append(s.budgets, target)
	if s.journal != nil {
		*s.journal = append(*s.journal, "reduce "+s.name)
	}
	var ps []*DProcess
	for _, p := range s.attached {
		ps = append(ps, p)
	}
	s.Unlock()

	if len(ps) == 0 {
		return
	}
	share := target / time.Duration(len(ps))
	for _, p := range ps {
		p.Reduce(h, share)
	}
}

func (s *testScheduler) Attach(p *DProcess) {
	s.Lock()
	defer s.Unlock()
	s.attached[p.ID()] = p
	if s.journal != nil {
		*s.journal = append(*s.journal, "attach "+s.name)
	}
}

func (s *testScheduler) Detach(id gen.DProcessID) {
	s.Lock()
	defer s.Unlock()
	delete(s.attached, id)
	if s.journal != nil {
		*s.journal = append(*s.journal, "detach "+s.name)
	}
}

func (s *testScheduler) has(id gen.DProcessID) bool {
	s.Lock()
	defer s.Unlock()
	_, found := s.attached[id]
	return found
}

// suggestLogic returns whatever suggestions it was given, once.
type suggestLogic struct {
	MigrationLogicBase
	sync.Mutex
	next   []MigrationSuggestion
	events []string
}

func (l *suggestLogic) SuggestMigration(h Handle) []MigrationSuggestion {
	l.Lock()
	defer l.Unlock()
	s := l.next
	l.next = nil
	return s
}

func (l *suggestLogic) suggest(s ...MigrationSuggestion) {
	l.Lock()
	l.next = append(l.next, s...)
	l.Unlock()
}

func (l *suggestLogic) DProcessSpawned(h Handle, id gen.DProcessID) {
	l.events = append(l.events, "spawned")
}

func (l *suggestLogic) DProcessDeleted(h Handle, id gen.DProcessID) {
	l.events = append(l.events, "deleted")
}

func (l *suggestLogic) ProcessorAdded(h Handle, name gen.ProcessorName) {
	l.events = append(l.events, "added "+string(name))
}

func (l *suggestLogic) ProcessorDeleted(h Handle, name gen.ProcessorName) {
	l.events = append(l.events, "deleted "+string(name))
}
