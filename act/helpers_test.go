package act

import (
	"sync"
	"testing"
	"time"

	"ergo.services/dvm/gen"
	"ergo.services/dvm/logger"
	"ergo.services/dvm/vm"
)

// scriptInterpreter returns the scripted outputs one per Reduce and keeps
// running once they are used up.
type scriptInterpreter struct {
	sync.Mutex
	outputs []gen.InterpreterOutput
	budgets []time.Duration
}

func (i *scriptInterpreter) Reduce(target time.Duration) (gen.InterpreterOutput, error) {
	i.Lock()
	defer i.Unlock()
	i.budgets = append(i.budgets, target)
	if len(i.outputs) == 0 {
		return gen.OutputRunning{}, nil
	}
	o := i.outputs[0]
	i.outputs = i.outputs[1:]
	return o, nil
}

func (i *scriptInterpreter) EffectOutput(value gen.Value) {}

func (i *scriptInterpreter) Budgets() []time.Duration {
	i.Lock()
	defer i.Unlock()
	return append([]time.Duration(nil), i.budgets...)
}

func newTestVM(t *testing.T, logic vm.MigrationLogic) *vm.VM {
	t.Helper()
	v := vm.New(vm.Options{
		Name:           t.Name(),
		MigrationLogic: logic,
		Log: vm.LogOptions{
			Level:         gen.LogLevelDisabled,
			DefaultLogger: logger.ConsoleOptions{Disable: true},
		},
	})
	t.Cleanup(v.Stop)
	return v
}

func spawnScript(t *testing.T, v *vm.VM, handlers gen.EffectHandlers, outputs ...gen.InterpreterOutput) (*vm.DProcess, *scriptInterpreter) {
	t.Helper()
	i := &scriptInterpreter{outputs: outputs}
	id, err := v.Spawn(gen.DProcessManifest{
		Builder:        gen.InterpreterBuilderFunc(func() gen.Interpreter { return i }),
		EffectHandlers: handlers,
	})
	if err != nil {
		t.Fatalf("spawn: %s", err)
	}
	return v.DProcess(id), i
}

func attachments(t *testing.T, v *vm.VM) map[gen.ProcessorName]int {
	t.Helper()
	h := v.Handle()
	load := make(map[gen.ProcessorName]int)
	for _, id := range h.DProcesses() {
		a, err := h.Attachment(id)
		if err != nil {
			t.Fatal(err)
		}
		if a.Attached {
			load[a.Processor]++
		}
	}
	return load
}
