package script

import (
	"fmt"
	"sync/atomic"
	"time"

	"ergo.services/dvm/gen"

	"go.starlark.net/starlark"
)

type interpreter struct {
	thread  *starlark.Thread
	step    starlark.Callable
	state   starlark.Value
	resumed starlark.Value

	awaiting bool
	done     bool
	err      error

	effects []gen.Effect
	options Options
}

var (
	_ gen.Interpreter      = (*interpreter)(nil)
	_ gen.InterpreterHints = (*interpreter)(nil)
)

// Reduce calls step until it performs an effect, returns, or the time slice
// is over. A step call still running at the end of the slice is cancelled and
// the interpreter fails with ErrBudgetExceed.
func (i *interpreter) Reduce(target time.Duration) (gen.InterpreterOutput, error) {
	if i.err != nil {
		return nil, i.err
	}
	if i.done {
		return nil, fmt.Errorf("%w: script has returned already", gen.ErrNotAllowed)
	}
	if i.awaiting {
		return nil, fmt.Errorf("%w: effect output is awaited", gen.ErrNotAllowed)
	}

	slice := target
	if i.options.MinSlice > 0 {
		slice = max(target, i.options.MinSlice)
	}
	deadline := time.Now().Add(slice)

	var exceeded atomic.Bool
	i.thread.Uncancel()
	timer := time.AfterFunc(slice, func() {
		exceeded.Store(true)
		i.thread.Cancel("reduce budget exceeded")
	})
	defer timer.Stop()

	for {
		if i.options.MaxSteps > 0 {
			i.thread.SetMaxExecutionSteps(i.thread.ExecutionSteps() + i.options.MaxSteps)
		}
		result, err := starlark.Call(i.thread, i.step, starlark.Tuple{i.state, i.resumed}, nil)
		i.resumed = starlark.None
		if err != nil {
			if exceeded.Load() {
				err = fmt.Errorf("%w: %s", gen.ErrBudgetExceed, err)
			}
			i.err = err
			return nil, err
		}

		a, ok := result.(*action)
		if ok == false {
			i.err = fmt.Errorf("%w: step returned %s, expected returned(), perform() or running()",
				gen.ErrIncorrect, result.Type())
			return nil, i.err
		}

		switch a.kind {
		case actionReturn:
			i.done = true
			return gen.OutputReturned{Value: a.value}, nil
		case actionPerform:
			i.state = a.state
			i.awaiting = true
			return gen.OutputPerformed{Effect: a.effect, Input: a.value}, nil
		}

		i.state = a.state
		if time.Now().After(deadline) {
			return gen.OutputRunning{}, nil
		}
	}
}

func (i *interpreter) EffectOutput(value gen.Value) {
	i.awaiting = false
	resumed, err := toStarlark(value)
	if err != nil {
		i.err = err
		return
	}
	i.resumed = resumed
}

func (i *interpreter) processingKind() gen.SchedulingHint[gen.ProcessingKind] {
	switch {
	case i.err != nil, i.done:
		return gen.Provided(gen.ProcessingKindIdle)
	case i.awaiting:
		return gen.Provided(gen.ProcessingKindIO)
	}
	return gen.Provided(gen.ProcessingKindCompute)
}

func (i *interpreter) CurrentProcessingKind() gen.SchedulingHint[gen.ProcessingKind] {
	return i.processingKind()
}

func (i *interpreter) EstimatedCurrentProcessingKind() gen.SchedulingHint[gen.ProcessingKind] {
	return i.processingKind()
}

func (i *interpreter) EstimateNextEffect() gen.SchedulingHint[gen.EffectEstimate] {
	return gen.ImpossibleOrTimeConsuming[gen.EffectEstimate]()
}

func (i *interpreter) EstimateFinish() gen.SchedulingHint[time.Duration] {
	return gen.ImpossibleOrTimeConsuming[time.Duration]()
}

func (i *interpreter) PossibleEffects() gen.SchedulingHint[[]gen.Effect] {
	if i.effects == nil {
		return gen.SchedulingHint[[]gen.Effect]{}
	}
	return gen.Provided(append([]gen.Effect(nil), i.effects...))
}
