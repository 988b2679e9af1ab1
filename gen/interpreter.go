package gen

import (
	"fmt"
	"time"
)

// Interpreter is the computation wrapped by a d-process. The VM knows nothing
// about the language being interpreted: it only drives Reduce and feeds effect
// results back.
type Interpreter interface {
	// Reduce runs the interpreter for at most target. It must return before the
	// budget is spent. An error crashes the d-process.
	Reduce(target time.Duration) (InterpreterOutput, error)

	// EffectOutput hands over the result of the last performed effect. It must
	// do nothing else: the next Reduce continues the computation.
	EffectOutput(value Value)
}

// InterpreterBuilder builds a fresh interpreter. It is used at spawn time and
// when a d-process is reset.
type InterpreterBuilder interface {
	Build() Interpreter
}

// InterpreterBuilderFunc adapts a function to InterpreterBuilder.
type InterpreterBuilderFunc func() Interpreter

func (f InterpreterBuilderFunc) Build() Interpreter {
	return f()
}

// InterpreterOutput is the result of Interpreter.Reduce.
type InterpreterOutput interface {
	isInterpreterOutput()
}

// OutputReturned means the computation finished with Value.
type OutputReturned struct {
	Value Value
}

// OutputPerformed means the computation performed Effect with Input and waits
// for EffectOutput.
type OutputPerformed struct {
	Input  Value
	Effect Effect
}

// OutputRunning means the budget was used up and the computation continues on
// the next Reduce.
type OutputRunning struct{}

func (OutputReturned) isInterpreterOutput()  {}
func (OutputPerformed) isInterpreterOutput() {}
func (OutputRunning) isInterpreterOutput()   {}

//
// scheduling hints
//

// HintKind
type HintKind int

const (
	// HintNotSupported means the interpreter does not implement the hint.
	HintNotSupported HintKind = 0
	// HintImpossibleOrTimeConsuming means the interpreter can not answer cheaply.
	HintImpossibleOrTimeConsuming HintKind = 1
	// HintProvided means Value holds the answer.
	HintProvided HintKind = 2
)

func (k HintKind) String() string {
	switch k {
	case HintNotSupported:
		return "not supported"
	case HintImpossibleOrTimeConsuming:
		return "impossible or time consuming"
	case HintProvided:
		return "provided"
	}
	return fmt.Sprintf("hint#%d", int(k))
}

// SchedulingHint is a three-state answer an interpreter may give about its own
// behavior. The zero value is "not supported".
type SchedulingHint[T any] struct {
	Kind  HintKind
	Value T
}

// Provided
func Provided[T any](value T) SchedulingHint[T] {
	return SchedulingHint[T]{Kind: HintProvided, Value: value}
}

// ImpossibleOrTimeConsuming
func ImpossibleOrTimeConsuming[T any]() SchedulingHint[T] {
	return SchedulingHint[T]{Kind: HintImpossibleOrTimeConsuming}
}

// Get returns the value and true if the hint was provided.
func (h SchedulingHint[T]) Get() (T, bool) {
	return h.Value, h.Kind == HintProvided
}

// ProcessingKind describes what an interpreter spends its time on.
type ProcessingKind int

const (
	ProcessingKindCompute ProcessingKind = 0
	ProcessingKindIO      ProcessingKind = 1
	ProcessingKindIdle    ProcessingKind = 2
)

func (k ProcessingKind) String() string {
	switch k {
	case ProcessingKindCompute:
		return "compute"
	case ProcessingKindIO:
		return "io"
	case ProcessingKindIdle:
		return "idle"
	}
	return fmt.Sprintf("kind#%d", int(k))
}

// EffectEstimate is a guess about the next effect an interpreter performs.
type EffectEstimate struct {
	Effect Effect
	After  time.Duration
}

// InterpreterHints is implemented by interpreters that can answer questions
// about their future behavior. Interpreters are not required to implement it,
// use the package level helpers to query any interpreter.
type InterpreterHints interface {
	CurrentProcessingKind() SchedulingHint[ProcessingKind]
	EstimatedCurrentProcessingKind() SchedulingHint[ProcessingKind]
	EstimateNextEffect() SchedulingHint[EffectEstimate]
	EstimateFinish() SchedulingHint[time.Duration]
	PossibleEffects() SchedulingHint[[]Effect]
}

// CurrentProcessingKind
func CurrentProcessingKind(i Interpreter) SchedulingHint[ProcessingKind] {
	if h, ok := i.(InterpreterHints); ok {
		return h.CurrentProcessingKind()
	}
	return SchedulingHint[ProcessingKind]{}
}

// EstimatedCurrentProcessingKind
func EstimatedCurrentProcessingKind(i Interpreter) SchedulingHint[ProcessingKind] {
	if h, ok := i.(InterpreterHints); ok {
		return h.EstimatedCurrentProcessingKind()
	}
	return SchedulingHint[ProcessingKind]{}
}

// EstimateNextEffect
func EstimateNextEffect(i Interpreter) SchedulingHint[EffectEstimate] {
	if h, ok := i.(InterpreterHints); ok {
		return h.EstimateNextEffect()
	}
	return SchedulingHint[EffectEstimate]{}
}

// EstimateFinish
func EstimateFinish(i Interpreter) SchedulingHint[time.Duration] {
	if h, ok := i.(InterpreterHints); ok {
		return h.EstimateFinish()
	}
	return SchedulingHint[time.Duration]{}
}

// PossibleEffects
func PossibleEffects(i Interpreter) SchedulingHint[[]Effect] {
	if h, ok := i.(InterpreterHints); ok {
		return h.PossibleEffects()
	}
	return SchedulingHint[[]Effect]{}
}
