// Package script runs d-processes written in Starlark.
//
// A script defines step(state, resumed) and optionally init(). init returns
// the initial state (None if absent). Every call of step returns one of
//
//	returned(value)                            the computation is finished
//	perform(input_type, output_type, value, state)  an effect is performed
//	running(state)                             more work is left
//
// resumed is the effect output after perform, None otherwise. Types are given
// in their canonical text form, e.g. "@print(string)". A script may declare
// the effects it can perform as EFFECTS, a list of (input_type, output_type)
// pairs.
package script

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ergo.services/dvm/gen"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

const defaultMinSlice = time.Millisecond

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

// Options
type Options struct {
	// MaxSteps limits the Starlark execution steps of one step call. Zero means
	// no limit.
	MaxSteps uint64
	// MinSlice is the shortest time a Reduce is given even if the scheduler
	// asked for less. Defaults to 1ms. With many d-processes on one processor
	// the share of each may be below it, so a reduction can run past the
	// time the scheduler granted and the tick gets longer. A negative value
	// disables the floor: every Reduce is cut at the target the scheduler
	// asked for, at the cost of more steps cancelled midway.
	MinSlice time.Duration
	// Log receives the output of print. Dropped if nil.
	Log gen.Log
	// Predeclared adds names visible to the script.
	Predeclared starlark.StringDict
}

// Builder builds interpreters running the same compiled script.
type Builder struct {
	name        string
	program     *starlark.Program
	predeclared starlark.StringDict
	effects     []gen.Effect
	options     Options
}

var _ gen.InterpreterBuilder = (*Builder)(nil)

// Load compiles the script file at path.
func Load(path string, options Options) (*Builder, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Compile(filepath.Base(path), src, options)
}

// Compile compiles the script and checks that it defines step.
func Compile(name string, src any, options Options) (*Builder, error) {
	if options.MinSlice == 0 {
		options.MinSlice = defaultMinSlice
	}

	pre := predeclared()
	for k, v := range options.Predeclared {
		pre[k] = v
	}

	_, program, err := starlark.SourceProgramOptions(fileOptions, name, src, pre.Has)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", gen.ErrIncorrect, err)
	}

	b := &Builder{
		name:        name,
		program:     program,
		predeclared: pre,
		options:     options,
	}

	globals, err := program.Init(b.thread(), pre)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", gen.ErrIncorrect, err)
	}
	if _, ok := globals["step"].(starlark.Callable); ok == false {
		return nil, fmt.Errorf("%w: %s does not define step(state, resumed)", gen.ErrIncorrect, name)
	}
	if b.effects, err = declaredEffects(globals["EFFECTS"]); err != nil {
		return nil, fmt.Errorf("%w: %s: EFFECTS: %s", gen.ErrIncorrect, name, err)
	}
	return b, nil
}

// Name
func (b *Builder) Name() string {
	return b.name
}

// Effects returns the effects declared by the script.
func (b *Builder) Effects() []gen.Effect {
	return append([]gen.Effect(nil), b.effects...)
}

// Build runs the top level of the script and init in a new thread. Failures
// are reported by the first Reduce.
func (b *Builder) Build() gen.Interpreter {
	i := &interpreter{
		thread:  b.thread(),
		state:   starlark.None,
		resumed: starlark.None,
		effects: b.effects,
		options: b.options,
	}

	globals, err := b.program.Init(i.thread, b.predeclared)
	if err != nil {
		i.err = err
		return i
	}
	globals.Freeze()
	i.step = globals["step"].(starlark.Callable)

	if init, ok := globals["init"].(starlark.Callable); ok {
		state, err := starlark.Call(i.thread, init, nil, nil)
		if err != nil {
			i.err = err
			return i
		}
		i.state = state
	}
	return i
}

func (b *Builder) thread() *starlark.Thread {
	thread := &starlark.Thread{Name: b.name}
	log := b.options.Log
	thread.Print = func(_ *starlark.Thread, msg string) {
		if log != nil {
			log.Info("%s", msg)
		}
	}
	return thread
}

func declaredEffects(v starlark.Value) ([]gen.Effect, error) {
	if v == nil {
		return nil, nil
	}
	iterable, ok := v.(starlark.Iterable)
	if ok == false {
		return nil, fmt.Errorf("expected a list, got %s", v.Type())
	}

	var effects []gen.Effect
	iter := iterable.Iterate()
	defer iter.Done()
	var item starlark.Value
	for iter.Next(&item) {
		pair, ok := item.(starlark.Tuple)
		if ok == false || len(pair) != 2 {
			return nil, fmt.Errorf("expected (input_type, output_type), got %s", item)
		}
		input, ok1 := pair[0].(starlark.String)
		output, ok2 := pair[1].(starlark.String)
		if ok1 == false || ok2 == false {
			return nil, fmt.Errorf("expected type strings, got %s", item)
		}
		var e gen.Effect
		var err error
		if e.Input, err = gen.ParseType(string(input)); err != nil {
			return nil, err
		}
		if e.Output, err = gen.ParseType(string(output)); err != nil {
			return nil, err
		}
		effects = append(effects, e)
	}
	return effects, nil
}
