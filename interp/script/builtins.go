package script

import (
	"fmt"

	"ergo.services/dvm/gen"

	"go.starlark.net/starlark"
)

type actionKind int

const (
	actionRunning actionKind = iota
	actionPerform
	actionReturn
)

// action is what step returns to the interpreter.
type action struct {
	kind   actionKind
	effect gen.Effect
	value  gen.Value
	state  starlark.Value
}

func (a *action) String() string {
	switch a.kind {
	case actionPerform:
		return fmt.Sprintf("perform(%s, %s)", a.effect, a.value)
	case actionReturn:
		return fmt.Sprintf("returned(%s)", a.value)
	}
	return "running()"
}

func (a *action) Type() string          { return "action" }
func (a *action) Freeze()               {}
func (a *action) Truth() starlark.Bool  { return starlark.True }
func (a *action) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: action") }

func parseType(fn, s string) (gen.Type, error) {
	ty, err := gen.ParseType(s)
	if err != nil {
		return ty, fmt.Errorf("%s: %w", fn, err)
	}
	return ty, nil
}

// returned(value=None)
func builtinReturned(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var value starlark.Value = starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "value?", &value); err != nil {
		return nil, err
	}
	v, err := fromStarlark(value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return &action{kind: actionReturn, value: v}, nil
}

// perform(input_type, output_type, value=None, state=None)
func builtinPerform(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var input, output string
	var value starlark.Value = starlark.None
	var state starlark.Value = starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"input_type", &input, "output_type", &output, "value?", &value, "state?", &state); err != nil {
		return nil, err
	}

	a := &action{kind: actionPerform, state: state}
	var err error
	if a.effect.Input, err = parseType(b.Name(), input); err != nil {
		return nil, err
	}
	if a.effect.Output, err = parseType(b.Name(), output); err != nil {
		return nil, err
	}
	if a.value, err = fromStarlark(value); err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return a, nil
}

// running(state=None)
func builtinRunning(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var state starlark.Value = starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "state?", &state); err != nil {
		return nil, err
	}
	return &action{kind: actionRunning, state: state}, nil
}

// variant(type, value=None) and trait_object(type, value=None)
func builtinTagged(trait bool) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var s string
		var value starlark.Value = starlark.None
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "type", &s, "value?", &value); err != nil {
			return nil, err
		}
		ty, err := parseType(b.Name(), s)
		if err != nil {
			return nil, err
		}
		return &tagged{trait: trait, ty: ty, value: value}, nil
	}
}

func predeclared() starlark.StringDict {
	return starlark.StringDict{
		"returned":     starlark.NewBuiltin("returned", builtinReturned),
		"perform":      starlark.NewBuiltin("perform", builtinPerform),
		"running":      starlark.NewBuiltin("running", builtinRunning),
		"variant":      starlark.NewBuiltin("variant", builtinTagged(false)),
		"trait_object": starlark.NewBuiltin("trait_object", builtinTagged(true)),
	}
}
