package gen

import (
	"errors"
	"fmt"
)

// DProcessStatus is the state of a d-process. Running, WaitingForMessage,
// SuspendedWithEffect and Delegated are transient. Returned, Crashed, Halted and
// HaltedByLink are terminal: no transition leaves a terminal state.
type DProcessStatus interface {
	IsTerminal() bool
	String() string
	isStatus()
}

// ExitStatus is a terminal DProcessStatus.
type ExitStatus interface {
	DProcessStatus
	isExitStatus()
}

// StatusRunning
type StatusRunning struct{}

// StatusWaitingForMessage means the interpreter is blocked until a message of
// Type is delivered.
type StatusWaitingForMessage struct {
	Type Type
}

// StatusSuspendedWithEffect means the interpreter performed an effect nobody
// handles inside the VM. The host resumes it with VM.ResumeEffect.
type StatusSuspendedWithEffect struct {
	Effect Effect
}

// StatusDelegated means the effect input was handed over to another d-process
// and a reply of Effect.Output is awaited.
type StatusDelegated struct {
	Effect Effect
	To     DProcessID
}

// StatusReturned
type StatusReturned struct {
	Value Value
}

// StatusCrashed holds the error the interpreter failed with.
type StatusCrashed struct {
	Error error
}

// StatusHalted
type StatusHalted struct {
	Type   Type
	Reason Value
}

// StatusHaltedByLink means a linked d-process exited.
type StatusHaltedByLink struct {
	LinkExit LinkExit
}

// LinkExit tells which linked d-process exited and how. A d-process halted by
// a link relays the same LinkExit to its own links.
type LinkExit struct {
	DProcessID DProcessID
	Exit       ExitStatus
}

func (l LinkExit) String() string {
	return fmt.Sprintf("%s: %s", l.DProcessID, l.Exit)
}

func (StatusRunning) isStatus()             {}
func (StatusWaitingForMessage) isStatus()   {}
func (StatusSuspendedWithEffect) isStatus() {}
func (StatusDelegated) isStatus()           {}
func (StatusReturned) isStatus()            {}
func (StatusCrashed) isStatus()             {}
func (StatusHalted) isStatus()              {}
func (StatusHaltedByLink) isStatus()        {}

func (StatusReturned) isExitStatus()     {}
func (StatusCrashed) isExitStatus()      {}
func (StatusHalted) isExitStatus()       {}
func (StatusHaltedByLink) isExitStatus() {}

func (StatusRunning) IsTerminal() bool             { return false }
func (StatusWaitingForMessage) IsTerminal() bool   { return false }
func (StatusSuspendedWithEffect) IsTerminal() bool { return false }
func (StatusDelegated) IsTerminal() bool           { return false }
func (StatusReturned) IsTerminal() bool            { return true }
func (StatusCrashed) IsTerminal() bool             { return true }
func (StatusHalted) IsTerminal() bool              { return true }
func (StatusHaltedByLink) IsTerminal() bool        { return true }

func (StatusRunning) String() string {
	return "running"
}

func (s StatusWaitingForMessage) String() string {
	return fmt.Sprintf("waiting for message %s", s.Type)
}

func (s StatusSuspendedWithEffect) String() string {
	return fmt.Sprintf("suspended with effect %s", s.Effect)
}

func (s StatusDelegated) String() string {
	return fmt.Sprintf("delegated %s to %s", s.Effect, s.To)
}

func (s StatusReturned) String() string {
	return fmt.Sprintf("returned %s", valueString(s.Value))
}

func (s StatusCrashed) String() string {
	if s.Error == nil {
		return "crashed"
	}
	return fmt.Sprintf("crashed: %s", s.Error)
}

func (s StatusHalted) String() string {
	return fmt.Sprintf("halted %s: %s", s.Type, valueString(s.Reason))
}

func (s StatusHaltedByLink) String() string {
	return fmt.Sprintf("halted by link %s", s.LinkExit)
}

// AwaitedType returns the message type the d-process is blocked on, if any.
func AwaitedType(s DProcessStatus) (Type, bool) {
	switch s := s.(type) {
	case StatusWaitingForMessage:
		return s.Type, true
	case StatusDelegated:
		return s.Effect.Output, true
	}
	return Type{}, false
}

// IsRunning
func IsRunning(s DProcessStatus) bool {
	_, ok := s.(StatusRunning)
	return ok
}

// StatusEqual compares statuses. Any two crashes are equal regardless of the
// cause: errors coming from arbitrary interpreters are not comparable.
func StatusEqual(a, b DProcessStatus) bool {
	switch a := a.(type) {
	case nil:
		return b == nil
	case StatusRunning:
		_, ok := b.(StatusRunning)
		return ok
	case StatusWaitingForMessage:
		bs, ok := b.(StatusWaitingForMessage)
		return ok && a.Type == bs.Type
	case StatusSuspendedWithEffect:
		bs, ok := b.(StatusSuspendedWithEffect)
		return ok && a.Effect == bs.Effect
	case StatusDelegated:
		bs, ok := b.(StatusDelegated)
		return ok && a == bs
	case StatusReturned:
		bs, ok := b.(StatusReturned)
		return ok && Equal(a.Value, bs.Value)
	case StatusCrashed:
		_, ok := b.(StatusCrashed)
		return ok
	case StatusHalted:
		bs, ok := b.(StatusHalted)
		return ok && a.Type == bs.Type && Equal(a.Reason, bs.Reason)
	case StatusHaltedByLink:
		bs, ok := b.(StatusHaltedByLink)
		return ok && a.LinkExit.DProcessID == bs.LinkExit.DProcessID &&
			StatusEqual(a.LinkExit.Exit, bs.LinkExit.Exit)
	}
	return false
}

var (
	typeExitReturned     = "returned"
	typeExitCrashed      = "crashed"
	typeExitHalted       = "halted"
	typeExitHaltedByLink = "halted_by_link"

	fieldType   = LabelType("type", TypeString)
	fieldFrom   = LabelType("from", TypeString)
	fieldExit   = LabelType("exit", TraitType("exit"))
	fieldReason = LabelType("reason", TraitType("reason"))
)

// ExitValue converts an exit status into a portable value so it can travel in
// messages (see DownMessage).
func ExitValue(exit ExitStatus) Value {
	switch e := exit.(type) {
	case StatusReturned:
		return ValueVariant{
			Type:  LabelType(typeExitReturned, TypeOf(e.Value)),
			Value: e.Value,
		}
	case StatusCrashed:
		msg := ""
		if e.Error != nil {
			msg = e.Error.Error()
		}
		return ValueVariant{
			Type:  LabelType(typeExitCrashed, TypeString),
			Value: ValueString(msg),
		}
	case StatusHalted:
		fields := ValueProduct{
			fieldType:   ValueString(e.Type.String()),
			fieldReason: e.Reason,
		}
		return ValueVariant{
			Type:  LabelType(typeExitHalted, TypeOf(fields)),
			Value: fields,
		}
	case StatusHaltedByLink:
		fields := ValueProduct{
			fieldFrom: ValueString(e.LinkExit.DProcessID.String()),
			fieldExit: ExitValue(e.LinkExit.Exit),
		}
		return ValueVariant{
			Type:  LabelType(typeExitHaltedByLink, TypeOf(fields)),
			Value: fields,
		}
	}
	panic(fmt.Sprintf("unknown exit status %T", exit))
}

// ParseExitValue is the reverse of ExitValue. Crash causes come back as plain
// errors carrying the original message.
func ParseExitValue(v Value) (ExitStatus, error) {
	variant, ok := v.(ValueVariant)
	if ok == false || variant.Type.Kind() != TypeKindLabel {
		return nil, fmt.Errorf("%w: exit value %s", ErrMalformed, valueString(v))
	}

	switch variant.Type.Name() {
	case typeExitReturned:
		return StatusReturned{Value: variant.Value}, nil

	case typeExitCrashed:
		msg, _ := variant.Value.(ValueString)
		return StatusCrashed{Error: errors.New(string(msg))}, nil

	case typeExitHalted:
		fields, ok := variant.Value.(ValueProduct)
		if ok == false {
			break
		}
		ts, _ := fields[fieldType].(ValueString)
		ty, err := ParseType(string(ts))
		if err != nil {
			return nil, err
		}
		return StatusHalted{Type: ty, Reason: fields[fieldReason]}, nil

	case typeExitHaltedByLink:
		fields, ok := variant.Value.(ValueProduct)
		if ok == false {
			break
		}
		from, _ := fields[fieldFrom].(ValueString)
		id, err := ParseDProcessID(string(from))
		if err != nil {
			return nil, err
		}
		inner, err := ParseExitValue(fields[fieldExit])
		if err != nil {
			return nil, err
		}
		return StatusHaltedByLink{LinkExit: LinkExit{DProcessID: id, Exit: inner}}, nil
	}

	return nil, fmt.Errorf("%w: exit value %s", ErrMalformed, valueString(v))
}
