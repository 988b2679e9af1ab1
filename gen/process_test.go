package gen

import (
	"errors"
	"math"
	"testing"
)

func TestEqual(t *testing.T) {
	nan := ValueFloat(math.NaN())
	if Equal(nan, nan) == false {
		t.Fatal("NaN must equal itself")
	}
	if Equal(ValueInteger(1), ValueFloat(1)) {
		t.Fatal("integer equals float")
	}
	a := ValueProduct{LabelType("x", TypeInteger): ValueVector{ValueInteger(1)}}
	b := ValueProduct{LabelType("x", TypeInteger): ValueVector{ValueInteger(1)}}
	if Equal(a, b) == false {
		t.Fatal("equal products differ")
	}
	b[LabelType("x", TypeInteger)] = ValueVector{ValueInteger(2)}
	if Equal(a, b) {
		t.Fatal("different products are equal")
	}
}

func TestExitValue(t *testing.T) {
	id := NewDProcessID()
	exits := []ExitStatus{
		StatusReturned{Value: ValueString("done")},
		StatusCrashed{Error: errors.New("division by zero")},
		StatusHalted{Type: LabelType("shutdown", TypeUnit), Reason: Unit},
		StatusHaltedByLink{LinkExit: LinkExit{
			DProcessID: id,
			Exit: StatusHaltedByLink{LinkExit: LinkExit{
				DProcessID: NewDProcessID(),
				Exit:       StatusCrashed{Error: errors.New("boom")},
			}},
		}},
	}

	for _, exit := range exits {
		parsed, err := ParseExitValue(ExitValue(exit))
		if err != nil {
			t.Fatalf("%s: %s", exit, err)
		}
		if StatusEqual(exit, parsed) == false {
			t.Fatalf("expected %s, got %s", exit, parsed)
		}
	}

	crashed, _ := ParseExitValue(ExitValue(StatusCrashed{Error: errors.New("division by zero")}))
	if crashed.(StatusCrashed).Error.Error() != "division by zero" {
		t.Fatalf("crash cause is lost: %s", crashed)
	}

	if _, err := ParseExitValue(ValueInteger(1)); errors.Is(err, ErrMalformed) == false {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestDownMessage(t *testing.T) {
	d := DownMessage{From: NewDProcessID(), Exit: StatusHalted{Type: TypeUnit, Reason: ValueInteger(3)}}
	parsed, err := ParseDownMessage(d.Value())
	if err != nil {
		t.Fatal(err)
	}
	if parsed.From != d.From || StatusEqual(parsed.Exit, d.Exit) == false {
		t.Fatalf("expected %s, got %s", d, parsed)
	}
	if _, err := ParseDownMessage(ValueString("down")); errors.Is(err, ErrMalformed) == false {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestStatusTerminal(t *testing.T) {
	transient := []DProcessStatus{
		StatusRunning{},
		StatusWaitingForMessage{Type: TypeInteger},
		StatusSuspendedWithEffect{},
		StatusDelegated{},
	}
	for _, s := range transient {
		if s.IsTerminal() {
			t.Fatalf("%s is terminal", s)
		}
	}
	if IsRunning(StatusRunning{}) == false || IsRunning(StatusReturned{}) {
		t.Fatal("IsRunning is wrong")
	}
}

func TestDProcessID(t *testing.T) {
	id := NewDProcessID()
	parsed, err := ParseDProcessID(id.String())
	if err != nil {
		t.Fatal(err)
	}
	if parsed != id {
		t.Fatalf("expected %s, got %s", id, parsed)
	}
	other := NewDProcessID()
	if id.Less(other) == other.Less(id) {
		t.Fatal("Less is not a strict order")
	}
	if (DProcessID{}).IsZero() == false || id.IsZero() {
		t.Fatal("IsZero is wrong")
	}
}
