package codec

import (
	"bytes"
	"errors"
	"testing"

	"ergo.services/dvm/gen"
)

func TestValue(t *testing.T) {
	point := gen.ValueProduct{
		gen.LabelType("x", gen.TypeInteger): gen.ValueInteger(1),
		gen.LabelType("y", gen.TypeFloat):   gen.ValueFloat(-2.5),
	}
	values := []gen.Value{
		gen.Unit,
		gen.ValueInteger(0),
		gen.ValueInteger(-42),
		gen.ValueFloat(0),
		gen.ValueFloat(3.25),
		gen.ValueString(""),
		gen.ValueString("hello"),
		point,
		gen.ValueVariant{Type: gen.LabelType("ok", gen.TypeString), Value: gen.ValueString("yes")},
		gen.ValueVector{gen.ValueInteger(1), gen.ValueString("two"), point},
		gen.ValueTraitObject{Type: gen.TraitType("show"), Value: gen.ValueInteger(7)},
		gen.ValueVector{gen.ValueProduct{
			gen.LabelType("hello_world.v-2", gen.TypeInteger): gen.ValueInteger(1),
		}},
	}

	for _, v := range values {
		data, err := MarshalValue(v)
		if err != nil {
			t.Fatalf("marshal %s: %s", v, err)
		}
		decoded, err := UnmarshalValue(data)
		if err != nil {
			t.Fatalf("unmarshal %s: %s", v, err)
		}
		if gen.Equal(v, decoded) == false {
			t.Fatalf("expected %s, got %s", v, decoded)
		}
	}
}

func TestValueCanonical(t *testing.T) {
	a := gen.ValueProduct{}
	b := gen.ValueProduct{}
	for i := 0; i < 20; i++ {
		key := gen.LabelType(string(rune('a'+i)), gen.TypeInteger)
		a[key] = gen.ValueInteger(i)
	}
	for i := 19; i >= 0; i-- {
		key := gen.LabelType(string(rune('a'+i)), gen.TypeInteger)
		b[key] = gen.ValueInteger(i)
	}

	da, err := MarshalValue(a)
	if err != nil {
		t.Fatal(err)
	}
	db, err := MarshalValue(b)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(da, db) == false {
		t.Fatal("equal products encode differently")
	}
}

func TestType(t *testing.T) {
	ty := gen.SumType(gen.LabelType("ok", gen.TypeInteger), gen.VectorType(gen.TypeString))
	data, err := MarshalType(ty)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := UnmarshalType(data)
	if err != nil {
		t.Fatal(err)
	}
	if decoded != ty {
		t.Fatalf("expected %s, got %s", ty, decoded)
	}
}

func TestStatus(t *testing.T) {
	effect := gen.Effect{Input: gen.TypeString, Output: gen.TypeInteger}
	statuses := []gen.DProcessStatus{
		gen.StatusRunning{},
		gen.StatusWaitingForMessage{Type: gen.TypeInteger},
		gen.StatusSuspendedWithEffect{Effect: effect},
		gen.StatusDelegated{Effect: effect, To: gen.NewDProcessID()},
		gen.StatusReturned{Value: gen.ValueInteger(42)},
		gen.StatusCrashed{Error: errors.New("broken")},
		gen.StatusHalted{Type: gen.TypeUnit, Reason: gen.ValueString("stop")},
		gen.StatusHaltedByLink{LinkExit: gen.LinkExit{
			DProcessID: gen.NewDProcessID(),
			Exit:       gen.StatusReturned{Value: gen.Unit},
		}},
	}

	for _, s := range statuses {
		data, err := MarshalStatus(s)
		if err != nil {
			t.Fatalf("marshal %s: %s", s, err)
		}
		decoded, err := UnmarshalStatus(data)
		if err != nil {
			t.Fatalf("unmarshal %s: %s", s, err)
		}
		if gen.StatusEqual(s, decoded) == false {
			t.Fatalf("expected %s, got %s", s, decoded)
		}
	}

	data, err := MarshalExit(gen.StatusCrashed{Error: errors.New("broken")})
	if err != nil {
		t.Fatal(err)
	}
	exit, err := UnmarshalExit(data)
	if err != nil {
		t.Fatal(err)
	}
	crashed, ok := exit.(gen.StatusCrashed)
	if ok == false || crashed.Error.Error() != "broken" {
		t.Fatalf("unexpected exit %s", exit)
	}
}

func TestOutputs(t *testing.T) {
	id := gen.NewDProcessID()
	outputs := gen.VMOutputs{
		gen.VMOutputEffectPerformed{
			DProcessID: id,
			Effect:     gen.Effect{Input: gen.TypeString, Output: gen.TypeUnit},
			Input:      gen.ValueString("print me"),
		},
		gen.VMOutputStatusChanged{DProcessID: id, Status: gen.StatusRunning{}},
		gen.VMOutputProcessExited{DProcessID: id, ExitStatus: gen.StatusReturned{Value: gen.ValueInteger(1)}},
	}

	data, err := MarshalOutputs(outputs)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := UnmarshalOutputs(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded) != len(outputs) {
		t.Fatalf("expected %d outputs, got %d", len(outputs), len(decoded))
	}

	performed := decoded.EffectsPerformed()
	if len(performed) != 1 || performed[0].DProcessID != id ||
		gen.Equal(performed[0].Input, gen.ValueString("print me")) == false {
		t.Fatalf("unexpected effect output %v", performed)
	}
	exited := decoded.Exited()
	if len(exited) != 1 || gen.StatusEqual(exited[0].ExitStatus, gen.StatusReturned{Value: gen.ValueInteger(1)}) == false {
		t.Fatalf("unexpected exit output %v", exited)
	}

	single, err := MarshalOutput(outputs[1])
	if err != nil {
		t.Fatal(err)
	}
	o, err := UnmarshalOutput(single)
	if err != nil {
		t.Fatal(err)
	}
	if changed, ok := o.(gen.VMOutputStatusChanged); ok == false || changed.DProcessID != id {
		t.Fatalf("unexpected output %s", o)
	}
}

func TestMalformed(t *testing.T) {
	if _, err := UnmarshalValue([]byte{0xff}); errors.Is(err, gen.ErrMalformed) == false {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	data, _ := encMode.Marshal(wireValue{Kind: 99})
	if _, err := UnmarshalValue(data); errors.Is(err, gen.ErrMalformed) == false {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}
