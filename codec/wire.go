package codec

import (
	"fmt"

	"ergo.services/dvm/gen"
)

const (
	valueUnit uint8 = iota + 1
	valueInteger
	valueFloat
	valueString
	valueProduct
	valueVariant
	valueVector
	valueTraitObject
)

type wireValue struct {
	Kind   uint8       `cbor:"1,keyasint"`
	Int    int64       `cbor:"2,keyasint,omitempty"`
	Float  float64     `cbor:"3,keyasint,omitempty"`
	String string      `cbor:"4,keyasint,omitempty"`
	Type   string      `cbor:"5,keyasint,omitempty"`
	Keys   []string    `cbor:"6,keyasint,omitempty"`
	Items  []wireValue `cbor:"7,keyasint,omitempty"`
}

func toWireValue(v gen.Value) (wireValue, error) {
	switch v := v.(type) {
	case nil, gen.ValueUnit:
		return wireValue{Kind: valueUnit}, nil
	case gen.ValueInteger:
		return wireValue{Kind: valueInteger, Int: int64(v)}, nil
	case gen.ValueFloat:
		return wireValue{Kind: valueFloat, Float: float64(v)}, nil
	case gen.ValueString:
		return wireValue{Kind: valueString, String: string(v)}, nil
	case gen.ValueProduct:
		w := wireValue{Kind: valueProduct}
		for _, key := range v.Keys() {
			item, err := toWireValue(v[key])
			if err != nil {
				return w, err
			}
			w.Keys = append(w.Keys, key.String())
			w.Items = append(w.Items, item)
		}
		return w, nil
	case gen.ValueVariant:
		item, err := toWireValue(v.Value)
		if err != nil {
			return wireValue{}, err
		}
		return wireValue{Kind: valueVariant, Type: v.Type.String(), Items: []wireValue{item}}, nil
	case gen.ValueTraitObject:
		item, err := toWireValue(v.Value)
		if err != nil {
			return wireValue{}, err
		}
		return wireValue{Kind: valueTraitObject, Type: v.Type.String(), Items: []wireValue{item}}, nil
	case gen.ValueVector:
		w := wireValue{Kind: valueVector}
		for _, x := range v {
			item, err := toWireValue(x)
			if err != nil {
				return w, err
			}
			w.Items = append(w.Items, item)
		}
		return w, nil
	}
	return wireValue{}, fmt.Errorf("%w: value %T", gen.ErrUnsupported, v)
}

func fromWireValue(w wireValue) (gen.Value, error) {
	switch w.Kind {
	case valueUnit:
		return gen.Unit, nil
	case valueInteger:
		return gen.ValueInteger(w.Int), nil
	case valueFloat:
		return gen.ValueFloat(w.Float), nil
	case valueString:
		return gen.ValueString(w.String), nil

	case valueProduct:
		if len(w.Keys) != len(w.Items) {
			break
		}
		product := make(gen.ValueProduct, len(w.Keys))
		for i, key := range w.Keys {
			ty, err := gen.ParseType(key)
			if err != nil {
				return nil, err
			}
			item, err := fromWireValue(w.Items[i])
			if err != nil {
				return nil, err
			}
			product[ty] = item
		}
		return product, nil

	case valueVariant, valueTraitObject:
		if len(w.Items) != 1 {
			break
		}
		ty, err := gen.ParseType(w.Type)
		if err != nil {
			return nil, err
		}
		item, err := fromWireValue(w.Items[0])
		if err != nil {
			return nil, err
		}
		if w.Kind == valueVariant {
			return gen.ValueVariant{Type: ty, Value: item}, nil
		}
		return gen.ValueTraitObject{Type: ty, Value: item}, nil

	case valueVector:
		vector := make(gen.ValueVector, 0, len(w.Items))
		for _, x := range w.Items {
			item, err := fromWireValue(x)
			if err != nil {
				return nil, err
			}
			vector = append(vector, item)
		}
		return vector, nil
	}
	return nil, fmt.Errorf("%w: value kind %d", gen.ErrMalformed, w.Kind)
}

type wireEffect struct {
	Input  string `cbor:"1,keyasint"`
	Output string `cbor:"2,keyasint"`
}

func toWireEffect(e gen.Effect) *wireEffect {
	return &wireEffect{Input: e.Input.String(), Output: e.Output.String()}
}

func fromWireEffect(w *wireEffect) (gen.Effect, error) {
	var e gen.Effect
	if w == nil {
		return e, fmt.Errorf("%w: missing effect", gen.ErrMalformed)
	}
	input, err := gen.ParseType(w.Input)
	if err != nil {
		return e, err
	}
	output, err := gen.ParseType(w.Output)
	if err != nil {
		return e, err
	}
	e.Input = input
	e.Output = output
	return e, nil
}

const (
	statusRunning uint8 = iota + 1
	statusWaiting
	statusSuspended
	statusDelegated
	statusExited
)

type wireStatus struct {
	Kind   uint8       `cbor:"1,keyasint"`
	Type   string      `cbor:"2,keyasint,omitempty"`
	Effect *wireEffect `cbor:"3,keyasint,omitempty"`
	To     [16]byte    `cbor:"4,keyasint,omitempty"`
	Exit   *wireValue  `cbor:"5,keyasint,omitempty"`
}

func toWireStatus(status gen.DProcessStatus) (wireStatus, error) {
	switch s := status.(type) {
	case gen.StatusRunning:
		return wireStatus{Kind: statusRunning}, nil
	case gen.StatusWaitingForMessage:
		return wireStatus{Kind: statusWaiting, Type: s.Type.String()}, nil
	case gen.StatusSuspendedWithEffect:
		return wireStatus{Kind: statusSuspended, Effect: toWireEffect(s.Effect)}, nil
	case gen.StatusDelegated:
		return wireStatus{Kind: statusDelegated, Effect: toWireEffect(s.Effect), To: [16]byte(s.To)}, nil
	case gen.ExitStatus:
		exit, err := toWireValue(gen.ExitValue(s))
		if err != nil {
			return wireStatus{}, err
		}
		return wireStatus{Kind: statusExited, Exit: &exit}, nil
	}
	return wireStatus{}, fmt.Errorf("%w: status %T", gen.ErrUnsupported, status)
}

func fromWireStatus(w wireStatus) (gen.DProcessStatus, error) {
	switch w.Kind {
	case statusRunning:
		return gen.StatusRunning{}, nil
	case statusWaiting:
		ty, err := gen.ParseType(w.Type)
		if err != nil {
			return nil, err
		}
		return gen.StatusWaitingForMessage{Type: ty}, nil
	case statusSuspended:
		effect, err := fromWireEffect(w.Effect)
		if err != nil {
			return nil, err
		}
		return gen.StatusSuspendedWithEffect{Effect: effect}, nil
	case statusDelegated:
		effect, err := fromWireEffect(w.Effect)
		if err != nil {
			return nil, err
		}
		return gen.StatusDelegated{Effect: effect, To: gen.DProcessID(w.To)}, nil
	case statusExited:
		return fromWireExit(w.Exit)
	}
	return nil, fmt.Errorf("%w: status kind %d", gen.ErrMalformed, w.Kind)
}

func fromWireExit(w *wireValue) (gen.ExitStatus, error) {
	if w == nil {
		return nil, fmt.Errorf("%w: missing exit", gen.ErrMalformed)
	}
	v, err := fromWireValue(*w)
	if err != nil {
		return nil, err
	}
	return gen.ParseExitValue(v)
}

const (
	outputEffectPerformed uint8 = iota + 1
	outputProcessExited
	outputStatusChanged
)

type wireOutput struct {
	Kind       uint8       `cbor:"1,keyasint"`
	DProcessID [16]byte    `cbor:"2,keyasint"`
	Effect     *wireEffect `cbor:"3,keyasint,omitempty"`
	Input      *wireValue  `cbor:"4,keyasint,omitempty"`
	Status     *wireStatus `cbor:"5,keyasint,omitempty"`
}

func toWireOutput(o gen.VMOutput) (wireOutput, error) {
	switch o := o.(type) {
	case gen.VMOutputEffectPerformed:
		input, err := toWireValue(o.Input)
		if err != nil {
			return wireOutput{}, err
		}
		return wireOutput{
			Kind:       outputEffectPerformed,
			DProcessID: [16]byte(o.DProcessID),
			Effect:     toWireEffect(o.Effect),
			Input:      &input,
		}, nil

	case gen.VMOutputProcessExited:
		status, err := toWireStatus(o.ExitStatus)
		if err != nil {
			return wireOutput{}, err
		}
		return wireOutput{Kind: outputProcessExited, DProcessID: [16]byte(o.DProcessID), Status: &status}, nil

	case gen.VMOutputStatusChanged:
		status, err := toWireStatus(o.Status)
		if err != nil {
			return wireOutput{}, err
		}
		return wireOutput{Kind: outputStatusChanged, DProcessID: [16]byte(o.DProcessID), Status: &status}, nil
	}
	return wireOutput{}, fmt.Errorf("%w: output %T", gen.ErrUnsupported, o)
}

func fromWireOutput(w wireOutput) (gen.VMOutput, error) {
	id := gen.DProcessID(w.DProcessID)
	switch w.Kind {
	case outputEffectPerformed:
		effect, err := fromWireEffect(w.Effect)
		if err != nil {
			return nil, err
		}
		var input gen.Value = gen.Unit
		if w.Input != nil {
			if input, err = fromWireValue(*w.Input); err != nil {
				return nil, err
			}
		}
		return gen.VMOutputEffectPerformed{DProcessID: id, Effect: effect, Input: input}, nil

	case outputProcessExited, outputStatusChanged:
		if w.Status == nil {
			break
		}
		status, err := fromWireStatus(*w.Status)
		if err != nil {
			return nil, err
		}
		if w.Kind == outputStatusChanged {
			return gen.VMOutputStatusChanged{DProcessID: id, Status: status}, nil
		}
		exit, ok := status.(gen.ExitStatus)
		if ok == false {
			break
		}
		return gen.VMOutputProcessExited{DProcessID: id, ExitStatus: exit}, nil
	}
	return nil, fmt.Errorf("%w: output kind %d", gen.ErrMalformed, w.Kind)
}
