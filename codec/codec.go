// Package codec is the CBOR wire format of the VM vocabulary: values, types,
// exit statuses and VM outputs. Encoding is canonical, so equal values always
// encode to the same bytes.
package codec

import (
	"fmt"

	"ergo.services/dvm/gen"

	"github.com/fxamacker/cbor/v2"
)

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("codec: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// MarshalValue
func MarshalValue(v gen.Value) ([]byte, error) {
	w, err := toWireValue(v)
	if err != nil {
		return nil, err
	}
	return encMode.Marshal(w)
}

// UnmarshalValue
func UnmarshalValue(data []byte) (gen.Value, error) {
	var w wireValue
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: unmarshal value: %s", gen.ErrMalformed, err)
	}
	return fromWireValue(w)
}

// MarshalType
func MarshalType(ty gen.Type) ([]byte, error) {
	return encMode.Marshal(ty.String())
}

// UnmarshalType
func UnmarshalType(data []byte) (gen.Type, error) {
	var s string
	if err := cbor.Unmarshal(data, &s); err != nil {
		return gen.Type{}, fmt.Errorf("%w: unmarshal type: %s", gen.ErrMalformed, err)
	}
	return gen.ParseType(s)
}

// MarshalExit
func MarshalExit(exit gen.ExitStatus) ([]byte, error) {
	return MarshalValue(gen.ExitValue(exit))
}

// UnmarshalExit
func UnmarshalExit(data []byte) (gen.ExitStatus, error) {
	v, err := UnmarshalValue(data)
	if err != nil {
		return nil, err
	}
	return gen.ParseExitValue(v)
}

// MarshalStatus
func MarshalStatus(status gen.DProcessStatus) ([]byte, error) {
	w, err := toWireStatus(status)
	if err != nil {
		return nil, err
	}
	return encMode.Marshal(w)
}

// UnmarshalStatus
func UnmarshalStatus(data []byte) (gen.DProcessStatus, error) {
	var w wireStatus
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: unmarshal status: %s", gen.ErrMalformed, err)
	}
	return fromWireStatus(w)
}

// MarshalOutput
func MarshalOutput(o gen.VMOutput) ([]byte, error) {
	w, err := toWireOutput(o)
	if err != nil {
		return nil, err
	}
	return encMode.Marshal(w)
}

// UnmarshalOutput
func UnmarshalOutput(data []byte) (gen.VMOutput, error) {
	var w wireOutput
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: unmarshal output: %s", gen.ErrMalformed, err)
	}
	return fromWireOutput(w)
}

// MarshalOutputs encodes the outputs as one CBOR array.
func MarshalOutputs(outputs gen.VMOutputs) ([]byte, error) {
	ws := make([]wireOutput, 0, len(outputs))
	for _, o := range outputs {
		w, err := toWireOutput(o)
		if err != nil {
			return nil, err
		}
		ws = append(ws, w)
	}
	return encMode.Marshal(ws)
}

// UnmarshalOutputs
func UnmarshalOutputs(data []byte) (gen.VMOutputs, error) {
	var ws []wireOutput
	if err := cbor.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("%w: unmarshal outputs: %s", gen.ErrMalformed, err)
	}
	outputs := make(gen.VMOutputs, 0, len(ws))
	for _, w := range ws {
		o, err := fromWireOutput(w)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, o)
	}
	return outputs, nil
}
