package gen

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Value is the portable payload exchanged between d-processes: messages,
// mailbox items, effect inputs and outputs. Closures are deliberately not
// values: interpreters of different kinds share no closure representation.
type Value interface {
	isValue()
	String() string
}

type ValueUnit struct{}

type ValueInteger int64

type ValueFloat float64

type ValueString string

// ValueProduct maps every field type to its value.
type ValueProduct map[Type]Value

// ValueVariant is a value tagged with the variant type of a sum.
type ValueVariant struct {
	Type  Type
	Value Value
}

type ValueVector []Value

// ValueTraitObject is a value behind a trait type.
type ValueTraitObject struct {
	Type  Type
	Value Value
}

var Unit Value = ValueUnit{}

func (ValueUnit) isValue()        {}
func (ValueInteger) isValue()     {}
func (ValueFloat) isValue()       {}
func (ValueString) isValue()      {}
func (ValueProduct) isValue()     {}
func (ValueVariant) isValue()     {}
func (ValueVector) isValue()      {}
func (ValueTraitObject) isValue() {}

func (ValueUnit) String() string {
	return "()"
}

func (v ValueInteger) String() string {
	return fmt.Sprintf("%d", int64(v))
}

func (v ValueFloat) String() string {
	return fmt.Sprintf("%g", float64(v))
}

func (v ValueString) String() string {
	return fmt.Sprintf("%q", string(v))
}

func (v ValueProduct) String() string {
	keys := v.Keys()
	fields := make([]string, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, fmt.Sprintf("%s: %s", k, valueString(v[k])))
	}
	return "*<" + strings.Join(fields, ", ") + ">"
}

// Keys returns field types in canonical order.
func (v ValueProduct) Keys() []Type {
	keys := make([]Type, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}

func (v ValueVariant) String() string {
	return fmt.Sprintf("%s(%s)", v.Type, valueString(v.Value))
}

func (v ValueVector) String() string {
	items := make([]string, len(v))
	for i := range v {
		items[i] = valueString(v[i])
	}
	return "[" + strings.Join(items, ", ") + "]"
}

func (v ValueTraitObject) String() string {
	return fmt.Sprintf("&%s(%s)", v.Type, valueString(v.Value))
}

func valueString(v Value) string {
	if v == nil {
		return "nil"
	}
	return v.String()
}

// TypeOf returns the natural type of the value. A vector of mixed elements has
// a sum as its element type.
func TypeOf(v Value) Type {
	switch v := v.(type) {
	case ValueUnit, nil:
		return TypeUnit
	case ValueInteger:
		return TypeInteger
	case ValueFloat:
		return TypeFloat
	case ValueString:
		return TypeString
	case ValueProduct:
		return ProductType(v.Keys()...)
	case ValueVariant:
		return v.Type
	case ValueTraitObject:
		return v.Type
	case ValueVector:
		if len(v) == 0 {
			return VectorType(TypeUnit)
		}
		items := make([]Type, len(v))
		for i := range v {
			items[i] = TypeOf(v[i])
		}
		return VectorType(SumType(items...))
	}
	panic(fmt.Sprintf("unknown value type %T", v))
}

// Equal compares two values structurally. Floats are compared by bits so NaN
// equals itself, which keeps Equal reflexive for mailbox lookups and tests.
func Equal(a, b Value) bool {
	switch a := a.(type) {
	case nil:
		return b == nil
	case ValueUnit:
		_, ok := b.(ValueUnit)
		return ok
	case ValueInteger:
		bv, ok := b.(ValueInteger)
		return ok && a == bv
	case ValueFloat:
		bv, ok := b.(ValueFloat)
		return ok && math.Float64bits(float64(a)) == math.Float64bits(float64(bv))
	case ValueString:
		bv, ok := b.(ValueString)
		return ok && a == bv
	case ValueProduct:
		bv, ok := b.(ValueProduct)
		if ok == false || len(a) != len(bv) {
			return false
		}
		for k, v := range a {
			other, found := bv[k]
			if found == false || Equal(v, other) == false {
				return false
			}
		}
		return true
	case ValueVariant:
		bv, ok := b.(ValueVariant)
		return ok && a.Type == bv.Type && Equal(a.Value, bv.Value)
	case ValueTraitObject:
		bv, ok := b.(ValueTraitObject)
		return ok && a.Type == bv.Type && Equal(a.Value, bv.Value)
	case ValueVector:
		bv, ok := b.(ValueVector)
		if ok == false || len(a) != len(bv) {
			return false
		}
		for i := range a {
			if Equal(a[i], bv[i]) == false {
				return false
			}
		}
		return true
	}
	return false
}
