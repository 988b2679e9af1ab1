package script

import (
	"fmt"
	"sort"

	"ergo.services/dvm/gen"

	"go.starlark.net/starlark"
)

// tagged is the script side of variants and trait objects.
type tagged struct {
	trait bool
	ty    gen.Type
	value starlark.Value
}

var _ starlark.HasAttrs = (*tagged)(nil)

func (t *tagged) String() string {
	if t.trait {
		return fmt.Sprintf("trait_object(%q, %s)", t.ty, t.value)
	}
	return fmt.Sprintf("variant(%q, %s)", t.ty, t.value)
}

func (t *tagged) Type() string {
	if t.trait {
		return "trait_object"
	}
	return "variant"
}

func (t *tagged) Freeze()              { t.value.Freeze() }
func (t *tagged) Truth() starlark.Bool { return starlark.True }

func (t *tagged) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: %s", t.Type())
}

func (t *tagged) Attr(name string) (starlark.Value, error) {
	switch name {
	case "type":
		return starlark.String(t.ty.String()), nil
	case "value":
		return t.value, nil
	}
	return nil, nil
}

func (t *tagged) AttrNames() []string {
	return []string{"type", "value"}
}

// toStarlark converts a VM value for the script. Products become dicts keyed
// by field type; a label field holding a value of its natural type is keyed by
// the label name only.
func toStarlark(v gen.Value) (starlark.Value, error) {
	switch v := v.(type) {
	case nil, gen.ValueUnit:
		return starlark.None, nil
	case gen.ValueInteger:
		return starlark.MakeInt64(int64(v)), nil
	case gen.ValueFloat:
		return starlark.Float(v), nil
	case gen.ValueString:
		return starlark.String(v), nil

	case gen.ValueVector:
		elems := make([]starlark.Value, len(v))
		for i, e := range v {
			elem, err := toStarlark(e)
			if err != nil {
				return nil, err
			}
			elems[i] = elem
		}
		return starlark.NewList(elems), nil

	case gen.ValueProduct:
		d := starlark.NewDict(len(v))
		for _, key := range v.Keys() {
			field, err := toStarlark(v[key])
			if err != nil {
				return nil, err
			}
			name := key.String()
			if key.Kind() == gen.TypeKindLabel && key == gen.LabelType(key.Name(), gen.TypeOf(v[key])) {
				name = key.Name()
			}
			if err := d.SetKey(starlark.String(name), field); err != nil {
				return nil, err
			}
		}
		return d, nil

	case gen.ValueVariant:
		inner, err := toStarlark(v.Value)
		if err != nil {
			return nil, err
		}
		return &tagged{ty: v.Type, value: inner}, nil

	case gen.ValueTraitObject:
		inner, err := toStarlark(v.Value)
		if err != nil {
			return nil, err
		}
		return &tagged{trait: true, ty: v.Type, value: inner}, nil
	}
	return nil, fmt.Errorf("%w: value %T", gen.ErrUnsupported, v)
}

// fromStarlark is the reverse of toStarlark. Booleans become integers, tuples
// become vectors. A dict key that is not a type is a label name.
func fromStarlark(v starlark.Value) (gen.Value, error) {
	switch v := v.(type) {
	case starlark.NoneType:
		return gen.Unit, nil
	case starlark.Bool:
		if v {
			return gen.ValueInteger(1), nil
		}
		return gen.ValueInteger(0), nil
	case starlark.Int:
		i, ok := v.Int64()
		if ok == false {
			return nil, fmt.Errorf("%w: integer %s overflows", gen.ErrIncorrect, v)
		}
		return gen.ValueInteger(i), nil
	case starlark.Float:
		return gen.ValueFloat(v), nil
	case starlark.String:
		return gen.ValueString(v), nil

	case *starlark.List:
		vector := make(gen.ValueVector, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			item, err := fromStarlark(v.Index(i))
			if err != nil {
				return nil, err
			}
			vector = append(vector, item)
		}
		return vector, nil

	case starlark.Tuple:
		vector := make(gen.ValueVector, 0, len(v))
		for _, x := range v {
			item, err := fromStarlark(x)
			if err != nil {
				return nil, err
			}
			vector = append(vector, item)
		}
		return vector, nil

	case *starlark.Dict:
		items := v.Items()
		sort.Slice(items, func(i, j int) bool {
			return items[i][0].String() < items[j][0].String()
		})
		product := make(gen.ValueProduct, len(items))
		for _, kv := range items {
			key, ok := kv[0].(starlark.String)
			if ok == false {
				return nil, fmt.Errorf("%w: dict key %s is not a string", gen.ErrIncorrect, kv[0])
			}
			field, err := fromStarlark(kv[1])
			if err != nil {
				return nil, err
			}
			ty, err := gen.ParseType(string(key))
			if err != nil {
				if ty, err = gen.NewLabelType(string(key), gen.TypeOf(field)); err != nil {
					return nil, fmt.Errorf("%w: key %q is neither a type nor a name", gen.ErrIncorrect, string(key))
				}
			}
			product[ty] = field
		}
		return product, nil

	case *tagged:
		inner, err := fromStarlark(v.value)
		if err != nil {
			return nil, err
		}
		if v.trait {
			return gen.ValueTraitObject{Type: v.ty, Value: inner}, nil
		}
		return gen.ValueVariant{Type: v.ty, Value: inner}, nil
	}
	return nil, fmt.Errorf("%w: script value of type %s", gen.ErrUnsupported, v.Type())
}
