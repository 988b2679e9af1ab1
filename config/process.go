package config

import (
	"fmt"
	"sort"
	"time"

	"ergo.services/dvm/gen"
)

// Effect
func (h HandlerConfig) Effect() (gen.Effect, error) {
	var e gen.Effect
	var err error
	if e.Input, err = gen.ParseType(h.Input); err != nil {
		return e, err
	}
	if e.Output, err = gen.ParseType(h.Output); err != nil {
		return e, err
	}
	return e, nil
}

// EffectHandlers builds the effect handlers of the process. resolve maps a
// process name to its id for delegate handlers. With nil resolve delegate
// handlers are left out.
func (p ProcessConfig) EffectHandlers(resolve func(name string) (gen.DProcessID, bool)) (gen.EffectHandlers, error) {
	handlers := make(gen.EffectHandlers, len(p.Handlers))
	for _, h := range p.Handlers {
		effect, err := h.Effect()
		if err != nil {
			return nil, fmt.Errorf("process %q: %w", p.Name, err)
		}

		switch h.Kind {
		case "receive":
			handlers[effect] = gen.HandlerReceive{}
		case "publish":
			handlers[effect] = gen.HandlerPublish{}
		case "store_put":
			handlers[effect] = gen.HandlerStorePut{}
		case "store_get":
			handlers[effect] = gen.HandlerStoreGet{}
		case "constant":
			value, err := ValueOf(h.Value)
			if err != nil {
				return nil, fmt.Errorf("process %q: %w", p.Name, err)
			}
			handlers[effect] = gen.HandlerConstant{Value: value}
		case "delegate":
			if resolve == nil {
				continue
			}
			to, found := resolve(h.To)
			if found == false {
				return nil, fmt.Errorf("process %q: %w: %q", p.Name, gen.ErrDProcessUnknown, h.To)
			}
			handlers[effect] = gen.HandlerDelegate{To: to}
		default:
			return nil, fmt.Errorf("process %q: %w: handler kind %q", p.Name, gen.ErrIncorrect, h.Kind)
		}
	}
	return handlers, nil
}

// DProcessFlags
func (p ProcessConfig) DProcessFlags() (gen.Flags, error) {
	flags := make(gen.Flags, len(p.Flags))
	for name, v := range p.Flags {
		value, err := ValueOf(v)
		if err != nil {
			return nil, fmt.Errorf("process %q: flag %q: %w", p.Name, name, err)
		}
		flags[gen.FlagName(name)] = value
	}
	return flags, nil
}

// Subscriptions
func (p ProcessConfig) Subscriptions() ([]gen.Type, error) {
	types := make([]gen.Type, 0, len(p.Subscribe))
	for _, s := range p.Subscribe {
		ty, err := gen.ParseType(s)
		if err != nil {
			return nil, fmt.Errorf("process %q: %w", p.Name, err)
		}
		types = append(types, ty)
	}
	return types, nil
}

// ValueOf converts a decoded TOML value. Tables become products: a key that is
// a type is used as is, any other key is a label of the natural type of its
// value.
func ValueOf(v any) (gen.Value, error) {
	switch v := v.(type) {
	case nil:
		return gen.Unit, nil
	case bool:
		if v {
			return gen.ValueInteger(1), nil
		}
		return gen.ValueInteger(0), nil
	case int64:
		return gen.ValueInteger(v), nil
	case int:
		return gen.ValueInteger(v), nil
	case float64:
		return gen.ValueFloat(v), nil
	case string:
		return gen.ValueString(v), nil
	case time.Time:
		return gen.ValueString(v.Format(time.RFC3339Nano)), nil

	case []any:
		vector := make(gen.ValueVector, 0, len(v))
		for _, x := range v {
			item, err := ValueOf(x)
			if err != nil {
				return nil, err
			}
			vector = append(vector, item)
		}
		return vector, nil

	case []map[string]any:
		vector := make(gen.ValueVector, 0, len(v))
		for _, x := range v {
			item, err := ValueOf(x)
			if err != nil {
				return nil, err
			}
			vector = append(vector, item)
		}
		return vector, nil

	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		product := make(gen.ValueProduct, len(v))
		for _, k := range keys {
			field, err := ValueOf(v[k])
			if err != nil {
				return nil, err
			}
			ty, err := gen.ParseType(k)
			if err != nil {
				if ty, err = gen.NewLabelType(k, gen.TypeOf(field)); err != nil {
					return nil, fmt.Errorf("%w: key %q is neither a type nor a name", gen.ErrIncorrect, k)
				}
			}
			product[ty] = field
		}
		return product, nil
	}
	return nil, fmt.Errorf("%w: value of type %T", gen.ErrUnsupported, v)
}
