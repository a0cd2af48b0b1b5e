package schema

import (
	"fmt"
	"math"
	"strconv"
)

// Coerce converts a decoded document value (from CUE, YAML or Starlark)
// into a Value of the descriptor's type and checks its domain.
// Nil maps to absent.
func (d *PropertyDescriptor) Coerce(kind Kind, raw any) (Value, error) {
	if raw == nil {
		return Absent(), nil
	}
	bad := func() error {
		return &ValueError{
			Kind:     kind,
			Property: d.Name,
			Expected: d.Type,
			Got:      String(fmt.Sprint(raw)),
			Reason:   fmt.Sprintf("cannot use %T as %s", raw, d.Type),
		}
	}

	var v Value
	switch d.Type {
	case TypeBoolean:
		switch b := raw.(type) {
		case bool:
			v = Bool(b)
		case string:
			parsed, err := strconv.ParseBool(b)
			if err != nil {
				return Value{}, bad()
			}
			v = Bool(parsed)
		default:
			return Value{}, bad()
		}
	case TypeInteger:
		n, ok := toInt(raw)
		if !ok {
			return Value{}, bad()
		}
		v = Int(n)
	case TypeString:
		s, ok := raw.(string)
		if !ok {
			return Value{}, bad()
		}
		v = String(s)
	case TypeSymbol:
		s, ok := raw.(string)
		if !ok {
			return Value{}, bad()
		}
		v = Symbol(s)
	case TypeList:
		items, ok := toStrings(raw)
		if !ok {
			return Value{}, bad()
		}
		v = List(items...)
	case TypeMap:
		m, ok := toStringMap(raw)
		if !ok {
			return Value{}, bad()
		}
		v = Map(m)
	default:
		return Value{}, bad()
	}
	if err := d.Check(kind, v); err != nil {
		return Value{}, err
	}
	return v, nil
}

func toInt(raw any) (int, bool) {
	switch n := raw.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint64:
		if n > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case string:
		parsed, err := strconv.Atoi(n)
		return parsed, err == nil
	}
	return 0, false
}

func toStrings(raw any) ([]string, bool) {
	switch l := raw.(type) {
	case string:
		return []string{l}, true
	case []string:
		return l, true
	case []any:
		out := make([]string, 0, len(l))
		for _, item := range l {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func toStringMap(raw any) (map[string]string, bool) {
	switch m := raw.(type) {
	case map[string]string:
		return m, true
	case map[string]any:
		out := make(map[string]string, len(m))
		for k, item := range m {
			out[k] = fmt.Sprint(item)
		}
		return out, true
	}
	return nil, false
}
