package schema

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// ValueType is the declared type of a resource property.
type ValueType int

const (
	// TypeAbsent tags a value that is not set.
	TypeAbsent ValueType = iota
	TypeBoolean
	TypeInteger
	TypeString
	TypeSymbol
	TypeList
	TypeMap
)

// String returns the lowercase type name.
func (t ValueType) String() string {
	switch t {
	case TypeAbsent:
		return "absent"
	case TypeBoolean:
		return "boolean"
	case TypeInteger:
		return "integer"
	case TypeString:
		return "string"
	case TypeSymbol:
		return "symbol"
	case TypeList:
		return "list"
	case TypeMap:
		return "map"
	default:
		return fmt.Sprintf("ValueType(%d)", int(t))
	}
}

// Value is a tagged property value. The zero Value is absent.
// List and map storage is never shared between Values.
type Value struct {
	typ  ValueType
	b    bool
	i    int
	s    string
	list []string
	m    map[string]string
}

// Absent returns the absent value.
func Absent() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{typ: TypeBoolean, b: b} }

// Int returns an integer value.
func Int(i int) Value { return Value{typ: TypeInteger, i: i} }

// String returns a string value.
func String(s string) Value { return Value{typ: TypeString, s: s} }

// Symbol returns a symbol value. Hyphens are normalized to underscores so
// "ipv4-unicast" and "ipv4_unicast" name the same symbol.
func Symbol(s string) Value {
	return Value{typ: TypeSymbol, s: strings.ReplaceAll(s, "-", "_")}
}

// List returns a list value holding a copy of items.
func List(items ...string) Value {
	return Value{typ: TypeList, list: slices.Clone(items)}
}

// Map returns a map value holding a copy of m.
func Map(m map[string]string) Value {
	return Value{typ: TypeMap, m: maps.Clone(m)}
}

// Type returns the value's tag.
func (v Value) Type() ValueType { return v.typ }

// IsAbsent reports whether the value is unset.
func (v Value) IsAbsent() bool { return v.typ == TypeAbsent }

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) { return v.b, v.typ == TypeBoolean }

// AsInt returns the integer payload.
func (v Value) AsInt() (int, bool) { return v.i, v.typ == TypeInteger }

// AsString returns the string or symbol payload.
func (v Value) AsString() (string, bool) {
	return v.s, v.typ == TypeString || v.typ == TypeSymbol
}

// Items returns a copy of the list payload.
func (v Value) Items() []string {
	if v.typ != TypeList {
		return nil
	}
	return slices.Clone(v.list)
}

// Entries returns a copy of the map payload.
func (v Value) Entries() map[string]string {
	if v.typ != TypeMap {
		return nil
	}
	return maps.Clone(v.m)
}

// Clone returns a deep copy.
func (v Value) Clone() Value {
	v.list = slices.Clone(v.list)
	v.m = maps.Clone(v.m)
	return v
}

// Append returns a list value with item added at the end.
// Appending to an absent value starts a new list.
func (v Value) Append(item string) Value {
	if v.typ != TypeList && v.typ != TypeAbsent {
		return v
	}
	out := make([]string, len(v.list), len(v.list)+1)
	copy(out, v.list)
	return Value{typ: TypeList, list: append(out, item)}
}

// Equal reports whether two values carry the same tag and payload.
// An empty list equals another empty list regardless of capacity.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ {
		return false
	}
	switch v.typ {
	case TypeAbsent:
		return true
	case TypeBoolean:
		return v.b == o.b
	case TypeInteger:
		return v.i == o.i
	case TypeString, TypeSymbol:
		return v.s == o.s
	case TypeList:
		return slices.Equal(v.list, o.list)
	case TypeMap:
		return maps.Equal(v.m, o.m)
	}
	return false
}

// String renders the value for logs and plan output.
func (v Value) String() string {
	switch v.typ {
	case TypeAbsent:
		return "<absent>"
	case TypeBoolean:
		return strconv.FormatBool(v.b)
	case TypeInteger:
		return strconv.Itoa(v.i)
	case TypeString:
		return v.s
	case TypeSymbol:
		return ":" + v.s
	case TypeList:
		return "[" + strings.Join(v.list, ", ") + "]"
	case TypeMap:
		keys := slices.Collect(maps.Keys(v.m))
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + "=" + v.m[k]
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return ""
}

// Interface converts the value to a plain Go value for serialization.
func (v Value) Interface() any {
	switch v.typ {
	case TypeBoolean:
		return v.b
	case TypeInteger:
		return v.i
	case TypeString, TypeSymbol:
		return v.s
	case TypeList:
		return slices.Clone(v.list)
	case TypeMap:
		return maps.Clone(v.m)
	}
	return nil
}
