package schema

import (
	"fmt"
	"maps"
	"slices"
	"sort"
)

// Instance is one concrete resource with resolved property values.
// Instances are built per reconciliation and never persisted.
type Instance struct {
	Kind Kind
	Key  string

	// Parent is the key of the enclosing block for nested kinds.
	Parent string

	Exists     bool
	Properties map[string]Value
}

// ID returns a human readable identifier such as "bgp_router[65000]".
func (in *Instance) ID() string {
	if in.Parent != "" {
		return fmt.Sprintf("%s[%s/%s]", in.Kind, in.Parent, in.Key)
	}
	return fmt.Sprintf("%s[%s]", in.Kind, in.Key)
}

// Get returns a copy of a property value.
func (in *Instance) Get(name string) (Value, bool) {
	v, ok := in.Properties[name]
	if !ok {
		return Value{}, false
	}
	return v.Clone(), true
}

// Set stores a copy of v.
func (in *Instance) Set(name string, v Value) {
	if in.Properties == nil {
		in.Properties = make(map[string]Value)
	}
	in.Properties[name] = v.Clone()
}

// Has reports whether the property is present in the instance, which for
// desired instances means it is managed.
func (in *Instance) Has(name string) bool {
	_, ok := in.Properties[name]
	return ok
}

// Clone returns a deep copy.
func (in *Instance) Clone() *Instance {
	out := *in
	out.Properties = make(map[string]Value, len(in.Properties))
	for k, v := range in.Properties {
		out.Properties[k] = v.Clone()
	}
	return &out
}

// Equivalent reports whether both instances agree on existence and every
// property value.
func (in *Instance) Equivalent(o *Instance) bool {
	if in.Exists != o.Exists || len(in.Properties) != len(o.Properties) {
		return false
	}
	for k, v := range in.Properties {
		ov, ok := o.Properties[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// PropertyNames returns the set property names in sorted order.
func (in *Instance) PropertyNames() []string {
	names := slices.Collect(maps.Keys(in.Properties))
	sort.Strings(names)
	return names
}

// Export converts properties to plain Go values for serialization.
func (in *Instance) Export() map[string]any {
	out := make(map[string]any, len(in.Properties))
	for k, v := range in.Properties {
		out[k] = v.Interface()
	}
	return out
}
