package schema

import (
	"regexp"
	"slices"
)

// Kind names a category of manageable configuration entity.
type Kind string

// Layout describes how a kind appears in the running configuration.
type Layout int

const (
	// LayoutBlock is a column-0 header followed by indented property lines.
	LayoutBlock Layout = iota

	// LayoutNested is a sub-block inside a parent block, such as a BGP
	// address family inside "router bgp".
	LayoutNested

	// LayoutRow is a single column-0 line per entry with no body.
	LayoutRow
)

func (l Layout) String() string {
	switch l {
	case LayoutBlock:
		return "block"
	case LayoutNested:
		return "nested"
	case LayoutRow:
		return "row"
	}
	return "unknown"
}

// RowDecoder splits a row match into its key and property assignments.
// It returns false when the row carries a form the kind does not model.
type RowDecoder func(match []string) (key string, props map[string]Value, ok bool)

// ResourceSchema is the static description of one resource kind.
// Schemas are built once and never mutated after registration.
type ResourceSchema struct {
	Kind   Kind
	Layout Layout

	// Start matches the block header (block, nested) or the whole row (row).
	Start *regexp.Regexp

	// KeyOf derives the instance key from a Start match. Nil uses group 1.
	KeyOf func(match []string) string

	// Parent and End apply to nested kinds. ImplicitKey names the instance
	// that collects lines sitting directly in the parent block.
	Parent      Kind
	End         *regexp.Regexp
	ImplicitKey string

	// DecodeRow applies to row kinds.
	DecodeRow RowDecoder

	// MergeRows folds consecutive rows with the same key into one
	// instance. Without it every row is an instance of its own, even when
	// its key repeats.
	MergeRows bool

	// Alternatives are row properties that together name what a row
	// points at. A desired instance that manages one of them manages all.
	Alternatives []string

	// RenderRow renders the whole entry of a row kind whose identity is the
	// full line. Any change to such an entry replaces the line.
	RenderRow func(in *Instance) (string, error)

	// Enter and Leave bracket property commands with context commands.
	Enter func(in *Instance) []string
	Leave func(in *Instance) []string

	// EnterCreates is set when the context command alone brings the
	// resource into existence.
	EnterCreates bool

	// Destroy renders the negated top-level command. Nil resets every
	// property to its default instead.
	Destroy func(in *Instance) []string

	// ValidKey restricts keys supplied in desired state.
	ValidKey *regexp.Regexp

	Properties []PropertyDescriptor
	Composites []CompositeDescriptor

	// DependsOn lists kinds that must be configured before this one.
	DependsOn []Kind
}

// Property looks up a descriptor by name.
func (s *ResourceSchema) Property(name string) (*PropertyDescriptor, bool) {
	for i := range s.Properties {
		if s.Properties[i].Name == name {
			return &s.Properties[i], true
		}
	}
	return nil, false
}

// CompositeOf returns the composite a property belongs to.
func (s *ResourceSchema) CompositeOf(name string) (*CompositeDescriptor, bool) {
	for i := range s.Composites {
		if slices.Contains(s.Composites[i].Members, name) {
			return &s.Composites[i], true
		}
	}
	return nil, false
}

// ExpandAlternatives sets every alternative a desired instance leaves
// unmanaged to its default, provided it manages at least one of them.
func (s *ResourceSchema) ExpandAlternatives(in *Instance) {
	if !slices.ContainsFunc(s.Alternatives, in.Has) {
		return
	}
	for _, name := range s.Alternatives {
		if in.Has(name) {
			continue
		}
		if p, ok := s.Property(name); ok {
			in.Set(name, p.Default)
		}
	}
}

// KeyFromMatch extracts the instance key from a Start match.
func (s *ResourceSchema) KeyFromMatch(match []string) string {
	if s.KeyOf != nil {
		return s.KeyOf(match)
	}
	if len(match) > 1 {
		return match[1]
	}
	return ""
}

// Defaults returns independent copies of every property default.
func (s *ResourceSchema) Defaults() map[string]Value {
	out := make(map[string]Value, len(s.Properties))
	for _, p := range s.Properties {
		out[p.Name] = p.Default.Clone()
	}
	return out
}

// NewInstance returns an existing instance seeded with defaults.
func (s *ResourceSchema) NewInstance(key string) *Instance {
	return &Instance{
		Kind:       s.Kind,
		Key:        key,
		Exists:     true,
		Properties: s.Defaults(),
	}
}

// Blank returns a non-existing instance with the given key.
func (s *ResourceSchema) Blank(key string) *Instance {
	in := s.NewInstance(key)
	in.Exists = false
	return in
}

// PropertyNames returns property names in registry order.
func (s *ResourceSchema) PropertyNames() []string {
	names := make([]string, len(s.Properties))
	for i, p := range s.Properties {
		names[i] = p.Name
	}
	return names
}
