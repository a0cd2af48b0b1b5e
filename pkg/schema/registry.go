package schema

import (
	"fmt"
	"slices"
)

// Registry is an immutable set of resource schemas. It is built once at
// startup and shared by the parser, planner and emitter.
type Registry struct {
	schemas map[Kind]*ResourceSchema
	order   []Kind
}

// NewRegistry validates and registers schemas in the given order. The order
// is the order in which the parser tries block and row patterns.
func NewRegistry(schemas ...*ResourceSchema) (*Registry, error) {
	r := &Registry{schemas: make(map[Kind]*ResourceSchema, len(schemas))}
	for _, s := range schemas {
		if err := validateSchema(s); err != nil {
			return nil, err
		}
		if _, dup := r.schemas[s.Kind]; dup {
			return nil, fmt.Errorf("duplicate resource kind %q", s.Kind)
		}
		r.schemas[s.Kind] = s
		r.order = append(r.order, s.Kind)
	}
	for _, s := range schemas {
		if s.Layout == LayoutNested {
			parent, ok := r.schemas[s.Parent]
			if !ok {
				return nil, fmt.Errorf("kind %s: unknown parent kind %q", s.Kind, s.Parent)
			}
			if parent.Layout != LayoutBlock {
				return nil, fmt.Errorf("kind %s: parent %s is not a block kind", s.Kind, s.Parent)
			}
		}
		for _, dep := range s.DependsOn {
			if _, ok := r.schemas[dep]; !ok {
				return nil, fmt.Errorf("kind %s: unknown dependency %q", s.Kind, dep)
			}
		}
	}
	return r, nil
}

// MustRegistry is NewRegistry that panics on error, for static tables.
func MustRegistry(schemas ...*ResourceSchema) *Registry {
	r, err := NewRegistry(schemas...)
	if err != nil {
		panic(err)
	}
	return r
}

func validateSchema(s *ResourceSchema) error {
	if s == nil || s.Kind == "" {
		return fmt.Errorf("resource schema requires a kind")
	}
	if s.Start == nil {
		return fmt.Errorf("kind %s: missing start pattern", s.Kind)
	}
	switch s.Layout {
	case LayoutRow:
		if s.DecodeRow == nil {
			return fmt.Errorf("kind %s: row kinds require a row decoder", s.Kind)
		}
	case LayoutNested:
		if s.End == nil || s.Parent == "" {
			return fmt.Errorf("kind %s: nested kinds require a parent and an end pattern", s.Kind)
		}
	}

	seen := make(map[string]bool, len(s.Properties))
	for _, p := range s.Properties {
		if p.Name == "" {
			return fmt.Errorf("kind %s: property without a name", s.Kind)
		}
		if seen[p.Name] {
			return fmt.Errorf("kind %s: duplicate property %q", s.Kind, p.Name)
		}
		seen[p.Name] = true
		if !p.Default.IsAbsent() && p.Default.Type() != p.Type {
			return fmt.Errorf("kind %s: default of %s is %s, declared %s",
				s.Kind, p.Name, p.Default.Type(), p.Type)
		}
		if p.Match != nil && p.Match.NumSubexp() == 0 && p.Type != TypeBoolean {
			return fmt.Errorf("kind %s: presence-only pattern on non-boolean %s", s.Kind, p.Name)
		}
		if p.Render == nil && s.RenderRow == nil {
			if _, inComposite := s.CompositeOf(p.Name); !inComposite {
				return fmt.Errorf("kind %s: property %s has no template", s.Kind, p.Name)
			}
		}
	}
	for _, c := range s.Composites {
		if c.Match == nil || c.Render == nil {
			return fmt.Errorf("kind %s: composite %s needs a pattern and a template", s.Kind, c.Name)
		}
		if c.Match.NumSubexp() != len(c.Members) {
			return fmt.Errorf("kind %s: composite %s captures %d groups for %d members",
				s.Kind, c.Name, c.Match.NumSubexp(), len(c.Members))
		}
		for _, m := range c.Members {
			p, ok := s.Property(m)
			if !ok {
				return fmt.Errorf("kind %s: composite %s references unknown property %q", s.Kind, c.Name, m)
			}
			if p.Match != nil {
				return fmt.Errorf("kind %s: composite member %s must not carry its own pattern", s.Kind, m)
			}
		}
	}
	return nil
}

// Lookup returns the schema for a kind.
func (r *Registry) Lookup(kind Kind) (*ResourceSchema, bool) {
	s, ok := r.schemas[kind]
	return s, ok
}

// Kinds returns the registered kinds in registration order.
func (r *Registry) Kinds() []Kind {
	return slices.Clone(r.order)
}

// Schemas returns every schema in registration order.
func (r *Registry) Schemas() []*ResourceSchema {
	out := make([]*ResourceSchema, len(r.order))
	for i, k := range r.order {
		out[i] = r.schemas[k]
	}
	return out
}

// ByLayout returns the schemas with the given layout, in registration order.
func (r *Registry) ByLayout(layout Layout) []*ResourceSchema {
	var out []*ResourceSchema
	for _, k := range r.order {
		if s := r.schemas[k]; s.Layout == layout {
			out = append(out, s)
		}
	}
	return out
}

// Children returns nested kinds whose parent is kind.
func (r *Registry) Children(kind Kind) []*ResourceSchema {
	var out []*ResourceSchema
	for _, s := range r.ByLayout(LayoutNested) {
		if s.Parent == kind {
			out = append(out, s)
		}
	}
	return out
}
