package engine

import (
	"fmt"

	"github.com/openfroyo/vtyctl/pkg/schema"
)

// Emitter renders instance diffs into vtysh configuration commands.
type Emitter struct {
	reg *schema.Registry
}

// NewEmitter creates an emitter for the kinds in reg.
func NewEmitter(reg *schema.Registry) *Emitter {
	return &Emitter{reg: reg}
}

// Render returns the ordered command list for a diff, without session
// framing. A noop diff, or an update whose body turns out empty, renders
// to an empty list.
func (e *Emitter) Render(d *InstanceDiff) ([]string, error) {
	s, ok := e.reg.Lookup(d.Kind)
	if !ok {
		return nil, NewPermanentError("unknown resource kind", fmt.Errorf("%q", d.Kind)).
			WithCode(ErrCodeUnknownKind)
	}
	switch d.Operation {
	case OperationCreate:
		return e.create(s, d.Desired)
	case OperationDelete:
		return e.destroy(s, d.Observed)
	case OperationUpdate:
		return e.update(s, d)
	default:
		return nil, nil
	}
}

// create emits every property that differs from its default. Defaults are
// never emitted.
func (e *Emitter) create(s *schema.ResourceSchema, in *schema.Instance) ([]string, error) {
	if err := checkInstance(s, in); err != nil {
		return nil, err
	}
	if s.RenderRow != nil {
		row, err := s.RenderRow(in)
		if err != nil {
			return nil, NewInvalidPropertyValueError(in, err)
		}
		return []string{row}, nil
	}

	var body []string
	for i := range s.Properties {
		p := &s.Properties[i]
		if _, member := s.CompositeOf(p.Name); member {
			continue
		}
		v, ok := in.Properties[p.Name]
		if !ok || v.IsAbsent() || v.Equal(p.Default) {
			continue
		}
		body = append(body, renderValue(p, in.Key, v)...)
	}
	for i := range s.Composites {
		c := &s.Composites[i]
		values, changed := resolveComposite(s, c, in, in)
		if changed {
			body = append(body, c.Render(schema.CompositeParams{Key: in.Key, Values: values}))
		}
	}
	if len(body) == 0 && !s.EnterCreates {
		return nil, nil
	}
	return frame(s, in, body), nil
}

// destroy emits the kind's single negated top-level command, or resets
// every property to its default for kinds that have none.
func (e *Emitter) destroy(s *schema.ResourceSchema, observed *schema.Instance) ([]string, error) {
	if s.Destroy == nil {
		reset := s.NewInstance(observed.Key)
		reset.Parent = observed.Parent
		return e.update(s, Diff(s, observed, reset))
	}
	if s.RenderRow != nil {
		if _, err := s.RenderRow(observed); err != nil {
			return nil, NewInvalidPropertyValueError(observed, err)
		}
	}
	return s.Destroy(observed), nil
}

// update renders property deltas in registry order. List removals always
// precede list additions.
func (e *Emitter) update(s *schema.ResourceSchema, d *InstanceDiff) ([]string, error) {
	if err := checkInstance(s, d.Desired); err != nil {
		return nil, err
	}
	if d.IsUnchanged() {
		return nil, nil
	}
	if s.RenderRow != nil {
		return replaceRow(s, d)
	}

	key := d.Key
	var body []string
	for _, delta := range d.Deltas {
		p, _ := s.Property(delta.Property)
		if _, member := s.CompositeOf(p.Name); member {
			continue
		}
		switch delta.Kind {
		case DeltaUnchanged:
		case DeltaScalarChanged, DeltaBecamePresent:
			body = append(body, renderValue(p, key, delta.New)...)
		case DeltaReplace:
			body = append(body,
				"no "+p.Render(schema.RenderParams{Key: key}),
				p.Render(schema.RenderParams{Key: key, Value: delta.New}))
		case DeltaBecameAbsent:
			body = append(body, "no "+p.Render(schema.RenderParams{Key: key}))
		case DeltaList:
			for _, item := range delta.ToRemove {
				body = append(body, "no "+p.Render(schema.RenderParams{Key: key, Value: schema.String(item)}))
			}
			for _, item := range delta.ToAdd {
				body = append(body, p.Render(schema.RenderParams{Key: key, Value: schema.String(item)}))
			}
		}
	}
	for i := range s.Composites {
		c := &s.Composites[i]
		if !compositeChanged(c, d) {
			continue
		}
		values, nonDefault := resolveComposite(s, c, d.Observed, d.Desired)
		if !nonDefault && c.Reset != "" {
			body = append(body, "no "+c.Reset)
			continue
		}
		body = append(body, c.Render(schema.CompositeParams{Key: key, Values: values}))
	}
	if len(body) == 0 {
		return nil, nil
	}
	return frame(s, d.Desired, body), nil
}

// replaceRow negates the observed row and asserts the desired one.
// Properties the desired instance does not manage keep their observed value,
// except alternatives, which are replaced as a whole.
func replaceRow(s *schema.ResourceSchema, d *InstanceDiff) ([]string, error) {
	oldRow, err := s.RenderRow(d.Observed)
	if err != nil {
		return nil, NewInvalidPropertyValueError(d.Observed, err)
	}
	want := d.Desired.Clone()
	s.ExpandAlternatives(want)
	merged := d.Observed.Clone()
	for name, v := range want.Properties {
		merged.Set(name, v)
	}
	newRow, err := s.RenderRow(merged)
	if err != nil {
		return nil, NewInvalidPropertyValueError(d.Desired, err)
	}
	if oldRow == newRow {
		return nil, nil
	}
	return []string{"no " + oldRow, newRow}, nil
}

// renderValue renders the positive form of a value. A boolean false renders
// as the negated stem; lists render one command per element.
func renderValue(p *schema.PropertyDescriptor, key string, v schema.Value) []string {
	switch v.Type() {
	case schema.TypeBoolean:
		b, _ := v.AsBool()
		cmd := p.Render(schema.RenderParams{Key: key, Value: v})
		if !b {
			cmd = "no " + cmd
		}
		return []string{cmd}
	case schema.TypeList:
		items := v.Items()
		out := make([]string, 0, len(items))
		for _, item := range items {
			out = append(out, p.Render(schema.RenderParams{Key: key, Value: schema.String(item)}))
		}
		return out
	default:
		return []string{p.Render(schema.RenderParams{Key: key, Value: v})}
	}
}

// resolveComposite returns member values, taking each from desired when it
// manages the member and from base otherwise, with defaults substituted.
// The flag reports whether any member differs from its default.
func resolveComposite(s *schema.ResourceSchema, c *schema.CompositeDescriptor, base, desired *schema.Instance) (map[string]schema.Value, bool) {
	values := make(map[string]schema.Value, len(c.Members))
	nonDefault := false
	for _, m := range c.Members {
		p, _ := s.Property(m)
		v, ok := desired.Properties[m]
		if !ok && base != nil {
			v, ok = base.Properties[m]
		}
		if !ok || v.IsAbsent() {
			v = p.Default
		}
		if !v.Equal(p.Default) {
			nonDefault = true
		}
		values[m] = v
	}
	return values, nonDefault
}

func compositeChanged(c *schema.CompositeDescriptor, d *InstanceDiff) bool {
	for _, m := range c.Members {
		if delta, ok := d.Delta(m); ok && !delta.IsUnchanged() {
			return true
		}
	}
	return false
}

// frame wraps a body with the kind's context commands.
func frame(s *schema.ResourceSchema, in *schema.Instance, body []string) []string {
	var out []string
	if s.Enter != nil {
		out = append(out, s.Enter(in)...)
	}
	out = append(out, body...)
	if s.Leave != nil {
		out = append(out, s.Leave(in)...)
	}
	return out
}

// checkInstance rejects values outside their declared type domain.
func checkInstance(s *schema.ResourceSchema, in *schema.Instance) error {
	for i := range s.Properties {
		p := &s.Properties[i]
		v, ok := in.Properties[p.Name]
		if !ok {
			continue
		}
		if err := p.Check(s.Kind, v); err != nil {
			return NewInvalidPropertyValueError(in, err)
		}
	}
	for name := range in.Properties {
		if _, ok := s.Property(name); !ok {
			return NewInvalidPropertyValueError(in, &schema.ValueError{
				Kind: s.Kind, Property: name, Reason: "unknown property",
			})
		}
	}
	return nil
}
