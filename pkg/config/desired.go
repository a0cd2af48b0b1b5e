package config

import (
	"fmt"
	"sort"

	"github.com/openfroyo/vtyctl/pkg/engine"
	"github.com/openfroyo/vtyctl/pkg/schema"
)

// ToDesired converts the resources selected for target into sparse desired
// instances. Only the properties a resource names become managed.
//
// Errors are engine errors coded VALIDATION_ERROR, UNKNOWN_KIND,
// MISSING_PARENT or DUPLICATE_RESOURCE.
func (pc *ParsedConfig) ToDesired(reg *schema.Registry, target string) ([]*schema.Instance, error) {
	var out []*schema.Instance
	seen := make(map[string]string)

	for _, rc := range pc.Resources {
		if !rc.AppliesTo(target) {
			continue
		}
		in, err := rc.Instance(reg)
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[in.ID()]; ok {
			return nil, engine.NewConflictError(
				fmt.Sprintf("%s is declared twice (%s and %s)", in.ID(), prev, rc.Identifier()), nil).
				WithCode(engine.ErrCodeDuplicateResource).
				WithResource(in.ID())
		}
		seen[in.ID()] = rc.Identifier()
		out = append(out, in)
	}

	return out, nil
}

// Instance converts one resource into a desired instance, coercing each
// property to the type its descriptor declares.
func (rc ResourceConfig) Instance(reg *schema.Registry) (*schema.Instance, error) {
	s, ok := reg.Lookup(schema.Kind(rc.Kind))
	if !ok {
		return nil, engine.NewPermanentError(fmt.Sprintf("unknown resource kind %q", rc.Kind), nil).
			WithCode(engine.ErrCodeUnknownKind).
			WithResource(rc.Identifier())
	}

	invalid := func(msg string, err error) error {
		return engine.NewPermanentError(msg, err).
			WithCode(engine.ErrCodeValidation).
			WithResource(rc.Identifier())
	}

	if s.ValidKey != nil && !s.ValidKey.MatchString(rc.Name) {
		return nil, invalid(fmt.Sprintf("invalid %s name %q", rc.Kind, rc.Name), nil)
	}
	if s.Layout == schema.LayoutNested && rc.Parent == "" {
		return nil, engine.NewPermanentError(fmt.Sprintf("%s requires a parent", rc.Kind), nil).
			WithCode(engine.ErrCodeMissingParent).
			WithResource(rc.Identifier())
	}
	if s.Layout != schema.LayoutNested && rc.Parent != "" {
		return nil, invalid(fmt.Sprintf("%s does not take a parent", rc.Kind), nil)
	}

	in := &schema.Instance{
		Kind:       s.Kind,
		Key:        rc.Name,
		Parent:     rc.Parent,
		Exists:     !rc.Absent(),
		Properties: make(map[string]schema.Value, len(rc.Properties)),
	}

	names := make([]string, 0, len(rc.Properties))
	for name := range rc.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		d, ok := s.Property(name)
		if !ok {
			return nil, invalid(fmt.Sprintf("%s has no property %q", rc.Kind, name), nil)
		}
		v, err := d.Coerce(s.Kind, rc.Properties[name])
		if err != nil {
			return nil, invalid(fmt.Sprintf("invalid value for %s", name), err)
		}
		in.Set(name, v)
	}

	return in, nil
}
