package engine

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/openfroyo/vtyctl/pkg/schema"
)

// PlanOptions tunes planning.
type PlanOptions struct {
	// Purge lists kinds whose observed instances are deleted when no
	// desired instance names them. Other kinds leave unmanaged
	// configuration alone.
	Purge []schema.Kind
}

// Planner turns observed and desired instances into an ordered plan.
// Planning is pure: it never touches the daemon.
type Planner struct {
	reg     *schema.Registry
	emitter *Emitter
	order   *KindOrder
	now     func() time.Time
}

// NewPlanner creates a planner over the kinds in reg.
func NewPlanner(reg *schema.Registry) (*Planner, error) {
	order, err := BuildKindOrder(reg)
	if err != nil {
		return nil, err
	}
	return &Planner{
		reg:     reg,
		emitter: NewEmitter(reg),
		order:   order,
		now:     time.Now,
	}, nil
}

// Registry returns the registry the planner was built with.
func (p *Planner) Registry() *schema.Registry {
	return p.reg
}

// Plan compares desired instances with observed ones. Desired instances
// with Exists=false ask for deletion. Observed instances nobody asks about,
// including extra rows that repeat a desired key, are left alone unless
// their kind is purged.
func (p *Planner) Plan(target string, observed, desired []*schema.Instance, opts PlanOptions) (*Plan, error) {
	desired, err := p.prepareDesired(observed, desired)
	if err != nil {
		return nil, err
	}

	index := make(map[string][]*schema.Instance, len(observed))
	for _, in := range observed {
		id := identity(in)
		index[id] = append(index[id], in)
	}

	plan := &Plan{
		ID:        uuid.NewString(),
		Target:    target,
		CreatedAt: p.now(),
	}
	matched := make(map[*schema.Instance]bool, len(observed))
	for _, des := range desired {
		rps, err := p.planMatching(index[identity(des)], des, matched)
		if err != nil {
			return nil, err
		}
		plan.Resources = append(plan.Resources, rps...)
	}

	for _, obs := range observed {
		if matched[obs] || !slices.Contains(opts.Purge, obs.Kind) {
			continue
		}
		s, _ := p.reg.Lookup(obs.Kind)
		if s.Layout == schema.LayoutNested && obs.Key == s.ImplicitKey {
			continue
		}
		absent := &schema.Instance{Kind: obs.Kind, Key: obs.Key, Parent: obs.Parent}
		rp, err := p.planOne(obs, absent)
		if err != nil {
			return nil, err
		}
		plan.Resources = append(plan.Resources, rp)
	}

	p.order.Sort(plan.Resources)
	for _, rp := range plan.Resources {
		switch rp.Operation {
		case OperationCreate:
			plan.Summary.Create++
		case OperationUpdate:
			plan.Summary.Update++
		case OperationDelete:
			plan.Summary.Delete++
		default:
			plan.Summary.Noop++
		}
		plan.Summary.Commands += len(rp.Commands)
	}
	return plan, nil
}

// planMatching plans desired against the observed instances that share its
// identity. Row kinds may repeat a key, as a static route with several next
// hops does. Deletion removes every such row. Otherwise the first row that
// already converges is kept, or the first row is updated when none does.
func (p *Planner) planMatching(candidates []*schema.Instance, desired *schema.Instance, matched map[*schema.Instance]bool) ([]ResourcePlan, error) {
	if len(candidates) == 0 {
		rp, err := p.planOne(nil, desired)
		if err != nil {
			return nil, err
		}
		return []ResourcePlan{rp}, nil
	}

	if !desired.Exists {
		out := make([]ResourcePlan, 0, len(candidates))
		for _, obs := range candidates {
			rp, err := p.planOne(obs, desired)
			if err != nil {
				return nil, err
			}
			matched[obs] = true
			out = append(out, rp)
		}
		return out, nil
	}

	var (
		first    ResourcePlan
		firstObs *schema.Instance
	)
	for _, obs := range candidates {
		rp, err := p.planOne(obs, desired)
		if err != nil {
			return nil, err
		}
		if rp.Operation == OperationNoop {
			matched[obs] = true
			return []ResourcePlan{rp}, nil
		}
		if firstObs == nil {
			first, firstObs = rp, obs
		}
	}
	matched[firstObs] = true
	return []ResourcePlan{first}, nil
}

// planOne diffs and renders one instance. Operations that render to no
// command at all are reported as noop.
func (p *Planner) planOne(observed, desired *schema.Instance) (ResourcePlan, error) {
	s, _ := p.reg.Lookup(desired.Kind)
	diff := Diff(s, observed, desired)
	cmds, err := p.emitter.Render(diff)
	if err != nil {
		return ResourcePlan{}, err
	}

	rp := ResourcePlan{
		ID:        desired.ID(),
		Kind:      desired.Kind,
		Key:       desired.Key,
		Parent:    desired.Parent,
		Operation: diff.Operation,
		Changes:   changesOf(s, diff),
		Commands:  cmds,
		Diff:      diff,
	}
	if len(cmds) == 0 {
		rp.Operation = OperationNoop
	}
	return rp, nil
}

// prepareDesired validates desired instances and fills the parent key of
// nested kinds from the single desired or observed parent instance.
func (p *Planner) prepareDesired(observed, desired []*schema.Instance) ([]*schema.Instance, error) {
	out := make([]*schema.Instance, 0, len(desired))
	seen := make(map[string]bool, len(desired))
	for _, in := range desired {
		s, ok := p.reg.Lookup(in.Kind)
		if !ok {
			return nil, NewPermanentError("unknown resource kind", fmt.Errorf("%q", in.Kind)).
				WithCode(ErrCodeUnknownKind).WithResource(in.ID())
		}
		if s.ValidKey != nil && !s.ValidKey.MatchString(in.Key) {
			return nil, NewPermanentError(fmt.Sprintf("invalid key %q", in.Key), nil).
				WithCode(ErrCodeValidation).WithResource(in.ID())
		}
		in = in.Clone()
		s.ExpandAlternatives(in)
		if s.Layout == schema.LayoutNested && in.Parent == "" {
			parent, err := soleParent(s.Parent, desired, observed)
			if err != nil {
				return nil, err.WithResource(in.ID())
			}
			in.Parent = parent
		}
		id := identity(in)
		if seen[id] {
			return nil, NewConflictError("resource declared twice", nil).
				WithCode(ErrCodeDuplicateResource).WithResource(in.ID())
		}
		seen[id] = true
		out = append(out, in)
	}
	return out, nil
}

// soleParent finds the key of the only existing instance of kind, looking
// at desired state first.
func soleParent(kind schema.Kind, sets ...[]*schema.Instance) (string, *EngineError) {
	for _, set := range sets {
		var keys []string
		for _, in := range set {
			if in.Kind == kind && in.Exists && !slices.Contains(keys, in.Key) {
				keys = append(keys, in.Key)
			}
		}
		switch len(keys) {
		case 0:
			continue
		case 1:
			return keys[0], nil
		default:
			return "", NewPermanentError(
				fmt.Sprintf("ambiguous parent: %d %s instances", len(keys), kind), nil,
			).WithCode(ErrCodeMissingParent)
		}
	}
	return "", NewPermanentError(fmt.Sprintf("no %s to attach to", kind), nil).
		WithCode(ErrCodeMissingParent)
}

// changesOf summarizes a diff for plan output.
func changesOf(s *schema.ResourceSchema, d *InstanceDiff) []Change {
	switch d.Operation {
	case OperationCreate:
		var out []Change
		for _, p := range s.Properties {
			v, ok := d.Desired.Properties[p.Name]
			if !ok || v.IsAbsent() || v.Equal(p.Default) {
				continue
			}
			out = append(out, Change{Property: p.Name, Kind: DeltaBecamePresent, After: v.Interface()})
		}
		return out
	case OperationUpdate:
		var out []Change
		for _, delta := range d.Changed() {
			c := Change{Property: delta.Property, Kind: delta.Kind}
			if delta.Kind == DeltaList {
				c.Added, c.Removed = delta.ToAdd, delta.ToRemove
			} else {
				c.Before, c.After = delta.Old.Interface(), delta.New.Interface()
			}
			out = append(out, c)
		}
		return out
	}
	return nil
}

// identity is the matching key between observed and desired instances.
func identity(in *schema.Instance) string {
	return string(in.Kind) + "|" + in.Parent + "|" + in.Key
}

// Drift reports whether applying the plan would change the daemon.
func Drift(p *Plan) DriftStatus {
	if p.HasChanges() {
		return DriftStatusDrifted
	}
	return DriftStatusInSync
}
