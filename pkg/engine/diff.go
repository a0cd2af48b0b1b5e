package engine

import (
	"github.com/openfroyo/vtyctl/pkg/schema"
)

// Diff compares an observed instance with a desired one. A nil instance is
// treated as not existing. A property missing from the desired instance is
// unmanaged and always diffs as unchanged.
//
// Diff never fails: every pairing has a defined result.
func Diff(s *schema.ResourceSchema, observed, desired *schema.Instance) *InstanceDiff {
	d := &InstanceDiff{Kind: s.Kind, Observed: observed, Desired: desired}
	switch {
	case desired != nil:
		d.Key, d.Parent = desired.Key, desired.Parent
	case observed != nil:
		d.Key, d.Parent = observed.Key, observed.Parent
	}

	obsExists := observed != nil && observed.Exists
	desExists := desired != nil && desired.Exists
	switch {
	case !obsExists && desExists:
		d.Operation = OperationCreate
		return d
	case obsExists && !desExists:
		d.Operation = OperationDelete
		return d
	case !obsExists && !desExists:
		d.Operation = OperationNoop
		return d
	}

	d.Operation = OperationNoop
	d.Deltas = make([]PropertyDelta, 0, len(s.Properties))
	for i := range s.Properties {
		p := &s.Properties[i]
		var delta PropertyDelta
		if !desired.Has(p.Name) {
			delta = PropertyDelta{Property: p.Name, Kind: DeltaUnchanged}
		} else {
			delta = compareProperty(p, observed.Properties[p.Name], desired.Properties[p.Name])
		}
		if !delta.IsUnchanged() {
			d.Operation = OperationUpdate
		}
		d.Deltas = append(d.Deltas, delta)
	}
	return d
}

func compareProperty(p *schema.PropertyDescriptor, have, want schema.Value) PropertyDelta {
	delta := PropertyDelta{Property: p.Name, Kind: DeltaUnchanged, Old: have.Clone(), New: want.Clone()}
	if p.Type == schema.TypeList {
		delta.ToAdd, delta.ToRemove = listDelta(have.Items(), want.Items())
		if len(delta.ToAdd) > 0 || len(delta.ToRemove) > 0 {
			delta.Kind = DeltaList
		}
		return delta
	}

	switch {
	case have.Equal(want):
	case have.IsAbsent():
		delta.Kind = DeltaBecamePresent
	case want.IsAbsent():
		delta.Kind = DeltaBecameAbsent
	case p.Exclusive:
		delta.Kind = DeltaReplace
	default:
		delta.Kind = DeltaScalarChanged
	}
	return delta
}

// listDelta returns desired minus observed in desired order and observed
// minus desired in observed order. Repeated entries collapse.
func listDelta(observed, desired []string) (toAdd, toRemove []string) {
	have := make(map[string]bool, len(observed))
	for _, item := range observed {
		have[item] = true
	}
	want := make(map[string]bool, len(desired))
	for _, item := range desired {
		want[item] = true
	}

	added := make(map[string]bool)
	for _, item := range desired {
		if !have[item] && !added[item] {
			toAdd = append(toAdd, item)
			added[item] = true
		}
	}
	removed := make(map[string]bool)
	for _, item := range observed {
		if !want[item] && !removed[item] {
			toRemove = append(toRemove, item)
			removed[item] = true
		}
	}
	return toAdd, toRemove
}
