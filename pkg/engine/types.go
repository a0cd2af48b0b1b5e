package engine

import (
	"time"

	"github.com/openfroyo/vtyctl/pkg/schema"
)

// DeltaKind classifies the difference of one property.
type DeltaKind string

const (
	// DeltaUnchanged means observed and desired agree.
	DeltaUnchanged DeltaKind = "unchanged"

	// DeltaScalarChanged means a scalar moved from Old to New.
	DeltaScalarChanged DeltaKind = "scalar_changed"

	// DeltaReplace means an exclusive scalar changed: the old directive is
	// negated before the new one is asserted.
	DeltaReplace DeltaKind = "replace"

	// DeltaList means list entries must be removed and/or added.
	DeltaList DeltaKind = "list_delta"

	// DeltaBecamePresent means an unset scalar gets a value.
	DeltaBecamePresent DeltaKind = "became_present"

	// DeltaBecameAbsent means a set scalar is removed.
	DeltaBecameAbsent DeltaKind = "became_absent"
)

// PropertyDelta is the difference of one property between observed and
// desired state.
type PropertyDelta struct {
	Property string    `json:"property"`
	Kind     DeltaKind `json:"kind"`

	Old schema.Value `json:"-"`
	New schema.Value `json:"-"`

	// ToAdd keeps desired order, ToRemove keeps observed order.
	// The two never intersect.
	ToAdd    []string `json:"to_add,omitempty"`
	ToRemove []string `json:"to_remove,omitempty"`
}

// IsUnchanged reports whether the delta needs no command.
func (d PropertyDelta) IsUnchanged() bool {
	return d.Kind == DeltaUnchanged
}

// InstanceDiff is the result of comparing one observed instance with one
// desired instance.
type InstanceDiff struct {
	Kind      schema.Kind   `json:"kind"`
	Key       string        `json:"key"`
	Parent    string        `json:"parent,omitempty"`
	Operation OperationType `json:"operation"`

	Observed *schema.Instance `json:"-"`
	Desired  *schema.Instance `json:"-"`

	// Deltas are in registry order and include unchanged properties.
	// They are empty for create and delete, which bypass property diffing.
	Deltas []PropertyDelta `json:"deltas,omitempty"`
}

// Delta returns the delta of a named property.
func (d *InstanceDiff) Delta(name string) (PropertyDelta, bool) {
	for _, pd := range d.Deltas {
		if pd.Property == name {
			return pd, true
		}
	}
	return PropertyDelta{}, false
}

// Changed returns every delta that is not unchanged.
func (d *InstanceDiff) Changed() []PropertyDelta {
	var out []PropertyDelta
	for _, pd := range d.Deltas {
		if !pd.IsUnchanged() {
			out = append(out, pd)
		}
	}
	return out
}

// IsUnchanged reports whether the diff holds no change at all.
func (d *InstanceDiff) IsUnchanged() bool {
	return d.Operation == OperationNoop
}

// Change is the serializable form of a property delta, used in plan output
// and in the run journal.
type Change struct {
	Property string    `json:"property" yaml:"property"`
	Kind     DeltaKind `json:"kind" yaml:"kind"`
	Before   any       `json:"before,omitempty" yaml:"before,omitempty"`
	After    any       `json:"after,omitempty" yaml:"after,omitempty"`
	Added    []string  `json:"added,omitempty" yaml:"added,omitempty"`
	Removed  []string  `json:"removed,omitempty" yaml:"removed,omitempty"`
}

// ResourcePlan is the planned work for one instance.
type ResourcePlan struct {
	// ID is the instance identifier, e.g. "static_route[10.0.0.0/8]".
	ID string `json:"id" yaml:"id"`

	Kind      schema.Kind   `json:"kind" yaml:"kind"`
	Key       string        `json:"key" yaml:"key"`
	Parent    string        `json:"parent,omitempty" yaml:"parent,omitempty"`
	Operation OperationType `json:"operation" yaml:"operation"`

	// Changes lists changed properties for updates and the non-default
	// properties for creates.
	Changes []Change `json:"changes,omitempty" yaml:"changes,omitempty"`

	// Commands is the rendered batch, without session framing.
	Commands []string `json:"commands,omitempty" yaml:"commands,omitempty"`

	// Order is the position in execution order.
	Order int `json:"order" yaml:"order"`

	Diff *InstanceDiff `json:"-" yaml:"-"`
}

// Plan is the ordered set of resource plans for one target.
type Plan struct {
	ID        string         `json:"id" yaml:"id"`
	Target    string         `json:"target" yaml:"target"`
	CreatedAt time.Time      `json:"created_at" yaml:"created_at"`
	Digest    string         `json:"digest,omitempty" yaml:"digest,omitempty"`
	Resources []ResourcePlan `json:"resources" yaml:"resources"`
	Summary   PlanSummary    `json:"summary" yaml:"summary"`
}

// PlanSummary counts resources per operation.
type PlanSummary struct {
	Create   int `json:"create" yaml:"create"`
	Update   int `json:"update" yaml:"update"`
	Delete   int `json:"delete" yaml:"delete"`
	Noop     int `json:"noop" yaml:"noop"`
	Commands int `json:"commands" yaml:"commands"`
}

// HasChanges reports whether applying the plan would send any command.
func (p *Plan) HasChanges() bool {
	return p.Summary.Commands > 0
}

// Pending returns the resource plans that carry commands, in order.
func (p *Plan) Pending() []ResourcePlan {
	var out []ResourcePlan
	for _, rp := range p.Resources {
		if len(rp.Commands) > 0 {
			out = append(out, rp)
		}
	}
	return out
}

// ApplyResult is the outcome of one resource transaction.
type ApplyResult struct {
	Resource  string        `json:"resource"`
	Operation OperationType `json:"operation"`
	Status    ChangeStatus  `json:"status"`
	Commands  []string      `json:"commands,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// RunResult is the outcome of one reconciliation of a target.
type RunResult struct {
	RunID       string        `json:"run_id"`
	Target      string        `json:"target"`
	Status      RunStatus     `json:"status"`
	Plan        *Plan         `json:"plan,omitempty"`
	Changes     []ApplyResult `json:"changes,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Error       string        `json:"error,omitempty"`
}

// Applied counts transactions accepted by the daemon.
func (r *RunResult) Applied() int {
	n := 0
	for _, c := range r.Changes {
		if c.Status == ChangeStatusApplied {
			n++
		}
	}
	return n
}
