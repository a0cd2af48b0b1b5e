package stores

import (
	"time"

	"github.com/openfroyo/vtyctl/pkg/engine"
)

// Run is one journaled reconciliation of a target.
type Run struct {
	ID     string           `json:"id"`
	Target string           `json:"target"`
	Status engine.RunStatus `json:"status"`
	PlanID string           `json:"plan_id"`

	// ConfigDigest identifies the running configuration observed at the
	// start of the run. The text itself is kept in snapshots.
	ConfigDigest string `json:"config_digest"`

	Summary     engine.PlanSummary `json:"summary"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
	Error       *string            `json:"error,omitempty"`
}

// Change is the outcome of one resource transaction within a run.
type Change struct {
	ID         int64                `json:"id"`
	RunID      string               `json:"run_id"`
	Resource   string               `json:"resource"`
	Kind       string               `json:"kind"`
	Operation  engine.OperationType `json:"operation"`
	Status     engine.ChangeStatus  `json:"status"`
	Commands   []string             `json:"commands"`
	Error      *string              `json:"error,omitempty"`
	Duration   time.Duration        `json:"duration"`
	RecordedAt time.Time            `json:"recorded_at"`
}

// Snapshot is a running configuration seen on a target. Identical texts
// share one snapshot.
type Snapshot struct {
	Target    string    `json:"target"`
	Digest    string    `json:"digest"`
	Config    string    `json:"config"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// RunFilter narrows ListRuns. Zero fields match everything.
type RunFilter struct {
	Target string
	Status engine.RunStatus
	Limit  int
	Offset int
}
