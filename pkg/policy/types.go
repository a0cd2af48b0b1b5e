package policy

import (
	"time"

	"github.com/openfroyo/vtyctl/pkg/engine"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for warnings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for errors that should block operations.
	SeverityError Severity = "error"

	// SeverityCritical is for critical violations that must be addressed immediately.
	SeverityCritical Severity = "critical"
)

// Blocking reports whether violations of this severity stop a batch.
func (s Severity) Blocking() bool {
	return s == SeverityError || s == SeverityCritical
}

// Policy represents a policy rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code. Violations are read from the
	// deny set of its package.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Builtin marks policies shipped with vtyctl.
	Builtin bool `json:"builtin,omitempty"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Metadata contains additional policy metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// PolicyViolation represents a single policy violation.
type PolicyViolation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// Resource is the resource ID that violated the policy.
	Resource string `json:"resource,omitempty"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`
}

// PolicyResult represents the result of policy evaluation.
type PolicyResult struct {
	// Allowed is false when any violation is blocking.
	Allowed bool `json:"allowed"`

	// Violations lists blocking violations.
	Violations []PolicyViolation `json:"violations,omitempty"`

	// Warnings lists violations that don't block operations.
	Warnings []PolicyViolation `json:"warnings,omitempty"`

	// EvaluatedAt is when the policy was evaluated.
	EvaluatedAt time.Time `json:"evaluated_at"`

	// EvaluatedPolicies lists the names of policies that were evaluated.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// Options are the operator switches policies can consult as input.options.
type Options struct {
	// AllowDestroy permits removing BGP routers and the default route.
	AllowDestroy bool `json:"allow_destroy"`

	// MaxCommands caps the size of one batch. Zero means no cap.
	MaxCommands int `json:"max_commands"`

	// DryRun is set while planning.
	DryRun bool `json:"dry_run"`
}

// PolicyInput is the document a policy sees as input.
type PolicyInput struct {
	// Target is the daemon the batch is for.
	Target string `json:"target"`

	// Resource is the planned work for one instance.
	Resource *ResourceInput `json:"resource"`

	Options Options `json:"options"`

	// Timestamp is when the evaluation is occurring.
	Timestamp time.Time `json:"timestamp"`
}

// ResourceInput is the policy view of an engine.ResourcePlan.
type ResourceInput struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Key       string          `json:"key"`
	Parent    string          `json:"parent,omitempty"`
	Operation string          `json:"operation"`
	Changes   []engine.Change `json:"changes"`
	Commands  []string        `json:"commands"`
}

func newResourceInput(rp engine.ResourcePlan) *ResourceInput {
	ri := &ResourceInput{
		ID:        rp.ID,
		Kind:      string(rp.Kind),
		Key:       rp.Key,
		Parent:    rp.Parent,
		Operation: string(rp.Operation),
		Changes:   rp.Changes,
		Commands:  rp.Commands,
	}
	if ri.Changes == nil {
		ri.Changes = []engine.Change{}
	}
	if ri.Commands == nil {
		ri.Commands = []string{}
	}
	return ri
}
