package engine

import (
	"encoding/json"
	"fmt"
)

// RunStatus represents the overall status of a reconciliation run.
type RunStatus string

const (
	// RunStatusRunning indicates the run is executing.
	RunStatusRunning RunStatus = "running"

	// RunStatusSucceeded indicates every planned resource was applied.
	RunStatusSucceeded RunStatus = "succeeded"

	// RunStatusFailed indicates the run stopped before applying anything.
	RunStatusFailed RunStatus = "failed"

	// RunStatusPartial indicates some resources were applied before a
	// failure. The daemon may hold a partially applied batch.
	RunStatusPartial RunStatus = "partial"

	// RunStatusPlanned indicates a dry run that stopped after planning.
	RunStatusPlanned RunStatus = "planned"
)

// IsTerminal returns true if the run status represents a final state.
func (s RunStatus) IsTerminal() bool {
	return s != RunStatusRunning
}

// Validate checks if the run status is valid.
func (s RunStatus) Validate() error {
	switch s {
	case RunStatusRunning, RunStatusSucceeded, RunStatusFailed,
		RunStatusPartial, RunStatusPlanned:
		return nil
	default:
		return fmt.Errorf("invalid run status: %s", s)
	}
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (s RunStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (s *RunStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = RunStatus(str)
	return s.Validate()
}

// OperationType is what the planner decided to do with one instance.
type OperationType string

const (
	// OperationCreate brings a missing instance into existence.
	OperationCreate OperationType = "create"

	// OperationUpdate changes properties of an existing instance.
	OperationUpdate OperationType = "update"

	// OperationDelete removes an instance, or resets it to defaults for
	// kinds without a top-level negation.
	OperationDelete OperationType = "delete"

	// OperationNoop means the instance already matches the desired state.
	OperationNoop OperationType = "noop"
)

// IsDestructive returns true if the operation removes configuration.
func (o OperationType) IsDestructive() bool {
	return o == OperationDelete
}

// IsMutating returns true if the operation changes daemon state.
func (o OperationType) IsMutating() bool {
	return o == OperationCreate || o == OperationUpdate || o == OperationDelete
}

// Validate checks if the operation type is valid.
func (o OperationType) Validate() error {
	switch o {
	case OperationCreate, OperationUpdate, OperationDelete, OperationNoop:
		return nil
	default:
		return fmt.Errorf("invalid operation type: %s", o)
	}
}

// ChangeStatus is the outcome of applying one resource plan.
type ChangeStatus string

const (
	// ChangeStatusPending indicates the change has not been attempted.
	ChangeStatusPending ChangeStatus = "pending"

	// ChangeStatusApplied indicates the batch was accepted by the daemon.
	ChangeStatusApplied ChangeStatus = "applied"

	// ChangeStatusFailed indicates the executor reported a failure.
	ChangeStatusFailed ChangeStatus = "failed"

	// ChangeStatusDenied indicates a policy rejected the batch.
	ChangeStatusDenied ChangeStatus = "denied"

	// ChangeStatusSkipped indicates an earlier failure stopped the run.
	ChangeStatusSkipped ChangeStatus = "skipped"

	// ChangeStatusConverged indicates nothing had to be sent.
	ChangeStatusConverged ChangeStatus = "converged"
)

// Validate checks if the change status is valid.
func (s ChangeStatus) Validate() error {
	switch s {
	case ChangeStatusPending, ChangeStatusApplied, ChangeStatusFailed,
		ChangeStatusDenied, ChangeStatusSkipped, ChangeStatusConverged:
		return nil
	default:
		return fmt.Errorf("invalid change status: %s", s)
	}
}

// DriftStatus summarizes a comparison between desired and running state.
type DriftStatus string

const (
	// DriftStatusInSync indicates the running config matches.
	DriftStatusInSync DriftStatus = "in_sync"

	// DriftStatusDrifted indicates at least one resource needs commands.
	DriftStatusDrifted DriftStatus = "drifted"
)

// Validate checks if the drift status is valid.
func (s DriftStatus) Validate() error {
	switch s {
	case DriftStatusInSync, DriftStatusDrifted:
		return nil
	default:
		return fmt.Errorf("invalid drift status: %s", s)
	}
}
