package engine

import (
	"context"
)

// Executor is the management shell of one routing daemon.
// Implementations own timeouts and cancellation; the engine only passes
// the context through.
type Executor interface {
	// RunningConfig returns the full "show running-config" text.
	RunningConfig(ctx context.Context) (string, error)

	// Submit sends one framed command batch in order, within one session.
	Submit(ctx context.Context, batch []string) error
}

// ConfigSource provides configuration text from somewhere other than the
// live daemon, such as the saved startup file.
type ConfigSource interface {
	ReadConfig(ctx context.Context) (string, error)
}

// Guard inspects a resource plan before its batch is submitted.
// It returns the reasons the batch must not be sent, if any.
type Guard interface {
	Check(ctx context.Context, target string, rp ResourcePlan) ([]string, error)
}

// Journal records reconciliation runs.
type Journal interface {
	// StartRun records a new run together with the running config it
	// observed.
	StartRun(ctx context.Context, run *RunResult, runningConfig string) error

	// RecordChange records the outcome of one resource transaction.
	RecordChange(ctx context.Context, runID string, rp ResourcePlan, result ApplyResult) error

	// FinishRun records the final status of a run.
	FinishRun(ctx context.Context, run *RunResult) error
}
