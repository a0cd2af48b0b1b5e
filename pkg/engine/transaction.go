package engine

import (
	"context"
)

// Session framing sent around every command batch.
const (
	SessionOpen    = "configure terminal"
	SessionClose   = "end"
	SessionPersist = "write memory"
)

// Wrap brackets commands with session framing. An empty list wraps to nil
// so that converged resources never open a session.
func Wrap(cmds []string) []string {
	if len(cmds) == 0 {
		return nil
	}
	batch := make([]string, 0, len(cmds)+3)
	batch = append(batch, SessionOpen)
	batch = append(batch, cmds...)
	return append(batch, SessionClose, SessionPersist)
}

// Transaction submits framed batches to one executor.
type Transaction struct {
	exec Executor
}

// NewTransaction creates a transaction wrapper around exec.
func NewTransaction(exec Executor) *Transaction {
	return &Transaction{exec: exec}
}

// Apply submits cmds as a single batch. It does not retry and does not
// roll back: a failure part way through can leave the daemon partially
// configured, and the caller converges by reconciling again.
func (t *Transaction) Apply(ctx context.Context, cmds []string) error {
	batch := Wrap(cmds)
	if batch == nil {
		return nil
	}
	if err := t.exec.Submit(ctx, batch); err != nil {
		return NewTransientError("command batch failed", err).
			WithCode(ErrCodeExecutionFailed).
			WithDetail("commands", len(cmds))
	}
	return nil
}
