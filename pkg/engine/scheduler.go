package engine

import (
	"context"
	"math"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/openfroyo/vtyctl/pkg/schema"
)

// TargetRun pairs a reconciler with the desired state for its daemon.
type TargetRun struct {
	Reconciler *Reconciler
	Desired    []*schema.Instance
}

// TargetOutcome is the result of reconciling one target.
type TargetOutcome struct {
	Target   string
	Run      *RunResult
	Attempts int
	Err      error
}

// ScheduleOptions tunes a fleet reconciliation.
type ScheduleOptions struct {
	ReconcileOptions

	// MaxParallel bounds how many daemons are reconciled at once.
	MaxParallel int

	// MaxAttempts is the number of tries per target for transient errors.
	MaxAttempts int

	// BaseDelay is the first retry delay. It doubles on every attempt.
	BaseDelay time.Duration
}

// Scheduler reconciles several daemons in parallel. Runs against one
// daemon are always sequential; each target is independent.
type Scheduler struct {
	maxParallel int
	sleep       func(context.Context, time.Duration) error
}

// NewScheduler creates a scheduler with at most maxParallel workers.
func NewScheduler(maxParallel int) *Scheduler {
	if maxParallel <= 0 {
		maxParallel = 4
	}
	return &Scheduler{maxParallel: maxParallel, sleep: sleepCtx}
}

// Run reconciles every target and returns outcomes in input order.
// A target whose run fails with a transient error is reconciled again from
// scratch: the fresh plan only carries what the failed run left undone.
func (s *Scheduler) Run(ctx context.Context, targets []TargetRun, opts ScheduleOptions) []TargetOutcome {
	workers := s.maxParallel
	if opts.MaxParallel > 0 && opts.MaxParallel < workers {
		workers = opts.MaxParallel
	}
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	outcomes := make([]TargetOutcome, len(targets))
	p := pool.New().WithMaxGoroutines(workers)
	for i, t := range targets {
		p.Go(func() {
			outcomes[i] = s.runTarget(ctx, t, opts, attempts)
		})
	}
	p.Wait()
	return outcomes
}

func (s *Scheduler) runTarget(ctx context.Context, t TargetRun, opts ScheduleOptions, attempts int) TargetOutcome {
	out := TargetOutcome{Target: t.Reconciler.Target()}
	for attempt := 0; attempt < attempts; attempt++ {
		out.Attempts = attempt + 1
		out.Run, out.Err = t.Reconciler.Reconcile(ctx, t.Desired, opts.ReconcileOptions)
		if out.Err == nil || !IsRetryable(out.Err) || attempt == attempts-1 {
			break
		}
		t.Reconciler.log().WithError(out.Err).Warn().
			Int("attempt", out.Attempts).
			Msg("transient failure, reconciling again")
		if err := s.sleep(ctx, backoff(opts.BaseDelay, attempt)); err != nil {
			out.Err = err
			break
		}
	}
	return out
}

// backoff returns base * 2^attempt, capped at one minute.
func backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	delay := base * time.Duration(math.Pow(2, float64(attempt)))
	if delay > time.Minute {
		delay = time.Minute
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Failed reports whether any outcome carries an error.
func Failed(outcomes []TargetOutcome) bool {
	for _, o := range outcomes {
		if o.Err != nil {
			return true
		}
	}
	return false
}
