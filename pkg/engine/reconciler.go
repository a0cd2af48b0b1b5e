package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/openfroyo/vtyctl/pkg/parser"
	"github.com/openfroyo/vtyctl/pkg/schema"
	"github.com/openfroyo/vtyctl/pkg/telemetry"
)

// ReconcileOptions controls one reconciliation.
type ReconcileOptions struct {
	PlanOptions

	// DryRun stops after planning and the policy check. Nothing is sent
	// to the daemon.
	DryRun bool
}

// Reconciler drives one daemon towards desired state: it reads the running
// configuration, plans, and applies one transaction per resource.
type Reconciler struct {
	target  string
	planner *Planner
	parser  *parser.Parser
	exec    Executor
	guard   Guard
	journal Journal
	tel     *telemetry.Telemetry
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithGuard checks every batch before it is submitted.
func WithGuard(g Guard) ReconcilerOption {
	return func(r *Reconciler) { r.guard = g }
}

// WithJournal records runs and their changes.
func WithJournal(j Journal) ReconcilerOption {
	return func(r *Reconciler) { r.journal = j }
}

// WithTelemetry sets the logger, tracer and metrics.
func WithTelemetry(t *telemetry.Telemetry) ReconcilerOption {
	return func(r *Reconciler) { r.tel = t }
}

// NewReconciler creates a reconciler for the daemon behind exec.
func NewReconciler(target string, reg *schema.Registry, exec Executor, opts ...ReconcilerOption) (*Reconciler, error) {
	planner, err := NewPlanner(reg)
	if err != nil {
		return nil, err
	}
	r := &Reconciler{
		target:  target,
		planner: planner,
		parser:  parser.New(reg),
		exec:    exec,
		tel:     telemetry.Noop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Target returns the daemon name this reconciler drives.
func (r *Reconciler) Target() string {
	return r.target
}

func (r *Reconciler) log() *telemetry.Logger {
	return r.tel.Logger.NewComponentLogger("reconciler").WithTarget(r.target)
}

// Observe reads and parses the running configuration.
func (r *Reconciler) Observe(ctx context.Context) (string, []*schema.Instance, error) {
	text, err := r.exec.RunningConfig(ctx)
	r.tel.Metrics.RecordConfigFetch(r.target, err)
	if err != nil {
		return "", nil, NewTransientError("failed to read running configuration", err).
			WithCode(ErrCodeFetchFailed)
	}
	return text, r.parser.Parse(text), nil
}

// Plan computes the plan against the running configuration.
func (r *Reconciler) Plan(ctx context.Context, desired []*schema.Instance, opts PlanOptions) (*Plan, error) {
	text, observed, err := r.Observe(ctx)
	if err != nil {
		return nil, err
	}
	return r.plan(text, observed, desired, opts)
}

// PlanFrom computes the plan against configuration text from src instead
// of the live daemon.
func (r *Reconciler) PlanFrom(ctx context.Context, src ConfigSource, desired []*schema.Instance, opts PlanOptions) (*Plan, error) {
	text, err := src.ReadConfig(ctx)
	if err != nil {
		return nil, NewTransientError("failed to read configuration source", err).
			WithCode(ErrCodeFetchFailed)
	}
	return r.plan(text, r.parser.Parse(text), desired, opts)
}

func (r *Reconciler) plan(text string, observed, desired []*schema.Instance, opts PlanOptions) (*Plan, error) {
	plan, err := r.planner.Plan(r.target, observed, desired, opts)
	if err != nil {
		r.recordError(err)
		return nil, err
	}
	plan.Digest = Digest(text)
	for _, rp := range plan.Resources {
		r.tel.Metrics.RecordResourcePlanned(string(rp.Kind), string(rp.Operation))
	}
	return plan, nil
}

// Drift plans against src, or the live daemon when src is nil, and
// reports whether the configuration differs from desired state.
func (r *Reconciler) Drift(ctx context.Context, src ConfigSource, desired []*schema.Instance, opts PlanOptions) (*Plan, DriftStatus, error) {
	ctx, span := r.tel.Tracer.StartRunSpan(ctx, "", r.target, "drift")
	defer span.End()

	var plan *Plan
	var err error
	if src != nil {
		plan, err = r.PlanFrom(ctx, src, desired, opts)
	} else {
		plan, err = r.Plan(ctx, desired, opts)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, "", err
	}

	status := Drift(plan)
	r.tel.Metrics.RecordDrift(r.target, string(status))
	telemetry.RecordSuccess(span)
	return plan, status, nil
}

// Reconcile plans and applies. Each resource plan is its own framed
// transaction. The first failure stops the run; resources already applied
// stay applied and the run is reported partial.
func (r *Reconciler) Reconcile(ctx context.Context, desired []*schema.Instance, opts ReconcileOptions) (*RunResult, error) {
	run := &RunResult{
		RunID:     uuid.NewString(),
		Target:    r.target,
		Status:    RunStatusRunning,
		StartedAt: time.Now(),
	}
	mode := "apply"
	if opts.DryRun {
		mode = "plan"
	}

	log := r.log().WithRunID(run.RunID)
	ctx, span := r.tel.Tracer.StartRunSpan(ctx, run.RunID, r.target, mode)
	defer span.End()
	r.tel.Metrics.RecordRunStarted(r.target, mode)

	err := r.reconcile(ctx, log, run, desired, opts)

	run.CompletedAt = time.Now()
	if err != nil {
		run.Error = err.Error()
		telemetry.RecordError(span, err)
		span.SetAttributes(telemetry.AttrErrorCode.String(r.recordError(err)))
	} else {
		telemetry.RecordSuccess(span)
	}
	span.SetAttributes(telemetry.AttrRunStatus.String(string(run.Status)))
	r.tel.Metrics.RecordRunCompleted(r.target, string(run.Status), run.CompletedAt.Sub(run.StartedAt))

	if r.journal != nil && run.Plan != nil {
		if jerr := r.journal.FinishRun(ctx, run); jerr != nil {
			log.WithError(jerr).Warn().Msg("failed to record run result")
		}
	}

	log.Info().
		Str("status", string(run.Status)).
		Int("applied", run.Applied()).
		Dur("duration", run.CompletedAt.Sub(run.StartedAt)).
		Msg("reconcile finished")
	return run, err
}

func (r *Reconciler) reconcile(ctx context.Context, log *telemetry.Logger, run *RunResult, desired []*schema.Instance, opts ReconcileOptions) error {
	text, observed, err := r.Observe(ctx)
	if err != nil {
		run.Status = RunStatusFailed
		return err
	}

	plan, err := r.plan(text, observed, desired, opts.PlanOptions)
	if err != nil {
		run.Status = RunStatusFailed
		return err
	}
	run.Plan = plan
	trace.SpanFromContext(ctx).SetAttributes(telemetry.AttrPlanID.String(plan.ID))

	if r.journal != nil {
		if err := r.journal.StartRun(ctx, run, text); err != nil {
			log.WithError(err).Warn().Msg("failed to record run start")
		}
	}

	log.Info().
		Str("plan_id", plan.ID).
		Int("create", plan.Summary.Create).
		Int("update", plan.Summary.Update).
		Int("delete", plan.Summary.Delete).
		Int("commands", plan.Summary.Commands).
		Msg("plan computed")

	if opts.DryRun {
		run.Status = RunStatusPlanned
		return r.check(ctx, log, run, plan)
	}

	tx := NewTransaction(r.exec)
	var failure error
	for _, rp := range plan.Resources {
		result := ApplyResult{Resource: rp.ID, Operation: rp.Operation, Commands: rp.Commands}
		switch {
		case len(rp.Commands) == 0:
			result.Status = ChangeStatusConverged
		case failure != nil:
			result.Status = ChangeStatusSkipped
		default:
			result, failure = r.applyOne(ctx, log, tx, rp)
		}
		run.Changes = append(run.Changes, result)
		r.tel.Metrics.RecordResourceApplied(string(rp.Kind), string(result.Status))

		if r.journal != nil && result.Status != ChangeStatusConverged {
			if err := r.journal.RecordChange(ctx, run.RunID, rp, result); err != nil {
				log.WithError(err).Warn().Str("resource", rp.ID).Msg("failed to record change")
			}
		}
	}

	switch {
	case failure == nil:
		run.Status = RunStatusSucceeded
	case run.Applied() > 0:
		run.Status = RunStatusPartial
	default:
		run.Status = RunStatusFailed
	}
	return failure
}

// applyOne runs the guard and submits one resource batch.
func (r *Reconciler) applyOne(ctx context.Context, log *telemetry.Logger, tx *Transaction, rp ResourcePlan) (ApplyResult, error) {
	result := ApplyResult{Resource: rp.ID, Operation: rp.Operation, Commands: rp.Commands}
	log = log.WithResource(rp.ID, string(rp.Kind))
	ctx, span := r.tel.Tracer.StartResourceSpan(ctx, rp.ID, string(rp.Kind), string(rp.Operation))
	defer span.End()
	span.SetAttributes(telemetry.AttrCommands.Int(len(rp.Commands)))

	if err := r.guardOne(ctx, log, rp); err != nil {
		result.Status = ChangeStatusDenied
		if !HasCode(err, ErrCodePolicyDenied) || errors.Unwrap(err) != nil {
			result.Status = ChangeStatusFailed
		}
		result.Error = err.Error()
		telemetry.RecordError(span, err)
		return result, err
	}

	timer := telemetry.NewTimer()
	err := tx.Apply(ctx, rp.Commands)
	result.Duration = timer.Duration()
	r.tel.Metrics.RecordSubmit(r.target, len(rp.Commands), result.Duration)

	if err != nil {
		var ee *EngineError
		if !errors.As(err, &ee) {
			ee = NewTransientError("command batch failed", err)
		}
		ee = ee.WithResource(rp.ID).WithOperation(string(rp.Operation))
		result.Status = ChangeStatusFailed
		result.Error = ee.Error()
		telemetry.RecordError(span, ee)
		log.WithError(err).Error().Strs("commands", rp.Commands).Msg("batch failed")
		return result, ee
	}

	result.Status = ChangeStatusApplied
	telemetry.RecordSuccess(span)
	log.Debug().Str("operation", string(rp.Operation)).Int("commands", len(rp.Commands)).Msg("batch applied")
	return result, nil
}

// guardOne asks the guard about one batch. A denial is a permanent
// POLICY_DENIED error without a cause; a failed evaluation wraps its cause.
func (r *Reconciler) guardOne(ctx context.Context, log *telemetry.Logger, rp ResourcePlan) error {
	if r.guard == nil {
		return nil
	}
	reasons, err := r.guard.Check(ctx, r.target, rp)
	if err != nil {
		return NewPermanentError("policy evaluation failed", err).
			WithCode(ErrCodePolicyDenied).WithResource(rp.ID).WithOperation(string(rp.Operation))
	}
	if len(reasons) > 0 {
		log.Warn().Strs("reasons", reasons).Msg("batch denied")
		return NewPermanentError("denied by policy: "+strings.Join(reasons, "; "), nil).
			WithCode(ErrCodePolicyDenied).WithResource(rp.ID).WithOperation(string(rp.Operation))
	}
	return nil
}

// check runs the guard over a dry-run plan. Every batch is evaluated; the
// first denial is returned after all of them are recorded as pending or
// denied.
func (r *Reconciler) check(ctx context.Context, log *telemetry.Logger, run *RunResult, plan *Plan) error {
	var first error
	for _, rp := range plan.Resources {
		result := ApplyResult{Resource: rp.ID, Operation: rp.Operation, Commands: rp.Commands}
		if len(rp.Commands) == 0 {
			result.Status = ChangeStatusConverged
		} else if err := r.guardOne(ctx, log.WithResource(rp.ID, string(rp.Kind)), rp); err != nil {
			result.Status = ChangeStatusDenied
			result.Error = err.Error()
			if first == nil {
				first = err
			}
		} else {
			result.Status = ChangeStatusPending
		}
		run.Changes = append(run.Changes, result)
	}
	return first
}

func (r *Reconciler) recordError(err error) string {
	code := ErrCodeInternal
	var ee *EngineError
	if errors.As(err, &ee) && ee.Code != "" {
		code = ee.Code
	}
	r.tel.Metrics.RecordError(code)
	return code
}

// Digest fingerprints configuration text. Journals store it to tell
// whether the daemon changed between runs.
func Digest(text string) string {
	return strconv.FormatUint(xxhash.Sum64String(text), 16)
}

// String implements fmt.Stringer for log output.
func (r *RunResult) String() string {
	return fmt.Sprintf("%s %s: %s (%d applied)", r.Target, r.RunID, r.Status, r.Applied())
}
