package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/vtyctl/pkg/config"
	"github.com/openfroyo/vtyctl/pkg/engine"
)

func newApplyCommand() *cobra.Command {
	var (
		dryRun       bool
		allowDestroy bool
		purge        []string
		parallel     int
	)

	cmd := &cobra.Command{
		Use:   "apply FILES...",
		Short: "Converge targets to the desired state",
		Long: `Apply desired state to every selected target.

Each target is planned against its running configuration and every
resource with pending commands is sent as one framed vtysh batch. Batches
are checked by the policy engine first. The first rejected batch stops the
run of that target; other targets carry on. Targets failing with a
transient error are reconciled again with exponential backoff.

Every run is recorded in the journal when a store path is configured.`,
		Example: `  # Apply to every target
  vtyctl apply routers.cue pim.star

  # Check policies without sending anything
  vtyctl apply routers.cue --dry-run

  # Apply a plan that removes BGP routers
  vtyctl apply routers.cue --target edge1 --allow-destroy`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := loadEnv(ctx, envOptions{
				journal:      true,
				guard:        true,
				allowDestroy: allowDestroy,
				dryRun:       dryRun,
			})
			if err != nil {
				return err
			}
			defer e.close()

			popts, err := e.planOptions(purge)
			if err != nil {
				return err
			}
			if parallel > 0 {
				e.settings.Apply.Parallel = parallel
			}

			conns, closeAll, err := openTargets(e.settings, log.Logger)
			if err != nil {
				return err
			}
			defer closeAll()

			outcomes, err := e.applyAll(ctx, conns, args, engine.ReconcileOptions{PlanOptions: popts, DryRun: dryRun})
			if err != nil {
				return err
			}
			writeOutcomes(cmd.OutOrStdout(), outcomes, dryRun)

			if engine.Failed(outcomes) {
				return &ExitError{Code: 1}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "plan and check policies without applying")
	cmd.Flags().BoolVar(&allowDestroy, "allow-destroy", false, "allow plans that delete routers")
	cmd.Flags().StringSliceVar(&purge, "purge", nil, "also delete unmanaged instances of these kinds")
	cmd.Flags().IntVar(&parallel, "parallel", 0, "targets reconciled at once (default from settings)")

	return cmd
}

// applyAll loads desired state and reconciles every connected target.
func (e *env) applyAll(ctx context.Context, conns []*targetConn, paths []string, opts engine.ReconcileOptions) ([]engine.TargetOutcome, error) {
	pc, err := e.loadDesired(ctx, paths)
	if err != nil {
		return nil, err
	}
	runs, err := e.targetRuns(conns, pc)
	if err != nil {
		return nil, err
	}

	apply := e.settings.Apply
	scheduler := engine.NewScheduler(apply.Parallel)
	return scheduler.Run(ctx, runs, engine.ScheduleOptions{
		ReconcileOptions: opts,
		MaxParallel:      apply.Parallel,
		MaxAttempts:      apply.Attempts,
		BaseDelay:        apply.Backoff,
	}), nil
}

func (e *env) targetRuns(conns []*targetConn, pc *config.ParsedConfig) ([]engine.TargetRun, error) {
	runs := make([]engine.TargetRun, 0, len(conns))
	for _, c := range conns {
		desired, err := pc.ToDesired(e.reg, c.name)
		if err != nil {
			return nil, fmt.Errorf("target %s: %w", c.name, err)
		}
		r, err := engine.NewReconciler(c.name, e.reg, c.exec, e.reconcilerOptions()...)
		if err != nil {
			return nil, err
		}
		runs = append(runs, engine.TargetRun{Reconciler: r, Desired: desired})
	}
	return runs, nil
}

func writeOutcomes(w io.Writer, outcomes []engine.TargetOutcome, dryRun bool) {
	for _, o := range outcomes {
		if dryRun && o.Run != nil && o.Run.Plan != nil {
			writePlanText(w, o.Run.Plan)
		}
		switch {
		case o.Err != nil:
			fmt.Fprintf(w, "%s: %s after %d attempt(s): %v\n", o.Target, runStatus(o), o.Attempts, o.Err)
		case o.Run != nil:
			fmt.Fprintln(w, o.Run.String())
		}
	}
}

func runStatus(o engine.TargetOutcome) engine.RunStatus {
	if o.Run == nil {
		return engine.RunStatusFailed
	}
	return o.Run.Status
}
