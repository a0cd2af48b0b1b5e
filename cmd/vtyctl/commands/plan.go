package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/iter"
	"github.com/spf13/cobra"

	"github.com/openfroyo/vtyctl/pkg/config"
	"github.com/openfroyo/vtyctl/pkg/engine"
	"github.com/openfroyo/vtyctl/pkg/telemetry"
)

func newPlanCommand() *cobra.Command {
	var (
		output       string
		purge        []string
		detailedExit bool
	)

	cmd := &cobra.Command{
		Use:   "plan FILES...",
		Short: "Show the commands that would converge each target",
		Long: `Compare desired state with the running configuration of every selected
target and print the resulting plan.

For each resource the plan shows the operation, the property changes and
the exact vtysh commands. Nothing is sent to the daemons.`,
		Example: `  # Plan every target
  vtyctl plan routers.cue

  # Plan one target and also remove unmanaged static routes
  vtyctl plan routers.cue --target edge1 --purge static_route

  # Machine readable plan, exit status 2 when changes are pending
  vtyctl plan routers.cue --output json --detailed-exitcode`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd, output)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			e, err := loadEnv(ctx, envOptions{})
			if err != nil {
				return err
			}
			defer e.close()

			popts, err := e.planOptions(purge)
			if err != nil {
				return err
			}
			pc, err := e.loadDesired(ctx, args)
			if err != nil {
				return err
			}

			conns, closeAll, err := openTargets(e.settings, log.Logger)
			if err != nil {
				return err
			}
			defer closeAll()

			plans, err := iter.MapErr(conns, func(c **targetConn) (*engine.Plan, error) {
				return e.planTarget(ctx, *c, pc, popts)
			})
			if err != nil {
				return err
			}

			if format == formatText {
				for _, p := range plans {
					writePlanText(cmd.OutOrStdout(), p)
				}
			} else if err := writeStructured(cmd.OutOrStdout(), format, plans); err != nil {
				return err
			}

			if detailedExit {
				for _, p := range plans {
					if p.HasChanges() {
						return &ExitError{Code: 2}
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", formatText, "output format (text, yaml or json)")
	cmd.Flags().StringSliceVar(&purge, "purge", nil, "also delete unmanaged instances of these kinds")
	cmd.Flags().BoolVar(&detailedExit, "detailed-exitcode", false, "exit with status 2 when any target has changes")

	return cmd
}

func (e *env) planTarget(ctx context.Context, c *targetConn, pc *config.ParsedConfig, opts engine.PlanOptions) (plan *engine.Plan, err error) {
	op := telemetry.StartOperation(e.tel.WithContext(ctx), "plan", telemetry.AttrTarget.String(c.name))
	defer func() { op.End(err) }()
	ctx = op.Ctx

	desired, err := pc.ToDesired(e.reg, c.name)
	if err != nil {
		return nil, fmt.Errorf("target %s: %w", c.name, err)
	}
	r, err := engine.NewReconciler(c.name, e.reg, c.exec, e.reconcilerOptions()...)
	if err != nil {
		return nil, err
	}
	plan, err = r.Plan(ctx, desired, opts)
	if err != nil {
		return nil, fmt.Errorf("target %s: %w", c.name, err)
	}
	op.Logger.Debug().
		Int("commands", plan.Summary.Commands).
		Dur("duration", op.Timer.Duration()).
		Msg("Target planned")
	return plan, nil
}
