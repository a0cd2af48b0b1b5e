package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/iter"
	"github.com/spf13/cobra"

	"github.com/openfroyo/vtyctl/pkg/config"
	"github.com/openfroyo/vtyctl/pkg/engine"
)

// driftReport is the result of one drift check.
type driftReport struct {
	Target string             `json:"target" yaml:"target"`
	Status engine.DriftStatus `json:"status" yaml:"status"`
	Source string             `json:"source" yaml:"source"`
	Plan   *engine.Plan       `json:"plan" yaml:"plan"`
}

func newDriftCommand() *cobra.Command {
	var (
		output  string
		startup bool
		purge   []string
	)

	cmd := &cobra.Command{
		Use:   "drift FILES...",
		Short: "Detect configuration drift",
		Long: `Check whether targets still match the desired state.

By default the running configuration is compared. With --startup the
saved startup configuration is compared instead, which shows changes that
were applied but never written with 'write memory'.

The exit status is 0 when every target is in sync and 2 when any drifted.`,
		Example: `  # Check running configurations
  vtyctl drift routers.cue

  # Check what a daemon would come up with after a restart
  vtyctl drift routers.cue --startup --target edge1`,
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

			reports, err := iter.MapErr(conns, func(c **targetConn) (driftReport, error) {
				return e.driftTarget(ctx, *c, pc, popts, startup)
			})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			drifted := false
			for _, r := range reports {
				if r.Status == engine.DriftStatusDrifted {
					drifted = true
				}
				if format != formatText {
					continue
				}
				fmt.Fprintf(w, "%s: %s (%s)\n", r.Target, r.Status, r.Source)
				if r.Status == engine.DriftStatusDrifted {
					writePlanText(w, r.Plan)
				}
			}
			if format != formatText {
				if err := writeStructured(w, format, reports); err != nil {
					return err
				}
			}

			if drifted {
				return &ExitError{Code: 2}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", formatText, "output format (text, yaml or json)")
	cmd.Flags().BoolVar(&startup, "startup", false, "compare the saved startup configuration")
	cmd.Flags().StringSliceVar(&purge, "purge", nil, "also report unmanaged instances of these kinds")

	return cmd
}

func (e *env) driftTarget(ctx context.Context, c *targetConn, pc *config.ParsedConfig, opts engine.PlanOptions, startup bool) (driftReport, error) {
	report := driftReport{Target: c.name, Source: "running-config"}

	desired, err := pc.ToDesired(e.reg, c.name)
	if err != nil {
		return report, fmt.Errorf("target %s: %w", c.name, err)
	}
	r, err := engine.NewReconciler(c.name, e.reg, c.exec, engine.WithTelemetry(e.tel))
	if err != nil {
		return report, err
	}

	var src engine.ConfigSource
	if startup {
		src = c.startup
		report.Source = "startup-config"
	}
	report.Plan, report.Status, err = r.Drift(ctx, src, desired, opts)
	if err != nil {
		return report, fmt.Errorf("target %s: %w", c.name, err)
	}
	return report, nil
}
