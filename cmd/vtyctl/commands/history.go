package commands

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/vtyctl/pkg/engine"
	"github.com/openfroyo/vtyctl/pkg/stores"
)

// runDetail is a run with the changes it recorded.
type runDetail struct {
	stores.Run `yaml:",inline"`
	Changes    []*stores.Change `json:"changes" yaml:"changes"`
}

func newHistoryCommand() *cobra.Command {
	var (
		output     string
		limit      int
		status     string
		prune      time.Duration
		showConfig bool
	)

	cmd := &cobra.Command{
		Use:   "history [RUN_ID]",
		Short: "Show recorded runs",
		Long: `List runs recorded in the journal, newest first, or show one run with
the commands it sent.

With --config the running configuration observed at the start of the run
is printed. --prune deletes runs older than the given age.`,
		Example: `  # Last 20 runs
  vtyctl history

  # Failed runs of one target
  vtyctl history --target edge1 --status partial

  # One run with its changes and the configuration it started from
  vtyctl history 3f2a9c1e-... --config

  # Forget runs older than 30 days
  vtyctl history --prune 720h`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd, output)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			e, err := loadEnv(ctx, envOptions{journal: true})
			if err != nil {
				return err
			}
			defer e.close()
			if e.journal == nil {
				return fmt.Errorf("no journal configured: set store.path in %s", settingsPath)
			}
			w := cmd.OutOrStdout()

			if prune > 0 {
				cutoff := time.Now().Add(-prune)
				n, err := e.journal.PruneRuns(ctx, cutoff)
				if err != nil {
					return err
				}
				log.Info().Int64("runs", n).Time("before", cutoff).Msg("Journal pruned")
				return nil
			}

			if len(args) == 1 {
				run, err := e.journal.GetRun(ctx, args[0])
				if err != nil {
					return err
				}
				if showConfig {
					snap, err := e.journal.GetSnapshot(ctx, run.Target, run.ConfigDigest)
					if err != nil {
						return err
					}
					fmt.Fprint(w, snap.Config)
					return nil
				}
				changes, err := e.journal.ListChanges(ctx, run.ID)
				if err != nil {
					return err
				}
				if format != formatText {
					return writeStructured(w, format, runDetail{Run: *run, Changes: changes})
				}
				writeRunText(w, run, changes)
				return nil
			}

			var rs engine.RunStatus
			if status != "" {
				rs = engine.RunStatus(status)
				if err := rs.Validate(); err != nil {
					return err
				}
			}
			runs := []*stores.Run{}
			filters := []stores.RunFilter{{Status: rs, Limit: limit}}
			if len(targetNames) > 0 {
				filters = filters[:0]
				for _, name := range targetNames {
					filters = append(filters, stores.RunFilter{Target: name, Status: rs, Limit: limit})
				}
			}
			for _, f := range filters {
				found, err := e.journal.ListRuns(ctx, f)
				if err != nil {
					return err
				}
				runs = append(runs, found...)
			}

			if format != formatText {
				return writeStructured(w, format, runs)
			}
			writeRunsTable(w, runs)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", formatText, "output format (text, yaml or json)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to list per target")
	cmd.Flags().StringVar(&status, "status", "", "only runs with this status")
	cmd.Flags().DurationVar(&prune, "prune", 0, "delete runs older than this age")
	cmd.Flags().BoolVar(&showConfig, "config", false, "print the configuration the run started from")

	return cmd
}

func writeRunsTable(w io.Writer, runs []*stores.Run) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tTARGET\tSTATUS\tSTARTED\tCOMMANDS\tERROR")
	for _, r := range runs {
		errText := ""
		if r.Error != nil {
			errText = *r.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			r.ID, r.Target, r.Status, r.StartedAt.Local().Format(time.DateTime), r.Summary.Commands, errText)
	}
	_ = tw.Flush()
}

func writeRunText(w io.Writer, run *stores.Run, changes []*stores.Change) {
	fmt.Fprintf(w, "Run %s on %s: %s\n", run.ID, run.Target, run.Status)
	fmt.Fprintf(w, "  started %s, config %s\n", run.StartedAt.Local().Format(time.DateTime), shortDigest(run.ConfigDigest))
	if run.Error != nil {
		fmt.Fprintf(w, "  error: %s\n", *run.Error)
	}
	for _, c := range changes {
		fmt.Fprintf(w, "  %s %s [%s, %s]\n", operationMarkers[c.Operation], c.Resource, c.Status, c.Duration)
		for _, cmd := range c.Commands {
			fmt.Fprintf(w, "      | %s\n", cmd)
		}
		if c.Error != nil {
			fmt.Fprintf(w, "      error: %s\n", *c.Error)
		}
	}
}
