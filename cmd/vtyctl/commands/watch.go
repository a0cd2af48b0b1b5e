package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/vtyctl/pkg/engine"
)

// watchDelay debounces bursts of editor writes.
const watchDelay = 500 * time.Millisecond

func newWatchCommand() *cobra.Command {
	var (
		interval time.Duration
		purge    []string
	)

	cmd := &cobra.Command{
		Use:   "watch FILES...",
		Short: "Keep targets converged",
		Long: `Apply desired state, then apply again whenever a desired state file
changes or, with --interval, periodically to repair drift.

Policy files are reloaded on change. When metrics are enabled in the
settings they are served for the lifetime of the process.`,
		Example: `  # Re-apply on every edit
  vtyctl watch routers.cue

  # Also repair drift every five minutes
  vtyctl watch routers.cue --interval 5m`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := loadEnv(ctx, envOptions{journal: true, guard: true})
			if err != nil {
				return err
			}
			defer e.close()

			popts, err := e.planOptions(purge)
			if err != nil {
				return err
			}
			conns, closeAll, err := openTargets(e.settings, log.Logger)
			if err != nil {
				return err
			}
			defer closeAll()

			go func() {
				if err := e.tel.Metrics.Serve(ctx); err != nil {
					log.Error().Err(err).Msg("Metrics server stopped")
				}
			}()
			if e.guard != nil && len(e.settings.Policy.Paths) > 0 {
				if err := e.guard.WatchPolicies(ctx, e.settings.Policy.Paths); err != nil {
					return err
				}
			}

			changes, err := watchFiles(ctx, args)
			if err != nil {
				return err
			}

			var tick <-chan time.Time
			if interval > 0 {
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				tick = ticker.C
			}

			opts := engine.ReconcileOptions{PlanOptions: popts}
			converge := func(reason string) {
				log.Info().Str("reason", reason).Int("targets", len(conns)).Msg("Converging targets")
				outcomes, err := e.applyAll(ctx, conns, args, opts)
				if err != nil {
					log.Error().Err(err).Msg("Desired state rejected, keeping targets as they are")
					return
				}
				writeOutcomes(cmd.OutOrStdout(), outcomes, false)
			}

			converge("start")
			for {
				select {
				case <-ctx.Done():
					log.Info().Msg("Watch stopped")
					return nil
				case name := <-changes:
					converge("changed " + name)
				case <-tick:
					converge("interval")
				}
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "also converge periodically (0 disables)")
	cmd.Flags().StringSliceVar(&purge, "purge", nil, "also delete unmanaged instances of these kinds")

	return cmd
}

// watchFiles reports the name of a changed file once a burst of writes to
// any of paths has settled. Parent directories are watched so that
// editors replacing files by rename are noticed.
func watchFiles(ctx context.Context, paths []string) (<-chan string, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	wanted := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			_ = watcher.Close()
			return nil, err
		}
		wanted[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	out := make(chan string, 1)
	go func() {
		defer watcher.Close()
		var (
			timer   *time.Timer
			fire    <-chan time.Time
			pending string
		)
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !wanted[event.Name] || event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				log.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("Desired state changed")
				pending = event.Name
				if timer != nil {
					timer.Stop()
				}
				timer = time.NewTimer(watchDelay)
				fire = timer.C

			case <-fire:
				fire = nil
				select {
				case out <- filepath.Base(pending):
				default:
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Error().Err(err).Msg("Watcher error")
			}
		}
	}()

	return out, nil
}
