package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openfroyo/vtyctl/pkg/config"
	"github.com/openfroyo/vtyctl/pkg/engine"
	"github.com/openfroyo/vtyctl/pkg/policy"
	"github.com/openfroyo/vtyctl/pkg/schema"
	"github.com/openfroyo/vtyctl/pkg/stores"
	"github.com/openfroyo/vtyctl/pkg/telemetry"
)

const starlarkTimeout = 10 * time.Second

var buildVersion = "dev"

// envOptions selects the optional parts of an env.
type envOptions struct {
	journal      bool
	guard        bool
	allowDestroy bool
	dryRun       bool
}

// env is everything a command needs to talk to daemons.
type env struct {
	settings *config.Settings
	tel      *telemetry.Telemetry
	reg      *schema.Registry
	journal  *stores.SQLiteStore
	guard    *policy.Engine
}

func loadEnv(ctx context.Context, opts envOptions) (*env, error) {
	settings, err := config.LoadSettings(settingsPath, settingsPath == config.DefaultSettingsFile)
	if err != nil {
		return nil, err
	}

	settings.ServiceVersion = buildVersion
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		settings.Logging.Level = lvl
	}
	if verbose {
		settings.Logging.Level = "debug"
	}
	if jsonOutput {
		settings.Logging.Format = "json"
	}

	tel, err := telemetry.NewTelemetry(&settings.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}
	log.Logger = tel.Logger.Zerolog()

	e := &env{settings: settings, tel: tel, reg: schema.Quagga()}

	if opts.journal && settings.Store.Path != "" {
		e.journal, err = stores.Open(ctx, settings.Store.Path)
		if err != nil {
			e.close()
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
	}

	if opts.guard && !settings.Policy.Disabled {
		e.guard, err = policy.NewEngine(tel.Logger.Zerolog(), policy.Options{
			AllowDestroy: settings.Policy.AllowDestroy || opts.allowDestroy,
			MaxCommands:  settings.Policy.MaxCommands,
			DryRun:       opts.dryRun,
		})
		if err == nil && len(settings.Policy.Paths) > 0 {
			err = e.guard.LoadPolicies(ctx, settings.Policy.Paths)
		}
		if err != nil {
			e.close()
			return nil, fmt.Errorf("failed to set up policies: %w", err)
		}
	}

	return e, nil
}

func (e *env) close() {
	if e.journal != nil {
		if err := e.journal.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close journal")
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.tel.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Failed to flush traces")
	}
}

// loadDesired loads desired state files and fails on any error.
func (e *env) loadDesired(ctx context.Context, paths []string) (*config.ParsedConfig, error) {
	loader, err := config.NewLoader(e.reg, starlarkTimeout)
	if err != nil {
		return nil, err
	}
	pc, err := loader.Load(ctx, paths...)
	if err != nil {
		return nil, err
	}
	for _, ve := range pc.Errors {
		if ve.Severity == config.SeverityWarning {
			log.Warn().Msg(ve.String())
		}
	}
	if err := pc.Err(); err != nil {
		return nil, err
	}

	log.Debug().
		Int("resources", len(pc.Resources)).
		Strs("files", pc.SourceFiles).
		Msg("Desired state loaded")
	return pc, nil
}

// reconcilerOptions returns the options shared by every reconciler.
func (e *env) reconcilerOptions() []engine.ReconcilerOption {
	opts := []engine.ReconcilerOption{engine.WithTelemetry(e.tel)}
	if e.guard != nil {
		opts = append(opts, engine.WithGuard(e.guard))
	}
	if e.journal != nil {
		opts = append(opts, engine.WithJournal(e.journal))
	}
	return opts
}

// planOptions converts the purge setting, with extra kinds from flags.
func (e *env) planOptions(extra []string) (engine.PlanOptions, error) {
	var opts engine.PlanOptions
	for _, name := range append(append([]string{}, e.settings.Apply.Purge...), extra...) {
		kind := schema.Kind(name)
		if _, ok := e.reg.Lookup(kind); !ok {
			return opts, fmt.Errorf("unknown kind %q in purge list", name)
		}
		opts.Purge = append(opts.Purge, kind)
	}
	return opts, nil
}
