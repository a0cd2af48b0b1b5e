package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/vtyctl/pkg/config"
)

var (
	// Global flags
	settingsPath string
	targetNames  []string
	verbose      bool
	jsonOutput   bool
)

// ExitError ends the process with Code without logging a failure.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "vtyctl",
		Short: "vtyctl - Quagga configuration reconciliation",
		Long: `vtyctl keeps Quagga routing daemons in line with a declared configuration.

It reads the running configuration through vtysh, compares it with desired
state written in CUE, YAML or Starlark, and sends the minimal command
batches that close the gap.

Managed resources:
  - bgp_router, bgp_address_family and bgp_as_path
  - pim_interface
  - static_route`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
			if jsonOutput {
				log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
			}
			buildVersion = version
		},
	}

	rootCmd.PersistentFlags().StringVarP(&settingsPath, "settings", "s", config.DefaultSettingsFile, "settings file path")
	rootCmd.PersistentFlags().StringSliceVarP(&targetNames, "target", "t", nil, "limit to specific targets")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newParseCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newApplyCommand())
	rootCmd.AddCommand(newDriftCommand())
	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newHistoryCommand())

	return rootCmd
}
