package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/vtyctl/pkg/config"
)

func newValidateCommand() *cobra.Command {
	var printSchema bool

	cmd := &cobra.Command{
		Use:   "validate [FILES...]",
		Short: "Validate desired state files",
		Long: `Validate desired state files without contacting any daemon.

Files are checked against the resource schemas, then resolved for every
configured target so that duplicates and missing parents are reported too.
Without targets in the settings only resources that name no target are
resolved.`,
		Example: `  # Validate a CUE and a Starlark file
  vtyctl validate routers.cue pim.star

  # Print the CUE schemas desired state is checked against
  vtyctl validate --schema`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := loadEnv(ctx, envOptions{})
			if err != nil {
				return err
			}
			defer e.close()

			loader, err := config.NewLoader(e.reg, starlarkTimeout)
			if err != nil {
				return err
			}
			if printSchema {
				fmt.Fprint(cmd.OutOrStdout(), loader.Schemas().Source())
				return nil
			}
			if len(args) == 0 {
				return fmt.Errorf("no desired state files given")
			}

			pc, err := loader.Load(ctx, args...)
			if err != nil {
				return err
			}
			for _, ve := range pc.Errors {
				fmt.Fprintln(cmd.ErrOrStderr(), ve.String())
			}
			if pc.HasErrors() {
				return &ExitError{Code: 1}
			}

			var names []string
			if len(e.settings.Targets) == 0 && len(targetNames) == 0 {
				names = []string{""}
			} else {
				targets, err := e.settings.Select(targetNames)
				if err != nil {
					return err
				}
				for _, t := range targets {
					names = append(names, t.Name)
				}
			}
			for _, name := range names {
				desired, err := pc.ToDesired(e.reg, name)
				if err != nil {
					return err
				}
				log.Debug().Str("target", name).Int("resources", len(desired)).Msg("Desired state resolved")
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d resources in %d files are valid.\n",
				len(pc.Resources), len(pc.SourceFiles))
			return nil
		},
	}

	cmd.Flags().BoolVar(&printSchema, "schema", false, "print the CUE schemas and exit")

	return cmd
}
