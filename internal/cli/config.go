package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewConfigCommand creates the config command.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "config",
		Aliases: []string{"validate-config"},
		Short:   "Validate and print the effective configuration",
		Long: `Validate the configuration file given with --config against the
schema and print the effective configuration, defaults included.

Exit codes:
  0 - Configuration is valid
  2 - Configuration is invalid`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if rootOpts.Format == "json" {
				return f.Success(rootOpts.Config)
			}
			data, err := rootOpts.Config.Marshal()
			if err != nil {
				return WrapExitError(ExitFailure, ErrCodeInternal, "failed to render configuration", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}
