package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/stateloop/internal/config"
	"github.com/roach88/stateloop/internal/ir"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	// Config is loaded by the root command before any subcommand runs.
	Config config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the stateloop CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "stateloop",
		Version: ir.EngineVersion,
		Short:   "stateloop - an event-sourced catalogue on a pure update loop",
		Long: `A state-management core: a single-writer update loop, inert commands
run by an effect scheduler, and an append-only event log that can be
replayed to rebuild state.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return reportFailure(cmd, opts, setup(cmd, opts))
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to a YAML configuration file")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewEventsCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))

	for _, sub := range cmd.Commands() {
		reportFailures(sub, opts)
	}
	return cmd
}

// setup validates the global flags, loads the configuration and installs
// the logger.
func setup(cmd *cobra.Command, opts *RootOptions) error {
	if !isValidFormat(opts.Format) {
		return NewExitError(ExitCommandError, ErrCodeUsage, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
	}
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, ErrCodeUsage, "invalid configuration", err)
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}
	logger, err := config.NewLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return WrapExitError(ExitCommandError, ErrCodeUsage, "invalid configuration", err)
	}
	slog.SetDefault(logger)
	opts.Config = cfg
	return nil
}

// reportFailures makes cmd and its subcommands write their errors as JSON
// documents when --format json is set.
func reportFailures(cmd *cobra.Command, opts *RootOptions) {
	if run := cmd.RunE; run != nil {
		cmd.RunE = func(c *cobra.Command, args []string) error {
			return reportFailure(c, opts, run(c, args))
		}
	}
	for _, sub := range cmd.Commands() {
		reportFailures(sub, opts)
	}
}

func reportFailure(cmd *cobra.Command, opts *RootOptions, err error) error {
	if err == nil || opts.Format != "json" {
		return err
	}
	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if werr := f.Error(err); werr != nil {
		slog.Warn("failed to write error response", "error", werr)
	}
	return err
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
