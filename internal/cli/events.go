package cli

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/stateloop/internal/eventlog"
	"github.com/roach88/stateloop/internal/ir"
)

// EventsOptions holds flags for the events command.
type EventsOptions struct {
	*RootOptions
	Since int64
	Kind  string
	Count bool
}

// kindCounter is implemented by backends that count records per kind
// without decoding them.
type kindCounter interface {
	CountByKind(ctx context.Context) (map[string]int64, error)
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List records in the event log",
		Long: `List records in the configured event log in sequence order. Each
record's checksum is verified as it is read.

Examples:
  stateloop events
  stateloop events --since 120 --kind stock_adjusted
  stateloop events --count
  stateloop events --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(opts, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.Since, "since", 0, "only records with a sequence greater than this")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only records of this kind")
	cmd.Flags().BoolVar(&opts.Count, "count", false, "print the number of records per kind")
	return cmd
}

func runEvents(opts *EventsOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Since < 0 {
		return NewExitError(ExitCommandError, ErrCodeUsage, "--since must not be negative")
	}

	log, err := openLogForCommand(opts.Config.EventLog)
	if err != nil {
		return err
	}
	defer log.Close()

	if opts.Count {
		return runEventCounts(ctx, opts, log, cmd)
	}

	records := []eventlog.Record{}
	err = eventlog.ScanFrom(ctx, log, opts.Since, func(r eventlog.Record) error {
		if opts.Kind == "" || r.Kind == opts.Kind {
			records = append(records, r)
		}
		return nil
	})
	if err != nil {
		return logError("failed to read event log", err)
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		return f.Success(records)
	}

	w := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(w, "No events found.")
		return nil
	}
	for _, r := range records {
		payload, err := ir.MarshalCanonical(r.Payload)
		if err != nil {
			return WrapExitError(ExitFailure, ErrCodeInternal, fmt.Sprintf("record %d", r.Seq), err)
		}
		fmt.Fprintf(w, "%6d  %s  %-16s %s\n", r.Seq, r.Timestamp, r.Kind, payload)
	}
	return nil
}

func runEventCounts(ctx context.Context, opts *EventsOptions, log eventlog.Log, cmd *cobra.Command) error {
	var counts map[string]int64
	var err error
	if kc, ok := log.(kindCounter); ok && opts.Since == 0 {
		counts, err = kc.CountByKind(ctx)
	} else {
		counts = map[string]int64{}
		err = eventlog.ScanFrom(ctx, log, opts.Since, func(r eventlog.Record) error {
			counts[r.Kind]++
			return nil
		})
	}
	if err != nil {
		return logError("failed to read event log", err)
	}
	if opts.Kind != "" {
		counts = map[string]int64{opts.Kind: counts[opts.Kind]}
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		return f.Success(counts)
	}
	kinds := slices.Sorted(maps.Keys(counts))
	for _, kind := range kinds {
		fmt.Fprintf(cmd.OutOrStdout(), "%-16s %d\n", kind, counts[kind])
	}
	return nil
}
