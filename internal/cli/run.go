package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/roach88/stateloop/internal/cache"
	"github.com/roach88/stateloop/internal/catalog"
	"github.com/roach88/stateloop/internal/engine"
	"github.com/roach88/stateloop/internal/scheduler"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions

	// IDs mints ids for added items. Nil means UUIDv7Generator.
	IDs engine.IDGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the catalogue interactively",
		Long: `Run the catalogue program over the configured event log.

The log is verified before the program starts. Commands are read one per
line from standard input and the model is re-rendered after every change.
Type 'help' for the list of commands.

Example:
  stateloop run --config stateloop.yaml
  printf 'add bolt 10\nquit\n' | stateloop run`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalog(opts, cmd)
		},
	}
	return cmd
}

func runCatalog(opts *RunOptions, cmd *cobra.Command) error {
	cfg := opts.Config

	log, err := openLogForCommand(cfg.EventLog)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := log.Close(); closeErr != nil {
			slog.Error("error closing event log", "error", closeErr)
		}
	}()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	state, seq, err := catalog.Replay(ctx, log)
	if err != nil {
		return logError("failed to read event log", err)
	}
	slog.Info("event log verified", "backend", cfg.EventLog.Backend, "seq", seq, "items", state.Len())

	reg := prometheus.NewRegistry()
	if cfg.Metrics.Addr != "" {
		srv, err := serveMetrics(cfg.Metrics.Addr, reg)
		if err != nil {
			return WrapExitError(ExitCommandError, ErrCodeStartup, "failed to start metrics server", err)
		}
		defer func() {
			shutdownCtx, stop := context.WithTimeout(context.Background(), time.Second)
			defer stop()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	out := &lockedWriter{w: cmd.OutOrStdout()}
	registry := scheduler.NewRegistry()
	snapshots := cache.New[string, catalog.Snapshot](cfg.Cache.TTL.Std(), nil)
	svc := catalog.NewService(log, snapshots, catalog.WriterNotifier(out))
	if err := svc.Register(registry); err != nil {
		return WrapExitError(ExitCommandError, ErrCodeStartup, "failed to register executors", err)
	}

	sched := scheduler.New[catalog.Msg](registry, scheduler.Config{
		MaxConcurrent: cfg.Scheduler.MaxConcurrent,
		EffectTimeout: cfg.Scheduler.EffectTimeout.Std(),
		Metrics:       scheduler.NewMetrics(reg),
	})

	program := catalog.Program(catalog.Options{Debounce: cfg.Catalog.Debounce.Std()})
	var last string
	program.View = func(m catalog.Model) {
		if view := catalog.Render(m); view != last {
			last = view
			fmt.Fprint(out, view)
		}
	}

	rt, err := engine.New(program, sched, engine.WithMetrics(engine.NewMetrics(reg)))
	if err != nil {
		return WrapExitError(ExitFailure, ErrCodeStartup, "failed to start program", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()

	ids := opts.IDs
	if ids == nil {
		ids = engine.UUIDv7Generator{}
	}
	// The initial listing lands before input is read, so piped edits
	// find the catalogue loaded.
	settle(ctx, rt, sched)
	readErr := readCommands(ctx, cmd.InOrStdin(), out, ids, rt)

	// Let outstanding effects land before stopping, so a piped session
	// journals everything it asked for.
	settle(ctx, rt, sched)
	rt.Stop()
	runErr := <-done
	sched.Wait()

	if engine.IsDefect(runErr) {
		return WrapExitError(ExitFailure, ErrCodeDefect, "program defect", runErr)
	}
	if readErr != nil {
		return WrapExitError(ExitCommandError, ErrCodeInput, "failed to read input", readErr)
	}
	slog.Info("catalogue stopped", "processed", rt.Processed())
	return nil
}

// readCommands dispatches one message per input line until EOF, quit or
// cancellation.
func readCommands(ctx context.Context, in io.Reader, out io.Writer, ids engine.IDGenerator, rt *engine.Runtime[catalog.Model, catalog.Msg]) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return <-errc
			}
			line = strings.TrimSpace(line)
			switch line {
			case "":
				continue
			case "help":
				fmt.Fprintln(out, catalog.Usage)
				continue
			}
			msg, err := catalog.ParseCommand(line, ids)
			if errors.Is(err, catalog.ErrQuit) {
				return nil
			}
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			if !rt.Dispatch(msg) {
				return nil
			}
		}
	}
}

// settle waits until the loop is idle: nothing queued, nothing in flight
// and no message processed between two polls.
func settle(ctx context.Context, rt *engine.Runtime[catalog.Model, catalog.Msg], sched *scheduler.Scheduler[catalog.Msg]) {
	const poll = 10 * time.Millisecond
	processed := int64(-1)
	for i := 0; i < 1000; i++ {
		if rt.QueueLen() == 0 && sched.InFlight() == 0 && rt.Processed() == processed {
			return
		}
		processed = rt.Processed()
		select {
		case <-ctx.Done():
			return
		case <-sched.Idle():
			select {
			case <-ctx.Done():
				return
			case <-time.After(poll):
			}
		}
	}
}

// serveMetrics exposes reg on addr at /metrics.
func serveMetrics(addr string, reg *prometheus.Registry) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "error", err)
		}
	}()
	slog.Info("metrics server listening", "addr", ln.Addr().String())
	return srv, nil
}

// lockedWriter serializes writes from the loop and from effects.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
