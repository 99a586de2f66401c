// Package scheduler executes command descriptors outside the reducer.
//
// Every executed command re-enters the dispatch loop as exactly one
// message: the success or failure message the command was built with.
// Executor errors, panics, timeouts and unknown ops all become failure
// messages; nothing is raised back to the reducer.
//
// Commands handed over in one Run call execute independently. There is no
// ordering between sibling completions and no deduplication of delayed
// commands.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/stateloop/internal/command"
	"github.com/roach88/stateloop/internal/remote"
)

// Failure codes produced by the scheduler itself.
const (
	CodeEffectPanic = "effect_panic"
	CodeUnknownOp   = "unknown_op"
)

// Dispatcher receives messages produced by effects. engine.Runtime
// implements it; Dispatch must be safe for concurrent use.
type Dispatcher[M any] interface {
	Dispatch(msg M) bool
}

// DispatchFunc adapts a function to Dispatcher.
type DispatchFunc[M any] func(msg M) bool

// Dispatch calls f.
func (f DispatchFunc[M]) Dispatch(msg M) bool { return f(msg) }

// Config controls a Scheduler.
type Config struct {
	// MaxConcurrent bounds executing Call effects. Zero means unbounded.
	MaxConcurrent int

	// EffectTimeout bounds a single executor call. Zero means no timeout.
	EffectTimeout time.Duration

	// Clock drives delayed commands. Nil means RealClock.
	Clock Clock

	// Metrics is optional.
	Metrics *Metrics
}

// Scheduler runs commands producing messages of type M.
type Scheduler[M any] struct {
	registry *Registry
	clock    Clock
	timeout  time.Duration
	metrics  *Metrics
	sem      chan struct{}

	// mu guards inFlight and idle. idle is closed when inFlight drops to
	// zero and replaced when the next effect starts.
	mu       sync.Mutex
	inFlight int
	idle     chan struct{}
}

// New creates a scheduler resolving ops through registry.
func New[M any](registry *Registry, cfg Config) *Scheduler[M] {
	if registry == nil {
		registry = NewRegistry()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = RealClock
	}
	s := &Scheduler[M]{
		registry: registry,
		clock:    clock,
		timeout:  cfg.EffectTimeout,
		metrics:  cfg.Metrics,
		idle:     closedChan(),
	}
	if cfg.MaxConcurrent > 0 {
		s.sem = make(chan struct{}, cfg.MaxConcurrent)
	}
	return s
}

// Run starts every command in cmds and returns without waiting. Msg
// commands are dispatched before Run returns; everything else completes
// on its own goroutine.
func (s *Scheduler[M]) Run(ctx context.Context, cmds []command.Cmd[M], d Dispatcher[M]) {
	for _, c := range cmds {
		s.run(ctx, c, d)
	}
}

func (s *Scheduler[M]) run(ctx context.Context, c command.Cmd[M], d Dispatcher[M]) {
	switch c.Kind() {
	case command.KindNone:
	case command.KindMsg:
		msg, _ := c.Message()
		s.dispatch(d, msg)
	case command.KindCall:
		s.spawn(func() { s.call(ctx, c, d) })
	case command.KindBatch:
		for _, child := range c.Children() {
			s.run(ctx, child, d)
		}
	case command.KindDelay:
		delay, inner, _ := c.Delayed()
		s.spawn(func() {
			select {
			case <-s.clock.After(delay):
				s.run(ctx, inner, d)
			case <-ctx.Done():
				slog.Debug("delayed command dropped on shutdown", "cmd", inner.String())
			}
		})
	default:
		panic(fmt.Sprintf("scheduler: unknown command kind %s", c.Kind()))
	}
}

func (s *Scheduler[M]) spawn(fn func()) {
	s.mu.Lock()
	if s.inFlight == 0 {
		s.idle = make(chan struct{})
	}
	s.inFlight++
	s.mu.Unlock()

	go func() {
		defer s.done()
		fn()
	}()
}

func (s *Scheduler[M]) done() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight--
	if s.inFlight == 0 {
		close(s.idle)
	}
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// call executes one Call command and dispatches exactly one message.
func (s *Scheduler[M]) call(ctx context.Context, c command.Cmd[M], d Dispatcher[M]) {
	op, _ := c.Op()

	if s.sem != nil {
		select {
		case s.sem <- struct{}{}:
			defer func() { <-s.sem }()
		case <-ctx.Done():
			s.dispatch(d, c.Fail(remote.InfoFrom(ctx.Err())))
			return
		}
	}

	s.metrics.effectStarted(op.Name)
	start := time.Now()
	result, err := s.execute(ctx, op)
	s.metrics.effectDone(op.Name, err != nil, time.Since(start))

	if err != nil {
		info := remote.InfoFrom(err)
		slog.Warn("effect failed", "op", op.Name, "code", info.Code, "error", info.Message)
		s.dispatch(d, s.buildFailure(c, info))
		return
	}
	s.dispatch(d, s.buildSuccess(c, result))
}

type outcome struct {
	result any
	err    error
}

// execute runs the executor for op on its own goroutine so that a timeout
// is honored even when the executor ignores its context.
func (s *Scheduler[M]) execute(ctx context.Context, op command.Op) (any, error) {
	exec, ok := s.registry.Lookup(op.Name)
	if !ok {
		return nil, remote.Errorf(CodeUnknownOp, "no executor registered for %q", op.Name)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("effect panicked", "op", op.Name, "panic", r)
				done <- outcome{err: remote.Errorf(CodeEffectPanic, "op %s panicked: %v", op.Name, r)}
			}
		}()
		result, err := exec.Execute(ctx, op)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		return nil, fmt.Errorf("op %s: %w", op.Name, ctx.Err())
	}
}

// buildSuccess calls the success constructor, falling back to the failure
// constructor if it panics.
func (s *Scheduler[M]) buildSuccess(c command.Cmd[M], result any) (msg M) {
	defer func() {
		if r := recover(); r != nil {
			op, _ := c.Op()
			slog.Error("success constructor panicked", "op", op.Name, "panic", r)
			msg = s.buildFailure(c, remote.Errorf(CodeEffectPanic, "op %s: success constructor panicked: %v", op.Name, r))
		}
	}()
	return c.Succeed(result)
}

func (s *Scheduler[M]) buildFailure(c command.Cmd[M], info remote.ErrorInfo) M {
	return c.Fail(info)
}

func (s *Scheduler[M]) dispatch(d Dispatcher[M], msg M) {
	if !d.Dispatch(msg) {
		slog.Debug("message rejected by stopped loop", "msg", fmt.Sprintf("%T", msg))
	}
}

// Idle returns a channel that is closed once no effect is running or
// waiting on a timer. Effects started after it closes are not covered;
// call Idle again to wait for them.
func (s *Scheduler[M]) Idle() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idle
}

// Wait blocks until the scheduler is idle. It is safe to call while
// other goroutines keep starting commands; it returns at the first
// moment nothing is in flight.
func (s *Scheduler[M]) Wait() {
	<-s.Idle()
}

// InFlight returns the number of effects still running or waiting on a
// timer.
func (s *Scheduler[M]) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}
