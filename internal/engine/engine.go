package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/roach88/stateloop/internal/command"
	"github.com/roach88/stateloop/internal/scheduler"
)

// Program is an application: its boot contract, its reducer and its
// renderer.
type Program[Model, Msg any] struct {
	// Init returns the initial model and startup commands.
	Init func() (Model, []command.Cmd[Msg])

	// Update is the reducer. It must be pure and total over Msg.
	Update UpdateFunc[Model, Msg]

	// View is called with every new model, on the loop goroutine, after
	// each completed update. Optional. It must not mutate the model.
	View func(model Model)
}

// Effects runs the commands produced by update. *scheduler.Scheduler
// implements it.
type Effects[Msg any] interface {
	Run(ctx context.Context, cmds []command.Cmd[Msg], d scheduler.Dispatcher[Msg])
}

// ErrAlreadyRunning is returned by Run when the loop is already started.
var ErrAlreadyRunning = errors.New("engine: runtime already running")

// Option configures a Runtime.
type Option func(*options)

type options struct {
	clock   *Clock
	metrics *Metrics
}

// WithClock sets the logical clock. Default starts at 0.
func WithClock(c *Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithMetrics attaches loop metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// Runtime is the single-writer dispatch loop.
//
// The model is owned by the Run goroutine: update is called for one
// message at a time, to completion, in queue order. Effects run
// concurrently in the scheduler and re-enter through Dispatch, so the loop
// never observes two messages at the same instant.
//
// Thread-safety model:
//   - Dispatch, Stop, Snapshot, QueueLen: safe from any goroutine
//   - Run: exactly one goroutine, once
type Runtime[Model, Msg any] struct {
	program  Program[Model, Msg]
	effects  Effects[Msg]
	queue    *msgQueue[Msg]
	clock    *Clock
	metrics  *Metrics
	model    Model
	initCmds []command.Cmd[Msg]
	snapshot atomic.Pointer[Model]
	running  atomic.Bool
}

// New boots p by calling Init. A panic in Init is returned as a defect.
func New[Model, Msg any](p Program[Model, Msg], effects Effects[Msg], opts ...Option) (*Runtime[Model, Msg], error) {
	if p.Init == nil || p.Update == nil {
		return nil, fmt.Errorf("engine: program requires Init and Update")
	}
	if effects == nil {
		return nil, fmt.Errorf("engine: effects runner is required")
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = NewClock()
	}

	model, cmds, err := initSafely(p.Init)
	if err != nil {
		o.metrics.defect(ErrCodeInitPanic)
		return nil, err
	}

	r := &Runtime[Model, Msg]{
		program:  p,
		effects:  effects,
		queue:    newMsgQueue[Msg](),
		clock:    o.clock,
		metrics:  o.metrics,
		model:    model,
		initCmds: cmds,
	}
	r.snapshot.Store(&model)
	return r, nil
}

// Dispatch enqueues msg for the loop. It is the sole inbound entry point.
// Returns false if the runtime has stopped.
func (r *Runtime[Model, Msg]) Dispatch(msg Msg) bool {
	return r.queue.Enqueue(msg)
}

// Run renders the initial model, starts the init commands, then processes
// messages until ctx is cancelled, Stop is called, or a defect occurs.
//
// A defect closes the queue and is returned as a *DefectError. Context
// cancellation returns ctx.Err(); Stop returns nil.
func (r *Runtime[Model, Msg]) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	slog.Info("dispatch loop starting")

	if r.program.View != nil {
		r.program.View(r.model)
	}
	r.effects.Run(ctx, r.initCmds, r)
	r.initCmds = nil

	for {
		if r.queue.Closed() {
			slog.Info("dispatch loop stopping: stopped")
			return nil
		}

		msg, ok := r.queue.TryDequeue()
		if ok {
			if err := r.step(ctx, msg); err != nil {
				r.queue.Close()
				return err
			}
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("dispatch loop stopping: context cancelled")
			r.queue.Close()
			return ctx.Err()
		case <-r.queue.Wait():
		}
	}
}

// step runs one update and hands its commands to the scheduler.
// Called only from the Run goroutine.
func (r *Runtime[Model, Msg]) step(ctx context.Context, msg Msg) error {
	seq := r.clock.Next()
	start := time.Now()

	next, cmds, err := Step(r.program.Update, msg, r.model)
	if err != nil {
		var de *DefectError
		if errors.As(err, &de) {
			de.Seq = seq
			r.metrics.defect(de.Code)
		}
		slog.Error("defect in update",
			"seq", seq,
			"msg", fmt.Sprintf("%T", msg),
			"error", err,
		)
		return err
	}
	r.metrics.stepDone(time.Since(start), r.queue.Len())

	r.model = next
	r.snapshot.Store(&next)

	slog.Debug("message processed",
		"seq", seq,
		"msg", fmt.Sprintf("%T", msg),
		"commands", len(cmds),
	)

	if r.program.View != nil {
		r.program.View(next)
	}
	r.effects.Run(ctx, cmds, r)
	return nil
}

// Stop closes the queue. Run returns after the current step.
func (r *Runtime[Model, Msg]) Stop() {
	r.queue.Close()
}

// Snapshot returns the most recently published model.
func (r *Runtime[Model, Msg]) Snapshot() Model {
	return *r.snapshot.Load()
}

// QueueLen returns the number of messages waiting.
func (r *Runtime[Model, Msg]) QueueLen() int {
	return r.queue.Len()
}

// Processed returns how many messages have been passed to update.
func (r *Runtime[Model, Msg]) Processed() int64 {
	return r.clock.Current()
}
