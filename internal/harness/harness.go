package harness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/stateloop/internal/catalog"
	"github.com/roach88/stateloop/internal/command"
	"github.com/roach88/stateloop/internal/engine"
	"github.com/roach88/stateloop/internal/eventlog"
	"github.com/roach88/stateloop/internal/ir"
	"github.com/roach88/stateloop/internal/remote"
	"github.com/roach88/stateloop/internal/scheduler"
	"github.com/roach88/stateloop/internal/testutil"
)

// maxSettle bounds one settle step. A program that keeps producing
// commands forever fails the scenario instead of hanging it.
const maxSettle = 10000

// ErrInjected is the cause of failures requested with fail_op.
var ErrInjected = errors.New("injected failure")

// Harness executes one scenario. It owns a fresh in-memory log, the
// catalogue executors and the model.
type Harness struct {
	log      *eventlog.Faulty
	registry *scheduler.Registry
	model    catalog.Model
	queue    []command.Cmd[catalog.Msg]
	armed    map[string]remote.ErrorInfo
	seq      int64
	result   *Result
}

// Run executes scenario and evaluates its assertions. The returned error
// reports a scenario that could not be executed: a seed the log rejects,
// an invalid intent, a defect in the reducer or a settle that never ends.
// Failed assertions are reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()
	clock := testutil.NewFakeClock(time.Time{})

	h := &Harness{
		log:      eventlog.NewFaulty(eventlog.NewMemory(clock.Now)),
		registry: scheduler.NewRegistry(),
		armed:    map[string]remote.ErrorInfo{},
		result:   NewResult(),
	}
	if err := catalog.NewService(h.log, nil, nil).Register(h.registry); err != nil {
		return nil, err
	}

	for i, e := range scenario.Seed {
		payload, err := toObject(e.Payload)
		if err != nil {
			return nil, fmt.Errorf("seed[%d]: %w", i, err)
		}
		if _, err := h.log.Append(ctx, e.Kind, payload); err != nil {
			return nil, fmt.Errorf("seed[%d]: %w", i, err)
		}
	}

	model, cmds := catalog.Init(catalog.Options{})()
	h.model = model
	h.record("init", cmds)

	for i, step := range scenario.Steps {
		if err := h.execute(ctx, step); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	h.result.Model = h.model.Object()
	last, err := h.log.LastSeq(ctx)
	if err != nil {
		return nil, err
	}
	h.result.Events = last

	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

func (h *Harness) execute(ctx context.Context, step Step) error {
	switch {
	case step.Dispatch != "":
		args, err := toObject(step.Args)
		if err != nil {
			return err
		}
		msg, err := catalog.DecodeIntent(step.Dispatch, args)
		if err != nil {
			return err
		}
		return h.step(msg)
	case step.Settle:
		return h.settle(ctx)
	case step.FailOp != "":
		code := step.Code
		if code == "" {
			code = remote.CodeError
		}
		message := step.Message
		if message == "" {
			message = ErrInjected.Error()
		}
		h.armed[step.FailOp] = remote.NewError(code, message)
		return nil
	}
	return fmt.Errorf("empty step")
}

// step runs the reducer once and queues the commands it returned.
func (h *Harness) step(msg catalog.Msg) error {
	next, cmds, err := engine.Step(catalog.Update, msg, h.model)
	if err != nil {
		return err
	}
	h.model = next
	h.record(catalog.MsgName(msg), cmds)
	return nil
}

func (h *Harness) record(name string, cmds []command.Cmd[catalog.Msg]) {
	h.result.Trace = append(h.result.Trace, TraceEvent{
		Seq:   h.seq,
		Msg:   name,
		Ops:   command.Ops(cmds),
		Items: h.model.Items.State().String(),
	})
	h.seq++
	h.queue = append(h.queue, cmds...)
}

// settle drains the command queue. Batches expand in place; delayed
// commands go to the back of the queue.
func (h *Harness) settle(ctx context.Context) error {
	for n := 0; len(h.queue) > 0; n++ {
		if n == maxSettle {
			return fmt.Errorf("settle did not finish after %d commands", maxSettle)
		}
		c := h.queue[0]
		h.queue = h.queue[1:]

		switch c.Kind() {
		case command.KindNone:
		case command.KindMsg:
			msg, _ := c.Message()
			if err := h.step(msg); err != nil {
				return err
			}
		case command.KindBatch:
			h.queue = append(append([]command.Cmd[catalog.Msg](nil), c.Children()...), h.queue...)
		case command.KindDelay:
			_, inner, _ := c.Delayed()
			h.queue = append(h.queue, inner)
		case command.KindCall:
			if err := h.step(h.call(ctx, c)); err != nil {
				return err
			}
		}
	}
	return nil
}

// call executes a Call command synchronously and returns its outcome
// message.
func (h *Harness) call(ctx context.Context, c command.Cmd[catalog.Msg]) catalog.Msg {
	op, _ := c.Op()

	if info, ok := h.armed[op.Name]; ok {
		delete(h.armed, op.Name)
		if op.Name != eventlog.OpAppend {
			return c.Fail(info)
		}
		h.log.Break(ErrInjected)
		defer h.log.Heal()
	}

	exec, ok := h.registry.Lookup(op.Name)
	if !ok {
		return c.Fail(remote.Errorf(scheduler.CodeUnknownOp, "no executor for %s", op.Name))
	}
	res, err := exec.Execute(ctx, op)
	if err != nil {
		return c.Fail(remote.InfoFrom(err))
	}
	return c.Succeed(res)
}

func toObject(m map[string]any) (ir.Object, error) {
	return ir.ObjectFromAny(m)
}
