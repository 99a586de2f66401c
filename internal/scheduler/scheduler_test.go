package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stateloop/internal/command"
	"github.com/roach88/stateloop/internal/ir"
	"github.com/roach88/stateloop/internal/remote"
	"github.com/roach88/stateloop/internal/testutil"
)

type msg struct {
	Tag   string
	Value string
	Err   remote.ErrorInfo
}

// collector is a thread-safe Dispatcher recording every message.
type collector struct {
	mu   sync.Mutex
	msgs []msg
}

func (c *collector) Dispatch(m msg) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, m)
	return true
}

func (c *collector) all() []msg {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]msg(nil), c.msgs...)
}

func call(name, arg string) command.Cmd[msg] {
	return command.Perform(
		command.Op{Name: name, Args: ir.Object{"arg": ir.String(arg)}},
		func(v string) msg { return msg{Tag: "ok", Value: v} },
		func(e remote.ErrorInfo) msg { return msg{Tag: "err", Err: e} },
	)
}

func echoRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, reg.Register("echo", ExecutorFunc(func(_ context.Context, op command.Op) (any, error) {
		return op.Args.Str("arg")
	})))
	return reg
}

func TestRunMsgDispatchesSynchronously(t *testing.T) {
	s := New[msg](nil, Config{})
	out := &collector{}

	s.Run(context.Background(), []command.Cmd[msg]{command.Msg(msg{Tag: "direct"})}, out)

	assert.Equal(t, []msg{{Tag: "direct"}}, out.all())
	assert.Equal(t, 0, s.InFlight())
}

func TestRunCallSuccess(t *testing.T) {
	s := New[msg](echoRegistry(t), Config{})
	out := &collector{}

	s.Run(context.Background(), []command.Cmd[msg]{call("echo", "hello")}, out)
	s.Wait()

	assert.Equal(t, []msg{{Tag: "ok", Value: "hello"}}, out.all())
}

func TestRunCallExecutorError(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister("fail", ExecutorFunc(func(context.Context, command.Op) (any, error) {
		return nil, remote.NewError("network", "network down")
	}))
	reg.MustRegister("plain", ExecutorFunc(func(context.Context, command.Op) (any, error) {
		return nil, errors.New("disk on fire")
	}))
	s := New[msg](reg, Config{})
	out := &collector{}

	s.Run(context.Background(), []command.Cmd[msg]{call("fail", "")}, out)
	s.Run(context.Background(), []command.Cmd[msg]{call("plain", "")}, out)
	s.Wait()

	got := out.all()
	require.Len(t, got, 2)
	codes := []string{got[0].Err.Code, got[1].Err.Code}
	sort.Strings(codes)
	assert.Equal(t, []string{remote.CodeError, "network"}, codes)
	for _, m := range got {
		assert.Equal(t, "err", m.Tag)
	}
}

func TestRunCallPanicBecomesFailure(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister("explode", ExecutorFunc(func(context.Context, command.Op) (any, error) {
		panic("kaboom")
	}))
	s := New[msg](reg, Config{})
	out := &collector{}

	s.Run(context.Background(), []command.Cmd[msg]{call("explode", "")}, out)
	s.Wait()

	got := out.all()
	require.Len(t, got, 1)
	assert.Equal(t, CodeEffectPanic, got[0].Err.Code)
	assert.Contains(t, got[0].Err.Message, "kaboom")
}

func TestRunUnknownOp(t *testing.T) {
	s := New[msg](NewRegistry(), Config{})
	out := &collector{}

	s.Run(context.Background(), []command.Cmd[msg]{call("nope", "")}, out)
	s.Wait()

	got := out.all()
	require.Len(t, got, 1)
	assert.Equal(t, CodeUnknownOp, got[0].Err.Code)
}

func TestRunWrongResultType(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister("number", ExecutorFunc(func(context.Context, command.Op) (any, error) {
		return 42, nil
	}))
	s := New[msg](reg, Config{})
	out := &collector{}

	s.Run(context.Background(), []command.Cmd[msg]{call("number", "")}, out)
	s.Wait()

	got := out.all()
	require.Len(t, got, 1)
	assert.Equal(t, command.CodeResultType, got[0].Err.Code)
}

func TestRunSuccessConstructorPanic(t *testing.T) {
	s := New[msg](echoRegistry(t), Config{})
	out := &collector{}

	c := command.Perform(
		command.Op{Name: "echo", Args: ir.Object{"arg": ir.String("x")}},
		func(string) msg { panic("bad constructor") },
		func(e remote.ErrorInfo) msg { return msg{Tag: "err", Err: e} },
	)
	s.Run(context.Background(), []command.Cmd[msg]{c}, out)
	s.Wait()

	got := out.all()
	require.Len(t, got, 1)
	assert.Equal(t, CodeEffectPanic, got[0].Err.Code)
}

func TestRunEffectTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	reg := NewRegistry()
	reg.MustRegister("stuck", ExecutorFunc(func(context.Context, command.Op) (any, error) {
		<-release
		return "late", nil
	}))
	s := New[msg](reg, Config{EffectTimeout: 20 * time.Millisecond})
	out := &collector{}

	s.Run(context.Background(), []command.Cmd[msg]{call("stuck", "")}, out)
	s.Wait()

	got := out.all()
	require.Len(t, got, 1)
	assert.Equal(t, remote.CodeTimeout, got[0].Err.Code)
}

func TestRunBatchExecutesAllChildren(t *testing.T) {
	s := New[msg](echoRegistry(t), Config{})
	out := &collector{}

	batch := command.Batch(call("echo", "a"), call("echo", "b"), command.Msg(msg{Tag: "m"}))
	s.Run(context.Background(), []command.Cmd[msg]{batch}, out)
	s.Wait()

	var values []string
	for _, m := range out.all() {
		values = append(values, m.Tag+":"+m.Value)
	}
	sort.Strings(values)
	assert.Equal(t, []string{"m:", "ok:a", "ok:b"}, values)
}

func TestRunOutOfOrderCompletion(t *testing.T) {
	slowGate := make(chan struct{})
	reg := NewRegistry()
	reg.MustRegister("slow", ExecutorFunc(func(context.Context, command.Op) (any, error) {
		<-slowGate
		return "slow", nil
	}))
	reg.MustRegister("fast", ExecutorFunc(func(context.Context, command.Op) (any, error) {
		return "fast", nil
	}))
	s := New[msg](reg, Config{})
	out := &collector{}

	s.Run(context.Background(), []command.Cmd[msg]{call("slow", ""), call("fast", "")}, out)
	require.Eventually(t, func() bool { return len(out.all()) == 1 }, time.Second, time.Millisecond)
	close(slowGate)
	s.Wait()

	got := out.all()
	require.Len(t, got, 2)
	assert.Equal(t, "fast", got[0].Value, "the later-started effect completes first")
	assert.Equal(t, "slow", got[1].Value)
}

func TestRunDelayWaitsForClock(t *testing.T) {
	clock := testutil.NewFakeClock(time.Time{})
	s := New[msg](echoRegistry(t), Config{Clock: clock})
	out := &collector{}

	s.Run(context.Background(), []command.Cmd[msg]{
		command.After(300*time.Millisecond, command.Msg(msg{Tag: "settled"})),
	}, out)

	require.True(t, clock.BlockUntil(1, time.Second))
	assert.Empty(t, out.all())
	assert.Equal(t, 1, s.InFlight())

	clock.Advance(300 * time.Millisecond)
	s.Wait()
	assert.Equal(t, []msg{{Tag: "settled"}}, out.all())
}

func TestRunDelayNoDeduplication(t *testing.T) {
	clock := testutil.NewFakeClock(time.Time{})
	s := New[msg](nil, Config{Clock: clock})
	out := &collector{}

	for _, tag := range []string{"first", "second"} {
		s.Run(context.Background(), []command.Cmd[msg]{
			command.After(time.Second, command.Msg(msg{Tag: tag})),
		}, out)
	}
	require.True(t, clock.BlockUntil(2, time.Second))
	clock.Advance(time.Second)
	s.Wait()

	assert.Len(t, out.all(), 2, "both delayed commands fire")
}

func TestRunDelayDroppedOnCancel(t *testing.T) {
	clock := testutil.NewFakeClock(time.Time{})
	s := New[msg](nil, Config{Clock: clock})
	out := &collector{}
	ctx, cancel := context.WithCancel(context.Background())

	s.Run(ctx, []command.Cmd[msg]{command.After(time.Hour, command.Msg(msg{Tag: "never"}))}, out)
	cancel()
	s.Wait()

	assert.Empty(t, out.all())
}

func TestMaxConcurrentBoundsExecution(t *testing.T) {
	var mu sync.Mutex
	running, peak := 0, 0
	gate := make(chan struct{})

	reg := NewRegistry()
	reg.MustRegister("work", ExecutorFunc(func(context.Context, command.Op) (any, error) {
		mu.Lock()
		running++
		if running > peak {
			peak = running
		}
		mu.Unlock()
		<-gate
		mu.Lock()
		running--
		mu.Unlock()
		return "done", nil
	}))
	s := New[msg](reg, Config{MaxConcurrent: 2})
	out := &collector{}

	cmds := make([]command.Cmd[msg], 6)
	for i := range cmds {
		cmds[i] = call("work", "")
	}
	s.Run(context.Background(), cmds, out)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return running == 2
	}, time.Second, time.Millisecond)
	close(gate)
	s.Wait()

	assert.Equal(t, 2, peak)
	assert.Len(t, out.all(), 6)
}

func TestMetricsRecordOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	execs := echoRegistry(t)
	execs.MustRegister("fail", ExecutorFunc(func(context.Context, command.Op) (any, error) {
		return nil, errors.New("no")
	}))
	s := New[msg](execs, Config{Metrics: metrics})

	s.Run(context.Background(), []command.Cmd[msg]{call("echo", "a"), call("echo", "b"), call("fail", "")}, &collector{})
	s.Wait()

	assert.Equal(t, 2.0, gatherValue(t, reg, "stateloop_effects_completed_total", map[string]string{"op": "echo", "outcome": "ok"}))
	assert.Equal(t, 1.0, gatherValue(t, reg, "stateloop_effects_completed_total", map[string]string{"op": "fail", "outcome": "error"}))
	assert.Equal(t, 2.0, gatherValue(t, reg, "stateloop_effects_started_total", map[string]string{"op": "echo"}))
	assert.Equal(t, 0.0, gatherValue(t, reg, "stateloop_effects_in_flight", nil))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.effectStarted("x")
		m.effectDone("x", true, time.Millisecond)
	})
}

// gatherValue reads a counter or gauge sample with exactly the given labels.
func gatherValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if len(metric.GetLabel()) != len(labels) {
				continue
			}
			match := true
			for _, pair := range metric.GetLabel() {
				if labels[pair.GetName()] != pair.GetValue() {
					match = false
				}
			}
			if !match {
				continue
			}
			if metric.GetCounter() != nil {
				return metric.GetCounter().GetValue()
			}
			return metric.GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return 0
}

// relay starts a new call for every message it receives from another
// goroutine, the way the dispatch loop does, until limit messages have
// arrived. The in-flight count keeps touching zero in between.
type relay struct {
	s     *Scheduler[msg]
	limit int
	mu    sync.Mutex
	seen  int
	done  chan struct{}
}

func (r *relay) Dispatch(m msg) bool {
	r.mu.Lock()
	r.seen++
	n := r.seen
	r.mu.Unlock()
	if n >= r.limit {
		close(r.done)
		return true
	}
	go r.s.Run(context.Background(), []command.Cmd[msg]{call("echo", m.Value)}, r)
	return true
}

func TestWaitWhileEffectsKeepStarting(t *testing.T) {
	s := New[msg](echoRegistry(t), Config{})
	r := &relay{s: s, limit: 2000, done: make(chan struct{})}

	s.Run(context.Background(), []command.Cmd[msg]{call("echo", "x")}, r)

	polls := 0
	for {
		select {
		case <-r.done:
			s.Wait()
			assert.Equal(t, 0, s.InFlight())
			assert.Positive(t, polls)
			return
		default:
			s.Wait()
			polls++
		}
	}
}

func TestIdleClosedWhenNothingRuns(t *testing.T) {
	s := New[msg](nil, Config{})
	select {
	case <-s.Idle():
	default:
		t.Fatal("new scheduler should be idle")
	}

	clock := testutil.NewFakeClock(time.Time{})
	s = New[msg](nil, Config{Clock: clock})
	s.Run(context.Background(), []command.Cmd[msg]{command.After(time.Second, command.Msg(msg{Tag: "late"}))}, &collector{})
	idle := s.Idle()
	select {
	case <-idle:
		t.Fatal("scheduler with a pending timer should not be idle")
	default:
	}
	require.True(t, clock.BlockUntil(1, time.Second))
	clock.Advance(time.Second)
	<-idle
	assert.Equal(t, 0, s.InFlight())
}
