package catalog

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stateloop/internal/cache"
	"github.com/roach88/stateloop/internal/command"
	"github.com/roach88/stateloop/internal/engine"
	"github.com/roach88/stateloop/internal/eventlog"
	"github.com/roach88/stateloop/internal/ir"
	"github.com/roach88/stateloop/internal/remote"
	"github.com/roach88/stateloop/internal/scheduler"
	"github.com/roach88/stateloop/internal/testutil"
)

func seededService(t *testing.T, snapshots *cache.TTL[string, Snapshot]) (*Service, *eventlog.Memory) {
	t.Helper()
	log := eventlog.NewMemory(nil)
	svc := NewService(log, snapshots, nil)
	for _, e := range []Event{
		ItemAdded{ID: "a1", Name: "bolt", Qty: 10},
		ItemAdded{ID: "a2", Name: "nut", Qty: 4},
	} {
		_, err := svc.Journal().Append(context.Background(), e)
		require.NoError(t, err)
	}
	return svc, log
}

func TestService_ListAndGet(t *testing.T) {
	ctx := context.Background()
	svc, _ := seededService(t, nil)

	res, err := svc.list(ctx, command.Op{Name: OpList})
	require.NoError(t, err)
	assert.Equal(t, Listing{Items: []Item{bolt, nut}, Seq: 2}, res)

	res, err = svc.get(ctx, command.Op{Name: OpGet, Args: ir.Object{"id": ir.String("a2")}})
	require.NoError(t, err)
	assert.Equal(t, nut, res)

	_, err = svc.get(ctx, command.Op{Name: OpGet, Args: ir.Object{"id": ir.String("zz")}})
	assert.Equal(t, remote.CodeNotFound, remote.InfoFrom(err).Code)

	_, err = svc.get(ctx, command.Op{Name: OpGet})
	assert.Equal(t, remote.CodeValidation, remote.InfoFrom(err).Code)
}

func TestService_CacheInvalidatedByAppend(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewFakeClock(time.Time{})
	snapshots := cache.New[string, Snapshot](time.Minute, clock.Now)
	svc, _ := seededService(t, snapshots)

	_, err := svc.Materialize(ctx)
	require.NoError(t, err)
	_, err = svc.Materialize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), snapshots.Stats().Hits)

	_, err = svc.appendEvent(ctx, eventlog.AppendOp(KindItemRemoved, ir.Object{"id": ir.String("a1")}))
	require.NoError(t, err)

	snap, err := svc.Materialize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), snap.Seq)
	assert.Equal(t, []Item{nut}, snap.State.Items())
}

func TestService_CacheExpires(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewFakeClock(time.Time{})
	snapshots := cache.New[string, Snapshot](time.Minute, clock.Now)
	svc, log := seededService(t, snapshots)

	_, err := svc.Materialize(ctx)
	require.NoError(t, err)

	// A write that bypasses the service is only seen after expiry.
	_, err = log.Append(ctx, KindItemRemoved, ir.Object{"id": ir.String("a1")})
	require.NoError(t, err)

	snap, err := svc.Materialize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.Seq)

	clock.Advance(time.Minute)
	snap, err = svc.Materialize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), snap.Seq)
}

func TestService_AppendRejectsUnknownKind(t *testing.T) {
	svc, log := seededService(t, nil)
	_, err := svc.appendEvent(context.Background(), eventlog.AppendOp("item_exploded", ir.Object{}))
	assert.Equal(t, remote.CodeValidation, remote.InfoFrom(err).Code)
	assert.Equal(t, 2, log.Len())
}

func TestService_IntegrityFailure(t *testing.T) {
	ctx := context.Background()
	log := eventlog.NewMemory(nil)
	_, err := log.Append(ctx, "item_exploded", ir.Object{})
	require.NoError(t, err)

	svc := NewService(log, nil, nil)
	_, err = svc.list(ctx, command.Op{Name: OpList})
	assert.Equal(t, CodeIntegrity, remote.InfoFrom(err).Code)
}

func TestService_Notify(t *testing.T) {
	var buf bytes.Buffer
	svc := NewService(eventlog.NewMemory(nil), nil, WriterNotifier(&buf))

	res, err := svc.notify(context.Background(), command.Op{Name: OpNotify, Args: ir.Object{
		"id":    ir.Int(1),
		"level": ir.String(LevelError),
		"text":  ir.String("disk full"),
	}})
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, "! [error] disk full\n", buf.String())

	failing := NewService(eventlog.NewMemory(nil), nil, NotifierFunc(func(context.Context, Notice) error {
		return errors.New("tty gone")
	}))
	_, err = failing.notify(context.Background(), command.Op{Name: OpNotify, Args: ir.Object{"id": ir.Int(1)}})
	assert.Error(t, err)
}

func TestService_RegisterTwiceFails(t *testing.T) {
	reg := scheduler.NewRegistry()
	svc := NewService(eventlog.NewMemory(nil), nil, nil)
	require.NoError(t, svc.Register(reg))
	assert.Equal(t, []string{OpGet, OpList, eventlog.OpAppend, OpNotify}, reg.Names())
	assert.Error(t, svc.Register(reg))
}

// runCatalog runs the full program over log until the returned stop is
// called.
func runCatalog(t *testing.T, log eventlog.Log) (*engine.Runtime[Model, Msg], *scheduler.Scheduler[Msg], func() Model) {
	t.Helper()
	reg := scheduler.NewRegistry()
	svc := NewService(log, cache.New[string, Snapshot](time.Minute, nil), nil)
	require.NoError(t, svc.Register(reg))

	sched := scheduler.New[Msg](reg, scheduler.Config{MaxConcurrent: 4, EffectTimeout: 5 * time.Second})
	rt, err := engine.New(Program(Options{Debounce: time.Millisecond}), sched)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = rt.Run(ctx)
	}()
	stop := func() Model {
		cancel()
		wg.Wait()
		sched.Wait()
		return rt.Snapshot()
	}
	t.Cleanup(func() { cancel(); wg.Wait() })
	return rt, sched, stop
}

func TestRuntime_EditsAreJournaledAndReplayable(t *testing.T) {
	log := eventlog.NewMemory(nil)
	rt, _, stop := runCatalog(t, log)

	require.Eventually(t, func() bool { return rt.Snapshot().Items.IsSuccess() }, 2*time.Second, 5*time.Millisecond)

	rt.Dispatch(AddItem{ID: "a1", Name: "bolt", Qty: 10})
	require.Eventually(t, func() bool { return log.Len() == 1 && !rt.Snapshot().IsPending("a1") }, 2*time.Second, 5*time.Millisecond)

	rt.Dispatch(AdjustStock{ID: "a1", Delta: -3})
	rt.Dispatch(RenameItem{ID: "a1", Name: "hex bolt"})
	rt.Dispatch(AddItem{ID: "a2", Name: "nut", Qty: 1})
	require.Eventually(t, func() bool {
		return log.Len() == 4 && len(rt.Snapshot().Pending) == 0
	}, 2*time.Second, 5*time.Millisecond)

	final := stop()
	live, ok := final.Items.Value()
	require.True(t, ok)

	replayed, n, err := Replay(context.Background(), log)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.Equal(t, replayed.Items(), live, "replay reconstructs the live list")
	assert.Equal(t, []Item{{ID: "a1", Name: "hex bolt", Qty: 7}, {ID: "a2", Name: "nut", Qty: 1}}, live)
}

func TestRuntime_AppendFailureRevertsAdd(t *testing.T) {
	faulty := eventlog.NewFaulty(eventlog.NewMemory(nil))
	rt, _, stop := runCatalog(t, faulty)
	require.Eventually(t, func() bool { return rt.Snapshot().Items.IsSuccess() }, 2*time.Second, 5*time.Millisecond)

	faulty.Break(errors.New("disk unavailable"))
	rt.Dispatch(AddItem{ID: "a1", Name: "bolt", Qty: 1})

	require.Eventually(t, func() bool {
		m := rt.Snapshot()
		return len(m.Notices) == 1 && m.Notices[0].Delivered
	}, 2*time.Second, 5*time.Millisecond)

	final := stop()
	items, _ := final.Items.Value()
	assert.Empty(t, items)
	assert.Contains(t, final.Notices[0].Text, "disk unavailable")

	last, err := faulty.LastSeq(context.Background())
	require.NoError(t, err)
	assert.Zero(t, last)
}
