package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/roach88/stateloop/internal/cache"
	"github.com/roach88/stateloop/internal/command"
	"github.com/roach88/stateloop/internal/eventlog"
	"github.com/roach88/stateloop/internal/remote"
	"github.com/roach88/stateloop/internal/scheduler"
)

// CodeIntegrity is the failure code of a fetch that hit a damaged log.
const CodeIntegrity = "integrity"

// Snapshot is a materialized state and the last sequence it includes.
type Snapshot struct {
	State State
	Seq   int64
}

const snapshotKey = "catalog"

// Notifier delivers notices to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notice) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, n Notice) error { return f(ctx, n) }

// WriterNotifier prints one line per notice to w.
func WriterNotifier(w io.Writer) Notifier {
	var mu sync.Mutex
	return NotifierFunc(func(_ context.Context, n Notice) error {
		mu.Lock()
		defer mu.Unlock()
		_, err := fmt.Fprintf(w, "! [%s] %s\n", n.Level, n.Text)
		return err
	})
}

// Service executes the ops the catalogue reducer emits. Reads are served
// from a replay of the journal, cached for the cache's TTL and dropped on
// every successful append.
type Service struct {
	journal  *eventlog.Journal[Event]
	cache    *cache.TTL[string, Snapshot]
	notifier Notifier

	// writes counts successful appends; a replay that raced an append is
	// not cached.
	mu     sync.Mutex
	writes int64
}

// NewService creates a service over log. A nil snapshots cache disables
// caching; a nil notifier discards notices.
func NewService(log eventlog.Log, snapshots *cache.TTL[string, Snapshot], notifier Notifier) *Service {
	if snapshots == nil {
		snapshots = cache.New[string, Snapshot](0, nil)
	}
	if notifier == nil {
		notifier = NotifierFunc(func(context.Context, Notice) error { return nil })
	}
	return &Service{
		journal:  eventlog.NewJournal[Event](log, Codec{}),
		cache:    snapshots,
		notifier: notifier,
	}
}

// Journal returns the typed journal.
func (s *Service) Journal() *eventlog.Journal[Event] {
	return s.journal
}

// Register adds the service's executors to reg.
func (s *Service) Register(reg *scheduler.Registry) error {
	executors := map[string]scheduler.Executor{
		OpList:            scheduler.ExecutorFunc(s.list),
		OpGet:             scheduler.ExecutorFunc(s.get),
		OpNotify:          scheduler.ExecutorFunc(s.notify),
		eventlog.OpAppend: scheduler.ExecutorFunc(s.appendEvent),
	}
	for _, name := range []string{OpList, OpGet, OpNotify, eventlog.OpAppend} {
		if err := reg.Register(name, executors[name]); err != nil {
			return fmt.Errorf("register catalog executors: %w", err)
		}
	}
	return nil
}

// Materialize returns the current catalogue, from cache when fresh.
func (s *Service) Materialize(ctx context.Context) (Snapshot, error) {
	if snap, ok := s.cache.Get(snapshotKey); ok {
		return snap, nil
	}
	s.mu.Lock()
	before := s.writes
	s.mu.Unlock()

	state, seq, err := Replay(ctx, s.journal.Log())
	if err != nil {
		if eventlog.IsIntegrityError(err) {
			slog.Error("catalog replay failed", "error", err)
			return Snapshot{}, remote.NewError(CodeIntegrity, err.Error())
		}
		return Snapshot{}, err
	}
	snap := Snapshot{State: state, Seq: seq}
	s.mu.Lock()
	if s.writes == before {
		s.cache.Set(snapshotKey, snap)
	}
	s.mu.Unlock()
	return snap, nil
}

func (s *Service) list(ctx context.Context, _ command.Op) (any, error) {
	snap, err := s.Materialize(ctx)
	if err != nil {
		return nil, err
	}
	return Listing{Items: snap.State.Items(), Seq: snap.Seq}, nil
}

func (s *Service) get(ctx context.Context, op command.Op) (any, error) {
	id, err := op.Args.Str("id")
	if err != nil {
		return nil, remote.Errorf(remote.CodeValidation, "%s: %v", OpGet, err)
	}
	snap, err := s.Materialize(ctx)
	if err != nil {
		return nil, err
	}
	it, ok := snap.State.Get(id)
	if !ok {
		return nil, remote.Errorf(remote.CodeNotFound, "no item %s", id)
	}
	return it, nil
}

func (s *Service) appendEvent(ctx context.Context, op command.Op) (any, error) {
	rec, err := s.journal.Executor().Execute(ctx, op)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.writes++
	s.cache.Delete(snapshotKey)
	s.mu.Unlock()
	return rec, nil
}

func (s *Service) notify(ctx context.Context, op command.Op) (any, error) {
	id, err := op.Args.Integer("id")
	if err != nil {
		return nil, remote.Errorf(remote.CodeValidation, "%s: %v", OpNotify, err)
	}
	level, _ := op.Args.Str("level")
	text, _ := op.Args.Str("text")
	if err := s.notifier.Notify(ctx, Notice{ID: id, Level: level, Text: text}); err != nil {
		return nil, err
	}
	return nil, nil
}
