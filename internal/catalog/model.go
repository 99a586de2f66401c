package catalog

import (
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/roach88/stateloop/internal/ir"
	"github.com/roach88/stateloop/internal/remote"
)

// Notice levels.
const (
	LevelInfo  = "info"
	LevelError = "error"
)

// Notice is a user-visible message kept in the model until dismissed.
type Notice struct {
	ID        int64
	Level     string
	Text      string
	Delivered bool
}

// Change is one optimistic edit awaiting its append.
type Change struct {
	Rev   int64
	Event Event

	// Rebased is set when the change was re-applied on top of a fresh
	// listing while its append was in flight.
	Rebased bool
}

// PendingChange tracks the uncommitted edits of one item. Only InFlight
// has been handed to the journal; Queued edits wait for it to settle so
// that an item's events are appended in the order they were made.
type PendingChange struct {
	InFlight Change
	Queued   []Change
}

// Model is the program state. Values are immutable snapshots: Update
// copies every map and slice it changes.
type Model struct {
	Items    remote.Data[[]Item]
	ItemsGen int64

	// ItemsSeq is the log sequence the current listing was read at.
	ItemsSeq int64

	// CommittedSeq is the highest sequence reported by ChangeCommitted.
	CommittedSeq int64

	Detail    remote.Data[Item]
	DetailID  string
	DetailGen int64

	// Filter is the text being typed; Query is the debounced filter
	// applied to the list.
	Filter    string
	Query     string
	FilterGen int64
	Debounce  time.Duration

	// Revisions counts the edits ever made per item. It only grows, so an
	// outcome carrying an old revision is recognizably stale.
	Revisions map[string]int64
	Pending   map[string]PendingChange

	Notices    []Notice
	NextNotice int64
}

// Options configures the program.
type Options struct {
	// Debounce delays applying the filter after the last keystroke.
	Debounce time.Duration
}

// DefaultDebounce is used when Options.Debounce is zero.
const DefaultDebounce = 300 * time.Millisecond

// NewModel returns the model before anything was requested.
func NewModel(opts Options) Model {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	return Model{
		Items:     remote.NotAsked[[]Item](),
		Detail:    remote.NotAsked[Item](),
		Debounce:  opts.Debounce,
		Revisions: map[string]int64{},
		Pending:   map[string]PendingChange{},
	}
}

// Visible returns the listed items matching the settled query, compared
// with Unicode case folding. It is empty unless the list is loaded.
func (m Model) Visible() []Item {
	items, ok := m.Items.Value()
	if !ok {
		return nil
	}
	if m.Query == "" {
		return items
	}
	fold := cases.Fold()
	q := fold.String(m.Query)
	var out []Item
	for _, it := range items {
		if strings.Contains(fold.String(it.Name), q) {
			out = append(out, it)
		}
	}
	return out
}

// IsPending reports whether item id has uncommitted edits.
func (m Model) IsPending(id string) bool {
	_, ok := m.Pending[id]
	return ok
}

// Object renders the model as a canonical value for traces and
// assertions.
func (m Model) Object() ir.Object {
	pending := ir.Object{}
	for id, p := range m.Pending {
		pending[id] = ir.Object{
			"rev":    ir.Int(p.InFlight.Rev),
			"queued": ir.Int(int64(len(p.Queued))),
		}
	}
	revisions := ir.Object{}
	for id, rev := range m.Revisions {
		revisions[id] = ir.Int(rev)
	}
	notices := make(ir.Array, 0, len(m.Notices))
	for _, n := range m.Notices {
		notices = append(notices, ir.Object{
			"id":        ir.Int(n.ID),
			"level":     ir.String(n.Level),
			"text":      ir.String(n.Text),
			"delivered": ir.Bool(n.Delivered),
		})
	}

	return ir.Object{
		"items": dataObject(m.Items, func(items []Item) ir.Value {
			arr := make(ir.Array, 0, len(items))
			for _, it := range items {
				arr = append(arr, it.Object())
			}
			return arr
		}),
		"items_gen":  ir.Int(m.ItemsGen),
		"detail":     dataObject(m.Detail, func(it Item) ir.Value { return it.Object() }),
		"detail_id":  ir.String(m.DetailID),
		"detail_gen": ir.Int(m.DetailGen),
		"filter":     ir.String(m.Filter),
		"query":      ir.String(m.Query),
		"filter_gen": ir.Int(m.FilterGen),
		"pending":    pending,
		"revisions":  revisions,
		"notices":    notices,
	}
}

func dataObject[T any](d remote.Data[T], value func(T) ir.Value) ir.Object {
	return remote.Match(d, remote.Cases[T, ir.Object]{
		NotAsked: func() ir.Object { return ir.Object{"state": ir.String(remote.StateNotAsked.String())} },
		Loading:  func() ir.Object { return ir.Object{"state": ir.String(remote.StateLoading.String())} },
		Success: func(v T) ir.Object {
			return ir.Object{"state": ir.String(remote.StateSuccess.String()), "value": value(v)}
		},
		Failure: func(e remote.ErrorInfo) ir.Object {
			return ir.Object{
				"state": ir.String(remote.StateFailure.String()),
				"error": ir.Object{"code": ir.String(e.Code), "message": ir.String(e.Message)},
			}
		},
	})
}

// copy-on-write helpers

func (m Model) withRevision(id string, rev int64) Model {
	next := make(map[string]int64, len(m.Revisions)+1)
	for k, v := range m.Revisions {
		next[k] = v
	}
	next[id] = rev
	m.Revisions = next
	return m
}

func (m Model) withPending(id string, p *PendingChange) Model {
	next := make(map[string]PendingChange, len(m.Pending)+1)
	for k, v := range m.Pending {
		next[k] = v
	}
	if p == nil {
		delete(next, id)
	} else {
		next[id] = *p
	}
	m.Pending = next
	return m
}

func (m Model) withNotice(level, text string) (Model, Notice) {
	m.NextNotice++
	n := Notice{ID: m.NextNotice, Level: level, Text: text}
	m.Notices = append(slices.Clone(m.Notices), n)
	return m, n
}

// pendingIDs returns the ids with pending edits in a fixed order.
func (m Model) pendingIDs() []string {
	ids := make([]string, 0, len(m.Pending))
	for id := range m.Pending {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// stateOf rebuilds a State from a listing so that Apply can run
// optimistic edits against it.
func stateOf(items []Item) State {
	s := State{order: make([]string, 0, len(items)), items: make(map[string]Item, len(items))}
	for _, it := range items {
		if _, dup := s.items[it.ID]; !dup {
			s.order = append(s.order, it.ID)
		}
		s.items[it.ID] = it
	}
	return s
}
