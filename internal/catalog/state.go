package catalog

import (
	"fmt"
	"slices"

	"github.com/roach88/stateloop/internal/ir"
)

// Item is one catalogue entry.
type Item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Qty  int64  `json:"qty"`
}

// Object renders the item as a canonical value.
func (it Item) Object() ir.Object {
	return ir.Object{
		"id":   ir.String(it.ID),
		"name": ir.String(it.Name),
		"qty":  ir.Int(it.Qty),
	}
}

// State is the materialized catalogue. Values are immutable: Apply
// returns a new State and never modifies its input.
type State struct {
	order []string
	items map[string]Item
}

// EmptyState is the state before any event.
func EmptyState() State {
	return State{items: map[string]Item{}}
}

// Len returns the number of items.
func (s State) Len() int {
	return len(s.order)
}

// Get returns the item with id.
func (s State) Get(id string) (Item, bool) {
	it, ok := s.items[id]
	return it, ok
}

// Items returns the items in insertion order.
func (s State) Items() []Item {
	out := make([]Item, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id])
	}
	return out
}

// Object renders the state canonically, in insertion order.
func (s State) Object() ir.Object {
	arr := make(ir.Array, 0, len(s.order))
	for _, id := range s.order {
		arr = append(arr, s.items[id].Object())
	}
	return ir.Object{"items": arr}
}

// Hash is the snapshot hash of the state. Equal states hash equally.
func (s State) Hash() (string, error) {
	return ir.SnapshotHash(s.Object())
}

func (s State) clone() State {
	items := make(map[string]Item, len(s.items))
	for k, v := range s.items {
		items[k] = v
	}
	return State{order: slices.Clone(s.order), items: items}
}

// Apply folds one event into s. It is total: events about unknown items
// are no-ops, and a second add of an existing id replaces the item in
// place.
func Apply(s State, e Event) State {
	next := s.clone()
	next.apply(e)
	return next
}

// applyOwned folds e into s in place. Replay uses it on an accumulator
// nothing else can see, so a replay costs one map update per event.
func applyOwned(s State, e Event) State {
	s.apply(e)
	return s
}

func (s *State) apply(e Event) {
	switch ev := e.(type) {
	case ItemAdded:
		if _, exists := s.items[ev.ID]; !exists {
			s.order = append(s.order, ev.ID)
		}
		s.items[ev.ID] = Item{ID: ev.ID, Name: ev.Name, Qty: ev.Qty}
	case ItemRenamed:
		if it, ok := s.items[ev.ID]; ok {
			it.Name = ev.Name
			s.items[ev.ID] = it
		}
	case ItemRemoved:
		if _, ok := s.items[ev.ID]; ok {
			delete(s.items, ev.ID)
			s.order = slices.DeleteFunc(s.order, func(id string) bool { return id == ev.ID })
		}
	case StockAdjusted:
		if it, ok := s.items[ev.ID]; ok {
			it.Qty += ev.Delta
			s.items[ev.ID] = it
		}
	default:
		panic(fmt.Sprintf("catalog: unhandled event %T", e))
	}
}
