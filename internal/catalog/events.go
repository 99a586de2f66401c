package catalog

import (
	"context"
	"fmt"

	"github.com/roach88/stateloop/internal/eventlog"
	"github.com/roach88/stateloop/internal/ir"
)

// Record kinds.
const (
	KindItemAdded     = "item_added"
	KindItemRenamed   = "item_renamed"
	KindItemRemoved   = "item_removed"
	KindStockAdjusted = "stock_adjusted"
)

// Event is a committed catalogue fact. The set is closed.
type Event interface {
	eventKind() string
}

// ItemAdded records a new item, or replaces one with the same ID.
type ItemAdded struct {
	ID   string
	Name string
	Qty  int64
}

// ItemRenamed records a new name for an item.
type ItemRenamed struct {
	ID   string
	Name string
}

// ItemRemoved records the deletion of an item.
type ItemRemoved struct {
	ID string
}

// StockAdjusted records a change of Delta to an item's quantity.
type StockAdjusted struct {
	ID    string
	Delta int64
}

func (ItemAdded) eventKind() string     { return KindItemAdded }
func (ItemRenamed) eventKind() string   { return KindItemRenamed }
func (ItemRemoved) eventKind() string   { return KindItemRemoved }
func (StockAdjusted) eventKind() string { return KindStockAdjusted }

// Codec is the eventlog codec for catalogue events.
type Codec struct{}

var _ eventlog.Codec[Event] = Codec{}

// Encode implements eventlog.Codec.
func (Codec) Encode(e Event) (string, ir.Object, error) {
	switch ev := e.(type) {
	case ItemAdded:
		return KindItemAdded, ir.Object{
			"id":   ir.String(ev.ID),
			"name": ir.String(ev.Name),
			"qty":  ir.Int(ev.Qty),
		}, nil
	case ItemRenamed:
		return KindItemRenamed, ir.Object{
			"id":   ir.String(ev.ID),
			"name": ir.String(ev.Name),
		}, nil
	case ItemRemoved:
		return KindItemRemoved, ir.Object{"id": ir.String(ev.ID)}, nil
	case StockAdjusted:
		return KindStockAdjusted, ir.Object{
			"id":    ir.String(ev.ID),
			"delta": ir.Int(ev.Delta),
		}, nil
	default:
		return "", nil, fmt.Errorf("encode %T: %w", e, eventlog.ErrUnknownKind)
	}
}

// Decode implements eventlog.Codec.
func (Codec) Decode(kind string, p ir.Object) (Event, error) {
	var (
		ev  Event
		err error
	)
	switch kind {
	case KindItemAdded:
		var e ItemAdded
		if e.ID, err = p.Str("id"); err != nil {
			break
		}
		if e.Name, err = p.Str("name"); err != nil {
			break
		}
		e.Qty, err = p.Integer("qty")
		ev = e
	case KindItemRenamed:
		var e ItemRenamed
		if e.ID, err = p.Str("id"); err != nil {
			break
		}
		e.Name, err = p.Str("name")
		ev = e
	case KindItemRemoved:
		var e ItemRemoved
		e.ID, err = p.Str("id")
		ev = e
	case KindStockAdjusted:
		var e StockAdjusted
		if e.ID, err = p.Str("id"); err != nil {
			break
		}
		e.Delta, err = p.Integer("delta")
		ev = e
	default:
		return nil, fmt.Errorf("kind %q: %w", kind, eventlog.ErrUnknownKind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	return ev, nil
}

// Replay materializes the catalogue from log.
func Replay(ctx context.Context, log eventlog.Log) (State, int64, error) {
	return eventlog.Replay(ctx, log, eventlog.Codec[Event](Codec{}), applyOwned, EmptyState())
}
