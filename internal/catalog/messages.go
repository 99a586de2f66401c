package catalog

import (
	"fmt"

	"github.com/roach88/stateloop/internal/ir"
	"github.com/roach88/stateloop/internal/remote"
)

// Msg is the closed set of catalogue messages. Present-tense messages are
// user intents; past-tense messages are effect outcomes.
type Msg interface {
	isMsg()
}

// LoadItems requests the item list.
type LoadItems struct{}

// ItemsLoaded is the outcome of the list fetch started at generation Gen.
// AsOf is the last log sequence the listing includes.
type ItemsLoaded struct {
	Gen    int64
	AsOf   int64
	Result remote.Result[[]Item]
}

// LoadItem requests one item's detail.
type LoadItem struct {
	ID string
}

// ItemLoaded is the outcome of the detail fetch started at generation Gen.
type ItemLoaded struct {
	Gen    int64
	ID     string
	Result remote.Result[Item]
}

// AddItem creates an item. ID is minted by the caller.
type AddItem struct {
	ID   string
	Name string
	Qty  int64
}

// RenameItem changes an item's name.
type RenameItem struct {
	ID   string
	Name string
}

// RemoveItem deletes an item.
type RemoveItem struct {
	ID string
}

// AdjustStock adds Delta, which may be negative, to an item's quantity.
type AdjustStock struct {
	ID    string
	Delta int64
}

// ChangeCommitted reports that the change with revision Rev on item ID
// was appended at Seq.
type ChangeCommitted struct {
	ID  string
	Rev int64
	Seq int64
}

// ChangeFailed reports that the change with revision Rev on item ID was
// not committed.
type ChangeFailed struct {
	ID  string
	Rev int64
	Err remote.ErrorInfo
}

// FilterChanged is a keystroke in the filter box.
type FilterChanged struct {
	Text string
}

// FilterSettled fires after the debounce interval of generation Gen.
type FilterSettled struct {
	Gen int64
}

// NoticeDelivered reports whether notice ID reached the user.
type NoticeDelivered struct {
	ID     int64
	Failed bool
}

// DismissNotice removes notice ID from the model.
type DismissNotice struct {
	ID int64
}

// Reset returns the program to its initial, not-asked state.
type Reset struct{}

func (LoadItems) isMsg()       {}
func (ItemsLoaded) isMsg()     {}
func (LoadItem) isMsg()        {}
func (ItemLoaded) isMsg()      {}
func (AddItem) isMsg()         {}
func (RenameItem) isMsg()      {}
func (RemoveItem) isMsg()      {}
func (AdjustStock) isMsg()     {}
func (ChangeCommitted) isMsg() {}
func (ChangeFailed) isMsg()    {}
func (FilterChanged) isMsg()   {}
func (FilterSettled) isMsg()   {}
func (NoticeDelivered) isMsg() {}
func (DismissNotice) isMsg()   {}
func (Reset) isMsg()           {}

// MsgName returns the snake_case name of msg used in scenarios and
// traces.
func MsgName(msg Msg) string {
	switch msg.(type) {
	case LoadItems:
		return "load_items"
	case ItemsLoaded:
		return "items_loaded"
	case LoadItem:
		return "load_item"
	case ItemLoaded:
		return "item_loaded"
	case AddItem:
		return "add_item"
	case RenameItem:
		return "rename_item"
	case RemoveItem:
		return "remove_item"
	case AdjustStock:
		return "adjust_stock"
	case ChangeCommitted:
		return "change_committed"
	case ChangeFailed:
		return "change_failed"
	case FilterChanged:
		return "filter_changed"
	case FilterSettled:
		return "filter_settled"
	case NoticeDelivered:
		return "notice_delivered"
	case DismissNotice:
		return "dismiss_notice"
	case Reset:
		return "reset"
	default:
		return fmt.Sprintf("%T", msg)
	}
}

// DecodeIntent builds an intent message from its name and arguments.
// Outcome messages are produced by effects only and are rejected.
func DecodeIntent(name string, args ir.Object) (Msg, error) {
	if args == nil {
		args = ir.Object{}
	}
	var (
		msg Msg
		err error
	)
	switch name {
	case "load_items":
		msg = LoadItems{}
	case "load_item":
		var m LoadItem
		m.ID, err = args.Str("id")
		msg = m
	case "add_item":
		var m AddItem
		if m.ID, err = args.Str("id"); err != nil {
			break
		}
		if m.Name, err = args.Str("name"); err != nil {
			break
		}
		m.Qty, err = optionalInt(args, "qty")
		msg = m
	case "rename_item":
		var m RenameItem
		if m.ID, err = args.Str("id"); err != nil {
			break
		}
		m.Name, err = args.Str("name")
		msg = m
	case "remove_item":
		var m RemoveItem
		m.ID, err = args.Str("id")
		msg = m
	case "adjust_stock":
		var m AdjustStock
		if m.ID, err = args.Str("id"); err != nil {
			break
		}
		m.Delta, err = args.Integer("delta")
		msg = m
	case "filter_changed":
		var m FilterChanged
		m.Text, err = args.Str("text")
		msg = m
	case "filter_settled":
		var m FilterSettled
		m.Gen, err = args.Integer("gen")
		msg = m
	case "dismiss_notice":
		var m DismissNotice
		m.ID, err = args.Integer("id")
		msg = m
	case "reset":
		msg = Reset{}
	default:
		return nil, fmt.Errorf("unknown intent %q", name)
	}
	if err != nil {
		return nil, fmt.Errorf("intent %s: %w", name, err)
	}
	return msg, nil
}

func optionalInt(args ir.Object, key string) (int64, error) {
	if _, ok := args[key]; !ok {
		return 0, nil
	}
	return args.Integer(key)
}
