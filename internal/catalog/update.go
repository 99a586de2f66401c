package catalog

import (
	"fmt"
	"strings"

	"github.com/roach88/stateloop/internal/command"
	"github.com/roach88/stateloop/internal/engine"
	"github.com/roach88/stateloop/internal/remote"
)

type cmds = []command.Cmd[Msg]

// Program returns the catalogue program. View is left to the caller.
func Program(opts Options) engine.Program[Model, Msg] {
	return engine.Program[Model, Msg]{
		Init:   Init(opts),
		Update: Update,
	}
}

// Init returns the boot contract: the list starts loading immediately.
func Init(opts Options) func() (Model, []command.Cmd[Msg]) {
	return func() (Model, []command.Cmd[Msg]) {
		return NewModel(opts).loadItems()
	}
}

// Update is the catalogue reducer.
func Update(msg Msg, m Model) (Model, []command.Cmd[Msg]) {
	switch msg := msg.(type) {
	case LoadItems:
		return m.loadItems()
	case ItemsLoaded:
		return m.itemsLoaded(msg)
	case LoadItem:
		return m.loadItem(msg.ID)
	case ItemLoaded:
		return m.itemLoaded(msg)
	case AddItem:
		return m.addItem(msg)
	case RenameItem:
		return m.renameItem(msg)
	case RemoveItem:
		return m.removeItem(msg)
	case AdjustStock:
		return m.adjustStock(msg)
	case ChangeCommitted:
		return m.changeCommitted(msg)
	case ChangeFailed:
		return m.changeFailed(msg)
	case FilterChanged:
		m.Filter = msg.Text
		m.FilterGen++
		return m, cmds{command.After(m.Debounce, command.Msg[Msg](FilterSettled{Gen: m.FilterGen}))}
	case FilterSettled:
		if msg.Gen != m.FilterGen {
			return m, nil
		}
		m.Query = m.Filter
		return m, nil
	case NoticeDelivered:
		return m.noticeDelivered(msg), nil
	case DismissNotice:
		return m.dismissNotice(msg.ID), nil
	case Reset:
		return m.reset(), nil
	default:
		panic(engine.Unhandled(msg))
	}
}

// Loads

func (m Model) loadItems() (Model, []command.Cmd[Msg]) {
	m.ItemsGen++
	m.Items = m.Items.Request()
	return m, cmds{listItems(m.ItemsGen)}
}

func (m Model) itemsLoaded(msg ItemsLoaded) (Model, []command.Cmd[Msg]) {
	if msg.Gen != m.ItemsGen {
		return m, nil
	}

	items, ok := msg.Result.Value()
	if !ok {
		e, _ := msg.Result.Failure()
		failed, err := m.Items.Reject(e)
		if err != nil {
			panic(err)
		}
		m.Items = failed
		return m.fail(fmt.Sprintf("loading items failed: %s", e.Message))
	}

	// A listing read before a change we already saw committed would
	// silently drop that change.
	if msg.AsOf < m.CommittedSeq {
		return m.loadItems()
	}

	m, items = m.rebase(items)
	resolved, err := m.Items.Resolve(items)
	if err != nil {
		panic(err)
	}
	m.Items = resolved
	m.ItemsSeq = msg.AsOf
	return m, nil
}

// rebase re-applies every pending edit on top of a fresh listing, in-flight
// edits first. In-flight edits are marked so that their commit can tell
// whether the listing already contained them.
func (m Model) rebase(items []Item) (Model, []Item) {
	if len(m.Pending) == 0 {
		return m, items
	}
	s := stateOf(items)
	for _, id := range m.pendingIDs() {
		p := m.Pending[id]
		s = Apply(s, p.InFlight.Event)
		for _, c := range p.Queued {
			s = Apply(s, c.Event)
		}
		p.InFlight.Rebased = true
		m = m.withPending(id, &p)
	}
	return m, s.Items()
}

func (m Model) loadItem(id string) (Model, []command.Cmd[Msg]) {
	m.DetailGen++
	m.DetailID = id
	m.Detail = m.Detail.Request()
	return m, cmds{getItem(id, m.DetailGen)}
}

func (m Model) itemLoaded(msg ItemLoaded) (Model, []command.Cmd[Msg]) {
	if msg.Gen != m.DetailGen {
		return m, nil
	}
	detail, err := m.Detail.Settle(msg.Result)
	if err != nil {
		panic(err)
	}
	m.Detail = detail
	if e, failed := msg.Result.Failure(); failed {
		return m.fail(fmt.Sprintf("loading item %s failed: %s", msg.ID, e.Message))
	}
	return m, nil
}

// Optimistic edits

func (m Model) listed() ([]Item, bool) {
	return m.Items.Value()
}

func (m Model) lookup(id string) (Item, bool) {
	items, ok := m.listed()
	if !ok {
		return Item{}, false
	}
	for _, it := range items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// precheck validates an edit of an existing item against the listing.
func (m Model) precheck(id string) (Item, string) {
	if _, ok := m.listed(); !ok {
		return Item{}, "catalogue is not loaded"
	}
	it, ok := m.lookup(id)
	if !ok {
		return Item{}, fmt.Sprintf("no item %s", id)
	}
	return it, ""
}

func (m Model) addItem(msg AddItem) (Model, []command.Cmd[Msg]) {
	name := strings.TrimSpace(msg.Name)
	switch {
	case msg.ID == "":
		return m.fail("item id is required")
	case name == "":
		return m.fail("item name is required")
	case msg.Qty < 0:
		return m.fail(fmt.Sprintf("quantity must not be negative, got %d", msg.Qty))
	}
	if _, ok := m.listed(); !ok {
		return m.fail("catalogue is not loaded")
	}
	if _, exists := m.lookup(msg.ID); exists {
		return m.fail(fmt.Sprintf("item %s already exists", msg.ID))
	}
	return m.propose(msg.ID, ItemAdded{ID: msg.ID, Name: name, Qty: msg.Qty})
}

func (m Model) renameItem(msg RenameItem) (Model, []command.Cmd[Msg]) {
	if _, problem := m.precheck(msg.ID); problem != "" {
		return m.fail(problem)
	}
	name := strings.TrimSpace(msg.Name)
	if name == "" {
		return m.fail("item name is required")
	}
	return m.propose(msg.ID, ItemRenamed{ID: msg.ID, Name: name})
}

func (m Model) removeItem(msg RemoveItem) (Model, []command.Cmd[Msg]) {
	if _, problem := m.precheck(msg.ID); problem != "" {
		return m.fail(problem)
	}
	return m.propose(msg.ID, ItemRemoved{ID: msg.ID})
}

func (m Model) adjustStock(msg AdjustStock) (Model, []command.Cmd[Msg]) {
	it, problem := m.precheck(msg.ID)
	if problem != "" {
		return m.fail(problem)
	}
	if msg.Delta == 0 {
		return m, nil
	}
	if it.Qty+msg.Delta < 0 {
		return m.fail(fmt.Sprintf("insufficient stock for %s: have %d, adjust %d", msg.ID, it.Qty, msg.Delta))
	}
	return m.propose(msg.ID, StockAdjusted{ID: msg.ID, Delta: msg.Delta})
}

// propose applies ev to the listing immediately and schedules its append.
// Edits of an item already waiting on the journal are queued behind it.
func (m Model) propose(id string, ev Event) (Model, []command.Cmd[Msg]) {
	rev := m.Revisions[id] + 1
	m = m.withRevision(id, rev)
	c := Change{Rev: rev, Event: ev}

	items, _ := m.listed()
	m.Items = remote.Succeed(Apply(stateOf(items), ev).Items())

	p, busy := m.Pending[id]
	if busy {
		p.Queued = append(append([]Change(nil), p.Queued...), c)
		return m.withPending(id, &p), nil
	}
	return m.withPending(id, &PendingChange{InFlight: c}), cmds{appendChange(id, c)}
}

func (m Model) changeCommitted(msg ChangeCommitted) (Model, []command.Cmd[Msg]) {
	// The append happened even when the edit is no longer tracked, so
	// listings read before it are still stale.
	if msg.Seq > m.CommittedSeq {
		m.CommittedSeq = msg.Seq
	}
	p, ok := m.Pending[msg.ID]
	if !ok || p.InFlight.Rev != msg.Rev {
		return m, nil
	}

	var out []command.Cmd[Msg]
	if len(p.Queued) > 0 {
		next := PendingChange{InFlight: p.Queued[0], Queued: p.Queued[1:]}
		m = m.withPending(msg.ID, &next)
		out = append(out, appendChange(msg.ID, next.InFlight))
	} else {
		m = m.withPending(msg.ID, nil)
	}

	// The listing already held this change when it was rebased, so it was
	// applied twice.
	if p.InFlight.Rebased && msg.Seq <= m.ItemsSeq {
		var reload []command.Cmd[Msg]
		m, reload = m.loadItems()
		out = append(out, reload...)
	}
	if msg.ID == m.DetailID && !m.Detail.IsNotAsked() {
		var refresh []command.Cmd[Msg]
		m, refresh = m.loadItem(msg.ID)
		out = append(out, refresh...)
	}
	return m, out
}

// changeFailed reverts a failed edit. A lone add is compensated by
// removing the item; anything else reloads the authoritative list, since
// queued edits were built on the failed one and are discarded.
func (m Model) changeFailed(msg ChangeFailed) (Model, []command.Cmd[Msg]) {
	p, ok := m.Pending[msg.ID]
	if !ok || p.InFlight.Rev != msg.Rev {
		return m, nil
	}
	m = m.withPending(msg.ID, nil)

	var out []command.Cmd[Msg]
	_, isAdd := p.InFlight.Event.(ItemAdded)
	if isAdd && len(p.Queued) == 0 && m.Items.IsSuccess() {
		items, _ := m.listed()
		m.Items = remote.Succeed(Apply(stateOf(items), ItemRemoved{ID: msg.ID}).Items())
	} else {
		var reload []command.Cmd[Msg]
		m, reload = m.loadItems()
		out = append(out, reload...)
	}
	if msg.ID == m.DetailID && !m.Detail.IsNotAsked() {
		var refresh []command.Cmd[Msg]
		m, refresh = m.loadItem(msg.ID)
		out = append(out, refresh...)
	}

	text := fmt.Sprintf("change to %s failed: %s", msg.ID, msg.Err.Message)
	if n := len(p.Queued); n > 0 {
		text += fmt.Sprintf(" (%d queued change(s) discarded)", n)
	}
	m, fail := m.fail(text)
	return m, append(out, fail...)
}

// Notices

// fail records an error notice and asks the renderer to show it.
func (m Model) fail(text string) (Model, []command.Cmd[Msg]) {
	m, n := m.withNotice(LevelError, text)
	return m, cmds{notify(n)}
}

func (m Model) noticeDelivered(msg NoticeDelivered) Model {
	if msg.Failed {
		return m
	}
	for i, n := range m.Notices {
		if n.ID == msg.ID {
			notices := append([]Notice(nil), m.Notices...)
			notices[i].Delivered = true
			m.Notices = notices
			break
		}
	}
	return m
}

func (m Model) dismissNotice(id int64) Model {
	for i, n := range m.Notices {
		if n.ID == id {
			notices := make([]Notice, 0, len(m.Notices)-1)
			notices = append(notices, m.Notices[:i]...)
			m.Notices = append(notices, m.Notices[i+1:]...)
			break
		}
	}
	return m
}

// reset returns to not-asked. Generations move forward so outcomes of
// requests made before the reset are ignored; revisions are kept for the
// same reason.
func (m Model) reset() Model {
	next := NewModel(Options{Debounce: m.Debounce})
	next.ItemsGen = m.ItemsGen + 1
	next.DetailGen = m.DetailGen + 1
	next.FilterGen = m.FilterGen + 1
	next.CommittedSeq = m.CommittedSeq
	next.Revisions = m.Revisions
	next.NextNotice = m.NextNotice
	return next
}
