package catalog

import (
	"fmt"

	"github.com/roach88/stateloop/internal/command"
	"github.com/roach88/stateloop/internal/eventlog"
	"github.com/roach88/stateloop/internal/ir"
	"github.com/roach88/stateloop/internal/remote"
)

// Op names executed by Service.
const (
	OpList   = "catalog.list"
	OpGet    = "catalog.get"
	OpNotify = "ui.notify"
)

// Listing is the result of OpList: the materialized items and the last
// sequence they include.
type Listing struct {
	Items []Item
	Seq   int64
}

func listItems(gen int64) command.Cmd[Msg] {
	op := command.Op{Name: OpList, Args: ir.Object{"gen": ir.Int(gen)}}
	return command.Perform(op,
		func(l Listing) Msg {
			return ItemsLoaded{Gen: gen, AsOf: l.Seq, Result: remote.Ok(l.Items)}
		},
		func(e remote.ErrorInfo) Msg {
			return ItemsLoaded{Gen: gen, Result: remote.Err[[]Item](e)}
		},
	)
}

func getItem(id string, gen int64) command.Cmd[Msg] {
	op := command.Op{Name: OpGet, Args: ir.Object{"id": ir.String(id), "gen": ir.Int(gen)}}
	return command.Perform(op,
		func(it Item) Msg {
			return ItemLoaded{Gen: gen, ID: id, Result: remote.Ok(it)}
		},
		func(e remote.ErrorInfo) Msg {
			return ItemLoaded{Gen: gen, ID: id, Result: remote.Err[Item](e)}
		},
	)
}

// appendChange records c through the journal. Every catalogue event
// encodes, so an encoding failure is a defect.
func appendChange(id string, c Change) command.Cmd[Msg] {
	op, err := eventlog.EncodeOp[Event](Codec{}, c.Event)
	if err != nil {
		panic(fmt.Sprintf("catalog: %v", err))
	}
	rev := c.Rev
	return command.Perform(op,
		func(rec eventlog.Record) Msg {
			return ChangeCommitted{ID: id, Rev: rev, Seq: rec.Seq}
		},
		func(e remote.ErrorInfo) Msg {
			return ChangeFailed{ID: id, Rev: rev, Err: e}
		},
	)
}

func notify(n Notice) command.Cmd[Msg] {
	op := command.Op{Name: OpNotify, Args: ir.Object{
		"id":    ir.Int(n.ID),
		"level": ir.String(n.Level),
		"text":  ir.String(n.Text),
	}}
	id := n.ID
	return command.Perform(op,
		func(struct{}) Msg { return NoticeDelivered{ID: id} },
		func(remote.ErrorInfo) Msg { return NoticeDelivered{ID: id, Failed: true} },
	)
}
