package catalog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/stateloop/internal/engine"
)

// ErrQuit is returned by ParseCommand for "quit".
var ErrQuit = errors.New("quit")

// Usage lists the line commands ParseCommand accepts.
const Usage = `commands:
  load                    reload the item list
  show <id>               load one item
  add <name> [qty]        add an item
  rename <id> <name>      rename an item
  rm <id>                 remove an item
  adjust <id> <+/-n>      change stock
  filter [text]           filter the list by name
  dismiss <n>             dismiss notice n
  reset                   forget everything loaded
  quit`

// ParseCommand turns one input line into an intent message. New item ids
// come from ids so the reducer stays deterministic.
func ParseCommand(line string, ids engine.IDGenerator) (Msg, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	verb, args := fields[0], fields[1:]

	need := func(n int) error {
		if len(args) < n {
			return fmt.Errorf("%s: expected %d argument(s), got %d", verb, n, len(args))
		}
		return nil
	}

	switch verb {
	case "load":
		return LoadItems{}, nil
	case "show":
		if err := need(1); err != nil {
			return nil, err
		}
		return LoadItem{ID: args[0]}, nil
	case "add":
		if err := need(1); err != nil {
			return nil, err
		}
		name := args
		var qty int64
		if len(args) > 1 {
			if n, err := strconv.ParseInt(args[len(args)-1], 10, 64); err == nil {
				qty = n
				name = args[:len(args)-1]
			}
		}
		return AddItem{ID: ids.Generate(), Name: strings.Join(name, " "), Qty: qty}, nil
	case "rename":
		if err := need(2); err != nil {
			return nil, err
		}
		return RenameItem{ID: args[0], Name: strings.Join(args[1:], " ")}, nil
	case "rm", "remove":
		if err := need(1); err != nil {
			return nil, err
		}
		return RemoveItem{ID: args[0]}, nil
	case "adjust":
		if err := need(2); err != nil {
			return nil, err
		}
		delta, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("adjust: invalid delta %q", args[1])
		}
		return AdjustStock{ID: args[0], Delta: delta}, nil
	case "filter":
		return FilterChanged{Text: strings.Join(args, " ")}, nil
	case "dismiss":
		if err := need(1); err != nil {
			return nil, err
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("dismiss: invalid notice %q", args[0])
		}
		return DismissNotice{ID: id}, nil
	case "reset":
		return Reset{}, nil
	case "quit", "exit":
		return nil, ErrQuit
	default:
		return nil, fmt.Errorf("unknown command %q", verb)
	}
}
