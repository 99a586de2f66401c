// Package command defines inert descriptions of side effects.
//
// A Cmd is data. Constructing one performs no I/O; only the scheduler
// turns a Cmd into work, and every piece of work re-enters the dispatch
// loop as a message built by the Cmd's own constructors.
package command

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/stateloop/internal/ir"
	"github.com/roach88/stateloop/internal/remote"
)

// CodeResultType is the ErrorInfo code used when an executor returns a
// value of a type the command did not declare.
const CodeResultType = "result_type"

// Kind identifies the variant of a Cmd.
type Kind int

const (
	KindNone Kind = iota
	KindMsg
	KindCall
	KindBatch
	KindDelay
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindMsg:
		return "msg"
	case KindCall:
		return "call"
	case KindBatch:
		return "batch"
	case KindDelay:
		return "after"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Op is the opaque descriptor of an operation an executor knows how to
// perform, e.g. {Name: "catalog.get", Args: {"id": "a1"}}.
type Op struct {
	Name string
	Args ir.Object
}

// String renders the op with canonical args so equal ops print equally.
func (o Op) String() string {
	if len(o.Args) == 0 {
		return o.Name
	}
	args, err := ir.MarshalCanonical(o.Args)
	if err != nil {
		return fmt.Sprintf("%s %v", o.Name, o.Args)
	}
	return o.Name + " " + string(args)
}

// Cmd is an inert command producing messages of type M.
// The zero value is None.
type Cmd[M any] struct {
	kind     Kind
	msg      M
	op       Op
	onOK     func(any) M
	onErr    func(remote.ErrorInfo) M
	children []Cmd[M]
	delay    time.Duration
}

// None returns the no-op command.
func None[M any]() Cmd[M] {
	return Cmd[M]{}
}

// Msg returns a command that injects m into the loop.
func Msg[M any](m M) Cmd[M] {
	return Cmd[M]{kind: KindMsg, msg: m}
}

// Perform returns a command that runs op and reports its outcome through
// onOK or onErr. An executor result that is not an R is reported through
// onErr with CodeResultType; a nil result is passed as the zero R.
// Both constructors are required.
func Perform[M, R any](op Op, onOK func(R) M, onErr func(remote.ErrorInfo) M) Cmd[M] {
	if onOK == nil || onErr == nil {
		panic(fmt.Sprintf("command: Perform %q requires both success and failure constructors", op.Name))
	}
	ok := func(v any) M {
		if v == nil {
			var zero R
			return onOK(zero)
		}
		r, good := v.(R)
		if !good {
			var zero R
			return onErr(remote.Errorf(CodeResultType, "op %s: expected %T, got %T", op.Name, zero, v))
		}
		return onOK(r)
	}
	return Cmd[M]{kind: KindCall, op: op, onOK: ok, onErr: onErr}
}

// Batch combines commands. Nested batches are flattened and None children
// dropped; an empty batch is None and a batch of one is that command.
// Children carry no ordering guarantee relative to each other.
func Batch[M any](cmds ...Cmd[M]) Cmd[M] {
	var flat []Cmd[M]
	for _, c := range cmds {
		switch c.kind {
		case KindNone:
		case KindBatch:
			flat = append(flat, c.children...)
		default:
			flat = append(flat, c)
		}
	}
	switch len(flat) {
	case 0:
		return None[M]()
	case 1:
		return flat[0]
	}
	return Cmd[M]{kind: KindBatch, children: flat}
}

// After returns a command that runs c once d has elapsed. The scheduler
// never deduplicates delayed commands; supersession is the reducer's job.
func After[M any](d time.Duration, c Cmd[M]) Cmd[M] {
	if c.kind == KindNone {
		return c
	}
	return Cmd[M]{kind: KindDelay, delay: d, children: []Cmd[M]{c}}
}

// Kind returns the command variant.
func (c Cmd[M]) Kind() Kind { return c.kind }

// IsNone reports whether c does nothing.
func (c Cmd[M]) IsNone() bool { return c.kind == KindNone }

// Message returns the injected message of a Msg command.
func (c Cmd[M]) Message() (M, bool) {
	return c.msg, c.kind == KindMsg
}

// Op returns the operation of a Call command.
func (c Cmd[M]) Op() (Op, bool) {
	return c.op, c.kind == KindCall
}

// Children returns the constituents of a Batch command.
func (c Cmd[M]) Children() []Cmd[M] {
	if c.kind != KindBatch {
		return nil
	}
	return c.children
}

// Delayed returns the wait and the wrapped command of an After command.
func (c Cmd[M]) Delayed() (time.Duration, Cmd[M], bool) {
	if c.kind != KindDelay {
		return 0, None[M](), false
	}
	return c.delay, c.children[0], true
}

// Succeed builds the success message of a Call command from an executor
// result. It panics for any other kind.
func (c Cmd[M]) Succeed(result any) M {
	if c.kind != KindCall {
		panic(fmt.Sprintf("command: Succeed on %s command", c.kind))
	}
	return c.onOK(result)
}

// Fail builds the failure message of a Call command.
// It panics for any other kind.
func (c Cmd[M]) Fail(e remote.ErrorInfo) M {
	if c.kind != KindCall {
		panic(fmt.Sprintf("command: Fail on %s command", c.kind))
	}
	return c.onErr(e)
}

// String renders a deterministic description. Two commands built from the
// same inputs print the same string, which is what determinism checks and
// traces compare.
func (c Cmd[M]) String() string {
	switch c.kind {
	case KindNone:
		return "none"
	case KindMsg:
		return fmt.Sprintf("msg(%T%+v)", c.msg, c.msg)
	case KindCall:
		return "call(" + c.op.String() + ")"
	case KindBatch:
		parts := make([]string, len(c.children))
		for i, child := range c.children {
			parts[i] = child.String()
		}
		return "batch[" + strings.Join(parts, ", ") + "]"
	case KindDelay:
		return fmt.Sprintf("after(%s, %s)", c.delay, c.children[0])
	default:
		return c.kind.String()
	}
}

// Describe renders each command with String, skipping None.
func Describe[M any](cmds []Cmd[M]) []string {
	out := make([]string, 0, len(cmds))
	for _, c := range cmds {
		if c.kind == KindNone {
			continue
		}
		out = append(out, c.String())
	}
	return out
}

// Ops walks cmds, including batch and delayed children, and returns every
// Call op in depth-first order.
func Ops[M any](cmds []Cmd[M]) []Op {
	var ops []Op
	var walk func(Cmd[M])
	walk = func(c Cmd[M]) {
		switch c.kind {
		case KindCall:
			ops = append(ops, c.op)
		case KindBatch, KindDelay:
			for _, child := range c.children {
				walk(child)
			}
		}
	}
	for _, c := range cmds {
		walk(c)
	}
	return ops
}
