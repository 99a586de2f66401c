package harness

import (
	"github.com/roach88/stateloop/internal/command"
	"github.com/roach88/stateloop/internal/ir"
)

// TraceEvent is one reducer step: the message processed, the ops its
// commands will run and the resulting item list state.
type TraceEvent struct {
	Seq   int64
	Msg   string
	Ops   []command.Op
	Items string
}

// Result is the outcome of a scenario.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool

	// Trace holds the init step (Seq 0) and every processed message.
	Trace []TraceEvent

	// Errors holds assertion failures.
	Errors []string

	// Model is the final model as a canonical value.
	Model ir.Object

	// Events is the number of records in the log at the end.
	Events int64
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{Pass: true, Trace: []TraceEvent{}, Errors: []string{}}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Ops returns every op emitted during the run, in trace order.
func (r *Result) Ops() []command.Op {
	var ops []command.Op
	for _, e := range r.Trace {
		ops = append(ops, e.Ops...)
	}
	return ops
}
