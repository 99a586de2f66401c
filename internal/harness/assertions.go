package harness

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/stateloop/internal/command"
	"github.com/roach88/stateloop/internal/ir"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			names := make([]string, len(event.Ops))
			for i, op := range event.Ops {
				names[i] = op.Name
			}
			fmt.Fprintf(&buf, "  [%d] %s -> %v (items %s)\n", event.Seq, event.Msg, names, event.Items)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns
// the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertModel:
			err = assertModel(result.Model, a)
		case AssertCommandsContain:
			err = assertCommandsContain(result, a)
		case AssertCommandsCount:
			err = assertCommandsCount(result, a)
		case AssertEventsCount:
			err = assertEventsCount(result, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func assertModel(model ir.Object, a Assertion) error {
	v, err := Lookup(model, a.Path)
	if err != nil {
		return &AssertionError{Type: AssertModel, Expected: a.Path, Actual: err.Error()}
	}

	if a.Length != nil {
		n, ok := length(v)
		if !ok {
			return &AssertionError{
				Type:     AssertModel,
				Expected: fmt.Sprintf("%s to have a length", a.Path),
				Actual:   fmt.Sprintf("%T", v),
			}
		}
		if n != *a.Length {
			return &AssertionError{
				Type:     AssertModel,
				Expected: fmt.Sprintf("%s to have %d element(s)", a.Path, *a.Length),
				Actual:   fmt.Sprintf("%d element(s): %s", n, render(v)),
			}
		}
		return nil
	}

	want, err := ir.FromAny(a.Expect)
	if err != nil {
		return fmt.Errorf("expect: %w", err)
	}
	if !equal(want, v) {
		return &AssertionError{
			Type:     AssertModel,
			Expected: fmt.Sprintf("%s = %s", a.Path, render(want)),
			Actual:   render(v),
		}
	}
	return nil
}

func assertCommandsContain(result *Result, a Assertion) error {
	want, err := ir.ObjectFromAny(a.Args)
	if err != nil {
		return fmt.Errorf("args: %w", err)
	}
	for _, op := range result.Ops() {
		if op.Name == a.Op && matchArgs(op, want) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertCommandsContain,
		Expected: fmt.Sprintf("op %s with args %s", a.Op, render(want)),
		Actual:   "not emitted",
		Trace:    result.Trace,
	}
}

func assertCommandsCount(result *Result, a Assertion) error {
	count := 0
	for _, op := range result.Ops() {
		if op.Name == a.Op {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertCommandsCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, a.Op),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertEventsCount(result *Result, a Assertion) error {
	if result.Events != int64(a.Count) {
		return &AssertionError{
			Type:     AssertEventsCount,
			Expected: fmt.Sprintf("%d record(s)", a.Count),
			Actual:   fmt.Sprintf("%d record(s)", result.Events),
		}
	}
	return nil
}

// matchArgs reports whether every key of want is present in op's args
// with an equal value.
func matchArgs(op command.Op, want ir.Object) bool {
	for k, w := range want {
		got, ok := op.Args[k]
		if !ok || !equal(w, got) {
			return false
		}
	}
	return true
}

// Lookup resolves a dotted path such as "items.value.0.name" in v.
// Numeric segments index arrays.
func Lookup(v ir.Value, path string) (ir.Value, error) {
	cur := v
	walked := ""
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case ir.Object:
			next, ok := node[seg]
			if !ok {
				return nil, fmt.Errorf("no field %q at %q", seg, walked)
			}
			cur = next
		case ir.Array:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("no index %q at %q (length %d)", seg, walked, len(node))
			}
			cur = node[i]
		default:
			return nil, fmt.Errorf("cannot descend into %T at %q", cur, walked)
		}
		if walked != "" {
			walked += "."
		}
		walked += seg
	}
	return cur, nil
}

func length(v ir.Value) (int, bool) {
	switch node := v.(type) {
	case ir.Array:
		return len(node), true
	case ir.Object:
		return len(node), true
	case ir.String:
		return len(node), true
	}
	return 0, false
}

func equal(a, b ir.Value) bool {
	ab, err := ir.MarshalCanonical(a)
	if err != nil {
		return false
	}
	bb, err := ir.MarshalCanonical(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

func render(v ir.Value) string {
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
