package remote

import (
	"encoding/json"
	"fmt"
)

// State identifies which of the four lifecycle states a Data is in.
type State int

const (
	StateNotAsked State = iota
	StateLoading
	StateSuccess
	StateFailure
)

// String returns the snake_case state name used in traces and JSON.
func (s State) String() string {
	switch s {
	case StateNotAsked:
		return "not_asked"
	case StateLoading:
		return "loading"
	case StateSuccess:
		return "success"
	case StateFailure:
		return "failure"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// CanTransition reports whether the lifecycle allows moving from one state
// to another. Any state may be reset to NotAsked explicitly through Reset;
// that edge is not reported here.
func CanTransition(from, to State) bool {
	switch to {
	case StateLoading:
		return from == StateNotAsked || from == StateLoading || from == StateSuccess || from == StateFailure
	case StateSuccess, StateFailure:
		return from == StateLoading
	default:
		return false
	}
}

// Data is an asynchronous value in one of four states. The zero value is
// NotAsked. Fields are unexported so that Success always has a value and
// Failure always has an error.
type Data[T any] struct {
	state State
	value T
	err   ErrorInfo
}

// NotAsked returns a Data that has never been requested.
func NotAsked[T any]() Data[T] {
	return Data[T]{state: StateNotAsked}
}

// Loading returns a Data with a request in flight.
func Loading[T any]() Data[T] {
	return Data[T]{state: StateLoading}
}

// Succeed returns a Data holding v.
func Succeed[T any](v T) Data[T] {
	return Data[T]{state: StateSuccess, value: v}
}

// Fail returns a Data holding err. It panics on a zero ErrorInfo: a
// failure without an error payload is a programming defect.
func Fail[T any](err ErrorInfo) Data[T] {
	if err.IsZero() {
		panic("remote: Fail called with empty ErrorInfo")
	}
	return Data[T]{state: StateFailure, err: err}
}

// State returns the current lifecycle state.
func (d Data[T]) State() State { return d.state }

// IsNotAsked reports whether no request has been made since the last reset.
func (d Data[T]) IsNotAsked() bool { return d.state == StateNotAsked }

// IsLoading reports whether a request is outstanding.
func (d Data[T]) IsLoading() bool { return d.state == StateLoading }

// IsSuccess reports whether d holds a value.
func (d Data[T]) IsSuccess() bool { return d.state == StateSuccess }

// IsFailure reports whether d holds an error.
func (d Data[T]) IsFailure() bool { return d.state == StateFailure }

// Request moves to Loading. It is valid from every state.
func (d Data[T]) Request() Data[T] {
	return Loading[T]()
}

// Resolve moves Loading to Success(v).
func (d Data[T]) Resolve(v T) (Data[T], error) {
	if !CanTransition(d.state, StateSuccess) {
		return d, &TransitionError{From: d.state, To: StateSuccess}
	}
	return Succeed(v), nil
}

// Reject moves Loading to Failure(err).
func (d Data[T]) Reject(err ErrorInfo) (Data[T], error) {
	if !CanTransition(d.state, StateFailure) {
		return d, &TransitionError{From: d.state, To: StateFailure}
	}
	if err.IsZero() {
		return d, fmt.Errorf("remote: reject with empty ErrorInfo")
	}
	return Fail[T](err), nil
}

// Settle applies a Result to a Loading value: Ok resolves, Err rejects.
func (d Data[T]) Settle(r Result[T]) (Data[T], error) {
	if v, ok := r.Value(); ok {
		return d.Resolve(v)
	}
	e, _ := r.Failure()
	return d.Reject(e)
}

// Reset explicitly returns to NotAsked.
func (d Data[T]) Reset() Data[T] {
	return NotAsked[T]()
}

// Value returns the success value and true, or the zero T and false.
func (d Data[T]) Value() (T, bool) {
	if d.state != StateSuccess {
		var zero T
		return zero, false
	}
	return d.value, true
}

// Err returns the failure payload and true, or a zero ErrorInfo and false.
func (d Data[T]) Err() (ErrorInfo, bool) {
	if d.state != StateFailure {
		return ErrorInfo{}, false
	}
	return d.err, true
}

// WithDefault returns the success value, or def in the other three states.
func (d Data[T]) WithDefault(def T) T {
	if d.state == StateSuccess {
		return d.value
	}
	return def
}

// Cases holds one handler per state. Match requires all four.
type Cases[T, R any] struct {
	NotAsked func() R
	Loading  func() R
	Success  func(T) R
	Failure  func(ErrorInfo) R
}

// Match folds d into R using the handler for its state. It panics if any
// handler is nil, so a missing case shows up the first time Match runs
// instead of only when the rare state occurs.
func Match[T, R any](d Data[T], c Cases[T, R]) R {
	if c.NotAsked == nil || c.Loading == nil || c.Success == nil || c.Failure == nil {
		panic("remote: Match requires a handler for every state")
	}
	switch d.state {
	case StateNotAsked:
		return c.NotAsked()
	case StateLoading:
		return c.Loading()
	case StateSuccess:
		return c.Success(d.value)
	case StateFailure:
		return c.Failure(d.err)
	default:
		panic(fmt.Sprintf("remote: unknown state %d", int(d.state)))
	}
}

// Map transforms the success value. The other states carry over unchanged.
func Map[T, U any](d Data[T], f func(T) U) Data[U] {
	switch d.state {
	case StateSuccess:
		return Succeed(f(d.value))
	case StateFailure:
		return Data[U]{state: StateFailure, err: d.err}
	default:
		return Data[U]{state: d.state}
	}
}

type dataJSON struct {
	State string     `json:"state"`
	Value any        `json:"value,omitempty"`
	Error *ErrorInfo `json:"error,omitempty"`
}

// MarshalJSON renders {"state": ..., "value"|"error": ...}.
func (d Data[T]) MarshalJSON() ([]byte, error) {
	out := dataJSON{State: d.state.String()}
	switch d.state {
	case StateSuccess:
		out.Value = d.value
	case StateFailure:
		e := d.err
		out.Error = &e
	}
	return json.Marshal(out)
}

// String renders a compact description for logs and traces.
func (d Data[T]) String() string {
	switch d.state {
	case StateSuccess:
		return fmt.Sprintf("success(%v)", d.value)
	case StateFailure:
		return fmt.Sprintf("failure(%s)", d.err.Error())
	default:
		return d.state.String()
	}
}
