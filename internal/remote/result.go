package remote

import "encoding/json"

// Result is the outcome of one asynchronous operation, carried by
// effect-result messages. Exactly one of value or err is meaningful.
type Result[T any] struct {
	value T
	err   ErrorInfo
	ok    bool
}

// Ok returns a successful Result.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v, ok: true}
}

// Err returns a failed Result. A zero ErrorInfo is replaced by a generic
// one so a failure never arrives without a payload.
func Err[T any](e ErrorInfo) Result[T] {
	if e.IsZero() {
		e = ErrorInfo{Code: CodeError, Message: "unknown error"}
	}
	return Result[T]{err: e}
}

// IsOk reports whether the operation succeeded.
func (r Result[T]) IsOk() bool { return r.ok }

// Value returns the success value and true, or the zero T and false.
func (r Result[T]) Value() (T, bool) {
	return r.value, r.ok
}

// Failure returns the error and true, or a zero ErrorInfo and false.
func (r Result[T]) Failure() (ErrorInfo, bool) {
	if r.ok {
		return ErrorInfo{}, false
	}
	return r.err, true
}

// MarshalJSON renders {"ok": value} or {"err": {...}}.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	if r.ok {
		return json.Marshal(struct {
			Ok T `json:"ok"`
		}{r.value})
	}
	return json.Marshal(struct {
		Err ErrorInfo `json:"err"`
	}{r.err})
}
