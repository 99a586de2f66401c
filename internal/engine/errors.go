package engine

import (
	"errors"
	"fmt"
)

// DefectError reports a programming defect detected by the dispatch loop.
// Defects are fatal: Run stops rather than continue with a model that may
// be inconsistent.
type DefectError struct {
	// Code identifies the defect category.
	Code DefectCode

	// Message is a human-readable description.
	Message string

	// Msg is the Go type of the message being processed, if any.
	Msg string

	// Seq is the logical clock value of the failing step, if any.
	Seq int64
}

// DefectCode categorizes defects.
type DefectCode string

const (
	// ErrCodeUnhandledMessage indicates Update has no case for a message.
	ErrCodeUnhandledMessage DefectCode = "UNHANDLED_MESSAGE"

	// ErrCodeUpdatePanic indicates Update panicked.
	ErrCodeUpdatePanic DefectCode = "UPDATE_PANIC"

	// ErrCodeInitPanic indicates Init panicked.
	ErrCodeInitPanic DefectCode = "INIT_PANIC"
)

// Error implements the error interface.
func (e *DefectError) Error() string {
	if e.Msg != "" && e.Seq > 0 {
		return fmt.Sprintf("%s: %s (msg=%s, seq=%d)", e.Code, e.Message, e.Msg, e.Seq)
	}
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s (msg=%s)", e.Code, e.Message, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unhandled returns the defect for a message variant Update does not
// handle. Reducers end their type switch with:
//
//	default:
//		panic(engine.Unhandled(msg))
func Unhandled(msg any) *DefectError {
	return &DefectError{
		Code:    ErrCodeUnhandledMessage,
		Message: "update has no case for message",
		Msg:     fmt.Sprintf("%T", msg),
	}
}

// IsDefect returns true if err is or wraps a *DefectError.
func IsDefect(err error) bool {
	var de *DefectError
	return errors.As(err, &de)
}

// IsUnhandled returns true if err is an unhandled-message defect.
func IsUnhandled(err error) bool {
	var de *DefectError
	if errors.As(err, &de) {
		return de.Code == ErrCodeUnhandledMessage
	}
	return false
}
