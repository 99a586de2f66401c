package remote

import (
	"context"
	"errors"
	"fmt"
)

// Well-known ErrorInfo codes produced outside of executors.
const (
	CodeError      = "error"
	CodeTimeout    = "timeout"
	CodeCanceled   = "canceled"
	CodeNotFound   = "not_found"
	CodeValidation = "validation"
)

// ErrorInfo is the typed payload of an expected failure. It is plain data
// so it can sit inside a Model and be compared, rendered and replayed.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewError returns an ErrorInfo with the given code and message.
func NewError(code, message string) ErrorInfo {
	return ErrorInfo{Code: code, Message: message}
}

// Errorf returns an ErrorInfo with a formatted message.
func Errorf(code, format string, args ...any) ErrorInfo {
	return ErrorInfo{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface so executors can return an
// ErrorInfo directly.
func (e ErrorInfo) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsZero reports whether e carries no information.
func (e ErrorInfo) IsZero() bool {
	return e.Code == "" && e.Message == ""
}

// infoCarrier is implemented by errors that know their own ErrorInfo.
type infoCarrier interface {
	ErrorInfo() ErrorInfo
}

// InfoFrom converts any error into an ErrorInfo. Errors that are, wrap, or
// carry an ErrorInfo keep their code; context errors map to timeout and
// canceled; everything else becomes CodeError with err's message.
// A nil error yields the zero ErrorInfo.
func InfoFrom(err error) ErrorInfo {
	if err == nil {
		return ErrorInfo{}
	}

	var info ErrorInfo
	if errors.As(err, &info) {
		return info
	}
	var carrier infoCarrier
	if errors.As(err, &carrier) {
		return carrier.ErrorInfo()
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorInfo{Code: CodeTimeout, Message: err.Error()}
	case errors.Is(err, context.Canceled):
		return ErrorInfo{Code: CodeCanceled, Message: err.Error()}
	}
	return ErrorInfo{Code: CodeError, Message: err.Error()}
}

// TransitionError reports an attempt to move a Data between states the
// lifecycle does not connect. A reducer that returns one has a bug.
type TransitionError struct {
	From State
	To   State
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("remote: illegal transition %s -> %s", e.From, e.To)
}

// IsTransitionError returns true if err is or wraps a *TransitionError.
func IsTransitionError(err error) bool {
	var te *TransitionError
	return errors.As(err, &te)
}
