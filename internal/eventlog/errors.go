package eventlog

import (
	"errors"
	"fmt"

	"github.com/roach88/stateloop/internal/remote"
)

var (
	// ErrAppendFailed wraps every storage failure during Append. The event
	// was not committed.
	ErrAppendFailed = errors.New("eventlog: append failed")

	// ErrClosed is returned by operations on a closed log.
	ErrClosed = errors.New("eventlog: log is closed")

	// ErrUnknownKind is returned by a Codec for a kind it does not know.
	ErrUnknownKind = errors.New("eventlog: unknown event kind")
)

// CodeAppendFailed is the ErrorInfo code of a failed append effect.
const CodeAppendFailed = "append_failed"

// IntegrityReason categorizes integrity failures.
type IntegrityReason string

const (
	ReasonGap              IntegrityReason = "gap"
	ReasonChecksumMismatch IntegrityReason = "checksum_mismatch"
	ReasonMalformed        IntegrityReason = "malformed"
	ReasonUnknownKind      IntegrityReason = "unknown_kind"
)

// IntegrityError reports a record that cannot be trusted. It is fatal for
// replay: the materialized state would be wrong if the record were
// skipped.
type IntegrityError struct {
	// Seq is the sequence of the offending record, or the expected
	// sequence when the record could not be decoded.
	Seq int64

	Reason IntegrityReason

	// Detail is a human-readable description.
	Detail string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *IntegrityError) Error() string {
	msg := fmt.Sprintf("eventlog integrity: %s at seq %d", e.Reason, e.Seq)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *IntegrityError) Unwrap() error {
	return e.Err
}

// IsIntegrityError returns true if err is or wraps an *IntegrityError.
func IsIntegrityError(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}

// appendFailed wraps cause so that errors.Is(err, ErrAppendFailed) holds.
func appendFailed(op string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrAppendFailed, op, cause)
}

// AppendFailed is appendFailed for backends outside this package.
func AppendFailed(op string, cause error) error {
	return appendFailed(op, cause)
}

// appendInfo converts an append error into the ErrorInfo delivered to the
// reducer.
func appendInfo(err error) remote.ErrorInfo {
	if errors.Is(err, ErrAppendFailed) {
		return remote.NewError(CodeAppendFailed, err.Error())
	}
	return remote.InfoFrom(err)
}
