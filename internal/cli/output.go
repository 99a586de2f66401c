package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/stateloop/internal/eventlog"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Failed scenario, non-deterministic replay, corrupt log, defect
	ExitCommandError = 2 // Command error (invalid paths, bad configuration, etc.)
)

// Error codes reported in the "error" object of JSON output.
const (
	ErrCodeUsage            = "E_USAGE"     // bad flags, arguments or configuration
	ErrCodeEventLog         = "E_EVENT_LOG" // the event log could not be opened or read
	ErrCodeIntegrity        = "E_INTEGRITY" // the event log failed verification
	ErrCodeNondeterministic = "E_NONDETERMINISTIC"
	ErrCodeTestFailed       = "E_TEST_FAILED"
	ErrCodeStartup          = "E_STARTUP"
	ErrCodeInput            = "E_INPUT"
	ErrCodeDefect           = "E_DEFECT"
	ErrCodeInternal         = "E_INTERNAL"
)

// ExitError is a command failure carrying the process exit code and the
// error code shown to JSON consumers.
type ExitError struct {
	Code    int    // ExitFailure or ExitCommandError
	Kind    string // one of the ErrCode constants
	Message string
	Err     error

	// Result is what the command produced before failing. JSON output
	// reports it as "data" next to the error.
	Result any
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates an ExitError with no underlying cause.
func NewExitError(code int, kind, message string) *ExitError {
	return &ExitError{Code: code, Kind: kind, Message: message}
}

// WrapExitError creates an ExitError around err.
func WrapExitError(code int, kind, message string, err error) *ExitError {
	return &ExitError{Code: code, Kind: kind, Message: message, Err: err}
}

// logError maps an event log failure: a log that fails verification is
// ExitFailure, anything else is a command error described by action.
func logError(action string, err error) *ExitError {
	if eventlog.IsIntegrityError(err) {
		return WrapExitError(ExitFailure, ErrCodeIntegrity, "event log failed verification", err)
	}
	return WrapExitError(ExitCommandError, ErrCodeEventLog, action, err)
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; Writer when nil
	Verbose   bool
}

// CLIResponse is the envelope of every JSON document the CLI prints.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError describes a failed command in JSON output.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   string `json:"cause,omitempty"`
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error writes err as a JSON error response. Text output is left to the
// caller, which prints the error on stderr.
func (f *OutputFormatter) Error(err error) error {
	if f.Format != "json" || err == nil {
		return nil
	}
	resp := CLIResponse{Status: "error", Error: &CLIError{Code: ErrCodeInternal, Message: err.Error()}}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		resp.Data = exitErr.Result
		resp.Error.Message = exitErr.Message
		if exitErr.Kind != "" {
			resp.Error.Code = exitErr.Kind
		}
		if exitErr.Err != nil {
			resp.Error.Cause = exitErr.Err.Error()
		}
	}
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
