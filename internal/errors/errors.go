// Package errors provides structured error types for the debug adapter.
// Every failure the adapter reports to an editor or MCP client carries a
// machine-readable code from the taxonomy below plus a human-readable
// message, so clients can distinguish a malformed request from a request
// issued in the wrong execution state or against a superseded pause.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a category of error for programmatic handling
type ErrorCode string

const (
	// Protocol errors: malformed or unknown requests. The session continues.
	CodeProtocol ErrorCode = "PROTOCOL_ERROR"

	// State errors: the operation is invalid for the current execution
	// state (e.g. evaluate while running). The session continues.
	CodeState ErrorCode = "STATE_ERROR"

	// Stale reference errors: a frame id or variables reference from a
	// superseded pause epoch. The session continues.
	CodeStaleReference ErrorCode = "STALE_REFERENCE"

	// Evaluation failures: the engine reported an expression failure.
	// Surfaced to the caller as a formatted message, not a session fault.
	CodeEvaluation ErrorCode = "EVALUATION_FAILED"

	// Engine unavailable: the engine transport was lost or the debuggee
	// crashed. The session transitions to terminated.
	CodeEngineUnavailable ErrorCode = "ENGINE_UNAVAILABLE"

	// Session registry errors
	CodeSessionNotFound     ErrorCode = "SESSION_NOT_FOUND"
	CodeSessionLimitReached ErrorCode = "SESSION_LIMIT_REACHED"

	// Configuration errors
	CodeConfigInvalid ErrorCode = "CONFIG_INVALID"
)

// AdapterError is a structured error carrying a taxonomy code and an
// optional hint for the client.
type AdapterError struct {
	// Code is a machine-readable error category
	Code ErrorCode `json:"code"`

	// Message is a human-readable description of what went wrong
	Message string `json:"message"`

	// Hint provides actionable guidance on how to fix the error
	Hint string `json:"hint,omitempty"`

	// Details contains additional context (e.g., the offending value)
	Details map[string]interface{} `json:"details,omitempty"`

	// Cause is the underlying error, if any
	Cause error `json:"-"`
}

// Error implements the error interface
func (e *AdapterError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error for error chaining
func (e *AdapterError) Unwrap() error {
	return e.Cause
}

// WithDetails adds details to the error
func (e *AdapterError) WithDetails(key string, value interface{}) *AdapterError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying cause
func (e *AdapterError) WithCause(err error) *AdapterError {
	e.Cause = err
	return e
}

// --- Protocol Errors ---

// UnrecognizedRequest reports a request command the adapter does not implement.
func UnrecognizedRequest(command string) *AdapterError {
	return &AdapterError{
		Code:    CodeProtocol,
		Message: fmt.Sprintf("unrecognized request %q", command),
		Hint:    "The adapter does not implement this request. Check the declared capabilities from the initialize response.",
		Details: map[string]interface{}{
			"command": command,
		},
	}
}

// UnsupportedPathFormat reports an initialize pathFormat other than "path".
func UnsupportedPathFormat(format string) *AdapterError {
	return &AdapterError{
		Code:    CodeProtocol,
		Message: fmt.Sprintf("unsupported pathFormat %q", format),
		Hint:    "Only plain filesystem paths are accepted. Configure the client to send pathFormat \"path\".",
		Details: map[string]interface{}{
			"pathFormat": format,
		},
	}
}

// InvalidArgument reports a request argument the adapter cannot use.
func InvalidArgument(name string, value interface{}, expected string) *AdapterError {
	return &AdapterError{
		Code:    CodeProtocol,
		Message: fmt.Sprintf("invalid value for %q: %v", name, value),
		Hint:    fmt.Sprintf("Expected: %s", expected),
		Details: map[string]interface{}{
			"argument": name,
			"value":    value,
			"expected": expected,
		},
	}
}

// --- State Errors ---

// NotPaused reports an operation that requires a paused debuggee.
func NotPaused(operation string) *AdapterError {
	return &AdapterError{
		Code:    CodeState,
		Message: fmt.Sprintf("%s requires a paused debuggee", operation),
		Hint:    "Wait for a stopped event, or use pause to interrupt execution first.",
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// MutationInFlight reports a second state-mutating request while one is pending.
func MutationInFlight(operation string) *AdapterError {
	return &AdapterError{
		Code:    CodeState,
		Message: fmt.Sprintf("cannot %s: another execution-control request is in flight", operation),
		Hint:    "Wait for the previous continue/step/setBreakpoints request to complete.",
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// Terminated reports an operation issued after the session ended.
func Terminated(operation string) *AdapterError {
	return &AdapterError{
		Code:    CodeState,
		Message: fmt.Sprintf("cannot %s: the session has terminated", operation),
		Hint:    "Only disconnect is accepted after the debuggee exits.",
	}
}

// --- Stale Reference Errors ---

// StaleFrame reports a frame id from a superseded pause epoch.
func StaleFrame(frameID int) *AdapterError {
	return &AdapterError{
		Code:    CodeStaleReference,
		Message: fmt.Sprintf("stale frame id %d: the debuggee has resumed since it was issued", frameID),
		Hint:    "Request a fresh stackTrace after the next stopped event.",
		Details: map[string]interface{}{
			"frameId": frameID,
		},
	}
}

// StaleReference reports a variables reference from a superseded pause epoch.
func StaleReference(ref int) *AdapterError {
	return &AdapterError{
		Code:    CodeStaleReference,
		Message: fmt.Sprintf("stale variables reference %d: the debuggee has resumed since it was issued", ref),
		Hint:    "Re-request scopes and variables after the next stopped event.",
		Details: map[string]interface{}{
			"variablesReference": ref,
		},
	}
}

// --- Evaluation Failures ---

// EvaluationFailed wraps an engine-reported expression failure. The message
// is exactly what the editor should display.
func EvaluationFailed(message string) *AdapterError {
	return &AdapterError{
		Code:    CodeEvaluation,
		Message: message,
	}
}

// --- Engine Errors ---

// EngineLost reports loss of the engine transport. This is terminal for the
// session.
func EngineLost(err error) *AdapterError {
	return &AdapterError{
		Code:    CodeEngineUnavailable,
		Message: fmt.Sprintf("debug engine unavailable: %v", err),
		Hint:    "The debuggee crashed or the connection dropped. Start a new session.",
		Cause:   err,
	}
}

// --- Session Registry Errors ---

// SessionNotFound creates an error for when a session ID doesn't exist
func SessionNotFound(sessionID string) *AdapterError {
	return &AdapterError{
		Code:    CodeSessionNotFound,
		Message: fmt.Sprintf("session %q not found", sessionID),
		Hint:    "List active sessions to find a valid id, or launch a new session.",
		Details: map[string]interface{}{
			"sessionId": sessionID,
		},
	}
}

// SessionLimitReached creates an error when max sessions is reached
func SessionLimitReached(maxSessions int) *AdapterError {
	return &AdapterError{
		Code:    CodeSessionLimitReached,
		Message: fmt.Sprintf("maximum number of sessions (%d) reached", maxSessions),
		Hint:    "Disconnect an existing session before creating a new one.",
		Details: map[string]interface{}{
			"maxSessions": maxSessions,
		},
	}
}

// --- Helpers ---

// Wrap wraps a generic error with a taxonomy code.
func Wrap(code ErrorCode, message string, err error) *AdapterError {
	return &AdapterError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// FromError returns err as an *AdapterError, wrapping it if needed.
func FromError(err error) *AdapterError {
	var ae *AdapterError
	if stderrors.As(err, &ae) {
		return ae
	}
	return &AdapterError{
		Code:    "UNKNOWN_ERROR",
		Message: err.Error(),
		Cause:   err,
	}
}

// CodeOf returns the taxonomy code of err, or empty if it is not an
// AdapterError.
func CodeOf(err error) ErrorCode {
	var ae *AdapterError
	if stderrors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
