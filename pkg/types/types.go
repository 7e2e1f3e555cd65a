// Package types defines shared data types used across the adapter.
//
// This package provides type definitions for:
//   - Location / RuntimeLocation: editor-side and engine-side source positions
//   - StopReason: why execution paused (entry, breakpoint, step, ...)
//   - SessionStatus: debug session states (initializing, running, paused, terminated)
//   - SessionInfo: summary of a session for listing surfaces
//
// These types are used throughout the codebase to maintain type safety
// and provide clear contracts between components.
package types

import "time"

// Location is a position in an editor-visible source file.
// Lines and columns are 1-based; a zero column means "whole line".
type Location struct {
	Path   string `json:"path"`
	Line   int    `json:"line"`
	Column int    `json:"column,omitempty"`
}

// RuntimeLocation is a position in an engine-side script. The engine
// identifies scripts by an opaque id rather than a filesystem path; the
// source mapper converts between the two.
type RuntimeLocation struct {
	ScriptID string `json:"scriptId"`
	Line     int    `json:"line"`
	Column   int    `json:"column,omitempty"`
}

// StopReason describes why execution paused.
type StopReason string

const (
	StopEntry      StopReason = "entry"
	StopBreakpoint StopReason = "breakpoint"
	StopStep       StopReason = "step"
	StopException  StopReason = "exception"
	StopPause      StopReason = "pause"
)

// SessionStatus represents the status of a debug session.
type SessionStatus string

const (
	SessionStatusInitializing SessionStatus = "initializing"
	SessionStatusRunning      SessionStatus = "running"
	SessionStatusPaused       SessionStatus = "paused"
	SessionStatusTerminated   SessionStatus = "terminated"
)

// SessionInfo summarizes a debug session.
type SessionInfo struct {
	SessionID string        `json:"sessionId"`
	Status    SessionStatus `json:"status"`
	Program   string        `json:"program,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}
