package engine

import (
	"github.com/tmajors/dapbridge/pkg/types"
)

// Event is an engine-originated asynchronous notification. Events may
// arrive at any time, including while commands are outstanding.
type Event interface {
	engineEvent()
}

// StackFrame is one activation in the paused call stack as reported by the
// engine. CallFrameID is the engine's handle for frame-scoped evaluation;
// it is only meaningful within the pause that produced it.
type StackFrame struct {
	CallFrameID string                `json:"callFrameId"`
	Name        string                `json:"name"`
	Location    types.RuntimeLocation `json:"location"`
	ScopeChain  []ScopeRef            `json:"scopeChain"`
}

// ScopeRef is a scope chain entry on the wire.
type ScopeRef struct {
	Name   string `json:"name"`
	Object Value  `json:"object"`
}

// PausedEvent reports that the debuggee stopped.
type PausedEvent struct {
	Reason         string       `json:"reason"`
	Frames         []StackFrame `json:"callFrames"`
	HitBreakpoints []string     `json:"hitBreakpoints,omitempty"`
	Exception      *EvalError   `json:"exception,omitempty"`
}

// ResumedEvent reports that the debuggee resumed execution.
type ResumedEvent struct{}

// OutputEvent carries debuggee output.
type OutputEvent struct {
	Category string `json:"category"`
	Output   string `json:"output"`
}

// ExitedEvent reports debuggee exit.
type ExitedEvent struct {
	Code int `json:"code"`
}

// DisconnectedEvent reports loss of the engine transport. It is always the
// last event delivered; the events channel is closed after it.
type DisconnectedEvent struct {
	Err error
}

func (PausedEvent) engineEvent()       {}
func (ResumedEvent) engineEvent()      {}
func (OutputEvent) engineEvent()       {}
func (ExitedEvent) engineEvent()       {}
func (DisconnectedEvent) engineEvent() {}
