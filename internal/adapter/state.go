package adapter

import (
	"fmt"
	"sync"

	apperrors "github.com/tmajors/dapbridge/internal/errors"
	"github.com/tmajors/dapbridge/pkg/types"
)

type execState int

const (
	stateRunning execState = iota
	statePaused
	stateStepping
	stateTerminated
)

func (s execState) String() string {
	switch s {
	case stateRunning:
		return "running"
	case statePaused:
		return "paused"
	case stateStepping:
		return "stepping"
	case stateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("execState(%d)", int(s))
	}
}

// stateMachine tracks the run/pause/step state of the debuggee and the
// reason for the current pause. All transitions for one session are
// serialized through the dispatcher, so the machine only guards against
// concurrent readers.
type stateMachine struct {
	mu       sync.Mutex
	state    execState
	reason   types.StopReason
	location types.Location
}

func newStateMachine() *stateMachine {
	return &stateMachine{state: stateRunning}
}

// State returns the current execution state.
func (m *stateMachine) State() execState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Stepping reports whether a step directive is outstanding.
func (m *stateMachine) Stepping() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == stateStepping
}

// Current returns the reason and location of the current pause.
func (m *stateMachine) Current() (types.StopReason, types.Location) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reason, m.location
}

// Pause records a transition into the paused state. It is legal from
// running and stepping; re-pausing while already paused only updates the
// reason and location (the entry pause is recorded before the engine
// delivers its corresponding event).
func (m *stateMachine) Pause(reason types.StopReason, loc types.Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == stateTerminated {
		return apperrors.Terminated("pause")
	}
	m.state = statePaused
	m.reason = reason
	m.location = loc
	return nil
}

// Resume records a transition back to free running.
func (m *stateMachine) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case stateTerminated:
		return apperrors.Terminated("continue")
	case stateRunning:
		return apperrors.NotPaused("continue")
	}
	m.state = stateRunning
	m.reason = ""
	m.location = types.Location{}
	return nil
}

// BeginStep records a transient stepping state; the next pause reports
// reason "step" unless a breakpoint or exception takes precedence.
func (m *stateMachine) BeginStep() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case stateTerminated:
		return apperrors.Terminated("step")
	case stateRunning, stateStepping:
		return apperrors.NotPaused("step")
	}
	m.state = stateStepping
	m.reason = ""
	m.location = types.Location{}
	return nil
}

// Terminate moves to the terminal state; no transition leaves it.
func (m *stateMachine) Terminate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = stateTerminated
}

// RequirePaused fails with a state error when op needs a paused debuggee
// and execution is running or already over.
func (m *stateMachine) RequirePaused(op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case statePaused:
		return nil
	case stateTerminated:
		return apperrors.Terminated(op)
	default:
		return apperrors.NotPaused(op)
	}
}

// Status maps the execution state onto the session status vocabulary.
func (m *stateMachine) Status() types.SessionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case statePaused:
		return types.SessionStatusPaused
	case stateTerminated:
		return types.SessionStatusTerminated
	default:
		return types.SessionStatusRunning
	}
}
