package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/tmajors/dapbridge/internal/errors"
	"github.com/tmajors/dapbridge/pkg/types"
)

func TestStateMachinePauseResumeCycle(t *testing.T) {
	m := newStateMachine()
	assert.Equal(t, stateRunning, m.State())

	require.NoError(t, m.Pause(types.StopBreakpoint, types.Location{Path: "a.js", Line: 3}))
	assert.Equal(t, statePaused, m.State())
	reason, loc := m.Current()
	assert.Equal(t, types.StopBreakpoint, reason)
	assert.Equal(t, 3, loc.Line)

	require.NoError(t, m.Resume())
	assert.Equal(t, stateRunning, m.State())
}

func TestStateMachineResumeRequiresPause(t *testing.T) {
	m := newStateMachine()
	err := m.Resume()
	assert.Equal(t, apperrors.CodeState, apperrors.CodeOf(err))
}

func TestStateMachineStepRequiresPause(t *testing.T) {
	m := newStateMachine()
	err := m.BeginStep()
	assert.Equal(t, apperrors.CodeState, apperrors.CodeOf(err))

	require.NoError(t, m.Pause(types.StopEntry, types.Location{}))
	require.NoError(t, m.BeginStep())
	assert.True(t, m.Stepping())

	// a second step before the first completes is rejected
	err = m.BeginStep()
	assert.Equal(t, apperrors.CodeState, apperrors.CodeOf(err))
}

func TestStateMachineStepResolvesOnPause(t *testing.T) {
	m := newStateMachine()
	require.NoError(t, m.Pause(types.StopEntry, types.Location{}))
	require.NoError(t, m.BeginStep())

	require.NoError(t, m.Pause(types.StopStep, types.Location{Line: 4}))
	assert.False(t, m.Stepping())
	reason, _ := m.Current()
	assert.Equal(t, types.StopStep, reason)
}

func TestStateMachineRepauseUpdatesReason(t *testing.T) {
	m := newStateMachine()
	require.NoError(t, m.Pause(types.StopEntry, types.Location{Line: 1}))
	require.NoError(t, m.Pause(types.StopEntry, types.Location{Line: 1, Path: "a.js"}))
	assert.Equal(t, statePaused, m.State())
}

func TestStateMachineTerminateIsTerminal(t *testing.T) {
	m := newStateMachine()
	m.Terminate()

	assert.Equal(t, apperrors.CodeState, apperrors.CodeOf(m.Pause(types.StopPause, types.Location{})))
	assert.Equal(t, apperrors.CodeState, apperrors.CodeOf(m.Resume()))
	assert.Equal(t, apperrors.CodeState, apperrors.CodeOf(m.BeginStep()))
	assert.Equal(t, apperrors.CodeState, apperrors.CodeOf(m.RequirePaused("evaluate")))
	assert.Equal(t, types.SessionStatusTerminated, m.Status())
}

func TestStateMachineRequirePaused(t *testing.T) {
	m := newStateMachine()
	assert.Error(t, m.RequirePaused("stackTrace"))

	require.NoError(t, m.Pause(types.StopPause, types.Location{}))
	assert.NoError(t, m.RequirePaused("stackTrace"))

	require.NoError(t, m.BeginStep())
	assert.Error(t, m.RequirePaused("stackTrace"))
}

func TestStateMachineStatus(t *testing.T) {
	m := newStateMachine()
	assert.Equal(t, types.SessionStatusRunning, m.Status())
	require.NoError(t, m.Pause(types.StopPause, types.Location{}))
	assert.Equal(t, types.SessionStatusPaused, m.Status())
}
