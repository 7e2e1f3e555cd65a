package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/tmajors/dapbridge/internal/errors"
	"github.com/tmajors/dapbridge/internal/engine"
)

func TestReferenceTableIssuesDistinctHandles(t *testing.T) {
	refs := newReferenceTable()

	frameID := refs.AddFrame(&frameRecord{})
	objRef := refs.AddObject(engine.Object("Object", "o1"))

	assert.NotZero(t, frameID)
	assert.NotZero(t, objRef)
	assert.NotEqual(t, frameID, objRef)

	_, err := refs.Frame(frameID)
	require.NoError(t, err)
	_, err = refs.Object(objRef)
	require.NoError(t, err)
}

func TestReferenceTableResetStalesHandles(t *testing.T) {
	refs := newReferenceTable()
	frameID := refs.AddFrame(&frameRecord{})
	objRef := refs.AddObject(engine.Object("Object", "o1"))

	refs.Reset()

	_, err := refs.Frame(frameID)
	assert.Equal(t, apperrors.CodeStaleReference, apperrors.CodeOf(err))
	_, err = refs.Object(objRef)
	assert.Equal(t, apperrors.CodeStaleReference, apperrors.CodeOf(err))
}

func TestReferenceTableHandlesNeverRepeatAcrossEpochs(t *testing.T) {
	refs := newReferenceTable()
	first := refs.AddObject(engine.Object("Object", "o1"))
	refs.Reset()
	second := refs.AddObject(engine.Object("Object", "o1"))
	assert.NotEqual(t, first, second)
}

func TestReferenceTableKindMismatch(t *testing.T) {
	refs := newReferenceTable()
	frameID := refs.AddFrame(&frameRecord{})
	objRef := refs.AddObject(engine.Object("Object", "o1"))

	// a frame id is not a variables reference and vice versa
	_, err := refs.Object(frameID)
	assert.Equal(t, apperrors.CodeProtocol, apperrors.CodeOf(err))
	_, err = refs.Frame(objRef)
	assert.Equal(t, apperrors.CodeProtocol, apperrors.CodeOf(err))
}

func TestReferenceTableUnknownSlot(t *testing.T) {
	refs := newReferenceTable()
	refs.AddFrame(&frameRecord{})

	// current epoch, slot out of range
	bogus := refs.Epoch()<<refEpochShift | 99
	_, err := refs.Frame(bogus)
	assert.Equal(t, apperrors.CodeProtocol, apperrors.CodeOf(err))
}

func TestReferenceTableZeroIsNeverValid(t *testing.T) {
	refs := newReferenceTable()
	_, err := refs.Object(0)
	assert.Error(t, err)
}

func TestAddObjectIfEpochRejectsDeadEpoch(t *testing.T) {
	refs := newReferenceTable()
	epoch := refs.Epoch()

	ref, ok := refs.AddObjectIfEpoch(epoch, engine.Object("Object", "o1"))
	require.True(t, ok)
	assert.NotZero(t, ref)

	refs.Reset()
	_, ok = refs.AddObjectIfEpoch(epoch, engine.Object("Object", "o2"))
	assert.False(t, ok)
}
