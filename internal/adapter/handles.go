package adapter

import (
	"sync"

	apperrors "github.com/tmajors/dapbridge/internal/errors"
	"github.com/tmajors/dapbridge/internal/engine"
	"github.com/tmajors/dapbridge/pkg/types"
)

// Reference handles encode the pause epoch that issued them in their high
// bits. A handle from a superseded epoch is rejected on the generation
// check alone, without touching the arena.
const (
	refEpochShift = 20
	refSlotMask   = 1<<refEpochShift - 1
)

type refKind int

const (
	refFrame refKind = iota + 1
	refObject
)

// frameRecord is one stack activation captured at a pause. Source is nil
// when the mapper could not map the runtime location.
type frameRecord struct {
	id     int
	frame  engine.StackFrame
	source *types.Location
}

type refEntry struct {
	kind  refKind
	frame *frameRecord
	value engine.Value
}

// referenceTable allocates the opaque positive integers handed to the
// editor as frame ids and variablesReference values. Entries are appended,
// never overwritten, within an epoch; the table is cleared wholesale on
// every run/pause transition by bumping the epoch.
type referenceTable struct {
	mu      sync.Mutex
	epoch   int
	entries []refEntry
}

func newReferenceTable() *referenceTable {
	return &referenceTable{epoch: 1}
}

// Reset discards every live entry and starts a new epoch. Handles issued
// before Reset fail all later lookups.
func (t *referenceTable) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.epoch++
	t.entries = nil
}

// Epoch returns the current pause epoch.
func (t *referenceTable) Epoch() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.epoch
}

func (t *referenceTable) add(e refEntry) int {
	slot := len(t.entries)
	t.entries = append(t.entries, e)
	return t.epoch<<refEpochShift | (slot + 1)
}

// AddFrame registers a frame and returns its id.
func (t *referenceTable) AddFrame(f *frameRecord) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.add(refEntry{kind: refFrame, frame: f})
}

// AddObject registers a structured value and returns its handle.
func (t *referenceTable) AddObject(v engine.Value) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.add(refEntry{kind: refObject, value: v})
}

// AddObjectIfEpoch registers a structured value only if epoch is still
// current. It returns 0, false when the epoch has rolled, so a reply that
// raced a resume never hands out a handle into a dead epoch.
func (t *referenceTable) AddObjectIfEpoch(epoch int, v engine.Value) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if epoch != t.epoch {
		return 0, false
	}
	return t.add(refEntry{kind: refObject, value: v}), true
}

func (t *referenceTable) lookup(ref int) (refEntry, bool, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ref>>refEpochShift != t.epoch {
		return refEntry{}, false, true
	}
	slot := ref&refSlotMask - 1
	if slot < 0 || slot >= len(t.entries) {
		return refEntry{}, false, false
	}
	return t.entries[slot], true, false
}

// Frame resolves a frame id issued during the current epoch.
func (t *referenceTable) Frame(id int) (*frameRecord, error) {
	e, ok, stale := t.lookup(id)
	if stale {
		return nil, apperrors.StaleFrame(id)
	}
	if !ok || e.kind != refFrame {
		return nil, apperrors.InvalidArgument("frameId", id, "a frame id from the current stackTrace response")
	}
	return e.frame, nil
}

// Object resolves a variables reference issued during the current epoch.
func (t *referenceTable) Object(ref int) (engine.Value, error) {
	e, ok, stale := t.lookup(ref)
	if stale {
		return engine.Value{}, apperrors.StaleReference(ref)
	}
	if !ok || e.kind != refObject {
		return engine.Value{}, apperrors.InvalidArgument("variablesReference", ref, "a reference from the current scopes/variables/evaluate response")
	}
	return e.value, nil
}
