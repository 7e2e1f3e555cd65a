// Package adapter implements the protocol translation core between an
// editor speaking the Debug Adapter Protocol and a debuggee engine
// speaking a V8-inspector-like remote-debugging interface.
//
// One Session exists per debuggee. All execution-state transitions are
// serialized through the session's dispatch loop; read-only requests
// (stack, scopes, variables, evaluate, completions) run concurrently
// against the engine during a pause and are matched back to their callers
// by correlation id, never by arrival order. Engine events preempt: a
// pause or exit rolls the reference epoch immediately, so a reply to a
// still-outstanding request against the previous epoch surfaces as a
// stale-reference failure instead of being applied.
package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/go-dap"

	apperrors "github.com/tmajors/dapbridge/internal/errors"
	"github.com/tmajors/dapbridge/internal/engine"
	"github.com/tmajors/dapbridge/internal/source"
	"github.com/tmajors/dapbridge/pkg/types"
)

// mainThreadID is the single logical execution context exposed to the
// editor. The engine serializes execution, so one thread suffices.
const mainThreadID = 1

// Session is one live debug session: the translation state between one
// editor connection and one debuggee engine.
type Session struct {
	id      string
	created time.Time
	eng     Engine
	mapper  source.Mapper
	log     *slog.Logger

	machine *stateMachine
	bps     *breakpointManager
	refs    *referenceTable
	comp    *completer

	sendQueue  chan dap.Message
	sendMu     sync.RWMutex
	sendClosed bool

	// mutating enforces one state-mutating request in flight at a time.
	mutating atomic.Bool

	mu         sync.Mutex
	program    string
	frames     []*frameRecord
	launched   bool
	attached   bool
	configured bool
	runOnce    sync.Once

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	loopDone  chan struct{}
}

// NewSession creates a session bound to an engine and starts consuming its
// event stream.
func NewSession(id string, eng Engine, mapper source.Mapper, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("session", id)
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:        id,
		created:   time.Now(),
		eng:       eng,
		mapper:    mapper,
		log:       log,
		machine:   newStateMachine(),
		bps:       newBreakpointManager(mapper, log),
		refs:      newReferenceTable(),
		sendQueue: make(chan dap.Message, 64),
		ctx:       ctx,
		cancel:    cancel,
		loopDone:  make(chan struct{}),
	}
	s.comp = &completer{eng: eng}

	go s.engineEvents()

	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time { return s.created }

// Messages returns the stream of responses and events the session emits
// toward the editor. The channel is closed when the session closes.
func (s *Session) Messages() <-chan dap.Message { return s.sendQueue }

// Info summarizes the session.
func (s *Session) Info() types.SessionInfo {
	s.mu.Lock()
	program := s.program
	s.mu.Unlock()
	return types.SessionInfo{
		SessionID: s.id,
		Status:    s.machine.Status(),
		Program:   program,
		CreatedAt: s.created,
	}
}

// send queues a message for the editor; it drops the message if the
// session is shutting down. Concurrent inspection handlers may still be
// replying while Close runs, so the queue write is guarded against the
// close. Close cancels the context before taking the write lock, so a
// sender blocked on a full queue always wakes.
func (s *Session) send(msg dap.Message) {
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.sendClosed {
		return
	}
	select {
	case s.sendQueue <- msg:
	case <-s.ctx.Done():
	}
}

// beginMutate admits one state-mutating operation; a second mutator while
// one is in flight is rejected, not queued behind an engine round-trip.
func (s *Session) beginMutate(op string) error {
	if !s.mutating.CompareAndSwap(false, true) {
		return apperrors.MutationInFlight(op)
	}
	return nil
}

func (s *Session) endMutate() {
	s.mutating.Store(false)
}

// clearPause invalidates every frame id and variables reference issued
// during the pause epoch that is ending.
func (s *Session) clearPause() {
	s.refs.Reset()
	s.mu.Lock()
	s.frames = nil
	s.mu.Unlock()
}

// Close tears the session down. It is idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.machine.Terminate()
		if err := s.eng.Close(); err != nil {
			s.log.Debug("engine close", "err", err)
		}
		<-s.loopDone
		s.cancel()
		s.sendMu.Lock()
		s.sendClosed = true
		close(s.sendQueue)
		s.sendMu.Unlock()
	})
}

// --- Execution control operations ---
//
// These are the session's real API; the DAP request handlers and the MCP
// tool handlers are both thin shims over them.

// Launch starts the debuggee held at its first statement. The debuggee is
// released by ConfigurationDone, which guarantees breakpoints submitted
// during initialization are installed before the program can run past
// them. With StopOnEntry the session transitions to paused(entry) before
// the launch acknowledgment; the stopped event follows when the engine
// reports the entry pause.
func (s *Session) Launch(ctx context.Context, cfg engine.LaunchConfig) error {
	if err := s.beginMutate("launch"); err != nil {
		return err
	}
	defer s.endMutate()

	s.mu.Lock()
	if s.launched || s.attached {
		s.mu.Unlock()
		return apperrors.InvalidArgument("launch", cfg.Program, "a session that has not already launched or attached")
	}
	s.launched = true
	s.program = cfg.Program
	configured := s.configured
	s.mu.Unlock()

	if err := s.eng.Start(ctx, cfg); err != nil {
		return apperrors.Wrap(apperrors.CodeEngineUnavailable,
			fmt.Sprintf("failed to start debuggee: %v", err), err)
	}
	if cfg.StopOnEntry {
		if err := s.machine.Pause(types.StopEntry, types.Location{Path: cfg.Program, Line: 1}); err != nil {
			return err
		}
	}
	if configured {
		s.releaseDebuggee(ctx)
	}
	return nil
}

// Attach connects to an already-running debuggee.
func (s *Session) Attach(ctx context.Context) error {
	if err := s.beginMutate("attach"); err != nil {
		return err
	}
	defer s.endMutate()

	s.mu.Lock()
	if s.launched || s.attached {
		s.mu.Unlock()
		return apperrors.InvalidArgument("attach", s.id, "a session that has not already launched or attached")
	}
	s.attached = true
	s.mu.Unlock()

	if err := s.eng.Attach(ctx); err != nil {
		return apperrors.Wrap(apperrors.CodeEngineUnavailable,
			fmt.Sprintf("failed to attach to debuggee: %v", err), err)
	}
	return nil
}

// ConfigurationDone releases the configuration barrier.
func (s *Session) ConfigurationDone(ctx context.Context) error {
	if err := s.beginMutate("configurationDone"); err != nil {
		return err
	}
	defer s.endMutate()

	s.mu.Lock()
	s.configured = true
	launched := s.launched
	s.mu.Unlock()

	if launched {
		s.releaseDebuggee(ctx)
	}
	return nil
}

// releaseDebuggee lets a launched debuggee start running. Called at most
// once, after both launch and configurationDone have happened.
func (s *Session) releaseDebuggee(ctx context.Context) {
	s.runOnce.Do(func() {
		if err := s.eng.Run(ctx); err != nil {
			s.log.Error("failed to release debuggee", "err", err)
		}
	})
}

// SetBreakpoints replaces the breakpoint set for a path.
func (s *Session) SetBreakpoints(ctx context.Context, path string, reqs []dap.SourceBreakpoint) ([]dap.Breakpoint, error) {
	if err := s.beginMutate("setBreakpoints"); err != nil {
		return nil, err
	}
	defer s.endMutate()

	if s.machine.State() == stateTerminated {
		return nil, apperrors.Terminated("setBreakpoints")
	}
	return s.bps.Set(ctx, s.eng, path, reqs), nil
}

// BreakpointSnapshot returns the current breakpoint responses for a path
// without modifying anything.
func (s *Session) BreakpointSnapshot(path string) []dap.Breakpoint {
	return s.bps.Snapshot(path)
}

// Continue resumes free execution.
func (s *Session) Continue(ctx context.Context) error {
	if err := s.beginMutate("continue"); err != nil {
		return err
	}
	defer s.endMutate()

	reason, loc := s.machine.Current()
	if err := s.machine.Resume(); err != nil {
		return err
	}
	s.clearPause()
	if err := s.eng.Resume(ctx); err != nil {
		// the debuggee is still paused; frames are gone but the state is honest
		_ = s.machine.Pause(reason, loc)
		return apperrors.Wrap(apperrors.CodeEngineUnavailable,
			fmt.Sprintf("failed to resume debuggee: %v", err), err)
	}
	s.send(&dap.ContinuedEvent{
		Event: *newEvent("continued"),
		Body:  dap.ContinuedEventBody{ThreadId: mainThreadID, AllThreadsContinued: true},
	})
	return nil
}

// Step kinds accepted by Step.
const (
	StepOver = "next"
	StepInto = "stepIn"
	StepOut  = "stepOut"
)

// Step resumes execution with a single-step engine directive. The
// resulting stop reports reason "step" unless a breakpoint or exception
// takes precedence.
func (s *Session) Step(ctx context.Context, kind string) error {
	if err := s.beginMutate(kind); err != nil {
		return err
	}
	defer s.endMutate()

	reason, loc := s.machine.Current()
	if err := s.machine.BeginStep(); err != nil {
		return err
	}
	s.clearPause()

	var err error
	switch kind {
	case StepOver:
		err = s.eng.StepOver(ctx)
	case StepInto:
		err = s.eng.StepInto(ctx)
	case StepOut:
		err = s.eng.StepOut(ctx)
	default:
		err = fmt.Errorf("unknown step kind %q", kind)
	}
	if err != nil {
		_ = s.machine.Pause(reason, loc)
		return apperrors.Wrap(apperrors.CodeEngineUnavailable,
			fmt.Sprintf("failed to step debuggee: %v", err), err)
	}
	return nil
}

// Pause asks the engine to interrupt a running debuggee. The pause itself
// is reported through the stopped event once the engine confirms.
func (s *Session) Pause(ctx context.Context) error {
	if err := s.beginMutate("pause"); err != nil {
		return err
	}
	defer s.endMutate()

	switch s.machine.State() {
	case stateTerminated:
		return apperrors.Terminated("pause")
	case statePaused:
		return apperrors.Wrap(apperrors.CodeState, "cannot pause: the debuggee is already paused", nil)
	}
	if err := s.eng.Interrupt(ctx); err != nil {
		return apperrors.Wrap(apperrors.CodeEngineUnavailable,
			fmt.Sprintf("failed to interrupt debuggee: %v", err), err)
	}
	return nil
}

// Threads lists the logical execution contexts.
func (s *Session) Threads() []dap.Thread {
	return []dap.Thread{{Id: mainThreadID, Name: "main"}}
}

// StackTrace returns the frames of the current pause.
func (s *Session) StackTrace() ([]dap.StackFrame, error) {
	if err := s.machine.RequirePaused("stackTrace"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	frames := s.frames
	s.mu.Unlock()

	out := make([]dap.StackFrame, len(frames))
	for i, rec := range frames {
		f := dap.StackFrame{
			Id:   rec.id,
			Name: rec.frame.Name,
		}
		if rec.source != nil {
			f.Source = &dap.Source{Path: rec.source.Path}
			f.Line = rec.source.Line
			f.Column = rec.source.Column
		} else {
			// the mapper could not place this frame in a source file
			f.Line = rec.frame.Location.Line
			f.PresentationHint = "subtle"
		}
		out[i] = f
	}
	return out, nil
}

// Scopes returns the binding environments of a frame, innermost first.
// The frame id is checked before the pause state: a resume rolls the
// reference epoch, so a surviving id from the previous pause is reported
// stale rather than as a state error.
func (s *Session) Scopes(frameID int) ([]dap.Scope, error) {
	rec, err := s.refs.Frame(frameID)
	if err != nil {
		return nil, err
	}
	if err := s.machine.RequirePaused("scopes"); err != nil {
		return nil, err
	}
	epoch := frameID >> refEpochShift

	out := make([]dap.Scope, len(rec.frame.ScopeChain))
	for i, scope := range rec.frame.ScopeChain {
		ref, ok := s.refs.AddObjectIfEpoch(epoch, scope.Object)
		if !ok {
			return nil, apperrors.StaleFrame(frameID)
		}
		out[i] = dap.Scope{
			Name:               scope.Name,
			VariablesReference: ref,
			Expensive:          scope.Name == "global",
		}
	}
	return out, nil
}

// Variables expands a handle into the structured value's named children,
// each formatted and given its own handle when it has further structure.
func (s *Session) Variables(ctx context.Context, ref int) ([]dap.Variable, error) {
	val, err := s.refs.Object(ref)
	if err != nil {
		return nil, err
	}
	if err := s.machine.RequirePaused("variables"); err != nil {
		return nil, err
	}
	epoch := ref >> refEpochShift

	props, err := s.eng.Members(ctx, val)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeEngineUnavailable,
			fmt.Sprintf("failed to read members: %v", err), err)
	}
	// the reply may have raced a resume; a result from a dead epoch is
	// reported stale, never applied
	if s.refs.Epoch() != epoch {
		return nil, apperrors.StaleReference(ref)
	}

	out := make([]dap.Variable, len(props))
	for i, p := range props {
		v := dap.Variable{
			Name:  p.Name,
			Value: formatValue(p.Value),
			Type:  p.Value.Type,
		}
		if p.Value.Expandable() {
			childRef, ok := s.refs.AddObjectIfEpoch(epoch, p.Value)
			if !ok {
				return nil, apperrors.StaleReference(ref)
			}
			v.VariablesReference = childRef
		}
		out[i] = v
	}
	return out, nil
}

// Evaluate evaluates an expression in a frame and returns the preview text
// plus a handle when the result has further structure. A frame id of zero
// selects the top frame of the current pause.
func (s *Session) Evaluate(ctx context.Context, expression string, frameID int) (string, int, error) {
	if err := s.machine.RequirePaused("evaluate"); err != nil {
		return "", 0, err
	}
	rec, err := s.frameOrTop(frameID)
	if err != nil {
		return "", 0, err
	}
	epoch := rec.id >> refEpochShift

	val, evalErr, err := s.eng.Evaluate(ctx, rec.frame.CallFrameID, expression)
	if err != nil {
		return "", 0, apperrors.Wrap(apperrors.CodeEngineUnavailable,
			fmt.Sprintf("failed to evaluate: %v", err), err)
	}
	if evalErr != nil {
		return "", 0, apperrors.EvaluationFailed(formatEvalError(evalErr))
	}

	// the reply may have raced a resume; a result from a dead epoch is
	// reported stale, never applied
	if s.refs.Epoch() != epoch {
		return "", 0, apperrors.StaleFrame(rec.id)
	}
	ref := 0
	if val.Expandable() {
		var ok bool
		ref, ok = s.refs.AddObjectIfEpoch(epoch, val)
		if !ok {
			return "", 0, apperrors.StaleFrame(rec.id)
		}
	}
	return formatValue(val), ref, nil
}

// Completions resolves completion candidates for an expression prefix
// against a frame's live scope state.
func (s *Session) Completions(ctx context.Context, text string, column, frameID int) ([]string, error) {
	if err := s.machine.RequirePaused("completions"); err != nil {
		return nil, err
	}
	rec, err := s.frameOrTop(frameID)
	if err != nil {
		return nil, err
	}
	epoch := rec.id >> refEpochShift

	labels := s.comp.complete(ctx, rec, text, column)
	// candidates resolved against a dead epoch are discarded, not surfaced
	if s.refs.Epoch() != epoch {
		return nil, apperrors.StaleFrame(rec.id)
	}
	return labels, nil
}

// frameOrTop resolves a frame id, treating zero as the top frame.
func (s *Session) frameOrTop(frameID int) (*frameRecord, error) {
	if frameID != 0 {
		return s.refs.Frame(frameID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return nil, apperrors.NotPaused("evaluate")
	}
	return s.frames[0], nil
}

// Disconnect ends the session: the debuggee is terminated best-effort and
// no further requests except teardown are accepted.
func (s *Session) Disconnect(ctx context.Context) error {
	if s.machine.State() != stateTerminated {
		if err := s.eng.Terminate(ctx); err != nil {
			s.log.Debug("terminate on disconnect", "err", err)
		}
	}
	s.machine.Terminate()
	s.clearPause()
	s.send(&dap.TerminatedEvent{Event: *newEvent("terminated")})
	return nil
}

// --- Engine event consumption ---

// engineEvents is the single consuming loop for engine-originated
// asynchronous events. Pause and exit events take precedence over
// in-flight request handling: they roll the epoch immediately.
func (s *Session) engineEvents() {
	defer close(s.loopDone)
	for ev := range s.eng.Events() {
		switch ev := ev.(type) {
		case engine.PausedEvent:
			s.handlePaused(ev)
		case engine.ResumedEvent:
			s.handleResumed()
		case engine.OutputEvent:
			s.handleOutput(ev)
		case engine.ExitedEvent:
			s.handleExited(ev.Code)
		case engine.DisconnectedEvent:
			s.handleDisconnected(ev.Err)
		}
	}
}

func (s *Session) handlePaused(ev engine.PausedEvent) {
	if s.machine.State() == stateTerminated {
		return
	}

	// New pause epoch: every frame id and handle from the previous pause
	// is dead from this point on.
	s.refs.Reset()
	frames := make([]*frameRecord, len(ev.Frames))
	for i := range ev.Frames {
		rec := &frameRecord{frame: ev.Frames[i]}
		if loc, err := s.mapper.ToSource(ev.Frames[i].Location); err == nil {
			rec.source = &loc
		} else {
			s.log.Debug("frame has no mapped source", "scriptId", ev.Frames[i].Location.ScriptID)
		}
		rec.id = s.refs.AddFrame(rec)
		frames[i] = rec
	}

	topFrameRef := ""
	if len(ev.Frames) > 0 {
		topFrameRef = ev.Frames[0].CallFrameID
	}

	hitPermitted := false
	if len(ev.HitBreakpoints) > 0 {
		pause, _ := s.bps.OnHit(s.ctx, s.eng, ev.HitBreakpoints, topFrameRef)
		if !pause && ev.Exception == nil && !s.machine.Stepping() {
			// conditions vetoed the stop; resume silently
			s.refs.Reset()
			if err := s.eng.Resume(s.ctx); err != nil {
				s.log.Error("failed to auto-resume after vetoed breakpoint", "err", err)
			}
			return
		}
		hitPermitted = pause
	}

	var reason types.StopReason
	switch {
	case ev.Exception != nil:
		reason = types.StopException
	case hitPermitted:
		reason = types.StopBreakpoint
	case ev.Reason == "entry":
		reason = types.StopEntry
	case s.machine.Stepping() || ev.Reason == "step":
		reason = types.StopStep
	case ev.Reason == "breakpoint":
		reason = types.StopBreakpoint
	default:
		reason = types.StopPause
	}

	var loc types.Location
	if len(frames) > 0 && frames[0].source != nil {
		loc = *frames[0].source
	}
	s.mu.Lock()
	s.frames = frames
	s.mu.Unlock()
	if err := s.machine.Pause(reason, loc); err != nil {
		s.log.Warn("pause transition rejected", "err", err)
		return
	}

	body := dap.StoppedEventBody{
		Reason:            string(reason),
		ThreadId:          mainThreadID,
		AllThreadsStopped: true,
	}
	if ev.Exception != nil {
		body.Text = ev.Exception.Error()
	}
	s.send(&dap.StoppedEvent{Event: *newEvent("stopped"), Body: body})
}

func (s *Session) handleResumed() {
	// After a step directive the engine reports a resume before the step
	// completes; that is not a user-visible continue.
	if s.machine.Stepping() {
		return
	}
	if err := s.machine.Resume(); err != nil {
		return // we initiated the resume, or execution was already running
	}
	s.clearPause()
	s.send(&dap.ContinuedEvent{
		Event: *newEvent("continued"),
		Body:  dap.ContinuedEventBody{ThreadId: mainThreadID, AllThreadsContinued: true},
	})
}

func (s *Session) handleOutput(ev engine.OutputEvent) {
	category := ev.Category
	if category == "" {
		category = "stdout"
	}
	s.send(&dap.OutputEvent{
		Event: *newEvent("output"),
		Body:  dap.OutputEventBody{Category: category, Output: ev.Output},
	})
}

func (s *Session) handleExited(code int) {
	if s.machine.State() == stateTerminated {
		return
	}
	s.machine.Terminate()
	s.clearPause()
	s.send(&dap.ExitedEvent{Event: *newEvent("exited"), Body: dap.ExitedEventBody{ExitCode: code}})
	s.send(&dap.TerminatedEvent{Event: *newEvent("terminated")})
}

func (s *Session) handleDisconnected(err error) {
	if s.machine.State() == stateTerminated {
		return
	}
	s.log.Error("engine transport lost", "err", apperrors.EngineLost(err))
	s.machine.Terminate()
	s.clearPause()
	s.send(&dap.TerminatedEvent{Event: *newEvent("terminated")})
}
