package adapter

import (
	"context"
	"fmt"
	"sync"

	"github.com/tmajors/dapbridge/internal/engine"
	"github.com/tmajors/dapbridge/pkg/types"
)

// fakeEngine scripts engine behavior for core tests. Command methods
// record their calls; asynchronous behavior is driven by pushing events.
type fakeEngine struct {
	mu sync.Mutex

	events    chan engine.Event
	closeOnce sync.Once

	started    *engine.LaunchConfig
	attached   bool
	ran        bool
	resumes    int
	steps      []string
	interrupts int
	terminated bool

	nextBpID    int
	breakpoints map[string]types.RuntimeLocation
	removed     []string
	setBpErr    error

	resumeGate chan struct{} // non-nil makes Resume block until closed

	evalFn    func(callFrameID, expression string) (engine.Value, *engine.EvalError, error)
	membersFn func(v engine.Value) ([]engine.Property, error)
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		events:      make(chan engine.Event, 8),
		breakpoints: make(map[string]types.RuntimeLocation),
	}
}

func (f *fakeEngine) Start(ctx context.Context, cfg engine.LaunchConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = &cfg
	return nil
}

func (f *fakeEngine) Attach(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attached = true
	return nil
}

func (f *fakeEngine) Run(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ran = true
	return nil
}

func (f *fakeEngine) Resume(ctx context.Context) error {
	f.mu.Lock()
	gate := f.resumeGate
	f.resumes++
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return nil
}

func (f *fakeEngine) StepOver(ctx context.Context) error { return f.step("over") }
func (f *fakeEngine) StepInto(ctx context.Context) error { return f.step("into") }
func (f *fakeEngine) StepOut(ctx context.Context) error  { return f.step("out") }

func (f *fakeEngine) step(kind string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps = append(f.steps, kind)
	return nil
}

func (f *fakeEngine) Interrupt(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interrupts++
	return nil
}

func (f *fakeEngine) SetBreakpoint(ctx context.Context, loc types.RuntimeLocation) (string, types.RuntimeLocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setBpErr != nil {
		return "", types.RuntimeLocation{}, f.setBpErr
	}
	f.nextBpID++
	id := fmt.Sprintf("bp-%d", f.nextBpID)
	f.breakpoints[id] = loc
	return id, loc, nil
}

func (f *fakeEngine) RemoveBreakpoint(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.breakpoints, id)
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeEngine) Evaluate(ctx context.Context, callFrameID, expression string) (engine.Value, *engine.EvalError, error) {
	f.mu.Lock()
	fn := f.evalFn
	f.mu.Unlock()
	if fn == nil {
		return engine.Primitive("undefined", "undefined"), nil, nil
	}
	return fn(callFrameID, expression)
}

func (f *fakeEngine) Members(ctx context.Context, v engine.Value) ([]engine.Property, error) {
	f.mu.Lock()
	fn := f.membersFn
	f.mu.Unlock()
	if fn == nil {
		return v.Children, nil
	}
	return fn(v)
}

func (f *fakeEngine) Terminate(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated = true
	return nil
}

func (f *fakeEngine) Events() <-chan engine.Event { return f.events }

func (f *fakeEngine) Close() error {
	f.closeOnce.Do(func() { close(f.events) })
	return nil
}

func (f *fakeEngine) push(ev engine.Event) { f.events <- ev }

func (f *fakeEngine) startedConfig() *engine.LaunchConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

func (f *fakeEngine) didRun() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ran
}

func (f *fakeEngine) resumeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resumes
}

func (f *fakeEngine) stepKinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.steps...)
}

func (f *fakeEngine) removedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.removed...)
}

func (f *fakeEngine) installedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.breakpoints)
}
