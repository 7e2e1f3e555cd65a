package adapter

import (
	"context"

	"github.com/tmajors/dapbridge/internal/engine"
	"github.com/tmajors/dapbridge/pkg/types"
)

// Engine is the narrow view of the debuggee's remote-debugging interface
// the adapter core consumes. *engine.Client implements it; tests drive the
// core with a fake. Commands must eventually reply or the implementation
// must deliver a DisconnectedEvent; the core does not retry, because a
// non-responding debuggee is terminal, not transient.
type Engine interface {
	Start(ctx context.Context, cfg engine.LaunchConfig) error
	Attach(ctx context.Context) error
	Run(ctx context.Context) error

	Resume(ctx context.Context) error
	StepOver(ctx context.Context) error
	StepInto(ctx context.Context) error
	StepOut(ctx context.Context) error
	Interrupt(ctx context.Context) error

	SetBreakpoint(ctx context.Context, loc types.RuntimeLocation) (string, types.RuntimeLocation, error)
	RemoveBreakpoint(ctx context.Context, id string) error

	Evaluate(ctx context.Context, callFrameID, expression string) (engine.Value, *engine.EvalError, error)
	Members(ctx context.Context, v engine.Value) ([]engine.Property, error)

	Terminate(ctx context.Context) error
	Events() <-chan engine.Event
	Close() error
}
