package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tmajors/dapbridge/pkg/types"
)

// LaunchConfig describes the debuggee the engine should start. When
// StopOnEntry is set the engine arranges a pause at the first executable
// statement of the entry script before user code runs.
type LaunchConfig struct {
	Program     string   `json:"program"`
	Args        []string `json:"args,omitempty"`
	Cwd         string   `json:"cwd,omitempty"`
	StopOnEntry bool     `json:"stopOnEntry,omitempty"`
}

// Client drives the engine over a Transport. Commands may be issued
// concurrently from multiple goroutines; each reply is matched to its
// command by id, so replies arriving out of order are routed correctly.
type Client struct {
	transport *Transport
	log       *slog.Logger

	mu      sync.Mutex
	pending map[int]chan *Message
	closed  bool

	events chan Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewClient creates a client on the given transport and starts its read
// loop.
func NewClient(transport *Transport, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		transport: transport,
		log:       log,
		pending:   make(map[int]chan *Message),
		events:    make(chan Event, 32),
		ctx:       ctx,
		cancel:    cancel,
	}

	c.wg.Add(1)
	go c.readLoop()

	return c
}

// Events returns the engine event stream. The channel is closed after a
// DisconnectedEvent once the transport is lost or the client is closed.
func (c *Client) Events() <-chan Event {
	return c.events
}

// readLoop continuously reads messages from the transport.
func (c *Client) readLoop() {
	defer c.wg.Done()

	for {
		msg, err := c.transport.Receive()
		if err != nil {
			select {
			case <-c.ctx.Done():
				c.failPending(c.ctx.Err())
				close(c.events)
			default:
				c.log.Debug("engine transport lost", "err", err)
				c.failPending(err)
				c.events <- DisconnectedEvent{Err: err}
				close(c.events)
			}
			return
		}
		c.handleMessage(msg)
	}
}

// handleMessage routes a reply to its waiting command or decodes an event.
func (c *Client) handleMessage(msg *Message) {
	if msg.ID != 0 {
		c.mu.Lock()
		ch, ok := c.pending[msg.ID]
		if ok {
			delete(c.pending, msg.ID)
		}
		c.mu.Unlock()
		if ok {
			ch <- msg
		} else {
			c.log.Debug("dropping reply with no pending command", "id", msg.ID)
		}
		return
	}

	ev, err := decodeEvent(msg)
	if err != nil {
		c.log.Warn("dropping undecodable engine event", "method", msg.Method, "err", err)
		return
	}
	if ev != nil {
		c.events <- ev
	}
}

func decodeEvent(msg *Message) (Event, error) {
	switch msg.Method {
	case "Debugger.paused":
		var ev PausedEvent
		if err := json.Unmarshal(msg.Params, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case "Debugger.resumed":
		return ResumedEvent{}, nil
	case "Runtime.output":
		var ev OutputEvent
		if err := json.Unmarshal(msg.Params, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case "Target.exited":
		var ev ExitedEvent
		if err := json.Unmarshal(msg.Params, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	default:
		// Unknown notifications are ignored; the engine may be newer
		// than the adapter.
		return nil, nil
	}
}

// failPending fails every outstanding command with err.
func (c *Client) failPending(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, ch := range c.pending {
		delete(c.pending, id)
		ch <- &Message{ID: id, Error: &CommandError{Code: -1, Message: err.Error()}}
	}
}

// Call issues one command and waits for its reply. Params is marshaled as
// the command parameters; if result is non-nil the reply's result payload
// is unmarshaled into it. Call is safe for concurrent use.
func (c *Client) Call(ctx context.Context, method string, params, result interface{}) error {
	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("failed to marshal %s params: %w", method, err)
		}
		raw = data
	}

	id := c.transport.NextSeq()
	respCh := make(chan *Message, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("engine connection closed")
	}
	c.pending[id] = respCh
	c.mu.Unlock()

	if err := c.transport.Send(&Message{ID: id, Method: method, Params: raw}); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return err
	}

	select {
	case resp := <-respCh:
		if resp.Error != nil {
			return resp.Error
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("failed to decode %s result: %w", method, err)
			}
		}
		return nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return ctx.Err()
	case <-c.ctx.Done():
		return c.ctx.Err()
	}
}

// Start asks the engine to start the debuggee held at its first statement.
// The debuggee does not run until Run is called.
func (c *Client) Start(ctx context.Context, cfg LaunchConfig) error {
	return c.Call(ctx, "Target.start", cfg, nil)
}

// Attach connects to an already-running debuggee.
func (c *Client) Attach(ctx context.Context) error {
	return c.Call(ctx, "Target.attach", nil, nil)
}

// Run releases a debuggee held by Start.
func (c *Client) Run(ctx context.Context) error {
	return c.Call(ctx, "Target.run", nil, nil)
}

// Resume continues execution after a pause.
func (c *Client) Resume(ctx context.Context) error {
	return c.Call(ctx, "Debugger.resume", nil, nil)
}

// StepOver executes the next statement without entering calls.
func (c *Client) StepOver(ctx context.Context) error {
	return c.Call(ctx, "Debugger.stepOver", nil, nil)
}

// StepInto executes the next statement, entering calls.
func (c *Client) StepInto(ctx context.Context) error {
	return c.Call(ctx, "Debugger.stepInto", nil, nil)
}

// StepOut runs until the current function returns.
func (c *Client) StepOut(ctx context.Context) error {
	return c.Call(ctx, "Debugger.stepOut", nil, nil)
}

// Interrupt requests a pause of a running debuggee.
func (c *Client) Interrupt(ctx context.Context) error {
	return c.Call(ctx, "Debugger.pause", nil, nil)
}

type setBreakpointParams struct {
	Location types.RuntimeLocation `json:"location"`
}

type setBreakpointResult struct {
	BreakpointID   string                `json:"breakpointId"`
	ActualLocation types.RuntimeLocation `json:"actualLocation"`
}

// SetBreakpoint installs a breakpoint at the given runtime location and
// returns the engine's breakpoint id and the location it actually bound to.
func (c *Client) SetBreakpoint(ctx context.Context, loc types.RuntimeLocation) (string, types.RuntimeLocation, error) {
	var res setBreakpointResult
	if err := c.Call(ctx, "Debugger.setBreakpoint", setBreakpointParams{Location: loc}, &res); err != nil {
		return "", types.RuntimeLocation{}, err
	}
	return res.BreakpointID, res.ActualLocation, nil
}

type removeBreakpointParams struct {
	BreakpointID string `json:"breakpointId"`
}

// RemoveBreakpoint removes an engine breakpoint.
func (c *Client) RemoveBreakpoint(ctx context.Context, id string) error {
	return c.Call(ctx, "Debugger.removeBreakpoint", removeBreakpointParams{BreakpointID: id}, nil)
}

type evaluateParams struct {
	CallFrameID string `json:"callFrameId"`
	Expression  string `json:"expression"`
}

type evaluateResult struct {
	Result    *Value     `json:"result,omitempty"`
	Exception *EvalError `json:"exception,omitempty"`
}

// Evaluate evaluates an expression in the scope of a call frame. A nil
// error with a non-nil EvalError means the expression itself failed;
// a non-nil error means the command could not be carried out.
func (c *Client) Evaluate(ctx context.Context, callFrameID, expression string) (Value, *EvalError, error) {
	var res evaluateResult
	err := c.Call(ctx, "Debugger.evaluateOnCallFrame", evaluateParams{
		CallFrameID: callFrameID,
		Expression:  expression,
	}, &res)
	if err != nil {
		return Value{}, nil, err
	}
	if res.Exception != nil {
		return Value{}, res.Exception, nil
	}
	if res.Result == nil {
		return Primitive("undefined", "undefined"), nil, nil
	}
	return *res.Result, nil, nil
}

type membersParams struct {
	ObjectID string `json:"objectId,omitempty"`
	Type     string `json:"type,omitempty"`
	Value    string `json:"value,omitempty"`
}

type membersResult struct {
	Properties []struct {
		Name  string `json:"name"`
		Value Value  `json:"value"`
	} `json:"properties"`
}

// Members enumerates the named members of a value, including members
// inherited from the value's primitive type (string methods on a string
// literal). Structured and indexed values are looked up by object id;
// primitives are sent by type and literal so the engine can consult the
// type's prototype.
func (c *Client) Members(ctx context.Context, v Value) ([]Property, error) {
	params := membersParams{ObjectID: v.ObjectID}
	if v.ObjectID == "" {
		params.Type = v.Type
		params.Value = v.Literal
	}
	var res membersResult
	if err := c.Call(ctx, "Runtime.getProperties", params, &res); err != nil {
		return nil, err
	}
	props := make([]Property, len(res.Properties))
	for i, p := range res.Properties {
		props[i] = Property{Name: p.Name, Value: p.Value}
	}
	return props, nil
}

// Terminate asks the engine to terminate the debuggee.
func (c *Client) Terminate(ctx context.Context) error {
	return c.Call(ctx, "Target.terminate", nil, nil)
}

// Close shuts down the client and its transport.
func (c *Client) Close() error {
	c.cancel()
	err := c.transport.Close()
	c.wg.Wait()
	return err
}
