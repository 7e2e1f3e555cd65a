package adapter

import (
	"encoding/json"

	"github.com/google/go-dap"

	apperrors "github.com/tmajors/dapbridge/internal/errors"
	"github.com/tmajors/dapbridge/internal/engine"
)

// HandleMessage routes one editor message. Execution-control and
// configuration requests run on the caller's goroutine so they are
// processed in arrival order; inspection requests run concurrently, since
// during a pause they only read engine state and their replies carry the
// request seq for correlation.
func (s *Session) HandleMessage(msg dap.Message) {
	switch request := msg.(type) {
	case *dap.InitializeRequest:
		s.onInitializeRequest(request)
	case *dap.LaunchRequest:
		s.onLaunchRequest(request)
	case *dap.AttachRequest:
		s.onAttachRequest(request)
	case *dap.ConfigurationDoneRequest:
		s.onConfigurationDoneRequest(request)
	case *dap.SetBreakpointsRequest:
		s.onSetBreakpointsRequest(request)
	case *dap.ContinueRequest:
		s.onContinueRequest(request)
	case *dap.NextRequest:
		s.onNextRequest(request)
	case *dap.StepInRequest:
		s.onStepInRequest(request)
	case *dap.StepOutRequest:
		s.onStepOutRequest(request)
	case *dap.PauseRequest:
		s.onPauseRequest(request)
	case *dap.ThreadsRequest:
		go s.onThreadsRequest(request)
	case *dap.StackTraceRequest:
		go s.onStackTraceRequest(request)
	case *dap.ScopesRequest:
		go s.onScopesRequest(request)
	case *dap.VariablesRequest:
		go s.onVariablesRequest(request)
	case *dap.EvaluateRequest:
		go s.onEvaluateRequest(request)
	case *dap.CompletionsRequest:
		go s.onCompletionsRequest(request)
	case *dap.DisconnectRequest:
		s.onDisconnectRequest(request)
	default:
		if req, ok := msg.(dap.RequestMessage); ok {
			r := req.GetRequest()
			s.send(newErrorResponse(r.Seq, r.Command, apperrors.UnrecognizedRequest(r.Command)))
		} else {
			s.log.Debug("ignoring non-request message", "seq", msg.GetSeq())
		}
	}
}

func (s *Session) onInitializeRequest(request *dap.InitializeRequest) {
	if pf := request.Arguments.PathFormat; pf != "" && pf != "path" {
		s.send(newErrorResponse(request.Seq, request.Command, apperrors.UnsupportedPathFormat(pf)))
		return
	}
	response := &dap.InitializeResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	response.Body = dap.Capabilities{
		SupportsConfigurationDoneRequest:  true,
		SupportsConditionalBreakpoints:    true,
		SupportsHitConditionalBreakpoints: true,
		SupportsCompletionsRequest:        true,
		SupportsEvaluateForHovers:         true,
		CompletionTriggerCharacters:       []string{"."},
	}
	s.send(response)
	s.send(&dap.InitializedEvent{Event: *newEvent("initialized")})
}

// launchArguments is the adapter-specific payload of a launch request.
type launchArguments struct {
	Program     string   `json:"program"`
	Args        []string `json:"args,omitempty"`
	Cwd         string   `json:"cwd,omitempty"`
	StopOnEntry bool     `json:"stopOnEntry,omitempty"`
}

func (s *Session) onLaunchRequest(request *dap.LaunchRequest) {
	var args launchArguments
	if err := json.Unmarshal(request.Arguments, &args); err != nil {
		s.send(newErrorResponse(request.Seq, request.Command,
			apperrors.InvalidArgument("arguments", string(request.Arguments), "a launch configuration object")))
		return
	}
	if args.Program == "" {
		s.send(newErrorResponse(request.Seq, request.Command,
			apperrors.InvalidArgument("program", args.Program, "a non-empty program path")))
		return
	}
	cfg := engine.LaunchConfig{
		Program:     args.Program,
		Args:        args.Args,
		Cwd:         args.Cwd,
		StopOnEntry: args.StopOnEntry,
	}
	if err := s.Launch(s.ctx, cfg); err != nil {
		s.send(newErrorResponse(request.Seq, request.Command, err))
		return
	}
	response := &dap.LaunchResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	s.send(response)
}

func (s *Session) onAttachRequest(request *dap.AttachRequest) {
	if err := s.Attach(s.ctx); err != nil {
		s.send(newErrorResponse(request.Seq, request.Command, err))
		return
	}
	response := &dap.AttachResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	s.send(response)
}

func (s *Session) onConfigurationDoneRequest(request *dap.ConfigurationDoneRequest) {
	if err := s.ConfigurationDone(s.ctx); err != nil {
		s.send(newErrorResponse(request.Seq, request.Command, err))
		return
	}
	response := &dap.ConfigurationDoneResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	s.send(response)
}

func (s *Session) onSetBreakpointsRequest(request *dap.SetBreakpointsRequest) {
	path := request.Arguments.Source.Path
	if path == "" {
		s.send(newErrorResponse(request.Seq, request.Command,
			apperrors.InvalidArgument("source.path", path, "a non-empty source path")))
		return
	}
	results, err := s.SetBreakpoints(s.ctx, path, request.Arguments.Breakpoints)
	if err != nil {
		s.send(newErrorResponse(request.Seq, request.Command, err))
		return
	}
	response := &dap.SetBreakpointsResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	response.Body = dap.SetBreakpointsResponseBody{Breakpoints: results}
	s.send(response)
}

func (s *Session) onContinueRequest(request *dap.ContinueRequest) {
	if err := s.Continue(s.ctx); err != nil {
		s.send(newErrorResponse(request.Seq, request.Command, err))
		return
	}
	response := &dap.ContinueResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	response.Body = dap.ContinueResponseBody{AllThreadsContinued: true}
	s.send(response)
}

func (s *Session) onNextRequest(request *dap.NextRequest) {
	if err := s.Step(s.ctx, StepOver); err != nil {
		s.send(newErrorResponse(request.Seq, request.Command, err))
		return
	}
	response := &dap.NextResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	s.send(response)
}

func (s *Session) onStepInRequest(request *dap.StepInRequest) {
	if err := s.Step(s.ctx, StepInto); err != nil {
		s.send(newErrorResponse(request.Seq, request.Command, err))
		return
	}
	response := &dap.StepInResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	s.send(response)
}

func (s *Session) onStepOutRequest(request *dap.StepOutRequest) {
	if err := s.Step(s.ctx, StepOut); err != nil {
		s.send(newErrorResponse(request.Seq, request.Command, err))
		return
	}
	response := &dap.StepOutResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	s.send(response)
}

func (s *Session) onPauseRequest(request *dap.PauseRequest) {
	if err := s.Pause(s.ctx); err != nil {
		s.send(newErrorResponse(request.Seq, request.Command, err))
		return
	}
	response := &dap.PauseResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	s.send(response)
}

func (s *Session) onThreadsRequest(request *dap.ThreadsRequest) {
	response := &dap.ThreadsResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	response.Body = dap.ThreadsResponseBody{Threads: s.Threads()}
	s.send(response)
}

func (s *Session) onStackTraceRequest(request *dap.StackTraceRequest) {
	frames, err := s.StackTrace()
	if err != nil {
		s.send(newErrorResponse(request.Seq, request.Command, err))
		return
	}
	response := &dap.StackTraceResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	response.Body = dap.StackTraceResponseBody{
		StackFrames: frames,
		TotalFrames: len(frames),
	}
	s.send(response)
}

func (s *Session) onScopesRequest(request *dap.ScopesRequest) {
	scopes, err := s.Scopes(request.Arguments.FrameId)
	if err != nil {
		s.send(newErrorResponse(request.Seq, request.Command, err))
		return
	}
	response := &dap.ScopesResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	response.Body = dap.ScopesResponseBody{Scopes: scopes}
	s.send(response)
}

func (s *Session) onVariablesRequest(request *dap.VariablesRequest) {
	vars, err := s.Variables(s.ctx, request.Arguments.VariablesReference)
	if err != nil {
		s.send(newErrorResponse(request.Seq, request.Command, err))
		return
	}
	response := &dap.VariablesResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	response.Body = dap.VariablesResponseBody{Variables: vars}
	s.send(response)
}

func (s *Session) onEvaluateRequest(request *dap.EvaluateRequest) {
	result, ref, err := s.Evaluate(s.ctx, request.Arguments.Expression, request.Arguments.FrameId)
	if err != nil {
		s.send(newErrorResponse(request.Seq, request.Command, err))
		return
	}
	response := &dap.EvaluateResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	response.Body = dap.EvaluateResponseBody{
		Result:             result,
		VariablesReference: ref,
	}
	s.send(response)
}

func (s *Session) onCompletionsRequest(request *dap.CompletionsRequest) {
	labels, err := s.Completions(s.ctx, request.Arguments.Text, request.Arguments.Column, request.Arguments.FrameId)
	if err != nil {
		s.send(newErrorResponse(request.Seq, request.Command, err))
		return
	}
	targets := make([]dap.CompletionItem, len(labels))
	for i, label := range labels {
		targets[i] = dap.CompletionItem{Label: label}
	}
	response := &dap.CompletionsResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	response.Body = dap.CompletionsResponseBody{Targets: targets}
	s.send(response)
}

func (s *Session) onDisconnectRequest(request *dap.DisconnectRequest) {
	if err := s.Disconnect(s.ctx); err != nil {
		s.send(newErrorResponse(request.Seq, request.Command, err))
		return
	}
	response := &dap.DisconnectResponse{}
	response.Response = *newResponse(request.Seq, request.Command)
	s.send(response)
}

func newEvent(event string) *dap.Event {
	return &dap.Event{
		ProtocolMessage: dap.ProtocolMessage{
			Seq:  0,
			Type: "event",
		},
		Event: event,
	}
}

func newResponse(requestSeq int, command string) *dap.Response {
	return &dap.Response{
		ProtocolMessage: dap.ProtocolMessage{
			Seq:  0,
			Type: "response",
		},
		Command:    command,
		RequestSeq: requestSeq,
		Success:    true,
	}
}

// errorID maps the error taxonomy to the numeric ids carried in DAP error
// responses.
func errorID(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.CodeProtocol:
		return 1000
	case apperrors.CodeState:
		return 1001
	case apperrors.CodeStaleReference:
		return 1002
	case apperrors.CodeEvaluation:
		return 1003
	case apperrors.CodeEngineUnavailable:
		return 1004
	default:
		return 1999
	}
}

func newErrorResponse(requestSeq int, command string, err error) *dap.ErrorResponse {
	ae := apperrors.FromError(err)
	er := &dap.ErrorResponse{}
	er.Response = *newResponse(requestSeq, command)
	er.Success = false
	er.Message = string(ae.Code)
	er.Body = dap.ErrorResponseBody{
		Error: &dap.ErrorMessage{
			Id:       errorID(ae.Code),
			Format:   ae.Message,
			ShowUser: true,
		},
	}
	return er
}
