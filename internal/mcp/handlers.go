package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/go-dap"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tmajors/dapbridge/internal/adapter"
	"github.com/tmajors/dapbridge/internal/engine"
	apperrors "github.com/tmajors/dapbridge/internal/errors"
)

// getSession resolves the sessionId argument to a registered session.
func (s *Server) getSession(request mcp.CallToolRequest) (*adapter.Session, error) {
	sessionID, err := request.RequireString("sessionId")
	if err != nil {
		return nil, apperrors.InvalidArgument("sessionId", "",
			"the sessionId returned from debug_launch; use debug_list_sessions to see active sessions")
	}
	return s.adapter.GetSession(sessionID)
}

func (s *Server) handleDebugLaunch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	program, err := request.RequireString("program")
	if err != nil {
		return mcp.NewToolResultError("program is required"), nil
	}

	cfg := engine.LaunchConfig{
		Program:     program,
		StopOnEntry: request.GetBool("stopOnEntry", false),
	}
	if cwd, err := request.RequireString("cwd"); err == nil {
		cfg.Cwd = cwd
	}
	if argsJSON, err := request.RequireString("args"); err == nil && argsJSON != "" {
		if err := json.Unmarshal([]byte(argsJSON), &cfg.Args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid args: %v (expected a JSON array of strings)", err)), nil
		}
	}

	sess, err := s.adapter.CreateSession(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	// no editor is attached to an MCP-driven session; state changes are
	// observed through the tools, so the event stream is drained
	go func() {
		for range sess.Messages() {
		}
	}()

	if err := sess.Launch(ctx, cfg); err != nil {
		_ = s.adapter.RemoveSession(sess.ID())
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := sess.ConfigurationDone(ctx); err != nil {
		_ = s.adapter.RemoveSession(sess.ID())
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(map[string]interface{}{
		"sessionId": sess.ID(),
		"status":    sess.Info().Status,
		"program":   program,
	})
}

func (s *Server) handleDebugDisconnect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.getSession(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := sess.Disconnect(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.adapter.RemoveSession(sess.ID()); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]interface{}{
		"sessionId": sess.ID(),
		"status":    "terminated",
	})
}

func (s *Server) handleDebugListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]interface{}{
		"sessions": s.adapter.ListSessions(),
	})
}

func (s *Server) handleDebugStacktrace(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.getSession(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	frames, err := sess.StackTrace()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]interface{}{
		"stackFrames": frames,
	})
}

func (s *Server) handleDebugVariables(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.getSession(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ref, err := request.RequireFloat("variablesReference")
	if err != nil {
		return mcp.NewToolResultError("variablesReference is required"), nil
	}
	vars, err := sess.Variables(ctx, int(ref))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]interface{}{
		"variables": vars,
	})
}

func (s *Server) handleDebugBreakpoints(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.getSession(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError("path is required"), nil
	}
	bpsJSON, err := request.RequireString("breakpoints")
	if err != nil {
		return mcp.NewToolResultError("breakpoints is required"), nil
	}
	var reqs []dap.SourceBreakpoint
	if err := json.Unmarshal([]byte(bpsJSON), &reqs); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid breakpoints: %v (expected a JSON array like [{\"line\": 10}])", err)), nil
	}
	results, err := sess.SetBreakpoints(ctx, path, reqs)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]interface{}{
		"breakpoints": results,
	})
}

func (s *Server) handleDebugContinue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.getSession(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := sess.Continue(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]interface{}{
		"sessionId": sess.ID(),
		"status":    sess.Info().Status,
	})
}

func (s *Server) handleDebugStep(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.getSession(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind := adapter.StepOver
	switch k, _ := request.RequireString("kind"); k {
	case "", "over":
	case "into":
		kind = adapter.StepInto
	case "out":
		kind = adapter.StepOut
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown step kind %q: expected over, into, or out", k)), nil
	}
	if err := sess.Step(ctx, kind); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]interface{}{
		"sessionId": sess.ID(),
		"status":    sess.Info().Status,
	})
}

func (s *Server) handleDebugPause(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.getSession(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := sess.Pause(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]interface{}{
		"sessionId": sess.ID(),
		"status":    sess.Info().Status,
	})
}

func (s *Server) handleDebugEvaluate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.config.CanEvaluate() {
		return mcp.NewToolResultError("evaluate is not allowed in readonly mode"), nil
	}
	sess, err := s.getSession(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	expression, err := request.RequireString("expression")
	if err != nil {
		return mcp.NewToolResultError("expression is required"), nil
	}
	frameID := 0
	if f, err := request.RequireFloat("frameId"); err == nil {
		frameID = int(f)
	}
	result, ref, err := sess.Evaluate(ctx, expression, frameID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]interface{}{
		"result":             result,
		"variablesReference": ref,
	})
}

func jsonResult(data interface{}) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
