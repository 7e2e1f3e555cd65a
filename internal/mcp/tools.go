package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// registerTools registers the consolidated debug tool API.
func (s *Server) registerTools() {
	// Session management (both modes)
	s.registerDebugLaunch()
	s.registerDebugDisconnect()
	s.registerDebugListSessions()

	// Inspection (both modes)
	s.registerDebugStacktrace()
	s.registerDebugVariables()

	// Control (full mode only)
	if s.config.CanUseControlTools() {
		s.registerDebugBreakpoints()
		s.registerDebugContinue()
		s.registerDebugStep()
		s.registerDebugPause()
		s.registerDebugEvaluate()
	}
}

func (s *Server) registerDebugLaunch() {
	tool := mcp.NewTool("debug_launch",
		mcp.WithDescription("Launch a new debug session. Returns sessionId needed for all other tools. Use stopOnEntry=true to pause at the first statement."),
		mcp.WithString("program",
			mcp.Required(),
			mcp.Description("Path to the program to debug"),
		),
		mcp.WithString("args",
			mcp.Description("JSON array of program arguments, e.g. [\"--verbose\"]"),
		),
		mcp.WithString("cwd",
			mcp.Description("Working directory for the program"),
		),
		mcp.WithBoolean("stopOnEntry",
			mcp.Description("Stop at the first statement (default: false)"),
		),
	)
	s.mcpServer.AddTool(tool, s.handleDebugLaunch)
}

func (s *Server) registerDebugDisconnect() {
	tool := mcp.NewTool("debug_disconnect",
		mcp.WithDescription("End a debug session and terminate its debuggee."),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("Session id from debug_launch"),
		),
	)
	s.mcpServer.AddTool(tool, s.handleDebugDisconnect)
}

func (s *Server) registerDebugListSessions() {
	tool := mcp.NewTool("debug_list_sessions",
		mcp.WithDescription("List active debug sessions with their status."),
	)
	s.mcpServer.AddTool(tool, s.handleDebugListSessions)
}

func (s *Server) registerDebugStacktrace() {
	tool := mcp.NewTool("debug_stacktrace",
		mcp.WithDescription("Return the call frames of the current pause, innermost first. Fails while the debuggee is running."),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("Session id from debug_launch"),
		),
	)
	s.mcpServer.AddTool(tool, s.handleDebugStacktrace)
}

func (s *Server) registerDebugVariables() {
	tool := mcp.NewTool("debug_variables",
		mcp.WithDescription("Expand a variables reference from debug_stacktrace or debug_evaluate into named child variables."),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("Session id from debug_launch"),
		),
		mcp.WithNumber("variablesReference",
			mcp.Required(),
			mcp.Description("A nonzero handle issued during the current pause"),
		),
	)
	s.mcpServer.AddTool(tool, s.handleDebugVariables)
}

func (s *Server) registerDebugBreakpoints() {
	tool := mcp.NewTool("debug_breakpoints",
		mcp.WithDescription("Replace the breakpoints of a source file. Supports condition expressions and hit conditions like '=3', '%2', '>=5'. An empty list clears the file."),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("Session id from debug_launch"),
		),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Source file path"),
		),
		mcp.WithString("breakpoints",
			mcp.Required(),
			mcp.Description("JSON array of breakpoints, e.g. [{\"line\": 10}, {\"line\": 20, \"condition\": \"x > 1\", \"hitCondition\": \"%2\"}]"),
		),
	)
	s.mcpServer.AddTool(tool, s.handleDebugBreakpoints)
}

func (s *Server) registerDebugContinue() {
	tool := mcp.NewTool("debug_continue",
		mcp.WithDescription("Resume free execution of a paused debuggee."),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("Session id from debug_launch"),
		),
	)
	s.mcpServer.AddTool(tool, s.handleDebugContinue)
}

func (s *Server) registerDebugStep() {
	tool := mcp.NewTool("debug_step",
		mcp.WithDescription("Step a paused debuggee."),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("Session id from debug_launch"),
		),
		mcp.WithString("kind",
			mcp.Description("One of 'over' (default), 'into', 'out'"),
		),
	)
	s.mcpServer.AddTool(tool, s.handleDebugStep)
}

func (s *Server) registerDebugPause() {
	tool := mcp.NewTool("debug_pause",
		mcp.WithDescription("Interrupt a running debuggee. The pause is reported once the engine confirms."),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("Session id from debug_launch"),
		),
	)
	s.mcpServer.AddTool(tool, s.handleDebugPause)
}

func (s *Server) registerDebugEvaluate() {
	tool := mcp.NewTool("debug_evaluate",
		mcp.WithDescription("Evaluate an expression in a frame of the current pause. Fails while the debuggee is running."),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("Session id from debug_launch"),
		),
		mcp.WithString("expression",
			mcp.Required(),
			mcp.Description("Expression to evaluate"),
		),
		mcp.WithNumber("frameId",
			mcp.Description("Frame id from debug_stacktrace; defaults to the top frame"),
		),
	)
	s.mcpServer.AddTool(tool, s.handleDebugEvaluate)
}
