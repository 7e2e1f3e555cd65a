// Package mcp exposes the debug adapter through the Model Context
// Protocol, so AI assistants can drive the same sessions an editor can.
// It provides a consolidated tool API:
//
// Session Management (always available):
//   - debug_launch: Launch a new debug session
//   - debug_disconnect: Disconnect from a session
//   - debug_list_sessions: List active sessions
//
// Inspection (always available):
//   - debug_stacktrace: Frames of the current pause
//   - debug_variables: Expand a variables reference
//
// Control (full mode only):
//   - debug_breakpoints: Replace the breakpoints of a source file
//   - debug_continue: Resume execution
//   - debug_step: Step over/into/out
//   - debug_pause: Interrupt a running debuggee
//   - debug_evaluate: Evaluate an expression in a frame
package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/tmajors/dapbridge/internal/adapter"
	"github.com/tmajors/dapbridge/internal/config"
)

// Server wraps the MCP server around the adapter's session registry.
type Server struct {
	mcpServer *server.MCPServer
	adapter   *adapter.Server
	config    *config.Config
}

// NewServer creates an MCP surface over an adapter server.
func NewServer(cfg *config.Config, adapterServer *adapter.Server, version string) *Server {
	mcpServer := server.NewMCPServer(
		"dapbridge",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	s := &Server{
		mcpServer: mcpServer,
		adapter:   adapterServer,
		config:    cfg,
	}

	s.registerTools()

	return s
}

// ServeStdio starts the server using stdio transport.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
