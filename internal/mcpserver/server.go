// Package mcpserver exposes the flame graph session to agents over the Model
// Context Protocol: list buffered traces, load one, read the current zoom view
// and select nodes by id or label path.
package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tobert/flamezoom/internal/session"
	"github.com/tobert/flamezoom/internal/storage"
)

// Server wraps the MCP server around trace storage and the shared session.
type Server struct {
	mcpServer *mcp.Server
	storage   *storage.TraceStorage
	session   *session.Session
	opts      ServerOptions
}

// ServerOptions configures the MCP server.
type ServerOptions struct {
	Endpoint string // OTLP gRPC endpoint reported to agents; empty when not listening
	WebURL   string // web UI address reported to agents; empty when disabled
	Columns  int    // terminal width for the text flame rendering
	Verbose  bool
}

// NewServer creates a new MCP server with the flame graph tools and resources.
func NewServer(ts *storage.TraceStorage, sess *session.Session, opts ServerOptions) (*Server, error) {
	if ts == nil {
		return nil, errors.New("trace storage cannot be nil")
	}
	if sess == nil {
		return nil, errors.New("session cannot be nil")
	}

	s := &Server{
		storage: ts,
		session: sess,
		opts:    opts,
	}

	s.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    "flamezoom",
		Title:   "Zoomable flame graphs of OpenTelemetry traces",
		Version: "0.1.0",
	}, &mcp.ServerOptions{
		Instructions: `Flame graph browser for OpenTelemetry traces captured in memory.

Workflow: get_otlp_endpoint -> run an instrumented program -> list_traces -> load_trace -> get_view -> select_node / reset_view.

Node ids look like "3.17" and are only valid for the trace they were read from.
Resources: flamezoom://view, flamezoom://traces, flamezoom://stats.`,
	})

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	s.registerResources()

	return s, nil
}

// Run serves MCP on stdio until ctx is cancelled or stdin reaches EOF.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for use with other transports.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcpServer
}
