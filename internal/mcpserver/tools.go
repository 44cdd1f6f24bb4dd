package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tobert/flamezoom/internal/profile"
	"github.com/tobert/flamezoom/internal/session"
	"github.com/tobert/flamezoom/internal/storage"
	"github.com/tobert/flamezoom/internal/viz"
)

// maxViewNodes caps how many nodes get_view lists so huge traces stay readable.
const maxViewNodes = 200

// Tool: get_otlp_endpoint

type GetOTLPEndpointInput struct{}

type GetOTLPEndpointOutput struct {
	Endpoint        string            `json:"endpoint,omitempty" jsonschema:"OTLP gRPC endpoint address for traces"`
	WebUI           string            `json:"web_ui,omitempty" jsonschema:"Browser flame graph address"`
	EnvironmentVars map[string]string `json:"environment_vars,omitempty" jsonschema:"Suggested environment variables for instrumented programs"`
}

func (s *Server) handleGetOTLPEndpoint(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input GetOTLPEndpointInput,
) (*mcp.CallToolResult, GetOTLPEndpointOutput, error) {
	out := GetOTLPEndpointOutput{Endpoint: s.opts.Endpoint, WebUI: s.opts.WebURL}
	if out.Endpoint != "" {
		out.EnvironmentVars = map[string]string{
			"OTEL_EXPORTER_OTLP_ENDPOINT": out.Endpoint,
			"OTEL_EXPORTER_OTLP_PROTOCOL": "grpc",
			"OTEL_TRACES_EXPORTER":        "otlp",
		}
	}
	return &mcp.CallToolResult{}, out, nil
}

// Tool: list_traces

type ListTracesInput struct {
	Service       string  `json:"service,omitempty" jsonschema:"Only traces whose root span has this service.name"`
	RootSpan      string  `json:"root_span,omitempty" jsonschema:"Only traces whose root span name contains this text"`
	MinDurationMs float64 `json:"min_duration_ms,omitempty" jsonschema:"Only traces lasting at least this many milliseconds"`
	Limit         int     `json:"limit,omitempty" jsonschema:"Only return the N most recent matching traces (0 = all)"`
}

type ListTracesOutput struct {
	Loaded string                 `json:"loaded,omitempty" jsonschema:"Trace ID currently loaded in the view"`
	Stats  storage.StorageStats   `json:"stats" jsonschema:"Span buffer usage"`
	Traces []storage.TraceSummary `json:"traces" jsonschema:"Buffered traces, oldest first"`
}

func (s *Server) handleListTraces(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ListTracesInput,
) (*mcp.CallToolResult, ListTracesOutput, error) {
	traces := storage.FilterTraces(s.storage.Traces(), storage.FilterOptions{
		Service:       input.Service,
		RootSpan:      input.RootSpan,
		MinDurationNs: uint64(max(input.MinDurationMs, 0) * 1e6),
		Limit:         input.Limit,
	})
	return &mcp.CallToolResult{}, ListTracesOutput{
		Loaded: s.session.TraceID(),
		Stats:  s.storage.Stats(),
		Traces: traces,
	}, nil
}

// Tool: load_trace

type LoadTraceInput struct {
	TraceID string `json:"trace_id,omitempty" jsonschema:"Hex trace ID from list_traces; omit for the most recent trace"`
}

// ViewEntry is one node of the current view, flattened in pre-order.
type ViewEntry struct {
	ID    string `json:"id" jsonschema:"Node ID to pass to select_node"`
	Label string `json:"label" jsonschema:"Span name"`
	Width uint16 `json:"width" jsonschema:"Display width out of full_width"`
	Depth int    `json:"depth" jsonschema:"Depth below the view root"`
}

// ViewOutput describes the current zoom state. Shared by every tool that
// changes or reads the view.
type ViewOutput struct {
	TraceID    string      `json:"trace_id" jsonschema:"Loaded trace ID"`
	Spans      int         `json:"spans" jsonschema:"Number of spans in the trace"`
	DurationNs uint64      `json:"duration_ns" jsonschema:"Trace duration in nanoseconds"`
	FullWidth  uint16      `json:"full_width" jsonschema:"Display budget every view is scaled to"`
	Selected   string      `json:"selected" jsonschema:"Selected node ID"`
	Breadcrumb string      `json:"breadcrumb" jsonschema:"Labels from the root to the selection"`
	Flame      string      `json:"flame" jsonschema:"Text rendering of the view, one row per depth"`
	Nodes      []ViewEntry `json:"nodes" jsonschema:"Nodes of the view in pre-order"`
	Truncated  bool        `json:"truncated,omitempty" jsonschema:"True when nodes was cut short"`
}

func (s *Server) handleLoadTrace(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input LoadTraceInput,
) (*mcp.CallToolResult, ViewOutput, error) {
	if _, err := s.session.LoadFrom(s.storage, input.TraceID); err != nil {
		return nil, ViewOutput{}, fmt.Errorf("load_trace: %w", err)
	}
	return s.viewResult()
}

// Tool: get_view

type GetViewInput struct{}

func (s *Server) handleGetView(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input GetViewInput,
) (*mcp.CallToolResult, ViewOutput, error) {
	return s.viewResult()
}

// Tool: select_node

type SelectNodeInput struct {
	NodeID string   `json:"node_id,omitempty" jsonschema:"Node ID from get_view, e.g. '3.17'"`
	Path   []string `json:"path,omitempty" jsonschema:"Span names from the root's children down, used when node_id is empty"`
	Back   bool     `json:"back,omitempty" jsonschema:"Return to the previous selection instead"`
}

func (s *Server) handleSelectNode(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SelectNodeInput,
) (*mcp.CallToolResult, ViewOutput, error) {
	var err error
	switch {
	case input.Back:
		_, err = s.session.Back()
	case input.NodeID != "":
		var id profile.NodeID
		id, err = profile.ParseNodeID(input.NodeID)
		if err == nil {
			err = s.session.Select(id)
		}
	case len(input.Path) > 0:
		err = s.session.SelectPath(input.Path...)
	default:
		err = fmt.Errorf("one of node_id, path or back is required")
	}
	if err != nil {
		return nil, ViewOutput{}, fmt.Errorf("select_node: %w", err)
	}
	return s.viewResult()
}

// Tool: reset_view

type ResetViewInput struct{}

func (s *Server) handleResetView(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ResetViewInput,
) (*mcp.CallToolResult, ViewOutput, error) {
	if err := s.session.Reset(); err != nil {
		return nil, ViewOutput{}, fmt.Errorf("reset_view: %w", err)
	}
	return s.viewResult()
}

// Tool: clear_traces

type ClearTracesInput struct{}

type ClearTracesOutput struct {
	Message string `json:"message" jsonschema:"Confirmation message"`
}

func (s *Server) handleClearTraces(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ClearTracesInput,
) (*mcp.CallToolResult, ClearTracesOutput, error) {
	s.storage.Clear()
	return &mcp.CallToolResult{}, ClearTracesOutput{
		Message: "Cleared all buffered spans; the loaded view is kept until another trace is loaded",
	}, nil
}

func (s *Server) viewResult() (*mcp.CallToolResult, ViewOutput, error) {
	st, err := s.session.Snapshot()
	if err != nil {
		return nil, ViewOutput{}, err
	}
	return &mcp.CallToolResult{}, s.viewOutput(st), nil
}

func (s *Server) viewOutput(st session.State) ViewOutput {
	labels := make([]string, len(st.Path))
	for i, c := range st.Path {
		labels[i] = c.Label
	}

	out := ViewOutput{
		TraceID:    st.TraceID,
		Spans:      st.Spans,
		DurationNs: st.DurationNs,
		FullWidth:  st.FullWidth,
		Selected:   st.Selected.String(),
		Breadcrumb: viz.Breadcrumb(labels),
		Flame:      viz.Flame(st.View, viz.Options{Columns: s.opts.Columns}),
	}

	var walk func(n *profile.ViewNode, depth int)
	walk = func(n *profile.ViewNode, depth int) {
		if len(out.Nodes) >= maxViewNodes {
			out.Truncated = true
			return
		}
		out.Nodes = append(out.Nodes, ViewEntry{ID: n.ID.String(), Label: n.Label, Width: n.Width, Depth: depth})
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}
	walk(st.View, 0)

	return out
}

func (s *Server) registerTools() error {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_otlp_endpoint",
		Description: "Get the OTLP gRPC endpoint to send traces to and the web UI address. Set OTEL_EXPORTER_OTLP_ENDPOINT=<endpoint> when running an instrumented program, then call list_traces.",
	}, s.handleGetOTLPEndpoint)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_traces",
		Description: "List buffered traces with their root span, service, span count and duration, oldest first. Filter by service, root span name or minimum duration. Shows which trace is currently loaded.",
	}, s.handleListTraces)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "load_trace",
		Description: "Load a trace as a flame graph and show it zoomed all the way out. Omit trace_id to load the most recent trace. Node ids from a previous trace stop working.",
	}, s.handleLoadTrace)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_view",
		Description: "Show the current flame graph view: breadcrumb, a text rendering, and every visible node with its id, width and depth.",
	}, s.handleGetView)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "select_node",
		Description: "Zoom into a node so it fills the full width. Pass node_id from get_view, or a path of span names such as ['all', 'inside2'], or back=true to undo the last zoom. Zero-width nodes cannot be selected.",
	}, s.handleSelectNode)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "reset_view",
		Description: "Zoom back out to the root of the loaded trace.",
	}, s.handleResetView)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "clear_traces",
		Description: "Drop every buffered span. The currently loaded view stays until another trace is loaded.",
	}, s.handleClearTraces)

	return nil
}
