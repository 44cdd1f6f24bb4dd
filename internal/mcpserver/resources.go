package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tobert/flamezoom/internal/session"
	"github.com/tobert/flamezoom/internal/viz"
)

// registerResources registers the read-only text resources.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         "flamezoom://view",
		Name:        "view",
		Description: "Current flame graph view as text: header, breadcrumb, flame rows and node outline.",
		MIMEType:    "text/plain",
	}, s.handleViewResource)

	s.mcpServer.AddResource(&mcp.Resource{
		URI:         "flamezoom://traces",
		Name:        "traces",
		Description: "Buffered traces as a table.",
		MIMEType:    "text/plain",
	}, s.handleTracesResource)

	s.mcpServer.AddResource(&mcp.Resource{
		URI:         "flamezoom://stats",
		Name:        "stats",
		Description: "Span buffer usage and OTLP endpoint.",
		MIMEType:    "text/plain",
	}, s.handleStatsResource)
}

func (s *Server) handleViewResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	st, err := s.session.Snapshot()
	if errors.Is(err, session.ErrNoProfile) {
		return textResult(req.Params.URI, "No trace loaded. Call load_trace first.\n"), nil
	}
	if err != nil {
		return nil, err
	}

	labels := make([]string, len(st.Path))
	for i, c := range st.Path {
		labels[i] = c.Label
	}

	var b strings.Builder
	b.WriteString(viz.Header(st.TraceID, st.Spans, st.DurationNs))
	b.WriteString("\n")
	b.WriteString(viz.Breadcrumb(labels))
	b.WriteString("\n\n")
	b.WriteString(viz.Flame(st.View, viz.Options{Columns: s.opts.Columns}))
	b.WriteString("\n")
	b.WriteString(viz.Outline(st.View))

	return textResult(req.Params.URI, b.String()), nil
}

func (s *Server) handleTracesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	traces := s.storage.Traces()
	if len(traces) == 0 {
		return textResult(req.Params.URI, "Traces (0)\n  (none)\n"), nil
	}

	loaded := s.session.TraceID()
	rows := make([]viz.TraceRow, len(traces))
	for i, t := range traces {
		rows[i] = viz.TraceRow{
			TraceID:    t.TraceID,
			Service:    t.Service,
			RootSpan:   t.RootSpan,
			SpanCount:  t.SpanCount,
			DurationNs: t.DurationNs,
			Loaded:     t.TraceID == loaded,
		}
	}
	return textResult(req.Params.URI, viz.TraceTable(rows)), nil
}

func (s *Server) handleStatsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	stats := s.storage.Stats()

	var b strings.Builder
	b.WriteString(viz.StatsOverview(viz.BufferStats{
		SpanCount:    stats.SpanCount,
		SpanCapacity: stats.Capacity,
		TraceCount:   stats.TraceCount,
	}))
	fmt.Fprintf(&b, "  Usage:  %s\n", fmtPct(stats.SpanCount, stats.Capacity))
	if s.opts.Endpoint != "" {
		fmt.Fprintf(&b, "\n  OTLP:   %s\n", s.opts.Endpoint)
	}
	if s.opts.WebURL != "" {
		fmt.Fprintf(&b, "  Web UI: %s\n", s.opts.WebURL)
	}

	return textResult(req.Params.URI, b.String()), nil
}

// textResult wraps a string in a ReadResourceResult.
func textResult(uri, text string) *mcp.ReadResourceResult {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:  uri,
			Text: text,
		}},
	}
}

// fmtPct formats a percentage like "62%" or "100%".
func fmtPct(count, capacity int) string {
	if capacity == 0 {
		return "─"
	}
	pct := float64(count) / float64(capacity) * 100
	return fmt.Sprintf("%.0f%%", pct)
}
