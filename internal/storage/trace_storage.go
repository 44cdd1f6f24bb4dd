// Package storage buffers received spans and groups them by trace so that any
// trace can be assembled into a span forest and loaded as a profile.
package storage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/tobert/flamezoom/internal/span"
)

// ErrTraceNotFound is returned for trace ids with no buffered spans.
var ErrTraceNotFound = errors.New("trace not found")

// TraceSummary describes one buffered trace.
type TraceSummary struct {
	TraceID    string `json:"trace_id"`
	Service    string `json:"service"`
	RootSpan   string `json:"root_span"`
	SpanCount  int    `json:"span_count"`
	StartNano  uint64 `json:"start_nano"`
	DurationNs uint64 `json:"duration_ns"`
}

// TraceStorage keeps the most recent spans and indexes them by trace id.
// It implements otlpreceiver.SpanReceiver and filereader.SpanReceiver.
type TraceStorage struct {
	spans *RingBuffer[span.Flat]

	mu         sync.RWMutex // protects traceIndex and traceOrder, and orders writes to spans
	traceIndex map[string][]span.Flat
	traceOrder []string // trace ids in order of first arrival
}

// NewTraceStorage creates a new trace storage holding up to capacity spans.
func NewTraceStorage(capacity int) *TraceStorage {
	return &TraceStorage{
		spans:      NewRingBuffer[span.Flat](capacity),
		traceIndex: make(map[string][]span.Flat),
	}
}

// ReceiveSpans stores received spans and updates the trace index.
func (ts *TraceStorage) ReceiveSpans(ctx context.Context, resourceSpans []*tracepb.ResourceSpans) error {
	for _, f := range span.FromOTLP(resourceSpans) {
		ts.addSpan(f)
	}
	return nil
}

// addSpan holds ts.mu across the ring write so the index sees evictions in
// the same order the ring makes them.
func (ts *TraceStorage) addSpan(f span.Flat) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	old, evicted := ts.spans.Add(f)

	if evicted {
		ts.forget(old)
	}
	if _, ok := ts.traceIndex[f.TraceID]; !ok {
		ts.traceOrder = append(ts.traceOrder, f.TraceID)
	}
	ts.traceIndex[f.TraceID] = append(ts.traceIndex[f.TraceID], f)
}

// forget drops an evicted span from the index. Caller holds ts.mu.
func (ts *TraceStorage) forget(f span.Flat) {
	spans := ts.traceIndex[f.TraceID]
	i := slices.IndexFunc(spans, func(s span.Flat) bool { return s.SpanID == f.SpanID })
	if i < 0 {
		return
	}
	spans = slices.Delete(spans, i, i+1)
	if len(spans) > 0 {
		ts.traceIndex[f.TraceID] = spans
		return
	}
	delete(ts.traceIndex, f.TraceID)
	ts.traceOrder = slices.DeleteFunc(ts.traceOrder, func(id string) bool { return id == f.TraceID })
}

// Spans returns the flat spans of one trace in arrival order.
func (ts *TraceStorage) Spans(traceID string) []span.Flat {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return slices.Clone(ts.traceIndex[traceID])
}

// Forest assembles the buffered spans of one trace into a span forest.
func (ts *TraceStorage) Forest(traceID string) ([]span.Span, error) {
	flat := ts.Spans(traceID)
	if len(flat) == 0 {
		return nil, fmt.Errorf("%s: %w", traceID, ErrTraceNotFound)
	}
	return span.Assemble(flat), nil
}

// Latest returns the id of the most recently started trace.
func (ts *TraceStorage) Latest() (string, bool) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	if len(ts.traceOrder) == 0 {
		return "", false
	}
	return ts.traceOrder[len(ts.traceOrder)-1], true
}

// Traces summarizes every buffered trace in order of first arrival.
func (ts *TraceStorage) Traces() []TraceSummary {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	out := make([]TraceSummary, 0, len(ts.traceOrder))
	for _, id := range ts.traceOrder {
		out = append(out, summarize(id, ts.traceIndex[id]))
	}
	return out
}

func summarize(traceID string, spans []span.Flat) TraceSummary {
	sum := TraceSummary{TraceID: traceID, SpanCount: len(spans)}
	if len(spans) == 0 {
		return sum
	}

	ids := make(map[string]bool, len(spans))
	for _, s := range spans {
		ids[s.SpanID] = true
	}

	start, end := spans[0].Start, spans[0].End
	var root *span.Flat
	for i := range spans {
		s := &spans[i]
		start = min(start, s.Start)
		end = max(end, s.End)
		if !ids[s.ParentID] && (root == nil || s.Start < root.Start) {
			root = s
		}
	}
	if root != nil {
		sum.RootSpan = root.Name
		sum.Service = root.Service
	}
	sum.StartNano = start
	if end > start {
		sum.DurationNs = end - start
	}
	return sum
}

// Stats returns current storage statistics.
func (ts *TraceStorage) Stats() StorageStats {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	return StorageStats{
		SpanCount:  ts.spans.Size(),
		Capacity:   ts.spans.Capacity(),
		TraceCount: len(ts.traceIndex),
	}
}

// Clear removes all stored spans and resets indexes.
func (ts *TraceStorage) Clear() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	ts.spans.Clear()
	ts.traceIndex = make(map[string][]span.Flat)
	ts.traceOrder = nil
}

// StorageStats contains statistics about trace storage.
type StorageStats struct {
	SpanCount  int `json:"span_count"`  // Current number of spans stored
	Capacity   int `json:"capacity"`    // Maximum number of spans that can be stored
	TraceCount int `json:"trace_count"` // Number of distinct traces
}
