package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleSummaries() []TraceSummary {
	return []TraceSummary{
		{TraceID: "a", Service: "api", RootSpan: "GET /users", DurationNs: 5_000_000},
		{TraceID: "b", Service: "worker", RootSpan: "process job", DurationNs: 90_000_000},
		{TraceID: "c", Service: "api", RootSpan: "POST /users", DurationNs: 40_000_000},
		{TraceID: "d", Service: "api", RootSpan: "GET /health", DurationNs: 100_000},
	}
}

func ids(traces []TraceSummary) []string {
	out := make([]string, len(traces))
	for i, t := range traces {
		out[i] = t.TraceID
	}
	return out
}

func TestFilterTraces(t *testing.T) {
	tests := []struct {
		name string
		opts FilterOptions
		want []string
	}{
		{"no filters", FilterOptions{}, []string{"a", "b", "c", "d"}},
		{"by service", FilterOptions{Service: "api"}, []string{"a", "c", "d"}},
		{"service is exact", FilterOptions{Service: "ap"}, []string{}},
		{"by root span substring", FilterOptions{RootSpan: "/users"}, []string{"a", "c"}},
		{"by min duration", FilterOptions{MinDurationNs: 10_000_000}, []string{"b", "c"}},
		{"combined", FilterOptions{Service: "api", MinDurationNs: 1_000_000}, []string{"a", "c"}},
		{"limit keeps newest", FilterOptions{Limit: 2}, []string{"c", "d"}},
		{"limit after filter", FilterOptions{Service: "api", Limit: 1}, []string{"d"}},
		{"limit larger than result", FilterOptions{Service: "worker", Limit: 5}, []string{"b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(FilterTraces(sampleSummaries(), tt.opts)))
		})
	}
}

func TestFilterTracesEmptyInput(t *testing.T) {
	assert.Empty(t, FilterTraces(nil, FilterOptions{Service: "api", Limit: 3}))
}
