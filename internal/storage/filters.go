package storage

import "strings"

// FilterOptions narrows a trace listing. Empty or zero fields are ignored.
type FilterOptions struct {
	Service       string // exact service.name of the root span
	RootSpan      string // substring of the root span name
	MinDurationNs uint64
	Limit         int // keep only the N most recent matches
}

// FilterTracesByService returns traces whose root span came from service.
func FilterTracesByService(traces []TraceSummary, service string) []TraceSummary {
	if service == "" {
		return traces
	}

	result := make([]TraceSummary, 0, len(traces))
	for _, t := range traces {
		if t.Service == service {
			result = append(result, t)
		}
	}
	return result
}

// FilterTracesByRootSpan returns traces whose root span name contains name.
func FilterTracesByRootSpan(traces []TraceSummary, name string) []TraceSummary {
	if name == "" {
		return traces
	}

	result := make([]TraceSummary, 0, len(traces))
	for _, t := range traces {
		if strings.Contains(t.RootSpan, name) {
			result = append(result, t)
		}
	}
	return result
}

// FilterTracesByDuration returns traces lasting at least minNs.
func FilterTracesByDuration(traces []TraceSummary, minNs uint64) []TraceSummary {
	if minNs == 0 {
		return traces
	}

	result := make([]TraceSummary, 0, len(traces))
	for _, t := range traces {
		if t.DurationNs >= minNs {
			result = append(result, t)
		}
	}
	return result
}

// FilterTraces applies multiple filters using AND logic, then the limit.
// Input order (oldest first) is preserved.
func FilterTraces(traces []TraceSummary, opts FilterOptions) []TraceSummary {
	result := FilterTracesByService(traces, opts.Service)
	result = FilterTracesByRootSpan(result, opts.RootSpan)
	result = FilterTracesByDuration(result, opts.MinDurationNs)

	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[len(result)-opts.Limit:]
	}
	return result
}
