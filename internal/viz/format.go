package viz

import (
	"fmt"
	"strings"
)

// Breadcrumb joins the labels from the root to the selection.
func Breadcrumb(labels []string) string {
	return strings.Join(labels, " › ")
}

// Header is the one-line title printed above a flame view.
func Header(traceID string, spans int, durationNs uint64) string {
	if traceID == "" {
		return fmt.Sprintf("Profile (%s spans, %s)", formatCount(spans), formatDuration(durationNs))
	}
	return fmt.Sprintf("Trace %s (%s spans, %s)", shortID(traceID), formatCount(spans), formatDuration(durationNs))
}

// TraceTable renders a compact table of buffered traces.
func TraceTable(traces []TraceRow) string {
	if len(traces) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Traces (%d)\n", len(traces))
	for _, t := range traces {
		marker := "·"
		if t.Loaded {
			marker = "▶"
		}

		label := t.Service + "/" + t.RootSpan
		if len(label) > 40 {
			label = label[:39] + "…"
		}

		fmt.Fprintf(&b, "  %s %s  %-40s  %6s spans  %8s\n",
			marker, shortID(t.TraceID), label, formatCount(t.SpanCount), formatDuration(t.DurationNs))
	}
	return b.String()
}

// StatsOverview renders the span buffer fill level.
func StatsOverview(stats BufferStats) string {
	var b strings.Builder
	b.WriteString("Buffer Health\n")
	writeBar(&b, "Spans", stats.SpanCount, stats.SpanCapacity)
	fmt.Fprintf(&b, "  Traces: %s\n", formatCount(stats.TraceCount))
	return b.String()
}

func writeBar(b *strings.Builder, label string, count, capacity int) {
	barWidth := 20
	filled := 0
	if capacity > 0 {
		filled = min(count*barWidth/capacity, barWidth)
	}

	bar := strings.Repeat("#", filled) + strings.Repeat(".", barWidth-filled)
	fmt.Fprintf(b, "  %-8s [%s]  %s / %s\n", label, bar, formatCount(count), formatCount(capacity))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatDuration(nanos uint64) string {
	if nanos == 0 {
		return "0ns"
	}
	us := float64(nanos) / 1000
	if us < 1000 {
		return fmt.Sprintf("%.0fµs", us)
	}
	ms := us / 1000
	if ms < 1000 {
		return fmt.Sprintf("%.0fms", ms)
	}
	s := ms / 1000
	return fmt.Sprintf("%.1fs", s)
}

func formatCount(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1_000_000 {
		return fmt.Sprintf("%d,%03d", n/1000, n%1000)
	}
	return fmt.Sprintf("%d,%03d,%03d", n/1_000_000, (n%1_000_000)/1000, n%1000)
}
