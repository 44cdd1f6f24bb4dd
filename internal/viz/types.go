// Package viz renders flame graph views and trace listings as terminal text.
// It depends only on profile view types so it stays a pure rendering package.
package viz

// TraceRow describes one buffered trace for the trace table.
// Decoupled from storage types so callers choose what to show.
type TraceRow struct {
	TraceID    string
	Service    string
	RootSpan   string
	SpanCount  int
	DurationNs uint64
	Loaded     bool // currently displayed in the session
}

// BufferStats describes the span buffer fill level.
type BufferStats struct {
	SpanCount    int
	SpanCapacity int
	TraceCount   int
}

// Options controls flame rendering.
type Options struct {
	// Columns is the terminal width the full display budget maps onto.
	// 0 uses 80.
	Columns int

	// Color paints each box with its node color as a true-color background.
	Color bool

	// MaxDepth limits the number of rows drawn; 0 draws every level.
	MaxDepth int
}

func (o Options) columns() int {
	if o.Columns <= 0 {
		return 80
	}
	return o.Columns
}
