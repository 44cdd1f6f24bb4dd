// Package span defines the raw span forest that flame profiles are built from,
// and the sources that produce it: an explicit recorder, a synthetic generator,
// and an assembler for parent-linked spans received over OTLP.
package span

// Span is a named time interval with nested child spans.
// Children are expected to lie within the parent's [Start, End] interval;
// nothing here enforces that.
type Span struct {
	Name     string
	Start    uint64 // nanoseconds (or any monotonic unit)
	End      uint64
	Children []Span
}

// Duration returns End-Start, or 0 when End precedes Start.
func (s Span) Duration() uint64 {
	if s.End < s.Start {
		return 0
	}
	return s.End - s.Start
}

// Count returns the number of spans in the forest at any depth.
func Count(forest []Span) int {
	n := 0
	for _, s := range forest {
		n += 1 + Count(s.Children)
	}
	return n
}

// Depth returns the number of levels in the forest. An empty forest has depth 0.
func Depth(forest []Span) int {
	d := 0
	for _, s := range forest {
		d = max(d, 1+Depth(s.Children))
	}
	return d
}

// Walk calls fn for every span in depth-first pre-order.
// depth is 0 for top-level spans.
func Walk(forest []Span, fn func(s Span, depth int)) {
	walk(forest, 0, fn)
}

func walk(forest []Span, depth int, fn func(Span, int)) {
	for _, s := range forest {
		fn(s, depth)
		walk(s.Children, depth+1, fn)
	}
}
