// Package region maps a raw span forest onto fractional [0,1] coordinates
// relative to one global time window.
package region

import (
	"errors"

	"github.com/tobert/flamezoom/internal/span"
)

// ErrDegenerateWindow is returned when the top-level spans cover no time at all,
// so there is nothing to divide by.
var ErrDegenerateWindow = errors.New("normalization window has zero length")

// Window is the time range used as the [0,1] reference for a whole forest.
type Window struct {
	Start uint64
	End   uint64
}

// Length returns End-Start.
func (w Window) Length() uint64 {
	return w.End - w.Start
}

// Region is a span mapped into window-relative coordinates.
type Region struct {
	Start    float64
	End      float64
	Label    string
	Children []Region
}

// Width returns End-Start.
func (r Region) Width() float64 {
	return r.End - r.Start
}

// WindowOf returns the min start and max end over the top-level spans only.
// The zero Window is returned for an empty forest.
func WindowOf(forest []span.Span) Window {
	if len(forest) == 0 {
		return Window{}
	}
	w := Window{Start: forest[0].Start, End: forest[0].End}
	for _, s := range forest[1:] {
		w.Start = min(w.Start, s.Start)
		w.End = max(w.End, s.End)
	}
	// A lone top-level span with End < Start still yields a valid window.
	w.End = max(w.End, w.Start)
	return w
}

// Normalize maps every span in the forest, at any depth, into coordinates
// relative to WindowOf(forest). Nested spans use the same window as the
// top level, so widths stay comparable across the whole tree.
//
// An empty forest normalizes to an empty result. Containment of children in
// their parents is not checked; whatever intervals come in are propagated.
func Normalize(forest []span.Span) ([]Region, error) {
	if len(forest) == 0 {
		return nil, nil
	}
	w := WindowOf(forest)
	if w.Length() == 0 {
		return nil, ErrDegenerateWindow
	}
	return normalize(forest, w, float64(w.Length())), nil
}

func normalize(forest []span.Span, w Window, length float64) []Region {
	out := make([]Region, len(forest))
	for i, s := range forest {
		start := offset(s.Start, w.Start) / length
		out[i] = Region{
			Start:    start,
			End:      start + float64(s.Duration())/length,
			Label:    s.Name,
			Children: normalize(s.Children, w, length),
		}
	}
	return out
}

// offset returns a-b as a float64, computing the difference in integer space
// so large timestamps keep their precision.
func offset(a, b uint64) float64 {
	if a >= b {
		return float64(a - b)
	}
	return -float64(b - a)
}
