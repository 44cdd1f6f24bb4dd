package span

import (
	"fmt"
	"time"
)

// Clock returns the current time in nanoseconds.
type Clock func() uint64

// WallClock reads the system clock.
func WallClock() uint64 {
	return uint64(time.Now().UnixNano())
}

// Recorder captures nested spans through Start/End calls.
// Each profile gets its own Recorder; there is no process-wide buffer.
// A Recorder is not safe for concurrent use.
type Recorder struct {
	clock Clock
	done  []Span
	open  []Span // stack of started, unfinished spans
}

// NewRecorder returns a Recorder reading time from clock.
// A nil clock means WallClock.
func NewRecorder(clock Clock) *Recorder {
	if clock == nil {
		clock = WallClock
	}
	return &Recorder{clock: clock}
}

// Start opens a span nested in the innermost open span.
func (r *Recorder) Start(name string) {
	r.open = append(r.open, Span{Name: name, Start: r.clock()})
}

// End closes the innermost open span, which must be named name.
func (r *Recorder) End(name string) error {
	if len(r.open) == 0 {
		return fmt.Errorf("end %q: no open span", name)
	}
	s := r.open[len(r.open)-1]
	if s.Name != name {
		return fmt.Errorf("end %q: innermost open span is %q", name, s.Name)
	}
	s.End = r.clock()
	r.open = r.open[:len(r.open)-1]

	if len(r.open) == 0 {
		r.done = append(r.done, s)
	} else {
		parent := &r.open[len(r.open)-1]
		parent.Children = append(parent.Children, s)
	}
	return nil
}

// Open returns the number of spans started but not yet ended.
func (r *Recorder) Open() int {
	return len(r.open)
}

// Spans returns the finished top-level spans in the order they ended.
// Spans still open are not included.
func (r *Recorder) Spans() []Span {
	out := make([]Span, len(r.done))
	copy(out, r.done)
	return out
}

// Reset discards everything recorded so far.
func (r *Recorder) Reset() {
	r.done = nil
	r.open = nil
}
