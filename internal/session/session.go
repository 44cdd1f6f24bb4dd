// Package session holds the profile currently being browsed by the web UI and
// MCP clients, serializing access to it and announcing changes.
package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tobert/flamezoom/internal/profile"
	"github.com/tobert/flamezoom/internal/span"
)

var (
	// ErrNoProfile is returned by operations that need a loaded profile.
	ErrNoProfile = errors.New("no profile loaded")

	// ErrNoTraces is returned by LoadFrom when asked for the latest trace of
	// an empty source.
	ErrNoTraces = errors.New("no traces received yet")
)

// ForestSource supplies span forests by trace id. storage.TraceStorage
// implements it.
type ForestSource interface {
	Forest(traceID string) ([]span.Span, error)
	Latest() (string, bool)
}

// Crumb is one step of the breadcrumb from the root to the selection.
type Crumb struct {
	ID    profile.NodeID `json:"id"`
	Label string         `json:"label"`
}

// State is a consistent snapshot of the session.
type State struct {
	TraceID    string            `json:"trace_id"`
	Spans      int               `json:"spans"`
	DurationNs uint64            `json:"duration_ns"`
	FullWidth  uint16            `json:"full_width"`
	Selected   profile.NodeID    `json:"selected"`
	Root       profile.NodeID    `json:"root"`
	Path       []Crumb           `json:"path"`
	View       *profile.ViewNode `json:"view"`
}

// Session is safe for concurrent use.
type Session struct {
	fullWidth uint16
	opts      []profile.Option

	mu      sync.Mutex
	traceID string
	prof    *profile.Profile

	subscriberMu     sync.Mutex
	subscribers      map[uint64]chan struct{}
	nextSubscriberID uint64
}

// New creates an empty session whose profiles are scaled to fullWidth.
func New(fullWidth uint16, opts ...profile.Option) *Session {
	return &Session{
		fullWidth:   fullWidth,
		opts:        opts,
		subscribers: make(map[uint64]chan struct{}),
	}
}

// Load replaces the current profile with one built from forest.
// On error the previous profile stays loaded.
func (s *Session) Load(traceID string, forest []span.Span) error {
	p, err := profile.Load(forest, s.fullWidth, s.opts...)
	if err != nil {
		return fmt.Errorf("load trace %s: %w", traceID, err)
	}

	s.mu.Lock()
	s.traceID = traceID
	s.prof = p
	s.mu.Unlock()

	s.notifySubscribers()
	return nil
}

// LoadFrom loads traceID from src, or the most recent trace when traceID is
// empty. It returns the id that was loaded.
func (s *Session) LoadFrom(src ForestSource, traceID string) (string, error) {
	if traceID == "" {
		latest, ok := src.Latest()
		if !ok {
			return "", ErrNoTraces
		}
		traceID = latest
	}
	forest, err := src.Forest(traceID)
	if err != nil {
		return "", err
	}
	return traceID, s.Load(traceID, forest)
}

// TraceID returns the id of the loaded trace, or "" when nothing is loaded.
func (s *Session) TraceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.traceID
}

// Select zooms into id.
func (s *Session) Select(id profile.NodeID) error {
	return s.update(func(p *profile.Profile) (bool, error) {
		return true, p.Select(id)
	})
}

// SelectPath zooms into the node reached by following labels from the root.
func (s *Session) SelectPath(labels ...string) error {
	return s.update(func(p *profile.Profile) (bool, error) {
		return true, p.SelectPath(labels...)
	})
}

// Reset zooms back out to the root.
func (s *Session) Reset() error {
	return s.update(func(p *profile.Profile) (bool, error) {
		return true, p.Reset()
	})
}

// Back returns to the previous selection. It reports false when the history
// is empty, in which case subscribers are not notified.
func (s *Session) Back() (bool, error) {
	moved := false
	err := s.update(func(p *profile.Profile) (bool, error) {
		moved = p.Back()
		return moved, nil
	})
	return moved, err
}

// update runs fn on the loaded profile and notifies subscribers when fn
// reports a change without error.
func (s *Session) update(fn func(p *profile.Profile) (bool, error)) error {
	s.mu.Lock()
	if s.prof == nil {
		s.mu.Unlock()
		return ErrNoProfile
	}
	changed, err := fn(s.prof)
	s.mu.Unlock()

	if err != nil {
		return err
	}
	if changed {
		s.notifySubscribers()
	}
	return nil
}

// Snapshot returns the current state.
func (s *Session) Snapshot() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.prof
	if p == nil {
		return State{}, ErrNoProfile
	}

	path := p.Path()
	labels := p.Labels()
	crumbs := make([]Crumb, len(path))
	for i := range path {
		crumbs[i] = Crumb{ID: path[i], Label: labels[i]}
	}

	return State{
		TraceID:    s.traceID,
		Spans:      p.SpanCount(),
		DurationNs: p.Window().Length(),
		FullWidth:  p.FullWidth(),
		Selected:   p.Selected(),
		Root:       p.Root(),
		Path:       crumbs,
		View:       p.View(),
	}, nil
}

// Subscribe returns a notification channel and an unsubscribe function.
// The channel receives a signal whenever the loaded profile or the selection
// changes. It is buffered with capacity 1 to coalesce rapid updates.
func (s *Session) Subscribe() (<-chan struct{}, func()) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()

	id := s.nextSubscriberID
	s.nextSubscriberID++

	ch := make(chan struct{}, 1)
	s.subscribers[id] = ch

	unsubscribe := func() {
		s.subscriberMu.Lock()
		defer s.subscriberMu.Unlock()
		delete(s.subscribers, id)
	}
	return ch, unsubscribe
}

func (s *Session) notifySubscribers() {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()

	for _, ch := range s.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
