package profile

import (
	"fmt"

	"github.com/tobert/flamezoom/internal/region"
	"github.com/tobert/flamezoom/internal/span"
)

// Profile is one loaded span forest: its arena and the selection over it.
// Loading different spans means building a new Profile.
type Profile struct {
	*Selection

	window region.Window
	spans  int
}

// Load normalizes the forest, builds the arena and selects the root.
func Load(forest []span.Span, fullWidth uint16, opts ...Option) (*Profile, error) {
	regions, err := region.Normalize(forest)
	if err != nil {
		return nil, fmt.Errorf("normalize spans: %w", err)
	}
	arena, root, err := Build(regions, fullWidth, opts...)
	if err != nil {
		return nil, fmt.Errorf("build profile: %w", err)
	}
	sel, err := NewSelection(arena, root, fullWidth)
	if err != nil {
		return nil, fmt.Errorf("initial view: %w", err)
	}
	return &Profile{
		Selection: sel,
		window:    region.WindowOf(forest),
		spans:     span.Count(forest),
	}, nil
}

// Window returns the time window the profile was normalized against.
func (p *Profile) Window() region.Window { return p.window }

// SpanCount returns the number of spans the profile was built from.
func (p *Profile) SpanCount() int { return p.spans }

// SelectPath zooms into the node reached by following labels from the root.
func (p *Profile) SelectPath(labels ...string) error {
	id, err := p.Arena().Find(p.Root(), labels...)
	if err != nil {
		return err
	}
	return p.Select(id)
}
