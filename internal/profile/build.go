package profile

import (
	"math"
	"math/rand/v2"

	"github.com/tobert/flamezoom/internal/region"
)

const (
	// RootLabel names the synthetic node that holds the top-level regions.
	RootLabel = "root"

	// greenWeight scales the random green channel of derived colors.
	greenWeight = 0.4
)

// RootColor is the color of the synthetic root. Derived colors always have
// R+B == 1, so black never collides with them.
var RootColor = Color{}

type buildConfig struct {
	rng *rand.Rand
}

// Option configures Build.
type Option func(*buildConfig)

// WithRand sets the random source for the green channel of node colors.
func WithRand(rng *rand.Rand) Option {
	return func(c *buildConfig) {
		c.rng = rng
	}
}

// Build allocates one node per region plus a synthetic root of width
// fullWidth, and returns the arena and the root's id.
//
// A node's width is round(fullWidth * region width). Its color is derived from
// its temperature, the ratio of its width to its parent's: red grows and blue
// shrinks as the node takes up more of its parent. Children of a zero-width
// parent have temperature 0.
//
// Children are allocated before their parents and keep the order of the input.
func Build(regions []region.Region, fullWidth uint16, opts ...Option) (*Arena, NodeID, error) {
	if fullWidth == 0 {
		return nil, NodeID{}, ErrZeroBudget
	}
	if len(regions) == 0 {
		return nil, NodeID{}, ErrEmptyForest
	}

	cfg := buildConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.rng == nil {
		cfg.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	a := newArena()
	b := builder{arena: a, rng: cfg.rng, fullWidth: fullWidth}
	top := b.alloc(regions, fullWidth)
	root := a.alloc(Node{
		Width:    fullWidth,
		Label:    RootLabel,
		Color:    RootColor,
		Children: top,
	})
	b.adopt(root, top)

	return a, root, nil
}

type builder struct {
	arena     *Arena
	rng       *rand.Rand
	fullWidth uint16
}

func (b *builder) alloc(regions []region.Region, parentWidth uint16) []NodeID {
	ids := make([]NodeID, 0, len(regions))
	for _, r := range regions {
		w := scaleWidth(float64(b.fullWidth) * r.Width())
		children := b.alloc(r.Children, w)
		id := b.arena.alloc(Node{
			Width:    w,
			Label:    r.Label,
			Color:    derivedColor(temperature(w, parentWidth), b.rng),
			Children: children,
		})
		b.adopt(id, children)
		ids = append(ids, id)
	}
	return ids
}

func (b *builder) adopt(parent NodeID, children []NodeID) {
	for _, c := range children {
		b.arena.nodes[c.index].Parent = parent
	}
}

// scaleWidth rounds w to the nearest integer and clamps it to the uint16 range.
func scaleWidth(w float64) uint16 {
	w = math.Round(w)
	switch {
	case !(w > 0): // also catches NaN
		return 0
	case w >= math.MaxUint16:
		return math.MaxUint16
	}
	return uint16(w)
}

func temperature(width, parentWidth uint16) float32 {
	if parentWidth == 0 {
		return 0
	}
	t := float32(width) / float32(parentWidth)
	return min(max(t, 0), 1)
}

func derivedColor(t float32, rng *rand.Rand) Color {
	return Color{R: t, G: greenWeight * rng.Float32(), B: 1 - t}
}
