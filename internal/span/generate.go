package span

import (
	"fmt"
	"math/rand/v2"
)

// Generate builds a synthetic span forest up to maxDepth levels deep.
// Each level opens one or more children; past half of maxDepth every level has
// an even chance of stopping early. Time comes from a fake clock advanced by a
// random amount at every step, so the result depends only on rng.
func Generate(rng *rand.Rand, maxDepth int) []Span {
	var now uint64
	rec := NewRecorder(func() uint64 { return now })
	tick := func() {
		now += 1_000 + rng.Uint64N(50_000)
	}

	var gen func(depth int)
	gen = func(depth int) {
		tick()
		if depth >= maxDepth {
			return
		}
		if depth > maxDepth/2 && rng.Float64() > 0.5 {
			return
		}
		maxSpans := 3
		if depth < 4 {
			maxSpans = 4
		}
		n := 1 + rng.IntN(maxSpans-1)
		for i := 0; i < n; i++ {
			name := fmt.Sprintf("span_%d_%d", depth, i)
			rec.Start(name)
			gen(depth + 1)
			// Start/End are balanced by construction.
			_ = rec.End(name)
		}
	}
	gen(0)

	return rec.Spans()
}

// Sample returns a small fixed forest:
//
//	all [0,140ms)
//	├─ inside1 [10,30)
//	└─ inside2 [30,140)
//	   ├─ deep_inside1 [70,90)
//	   └─ deep_inside2 [90,140)
func Sample() []Span {
	const ms = 1_000_000
	return []Span{{
		Name: "all", Start: 0, End: 140 * ms,
		Children: []Span{
			{Name: "inside1", Start: 10 * ms, End: 30 * ms},
			{
				Name: "inside2", Start: 30 * ms, End: 140 * ms,
				Children: []Span{
					{Name: "deep_inside1", Start: 70 * ms, End: 90 * ms},
					{Name: "deep_inside2", Start: 90 * ms, End: 140 * ms},
				},
			},
		},
	}}
}
