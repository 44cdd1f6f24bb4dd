package viz

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobert/flamezoom/internal/profile"
)

func sampleView() *profile.ViewNode {
	return &profile.ViewNode{
		Width: 1000,
		Label: "root",
		Children: []*profile.ViewNode{
			{
				Width: 500,
				Label: "A",
				Color: profile.Color{R: 1},
				Children: []*profile.ViewNode{
					{Width: 250, Label: "deep", Color: profile.Color{B: 1}},
				},
			},
			{Width: 300, Label: "B", Color: profile.Color{R: 0.5, B: 0.5}},
		},
	}
}

func TestFlame_Layout(t *testing.T) {
	out := Flame(sampleView(), Options{Columns: 20})
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 3)

	assert.Equal(t, "[root"+strings.Repeat(" ", 14)+"]", lines[0])
	// 10 + 6 columns of children centered in 20
	assert.Equal(t, "  [A       ][B   ]", lines[1])
	// 5 columns centered under A's 10, starting at 2+(10-5)/2
	assert.Equal(t, "    [de…]", lines[2])
}

func TestFlame_RowsNeverExceedColumns(t *testing.T) {
	view := &profile.ViewNode{Width: 1000, Label: "root"}
	for i := 0; i < 7; i++ {
		// rounding pushes the children sum past the parent
		view.Children = append(view.Children, &profile.ViewNode{Width: 150, Label: "child-with-a-long-name"})
	}

	for _, line := range strings.Split(Flame(view, Options{Columns: 10}), "\n") {
		assert.LessOrEqual(t, ansi.StringWidth(line), 10, "line %q", line)
	}
}

func TestFlame_SkipsSubColumnNodes(t *testing.T) {
	view := &profile.ViewNode{
		Width: 1000,
		Label: "root",
		Children: []*profile.ViewNode{
			{Width: 1, Label: "tiny", Children: []*profile.ViewNode{{Width: 1, Label: "tinier"}}},
		},
	}
	out := Flame(view, Options{Columns: 40})
	assert.NotContains(t, out, "tiny")
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestFlame_MaxDepth(t *testing.T) {
	out := Flame(sampleView(), Options{Columns: 20, MaxDepth: 2})
	assert.Equal(t, 2, strings.Count(out, "\n"))
	assert.NotContains(t, out, "de…")
}

func TestFlame_Color(t *testing.T) {
	out := Flame(sampleView(), Options{Columns: 20, Color: true})
	assert.Contains(t, out, "48;2;255;0;0", "expected true-color background for A")
	assert.Equal(t, "root"+strings.Repeat(" ", 16), ansi.Strip(strings.Split(out, "\n")[0]))
}

func TestFlame_Empty(t *testing.T) {
	assert.Empty(t, Flame(nil, Options{}))
	assert.Empty(t, Flame(&profile.ViewNode{Label: "root"}, Options{}))
}

func TestFit(t *testing.T) {
	assert.Equal(t, "ab  ", fit("ab", 4))
	assert.Equal(t, "abc…", fit("abcdefgh", 4))
	assert.Equal(t, "", fit("abc", 0))
	assert.Equal(t, "|", plainBox("x", 1))
	assert.Equal(t, "[]", plainBox("x", 2))
}

func TestOutline(t *testing.T) {
	out := Outline(sampleView())
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 4)

	assert.True(t, strings.HasPrefix(lines[0], " root  1000"))
	assert.True(t, strings.HasPrefix(lines[1], " ├─ A  500"))
	assert.True(t, strings.HasPrefix(lines[2], " │ └─ deep  250"))
	assert.True(t, strings.HasPrefix(lines[3], " └─ B  300"))
	assert.Empty(t, Outline(nil))
}
