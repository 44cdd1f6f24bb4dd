package viz

import (
	"io"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"

	"github.com/tobert/flamezoom/internal/profile"
)

// box is one node placed on the character grid.
type box struct {
	x, w  int
	label string
	color profile.Color
}

// Flame renders view as an icicle chart: the view root on the first row and
// each deeper level on the row below it. A node's box is sized from its width
// relative to the view root, and a row of siblings is centered under its
// parent. Nodes narrower than one column are not drawn, nor are their
// descendants.
func Flame(view *profile.ViewNode, opts Options) string {
	if view == nil || view.Width == 0 {
		return ""
	}

	cols := opts.columns()
	scale := float64(cols) / float64(view.Width)

	var rows [][]box
	var place func(n *profile.ViewNode, x, w, depth int)
	place = func(n *profile.ViewNode, x, w, depth int) {
		if opts.MaxDepth > 0 && depth >= opts.MaxDepth {
			return
		}
		if len(rows) <= depth {
			rows = append(rows, nil)
		}
		rows[depth] = append(rows[depth], box{x: x, w: w, label: n.Label, color: n.Color})

		widths := make([]int, len(n.Children))
		total := 0
		for i, c := range n.Children {
			widths[i] = int(math.Round(float64(c.Width) * scale))
			total += widths[i]
		}

		cursor := x
		if total < w {
			cursor += (w - total) / 2
		}
		for i, c := range n.Children {
			cw := min(widths[i], x+w-cursor)
			if cw <= 0 {
				continue
			}
			place(c, cursor, cw, depth+1)
			cursor += cw
		}
	}
	place(view, 0, cols, 0)

	var paint func(b box, text string) string
	if opts.Color {
		r := lipgloss.NewRenderer(io.Discard)
		r.SetColorProfile(termenv.TrueColor)
		paint = func(b box, text string) string {
			return r.NewStyle().
				Background(lipgloss.Color(b.color.Hex())).
				Foreground(lipgloss.Color(textColor(b.color))).
				Render(text)
		}
	}

	var out strings.Builder
	for _, row := range rows {
		col := 0
		for _, b := range row {
			out.WriteString(strings.Repeat(" ", b.x-col))
			if paint != nil {
				out.WriteString(paint(b, fit(b.label, b.w)))
			} else {
				out.WriteString(plainBox(b.label, b.w))
			}
			col = b.x + b.w
		}
		out.WriteByte('\n')
	}
	return out.String()
}

// plainBox draws a bracketed box exactly w columns wide.
func plainBox(label string, w int) string {
	switch w {
	case 1:
		return "|"
	case 2:
		return "[]"
	}
	return "[" + fit(label, w-2) + "]"
}

// fit truncates label with "…" or pads it with spaces to exactly w columns.
func fit(label string, w int) string {
	if w <= 0 {
		return ""
	}
	if ansi.StringWidth(label) > w {
		label = ansi.Truncate(label, w, "…")
	}
	return label + strings.Repeat(" ", max(0, w-ansi.StringWidth(label)))
}

// textColor picks black or white text for legibility on background c.
func textColor(c profile.Color) string {
	luma := 0.299*c.R + 0.587*c.G + 0.114*c.B
	if luma > 0.5 {
		return "#000000"
	}
	return "#ffffff"
}
