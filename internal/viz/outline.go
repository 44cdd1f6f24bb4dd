package viz

import (
	"fmt"
	"strings"

	"github.com/tobert/flamezoom/internal/profile"
)

// Outline lists the view as an indented tree, one node per line with its
// display width and node id. The ids are what select commands accept.
func Outline(view *profile.ViewNode) string {
	if view == nil {
		return ""
	}
	var b strings.Builder
	walkOutline(&b, view, 0, []bool{true})
	return b.String()
}

func walkOutline(b *strings.Builder, n *profile.ViewNode, depth int, isLast []bool) {
	// Tree-drawing characters are multi-byte UTF-8 but one display column each.
	b.WriteString(" ")
	for d := 0; d < depth-1; d++ {
		if isLast[d+1] {
			b.WriteString("  ")
		} else {
			b.WriteString("│ ")
		}
	}
	if depth > 0 {
		if isLast[depth] {
			b.WriteString("└─ ")
		} else {
			b.WriteString("├─ ")
		}
	}
	fmt.Fprintf(b, "%s  %d  [%s]\n", n.Label, n.Width, n.ID)

	for i, c := range n.Children {
		childIsLast := append(append([]bool{}, isLast...), i == len(n.Children)-1)
		walkOutline(b, c, depth+1, childIsLast)
	}
}
