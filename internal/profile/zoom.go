package profile

import "fmt"

// ViewNode is a detached, rescaled copy of an arena subtree. It shares no
// memory with the arena. ID points back at the originating node so that a
// click on a rendered box can be turned into a selection.
//
// Views are treated as immutable once built; renderers must not modify them.
type ViewNode struct {
	ID       NodeID      `json:"id"`
	Width    uint16      `json:"width"`
	Label    string      `json:"label"`
	Color    Color       `json:"color"`
	Children []*ViewNode `json:"children,omitempty"`
}

// Count returns the number of nodes in the view.
func (v *ViewNode) Count() int {
	n := 1
	for _, c := range v.Children {
		n += c.Count()
	}
	return n
}

// Render copies the subtree rooted at id, scaling every width by
// fullWidth / width(id) so that the subtree root fills the display.
// Colors are carried over unchanged: zooming changes sizes, never colors.
func Render(a *Arena, id NodeID, fullWidth uint16) (*ViewNode, error) {
	n, err := a.get(id)
	if err != nil {
		return nil, err
	}
	if n.Width == 0 {
		return nil, fmt.Errorf("zoom into %q (%s): %w", n.Label, id, ErrZeroWidthNode)
	}
	scale := float64(fullWidth) / float64(n.Width)
	return a.render(id, scale), nil
}

func (a *Arena) render(id NodeID, scale float64) *ViewNode {
	n := &a.nodes[id.index]
	v := &ViewNode{
		ID:    id,
		Width: scaleWidth(float64(n.Width) * scale),
		Label: n.Label,
		Color: n.Color,
	}
	if len(n.Children) > 0 {
		v.Children = make([]*ViewNode, len(n.Children))
		for i, c := range n.Children {
			v.Children[i] = a.render(c, scale)
		}
	}
	return v
}
