// Package profile turns normalized regions into an arena of sized, colored
// nodes and computes zoomed views of any subtree.
package profile

import (
	"fmt"
	"slices"
)

// Color is an RGB triple with each channel in [0,1].
type Color struct {
	R float32 `json:"r"`
	G float32 `json:"g"`
	B float32 `json:"b"`
}

// Hex formats the color as "#rrggbb".
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", channel(c.R), channel(c.G), channel(c.B))
}

func channel(v float32) uint8 {
	v = min(max(v, 0), 1)
	return uint8(v*255 + 0.5)
}

// Node is one entry of an Arena.
type Node struct {
	Width    uint16
	Label    string
	Color    Color
	Parent   NodeID // zero for the root
	Children []NodeID
}

// Arena owns every node of one profile. Nodes reference each other by NodeID.
// An Arena is never modified after Build returns, so it may be read from
// several goroutines.
type Arena struct {
	id    uint32
	nodes []Node
}

func newArena() *Arena {
	return &Arena{id: nextArenaID()}
}

func (a *Arena) alloc(n Node) NodeID {
	a.nodes = append(a.nodes, n)
	return NodeID{arena: a.id, index: uint32(len(a.nodes) - 1)}
}

// Len returns the number of nodes, including the synthetic root.
func (a *Arena) Len() int {
	return len(a.nodes)
}

// Contains reports whether id was issued by this arena.
func (a *Arena) Contains(id NodeID) bool {
	return id.arena == a.id && int(id.index) < len(a.nodes)
}

func (a *Arena) get(id NodeID) (*Node, error) {
	if !a.Contains(id) {
		return nil, fmt.Errorf("node %s: %w", id, ErrUnknownNode)
	}
	return &a.nodes[id.index], nil
}

// Node returns a copy of the node with the given id.
func (a *Arena) Node(id NodeID) (Node, error) {
	n, err := a.get(id)
	if err != nil {
		return Node{}, err
	}
	out := *n
	out.Children = slices.Clone(n.Children)
	return out, nil
}

// Path returns the ids from the topmost ancestor down to id, inclusive.
func (a *Arena) Path(id NodeID) ([]NodeID, error) {
	var path []NodeID
	for cur := id; !cur.IsZero(); {
		n, err := a.get(cur)
		if err != nil {
			return nil, err
		}
		path = append(path, cur)
		cur = n.Parent
	}
	slices.Reverse(path)
	return path, nil
}

// Find descends from the node from, following children by label.
// At each level the first child with a matching label wins.
func (a *Arena) Find(from NodeID, labels ...string) (NodeID, error) {
	cur := from
	if _, err := a.get(cur); err != nil {
		return NodeID{}, err
	}
	for _, label := range labels {
		n := &a.nodes[cur.index]
		next := NodeID{}
		for _, c := range n.Children {
			if a.nodes[c.index].Label == label {
				next = c
				break
			}
		}
		if next.IsZero() {
			return NodeID{}, fmt.Errorf("no child %q under %q: %w", label, n.Label, ErrUnknownNode)
		}
		cur = next
	}
	return cur, nil
}
