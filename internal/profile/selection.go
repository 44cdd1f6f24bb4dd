package profile

// Selection tracks which node is zoomed into and holds the matching view.
// It never modifies the arena. A Selection is not safe for concurrent use.
type Selection struct {
	arena     *Arena
	root      NodeID
	fullWidth uint16

	selected NodeID
	view     *ViewNode
	history  []NodeID
}

// NewSelection starts with the root selected.
func NewSelection(a *Arena, root NodeID, fullWidth uint16) (*Selection, error) {
	if fullWidth == 0 {
		return nil, ErrZeroBudget
	}
	view, err := Render(a, root, fullWidth)
	if err != nil {
		return nil, err
	}
	return &Selection{
		arena:     a,
		root:      root,
		fullWidth: fullWidth,
		selected:  root,
		view:      view,
	}, nil
}

// Select zooms into id. On error the previous selection and view are kept.
func (s *Selection) Select(id NodeID) error {
	prev := s.selected
	if err := s.set(id); err != nil {
		return err
	}
	if prev != id {
		s.history = append(s.history, prev)
	}
	return nil
}

func (s *Selection) set(id NodeID) error {
	view, err := Render(s.arena, id, s.fullWidth)
	if err != nil {
		return err
	}
	s.selected = id
	s.view = view
	return nil
}

// Reset zooms back out to the root. Like Select, it records the node it
// leaves, so Back after a Reset returns there; a Reset at the root records
// nothing.
func (s *Selection) Reset() error {
	return s.Select(s.root)
}

// Back returns to the previously selected node. It reports false when there
// is nothing to go back to.
func (s *Selection) Back() bool {
	for len(s.history) > 0 {
		prev := s.history[len(s.history)-1]
		s.history = s.history[:len(s.history)-1]
		if s.set(prev) == nil {
			return true
		}
	}
	return false
}

// Selected returns the id of the node currently zoomed into.
func (s *Selection) Selected() NodeID { return s.selected }

// Root returns the id of the synthetic root.
func (s *Selection) Root() NodeID { return s.root }

// IsRoot reports whether the root is selected.
func (s *Selection) IsRoot() bool { return s.selected == s.root }

// View returns the current zoom view.
func (s *Selection) View() *ViewNode { return s.view }

// FullWidth returns the display budget views are scaled to.
func (s *Selection) FullWidth() uint16 { return s.fullWidth }

// Arena returns the arena the selection reads from.
func (s *Selection) Arena() *Arena { return s.arena }

// Path returns the ids from the root down to the selected node.
func (s *Selection) Path() []NodeID {
	path, err := s.arena.Path(s.selected)
	if err != nil {
		// selected always comes from this arena.
		return []NodeID{s.selected}
	}
	return path
}

// Labels returns the labels along Path.
func (s *Selection) Labels() []string {
	path := s.Path()
	labels := make([]string, len(path))
	for i, id := range path {
		labels[i] = s.arena.nodes[id.index].Label
	}
	return labels
}
