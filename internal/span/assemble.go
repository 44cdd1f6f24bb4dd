package span

import "sort"

// Flat is one span as received over the wire, linked to its parent by id
// rather than by nesting.
type Flat struct {
	TraceID  string
	SpanID   string
	ParentID string // empty (or all zeros) for a root span
	Service  string
	Name     string
	Start    uint64
	End      uint64
}

func (f Flat) isRoot() bool {
	return f.ParentID == "" || f.ParentID == "0000000000000000"
}

// Assemble nests parent-linked spans of a single trace into a forest.
// Spans whose parent is missing from the set become roots. Roots and every
// children list are ordered by start time; ties keep arrival order.
// Duplicate span ids keep the first occurrence.
func Assemble(flat []Flat) []Span {
	if len(flat) == 0 {
		return nil
	}

	byID := make(map[string]Flat, len(flat))
	var order []string
	for _, f := range flat {
		if _, dup := byID[f.SpanID]; dup {
			continue
		}
		byID[f.SpanID] = f
		order = append(order, f.SpanID)
	}

	children := make(map[string][]string) // parentID -> child spanIDs
	var rootIDs []string
	for _, id := range order {
		f := byID[id]
		if _, ok := byID[f.ParentID]; f.isRoot() || !ok || f.ParentID == f.SpanID {
			rootIDs = append(rootIDs, id)
			continue
		}
		children[f.ParentID] = append(children[f.ParentID], id)
	}

	byStart := func(ids []string) {
		sort.SliceStable(ids, func(i, j int) bool {
			return byID[ids[i]].Start < byID[ids[j]].Start
		})
	}

	visited := make(map[string]bool, len(order))
	var build func(id string) Span
	build = func(id string) Span {
		visited[id] = true
		f := byID[id]
		s := Span{Name: f.Name, Start: f.Start, End: f.End}
		kids := children[id]
		byStart(kids)
		for _, kid := range kids {
			if visited[kid] {
				continue
			}
			s.Children = append(s.Children, build(kid))
		}
		return s
	}

	byStart(rootIDs)
	forest := make([]Span, 0, len(rootIDs))
	for _, id := range rootIDs {
		forest = append(forest, build(id))
	}

	// Spans caught in a parent cycle are unreachable from any root;
	// surface them as roots instead of dropping them.
	var stranded []string
	for _, id := range order {
		if !visited[id] {
			stranded = append(stranded, id)
		}
	}
	byStart(stranded)
	for _, id := range stranded {
		if !visited[id] {
			forest = append(forest, build(id))
		}
	}

	return forest
}
