package profile

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
)

// NodeID identifies a node within one Arena. The zero NodeID is never valid.
// IDs remember which arena issued them, so an id kept across a profile reload
// is rejected instead of silently pointing at an unrelated node.
type NodeID struct {
	arena uint32
	index uint32
}

var arenaSeq atomic.Uint32

func nextArenaID() uint32 {
	return arenaSeq.Add(1)
}

// IsZero reports whether id is the zero NodeID.
func (id NodeID) IsZero() bool {
	return id == NodeID{}
}

// String formats the id as "<arena>.<index>".
func (id NodeID) String() string {
	return fmt.Sprintf("%d.%d", id.arena, id.index)
}

// ParseNodeID parses the output of NodeID.String.
func ParseNodeID(s string) (NodeID, error) {
	a, i, ok := strings.Cut(s, ".")
	if !ok {
		return NodeID{}, fmt.Errorf("%q: %w", s, ErrBadNodeID)
	}
	arena, err := strconv.ParseUint(a, 10, 32)
	if err != nil || arena == 0 {
		return NodeID{}, fmt.Errorf("%q: %w", s, ErrBadNodeID)
	}
	index, err := strconv.ParseUint(i, 10, 32)
	if err != nil {
		return NodeID{}, fmt.Errorf("%q: %w", s, ErrBadNodeID)
	}
	return NodeID{arena: uint32(arena), index: uint32(index)}, nil
}

// MarshalText implements encoding.TextMarshaler.
func (id NodeID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *NodeID) UnmarshalText(b []byte) error {
	parsed, err := ParseNodeID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
