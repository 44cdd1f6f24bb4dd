package profile

import "errors"

var (
	// ErrEmptyForest is returned by Build when there are no regions. An empty
	// profile is rejected rather than turned into a bare root.
	ErrEmptyForest = errors.New("profile has no spans")

	// ErrZeroWidthNode is returned when zooming into a node whose width rounded
	// to zero; there is no scale that makes it fill the display.
	ErrZeroWidthNode = errors.New("node has zero width")

	// ErrUnknownNode is returned for ids that do not belong to the arena,
	// including ids left over from a previously loaded profile.
	ErrUnknownNode = errors.New("unknown node id")

	// ErrBadNodeID is returned by ParseNodeID for malformed ids.
	ErrBadNodeID = errors.New("malformed node id")

	// ErrZeroBudget is returned when the display width is zero.
	ErrZeroBudget = errors.New("display width must be greater than zero")
)
