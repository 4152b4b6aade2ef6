// Package party defines the fixed three-helper universe that every IPA
// query runs across: H1, H2 and H3, and the Left/Right peer relationship
// between them.
package party

import "fmt"

// Role identifies one of the three helpers participating in a query.
//
// Unlike an open-ended party ID (an arbitrary string chosen at runtime
// for an N-party threshold group), Role is a closed enum: IPA never runs
// with more or fewer than three helpers, and every peer relationship is
// fixed at compile time.
type Role uint8

const (
	H1 Role = iota
	H2
	H3
)

// NumRoles is the number of helpers in an IPA query; always three.
const NumRoles = 3

// Direction identifies one of a helper's two peers.
type Direction uint8

const (
	Left Direction = iota
	Right
)

// String implements fmt.Stringer.
func (r Role) String() string {
	switch r {
	case H1:
		return "H1"
	case H2:
		return "H2"
	case H3:
		return "H3"
	default:
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
}

// String implements fmt.Stringer.
func (d Direction) String() string {
	if d == Left {
		return "left"
	}
	return "right"
}

// Peer returns the Role reached by moving in the given Direction from r.
//
// The helper universe forms a 3-cycle H1 -> H2 -> H3 -> H1. "Right" walks
// the cycle forward (the peer a helper sends data to as its successor);
// "Left" walks it backward (the peer a helper receives from, its
// predecessor). This matches the replicated-share invariant:
// left_i = right_{i-1}.
func (r Role) Peer(d Direction) Role {
	switch d {
	case Right:
		return (r + 1) % NumRoles
	default:
		return (r + 2) % NumRoles
	}
}

// Index returns r's position in [0,3), suitable for array indexing.
func (r Role) Index() int {
	return int(r)
}

// All returns the three roles in H1,H2,H3 order.
func All() [NumRoles]Role {
	return [NumRoles]Role{H1, H2, H3}
}

// Other returns the two peers of r, in (left, right) order.
func (r Role) Other() (left, right Role) {
	return r.Peer(Left), r.Peer(Right)
}
