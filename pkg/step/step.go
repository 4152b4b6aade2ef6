// Package step implements the step tree: a path from the query root to a
// node, used as the collision-free channel namespace for every
// sub-protocol invocation.
package step

import "strings"

// Step is an immutable path from the query root to a tree node. Two Steps
// are equal iff their paths are structurally identical; the zero Step is
// the root.
type Step struct {
	parent *Step
	label  string
}

// Root returns the root Step of a fresh query.
func Root() *Step {
	return &Step{}
}

// Narrow returns the child of s labeled by label. Calling Narrow with the
// same label from the same parent always returns an equal (though not
// pointer-identical) Step, which is what makes collision-freedom a static
// property: two sub-protocol invocations collide only if they call Narrow
// with the same label from the same ancestor, and a correctly written
// protocol never does that twice for different purposes.
func (s *Step) Narrow(label string) *Step {
	return &Step{parent: s, label: label}
}

// String renders the step as a "/seg1/seg2/..." path, root being "/".
func (s *Step) String() string {
	if s == nil || (s.parent == nil && s.label == "") {
		return "/"
	}
	var segs []string
	for n := s; n != nil && n.label != ""; n = n.parent {
		segs = append([]string{n.label}, segs...)
	}
	return "/" + strings.Join(segs, "/")
}

// Equal reports whether s and o denote the same path.
func (s *Step) Equal(o *Step) bool {
	return s.String() == o.String()
}

// Depth returns the number of Narrow calls between the root and s.
func (s *Step) Depth() int {
	d := 0
	for n := s; n != nil && n.label != ""; n = n.parent {
		d++
	}
	return d
}
