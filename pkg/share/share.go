// Package share implements the replicated secret-sharing algebra:
// ⟨x⟩ = (left, right) over a field, plus the MAC-extended share used by
// the malicious shuffle.
package share

import (
	"fmt"

	"github.com/luxfi/ipa/pkg/field"
	"github.com/luxfi/ipa/pkg/ipaerr"
	"github.com/luxfi/ipa/pkg/party"
)

// Share is a replicated share ⟨x⟩ = (left, right) of a single field
// element, held by one helper. The invariant left_i = right_{i-1} is
// maintained by construction across the protocol layer, not by this
// type itself — Share only knows about its own two components.
type Share struct {
	left, right field.Element
}

// New builds a Share from its two components. Both must belong to the
// same Field.
func New(left, right field.Element) (*Share, error) {
	if left.Field().Name() != right.Field().Name() {
		return nil, ipaerr.Errorf(ipaerr.InvalidConfig, "share: mismatched fields %s vs %s", left.Field().Name(), right.Field().Name())
	}
	return &Share{left: left, right: right}, nil
}

// Left returns the share's left component.
func (s *Share) Left() field.Element { return s.left }

// Right returns the share's right component.
func (s *Share) Right() field.Element { return s.right }

// Field returns the underlying field.
func (s *Share) Field() field.Field { return s.left.Field() }

func (s *Share) sameField(o *Share) error {
	if s.Field().Name() != o.Field().Name() {
		return ipaerr.Errorf(ipaerr.InvalidConfig, "share: mismatch %s vs %s", s.Field().Name(), o.Field().Name())
	}
	return nil
}

// Add computes the component-wise sum ⟨x⟩+⟨y⟩, a purely local (no
// communication) linear operation.
func (s *Share) Add(o *Share) (*Share, error) {
	if err := s.sameField(o); err != nil {
		return nil, err
	}
	return &Share{left: s.left.Add(o.left), right: s.right.Add(o.right)}, nil
}

// Sub computes the component-wise difference ⟨x⟩-⟨y⟩.
func (s *Share) Sub(o *Share) (*Share, error) {
	if err := s.sameField(o); err != nil {
		return nil, err
	}
	return &Share{left: s.left.Sub(o.left), right: s.right.Sub(o.right)}, nil
}

// MulConstant computes ⟨x⟩·c for a public constant c, a local operation.
func (s *Share) MulConstant(c field.Element) *Share {
	return &Share{left: s.left.Mul(c), right: s.right.Mul(c)}
}

// Neg computes -⟨x⟩.
func (s *Share) Neg() *Share {
	return &Share{left: s.left.Neg(), right: s.right.Neg()}
}

// ShareKnownValue produces the replicated share of a value known to all
// helpers (a public constant): the constant sits in H1's left component
// and H3's right component, zero everywhere else.
// This layout is what makes Reconstruct(ShareKnownValue(v)) == v for any
// role while keeping the encoding purely local (no communication needed
// to "share" a public value).
func ShareKnownValue(f field.Field, role party.Role, v field.Element) *Share {
	left, right := f.Zero(), f.Zero()
	switch role {
	case party.H1:
		left = v
	case party.H3:
		right = v
	}
	return &Share{left: left, right: right}
}

// Reconstruct sums the three helpers' left components, which by the
// replicated invariant equals left_{H1}+left_{H2}+left_{H3} = x. Used by
// tests and by the query coordinator on the final output vector.
func Reconstruct(shares [3]*Share) (field.Element, error) {
	if shares[0] == nil || shares[1] == nil || shares[2] == nil {
		return nil, ipaerr.Errorf(ipaerr.InvalidConfig, "share: reconstruct needs all three shares")
	}
	f := shares[0].Field()
	sum := f.Zero()
	for _, s := range shares {
		if s.Field().Name() != f.Name() {
			return nil, ipaerr.Errorf(ipaerr.InvalidConfig, "share: reconstruct field mismatch")
		}
		sum = sum.Add(s.left)
	}
	return sum, nil
}

func (s *Share) String() string {
	return fmt.Sprintf("Share(left=%s, right=%s)", s.left, s.right)
}
