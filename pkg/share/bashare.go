package share

import (
	"github.com/luxfi/ipa/pkg/boolean"
	"github.com/luxfi/ipa/pkg/field"
	"github.com/luxfi/ipa/pkg/ipaerr"
)

// BAShare is a replicated share of a boolean.BA value: ⟨x⟩ = (left,
// right), both BAs of the same bit width. This is the boolean-array analog
// of Share, used for match keys, trigger flags, breakdown keys, and the
// MAC-extended rows consumed by the shuffle.
type BAShare struct {
	left, right *boolean.BA
}

// NewBA builds a BAShare, failing with InvalidConfig if the two
// components have different widths.
func NewBA(left, right *boolean.BA) (*BAShare, error) {
	if left.Bits() != right.Bits() {
		return nil, ipaerr.Errorf(ipaerr.InvalidConfig, "share: width mismatch BA%d vs BA%d", left.Bits(), right.Bits())
	}
	return &BAShare{left: left, right: right}, nil
}

func (s *BAShare) Left() *boolean.BA  { return s.left }
func (s *BAShare) Right() *boolean.BA { return s.right }
func (s *BAShare) Bits() int          { return s.left.Bits() }

// Add computes ⟨x⟩+⟨y⟩ = XOR component-wise, the boolean-array linear
// operation.
func (s *BAShare) Add(o *BAShare) (*BAShare, error) {
	l, err := s.left.Xor(o.left)
	if err != nil {
		return nil, ipaerr.Errorf(ipaerr.InvalidConfig, "share: %v", err)
	}
	r, err := s.right.Xor(o.right)
	if err != nil {
		return nil, ipaerr.Errorf(ipaerr.InvalidConfig, "share: %v", err)
	}
	return &BAShare{left: l, right: r}, nil
}

// ToGf32Bit reinterprets the underlying boolean array as a sequence of
// GF(2^32) limb shares, the Go analog of to_gf32bit().
func (s *BAShare) ToGf32Bit() []*Share {
	leftLimbs := s.left.ToGf32Bit()
	rightLimbs := s.right.ToGf32Bit()
	out := make([]*Share, len(leftLimbs))
	for i := range leftLimbs {
		sh, _ := New(leftLimbs[i], rightLimbs[i]) // same field by construction
		out[i] = sh
	}
	return out
}

// NewMACExtended concatenates a replicated row share with its MAC tag
// share into a single wider BAShare ⟨row‖τ⟩ of width |row|+32. It fails
// with InvalidConfig, never a panic, when the tag is not a Gf32Bit share.
// It takes no target width, so it does not check |row|+32 = |B|;
// SplitMACExtended returns InvalidConfig when that invariant fails.
func NewMACExtended(row *BAShare, tag *Share) (*BAShare, error) {
	if tag.Field().Name() != field.Gf32Bit.Name() {
		return nil, ipaerr.Errorf(ipaerr.InvalidConfig, "share: MAC tag must be Gf32Bit, got %s", tag.Field().Name())
	}
	tagLeft, err := boolean.FromGf32Bit(32, []field.Element{tag.Left()})
	if err != nil {
		return nil, ipaerr.Errorf(ipaerr.InvalidConfig, "share: %v", err)
	}
	tagRight, err := boolean.FromGf32Bit(32, []field.Element{tag.Right()})
	if err != nil {
		return nil, ipaerr.Errorf(ipaerr.InvalidConfig, "share: %v", err)
	}
	return &BAShare{
		left:  row.left.Concat(tagLeft),
		right: row.right.Concat(tagRight),
	}, nil
}

// SplitMACExtended is the inverse of NewMACExtended: given a combined
// ⟨row‖τ⟩ share and the expected row width, it returns the row share and
// the 32-bit tag share, failing with InvalidConfig if the widths don't
// add up to exactly 32 bits of suffix.
func SplitMACExtended(combined *BAShare, rowBits int) (row *BAShare, tag *Share, err error) {
	if combined.Bits() != rowBits+32 {
		return nil, nil, ipaerr.Errorf(ipaerr.InvalidConfig, "share: BA%d is not row(%d)+tag(32)", combined.Bits(), rowBits)
	}
	leftRow, leftTag, e1 := combined.left.Split(rowBits)
	rightRow, rightTag, e2 := combined.right.Split(rowBits)
	if e1 != nil || e2 != nil {
		return nil, nil, ipaerr.Errorf(ipaerr.InvalidConfig, "share: split failed")
	}
	rowShare, err := NewBA(leftRow, rightRow)
	if err != nil {
		return nil, nil, err
	}
	leftTagLimb := leftTag.ToGf32Bit()[0]
	rightTagLimb := rightTag.ToGf32Bit()[0]
	tagShare, err := New(leftTagLimb, rightTagLimb)
	if err != nil {
		return nil, nil, err
	}
	return rowShare, tagShare, nil
}
