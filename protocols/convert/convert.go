// Package convert implements bit-decomposed XOR-to-arithmetic conversion:
// given a replicated boolean share ⟨x⟩ = (left, right) over boolean.BA,
// produce the replicated arithmetic share of the same integer value over
// an arbitrary field. Every caller that needs an arithmetic view of a
// boolean-array value — match keys and PRF keys before the OPRF
// evaluation, breakdown keys and trigger values before aggregation —
// shares this same bit-by-bit conversion rather than each re-deriving it.
package convert

import (
	gocontext "context"
	"fmt"

	"github.com/luxfi/ipa/pkg/context"
	"github.com/luxfi/ipa/pkg/field"
	"github.com/luxfi/ipa/pkg/party"
	"github.com/luxfi/ipa/pkg/share"
	"github.com/luxfi/ipa/protocols/multiply"
)

const stepLabel = "convert-bit"

var bitAnchors = [3]party.Role{party.H1, party.H2, party.H3}

// shareOfAnchor generalizes share.ShareKnownValue to an arbitrary anchor
// role: a raw bit known by exactly the pair {anchor, anchor.Peer(Left)}
// becomes a field share with the bit value in the component the anchor
// itself (or its left peer) holds, zero everywhere else.
func shareOfAnchor(f field.Field, self, anchor party.Role, selfLeftBit, selfRightBit bool) (*share.Share, error) {
	left, right := f.Zero(), f.Zero()
	switch self {
	case anchor:
		left = bitElement(f, selfLeftBit)
	case anchor.Peer(party.Left):
		right = bitElement(f, selfRightBit)
	}
	return share.New(left, right)
}

func bitElement(f field.Field, b bool) field.Element {
	if b {
		return f.One()
	}
	return f.Zero()
}

// bitShares decomposes one helper's own raw bit pair into the three
// anchor-rotated field shares a, b, c that ConvertBit's XOR identity
// needs, entirely locally (no network).
func bitShares(f field.Field, self party.Role, leftBit, rightBit bool) ([3]*share.Share, error) {
	var out [3]*share.Share
	for i, anchor := range bitAnchors {
		s, err := shareOfAnchor(f, self, anchor, leftBit, rightBit)
		if err != nil {
			return out, err
		}
		out[i] = s
	}
	return out, nil
}

// ConvertBit lifts a single XOR-shared bit into a single arithmetic share
// over f, using the 3-input XOR identity x = a+b+c-2(ab+bc+ca)+4abc, which
// needs four sequential replicated multiplications (ab, bc, ca, then
// abc = ab·c).
func ConvertBit(ctx gocontext.Context, cctx *context.Context, recordID uint64, f field.Field, leftBit, rightBit bool) (*share.Share, error) {
	anchors, err := bitShares(f, cctx.Role(), leftBit, rightBit)
	if err != nil {
		return nil, err
	}
	a, b, c := anchors[0], anchors[1], anchors[2]

	ab, err := multiply.Multiply(ctx, cctx.Narrow("ab"), recordID, a, b)
	if err != nil {
		return nil, err
	}
	bc, err := multiply.Multiply(ctx, cctx.Narrow("bc"), recordID, b, c)
	if err != nil {
		return nil, err
	}
	ca, err := multiply.Multiply(ctx, cctx.Narrow("ca"), recordID, c, a)
	if err != nil {
		return nil, err
	}
	abc, err := multiply.Multiply(ctx, cctx.Narrow("abc"), recordID, ab, c)
	if err != nil {
		return nil, err
	}

	two := f.NewElement(2)
	four := f.NewElement(4)

	sum, err := a.Add(b)
	if err != nil {
		return nil, err
	}
	sum, err = sum.Add(c)
	if err != nil {
		return nil, err
	}

	pairSum, err := ab.Add(bc)
	if err != nil {
		return nil, err
	}
	pairSum, err = pairSum.Add(ca)
	if err != nil {
		return nil, err
	}
	pairTerm := pairSum.MulConstant(two)

	tripleTerm := abc.MulConstant(four)

	result, err := sum.Sub(pairTerm)
	if err != nil {
		return nil, err
	}
	result, err = result.Add(tripleTerm)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ToField converts a whole XOR-shared boolean.BA value into a single
// arithmetic Share over f, converting and weighting each bit position
// independently (ConvertBit) and combining them via Σ_i x_i·2^i — a
// purely local last step since every x_i already lives in f.
func ToField(ctx gocontext.Context, cctx *context.Context, recordID uint64, f field.Field, x *share.BAShare) (*share.Share, error) {
	bits := x.Bits()
	cc := cctx.Narrow(stepLabel)

	result, err := share.New(f.Zero(), f.Zero())
	if err != nil {
		return nil, err
	}
	weight := f.One()
	two := f.NewElement(2)

	for i := 0; i < bits; i++ {
		bc := cc.Narrow(fmt.Sprintf("bit-%d", i))
		xi, err := ConvertBit(ctx, bc, recordID, f, x.Left().Bit(i), x.Right().Bit(i))
		if err != nil {
			return nil, err
		}
		weighted := xi.MulConstant(weight)
		result, err = result.Add(weighted)
		if err != nil {
			return nil, err
		}
		weight = weight.Mul(two)
	}
	return result, nil
}
