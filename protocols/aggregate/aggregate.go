// Package aggregate implements per-user capping and the breakdown-key
// histogram: summing each user's attributed trigger values, scaling them
// down when the total exceeds per_user_credit_cap, and folding the
// (still-secret) breakdown key and capped value into a one-hot-weighted
// sum per bucket so no row's own bucket is ever revealed.
//
// Grounded on original_source/src/query/runner/aggregate.rs's
// BinarySharedAggregateInputs/bit-decomposed breakdown-key convention: the
// histogram here is built the same way, one equality-of-bits product per
// bucket per row, rather than by revealing which bucket a row belongs to.
package aggregate

import (
	gocontext "context"
	"fmt"

	"github.com/luxfi/ipa/pkg/context"
	"github.com/luxfi/ipa/pkg/field"
	"github.com/luxfi/ipa/pkg/ipaerr"
	"github.com/luxfi/ipa/pkg/share"
	"github.com/luxfi/ipa/protocols/convert"
	"github.com/luxfi/ipa/protocols/multiply"
	"github.com/luxfi/ipa/protocols/reveal"
)

// Field is the arithmetic field trigger values, breakdown keys and the
// output histogram all live in.
var Field = field.Fp32BitPrime

// Contribution is one row's already-attributed inputs: BreakdownKey and
// TriggerValue are only meaningful (non-nil / counted) when Attributed is
// true — source rows and unattributed triggers contribute nothing.
type Contribution struct {
	Pseudonym    []byte
	Attributed   bool
	BreakdownKey *share.BAShare
	TriggerValue *share.BAShare
}

const capStepLabel = "cap"
const aggregateStepLabel = "aggregate"

// CapAndAggregate groups contributions by pseudonym (the caller must have
// them already sorted, as attribution.Attribute's input/output is),
// reveals each user's attributed-total trigger value to decide whether to
// scale it down to cap, and folds the result into a histogram of
// maxBreakdownKey buckets without ever revealing an individual row's
// bucket.
func CapAndAggregate(ctx gocontext.Context, actx *context.Context, contributions []Contribution, cap uint32, maxBreakdownKey uint32, breakdownKeyBits int) ([]*share.Share, error) {
	f := Field
	ac := actx.Narrow(aggregateStepLabel)

	histogram := make([]*share.Share, maxBreakdownKey)
	for i := range histogram {
		zero, err := share.New(f.Zero(), f.Zero())
		if err != nil {
			return nil, err
		}
		histogram[i] = zero
	}

	rowIdx := uint64(0)
	start := 0
	for start < len(contributions) {
		end := start + 1
		for end < len(contributions) && bytesEqual(contributions[end].Pseudonym, contributions[start].Pseudonym) {
			end++
		}
		group := contributions[start:end]
		if err := aggregateGroup(ctx, ac, &rowIdx, group, cap, maxBreakdownKey, breakdownKeyBits, histogram); err != nil {
			return nil, err
		}
		start = end
	}

	return histogram, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func aggregateGroup(ctx gocontext.Context, ac *context.Context, rowIdx *uint64, group []Contribution, cap uint32, maxBreakdownKey uint32, breakdownKeyBits int, histogram []*share.Share) error {
	f := Field

	type converted struct {
		breakdownBits []*share.Share
		value         *share.Share
	}
	rows := make([]*converted, len(group))

	total, err := share.New(f.Zero(), f.Zero())
	if err != nil {
		return err
	}

	for i, c := range group {
		rid := *rowIdx
		*rowIdx++
		if !c.Attributed {
			continue
		}
		cc := ac.Narrow(fmt.Sprintf("row-%d", rid))

		value, err := convert.ToField(ctx, cc.Narrow("value"), rid, f, c.TriggerValue)
		if err != nil {
			return err
		}
		bits := make([]*share.Share, breakdownKeyBits)
		for b := 0; b < breakdownKeyBits; b++ {
			bc := cc.Narrow(fmt.Sprintf("bk-bit-%d", b))
			bit, err := convert.ConvertBit(ctx, bc, rid, f, c.BreakdownKey.Left().Bit(b), c.BreakdownKey.Right().Bit(b))
			if err != nil {
				return err
			}
			bits[b] = bit
		}
		rows[i] = &converted{breakdownBits: bits, value: value}

		total, err = total.Add(value)
		if err != nil {
			return err
		}
	}

	scale, err := capScale(ctx, ac.Narrow(capStepLabel), *rowIdx, total, cap)
	if err != nil {
		return err
	}

	for i, row := range rows {
		if row == nil {
			continue
		}
		rid := *rowIdx
		*rowIdx++
		scaled := row.value.MulConstant(scale)

		for b := 0; b < len(histogram); b++ {
			cc := ac.Narrow(fmt.Sprintf("bucket-%d-row-%d", b, i))
			eq, err := bucketEquality(ctx, cc, rid, f, row.breakdownBits, b)
			if err != nil {
				return err
			}
			contribution, err := multiply.Multiply(ctx, cc.Narrow("weight"), rid, eq, scaled)
			if err != nil {
				return err
			}
			histogram[b], err = histogram[b].Add(contribution)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// capScale reveals the group's attributed total and returns the public
// constant every row's value should be multiplied by: 1 if the total is
// within cap, otherwise cap/total computed in the field so the group's
// scaled sum reduces to cap.
func capScale(ctx gocontext.Context, cctx *context.Context, recordID uint64, total *share.Share, cap uint32) (field.Element, error) {
	f := total.Field()
	revealed, err := reveal.Reveal(ctx, cctx, recordID, reveal.None, total)
	if err != nil {
		return nil, err
	}
	if revealed.IsZero() {
		return f.One(), nil
	}
	totalPlain := elementToUint64(revealed)
	if totalPlain <= uint64(cap) {
		return f.One(), nil
	}
	inv, ok := revealed.Inv()
	if !ok {
		return nil, ipaerr.Errorf(ipaerr.Inconsistent, "aggregate: attributed total has no inverse")
	}
	return f.NewElement(uint64(cap)).Mul(inv), nil
}

func elementToUint64(e field.Element) uint64 {
	b := e.Serialize()
	var v uint64
	for i := 0; i < len(b) && i < 8; i++ {
		v |= uint64(b[i]) << uint(8*i)
	}
	return v
}

// bucketEquality computes the secret indicator for "this row's breakdown
// key equals bucket", as the product across bit positions of either the
// bit share itself (where bucket's bit is 1) or its local complement
// (where bucket's bit is 0) — a one-hot-style equality check that never
// reconstructs the breakdown key.
func bucketEquality(ctx gocontext.Context, cctx *context.Context, recordID uint64, f field.Field, bits []*share.Share, bucket int) (*share.Share, error) {
	one := share.ShareKnownValue(f, cctx.Role(), f.One())

	acc := bitTerm(bits[0], bucket, 0, one)
	var err error
	for i := 1; i < len(bits); i++ {
		term := bitTerm(bits[i], bucket, i, one)
		acc, err = multiply.Multiply(ctx, cctx.Narrow(fmt.Sprintf("and-%d", i)), recordID, acc, term)
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func bitTerm(bit *share.Share, bucket, pos int, one *share.Share) *share.Share {
	expected := (bucket >> uint(pos)) & 1
	if expected == 1 {
		return bit
	}
	complement, _ := one.Sub(bit)
	return complement
}
