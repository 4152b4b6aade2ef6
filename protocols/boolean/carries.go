// Package boolean implements bit-sharing arithmetic circuits over field
// elements constrained to {0,1}: ripple-carry addition of bitwise-shared
// values without ever reconstructing them. The sort and attribution
// protocols do not use it.
package boolean

import (
	gocontext "context"
	"fmt"

	"github.com/luxfi/ipa/pkg/context"
	"github.com/luxfi/ipa/pkg/field"
	"github.com/luxfi/ipa/pkg/ipaerr"
	"github.com/luxfi/ipa/pkg/share"
	"github.com/luxfi/ipa/protocols/multiply"
)

const carriesStepLabel = "carries"

// computeCarries returns c_1..c_l, the bitwise carry-out of each bit
// position when adding a and b (both length-l vectors of {0,1}-share
// bits, least-significant first). c[i] is the carry produced out of bit
// i, i.e. carry *into* bit i+1 — the same indexing BitwiseSum.execute's
// Rust original uses.
//
// Each bit's carry-out is the majority of (a_i, b_i, carry_in):
//
//	carry_out = a_i*b_i + carry_in*(a_i+b_i-2*a_i*b_i)
//
// computed with two sequential multiplications per bit (the product
// a_i*b_i, then carry_in times the XOR of a_i,b_i), rippling carry_in
// forward one bit at a time.
func computeCarries(ctx gocontext.Context, cctx *context.Context, recordID uint64, a, b []*share.Share) ([]*share.Share, error) {
	l := len(a)
	c := make([]*share.Share, l)
	two := a[0].Field().NewElement(2)

	var carryIn *share.Share
	for i := 0; i < l; i++ {
		bc := cctx.Narrow(fmt.Sprintf("bit-%d", i))
		ab, err := multiply.Multiply(ctx, bc.Narrow("and"), recordID, a[i], b[i])
		if err != nil {
			return nil, err
		}
		if i == 0 {
			c[0] = ab
			carryIn = c[0]
			continue
		}
		sum, err := a[i].Add(b[i])
		if err != nil {
			return nil, err
		}
		p, err := sum.Sub(ab.MulConstant(two))
		if err != nil {
			return nil, err
		}
		cp, err := multiply.Multiply(ctx, bc.Narrow("carry"), recordID, carryIn, p)
		if err != nil {
			return nil, err
		}
		carryOut, err := ab.Add(cp)
		if err != nil {
			return nil, err
		}
		c[i] = carryOut
		carryIn = c[i]
	}
	return c, nil
}

func requireBitField(s *share.Share) error {
	if s.Field().Name() != field.Fp31.Name() && s.Field().Name() != field.FpMersenne31.Name() && s.Field().Name() != field.Fp32BitPrime.Name() {
		return ipaerr.Errorf(ipaerr.InvalidConfig, "boolean: unsupported bit field %s", s.Field().Name())
	}
	return nil
}
