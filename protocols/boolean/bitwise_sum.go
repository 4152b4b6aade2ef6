package boolean

import (
	gocontext "context"

	"github.com/luxfi/ipa/pkg/context"
	"github.com/luxfi/ipa/pkg/ipaerr"
	"github.com/luxfi/ipa/pkg/share"
)

const bitwiseSumStepLabel = "bitwise-sum"

// BitwiseSum adds two bitwise-shared values a and b (each a length-l
// vector of {0,1}-share bits, least-significant first) and returns their
// l+1-bit bitwise-shared sum, carrying between bits entirely within MPC
// so neither operand nor any intermediate carry is ever reconstructed.
// Neither protocols/sort nor protocols/attribution calls it.
//
// d_0 = a_0 + b_0 - 2*c_0
// d_i = a_i + b_i + c_(i-1) - 2*c_i   for i in [1,l-1]
// d_l = c_(l-1)
//
// where c is the carry vector from computeCarries. All of this is local
// arithmetic on shares once the carries are known; the only
// communication this protocol performs is inside computeCarries.
func BitwiseSum(ctx gocontext.Context, bctx *context.Context, recordID uint64, a, b []*share.Share) ([]*share.Share, error) {
	if len(a) != len(b) {
		return nil, ipaerr.Errorf(ipaerr.InvalidConfig, "boolean: bitwise sum operand length mismatch %d != %d", len(a), len(b))
	}
	if len(a) == 0 {
		return nil, ipaerr.Errorf(ipaerr.InvalidConfig, "boolean: bitwise sum needs at least one bit")
	}
	for _, s := range a {
		if err := requireBitField(s); err != nil {
			return nil, err
		}
	}
	l := len(a)
	bc := bctx.Narrow(bitwiseSumStepLabel)

	c, err := computeCarries(ctx, bc.Narrow(carriesStepLabel), recordID, a, b)
	if err != nil {
		return nil, err
	}

	two := a[0].Field().NewElement(2)
	d := make([]*share.Share, l+1)

	d0sum, err := a[0].Add(b[0])
	if err != nil {
		return nil, err
	}
	d0, err := d0sum.Sub(c[0].MulConstant(two))
	if err != nil {
		return nil, err
	}
	d[0] = d0

	for i := 1; i < l; i++ {
		sum, err := a[i].Add(b[i])
		if err != nil {
			return nil, err
		}
		sum, err = sum.Add(c[i-1])
		if err != nil {
			return nil, err
		}
		d[i], err = sum.Sub(c[i].MulConstant(two))
		if err != nil {
			return nil, err
		}
	}
	d[l] = c[l-1]

	return d, nil
}
