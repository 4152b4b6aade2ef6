package sort

import (
	gocontext "context"
	"fmt"

	"github.com/luxfi/ipa/pkg/context"
	"github.com/luxfi/ipa/pkg/ipaerr"
	"github.com/luxfi/ipa/pkg/share"
	"github.com/luxfi/ipa/protocols/multiply"
)

const bitPermutationStepLabel = "bit-permutation"

// BitPermutation computes, for a column of {0,1}-share bits (one per
// row), each row's rank under a stable sort by that single bit: every
// zero-bit row keeps its relative order ahead of every one-bit row.
//
// Writing z(i) for the number of zero bits among rows [0,i) (a running
// prefix count — a purely local linear combination of shares, since Add
// and Sub never need communication) and total for the column's total
// zero count, row i's rank is:
//
//	rank_i = z(i) + bit_i * (total + i - 2*z(i))
//
// which reduces to z(i) when bit_i=0 (the zero-row keeps its prefix
// position) and to total + (i - z(i)) when bit_i=1 (it lands after all
// zeros, at its prefix count of ones). The only communication is the one
// multiplication per row needed to combine the secret bit with the
// secret linear term — generate_permutation's single-bit base case.
func BitPermutation(ctx gocontext.Context, bctx *context.Context, bits []*share.Share) ([]*share.Share, error) {
	if len(bits) == 0 {
		return nil, ipaerr.Errorf(ipaerr.InvalidConfig, "sort: bit_permutation needs at least one row")
	}
	bc := bctx.Narrow(bitPermutationStepLabel)
	self := bc.Role()
	f := bits[0].Field()
	n := len(bits)

	zeroPrefix := make([]*share.Share, n)
	cur := share.ShareKnownValue(f, self, f.Zero())
	for i := 0; i < n; i++ {
		zeroPrefix[i] = cur
		oneElem := share.ShareKnownValue(f, self, f.One())
		notBit, err := oneElem.Sub(bits[i])
		if err != nil {
			return nil, err
		}
		cur, err = cur.Add(notBit)
		if err != nil {
			return nil, err
		}
	}
	total := cur // zeroPrefix[n] would be the total zero count

	two := f.NewElement(2)
	out := make([]*share.Share, n)
	for i := 0; i < n; i++ {
		rc := bc.Narrow(fmt.Sprintf("row-%d", i))
		iElem := share.ShareKnownValue(f, self, f.NewElement(uint64(i)))
		term, err := total.Add(iElem)
		if err != nil {
			return nil, err
		}
		term, err = term.Sub(zeroPrefix[i].MulConstant(two))
		if err != nil {
			return nil, err
		}
		product, err := multiply.Multiply(ctx, rc, 0, bits[i], term)
		if err != nil {
			return nil, err
		}
		rank, err := zeroPrefix[i].Add(product)
		if err != nil {
			return nil, err
		}
		out[i] = rank
	}
	return out, nil
}
