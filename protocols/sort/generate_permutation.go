package sort

import (
	gocontext "context"
	"fmt"

	"github.com/luxfi/ipa/pkg/context"
	"github.com/luxfi/ipa/pkg/field"
	"github.com/luxfi/ipa/pkg/ipaerr"
	"github.com/luxfi/ipa/pkg/share"
)

const sortStepLabel = "sort"

// GeneratePermutation is OptApplyInv/OptCompose's outer loop ("GenPerm",
// Chida et al. algorithm 6): it computes the permutation that stably sorts
// the rows of input by the bit-decomposed key input represents,
// most-significant-bit ties broken by least-significant, without ever
// reconstructing the key or the ordering.
//
// input[k] is bit k of every row's sort key, least-significant first
// (input[0] is the sort's primary, least-discriminating bit in the
// original's convention — each subsequent bit refines ties left by the
// bits before it). The returned permutation's i-th share is row i's rank
// in the stable sort.
func GeneratePermutation(ctx gocontext.Context, sctx *context.Context, input [][]*share.Share) ([]*share.Share, error) {
	if len(input) == 0 {
		return nil, ipaerr.Errorf(ipaerr.InvalidConfig, "sort: generate_permutation needs at least one bit")
	}
	numBits := len(input)
	n := len(input[0])
	for _, col := range input {
		if len(col) != n {
			return nil, ipaerr.Errorf(ipaerr.InvalidConfig, "sort: all bit columns must have the same row count")
		}
	}
	sc := sctx.Narrow(sortStepLabel)
	f := field.Fp32BitPrime

	ctx0 := sc.Narrow(fmt.Sprintf("bit-%d", 0))
	composed, err := BitPermutation(ctx, ctx0, input[0])
	if err != nil {
		return nil, err
	}

	for bitNum := 1; bitNum < numBits; bitNum++ {
		bc := sc.Narrow(fmt.Sprintf("bit-%d", bitNum))

		revealedAndRandoms, err := shuffleAndRevealPermutation(ctx, bc, f, composed)
		if err != nil {
			return nil, err
		}

		sortedByPreviousBits := secureApplyInv(input[bitNum], revealedAndRandoms.Revealed, revealedAndRandoms.RandomsForShuffle)

		bitIPermutation, err := BitPermutation(ctx, bc, sortedByPreviousBits)
		if err != nil {
			return nil, err
		}

		composed = compose(bitIPermutation, revealedAndRandoms.Revealed, revealedAndRandoms.RandomsForShuffle)
	}

	return composed, nil
}
