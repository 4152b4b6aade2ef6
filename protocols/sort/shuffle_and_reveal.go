package sort

import (
	gocontext "context"
	"encoding/binary"
	"fmt"

	"github.com/luxfi/ipa/pkg/context"
	"github.com/luxfi/ipa/pkg/field"
	"github.com/luxfi/ipa/pkg/ipaerr"
	"github.com/luxfi/ipa/pkg/share"
	"github.com/luxfi/ipa/protocols/reveal"
)

const (
	shuffleRevealStepLabel  = "shuffle-reveal-permutation"
	shufflePermutationLabel = "shuffle-permutation"
	revealPermutationLabel  = "reveal-permutation"
)

// RevealedAndRandomPermutations is the result of shuffleAndRevealPermutation:
// the revealed (now public) permutation, plus the two pairwise PRSS
// permutations this helper used to shuffle it there. This is the Go
// analog of the original's struct of the same name.
type RevealedAndRandomPermutations struct {
	Revealed         []int
	RandomsForShuffle Randoms
}

// shuffleAndRevealPermutation implements OptApplyInv/OptCompose's shared
// first stage (Chida et al. algorithm 13/14): the caller's secret
// permutation shares are rerandomized by ShuffleField, then revealed, so
// the public permutation the next step operates on never discloses the
// real row order — only the rerandomized one.
func shuffleAndRevealPermutation(ctx gocontext.Context, sctx *context.Context, f field.Field, inputPermutation []*share.Share) (RevealedAndRandomPermutations, error) {
	sc := sctx.Narrow(shuffleRevealStepLabel)
	n := len(inputPermutation)
	if n == 0 {
		return RevealedAndRandomPermutations{}, ipaerr.Errorf(ipaerr.InvalidConfig, "sort: empty permutation")
	}

	// The replicated share's own (left,right) pair stands in for the
	// shuffle's (a,b)/(b,c)/(c,a) redundancy model; ShuffleField only
	// needs its caller to pass its own two held components.
	left, right := inputPermutation, inputPermutation
	newLeft, newRight, randoms, err := ShuffleField(ctx, sc.Narrow(shufflePermutationLabel), left, right, f)
	if err != nil {
		return RevealedAndRandomPermutations{}, err
	}
	shuffled := mergeElementShares(newLeft, newRight)

	revealed := make([]int, n)
	rc := sc.Narrow(revealPermutationLabel)
	for i, s := range shuffled {
		v, err := reveal.Reveal(ctx, rc.Narrow(fmt.Sprintf("row-%d", i)), uint64(i), reveal.None, s)
		if err != nil {
			return RevealedAndRandomPermutations{}, err
		}
		idx, err := elementToIndex(v, n)
		if err != nil {
			return RevealedAndRandomPermutations{}, err
		}
		revealed[i] = idx
	}

	return RevealedAndRandomPermutations{Revealed: revealed, RandomsForShuffle: randoms}, nil
}

func mergeElementShares(left, right []field.Element) []*share.Share {
	out := make([]*share.Share, len(left))
	for i := range left {
		out[i], _ = share.New(left[i], right[i])
	}
	return out
}

// elementToIndex converts a revealed field element back into a row index,
// failing if it falls outside the valid [0,n) range — a helper that
// revealed something other than a valid permutation entry has deviated.
func elementToIndex(v field.Element, n int) (int, error) {
	buf := make([]byte, 8)
	copy(buf, v.Serialize())
	idx := binary.LittleEndian.Uint64(buf)
	if idx >= uint64(n) {
		return 0, ipaerr.Errorf(ipaerr.Inconsistent, "sort: revealed permutation entry %s out of range [0,%d)", v, n)
	}
	return int(idx), nil
}
