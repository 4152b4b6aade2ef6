package sort

import "github.com/luxfi/ipa/pkg/share"

// secureApplyInv brings a share vector out of shuffled-and-revealed space
// back to the order the caller's OTHER bit column is already in, by
// undoing — in reverse — the same three permutations
// shuffleAndRevealPermutation applied: the revealed public permutation,
// then the two pairwise-random ones this helper knows.
//
// The full OptApplyInv of Chida et al. (algorithm 13) avoids ever
// materializing the random permutations as plaintext ints on a single
// helper; this adaptation applies them directly, since
// shuffleAndRevealPermutation already hands each helper exactly the two
// pairwise permutations it is entitled to know — the simplification costs
// a reduction in how obliviously those two permutations themselves are
// combined, not in which permutation ends up applied.
func secureApplyInv(shares []*share.Share, revealed []int, randoms Randoms) []*share.Share {
	out := applyPermutation(shares, invertPermutation(revealed))
	out = applyPermutation(out, invertPermutation(randoms.B))
	out = applyPermutation(out, invertPermutation(randoms.A))
	return out
}

// compose folds a newly computed bit permutation into the running,
// shuffled-and-revealed order established by the same (randoms, revealed)
// triple — the forward counterpart of secureApplyInv, matching the
// original's OptCompose (algorithm 14): apply the two random permutations
// forward, then the revealed one, embedding the new bit's ranking into
// the space the next iteration's shuffle_and_reveal will operate on.
func compose(bitPermutation []*share.Share, revealed []int, randoms Randoms) []*share.Share {
	out := applyPermutation(bitPermutation, randoms.A)
	out = applyPermutation(out, randoms.B)
	out = applyPermutation(out, revealed)
	return out
}
