package sort

import "github.com/luxfi/ipa/pkg/share"

// applyPermutation reorders shares so that the element at input index i
// lands at output index perm[i] — a purely local array move, no
// communication, since every helper already holds its own share of every
// row.
func applyPermutation(shares []*share.Share, perm []int) []*share.Share {
	out := make([]*share.Share, len(perm))
	for i, p := range perm {
		out[p] = shares[i]
	}
	return out
}
