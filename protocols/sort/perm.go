// Package sort implements a multi-bit radix sort over replicated shares: a
// per-bit rank computation (bit_permutation), a shuffle-then-reveal step
// that lets helpers apply each bit's ranking without learning the row
// order (shuffle_and_reveal_permutation), and a composition step that
// folds each new bit's ranking into the running permutation
// (secureapplyinv/compose), looping bit by bit to build
// generate_permutation's final stable-sort ordering.
package sort

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/luxfi/ipa/pkg/prss"
	"golang.org/x/crypto/hkdf"
)

// derivePermutation expands a pairwise PRSS key into a Fisher-Yates
// permutation of [0,n), the same construction protocols/shuffle uses for
// its row permutations — duplicated here rather than shared because
// sort's permutations are over plaintext-space ranks, not boolean-array
// rows, and are returned to the caller as explicit []int rather than
// applied invisibly.
func derivePermutation(key [prss.KeyLen]byte, label string, n int) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	r := hkdf.New(sha256.New, key[:], nil, []byte("sortperm:"+label))
	for i := n - 1; i > 0; i-- {
		j := randIndex(r, i+1)
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm
}

func randIndex(r interface{ Read([]byte) (int, error) }, bound int) int {
	if bound <= 1 {
		return 0
	}
	limit := (uint32(1)<<32 - 1) - (uint32(1)<<32)%uint32(bound)
	var buf [4]byte
	for {
		_, _ = r.Read(buf[:])
		v := binary.BigEndian.Uint32(buf[:])
		if v <= limit {
			return int(v % uint32(bound))
		}
	}
}

// invertPermutation returns perm's inverse: the index mapping that undoes
// an applyPermutation(perm) call.
func invertPermutation(perm []int) []int {
	inv := make([]int, len(perm))
	for i, p := range perm {
		inv[p] = i
	}
	return inv
}
