package sort_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/ipa/internal/testworld"
	ipacontext "github.com/luxfi/ipa/pkg/context"
	"github.com/luxfi/ipa/pkg/field"
	"github.com/luxfi/ipa/pkg/party"
	"github.com/luxfi/ipa/pkg/share"
	"github.com/luxfi/ipa/protocols/sort"
)

// bitColumn builds the trivial 3-way replicated sharing (known to every
// helper, via ShareKnownValue) of a column of single bits, one per row.
func bitColumn(f field.Field, bits []uint64) [3][]*share.Share {
	var out [3][]*share.Share
	for role := 0; role < 3; role++ {
		col := make([]*share.Share, len(bits))
		for i, b := range bits {
			col[i] = share.ShareKnownValue(f, party.Role(role), f.NewElement(b))
		}
		out[role] = col
	}
	return out
}

func runGeneratePermutationTrio(t *testing.T, ctxs [3]*ipacontext.Context, columns [3][][]*share.Share) [3][]*share.Share {
	t.Helper()
	type res struct {
		i   int
		out []*share.Share
		err error
	}
	out := make(chan res, 3)
	for i := 0; i < 3; i++ {
		i := i
		go func() {
			perm, err := sort.GeneratePermutation(context.Background(), ctxs[i], columns[i])
			out <- res{i: i, out: perm, err: err}
		}()
	}
	var results [3][]*share.Share
	for n := 0; n < 3; n++ {
		r := <-out
		require.NoError(t, r.err)
		results[r.i] = r.out
	}
	return results
}

func reconstructRanks(t *testing.T, results [3][]*share.Share) []uint64 {
	t.Helper()
	n := len(results[0])
	ranks := make([]uint64, n)
	for i := 0; i < n; i++ {
		v, err := share.Reconstruct([3]*share.Share{results[0][i], results[1][i], results[2][i]})
		require.NoError(t, err)
		for rank := uint64(0); rank < uint64(n); rank++ {
			if v.Equal(v.Field().NewElement(rank)) {
				ranks[i] = rank
				break
			}
		}
	}
	return ranks
}

// TestGeneratePermutationStableSortsByValue runs a 3-row, 2-bit radix sort
// over the values [3, 1, 2] (rows indexed 0..2) and checks the resulting
// permutation ranks each row by where its value lands in ascending order:
// value 1 (row 1) first, value 2 (row 2) second, value 3 (row 0) third.
func TestGeneratePermutationStableSortsByValue(t *testing.T) {
	f := field.Fp32BitPrime

	// row 0 = 3 (0b11), row 1 = 1 (0b01), row 2 = 2 (0b10).
	bit0 := bitColumn(f, []uint64{1, 1, 0}) // least-significant bit
	bit1 := bitColumn(f, []uint64{1, 0, 1}) // most-significant bit

	ctxs := testworld.New(t)

	var columns [3][][]*share.Share
	for role := 0; role < 3; role++ {
		columns[role] = [][]*share.Share{bit0[role], bit1[role]}
	}

	results := runGeneratePermutationTrio(t, ctxs, columns)
	ranks := reconstructRanks(t, results)

	assert.Equal(t, []uint64{2, 0, 1}, ranks)
}

// TestGeneratePermutationRejectsRaggedColumns checks that bit columns of
// mismatched row counts fail fast instead of panicking deep inside a
// later stage.
func TestGeneratePermutationRejectsRaggedColumns(t *testing.T) {
	f := field.Fp32BitPrime
	ctxs := testworld.New(t)

	short := share.ShareKnownValue(f, party.H1, f.Zero())
	long := bitColumn(f, []uint64{0, 1})[0]

	_, err := sort.GeneratePermutation(context.Background(), ctxs[0], [][]*share.Share{{short}, long})
	assert.Error(t, err)
}
