package aggregate_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/ipa/internal/testworld"
	"github.com/luxfi/ipa/pkg/boolean"
	ipacontext "github.com/luxfi/ipa/pkg/context"
	"github.com/luxfi/ipa/pkg/share"
	"github.com/luxfi/ipa/protocols/aggregate"
)

func knownBAShareTrio(bits int, plaintext uint64) [3]*share.BAShare {
	v := boolean.FromUint64(bits, plaintext)
	zero := boolean.New(bits)
	h1, _ := share.NewBA(v, zero)
	h2, _ := share.NewBA(zero, zero)
	h3, _ := share.NewBA(zero, v)
	return [3]*share.BAShare{h1, h2, h3}
}

func runAggregateTrio(t *testing.T, ctxs [3]*ipacontext.Context, contributions [3][]aggregate.Contribution, cap, maxBK uint32, bkBits int) [3][]*share.Share {
	t.Helper()
	type res struct {
		i    int
		hist []*share.Share
		err  error
	}
	out := make(chan res, 3)
	for i := 0; i < 3; i++ {
		i := i
		go func() {
			h, err := aggregate.CapAndAggregate(context.Background(), ctxs[i], contributions[i], cap, maxBK, bkBits)
			out <- res{i: i, hist: h, err: err}
		}()
	}
	var results [3][]*share.Share
	for n := 0; n < 3; n++ {
		r := <-out
		require.NoError(t, r.err)
		results[r.i] = r.hist
	}
	return results
}

func reconstructHistogram(t *testing.T, results [3][]*share.Share) []uint64 {
	t.Helper()
	n := len(results[0])
	out := make([]uint64, n)
	for i := 0; i < n; i++ {
		v, err := share.Reconstruct([3]*share.Share{results[0][i], results[1][i], results[2][i]})
		require.NoError(t, err)
		for want := uint64(0); want < 64; want++ {
			if v.Equal(aggregate.Field.NewElement(want)) {
				out[i] = want
				break
			}
		}
	}
	return out
}

// TestCapAndAggregateSumsWithinCap checks two users contributing to
// distinct buckets, both within cap, with no scaling applied.
func TestCapAndAggregateSumsWithinCap(t *testing.T) {
	bk1 := knownBAShareTrio(2, 1)
	bk2 := knownBAShareTrio(2, 2)
	tv2 := knownBAShareTrio(3, 2)
	tv3 := knownBAShareTrio(3, 3)

	var contributions [3][]aggregate.Contribution
	for h := 0; h < 3; h++ {
		contributions[h] = []aggregate.Contribution{
			{Pseudonym: []byte{1}, Attributed: true, BreakdownKey: bk1[h], TriggerValue: tv2[h]},
			{Pseudonym: []byte{2}, Attributed: true, BreakdownKey: bk2[h], TriggerValue: tv3[h]},
		}
	}

	ctxs := testworld.New(t)
	results := runAggregateTrio(t, ctxs, contributions, 16, 4, 2)
	hist := reconstructHistogram(t, results)

	assert.Equal(t, []uint64{0, 2, 3, 0}, hist)
}

// TestCapAndAggregateScalesDownOverCap checks a single user whose two
// attributed contributions to the same bucket sum past the cap: the
// reconstructed bucket total must equal the cap, not the raw sum.
func TestCapAndAggregateScalesDownOverCap(t *testing.T) {
	bk := knownBAShareTrio(1, 0)
	tvA := knownBAShareTrio(4, 6)
	tvB := knownBAShareTrio(4, 6)

	var contributions [3][]aggregate.Contribution
	for h := 0; h < 3; h++ {
		contributions[h] = []aggregate.Contribution{
			{Pseudonym: []byte{9}, Attributed: true, BreakdownKey: bk[h], TriggerValue: tvA[h]},
			{Pseudonym: []byte{9}, Attributed: true, BreakdownKey: bk[h], TriggerValue: tvB[h]},
		}
	}

	ctxs := testworld.New(t)
	results := runAggregateTrio(t, ctxs, contributions, 8, 2, 1)
	hist := reconstructHistogram(t, results)

	assert.Equal(t, uint64(8), hist[0])
}
