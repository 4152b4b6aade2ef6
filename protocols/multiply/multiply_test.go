package multiply_test

import (
	"context"
	"testing"

	ipacontext "github.com/luxfi/ipa/pkg/context"
	"github.com/luxfi/ipa/pkg/field"
	"github.com/luxfi/ipa/pkg/party"
	"github.com/luxfi/ipa/pkg/share"
	"github.com/luxfi/ipa/protocols/multiply"
	"github.com/luxfi/ipa/internal/testworld"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMultiplyReconstructsProduct checks a=7, b=5 in F_31 reconstructs
// to 4 (35 mod 31).
func TestMultiplyReconstructsProduct(t *testing.T) {
	f := field.Fp31
	a, b := f.NewElement(7), f.NewElement(5)

	ctxs := testworld.New(t)

	aShares := [3]*share.Share{
		share.ShareKnownValue(f, party.H1, a),
		share.ShareKnownValue(f, party.H2, a),
		share.ShareKnownValue(f, party.H3, a),
	}
	bShares := [3]*share.Share{
		share.ShareKnownValue(f, party.H1, b),
		share.ShareKnownValue(f, party.H2, b),
		share.ShareKnownValue(f, party.H3, b),
	}

	results := runMultiplyTrio(t, ctxs, aShares, bShares)

	got, err := share.Reconstruct(results)
	require.NoError(t, err)
	assert.True(t, got.Equal(f.NewElement(4)))
}

func runMultiplyTrio(t *testing.T, ctxs [3]*ipacontext.Context, aShares, bShares [3]*share.Share) [3]*share.Share {
	t.Helper()
	type res struct {
		i   int
		sh  *share.Share
		err error
	}
	out := make(chan res, 3)
	for i := 0; i < 3; i++ {
		i := i
		go func() {
			sh, err := multiply.Multiply(context.Background(), ctxs[i], 0, aShares[i], bShares[i])
			out <- res{i: i, sh: sh, err: err}
		}()
	}
	var results [3]*share.Share
	for n := 0; n < 3; n++ {
		r := <-out
		require.NoError(t, r.err)
		results[r.i] = r.sh
	}
	return results
}
