package reveal_test

import (
	"context"
	"testing"

	"github.com/luxfi/ipa/internal/testworld"
	ipacontext "github.com/luxfi/ipa/pkg/context"
	"github.com/luxfi/ipa/pkg/field"
	"github.com/luxfi/ipa/pkg/party"
	"github.com/luxfi/ipa/pkg/share"
	"github.com/luxfi/ipa/protocols/reveal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runRevealTrio(t *testing.T, ctxs [3]*ipacontext.Context, shares [3]*share.Share, except reveal.Except) [3]field.Element {
	t.Helper()
	type res struct {
		i   int
		v   field.Element
		err error
	}
	out := make(chan res, 3)
	for i := 0; i < 3; i++ {
		i := i
		go func() {
			v, err := reveal.Reveal(context.Background(), ctxs[i], 0, except, shares[i])
			out <- res{i: i, v: v, err: err}
		}()
	}
	var results [3]field.Element
	for n := 0; n < 3; n++ {
		r := <-out
		require.NoError(t, r.err)
		results[r.i] = r.v
	}
	return results
}

func TestRevealAllReconstructsSameValue(t *testing.T) {
	f := field.Fp31
	v := f.NewElement(17)
	ctxs := testworld.New(t)

	shares := [3]*share.Share{
		share.ShareKnownValue(f, party.H1, v),
		share.ShareKnownValue(f, party.H2, v),
		share.ShareKnownValue(f, party.H3, v),
	}

	got := runRevealTrio(t, ctxs, shares, reveal.None)
	for _, g := range got {
		assert.True(t, g.Equal(v))
	}
}

func TestRevealWithExceptHidesFromOneHelper(t *testing.T) {
	f := field.Fp31
	v := f.NewElement(9)
	ctxs := testworld.New(t)

	shares := [3]*share.Share{
		share.ShareKnownValue(f, party.H1, v),
		share.ShareKnownValue(f, party.H2, v),
		share.ShareKnownValue(f, party.H3, v),
	}

	got := runRevealTrio(t, ctxs, shares, reveal.Of(party.H2))
	require.NotNil(t, got[party.H1.Index()])
	assert.True(t, got[party.H1.Index()].Equal(v))
	assert.Nil(t, got[party.H2.Index()])
	require.NotNil(t, got[party.H3.Index()])
	assert.True(t, got[party.H3.Index()].Equal(v))
}
