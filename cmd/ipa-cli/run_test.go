package main

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/ipa/pkg/field"
	"github.com/luxfi/ipa/pkg/ipaerr"
	"github.com/luxfi/ipa/pkg/share"
)

func TestExitCodeFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ipaerr.Errorf(ipaerr.InvalidConfig, "bad cap"), 2},
		{ipaerr.Errorf(ipaerr.Serialization, "bad bytes"), 2},
		{ipaerr.Errorf(ipaerr.OutOfBounds, "rid too big"), 2},
		{ipaerr.Errorf(ipaerr.Network, "peer closed"), 3},
		{ipaerr.Errorf(ipaerr.Canceled, "shutdown"), 3},
		{ipaerr.Errorf(ipaerr.Inconsistent, "reveal mismatch"), 1},
		{ipaerr.Errorf(ipaerr.ShuffleValidationFailed, "mac mismatch"), 1},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, exitCodeFor(c.err), "%v", c.err)
	}
}

func TestWriteReadStateRoundTrip(t *testing.T) {
	configDir = t.TempDir()

	f := field.Fp32BitPrime
	s, err := share.New(f.NewElement(3), f.NewElement(4))
	require.NoError(t, err)
	bs := bucketShare{Left: hex.EncodeToString(s.Left().Serialize()), Right: hex.EncodeToString(s.Right().Serialize())}

	st := &queryState{
		QueryID:   "q1",
		Status:    "completed",
		Histogram: [][3]bucketShare{{bs, bs, bs}},
	}
	require.NoError(t, writeState(st))

	got, err := readState("q1")
	require.NoError(t, err)
	assert.Equal(t, st.QueryID, got.QueryID)
	assert.Equal(t, st.Status, got.Status)
	assert.Equal(t, st.Histogram, got.Histogram)
}
