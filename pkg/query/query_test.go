package query_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/ipa/internal/testworld"
	"github.com/luxfi/ipa/pkg/boolean"
	"github.com/luxfi/ipa/pkg/query"
	"github.com/luxfi/ipa/pkg/report"
	"github.com/luxfi/ipa/pkg/share"
	"github.com/luxfi/ipa/protocols/aggregate"
)

type plainRow struct {
	matchKey, isTrigger, breakdownKey, triggerValue, timestamp uint64
}

// writeShare writes one helper's (left, right) encoding of a field whose
// plaintext value is v: H1 holds it as its left raw bit(s), H3 as its
// right, H2 nothing — the same single-contributor layout
// share.ShareKnownValue uses, generalized to whichever helper index is
// building the stream.
func writeShare(buf *bytes.Buffer, bits int, helper int, v uint64) {
	value := boolean.FromUint64(bits, v)
	zero := boolean.New(bits)
	switch helper {
	case 0:
		buf.Write(value.Bytes())
		buf.Write(zero.Bytes())
	case 2:
		buf.Write(zero.Bytes())
		buf.Write(value.Bytes())
	default:
		buf.Write(zero.Bytes())
		buf.Write(zero.Bytes())
	}
}

func buildHelperStreams(w report.Widths, rows []plainRow) [3]*bytes.Buffer {
	var streams [3]*bytes.Buffer
	for h := range streams {
		streams[h] = &bytes.Buffer{}
		var countBuf [4]byte
		binary.LittleEndian.PutUint32(countBuf[:], uint32(len(rows)))
		streams[h].Write(countBuf[:])
	}
	for _, r := range rows {
		for h := 0; h < 3; h++ {
			writeShare(streams[h], report.MatchKeyBits, h, r.matchKey)
			writeShare(streams[h], report.IsTriggerBits, h, r.isTrigger)
			writeShare(streams[h], w.BreakdownKeyBits, h, r.breakdownKey)
			writeShare(streams[h], w.TriggerValueBits, h, r.triggerValue)
			writeShare(streams[h], w.TimestampBits, h, r.timestamp)
		}
	}
	return streams
}

// TestExecuteOprfIpaEndToEnd runs 5 records across 2 users through the
// full pipeline: user 100 contributes one source row (breakdown key 1)
// and one trigger inside the attribution window (value 2); user 200
// contributes one source row (breakdown key 2), one in-window trigger
// (value 3), and one trigger past the window (value 10, discarded).
// Expected output: bucket 1 = 2, bucket 2 = 3, everything else 0.
func TestExecuteOprfIpaEndToEnd(t *testing.T) {
	cfg := query.IpaQueryConfig{
		PerUserCreditCap:         16,
		MaxBreakdownKey:          8,
		NumMultiBits:             3,
		AttributionWindowSeconds: 60,
		PlaintextMatchKeys:       true,
	}
	require.NoError(t, cfg.Validate())

	rows := []plainRow{
		{matchKey: 100, isTrigger: 0, breakdownKey: 1, triggerValue: 0, timestamp: 100},
		{matchKey: 100, isTrigger: 1, breakdownKey: 0, triggerValue: 2, timestamp: 105},
		{matchKey: 200, isTrigger: 0, breakdownKey: 2, triggerValue: 0, timestamp: 200},
		{matchKey: 200, isTrigger: 1, breakdownKey: 0, triggerValue: 3, timestamp: 205},
		{matchKey: 200, isTrigger: 1, breakdownKey: 0, triggerValue: 10, timestamp: 500},
	}
	streams := buildHelperStreams(cfg.Widths(), rows)

	ctxs := testworld.New(t)

	type res struct {
		i   int
		hist []*share.Share
		err  error
	}
	out := make(chan res, 3)
	for i := 0; i < 3; i++ {
		i := i
		go func() {
			hist, err := query.Execute(context.Background(), ctxs[i], cfg, bytes.NewReader(streams[i].Bytes()), 0)
			out <- res{i: i, hist: hist, err: err}
		}()
	}
	var results [3][]*share.Share
	for n := 0; n < 3; n++ {
		r := <-out
		require.NoError(t, r.err)
		results[r.i] = r.hist
	}

	require.Len(t, results[0], 8)
	want := []uint64{0, 2, 3, 0, 0, 0, 0, 0}
	for b := 0; b < 8; b++ {
		v, err := share.Reconstruct([3]*share.Share{results[0][b], results[1][b], results[2][b]})
		require.NoError(t, err)
		assert.True(t, v.Equal(aggregate.Field.NewElement(want[b])), "bucket %d: got %s want %d", b, v, want[b])
	}
}
