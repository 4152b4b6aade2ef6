// Package attribution implements the per-user attribution window walk:
// within each contiguous run of rows sharing the same (already revealed)
// pseudonym, each trigger row within attribution_window_seconds of the
// most recent source row inherits that source row's breakdown key.
//
// Grounded on original_source/src/query/runner/aggregate.rs's
// BinarySharedAggregateInputs convention for carrying a breakdown key
// alongside a trigger value through the per-user walk; the row's
// timestamp and trigger/source flag are revealed ahead of the walk itself
// (see DESIGN.md) so the window comparison and group ordering can be done
// as ordinary arithmetic on plaintext integers, the same tradeoff
// eval_dy_prf already makes for the pseudonym.
package attribution

import (
	gocontext "context"
	"sort"

	"github.com/luxfi/ipa/pkg/context"
	"github.com/luxfi/ipa/pkg/field"
	"github.com/luxfi/ipa/pkg/share"
	"github.com/luxfi/ipa/protocols/convert"
	"github.com/luxfi/ipa/protocols/reveal"
)

const fieldForPlaintext = "attribution-plaintext"

// plaintextField is the field is_trigger and timestamp are converted into
// before being revealed; its modulus 2^32-5 holds any timestamp below
// 2^32-5, which covers pkg/query's 20-bit timestamps.
var plaintextField = field.Fp32BitPrime

// Row is one attribution input: a sorted-by-pseudonym record together
// with its breakdown key share, still entirely secret at this point.
type Row struct {
	Pseudonym    []byte
	IsTrigger    *share.BAShare
	BreakdownKey *share.BAShare
	Timestamp    *share.BAShare
}

// Attributed is one row's attribution outcome: whether it is a trigger
// row that fell within its group's attribution window, and if so, the
// breakdown key share it inherited.
type Attributed struct {
	IsAttributedTrigger bool
	BreakdownKey        *share.BAShare
}

func elementToUint64(e field.Element) uint64 {
	b := e.Serialize()
	var v uint64
	for i := 0; i < len(b) && i < 8; i++ {
		v |= uint64(b[i]) << uint(8*i)
	}
	return v
}

func revealAsUint64(ctx gocontext.Context, rctx *context.Context, recordID uint64, x *share.BAShare) (uint64, error) {
	cc := rctx.Narrow(fieldForPlaintext)
	s, err := convert.ToField(ctx, cc, recordID, plaintextField, x)
	if err != nil {
		return 0, err
	}
	v, err := reveal.Reveal(ctx, cc, recordID, reveal.None, s)
	if err != nil {
		return 0, err
	}
	return elementToUint64(v), nil
}

type plainRow struct {
	index        int
	isTrigger    bool
	timestamp    uint64
	breakdownKey *share.BAShare
}

// Attribute runs the window walk over rows, which the caller must already
// have sorted by pseudonym (ascending). Rows within the same pseudonym
// group are further ordered here by revealed timestamp. The returned
// slice is in the same order as the input rows.
func Attribute(ctx gocontext.Context, actx *context.Context, rows []Row, windowSeconds uint32) ([]Attributed, error) {
	// is_trigger and timestamp each get their own narrowed sub-step so
	// that revealing both for the same row (the same record_id) addresses
	// two distinct channels rather than colliding on one.
	isTriggerCtx := actx.Narrow("is-trigger")
	timestampCtx := actx.Narrow("timestamp")

	plain := make([]plainRow, len(rows))
	for i, r := range rows {
		isTriggerVal, err := revealAsUint64(ctx, isTriggerCtx, uint64(i), r.IsTrigger)
		if err != nil {
			return nil, err
		}
		ts, err := revealAsUint64(ctx, timestampCtx, uint64(i), r.Timestamp)
		if err != nil {
			return nil, err
		}
		plain[i] = plainRow{index: i, isTrigger: isTriggerVal != 0, timestamp: ts, breakdownKey: r.BreakdownKey}
	}

	out := make([]Attributed, len(rows))

	start := 0
	for start < len(rows) {
		end := start + 1
		for end < len(rows) && bytesEqual(rows[end].Pseudonym, rows[start].Pseudonym) {
			end++
		}
		attributeGroup(plain[start:end], windowSeconds, out)
		start = end
	}

	return out, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// attributeGroup walks one user's rows in timestamp order, writing each
// row's outcome into out at its original index.
func attributeGroup(group []plainRow, windowSeconds uint32, out []Attributed) {
	ordered := make([]plainRow, len(group))
	copy(ordered, group)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].timestamp < ordered[j].timestamp })

	var haveSource bool
	var sourceBK *share.BAShare
	var sourceTS uint64

	for _, row := range ordered {
		if !row.isTrigger {
			haveSource = true
			sourceBK = row.breakdownKey
			sourceTS = row.timestamp
			out[row.index] = Attributed{IsAttributedTrigger: false}
			continue
		}
		if haveSource && row.timestamp >= sourceTS && row.timestamp-sourceTS <= uint64(windowSeconds) {
			out[row.index] = Attributed{IsAttributedTrigger: true, BreakdownKey: sourceBK}
		} else {
			out[row.index] = Attributed{IsAttributedTrigger: false}
		}
	}
}
