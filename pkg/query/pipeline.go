package query

import (
	"bytes"
	gocontext "context"
	"fmt"
	"io"
	"sort"

	"github.com/luxfi/ipa/pkg/boolean"
	"github.com/luxfi/ipa/pkg/context"
	"github.com/luxfi/ipa/pkg/field"
	"github.com/luxfi/ipa/pkg/ipaerr"
	"github.com/luxfi/ipa/pkg/oprf"
	"github.com/luxfi/ipa/pkg/report"
	"github.com/luxfi/ipa/pkg/share"
	"github.com/luxfi/ipa/protocols/aggregate"
	"github.com/luxfi/ipa/protocols/attribution"
	"github.com/luxfi/ipa/protocols/shuffle"
)

const prfKeyStepLabel = "prf-key"
const pseudonymStepLabel = "pseudonym"
const matchKeyStepLabel = "match-key"
const shuffleStepLabel = "shuffle"
const macKeyStepLabel = "mac-key"

type pseudonymRow struct {
	pseudonym []byte
	report    *report.Report
}

// prfKeyShare derives this helper's share of the query's jointly-held PRF
// key: the PRSS generator's own (left, right) draw at a fixed coordinate
// already satisfies the replicated invariant left_i = right_{i-1} (PRSS's
// Right_i = Left_{i+1} by construction), so no communication is needed to
// turn it into a valid Share of a value no single helper ever learns.
func prfKeyShare(pctx *context.Context) (*share.Share, error) {
	f := oprf.Field
	s := pctx.Narrow(prfKeyStepLabel)
	left, err := s.PRSS().Left(f, s.Step(), 0)
	if err != nil {
		return nil, err
	}
	right, err := s.PRSS().Right(f, s.Step(), 0)
	if err != nil {
		return nil, err
	}
	return share.New(left, right)
}

// macKeyShares draws one secret Gf32Bit MAC key share per row limb, the
// same PRSS-as-direct-share trick prfKeyShare uses: each limb gets its
// own narrowed step so the keys are independent, and no communication is
// needed to turn a PRSS draw into a valid replicated share.
func macKeyShares(pctx *context.Context, numLimbs int) ([]*share.Share, error) {
	keys := make([]*share.Share, numLimbs)
	for i := 0; i < numLimbs; i++ {
		kc := pctx.Narrow(fmt.Sprintf("%s-%d", macKeyStepLabel, i))
		left, err := kc.PRSS().Left(field.Gf32Bit, kc.Step(), 0)
		if err != nil {
			return nil, err
		}
		right, err := kc.PRSS().Right(field.Gf32Bit, kc.Step(), 0)
		if err != nil {
			return nil, err
		}
		k, err := share.New(left, right)
		if err != nil {
			return nil, err
		}
		keys[i] = k
	}
	return keys, nil
}

// concatRow folds a Report's five fields into one wide BAShare, match_key
// first through timestamp last, so the whole row can be MAC-tagged and
// shuffled as a single unit instead of field-by-field.
func concatRow(r *report.Report) (*share.BAShare, error) {
	left := r.MatchKey.Left().
		Concat(r.IsTrigger.Left()).
		Concat(r.BreakdownKey.Left()).
		Concat(r.TriggerValue.Left()).
		Concat(r.Timestamp.Left())
	right := r.MatchKey.Right().
		Concat(r.IsTrigger.Right()).
		Concat(r.BreakdownKey.Right()).
		Concat(r.TriggerValue.Right()).
		Concat(r.Timestamp.Right())
	return share.NewBA(left, right)
}

// splitBits splits the left and right halves of a row by the same prefix
// width, returning the prefix share components and the remaining suffix
// components to keep splitting.
func splitBits(leftRest, rightRest *boolean.BA, bits int) (left, right, restLeft, restRight *boolean.BA, err error) {
	left, restLeft, err = leftRest.Split(bits)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	right, restRight, err = rightRest.Split(bits)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return left, right, restLeft, restRight, nil
}

// splitRow is concatRow's inverse: it pulls match_key, is_trigger,
// breakdown_key, trigger_value and timestamp back apart from one combined
// row, in the same fixed field order ParseRow reads them in.
func splitRow(row *share.BAShare, w report.Widths) (*report.Report, error) {
	leftRest, rightRest := row.Left(), row.Right()

	mkL, mkR, leftRest, rightRest, err := splitBits(leftRest, rightRest, report.MatchKeyBits)
	if err != nil {
		return nil, ipaerr.Errorf(ipaerr.InvalidConfig, "query: %v", err)
	}
	itL, itR, leftRest, rightRest, err := splitBits(leftRest, rightRest, report.IsTriggerBits)
	if err != nil {
		return nil, ipaerr.Errorf(ipaerr.InvalidConfig, "query: %v", err)
	}
	bkL, bkR, leftRest, rightRest, err := splitBits(leftRest, rightRest, w.BreakdownKeyBits)
	if err != nil {
		return nil, ipaerr.Errorf(ipaerr.InvalidConfig, "query: %v", err)
	}
	tvL, tvR, leftRest, rightRest, err := splitBits(leftRest, rightRest, w.TriggerValueBits)
	if err != nil {
		return nil, ipaerr.Errorf(ipaerr.InvalidConfig, "query: %v", err)
	}

	mk, err := share.NewBA(mkL, mkR)
	if err != nil {
		return nil, err
	}
	it, err := share.NewBA(itL, itR)
	if err != nil {
		return nil, err
	}
	bk, err := share.NewBA(bkL, bkR)
	if err != nil {
		return nil, err
	}
	tv, err := share.NewBA(tvL, tvR)
	if err != nil {
		return nil, err
	}
	ts, err := share.NewBA(leftRest, rightRest)
	if err != nil {
		return nil, err
	}

	return &report.Report{MatchKey: mk, IsTrigger: it, BreakdownKey: bk, TriggerValue: tv, Timestamp: ts}, nil
}

// shuffleRows runs the malicious oblivious shuffle over the query's rows
// before any pseudonym is computed, which is the whole point of running
// it here rather than after: EvalDYPRF below reveals its output, so
// whatever order reaches it determines what an input-row-to-pseudonym
// linkage an observer could reconstruct. Tagging, shuffling and verifying
// first means the order the OPRF ever sees has already been obliviously
// permuted and authenticated, with no input-order leak left to close.
func shuffleRows(ctx gocontext.Context, qctx *context.Context, rows []*report.Report, w report.Widths) ([]*report.Report, error) {
	if len(rows) == 0 {
		return rows, nil
	}

	combined := make([]*share.BAShare, len(rows))
	for i, r := range rows {
		row, err := concatRow(r)
		if err != nil {
			return nil, err
		}
		combined[i] = row
	}
	rowBits := combined[0].Bits()
	numLimbs := len(combined[0].ToGf32Bit())

	sc := qctx.Narrow(shuffleStepLabel)
	keys, err := macKeyShares(sc, numLimbs)
	if err != nil {
		return nil, err
	}

	tagged, err := shuffle.ComputeAndAddTags(ctx, sc, keys, combined)
	if err != nil {
		return nil, err
	}

	lefts := make([]*boolean.BA, len(tagged))
	rights := make([]*boolean.BA, len(tagged))
	for i, row := range tagged {
		lefts[i], rights[i] = row.Left(), row.Right()
	}

	shuffledLeft, shuffledRight, msgs, err := shuffle.ShuffleBatch(ctx, sc, lefts, rights, rowBits+32)
	if err != nil {
		return nil, err
	}
	if err := shuffle.VerifyShuffle(ctx, sc, keys, shuffledLeft, shuffledRight, msgs, rowBits); err != nil {
		return nil, err
	}

	out := make([]*report.Report, len(shuffledLeft))
	for i := range shuffledLeft {
		extended, err := share.NewBA(shuffledLeft[i], shuffledRight[i])
		if err != nil {
			return nil, err
		}
		plain, _, err := share.SplitMACExtended(extended, rowBits)
		if err != nil {
			return nil, err
		}
		r, err := splitRow(plain, w)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// Execute runs the full OPRF IPA pipeline for one helper: parse the input
// stream, shuffle and MAC-verify the rows, pseudonymize and sort by the
// revealed pseudonym, attribute trigger events to their source, cap each user's total,
// and aggregate into a breakdown-key histogram.
//
// querySize truncates the parsed input before processing if positive;
// the original does not validate querySize <= len(rows) either, so a
// querySize larger than the input is left as the caller's contract here
// too (see DESIGN.md).
func Execute(ctx gocontext.Context, qctx *context.Context, cfg IpaQueryConfig, input io.Reader, querySize int) ([]*share.Share, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rows, err := report.ParseStream(input, cfg.Widths())
	if err != nil {
		return nil, err
	}
	if querySize > 0 && querySize < len(rows) {
		rows = rows[:querySize]
	}

	rows, err = shuffleRows(ctx, qctx, rows, cfg.Widths())
	if err != nil {
		return nil, err
	}

	k, err := prfKeyShare(qctx)
	if err != nil {
		return nil, err
	}

	pctx := qctx.Narrow(pseudonymStepLabel)
	pseudonymRows := make([]pseudonymRow, len(rows))
	for i, r := range rows {
		rid := uint64(i)
		mctx := pctx.Narrow(matchKeyStepLabel)
		mk, err := oprf.ConvertToFp25519(ctx, mctx, rid, r.MatchKey)
		if err != nil {
			return nil, err
		}
		pseudonym, err := oprf.EvalDYPRF(ctx, pctx, rid, k, mk)
		if err != nil {
			return nil, err
		}
		pseudonymRows[i] = pseudonymRow{pseudonym: pseudonym, report: r}
	}

	// Rows are sorted locally by their already-revealed pseudonym: since
	// every helper computes the identical pseudonym bytes for the same
	// record (eval_dy_prf's output is revealed by construction, the same
	// tradeoff the OPRF makes to let helpers group a user's records at
	// all), a deterministic local stable sort reproduces exactly the
	// ordering protocols/sort.GeneratePermutation would settle on, without
	// the overhead of routing already-public data back through a secure
	// permutation. See DESIGN.md.
	sort.SliceStable(pseudonymRows, func(i, j int) bool {
		return bytes.Compare(pseudonymRows[i].pseudonym, pseudonymRows[j].pseudonym) < 0
	})

	attribRows := make([]attribution.Row, len(pseudonymRows))
	for i, pr := range pseudonymRows {
		attribRows[i] = attribution.Row{
			Pseudonym:    pr.pseudonym,
			IsTrigger:    pr.report.IsTrigger,
			BreakdownKey: pr.report.BreakdownKey,
			Timestamp:    pr.report.Timestamp,
		}
	}
	actx := qctx.Narrow("attribution")
	attributed, err := attribution.Attribute(ctx, actx, attribRows, cfg.AttributionWindowSeconds)
	if err != nil {
		return nil, err
	}
	if len(attributed) != len(pseudonymRows) {
		return nil, ipaerr.Errorf(ipaerr.Inconsistent, "query: attribution returned %d rows for %d inputs", len(attributed), len(pseudonymRows))
	}

	contributions := make([]aggregate.Contribution, len(pseudonymRows))
	for i, pr := range pseudonymRows {
		a := attributed[i]
		contributions[i] = aggregate.Contribution{
			Pseudonym:    pr.pseudonym,
			Attributed:   a.IsAttributedTrigger,
			BreakdownKey: a.BreakdownKey,
			TriggerValue: pr.report.TriggerValue,
		}
	}

	gctx := qctx.Narrow("aggregate")
	return aggregate.CapAndAggregate(ctx, gctx, contributions, cfg.PerUserCreditCap, cfg.MaxBreakdownKey, cfg.BreakdownKeyBits())
}
