package shuffle

import (
	"bytes"
	gocontext "context"
	"fmt"

	"github.com/luxfi/ipa/pkg/boolean"
	"github.com/luxfi/ipa/pkg/context"
	"github.com/luxfi/ipa/pkg/field"
	"github.com/luxfi/ipa/pkg/hash"
	"github.com/luxfi/ipa/pkg/ipaerr"
	"github.com/luxfi/ipa/pkg/party"
	"github.com/luxfi/ipa/pkg/share"
	"github.com/luxfi/ipa/protocols/reveal"
)

const verifyStepLabel = "verify"
const revealKeyStepLabel = "reveal-mac-key"

// VerifyShuffle is verify_shuffle: it reveals the MAC keys ComputeAndAddTags
// used while they were still secret, then uses them two ways. First, each
// helper recomputes the MAC tag over the one row‖tag value it fully
// reconstructed mid-shuffle (msgs) and checks it against the tag the row
// itself carries — a cheater cannot have produced a tag consistent with
// keys revealed only after the fact, so any row tampered with before or
// during the shuffle is caught here. Second, every secret value a row
// carries ends up held by two adjacent helpers after the shuffle (a by H3
// and H1, b by H1 and H2, c by H2 and H3); crossCheck hashes each copy,
// keyed by the same revealed MAC keys, and compares with the other
// holder, catching a helper that tampered with its own copy of the
// replicated share without touching the value it was tagged against.
//
// keys are the secret per-limb MAC key shares passed to ComputeAndAddTags
// (unextended); msgs is the IntermediateMessages ShuffleBatch returned for
// this helper; rowBits is the data row's width before the 32-bit tag was
// appended.
func VerifyShuffle(ctx gocontext.Context, vctx *context.Context, keys []*share.Share, left, right []*boolean.BA, msgs IntermediateMessages, rowBits int) error {
	vc := vctx.Narrow(verifyStepLabel)
	self := vc.Role()

	revealed, err := revealKeys(ctx, vc, keys)
	if err != nil {
		return err
	}

	var reconstructed []*boolean.BA
	switch self {
	case party.H1:
		reconstructed = msgs.Round3Reconstructed
	case party.H2:
		reconstructed = msgs.Round1Reconstructed
	case party.H3:
		reconstructed = msgs.Round2Reconstructed
	default:
		return ipaerr.Errorf(ipaerr.InvalidConfig, "shuffle: unknown role %s", self)
	}
	if err := verifyTags(reconstructed, rowBits, revealed); err != nil {
		return err
	}

	// Both exchanges always run, so a peer waiting for this helper's second
	// digest is not left blocked after a mismatch on the first; the first
	// mismatch found is the one returned.
	var first, second error
	switch self {
	case party.H1:
		first = crossCheck(ctx, vc, "a", party.H3, left, revealed)
		second = crossCheck(ctx, vc, "b", party.H2, right, revealed)
	case party.H2:
		first = crossCheck(ctx, vc, "b", party.H1, left, revealed)
		second = crossCheck(ctx, vc, "c", party.H3, right, revealed)
	case party.H3:
		first = crossCheck(ctx, vc, "c", party.H2, left, revealed)
		second = crossCheck(ctx, vc, "a", party.H1, right, revealed)
	}
	if first != nil {
		return first
	}
	return second
}

// revealKeys is reveal_keys: it opens every secret MAC key share to all
// three helpers (nothing is protected by keeping them secret once the
// shuffle they authenticated has already run), first using AppendOneKey
// to extend keys with the trailing Gf32Bit::ONE weight the tag limb
// needs, since the recomputed keyed sum below is over row‖tag, not just
// the data row.
func revealKeys(ctx gocontext.Context, kctx *context.Context, keys []*share.Share) ([]field.Element, error) {
	kc := kctx.Narrow(revealKeyStepLabel)
	extended := AppendOneKey(kc.Role(), keys)
	out := make([]field.Element, len(extended))
	for i, k := range extended {
		rc := kc.Narrow(fmt.Sprintf("key-%d", i))
		v, err := reveal.Reveal(ctx, rc, uint64(i), reveal.None, k)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// verifyTags is compute_row_hash's tag-checking use: for an honestly
// tagged row, Σ_j key_j·(row‖tag)_j is identically zero, since the tag
// limb was constructed as Σ_j key_j·row_j and XOR is its own inverse. Any
// row whose content or tag changed after tagging no longer satisfies
// this, so a nonzero sum is proof of tampering.
func verifyTags(rows []*boolean.BA, rowBits int, keys []field.Element) error {
	for i, row := range rows {
		if row.Bits() != rowBits+32 {
			return ipaerr.Errorf(ipaerr.ShuffleValidationFailed, "shuffle: reconstructed row %d has width %d, want %d", i, row.Bits(), rowBits+32)
		}
		limbs := row.ToGf32Bit()
		if len(limbs) != len(keys) {
			return ipaerr.Errorf(ipaerr.ShuffleValidationFailed, "shuffle: reconstructed row %d has %d limbs, want %d keys", i, len(limbs), len(keys))
		}
		acc := field.Gf32Bit.Zero()
		for j, limb := range limbs {
			acc = acc.Add(limb.Mul(keys[j]))
		}
		if !acc.IsZero() {
			return ipaerr.Errorf(ipaerr.ShuffleValidationFailed, "shuffle: row %d fails MAC tag check", i)
		}
	}
	return nil
}

type hashWire struct{ Bytes []byte }

// crossCheck hashes rows under label, keyed by the revealed MAC keys, and
// exchanges the digest with peer, the one other helper that is supposed
// to hold the exact same values.
func crossCheck(ctx gocontext.Context, vc *context.Context, label string, peer party.Role, rows []*boolean.BA, keys []field.Element) error {
	h := hash.New()
	for _, k := range keys {
		if err := h.WriteAny(&hash.BytesWithDomain{TheDomain: "mac-key", Bytes: k.Serialize()}); err != nil {
			return ipaerr.New(ipaerr.Serialization, err)
		}
	}
	for _, row := range rows {
		if err := h.WriteAny(&hash.BytesWithDomain{TheDomain: label, Bytes: row.Bytes()}); err != nil {
			return ipaerr.New(ipaerr.Serialization, err)
		}
	}
	mine := h.Sum()

	sendCh := vc.SendChannel(peer, party.Left)
	if err := sendCh.Send(ctx, 0, hashWire{Bytes: mine}); err != nil {
		return ipaerr.New(ipaerr.Network, err)
	}
	recvCh := vc.RecvChannel(peer, party.Left)
	var w hashWire
	if err := recvCh.Receive(ctx, 0, &w); err != nil {
		return ipaerr.New(ipaerr.Network, err)
	}
	if !bytes.Equal(mine, w.Bytes) {
		return ipaerr.Errorf(ipaerr.ShuffleValidationFailed, "shuffle: %s copy disagrees with helper %s", label, peer)
	}
	return nil
}
