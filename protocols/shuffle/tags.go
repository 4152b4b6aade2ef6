package shuffle

import (
	gocontext "context"
	"fmt"

	"github.com/luxfi/ipa/pkg/context"
	"github.com/luxfi/ipa/pkg/field"
	"github.com/luxfi/ipa/pkg/ipaerr"
	"github.com/luxfi/ipa/pkg/party"
	"github.com/luxfi/ipa/pkg/share"
	"github.com/luxfi/ipa/protocols/multiply"
)

const tagStepLabel = "tag"

// ComputeAndAddTags computes, for every row, the MAC tag τ = Σ_j key_j·
// row_j — the inner product in Gf32Bit between the row's 32-bit limbs
// and the shared keys — and returns each row concatenated with its tag,
// ready for the base shuffle. keys must be exactly one share per row
// limb (one per Gf32Bit word of the untagged row): the tag limb added
// here isn't itself multiplied against a key, so the trailing
// Gf32Bit::ONE that AppendOneKey produces for the verification step must
// NOT be passed in here, or the limb/key counts stop matching.
func ComputeAndAddTags(ctx gocontext.Context, tctx *context.Context, keys []*share.Share, rows []*share.BAShare) ([]*share.BAShare, error) {
	if len(rows) == 0 {
		return nil, ipaerr.Errorf(ipaerr.InvalidConfig, "shuffle: no rows to tag")
	}
	tc := tctx.Narrow(tagStepLabel)
	out := make([]*share.BAShare, len(rows))

	for i, row := range rows {
		limbs := row.ToGf32Bit()
		if len(limbs) != len(keys) {
			return nil, ipaerr.Errorf(ipaerr.InvalidConfig, "shuffle: row has %d Gf32Bit limbs, want %d keys", len(limbs), len(keys))
		}
		rowCtx := tc.Narrow(fmt.Sprintf("row-%d", i))
		var tag *share.Share
		for j, limb := range limbs {
			limbCtx := rowCtx.Narrow(fmt.Sprintf("limb-%d", j))
			prod, err := multiply.Multiply(ctx, limbCtx, 0, limb, keys[j])
			if err != nil {
				return nil, err
			}
			if tag == nil {
				tag = prod
				continue
			}
			tag, err = tag.Add(prod)
			if err != nil {
				return nil, err
			}
		}
		extended, err := share.NewMACExtended(row, tag)
		if err != nil {
			return nil, err
		}
		out[i] = extended
	}
	return out, nil
}

// AppendOneKey appends a trivial share of Gf32Bit::ONE to the caller's
// secret MAC key shares, matching reveal_keys' "last row element is the
// tag, which isn't multiplied by a key" convention: once the keys are
// revealed for verification, the tag limb itself still needs a weight to
// fold into the same keyed sum as the data limbs, and ONE is that
// weight. This is a verification-side helper only — ComputeAndAddTags
// must receive the unextended keys, one per data limb.
func AppendOneKey(self party.Role, keys []*share.Share) []*share.Share {
	return append(append([]*share.Share{}, keys...), share.ShareKnownValue(field.Gf32Bit, self, field.Gf32Bit.One()))
}
