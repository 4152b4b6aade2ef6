package oprf

import (
	gocontext "context"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/luxfi/ipa/pkg/context"
	"github.com/luxfi/ipa/pkg/field"
	"github.com/luxfi/ipa/pkg/ipaerr"
	"github.com/luxfi/ipa/pkg/share"
	"github.com/luxfi/ipa/protocols/reveal"
)

const evalStepLabel = "eval-dy-prf"

// groupOrder is field.Fp25519OrderHex (secp256k1's group order) as a big.Int, used to run the PRF's
// inversion through field.ModInverse rather than Element.Inv(), matching
// the original's dedicated multiplicative_inverse step rather than a
// generic ring inverse.
var groupOrder = mustBigIntFromHex(field.Fp25519OrderHex)

func mustBigIntFromHex(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("oprf: invalid group order hex")
	}
	return n
}

// EvalDYPRF evaluates the Dodis-Yampolskiy PRF eval_dy_prf(k, mk) =
// 1/(mk+k)·G on a PRF key share k and a match key share mk, both already
// lifted into Field by ConvertToFp25519. mk+k is a single field element
// whose sum is safe to reveal — the match key and PRF key individually
// stay secret — after which inverting and scalar-multiplying the group
// generator are purely local. The result is the pseudonym every record
// sharing the same underlying match key converges to.
func EvalDYPRF(ctx gocontext.Context, ectx *context.Context, recordID uint64, k, mk *share.Share) ([]byte, error) {
	ec := ectx.Narrow(evalStepLabel)

	sum, err := mk.Add(k)
	if err != nil {
		return nil, err
	}

	revealed, err := reveal.Reveal(ctx, ec, recordID, reveal.None, sum)
	if err != nil {
		return nil, err
	}
	if revealed.IsZero() {
		return nil, ipaerr.Errorf(ipaerr.Inconsistent, "oprf: mk+k revealed to zero, PRF undefined at that point")
	}

	revealedInt := new(big.Int).SetBytes(reverseBytes(revealed.Serialize()))
	invInt, ok := field.ModInverse(revealedInt, groupOrder)
	if !ok {
		return nil, ipaerr.Errorf(ipaerr.Inconsistent, "oprf: mk+k shares no inverse with the group order")
	}

	var scalar secp256k1.ModNScalar
	invBytes := make([]byte, 32)
	invInt.FillBytes(invBytes)
	scalar.SetByteSlice(invBytes)

	var point secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&scalar, &point)
	point.ToAffine()

	pub := secp256k1.NewPublicKey(&point.X, &point.Y)
	return pub.SerializeCompressed(), nil
}

func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return out
}
