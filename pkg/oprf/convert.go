// Package oprf implements the oblivious pseudorandom function used to turn
// a per-record match key into a stable pseudonym: ConvertToFp25519 lifts
// a boolean-XOR-shared match key into an arithmetic share over the OPRF
// scalar field, and EvalDYPRF evaluates the Dodis-Yampolskiy PRF on the
// result.
package oprf

import (
	gocontext "context"

	"github.com/luxfi/ipa/pkg/context"
	"github.com/luxfi/ipa/pkg/field"
	"github.com/luxfi/ipa/pkg/share"
	"github.com/luxfi/ipa/protocols/convert"
)

// Field is the arithmetic field match keys and PRF keys are converted
// into. Its modulus is the OPRF group's scalar field order.
var Field = field.Fp25519

// ConvertToFp25519 lifts an XOR-shared boolean value (match key, PRF key)
// into a single arithmetic Share over Field. The bit-by-bit conversion
// itself lives in protocols/convert, shared with the breakdown-key and
// trigger-value conversions that run ahead of aggregation.
func ConvertToFp25519(ctx gocontext.Context, cctx *context.Context, recordID uint64, x *share.BAShare) (*share.Share, error) {
	return convert.ToField(ctx, cctx, recordID, Field, x)
}
