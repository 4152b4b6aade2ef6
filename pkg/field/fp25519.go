package field

import (
	"encoding/hex"

	"github.com/cronokirby/saferith"
)

// Fp25519OrderHex is the order N of the secp256k1 group, big-endian hex.
// Used as the OPRF scalar field modulus (see DESIGN.md's OPRF group
// substitution note: the retrieved sources carried no curve25519 or
// ristretto implementation, so secp256k1's scalar field stands in for
// F_{p25519} here). Exported so pkg/oprf can run the PRF's inversion
// step through the same modulus outside the Element interface.
const Fp25519OrderHex = "fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141"

func newBigPrimeField(name, modulusHex string, bitLen int) *primeField {
	b, err := hex.DecodeString(modulusHex)
	if err != nil {
		panic("field: invalid modulus hex: " + err.Error())
	}
	nat := new(saferith.Nat).SetBytes(b)
	return &primeField{
		name:    name,
		modulus: saferith.ModulusFromNat(nat),
		bitLen:  bitLen,
		byteLen: (bitLen + 7) / 8,
	}
}

// Fp25519 is the field additively-shared match keys and PRF keys are
// converted into before eval_dy_prf. Its modulus is secp256k1's scalar
// field order rather than the Curve25519 field proper, since the
// OPRF group itself was substituted (see DESIGN.md).
var Fp25519 = newBigPrimeField("Fp25519", Fp25519OrderHex, 256)
