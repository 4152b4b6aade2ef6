package field

import (
	"fmt"
	"io"
)

// gf32Poly is the reduction polynomial for GF(2^32): x^32 + x^22 + x^2 +
// x + 1, the primitive polynomial behind the common 32-bit maximal-length
// LFSR tap sequence (taps at 32, 22, 2, 1). The CRC-32 (IEEE) polynomial
// looks like an obvious candidate here but is reducible over GF(2) — it
// factors as (x+1) times a degree-31 irreducible — so it does not define
// a field at all; every element on the (x+1) side of that factorization
// would be a zero divisor rather than invertible. The leading x^32 term
// is implicit (it falls out of the carry-less multiply's high word).
const gf32Poly uint64 = 0x400007

// gf32Field implements Field for GF(2^32) via carry-less multiplication
// (XOR instead of carrying addition) and polynomial reduction. Unlike the
// prime fields above this does not use saferith: GF(2^32) arithmetic is a
// bit-twiddling operation on a single machine word, not modular big-number
// arithmetic, so saferith's Nat/Modulus machinery buys nothing here (see
// DESIGN.md).
type gf32Field struct{}

// Gf32Bit is the GF(2^32) field used for shuffle MAC tags.
var Gf32Bit Field = gf32Field{}

func (gf32Field) Name() string { return "Gf32Bit" }
func (gf32Field) BitLen() int  { return 32 }
func (gf32Field) ByteLen() int { return 4 }

func (f gf32Field) Zero() Element { return gf32Element(0) }
func (f gf32Field) One() Element  { return gf32Element(1) }

func (f gf32Field) NewElement(v uint64) Element { return gf32Element(uint32(v)) }

func (f gf32Field) Random(rand io.Reader) (Element, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("gf32: reading randomness: %w", err)
	}
	return gf32Element(leU32(buf)), nil
}

func (f gf32Field) Deserialize(data []byte) (Element, error) {
	if len(data) != 4 {
		return nil, fmt.Errorf("gf32: expected 4 bytes, got %d", len(data))
	}
	return gf32Element(leU32(data)), nil
}

// gf32Element is a GF(2^32) value: 32 bits packed into a uint32, with
// addition = XOR and multiplication = carry-less multiply + reduction.
type gf32Element uint32

func (e gf32Element) Field() Field { return Gf32Bit }

func (e gf32Element) Add(o Element) Element {
	return e ^ o.(gf32Element)
}

// Sub is the same as Add in characteristic 2.
func (e gf32Element) Sub(o Element) Element {
	return e ^ o.(gf32Element)
}

func (e gf32Element) Mul(o Element) Element {
	a, b := uint64(e), uint64(o.(gf32Element))
	var product uint64
	for b != 0 {
		if b&1 != 0 {
			product ^= a
		}
		a <<= 1
		b >>= 1
	}
	return gf32Element(gf32Reduce(product))
}

func (e gf32Element) Neg() Element { return e }

func (e gf32Element) Inv() (Element, bool) {
	if e == 0 {
		return nil, false
	}
	// GF(2^32)* has order 2^32-1; x^(2^32-2) = x^-1 by Fermat. Square-and-
	// multiply over the fixed 32-bit exponent.
	result := gf32Element(1)
	base := e
	exp := uint32(0xFFFFFFFE) // 2^32 - 2
	for exp != 0 {
		if exp&1 != 0 {
			result = result.Mul(base).(gf32Element)
		}
		base = base.Mul(base).(gf32Element)
		exp >>= 1
	}
	return result, true
}

func (e gf32Element) IsZero() bool { return e == 0 }

func (e gf32Element) Equal(o Element) bool {
	other, ok := o.(gf32Element)
	return ok && e == other
}

func (e gf32Element) Serialize() []byte {
	return []byte{byte(e), byte(e >> 8), byte(e >> 16), byte(e >> 24)}
}

func (e gf32Element) String() string {
	return fmt.Sprintf("Gf32Bit(%08x)", uint32(e))
}

func leU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// gf32Reduce folds a up-to-63-bit carry-less product back down into 32
// bits modulo gf32Poly.
func gf32Reduce(product uint64) uint32 {
	for bit := 62; bit >= 32; bit-- {
		if product&(1<<uint(bit)) != 0 {
			product ^= gf32Poly << uint(bit-32)
		}
	}
	return uint32(product)
}
