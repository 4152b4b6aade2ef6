// Package field implements the finite fields used across the runtime:
// the small prime fields F_31 and F_{2^31-1}, a 32-bit prime field, and
// GF(2^32). All variants expose the same Field/Element interfaces so
// that the rest of the core (replicated sharing, PRSS, shuffle MAC tags)
// can be generic over the choice of field.
package field

import (
	"fmt"
	"io"

	"github.com/cronokirby/saferith"
)

// Field describes a finite field: its modulus, its canonical serialized
// width, and constructors for its elements.
type Field interface {
	// Name identifies the field for debugging and error messages.
	Name() string
	// BitLen is the number of bits needed to represent any element.
	BitLen() int
	// ByteLen is the fixed serialized width of any element.
	ByteLen() int
	Zero() Element
	One() Element
	NewElement(v uint64) Element
	Random(rand io.Reader) (Element, error)
	// Deserialize parses exactly ByteLen() bytes into an Element.
	Deserialize(data []byte) (Element, error)
}

// Element is a single value of some Field. All operations are closed: the
// result is always reduced modulo the field's modulus.
type Element interface {
	Field() Field
	Add(Element) Element
	Sub(Element) Element
	Mul(Element) Element
	Neg() Element
	// Inv returns the multiplicative inverse, or false if the receiver is
	// zero.
	Inv() (Element, bool)
	IsZero() bool
	Equal(Element) bool
	// Serialize writes the element's canonical fixed-width little-endian
	// encoding.
	Serialize() []byte
	String() string
}

// primeField is a Field backed by saferith constant-time modular
// arithmetic, parameterized by an arbitrary prime modulus. F_31,
// F_{2^31-1} and the 32-bit prime field are all instances of this one
// implementation.
type primeField struct {
	name    string
	modulus *saferith.Modulus
	bitLen  int
	byteLen int
}

func newPrimeField(name string, p uint64, bitLen int) *primeField {
	nat := new(saferith.Nat).SetUint64(p)
	return &primeField{
		name:    name,
		modulus: saferith.ModulusFromNat(nat),
		bitLen:  bitLen,
		byteLen: (bitLen + 7) / 8,
	}
}

func (f *primeField) Name() string  { return f.name }
func (f *primeField) BitLen() int   { return f.bitLen }
func (f *primeField) ByteLen() int  { return f.byteLen }

func (f *primeField) Zero() Element { return f.NewElement(0) }
func (f *primeField) One() Element  { return f.NewElement(1) }

func (f *primeField) NewElement(v uint64) Element {
	nat := new(saferith.Nat).SetUint64(v)
	nat.Mod(nat, f.modulus)
	return &primeElement{f: f, v: nat}
}

func (f *primeField) Random(rand io.Reader) (Element, error) {
	buf := make([]byte, f.byteLen+8) // oversample to reduce modulo bias
	if _, err := io.ReadFull(rand, buf); err != nil {
		return nil, fmt.Errorf("field: reading randomness: %w", err)
	}
	nat := new(saferith.Nat).SetBytes(buf)
	nat.Mod(nat, f.modulus)
	return &primeElement{f: f, v: nat}, nil
}

func (f *primeField) Deserialize(data []byte) (Element, error) {
	if len(data) != f.byteLen {
		return nil, fmt.Errorf("field %s: expected %d bytes, got %d", f.name, f.byteLen, len(data))
	}
	nat := new(saferith.Nat).SetBytes(reverse(data))
	nat.Mod(nat, f.modulus)
	return &primeElement{f: f, v: nat}, nil
}

type primeElement struct {
	f *primeField
	v *saferith.Nat
}

func (e *primeElement) Field() Field { return e.f }

func (e *primeElement) Add(o Element) Element {
	other := o.(*primeElement)
	z := new(saferith.Nat).ModAdd(e.v, other.v, e.f.modulus)
	return &primeElement{f: e.f, v: z}
}

func (e *primeElement) Sub(o Element) Element {
	other := o.(*primeElement)
	z := new(saferith.Nat).ModSub(e.v, other.v, e.f.modulus)
	return &primeElement{f: e.f, v: z}
}

func (e *primeElement) Mul(o Element) Element {
	other := o.(*primeElement)
	z := new(saferith.Nat).ModMul(e.v, other.v, e.f.modulus)
	return &primeElement{f: e.f, v: z}
}

func (e *primeElement) Neg() Element {
	zero := new(saferith.Nat).SetUint64(0)
	z := new(saferith.Nat).ModSub(zero, e.v, e.f.modulus)
	return &primeElement{f: e.f, v: z}
}

func (e *primeElement) Inv() (Element, bool) {
	if e.IsZero() {
		return nil, false
	}
	z := new(saferith.Nat).ModInverse(e.v, e.f.modulus)
	return &primeElement{f: e.f, v: z}, true
}

func (e *primeElement) IsZero() bool {
	return e.v.Eq(new(saferith.Nat).SetUint64(0)) == 1
}

func (e *primeElement) Equal(o Element) bool {
	other, ok := o.(*primeElement)
	if !ok || other.f != e.f {
		return false
	}
	return e.v.Eq(other.v) == 1
}

func (e *primeElement) Serialize() []byte {
	out := make([]byte, e.f.byteLen)
	copy(out, reverse(e.v.Bytes()))
	return out
}

func (e *primeElement) String() string {
	return fmt.Sprintf("%s(%x)", e.f.name, e.v.Bytes())
}

// reverse flips byte order; saferith.Nat.Bytes()/SetBytes() are
// big-endian, while wire serialization here is little-endian.
func reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return out
}

var (
	// Fp31 is F_31, used throughout the test suite.
	Fp31 = newPrimeField("F_31", 31, 5)
	// FpMersenne31 is F_{2^31-1}, a Mersenne prime used for bitwise-sum
	// tests.
	FpMersenne31 = newPrimeField("F_{2^31-1}", 2147483647, 31)
	// Fp32BitPrime is the 32-bit prime field: 2^32 - 5.
	Fp32BitPrime = newPrimeField("Fp32BitPrime", 4294967291, 32)
)
