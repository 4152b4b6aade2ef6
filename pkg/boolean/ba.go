// Package boolean implements the fixed-width boolean arrays BA_k:
// byte-aligned bit vectors used for match keys, trigger flags, breakdown
// keys, trigger values, timestamps, and the shuffle's MAC-tagged rows.
package boolean

import (
	"fmt"

	"github.com/luxfi/ipa/pkg/field"
)

// BA is a bit vector of a fixed width Bits, serialized as the smallest
// number of bytes that holds Bits bits (little-endian, high bits of the
// last byte unused and always zero).
//
// Rust's BooleanArray is parameterized by a const generic bit width; Go
// has no const generics, so BA carries its width as a runtime field. Every
// constructor validates that the width is consistent with its data, which
// keeps the invariant just as tight as the Rust type-level one.
type BA struct {
	bits int
	data []byte
}

// New returns the zero BA of the given bit width.
func New(bits int) *BA {
	return &BA{bits: bits, data: make([]byte, byteLen(bits))}
}

func byteLen(bits int) int { return (bits + 7) / 8 }

// FromBytes builds a BA from an exact byte-aligned encoding.
func FromBytes(bits int, data []byte) (*BA, error) {
	if len(data) != byteLen(bits) {
		return nil, fmt.Errorf("boolean: BA%d needs %d bytes, got %d", bits, byteLen(bits), len(data))
	}
	out := make([]byte, len(data))
	copy(out, data)
	maskHighBits(out, bits)
	return &BA{bits: bits, data: out}, nil
}

// Bits returns the bit width.
func (b *BA) Bits() int { return b.bits }

// Bytes returns the canonical little-endian byte encoding.
func (b *BA) Bytes() []byte {
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

// Bit returns the value of bit i (0 = least significant).
func (b *BA) Bit(i int) bool {
	if i < 0 || i >= b.bits {
		return false
	}
	return b.data[i/8]&(1<<uint(i%8)) != 0
}

// SetBit sets bit i to v.
func (b *BA) SetBit(i int, v bool) {
	if i < 0 || i >= b.bits {
		return
	}
	if v {
		b.data[i/8] |= 1 << uint(i%8)
	} else {
		b.data[i/8] &^= 1 << uint(i%8)
	}
}

// Xor computes the bitwise XOR of two same-width arrays; this is the
// replicated-share "+" operation over boolean arrays (GF(2) addition).
func (b *BA) Xor(o *BA) (*BA, error) {
	if b.bits != o.bits {
		return nil, fmt.Errorf("boolean: width mismatch %d != %d", b.bits, o.bits)
	}
	out := New(b.bits)
	for i := range out.data {
		out.data[i] = b.data[i] ^ o.data[i]
	}
	return out, nil
}

// Concat appends o's bits after b's, returning a BA of width b.bits+o.bits.
// This is how shuffle's row‖tag concatenation is built: the row occupies
// the low bits, the MAC tag the high bits.
func (b *BA) Concat(o *BA) *BA {
	total := b.bits + o.bits
	out := New(total)
	for i := 0; i < b.bits; i++ {
		out.SetBit(i, b.Bit(i))
	}
	for i := 0; i < o.bits; i++ {
		out.SetBit(b.bits+i, o.Bit(i))
	}
	return out
}

// Split divides a BA of width prefixBits+suffixBits back into its two
// halves. Used to invert Concat when checking the round-trip invariant and
// to pull the MAC tag back off a shuffled row.
func (b *BA) Split(prefixBits int) (prefix, suffix *BA, err error) {
	if prefixBits < 0 || prefixBits > b.bits {
		return nil, nil, fmt.Errorf("boolean: split point %d out of range for BA%d", prefixBits, b.bits)
	}
	suffixBits := b.bits - prefixBits
	prefix = New(prefixBits)
	suffix = New(suffixBits)
	for i := 0; i < prefixBits; i++ {
		prefix.SetBit(i, b.Bit(i))
	}
	for i := 0; i < suffixBits; i++ {
		suffix.SetBit(i, b.Bit(prefixBits+i))
	}
	return prefix, suffix, nil
}

// ToGf32Bit converts the array into a sequence of GF(2^32) limbs,
// little-endian, zero-padding the final limb's high bits when Bits is not
// a multiple of 32.
func (b *BA) ToGf32Bit() []field.Element {
	numLimbs := (b.bits + 31) / 32
	limbs := make([]field.Element, numLimbs)
	for i := 0; i < numLimbs; i++ {
		var word uint32
		for bit := 0; bit < 32; bit++ {
			idx := i*32 + bit
			if idx >= b.bits {
				break
			}
			if b.Bit(idx) {
				word |= 1 << uint(bit)
			}
		}
		limbs[i] = field.Gf32Bit.NewElement(uint64(word))
	}
	return limbs
}

// FromGf32Bit is the inverse of ToGf32Bit: it packs limbs' low bits back
// into a BA of the given width, truncating any padding bits from the
// final limb.
func FromGf32Bit(bits int, limbs []field.Element) (*BA, error) {
	if len(limbs) != (bits+31)/32 {
		return nil, fmt.Errorf("boolean: BA%d needs %d Gf32Bit limbs, got %d", bits, (bits+31)/32, len(limbs))
	}
	out := New(bits)
	for i, limb := range limbs {
		data := limb.Serialize()
		word := uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24
		for bit := 0; bit < 32; bit++ {
			idx := i*32 + bit
			if idx >= bits {
				break
			}
			out.SetBit(idx, word&(1<<uint(bit)) != 0)
		}
	}
	return out, nil
}

// AsUint64 interprets the low 64 bits as a little-endian unsigned integer,
// useful for match keys (BA64) and small counters.
func (b *BA) AsUint64() uint64 {
	var v uint64
	for i := 0; i < b.bits && i < 64; i++ {
		if b.Bit(i) {
			v |= 1 << uint(i)
		}
	}
	return v
}

// FromUint64 builds a BA of the given width from the low bits of v.
func FromUint64(bits int, v uint64) *BA {
	out := New(bits)
	for i := 0; i < bits && i < 64; i++ {
		if v&(1<<uint(i)) != 0 {
			out.SetBit(i, true)
		}
	}
	return out
}

func maskHighBits(data []byte, bits int) {
	used := bits % 8
	if used == 0 || len(data) == 0 {
		return
	}
	mask := byte(1<<uint(used)) - 1
	data[len(data)-1] &= mask
}
