// Package hash provides the domain-separated hashing used by the malicious
// shuffle's row-hash commitments and reveal checks.
package hash

import (
	"encoding/binary"

	"github.com/zeebo/blake3"
)

// Size is the output length in bytes of Sum().
const Size = 32

// Hash is an incremental, domain-separated hash state. Zero value is not
// usable; create one with New.
type Hash struct {
	h *blake3.Hasher
}

// New returns a fresh Hash state keyed by a fixed, protocol-wide context
// string so that accidental collisions with other uses of blake3 elsewhere
// in the process are structurally impossible.
func New() *Hash {
	h, _ := blake3.NewKeyed(rootKey)
	return &Hash{h: h}
}

// rootKey is a fixed 32-byte key derived once via blake3.DeriveKey, giving
// this package's hashes their own keyspace distinct from any other blake3
// user in the binary.
var rootKey = func() []byte {
	key := make([]byte, 32)
	blake3.DeriveKey("ipa 2024 row-hash", []byte("root"), key)
	return key
}()

// Clone returns an independent copy of the current state, letting callers
// branch a hash (e.g. one branch per candidate permutation) without
// recomputing the common prefix.
func (hs *Hash) Clone() *Hash {
	return &Hash{h: hs.h.Clone()}
}

// Writable is anything that can feed itself into a Hash with its own
// domain tag.
type Writable interface {
	WriteTo(hs *Hash) error
}

// BytesWithDomain writes Bytes into the hash prefixed by a length-framed
// domain tag, so that "Message"-domain bytes can never collide with
// "Row"-domain bytes of the same length.
type BytesWithDomain struct {
	TheDomain string
	Bytes     []byte
}

func (b *BytesWithDomain) WriteTo(hs *Hash) error {
	hs.writeFramed([]byte(b.TheDomain))
	hs.writeFramed(b.Bytes)
	return nil
}

// WriteAny writes any Writable's framed representation into the hash.
func (hs *Hash) WriteAny(w Writable) error {
	return w.WriteTo(hs)
}

// Write implements io.Writer, appending raw, undomained bytes. Prefer
// WriteAny/BytesWithDomain for anything crossing a trust boundary.
func (hs *Hash) Write(p []byte) (int, error) {
	return hs.h.Write(p)
}

func (hs *Hash) writeFramed(b []byte) {
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(b)))
	_, _ = hs.h.Write(lenBuf[:])
	_, _ = hs.h.Write(b)
}

// Sum finalizes and returns the Size-byte digest. The underlying state is
// unaffected, so Sum can be called multiple times (e.g. to checkpoint and
// keep extending).
func (hs *Hash) Sum() []byte {
	out := make([]byte, Size)
	d := hs.h.Digest()
	_, _ = d.Read(out)
	return out
}

// RowHash hashes a single row's canonical byte representation under the
// "Row" domain, the commitment each helper computes before the shuffle's
// MAC-verification reveal.
func RowHash(row []byte) []byte {
	hs := New()
	_ = hs.WriteAny(&BytesWithDomain{TheDomain: "Row", Bytes: row})
	return hs.Sum()
}
