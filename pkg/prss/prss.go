// Package prss implements pairwise pseudo-random secret sharing: each
// helper shares one 32-byte key with its left neighbor and one with its
// right neighbor, and derives deterministic per-(step, record_id)
// randomness from them via HKDF-SHA256.
package prss

import (
	"crypto/sha256"
	"encoding/binary"
	"io"

	"github.com/luxfi/ipa/pkg/field"
	"github.com/luxfi/ipa/pkg/ipaerr"
	"github.com/luxfi/ipa/pkg/step"
	"golang.org/x/crypto/hkdf"
)

// KeyLen is the size in bytes of a pairwise PRSS key.
const KeyLen = 32

// Generator draws deterministic, pairwise-shared randomness for one
// helper. leftKey is the key this helper shares with its left neighbor,
// rightKey the key it shares with its right neighbor — the same naming
// convention as party.Direction, so that a helper's Right() draw always
// equals its right neighbor's Left() draw — the zero-share property
// rests on this.
type Generator struct {
	leftKey, rightKey [KeyLen]byte
}

// New builds a Generator from two previously agreed-upon keys.
func New(leftKey, rightKey []byte) (*Generator, error) {
	if len(leftKey) != KeyLen || len(rightKey) != KeyLen {
		return nil, ipaerr.Errorf(ipaerr.InvalidConfig, "prss: keys must be %d bytes", KeyLen)
	}
	g := &Generator{}
	copy(g.leftKey[:], leftKey)
	copy(g.rightKey[:], rightKey)
	return g, nil
}

// GenerateTrio builds three Generators whose keys are consistent with the
// replicated topology: H_i's right key equals H_{i+1}'s left key, for
// i in {0,1,2} mod 3. This is what internal/testworld uses to wire up an
// in-memory three-helper run.
func GenerateTrio(rand io.Reader) ([3]*Generator, error) {
	var k [3][KeyLen]byte
	for i := range k {
		if _, err := io.ReadFull(rand, k[i][:]); err != nil {
			return [3]*Generator{}, ipaerr.New(ipaerr.Network, err)
		}
	}
	var out [3]*Generator
	for i := 0; i < 3; i++ {
		g, err := New(k[i][:], k[(i+1)%3][:])
		if err != nil {
			return [3]*Generator{}, err
		}
		out[i] = g
	}
	return out, nil
}

// draw expands key under the (step, record_id) label into n uniform bytes.
func draw(key [KeyLen]byte, s *step.Step, recordID uint64, n int) []byte {
	var recBuf [8]byte
	binary.LittleEndian.PutUint64(recBuf[:], recordID)
	info := append([]byte(s.String()), recBuf[:]...)
	r := hkdf.New(sha256.New, key[:], nil, info)
	out := make([]byte, n)
	_, _ = io.ReadFull(r, out)
	return out
}

// Left returns this helper's left-share of the PRSS randomness for
// (step, record_id) in field f.
func (g *Generator) Left(f field.Field, s *step.Step, recordID uint64) (field.Element, error) {
	return f.Deserialize(draw(g.leftKey, s, recordID, f.ByteLen()))
}

// Right returns this helper's right-share. By construction, Right of one
// helper equals Left of its right neighbor for the same (step, record_id)
// — the pairwise-zero-sum property PRSS-based multiplication relies on.
func (g *Generator) Right(f field.Field, s *step.Step, recordID uint64) (field.Element, error) {
	return f.Deserialize(draw(g.rightKey, s, recordID, f.ByteLen()))
}

// LeftKey returns the raw 32-byte key this helper shares with its left
// neighbor. Used by protocols (e.g. the shuffle) that need more than a
// single field draw from the pairwise randomness — a whole permutation or
// a per-row mask — and so must expand the shared key themselves.
func (g *Generator) LeftKey() [KeyLen]byte { return g.leftKey }

// RightKey returns the raw 32-byte key this helper shares with its right
// neighbor.
func (g *Generator) RightKey() [KeyLen]byte { return g.rightKey }

// ZeroShare returns (left - right) for the given (step, record_id), a
// three-way additive sharing of zero once all three helpers' ZeroShares
// are summed; used by semi-honest multiply.
func (g *Generator) ZeroShare(f field.Field, s *step.Step, recordID uint64) (field.Element, error) {
	l, err := g.Left(f, s, recordID)
	if err != nil {
		return nil, err
	}
	r, err := g.Right(f, s, recordID)
	if err != nil {
		return nil, err
	}
	return l.Sub(r), nil
}
