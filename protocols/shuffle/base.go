// Package shuffle implements the three-party oblivious shuffle: a base
// permutation protocol (this file) and a malicious wrapper that
// MAC-authenticates rows before shuffling and verifies the three
// helpers' intermediate messages afterward (verify.go, tags.go).
package shuffle

import (
	gocontext "context"
	"crypto/sha256"
	"encoding/binary"

	"github.com/luxfi/ipa/pkg/boolean"
	"github.com/luxfi/ipa/pkg/context"
	"github.com/luxfi/ipa/pkg/ipaerr"
	"github.com/luxfi/ipa/pkg/party"
	"github.com/luxfi/ipa/pkg/prss"
	"golang.org/x/crypto/hkdf"
)

// IntermediateMessages captures, for whichever helper reconstructed it,
// the row values recovered at each of the three rounds. The malicious
// wrapper (verifyTags in verify.go) checks each helper's reconstructed
// rows against their MAC tags locally, catching a row whose content or
// tag changed after tagging.
type IntermediateMessages struct {
	Round1Reconstructed []*boolean.BA // present on H2 only
	Round2Reconstructed []*boolean.BA // present on H3 only
	Round3Reconstructed []*boolean.BA // present on H1 only
}

// rowsWire is the CBOR payload shape for a batch of row arrays exchanged
// between rounds.
type rowsWire struct {
	Rows [][]byte
}

func toRowsWire(rows []*boolean.BA) rowsWire {
	w := rowsWire{Rows: make([][]byte, len(rows))}
	for i, r := range rows {
		w.Rows[i] = r.Bytes()
	}
	return w
}

func fromRowsWire(w rowsWire, bits int) ([]*boolean.BA, error) {
	out := make([]*boolean.BA, len(w.Rows))
	for i, b := range w.Rows {
		ba, err := boolean.FromBytes(bits, b)
		if err != nil {
			return nil, ipaerr.New(ipaerr.Serialization, err)
		}
		out[i] = ba
	}
	return out, nil
}

// derivePermutation expands key under label into a Fisher-Yates
// permutation of [0,n). Both holders of key derive the identical
// permutation with no communication, which is what makes the permutation
// invisible to the third helper: it is drawn pairwise via PRSS.
func derivePermutation(key [prss.KeyLen]byte, label string, n int) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	r := hkdf.New(sha256.New, key[:], nil, []byte("perm:"+label))
	for i := n - 1; i > 0; i-- {
		j := randIndex(r, i+1)
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm
}

// randIndex draws an unbiased index in [0,bound) from r via rejection
// sampling over 4-byte draws.
func randIndex(r interface{ Read([]byte) (int, error) }, bound int) int {
	if bound <= 1 {
		return 0
	}
	limit := (uint32(1)<<32 - 1) - (uint32(1)<<32)%uint32(bound)
	var buf [4]byte
	for {
		_, _ = r.Read(buf[:])
		v := binary.BigEndian.Uint32(buf[:])
		if v <= limit {
			return int(v % uint32(bound))
		}
	}
}

// deriveMask expands key under label for row index i into a fresh
// bits-wide value, giving each round's re-randomization of a row its own
// independent randomness so old and new values of the same underlying
// array can't be correlated by position or content.
func deriveMask(key [prss.KeyLen]byte, label string, index int, bits int) *boolean.BA {
	info := make([]byte, len(label)+8)
	copy(info, label)
	binary.LittleEndian.PutUint64(info[len(label):], uint64(index))
	r := hkdf.New(sha256.New, key[:], nil, info)
	buf := make([]byte, (bits+7)/8)
	_, _ = r.Read(buf)
	ba, _ := boolean.FromBytes(bits, buf)
	return ba
}

// placeMasked derives one independent mask per input row from key/label
// and places it at the row's permuted output position, with no
// dependency on the row's actual content. Both pair members use it for
// refreshed arrays that are pure masks: either member can derive such an
// array from the shared key, so nothing about it needs to travel over
// the wire between the pair.
func placeMasked(perm []int, key [prss.KeyLen]byte, label string, bits int) []*boolean.BA {
	out := make([]*boolean.BA, len(perm))
	for i := range perm {
		out[perm[i]] = deriveMask(key, label, i, bits)
	}
	return out
}

// placeReconstructed XORs each reconstructed row with two independent
// masks (the same two labels the pair's other member used to produce its
// own refreshed arrays) and places the result at the permuted output
// position. This is how the party that learned the plaintext row this
// round re-splits it into a fresh share with no relation to the old one.
func placeReconstructed(rows []*boolean.BA, perm []int, key [prss.KeyLen]byte, labelA, labelB string, bits int) ([]*boolean.BA, error) {
	out := make([]*boolean.BA, len(perm))
	for i, row := range rows {
		v, err := row.Xor(deriveMask(key, labelA, i, bits))
		if err != nil {
			return nil, err
		}
		v, err = v.Xor(deriveMask(key, labelB, i, bits))
		if err != nil {
			return nil, err
		}
		out[perm[i]] = v
	}
	return out, nil
}

// xor3 reconstructs each row's plaintext value from its three additive
// (XOR) contributions.
func xor3(a, b, c []*boolean.BA) ([]*boolean.BA, error) {
	out := make([]*boolean.BA, len(a))
	for i := range a {
		v, err := a[i].Xor(b[i])
		if err != nil {
			return nil, err
		}
		v, err = v.Xor(c[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

const stepLabel = "shuffle"

// ShuffleBatch runs the base (semi-honest) oblivious shuffle on the
// caller's n BAShare-encoded rows (typically already MAC-extended by the
// malicious wrapper), returning the shuffled replicated shares for this
// helper plus the IntermediateMessages the malicious wrapper needs to
// verify no helper deviated.
//
// Each row is held as three additive (XOR) contributions a,b,c — a
// between H3 and H1, b between H1 and H2, c between H2 and H3 — and the
// shuffle runs as three sequential rounds, one per adjacent pair
// (H1,H2 then H2,H3 then H3,H1). In each round the pair's raw-sender
// hands its exclusive contribution to the pair's reconstructor, who
// recovers the row's plaintext value and re-splits it into a freshly
// masked triple at the row's new, pairwise-PRSS-derived position; the
// pair's third (jointly-held) contribution is re-masked by both members
// independently, with no message needed between them. Either way, the
// round's two refreshed contributions are forwarded to the bystander
// helper, whose stale copies would otherwise desync. Composing all three
// rounds yields the overall permutation π = π31∘π23∘π12; no single helper
// learns more than the two pairwise permutations it was a party to, so
// none can track a row end-to-end.
func ShuffleBatch(ctx gocontext.Context, sctx *context.Context, lefts, rights []*boolean.BA, bits int) ([]*boolean.BA, []*boolean.BA, IntermediateMessages, error) {
	if len(lefts) != len(rights) {
		return nil, nil, IntermediateMessages{}, ipaerr.Errorf(ipaerr.InvalidConfig, "shuffle: left/right length mismatch")
	}
	n := len(lefts)
	sc := sctx.Narrow(stepLabel)
	self := sc.Role()
	gen := sc.PRSS()

	var msgs IntermediateMessages

	switch self {
	case party.H1:
		return shuffleAsH1(ctx, sc, gen, lefts, rights, n, bits, &msgs)
	case party.H2:
		return shuffleAsH2(ctx, sc, gen, lefts, rights, n, bits, &msgs)
	case party.H3:
		return shuffleAsH3(ctx, sc, gen, lefts, rights, n, bits, &msgs)
	}
	return nil, nil, msgs, ipaerr.Errorf(ipaerr.InvalidConfig, "shuffle: unknown role %s", self)
}

// shuffleAsH1 holds (a,b). It is round 1's raw-sender, round 2's
// bystander, and round 3's reconstructor.
func shuffleAsH1(ctx gocontext.Context, sc *context.Context, gen *prss.Generator, a, b []*boolean.BA, n, bits int, msgs *IntermediateMessages) ([]*boolean.BA, []*boolean.BA, IntermediateMessages, error) {
	key12 := gen.RightKey() // shared with H2
	if err := sendRows(ctx, sc.SendChannel(party.H2, party.Left), a); err != nil {
		return nil, nil, *msgs, err
	}
	perm12 := derivePermutation(key12, "12", n)
	newA1 := placeMasked(perm12, key12, "12-a", bits)
	if err := sendRows(ctx, sc.SendChannel(party.H3, party.Left), newA1); err != nil {
		return nil, nil, *msgs, err
	}

	newA2, err := recvRows(ctx, sc.RecvChannel(party.H3, party.Left), n, bits)
	if err != nil {
		return nil, nil, *msgs, err
	}
	newB2, err := recvRows(ctx, sc.RecvChannel(party.H2, party.Left), n, bits)
	if err != nil {
		return nil, nil, *msgs, err
	}

	key31 := gen.LeftKey() // shared with H3
	c, err := recvRows(ctx, sc.RecvChannel(party.H3, party.Right), n, bits)
	if err != nil {
		return nil, nil, *msgs, err
	}
	z, err := xor3(newA2, newB2, c)
	if err != nil {
		return nil, nil, *msgs, err
	}
	msgs.Round3Reconstructed = z
	perm31 := derivePermutation(key31, "31", n)
	newA3 := placeMasked(perm31, key31, "31-a", bits)
	newB3, err := placeReconstructed(z, perm31, key31, "31-c", "31-a", bits)
	if err != nil {
		return nil, nil, *msgs, err
	}
	if err := sendRows(ctx, sc.SendChannel(party.H2, party.Right), newB3); err != nil {
		return nil, nil, *msgs, err
	}

	return newA3, newB3, *msgs, nil
}

// shuffleAsH2 holds (b,c). It is round 1's reconstructor, round 2's
// raw-sender, and round 3's bystander.
func shuffleAsH2(ctx gocontext.Context, sc *context.Context, gen *prss.Generator, b, c []*boolean.BA, n, bits int, msgs *IntermediateMessages) ([]*boolean.BA, []*boolean.BA, IntermediateMessages, error) {
	key12 := gen.LeftKey() // shared with H1
	a, err := recvRows(ctx, sc.RecvChannel(party.H1, party.Left), n, bits)
	if err != nil {
		return nil, nil, *msgs, err
	}
	x, err := xor3(a, b, c)
	if err != nil {
		return nil, nil, *msgs, err
	}
	msgs.Round1Reconstructed = x
	perm12 := derivePermutation(key12, "12", n)
	newB1 := placeMasked(perm12, key12, "12-b", bits)
	newC1, err := placeReconstructed(x, perm12, key12, "12-a", "12-b", bits)
	if err != nil {
		return nil, nil, *msgs, err
	}
	if err := sendRows(ctx, sc.SendChannel(party.H3, party.Left), newC1); err != nil {
		return nil, nil, *msgs, err
	}

	key23 := gen.RightKey() // shared with H3
	if err := sendRows(ctx, sc.SendChannel(party.H3, party.Right), newB1); err != nil {
		return nil, nil, *msgs, err
	}
	perm23 := derivePermutation(key23, "23", n)
	newB2 := placeMasked(perm23, key23, "23-b", bits)
	if err := sendRows(ctx, sc.SendChannel(party.H1, party.Left), newB2); err != nil {
		return nil, nil, *msgs, err
	}

	newB3, err := recvRows(ctx, sc.RecvChannel(party.H1, party.Right), n, bits)
	if err != nil {
		return nil, nil, *msgs, err
	}
	newC3, err := recvRows(ctx, sc.RecvChannel(party.H3, party.Left), n, bits)
	if err != nil {
		return nil, nil, *msgs, err
	}

	return newB3, newC3, *msgs, nil
}

// shuffleAsH3 holds (c,a). It is round 1's bystander, round 2's
// reconstructor, and round 3's raw-sender.
func shuffleAsH3(ctx gocontext.Context, sc *context.Context, gen *prss.Generator, c, a []*boolean.BA, n, bits int, msgs *IntermediateMessages) ([]*boolean.BA, []*boolean.BA, IntermediateMessages, error) {
	newC1, err := recvRows(ctx, sc.RecvChannel(party.H2, party.Left), n, bits)
	if err != nil {
		return nil, nil, *msgs, err
	}
	newA1, err := recvRows(ctx, sc.RecvChannel(party.H1, party.Left), n, bits)
	if err != nil {
		return nil, nil, *msgs, err
	}

	key23 := gen.LeftKey() // shared with H2
	b, err := recvRows(ctx, sc.RecvChannel(party.H2, party.Right), n, bits)
	if err != nil {
		return nil, nil, *msgs, err
	}
	y, err := xor3(newA1, b, newC1)
	if err != nil {
		return nil, nil, *msgs, err
	}
	msgs.Round2Reconstructed = y
	perm23 := derivePermutation(key23, "23", n)
	newC2 := placeMasked(perm23, key23, "23-c", bits)
	newA2, err := placeReconstructed(y, perm23, key23, "23-b", "23-c", bits)
	if err != nil {
		return nil, nil, *msgs, err
	}
	if err := sendRows(ctx, sc.SendChannel(party.H1, party.Left), newA2); err != nil {
		return nil, nil, *msgs, err
	}

	key31 := gen.RightKey() // shared with H1
	if err := sendRows(ctx, sc.SendChannel(party.H1, party.Right), newC2); err != nil {
		return nil, nil, *msgs, err
	}
	perm31 := derivePermutation(key31, "31", n)
	newC3 := placeMasked(perm31, key31, "31-c", bits)
	newA3 := placeMasked(perm31, key31, "31-a", bits)
	if err := sendRows(ctx, sc.SendChannel(party.H2, party.Left), newC3); err != nil {
		return nil, nil, *msgs, err
	}

	return newC3, newA3, *msgs, nil
}

func sendRows(ctx gocontext.Context, ch interface {
	Send(gocontext.Context, uint64, interface{}) error
}, rows []*boolean.BA) error {
	if err := ch.Send(ctx, 0, toRowsWire(rows)); err != nil {
		return ipaerr.New(ipaerr.Network, err)
	}
	return nil
}

func recvRows(ctx gocontext.Context, ch interface {
	Receive(gocontext.Context, uint64, interface{}) error
}, n, bits int) ([]*boolean.BA, error) {
	var w rowsWire
	if err := ch.Receive(ctx, 0, &w); err != nil {
		return nil, ipaerr.New(ipaerr.Network, err)
	}
	return fromRowsWire(w, bits)
}
