package sort

import (
	gocontext "context"
	"crypto/sha256"
	"encoding/binary"

	"github.com/luxfi/ipa/pkg/context"
	"github.com/luxfi/ipa/pkg/field"
	"github.com/luxfi/ipa/pkg/ipaerr"
	"github.com/luxfi/ipa/pkg/party"
	"github.com/luxfi/ipa/pkg/prss"
	"github.com/luxfi/ipa/pkg/share"
	"golang.org/x/crypto/hkdf"
)

const shuffleFieldStepLabel = "sort-shuffle"

// Randoms is the pair of pairwise-PRSS permutations one helper used while
// shuffling — each helper personally derives two of the three pairwise
// permutations, the same as the original's RevealedAndRandomPermutations.
type Randoms struct {
	A, B []int
}

// elementWire is the CBOR payload shape for one field element.
type elementWire struct{ Bytes []byte }

func sendElements(ctx gocontext.Context, ch interface {
	Send(gocontext.Context, uint64, interface{}) error
}, vals []field.Element) error {
	wires := make([]elementWire, len(vals))
	for i, v := range vals {
		wires[i] = elementWire{Bytes: v.Serialize()}
	}
	if err := ch.Send(ctx, 0, wires); err != nil {
		return ipaerr.New(ipaerr.Network, err)
	}
	return nil
}

func recvElements(ctx gocontext.Context, ch interface {
	Receive(gocontext.Context, uint64, interface{}) error
}, f field.Field, n int) ([]field.Element, error) {
	var wires []elementWire
	if err := ch.Receive(ctx, 0, &wires); err != nil {
		return nil, ipaerr.New(ipaerr.Network, err)
	}
	if len(wires) != n {
		return nil, ipaerr.Errorf(ipaerr.Serialization, "sort: expected %d elements, got %d", n, len(wires))
	}
	out := make([]field.Element, n)
	for i, w := range wires {
		v, err := f.Deserialize(w.Bytes)
		if err != nil {
			return nil, ipaerr.New(ipaerr.Serialization, err)
		}
		out[i] = v
	}
	return out, nil
}

// deriveMaskField expands a pairwise key under label for row index i into
// a fresh field element — the additive-share analog of
// protocols/shuffle's deriveMask.
func deriveMaskField(f field.Field, key [prss.KeyLen]byte, label string, index int) field.Element {
	info := make([]byte, len(label)+8)
	copy(info, label)
	binary.LittleEndian.PutUint64(info[len(label):], uint64(index))
	r := hkdf.New(sha256.New, key[:], nil, info)
	buf := make([]byte, f.ByteLen())
	_, _ = r.Read(buf)
	v, _ := f.Deserialize(buf)
	return v
}

func add3(a, b, c field.Element) field.Element {
	return a.Add(b).Add(c)
}

// placeMaskedField derives one independent mask per input row and places
// it at the row's permuted output position — used by both pair members
// for refreshed arrays that are pure masks (protocols/shuffle.placeMasked's
// additive-field analog).
func placeMaskedField(perm []int, f field.Field, key [prss.KeyLen]byte, label string) []field.Element {
	out := make([]field.Element, len(perm))
	for i := range perm {
		out[perm[i]] = deriveMaskField(f, key, label, i)
	}
	return out
}

// placeReconstructedField subtracts the same two masks the pair's other
// member used from each reconstructed row and places the result at the
// permuted output position (protocols/shuffle.placeReconstructed's
// additive-field analog: Sub where BA used Xor, since both are each
// operation's own inverse).
func placeReconstructedField(rows []field.Element, perm []int, f field.Field, key [prss.KeyLen]byte, labelA, labelB string) []field.Element {
	out := make([]field.Element, len(perm))
	for i, row := range rows {
		v := row.Sub(deriveMaskField(f, key, labelA, i))
		v = v.Sub(deriveMaskField(f, key, labelB, i))
		out[perm[i]] = v
	}
	return out
}

func leftElems(shares []*share.Share) []field.Element {
	out := make([]field.Element, len(shares))
	for i, s := range shares {
		out[i] = s.Left()
	}
	return out
}

func rightElems(shares []*share.Share) []field.Element {
	out := make([]field.Element, len(shares))
	for i, s := range shares {
		out[i] = s.Right()
	}
	return out
}

// ShuffleField runs the additive-share analog of protocols/shuffle's
// three-round oblivious shuffle, generalized from XOR-shared boolean rows
// to Add-shared field elements — the same per-row redundancy model
// applies since share.Share is also a two-component replicated share: a
// held by H3/H1, b by H1/H2, c by H2/H3. It underlies
// shuffle_and_reveal_permutation: rerandomizing a secret permutation's
// row order before the composed result is revealed, so revealing it
// never discloses the real input-to-output row mapping. The two
// permutations this helper used are returned as Randoms.
func ShuffleField(ctx gocontext.Context, sctx *context.Context, lefts, rights []*share.Share, f field.Field) ([]field.Element, []field.Element, Randoms, error) {
	if len(lefts) != len(rights) {
		return nil, nil, Randoms{}, ipaerr.Errorf(ipaerr.InvalidConfig, "sort: shuffle left/right length mismatch")
	}
	n := len(lefts)
	sc := sctx.Narrow(shuffleFieldStepLabel)
	self := sc.Role()
	gen := sc.PRSS()

	switch self {
	case party.H1:
		return shuffleFieldAsH1(ctx, sc, gen, lefts, rights, n, f)
	case party.H2:
		return shuffleFieldAsH2(ctx, sc, gen, lefts, rights, n, f)
	case party.H3:
		return shuffleFieldAsH3(ctx, sc, gen, lefts, rights, n, f)
	}
	return nil, nil, Randoms{}, ipaerr.Errorf(ipaerr.InvalidConfig, "sort: unknown role %s", self)
}

func shuffleFieldAsH1(ctx gocontext.Context, sc *context.Context, gen *prss.Generator, aShares, bShares []*share.Share, n int, f field.Field) ([]field.Element, []field.Element, Randoms, error) {
	a := leftElems(aShares)
	key12 := gen.RightKey()
	if err := sendElements(ctx, sc.SendChannel(party.H2, party.Left), a); err != nil {
		return nil, nil, Randoms{}, err
	}
	perm12 := derivePermutation(key12, "12", n)
	newA1 := placeMaskedField(perm12, f, key12, "12-a")
	if err := sendElements(ctx, sc.SendChannel(party.H3, party.Left), newA1); err != nil {
		return nil, nil, Randoms{}, err
	}

	newA2, err := recvElements(ctx, sc.RecvChannel(party.H3, party.Left), f, n)
	if err != nil {
		return nil, nil, Randoms{}, err
	}
	newB2, err := recvElements(ctx, sc.RecvChannel(party.H2, party.Left), f, n)
	if err != nil {
		return nil, nil, Randoms{}, err
	}

	key31 := gen.LeftKey()
	c, err := recvElements(ctx, sc.RecvChannel(party.H3, party.Right), f, n)
	if err != nil {
		return nil, nil, Randoms{}, err
	}
	z := make([]field.Element, n)
	for i := range z {
		z[i] = add3(newA2[i], newB2[i], c[i])
	}
	perm31 := derivePermutation(key31, "31", n)
	newA3 := placeMaskedField(perm31, f, key31, "31-a")
	newB3 := placeReconstructedField(z, perm31, f, key31, "31-c", "31-a")
	if err := sendElements(ctx, sc.SendChannel(party.H2, party.Right), newB3); err != nil {
		return nil, nil, Randoms{}, err
	}

	return newA3, newB3, Randoms{A: perm12, B: perm31}, nil
}

func shuffleFieldAsH2(ctx gocontext.Context, sc *context.Context, gen *prss.Generator, bShares, cShares []*share.Share, n int, f field.Field) ([]field.Element, []field.Element, Randoms, error) {
	key12 := gen.LeftKey()
	a, err := recvElements(ctx, sc.RecvChannel(party.H1, party.Left), f, n)
	if err != nil {
		return nil, nil, Randoms{}, err
	}
	b := leftElems(bShares)
	c := rightElems(cShares)
	x := make([]field.Element, n)
	for i := range x {
		x[i] = add3(a[i], b[i], c[i])
	}
	perm12 := derivePermutation(key12, "12", n)
	newB1 := placeMaskedField(perm12, f, key12, "12-b")
	newC1 := placeReconstructedField(x, perm12, f, key12, "12-a", "12-b")
	if err := sendElements(ctx, sc.SendChannel(party.H3, party.Left), newC1); err != nil {
		return nil, nil, Randoms{}, err
	}

	key23 := gen.RightKey()
	if err := sendElements(ctx, sc.SendChannel(party.H3, party.Right), newB1); err != nil {
		return nil, nil, Randoms{}, err
	}
	perm23 := derivePermutation(key23, "23", n)
	newB2 := placeMaskedField(perm23, f, key23, "23-b")
	if err := sendElements(ctx, sc.SendChannel(party.H1, party.Left), newB2); err != nil {
		return nil, nil, Randoms{}, err
	}

	newB3, err := recvElements(ctx, sc.RecvChannel(party.H1, party.Right), f, n)
	if err != nil {
		return nil, nil, Randoms{}, err
	}
	newC3, err := recvElements(ctx, sc.RecvChannel(party.H3, party.Left), f, n)
	if err != nil {
		return nil, nil, Randoms{}, err
	}

	return newB3, newC3, Randoms{A: perm12, B: perm23}, nil
}

func shuffleFieldAsH3(ctx gocontext.Context, sc *context.Context, gen *prss.Generator, cShares, aShares []*share.Share, n int, f field.Field) ([]field.Element, []field.Element, Randoms, error) {
	newC1, err := recvElements(ctx, sc.RecvChannel(party.H2, party.Left), f, n)
	if err != nil {
		return nil, nil, Randoms{}, err
	}
	newA1, err := recvElements(ctx, sc.RecvChannel(party.H1, party.Left), f, n)
	if err != nil {
		return nil, nil, Randoms{}, err
	}

	key23 := gen.LeftKey()
	b, err := recvElements(ctx, sc.RecvChannel(party.H2, party.Right), f, n)
	if err != nil {
		return nil, nil, Randoms{}, err
	}
	y := make([]field.Element, n)
	for i := range y {
		y[i] = add3(newA1[i], b[i], newC1[i])
	}
	perm23 := derivePermutation(key23, "23", n)
	newC2 := placeMaskedField(perm23, f, key23, "23-c")
	newA2 := placeReconstructedField(y, perm23, f, key23, "23-b", "23-c")
	if err := sendElements(ctx, sc.SendChannel(party.H1, party.Left), newA2); err != nil {
		return nil, nil, Randoms{}, err
	}

	key31 := gen.RightKey()
	if err := sendElements(ctx, sc.SendChannel(party.H1, party.Right), newC2); err != nil {
		return nil, nil, Randoms{}, err
	}
	perm31 := derivePermutation(key31, "31", n)
	newC3 := placeMaskedField(perm31, f, key31, "31-c")
	newA3 := placeMaskedField(perm31, f, key31, "31-a")
	if err := sendElements(ctx, sc.SendChannel(party.H2, party.Left), newC3); err != nil {
		return nil, nil, Randoms{}, err
	}

	return newC3, newA3, Randoms{A: perm23, B: perm31}, nil
}
