// Package multiply implements semi-honest replicated multiplication: one
// PRSS zero-share draw and one field element sent each way per
// multiplication, the cheapest primitive every higher protocol (reveal,
// shuffle validation, bitwise sum, sort) is built from.
package multiply

import (
	gocontext "context"

	"github.com/luxfi/ipa/pkg/context"
	"github.com/luxfi/ipa/pkg/ipaerr"
	"github.com/luxfi/ipa/pkg/party"
	"github.com/luxfi/ipa/pkg/share"
)

// step is the fixed sub-step every multiply call narrows into, so that
// concurrent multiplications at different record IDs never collide with
// each other's channel traffic, while still being distinguishable from
// whatever else the caller's own step already narrowed into.
const stepLabel = "multiply"

// Multiply computes ⟨a⟩·⟨b⟩ → ⟨ab⟩ for one record. ctx must already be
// narrowed to a step unique to this multiplication site; Multiply narrows
// one level further under "multiply" so repeated calls at the same site
// for different record_ids only collide if the caller reuses a record_id,
// which is the caller's responsibility.
func Multiply(ctx gocontext.Context, mctx *context.Context, recordID uint64, a, b *share.Share) (*share.Share, error) {
	if a.Field().Name() != b.Field().Name() {
		return nil, ipaerr.Errorf(ipaerr.InvalidConfig, "multiply: field mismatch %s vs %s", a.Field().Name(), b.Field().Name())
	}
	f := a.Field()
	mc := mctx.Narrow(stepLabel)

	left, right := mc.Role().Other()

	s0, err := mc.PRSS().ZeroShare(f, mc.Step(), recordID)
	if err != nil {
		return nil, err
	}

	// d_i = a_i*b_i + a_i*b_{i+1} + a_{i+1}*b_i + s_i - s_{i+1}
	// a_i is a.Left(), b_i is b.Left(); a_{i+1}/b_{i+1} are the Right
	// components, since left_i = right_{i-1}.
	d := a.Left().Mul(b.Left())
	d = d.Add(a.Left().Mul(b.Right()))
	d = d.Add(a.Right().Mul(b.Left()))
	d = d.Add(s0)

	// Both ends name this same flow "Right": it carries d_i from helper i
	// to its right peer, so from the receiver's point of view it arrives
	// from the left, but the channel key (keyed by the sender's role) only
	// agrees between the two ends if both pass the same Direction.
	sendCh := mc.SendChannel(right, party.Right)
	recvCh := mc.RecvChannel(left, party.Right)

	dWire := elementWire{Bytes: d.Serialize()}

	if err := sendCh.Send(ctx, recordID, dWire); err != nil {
		return nil, ipaerr.New(ipaerr.Network, err)
	}

	var received elementWire
	if err := recvCh.Receive(ctx, recordID, &received); err != nil {
		return nil, ipaerr.New(ipaerr.Network, err)
	}
	dLeft, err := f.Deserialize(received.Bytes)
	if err != nil {
		return nil, ipaerr.New(ipaerr.Serialization, err)
	}

	return share.New(dLeft, d)
}

// elementWire is the CBOR wire shape for a single field element:
// just its canonical serialized bytes, since the field is implicit from
// context on both ends.
type elementWire struct {
	Bytes []byte
}
