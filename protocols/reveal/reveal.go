// Package reveal implements malicious_reveal + validate. Every
// helper already holds two of the three additive contributions to x
// (left_i, right_i); the missing third contribution is obtained from the
// left neighbor's left component. For malicious security the same value
// is independently confirmed via the right neighbor's right component,
// and the two copies must agree.
package reveal

import (
	gocontext "context"

	"github.com/luxfi/ipa/pkg/context"
	"github.com/luxfi/ipa/pkg/field"
	"github.com/luxfi/ipa/pkg/ipaerr"
	"github.com/luxfi/ipa/pkg/party"
	"github.com/luxfi/ipa/pkg/share"
)

const stepLabel = "reveal"

type elementWire struct {
	Bytes []byte
}

// Except names the one helper who must not learn the revealed value, if
// any. The zero value means "no exception": every helper reconstructs.
type Except struct {
	Role    party.Role
	HasRole bool
}

// None is the Except value meaning every helper reconstructs.
var None = Except{}

// Of builds an Except naming role as the excused helper.
func Of(role party.Role) Except { return Except{Role: role, HasRole: true} }

func (e Except) is(r party.Role) bool { return e.HasRole && e.Role == r }

// Reveal runs malicious_reveal(ctx, rid, except, ⟨x⟩) for one record. It
// returns (nil, nil) for the excused helper — the reconstructed value or
// None if except == self — and fails with Inconsistent if the two
// independently-routed copies of the missing share disagree.
func Reveal(ctx gocontext.Context, rctx *context.Context, recordID uint64, except Except, x *share.Share) (field.Element, error) {
	f := x.Field()
	rc := rctx.Narrow(stepLabel)
	self := rc.Role()
	left, right := self.Other()

	// Forward flow: everyone's left component travels to their right peer.
	// This alone is enough to reconstruct, since the forward value a
	// helper receives from its left neighbor is exactly the one additive
	// contribution it doesn't already hold.
	sendForward := rc.SendChannel(right, party.Right)
	if err := sendForward.Send(ctx, recordID, elementWire{Bytes: x.Left().Serialize()}); err != nil {
		return nil, ipaerr.New(ipaerr.Network, err)
	}

	// Reverse flow: everyone's right component travels to their left peer,
	// except the excused helper skips sending it, since no one needs to
	// cross-check a value that helper alone is entitled to have kept
	// secret.
	if !except.is(self) {
		sendReverse := rc.SendChannel(left, party.Left)
		if err := sendReverse.Send(ctx, recordID, elementWire{Bytes: x.Right().Serialize()}); err != nil {
			return nil, ipaerr.New(ipaerr.Network, err)
		}
	}

	if except.is(self) {
		return nil, nil
	}

	var forwardWire elementWire
	recvForward := rc.RecvChannel(left, party.Right)
	if err := recvForward.Receive(ctx, recordID, &forwardWire); err != nil {
		return nil, ipaerr.New(ipaerr.Network, err)
	}
	missing, err := f.Deserialize(forwardWire.Bytes)
	if err != nil {
		return nil, ipaerr.New(ipaerr.Serialization, err)
	}

	if !except.is(right) {
		var reverseWire elementWire
		recvReverse := rc.RecvChannel(right, party.Left)
		if err := recvReverse.Receive(ctx, recordID, &reverseWire); err != nil {
			return nil, ipaerr.New(ipaerr.Network, err)
		}
		confirmation, err := f.Deserialize(reverseWire.Bytes)
		if err != nil {
			return nil, ipaerr.New(ipaerr.Serialization, err)
		}
		if !missing.Equal(confirmation) {
			return nil, ipaerr.Errorf(ipaerr.Inconsistent, "reveal: helper %s got mismatched copies of the missing share", self)
		}
	}

	return x.Left().Add(x.Right()).Add(missing), nil
}
