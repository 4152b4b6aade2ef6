// Package gateway implements the channel layer: one ordered,
// backpressured, CBOR-framed buffer per (step, peer, direction), the wire
// layer underneath pkg/context's send_channel/recv_channel. The message
// store here mirrors a round handler keying per-round message maps by
// party ID; we key per-step maps by (peer, direction) instead, since a
// query has many concurrent steps rather than a handful of sequential
// rounds.
package gateway

import (
	"context"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/luxfi/ipa/pkg/ipaerr"
	"github.com/luxfi/ipa/pkg/party"
)

// frame is one record's CBOR-encoded payload in flight on a channel.
type frame struct {
	recordID uint64
	data     []byte
}

// Channel is one directed, ordered link for a single (step, peer,
// direction) triple. Sends and receives are addressed by record_id so
// that out-of-order delivery across records never corrupts another
// record's data.
type Channel struct {
	capacity int
	in       chan frame

	mu        sync.Mutex
	sent      map[uint64]bool
	pending   map[uint64][]byte
	nextRecv  uint64
	closeOnce sync.Once
}

func newChannel(capacity int) *Channel {
	return &Channel{
		capacity: capacity,
		in:       make(chan frame, capacity),
		sent:     make(map[uint64]bool),
		pending:  make(map[uint64][]byte),
	}
}

// Send marshals v as CBOR and enqueues it for record_id, blocking (subject
// to ctx) when the channel's buffer is full. Sending the same record_id
// twice is a programmer error and returns DuplicateRecord rather than
// silently overwriting.
func (c *Channel) Send(ctx context.Context, recordID uint64, v interface{}) error {
	c.mu.Lock()
	if c.sent[recordID] {
		c.mu.Unlock()
		return ipaerr.Errorf(ipaerr.DuplicateRecord, "gateway: record %d already sent on this channel", recordID)
	}
	c.sent[recordID] = true
	c.mu.Unlock()

	data, err := cbor.Marshal(v)
	if err != nil {
		return ipaerr.New(ipaerr.Serialization, err)
	}

	select {
	case c.in <- frame{recordID: recordID, data: data}:
		return nil
	case <-ctx.Done():
		return ipaerr.New(ipaerr.Canceled, ctx.Err())
	}
}

// Receive blocks (subject to ctx) until record_id has arrived, then CBOR
// decodes it into v. Records may arrive out of order on the wire; Receive
// buffers anything that arrives ahead of what's requested so that callers
// can request records in whatever order their protocol needs.
func (c *Channel) Receive(ctx context.Context, recordID uint64, v interface{}) error {
	c.mu.Lock()
	if buffered, ok := c.pending[recordID]; ok {
		delete(c.pending, recordID)
		c.mu.Unlock()
		return cborUnmarshalOrErr(buffered, v)
	}
	c.mu.Unlock()

	for {
		select {
		case f, ok := <-c.in:
			if !ok {
				return ipaerr.Errorf(ipaerr.Network, "gateway: channel closed before record %d arrived", recordID)
			}
			if f.recordID == recordID {
				return cborUnmarshalOrErr(f.data, v)
			}
			c.mu.Lock()
			c.pending[f.recordID] = f.data
			c.mu.Unlock()
		case <-ctx.Done():
			return ipaerr.New(ipaerr.Canceled, ctx.Err())
		}
	}
}

func cborUnmarshalOrErr(data []byte, v interface{}) error {
	if err := cbor.Unmarshal(data, v); err != nil {
		return ipaerr.New(ipaerr.Serialization, err)
	}
	return nil
}

// Close marks the channel as done sending; Receive calls for records that
// never arrive will then fail instead of blocking forever.
func (c *Channel) Close() {
	c.closeOnce.Do(func() { close(c.in) })
}

// key identifies one directed channel.
type key struct {
	step string
	peer party.Role
	dir  party.Direction
}

// Gateway is one helper's view of the channel mesh: it hands out Channels
// lazily, one per (step, peer, direction), and is the thing pkg/context
// embeds to implement send_channel/recv_channel.
type Gateway struct {
	self     party.Role
	capacity int

	mu       sync.Mutex
	channels map[key]*Channel

	// linkTo is how Send-side channels get linked to their peer's
	// Gateway; populated by NewInMemoryMesh.
	linkTo map[party.Role]*Gateway
}

// DefaultCapacity is the per-channel buffer size used when callers don't
// need a specific backpressure threshold.
const DefaultCapacity = 16

// NewInMemoryMesh builds three Gateways, one per helper, fully connected:
// a sender's SendChannel(step, peer, dir) and that peer's
// RecvChannel(step, sender, dir), with the same dir on both ends, share
// the same underlying Channel object. This is the harness internal/testworld wraps
// for unit and ginkgo tests.
func NewInMemoryMesh(capacity int) [3]*Gateway {
	var gws [3]*Gateway
	for i, r := range party.All() {
		gws[i] = &Gateway{self: r, capacity: capacity, channels: make(map[key]*Channel), linkTo: make(map[party.Role]*Gateway)}
	}
	for i := range gws {
		for j := range gws {
			if i == j {
				continue
			}
			gws[i].linkTo[gws[j].self] = gws[j]
		}
	}
	return gws
}

// Role returns the helper this Gateway belongs to.
func (g *Gateway) Role() party.Role { return g.self }

// SendChannel returns the Channel this helper sends on to reach peer along
// step, in the given direction — one buffer per (step, peer, direction).
// The peer's matching RecvChannel call returns the exact same underlying
// Channel.
func (g *Gateway) SendChannel(stepLabel string, peer party.Role, dir party.Direction) *Channel {
	peerGw := g.linkTo[peer]
	k := key{step: stepLabel, peer: g.self, dir: dir}
	return peerGw.channelFor(k)
}

// RecvChannel returns the Channel this helper receives on from peer along
// step, in the given direction. It resolves to the same underlying
// Channel object that peer's matching SendChannel call returns, since both
// are keyed by (step, sender's role, direction).
func (g *Gateway) RecvChannel(stepLabel string, peer party.Role, dir party.Direction) *Channel {
	k := key{step: stepLabel, peer: peer, dir: dir}
	return g.channelFor(k)
}

func (g *Gateway) channelFor(k key) *Channel {
	g.mu.Lock()
	defer g.mu.Unlock()
	if ch, ok := g.channels[k]; ok {
		return ch
	}
	ch := newChannel(g.capacity)
	g.channels[k] = ch
	return ch
}
