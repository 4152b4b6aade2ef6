// Package context implements the per-helper execution context: the
// (role, step, total_records, prss, gateway) tuple threaded through every
// protocol call, generalizing a round-helper embedding pattern (a helper
// carrying self-ID, party set, and session hash through every round) to
// IPA's step-tree-addressed sub-protocols.
package context

import (
	gocontext "context"
	"io"

	"github.com/luxfi/ipa/pkg/gateway"
	"github.com/luxfi/ipa/pkg/ipaerr"
	"github.com/luxfi/ipa/pkg/party"
	"github.com/luxfi/ipa/pkg/prss"
	"github.com/luxfi/ipa/pkg/step"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Context is one helper's view into a running query at one point in the
// step tree. Narrow produces a child Context scoped to a sub-step; every
// other field is shared with its parent.
type Context struct {
	role         party.Role
	currentStep  *step.Step
	totalRecords uint64
	prss         *prss.Generator
	gw           *gateway.Gateway
}

// New builds the root Context for one helper's execution of a query.
func New(role party.Role, prssGen *prss.Generator, gw *gateway.Gateway) *Context {
	return &Context{
		role:        role,
		currentStep: step.Root(),
		prss:        prssGen,
		gw:          gw,
	}
}

// NewTrio builds the three helpers' root Contexts at once, wired to a
// fresh in-memory gateway mesh and a consistent PRSS key trio — the
// backbone of internal/testworld.
func NewTrio(rand io.Reader) ([3]*Context, error) {
	gens, err := prss.GenerateTrio(rand)
	if err != nil {
		return [3]*Context{}, err
	}
	gws := gateway.NewInMemoryMesh(gateway.DefaultCapacity)
	var out [3]*Context
	for _, r := range party.All() {
		out[r.Index()] = New(r, gens[r.Index()], gws[r.Index()])
	}
	return out, nil
}

// Role returns which of the three helpers this Context belongs to.
func (c *Context) Role() party.Role { return c.role }

// Step returns the current position in the step tree.
func (c *Context) Step() *step.Step { return c.currentStep }

// TotalRecords returns the bound set by SetTotalRecords, or 0 if unset.
func (c *Context) TotalRecords() uint64 { return c.totalRecords }

// Narrow returns a child Context scoped to a named sub-step, sharing this
// Context's role, total_records, prss and gateway.
func (c *Context) Narrow(label string) *Context {
	return &Context{
		role:         c.role,
		currentStep:  c.currentStep.Narrow(label),
		totalRecords: c.totalRecords,
		prss:         c.prss,
		gw:           c.gw,
	}
}

// SetTotalRecords returns a Context identical to c but with a bound on how
// many records will flow through it, used by protocols (e.g. the shuffle)
// that need to know the input size up front to size their channels.
func (c *Context) SetTotalRecords(n uint64) *Context {
	cp := *c
	cp.totalRecords = n
	return &cp
}

// SendChannel returns the outbound Channel to peer in dir along the
// current step.
func (c *Context) SendChannel(peer party.Role, dir party.Direction) *gateway.Channel {
	return c.gw.SendChannel(c.currentStep.String(), peer, dir)
}

// RecvChannel returns the inbound Channel from peer in dir along the
// current step.
func (c *Context) RecvChannel(peer party.Role, dir party.Direction) *gateway.Channel {
	return c.gw.RecvChannel(c.currentStep.String(), peer, dir)
}

// PRSS returns the generator for this Context's step — callers combine it
// with a record_id to draw deterministic shared randomness.
func (c *Context) PRSS() *prss.Generator { return c.prss }

// ParallelJoin runs n independent units of work concurrently and waits for
// all of them, short-circuiting (and canceling the rest via ctx) on the
// first error. Built on golang.org/x/sync's errgroup; no protocol package
// in this module calls it.
func ParallelJoin(ctx gocontext.Context, n int, work func(ctx gocontext.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error { return work(gctx, i) })
	}
	if err := g.Wait(); err != nil {
		return ipaerr.New(ipaerr.Canceled, err)
	}
	return nil
}

// SeqJoin runs n units of work with at most maxConcurrency in flight at
// once, preserving result order. Built on golang.org/x/sync's weighted
// semaphore. No protocol package in this module calls it: the shuffle's
// per-row tag computation and the sort's per-bit passes run as plain
// sequential loops.
func SeqJoin(ctx gocontext.Context, n int, maxConcurrency int64, work func(ctx gocontext.Context, i int) error) error {
	sem := semaphore.NewWeighted(maxConcurrency)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		if err := sem.Acquire(gctx, 1); err != nil {
			return ipaerr.New(ipaerr.Canceled, err)
		}
		g.Go(func() error {
			defer sem.Release(1)
			return work(gctx, i)
		})
	}
	if err := g.Wait(); err != nil {
		return ipaerr.New(ipaerr.Canceled, err)
	}
	return nil
}
