// Package testworld is the three-helper in-memory test harness every
// package's tests build their fixtures on, grounded on
// original_source's test_fixture/world.rs: a TestWorld that wires three
// gateways and three participants together without touching the
// network.
package testworld

import (
	"crypto/rand"
	"testing"

	"github.com/luxfi/ipa/pkg/context"
)

// New builds the three helpers' root Contexts, wired to a fresh
// in-memory gateway mesh and a consistent PRSS key trio. Failures here
// are the harness's own setup failing, not the system under test, so
// New fails the test directly rather than returning an error.
func New(t *testing.T) [3]*context.Context {
	t.Helper()
	ctxs, err := context.NewTrio(rand.Reader)
	if err != nil {
		t.Fatalf("testworld: building trio: %v", err)
	}
	return ctxs
}
