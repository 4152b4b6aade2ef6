package prss_test

import (
	"crypto/rand"
	"testing"

	"github.com/luxfi/ipa/pkg/field"
	"github.com/luxfi/ipa/pkg/prss"
	"github.com/luxfi/ipa/pkg/step"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicPerStepAndRecord(t *testing.T) {
	key1 := make([]byte, prss.KeyLen)
	key2 := make([]byte, prss.KeyLen)
	_, _ = rand.Read(key1)
	_, _ = rand.Read(key2)
	g, err := prss.New(key1, key2)
	require.NoError(t, err)

	s := step.Root().Narrow("multiply")
	a, err := g.Left(field.Fp31, s, 0)
	require.NoError(t, err)
	b, err := g.Left(field.Fp31, s, 0)
	require.NoError(t, err)
	assert.True(t, a.Equal(b))

	c, err := g.Left(field.Fp31, s, 1)
	require.NoError(t, err)
	assert.False(t, a.Equal(c))
}

func TestTrioSharesPairwiseKeys(t *testing.T) {
	gens, err := prss.GenerateTrio(rand.Reader)
	require.NoError(t, err)

	s := step.Root().Narrow("test")
	for i := 0; i < 3; i++ {
		right, err := gens[i].Right(field.Fp31, s, 7)
		require.NoError(t, err)
		left, err := gens[(i+1)%3].Left(field.Fp31, s, 7)
		require.NoError(t, err)
		assert.True(t, right.Equal(left), "helper %d's right draw must equal helper %d's left draw", i, (i+1)%3)
	}
}

func TestZeroShareSumsToZeroAcrossTrio(t *testing.T) {
	gens, err := prss.GenerateTrio(rand.Reader)
	require.NoError(t, err)

	s := step.Root().Narrow("multiply").Narrow("zero")
	sum := field.Fp31.Zero()
	for i := 0; i < 3; i++ {
		z, err := gens[i].ZeroShare(field.Fp31, s, 42)
		require.NoError(t, err)
		sum = sum.Add(z)
	}
	assert.True(t, sum.IsZero())
}
