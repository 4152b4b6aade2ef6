package field_test

import (
	"testing"

	"github.com/luxfi/ipa/pkg/field"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFp31Arithmetic(t *testing.T) {
	a := field.Fp31.NewElement(7)
	b := field.Fp31.NewElement(5)
	// a=7, b=5 in F_31 -> a*b = 35 mod 31 = 4.
	assert.True(t, a.Mul(b).Equal(field.Fp31.NewElement(4)))
}

func TestFp31Inverse(t *testing.T) {
	a := field.Fp31.NewElement(7)
	inv, ok := a.Inv()
	require.True(t, ok)
	assert.True(t, a.Mul(inv).Equal(field.Fp31.One()))
}

func TestSerializeRoundTrip(t *testing.T) {
	for _, f := range []field.Field{field.Fp31, field.FpMersenne31, field.Fp32BitPrime, field.Gf32Bit} {
		e := f.NewElement(12345)
		data := e.Serialize()
		assert.Len(t, data, f.ByteLen())
		got, err := f.Deserialize(data)
		require.NoError(t, err)
		assert.True(t, e.Equal(got), "round trip failed for %s", f.Name())
	}
}

func TestGf32BitAddIsXor(t *testing.T) {
	a := field.Gf32Bit.NewElement(0xDEADBEEF)
	b := field.Gf32Bit.NewElement(0x0BADF00D)
	sum := a.Add(b)
	want := field.Gf32Bit.NewElement(uint64(0xDEADBEEF ^ 0x0BADF00D))
	assert.True(t, sum.Equal(want))
}

func TestGf32BitInverse(t *testing.T) {
	a := field.Gf32Bit.NewElement(42)
	inv, ok := a.Inv()
	require.True(t, ok)
	assert.True(t, a.Mul(inv).Equal(field.Gf32Bit.One()))
}
