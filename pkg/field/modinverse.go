package field

import "math/big"

// ModInverse computes t such that (m * t) % n == 1, using the extended
// binary GCD algorithm, ported from original_source's
// helpers::prf_compute::multiplicative_inverse::mod_inverse (raw-ipa,
// Rust). pkg/oprf's EvalDYPRF uses it to invert the revealed mk+k modulo
// the OPRF group order.
//
// ModInverse returns (nil, false) if gcd(m, n) != 1.
func ModInverse(m, n *big.Int) (*big.Int, bool) {
	a, _, g := extendedBinaryGCD(m, n)
	if g.Cmp(big.NewInt(1)) != 0 {
		return nil, false
	}
	if a.Sign() < 0 {
		for a.Sign() < 0 {
			a.Add(a, n)
		}
		return a, true
	}
	return new(big.Int).Mod(a, n), true
}

// extendedBinaryGCD returns (a, b, g) such that a*m + b*n = g = gcd(m, n).
func extendedBinaryGCD(m, n *big.Int) (*big.Int, *big.Int, *big.Int) {
	x := new(big.Int).Set(m)
	y := new(big.Int).Set(n)
	g := big.NewInt(1)

	shift := minTrailingZeros(x, y)
	x.Rsh(x, shift)
	y.Rsh(y, shift)
	g.Lsh(g, shift)

	u := new(big.Int).Set(x)
	v := new(big.Int).Set(y)
	a := big.NewInt(1)
	b := big.NewInt(0)
	c := big.NewInt(0)
	d := big.NewInt(1)

	two := big.NewInt(2)

	for {
		for u.Bit(0) == 0 {
			u.Rsh(u, 1)
			if a.Bit(0) == 0 && b.Bit(0) == 0 {
				a.Rsh(a, 1)
				b.Rsh(b, 1)
			} else {
				a.Add(a, y)
				a.Div(a, two)
				b.Sub(b, x)
				b.Div(b, two)
			}
		}
		for v.Bit(0) == 0 {
			v.Rsh(v, 1)
			if c.Bit(0) == 0 && d.Bit(0) == 0 {
				c.Rsh(c, 1)
				d.Rsh(d, 1)
			} else {
				c.Add(c, y)
				c.Div(c, two)
				d.Sub(d, x)
				d.Div(d, two)
			}
		}
		if u.Cmp(v) >= 0 {
			u.Sub(u, v)
			a.Sub(a, c)
			b.Sub(b, d)
		} else {
			v.Sub(v, u)
			c.Sub(c, a)
			d.Sub(d, b)
		}
		if u.Sign() == 0 {
			return c, d, v.Mul(v, g)
		}
	}
}

func minTrailingZeros(x, y *big.Int) uint {
	tz := func(v *big.Int) uint {
		if v.Sign() == 0 {
			return 0
		}
		n := uint(0)
		t := new(big.Int).Set(v)
		for t.Bit(0) == 0 {
			t.Rsh(t, 1)
			n++
		}
		return n
	}
	xz, yz := tz(x), tz(y)
	if xz < yz {
		return xz
	}
	return yz
}
