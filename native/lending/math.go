package lending

import "math/big"

var (
	// wad is the 1e18 fixed point unit used for rates, fees and the multiplier.
	wad = mustBigInt("1000000000000000000")
)

// secondsPerYear is the Julian year used to annualise interest rates.
const secondsPerYear = 31_557_600

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// WAD returns a fresh copy of the 1e18 fixed point unit.
func WAD() *big.Int {
	return new(big.Int).Set(wad)
}

// mulDiv computes a*b/c truncated toward zero. A zero divisor yields zero.
func mulDiv(a, b, c *big.Int) *big.Int {
	if a == nil || b == nil || c == nil || c.Sign() == 0 {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(a, b)
	return product.Quo(product, c)
}

func wadMul(a, b *big.Int) *big.Int {
	return mulDiv(a, b, wad)
}

func wadDiv(a, b *big.Int) *big.Int {
	return mulDiv(a, wad, b)
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
