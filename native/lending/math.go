package lending

import "math/big"

var (
	basisPoints = big.NewInt(10_000)
	// wad is the 18-decimal fixed point unit shared by balances, NAV values
	// and the health factor.
	wad = mustBigInt("1000000000000000000")
	// liquidationThreshold is the fixed health factor floor (0.95 in wad)
	// below which positions become liquidatable.
	liquidationThreshold = mustBigInt("950000000000000000")
)

const secondsPerYear = 31_536_000

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// mulDiv computes floor(a * b / den). Division truncates toward zero, which
// for the accrual path intentionally drops fractional interest below one unit
// in the borrower's favour.
func mulDiv(a, b, den *big.Int) *big.Int {
	if a == nil || b == nil || den == nil || den.Sign() == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, den)
}

func bpsShare(amount *big.Int, bps uint64) *big.Int {
	if amount == nil || amount.Sign() == 0 || bps == 0 {
		return big.NewInt(0)
	}
	return mulDiv(amount, new(big.Int).SetUint64(bps), basisPoints)
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func minBig(values ...*big.Int) *big.Int {
	var min *big.Int
	for _, v := range values {
		if v == nil {
			continue
		}
		if min == nil || v.Cmp(min) < 0 {
			min = v
		}
	}
	if min == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(min)
}
