package clmath

import (
	"math/big"

	"github.com/holiman/uint256"
)

// MulDiv computes floor(a * b / denominator) with a full-width
// intermediate product. Division by zero returns zero rather than
// panicking; callers validate denominators.
func MulDiv(a, b, denominator *uint256.Int) *uint256.Int {
	if denominator.IsZero() {
		return uint256.NewInt(0)
	}
	num := new(big.Int).Mul(a.ToBig(), b.ToBig())
	num.Div(num, denominator.ToBig())
	return uint256.MustFromBig(num)
}

// liquidityForAmount0 computes L = amount0 * (sqrtA * sqrtB / Q96) / (sqrtB - sqrtA).
func liquidityForAmount0(sqrtA, sqrtB, amount0 *uint256.Int) *uint256.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	intermediate := MulDiv(sqrtA, sqrtB, Q96)
	diff := new(uint256.Int).Sub(sqrtB, sqrtA)
	return MulDiv(amount0, intermediate, diff)
}

// liquidityForAmount1 computes L = amount1 * Q96 / (sqrtB - sqrtA).
func liquidityForAmount1(sqrtA, sqrtB, amount1 *uint256.Int) *uint256.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	diff := new(uint256.Int).Sub(sqrtB, sqrtA)
	return MulDiv(amount1, Q96, diff)
}

// LiquidityForAmounts returns the maximum liquidity the pool will accept
// for the given token budgets at the current sqrt price. Outside the
// range only one side contributes; inside, the smaller of the two
// single-sided liquidities binds.
func LiquidityForAmounts(sqrtP, sqrtA, sqrtB, amount0, amount1 *uint256.Int) *uint256.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}

	switch {
	case sqrtP.Cmp(sqrtA) <= 0:
		return liquidityForAmount0(sqrtA, sqrtB, amount0)
	case sqrtP.Cmp(sqrtB) < 0:
		l0 := liquidityForAmount0(sqrtP, sqrtB, amount0)
		l1 := liquidityForAmount1(sqrtA, sqrtP, amount1)
		if l0.Cmp(l1) < 0 {
			return l0
		}
		return l1
	default:
		return liquidityForAmount1(sqrtA, sqrtB, amount1)
	}
}

// amount0ForLiquidity computes amount0 = (L << 96) * (sqrtB - sqrtA) / sqrtB / sqrtA.
func amount0ForLiquidity(sqrtA, sqrtB, liquidity *uint256.Int) *uint256.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	num := new(big.Int).Lsh(liquidity.ToBig(), 96)
	diff := new(big.Int).Sub(sqrtB.ToBig(), sqrtA.ToBig())
	num.Mul(num, diff)
	num.Div(num, sqrtB.ToBig())
	num.Div(num, sqrtA.ToBig())
	return uint256.MustFromBig(num)
}

// amount1ForLiquidity computes amount1 = L * (sqrtB - sqrtA) / Q96.
func amount1ForLiquidity(sqrtA, sqrtB, liquidity *uint256.Int) *uint256.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	diff := new(uint256.Int).Sub(sqrtB, sqrtA)
	return MulDiv(liquidity, diff, Q96)
}

// AmountsForLiquidity returns the token amounts currently backing the
// given liquidity between sqrtA and sqrtB at sqrt price sqrtP.
func AmountsForLiquidity(sqrtP, sqrtA, sqrtB, liquidity *uint256.Int) (amount0, amount1 *uint256.Int) {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}

	switch {
	case sqrtP.Cmp(sqrtA) <= 0:
		return amount0ForLiquidity(sqrtA, sqrtB, liquidity), uint256.NewInt(0)
	case sqrtP.Cmp(sqrtB) < 0:
		return amount0ForLiquidity(sqrtP, sqrtB, liquidity), amount1ForLiquidity(sqrtA, sqrtP, liquidity)
	default:
		return uint256.NewInt(0), amount1ForLiquidity(sqrtA, sqrtB, liquidity)
	}
}
