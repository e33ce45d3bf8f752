package feemath

import (
	"errors"

	"github.com/holiman/uint256"

	"rangevault/internal/clmath"
)

// Fee rates are expressed in basis points of 1/10000.
const (
	BPSDivisor = 10000

	// MaxManagingFeeBPS caps the exit fee at 1%.
	MaxManagingFeeBPS = 100

	// MaxPerformanceFeeBPS caps the trading-fee cut at 100%.
	MaxPerformanceFeeBPS = 10000
)

var (
	ErrInvalidManagingFee    = errors.New("managing fee exceeds maximum")
	ErrInvalidPerformanceFee = errors.New("performance fee exceeds maximum")
)

// ValidateRates checks a managing/performance fee pair against the caps.
// Both are validated so a single bad update cannot land either rate.
func ValidateRates(managingBPS, performanceBPS uint64) error {
	if managingBPS > MaxManagingFeeBPS {
		return ErrInvalidManagingFee
	}
	if performanceBPS > MaxPerformanceFeeBPS {
		return ErrInvalidPerformanceFee
	}
	return nil
}

// ApplyBPS returns floor(amount * bps / 10000).
func ApplyBPS(amount *uint256.Int, bps uint64) *uint256.Int {
	if bps == 0 || amount.IsZero() {
		return uint256.NewInt(0)
	}
	return clmath.MulDiv(amount, uint256.NewInt(bps), uint256.NewInt(BPSDivisor))
}

// SharesForDeposit returns the shares to issue for a deposit.
// The first deposit seeds the supply 1:1; later deposits receive a
// pro-rata slice of the existing supply: floor(amount * supply / totalValue).
func SharesForDeposit(amount, supply, totalValue *uint256.Int) *uint256.Int {
	if supply.IsZero() {
		return new(uint256.Int).Set(amount)
	}
	return clmath.MulDiv(amount, supply, totalValue)
}

// ValueForShares returns the gross redemption value of shares:
// floor(shares * totalValue / supply).
func ValueForShares(shares, supply, totalValue *uint256.Int) *uint256.Int {
	if supply.IsZero() {
		return uint256.NewInt(0)
	}
	return clmath.MulDiv(shares, totalValue, supply)
}

// MovedBasis returns the slice of a holder's basis that travels with a
// share transfer. It is the complement of the retained portion,
// basis - floor(basis * (balance - amount) / balance), so a full
// transfer always moves the entire basis and no rounding dust is lost.
func MovedBasis(basis, balance, amount *uint256.Int) *uint256.Int {
	if balance.IsZero() || basis.IsZero() {
		return uint256.NewInt(0)
	}
	remaining := new(uint256.Int).Sub(balance, amount)
	retained := clmath.MulDiv(basis, remaining, balance)
	return new(uint256.Int).Sub(basis, retained)
}
