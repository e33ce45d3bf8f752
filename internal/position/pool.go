package position

import (
	"context"
	"math/big"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// Pool is the external concentrated-liquidity pool a vault deploys
// into. token0 is the debt asset and token1 the collateral asset.
// Swap amounts follow the signed convention: a positive amountSpecified
// is exact-in, a negative one exact-out; returned legs are positive
// when the pool receives the token and negative when it pays it out.
type Pool interface {
	// SqrtPriceX96 returns the current sqrt price in Q96 fixed point.
	SqrtPriceX96(ctx context.Context) (*uint256.Int, error)

	// Mint adds liquidity to [tickLower, tickUpper] for the owner,
	// pulling the backing token amounts from the owner's balances.
	Mint(ctx context.Context, owner uuid.UUID, tickLower, tickUpper int, liquidity *uint256.Int) (amount0, amount1 *uint256.Int, err error)

	// Burn removes liquidity, moving principal into the owed bucket.
	// Burning zero liquidity only refreshes the owed fee amounts.
	Burn(ctx context.Context, owner uuid.UUID, tickLower, tickUpper int, liquidity *uint256.Int) (amount0, amount1 *uint256.Int, err error)

	// Collect pays out everything owed to the owner for the range.
	Collect(ctx context.Context, owner uuid.UUID, tickLower, tickUpper int) (amount0, amount1 *uint256.Int, err error)

	// Position returns the owner's liquidity and uncollected fees.
	Position(ctx context.Context, owner uuid.UUID, tickLower, tickUpper int) (liquidity, fee0, fee1 *uint256.Int, err error)

	// Quote prices a swap without executing it. The returned legs
	// match what Swap would settle for the same arguments.
	Quote(ctx context.Context, zeroForOne bool, amountSpecified *big.Int, sqrtPriceLimitX96 *uint256.Int) (amount0, amount1 *big.Int, err error)

	// Swap trades against the pool on behalf of the owner.
	Swap(ctx context.Context, owner uuid.UUID, zeroForOne bool, amountSpecified *big.Int, sqrtPriceLimitX96 *uint256.Int) (amount0, amount1 *big.Int, err error)
}
