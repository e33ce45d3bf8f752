package position

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"rangevault/internal/clmath"
)

var (
	ErrInPosition       = errors.New("vault is already in a position")
	ErrNotInPosition    = errors.New("vault is not in a position")
	ErrSlippageExceeded = errors.New("slippage exceeded")
	ErrZeroLiquidity    = errors.New("amounts produce zero liquidity")
)

// Engine tracks one vault's position lifecycle in the pool: either flat
// (NotInPosition) or holding a single full-liquidity range (InPosition).
//
// The engine is pure mechanics. Authorization, fee splits and event
// emission belong to the owning vault, which also serializes access.
type Engine struct {
	pool  Pool
	owner uuid.UUID

	inPosition bool
	lowerTick  int
	upperTick  int
}

func NewEngine(pool Pool, owner uuid.UUID) *Engine {
	return &Engine{pool: pool, owner: owner}
}

// InPosition reports whether the vault currently holds a range.
func (e *Engine) InPosition() bool { return e.inPosition }

// Ticks returns the active range. Only meaningful while InPosition.
func (e *Engine) Ticks() (lower, upper int) { return e.lowerTick, e.upperTick }

// AddResult describes an opened position.
type AddResult struct {
	Liquidity *uint256.Int
	TickLower int
	TickUpper int
	Amount0   *uint256.Int
	Amount1   *uint256.Int
}

// AddLiquidity opens a position across [tickLower, tickUpper] using up
// to the desired amounts. The liquidity is the maximum the current
// price admits for the budgets; the amounts actually consumed must meet
// the minimums or the whole operation fails before touching the pool.
func (e *Engine) AddLiquidity(ctx context.Context, tickLower, tickUpper int, desired0, desired1, min0, min1 *uint256.Int) (AddResult, error) {
	if e.inPosition {
		return AddResult{}, ErrInPosition
	}
	if tickLower >= tickUpper {
		return AddResult{}, fmt.Errorf("invalid tick range [%d, %d]", tickLower, tickUpper)
	}

	sqrtA, err := clmath.SqrtRatioAtTick(tickLower)
	if err != nil {
		return AddResult{}, err
	}
	sqrtB, err := clmath.SqrtRatioAtTick(tickUpper)
	if err != nil {
		return AddResult{}, err
	}
	sqrtP, err := e.pool.SqrtPriceX96(ctx)
	if err != nil {
		return AddResult{}, fmt.Errorf("read pool price: %w", err)
	}

	liquidity := clmath.LiquidityForAmounts(sqrtP, sqrtA, sqrtB, desired0, desired1)
	if liquidity.IsZero() {
		return AddResult{}, ErrZeroLiquidity
	}

	use0, use1 := clmath.AmountsForLiquidity(sqrtP, sqrtA, sqrtB, liquidity)
	if use0.Cmp(min0) < 0 || use1.Cmp(min1) < 0 {
		return AddResult{}, fmt.Errorf("%w: would use %s/%s, minimums %s/%s",
			ErrSlippageExceeded, use0, use1, min0, min1)
	}

	amt0, amt1, err := e.pool.Mint(ctx, e.owner, tickLower, tickUpper, liquidity)
	if err != nil {
		return AddResult{}, fmt.Errorf("pool mint: %w", err)
	}

	e.inPosition = true
	e.lowerTick = tickLower
	e.upperTick = tickUpper

	return AddResult{
		Liquidity: liquidity,
		TickLower: tickLower,
		TickUpper: tickUpper,
		Amount0:   amt0,
		Amount1:   amt1,
	}, nil
}

// RemoveResult describes a closed position. Fee amounts are the
// uncollected trading fees that came back alongside the principal.
type RemoveResult struct {
	Liquidity *uint256.Int
	TickLower int
	TickUpper int
	Amount0   *uint256.Int
	Amount1   *uint256.Int
	Fee0      *uint256.Int
	Fee1      *uint256.Int
}

// RemoveLiquidity burns the full position and collects principal plus
// accrued fees. The principal legs must meet the minimums, checked at
// the current price before the pool is touched.
func (e *Engine) RemoveLiquidity(ctx context.Context, min0, min1 *uint256.Int) (RemoveResult, error) {
	if !e.inPosition {
		return RemoveResult{}, ErrNotInPosition
	}

	liquidity, fee0, fee1, err := e.pool.Position(ctx, e.owner, e.lowerTick, e.upperTick)
	if err != nil {
		return RemoveResult{}, fmt.Errorf("read position: %w", err)
	}

	sqrtP, err := e.pool.SqrtPriceX96(ctx)
	if err != nil {
		return RemoveResult{}, fmt.Errorf("read pool price: %w", err)
	}
	sqrtA, err := clmath.SqrtRatioAtTick(e.lowerTick)
	if err != nil {
		return RemoveResult{}, err
	}
	sqrtB, err := clmath.SqrtRatioAtTick(e.upperTick)
	if err != nil {
		return RemoveResult{}, err
	}

	expect0, expect1 := clmath.AmountsForLiquidity(sqrtP, sqrtA, sqrtB, liquidity)
	if expect0.Cmp(min0) < 0 || expect1.Cmp(min1) < 0 {
		return RemoveResult{}, fmt.Errorf("%w: principal %s/%s, minimums %s/%s",
			ErrSlippageExceeded, expect0, expect1, min0, min1)
	}

	principal0, principal1, err := e.pool.Burn(ctx, e.owner, e.lowerTick, e.upperTick, liquidity)
	if err != nil {
		return RemoveResult{}, fmt.Errorf("pool burn: %w", err)
	}

	if _, _, err := e.pool.Collect(ctx, e.owner, e.lowerTick, e.upperTick); err != nil {
		return RemoveResult{}, fmt.Errorf("pool collect: %w", err)
	}

	res := RemoveResult{
		Liquidity: liquidity,
		TickLower: e.lowerTick,
		TickUpper: e.upperTick,
		Amount0:   principal0,
		Amount1:   principal1,
		Fee0:      fee0,
		Fee1:      fee1,
	}

	e.inPosition = false
	e.lowerTick = 0
	e.upperTick = 0

	return res, nil
}

// PullFees collects accrued trading fees without touching the
// principal. A zero-liquidity burn refreshes the owed amounts first.
func (e *Engine) PullFees(ctx context.Context) (fee0, fee1 *uint256.Int, err error) {
	if !e.inPosition {
		return nil, nil, ErrNotInPosition
	}
	if _, _, err := e.pool.Burn(ctx, e.owner, e.lowerTick, e.upperTick, uint256.NewInt(0)); err != nil {
		return nil, nil, fmt.Errorf("poke pool: %w", err)
	}
	fee0, fee1, err = e.pool.Collect(ctx, e.owner, e.lowerTick, e.upperTick)
	if err != nil {
		return nil, nil, fmt.Errorf("pool collect: %w", err)
	}
	return fee0, fee1, nil
}

// CurrentFees reads the uncollected trading fees without collecting.
func (e *Engine) CurrentFees(ctx context.Context) (fee0, fee1 *uint256.Int, err error) {
	if !e.inPosition {
		return uint256.NewInt(0), uint256.NewInt(0), nil
	}
	_, fee0, fee1, err = e.pool.Position(ctx, e.owner, e.lowerTick, e.upperTick)
	if err != nil {
		return nil, nil, fmt.Errorf("read position: %w", err)
	}
	return fee0, fee1, nil
}

// Underlying returns the token amounts backing the position at the
// current price plus its uncollected fees. Flat vaults report zeros.
func (e *Engine) Underlying(ctx context.Context) (amount0, amount1, fee0, fee1 *uint256.Int, err error) {
	if !e.inPosition {
		return uint256.NewInt(0), uint256.NewInt(0), uint256.NewInt(0), uint256.NewInt(0), nil
	}

	liquidity, fee0, fee1, err := e.pool.Position(ctx, e.owner, e.lowerTick, e.upperTick)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("read position: %w", err)
	}
	sqrtP, err := e.pool.SqrtPriceX96(ctx)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("read pool price: %w", err)
	}
	sqrtA, err := clmath.SqrtRatioAtTick(e.lowerTick)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	sqrtB, err := clmath.SqrtRatioAtTick(e.upperTick)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	amount0, amount1 = clmath.AmountsForLiquidity(sqrtP, sqrtA, sqrtB, liquidity)
	return amount0, amount1, fee0, fee1, nil
}

// Swap trades against the pool. The received leg must reach
// minAmountOut; the trade is rejected on a quote before anything
// settles.
func (e *Engine) Swap(ctx context.Context, zeroForOne bool, amountSpecified *big.Int, sqrtPriceLimitX96, minAmountOut *uint256.Int) (amount0, amount1 *big.Int, err error) {
	quote0, quote1, err := e.pool.Quote(ctx, zeroForOne, amountSpecified, sqrtPriceLimitX96)
	if err != nil {
		return nil, nil, fmt.Errorf("pool quote: %w", err)
	}

	out := quote1
	if !zeroForOne {
		out = quote0
	}
	// The pool pays the output leg as a negative amount.
	received := new(big.Int).Neg(out)
	if received.Sign() < 0 {
		received.SetInt64(0)
	}
	if received.Cmp(minAmountOut.ToBig()) < 0 {
		return nil, nil, fmt.Errorf("%w: would receive %s, minimum %s", ErrSlippageExceeded, received, minAmountOut)
	}

	amount0, amount1, err = e.pool.Swap(ctx, e.owner, zeroForOne, amountSpecified, sqrtPriceLimitX96)
	if err != nil {
		return nil, nil, fmt.Errorf("pool swap: %w", err)
	}
	return amount0, amount1, nil
}
