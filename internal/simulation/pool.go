// Package simulation provides deterministic in-memory stand-ins for the
// external venues a vault trades against: a concentrated-liquidity pool
// and a money market, both settling through the asset ledger.
package simulation

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"rangevault/internal/asset"
	"rangevault/internal/clmath"
)

type posKey struct {
	Owner uuid.UUID
	Lower int
	Upper int
}

type poolPosition struct {
	liquidity *uint256.Int
	pending0  *uint256.Int
	pending1  *uint256.Int
	owed0     *uint256.Int
	owed1     *uint256.Int
}

func newPoolPosition() *poolPosition {
	return &poolPosition{
		liquidity: new(uint256.Int),
		pending0:  new(uint256.Int),
		pending1:  new(uint256.Int),
		owed0:     new(uint256.Int),
		owed1:     new(uint256.Int),
	}
}

// Pool is an in-memory concentrated-liquidity pool. Positions use the
// real Q96 math; swaps execute at the current sqrt price without
// moving it, which keeps scenarios reproducible.
type Pool struct {
	mu      sync.Mutex
	ledger  *asset.Ledger
	account uuid.UUID
	token0  asset.Symbol
	token1  asset.Symbol

	sqrtPriceX96 *uint256.Int
	positions    map[posKey]*poolPosition
}

func NewPool(ledger *asset.Ledger, token0, token1 asset.Symbol, sqrtPriceX96 *uint256.Int) *Pool {
	return &Pool{
		ledger:       ledger,
		account:      uuid.New(),
		token0:       token0,
		token1:       token1,
		sqrtPriceX96: new(uint256.Int).Set(sqrtPriceX96),
		positions:    make(map[posKey]*poolPosition),
	}
}

// Account returns the pool's custody account in the asset ledger.
func (p *Pool) Account() uuid.UUID { return p.account }

// SetSqrtPrice moves the pool price, standing in for market activity.
func (p *Pool) SetSqrtPrice(sqrtPriceX96 *uint256.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sqrtPriceX96.Set(sqrtPriceX96)
}

func (p *Pool) SqrtPriceX96(ctx context.Context) (*uint256.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(uint256.Int).Set(p.sqrtPriceX96), nil
}

func (p *Pool) position(owner uuid.UUID, lower, upper int) *poolPosition {
	key := posKey{Owner: owner, Lower: lower, Upper: upper}
	pos, ok := p.positions[key]
	if !ok {
		pos = newPoolPosition()
		p.positions[key] = pos
	}
	return pos
}

func (p *Pool) rangeAmounts(lower, upper int, liquidity *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	sqrtA, err := clmath.SqrtRatioAtTick(lower)
	if err != nil {
		return nil, nil, err
	}
	sqrtB, err := clmath.SqrtRatioAtTick(upper)
	if err != nil {
		return nil, nil, err
	}
	amt0, amt1 := clmath.AmountsForLiquidity(p.sqrtPriceX96, sqrtA, sqrtB, liquidity)
	return amt0, amt1, nil
}

func (p *Pool) Mint(ctx context.Context, owner uuid.UUID, tickLower, tickUpper int, liquidity *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if liquidity.IsZero() {
		return nil, nil, fmt.Errorf("mint zero liquidity")
	}
	amt0, amt1, err := p.rangeAmounts(tickLower, tickUpper, liquidity)
	if err != nil {
		return nil, nil, err
	}
	if err := p.ledger.Transfer(owner, p.account, p.token0, amt0); err != nil {
		return nil, nil, err
	}
	if err := p.ledger.Transfer(owner, p.account, p.token1, amt1); err != nil {
		return nil, nil, err
	}

	pos := p.position(owner, tickLower, tickUpper)
	pos.liquidity.Add(pos.liquidity, liquidity)
	return amt0, amt1, nil
}

func (p *Pool) Burn(ctx context.Context, owner uuid.UUID, tickLower, tickUpper int, liquidity *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos := p.position(owner, tickLower, tickUpper)
	if liquidity.Cmp(pos.liquidity) > 0 {
		return nil, nil, fmt.Errorf("burn %s exceeds position liquidity %s", liquidity, pos.liquidity)
	}

	amt0, amt1, err := p.rangeAmounts(tickLower, tickUpper, liquidity)
	if err != nil {
		return nil, nil, err
	}
	pos.liquidity.Sub(pos.liquidity, liquidity)
	pos.owed0.Add(pos.owed0, amt0)
	pos.owed1.Add(pos.owed1, amt1)

	// Any burn, including zero, rolls pending fees into the owed bucket.
	pos.owed0.Add(pos.owed0, pos.pending0)
	pos.owed1.Add(pos.owed1, pos.pending1)
	pos.pending0.Clear()
	pos.pending1.Clear()

	return amt0, amt1, nil
}

func (p *Pool) Collect(ctx context.Context, owner uuid.UUID, tickLower, tickUpper int) (*uint256.Int, *uint256.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos := p.position(owner, tickLower, tickUpper)
	amt0 := new(uint256.Int).Set(pos.owed0)
	amt1 := new(uint256.Int).Set(pos.owed1)

	if err := p.ledger.Transfer(p.account, owner, p.token0, amt0); err != nil {
		return nil, nil, err
	}
	if err := p.ledger.Transfer(p.account, owner, p.token1, amt1); err != nil {
		return nil, nil, err
	}
	pos.owed0.Clear()
	pos.owed1.Clear()
	return amt0, amt1, nil
}

func (p *Pool) Position(ctx context.Context, owner uuid.UUID, tickLower, tickUpper int) (*uint256.Int, *uint256.Int, *uint256.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos := p.position(owner, tickLower, tickUpper)
	return new(uint256.Int).Set(pos.liquidity),
		new(uint256.Int).Set(pos.pending0),
		new(uint256.Int).Set(pos.pending1), nil
}

// AccrueFees credits uncollected trading fees to a position, minting
// the pool-side inventory that a later collect pays out.
func (p *Pool) AccrueFees(owner uuid.UUID, tickLower, tickUpper int, fee0, fee1 *uint256.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos := p.position(owner, tickLower, tickUpper)
	pos.pending0.Add(pos.pending0, fee0)
	pos.pending1.Add(pos.pending1, fee1)
	p.ledger.Credit(p.account, p.token0, fee0)
	p.ledger.Credit(p.account, p.token1, fee1)
}

var q192 = new(big.Int).Lsh(big.NewInt(1), 192)

// Quote prices a swap at the current sqrt price without settling it.
// The legs are exactly what Swap would return for the same arguments.
func (p *Pool) Quote(ctx context.Context, zeroForOne bool, amountSpecified *big.Int, sqrtPriceLimitX96 *uint256.Int) (*big.Int, *big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.quoteLocked(zeroForOne, amountSpecified, sqrtPriceLimitX96)
}

// Swap executes at the current sqrt price without price impact.
// Positive legs flow into the pool, negative legs out to the owner.
func (p *Pool) Swap(ctx context.Context, owner uuid.UUID, zeroForOne bool, amountSpecified *big.Int, sqrtPriceLimitX96 *uint256.Int) (*big.Int, *big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	amount0, amount1, err := p.quoteLocked(zeroForOne, amountSpecified, sqrtPriceLimitX96)
	if err != nil {
		return nil, nil, err
	}

	if err := p.settleLeg(owner, p.token0, amount0); err != nil {
		return nil, nil, err
	}
	if err := p.settleLeg(owner, p.token1, amount1); err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

func (p *Pool) quoteLocked(zeroForOne bool, amountSpecified *big.Int, sqrtPriceLimitX96 *uint256.Int) (*big.Int, *big.Int, error) {
	if amountSpecified == nil || amountSpecified.Sign() == 0 {
		return nil, nil, fmt.Errorf("swap amount must be nonzero")
	}
	if zeroForOne && sqrtPriceLimitX96.Cmp(p.sqrtPriceX96) >= 0 {
		return nil, nil, fmt.Errorf("sqrt price limit %s not below current price", sqrtPriceLimitX96)
	}
	if !zeroForOne && sqrtPriceLimitX96.Cmp(p.sqrtPriceX96) <= 0 {
		return nil, nil, fmt.Errorf("sqrt price limit %s not above current price", sqrtPriceLimitX96)
	}

	// price = token1 per token0 = sqrtP^2 / 2^192
	priceNum := new(big.Int).Mul(p.sqrtPriceX96.ToBig(), p.sqrtPriceX96.ToBig())

	abs := new(big.Int).Abs(amountSpecified)
	exactIn := amountSpecified.Sign() > 0

	var amount0, amount1 *big.Int
	switch {
	case zeroForOne && exactIn:
		out := new(big.Int).Mul(abs, priceNum)
		out.Div(out, q192)
		amount0 = new(big.Int).Set(abs)
		amount1 = new(big.Int).Neg(out)
	case zeroForOne && !exactIn:
		in := new(big.Int).Mul(abs, q192)
		in = ceilDiv(in, priceNum)
		amount0 = in
		amount1 = new(big.Int).Neg(abs)
	case !zeroForOne && exactIn:
		out := new(big.Int).Mul(abs, q192)
		out.Div(out, priceNum)
		amount0 = new(big.Int).Neg(out)
		amount1 = new(big.Int).Set(abs)
	default:
		in := new(big.Int).Mul(abs, priceNum)
		in = ceilDiv(in, q192)
		amount0 = new(big.Int).Neg(abs)
		amount1 = in
	}
	return amount0, amount1, nil
}

func (p *Pool) settleLeg(owner uuid.UUID, symbol asset.Symbol, leg *big.Int) error {
	if leg.Sign() == 0 {
		return nil
	}
	amount := uint256.MustFromBig(new(big.Int).Abs(leg))
	if leg.Sign() > 0 {
		return p.ledger.Transfer(owner, p.account, symbol, amount)
	}
	return p.ledger.Transfer(p.account, owner, symbol, amount)
}

func ceilDiv(num, den *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}
