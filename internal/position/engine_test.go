package position_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"rangevault/internal/asset"
	"rangevault/internal/clmath"
	"rangevault/internal/position"
	"rangevault/internal/simulation"
)

const (
	gho  = asset.Symbol("GHO")
	usdc = asset.Symbol("USDC")
)

type fixture struct {
	ledger *asset.Ledger
	pool   *simulation.Pool
	engine *position.Engine
	owner  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ledger := asset.NewLedger()
	owner := uuid.New()

	// Price at tick 0: one token1 per token0.
	pool := simulation.NewPool(ledger, gho, usdc, clmath.Q96)

	ledger.Credit(owner, gho, uint256.NewInt(10_000_000))
	ledger.Credit(owner, usdc, uint256.NewInt(10_000_000))

	return &fixture{
		ledger: ledger,
		pool:   pool,
		engine: position.NewEngine(pool, owner),
		owner:  owner,
	}
}

func (f *fixture) open(t *testing.T) position.AddResult {
	t.Helper()
	res, err := f.engine.AddLiquidity(context.Background(), -600, 600,
		uint256.NewInt(1_000_000), uint256.NewInt(1_000_000),
		uint256.NewInt(0), uint256.NewInt(0))
	if err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
	return res
}

// ============================================================================
// Test: AddLiquidity
// ============================================================================

func TestEngine_AddLiquidity(t *testing.T) {
	f := newFixture(t)

	res := f.open(t)
	if res.Liquidity.IsZero() {
		t.Fatal("expected nonzero liquidity")
	}
	if !f.engine.InPosition() {
		t.Error("engine should be in position")
	}
	lower, upper := f.engine.Ticks()
	if lower != -600 || upper != 600 {
		t.Errorf("ticks = [%d, %d], want [-600, 600]", lower, upper)
	}

	// The pool pulled exactly the reported amounts.
	want0 := new(uint256.Int).Sub(uint256.NewInt(10_000_000), res.Amount0)
	if got := f.ledger.BalanceOf(f.owner, gho); got.Cmp(want0) != 0 {
		t.Errorf("token0 balance = %s, want %s", got, want0)
	}
	want1 := new(uint256.Int).Sub(uint256.NewInt(10_000_000), res.Amount1)
	if got := f.ledger.BalanceOf(f.owner, usdc); got.Cmp(want1) != 0 {
		t.Errorf("token1 balance = %s, want %s", got, want1)
	}
}

func TestEngine_AddLiquidityTwice(t *testing.T) {
	f := newFixture(t)
	f.open(t)

	_, err := f.engine.AddLiquidity(context.Background(), -1200, 1200,
		uint256.NewInt(1000), uint256.NewInt(1000),
		uint256.NewInt(0), uint256.NewInt(0))
	if !errors.Is(err, position.ErrInPosition) {
		t.Errorf("got %v, want ErrInPosition", err)
	}
}

func TestEngine_AddLiquidityInvertedTicks(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.AddLiquidity(context.Background(), 600, -600,
		uint256.NewInt(1000), uint256.NewInt(1000),
		uint256.NewInt(0), uint256.NewInt(0))
	if err == nil {
		t.Error("expected error for inverted tick range")
	}
}

func TestEngine_AddLiquiditySlippage(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.AddLiquidity(context.Background(), -600, 600,
		uint256.NewInt(1_000_000), uint256.NewInt(1_000_000),
		uint256.NewInt(2_000_000), uint256.NewInt(0))
	if !errors.Is(err, position.ErrSlippageExceeded) {
		t.Fatalf("got %v, want ErrSlippageExceeded", err)
	}
	if f.engine.InPosition() {
		t.Error("failed add must leave the engine flat")
	}
	if got := f.ledger.BalanceOf(f.owner, gho); got.Uint64() != 10_000_000 {
		t.Errorf("failed add moved funds: balance %s", got)
	}
}

func TestEngine_AddLiquidityZeroBudgets(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.AddLiquidity(context.Background(), -600, 600,
		uint256.NewInt(0), uint256.NewInt(0),
		uint256.NewInt(0), uint256.NewInt(0))
	if !errors.Is(err, position.ErrZeroLiquidity) {
		t.Errorf("got %v, want ErrZeroLiquidity", err)
	}
}

// ============================================================================
// Test: RemoveLiquidity
// ============================================================================

func TestEngine_RemoveLiquidityWhileFlat(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.RemoveLiquidity(context.Background(), uint256.NewInt(0), uint256.NewInt(0))
	if !errors.Is(err, position.ErrNotInPosition) {
		t.Errorf("got %v, want ErrNotInPosition", err)
	}
}

func TestEngine_RemoveLiquidityReturnsPrincipalAndFees(t *testing.T) {
	f := newFixture(t)
	added := f.open(t)

	f.pool.AccrueFees(f.owner, -600, 600, uint256.NewInt(300), uint256.NewInt(700))

	res, err := f.engine.RemoveLiquidity(context.Background(), uint256.NewInt(0), uint256.NewInt(0))
	if err != nil {
		t.Fatalf("remove liquidity: %v", err)
	}
	if f.engine.InPosition() {
		t.Error("engine should be flat after removal")
	}
	if res.Liquidity.Cmp(added.Liquidity) != 0 {
		t.Errorf("burned %s liquidity, want %s", res.Liquidity, added.Liquidity)
	}
	if res.Fee0.Uint64() != 300 || res.Fee1.Uint64() != 700 {
		t.Errorf("fees = %s/%s, want 300/700", res.Fee0, res.Fee1)
	}

	// Everything (principal + fees) settled back to the owner.
	want0 := new(uint256.Int).Sub(uint256.NewInt(10_000_000), added.Amount0)
	want0.Add(want0, res.Amount0)
	want0.Add(want0, uint256.NewInt(300))
	if got := f.ledger.BalanceOf(f.owner, gho); got.Cmp(want0) != 0 {
		t.Errorf("token0 balance = %s, want %s", got, want0)
	}
}

func TestEngine_RemoveLiquiditySlippage(t *testing.T) {
	f := newFixture(t)
	res := f.open(t)

	gho0 := f.ledger.BalanceOf(f.owner, gho)
	usdc0 := f.ledger.BalanceOf(f.owner, usdc)

	_, err := f.engine.RemoveLiquidity(context.Background(),
		uint256.NewInt(100_000_000), uint256.NewInt(0))
	if !errors.Is(err, position.ErrSlippageExceeded) {
		t.Fatalf("got %v, want ErrSlippageExceeded", err)
	}

	// The rejection happens before the pool is touched: the position
	// survives untouched and nothing settles.
	if !f.engine.InPosition() {
		t.Error("engine should still be in position")
	}
	liquidity, _, _, err := f.pool.Position(context.Background(), f.owner, -600, 600)
	if err != nil {
		t.Fatalf("read position: %v", err)
	}
	if liquidity.Cmp(res.Liquidity) != 0 {
		t.Errorf("pool liquidity = %s, want %s", liquidity, res.Liquidity)
	}
	if got := f.ledger.BalanceOf(f.owner, gho); got.Cmp(gho0) != 0 {
		t.Errorf("gho balance = %s, want %s", got, gho0)
	}
	if got := f.ledger.BalanceOf(f.owner, usdc); got.Cmp(usdc0) != 0 {
		t.Errorf("usdc balance = %s, want %s", got, usdc0)
	}
}

// ============================================================================
// Test: Fees
// ============================================================================

func TestEngine_CurrentFees(t *testing.T) {
	f := newFixture(t)

	// Flat engine reports zero fees.
	fee0, fee1, err := f.engine.CurrentFees(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !fee0.IsZero() || !fee1.IsZero() {
		t.Errorf("flat fees = %s/%s, want 0/0", fee0, fee1)
	}

	f.open(t)
	f.pool.AccrueFees(f.owner, -600, 600, uint256.NewInt(11), uint256.NewInt(22))

	fee0, fee1, err = f.engine.CurrentFees(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if fee0.Uint64() != 11 || fee1.Uint64() != 22 {
		t.Errorf("fees = %s/%s, want 11/22", fee0, fee1)
	}
}

func TestEngine_PullFees(t *testing.T) {
	f := newFixture(t)
	f.open(t)
	f.pool.AccrueFees(f.owner, -600, 600, uint256.NewInt(500), uint256.NewInt(900))

	before0 := f.ledger.BalanceOf(f.owner, gho)

	fee0, fee1, err := f.engine.PullFees(context.Background())
	if err != nil {
		t.Fatalf("pull fees: %v", err)
	}
	if fee0.Uint64() != 500 || fee1.Uint64() != 900 {
		t.Errorf("pulled %s/%s, want 500/900", fee0, fee1)
	}
	if !f.engine.InPosition() {
		t.Error("pulling fees must not close the position")
	}

	after0 := f.ledger.BalanceOf(f.owner, gho)
	diff := new(uint256.Int).Sub(after0, before0)
	if diff.Uint64() != 500 {
		t.Errorf("token0 delta = %s, want 500", diff)
	}

	// Nothing more to pull.
	fee0, fee1, err = f.engine.PullFees(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !fee0.IsZero() || !fee1.IsZero() {
		t.Errorf("second pull = %s/%s, want 0/0", fee0, fee1)
	}
}

// ============================================================================
// Test: Underlying
// ============================================================================

func TestEngine_Underlying(t *testing.T) {
	f := newFixture(t)
	added := f.open(t)
	f.pool.AccrueFees(f.owner, -600, 600, uint256.NewInt(7), uint256.NewInt(8))

	amt0, amt1, fee0, fee1, err := f.engine.Underlying(context.Background())
	if err != nil {
		t.Fatalf("underlying: %v", err)
	}
	if amt0.Cmp(added.Amount0) != 0 || amt1.Cmp(added.Amount1) != 0 {
		t.Errorf("underlying = %s/%s, want %s/%s", amt0, amt1, added.Amount0, added.Amount1)
	}
	if fee0.Uint64() != 7 || fee1.Uint64() != 8 {
		t.Errorf("underlying fees = %s/%s, want 7/8", fee0, fee1)
	}
}

// ============================================================================
// Test: Swap
// ============================================================================

func TestEngine_SwapExactIn(t *testing.T) {
	f := newFixture(t)
	// Give the pool token1 inventory to pay out.
	f.ledger.Credit(f.pool.Account(), usdc, uint256.NewInt(1_000_000))

	limit, _ := clmath.SqrtRatioAtTick(-10_000)
	amount0, amount1, err := f.engine.Swap(context.Background(), true,
		big.NewInt(1000), limit, uint256.NewInt(900))
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if amount0.Sign() <= 0 || amount1.Sign() >= 0 {
		t.Errorf("legs = %s/%s, want +in/-out", amount0, amount1)
	}
}

func TestEngine_SwapBelowMinimumOut(t *testing.T) {
	f := newFixture(t)
	f.ledger.Credit(f.pool.Account(), usdc, uint256.NewInt(1_000_000))

	gho0 := f.ledger.BalanceOf(f.owner, gho)
	usdc0 := f.ledger.BalanceOf(f.owner, usdc)

	limit, _ := clmath.SqrtRatioAtTick(-10_000)
	_, _, err := f.engine.Swap(context.Background(), true,
		big.NewInt(1000), limit, uint256.NewInt(10_000))
	if !errors.Is(err, position.ErrSlippageExceeded) {
		t.Fatalf("got %v, want ErrSlippageExceeded", err)
	}

	// Rejected on the quote: neither leg settles.
	if got := f.ledger.BalanceOf(f.owner, gho); got.Cmp(gho0) != 0 {
		t.Errorf("gho balance = %s, want %s", got, gho0)
	}
	if got := f.ledger.BalanceOf(f.owner, usdc); got.Cmp(usdc0) != 0 {
		t.Errorf("usdc balance = %s, want %s", got, usdc0)
	}
}
