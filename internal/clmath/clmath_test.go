package clmath_test

import (
	"testing"

	"github.com/holiman/uint256"

	"rangevault/internal/clmath"
)

// ============================================================================
// Test: SqrtRatioAtTick
// ============================================================================

func TestSqrtRatioAtTick_Zero(t *testing.T) {
	got, err := clmath.SqrtRatioAtTick(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Cmp(clmath.Q96) != 0 {
		t.Errorf("sqrt ratio at tick 0 = %s, want %s (Q96)", got, clmath.Q96)
	}
}

func TestSqrtRatioAtTick_Bounds(t *testing.T) {
	min, err := clmath.SqrtRatioAtTick(clmath.MinTick)
	if err != nil {
		t.Fatalf("unexpected error at MinTick: %v", err)
	}
	if min.Cmp(clmath.MinSqrtRatio) != 0 {
		t.Errorf("sqrt ratio at MinTick = %s, want %s", min, clmath.MinSqrtRatio)
	}

	max, err := clmath.SqrtRatioAtTick(clmath.MaxTick)
	if err != nil {
		t.Fatalf("unexpected error at MaxTick: %v", err)
	}
	if max.Cmp(clmath.MaxSqrtRatio) != 0 {
		t.Errorf("sqrt ratio at MaxTick = %s, want %s", max, clmath.MaxSqrtRatio)
	}
}

func TestSqrtRatioAtTick_OutOfRange(t *testing.T) {
	if _, err := clmath.SqrtRatioAtTick(clmath.MaxTick + 1); err == nil {
		t.Error("expected error above MaxTick")
	}
	if _, err := clmath.SqrtRatioAtTick(clmath.MinTick - 1); err == nil {
		t.Error("expected error below MinTick")
	}
}

func TestSqrtRatioAtTick_Monotonic(t *testing.T) {
	ticks := []int{-887272, -100000, -60, -1, 0, 1, 60, 100000, 887272}
	var prev *uint256.Int
	for _, tick := range ticks {
		ratio, err := clmath.SqrtRatioAtTick(tick)
		if err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
		if prev != nil && ratio.Cmp(prev) <= 0 {
			t.Errorf("sqrt ratio not increasing at tick %d: %s <= %s", tick, ratio, prev)
		}
		prev = ratio
	}
}

func TestSqrtRatioAtTick_Inverse(t *testing.T) {
	// ratio(tick) * ratio(-tick) should be very close to Q96^2.
	pos, _ := clmath.SqrtRatioAtTick(887220)
	neg, _ := clmath.SqrtRatioAtTick(-887220)

	prod := new(uint256.Int)
	prod.Set(clmath.MulDiv(pos, neg, clmath.Q96))
	diff := new(uint256.Int)
	if prod.Cmp(clmath.Q96) > 0 {
		diff.Sub(prod, clmath.Q96)
	} else {
		diff.Sub(clmath.Q96, prod)
	}
	// Rounding keeps the product within a few parts per billion of Q96.
	tolerance := new(uint256.Int).Div(clmath.Q96, uint256.NewInt(1_000_000))
	if diff.Cmp(tolerance) > 0 {
		t.Errorf("ratio(t)*ratio(-t)/Q96 = %s, want within %s of %s", prod, tolerance, clmath.Q96)
	}
}

// ============================================================================
// Test: MulDiv
// ============================================================================

func TestMulDiv_Floors(t *testing.T) {
	got := clmath.MulDiv(uint256.NewInt(7), uint256.NewInt(3), uint256.NewInt(2))
	if got.Uint64() != 10 {
		t.Errorf("7*3/2 = %d, want 10", got.Uint64())
	}
}

func TestMulDiv_WideIntermediate(t *testing.T) {
	// a * b overflows 256 bits but the quotient fits.
	a := new(uint256.Int).Lsh(uint256.NewInt(1), 200)
	b := new(uint256.Int).Lsh(uint256.NewInt(1), 100)
	den := new(uint256.Int).Lsh(uint256.NewInt(1), 150)

	got := clmath.MulDiv(a, b, den)
	want := new(uint256.Int).Lsh(uint256.NewInt(1), 150)
	if got.Cmp(want) != 0 {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestMulDiv_ZeroDenominator(t *testing.T) {
	got := clmath.MulDiv(uint256.NewInt(5), uint256.NewInt(5), uint256.NewInt(0))
	if !got.IsZero() {
		t.Errorf("division by zero should yield zero, got %s", got)
	}
}

// ============================================================================
// Test: Liquidity conversions
// ============================================================================

func sqrtAt(t *testing.T, tick int) *uint256.Int {
	t.Helper()
	r, err := clmath.SqrtRatioAtTick(tick)
	if err != nil {
		t.Fatalf("tick %d: %v", tick, err)
	}
	return r
}

func TestLiquidityForAmounts_BelowRange(t *testing.T) {
	sqrtP := sqrtAt(t, -1000)
	sqrtA := sqrtAt(t, 0)
	sqrtB := sqrtAt(t, 1000)

	// Only token0 counts below the range.
	l := clmath.LiquidityForAmounts(sqrtP, sqrtA, sqrtB, uint256.NewInt(1_000_000), uint256.NewInt(0))
	if l.IsZero() {
		t.Fatal("expected nonzero liquidity from token0 below range")
	}

	amt0, amt1 := clmath.AmountsForLiquidity(sqrtP, sqrtA, sqrtB, l)
	if !amt1.IsZero() {
		t.Errorf("amount1 below range = %s, want 0", amt1)
	}
	if amt0.Cmp(uint256.NewInt(1_000_000)) > 0 {
		t.Errorf("amount0 = %s exceeds budget", amt0)
	}
}

func TestLiquidityForAmounts_AboveRange(t *testing.T) {
	sqrtP := sqrtAt(t, 2000)
	sqrtA := sqrtAt(t, 0)
	sqrtB := sqrtAt(t, 1000)

	l := clmath.LiquidityForAmounts(sqrtP, sqrtA, sqrtB, uint256.NewInt(0), uint256.NewInt(1_000_000))
	if l.IsZero() {
		t.Fatal("expected nonzero liquidity from token1 above range")
	}

	amt0, amt1 := clmath.AmountsForLiquidity(sqrtP, sqrtA, sqrtB, l)
	if !amt0.IsZero() {
		t.Errorf("amount0 above range = %s, want 0", amt0)
	}
	if amt1.Cmp(uint256.NewInt(1_000_000)) > 0 {
		t.Errorf("amount1 = %s exceeds budget", amt1)
	}
}

func TestLiquidityForAmounts_InRange_RoundTrip(t *testing.T) {
	sqrtP := sqrtAt(t, 500)
	sqrtA := sqrtAt(t, 0)
	sqrtB := sqrtAt(t, 1000)

	budget0 := uint256.NewInt(5_000_000)
	budget1 := uint256.NewInt(5_000_000)

	l := clmath.LiquidityForAmounts(sqrtP, sqrtA, sqrtB, budget0, budget1)
	if l.IsZero() {
		t.Fatal("expected nonzero in-range liquidity")
	}

	amt0, amt1 := clmath.AmountsForLiquidity(sqrtP, sqrtA, sqrtB, l)
	if amt0.IsZero() || amt1.IsZero() {
		t.Fatalf("in-range position must hold both tokens, got %s / %s", amt0, amt1)
	}
	if amt0.Cmp(budget0) > 0 {
		t.Errorf("amount0 = %s exceeds budget %s", amt0, budget0)
	}
	if amt1.Cmp(budget1) > 0 {
		t.Errorf("amount1 = %s exceeds budget %s", amt1, budget1)
	}
}

func TestLiquidityForAmounts_SwappedBounds(t *testing.T) {
	sqrtP := sqrtAt(t, 500)
	sqrtA := sqrtAt(t, 0)
	sqrtB := sqrtAt(t, 1000)

	budget := uint256.NewInt(1_000_000)
	normal := clmath.LiquidityForAmounts(sqrtP, sqrtA, sqrtB, budget, budget)
	swapped := clmath.LiquidityForAmounts(sqrtP, sqrtB, sqrtA, budget, budget)
	if normal.Cmp(swapped) != 0 {
		t.Errorf("bound order changed the result: %s vs %s", normal, swapped)
	}
}
