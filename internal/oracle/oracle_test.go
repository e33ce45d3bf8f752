package oracle_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/holiman/uint256"

	"rangevault/internal/oracle"
)

// ============================================================================
// Test: Freshness
// ============================================================================

func TestCheckFresh_WithinHeartbeat(t *testing.T) {
	now := time.Now()
	r := oracle.Reading{Answer: uint256.NewInt(1e8), UpdatedAt: now.Add(-30 * time.Second)}
	if err := oracle.CheckFresh(r, time.Minute, now); err != nil {
		t.Errorf("fresh reading rejected: %v", err)
	}
}

func TestCheckFresh_Stale(t *testing.T) {
	now := time.Now()
	r := oracle.Reading{Answer: uint256.NewInt(1e8), UpdatedAt: now.Add(-2 * time.Minute)}
	err := oracle.CheckFresh(r, time.Minute, now)
	if !errors.Is(err, oracle.ErrStalePrice) {
		t.Errorf("got %v, want ErrStalePrice", err)
	}
}

func TestCheckFresh_ExactlyAtHeartbeat(t *testing.T) {
	now := time.Now()
	r := oracle.Reading{Answer: uint256.NewInt(1e8), UpdatedAt: now.Add(-time.Minute)}
	if err := oracle.CheckFresh(r, time.Minute, now); err != nil {
		t.Errorf("reading exactly at heartbeat age should pass, got %v", err)
	}
}

// ============================================================================
// Test: Value conversion
// ============================================================================

func TestConvertValue_SameDecimals(t *testing.T) {
	// 100 units at price 2.0 into an asset priced 1.0: 200 units.
	got := oracle.ConvertValue(
		uint256.NewInt(100_000000),
		uint256.NewInt(2_00000000),
		uint256.NewInt(1_00000000),
		6, 6,
	)
	if got.Uint64() != 200_000000 {
		t.Errorf("got %d, want 200000000", got.Uint64())
	}
}

func TestConvertValue_DecimalRescale(t *testing.T) {
	// 1.0 of an 18-decimal asset at price 1.0 into a 6-decimal asset at price 1.0.
	one18 := new(uint256.Int).Mul(uint256.NewInt(1), uint256.NewInt(1e18))
	got := oracle.ConvertValue(one18, uint256.NewInt(1_00000000), uint256.NewInt(1_00000000), 18, 6)
	if got.Uint64() != 1_000000 {
		t.Errorf("got %d, want 1000000", got.Uint64())
	}
}

func TestConvertValue_Floors(t *testing.T) {
	// 3 units at price 1.0 into asset priced 7.0: floor(3/7) = 0.
	got := oracle.ConvertValue(uint256.NewInt(3), uint256.NewInt(1_00000000), uint256.NewInt(7_00000000), 6, 6)
	if !got.IsZero() {
		t.Errorf("got %d, want 0", got.Uint64())
	}
}

func TestBaseToAsset_RoundTrip(t *testing.T) {
	price := uint256.NewInt(4_00000000) // 4.0
	amount := uint256.NewInt(10_000000) // 10.0 at 6 decimals

	base := oracle.AssetToBase(amount, price, 6)
	if base.Uint64() != 40_00000000 {
		t.Errorf("base = %d, want 4000000000", base.Uint64())
	}

	back := oracle.BaseToAsset(base, price, 6)
	if back.Cmp(amount) != 0 {
		t.Errorf("round trip = %s, want %s", back, amount)
	}
}

// ============================================================================
// Test: Feeds
// ============================================================================

func TestStaticFeed(t *testing.T) {
	f := oracle.NewStaticFeed(uint256.NewInt(1_00000000))
	r, err := f.Latest(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Answer.Uint64() != 1_00000000 {
		t.Errorf("answer = %d, want 100000000", r.Answer.Uint64())
	}
	if time.Since(r.UpdatedAt) > time.Second {
		t.Error("static feed should stamp a current time")
	}
}

func TestCachedFeed_Unprimed(t *testing.T) {
	f := oracle.NewCachedFeed()
	_, err := f.Latest(context.Background())
	if !errors.Is(err, oracle.ErrStalePrice) {
		t.Errorf("got %v, want ErrStalePrice before first update", err)
	}
}

func TestCachedFeed_Update(t *testing.T) {
	f := oracle.NewCachedFeed()
	stamp := time.Now().Add(-5 * time.Second)
	f.Update(uint256.NewInt(42_00000000), stamp)

	r, err := f.Latest(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Answer.Uint64() != 42_00000000 {
		t.Errorf("answer = %d, want 4200000000", r.Answer.Uint64())
	}
	if !r.UpdatedAt.Equal(stamp) {
		t.Errorf("updatedAt = %v, want %v", r.UpdatedAt, stamp)
	}
}
