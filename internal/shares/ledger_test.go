package shares_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"rangevault/internal/shares"
)

// ============================================================================
// Test: Mint
// ============================================================================

func TestLedger_MintZeroShares(t *testing.T) {
	l := shares.NewLedger()
	err := l.Mint(uuid.New(), uint256.NewInt(0), uint256.NewInt(100))
	if !errors.Is(err, shares.ErrInvalidAmount) {
		t.Errorf("got %v, want ErrInvalidAmount", err)
	}
}

func TestLedger_MintAddsHolderAndBasis(t *testing.T) {
	l := shares.NewLedger()
	alice := uuid.New()

	if err := l.Mint(alice, uint256.NewInt(1000), uint256.NewInt(1000)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	if got := l.TotalSupply(); got.Uint64() != 1000 {
		t.Errorf("supply = %d, want 1000", got.Uint64())
	}
	if got := l.BalanceOf(alice); got.Uint64() != 1000 {
		t.Errorf("balance = %d, want 1000", got.Uint64())
	}
	pos := l.Position(alice)
	if !pos.Exists {
		t.Error("holder should be in the set after mint")
	}
	if pos.Basis.Uint64() != 1000 {
		t.Errorf("basis = %d, want 1000", pos.Basis.Uint64())
	}
	if l.HolderCount() != 1 {
		t.Errorf("holder count = %d, want 1", l.HolderCount())
	}
}

func TestLedger_RepeatMintAccumulatesBasis(t *testing.T) {
	l := shares.NewLedger()
	alice := uuid.New()

	l.Mint(alice, uint256.NewInt(100), uint256.NewInt(100))
	l.Mint(alice, uint256.NewInt(50), uint256.NewInt(75))

	pos := l.Position(alice)
	if pos.Basis.Uint64() != 175 {
		t.Errorf("basis = %d, want 175", pos.Basis.Uint64())
	}
	if l.HolderCount() != 1 {
		t.Errorf("holder count = %d, want 1", l.HolderCount())
	}
}

// ============================================================================
// Test: Burn
// ============================================================================

func TestLedger_BurnZeroShares(t *testing.T) {
	l := shares.NewLedger()
	err := l.Burn(uuid.New(), uint256.NewInt(0), uint256.NewInt(0))
	if !errors.Is(err, shares.ErrInvalidAmount) {
		t.Errorf("got %v, want ErrInvalidAmount", err)
	}
}

func TestLedger_BurnMoreThanBalance(t *testing.T) {
	l := shares.NewLedger()
	alice := uuid.New()
	l.Mint(alice, uint256.NewInt(10), uint256.NewInt(10))

	err := l.Burn(alice, uint256.NewInt(11), uint256.NewInt(0))
	if !errors.Is(err, shares.ErrInsufficientBalance) {
		t.Errorf("got %v, want ErrInsufficientBalance", err)
	}
}

func TestLedger_PartialBurnReducesBasisByGross(t *testing.T) {
	l := shares.NewLedger()
	alice := uuid.New()
	l.Mint(alice, uint256.NewInt(1000), uint256.NewInt(1000))

	// Redeem 400 shares worth a gross 450 (vault appreciated).
	if err := l.Burn(alice, uint256.NewInt(400), uint256.NewInt(450)); err != nil {
		t.Fatalf("burn failed: %v", err)
	}

	pos := l.Position(alice)
	if pos.Basis.Uint64() != 550 {
		t.Errorf("basis = %d, want 550", pos.Basis.Uint64())
	}
	if got := l.BalanceOf(alice); got.Uint64() != 600 {
		t.Errorf("balance = %d, want 600", got.Uint64())
	}
}

func TestLedger_BurnBasisFloorsAtZero(t *testing.T) {
	l := shares.NewLedger()
	alice := uuid.New()
	l.Mint(alice, uint256.NewInt(1000), uint256.NewInt(100))

	// Gross value far above basis must not underflow.
	if err := l.Burn(alice, uint256.NewInt(500), uint256.NewInt(5000)); err != nil {
		t.Fatalf("burn failed: %v", err)
	}
	pos := l.Position(alice)
	if !pos.Basis.IsZero() {
		t.Errorf("basis = %d, want 0", pos.Basis.Uint64())
	}
}

func TestLedger_FullBurnRemovesHolder(t *testing.T) {
	l := shares.NewLedger()
	alice := uuid.New()
	l.Mint(alice, uint256.NewInt(1000), uint256.NewInt(1000))

	if err := l.Burn(alice, uint256.NewInt(1000), uint256.NewInt(200)); err != nil {
		t.Fatalf("burn failed: %v", err)
	}

	pos := l.Position(alice)
	if pos.Exists {
		t.Error("holder should leave the set after a full burn")
	}
	if !pos.Basis.IsZero() {
		t.Errorf("basis = %d, want 0 after removal", pos.Basis.Uint64())
	}
	if l.HolderCount() != 0 {
		t.Errorf("holder count = %d, want 0", l.HolderCount())
	}
	if !l.TotalSupply().IsZero() {
		t.Errorf("supply = %d, want 0", l.TotalSupply().Uint64())
	}
}

func TestLedger_SwapRemoveKeepsSetConsistent(t *testing.T) {
	l := shares.NewLedger()
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	l.Mint(a, uint256.NewInt(1), uint256.NewInt(1))
	l.Mint(b, uint256.NewInt(1), uint256.NewInt(1))
	l.Mint(c, uint256.NewInt(1), uint256.NewInt(1))

	// Remove the middle holder; the last one is swapped into its slot.
	if err := l.Burn(b, uint256.NewInt(1), uint256.NewInt(1)); err != nil {
		t.Fatal(err)
	}

	all, err := l.Holders(0, l.HolderCount()-1)
	if err != nil {
		t.Fatal(err)
	}
	seen := map[uuid.UUID]bool{}
	for _, pos := range all {
		seen[pos.Holder] = true
	}
	if !seen[a] || !seen[c] || seen[b] {
		t.Errorf("holder set after removal = %v", seen)
	}
}

// ============================================================================
// Test: Transfer
// ============================================================================

func TestLedger_TransferMovesProportionalBasis(t *testing.T) {
	l := shares.NewLedger()
	alice, bob := uuid.New(), uuid.New()
	l.Mint(alice, uint256.NewInt(200), uint256.NewInt(1000))

	moved, err := l.Transfer(alice, bob, uint256.NewInt(100))
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if moved.Uint64() != 500 {
		t.Errorf("moved basis = %d, want 500", moved.Uint64())
	}
	if got := l.Position(alice).Basis; got.Uint64() != 500 {
		t.Errorf("sender basis = %d, want 500", got.Uint64())
	}
	if got := l.Position(bob).Basis; got.Uint64() != 500 {
		t.Errorf("receiver basis = %d, want 500", got.Uint64())
	}
}

func TestLedger_FullTransferMovesAllBasis(t *testing.T) {
	l := shares.NewLedger()
	alice, bob := uuid.New(), uuid.New()
	l.Mint(alice, uint256.NewInt(3), uint256.NewInt(10))

	moved, err := l.Transfer(alice, bob, uint256.NewInt(3))
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if moved.Uint64() != 10 {
		t.Errorf("moved basis = %d, want all 10", moved.Uint64())
	}
	if l.Position(alice).Exists {
		t.Error("sender should leave the set after full transfer")
	}
	if !l.Position(bob).Exists {
		t.Error("receiver should be in the set")
	}
}

func TestLedger_TransferConservesBasisSum(t *testing.T) {
	l := shares.NewLedger()
	alice, bob := uuid.New(), uuid.New()
	l.Mint(alice, uint256.NewInt(7), uint256.NewInt(1000))

	if _, err := l.Transfer(alice, bob, uint256.NewInt(3)); err != nil {
		t.Fatal(err)
	}

	sum := new(uint256.Int).Add(l.Position(alice).Basis, l.Position(bob).Basis)
	if sum.Uint64() != 1000 {
		t.Errorf("basis sum = %d, want 1000", sum.Uint64())
	}
}

func TestLedger_TransferInsufficient(t *testing.T) {
	l := shares.NewLedger()
	alice := uuid.New()
	l.Mint(alice, uint256.NewInt(5), uint256.NewInt(5))

	_, err := l.Transfer(alice, uuid.New(), uint256.NewInt(6))
	if !errors.Is(err, shares.ErrInsufficientBalance) {
		t.Errorf("got %v, want ErrInsufficientBalance", err)
	}
}

func TestLedger_SelfTransferIsNoop(t *testing.T) {
	l := shares.NewLedger()
	alice := uuid.New()
	l.Mint(alice, uint256.NewInt(100), uint256.NewInt(100))

	moved, err := l.Transfer(alice, alice, uint256.NewInt(40))
	if err != nil {
		t.Fatalf("self transfer failed: %v", err)
	}
	if !moved.IsZero() {
		t.Errorf("self transfer moved %d basis", moved.Uint64())
	}
	if got := l.BalanceOf(alice); got.Uint64() != 100 {
		t.Errorf("balance = %d, want 100", got.Uint64())
	}
}

// ============================================================================
// Test: Pagination
// ============================================================================

func TestLedger_HoldersPagination(t *testing.T) {
	l := shares.NewLedger()
	for i := 0; i < 5; i++ {
		l.Mint(uuid.New(), uint256.NewInt(1), uint256.NewInt(1))
	}

	page, err := l.Holders(1, 3)
	if err != nil {
		t.Fatalf("pagination failed: %v", err)
	}
	if len(page) != 3 {
		t.Errorf("page size = %d, want 3", len(page))
	}

	if _, err := l.Holders(0, 5); !errors.Is(err, shares.ErrPaginationOutOfRange) {
		t.Errorf("got %v, want ErrPaginationOutOfRange", err)
	}
	if _, err := l.Holders(3, 2); !errors.Is(err, shares.ErrPaginationOutOfRange) {
		t.Errorf("got %v, want ErrPaginationOutOfRange", err)
	}
}
