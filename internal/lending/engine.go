package lending

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"rangevault/internal/oracle"
)

// MaxUint256 is the sentinel meaning "the full outstanding amount" for
// repayments and withdrawals.
var MaxUint256 = new(uint256.Int).SetAllOne()

// DefaultHeartbeat is the staleness window applied to both price feeds
// until the manager tightens it.
const DefaultHeartbeat = 24 * time.Hour

// MoneyMarket is the external facility collateral is supplied to and
// the debt asset minted from. Amounts are exact; sentinel clamping
// happens in the engine, which is the market's only caller.
type MoneyMarket interface {
	Supply(ctx context.Context, account uuid.UUID, amount *uint256.Int) error
	Withdraw(ctx context.Context, account uuid.UUID, amount *uint256.Int) error
	Borrow(ctx context.Context, account uuid.UUID, amount *uint256.Int) error
	Repay(ctx context.Context, account uuid.UUID, amount *uint256.Int) error

	// AccountData returns the account's total collateral and total
	// debt in the market's 8-decimal base unit.
	AccountData(ctx context.Context, account uuid.UUID) (collateralBase, debtBase *uint256.Int, err error)
}

// Engine books one vault's money-market side: collateral supplied and
// debt minted against it. It mirrors the outstanding amounts locally so
// sentinel redemptions never depend on market round-trips.
//
// Not safe for concurrent use; the owning vault serializes access.
type Engine struct {
	market MoneyMarket
	owner  uuid.UUID

	collateralFeed oracle.Feed
	debtFeed       oracle.Feed

	collateralHeartbeat time.Duration
	debtHeartbeat       time.Duration

	supplied *uint256.Int
	debt     *uint256.Int

	now func() time.Time
}

func NewEngine(market MoneyMarket, owner uuid.UUID, collateralFeed, debtFeed oracle.Feed) *Engine {
	return &Engine{
		market:              market,
		owner:               owner,
		collateralFeed:      collateralFeed,
		debtFeed:            debtFeed,
		collateralHeartbeat: DefaultHeartbeat,
		debtHeartbeat:       DefaultHeartbeat,
		supplied:            new(uint256.Int),
		debt:                new(uint256.Int),
		now:                 time.Now,
	}
}

// SupplyCollateral moves collateral into the money market.
func (e *Engine) SupplyCollateral(ctx context.Context, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	if err := e.market.Supply(ctx, e.owner, amount); err != nil {
		return fmt.Errorf("supply collateral: %w", err)
	}
	e.supplied.Add(e.supplied, amount)
	return nil
}

// MintDebt borrows the debt asset against supplied collateral. Both
// price feeds must be fresh; minting against a stale price is refused.
func (e *Engine) MintDebt(ctx context.Context, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	if _, _, err := e.FreshReadings(ctx); err != nil {
		return err
	}
	if err := e.market.Borrow(ctx, e.owner, amount); err != nil {
		return fmt.Errorf("mint debt: %w", err)
	}
	e.debt.Add(e.debt, amount)
	return nil
}

// BurnDebt repays debt. MaxUint256 repays everything outstanding; any
// larger-than-outstanding amount is clamped. Returns the amount repaid.
func (e *Engine) BurnDebt(ctx context.Context, amount *uint256.Int) (*uint256.Int, error) {
	repay := new(uint256.Int).Set(amount)
	if repay.Cmp(e.debt) > 0 {
		repay.Set(e.debt)
	}
	if repay.IsZero() {
		return uint256.NewInt(0), nil
	}
	if err := e.market.Repay(ctx, e.owner, repay); err != nil {
		return nil, fmt.Errorf("burn debt: %w", err)
	}
	e.debt.Sub(e.debt, repay)
	return repay, nil
}

// WithdrawCollateral pulls collateral back out of the market, with the
// same sentinel clamping as BurnDebt. Returns the amount withdrawn.
func (e *Engine) WithdrawCollateral(ctx context.Context, amount *uint256.Int) (*uint256.Int, error) {
	withdraw := new(uint256.Int).Set(amount)
	if withdraw.Cmp(e.supplied) > 0 {
		withdraw.Set(e.supplied)
	}
	if withdraw.IsZero() {
		return uint256.NewInt(0), nil
	}
	if err := e.market.Withdraw(ctx, e.owner, withdraw); err != nil {
		return nil, fmt.Errorf("withdraw collateral: %w", err)
	}
	e.supplied.Sub(e.supplied, withdraw)
	return withdraw, nil
}

// PositionData returns the market-side collateral and debt totals in
// the 8-decimal base unit.
func (e *Engine) PositionData(ctx context.Context) (collateralBase, debtBase *uint256.Int, err error) {
	collateralBase, debtBase, err = e.market.AccountData(ctx, e.owner)
	if err != nil {
		return nil, nil, fmt.Errorf("account data: %w", err)
	}
	return collateralBase, debtBase, nil
}

// Supplied returns the engine's mirror of supplied collateral.
func (e *Engine) Supplied() *uint256.Int { return new(uint256.Int).Set(e.supplied) }

// Debt returns the engine's mirror of outstanding debt.
func (e *Engine) Debt() *uint256.Int { return new(uint256.Int).Set(e.debt) }

// SetHeartbeats replaces the staleness windows for both feeds.
func (e *Engine) SetHeartbeats(collateral, debt time.Duration) {
	e.collateralHeartbeat = collateral
	e.debtHeartbeat = debt
}

// Heartbeats returns the current staleness windows.
func (e *Engine) Heartbeats() (collateral, debt time.Duration) {
	return e.collateralHeartbeat, e.debtHeartbeat
}

// SetClock overrides the time source used for staleness checks.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// FreshReadings fetches both feeds and rejects stale answers.
func (e *Engine) FreshReadings(ctx context.Context) (collateral, debt oracle.Reading, err error) {
	now := e.now()

	collateral, err = e.collateralFeed.Latest(ctx)
	if err != nil {
		return oracle.Reading{}, oracle.Reading{}, fmt.Errorf("collateral feed: %w", err)
	}
	if err = oracle.CheckFresh(collateral, e.collateralHeartbeat, now); err != nil {
		return oracle.Reading{}, oracle.Reading{}, fmt.Errorf("collateral feed: %w", err)
	}

	debt, err = e.debtFeed.Latest(ctx)
	if err != nil {
		return oracle.Reading{}, oracle.Reading{}, fmt.Errorf("debt feed: %w", err)
	}
	if err = oracle.CheckFresh(debt, e.debtHeartbeat, now); err != nil {
		return oracle.Reading{}, oracle.Reading{}, fmt.Errorf("debt feed: %w", err)
	}

	return collateral, debt, nil
}
