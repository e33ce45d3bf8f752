package vault

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"

	"rangevault/internal/asset"
	"rangevault/internal/event"
	"rangevault/internal/feemath"
	"rangevault/internal/lending"
	"rangevault/internal/observability"
	"rangevault/internal/oracle"
	"rangevault/internal/position"
	"rangevault/internal/shares"
)

var (
	ErrUnauthorized  = errors.New("caller is not authorized")
	ErrPaused        = errors.New("vault is paused")
	ErrInvalidAmount = errors.New("amount must be nonzero")
)

// Config fixes a vault's identity at creation time.
type Config struct {
	Name    string
	Manager uuid.UUID

	// token1 of the pool and unit of account for valuation.
	Collateral         asset.Symbol
	CollateralDecimals uint8

	// token0 of the pool, minted from the money market.
	Debt         asset.Symbol
	DebtDecimals uint8

	ManagingFeeBPS    uint64
	PerformanceFeeBPS uint64
}

// Vault composes the share ledger, position engine and collateral/debt
// engine behind role-gated entry points. Every public method runs under
// the vault mutex, so operations on one vault never interleave.
type Vault struct {
	mu  sync.Mutex
	id  uuid.UUID
	cfg Config

	manager uuid.UUID
	paused  bool

	assets   *asset.Ledger
	shares   *shares.Ledger
	pos      *position.Engine
	lend     *lending.Engine
	recorder *event.Recorder

	managingFeeBPS    uint64
	performanceFeeBPS uint64
	managerBalance    *uint256.Int

	log     zerolog.Logger
	metrics *observability.Metrics
}

// New wires a vault against its external collaborators. This is the
// one-time initializer; identity fields never change afterwards.
func New(
	id uuid.UUID,
	cfg Config,
	assets *asset.Ledger,
	pool position.Pool,
	market lending.MoneyMarket,
	collateralFeed, debtFeed oracle.Feed,
	recorder *event.Recorder,
	metrics *observability.Metrics,
) (*Vault, error) {
	if err := feemath.ValidateRates(cfg.ManagingFeeBPS, cfg.PerformanceFeeBPS); err != nil {
		return nil, err
	}
	if cfg.Manager == uuid.Nil {
		return nil, fmt.Errorf("%w: vault needs a manager", ErrUnauthorized)
	}

	v := &Vault{
		id:                id,
		cfg:               cfg,
		manager:           cfg.Manager,
		assets:            assets,
		shares:            shares.NewLedger(),
		pos:               position.NewEngine(pool, id),
		lend:              lending.NewEngine(market, id, collateralFeed, debtFeed),
		recorder:          recorder,
		managingFeeBPS:    cfg.ManagingFeeBPS,
		performanceFeeBPS: cfg.PerformanceFeeBPS,
		managerBalance:    new(uint256.Int),
		log:               observability.NewLogger("vault").With().Str("vault", cfg.Name).Logger(),
		metrics:           metrics,
	}
	return v, nil
}

func (v *Vault) ID() uuid.UUID  { return v.id }
func (v *Vault) Name() string   { return v.cfg.Name }
func (v *Vault) Config() Config { return v.cfg }

func (v *Vault) requireManager(caller uuid.UUID) error {
	if caller != v.manager {
		return fmt.Errorf("%w: %s is not the manager", ErrUnauthorized, caller)
	}
	return nil
}

func (v *Vault) emit(payload event.Payload) {
	id := v.id
	v.recorder.Emit(&id, payload)
	if v.metrics != nil {
		v.metrics.EventsRecorded.WithLabelValues(payload.EventType().String()).Inc()
	}
}

func f64(x *uint256.Int) float64 {
	f, _ := new(big.Float).SetInt(x.ToBig()).Float64()
	return f
}

func (v *Vault) updateGauges(aum *uint256.Int) {
	if v.metrics == nil {
		return
	}
	name := v.cfg.Name
	if aum != nil {
		v.metrics.TotalAssetValue.WithLabelValues(name).Set(f64(aum))
	}
	v.metrics.ShareSupply.WithLabelValues(name).Set(f64(v.shares.TotalSupply()))
	v.metrics.HolderCount.WithLabelValues(name).Set(float64(v.shares.HolderCount()))
	v.metrics.ManagerBalance.WithLabelValues(name).Set(f64(v.managerBalance))
	inPos := 0.0
	if v.pos.InPosition() {
		inPos = 1.0
	}
	v.metrics.InPosition.WithLabelValues(name).Set(inPos)
}

// ============================================================================
// Valuation
// ============================================================================

// totalAssetValue prices everything the vault controls in collateral
// terms: raw balances net of the manager's accrued claim, the position's
// underlying amounts and uncollected fees, and the money-market side as
// collateral minus debt. Always computed fresh; a stale feed aborts.
func (v *Vault) totalAssetValue(ctx context.Context) (*uint256.Int, error) {
	colReading, debtReading, err := v.freshReadings(ctx)
	if err != nil {
		return nil, err
	}

	toCollateral := func(debtAmount *uint256.Int) *uint256.Int {
		return oracle.ConvertValue(debtAmount, debtReading.Answer, colReading.Answer,
			v.cfg.DebtDecimals, v.cfg.CollateralDecimals)
	}

	total := new(big.Int)

	// Raw custody, net of the manager's collectable claim. The claim
	// nets against both legs: performance fees accrued in the debt
	// asset can push it past the collateral balance alone.
	custody := new(big.Int)
	custody.Add(custody, v.assets.BalanceOf(v.id, v.cfg.Collateral).ToBig())
	custody.Add(custody, toCollateral(v.assets.BalanceOf(v.id, v.cfg.Debt)).ToBig())
	custody.Sub(custody, v.managerBalance.ToBig())
	if custody.Sign() < 0 {
		custody.SetInt64(0)
	}
	total.Add(total, custody)

	// Market position: underlying amounts plus uncollected fees.
	amt0, amt1, fee0, fee1, err := v.pos.Underlying(ctx)
	if err != nil {
		return nil, err
	}
	total.Add(total, amt1.ToBig())
	total.Add(total, fee1.ToBig())
	total.Add(total, toCollateral(amt0).ToBig())
	total.Add(total, toCollateral(fee0).ToBig())

	// Money market: net collateral minus debt, in the 8-decimal base
	// unit, may be negative.
	colBase, debtBase, err := v.lend.PositionData(ctx)
	if err != nil {
		return nil, err
	}
	net := new(big.Int).Sub(colBase.ToBig(), debtBase.ToBig())
	neg := net.Sign() < 0
	netAssets := oracle.BaseToAsset(uint256.MustFromBig(new(big.Int).Abs(net)),
		colReading.Answer, v.cfg.CollateralDecimals)
	if neg {
		total.Sub(total, netAssets.ToBig())
	} else {
		total.Add(total, netAssets.ToBig())
	}

	if total.Sign() < 0 {
		total.SetInt64(0)
	}
	return uint256.MustFromBig(total), nil
}

// TotalAssetValue is the public, freshly computed vault valuation.
func (v *Vault) TotalAssetValue(ctx context.Context) (*uint256.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.totalAssetValue(ctx)
}

// ============================================================================
// Share operations (public)
// ============================================================================

// Mint issues shares for a collateral deposit pulled from the
// depositor's balance. The first deposit seeds supply 1:1.
func (v *Vault) Mint(ctx context.Context, depositor uuid.UUID, amount *uint256.Int) (*uint256.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.paused {
		return nil, ErrPaused
	}
	if amount.IsZero() {
		return nil, ErrInvalidAmount
	}

	aum, err := v.totalAssetValue(ctx)
	if err != nil {
		return nil, err
	}
	supply := v.shares.TotalSupply()
	sharesOut := feemath.SharesForDeposit(amount, supply, aum)
	if sharesOut.IsZero() {
		return nil, fmt.Errorf("%w: deposit too small for current share price", ErrInvalidAmount)
	}

	if err := v.assets.Transfer(depositor, v.id, v.cfg.Collateral, amount); err != nil {
		return nil, err
	}
	if err := v.shares.Mint(depositor, sharesOut, amount); err != nil {
		return nil, err
	}

	v.emit(event.Minted{Receiver: depositor, Shares: sharesOut, Amount: amount})
	v.log.Info().
		Str("op", "mint").
		Str("depositor", depositor.String()).
		Str("amount", amount.Dec()).
		Str("shares", sharesOut.Dec()).
		Msg("shares minted")
	v.updateGauges(aum)

	return sharesOut, nil
}

// Burn redeems shares for collateral. The managing fee comes out of the
// gross value and accrues to the manager balance.
func (v *Vault) Burn(ctx context.Context, holder uuid.UUID, sharesIn *uint256.Int) (*uint256.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if sharesIn.IsZero() {
		return nil, ErrInvalidAmount
	}
	if v.shares.BalanceOf(holder).Cmp(sharesIn) < 0 {
		return nil, fmt.Errorf("%w: holder %s", shares.ErrInsufficientBalance, holder)
	}

	aum, err := v.totalAssetValue(ctx)
	if err != nil {
		return nil, err
	}
	supply := v.shares.TotalSupply()
	gross := feemath.ValueForShares(sharesIn, supply, aum)
	fee := feemath.ApplyBPS(gross, v.managingFeeBPS)
	payout := new(uint256.Int).Sub(gross, fee)

	if err := v.assets.Transfer(v.id, holder, v.cfg.Collateral, payout); err != nil {
		return nil, err
	}
	if err := v.shares.Burn(holder, sharesIn, gross); err != nil {
		return nil, err
	}
	v.managerBalance.Add(v.managerBalance, fee)

	v.emit(event.Burned{Holder: holder, Shares: sharesIn, Amount: gross, Fee: fee})
	v.log.Info().
		Str("op", "burn").
		Str("holder", holder.String()).
		Str("shares", sharesIn.Dec()).
		Str("gross", gross.Dec()).
		Str("fee", fee.Dec()).
		Msg("shares burned")
	v.updateGauges(nil)

	return payout, nil
}

// Transfer moves shares between holders with the proportional basis.
func (v *Vault) Transfer(from, to uuid.UUID, sharesIn *uint256.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	moved, err := v.shares.Transfer(from, to, sharesIn)
	if err != nil {
		return err
	}
	v.emit(event.SharesTransferred{From: from, To: to, Shares: sharesIn, MovedBasis: moved})
	return nil
}

// ============================================================================
// Position operations (manager-only)
// ============================================================================

// AddLiquidity opens the vault's position in the pool.
func (v *Vault) AddLiquidity(ctx context.Context, caller uuid.UUID, tickLower, tickUpper int, desired0, desired1, min0, min1 *uint256.Int) (position.AddResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireManager(caller); err != nil {
		return position.AddResult{}, err
	}

	res, err := v.pos.AddLiquidity(ctx, tickLower, tickUpper, desired0, desired1, min0, min1)
	if err != nil {
		return position.AddResult{}, err
	}

	v.emit(event.LiquidityAdded{
		Liquidity: res.Liquidity,
		TickLower: res.TickLower,
		TickUpper: res.TickUpper,
		Amount0:   res.Amount0,
		Amount1:   res.Amount1,
	})
	v.emit(event.InThePositionStatusSet{InPosition: true})
	v.log.Info().
		Str("op", "add_liquidity").
		Int("tick_lower", res.TickLower).
		Int("tick_upper", res.TickUpper).
		Str("liquidity", res.Liquidity.Dec()).
		Msg("position opened")
	v.updateGauges(nil)

	return res, nil
}

// applyPerformanceFee credits the manager's cut of collected trading
// fees, valued in collateral terms at the supplied readings. Callers
// check feed freshness before touching the pool.
func (v *Vault) applyPerformanceFee(fee0, fee1 *uint256.Int, colReading, debtReading oracle.Reading) {
	if fee0.IsZero() && fee1.IsZero() {
		return
	}
	perf0 := feemath.ApplyBPS(fee0, v.performanceFeeBPS)
	perf1 := feemath.ApplyBPS(fee1, v.performanceFeeBPS)
	if perf0.IsZero() && perf1.IsZero() {
		return
	}

	v.managerBalance.Add(v.managerBalance, perf1)
	v.managerBalance.Add(v.managerBalance, oracle.ConvertValue(
		perf0, debtReading.Answer, colReading.Answer,
		v.cfg.DebtDecimals, v.cfg.CollateralDecimals))
}

// freshReadings checks both feeds and counts stale rejections.
func (v *Vault) freshReadings(ctx context.Context) (collateral, debt oracle.Reading, err error) {
	collateral, debt, err = v.lend.FreshReadings(ctx)
	if err != nil && v.metrics != nil && errors.Is(err, oracle.ErrStalePrice) {
		v.metrics.OracleStaleRejections.WithLabelValues(v.cfg.Name).Inc()
	}
	return collateral, debt, err
}

// RemoveLiquidity closes the position, collecting principal and fees
// back into vault custody and taking the performance cut.
func (v *Vault) RemoveLiquidity(ctx context.Context, caller uuid.UUID, min0, min1 *uint256.Int) (position.RemoveResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireManager(caller); err != nil {
		return position.RemoveResult{}, err
	}

	// Freshness is a precondition: once the position burns there is no
	// way back, so a stale feed must abort before the pool is touched.
	colReading, debtReading, err := v.freshReadings(ctx)
	if err != nil {
		return position.RemoveResult{}, err
	}

	res, err := v.pos.RemoveLiquidity(ctx, min0, min1)
	if err != nil {
		return position.RemoveResult{}, err
	}
	v.applyPerformanceFee(res.Fee0, res.Fee1, colReading, debtReading)

	v.emit(event.LiquidityRemoved{
		Liquidity: res.Liquidity,
		TickLower: res.TickLower,
		TickUpper: res.TickUpper,
		Amount0:   res.Amount0,
		Amount1:   res.Amount1,
	})
	v.emit(event.InThePositionStatusSet{InPosition: false})
	if !res.Fee0.IsZero() || !res.Fee1.IsZero() {
		v.emit(event.FeesEarned{Fee0: res.Fee0, Fee1: res.Fee1})
	}
	v.log.Info().
		Str("op", "remove_liquidity").
		Str("fee0", res.Fee0.Dec()).
		Str("fee1", res.Fee1.Dec()).
		Msg("position closed")
	v.updateGauges(nil)

	return res, nil
}

// PullFees collects accrued trading fees while keeping the position.
func (v *Vault) PullFees(ctx context.Context, caller uuid.UUID) (fee0, fee1 *uint256.Int, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireManager(caller); err != nil {
		return nil, nil, err
	}

	colReading, debtReading, err := v.freshReadings(ctx)
	if err != nil {
		return nil, nil, err
	}

	fee0, fee1, err = v.pos.PullFees(ctx)
	if err != nil {
		return nil, nil, err
	}
	v.applyPerformanceFee(fee0, fee1, colReading, debtReading)
	if !fee0.IsZero() || !fee1.IsZero() {
		v.emit(event.FeesEarned{Fee0: fee0, Fee1: fee1})
	}
	v.updateGauges(nil)
	return fee0, fee1, nil
}

// CurrentFees is the read-only uncollected fee estimate.
func (v *Vault) CurrentFees(ctx context.Context) (fee0, fee1 *uint256.Int, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pos.CurrentFees(ctx)
}

// Swap trades vault inventory through the pool.
func (v *Vault) Swap(ctx context.Context, caller uuid.UUID, zeroForOne bool, amountSpecified *big.Int, sqrtPriceLimitX96, minAmountOut *uint256.Int) (amount0, amount1 *big.Int, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireManager(caller); err != nil {
		return nil, nil, err
	}
	return v.pos.Swap(ctx, zeroForOne, amountSpecified, sqrtPriceLimitX96, minAmountOut)
}

// InPosition reports the position lifecycle flag.
func (v *Vault) InPosition() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pos.InPosition()
}

// ============================================================================
// Collateral/debt operations (manager-only)
// ============================================================================

func (v *Vault) SupplyCollateral(ctx context.Context, caller uuid.UUID, amount *uint256.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireManager(caller); err != nil {
		return err
	}
	return v.lend.SupplyCollateral(ctx, amount)
}

func (v *Vault) MintDebt(ctx context.Context, caller uuid.UUID, amount *uint256.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireManager(caller); err != nil {
		return err
	}
	err := v.lend.MintDebt(ctx, amount)
	if err != nil && v.metrics != nil && errors.Is(err, oracle.ErrStalePrice) {
		v.metrics.OracleStaleRejections.WithLabelValues(v.cfg.Name).Inc()
	}
	return err
}

func (v *Vault) BurnDebt(ctx context.Context, caller uuid.UUID, amount *uint256.Int) (*uint256.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireManager(caller); err != nil {
		return nil, err
	}
	return v.lend.BurnDebt(ctx, amount)
}

func (v *Vault) WithdrawCollateral(ctx context.Context, caller uuid.UUID, amount *uint256.Int) (*uint256.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireManager(caller); err != nil {
		return nil, err
	}
	return v.lend.WithdrawCollateral(ctx, amount)
}

// PositionData is the read-only money-market view in base units.
func (v *Vault) PositionData(ctx context.Context) (collateralBase, debtBase *uint256.Int, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lend.PositionData(ctx)
}

// UpdateOracleHeartbeats tightens or relaxes the feed staleness windows.
func (v *Vault) UpdateOracleHeartbeats(caller uuid.UUID, collateral, debt time.Duration) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireManager(caller); err != nil {
		return err
	}
	v.lend.SetHeartbeats(collateral, debt)
	v.emit(event.OraclesHeartbeatUpdated{CollateralHeartbeat: collateral, DebtHeartbeat: debt})
	return nil
}

// ============================================================================
// Administration (manager-only)
// ============================================================================

// UpdateFees changes the fee schedule within the hard caps.
func (v *Vault) UpdateFees(caller uuid.UUID, managingBPS, performanceBPS uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireManager(caller); err != nil {
		return err
	}
	if err := feemath.ValidateRates(managingBPS, performanceBPS); err != nil {
		return err
	}
	v.managingFeeBPS = managingBPS
	v.performanceFeeBPS = performanceBPS
	v.emit(event.FeesUpdated{ManagingFeeBPS: managingBPS, PerformanceFeeBPS: performanceBPS})
	return nil
}

// CollectManager pays the accrued fee balance out to the manager.
func (v *Vault) CollectManager(caller uuid.UUID) (*uint256.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireManager(caller); err != nil {
		return nil, err
	}
	amount := new(uint256.Int).Set(v.managerBalance)
	if amount.IsZero() {
		return amount, nil
	}
	if err := v.assets.Transfer(v.id, v.manager, v.cfg.Collateral, amount); err != nil {
		return nil, err
	}
	v.managerBalance.Clear()
	v.emit(event.ManagerBalanceCollected{Amount: amount})
	v.updateGauges(nil)
	return amount, nil
}

// Pause blocks minting. Burns and manager operations stay available.
func (v *Vault) Pause(caller uuid.UUID) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireManager(caller); err != nil {
		return err
	}
	if v.paused {
		return fmt.Errorf("vault already paused")
	}
	v.paused = true
	v.emit(event.Paused{Account: caller})
	return nil
}

func (v *Vault) Unpause(caller uuid.UUID) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireManager(caller); err != nil {
		return err
	}
	if !v.paused {
		return fmt.Errorf("vault is not paused")
	}
	v.paused = false
	v.emit(event.Unpaused{Account: caller})
	return nil
}

// TransferOwnership hands the manager role over in a single step.
func (v *Vault) TransferOwnership(caller, newManager uuid.UUID) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireManager(caller); err != nil {
		return err
	}
	if newManager == uuid.Nil {
		return fmt.Errorf("%w: new manager must be set", ErrUnauthorized)
	}
	prev := v.manager
	v.manager = newManager
	v.emit(event.OwnershipTransferred{Previous: prev, New: newManager})
	return nil
}

// ============================================================================
// Views
// ============================================================================

func (v *Vault) Manager() uuid.UUID {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.manager
}

func (v *Vault) IsPaused() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.paused
}

// Fees returns the active schedule in basis points.
func (v *Vault) Fees() (managingBPS, performanceBPS uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.managingFeeBPS, v.performanceFeeBPS
}

// ManagerBalance returns the accrued, collectable fee value.
func (v *Vault) ManagerBalance() *uint256.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return new(uint256.Int).Set(v.managerBalance)
}

func (v *Vault) TotalSupply() *uint256.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.shares.TotalSupply()
}

func (v *Vault) BalanceOf(holder uuid.UUID) *uint256.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.shares.BalanceOf(holder)
}

// UserVault returns the (exists, basis) view for one holder.
func (v *Vault) UserVault(holder uuid.UUID) shares.HolderPosition {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.shares.Position(holder)
}

// UserVaults pages through the holder set, inclusive on both ends.
func (v *Vault) UserVaults(start, end int) ([]shares.HolderPosition, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.shares.Holders(start, end)
}

// UserCount returns the holder set size.
func (v *Vault) UserCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.shares.HolderCount()
}
