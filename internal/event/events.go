package event

import (
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// Payload is implemented by every lifecycle event body.
type Payload interface {
	EventType() Type
}

// Minted: shares issued against a collateral deposit.
type Minted struct {
	Receiver uuid.UUID    `json:"receiver"`
	Shares   *uint256.Int `json:"shares"`
	Amount   *uint256.Int `json:"amount"`
}

func (Minted) EventType() Type { return TypeMinted }

// Burned: shares redeemed. Amount is the gross redemption value; the
// holder receives Amount minus Fee.
type Burned struct {
	Holder uuid.UUID    `json:"holder"`
	Shares *uint256.Int `json:"shares"`
	Amount *uint256.Int `json:"amount"`
	Fee    *uint256.Int `json:"fee"`
}

func (Burned) EventType() Type { return TypeBurned }

// SharesTransferred: holder-to-holder share move with its basis slice.
type SharesTransferred struct {
	From       uuid.UUID    `json:"from"`
	To         uuid.UUID    `json:"to"`
	Shares     *uint256.Int `json:"shares"`
	MovedBasis *uint256.Int `json:"moved_basis"`
}

func (SharesTransferred) EventType() Type { return TypeSharesTransferred }

// FeesEarned: trading fees collected from the pool, gross of the
// performance cut. Never emitted with both amounts zero.
type FeesEarned struct {
	Fee0 *uint256.Int `json:"fee0"`
	Fee1 *uint256.Int `json:"fee1"`
}

func (FeesEarned) EventType() Type { return TypeFeesEarned }

// FeesUpdated: new fee schedule in basis points.
type FeesUpdated struct {
	ManagingFeeBPS    uint64 `json:"managing_fee_bps"`
	PerformanceFeeBPS uint64 `json:"performance_fee_bps"`
}

func (FeesUpdated) EventType() Type { return TypeFeesUpdated }

// LiquidityAdded: a position opened in the pool.
type LiquidityAdded struct {
	Liquidity *uint256.Int `json:"liquidity"`
	TickLower int          `json:"tick_lower"`
	TickUpper int          `json:"tick_upper"`
	Amount0   *uint256.Int `json:"amount0"`
	Amount1   *uint256.Int `json:"amount1"`
}

func (LiquidityAdded) EventType() Type { return TypeLiquidityAdded }

// LiquidityRemoved: the position fully burned back to raw balances.
type LiquidityRemoved struct {
	Liquidity *uint256.Int `json:"liquidity"`
	TickLower int          `json:"tick_lower"`
	TickUpper int          `json:"tick_upper"`
	Amount0   *uint256.Int `json:"amount0"`
	Amount1   *uint256.Int `json:"amount1"`
}

func (LiquidityRemoved) EventType() Type { return TypeLiquidityRemoved }

// InThePositionStatusSet: position lifecycle flag flipped.
type InThePositionStatusSet struct {
	InPosition bool `json:"in_position"`
}

func (InThePositionStatusSet) EventType() Type { return TypeInThePositionStatusSet }

// OraclesHeartbeatUpdated: staleness windows for the two price feeds.
type OraclesHeartbeatUpdated struct {
	CollateralHeartbeat time.Duration `json:"collateral_heartbeat"`
	DebtHeartbeat       time.Duration `json:"debt_heartbeat"`
}

func (OraclesHeartbeatUpdated) EventType() Type { return TypeOraclesHeartbeatUpdated }

// OwnershipTransferred: vault manager handover.
type OwnershipTransferred struct {
	Previous uuid.UUID `json:"previous"`
	New      uuid.UUID `json:"new"`
}

func (OwnershipTransferred) EventType() Type { return TypeOwnershipTransferred }

// Paused / Unpaused carry the acting account.
type Paused struct {
	Account uuid.UUID `json:"account"`
}

func (Paused) EventType() Type { return TypePaused }

type Unpaused struct {
	Account uuid.UUID `json:"account"`
}

func (Unpaused) EventType() Type { return TypeUnpaused }

// VaultCreated: factory deployed a new vault proxy.
type VaultCreated struct {
	Pool  uuid.UUID `json:"pool"`
	Vault uuid.UUID `json:"vault"`
}

func (VaultCreated) EventType() Type { return TypeVaultCreated }

// VaultImplUpgraded: the proxy now points at a new implementation.
type VaultImplUpgraded struct {
	Vault   uuid.UUID `json:"vault"`
	Version string    `json:"version"`
}

func (VaultImplUpgraded) EventType() Type { return TypeVaultImplUpgraded }

// ManagerBalanceCollected: accrued fees paid out to the manager.
type ManagerBalanceCollected struct {
	Amount *uint256.Int `json:"amount"`
}

func (ManagerBalanceCollected) EventType() Type { return TypeManagerBalanceCollected }
