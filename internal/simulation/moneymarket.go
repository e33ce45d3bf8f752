package simulation

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"rangevault/internal/asset"
	"rangevault/internal/oracle"
)

// MoneyMarket is an in-memory supply/borrow facility. Collateral is
// held in custody; the debt asset is minted on borrow and burned on
// repay, mirroring a facilitator-style stablecoin line.
type MoneyMarket struct {
	mu      sync.Mutex
	ledger  *asset.Ledger
	account uuid.UUID

	collateral         asset.Symbol
	debtToken          asset.Symbol
	collateralDecimals uint8
	debtDecimals       uint8

	collateralFeed oracle.Feed
	debtFeed       oracle.Feed

	supplied map[uuid.UUID]*uint256.Int
	borrowed map[uuid.UUID]*uint256.Int
}

func NewMoneyMarket(
	ledger *asset.Ledger,
	collateral, debtToken asset.Symbol,
	collateralDecimals, debtDecimals uint8,
	collateralFeed, debtFeed oracle.Feed,
) *MoneyMarket {
	return &MoneyMarket{
		ledger:             ledger,
		account:            uuid.New(),
		collateral:         collateral,
		debtToken:          debtToken,
		collateralDecimals: collateralDecimals,
		debtDecimals:       debtDecimals,
		collateralFeed:     collateralFeed,
		debtFeed:           debtFeed,
		supplied:           make(map[uuid.UUID]*uint256.Int),
		borrowed:           make(map[uuid.UUID]*uint256.Int),
	}
}

// Account returns the market's custody account in the asset ledger.
func (m *MoneyMarket) Account() uuid.UUID { return m.account }

func ref(table map[uuid.UUID]*uint256.Int, account uuid.UUID) *uint256.Int {
	v, ok := table[account]
	if !ok {
		v = new(uint256.Int)
		table[account] = v
	}
	return v
}

func (m *MoneyMarket) Supply(ctx context.Context, account uuid.UUID, amount *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ledger.Transfer(account, m.account, m.collateral, amount); err != nil {
		return err
	}
	s := ref(m.supplied, account)
	s.Add(s, amount)
	return nil
}

func (m *MoneyMarket) Withdraw(ctx context.Context, account uuid.UUID, amount *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := ref(m.supplied, account)
	if amount.Cmp(s) > 0 {
		return fmt.Errorf("withdraw %s exceeds supplied %s", amount, s)
	}
	if err := m.ledger.Transfer(m.account, account, m.collateral, amount); err != nil {
		return err
	}
	s.Sub(s, amount)
	return nil
}

func (m *MoneyMarket) Borrow(ctx context.Context, account uuid.UUID, amount *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Debt tokens are minted into existence on borrow.
	m.ledger.Credit(account, m.debtToken, amount)
	b := ref(m.borrowed, account)
	b.Add(b, amount)
	return nil
}

func (m *MoneyMarket) Repay(ctx context.Context, account uuid.UUID, amount *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := ref(m.borrowed, account)
	if amount.Cmp(b) > 0 {
		return fmt.Errorf("repay %s exceeds debt %s", amount, b)
	}
	if err := m.ledger.Debit(account, m.debtToken, amount); err != nil {
		return err
	}
	b.Sub(b, amount)
	return nil
}

func (m *MoneyMarket) AccountData(ctx context.Context, account uuid.UUID) (*uint256.Int, *uint256.Int, error) {
	m.mu.Lock()
	supplied := new(uint256.Int).Set(ref(m.supplied, account))
	borrowed := new(uint256.Int).Set(ref(m.borrowed, account))
	m.mu.Unlock()

	colReading, err := m.collateralFeed.Latest(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("collateral feed: %w", err)
	}
	debtReading, err := m.debtFeed.Latest(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("debt feed: %w", err)
	}

	collateralBase := oracle.AssetToBase(supplied, colReading.Answer, m.collateralDecimals)
	debtBase := oracle.AssetToBase(borrowed, debtReading.Answer, m.debtDecimals)
	return collateralBase, debtBase, nil
}
