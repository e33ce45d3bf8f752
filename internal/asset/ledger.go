package asset

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// Symbol identifies a token within the custody ledger.
type Symbol string

var ErrInsufficientBalance = errors.New("insufficient asset balance")

// Key addresses one account's balance in one token.
type Key struct {
	Account uuid.UUID
	Symbol  Symbol
}

// Ledger maintains in-memory token balances for every participant:
// depositors, vaults, the pool, the money market and the manager all
// hold balances here.
type Ledger struct {
	mu       sync.RWMutex
	balances map[Key]*uint256.Int
}

func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[Key]*uint256.Int),
	}
}

// Credit adds amount to an account balance.
func (l *Ledger) Credit(account uuid.UUID, symbol Symbol, amount *uint256.Int) {
	if amount.IsZero() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(account, symbol, amount)
}

func (l *Ledger) credit(account uuid.UUID, symbol Symbol, amount *uint256.Int) {
	key := Key{Account: account, Symbol: symbol}
	bal, ok := l.balances[key]
	if !ok {
		bal = new(uint256.Int)
		l.balances[key] = bal
	}
	bal.Add(bal, amount)
}

// Debit removes amount from an account balance.
func (l *Ledger) Debit(account uuid.UUID, symbol Symbol, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debit(account, symbol, amount)
}

func (l *Ledger) debit(account uuid.UUID, symbol Symbol, amount *uint256.Int) error {
	key := Key{Account: account, Symbol: symbol}
	bal, ok := l.balances[key]
	if !ok || bal.Cmp(amount) < 0 {
		have := uint256.NewInt(0)
		if ok {
			have = bal
		}
		return fmt.Errorf("%w: account %s %s have=%s need=%s",
			ErrInsufficientBalance, account, symbol, have, amount)
	}
	bal.Sub(bal, amount)
	return nil
}

// Transfer moves amount between two accounts atomically.
func (l *Ledger) Transfer(from, to uuid.UUID, symbol Symbol, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.debit(from, symbol, amount); err != nil {
		return err
	}
	l.credit(to, symbol, amount)
	return nil
}

// BalanceOf returns a copy of the current balance.
func (l *Ledger) BalanceOf(account uuid.UUID, symbol Symbol) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	bal, ok := l.balances[Key{Account: account, Symbol: symbol}]
	if !ok {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Set(bal)
}

// TotalSupply sums all balances of a symbol, for conservation checks.
func (l *Ledger) TotalSupply(symbol Symbol) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := new(uint256.Int)
	for key, bal := range l.balances {
		if key.Symbol == symbol {
			total.Add(total, bal)
		}
	}
	return total
}
