package shares

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"rangevault/internal/feemath"
)

var (
	ErrInvalidAmount        = errors.New("share amount must be nonzero")
	ErrInsufficientBalance  = errors.New("insufficient share balance")
	ErrPaginationOutOfRange = errors.New("holder pagination out of range")
)

// HolderPosition is the per-holder view: whether the holder is in the
// set and the deposit basis backing their shares.
type HolderPosition struct {
	Holder uuid.UUID
	Exists bool
	Basis  *uint256.Int
}

// Ledger tracks the share supply, per-holder balances and basis, and an
// enumerable holder set. Holders enter the set when their balance
// becomes nonzero and leave it (swap-remove) when it returns to zero,
// so basis is nonzero only for current holders.
//
// The ledger is not safe for concurrent use; the owning vault
// serializes access under its own mutex.
type Ledger struct {
	supply   *uint256.Int
	balances map[uuid.UUID]*uint256.Int
	basis    map[uuid.UUID]*uint256.Int
	holders  []uuid.UUID
	index    map[uuid.UUID]int
}

func NewLedger() *Ledger {
	return &Ledger{
		supply:   new(uint256.Int),
		balances: make(map[uuid.UUID]*uint256.Int),
		basis:    make(map[uuid.UUID]*uint256.Int),
		index:    make(map[uuid.UUID]int),
	}
}

func (l *Ledger) addHolder(holder uuid.UUID) {
	if _, ok := l.index[holder]; ok {
		return
	}
	l.index[holder] = len(l.holders)
	l.holders = append(l.holders, holder)
}

func (l *Ledger) removeHolder(holder uuid.UUID) {
	i, ok := l.index[holder]
	if !ok {
		return
	}
	last := len(l.holders) - 1
	if i != last {
		moved := l.holders[last]
		l.holders[i] = moved
		l.index[moved] = i
	}
	l.holders = l.holders[:last]
	delete(l.index, holder)
	delete(l.balances, holder)
	delete(l.basis, holder)
}

func (l *Ledger) balanceRef(holder uuid.UUID) *uint256.Int {
	b, ok := l.balances[holder]
	if !ok {
		b = new(uint256.Int)
		l.balances[holder] = b
	}
	return b
}

func (l *Ledger) basisRef(holder uuid.UUID) *uint256.Int {
	b, ok := l.basis[holder]
	if !ok {
		b = new(uint256.Int)
		l.basis[holder] = b
	}
	return b
}

// Mint credits shares to a holder and grows their basis by the deposit
// amount.
func (l *Ledger) Mint(holder uuid.UUID, sharesOut, basisAdd *uint256.Int) error {
	if sharesOut.IsZero() {
		return ErrInvalidAmount
	}
	l.addHolder(holder)
	bal := l.balanceRef(holder)
	bal.Add(bal, sharesOut)
	b := l.basisRef(holder)
	b.Add(b, basisAdd)
	l.supply.Add(l.supply, sharesOut)
	return nil
}

// Burn debits shares and reduces the holder's basis by the gross
// redemption value, flooring at zero. A full burn drops the holder from
// the set entirely.
func (l *Ledger) Burn(holder uuid.UUID, sharesIn, grossValue *uint256.Int) error {
	if sharesIn.IsZero() {
		return ErrInvalidAmount
	}
	bal, ok := l.balances[holder]
	if !ok || bal.Cmp(sharesIn) < 0 {
		return fmt.Errorf("%w: holder %s", ErrInsufficientBalance, holder)
	}

	bal.Sub(bal, sharesIn)
	l.supply.Sub(l.supply, sharesIn)

	b := l.basisRef(holder)
	if b.Cmp(grossValue) <= 0 {
		b.Clear()
	} else {
		b.Sub(b, grossValue)
	}

	if bal.IsZero() {
		l.removeHolder(holder)
	}
	return nil
}

// Transfer moves shares between holders along with the proportional
// basis slice, computed against the sender's pre-transfer balance.
// Returns the basis amount that moved.
func (l *Ledger) Transfer(from, to uuid.UUID, sharesIn *uint256.Int) (*uint256.Int, error) {
	if sharesIn.IsZero() {
		return nil, ErrInvalidAmount
	}
	fromBal, ok := l.balances[from]
	if !ok || fromBal.Cmp(sharesIn) < 0 {
		return nil, fmt.Errorf("%w: holder %s", ErrInsufficientBalance, from)
	}
	if from == to {
		return uint256.NewInt(0), nil
	}

	moved := feemath.MovedBasis(l.basisRef(from), fromBal, sharesIn)

	fromBal.Sub(fromBal, sharesIn)
	fromBasis := l.basisRef(from)
	fromBasis.Sub(fromBasis, moved)

	l.addHolder(to)
	toBal := l.balanceRef(to)
	toBal.Add(toBal, sharesIn)
	toBasis := l.basisRef(to)
	toBasis.Add(toBasis, moved)

	if fromBal.IsZero() {
		l.removeHolder(from)
	}
	return moved, nil
}

// TotalSupply returns a copy of the outstanding share count.
func (l *Ledger) TotalSupply() *uint256.Int {
	return new(uint256.Int).Set(l.supply)
}

// BalanceOf returns a copy of a holder's share balance.
func (l *Ledger) BalanceOf(holder uuid.UUID) *uint256.Int {
	if b, ok := l.balances[holder]; ok {
		return new(uint256.Int).Set(b)
	}
	return uint256.NewInt(0)
}

// Position returns the holder-set view for one account.
func (l *Ledger) Position(holder uuid.UUID) HolderPosition {
	_, exists := l.index[holder]
	basis := uint256.NewInt(0)
	if b, ok := l.basis[holder]; ok {
		basis.Set(b)
	}
	return HolderPosition{Holder: holder, Exists: exists, Basis: basis}
}

// HolderCount returns the size of the holder set.
func (l *Ledger) HolderCount() int {
	return len(l.holders)
}

// Holders returns positions for the inclusive index range [start, end].
func (l *Ledger) Holders(start, end int) ([]HolderPosition, error) {
	if start < 0 || end < start || end >= len(l.holders) {
		return nil, fmt.Errorf("%w: [%d, %d] of %d", ErrPaginationOutOfRange, start, end, len(l.holders))
	}
	out := make([]HolderPosition, 0, end-start+1)
	for i := start; i <= end; i++ {
		out = append(out, l.Position(l.holders[i]))
	}
	return out, nil
}
