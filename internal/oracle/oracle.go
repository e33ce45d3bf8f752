package oracle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/holiman/uint256"
)

// AnswerDecimals is the fixed decimal scale of every feed answer.
const AnswerDecimals = 8

var ErrStalePrice = errors.New("oracle price is stale")

// Reading is a single feed answer with its publish time.
type Reading struct {
	Answer    *uint256.Int
	UpdatedAt time.Time
}

// Feed serves the latest price reading for one asset.
type Feed interface {
	Latest(ctx context.Context) (Reading, error)
}

// CheckFresh rejects a reading older than the heartbeat interval.
func CheckFresh(r Reading, heartbeat time.Duration, now time.Time) error {
	age := now.Sub(r.UpdatedAt)
	if age > heartbeat {
		return fmt.Errorf("%w: age %s exceeds heartbeat %s", ErrStalePrice, age, heartbeat)
	}
	return nil
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// ConvertValue prices an amount of one asset in terms of another.
// Both prices share the same answer scale, so the scale cancels:
// floor(amount * priceFrom * 10^decTo / (priceTo * 10^decFrom)).
func ConvertValue(amount, priceFrom, priceTo *uint256.Int, decFrom, decTo uint8) *uint256.Int {
	if amount.IsZero() || priceTo.IsZero() {
		return uint256.NewInt(0)
	}
	num := new(big.Int).Mul(amount.ToBig(), priceFrom.ToBig())
	num.Mul(num, pow10(decTo))
	den := new(big.Int).Mul(priceTo.ToBig(), pow10(decFrom))
	num.Div(num, den)
	return uint256.MustFromBig(num)
}

// BaseToAsset converts a value in the money market's 8-decimal base unit
// into an asset amount: floor(base * 10^dec / price).
func BaseToAsset(base, price *uint256.Int, dec uint8) *uint256.Int {
	if base.IsZero() || price.IsZero() {
		return uint256.NewInt(0)
	}
	num := new(big.Int).Mul(base.ToBig(), pow10(dec))
	num.Div(num, price.ToBig())
	return uint256.MustFromBig(num)
}

// AssetToBase is the inverse scaling of BaseToAsset:
// floor(amount * price / 10^dec).
func AssetToBase(amount, price *uint256.Int, dec uint8) *uint256.Int {
	if amount.IsZero() {
		return uint256.NewInt(0)
	}
	num := new(big.Int).Mul(amount.ToBig(), price.ToBig())
	num.Div(num, pow10(dec))
	return uint256.MustFromBig(num)
}

// StaticFeed returns a fixed answer stamped with the current time.
// Used for assets pegged 1:1 and in tests.
type StaticFeed struct {
	answer *uint256.Int
}

func NewStaticFeed(answer *uint256.Int) *StaticFeed {
	return &StaticFeed{answer: new(uint256.Int).Set(answer)}
}

func (f *StaticFeed) Latest(ctx context.Context) (Reading, error) {
	return Reading{Answer: new(uint256.Int).Set(f.answer), UpdatedAt: time.Now()}, nil
}

// CachedFeed holds the last reading pushed from an external price
// stream. Latest fails until the first update arrives.
type CachedFeed struct {
	mu      sync.RWMutex
	reading Reading
	primed  bool
}

func NewCachedFeed() *CachedFeed {
	return &CachedFeed{}
}

// Update replaces the cached reading.
func (f *CachedFeed) Update(answer *uint256.Int, updatedAt time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reading = Reading{Answer: new(uint256.Int).Set(answer), UpdatedAt: updatedAt}
	f.primed = true
}

func (f *CachedFeed) Latest(ctx context.Context) (Reading, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.primed {
		return Reading{}, fmt.Errorf("%w: no reading received yet", ErrStalePrice)
	}
	return Reading{Answer: new(uint256.Int).Set(f.reading.Answer), UpdatedAt: f.reading.UpdatedAt}, nil
}
