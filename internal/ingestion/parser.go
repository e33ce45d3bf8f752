package ingestion

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/holiman/uint256"
)

// PriceUpdate is a validated oracle reading from the wire.
type PriceUpdate struct {
	Asset     string
	Answer    *uint256.Int
	Timestamp time.Time
}

// priceUpdateJSON is the wire shape published by price producers.
// The answer is a decimal string in the oracle's 8-decimal convention.
type priceUpdateJSON struct {
	Asset       string `json:"asset"`
	Answer      string `json:"answer"`
	TimestampUs int64  `json:"timestamp_us"`
}

// ParsePriceUpdate validates and converts raw price bytes.
func ParsePriceUpdate(data []byte) (PriceUpdate, error) {
	var j priceUpdateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return PriceUpdate{}, fmt.Errorf("parse price update: %w", err)
	}

	if j.Asset == "" {
		return PriceUpdate{}, fmt.Errorf("price update missing asset")
	}
	answer, err := uint256.FromDecimal(j.Answer)
	if err != nil {
		return PriceUpdate{}, fmt.Errorf("parse answer %q: %w", j.Answer, err)
	}
	if answer.IsZero() {
		return PriceUpdate{}, fmt.Errorf("zero price for %s", j.Asset)
	}
	if j.TimestampUs <= 0 {
		return PriceUpdate{}, fmt.Errorf("price update missing timestamp")
	}

	return PriceUpdate{
		Asset:     j.Asset,
		Answer:    answer,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}
