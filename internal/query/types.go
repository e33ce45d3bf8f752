package query

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Numeric fields are decimal strings: uint256 quantities do not fit
// JSON numbers, and NUMERIC(78,0) columns scan cleanly into strings.

// VaultStateResponse is a vault's projected accounting state.
type VaultStateResponse struct {
	VaultID           uuid.UUID `json:"vault_id"`
	TotalSupply       string    `json:"total_supply"`
	ManagerBalance    string    `json:"manager_balance"`
	ManagingFeeBPS    int64     `json:"managing_fee_bps"`
	PerformanceFeeBPS int64     `json:"performance_fee_bps"`
	InPosition        bool      `json:"in_position"`
	Paused            bool      `json:"paused"`
	AsOfSequence      int64     `json:"as_of_sequence"`
}

// HolderResponse is one holder's stake in one vault.
type HolderResponse struct {
	VaultID      uuid.UUID `json:"vault_id"`
	Holder       uuid.UUID `json:"holder"`
	Shares       string    `json:"shares"`
	Basis        string    `json:"basis"`
	AsOfSequence int64     `json:"as_of_sequence"`
}

// EventResponse is one row of the persisted event log.
type EventResponse struct {
	EventID   uuid.UUID       `json:"event_id"`
	Sequence  int64           `json:"sequence"`
	EventType string          `json:"event_type"`
	VaultID   *uuid.UUID      `json:"vault_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}
