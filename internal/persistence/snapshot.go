package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rangevault/internal/vault"
)

// SnapshotManager stores periodic full-state snapshots so operators can
// inspect holdings without folding the whole event log, and restarts
// can resume projections from the snapshot sequence.
type SnapshotManager struct {
	db *sql.DB
}

// SnapshotData is the serialized state of every vault at a point in the
// event stream.
type SnapshotData struct {
	Sequence  int64           `json:"sequence"`
	Vaults    []VaultSnapshot `json:"vaults"`
	CreatedAt time.Time       `json:"created_at"`
}

// VaultSnapshot captures one vault's accounting state. Numeric fields
// are decimal strings; uint256 does not fit JSON numbers.
type VaultSnapshot struct {
	VaultID        uuid.UUID        `json:"vault_id"`
	Name           string           `json:"name"`
	TotalSupply    string           `json:"total_supply"`
	ManagerBalance string           `json:"manager_balance"`
	InPosition     bool             `json:"in_position"`
	Paused         bool             `json:"paused"`
	Holders        []HolderSnapshot `json:"holders"`
}

type HolderSnapshot struct {
	Holder uuid.UUID `json:"holder"`
	Shares string    `json:"shares"`
	Basis  string    `json:"basis"`
}

// CaptureVault reads a vault's current state into a snapshot.
func CaptureVault(v *vault.Vault) VaultSnapshot {
	snap := VaultSnapshot{
		VaultID:        v.ID(),
		Name:           v.Name(),
		TotalSupply:    v.TotalSupply().Dec(),
		ManagerBalance: v.ManagerBalance().Dec(),
		InPosition:     v.InPosition(),
		Paused:         v.IsPaused(),
	}
	if n := v.UserCount(); n > 0 {
		holders, err := v.UserVaults(0, n-1)
		if err == nil {
			for _, h := range holders {
				snap.Holders = append(snap.Holders, HolderSnapshot{
					Holder: h.Holder,
					Shares: v.BalanceOf(h.Holder).Dec(),
					Basis:  h.Basis.Dec(),
				})
			}
		}
	}
	return snap
}

func NewSnapshotManager(db *sql.DB) *SnapshotManager {
	return &SnapshotManager{db: db}
}

// SaveSnapshot persists a snapshot, replacing any earlier snapshot at
// the same sequence.
func (sm *SnapshotManager) SaveSnapshot(ctx context.Context, snap *SnapshotData) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = sm.db.ExecContext(ctx, `
		INSERT INTO event_log.snapshots
			(snapshot_id, sequence, data, size_bytes, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (sequence) DO UPDATE SET data = $3, size_bytes = $4
	`, uuid.New(), snap.Sequence, data, len(data), snap.CreatedAt)

	return err
}

// LoadLatestSnapshot loads the most recent snapshot, or nil when the
// table is empty (cold start).
func (sm *SnapshotManager) LoadLatestSnapshot(ctx context.Context) (*SnapshotData, error) {
	row := sm.db.QueryRowContext(ctx, `
		SELECT data FROM event_log.snapshots
		ORDER BY sequence DESC
		LIMIT 1
	`)

	var data []byte
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap SnapshotData
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}
