package query

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rangevault/internal/observability"
)

// QueryService provides read-only access to the projection tables and
// the persisted event log. Responses carry as_of_sequence so callers
// can reason about freshness against the live event stream.
type QueryService struct {
	db      *sql.DB
	metrics *observability.Metrics
}

func NewQueryService(db *sql.DB, metrics *observability.Metrics) *QueryService {
	return &QueryService{db: db, metrics: metrics}
}

// GetVaultState returns a vault's projected accounting state.
func (qs *QueryService) GetVaultState(ctx context.Context, vaultID uuid.UUID) (*VaultStateResponse, error) {
	defer qs.observe("vault_state", time.Now())

	var resp VaultStateResponse
	resp.VaultID = vaultID
	err := qs.db.QueryRowContext(ctx, `
		SELECT total_supply, manager_balance, managing_fee_bps,
		       performance_fee_bps, in_position, paused, last_sequence
		FROM projections.vault_state
		WHERE vault_id = $1
	`, vaultID).Scan(
		&resp.TotalSupply, &resp.ManagerBalance, &resp.ManagingFeeBPS,
		&resp.PerformanceFeeBPS, &resp.InPosition, &resp.Paused, &resp.AsOfSequence,
	)
	if err == sql.ErrNoRows {
		return nil, qs.fail("vault_state", fmt.Errorf("vault %s not found", vaultID))
	}
	if err != nil {
		return nil, qs.fail("vault_state", err)
	}
	return &resp, nil
}

// ListVaults returns all projected vault states in creation order.
func (qs *QueryService) ListVaults(ctx context.Context, limit int) ([]VaultStateResponse, error) {
	defer qs.observe("list_vaults", time.Now())

	rows, err := qs.db.QueryContext(ctx, `
		SELECT vault_id, total_supply, manager_balance, managing_fee_bps,
		       performance_fee_bps, in_position, paused, last_sequence
		FROM projections.vault_state
		ORDER BY vault_id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, qs.fail("list_vaults", err)
	}
	defer rows.Close()

	var vaults []VaultStateResponse
	for rows.Next() {
		var v VaultStateResponse
		if err := rows.Scan(
			&v.VaultID, &v.TotalSupply, &v.ManagerBalance, &v.ManagingFeeBPS,
			&v.PerformanceFeeBPS, &v.InPosition, &v.Paused, &v.AsOfSequence,
		); err != nil {
			return nil, qs.fail("list_vaults", err)
		}
		vaults = append(vaults, v)
	}
	if err := rows.Err(); err != nil {
		return nil, qs.fail("list_vaults", err)
	}
	return vaults, nil
}

// GetVaultEvents returns a vault's event history, newest first, with
// cursor-based pagination on the sequence number.
func (qs *QueryService) GetVaultEvents(
	ctx context.Context,
	vaultID uuid.UUID,
	limit int,
	beforeSequence *int64,
) ([]EventResponse, error) {
	defer qs.observe("vault_events", time.Now())

	query := `
		SELECT event_id, sequence, event_type, vault_id, payload, timestamp
		FROM event_log.vault_events
		WHERE vault_id = $1
	`
	args := []interface{}{vaultID}
	argIdx := 2

	if beforeSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *beforeSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, qs.fail("vault_events", err)
	}
	defer rows.Close()

	var events []EventResponse
	for rows.Next() {
		var e EventResponse
		if err := rows.Scan(
			&e.EventID, &e.Sequence, &e.EventType, &e.VaultID, &e.Payload, &e.Timestamp,
		); err != nil {
			return nil, qs.fail("vault_events", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, qs.fail("vault_events", err)
	}
	return events, nil
}

// --- helpers ---

func (qs *QueryService) observe(endpoint string, start time.Time) {
	if qs.metrics == nil {
		return
	}
	qs.metrics.QueryRequests.WithLabelValues(endpoint).Inc()
	qs.metrics.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func (qs *QueryService) fail(endpoint string, err error) error {
	if qs.metrics != nil {
		qs.metrics.QueryErrors.WithLabelValues(endpoint).Inc()
	}
	return err
}
