package query

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GetHolder returns one holder's stake in one vault.
func (qs *QueryService) GetHolder(ctx context.Context, vaultID, holder uuid.UUID) (*HolderResponse, error) {
	defer qs.observe("holder", time.Now())

	resp := HolderResponse{VaultID: vaultID, Holder: holder}
	err := qs.db.QueryRowContext(ctx, `
		SELECT shares, basis, last_sequence
		FROM projections.holders
		WHERE vault_id = $1 AND holder = $2
	`, vaultID, holder).Scan(&resp.Shares, &resp.Basis, &resp.AsOfSequence)
	if err == sql.ErrNoRows {
		return nil, qs.fail("holder", fmt.Errorf("holder %s has no stake in vault %s", holder, vaultID))
	}
	if err != nil {
		return nil, qs.fail("holder", err)
	}
	return &resp, nil
}

// ListHolders pages through a vault's holder set ordered by holder ID,
// with cursor-based pagination.
func (qs *QueryService) ListHolders(
	ctx context.Context,
	vaultID uuid.UUID,
	limit int,
	afterHolder *uuid.UUID,
) ([]HolderResponse, error) {
	defer qs.observe("list_holders", time.Now())

	query := `
		SELECT holder, shares, basis, last_sequence
		FROM projections.holders
		WHERE vault_id = $1
	`
	args := []interface{}{vaultID}
	argIdx := 2

	if afterHolder != nil {
		query += fmt.Sprintf(" AND holder > $%d", argIdx)
		args = append(args, *afterHolder)
		argIdx++
	}

	query += " ORDER BY holder"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, qs.fail("list_holders", err)
	}
	defer rows.Close()

	var holders []HolderResponse
	for rows.Next() {
		var h HolderResponse
		h.VaultID = vaultID
		if err := rows.Scan(&h.Holder, &h.Shares, &h.Basis, &h.AsOfSequence); err != nil {
			return nil, qs.fail("list_holders", err)
		}
		holders = append(holders, h)
	}
	if err := rows.Err(); err != nil {
		return nil, qs.fail("list_holders", err)
	}
	return holders, nil
}

// GetHolderVaults returns every vault a holder has shares in.
func (qs *QueryService) GetHolderVaults(ctx context.Context, holder uuid.UUID) ([]HolderResponse, error) {
	defer qs.observe("holder_vaults", time.Now())

	rows, err := qs.db.QueryContext(ctx, `
		SELECT vault_id, shares, basis, last_sequence
		FROM projections.holders
		WHERE holder = $1
		ORDER BY vault_id
	`, holder)
	if err != nil {
		return nil, qs.fail("holder_vaults", err)
	}
	defer rows.Close()

	var stakes []HolderResponse
	for rows.Next() {
		var h HolderResponse
		h.Holder = holder
		if err := rows.Scan(&h.VaultID, &h.Shares, &h.Basis, &h.AsOfSequence); err != nil {
			return nil, qs.fail("holder_vaults", err)
		}
		stakes = append(stakes, h)
	}
	if err := rows.Err(); err != nil {
		return nil, qs.fail("holder_vaults", err)
	}
	return stakes, nil
}
