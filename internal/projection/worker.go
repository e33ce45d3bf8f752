package projection

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"rangevault/internal/event"
)

// ProjectionWorker folds the event stream into queryable tables. The
// input channel is fed non-blocking with drop; projections are
// eventually consistent and can be rebuilt by replaying the event log.
type ProjectionWorker struct {
	db        *sql.DB
	inputChan <-chan event.Envelope
	activity  *HolderActivity
}

func NewProjectionWorker(db *sql.DB, inputChan <-chan event.Envelope) *ProjectionWorker {
	return &ProjectionWorker{
		db:        db,
		inputChan: inputChan,
		activity:  NewHolderActivity(),
	}
}

// Activity exposes the in-memory recent-activity view maintained
// alongside the database projections.
func (pw *ProjectionWorker) Activity() *HolderActivity {
	return pw.activity
}

// Run starts the projection worker loop.
func (pw *ProjectionWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case env, ok := <-pw.inputChan:
			if !ok {
				return nil
			}

			pw.activity.Record(env)
			if err := pw.apply(ctx, env); err != nil {
				log.Printf("WARN: projection update failed at seq=%d: %v", env.Sequence, err)
			}
		}
	}
}

func (pw *ProjectionWorker) apply(ctx context.Context, env event.Envelope) error {
	if env.VaultID == nil {
		return nil // registry-level events carry no projected state
	}
	vaultID := *env.VaultID

	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	switch p := env.Payload.(type) {
	case event.Minted:
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projections.vault_state (vault_id, total_supply, last_sequence)
			VALUES ($1, $2, $3)
			ON CONFLICT (vault_id) DO UPDATE SET
				total_supply = projections.vault_state.total_supply + $2,
				last_sequence = $3, updated_at = NOW()
		`, vaultID, p.Shares.Dec(), env.Sequence); err != nil {
			return fmt.Errorf("vault_state supply: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projections.holders (vault_id, holder, shares, basis, last_sequence)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (vault_id, holder) DO UPDATE SET
				shares = projections.holders.shares + $3,
				basis = projections.holders.basis + $4,
				last_sequence = $5, updated_at = NOW()
		`, vaultID, p.Receiver, p.Shares.Dec(), p.Amount.Dec(), env.Sequence); err != nil {
			return fmt.Errorf("holders mint: %w", err)
		}

	case event.Burned:
		if _, err := tx.ExecContext(ctx, `
			UPDATE projections.vault_state SET
				total_supply = total_supply - $2,
				manager_balance = manager_balance + $3,
				last_sequence = $4, updated_at = NOW()
			WHERE vault_id = $1
		`, vaultID, p.Shares.Dec(), p.Fee.Dec(), env.Sequence); err != nil {
			return fmt.Errorf("vault_state burn: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE projections.holders SET
				shares = shares - $3,
				basis = GREATEST(basis - $4, 0),
				last_sequence = $5, updated_at = NOW()
			WHERE vault_id = $1 AND holder = $2
		`, vaultID, p.Holder, p.Shares.Dec(), p.Amount.Dec(), env.Sequence); err != nil {
			return fmt.Errorf("holders burn: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM projections.holders
			WHERE vault_id = $1 AND holder = $2 AND shares <= 0
		`, vaultID, p.Holder); err != nil {
			return fmt.Errorf("holders prune: %w", err)
		}

	case event.SharesTransferred:
		if _, err := tx.ExecContext(ctx, `
			UPDATE projections.holders SET
				shares = shares - $3,
				basis = basis - $4,
				last_sequence = $5, updated_at = NOW()
			WHERE vault_id = $1 AND holder = $2
		`, vaultID, p.From, p.Shares.Dec(), p.MovedBasis.Dec(), env.Sequence); err != nil {
			return fmt.Errorf("holders transfer from: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projections.holders (vault_id, holder, shares, basis, last_sequence)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (vault_id, holder) DO UPDATE SET
				shares = projections.holders.shares + $3,
				basis = projections.holders.basis + $4,
				last_sequence = $5, updated_at = NOW()
		`, vaultID, p.To, p.Shares.Dec(), p.MovedBasis.Dec(), env.Sequence); err != nil {
			return fmt.Errorf("holders transfer to: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM projections.holders
			WHERE vault_id = $1 AND holder = $2 AND shares <= 0
		`, vaultID, p.From); err != nil {
			return fmt.Errorf("holders prune: %w", err)
		}

	case event.FeesUpdated:
		if _, err := tx.ExecContext(ctx, `
			UPDATE projections.vault_state SET
				managing_fee_bps = $2, performance_fee_bps = $3,
				last_sequence = $4, updated_at = NOW()
			WHERE vault_id = $1
		`, vaultID, p.ManagingFeeBPS, p.PerformanceFeeBPS, env.Sequence); err != nil {
			return fmt.Errorf("vault_state fees: %w", err)
		}

	case event.InThePositionStatusSet:
		if _, err := tx.ExecContext(ctx, `
			UPDATE projections.vault_state SET
				in_position = $2, last_sequence = $3, updated_at = NOW()
			WHERE vault_id = $1
		`, vaultID, p.InPosition, env.Sequence); err != nil {
			return fmt.Errorf("vault_state position: %w", err)
		}

	case event.Paused:
		if _, err := tx.ExecContext(ctx, `
			UPDATE projections.vault_state SET
				paused = TRUE, last_sequence = $2, updated_at = NOW()
			WHERE vault_id = $1
		`, vaultID, env.Sequence); err != nil {
			return fmt.Errorf("vault_state pause: %w", err)
		}

	case event.Unpaused:
		if _, err := tx.ExecContext(ctx, `
			UPDATE projections.vault_state SET
				paused = FALSE, last_sequence = $2, updated_at = NOW()
			WHERE vault_id = $1
		`, vaultID, env.Sequence); err != nil {
			return fmt.Errorf("vault_state unpause: %w", err)
		}

	case event.ManagerBalanceCollected:
		if _, err := tx.ExecContext(ctx, `
			UPDATE projections.vault_state SET
				manager_balance = 0, last_sequence = $2, updated_at = NOW()
			WHERE vault_id = $1
		`, vaultID, env.Sequence); err != nil {
			return fmt.Errorf("vault_state collect: %w", err)
		}

	default:
		// Remaining event types have no projected columns.
		return nil
	}

	return tx.Commit()
}

// ResetProjections truncates every projection table. After a reset the
// event log must be replayed through a worker to repopulate.
func ResetProjections(ctx context.Context, db *sql.DB) error {
	for _, stmt := range []string{
		`TRUNCATE projections.holders`,
		`TRUNCATE projections.vault_state`,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("truncate failed: %w", err)
		}
	}
	log.Println("INFO: projections reset")
	return nil
}
