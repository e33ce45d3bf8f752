package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"rangevault/internal/event"
	"rangevault/internal/persistence"
	"rangevault/internal/testutil"
)

func TestRowFromEnvelope(t *testing.T) {
	vaultID := uuid.New()
	env := event.Envelope{
		EventID:   uuid.New(),
		Sequence:  7,
		Type:      event.TypeMinted,
		VaultID:   &vaultID,
		Timestamp: time.Now().UTC(),
		Payload: event.Minted{
			Receiver: uuid.New(),
			Shares:   uint256.NewInt(1000),
			Amount:   uint256.NewInt(1000),
		},
	}

	row, err := persistence.RowFromEnvelope(env)
	if err != nil {
		t.Fatalf("row from envelope: %v", err)
	}
	if row.EventID != env.EventID || row.Sequence != 7 {
		t.Errorf("identity fields wrong: %+v", row)
	}
	if row.EventType != "Minted" {
		t.Errorf("event type = %q, want Minted", row.EventType)
	}
	if row.VaultID == nil || *row.VaultID != vaultID {
		t.Error("vault id not carried over")
	}
	if len(row.Payload) == 0 {
		t.Error("payload empty")
	}
}

func TestRowFromEnvelopeRegistryLevel(t *testing.T) {
	env := event.Envelope{
		EventID:   uuid.New(),
		Sequence:  1,
		Type:      event.TypeVaultCreated,
		Timestamp: time.Now().UTC(),
		Payload:   event.VaultCreated{Pool: uuid.New(), Vault: uuid.New()},
	}

	row, err := persistence.RowFromEnvelope(env)
	if err != nil {
		t.Fatalf("row from envelope: %v", err)
	}
	if row.VaultID != nil {
		t.Error("registry-level event should keep a NULL vault id")
	}
}

func TestWriteEventBatchIdempotent(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	writer := persistence.NewEventLogWriter(db)
	vaultID := uuid.New()

	var rows []persistence.EventRow
	for i := int64(1); i <= 3; i++ {
		env := event.Envelope{
			EventID:   uuid.New(),
			Sequence:  i,
			Type:      event.TypeMinted,
			VaultID:   &vaultID,
			Timestamp: time.Now().UTC(),
			Payload: event.Minted{
				Receiver: uuid.New(),
				Shares:   uint256.NewInt(uint64(i)),
				Amount:   uint256.NewInt(uint64(i)),
			},
		}
		row, err := persistence.RowFromEnvelope(env)
		if err != nil {
			t.Fatal(err)
		}
		rows = append(rows, row)
	}

	// Write twice; the second write must be a no-op.
	for i := 0; i < 2; i++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			t.Fatal(err)
		}
		if err := writer.WriteEventBatch(ctx, tx, rows); err != nil {
			tx.Rollback()
			t.Fatalf("write batch: %v", err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatal(err)
		}
	}

	var count int
	if err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM event_log.vault_events WHERE vault_id = $1
	`, vaultID).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("rows = %d, want 3", count)
	}
}
