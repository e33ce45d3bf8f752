package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"rangevault/internal/event"
)

// EventLogWriter appends vault events to Postgres with multi-row
// INSERTs. The event ID is the primary key, so replays and crash
// recovery can re-send batches without duplicating rows.
type EventLogWriter struct {
	db *sql.DB
}

// EventRow is a row in event_log.vault_events.
type EventRow struct {
	EventID   uuid.UUID
	Sequence  int64
	EventType string
	VaultID   *uuid.UUID
	Payload   []byte // JSON-encoded event payload
	Timestamp time.Time
}

// RowFromEnvelope flattens a recorded envelope into its storage row.
func RowFromEnvelope(env event.Envelope) (EventRow, error) {
	payload, err := json.Marshal(env.Payload)
	if err != nil {
		return EventRow{}, fmt.Errorf("marshal %s payload: %w", env.Type, err)
	}
	return EventRow{
		EventID:   env.EventID,
		Sequence:  env.Sequence,
		EventType: env.Type.String(),
		VaultID:   env.VaultID,
		Payload:   payload,
		Timestamp: env.Timestamp,
	}, nil
}

func NewEventLogWriter(db *sql.DB) *EventLogWriter {
	return &EventLogWriter{db: db}
}

// WriteEventBatch writes a batch of rows inside the given transaction.
func (w *EventLogWriter) WriteEventBatch(ctx context.Context, tx *sql.Tx, rows []EventRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO event_log.vault_events
		(event_id, sequence, event_type, vault_id, payload, timestamp)
		VALUES `

	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*6)

	for i, r := range rows {
		base := i * 6
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6,
		))
		args = append(args,
			r.EventID, r.Sequence, r.EventType, r.VaultID, r.Payload, r.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (event_id) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}
