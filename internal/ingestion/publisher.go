package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"rangevault/internal/event"
	"rangevault/internal/observability"
)

// OutboundPublisher publishes recorded vault events to NATS for
// downstream consumers. Subjects follow the pattern
// range.vault.events.{event_type}[.{vault_id}].
type OutboundPublisher struct {
	js        jetstream.JetStream
	inputChan <-chan event.Envelope
	metrics   *observability.Metrics
}

// wireEvent is the outbound JSON shape of an envelope.
type wireEvent struct {
	EventID   string      `json:"event_id"`
	Sequence  int64       `json:"sequence"`
	EventType string      `json:"event_type"`
	VaultID   *string     `json:"vault_id,omitempty"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewOutboundPublisher(js jetstream.JetStream, inputChan <-chan event.Envelope, metrics *observability.Metrics) *OutboundPublisher {
	return &OutboundPublisher{
		js:        js,
		inputChan: inputChan,
		metrics:   metrics,
	}
}

// Run starts the outbound publisher loop.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case env, ok := <-op.inputChan:
			if !ok {
				return nil
			}

			if err := op.publish(ctx, env); err != nil {
				log.Printf("WARN: outbound publish failed seq=%d: %v", env.Sequence, err)
				// Non-fatal: consumers can read the event log directly.
				if op.metrics != nil {
					op.metrics.PublishDrops.Inc()
				}
			}
		}
	}
}

func (op *OutboundPublisher) publish(ctx context.Context, env event.Envelope) error {
	wire := wireEvent{
		EventID:   env.EventID.String(),
		Sequence:  env.Sequence,
		EventType: env.Type.String(),
		Payload:   env.Payload,
		Timestamp: env.Timestamp,
	}
	subject := fmt.Sprintf("range.vault.events.%s", env.Type)
	if env.VaultID != nil {
		id := env.VaultID.String()
		wire.VaultID = &id
		subject = fmt.Sprintf("%s.%s", subject, id)
	}

	data, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	_, err = op.js.Publish(ctx, subject, data)
	return err
}

// EnsureOutboundStream creates the outbound events stream.
func EnsureOutboundStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "RANGE_VAULT_EVENTS",
		Subjects:  []string{"range.vault.events.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	log.Println("INFO: ensured outbound stream RANGE_VAULT_EVENTS")
	return nil
}
