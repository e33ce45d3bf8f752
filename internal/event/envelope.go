package event

import (
	"time"

	"github.com/google/uuid"
)

// Envelope wraps every event in the log
type Envelope struct {
	// Stable event identifier, doubles as the idempotency key
	EventID uuid.UUID

	// Monotonic sequence assigned by the recorder
	Sequence int64

	// Event type discriminator
	Type Type

	// Vault context (nil for registry-level events)
	VaultID *uuid.UUID

	// Assigned at record time
	Timestamp time.Time

	// Typed event body
	Payload Payload
}

// Sink receives recorded envelopes in sequence order.
type Sink interface {
	Record(env Envelope)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(env Envelope)

func (f SinkFunc) Record(env Envelope) { f(env) }
