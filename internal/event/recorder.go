package event

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Recorder assigns sequence numbers and fans envelopes out to sinks.
// Emission order is the sequence order; sinks see events one at a time.
type Recorder struct {
	mu    sync.Mutex
	seq   int64
	sinks []Sink
	log   []Envelope
}

func NewRecorder(sinks ...Sink) *Recorder {
	return &Recorder{sinks: sinks}
}

// Attach registers an additional sink. Only events recorded after the
// attach are delivered to it.
func (r *Recorder) Attach(s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append(r.sinks, s)
}

// Emit records one event for a vault context. A nil vaultID marks a
// registry-level event.
func (r *Recorder) Emit(vaultID *uuid.UUID, payload Payload) Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	env := Envelope{
		EventID:   uuid.New(),
		Sequence:  r.seq,
		Type:      payload.EventType(),
		VaultID:   vaultID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	r.log = append(r.log, env)
	for _, s := range r.sinks {
		s.Record(env)
	}
	return env
}

// Events returns a snapshot of everything recorded so far.
func (r *Recorder) Events() []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Envelope, len(r.log))
	copy(out, r.log)
	return out
}

// EventsForVault filters the log by vault context.
func (r *Recorder) EventsForVault(vaultID uuid.UUID) []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Envelope
	for _, env := range r.log {
		if env.VaultID != nil && *env.VaultID == vaultID {
			out = append(out, env)
		}
	}
	return out
}
