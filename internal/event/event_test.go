package event_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"rangevault/internal/event"
)

func TestType_String(t *testing.T) {
	tests := []struct {
		typ  event.Type
		want string
	}{
		{event.TypeMinted, "Minted"},
		{event.TypeBurned, "Burned"},
		{event.TypeFeesEarned, "FeesEarned"},
		{event.TypeInThePositionStatusSet, "InThePositionStatusSet"},
		{event.TypeVaultImplUpgraded, "VaultImplUpgraded"},
		{event.TypeUnknown, "Unknown"},
		{event.Type(999), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("Type(%d).String() = %q, want %q", tt.typ, got, tt.want)
		}
	}
}

func TestRecorder_SequencesMonotonic(t *testing.T) {
	r := event.NewRecorder()
	vaultID := uuid.New()

	for i := 0; i < 5; i++ {
		r.Emit(&vaultID, event.Minted{
			Receiver: uuid.New(),
			Shares:   uint256.NewInt(1),
			Amount:   uint256.NewInt(1),
		})
	}

	events := r.Events()
	if len(events) != 5 {
		t.Fatalf("recorded %d events, want 5", len(events))
	}
	for i, env := range events {
		if env.Sequence != int64(i+1) {
			t.Errorf("event %d has sequence %d, want %d", i, env.Sequence, i+1)
		}
		if env.EventID == uuid.Nil {
			t.Errorf("event %d has nil event ID", i)
		}
	}
}

func TestRecorder_DeliversToSinks(t *testing.T) {
	var seen []event.Envelope
	sink := event.SinkFunc(func(env event.Envelope) {
		seen = append(seen, env)
	})

	r := event.NewRecorder(sink)
	vaultID := uuid.New()
	r.Emit(&vaultID, event.Paused{Account: uuid.New()})
	r.Emit(&vaultID, event.Unpaused{Account: uuid.New()})

	if len(seen) != 2 {
		t.Fatalf("sink saw %d events, want 2", len(seen))
	}
	if seen[0].Type != event.TypePaused || seen[1].Type != event.TypeUnpaused {
		t.Errorf("sink saw types %v, %v", seen[0].Type, seen[1].Type)
	}
}

func TestRecorder_AttachOnlySeesLaterEvents(t *testing.T) {
	r := event.NewRecorder()
	vaultID := uuid.New()
	r.Emit(&vaultID, event.Paused{Account: uuid.New()})

	var count int
	r.Attach(event.SinkFunc(func(event.Envelope) { count++ }))
	r.Emit(&vaultID, event.Unpaused{Account: uuid.New()})

	if count != 1 {
		t.Errorf("late sink saw %d events, want 1", count)
	}
}

func TestRecorder_EventsForVault(t *testing.T) {
	r := event.NewRecorder()
	a, b := uuid.New(), uuid.New()

	r.Emit(&a, event.Paused{Account: uuid.New()})
	r.Emit(&b, event.Paused{Account: uuid.New()})
	r.Emit(&a, event.Unpaused{Account: uuid.New()})
	r.Emit(nil, event.VaultCreated{Pool: uuid.New(), Vault: a})

	got := r.EventsForVault(a)
	if len(got) != 2 {
		t.Fatalf("vault a has %d events, want 2", len(got))
	}
	for _, env := range got {
		if env.VaultID == nil || *env.VaultID != a {
			t.Errorf("event %d has wrong vault context", env.Sequence)
		}
	}
}
