package projection

import (
	"sync"

	"github.com/google/uuid"

	"rangevault/internal/event"
)

// activityCapacity bounds the in-memory window; older entries fall off.
const activityCapacity = 4096

// ActivityEntry is one holder-affecting event in the recent window.
type ActivityEntry struct {
	Holder    uuid.UUID
	VaultID   uuid.UUID
	Sequence  int64
	EventType event.Type
	Shares    string // decimal
	Value     string // decimal, amount or moved basis
}

// HolderActivity keeps a bounded in-memory window of recent share
// activity so the API can answer "what happened to this holder lately"
// without a database round trip.
type HolderActivity struct {
	mu      sync.RWMutex
	entries []ActivityEntry
}

func NewHolderActivity() *HolderActivity {
	return &HolderActivity{}
}

// Record appends the holder-affecting entries of an envelope, if any.
func (p *HolderActivity) Record(env event.Envelope) {
	if env.VaultID == nil {
		return
	}
	vaultID := *env.VaultID

	var added []ActivityEntry
	switch payload := env.Payload.(type) {
	case event.Minted:
		added = []ActivityEntry{{
			Holder: payload.Receiver, VaultID: vaultID, Sequence: env.Sequence,
			EventType: env.Type, Shares: payload.Shares.Dec(), Value: payload.Amount.Dec(),
		}}
	case event.Burned:
		added = []ActivityEntry{{
			Holder: payload.Holder, VaultID: vaultID, Sequence: env.Sequence,
			EventType: env.Type, Shares: payload.Shares.Dec(), Value: payload.Amount.Dec(),
		}}
	case event.SharesTransferred:
		added = []ActivityEntry{
			{
				Holder: payload.From, VaultID: vaultID, Sequence: env.Sequence,
				EventType: env.Type, Shares: payload.Shares.Dec(), Value: payload.MovedBasis.Dec(),
			},
			{
				Holder: payload.To, VaultID: vaultID, Sequence: env.Sequence,
				EventType: env.Type, Shares: payload.Shares.Dec(), Value: payload.MovedBasis.Dec(),
			},
		}
	default:
		return
	}

	p.mu.Lock()
	p.entries = append(p.entries, added...)
	if excess := len(p.entries) - activityCapacity; excess > 0 {
		p.entries = p.entries[excess:]
	}
	p.mu.Unlock()
}

// QueryByHolder returns the holder's recent entries, newest first.
func (p *HolderActivity) QueryByHolder(holder uuid.UUID, limit int) []ActivityEntry {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]ActivityEntry, 0)
	for i := len(p.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if p.entries[i].Holder == holder {
			result = append(result, p.entries[i])
		}
	}
	return result
}
