package registry

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"rangevault/internal/vault"
)

// Proxy pairs a vault's durable state with a swappable implementation.
// Share operations route through the implementation so an upgrade can
// change behavior without touching balances or basis.
type Proxy struct {
	mu    sync.RWMutex
	impl  vault.Implementation
	state *vault.Vault
}

func (p *Proxy) ID() uuid.UUID { return p.state.ID() }

// Vault exposes the underlying state for reads and manager operations
// that are not part of the upgradeable surface.
func (p *Proxy) Vault() *vault.Vault { return p.state }

func (p *Proxy) Version() string {
	return p.implementation().Version()
}

func (p *Proxy) Mint(ctx context.Context, depositor uuid.UUID, amount *uint256.Int) (*uint256.Int, error) {
	return p.implementation().Mint(ctx, p.state, depositor, amount)
}

func (p *Proxy) Burn(ctx context.Context, holder uuid.UUID, sharesIn *uint256.Int) (*uint256.Int, error) {
	return p.implementation().Burn(ctx, p.state, holder, sharesIn)
}

func (p *Proxy) TotalAssetValue(ctx context.Context) (*uint256.Int, error) {
	return p.implementation().TotalAssetValue(ctx, p.state)
}

func (p *Proxy) implementation() vault.Implementation {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.impl
}

func (p *Proxy) setImplementation(impl vault.Implementation) {
	p.mu.Lock()
	p.impl = impl
	p.mu.Unlock()
}
