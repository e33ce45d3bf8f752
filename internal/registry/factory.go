// Package registry deploys vaults behind upgradeable proxies and keeps
// the ordered list of everything it has created.
package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"rangevault/internal/asset"
	"rangevault/internal/event"
	"rangevault/internal/lending"
	"rangevault/internal/observability"
	"rangevault/internal/oracle"
	"rangevault/internal/position"
	"rangevault/internal/vault"
)

var (
	ErrZeroPoolAddress      = errors.New("no pool for asset pair")
	ErrNilImplementation    = errors.New("implementation must not be nil")
	ErrUnknownVault         = errors.New("vault not in registry")
	ErrLengthMismatch       = errors.New("vaults and implementations differ in length")
	ErrPaginationOutOfRange = errors.New("pagination range out of bounds")
)

// PoolRef identifies a resolved external pool.
type PoolRef struct {
	ID   uuid.UUID
	Pool position.Pool
}

// PoolResolver maps (otherToken, feeTier) to a live pool against the
// factory's fixed collateral asset. A miss is reported as
// ErrZeroPoolAddress.
type PoolResolver interface {
	Resolve(otherToken asset.Symbol, feeTier uint32) (PoolRef, error)
}

// ResolverFunc adapts a function to the PoolResolver interface.
type ResolverFunc func(otherToken asset.Symbol, feeTier uint32) (PoolRef, error)

func (f ResolverFunc) Resolve(otherToken asset.Symbol, feeTier uint32) (PoolRef, error) {
	return f(otherToken, feeTier)
}

// CreateParams carries the one-time initializer arguments for a new
// vault. Heartbeats of zero fall back to the lending engine default.
type CreateParams struct {
	Name    string
	Manager uuid.UUID

	DebtDecimals uint8

	ManagingFeeBPS    uint64
	PerformanceFeeBPS uint64

	Market         lending.MoneyMarket
	CollateralFeed oracle.Feed
	DebtFeed       oracle.Feed

	CollateralHeartbeat time.Duration
	DebtHeartbeat       time.Duration
}

// Factory creates vault proxies for pairs against one fixed collateral
// asset and gates implementation upgrades. The registry it maintains is
// append-only; a vault's slot never changes after creation.
type Factory struct {
	mu sync.Mutex

	owner              uuid.UUID
	collateral         asset.Symbol
	collateralDecimals uint8

	assets   *asset.Ledger
	resolver PoolResolver
	recorder *event.Recorder
	metrics  *observability.Metrics
	log      zerolog.Logger

	vaults []*Proxy
	byID   map[uuid.UUID]*Proxy
}

func NewFactory(
	owner uuid.UUID,
	collateral asset.Symbol,
	collateralDecimals uint8,
	assets *asset.Ledger,
	resolver PoolResolver,
	recorder *event.Recorder,
	metrics *observability.Metrics,
) (*Factory, error) {
	if owner == uuid.Nil {
		return nil, fmt.Errorf("%w: factory needs an owner", vault.ErrUnauthorized)
	}
	return &Factory{
		owner:              owner,
		collateral:         collateral,
		collateralDecimals: collateralDecimals,
		assets:             assets,
		resolver:           resolver,
		recorder:           recorder,
		metrics:            metrics,
		log:                observability.NewLogger("registry"),
		byID:               make(map[uuid.UUID]*Proxy),
	}, nil
}

func (f *Factory) Owner() uuid.UUID { return f.owner }

func (f *Factory) requireOwner(caller uuid.UUID) error {
	if caller != f.owner {
		return fmt.Errorf("%w: caller %s is not the registry owner", vault.ErrUnauthorized, caller)
	}
	return nil
}

// CreateVault resolves the pool for (collateral, otherToken, feeTier),
// builds a vault bound to it and appends the proxy to the registry.
// Duplicate pairs are allowed: each call yields an independent vault.
func (f *Factory) CreateVault(caller uuid.UUID, otherToken asset.Symbol, feeTier uint32, impl vault.Implementation, params CreateParams) (*Proxy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.requireOwner(caller); err != nil {
		return nil, err
	}
	if impl == nil {
		return nil, ErrNilImplementation
	}
	if otherToken == f.collateral {
		return nil, fmt.Errorf("%w: pair of %s against itself", ErrZeroPoolAddress, otherToken)
	}
	ref, err := f.resolver.Resolve(otherToken, feeTier)
	if err != nil {
		return nil, fmt.Errorf("resolve pool %s/%s tier %d: %w", otherToken, f.collateral, feeTier, err)
	}

	id := uuid.New()
	name := params.Name
	if name == "" {
		name = fmt.Sprintf("%s-%s", otherToken, f.collateral)
	}
	v, err := vault.New(id, vault.Config{
		Name:               name,
		Manager:            params.Manager,
		Collateral:         f.collateral,
		CollateralDecimals: f.collateralDecimals,
		Debt:               otherToken,
		DebtDecimals:       params.DebtDecimals,
		ManagingFeeBPS:     params.ManagingFeeBPS,
		PerformanceFeeBPS:  params.PerformanceFeeBPS,
	}, f.assets, ref.Pool, params.Market, params.CollateralFeed, params.DebtFeed, f.recorder, f.metrics)
	if err != nil {
		return nil, err
	}
	if params.CollateralHeartbeat > 0 || params.DebtHeartbeat > 0 {
		if err := v.UpdateOracleHeartbeats(params.Manager, params.CollateralHeartbeat, params.DebtHeartbeat); err != nil {
			return nil, err
		}
	}

	proxy := &Proxy{impl: impl, state: v}
	f.vaults = append(f.vaults, proxy)
	f.byID[id] = proxy

	f.recorder.Emit(nil, event.VaultCreated{Pool: ref.ID, Vault: id})
	f.log.Info().
		Str("vault", id.String()).
		Str("name", name).
		Str("pool", ref.ID.String()).
		Str("version", impl.Version()).
		Msg("vault created")
	return proxy, nil
}

// Get looks a proxy up by vault ID.
func (f *Factory) Get(vaultID uuid.UUID) (*Proxy, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[vaultID]
	return p, ok
}

// Count returns the number of vaults ever created.
func (f *Factory) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.vaults)
}

// GetVaultAddresses reads registry slots [start, end], both inclusive,
// in creation order.
func (f *Factory) GetVaultAddresses(start, end int) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if start < 0 || end < start || end >= len(f.vaults) {
		return nil, fmt.Errorf("%w: [%d, %d] of %d", ErrPaginationOutOfRange, start, end, len(f.vaults))
	}
	out := make([]uuid.UUID, 0, end-start+1)
	for _, p := range f.vaults[start : end+1] {
		out = append(out, p.ID())
	}
	return out, nil
}

// UpgradeVault points the addressed proxy at a new implementation.
// Vault state is untouched; only the logic surface changes.
func (f *Factory) UpgradeVault(caller, vaultID uuid.UUID, impl vault.Implementation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upgradeLocked(caller, vaultID, impl)
}

// UpgradeVaults upgrades several proxies in one call. Every target is
// validated before any proxy is touched, so the batch applies fully or
// not at all.
func (f *Factory) UpgradeVaults(caller uuid.UUID, vaultIDs []uuid.UUID, impls []vault.Implementation) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.requireOwner(caller); err != nil {
		return err
	}
	if len(vaultIDs) != len(impls) {
		return fmt.Errorf("%w: %d vaults, %d implementations", ErrLengthMismatch, len(vaultIDs), len(impls))
	}
	for i, id := range vaultIDs {
		if impls[i] == nil {
			return ErrNilImplementation
		}
		if _, ok := f.byID[id]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownVault, id)
		}
	}
	for i, id := range vaultIDs {
		if err := f.upgradeLocked(caller, id, impls[i]); err != nil {
			return err
		}
	}
	return nil
}

func (f *Factory) upgradeLocked(caller, vaultID uuid.UUID, impl vault.Implementation) error {
	if err := f.requireOwner(caller); err != nil {
		return err
	}
	if impl == nil {
		return ErrNilImplementation
	}
	proxy, ok := f.byID[vaultID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownVault, vaultID)
	}

	proxy.setImplementation(impl)
	f.recorder.Emit(nil, event.VaultImplUpgraded{Vault: vaultID, Version: impl.Version()})
	f.log.Info().
		Str("vault", vaultID.String()).
		Str("version", impl.Version()).
		Msg("vault implementation upgraded")
	return nil
}
