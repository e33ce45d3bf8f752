package vault

import (
	"context"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// Implementation is the upgradeable logic surface a registry proxy
// routes share operations through. Implementations are stateless; all
// accounting lives in the Vault they are handed.
type Implementation interface {
	Version() string
	Mint(ctx context.Context, v *Vault, depositor uuid.UUID, amount *uint256.Int) (*uint256.Int, error)
	Burn(ctx context.Context, v *Vault, holder uuid.UUID, sharesIn *uint256.Int) (*uint256.Int, error)
	TotalAssetValue(ctx context.Context, v *Vault) (*uint256.Int, error)
}

// V1 is the stock implementation: straight passthrough to the vault.
type V1 struct{}

func (V1) Version() string { return "v1" }

func (V1) Mint(ctx context.Context, v *Vault, depositor uuid.UUID, amount *uint256.Int) (*uint256.Int, error) {
	return v.Mint(ctx, depositor, amount)
}

func (V1) Burn(ctx context.Context, v *Vault, holder uuid.UUID, sharesIn *uint256.Int) (*uint256.Int, error) {
	return v.Burn(ctx, holder, sharesIn)
}

func (V1) TotalAssetValue(ctx context.Context, v *Vault) (*uint256.Int, error) {
	return v.TotalAssetValue(ctx)
}
