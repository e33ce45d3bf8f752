package event

// Type discriminator for event payloads
type Type int32

const (
	TypeUnknown Type = iota
	TypeMinted
	TypeBurned
	TypeSharesTransferred
	TypeFeesEarned
	TypeFeesUpdated
	TypeLiquidityAdded
	TypeLiquidityRemoved
	TypeInThePositionStatusSet
	TypeOraclesHeartbeatUpdated
	TypeOwnershipTransferred
	TypePaused
	TypeUnpaused
	TypeVaultCreated
	TypeVaultImplUpgraded
	TypeManagerBalanceCollected
)

func (t Type) String() string {
	switch t {
	case TypeMinted:
		return "Minted"
	case TypeBurned:
		return "Burned"
	case TypeSharesTransferred:
		return "SharesTransferred"
	case TypeFeesEarned:
		return "FeesEarned"
	case TypeFeesUpdated:
		return "FeesUpdated"
	case TypeLiquidityAdded:
		return "LiquidityAdded"
	case TypeLiquidityRemoved:
		return "LiquidityRemoved"
	case TypeInThePositionStatusSet:
		return "InThePositionStatusSet"
	case TypeOraclesHeartbeatUpdated:
		return "OraclesHeartbeatUpdated"
	case TypeOwnershipTransferred:
		return "OwnershipTransferred"
	case TypePaused:
		return "Paused"
	case TypeUnpaused:
		return "Unpaused"
	case TypeVaultCreated:
		return "VaultCreated"
	case TypeVaultImplUpgraded:
		return "VaultImplUpgraded"
	case TypeManagerBalanceCollected:
		return "ManagerBalanceCollected"
	default:
		return "Unknown"
	}
}
