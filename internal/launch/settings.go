package launch

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// GasLimits are the per-step gas budgets. Zero means "estimate".
type GasLimits struct {
	Deploy        uint64
	FactoryDeploy uint64
	Burn          uint64
	CreatePair    uint64
	Approve       uint64
	AddLiquidity  uint64
}

// Settings is the immutable launch configuration injected into the
// orchestrator. Big integers are copied on construction and never mutated.
type Settings struct {
	DeployMode         DeployMode
	TokenArtifact      string
	LaunchFactory      common.Address
	FactoryDeployValue *big.Int

	AMMFactory     common.Address
	Router         common.Address
	ReserveAsset   common.Address
	DeadAddress    common.Address
	ShareRecipient common.Address

	LiquidityFraction decimal.Decimal
	ReserveAmount     *big.Int
	MinTokenAmount    *big.Int
	MinReserveAmount  *big.Int
	DeadlineWindow    time.Duration

	Gas GasLimits
}

// Validate checks the settings for internal consistency.
func (s Settings) Validate() error {
	zero := common.Address{}
	switch s.DeployMode {
	case DeployModeDirect:
		if s.TokenArtifact == "" {
			return fmt.Errorf("direct deploy mode requires a token artifact")
		}
	case DeployModeFactory:
		if s.LaunchFactory == zero {
			return fmt.Errorf("factory deploy mode requires a launch factory address")
		}
	default:
		return fmt.Errorf("unknown deploy mode %q", s.DeployMode)
	}
	if s.AMMFactory == zero || s.Router == zero || s.ReserveAsset == zero {
		return fmt.Errorf("AMM factory, router and reserve asset addresses are required")
	}
	if s.DeadAddress == zero {
		return fmt.Errorf("dead address is required")
	}
	if !s.LiquidityFraction.IsPositive() || s.LiquidityFraction.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("liquidity fraction %s must be in (0,1]", s.LiquidityFraction)
	}
	if s.ReserveAmount == nil || s.ReserveAmount.Sign() <= 0 {
		return fmt.Errorf("reserve amount must be > 0")
	}
	if s.DeadlineWindow <= 0 {
		return fmt.Errorf("deadline window must be > 0")
	}
	return nil
}

func (s Settings) shareRecipient() common.Address {
	if s.ShareRecipient == (common.Address{}) {
		return s.DeadAddress
	}
	return s.ShareRecipient
}

func (s Settings) clone() Settings {
	out := s
	out.FactoryDeployValue = copyInt(s.FactoryDeployValue)
	out.ReserveAmount = copyInt(s.ReserveAmount)
	out.MinTokenAmount = copyInt(s.MinTokenAmount)
	out.MinReserveAmount = copyInt(s.MinReserveAmount)
	return out
}

func copyInt(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
