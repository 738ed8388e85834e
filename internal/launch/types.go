// Package launch deploys a token, burns the excess supply, resolves its AMM
// pair against the reserve asset and seeds the pair with initial liquidity.
//
// The pipeline is strictly sequential: every transaction reaches finality
// before the next one is issued. Flow: deploy → burn → resolve pair → approve → deposit.
package launch

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// DeployMode selects how the token contract is created.
type DeployMode string

const (
	// DeployModeDirect sends a contract-creation transaction for the token artifact.
	DeployModeDirect DeployMode = "direct"
	// DeployModeFactory calls deployToken on the launch factory.
	DeployModeFactory DeployMode = "factory"
)

// TokenSpec describes the token to launch. It is never mutated after submission.
type TokenSpec struct {
	Name        string         `json:"name" yaml:"name"`
	Symbol      string         `json:"symbol" yaml:"symbol"`
	TotalSupply *big.Int       `json:"total_supply" yaml:"-"` // base units
	Decimals    uint8          `json:"decimals" yaml:"decimals"`
	MetadataURI string         `json:"metadata_uri" yaml:"metadataUri"`
	Creator     common.Address `json:"creator" yaml:"-"`
	InitiatorID int64          `json:"initiator_id" yaml:"initiatorId"`
}

// Validate checks the spec before anything is submitted.
func (s TokenSpec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("token name is required")
	}
	if strings.TrimSpace(s.Symbol) == "" {
		return fmt.Errorf("token symbol is required")
	}
	if s.TotalSupply == nil || s.TotalSupply.Sign() <= 0 {
		return fmt.Errorf("total supply must be > 0")
	}
	if s.Creator == (common.Address{}) {
		return fmt.Errorf("creator address is required")
	}
	if s.Decimals > 0 {
		if new(big.Int).Mod(s.TotalSupply, s.unit()).Sign() != 0 {
			return fmt.Errorf("total supply %s is not a whole number of tokens at %d decimals", s.TotalSupply, s.Decimals)
		}
	}
	return nil
}

// WholeSupply is the supply in whole tokens, which is what the token
// constructor takes; the contract scales it by its decimals when minting.
func (s TokenSpec) WholeSupply() *big.Int {
	return new(big.Int).Quo(s.TotalSupply, s.unit())
}

func (s TokenSpec) unit() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(s.Decimals)), nil)
}

// DeployedToken is the on-ledger identity of a launched token.
type DeployedToken struct {
	Address     common.Address `json:"address"`
	Spec        TokenSpec      `json:"spec"`
	TxHash      common.Hash    `json:"tx_hash"`
	BlockNumber uint64         `json:"block_number"`
	DeployedAt  time.Time      `json:"deployed_at"`
}

// BurnPlan splits the total supply into the liquidity allocation and the burn.
// LiquidityAmount + BurnAmount == TotalSupply always holds; the rounding
// remainder of the fraction goes to the burn.
type BurnPlan struct {
	LiquidityFraction decimal.Decimal
	TotalSupply       *big.Int
	LiquidityAmount   *big.Int
	BurnAmount        *big.Int
}

// NewBurnPlan computes the plan for a supply and a fraction in (0,1]. A plan
// that would leave no tokens for the pool is rejected.
func NewBurnPlan(totalSupply *big.Int, liquidityFraction decimal.Decimal) (BurnPlan, error) {
	if totalSupply == nil || totalSupply.Sign() <= 0 {
		return BurnPlan{}, fmt.Errorf("total supply must be > 0")
	}
	if !liquidityFraction.IsPositive() || liquidityFraction.GreaterThan(decimal.NewFromInt(1)) {
		return BurnPlan{}, fmt.Errorf("liquidity fraction %s must be in (0,1]", liquidityFraction)
	}

	liquidity := decimal.NewFromBigInt(totalSupply, 0).Mul(liquidityFraction).Floor().BigInt()
	if liquidity.Sign() == 0 {
		return BurnPlan{}, fmt.Errorf("liquidity fraction %s of supply %s rounds down to zero tokens", liquidityFraction, totalSupply)
	}
	burn := new(big.Int).Sub(totalSupply, liquidity)

	return BurnPlan{
		LiquidityFraction: liquidityFraction,
		TotalSupply:       new(big.Int).Set(totalSupply),
		LiquidityAmount:   liquidity,
		BurnAmount:        burn,
	}, nil
}

// TradingPair is the AMM pool for an unordered (token, reserve asset) combination.
type TradingPair struct {
	Token        common.Address `json:"token"`
	ReserveAsset common.Address `json:"reserve_asset"`
	Pair         common.Address `json:"pair"`
	Created      bool           `json:"created"`
	TxHash       common.Hash    `json:"tx_hash,omitempty"`
}

// Resolved reports whether the pair address is known.
func (p TradingPair) Resolved() bool {
	return p.Pair != (common.Address{})
}

// LiquidityDeposit is one addLiquidityETH request. The AMM rejects it once
// ledger time reaches Deadline.
type LiquidityDeposit struct {
	Token          common.Address
	Pair           common.Address
	TokenAmount    *big.Int
	ReserveAmount  *big.Int
	MinTokenAmount *big.Int
	MinReserve     *big.Int
	Recipient      common.Address
	Deadline       time.Time
}

// TxOpts carries per-transaction overrides.
type TxOpts struct {
	GasLimit uint64
	Value    *big.Int
	// OnSubmitted runs once the transaction is accepted by the node, before
	// the receipt wait.
	OnSubmitted func(txHash common.Hash)
}

// TxResult is the outcome of a state-changing call.
type TxResult struct {
	Success      bool        `json:"success"`
	TxHash       common.Hash `json:"tx_hash"`
	BlockNumber  uint64      `json:"block_number"`
	GasUsed      uint64      `json:"gas_used"`
	RevertReason string      `json:"revert_reason,omitempty"`
}

// LiquidityResult is what the router consumed and minted for a deposit.
type LiquidityResult struct {
	TxResult
	AmountToken   *big.Int `json:"amount_token"`
	AmountReserve *big.Int `json:"amount_reserve"`
	Liquidity     *big.Int `json:"liquidity"`
}

// TokenRecord is one entry of the launch factory's token registry.
type TokenRecord struct {
	TokenAddress common.Address
	Name         string
	Symbol       string
	InitiatorID  *big.Int
	ImageURL     string
	Creator      common.Address
}

// Progress holds the completion markers of a previous attempt of the same run.
// Steps with a marker are not executed again. A BurnTxHash without Burned is a
// burn submitted earlier whose receipt was never seen.
type Progress struct {
	Token           common.Address
	TokenTxHash     common.Hash
	BurnTxHash      common.Hash
	Burned          bool
	Pair            common.Address
	LiquidityTxHash common.Hash
}

// Summary is reported after a fully successful run.
type Summary struct {
	RunID           string         `json:"run_id"`
	Token           common.Address `json:"token"`
	Pair            common.Address `json:"pair"`
	BurnTxHash      common.Hash    `json:"burn_tx_hash"`
	LiquidityTxHash common.Hash    `json:"liquidity_tx_hash"`
	LiquidityAmount *big.Int       `json:"liquidity_amount"`
	BurnAmount      *big.Int       `json:"burn_amount"`
	Shares          *big.Int       `json:"shares"`
}
