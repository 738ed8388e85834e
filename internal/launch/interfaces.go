package launch

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Account is the signer every write is issued from.
type Account interface {
	Address() common.Address
	NativeBalance(ctx context.Context) (*big.Int, error)
	GasPrice(ctx context.Context) (*big.Int, error)
}

// ContractDeployer creates contracts from named artifacts and waits for the
// creation receipt.
type ContractDeployer interface {
	Deploy(ctx context.Context, contractName string, opts TxOpts, args ...interface{}) (common.Address, TxResult, error)
}

// TokenContract is the fungible-token capability.
type TokenContract interface {
	Transfer(ctx context.Context, token, to common.Address, amount *big.Int, opts TxOpts) (TxResult, error)
	Approve(ctx context.Context, token, spender common.Address, amount *big.Int, opts TxOpts) (TxResult, error)
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
}

// FactoryContract is the launch factory that mints tokens on request.
type FactoryContract interface {
	DeployToken(ctx context.Context, factory common.Address, spec TokenSpec, opts TxOpts) (TxResult, error)
	GetTokens(ctx context.Context, factory common.Address) ([]TokenRecord, error)
}

// PairFactoryContract is the AMM factory.
type PairFactoryContract interface {
	GetPair(ctx context.Context, factory, tokenA, tokenB common.Address) (common.Address, error)
	CreatePair(ctx context.Context, factory, tokenA, tokenB common.Address, opts TxOpts) (TxResult, error)
}

// RouterContract is the AMM router.
type RouterContract interface {
	AddLiquidityETH(ctx context.Context, router common.Address, deposit LiquidityDeposit, opts TxOpts) (LiquidityResult, error)
}

// Ledger bundles every capability the orchestrator needs. A single ledger
// client adapter implements all of them.
type Ledger interface {
	Account
	ContractDeployer
	TokenContract
	FactoryContract
	PairFactoryContract
	RouterContract
}

// RunRecorder persists completion markers and reports progress. StepCompleted
// must not return before the marker is durable; an error aborts the run.
// StepSubmitted records a transaction hash as soon as the node accepts it, so a
// resumed run can tell a pending write from one that was never sent.
type RunRecorder interface {
	RunStarted(ctx context.Context, runID string, spec TokenSpec, plan BurnPlan) error
	StepSubmitted(ctx context.Context, runID string, step Step, txHash common.Hash)
	StepCompleted(ctx context.Context, runID string, outcome StepOutcome) error
	StepFailed(ctx context.Context, runID string, stepErr *StepError)
	RunCompleted(ctx context.Context, runID string, summary Summary)
}

// StepOutcome describes a completed step.
type StepOutcome struct {
	Step    Step
	TxHash  common.Hash
	Token   common.Address
	Pair    common.Address
	Amount  *big.Int
	Skipped bool
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) RunStarted(context.Context, string, TokenSpec, BurnPlan) error { return nil }
func (NopRecorder) StepSubmitted(context.Context, string, Step, common.Hash)       {}
func (NopRecorder) StepCompleted(context.Context, string, StepOutcome) error      { return nil }
func (NopRecorder) StepFailed(context.Context, string, *StepError)                {}
func (NopRecorder) RunCompleted(context.Context, string, Summary)                 {}
