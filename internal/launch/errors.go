package launch

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"token-launcher/internal/utils"
)

// Step names one stage of the pipeline.
type Step string

const (
	StepDeploy      Step = "deploy_token"
	StepBurn        Step = "burn_excess"
	StepResolvePair Step = "resolve_pair"
	StepApprove     Step = "approve_router"
	StepDeposit     Step = "add_liquidity"
)

// Failure kinds. Every one of them aborts the run.
var (
	ErrDeploymentFailed       = errors.New("deployment failed")
	ErrBurnFailed             = errors.New("burn failed")
	ErrPairResolutionFailed   = errors.New("pair resolution failed")
	ErrApprovalFailed         = errors.New("approval failed")
	ErrLiquidityDepositFailed = errors.New("liquidity deposit failed")
)

// StepError is a fatal pipeline failure: the step, the submitted transaction
// (zero if none), and the decoded revert reason or raw diagnostic. Mined is
// set when TxHash reached a receipt, so its outcome is final.
type StepError struct {
	Step   Step
	Kind   error
	TxHash common.Hash
	Mined  bool
	Reason string
	Err    error
}

func (e *StepError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Step, e.Kind)
	if e.TxHash != (common.Hash{}) {
		msg += fmt.Sprintf(" (tx %s)", e.TxHash.Hex())
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StepError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// revertCarrier is implemented by ledger errors that hold a revert payload.
type revertCarrier interface {
	RevertData() []byte
}

// txHashCarrier is implemented by ledger errors raised after submission.
type txHashCarrier interface {
	TransactionHash() common.Hash
}

// minedCarrier is implemented by ledger errors that know whether their
// transaction was included.
type minedCarrier interface {
	Mined() bool
}

// newStepError builds a StepError, pulling the tx hash and revert payload out of
// err when the ledger provided them.
func newStepError(step Step, kind error, txHash common.Hash, err error) *StepError {
	stepErr := &StepError{Step: step, Kind: kind, TxHash: txHash, Err: err}

	var hashed txHashCarrier
	if stepErr.TxHash == (common.Hash{}) && errors.As(err, &hashed) {
		stepErr.TxHash = hashed.TransactionHash()
	}

	var mined minedCarrier
	if errors.As(err, &mined) {
		stepErr.Mined = mined.Mined()
	}

	var reverted revertCarrier
	if errors.As(err, &reverted) {
		stepErr.Reason = utils.DecodeRevertReason(reverted.RevertData())
	}
	if stepErr.Reason == "" && err != nil {
		stepErr.Reason = err.Error()
	}
	return stepErr
}
