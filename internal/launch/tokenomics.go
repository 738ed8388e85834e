package launch

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// TokenomicsEnforcer burns the supply that is not allocated to liquidity.
// A burn is not idempotent: callers must record its submission and completion
// and call Reconcile before burning again for the same token.
type TokenomicsEnforcer struct {
	account  Account
	tokens   TokenContract
	settings Settings
	log      logrus.FieldLogger
}

// NewTokenomicsEnforcer creates a TokenomicsEnforcer.
func NewTokenomicsEnforcer(account Account, tokens TokenContract, settings Settings, logger logrus.FieldLogger) *TokenomicsEnforcer {
	return &TokenomicsEnforcer{
		account:  account,
		tokens:   tokens,
		settings: settings,
		log:      logger.WithField("component", "tokenomics_enforcer"),
	}
}

// Reconcile decides whether an earlier attempt already burned the excess of
// token. The dead address is only ever funded by the burn, so a sink balance
// of at least plan.BurnAmount means it landed. When it has not and pending is
// set, the earlier transaction may still be mined and sending another would
// burn twice, so Reconcile refuses.
func (e *TokenomicsEnforcer) Reconcile(ctx context.Context, token DeployedToken, plan BurnPlan, pending common.Hash) (bool, error) {
	if plan.BurnAmount.Sign() == 0 {
		return false, nil
	}
	sunk, err := e.tokens.BalanceOf(ctx, token.Address, e.settings.DeadAddress)
	if err != nil {
		return false, newStepError(StepBurn, ErrBurnFailed, pending, fmt.Errorf("read sink balance: %w", err))
	}
	if sunk.Cmp(plan.BurnAmount) >= 0 {
		return true, nil
	}
	if pending != (common.Hash{}) {
		return false, newStepError(StepBurn, ErrBurnFailed, pending,
			fmt.Errorf("burn submitted by an earlier attempt has not landed (sink holds %s of %s); resume once it confirms or abandon it", sunk, plan.BurnAmount))
	}
	return false, nil
}

// Enforce transfers plan.BurnAmount from the signer to the dead address.
// onSubmit, if set, receives the transfer hash before the receipt wait.
func (e *TokenomicsEnforcer) Enforce(ctx context.Context, token DeployedToken, plan BurnPlan, onSubmit func(common.Hash)) (TxResult, error) {
	if plan.BurnAmount.Sign() == 0 {
		e.log.WithField("token", token.Address.Hex()).Info("Liquidity fraction is 1, nothing to burn")
		return TxResult{Success: true}, nil
	}

	owner := e.account.Address()
	balance, err := e.tokens.BalanceOf(ctx, token.Address, owner)
	if err != nil {
		return TxResult{}, newStepError(StepBurn, ErrBurnFailed, common.Hash{}, fmt.Errorf("read deployer balance: %w", err))
	}
	if balance.Cmp(plan.BurnAmount) < 0 {
		return TxResult{}, newStepError(StepBurn, ErrBurnFailed, common.Hash{},
			fmt.Errorf("deployer balance %s is below burn amount %s", balance, plan.BurnAmount))
	}

	e.log.WithFields(logrus.Fields{
		"token":   token.Address.Hex(),
		"amount":  plan.BurnAmount.String(),
		"sink":    e.settings.DeadAddress.Hex(),
		"balance": balance.String(),
	}).Info("Burning excess supply")

	res, err := e.tokens.Transfer(ctx, token.Address, e.settings.DeadAddress, plan.BurnAmount, TxOpts{GasLimit: e.settings.Gas.Burn, OnSubmitted: onSubmit})
	if err != nil {
		return res, newStepError(StepBurn, ErrBurnFailed, res.TxHash, err)
	}
	if !res.Success {
		return res, newStepError(StepBurn, ErrBurnFailed, res.TxHash, fmt.Errorf("transfer to sink was not confirmed"))
	}

	e.log.WithFields(logrus.Fields{
		"token":   token.Address.Hex(),
		"tx_hash": res.TxHash.Hex(),
	}).Info("Excess burned")
	return res, nil
}
