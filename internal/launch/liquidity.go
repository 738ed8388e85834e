package launch

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// LiquidityBootstrapper approves the router and deposits token + native reserve
// into the pair. Pool shares go to the configured recipient, the dead address
// by default, which locks the initial liquidity permanently.
type LiquidityBootstrapper struct {
	account  Account
	tokens   TokenContract
	router   RouterContract
	settings Settings
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewLiquidityBootstrapper creates a LiquidityBootstrapper.
func NewLiquidityBootstrapper(account Account, tokens TokenContract, router RouterContract, settings Settings, logger logrus.FieldLogger) *LiquidityBootstrapper {
	return &LiquidityBootstrapper{
		account:  account,
		tokens:   tokens,
		router:   router,
		settings: settings,
		log:      logger.WithField("component", "liquidity_bootstrapper"),
		now:      time.Now,
	}
}

// Bootstrap runs approve then deposit. An approval failure stops before any
// deposit is submitted.
func (b *LiquidityBootstrapper) Bootstrap(ctx context.Context, pair TradingPair, liquidityAmount, reserveAmount *big.Int) (LiquidityResult, error) {
	if _, err := b.Approve(ctx, pair.Token, liquidityAmount); err != nil {
		return LiquidityResult{}, err
	}
	return b.Deposit(ctx, pair, liquidityAmount, reserveAmount)
}

// Approve sets the router allowance to exactly amount. Re-running overwrites
// the previous allowance rather than adding to it.
func (b *LiquidityBootstrapper) Approve(ctx context.Context, token common.Address, amount *big.Int) (TxResult, error) {
	router := b.settings.Router
	fields := logrus.Fields{"token": token.Hex(), "router": router.Hex(), "amount": amount.String()}
	b.log.WithFields(fields).Info("Approving router")

	res, err := b.tokens.Approve(ctx, token, router, amount, TxOpts{GasLimit: b.settings.Gas.Approve})
	if err != nil {
		return res, newStepError(StepApprove, ErrApprovalFailed, res.TxHash, err)
	}
	if !res.Success {
		return res, newStepError(StepApprove, ErrApprovalFailed, res.TxHash, fmt.Errorf("approve was not confirmed"))
	}

	allowance, err := b.tokens.Allowance(ctx, token, b.account.Address(), router)
	if err != nil {
		return res, newStepError(StepApprove, ErrApprovalFailed, res.TxHash, fmt.Errorf("read allowance: %w", err))
	}
	if allowance.Cmp(amount) != 0 {
		return res, newStepError(StepApprove, ErrApprovalFailed, res.TxHash,
			fmt.Errorf("router allowance is %s, expected %s", allowance, amount))
	}

	b.log.WithFields(fields).WithField("tx_hash", res.TxHash.Hex()).Info("Router approved")
	return res, nil
}

// Deposit submits addLiquidityETH with a fresh deadline. It moves no funds when
// it fails, so it can be retried on its own.
func (b *LiquidityBootstrapper) Deposit(ctx context.Context, pair TradingPair, tokenAmount, reserveAmount *big.Int) (LiquidityResult, error) {
	deposit := b.NewDeposit(pair, tokenAmount, reserveAmount)
	fields := logrus.Fields{
		"token":          deposit.Token.Hex(),
		"pair":           deposit.Pair.Hex(),
		"token_amount":   deposit.TokenAmount.String(),
		"reserve_amount": deposit.ReserveAmount.String(),
		"recipient":      deposit.Recipient.Hex(),
		"deadline":       deposit.Deadline.Unix(),
	}

	required, err := b.requiredNative(ctx, deposit.ReserveAmount)
	if err != nil {
		return LiquidityResult{}, newStepError(StepDeposit, ErrLiquidityDepositFailed, common.Hash{}, err)
	}
	balance, err := b.account.NativeBalance(ctx)
	if err != nil {
		return LiquidityResult{}, newStepError(StepDeposit, ErrLiquidityDepositFailed, common.Hash{}, fmt.Errorf("read native balance: %w", err))
	}
	if balance.Cmp(required) < 0 {
		return LiquidityResult{}, newStepError(StepDeposit, ErrLiquidityDepositFailed, common.Hash{},
			fmt.Errorf("native balance %s is below reserve deposit %s plus gas (%s required)", balance, deposit.ReserveAmount, required))
	}

	b.log.WithFields(fields).Info("Adding liquidity")
	res, err := b.router.AddLiquidityETH(ctx, b.settings.Router, deposit, TxOpts{
		GasLimit: b.settings.Gas.AddLiquidity,
		Value:    new(big.Int).Set(deposit.ReserveAmount),
	})
	if err != nil {
		return res, newStepError(StepDeposit, ErrLiquidityDepositFailed, res.TxHash, err)
	}
	if !res.Success {
		return res, newStepError(StepDeposit, ErrLiquidityDepositFailed, res.TxHash, fmt.Errorf("addLiquidityETH was not confirmed"))
	}

	b.log.WithFields(fields).WithFields(logrus.Fields{
		"tx_hash":        res.TxHash.Hex(),
		"amount_token":   bigString(res.AmountToken),
		"amount_reserve": bigString(res.AmountReserve),
		"liquidity":      bigString(res.Liquidity),
	}).Info("Liquidity added")
	return res, nil
}

// requiredNative is the reserve plus the worst-case fee of the deposit. With no
// configured gas limit the limit is estimated at send time, so only the
// reserve is known up front.
func (b *LiquidityBootstrapper) requiredNative(ctx context.Context, reserve *big.Int) (*big.Int, error) {
	required := new(big.Int).Set(reserve)
	if b.settings.Gas.AddLiquidity == 0 {
		return required, nil
	}
	price, err := b.account.GasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("read gas price: %w", err)
	}
	fee := new(big.Int).Mul(price, new(big.Int).SetUint64(b.settings.Gas.AddLiquidity))
	return required.Add(required, fee), nil
}

// NewDeposit builds the deposit request with a deadline of now + DeadlineWindow.
func (b *LiquidityBootstrapper) NewDeposit(pair TradingPair, tokenAmount, reserveAmount *big.Int) LiquidityDeposit {
	return LiquidityDeposit{
		Token:          pair.Token,
		Pair:           pair.Pair,
		TokenAmount:    new(big.Int).Set(tokenAmount),
		ReserveAmount:  new(big.Int).Set(reserveAmount),
		MinTokenAmount: copyInt(b.settings.MinTokenAmount),
		MinReserve:     copyInt(b.settings.MinReserveAmount),
		Recipient:      b.settings.shareRecipient(),
		Deadline:       b.now().Add(b.settings.DeadlineWindow),
	}
}
