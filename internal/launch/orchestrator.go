package launch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// Options configures an Orchestrator.
type Options struct {
	Settings Settings
	Ledger   Ledger
	Recorder RunRecorder
	Logger   logrus.FieldLogger
	Clock    func() time.Time
}

// Orchestrator sequences the launch pipeline for one token per Run call.
// It holds no per-run state, so one instance can drive concurrent runs as long
// as they use different signers or the ledger serializes sends.
type Orchestrator struct {
	settings Settings
	ledger   Ledger
	recorder RunRecorder
	log      logrus.FieldLogger

	deployer     *TokenDeployer
	enforcer     *TokenomicsEnforcer
	resolver     *PairResolver
	bootstrapper *LiquidityBootstrapper
}

// New validates the settings and wires the step components.
func New(opts Options) (*Orchestrator, error) {
	if opts.Ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	settings := opts.Settings.clone()
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid launch settings: %w", err)
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = NopRecorder{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	o := &Orchestrator{
		settings:     settings,
		ledger:       opts.Ledger,
		recorder:     recorder,
		log:          logger.WithField("component", "orchestrator"),
		deployer:     NewTokenDeployer(opts.Ledger, opts.Ledger, settings, logger),
		enforcer:     NewTokenomicsEnforcer(opts.Ledger, opts.Ledger, settings, logger),
		resolver:     NewPairResolver(opts.Ledger, settings, logger),
		bootstrapper: NewLiquidityBootstrapper(opts.Ledger, opts.Ledger, opts.Ledger, settings, logger),
	}
	if opts.Clock != nil {
		o.deployer.now = opts.Clock
		o.bootstrapper.now = opts.Clock
	}
	return o, nil
}

// Settings returns a copy of the orchestrator's settings.
func (o *Orchestrator) Settings() Settings { return o.settings.clone() }

// Deployer exposes the deploy step for standalone use.
func (o *Orchestrator) Deployer() *TokenDeployer { return o.deployer }

// Resolver exposes the pair step for standalone use.
func (o *Orchestrator) Resolver() *PairResolver { return o.resolver }

// Bootstrapper exposes the approve and deposit steps for standalone use.
func (o *Orchestrator) Bootstrapper() *LiquidityBootstrapper { return o.bootstrapper }

// Plan computes the burn plan for spec under the configured liquidity fraction.
func (o *Orchestrator) Plan(spec TokenSpec) (BurnPlan, error) {
	return NewBurnPlan(spec.TotalSupply, o.settings.LiquidityFraction)
}

// Run executes deploy, burn, resolve pair, approve and deposit in that order.
// Steps that progress marks as done are skipped. The first failing step aborts
// the run and its *StepError is returned; nothing already on the ledger is
// undone.
func (o *Orchestrator) Run(ctx context.Context, runID string, spec TokenSpec, progress Progress) (*Summary, error) {
	log := o.log.WithFields(logrus.Fields{"run_id": runID, "symbol": spec.Symbol})

	if err := spec.Validate(); err != nil {
		stepErr := newStepError(StepDeploy, ErrDeploymentFailed, common.Hash{}, err)
		o.recorder.StepFailed(ctx, runID, stepErr)
		return nil, stepErr
	}
	plan, err := o.Plan(spec)
	if err != nil {
		stepErr := newStepError(StepDeploy, ErrDeploymentFailed, common.Hash{}, err)
		o.recorder.StepFailed(ctx, runID, stepErr)
		return nil, stepErr
	}
	if err := o.recorder.RunStarted(ctx, runID, spec, plan); err != nil {
		return nil, fmt.Errorf("record run start: %w", err)
	}

	log.WithFields(logrus.Fields{
		"total_supply":     plan.TotalSupply.String(),
		"liquidity_amount": plan.LiquidityAmount.String(),
		"burn_amount":      plan.BurnAmount.String(),
		"reserve_amount":   o.settings.ReserveAmount.String(),
	}).Info("Starting launch")

	summary := &Summary{
		RunID:           runID,
		LiquidityAmount: plan.LiquidityAmount,
		BurnAmount:      plan.BurnAmount,
	}

	// 1. deploy
	token := DeployedToken{Address: progress.Token, Spec: spec, TxHash: progress.TokenTxHash}
	if token.Address == (common.Address{}) {
		token, err = o.deployer.Deploy(ctx, spec)
		if err != nil {
			return nil, o.fail(ctx, runID, err)
		}
		if err := o.complete(ctx, runID, StepOutcome{Step: StepDeploy, TxHash: token.TxHash, Token: token.Address, Amount: spec.TotalSupply}); err != nil {
			return nil, err
		}
	} else {
		log.WithField("token", token.Address.Hex()).Info("Token already deployed, skipping")
		if err := o.complete(ctx, runID, StepOutcome{Step: StepDeploy, TxHash: token.TxHash, Token: token.Address, Skipped: true}); err != nil {
			return nil, err
		}
	}
	summary.Token = token.Address

	// 2. burn
	burnHash, err := o.burn(ctx, runID, log, token, plan, progress)
	if err != nil {
		return nil, err
	}
	summary.BurnTxHash = burnHash

	// 3. pair; the lookup-first resolver is safe to repeat on resume
	pair, err := o.resolver.Resolve(ctx, token.Address)
	if err != nil {
		return nil, o.fail(ctx, runID, err)
	}
	if progress.Pair != (common.Address{}) && progress.Pair != pair.Pair {
		log.WithFields(logrus.Fields{"recorded": progress.Pair.Hex(), "resolved": pair.Pair.Hex()}).Warn("Resolved pair differs from recorded pair")
	}
	summary.Pair = pair.Pair
	if err := o.complete(ctx, runID, StepOutcome{Step: StepResolvePair, TxHash: pair.TxHash, Token: token.Address, Pair: pair.Pair, Skipped: !pair.Created}); err != nil {
		return nil, err
	}

	// 4 + 5. approve and deposit
	if progress.LiquidityTxHash != (common.Hash{}) {
		summary.LiquidityTxHash = progress.LiquidityTxHash
		log.WithField("tx_hash", progress.LiquidityTxHash.Hex()).Info("Liquidity already added, skipping")
		if err := o.complete(ctx, runID, StepOutcome{Step: StepDeposit, TxHash: progress.LiquidityTxHash, Token: token.Address, Pair: pair.Pair, Skipped: true}); err != nil {
			return nil, err
		}
	} else {
		approval, err := o.bootstrapper.Approve(ctx, token.Address, plan.LiquidityAmount)
		if err != nil {
			return nil, o.fail(ctx, runID, err)
		}
		if err := o.complete(ctx, runID, StepOutcome{Step: StepApprove, TxHash: approval.TxHash, Token: token.Address, Amount: plan.LiquidityAmount}); err != nil {
			return nil, err
		}

		deposit, err := o.bootstrapper.Deposit(ctx, pair, plan.LiquidityAmount, o.settings.ReserveAmount)
		if err != nil {
			return nil, o.fail(ctx, runID, err)
		}
		summary.LiquidityTxHash = deposit.TxHash
		summary.Shares = deposit.Liquidity
		if err := o.complete(ctx, runID, StepOutcome{Step: StepDeposit, TxHash: deposit.TxHash, Token: token.Address, Pair: pair.Pair, Amount: deposit.Liquidity}); err != nil {
			return nil, err
		}
	}

	o.verifyPair(ctx, log, pair)

	o.recorder.RunCompleted(ctx, runID, *summary)
	log.WithFields(logrus.Fields{
		"token":        summary.Token.Hex(),
		"pair":         summary.Pair.Hex(),
		"burn_tx":      summary.BurnTxHash.Hex(),
		"liquidity_tx": summary.LiquidityTxHash.Hex(),
		"shares":       bigString(summary.Shares),
	}).Info("Launch completed")
	return summary, nil
}

// verifyPair re-reads the factory after the deposit. A mismatch is only logged:
// the deposit is already final.
func (o *Orchestrator) verifyPair(ctx context.Context, log logrus.FieldLogger, pair TradingPair) {
	got, err := o.ledger.GetPair(ctx, o.settings.AMMFactory, pair.Token, pair.ReserveAsset)
	if err != nil {
		log.WithError(err).Warn("Post-deposit pair check failed")
		return
	}
	if got != pair.Pair {
		log.WithFields(logrus.Fields{"expected": pair.Pair.Hex(), "factory": got.Hex()}).Warn("Post-deposit pair mismatch")
		return
	}
	log.WithField("pair", got.Hex()).Debug("Post-deposit pair check passed")
}

// burn runs the burn step once per token. A resumed run first checks the
// ledger for an earlier burn, so a crash between submission and the completion
// marker never leads to a second transfer.
func (o *Orchestrator) burn(ctx context.Context, runID string, log logrus.FieldLogger, token DeployedToken, plan BurnPlan, progress Progress) (common.Hash, error) {
	if progress.Burned {
		log.WithField("tx_hash", progress.BurnTxHash.Hex()).Info("Excess already burned, skipping")
		return progress.BurnTxHash, o.complete(ctx, runID, StepOutcome{Step: StepBurn, TxHash: progress.BurnTxHash, Token: token.Address, Skipped: true})
	}

	if progress.Token != (common.Address{}) {
		landed, err := o.enforcer.Reconcile(ctx, token, plan, progress.BurnTxHash)
		if err != nil {
			return common.Hash{}, o.fail(ctx, runID, err)
		}
		if landed {
			log.WithFields(logrus.Fields{
				"tx_hash": progress.BurnTxHash.Hex(),
				"amount":  plan.BurnAmount.String(),
			}).Warn("Burn landed without a completion marker, recording it")
			return progress.BurnTxHash, o.complete(ctx, runID, StepOutcome{Step: StepBurn, TxHash: progress.BurnTxHash, Token: token.Address, Amount: plan.BurnAmount})
		}
	}

	res, err := o.enforcer.Enforce(ctx, token, plan, func(hash common.Hash) {
		o.recorder.StepSubmitted(ctx, runID, StepBurn, hash)
	})
	if err != nil {
		return common.Hash{}, o.fail(ctx, runID, err)
	}
	return res.TxHash, o.complete(ctx, runID, StepOutcome{Step: StepBurn, TxHash: res.TxHash, Token: token.Address, Amount: plan.BurnAmount})
}

func (o *Orchestrator) complete(ctx context.Context, runID string, outcome StepOutcome) error {
	if err := o.recorder.StepCompleted(ctx, runID, outcome); err != nil {
		return fmt.Errorf("record %s completion: %w", outcome.Step, err)
	}
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, runID string, err error) error {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		o.recorder.StepFailed(ctx, runID, stepErr)
		o.log.WithFields(logrus.Fields{
			"run_id":  runID,
			"step":    stepErr.Step,
			"tx_hash": stepErr.TxHash.Hex(),
			"reason":  stepErr.Reason,
		}).Error("Launch step failed")
	}
	return err
}
