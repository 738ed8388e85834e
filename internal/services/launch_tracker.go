package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"token-launcher/internal/clients"
	"token-launcher/internal/events"
	"token-launcher/internal/launch"
	"token-launcher/internal/metrics"
	"token-launcher/internal/models"
	"token-launcher/internal/repository"
)

// ErrRunInProgress is returned when resuming a run another process holds.
var ErrRunInProgress = errors.New("launch run is in progress")

// LaunchTracker persists launch runs and their completion markers and fans
// progress out to metrics and NATS. It implements launch.RunRecorder.
type LaunchTracker struct {
	repo      repository.LaunchRunRepository
	publisher *events.Publisher
	log       logrus.FieldLogger
	now       func() time.Time

	mode       launch.DeployMode
	reserveWei string

	mu       sync.Mutex
	lastMark map[string]time.Time // runID -> previous step boundary
}

var _ launch.RunRecorder = (*LaunchTracker)(nil)

// NewLaunchTracker creates a tracker. publisher may be nil.
func NewLaunchTracker(repo repository.LaunchRunRepository, publisher *events.Publisher, settings launch.Settings, logger logrus.FieldLogger) *LaunchTracker {
	reserve := ""
	if settings.ReserveAmount != nil {
		reserve = settings.ReserveAmount.String()
	}
	return &LaunchTracker{
		repo:       repo,
		publisher:  publisher,
		log:        logger.WithField("component", "launch_tracker"),
		now:        time.Now,
		mode:       settings.DeployMode,
		reserveWei: reserve,
		lastMark:   make(map[string]time.Time),
	}
}

// NewRun stores a pending run for spec and returns it.
func (t *LaunchTracker) NewRun(ctx context.Context, spec launch.TokenSpec) (*models.LaunchRun, error) {
	run, err := t.create(ctx, uuid.NewString(), spec)
	if err != nil {
		return nil, fmt.Errorf("create launch run: %w", err)
	}
	return run, nil
}

// Resume loads a stored run and returns its spec and the progress to skip.
// A run still marked running is refused unless force is set.
func (t *LaunchTracker) Resume(ctx context.Context, runID string, force bool) (*models.LaunchRun, launch.TokenSpec, launch.Progress, error) {
	run, err := t.repo.GetByID(ctx, runID)
	if err != nil {
		return nil, launch.TokenSpec{}, launch.Progress{}, fmt.Errorf("load launch run %s: %w", runID, err)
	}
	if run.Status == models.LaunchRunStatusRunning && !force {
		return nil, launch.TokenSpec{}, launch.Progress{}, fmt.Errorf("%s: %w", runID, ErrRunInProgress)
	}
	spec, err := SpecFromRun(run)
	if err != nil {
		return nil, launch.TokenSpec{}, launch.Progress{}, err
	}
	return run, spec, ProgressFromRun(run), nil
}

// AbandonPendingBurn forgets the burn hash recorded for a run whose burn never
// completed, letting a resume send a fresh burn. Use it only once the earlier
// transaction is known to be dropped.
func (t *LaunchTracker) AbandonPendingBurn(ctx context.Context, runID string) error {
	run, err := t.repo.GetByID(ctx, runID)
	if err != nil {
		return fmt.Errorf("load launch run %s: %w", runID, err)
	}
	if run.Burned {
		return fmt.Errorf("launch run %s: burn already completed in tx %s", runID, run.BurnTxHash)
	}
	if run.BurnTxHash == "" {
		return nil
	}
	t.log.WithFields(logrus.Fields{"run_id": runID, "tx_hash": run.BurnTxHash}).Warn("Abandoning pending burn transaction")
	run.BurnTxHash = ""
	if err := t.repo.Update(ctx, run); err != nil {
		return fmt.Errorf("update launch run %s: %w", runID, err)
	}
	return nil
}

// SpecFromRun rebuilds the token spec a run was submitted with.
func SpecFromRun(run *models.LaunchRun) (launch.TokenSpec, error) {
	supply, ok := new(big.Int).SetString(run.TotalSupply, 10)
	if !ok {
		return launch.TokenSpec{}, fmt.Errorf("launch run %s: invalid total supply %q", run.ID, run.TotalSupply)
	}
	return launch.TokenSpec{
		Name:        run.Name,
		Symbol:      run.Symbol,
		TotalSupply: supply,
		Decimals:    run.Decimals,
		MetadataURI: run.MetadataURI,
		Creator:     common.HexToAddress(run.Creator),
		InitiatorID: run.InitiatorID,
	}, nil
}

// ProgressFromRun converts stored markers into orchestrator progress.
func ProgressFromRun(run *models.LaunchRun) launch.Progress {
	p := launch.Progress{Burned: run.Burned}
	if run.TokenAddress != "" {
		p.Token = common.HexToAddress(run.TokenAddress)
	}
	if run.TokenTxHash != "" {
		p.TokenTxHash = common.HexToHash(run.TokenTxHash)
	}
	if run.BurnTxHash != "" {
		p.BurnTxHash = common.HexToHash(run.BurnTxHash)
	}
	if run.PairAddress != "" {
		p.Pair = common.HexToAddress(run.PairAddress)
	}
	if run.LiquidityTxHash != "" {
		p.LiquidityTxHash = common.HexToHash(run.LiquidityTxHash)
	}
	return p
}

// RunStarted marks the run running, creating it if the caller did not.
func (t *LaunchTracker) RunStarted(ctx context.Context, runID string, spec launch.TokenSpec, plan launch.BurnPlan) error {
	run, err := t.repo.GetByID(ctx, runID)
	if errors.Is(err, repository.ErrNotFound) {
		run, err = t.create(ctx, runID, spec)
	}
	if err != nil {
		return fmt.Errorf("load launch run %s: %w", runID, err)
	}

	run.Status = models.LaunchRunStatusRunning
	run.Attempts++
	run.ClearFailure()
	run.LiquidityFraction = plan.LiquidityFraction.String()
	run.LiquidityAmount = plan.LiquidityAmount.String()
	run.BurnAmount = plan.BurnAmount.String()
	run.ReserveAmount = t.reserveWei
	if err := t.repo.Update(ctx, run); err != nil {
		return fmt.Errorf("update launch run %s: %w", runID, err)
	}

	t.mark(runID)
	metrics.LaunchRunsStarted.Inc()
	t.publisher.Publish(clients.LaunchEvent{
		Type:   clients.EventRunStarted,
		RunID:  runID,
		Symbol: spec.Symbol,
		Amount: plan.TotalSupply.String(),
	})
	return nil
}

// StepSubmitted stores the burn hash ahead of its receipt. Other steps are
// safe to repeat and keep no pending marker.
func (t *LaunchTracker) StepSubmitted(ctx context.Context, runID string, step launch.Step, txHash common.Hash) {
	if step != launch.StepBurn {
		return
	}
	log := t.log.WithFields(logrus.Fields{"run_id": runID, "step": step, "tx_hash": txHash.Hex()})
	run, err := t.repo.GetByID(ctx, runID)
	if err == nil {
		run.BurnTxHash = txHash.Hex()
		err = t.repo.Update(ctx, run)
	}
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		log.WithError(err).Error("Failed to record submitted burn")
	}
}

// StepCompleted writes the step's marker before returning.
func (t *LaunchTracker) StepCompleted(ctx context.Context, runID string, outcome launch.StepOutcome) error {
	run, err := t.repo.GetByID(ctx, runID)
	if err != nil {
		return fmt.Errorf("load launch run %s: %w", runID, err)
	}
	applyOutcome(run, outcome)
	if err := t.repo.Update(ctx, run); err != nil {
		return fmt.Errorf("update launch run %s: %w", runID, err)
	}

	metrics.LaunchStepsCompleted.WithLabelValues(string(outcome.Step), strconv.FormatBool(outcome.Skipped)).Inc()
	if !outcome.Skipped {
		metrics.LaunchStepDuration.WithLabelValues(string(outcome.Step)).Observe(t.mark(runID).Seconds())
	}

	event := clients.LaunchEvent{
		Type:    clients.EventStepCompleted,
		RunID:   runID,
		Symbol:  run.Symbol,
		Step:    string(outcome.Step),
		Skipped: outcome.Skipped,
	}
	if outcome.TxHash != (common.Hash{}) {
		event.TxHash = outcome.TxHash.Hex()
	}
	if outcome.Token != (common.Address{}) {
		event.Token = outcome.Token.Hex()
	}
	if outcome.Pair != (common.Address{}) {
		event.Pair = outcome.Pair.Hex()
	}
	if outcome.Amount != nil {
		event.Amount = outcome.Amount.String()
	}
	t.publisher.Publish(event)
	return nil
}

func applyOutcome(run *models.LaunchRun, outcome launch.StepOutcome) {
	hash := ""
	if outcome.TxHash != (common.Hash{}) {
		hash = outcome.TxHash.Hex()
	}
	switch outcome.Step {
	case launch.StepDeploy:
		run.TokenAddress = outcome.Token.Hex()
		if hash != "" {
			run.TokenTxHash = hash
		}
	case launch.StepBurn:
		run.Burned = true
		if hash != "" {
			run.BurnTxHash = hash
		}
	case launch.StepResolvePair:
		run.PairAddress = outcome.Pair.Hex()
		if !outcome.Skipped {
			run.PairCreated = true
			run.PairTxHash = hash
		}
	case launch.StepApprove:
		run.ApproveTxHash = hash
	case launch.StepDeposit:
		if hash != "" {
			run.LiquidityTxHash = hash
		}
		if !outcome.Skipped && outcome.Amount != nil {
			run.Shares = outcome.Amount.String()
		}
	}
}

// StepFailed records the failure. Storage errors are logged: the step error
// is what the caller returns.
func (t *LaunchTracker) StepFailed(ctx context.Context, runID string, stepErr *launch.StepError) {
	metrics.LaunchStepsFailed.WithLabelValues(string(stepErr.Step)).Inc()
	metrics.LaunchRunsFinished.WithLabelValues("failed").Inc()
	t.forget(runID)

	log := t.log.WithFields(logrus.Fields{"run_id": runID, "step": stepErr.Step})
	run, err := t.repo.GetByID(ctx, runID)
	if err == nil {
		run.Status = models.LaunchRunStatusFailed
		run.FailedStep = string(stepErr.Step)
		run.LastError = stepErr.Error()
		if stepErr.TxHash != (common.Hash{}) {
			run.FailedTxHash = stepErr.TxHash.Hex()
		}
		// a mined revert is final, so the next resume may burn again
		if stepErr.Step == launch.StepBurn && stepErr.Mined && !run.Burned {
			run.BurnTxHash = ""
		}
		err = t.repo.Update(ctx, run)
	}
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		log.WithError(err).Error("Failed to record step failure")
	}

	event := clients.LaunchEvent{
		Type:   clients.EventStepFailed,
		RunID:  runID,
		Step:   string(stepErr.Step),
		Reason: stepErr.Reason,
	}
	if stepErr.TxHash != (common.Hash{}) {
		event.TxHash = stepErr.TxHash.Hex()
	}
	t.publisher.Publish(event)
}

// RunCompleted marks the run completed.
func (t *LaunchTracker) RunCompleted(ctx context.Context, runID string, summary launch.Summary) {
	metrics.LaunchRunsFinished.WithLabelValues("completed").Inc()
	t.forget(runID)

	run, err := t.repo.GetByID(ctx, runID)
	if err == nil {
		completed := t.now().UTC()
		run.Status = models.LaunchRunStatusCompleted
		run.CompletedAt = &completed
		run.ClearFailure()
		err = t.repo.Update(ctx, run)
	}
	if err != nil {
		t.log.WithError(err).WithField("run_id", runID).Error("Failed to record run completion")
	}

	t.publisher.Publish(clients.LaunchEvent{
		Type:   clients.EventRunCompleted,
		RunID:  runID,
		Token:  summary.Token.Hex(),
		Pair:   summary.Pair.Hex(),
		TxHash: summary.LiquidityTxHash.Hex(),
	})
}

func (t *LaunchTracker) create(ctx context.Context, runID string, spec launch.TokenSpec) (*models.LaunchRun, error) {
	run := &models.LaunchRun{
		ID:          runID,
		Status:      models.LaunchRunStatusPending,
		Name:        spec.Name,
		Symbol:      spec.Symbol,
		TotalSupply: spec.TotalSupply.String(),
		Decimals:    spec.Decimals,
		MetadataURI: spec.MetadataURI,
		Creator:     spec.Creator.Hex(),
		InitiatorID: spec.InitiatorID,
		DeployMode:  string(t.mode),
		CreatedAt:   t.now().UTC(),
	}
	if err := t.repo.Create(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// mark records a step boundary and returns the time since the previous one.
func (t *LaunchTracker) mark(runID string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	prev, ok := t.lastMark[runID]
	t.lastMark[runID] = now
	if !ok {
		return 0
	}
	return now.Sub(prev)
}

func (t *LaunchTracker) forget(runID string) {
	t.mu.Lock()
	delete(t.lastMark, runID)
	t.mu.Unlock()
}
