package launch

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"token-launcher/internal/utils"
)

// PairResolver finds or creates the AMM pair for (token, reserve asset).
// Lookup always comes first, so calling it again after a crash never creates
// a second pair.
type PairResolver struct {
	pairs    PairFactoryContract
	settings Settings
	log      logrus.FieldLogger
}

// NewPairResolver creates a PairResolver.
func NewPairResolver(pairs PairFactoryContract, settings Settings, logger logrus.FieldLogger) *PairResolver {
	return &PairResolver{
		pairs:    pairs,
		settings: settings,
		log:      logger.WithField("component", "pair_resolver"),
	}
}

// Resolve returns the pair for token against the configured reserve asset.
func (r *PairResolver) Resolve(ctx context.Context, token common.Address) (TradingPair, error) {
	return r.ResolveFor(ctx, token, r.settings.ReserveAsset)
}

// ResolveFor returns the pair for (tokenA, tokenB). The argument order does not
// matter: both orders map to the same sorted query.
func (r *PairResolver) ResolveFor(ctx context.Context, tokenA, tokenB common.Address) (TradingPair, error) {
	pair := TradingPair{Token: tokenA, ReserveAsset: tokenB}
	token0, token1 := utils.SortAddresses(tokenA, tokenB)
	fields := logrus.Fields{"token0": token0.Hex(), "token1": token1.Hex(), "factory": r.settings.AMMFactory.Hex()}

	existing, err := r.pairs.GetPair(ctx, r.settings.AMMFactory, token0, token1)
	if err != nil {
		return pair, newStepError(StepResolvePair, ErrPairResolutionFailed, common.Hash{}, fmt.Errorf("getPair: %w", err))
	}
	if existing != (common.Address{}) {
		pair.Pair = existing
		r.log.WithFields(fields).WithField("pair", existing.Hex()).Info("Pair already exists")
		return pair, nil
	}

	r.log.WithFields(fields).Info("Pair not found, creating")
	res, createErr := r.pairs.CreatePair(ctx, r.settings.AMMFactory, token0, token1, TxOpts{GasLimit: r.settings.Gas.CreatePair})
	pair.TxHash = res.TxHash
	if createErr == nil && !res.Success {
		createErr = fmt.Errorf("createPair was not confirmed")
	}
	if createErr != nil {
		// Another actor may have created the pair concurrently (PAIR_EXISTS);
		// the re-query below decides whether that is fatal.
		r.log.WithFields(fields).WithError(createErr).Warn("createPair rejected, re-querying")
	}

	created, err := r.pairs.GetPair(ctx, r.settings.AMMFactory, token0, token1)
	if err != nil {
		return pair, newStepError(StepResolvePair, ErrPairResolutionFailed, res.TxHash, fmt.Errorf("getPair after create: %w", err))
	}
	if created == (common.Address{}) {
		if createErr == nil {
			createErr = fmt.Errorf("factory returned no pair after creation")
		}
		return pair, newStepError(StepResolvePair, ErrPairResolutionFailed, res.TxHash, createErr)
	}

	pair.Pair = created
	pair.Created = createErr == nil
	r.log.WithFields(fields).WithFields(logrus.Fields{
		"pair":    created.Hex(),
		"created": pair.Created,
		"tx_hash": res.TxHash.Hex(),
	}).Info("Pair resolved")
	return pair, nil
}
