package launch

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// TokenDeployer creates the token contract, directly or through the launch factory.
type TokenDeployer struct {
	contracts ContractDeployer
	factory   FactoryContract
	settings  Settings
	log       logrus.FieldLogger
	now       func() time.Time
}

// NewTokenDeployer creates a TokenDeployer.
func NewTokenDeployer(contracts ContractDeployer, factory FactoryContract, settings Settings, logger logrus.FieldLogger) *TokenDeployer {
	return &TokenDeployer{
		contracts: contracts,
		factory:   factory,
		settings:  settings,
		log:       logger.WithField("component", "token_deployer"),
		now:       time.Now,
	}
}

// Deploy submits the creation and blocks until it is final. Any failure is a
// DeploymentFailed StepError; it is never retried here because a partially
// constructed token cannot be recovered.
func (d *TokenDeployer) Deploy(ctx context.Context, spec TokenSpec) (DeployedToken, error) {
	if err := spec.Validate(); err != nil {
		return DeployedToken{}, newStepError(StepDeploy, ErrDeploymentFailed, common.Hash{}, err)
	}

	d.log.WithFields(logrus.Fields{
		"mode":         d.settings.DeployMode,
		"name":         spec.Name,
		"symbol":       spec.Symbol,
		"total_supply": spec.TotalSupply.String(),
		"creator":      spec.Creator.Hex(),
	}).Info("Deploying token")

	var (
		token common.Address
		res   TxResult
		err   error
	)
	switch d.settings.DeployMode {
	case DeployModeFactory:
		token, res, err = d.deployViaFactory(ctx, spec)
	default:
		token, res, err = d.contracts.Deploy(ctx, d.settings.TokenArtifact,
			TxOpts{GasLimit: d.settings.Gas.Deploy},
			spec.Name, spec.Symbol, spec.WholeSupply(), spec.MetadataURI, spec.Creator)
	}
	if err != nil {
		return DeployedToken{}, newStepError(StepDeploy, ErrDeploymentFailed, res.TxHash, err)
	}
	if !res.Success || token == (common.Address{}) {
		return DeployedToken{}, newStepError(StepDeploy, ErrDeploymentFailed, res.TxHash,
			fmt.Errorf("ledger did not confirm a contract address"))
	}

	deployed := DeployedToken{
		Address:     token,
		Spec:        spec,
		TxHash:      res.TxHash,
		BlockNumber: res.BlockNumber,
		DeployedAt:  d.now(),
	}
	d.log.WithFields(logrus.Fields{
		"token":   token.Hex(),
		"tx_hash": res.TxHash.Hex(),
		"block":   res.BlockNumber,
	}).Info("Token deployed")
	return deployed, nil
}

func (d *TokenDeployer) deployViaFactory(ctx context.Context, spec TokenSpec) (common.Address, TxResult, error) {
	res, err := d.factory.DeployToken(ctx, d.settings.LaunchFactory, spec, TxOpts{
		GasLimit: d.settings.Gas.FactoryDeploy,
		Value:    copyInt(d.settings.FactoryDeployValue),
	})
	if err != nil {
		return common.Address{}, res, err
	}

	records, err := d.factory.GetTokens(ctx, d.settings.LaunchFactory)
	if err != nil {
		return common.Address{}, res, fmt.Errorf("read factory token registry: %w", err)
	}
	record, ok := latestRecordFor(records, spec)
	if !ok {
		return common.Address{}, res, fmt.Errorf("factory registry has no record for %s by %s", spec.Symbol, spec.Creator.Hex())
	}
	d.log.WithFields(logrus.Fields{
		"token":        record.TokenAddress.Hex(),
		"initiator_id": bigString(record.InitiatorID),
		"image_url":    record.ImageURL,
	}).Info("Factory token record found")
	return record.TokenAddress, res, nil
}

// latestRecordFor scans the registry from the end for the newest record
// matching the spec, so concurrent launches through one factory do not pick
// up each other's tokens.
func latestRecordFor(records []TokenRecord, spec TokenSpec) (TokenRecord, bool) {
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		if r.Creator == spec.Creator && strings.EqualFold(r.Symbol, spec.Symbol) {
			return r, true
		}
	}
	return TokenRecord{}, false
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
