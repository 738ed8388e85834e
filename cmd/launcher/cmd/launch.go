package cmd

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"token-launcher/internal/launch"
	"token-launcher/internal/utils"
)

var (
	tokenName   string
	tokenSymbol string
	tokenSupply string
	decimals    uint8
	metadataURI string
	creatorHex  string
	initiatorID int64
	resumeRunID string
	forceResume bool
	abandonBurn bool
)

var launchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Deploy a token, burn the excess and seed its AMM pair",
	Example: `  launcher launch --name GabedevCoin --symbol GABE --supply 1000000 --metadata-uri ipfs://...
  launcher launch --resume 1b4e28ba-2fa1-11d2-883f-0016d3cca427`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runLaunch(cmd.Context())
	},
}

func init() {
	f := launchCmd.Flags()
	f.StringVar(&tokenName, "name", "", "token name")
	f.StringVar(&tokenSymbol, "symbol", "", "token symbol")
	f.StringVar(&tokenSupply, "supply", "1000000", "total supply in whole tokens")
	f.Uint8Var(&decimals, "decimals", 18, "token decimals")
	f.StringVar(&metadataURI, "metadata-uri", "", "token image/metadata URI")
	f.StringVar(&creatorHex, "creator", "", "creator address (default: signer)")
	f.Int64Var(&initiatorID, "initiator-id", 0, "initiator id recorded by the launch factory")
	f.StringVar(&resumeRunID, "resume", "", "resume a stored run, skipping completed steps")
	f.BoolVar(&forceResume, "force", false, "resume a run still marked running")
	f.BoolVar(&abandonBurn, "abandon-burn-tx", false, "with --resume, forget a burn that was submitted but is known dropped")
}

// buildSpec converts flag-style inputs into a token spec.
func buildSpec(name, symbol, supply string, dec uint8, uri, creator string, initiator int64, signer common.Address) (launch.TokenSpec, error) {
	total, err := utils.ParseUnits(supply, int32(dec))
	if err != nil {
		return launch.TokenSpec{}, fmt.Errorf("supply: %w", err)
	}
	owner := signer
	if creator != "" {
		if owner, err = utils.ParseNonZeroAddress("creator", creator); err != nil {
			return launch.TokenSpec{}, err
		}
	}
	spec := launch.TokenSpec{
		Name:        name,
		Symbol:      symbol,
		TotalSupply: total,
		Decimals:    dec,
		MetadataURI: uri,
		Creator:     owner,
		InitiatorID: initiator,
	}
	return spec, spec.Validate()
}

func runLaunch(ctx context.Context) error {
	c, err := services()
	if err != nil {
		return err
	}
	orch, tracker, err := c.Orchestrator(ctx)
	if err != nil {
		return err
	}
	ledger, err := c.Ledger(ctx)
	if err != nil {
		return err
	}

	var (
		runID    string
		spec     launch.TokenSpec
		progress launch.Progress
	)
	if abandonBurn && resumeRunID == "" {
		return fmt.Errorf("--abandon-burn-tx requires --resume")
	}
	if resumeRunID != "" {
		if abandonBurn {
			if err := tracker.AbandonPendingBurn(ctx, resumeRunID); err != nil {
				return err
			}
		}
		run, resumed, p, err := tracker.Resume(ctx, resumeRunID, forceResume)
		if err != nil {
			return err
		}
		runID, spec, progress = run.ID, resumed, p
		color.Yellow("resuming run %s (%s, attempt %d)", run.ID, run.Symbol, run.Attempts+1)
	} else {
		spec, err = buildSpec(tokenName, tokenSymbol, tokenSupply, decimals, metadataURI, creatorHex, initiatorID, ledger.Address())
		if err != nil {
			return err
		}
		run, err := tracker.NewRun(ctx, spec)
		if err != nil {
			return err
		}
		runID = run.ID
		color.Cyan("run %s: launching %s (%s)", runID, spec.Name, spec.Symbol)
	}

	if balance, err := ledger.NativeBalance(ctx); err == nil {
		logger.WithField("balance", utils.FormatUnits(balance, utils.NativeDecimals)).Info("Signer balance")
	}

	summary, err := orch.Run(ctx, runID, spec, progress)
	if err != nil {
		printFailure(runID, err)
		return err
	}
	printSummary(*summary, spec.Decimals)
	return nil
}

func printSummary(s launch.Summary, dec uint8) {
	chain := cfg.Chain()
	color.Green("launch %s completed", s.RunID)
	color.Green("  token:         %s %s", s.Token.Hex(), chain.AddressURL(s.Token.Hex()))
	color.Green("  pair:          %s %s", s.Pair.Hex(), chain.AddressURL(s.Pair.Hex()))
	color.Green("  burned:        %s (tx %s)", formatWhole(s.BurnAmount, dec), s.BurnTxHash.Hex())
	color.Green("  liquidity:     %s (tx %s)", formatWhole(s.LiquidityAmount, dec), s.LiquidityTxHash.Hex())
	if s.Shares != nil {
		color.Green("  pool shares:   %s", s.Shares.String())
	}
}

func printFailure(runID string, err error) {
	var stepErr *launch.StepError
	if !errors.As(err, &stepErr) {
		return
	}
	color.Red("launch %s failed at %s", runID, stepErr.Step)
	if stepErr.TxHash != (common.Hash{}) {
		color.Red("  tx:     %s %s", stepErr.TxHash.Hex(), cfg.Chain().TxURL(stepErr.TxHash.Hex()))
	}
	if stepErr.Reason != "" {
		color.Red("  reason: %s", stepErr.Reason)
	}
	color.Yellow("  resume with: launcher launch --resume %s", runID)
}

func formatWhole(v *big.Int, dec uint8) string {
	return utils.FormatUnits(v, int32(dec))
}
