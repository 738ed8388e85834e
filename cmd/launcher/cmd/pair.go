package cmd

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"token-launcher/internal/utils"
)

var (
	pairToken string
	pairOther string
)

var resolvePairCmd = &cobra.Command{
	Use:   "resolve-pair",
	Short: "Find or create the AMM pair for a token (idempotent)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		token, err := utils.ParseNonZeroAddress("token", pairToken)
		if err != nil {
			return err
		}
		c, err := services()
		if err != nil {
			return err
		}
		orch, _, err := c.Orchestrator(ctx)
		if err != nil {
			return err
		}

		other := orch.Settings().ReserveAsset
		if pairOther != "" {
			if other, err = utils.ParseNonZeroAddress("other", pairOther); err != nil {
				return err
			}
		}
		pair, err := orch.Resolver().ResolveFor(ctx, token, other)
		if err != nil {
			return err
		}
		if pair.Created {
			color.Green("pair %s created (tx %s)", pair.Pair.Hex(), pair.TxHash.Hex())
		} else {
			color.Green("pair %s already exists", pair.Pair.Hex())
		}
		return nil
	},
}

func init() {
	resolvePairCmd.Flags().StringVar(&pairToken, "token", "", "token address")
	resolvePairCmd.Flags().StringVar(&pairOther, "other", "", "other side of the pair (default: reserve asset)")
	_ = resolvePairCmd.MarkFlagRequired("token")
}
