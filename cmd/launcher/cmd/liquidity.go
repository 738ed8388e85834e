package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"token-launcher/internal/utils"
)

var (
	liqToken    string
	liqAmount   string
	liqDecimals uint8
	liqReserve  string
)

var addLiquidityCmd = &cobra.Command{
	Use:   "add-liquidity",
	Short: "Approve the router and deposit liquidity for an existing token",
	Long: `Resolves the token's pair, approves exactly --amount to the router and
calls addLiquidityETH with a fresh deadline. Use it to retry a deposit whose
deadline expired.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		token, err := utils.ParseNonZeroAddress("token", liqToken)
		if err != nil {
			return err
		}
		amount, err := utils.ParseUnits(liqAmount, int32(liqDecimals))
		if err != nil {
			return fmt.Errorf("amount: %w", err)
		}
		if amount.Sign() == 0 {
			return fmt.Errorf("amount must be > 0")
		}

		c, err := services()
		if err != nil {
			return err
		}
		orch, _, err := c.Orchestrator(ctx)
		if err != nil {
			return err
		}
		reserve := orch.Settings().ReserveAmount
		if liqReserve != "" {
			if reserve, err = utils.ParseEther(liqReserve); err != nil {
				return fmt.Errorf("reserve: %w", err)
			}
		}

		pair, err := orch.Resolver().Resolve(ctx, token)
		if err != nil {
			return err
		}
		res, err := orch.Bootstrapper().Bootstrap(ctx, pair, amount, reserve)
		if err != nil {
			return err
		}
		color.Green("liquidity added to %s (tx %s)", pair.Pair.Hex(), res.TxHash.Hex())
		color.Green("  token:   %s", formatWhole(res.AmountToken, liqDecimals))
		color.Green("  reserve: %s", utils.FormatUnits(res.AmountReserve, utils.NativeDecimals))
		color.Green("  shares:  %s", res.Liquidity.String())
		return nil
	},
}

func init() {
	f := addLiquidityCmd.Flags()
	f.StringVar(&liqToken, "token", "", "token address")
	f.StringVar(&liqAmount, "amount", "", "token amount in whole tokens")
	f.Uint8Var(&liqDecimals, "decimals", 18, "token decimals")
	f.StringVar(&liqReserve, "reserve", "", "native amount to pair (default: launch.reserveAmount)")
	_ = addLiquidityCmd.MarkFlagRequired("token")
	_ = addLiquidityCmd.MarkFlagRequired("amount")
}
