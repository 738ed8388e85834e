package cmd

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"token-launcher/internal/launch"
	"token-launcher/internal/utils"
)

var factoryOwner string

var deployFactoryCmd = &cobra.Command{
	Use:   "deploy-factory",
	Short: "Deploy the launch factory contract used by factory deploy mode",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		c, err := services()
		if err != nil {
			return err
		}
		ledger, err := c.Ledger(ctx)
		if err != nil {
			return err
		}

		owner := ledger.Address()
		if factoryOwner != "" {
			if owner, err = utils.ParseNonZeroAddress("owner", factoryOwner); err != nil {
				return err
			}
		}

		address, res, err := ledger.Deploy(ctx, cfg.Launch.FactoryArtifact, launch.TxOpts{GasLimit: cfg.Launch.Gas.Deploy}, owner)
		if err != nil {
			return err
		}
		color.Green("%s deployed at %s (tx %s, block %d)", cfg.Launch.FactoryArtifact, address.Hex(), res.TxHash.Hex(), res.BlockNumber)
		color.Cyan("set launch.launchFactory (or LAUNCH_FACTORY_ADDRESS) to %s and launch.deployMode to factory", address.Hex())
		return nil
	},
}

func init() {
	deployFactoryCmd.Flags().StringVar(&factoryOwner, "owner", "", "factory deployer/owner (default: signer)")
}
