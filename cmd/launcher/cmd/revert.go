package cmd

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"token-launcher/internal/utils"
)

var revertReasonCmd = &cobra.Command{
	Use:   "revert-reason <hex>",
	Short: "Decode a revert payload that carries a string reason",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := hexutil.Decode(args[0])
		if err != nil {
			return fmt.Errorf("revert data: %w", err)
		}
		if reason, ok := utils.UnpackRevertString(data); ok {
			fmt.Fprintln(cmd.OutOrStdout(), reason)
			return nil
		}
		return fmt.Errorf("no string reason in payload: %s", utils.DecodeRevertReason(data))
	},
}
