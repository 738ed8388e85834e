package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"token-launcher/internal/models"
)

var (
	statusPage   int
	statusFilter string
)

var statusCmd = &cobra.Command{
	Use:   "status [runID]",
	Short: "Show stored launch runs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := services()
		if err != nil {
			return err
		}

		if len(args) == 1 {
			run, err := c.LaunchRuns.GetByID(ctx, args[0])
			if err != nil {
				return err
			}
			printRun(run)
			return nil
		}

		var runs []*models.LaunchRun
		if statusFilter != "" {
			runs, err = c.LaunchRuns.FindByStatus(ctx, models.LaunchRunStatus(statusFilter))
		} else {
			var total int64
			if runs, total, err = c.LaunchRuns.List(ctx, statusPage, 20); err == nil {
				color.Cyan("%d runs (page %d)", total, statusPage)
			}
		}
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSYMBOL\tSTATUS\tTOKEN\tPAIR\tFAILED STEP\tCREATED")
		for _, run := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", run.ID, run.Symbol, run.Status, run.TokenAddress,
				run.PairAddress, run.FailedStep, run.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusPage, "page", 1, "page of the run list")
	statusCmd.Flags().StringVar(&statusFilter, "status", "", "only runs in this status (pending|running|failed|completed)")
}

func printRun(run *models.LaunchRun) {
	paint := color.Cyan
	switch run.Status {
	case models.LaunchRunStatusCompleted:
		paint = color.Green
	case models.LaunchRunStatusFailed:
		paint = color.Red
	}
	paint("run %s: %s (%s) %s, attempts %d", run.ID, run.Name, run.Symbol, run.Status, run.Attempts)
	fmt.Printf("  token:      %s (tx %s)\n", run.TokenAddress, run.TokenTxHash)
	fmt.Printf("  burned:     %v %s (tx %s)\n", run.Burned, run.BurnAmount, run.BurnTxHash)
	fmt.Printf("  pair:       %s created=%v\n", run.PairAddress, run.PairCreated)
	fmt.Printf("  liquidity:  %s shares=%s (tx %s)\n", run.LiquidityAmount, run.Shares, run.LiquidityTxHash)
	if run.FailedStep != "" {
		color.Red("  failed at %s: %s", run.FailedStep, run.LastError)
	}
}
