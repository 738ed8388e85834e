package cmd

import (
	"fmt"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"token-launcher/internal/launch"
)

// batchEntry is one launch in a batch file.
type batchEntry struct {
	Name        string `yaml:"name"`
	Symbol      string `yaml:"symbol"`
	Supply      string `yaml:"supply"`
	Decimals    *uint8 `yaml:"decimals"`
	MetadataURI string `yaml:"metadataUri"`
	Creator     string `yaml:"creator"`
	InitiatorID int64  `yaml:"initiatorId"`
}

type batchFile struct {
	Launches []batchEntry `yaml:"launches"`
}

var batchConcurrency int

var launchBatchCmd = &cobra.Command{
	Use:   "launch-batch <file.yaml>",
	Short: "Run several independent launches concurrently",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		entries, err := loadBatch(args[0])
		if err != nil {
			return err
		}

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

		// validate everything before the first transaction
		specs := make([]launch.TokenSpec, len(entries))
		for i, e := range entries {
			dec := uint8(18)
			if e.Decimals != nil {
				dec = *e.Decimals
			}
			supply := e.Supply
			if supply == "" {
				supply = "1000000"
			}
			specs[i], err = buildSpec(e.Name, e.Symbol, supply, dec, e.MetadataURI, e.Creator, e.InitiatorID, ledger.Address())
			if err != nil {
				return fmt.Errorf("launch %d (%s): %w", i, e.Symbol, err)
			}
		}

		var (
			mu     sync.Mutex
			failed int
		)
		// runs are independent: one failure must not cancel the others
		var g errgroup.Group
		g.SetLimit(batchConcurrency)
		for _, spec := range specs {
			g.Go(func() error {
				run, err := tracker.NewRun(ctx, spec)
				if err != nil {
					return err
				}
				summary, err := orch.Run(ctx, run.ID, spec, launch.Progress{})

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					failed++
					printFailure(run.ID, err)
					return nil
				}
				printSummary(*summary, spec.Decimals)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d launches failed", failed, len(specs))
		}
		color.Green("all %d launches completed", len(specs))
		return nil
	},
}

func init() {
	launchBatchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 4, "launches in flight at once")
}

func loadBatch(path string) ([]batchEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}
	var file batchFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse batch file: %w", err)
	}
	if len(file.Launches) == 0 {
		return nil, fmt.Errorf("batch file %s has no launches", path)
	}
	return file.Launches, nil
}
