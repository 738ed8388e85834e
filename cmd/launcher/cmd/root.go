package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"token-launcher/internal/app"
	"token-launcher/internal/config"
	"token-launcher/internal/logging"
	"token-launcher/internal/metrics"
)

var (
	configPath string
	logLevel   string

	cfg       *config.Config
	logger    *logrus.Logger
	logCloser io.Closer
	container *app.ServiceContainer
	current   *cobra.Command

	rootCmd = &cobra.Command{
		Use:               "launcher",
		Short:             "Token launch pipeline: deploy, burn, pair, liquidity",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}
)

func init() {
	cobra.EnablePrefixMatching = true
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default config.local.yaml or config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level")

	rootCmd.AddCommand(
		launchCmd,
		launchBatchCmd,
		deployFactoryCmd,
		resolvePairCmd,
		addLiquidityCmd,
		revertReasonCmd,
		statusCmd,
		serveCmd,
		watchCmd,
	)
}

// Execute runs the root command until it finishes or the process is signalled.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	teardown()
	return err
}

// setup loads config and logging. Commands that need storage or the ledger
// call services().
func setup(cmd *cobra.Command, _ []string) error {
	current = cmd
	var err error
	cfg, err = config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	logger, logCloser, err = logging.New(logging.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	return err
}

func services() (*app.ServiceContainer, error) {
	if container != nil {
		return container, nil
	}
	c, err := app.NewServiceContainer(cfg, logger)
	if err != nil {
		return nil, err
	}
	container = c
	return container, nil
}

// teardown pushes metrics for one-shot commands and releases resources. It
// runs whether or not the command failed.
func teardown() {
	if cfg != nil && logger != nil && current != nil && current != serveCmd {
		if err := metrics.Push(cfg.Metrics.PushgatewayURL, cfg.Metrics.Job, map[string]string{"command": current.Name()}); err != nil {
			logger.WithError(err).Warn("Failed to push metrics")
		}
	}
	if container != nil {
		container.Close()
	}
	if logCloser != nil {
		logCloser.Close()
	}
}
