// Package app wires configuration, storage, events and the ledger client
// into the services the commands use.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"token-launcher/internal/clients"
	"token-launcher/internal/config"
	"token-launcher/internal/db"
	"token-launcher/internal/events"
	"token-launcher/internal/handlers"
	"token-launcher/internal/launch"
	"token-launcher/internal/repository"
	"token-launcher/internal/services"
)

// ServiceContainer holds process-wide dependencies. The ledger client is
// dialed on first use so read-only commands work without an RPC endpoint.
type ServiceContainer struct {
	Config *config.Config
	Logger logrus.FieldLogger

	// Storage: postgres when a DSN is configured, else the local pebble store
	DB         *gorm.DB
	LaunchRuns repository.LaunchRunRepository
	store      *repository.PebbleLaunchRunRepository

	// Events
	NATSClient *clients.NATSClient
	Publisher  *events.Publisher

	ledgerOnce sync.Once
	ledger     *clients.LedgerClient
	ledgerErr  error
}

// NewServiceContainer opens storage and, when configured, the NATS stream.
// A NATS outage at start-up is logged and publishing is disabled.
func NewServiceContainer(cfg *config.Config, logger logrus.FieldLogger) (*ServiceContainer, error) {
	c := &ServiceContainer{Config: cfg, Logger: logger}

	if cfg.Database.DSN != "" {
		gdb, err := db.InitDB(cfg.Database.DSN, db.PoolConfig{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnLifetime(),
		}, logger)
		if err != nil {
			return nil, err
		}
		c.DB = gdb
		c.LaunchRuns = repository.NewLaunchRunRepository(gdb)
	} else {
		store, err := repository.NewPebbleLaunchRunRepository(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		c.store = store
		c.LaunchRuns = store
		logger.WithField("path", cfg.Store.Path).Info("Using local launch store")
	}

	if cfg.NATS.URL != "" {
		natsClient, err := clients.NewNATSClient(cfg.NATS.URL, cfg.NATS.Stream, cfg.NATS.SubjectPrefix,
			time.Duration(cfg.NATS.Timeout)*time.Second, logger)
		if err != nil {
			logger.WithError(err).Warn("NATS unavailable, launch events disabled")
		} else {
			c.NATSClient = natsClient
		}
	}
	if c.NATSClient != nil {
		c.Publisher = events.NewPublisher(c.NATSClient, logger)
	} else {
		c.Publisher = events.NewPublisher(nil, logger)
	}
	return c, nil
}

// Ledger dials the RPC endpoint once and returns the shared client.
func (c *ServiceContainer) Ledger(ctx context.Context) (*clients.LedgerClient, error) {
	c.ledgerOnce.Do(func() {
		opts, err := c.Config.LedgerOptions()
		if err != nil {
			c.ledgerErr = err
			return
		}
		if c.Config.Ledger.PrivateKey == "" {
			c.ledgerErr = fmt.Errorf("PRIVATE_KEY is required")
			return
		}
		c.ledger, c.ledgerErr = clients.DialLedger(ctx, c.Config.Ledger.RPCURL, c.Config.Ledger.PrivateKey, opts, c.Logger)
	})
	return c.ledger, c.ledgerErr
}

// Settings returns the validated launch settings.
func (c *ServiceContainer) Settings() (launch.Settings, error) {
	return c.Config.Settings()
}

// Tracker returns a run recorder bound to the configured storage and events.
func (c *ServiceContainer) Tracker(settings launch.Settings) *services.LaunchTracker {
	return services.NewLaunchTracker(c.LaunchRuns, c.Publisher, settings, c.Logger)
}

// Orchestrator wires a launch orchestrator over the shared ledger client.
func (c *ServiceContainer) Orchestrator(ctx context.Context) (*launch.Orchestrator, *services.LaunchTracker, error) {
	settings, err := c.Settings()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid launch config: %w", err)
	}
	ledger, err := c.Ledger(ctx)
	if err != nil {
		return nil, nil, err
	}
	tracker := c.Tracker(settings)
	orch, err := launch.New(launch.Options{
		Settings: settings,
		Ledger:   ledger,
		Recorder: tracker,
		Logger:   c.Logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return orch, tracker, nil
}

// HealthChecks returns the pings /health runs.
func (c *ServiceContainer) HealthChecks() map[string]handlers.Pinger {
	checks := map[string]handlers.Pinger{
		"store": func(ctx context.Context) error {
			if c.DB != nil {
				sqlDB, err := c.DB.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			}
			_, _, err := c.LaunchRuns.List(ctx, 1, 1)
			return err
		},
	}
	if c.NATSClient != nil {
		checks["nats"] = func(context.Context) error { return c.NATSClient.Ping() }
	}
	return checks
}

// Close releases storage and the NATS connection.
func (c *ServiceContainer) Close() {
	if c.NATSClient != nil {
		c.NATSClient.Close()
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			c.Logger.WithError(err).Warn("Failed to close launch store")
		}
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}
}
