package db

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"token-launcher/internal/models"
)

// PoolConfig bounds the underlying sql.DB pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// dataMigration is a one-off statement applied after AutoMigrate. Statements
// must be idempotent: they run on every start.
type dataMigration struct {
	Version     string
	Description string
	SQL         string
}

func dataMigrations() []dataMigration {
	return []dataMigration{
		{
			Version:     "data_001",
			Description: "case-insensitive token address lookup",
			SQL:         `CREATE INDEX IF NOT EXISTS idx_launch_runs_token_lower ON launch_runs (LOWER(token_address))`,
		},
		{
			Version:     "data_002",
			Description: "runs interrupted mid-step are resumable failures",
			SQL:         `UPDATE launch_runs SET status = 'failed', last_error = 'interrupted' WHERE status = 'running' AND updated_at < NOW() - INTERVAL '1 day'`,
		},
	}
}

// InitDB opens the postgres database at dsn and migrates the launch schema.
func InitDB(dsn string, pool PoolConfig, log logrus.FieldLogger) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN is required")
	}
	log = log.WithField("component", "db")

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
		PrepareStmt:                              true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	log.Info("Database connected")

	if err := Migrate(db, log); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the launch_runs table and applies data migrations.
func Migrate(db *gorm.DB, log logrus.FieldLogger) error {
	if err := db.AutoMigrate(&models.LaunchRun{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	for _, m := range dataMigrations() {
		result := db.Exec(m.SQL)
		if result.Error != nil {
			return fmt.Errorf("data migration %s (%s): %w", m.Version, m.Description, result.Error)
		}
		if result.RowsAffected > 0 {
			log.WithFields(logrus.Fields{"version": m.Version, "rows": result.RowsAffected}).Info("Applied data migration")
		}
	}
	log.Debug("Database schema migrated")
	return nil
}
