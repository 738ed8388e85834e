package repository

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"token-launcher/internal/db"
	"token-launcher/internal/models"
)

func newRun(id, symbol string, created time.Time) *models.LaunchRun {
	return &models.LaunchRun{
		ID:          id,
		Status:      models.LaunchRunStatusPending,
		Name:        symbol + " coin",
		Symbol:      symbol,
		TotalSupply: "1000000000000000000000000",
		Decimals:    18,
		CreatedAt:   created,
	}
}

// exerciseRepository runs the behavior every LaunchRunRepository must share.
func exerciseRepository(t *testing.T, repo LaunchRunRepository) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, newRun(fmt.Sprintf("run-%d", i), fmt.Sprintf("T%d", i), base.Add(time.Duration(i)*time.Minute))))
	}

	run, err := repo.GetByID(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "T1", run.Symbol)

	run.Status = models.LaunchRunStatusFailed
	run.TokenAddress = "0x00000000000000000000000000000000000000Ab"
	run.Burned = true
	run.FailedStep = "resolve_pair"
	run.LastError = "getPair: timeout"
	require.NoError(t, repo.Update(ctx, run))

	got, err := repo.GetByID(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.LaunchRunStatusFailed, got.Status)
	assert.True(t, got.Burned)
	assert.Equal(t, "resolve_pair", got.FailedStep)

	byToken, err := repo.FindByTokenAddress(ctx, "0x00000000000000000000000000000000000000ab")
	require.NoError(t, err)
	assert.Equal(t, "run-1", byToken.ID)

	_, err = repo.FindByTokenAddress(ctx, "0x0000000000000000000000000000000000000001")
	assert.ErrorIs(t, err, ErrNotFound)

	// clearing failure fields must persist (zero values included)
	got.ClearFailure()
	got.Status = models.LaunchRunStatusRunning
	require.NoError(t, repo.Update(ctx, got))
	again, err := repo.GetByID(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, again.FailedStep)
	assert.Empty(t, again.LastError)

	failed, err := repo.FindByStatus(ctx, models.LaunchRunStatusPending)
	require.NoError(t, err)
	require.Len(t, failed, 2)
	assert.Equal(t, "run-0", failed[0].ID)

	page, total, err := repo.List(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 2)
	assert.Equal(t, "run-2", page[0].ID)
	assert.Equal(t, "run-1", page[1].ID)

	page, _, err = repo.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "run-0", page[0].ID)

	assert.ErrorIs(t, repo.Update(ctx, newRun("ghost", "G", base)), ErrNotFound)
}

func TestPebbleLaunchRunRepository(t *testing.T) {
	repo, err := NewPebbleLaunchRunRepository(t.TempDir())
	require.NoError(t, err)
	defer repo.Close()

	exerciseRepository(t, repo)

	err = repo.Create(context.Background(), newRun("run-0", "DUP", time.Now()))
	assert.Error(t, err, "duplicate ids are rejected")
}

func TestGormLaunchRunRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("launcher"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	gdb, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	require.NoError(t, db.Migrate(gdb, quiet))
	// data migrations are idempotent
	require.NoError(t, db.Migrate(gdb, quiet))

	exerciseRepository(t, NewLaunchRunRepository(gdb))
}
