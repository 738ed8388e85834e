// Package repository provides data access interfaces and implementations
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"token-launcher/internal/metrics"
	"token-launcher/internal/models"
)

// ErrNotFound is returned when a launch run does not exist.
var ErrNotFound = errors.New("launch run not found")

// LaunchRunRepository defines the interface for LaunchRun data access
type LaunchRunRepository interface {
	Create(ctx context.Context, run *models.LaunchRun) error
	GetByID(ctx context.Context, id string) (*models.LaunchRun, error)
	Update(ctx context.Context, run *models.LaunchRun) error

	FindByTokenAddress(ctx context.Context, token string) (*models.LaunchRun, error)
	FindByStatus(ctx context.Context, status models.LaunchRunStatus) ([]*models.LaunchRun, error)
	// List returns runs newest first.
	List(ctx context.Context, page, pageSize int) ([]*models.LaunchRun, int64, error)
}

// launchRunRepository implements LaunchRunRepository on gorm
type launchRunRepository struct {
	db *gorm.DB
}

// NewLaunchRunRepository creates a gorm-backed LaunchRunRepository
func NewLaunchRunRepository(db *gorm.DB) LaunchRunRepository {
	return &launchRunRepository{db: db}
}

func observe(queryType string, start time.Time) {
	metrics.DBQueryDuration.WithLabelValues(queryType).Observe(time.Since(start).Seconds())
}

// Create creates a new launch run
func (r *launchRunRepository) Create(ctx context.Context, run *models.LaunchRun) error {
	defer observe("launch_run_create", time.Now())
	return r.db.WithContext(ctx).Create(run).Error
}

// GetByID retrieves a launch run by ID
func (r *launchRunRepository) GetByID(ctx context.Context, id string) (*models.LaunchRun, error) {
	defer observe("launch_run_get", time.Now())
	var run models.LaunchRun
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&run).Error
	if err != nil {
		return nil, translate(err)
	}
	return &run, nil
}

// Update saves every column of run
func (r *launchRunRepository) Update(ctx context.Context, run *models.LaunchRun) error {
	defer observe("launch_run_update", time.Now())
	result := r.db.WithContext(ctx).Model(&models.LaunchRun{}).Where("id = ?", run.ID).Select("*").Omit("created_at").Updates(run)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// FindByTokenAddress returns the newest run that deployed token
func (r *launchRunRepository) FindByTokenAddress(ctx context.Context, token string) (*models.LaunchRun, error) {
	defer observe("launch_run_by_token", time.Now())
	var run models.LaunchRun
	err := r.db.WithContext(ctx).
		Where("LOWER(token_address) = ?", strings.ToLower(token)).
		Order("created_at DESC").
		First(&run).Error
	if err != nil {
		return nil, translate(err)
	}
	return &run, nil
}

// FindByStatus returns runs in status, oldest first
func (r *launchRunRepository) FindByStatus(ctx context.Context, status models.LaunchRunStatus) ([]*models.LaunchRun, error) {
	defer observe("launch_run_by_status", time.Now())
	var runs []*models.LaunchRun
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Find(&runs).Error
	return runs, err
}

// List lists runs with pagination
func (r *launchRunRepository) List(ctx context.Context, page, pageSize int) ([]*models.LaunchRun, int64, error) {
	defer observe("launch_run_list", time.Now())
	page, pageSize = normalizePage(page, pageSize)

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.LaunchRun{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var runs []*models.LaunchRun
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&runs).Error
	return runs, total, err
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
