package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"extension-launcher/internal/core"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLiteRepository implements RepositoryPort using SQLite via GORM
type SQLiteRepository struct {
	db *gorm.DB
}

// NewSQLiteRepository creates a new SQLite repository
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Configure GORM logger (silent in production, can be verbose for debugging)
	config := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath), config)
	if err != nil {
		return nil, err
	}

	repo := &SQLiteRepository{db: db}

	// Auto-migrate schema
	if err := repo.Migrate(context.Background()); err != nil {
		return nil, err
	}

	return repo, nil
}

// Migrate runs database migrations
func (r *SQLiteRepository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(
		&core.Run{},
	)
}

// CreateRun stores a run record
func (r *SQLiteRepository) CreateRun(ctx context.Context, run *core.Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	result := r.db.WithContext(ctx).Create(run)
	if result.Error != nil {
		return result.Error
	}

	return nil
}

// GetRun retrieves a run by ID
func (r *SQLiteRepository) GetRun(ctx context.Context, id string) (*core.Run, error) {
	var run core.Run
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&run)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil // Run not found, not an error
		}
		return nil, result.Error
	}

	return &run, nil
}

// ListRecentRuns returns the most recent runs, newest first
func (r *SQLiteRepository) ListRecentRuns(ctx context.Context, limit int) ([]*core.Run, error) {
	var runs []*core.Run
	query := r.db.WithContext(ctx).Order("started_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	if result := query.Find(&runs); result.Error != nil {
		return nil, result.Error
	}

	return runs, nil
}

// GetTodayRunCount counts runs started today that were not skipped
func (r *SQLiteRepository) GetTodayRunCount(ctx context.Context) (int64, error) {
	// Get start of today
	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var count int64
	result := r.db.WithContext(ctx).
		Model(&core.Run{}).
		Where("status <> ? AND started_at >= ?", core.RunStatusSkipped, startOfDay).
		Count(&count)

	if result.Error != nil {
		return 0, result.Error
	}

	return count, nil
}

// CanStartRun checks the daily run limit; a limit of zero or less means unlimited
func (r *SQLiteRepository) CanStartRun(ctx context.Context, dailyLimit int) (bool, error) {
	if dailyLimit <= 0 {
		return true, nil
	}

	count, err := r.GetTodayRunCount(ctx)
	if err != nil {
		return false, err
	}

	return count < int64(dailyLimit), nil
}

// Close closes the database connection
func (r *SQLiteRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}
