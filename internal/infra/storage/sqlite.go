package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"market_sim/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage is the SQLite activity journal.
type Storage struct {
	db *gorm.DB
}

var _ domain.ActivityRepository = (*Storage)(nil)

// NewStorage opens (or creates) the SQLite database at dbPath.
func NewStorage(dbPath string) (*Storage, error) {
	// Ensure directory exists
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create DB directory: %w", err)
		}
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&domain.ActivityEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// Append inserts entries in one statement.
func (s *Storage) Append(ctx context.Context, entries ...domain.ActivityEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&entries).Error
}

// Recent returns up to limit entries, most recent first.
func (s *Storage) Recent(ctx context.Context, limit int) ([]domain.ActivityEntry, error) {
	var entries []domain.ActivityEntry
	err := s.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// Count returns the number of journaled entries.
func (s *Storage) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&domain.ActivityEntry{}).Count(&n).Error
	return n, err
}

// Close releases the underlying connection pool.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
