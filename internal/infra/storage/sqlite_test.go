package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"market_sim/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *Storage {
	dbName := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	if err := db.AutoMigrate(&domain.ActivityEntry{}); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}

	s := &Storage{db: db}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func TestAppendAndRecent(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		err := s.Append(ctx, domain.ActivityEntry{
			Seq:       uint64(i),
			Kind:      "ORDER_EXECUTED",
			Level:     domain.ActivityInfo,
			Message:   fmt.Sprintf("entry %d", i),
			CreatedAt: time.Now(),
		})
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	recent, err := s.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(recent))
	}
	if recent[0].Message != "entry 5" || recent[2].Message != "entry 3" {
		t.Errorf("expected most recent first, got %q .. %q", recent[0].Message, recent[2].Message)
	}
}

func TestAppendBatch(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	batch := []domain.ActivityEntry{
		{Seq: 1, Message: "Price updated to $11.375", Level: domain.ActivityInfo},
		{Seq: 1, Message: "Market buy order placed: 40 units", Level: domain.ActivityInfo},
	}
	if err := s.Append(ctx, batch...); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := s.Append(ctx); err != nil {
		t.Errorf("empty Append should be a no-op, got %v", err)
	}

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 rows, got %d", n)
	}
}

func TestNewStorage_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "activity.db")

	s, err := NewStorage(path)
	if err != nil {
		t.Fatalf("NewStorage failed: %v", err)
	}
	defer s.Close()

	if err := s.Append(context.Background(), domain.ActivityEntry{Seq: 7, Message: "hello"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	recent, err := s.Recent(context.Background(), 10)
	if err != nil || len(recent) != 1 || recent[0].Seq != 7 {
		t.Errorf("Recent() = %+v, %v", recent, err)
	}
}
