package storage

import (
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(&Document{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

func TestRepository_UpsertAndFind(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	doc := &Document{
		ID:        "doc-1",
		Content:   `{"ops":["hello"]}`,
		UpdatedAt: time.Now(),
	}

	if err := repo.Upsert(doc); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	found, err := repo.FindByID("doc-1")
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if found.Content != doc.Content {
		t.Errorf("expected content %q, got %q", doc.Content, found.Content)
	}
}

func TestRepository_UpsertOverwrites(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	first := &Document{ID: "doc-1", Content: `{"ops":[1]}`, UpdatedAt: time.Now()}
	if err := repo.Upsert(first); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	second := &Document{ID: "doc-1", Content: `{"ops":[2]}`, UpdatedAt: time.Now()}
	if err := repo.Upsert(second); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	found, err := repo.FindByID("doc-1")
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if found.Content != second.Content {
		t.Errorf("expected later write to win, got %q", found.Content)
	}

	var count int64
	db.Model(&Document{}).Count(&count)
	if count != 1 {
		t.Errorf("expected a single row after upsert, got %d", count)
	}
}

func TestRepository_FindMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	_, err := repo.FindByID("nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
