package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/collab-docs-demo/events"
)

// StorageModule persists document snapshots via GORM + SQLite. Saves
// arrive through the event bus; reads serve cold document joins.
type StorageModule struct {
	db     *gorm.DB
	repo   *Repository
	dbPath string
}

// Compile-time interface checks.
var _ mono.Module = (*StorageModule)(nil)
var _ mono.EventConsumerModule = (*StorageModule)(nil)
var _ mono.HealthCheckableModule = (*StorageModule)(nil)

// NewModule creates a new StorageModule.
func NewModule() *StorageModule {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "documents.db"
	}
	return &StorageModule{
		dbPath: dbPath,
	}
}

// Name returns the module name.
func (m *StorageModule) Name() string {
	return "storage"
}

// Health performs a health check on the storage module.
func (m *StorageModule) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get sql.DB: %v", err),
		}
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"driver": "sqlite",
			"path":   m.dbPath,
		},
	}
}

// RegisterEventConsumers subscribes to document save events.
func (m *StorageModule) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(registry, events.DocumentSavedV1, m.handleDocumentSaved, m); err != nil {
		return fmt.Errorf("failed to register DocumentSaved consumer: %w", err)
	}
	log.Printf("[storage] Registered event consumers: DocumentSaved")
	return nil
}

// handleDocumentSaved persists a snapshot. Persistence is best-effort:
// a failed write is logged and the live in-memory copy stays
// authoritative for the session.
func (m *StorageModule) handleDocumentSaved(_ context.Context, event events.DocumentSavedEvent, _ *mono.Msg) error {
	if m.repo == nil {
		return nil
	}
	doc := &Document{
		ID:        event.DocumentID,
		Content:   string(event.Content),
		UpdatedAt: time.Now(),
	}
	if err := m.repo.Upsert(doc); err != nil {
		log.Printf("[storage] Failed to persist document %s: %v", event.DocumentID, err)
		return nil // don't retry, the next save supersedes this one
	}
	return nil
}

// FindDocument loads a persisted snapshot for a cold document join.
func (m *StorageModule) FindDocument(_ context.Context, docID string) (json.RawMessage, error) {
	if m.repo == nil {
		return nil, ErrNotFound
	}
	doc, err := m.repo.FindByID(docID)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(doc.Content), nil
}

// Start initializes the database connection and runs migrations.
func (m *StorageModule) Start(_ context.Context) error {
	log.Printf("[storage] Connecting to SQLite database: %s", m.dbPath)

	logLevel := logger.Silent
	if os.Getenv("DB_DEBUG") == "true" {
		logLevel = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(m.dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	m.db = db

	if err := m.db.AutoMigrate(&Document{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	m.repo = NewRepository(m.db)

	log.Println("[storage] Module started successfully")
	return nil
}

// Stop gracefully closes the database connection.
func (m *StorageModule) Stop(_ context.Context) error {
	if m.db == nil {
		return nil
	}

	log.Println("[storage] Closing database connection...")

	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	log.Println("[storage] Database connection closed")
	return nil
}
