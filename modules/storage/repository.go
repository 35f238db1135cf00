package storage

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a document has never been saved.
var ErrNotFound = errors.New("document not found")

// Repository provides access to document storage.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new document repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByID retrieves a document by its ID.
func (r *Repository) FindByID(id string) (*Document, error) {
	var doc Document
	if err := r.db.First(&doc, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find document: %w", err)
	}
	return &doc, nil
}

// Upsert writes a document snapshot, replacing any previous content.
func (r *Repository) Upsert(doc *Document) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"content", "updated_at"}),
	}).Create(doc).Error
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}
