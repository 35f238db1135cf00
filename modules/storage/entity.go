package storage

import "time"

// Document is a persisted snapshot of a document's content. The content
// blob is stored as the client submitted it; this service never parses it.
type Document struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}
