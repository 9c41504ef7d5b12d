package diagram

import (
	"context"
	"time"
)

// Document is a saved diagram.
type Document struct {
	ID        string
	Data      SystemData
	Canvas    Canvas
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository defines the interface for diagram persistence
type Repository interface {
	// Save inserts or replaces a document
	Save(ctx context.Context, doc *Document) error

	// FindByID retrieves a document by its ID
	FindByID(ctx context.Context, id string) (*Document, error)

	// FindAll retrieves every document ordered by ID
	FindAll(ctx context.Context) ([]*Document, error)

	// Delete removes a document by its ID
	Delete(ctx context.Context, id string) error

	// Exists checks if a document exists by ID
	Exists(ctx context.Context, id string) (bool, error)
}
