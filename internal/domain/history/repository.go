package history

import (
	"context"
	"time"
)

// Repository defines the interface for analysis history persistence
type Repository interface {
	// Save persists an entry
	Save(ctx context.Context, entry *Entry) error

	// FindByID retrieves an entry by its ID
	FindByID(ctx context.Context, id string) (*Entry, error)

	// List returns entries matching f, newest first
	List(ctx context.Context, f Filter) ([]*Entry, error)

	// Prune deletes entries created before cutoff and returns how many were removed
	Prune(ctx context.Context, cutoff time.Time) (int, error)
}
