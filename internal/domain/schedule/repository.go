package schedule

import (
	"context"
	"time"
)

// Repository defines the interface for schedule persistence
type Repository interface {
	// Save inserts or updates a schedule
	Save(ctx context.Context, s *Schedule) error

	// FindByID retrieves a schedule by its ID
	FindByID(ctx context.Context, id string) (*Schedule, error)

	// FindAll retrieves all schedules ordered by name
	FindAll(ctx context.Context) ([]*Schedule, error)

	// FindDue retrieves enabled schedules whose next run is at or before now
	FindDue(ctx context.Context, now time.Time) ([]*Schedule, error)

	// Delete removes a schedule by its ID
	Delete(ctx context.Context, id string) error
}
