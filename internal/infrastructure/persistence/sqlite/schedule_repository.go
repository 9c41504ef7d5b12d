package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
	"github.com/khanhnv2901/seca-suite/internal/domain/schedule"
	sharedErrors "github.com/khanhnv2901/seca-suite/internal/shared/errors"
)

const scheduleColumns = "id, name, tool, target, options, interval_seconds, next_run, last_run, last_status, last_error, enabled, created_at"

// ScheduleRepository implements schedule.Repository on SQLite.
type ScheduleRepository struct {
	db *DB
}

// NewScheduleRepository creates a repository backed by the given database.
func NewScheduleRepository(database *DB) *ScheduleRepository {
	return &ScheduleRepository{db: database}
}

// Save inserts or updates a schedule.
func (r *ScheduleRepository) Save(ctx context.Context, s *schedule.Schedule) error {
	opts, err := json.Marshal(s.Options())
	if err != nil {
		return fmt.Errorf("%w: %v", sharedErrors.ErrSerializationFailed, err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO schedules (`+scheduleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			tool = excluded.tool,
			target = excluded.target,
			options = excluded.options,
			interval_seconds = excluded.interval_seconds,
			next_run = excluded.next_run,
			last_run = excluded.last_run,
			last_status = excluded.last_status,
			last_error = excluded.last_error,
			enabled = excluded.enabled`,
		s.ID(),
		s.Name(),
		string(s.Tool()),
		s.Target(),
		string(opts),
		int64(s.Interval()/time.Second),
		formatTime(s.NextRun()),
		formatTime(s.LastRun()),
		string(s.LastStatus()),
		s.LastError(),
		s.Enabled(),
		formatTime(s.CreatedAt()),
	)
	if err != nil {
		return fmt.Errorf("%w: saving schedule: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	return nil
}

// FindByID retrieves a schedule by its ID.
func (r *ScheduleRepository) FindByID(ctx context.Context, id string) (*schedule.Schedule, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+scheduleColumns+" FROM schedules WHERE id = ?", id)
	s, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", sharedErrors.ErrScheduleNotFound, id)
	}
	return s, err
}

// FindAll retrieves all schedules ordered by name.
func (r *ScheduleRepository) FindAll(ctx context.Context) ([]*schedule.Schedule, error) {
	return r.query(ctx, "SELECT "+scheduleColumns+" FROM schedules ORDER BY name, id")
}

// FindDue retrieves enabled schedules whose next run is at or before now.
func (r *ScheduleRepository) FindDue(ctx context.Context, now time.Time) ([]*schedule.Schedule, error) {
	return r.query(ctx, "SELECT "+scheduleColumns+" FROM schedules WHERE enabled = 1 AND next_run <= ? ORDER BY next_run, id",
		formatTime(now))
}

// Delete removes a schedule by its ID.
func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM schedules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("%w: deleting schedule: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", sharedErrors.ErrScheduleNotFound, id)
	}
	return nil
}

func (r *ScheduleRepository) query(ctx context.Context, query string, args ...any) ([]*schedule.Schedule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying schedules: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	defer rows.Close()

	var out []*schedule.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSchedule(s scanner) (*schedule.Schedule, error) {
	var (
		id, name, tool, target, opts, next, last, status, lastErr, created string
		seconds                                                            int64
		enabled                                                            bool
	)
	if err := s.Scan(&id, &name, &tool, &target, &opts, &seconds, &next, &last, &status, &lastErr, &enabled, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: scanning schedule: %v", sharedErrors.ErrDeserializationFailed, err)
	}

	options := map[string]string{}
	if err := json.Unmarshal([]byte(opts), &options); err != nil {
		return nil, fmt.Errorf("%w: schedule options: %v", sharedErrors.ErrDeserializationFailed, err)
	}
	var times [3]time.Time
	for i, raw := range []string{next, last, created} {
		t, err := parseTime(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: schedule time: %v", sharedErrors.ErrDeserializationFailed, err)
		}
		times[i] = t
	}
	return schedule.Reconstruct(id, name, assessment.Tool(tool), target, options, time.Duration(seconds)*time.Second,
		times[0], times[1], schedule.Status(status), lastErr, enabled, times[2]), nil
}
