package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
	"github.com/khanhnv2901/seca-suite/internal/domain/history"
	sharedErrors "github.com/khanhnv2901/seca-suite/internal/shared/errors"
)

const historyColumns = "id, tool, target, source, score, risk_level, summary, payload, schedule_id, created_at"

// HistoryRepository implements history.Repository on SQLite.
type HistoryRepository struct {
	db *DB
}

// NewHistoryRepository creates a repository backed by the given database.
func NewHistoryRepository(database *DB) *HistoryRepository {
	return &HistoryRepository{db: database}
}

// Save inserts an entry, replacing any entry with the same ID.
func (r *HistoryRepository) Save(ctx context.Context, e *history.Entry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO history_entries (`+historyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID(),
		string(e.Tool()),
		e.Target(),
		string(e.Source()),
		e.Score(),
		e.RiskLevel(),
		e.Summary(),
		string(e.Payload()),
		e.ScheduleID(),
		formatTime(e.CreatedAt()),
	)
	if err != nil {
		return fmt.Errorf("%w: inserting history entry: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	return nil
}

// FindByID retrieves a single entry.
func (r *HistoryRepository) FindByID(ctx context.Context, id string) (*history.Entry, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+historyColumns+" FROM history_entries WHERE id = ?", id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", sharedErrors.ErrHistoryNotFound, id)
	}
	return e, err
}

// List returns entries matching the filter, newest first.
func (r *HistoryRepository) List(ctx context.Context, filter history.Filter) ([]*history.Entry, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Tool != "" {
		clauses = append(clauses, "tool = ?")
		args = append(args, string(filter.Tool))
	}
	if filter.ScheduleID != "" {
		clauses = append(clauses, "schedule_id = ?")
		args = append(args, filter.ScheduleID)
	}
	if !filter.Since.IsZero() {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, formatTime(filter.Since))
	}

	query := "SELECT " + historyColumns + " FROM history_entries"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying history: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	defer rows.Close()

	var out []*history.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune deletes entries created before cutoff and reports how many were removed.
func (r *HistoryRepository) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM history_entries WHERE created_at < ?", formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("%w: pruning history: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*history.Entry, error) {
	var (
		id, tool, target, source, risk, summary, payload, scheduleID, created string
		score                                                                 float64
	)
	if err := s.Scan(&id, &tool, &target, &source, &score, &risk, &summary, &payload, &scheduleID, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: scanning history entry: %v", sharedErrors.ErrDeserializationFailed, err)
	}
	createdAt, err := parseTime(created)
	if err != nil {
		return nil, fmt.Errorf("%w: created_at: %v", sharedErrors.ErrDeserializationFailed, err)
	}
	return history.Reconstruct(id, assessment.Tool(tool), target, assessment.Source(source), score, risk, summary,
		[]byte(payload), scheduleID, createdAt), nil
}
