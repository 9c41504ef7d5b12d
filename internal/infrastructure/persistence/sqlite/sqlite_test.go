package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
	"github.com/khanhnv2901/seca-suite/internal/domain/history"
	"github.com/khanhnv2901/seca-suite/internal/domain/schedule"
	sharedErrors "github.com/khanhnv2901/seca-suite/internal/shared/errors"
)

var base = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestMigrateIdempotent(t *testing.T) {
	d := openTestDB(t)
	if err := d.migrate(); err != nil {
		t.Fatalf("second migrate() error: %v", err)
	}
	for _, table := range []string{"history_entries", "schedules"} {
		var count int
		if err := d.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
			t.Errorf("table %s: %v", table, err)
		}
	}
}

func TestOpenFile(t *testing.T) {
	path := t.TempDir() + "/nested/suite.db"
	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer d.Close()
	if d.Path() != path {
		t.Fatalf("Path() = %q", d.Path())
	}
}

func TestHistoryRepository(t *testing.T) {
	repo := NewHistoryRepository(openTestDB(t))
	ctx := context.Background()

	payload := json.RawMessage(`{"score":72}`)
	entries := []*history.Entry{
		history.Reconstruct("a", assessment.ToolPassword, "", assessment.SourceLocal, 40, "high", "weak", payload, "", base),
		history.Reconstruct("b", assessment.ToolNetwork, "https://example.com", assessment.SourceRemote, 72, "medium", "headers", payload, "s1", base.Add(time.Hour)),
		history.Reconstruct("c", assessment.ToolNetwork, "https://example.org", assessment.SourceRepaired, 90, "low", "headers", payload, "", base.Add(2*time.Hour)),
	}
	for _, e := range entries {
		if err := repo.Save(ctx, e); err != nil {
			t.Fatalf("Save(%s) failed: %v", e.ID(), err)
		}
	}

	got, err := repo.FindByID(ctx, "b")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if got.Target() != "https://example.com" || got.ScheduleID() != "s1" || !got.CreatedAt().Equal(base.Add(time.Hour)) {
		t.Fatalf("unexpected entry: %+v", got)
	}
	var decoded map[string]int
	if err := got.DecodePayload(&decoded); err != nil || decoded["score"] != 72 {
		t.Fatalf("payload = %v, %v", decoded, err)
	}

	if _, err := repo.FindByID(ctx, "missing"); !errors.Is(err, sharedErrors.ErrHistoryNotFound) {
		t.Fatalf("expected ErrHistoryNotFound, got %v", err)
	}

	tests := []struct {
		name   string
		filter history.Filter
		want   []string
	}{
		{"all newest first", history.Filter{}, []string{"c", "b", "a"}},
		{"by tool", history.Filter{Tool: assessment.ToolNetwork}, []string{"c", "b"}},
		{"by schedule", history.Filter{ScheduleID: "s1"}, []string{"b"}},
		{"since", history.Filter{Since: base.Add(30 * time.Minute)}, []string{"c", "b"}},
		{"limit", history.Filter{Limit: 1}, []string{"c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			var ids []string
			for _, e := range list {
				ids = append(ids, e.ID())
			}
			if diff := cmp.Diff(tt.want, ids); diff != "" {
				t.Fatalf("ids mismatch (-want +got):\n%s", diff)
			}
		})
	}

	n, err := repo.Prune(ctx, base.Add(90*time.Minute))
	if err != nil || n != 2 {
		t.Fatalf("Prune = %d, %v; want 2", n, err)
	}
	left, _ := repo.List(ctx, history.Filter{})
	if len(left) != 1 || left[0].ID() != "c" {
		t.Fatalf("unexpected entries after prune: %d", len(left))
	}
}

func TestScheduleRepository(t *testing.T) {
	repo := NewScheduleRepository(openTestDB(t))
	ctx := context.Background()

	hourly, err := schedule.NewSchedule("hourly headers", assessment.ToolNetwork, "https://example.com", map[string]string{"mode": "url"}, time.Hour, base)
	if err != nil {
		t.Fatal(err)
	}
	daily, err := schedule.NewSchedule("daily phishing", assessment.ToolPhishing, "https://login.example", nil, 24*time.Hour, base.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range []*schedule.Schedule{hourly, daily} {
		if err := repo.Save(ctx, s); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	all, err := repo.FindAll(ctx)
	if err != nil || len(all) != 2 || all[0].Name() != "daily phishing" {
		t.Fatalf("FindAll = %v, %v", all, err)
	}

	due, err := repo.FindDue(ctx, base.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("FindDue failed: %v", err)
	}
	if len(due) != 1 || due[0].ID() != hourly.ID() {
		t.Fatalf("expected only the hourly schedule to be due, got %d", len(due))
	}
	if due[0].Option("mode") != "url" || due[0].Interval() != time.Hour {
		t.Fatalf("options or interval lost: %v %v", due[0].Options(), due[0].Interval())
	}

	if err := hourly.Start(); err != nil {
		t.Fatal(err)
	}
	hourly.Complete(base.Add(10*time.Minute), schedule.StatusLocal, nil)
	hourly.Disable()
	if err := repo.Save(ctx, hourly); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	got, err := repo.FindByID(ctx, hourly.ID())
	if err != nil {
		t.Fatal(err)
	}
	if got.Enabled() || got.LastStatus() != schedule.StatusLocal || !got.NextRun().Equal(base.Add(time.Hour)) {
		t.Fatalf("update not persisted: enabled=%v status=%s next=%v", got.Enabled(), got.LastStatus(), got.NextRun())
	}
	if due, _ := repo.FindDue(ctx, base.Add(48*time.Hour)); len(due) != 1 || due[0].ID() != daily.ID() {
		t.Fatal("disabled schedule must not be due")
	}

	if err := repo.Delete(ctx, daily.ID()); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := repo.Delete(ctx, daily.ID()); !errors.Is(err, sharedErrors.ErrScheduleNotFound) {
		t.Fatalf("expected ErrScheduleNotFound, got %v", err)
	}
	if _, err := repo.FindByID(ctx, daily.ID()); !errors.Is(err, sharedErrors.ErrScheduleNotFound) {
		t.Fatalf("expected ErrScheduleNotFound, got %v", err)
	}
}
