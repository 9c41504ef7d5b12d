package schedule

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/khanhnv2901/seca-suite/internal/application/tools"
	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
	"github.com/khanhnv2901/seca-suite/internal/domain/schedule"
	sharedErrors "github.com/khanhnv2901/seca-suite/internal/shared/errors"
)

var base = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

// memRepo is an in-memory schedule.Repository.
type memRepo struct {
	mu    sync.Mutex
	items map[string]*schedule.Schedule
}

func newMemRepo() *memRepo { return &memRepo{items: map[string]*schedule.Schedule{}} }

func (r *memRepo) Save(_ context.Context, s *schedule.Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[s.ID()] = s
	return nil
}

func (r *memRepo) FindByID(_ context.Context, id string) (*schedule.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.items[id]
	if !ok {
		return nil, sharedErrors.ErrScheduleNotFound
	}
	return s, nil
}

func (r *memRepo) FindAll(_ context.Context) ([]*schedule.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*schedule.Schedule, 0, len(r.items))
	for _, s := range r.items {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}

func (r *memRepo) FindDue(ctx context.Context, now time.Time) ([]*schedule.Schedule, error) {
	all, _ := r.FindAll(ctx)
	var due []*schedule.Schedule
	for _, s := range all {
		if s.Due(now) {
			due = append(due, s)
		}
	}
	return due, nil
}

func (r *memRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return sharedErrors.ErrScheduleNotFound
	}
	delete(r.items, id)
	return nil
}

// fakeExecutor answers per target and tracks concurrency.
type fakeExecutor struct {
	delay   time.Duration
	fail    map[string]bool
	local   map[string]bool
	calls   atomic.Int32
	active  atomic.Int32
	maxSeen atomic.Int32
}

func (f *fakeExecutor) Execute(ctx context.Context, s *schedule.Schedule) (*tools.Report, error) {
	f.calls.Add(1)
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if f.fail[s.Target()] {
		return nil, errors.New("upstream exploded")
	}
	src := assessment.SourceRemote
	if f.local[s.Target()] {
		src = assessment.SourceLocal
	}
	return &tools.Report{Tool: s.Tool(), Target: s.Target(), Source: src}, nil
}

func addSchedule(t *testing.T, svc *Service, name, target string) *schedule.Schedule {
	t.Helper()
	sc, err := svc.Add(context.Background(), name, assessment.ToolPhishing, target, nil, time.Hour)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	return sc
}

func newTestScheduler(t *testing.T, exec Executor, cfg Config) (*Scheduler, *Service, *memRepo) {
	t.Helper()
	repo := newMemRepo()
	sched := NewScheduler(repo, exec, cfg, zaptest.NewLogger(t))
	sched.SetClock(func() time.Time { return base })
	return sched, NewService(repo, sched), repo
}

func TestTickRunsDueSchedules(t *testing.T) {
	defer goleak.VerifyNone(t)

	exec := &fakeExecutor{
		delay: 20 * time.Millisecond,
		fail:  map[string]bool{"https://b.example": true},
		local: map[string]bool{"https://c.example": true},
	}
	sched, svc, _ := newTestScheduler(t, exec, Config{Concurrency: 2, RateLimit: 100, Timeout: time.Second})

	a := addSchedule(t, svc, "a", "https://a.example")
	b := addSchedule(t, svc, "b", "https://b.example")
	c := addSchedule(t, svc, "c", "https://c.example")
	d := addSchedule(t, svc, "d", "https://d.example")
	if _, err := svc.SetEnabled(context.Background(), d.ID(), false); err != nil {
		t.Fatal(err)
	}

	results, err := sched.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("ran %d schedules, want 3", len(results))
	}
	if got := exec.maxSeen.Load(); got > 2 {
		t.Fatalf("concurrency %d exceeded the limit", got)
	}

	want := map[string]schedule.Status{
		a.ID(): schedule.StatusOK,
		b.ID(): schedule.StatusFailed,
		c.ID(): schedule.StatusLocal,
	}
	for _, r := range results {
		if r.Status != want[r.ScheduleID] {
			t.Fatalf("%s status = %s, want %s", r.Name, r.Status, want[r.ScheduleID])
		}
	}
	if b.LastError() != "upstream exploded" {
		t.Fatalf("last error = %q", b.LastError())
	}
	if !a.NextRun().Equal(base.Add(time.Hour)) {
		t.Fatalf("next run = %v", a.NextRun())
	}

	// Nothing is due until the next interval.
	results, err = sched.Tick(context.Background())
	if err != nil || len(results) != 0 {
		t.Fatalf("second tick ran %d schedules, err %v", len(results), err)
	}
}

func TestRunOneTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	exec := &fakeExecutor{delay: time.Second}
	_, svc, _ := newTestScheduler(t, exec, Config{Timeout: 20 * time.Millisecond})
	sc := addSchedule(t, svc, "slow", "https://slow.example")

	res, err := svc.RunNow(context.Background(), sc.ID())
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != schedule.StatusFailed || sc.LastStatus() != schedule.StatusFailed {
		t.Fatalf("status = %s / %s", res.Status, sc.LastStatus())
	}
}

func TestRunRecoversStaleAndStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	exec := &fakeExecutor{}
	sched, svc, _ := newTestScheduler(t, exec, Config{PollInterval: 10 * time.Millisecond, RateLimit: 100})

	stale := addSchedule(t, svc, "stale", "https://stale.example")
	if err := stale.Start(); err != nil {
		t.Fatal(err)
	}
	addSchedule(t, svc, "fresh", "https://fresh.example")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for exec.calls.Load() == 0 {
		select {
		case <-deadline:
			cancel()
			<-done
			t.Fatal("scheduler never ran the due schedule")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if stale.LastStatus() != schedule.StatusFailed || stale.LastError() != errInterrupted.Error() {
		t.Fatalf("stale schedule = %s %q", stale.LastStatus(), stale.LastError())
	}
	if got := exec.calls.Load(); got != 1 {
		t.Fatalf("executor called %d times, want 1", got)
	}
}

func TestServiceValidationAndRemove(t *testing.T) {
	_, svc, _ := newTestScheduler(t, &fakeExecutor{}, Config{})
	ctx := context.Background()

	if _, err := svc.Add(ctx, "g", assessment.ToolGRC, "iso27001", nil, time.Hour); !errors.Is(err, sharedErrors.ErrUnsupportedTool) {
		t.Fatalf("expected ErrUnsupportedTool, got %v", err)
	}
	sc := addSchedule(t, svc, "x", "https://x.example")
	if err := svc.Remove(ctx, sc.ID()); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RunNow(ctx, sc.ID()); !errors.Is(err, sharedErrors.ErrScheduleNotFound) {
		t.Fatalf("expected ErrScheduleNotFound, got %v", err)
	}
}
