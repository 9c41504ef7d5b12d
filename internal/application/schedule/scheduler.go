package schedule

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/khanhnv2901/seca-suite/internal/application/tools"
	"github.com/khanhnv2901/seca-suite/internal/domain/schedule"
)

// Config tunes the scheduler.
type Config struct {
	Concurrency  int           // Maximum number of schedules run at once
	RateLimit    float64       // Runs started per second (global)
	Timeout      time.Duration // Timeout for each run
	PollInterval time.Duration // How often due schedules are collected
}

// DefaultConfig returns the scheduler defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:  2,
		RateLimit:    1,
		Timeout:      5 * time.Minute,
		PollInterval: 30 * time.Second,
	}
}

// RunResult is the outcome of one scheduled run.
type RunResult struct {
	ScheduleID string          `json:"schedule_id"`
	Name       string          `json:"name"`
	Status     schedule.Status `json:"status"`
	Report     *tools.Report   `json:"report,omitempty"`
	Error      string          `json:"error,omitempty"`
	Duration   time.Duration   `json:"duration"`
}

var errInterrupted = errors.New("run interrupted before completion")

// Scheduler runs due schedules through a worker pool.
type Scheduler struct {
	repo   schedule.Repository
	exec   Executor
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewScheduler creates a scheduler. Zero config fields take their defaults.
func NewScheduler(repo schedule.Repository, exec Executor, cfg Config, logger *zap.Logger) *Scheduler {
	def := DefaultConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = def.RateLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{repo: repo, exec: exec, cfg: cfg, logger: logger, now: time.Now}
}

// SetClock replaces the wall clock.
func (s *Scheduler) SetClock(now func() time.Time) { s.now = now }

// Run polls for due schedules until ctx is cancelled. Schedules left running
// by a previous process are marked failed first.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.recoverStale(ctx); err != nil {
		return err
	}
	s.logger.Info("scheduler started",
		zap.Int("concurrency", s.cfg.Concurrency),
		zap.Duration("poll_interval", s.cfg.PollInterval))

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("scheduler tick failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Tick runs every schedule due now and waits for them to finish.
func (s *Scheduler) Tick(ctx context.Context) ([]RunResult, error) {
	due, err := s.repo.FindDue(ctx, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if len(due) == 0 {
		return nil, nil
	}
	return s.runAll(ctx, due), nil
}

func (s *Scheduler) runAll(ctx context.Context, due []*schedule.Schedule) []RunResult {
	limiter := rate.NewLimiter(rate.Limit(s.cfg.RateLimit), s.cfg.Concurrency)

	sem := make(chan struct{}, s.cfg.Concurrency)
	var wg sync.WaitGroup
	mu := sync.Mutex{}
	results := make([]RunResult, 0, len(due))

	for _, sched := range due {
		wg.Add(1)
		go func(sc *schedule.Schedule) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			if err := limiter.Wait(ctx); err != nil {
				return
			}

			res := s.RunOne(ctx, sc)

			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}(sched)
	}

	wg.Wait()
	return results
}

// RunOne runs a schedule immediately, whether due or not, and records the
// outcome on it.
func (s *Scheduler) RunOne(ctx context.Context, sc *schedule.Schedule) RunResult {
	res := RunResult{ScheduleID: sc.ID(), Name: sc.Name()}
	if err := sc.Start(); err != nil {
		res.Status = sc.LastStatus()
		res.Error = err.Error()
		return res
	}
	if err := s.repo.Save(ctx, sc); err != nil {
		res.Status = schedule.StatusFailed
		res.Error = err.Error()
		return res
	}

	start := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	report, err := s.exec.Execute(runCtx, sc)
	cancel()
	res.Duration = time.Since(start)

	switch {
	case err != nil:
		res.Status = schedule.StatusFailed
		res.Error = err.Error()
	case report != nil && report.Local():
		res.Status = schedule.StatusLocal
	default:
		res.Status = schedule.StatusOK
	}
	res.Report = report

	sc.Complete(s.now().UTC(), res.Status, err)
	// The outcome is saved even when the run was cancelled.
	if serr := s.repo.Save(context.WithoutCancel(ctx), sc); serr != nil {
		s.logger.Error("failed to save schedule", zap.String("schedule", sc.ID()), zap.Error(serr))
	}

	fields := []zap.Field{
		zap.String("schedule", sc.ID()),
		zap.String("name", sc.Name()),
		zap.String("tool", string(sc.Tool())),
		zap.String("status", string(res.Status)),
		zap.Duration("duration", res.Duration),
		zap.Time("next_run", sc.NextRun()),
	}
	if err != nil {
		s.logger.Warn("scheduled run failed", append(fields, zap.Error(err))...)
	} else {
		s.logger.Info("scheduled run finished", fields...)
	}
	return res
}

func (s *Scheduler) recoverStale(ctx context.Context) error {
	all, err := s.repo.FindAll(ctx)
	if err != nil {
		return err
	}
	for _, sc := range all {
		if sc.LastStatus() != schedule.StatusRunning {
			continue
		}
		sc.Complete(s.now().UTC(), schedule.StatusFailed, errInterrupted)
		if err := s.repo.Save(ctx, sc); err != nil {
			return err
		}
		s.logger.Warn("recovered interrupted schedule", zap.String("schedule", sc.ID()))
	}
	return nil
}
