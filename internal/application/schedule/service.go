package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
	"github.com/khanhnv2901/seca-suite/internal/domain/schedule"
)

// Service provides application-level schedule operations
type Service struct {
	repo      schedule.Repository
	scheduler *Scheduler
}

// NewService creates a new schedule service
func NewService(repo schedule.Repository, scheduler *Scheduler) *Service {
	return &Service{repo: repo, scheduler: scheduler}
}

// Add creates a schedule whose first run is due immediately
func (s *Service) Add(ctx context.Context, name string, tool assessment.Tool, target string, options map[string]string, interval time.Duration) (*schedule.Schedule, error) {
	sc, err := schedule.NewSchedule(name, tool, target, options, interval, s.scheduler.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to create schedule: %w", err)
	}
	if err := s.repo.Save(ctx, sc); err != nil {
		return nil, fmt.Errorf("failed to save schedule: %w", err)
	}
	return sc, nil
}

// Get retrieves a schedule by ID
func (s *Service) Get(ctx context.Context, id string) (*schedule.Schedule, error) {
	sc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	return sc, nil
}

// List retrieves all schedules
func (s *Service) List(ctx context.Context) ([]*schedule.Schedule, error) {
	all, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	return all, nil
}

// Remove deletes a schedule
func (s *Service) Remove(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// SetEnabled turns a schedule on or off
func (s *Service) SetEnabled(ctx context.Context, id string, enabled bool) (*schedule.Schedule, error) {
	sc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if enabled {
		sc.Enable(s.scheduler.now().UTC())
	} else {
		sc.Disable()
	}
	if err := s.repo.Save(ctx, sc); err != nil {
		return nil, fmt.Errorf("failed to save schedule: %w", err)
	}
	return sc, nil
}

// RunNow runs a schedule immediately, outside the polling loop
func (s *Service) RunNow(ctx context.Context, id string) (RunResult, error) {
	sc, err := s.Get(ctx, id)
	if err != nil {
		return RunResult{}, err
	}
	return s.scheduler.RunOne(ctx, sc), nil
}

// RunDue runs every schedule that is due now
func (s *Service) RunDue(ctx context.Context) ([]RunResult, error) {
	return s.scheduler.Tick(ctx)
}
