package schedule

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
	sharedErrors "github.com/khanhnv2901/seca-suite/internal/shared/errors"
)

// MinInterval is the shortest allowed interval between runs.
const MinInterval = time.Minute

// Status is the outcome of the last run.
type Status string

const (
	StatusNever   Status = "never"
	StatusOK      Status = "ok"
	StatusLocal   Status = "local"
	StatusFailed  Status = "failed"
	StatusRunning Status = "running"
)

// Schedulable lists the tools that can run unattended. GRC needs answers, the
// assistant needs a conversation and a password target would be stored in clear.
var Schedulable = []assessment.Tool{assessment.ToolNetwork, assessment.ToolPhishing, assessment.ToolThreatModel}

// Schedule is a recurring analysis.
// It serves as an aggregate root in the DDD context
type Schedule struct {
	id         string
	name       string
	tool       assessment.Tool
	target     string
	options    map[string]string
	interval   time.Duration
	nextRun    time.Time
	lastRun    time.Time
	lastStatus Status
	lastError  string
	enabled    bool
	createdAt  time.Time
}

// NewSchedule creates an enabled schedule whose first run is due immediately.
func NewSchedule(name string, tool assessment.Tool, target string, options map[string]string, interval time.Duration, now time.Time) (*Schedule, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: schedule name", sharedErrors.ErrMissingRequired)
	}
	if _, err := assessment.ParseTool(string(tool)); err != nil {
		return nil, err
	}
	if !IsSchedulable(tool) {
		return nil, fmt.Errorf("%w: %s cannot be scheduled", sharedErrors.ErrUnsupportedTool, tool)
	}
	if strings.TrimSpace(target) == "" {
		return nil, sharedErrors.ErrEmptyTarget
	}
	if interval < MinInterval {
		return nil, sharedErrors.ErrInvalidInterval
	}
	return &Schedule{
		id:         uuid.NewString(),
		name:       strings.TrimSpace(name),
		tool:       tool,
		target:     strings.TrimSpace(target),
		options:    maps.Clone(options),
		interval:   interval,
		nextRun:    now,
		lastStatus: StatusNever,
		enabled:    true,
		createdAt:  now,
	}, nil
}

// Reconstruct creates a schedule from persisted data (for repository use)
func Reconstruct(id, name string, tool assessment.Tool, target string, options map[string]string, interval time.Duration,
	nextRun, lastRun time.Time, lastStatus Status, lastError string, enabled bool, createdAt time.Time) *Schedule {
	return &Schedule{
		id:         id,
		name:       name,
		tool:       tool,
		target:     target,
		options:    options,
		interval:   interval,
		nextRun:    nextRun,
		lastRun:    lastRun,
		lastStatus: lastStatus,
		lastError:  lastError,
		enabled:    enabled,
		createdAt:  createdAt,
	}
}

// IsSchedulable reports whether tool can run unattended.
func IsSchedulable(tool assessment.Tool) bool {
	for _, t := range Schedulable {
		if t == tool {
			return true
		}
	}
	return false
}

// Business methods

// Due reports whether the schedule should run at now.
func (s *Schedule) Due(now time.Time) bool {
	return s.enabled && !s.nextRun.After(now)
}

// Start marks the schedule as running.
func (s *Schedule) Start() error {
	if s.lastStatus == StatusRunning {
		return errors.New("schedule is already running")
	}
	s.lastStatus = StatusRunning
	return nil
}

// Complete records the outcome of a run and advances the next run time past
// now, skipping intervals missed while the scheduler was down.
func (s *Schedule) Complete(now time.Time, status Status, runErr error) {
	s.lastRun = now
	s.lastStatus = status
	s.lastError = ""
	if runErr != nil {
		s.lastError = runErr.Error()
	}
	next := s.nextRun
	if next.IsZero() {
		next = now
	}
	for !next.After(now) {
		next = next.Add(s.interval)
	}
	s.nextRun = next
}

// Enable turns the schedule on; the next run is due at now.
func (s *Schedule) Enable(now time.Time) {
	s.enabled = true
	if s.nextRun.Before(now) {
		s.nextRun = now
	}
}

// Disable turns the schedule off.
func (s *Schedule) Disable() { s.enabled = false }

// Getters (exposing internal state)

func (s *Schedule) ID() string              { return s.id }
func (s *Schedule) Name() string            { return s.name }
func (s *Schedule) Tool() assessment.Tool   { return s.tool }
func (s *Schedule) Target() string          { return s.target }
func (s *Schedule) Interval() time.Duration { return s.interval }
func (s *Schedule) NextRun() time.Time      { return s.nextRun }
func (s *Schedule) LastRun() time.Time      { return s.lastRun }
func (s *Schedule) LastStatus() Status      { return s.lastStatus }
func (s *Schedule) LastError() string       { return s.lastError }
func (s *Schedule) Enabled() bool           { return s.enabled }
func (s *Schedule) CreatedAt() time.Time    { return s.createdAt }

// Options returns a copy of the tool options.
func (s *Schedule) Options() map[string]string {
	return maps.Clone(s.options)
}

// Option returns one tool option.
func (s *Schedule) Option(key string) string {
	return s.options[key]
}
