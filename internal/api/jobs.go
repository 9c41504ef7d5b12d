package api

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/khanhnv2901/seca-suite/internal/application/tools"
	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
)

// JobStatus is the lifecycle state of an asynchronous analysis.
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobError   JobStatus = "error"
)

// Job is an analysis running in the background.
type Job struct {
	ID             string            `json:"id"`
	Tool           assessment.Tool   `json:"tool"`
	Target         string            `json:"target,omitempty"`
	Status         JobStatus         `json:"status"`
	CreatedAt      time.Time         `json:"created_at"`
	StartedAt      *time.Time        `json:"started_at,omitempty"`
	FinishedAt     *time.Time        `json:"finished_at,omitempty"`
	Source         assessment.Source `json:"source,omitempty"`
	FallbackReason string            `json:"fallback_reason,omitempty"`
	HistoryID      string            `json:"history_id,omitempty"`
	Result         any               `json:"result,omitempty"`
	Error          string            `json:"error,omitempty"`
}

// JobRequest starts a job. Fields use the same names as the form fields of
// POST /api.php.
type JobRequest struct {
	Tool   string            `json:"tool"`
	Fields map[string]string `json:"fields"`
}

// JobFunc runs the analysis behind a job.
type JobFunc func(ctx context.Context, req JobRequest) (*tools.Report, error)

// ErrJobNotFound is returned for unknown job IDs.
var ErrJobNotFound = errors.New("job not found")

// ErrJobsClosed is returned when a job is started after Close.
var ErrJobsClosed = errors.New("job manager is shutting down")

// JobManager runs jobs and fans their state changes out to subscribers.
type JobManager struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	subscribers map[chan Job]struct{}
	maxJobs     int // Maximum number of finished jobs kept in memory
	closed      bool

	run     JobFunc
	timeout time.Duration
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewJobManager creates a job manager. timeout bounds each job.
func NewJobManager(run JobFunc, timeout time.Duration, logger *zap.Logger) *JobManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &JobManager{
		jobs:        make(map[string]*Job),
		subscribers: make(map[chan Job]struct{}),
		maxJobs:     1000,
		run:         run,
		timeout:     timeout,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// StartJob validates the request, registers a pending job and runs it in the
// background. The job outlives the request that started it.
func (m *JobManager) StartJob(_ context.Context, req JobRequest) (*Job, error) {
	tool, err := assessment.ParseTool(req.Tool)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrJobsClosed
	}
	job := &Job{
		ID:        "job_" + uuid.NewString(),
		Tool:      tool,
		Target:    jobTarget(tool, req.Fields),
		Status:    JobPending,
		CreatedAt: time.Now().UTC(),
	}
	m.jobs[job.ID] = job
	m.broadcast(*job)
	m.wg.Add(1)
	m.mu.Unlock()

	go m.execute(job.ID, req)

	snapshot := *job
	return &snapshot, nil
}

func (m *JobManager) execute(id string, req JobRequest) {
	defer m.wg.Done()

	m.update(id, func(j *Job) {
		now := time.Now().UTC()
		j.Status = JobRunning
		j.StartedAt = &now
	})

	ctx, cancel := context.WithTimeout(m.ctx, m.timeout)
	defer cancel()
	report, err := m.run(ctx, req)

	m.update(id, func(j *Job) {
		now := time.Now().UTC()
		j.FinishedAt = &now
		if err != nil {
			j.Status = JobError
			j.Error = publicError(err)
			return
		}
		j.Status = JobDone
		j.Source = report.Source
		j.FallbackReason = report.FallbackReason
		j.HistoryID = report.HistoryID
		j.Result = report.Result
	})
	if err != nil {
		m.logger.Warn("job failed", zap.String("job", id), zap.String("tool", req.Tool), zap.Error(err))
	}
	m.prune()
}

func (m *JobManager) update(id string, fn func(*Job)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return
	}
	fn(job)
	m.broadcast(*job)
}

// GetJob returns a copy of a job.
func (m *JobManager) GetJob(_ context.Context, id string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	snapshot := *job
	return &snapshot, nil
}

// ListJobs returns up to limit jobs, newest first.
func (m *JobManager) ListJobs(_ context.Context, limit int) ([]Job, error) {
	m.mu.RLock()
	jobs := make([]Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, *job)
	}
	m.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
		}
		return jobs[i].ID > jobs[j].ID
	})
	if limit > 0 && limit < len(jobs) {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// Subscribe returns a channel of job updates and a function to unsubscribe.
// Slow subscribers miss updates rather than blocking jobs.
func (m *JobManager) Subscribe() (chan Job, func()) {
	ch := make(chan Job, 32)
	m.mu.Lock()
	if m.closed {
		close(ch)
		m.mu.Unlock()
		return ch, func() {}
	}
	m.subscribers[ch] = struct{}{}
	m.mu.Unlock()
	return ch, func() {
		m.mu.Lock()
		if _, ok := m.subscribers[ch]; ok {
			delete(m.subscribers, ch)
			close(ch)
		}
		m.mu.Unlock()
	}
}

// Close cancels running jobs, waits for them and closes every subscription.
func (m *JobManager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()

	m.mu.Lock()
	for ch := range m.subscribers {
		delete(m.subscribers, ch)
		close(ch)
	}
	m.mu.Unlock()
}

// SetMaxJobs configures the maximum number of finished jobs to retain
func (m *JobManager) SetMaxJobs(max int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if max > 0 {
		m.maxJobs = max
	}
}

// broadcast must be called with m.mu held.
func (m *JobManager) broadcast(job Job) {
	for ch := range m.subscribers {
		select {
		case ch <- job:
		default:
			m.logger.Debug("dropped job update for slow subscriber", zap.String("job", job.ID))
		}
	}
}

// prune drops the oldest finished jobs beyond maxJobs.
func (m *JobManager) prune() {
	m.mu.Lock()
	defer m.mu.Unlock()

	var finished []*Job
	for _, job := range m.jobs {
		if job.Status == JobDone || job.Status == JobError {
			finished = append(finished, job)
		}
	}
	excess := len(finished) - m.maxJobs
	if excess <= 0 {
		return
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].FinishedAt.Before(*finished[j].FinishedAt)
	})
	for _, job := range finished[:excess] {
		delete(m.jobs, job.ID)
	}
}

func jobTarget(tool assessment.Tool, fields map[string]string) string {
	switch tool {
	case assessment.ToolNetwork:
		return fields["target"]
	case assessment.ToolPhishing:
		if fields["url"] != "" {
			return fields["url"]
		}
		if fields["email_content"] != "" {
			return "email"
		}
	case assessment.ToolGRC, assessment.ToolGRCQuestions:
		return fields["framework"]
	}
	return ""
}
