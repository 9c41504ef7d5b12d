package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/khanhnv2901/seca-suite/internal/application/tools"
	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
	"github.com/khanhnv2901/seca-suite/internal/infrastructure/backend"
)

func instantJob(_ context.Context, req JobRequest) (*tools.Report, error) {
	return &tools.Report{Source: assessment.SourceLocal, HistoryID: "h-" + req.Tool, Result: req.Fields}, nil
}

// waitJob polls until the job leaves the pending and running states.
func waitJob(t *testing.T, m *JobManager, id string) *Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := m.GetJob(context.Background(), id)
		if err != nil {
			t.Fatalf("GetJob failed: %v", err)
		}
		if job.Status == JobDone || job.Status == JobError {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", id)
	return nil
}

func TestJobLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := NewJobManager(instantJob, time.Second, zaptest.NewLogger(t))
	defer m.Close()

	job, err := m.StartJob(context.Background(), JobRequest{Tool: "phishing", Fields: map[string]string{"url": "http://a.example"}})
	if err != nil {
		t.Fatalf("StartJob failed: %v", err)
	}
	if !strings.HasPrefix(job.ID, "job_") || job.Status != JobPending || job.Target != "http://a.example" {
		t.Fatalf("unexpected job: %+v", job)
	}

	done := waitJob(t, m, job.ID)
	if done.Status != JobDone || done.Source != assessment.SourceLocal || done.HistoryID != "h-phishing" {
		t.Fatalf("unexpected finished job: %+v", done)
	}
	if done.StartedAt == nil || done.FinishedAt == nil {
		t.Fatal("timestamps not recorded")
	}
}

func TestJobErrorsUseUserMessage(t *testing.T) {
	defer goleak.VerifyNone(t)

	failing := func(context.Context, JobRequest) (*tools.Report, error) {
		return nil, &backend.Error{Kind: backend.KindTimeout, Tool: assessment.ToolNetwork}
	}
	m := NewJobManager(failing, time.Second, zaptest.NewLogger(t))
	defer m.Close()

	job, err := m.StartJob(context.Background(), JobRequest{Tool: "network"})
	if err != nil {
		t.Fatal(err)
	}
	done := waitJob(t, m, job.ID)
	if done.Status != JobError || !strings.Contains(done.Error, "timed out") {
		t.Fatalf("unexpected job error: %+v", done)
	}
}

func TestStartJobRejectsUnknownTool(t *testing.T) {
	m := NewJobManager(instantJob, time.Second, nil)
	defer m.Close()

	if _, err := m.StartJob(context.Background(), JobRequest{Tool: "nmap"}); err == nil {
		t.Fatal("expected unknown tool error")
	}
	if _, err := m.GetJob(context.Background(), "job_missing"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestCloseCancelsRunningJobs(t *testing.T) {
	defer goleak.VerifyNone(t)

	started := make(chan struct{})
	blocking := func(ctx context.Context, _ JobRequest) (*tools.Report, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	m := NewJobManager(blocking, time.Minute, zaptest.NewLogger(t))
	updates, _ := m.Subscribe()

	job, err := m.StartJob(context.Background(), JobRequest{Tool: "ollama", Fields: map[string]string{"prompt": "hi"}})
	if err != nil {
		t.Fatal(err)
	}
	<-started
	m.Close()

	got, err := m.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != JobError || !strings.Contains(got.Error, "context canceled") {
		t.Fatalf("job not cancelled: %+v", got)
	}

	// The subscription is closed once every buffered update is drained.
	for range updates {
	}
	if _, err := m.StartJob(context.Background(), JobRequest{Tool: "ollama"}); !errors.Is(err, ErrJobsClosed) {
		t.Fatalf("expected ErrJobsClosed, got %v", err)
	}
}

func TestListJobsNewestFirstAndPrune(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := NewJobManager(instantJob, time.Second, nil)
	defer m.Close()
	m.SetMaxJobs(2)

	var ids []string
	for i := 0; i < 4; i++ {
		job, err := m.StartJob(context.Background(), JobRequest{Tool: "password"})
		if err != nil {
			t.Fatal(err)
		}
		waitJob(t, m, job.ID)
		ids = append(ids, job.ID)
		time.Sleep(2 * time.Millisecond)
	}

	// Pruning runs just after the last job is marked done.
	var jobs []Job
	deadline := time.Now().Add(5 * time.Second)
	for {
		jobs, _ = m.ListJobs(context.Background(), 10)
		if len(jobs) <= 2 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if len(jobs) != 2 || jobs[0].ID != ids[3] || jobs[1].ID != ids[2] {
		t.Fatalf("unexpected retained jobs: %+v", jobs)
	}
}

func TestConcurrentStartJobs(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := NewJobManager(instantJob, time.Second, nil)
	defer m.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.StartJob(context.Background(), JobRequest{Tool: "password"}); err != nil {
				t.Errorf("StartJob failed: %v", err)
			}
			_, _ = m.ListJobs(context.Background(), 5)
		}()
	}
	wg.Wait()

	jobs, _ := m.ListJobs(context.Background(), 0)
	if len(jobs) != 20 {
		t.Fatalf("expected 20 jobs, got %d", len(jobs))
	}
}

func TestToolJobsForcesURLMode(t *testing.T) {
	stub := &stubTools{}
	run := ToolJobs(stub)
	if _, err := run(context.Background(), JobRequest{Tool: "network", Fields: map[string]string{"analysis_type": "pcap", "target": "https://a.example"}}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if got := stub.lastCall(); got != "url:https://a.example" {
		t.Fatalf("dispatched %q", got)
	}
}

func startJobOverHTTP(t *testing.T, baseURL string) Job {
	t.Helper()
	resp, err := http.Post(baseURL+"/api/v1/jobs", "application/json",
		strings.NewReader(`{"tool":"password","fields":{"password":"x"}}`))
	if err != nil {
		t.Fatalf("POST jobs failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("start status = %d", resp.StatusCode)
	}
	var job Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		t.Fatal(err)
	}
	return job
}

func TestJobStreamSSE(t *testing.T) {
	m := NewJobManager(instantJob, time.Second, zaptest.NewLogger(t))
	defer m.Close()
	srv := httptest.NewServer(NewServer(Config{Jobs: m, Logger: zaptest.NewLogger(t)}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/jobs-stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stream request failed: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type = %q", ct)
	}

	started := startJobOverHTTP(t, srv.URL)

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var job Job
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &job); err != nil {
			t.Fatalf("bad event %q: %v", line, err)
		}
		if job.ID == started.ID && job.Status == JobDone {
			return
		}
	}
	t.Fatalf("stream ended before job finished: %v", scanner.Err())
}

func TestJobSocket(t *testing.T) {
	m := NewJobManager(instantJob, time.Second, zaptest.NewLogger(t))
	defer m.Close()
	srv := httptest.NewServer(NewServer(Config{Jobs: m, Logger: zaptest.NewLogger(t)}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/jobs-ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	started := startJobOverHTTP(t, srv.URL)

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var job Job
		if err := conn.ReadJSON(&job); err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if job.ID == started.ID && job.Status == JobDone {
			if job.HistoryID != "h-password" {
				t.Fatalf("unexpected job: %+v", job)
			}
			return
		}
	}
}
