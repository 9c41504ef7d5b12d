package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	scheduleapp "github.com/khanhnv2901/seca-suite/internal/application/schedule"
	"github.com/khanhnv2901/seca-suite/internal/application/tools"
	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
	"github.com/khanhnv2901/seca-suite/internal/domain/diagram"
	"github.com/khanhnv2901/seca-suite/internal/domain/history"
	"github.com/khanhnv2901/seca-suite/internal/domain/schedule"
	"github.com/khanhnv2901/seca-suite/internal/infrastructure/backend"
	sharedErrors "github.com/khanhnv2901/seca-suite/internal/shared/errors"
)

// stubTools answers every tool with report or err and records the last call.
type stubTools struct {
	mu      sync.Mutex
	report  *tools.Report
	err     error
	calls   []string
	capture []byte
	capPath string
}

func (s *stubTools) answer(name string) (*tools.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, name)
	if s.err != nil {
		return nil, s.err
	}
	if s.report != nil {
		return s.report, nil
	}
	return &tools.Report{Source: assessment.SourceRemote, Result: map[string]string{"tool": name}}, nil
}

func (s *stubTools) GRCQuestions(_ context.Context, framework string) (*tools.Report, error) {
	return s.answer("grc_questions:" + framework)
}
func (s *stubTools) GRCAssess(_ context.Context, sub backend.GRCSubmission) (*tools.Report, error) {
	return s.answer("grc:" + sub.Answers["q1"])
}
func (s *stubTools) NetworkCapture(_ context.Context, path string, _ backend.ProgressFunc) (*tools.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.capture, s.capPath = data, path
	s.mu.Unlock()
	return s.answer("pcap")
}
func (s *stubTools) NetworkURL(_ context.Context, target string) (*tools.Report, error) {
	return s.answer("url:" + target)
}
func (s *stubTools) Password(_ context.Context, _ string, opts tools.PasswordOptions) (*tools.Report, error) {
	if opts.AI {
		return s.answer("password+ai")
	}
	return s.answer("password")
}
func (s *stubTools) Phishing(_ context.Context, in backend.PhishingInput) (*tools.Report, error) {
	return s.answer("phishing:" + in.URL)
}
func (s *stubTools) Ask(_ context.Context, prompt, _ string) (*tools.Report, error) {
	return s.answer("ask:" + prompt)
}
func (s *stubTools) ThreatModel(_ context.Context, data diagram.SystemData) (*tools.Report, error) {
	return s.answer("threat:" + data.Name + ":" + strings.Join(data.Methodologies, "+"))
}

func (s *stubTools) lastCall() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return ""
	}
	return s.calls[len(s.calls)-1]
}

func postForm(t *testing.T, h http.Handler, values url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api.php", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) toolEnvelope {
	t.Helper()
	var env toolEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid envelope %q: %v", rr.Body.String(), err)
	}
	return env
}

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	writeJSON(rr, http.StatusCreated, map[string]string{"status": "ok"})

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}
	if got := rr.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected application/json content-type, got %s", got)
	}
	if !strings.Contains(rr.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
}

func TestWriteErrorSanitizesServerErrors(t *testing.T) {
	s := NewServer(Config{Logger: zaptest.NewLogger(t)})
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	rr := httptest.NewRecorder()
	s.writeError(rr, req, http.StatusInternalServerError, errors.New("disk on fire"))
	if rr.Code != http.StatusInternalServerError || strings.Contains(rr.Body.String(), "disk") {
		t.Fatalf("expected sanitized 500, got %d %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	s.writeError(rr, req, http.StatusBadRequest, errors.New("bad input"))
	if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), "bad input") {
		t.Fatalf("expected original client error, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestWriteStreamChunk(t *testing.T) {
	s := NewServer(Config{})
	rr := httptest.NewRecorder()
	if !s.writeStreamChunk(rr, []byte("hello")) {
		t.Fatal("expected writeStreamChunk to succeed")
	}
	if rr.Body.String() != "hello" {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
	if s.writeStreamChunk(&failingWriter{}, []byte("fail")) {
		t.Fatalf("expected writeStreamChunk to fail")
	}
}

type failingWriter struct{}

func (f *failingWriter) Header() http.Header { return http.Header{} }
func (f *failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("write failed")
}
func (f *failingWriter) WriteHeader(statusCode int) {}

func TestToolRequestDispatch(t *testing.T) {
	tests := []struct {
		name   string
		values url.Values
		want   string
	}{
		{"questions", url.Values{"tool": {"grc_questions"}, "framework": {"iso27001"}}, "grc_questions:iso27001"},
		{"grc repairs answers", url.Values{"tool": {"grc"}, "framework": {"nist"}, "answers": {`{"q1": "yes",}`}}, "grc:yes"},
		{"network url", url.Values{"tool": {"network"}, "analysis_type": {"url"}, "target": {"https://example.com"}}, "url:https://example.com"},
		{"password ai", url.Values{"tool": {"password"}, "password": {"hunter2"}, "ai": {"true"}}, "password+ai"},
		{"phishing", url.Values{"tool": {"phishing"}, "url": {"http://login.example"}}, "phishing:http://login.example"},
		{"assistant", url.Values{"tool": {"ollama"}, "prompt": {"what is xss"}}, "ask:what is xss"},
		{"threat model", url.Values{"tool": {"threat_modeling"}, "system_data": {`{"name":"shop"}`}, "methodologies": {"stride, pasta"}}, "threat:shop:stride+pasta"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubTools{}
			s := NewServer(Config{Tools: stub, Logger: zaptest.NewLogger(t)})
			rr := postForm(t, s, tt.values)
			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
			}
			env := decodeEnvelope(t, rr)
			if !env.Success || env.Source != assessment.SourceRemote {
				t.Fatalf("unexpected envelope: %+v", env)
			}
			if got := stub.lastCall(); got != tt.want {
				t.Fatalf("dispatched %q, want %q", got, tt.want)
			}
		})
	}
}

func TestToolRequestFallbackEnvelope(t *testing.T) {
	stub := &stubTools{report: &tools.Report{
		Source:         assessment.SourceLocal,
		FallbackReason: "http error (HTTP 502): bad gateway",
		HistoryID:      "h-1",
		Result:         map[string]int{"score": 40},
	}}
	s := NewServer(Config{Tools: stub})
	env := decodeEnvelope(t, postForm(t, s, url.Values{"tool": {"password"}, "password": {"x"}}))
	if env.Source != assessment.SourceLocal || env.HistoryID != "h-1" || !strings.Contains(env.FallbackReason, "502") {
		t.Fatalf("fallback details missing: %+v", env)
	}
}

func TestToolRequestErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		values     url.Values
		wantStatus int
		wantError  string
	}{
		{"unknown tool", nil, url.Values{"tool": {"nmap"}}, http.StatusBadRequest, "unsupported tool"},
		{"missing prompt", nil, url.Values{"tool": {"ollama"}}, http.StatusBadRequest, "missing required field"},
		{"business error keeps 200", &backend.Error{Kind: backend.KindBusiness, Tool: assessment.ToolGRC, Status: 200, Message: "unknown framework"},
			url.Values{"tool": {"grc_questions"}}, http.StatusOK, "unknown framework"},
		{"busy", &backend.Error{Kind: backend.KindBusy, Tool: assessment.ToolNetwork},
			url.Values{"tool": {"network"}, "target": {"https://a.example"}}, http.StatusTooManyRequests, "already running"},
		{"upstream down", &backend.Error{Kind: backend.KindNetwork, Tool: assessment.ToolGRC, Err: errors.New("refused")},
			url.Values{"tool": {"grc_questions"}}, http.StatusBadGateway, "Could not reach"},
		{"no fallback", tools.ErrNoFallback, url.Values{"tool": {"ollama"}, "prompt": {"hi"}}, http.StatusServiceUnavailable, "no local analysis"},
		{"internal", errors.New("sqlite exploded"), url.Values{"tool": {"password"}}, http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(Config{Tools: &stubTools{err: tt.err}, Logger: zaptest.NewLogger(t)})
			rr := postForm(t, s, tt.values)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
			env := decodeEnvelope(t, rr)
			if env.Success || !strings.Contains(env.Error, tt.wantError) {
				t.Fatalf("error = %q, want it to contain %q", env.Error, tt.wantError)
			}
		})
	}
}

func TestToolRequestCaptureUpload(t *testing.T) {
	stub := &stubTools{}
	s := NewServer(Config{Tools: stub, TempDir: t.TempDir()})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("tool", "network")
	_ = mw.WriteField("analysis_type", "pcap")
	part, err := mw.CreateFormFile("pcap_file", "office.pcapng")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write([]byte("capture-bytes"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api.php", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	if string(stub.capture) != "capture-bytes" || !strings.HasSuffix(stub.capPath, ".pcapng") {
		t.Fatalf("capture not staged: %q at %s", stub.capture, stub.capPath)
	}
	if _, err := os.Stat(stub.capPath); !os.IsNotExist(err) {
		t.Fatalf("staged capture not removed: %v", err)
	}
}

func TestToolRequestRejectsCaptureExtension(t *testing.T) {
	s := NewServer(Config{Tools: &stubTools{}, TempDir: t.TempDir()})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("tool", "network")
	part, _ := mw.CreateFormFile("pcap_file", "notes.txt")
	_, _ = part.Write([]byte("hello"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api.php", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestAuthToken(t *testing.T) {
	s := NewServer(Config{AuthToken: "secret", Logger: zaptest.NewLogger(t)})

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong", "X-Auth-Token", "nope", http.StatusUnauthorized},
		{"header token", "X-Auth-Token", "secret", http.StatusOK},
		{"bearer", "Authorization", "Bearer secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rr := httptest.NewRecorder()
			s.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	s := NewServer(Config{RateLimit: 1, RateBurst: 1, Logger: zaptest.NewLogger(t)})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
		req.RemoteAddr = "203.0.113.7:5000"
		rr := httptest.NewRecorder()
		s.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}

	// Other clients have their own budget.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.RemoteAddr = "198.51.100.1:5000"
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("second client limited: %d", rr.Code)
	}
}

func TestRequestIDAndCORSHeaders(t *testing.T) {
	s := NewServer(Config{CORSOrigins: []string{"http://localhost:3000"}})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)

	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing request id")
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("allow origin = %q", got)
	}
}

type stubHealth struct{ ready error }

func (h stubHealth) Check(context.Context) error { return nil }
func (h stubHealth) Ready(context.Context) error { return h.ready }

func TestHealthAndReady(t *testing.T) {
	s := NewServer(Config{Health: stubHealth{ready: errors.New("database closed")}, Logger: zaptest.NewLogger(t)})

	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("health = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	s.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready = %d", rr.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := NewServer(Config{})
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api.php", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rr.Code)
	}
}

type stubHistory struct {
	entries []*history.Entry
	filter  history.Filter
}

func (h *stubHistory) List(_ context.Context, f history.Filter) ([]*history.Entry, error) {
	h.filter = f
	return h.entries, nil
}

func (h *stubHistory) Get(_ context.Context, id string) (*history.Entry, error) {
	for _, e := range h.entries {
		if e.ID() == id {
			return e, nil
		}
	}
	return nil, sharedErrors.ErrHistoryNotFound
}

func TestHistoryEndpoints(t *testing.T) {
	entry, err := history.NewEntry(assessment.ToolPassword, "", assessment.SourceLocal, 72, "low", "strong",
		json.RawMessage(`{"strength_score":72,"strength_level":"strong"}`))
	if err != nil {
		t.Fatal(err)
	}
	hist := &stubHistory{entries: []*history.Entry{entry}}
	s := NewServer(Config{History: hist, Logger: zaptest.NewLogger(t)})

	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/history?tool=password&limit=5&schedule_id=s1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("list = %d: %s", rr.Code, rr.Body.String())
	}
	if hist.filter.Tool != assessment.ToolPassword || hist.filter.Limit != 5 || hist.filter.ScheduleID != "s1" {
		t.Fatalf("filter = %+v", hist.filter)
	}
	var list []historyView
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil || len(list) != 1 || list[0].Result != nil {
		t.Fatalf("unexpected listing %s (%v)", rr.Body.String(), err)
	}

	rr = httptest.NewRecorder()
	s.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/history/"+entry.ID(), nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"result"`) {
		t.Fatalf("get = %d: %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	s.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/history/missing", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	s.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/history?since=yesterday", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad since = %d", rr.Code)
	}
}

type stubSchedules struct {
	added []*schedule.Schedule
}

func (s *stubSchedules) Add(_ context.Context, name string, tool assessment.Tool, target string, options map[string]string, interval time.Duration) (*schedule.Schedule, error) {
	sc, err := schedule.NewSchedule(name, tool, target, options, interval, time.Now())
	if err != nil {
		return nil, err
	}
	s.added = append(s.added, sc)
	return sc, nil
}

func (s *stubSchedules) List(context.Context) ([]*schedule.Schedule, error) { return s.added, nil }

func (s *stubSchedules) Remove(_ context.Context, id string) error {
	for i, sc := range s.added {
		if sc.ID() == id {
			s.added = append(s.added[:i], s.added[i+1:]...)
			return nil
		}
	}
	return sharedErrors.ErrScheduleNotFound
}

func (s *stubSchedules) RunNow(_ context.Context, id string) (scheduleapp.RunResult, error) {
	for _, sc := range s.added {
		if sc.ID() == id {
			return scheduleapp.RunResult{ScheduleID: id, Name: sc.Name(), Status: schedule.StatusOK,
				Report: &tools.Report{Source: assessment.SourceRemote, HistoryID: "h-9"}}, nil
		}
	}
	return scheduleapp.RunResult{}, sharedErrors.ErrScheduleNotFound
}

func TestScheduleEndpoints(t *testing.T) {
	stub := &stubSchedules{}
	s := NewServer(Config{Schedules: stub, Logger: zaptest.NewLogger(t)})

	do := func(method, path, body string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		s.ServeHTTP(rr, httptest.NewRequest(method, path, strings.NewReader(body)))
		return rr
	}

	rr := do(http.MethodPost, "/api/v1/schedules", `{"name":"nightly","tool":"network","target":"https://example.com","options":{"mode":"url"},"interval":"24h"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create = %d: %s", rr.Code, rr.Body.String())
	}
	var created scheduleView
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.Interval != "24h0m0s" || created.LastStatus != schedule.StatusNever || created.Options["mode"] != "url" {
		t.Fatalf("unexpected schedule: %+v", created)
	}

	for _, body := range []string{
		`{"name":"x","tool":"network","target":"https://example.com","interval":"soon"}`,
		`{"name":"x","tool":"network","target":"https://example.com","interval":"10s"}`,
		`{"name":"x","tool":"password","target":"hunter2","interval":"1h"}`,
		`not json`,
	} {
		if rr := do(http.MethodPost, "/api/v1/schedules", body); rr.Code != http.StatusBadRequest {
			t.Fatalf("create(%s) = %d, want 400", body, rr.Code)
		}
	}

	rr = do(http.MethodPost, "/api/v1/schedules/"+created.ID+"/run", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"history_id":"h-9"`) {
		t.Fatalf("run = %d: %s", rr.Code, rr.Body.String())
	}

	if rr := do(http.MethodDelete, "/api/v1/schedules/"+created.ID, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", rr.Code)
	}
	if rr := do(http.MethodDelete, "/api/v1/schedules/"+created.ID, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("second delete = %d", rr.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&backend.Error{Kind: backend.KindValidation}, http.StatusBadRequest},
		{&backend.Error{Kind: backend.KindTimeout}, http.StatusGatewayTimeout},
		{&backend.Error{Kind: backend.KindBusiness, Status: 200}, http.StatusUnprocessableEntity},
		{&backend.Error{Kind: backend.KindBusiness, Status: 500}, http.StatusBadGateway},
		{&backend.Error{Kind: backend.KindParse}, http.StatusBadGateway},
		{ErrJobNotFound, http.StatusNotFound},
		{ErrJobsClosed, http.StatusServiceUnavailable},
		{sharedErrors.ErrEmptySystemName, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
