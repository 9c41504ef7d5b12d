package backend

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/khanhnv2901/seca-suite/internal/analysis/capture"
	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
	"github.com/khanhnv2901/seca-suite/internal/domain/diagram"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	return New(srv.URL+"/api.php", opts...)
}

func TestPostSendsToolAndUnwrapsData(t *testing.T) {
	var gotTool, gotType string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Content-Type")
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotTool = r.PostForm.Get("tool")
		_, _ = io.WriteString(w, `{"success": true, "data": {"score": "72", "strength": "Strong", "feedback": "Add symbols"}}`)
	})

	res, meta, err := c.AnalyzePassword(context.Background(), "hunter2hunter2")
	if err != nil {
		t.Fatalf("AnalyzePassword failed: %v", err)
	}
	if gotTool != "password" || gotType != "application/x-www-form-urlencoded" {
		t.Fatalf("tool=%q content-type=%q", gotTool, gotType)
	}
	if res.Score != 72 || res.Strength != "Strong" {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(res.Feedback) != 1 || res.Feedback[0] != "Add symbols" {
		t.Fatalf("feedback = %v", res.Feedback)
	}
	if meta.Repaired {
		t.Fatal("clean response marked repaired")
	}
}

func TestPostRootAsData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success": true, "phishing_score": 80, "verdict": "Likely Phishing"}`)
	})
	res, _, err := c.AnalyzePhishing(context.Background(), PhishingInput{URL: "http://evil.example"})
	if err != nil {
		t.Fatalf("AnalyzePhishing failed: %v", err)
	}
	if res.PhishingScore != 80 || res.TrustScore != 20 {
		t.Fatalf("scores = %v/%v", res.PhishingScore, res.TrustScore)
	}
	if res.RiskLevel != assessment.SeverityCritical {
		t.Fatalf("risk level = %q", res.RiskLevel)
	}
}

func TestPostRepairsModelText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success": true, "data": "`+"```json\\n{score: 40, strength: 'Fair',}\\n```"+`"}`)
	})
	res, meta, err := c.AnalyzePassword(context.Background(), "abc")
	if err != nil {
		t.Fatalf("AnalyzePassword failed: %v", err)
	}
	if !meta.Repaired {
		t.Fatal("expected repaired meta")
	}
	if res.Score != 40 || res.Strength != "Fair" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		kind    Kind
		message string
	}{
		{"http", http.StatusInternalServerError, `{"error": "database down"}`, KindHTTP, "database down"},
		{"http plain", http.StatusBadGateway, `<html>bad gateway</html>`, KindHTTP, "Bad Gateway"},
		{"parse", http.StatusOK, `Warning: undefined index in api.php on line 3`, KindParse, "response is not valid JSON"},
		{"business", http.StatusOK, `{"success": false, "error": "Invalid magic number"}`, KindBusiness, "Invalid magic number"},
		{"business message", http.StatusOK, `{"success": "false", "message": "quota exceeded"}`, KindBusiness, "quota exceeded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.Post(context.Background(), Request{Tool: assessment.ToolNetwork})
			var be *Error
			if !errors.As(err, &be) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if be.Kind != tt.kind || be.Message != tt.message {
				t.Fatalf("kind=%s message=%q, want %s %q", be.Kind, be.Message, tt.kind, tt.message)
			}
			if be.Status != tt.status {
				t.Fatalf("status = %d", be.Status)
			}
		})
	}
}

func TestBusinessErrorMagicHint(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success": false, "error": "Invalid magic number"}`)
	})
	_, err := c.Post(context.Background(), Request{Tool: assessment.ToolNetwork})
	var be *Error
	if !errors.As(err, &be) || be.Hint != capture.HintMagic {
		t.Fatalf("expected magic number hint, got %v", err)
	}
	if !strings.Contains(be.UserMessage(), "Hint: ") {
		t.Fatalf("user message lacks hint: %q", be.UserMessage())
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	c := New(endpoint)
	_, err := c.Post(context.Background(), Request{Tool: assessment.ToolPassword})
	if !IsKind(err, KindNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	if !Fallbackable(err) {
		t.Fatal("network errors should allow local fallback")
	}
}

func TestTimeoutIsDistinct(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, WithTimeout(assessment.ToolGRC, 50*time.Millisecond))
	defer close(release)

	_, err := c.Post(context.Background(), Request{Tool: assessment.ToolGRC})
	var be *Error
	if !errors.As(err, &be) || be.Kind != KindTimeout {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if !strings.Contains(be.UserMessage(), "timed out") {
		t.Fatalf("unexpected message %q", be.UserMessage())
	}
}

func TestDefaultGRCTimeout(t *testing.T) {
	c := New("http://localhost/api.php")
	if got := c.timeout(assessment.ToolGRC); got != 5*time.Minute {
		t.Fatalf("GRC timeout = %v, want 5m", got)
	}
}

func TestSingleInFlightPerTool(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.FormValue("tool") == "password" {
			entered <- struct{}{}
			<-release
		}
		_, _ = io.WriteString(w, `{"success": true, "data": {}}`)
	})

	done := make(chan error, 1)
	go func() {
		_, err := c.Post(context.Background(), Request{Tool: assessment.ToolPassword})
		done <- err
	}()
	<-entered

	if !c.Busy(assessment.ToolPassword) {
		t.Fatal("tool should be busy")
	}
	_, err := c.Post(context.Background(), Request{Tool: assessment.ToolPassword})
	if !IsKind(err, KindBusy) {
		t.Fatalf("expected busy error, got %v", err)
	}
	if _, err := c.Post(context.Background(), Request{Tool: assessment.ToolPhishing}); err != nil {
		t.Fatalf("other tools must not be blocked: %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	if c.Busy(assessment.ToolPassword) {
		t.Fatal("guard not released")
	}
	if calls.Load() != 2 {
		t.Fatalf("server saw %d calls, want 2", calls.Load())
	}
}

func TestAnalyzeCaptureUploadsMultipart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "traffic.pcap")
	hdr := make([]byte, 24+16+64)
	binary.LittleEndian.PutUint32(hdr[0:4], 0xa1b2c3d4)
	binary.LittleEndian.PutUint32(hdr[20:24], 1)
	binary.LittleEndian.PutUint32(hdr[32:36], 64)
	binary.LittleEndian.PutUint32(hdr[36:40], 64)
	if err := os.WriteFile(path, hdr, 0o600); err != nil {
		t.Fatal(err)
	}

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		f, fh, err := r.FormFile("pcap_file")
		if err != nil {
			t.Errorf("missing file: %v", err)
			return
		}
		defer f.Close()
		if fh.Filename != "traffic.pcap" || fh.Size != int64(len(hdr)) {
			t.Errorf("file %s size %d", fh.Filename, fh.Size)
		}
		if r.FormValue("tool") != "network" || r.FormValue("analysis_type") != "pcap" {
			t.Errorf("fields: %v", r.MultipartForm.Value)
		}
		_, _ = io.WriteString(w, `{"success": true, "data": {"security_score": 64, "summary": {"total_packets": 1}}}`)
	})

	var last atomic.Int64
	res, _, err := c.AnalyzeCapture(context.Background(), path, func(sent, total int64) { last.Store(sent) })
	if err != nil {
		t.Fatalf("AnalyzeCapture failed: %v", err)
	}
	if res.SecurityScore != 64 || res.Summary.TotalPackets != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if last.Load() < int64(len(hdr)) {
		t.Fatalf("progress reported %d bytes, want at least %d", last.Load(), len(hdr))
	}
}

func TestValidationBlocksSend(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { calls.Add(1) })

	empty := filepath.Join(t.TempDir(), "empty.pcap")
	if err := os.WriteFile(empty, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	checks := []func() error{
		func() error { _, _, err := c.AnalyzeCapture(context.Background(), empty, nil); return err },
		func() error { _, _, err := c.AnalyzeURL(context.Background(), "not a url"); return err },
		func() error { _, _, err := c.AnalyzePassword(context.Background(), ""); return err },
		func() error { _, _, err := c.AnalyzePhishing(context.Background(), PhishingInput{}); return err },
		func() error { _, _, err := c.AskAssistant(context.Background(), "  ", ""); return err },
		func() error { _, _, err := c.SubmitGRC(context.Background(), GRCSubmission{}); return err },
		func() error {
			_, _, err := c.AnalyzeThreatModel(context.Background(), diagram.SystemData{Name: "shop"})
			return err
		},
	}
	for i, check := range checks {
		err := check()
		if !IsKind(err, KindValidation) {
			t.Fatalf("check %d: expected validation error, got %v", i, err)
		}
		if Fallbackable(err) {
			t.Fatalf("check %d: validation errors must not fall back", i)
		}
	}
	if n := calls.Load(); n != 0 {
		t.Fatalf("validation failures sent %d requests", n)
	}

	var be *Error
	_ = errors.As(checks[0](), &be)
	if be.Hint != capture.HintEmpty {
		t.Fatalf("capture hint = %q", be.Hint)
	}
}

func TestAnalyzeThreatModelFields(t *testing.T) {
	var systemData, methodologies string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		systemData = r.FormValue("system_data")
		methodologies = r.FormValue("methodologies")
		_, _ = io.WriteString(w, `{"success": true, "data": {"risk_score": 55, "threats": [{"title": "SQLi", "severity": "high"}]}}`)
	})
	data := diagram.SystemData{
		Name:       "shop",
		Components: []diagram.Component{{ID: "c1", Name: "db", Type: "database"}},
	}
	res, _, err := c.AnalyzeThreatModel(context.Background(), data)
	if err != nil {
		t.Fatalf("AnalyzeThreatModel failed: %v", err)
	}
	if methodologies != "stride" {
		t.Fatalf("methodologies = %q, want default stride", methodologies)
	}
	if !strings.Contains(systemData, `"name":"shop"`) {
		t.Fatalf("system_data = %s", systemData)
	}
	if res.RiskLevel != assessment.SeverityMedium || len(res.Threats) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}
