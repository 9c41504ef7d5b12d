package headers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
)

func secureHeaders() http.Header {
	h := http.Header{}
	h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	h.Set("Content-Security-Policy", "default-src 'self'; script-src 'self'")
	h.Set("X-Frame-Options", "DENY")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
	h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
	h.Set("Cross-Origin-Opener-Policy", "same-origin")
	h.Set("Cross-Origin-Embedder-Policy", "require-corp")
	return h
}

func TestAnalyzeAllPresent(t *testing.T) {
	r := Analyze("https://example.com", 200, secureHeaders())

	if r.Score != 100 || r.Grade != "A" {
		t.Fatalf("score=%d grade=%s, want 100/A", r.Score, r.Grade)
	}
	if len(r.Missing) != 0 {
		t.Fatalf("expected no missing headers, got %v", r.Missing)
	}
	if len(r.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", r.Warnings)
	}
}

func TestAnalyzeAllMissing(t *testing.T) {
	r := Analyze("https://example.com", 200, http.Header{})

	if r.Score != 0 || r.Grade != "F" {
		t.Fatalf("score=%d grade=%s, want 0/F", r.Score, r.Grade)
	}
	if len(r.Missing) != len(specs) {
		t.Fatalf("expected %d missing headers, got %d", len(specs), len(r.Missing))
	}
	if len(r.Recommendations) != len(specs) {
		t.Fatalf("expected one recommendation per missing header, got %d", len(r.Recommendations))
	}
}

func TestAnalyzePlainHTTPHalvesScore(t *testing.T) {
	r := Analyze("http://example.com", 200, secureHeaders())
	if r.HTTPS {
		t.Fatal("plain http reported as HTTPS")
	}
	if r.Score != 50 {
		t.Fatalf("score = %d, want 50", r.Score)
	}
	if r.Grade != "F" {
		t.Fatalf("grade = %s, want F", r.Grade)
	}
}

func TestAnalyzeDisclosureAndDeprecated(t *testing.T) {
	h := secureHeaders()
	h.Set("Server", "nginx/1.18.0")
	h.Set("X-Powered-By", "PHP/7.4")
	h.Set("X-XSS-Protection", "1; mode=block")

	r := Analyze("https://example.com", 200, h)
	if len(r.Disclosed) != 2 || r.Disclosed["Server"] != "nginx/1.18.0" {
		t.Fatalf("unexpected disclosures: %v", r.Disclosed)
	}
	if len(r.Warnings) != 3 {
		t.Fatalf("expected 3 warnings, got %v", r.Warnings)
	}
}

func TestEvaluateHSTS(t *testing.T) {
	tests := []struct {
		value     string
		score     int
		hasIssues bool
	}{
		{"max-age=31536000; includeSubDomains; preload", 20, false},
		{"max-age=31536000; preload", 15, true},
		{"max-age=0", 0, true},
		{"max-age=600; includeSubDomains; preload", 17, true},
		{"includeSubDomains", 8, true},
	}
	for _, tt := range tests {
		score, issues, _ := evaluateHSTS(tt.value)
		if score != tt.score {
			t.Fatalf("evaluateHSTS(%q) score = %d, want %d", tt.value, score, tt.score)
		}
		if (len(issues) > 0) != tt.hasIssues {
			t.Fatalf("evaluateHSTS(%q) issues = %v", tt.value, issues)
		}
	}
}

func TestEvaluateCSP(t *testing.T) {
	score, issues, _ := evaluateCSP("script-src * 'unsafe-inline' 'unsafe-eval' data:")
	if score != 2 {
		t.Fatalf("score = %d, want 2 (issues %v)", score, issues)
	}
	if len(issues) != 5 {
		t.Fatalf("expected 5 issues, got %v", issues)
	}
}

func TestEvaluateCrossOrigin(t *testing.T) {
	coop := oneOf("same-origin", "same-origin-allow-popups")
	if s, _, _ := coop("same-origin-allow-popups"); s != 5 {
		t.Fatalf("score = %d, want 5", s)
	}
	if s, _, _ := coop("unsafe-none"); s != 1 {
		t.Fatalf("score = %d, want 1", s)
	}
	if s, _, _ := coop("bogus"); s != 0 {
		t.Fatalf("score = %d, want 0", s)
	}
}

func TestScanFallsBackToGet(t *testing.T) {
	var (
		mu      sync.Mutex
		methods []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		methods = append(methods, r.Method)
		mu.Unlock()
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("X-Frame-Options", "SAMEORIGIN")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Server", "Apache")
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	s := NewScanner(5 * time.Second)
	s.Limiter = nil
	r, err := s.Scan(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if strings.Join(methods, ",") != "HEAD,GET" {
		t.Fatalf("methods = %v, want HEAD then GET", methods)
	}
	if r.HTTPStatus != 200 {
		t.Fatalf("status = %d", r.HTTPStatus)
	}
	// 30 of 100 points over plain http.
	if r.Score != 15 {
		t.Fatalf("score = %d, want 15", r.Score)
	}
}

func TestScanRejectsBadURL(t *testing.T) {
	s := NewScanner(time.Second)
	if _, err := s.Scan(context.Background(), "file:///etc/passwd"); err == nil {
		t.Fatal("expected error for non-http URL")
	}
}

func TestToNetworkResult(t *testing.T) {
	h := http.Header{}
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Server", "nginx")
	r := Analyze("http://example.com", 200, h)

	res := ToNetworkResult(r, []string{"pci dss"})
	if res.AnalysisType != "url" || res.Target != "http://example.com" {
		t.Fatalf("unexpected identity fields: %+v", res)
	}
	if len(res.Headers) != len(specs) {
		t.Fatalf("expected %d header checks, got %d", len(specs), len(res.Headers))
	}
	if res.Threats[0].Type != "HTTPS enabled" || res.Threats[0].Severity != assessment.SeverityCritical {
		t.Fatalf("first threat should be missing HTTPS, got %+v", res.Threats[0])
	}
	if !strings.Contains(string(res.Threats[0].Description), "pci_dss") {
		t.Fatalf("expected PCI DSS reference in %q", res.Threats[0].Description)
	}
	last := res.Threats[len(res.Threats)-1]
	if last.Type != "Server information disclosure" {
		t.Fatalf("last threat should be disclosure, got %+v", last)
	}
	if res.RiskLevel != assessment.SeverityCritical {
		t.Fatalf("risk level = %q, want critical", res.RiskLevel)
	}
}
