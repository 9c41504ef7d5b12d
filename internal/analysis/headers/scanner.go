package headers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/khanhnv2901/seca-suite/internal/analysis/capture"
	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
	"github.com/khanhnv2901/seca-suite/internal/domain/threatmodel"
)

// Scanner fetches a URL and grades its headers.
type Scanner struct {
	Client    *http.Client
	Limiter   *rate.Limiter
	UserAgent string
}

// NewScanner returns a scanner with a bounded client that follows at most five redirects.
func NewScanner(timeout time.Duration) *Scanner {
	return &Scanner{
		Client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		Limiter:   rate.NewLimiter(rate.Limit(2), 2),
		UserAgent: "seca-suite/headers",
	}
}

// Scan requests target with HEAD, falling back to GET when HEAD is refused.
func (s *Scanner) Scan(ctx context.Context, target string) (Report, error) {
	if err := capture.ValidateURL(target); err != nil {
		return Report{}, err
	}
	if s.Limiter != nil {
		if err := s.Limiter.Wait(ctx); err != nil {
			return Report{}, err
		}
	}

	resp, err := s.do(ctx, http.MethodHead, target)
	if err != nil || resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented {
		if resp != nil {
			resp.Body.Close()
		}
		resp, err = s.do(ctx, http.MethodGet, target)
		if err != nil {
			return Report{}, fmt.Errorf("fetch %s: %w", target, err)
		}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	final := target
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}
	r := Analyze(final, resp.StatusCode, resp.Header)
	r.Cookies = AnalyzeCookies(resp)
	for _, c := range r.Cookies {
		r.Recommendations = append(r.Recommendations, fmt.Sprintf("Set %s on cookie %q", c.Issues(), c.Name))
	}
	r.TLS = AnalyzeTLS(resp.TLS)
	if r.TLS != nil {
		r.Recommendations = append(r.Recommendations, r.TLS.Recommendations...)
	}
	return r, nil
}

func (s *Scanner) do(ctx context.Context, method, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, err
	}
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	return client.Do(req)
}

// ToNetworkResult converts a header report into the network tool's result
// shape. frameworks selects which control references are attached.
func ToNetworkResult(r Report, frameworks []string) assessment.NetworkResult {
	res := assessment.NetworkResult{
		AnalysisType:    "url",
		Target:          assessment.Text(r.URL),
		SecurityScore:   assessment.Number(r.Score),
		RiskLevel:       assessment.Text(assessment.RiskBand(float64(100 - r.Score))),
		Recommendations: assessment.TextList(append([]string{}, r.Recommendations...)),
	}

	if !r.HTTPS {
		res.Threats = append(res.Threats, threatFor("HTTPS enabled", assessment.SeverityCritical,
			"Traffic is not encrypted in transit", r.URL, frameworks))
	}
	for _, h := range r.Headers {
		check := assessment.HeaderCheck{
			Name:           assessment.Text(h.Name),
			Present:        assessment.Flag(h.Present),
			Value:          assessment.Text(h.Value),
			Severity:       assessment.Text(h.Severity),
			Recommendation: assessment.Text(h.Recommendation),
		}
		if h.Present && len(h.Issues) == 0 {
			check.Severity = assessment.SeverityInfo
		}
		res.Headers = append(res.Headers, check)

		if !h.Present && h.Severity == assessment.SeverityHigh {
			res.Threats = append(res.Threats, threatFor(h.Check, h.Severity,
				fmt.Sprintf("%s header is missing", h.Name), r.URL, frameworks))
		}
	}
	for _, c := range r.Cookies {
		severity := assessment.SeverityMedium
		if c.MissingSecure && r.HTTPS {
			severity = assessment.SeverityHigh
		}
		res.Threats = append(res.Threats, threatFor("Secure cookie attributes", severity,
			fmt.Sprintf("Cookie %q is missing %s", c.Name, c.Issues()), r.URL, frameworks))
	}
	if r.TLS != nil {
		for _, issue := range r.TLS.Issues {
			res.Threats = append(res.Threats, threatFor("TLS configuration", issue.Severity,
				fmt.Sprintf("%s [%s]", issue.Description, issue.Requirement), r.URL, frameworks))
		}
	}
	names := make([]string, 0, len(r.Disclosed))
	for name := range r.Disclosed {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		value := r.Disclosed[name]
		res.Threats = append(res.Threats, threatFor("Server information disclosure", assessment.SeverityLow,
			fmt.Sprintf("%s reveals %q", name, value), r.URL, frameworks))
	}
	res.Normalize()
	return res
}

func threatFor(check, severity, description, target string, frameworks []string) assessment.NetworkThreat {
	t := assessment.NetworkThreat{
		Type:        assessment.Text(check),
		Severity:    assessment.Text(severity),
		Description: assessment.Text(description),
		Destination: assessment.Text(target),
	}
	if refs := threatmodel.RequirementsFor(check, frameworks); len(refs) > 0 {
		t.Description = assessment.Text(fmt.Sprintf("%s (%s)", description, formatRefs(refs)))
	}
	return t
}

func formatRefs(refs map[string][]string) string {
	ids := make([]string, 0, len(refs))
	for id := range refs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, id+" "+strings.Join(refs[id], ", "))
	}
	return strings.Join(parts, "; ")
}
