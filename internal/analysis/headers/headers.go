// Package headers grades the HTTP security headers of a URL. It is the local
// fallback for URL-mode network analysis.
package headers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
)

// HeaderStatus is the evaluation of one security header.
type HeaderStatus struct {
	Name           string   `json:"name"`
	Check          string   `json:"check"`
	Present        bool     `json:"present"`
	Value          string   `json:"value,omitempty"`
	Severity       string   `json:"severity"`
	Score          int      `json:"score"`
	MaxScore       int      `json:"max_score"`
	Issues         []string `json:"issues,omitempty"`
	Recommendation string   `json:"recommendation"`
}

// Report is the header analysis of a single response.
type Report struct {
	URL             string         `json:"url"`
	HTTPStatus      int            `json:"http_status"`
	HTTPS           bool           `json:"https"`
	Score           int            `json:"score"` // normalized to 0-100
	Grade           string         `json:"grade"`
	Headers         []HeaderStatus `json:"headers"`
	Missing         []string       `json:"missing"`
	Warnings        []string       `json:"warnings"`
	Recommendations []string       `json:"recommendations"`
	// Disclosed holds headers that leak server software.
	Disclosed map[string]string `json:"disclosed,omitempty"`
	// Cookies and TLS are filled by Scanner from the live response.
	Cookies []CookieFinding `json:"cookies,omitempty"`
	TLS     *TLSReport      `json:"tls,omitempty"`
}

type headerSpec struct {
	name           string
	check          string // control mapping name
	severity       string
	maxScore       int
	evaluate       func(value string) (int, []string, string)
	recommendation string
}

// Specs are evaluated in this order so reports are stable.
var specs = []headerSpec{
	{"Strict-Transport-Security", "HSTS enabled", assessment.SeverityHigh, 20, evaluateHSTS,
		"Add 'Strict-Transport-Security: max-age=31536000; includeSubDomains; preload'"},
	{"Content-Security-Policy", "Content Security Policy (CSP)", assessment.SeverityHigh, 20, evaluateCSP,
		"Define a strict Content-Security-Policy with a default-src fallback"},
	{"X-Frame-Options", "Frame Security Policy (X-Frame-Options)", assessment.SeverityHigh, 15, evaluateFrameOptions,
		"Add 'X-Frame-Options: DENY' or 'SAMEORIGIN'"},
	{"X-Content-Type-Options", "X-Content-Type-Options", assessment.SeverityHigh, 15, evaluateNoSniff,
		"Add 'X-Content-Type-Options: nosniff'"},
	{"Referrer-Policy", "Referrer Policy", assessment.SeverityMedium, 10, evaluateReferrer,
		"Add 'Referrer-Policy: strict-origin-when-cross-origin'"},
	{"Permissions-Policy", "Permissions-Policy header", assessment.SeverityMedium, 10, evaluatePermissions,
		"Add 'Permissions-Policy' to restrict powerful browser features"},
	{"Cross-Origin-Opener-Policy", "Cross-Origin-Opener-Policy header", assessment.SeverityLow, 5,
		oneOf("same-origin", "same-origin-allow-popups"), "Add 'Cross-Origin-Opener-Policy: same-origin'"},
	{"Cross-Origin-Embedder-Policy", "Cross-Origin-Embedder-Policy header", assessment.SeverityLow, 5,
		oneOf("require-corp", "credentialless"), "Add 'Cross-Origin-Embedder-Policy: require-corp'"},
}

var disclosureHeaders = []string{"Server", "X-Powered-By", "X-AspNet-Version", "X-AspNetMvc-Version"}

// Analyze grades response headers. target is the requested URL and decides
// the HTTPS check.
func Analyze(target string, status int, h http.Header) Report {
	r := Report{
		URL:             target,
		HTTPStatus:      status,
		HTTPS:           strings.HasPrefix(strings.ToLower(target), "https://"),
		Missing:         []string{},
		Warnings:        []string{},
		Recommendations: []string{},
	}

	total, maxTotal := 0, 0
	for _, spec := range specs {
		maxTotal += spec.maxScore
		st := HeaderStatus{
			Name:     spec.name,
			Check:    spec.check,
			Severity: spec.severity,
			MaxScore: spec.maxScore,
		}
		value := h.Get(spec.name)
		if value == "" {
			st.Recommendation = spec.recommendation
			r.Missing = append(r.Missing, spec.name)
			r.Recommendations = append(r.Recommendations, spec.recommendation)
		} else {
			st.Present = true
			st.Value = value
			st.Score, st.Issues, st.Recommendation = spec.evaluate(value)
			if len(st.Issues) > 0 {
				r.Recommendations = append(r.Recommendations, st.Recommendation)
			}
		}
		total += st.Score
		r.Headers = append(r.Headers, st)
	}

	if !r.HTTPS {
		r.Warnings = append(r.Warnings, "Site is served over plain HTTP")
		r.Recommendations = append(r.Recommendations, "Serve the site over HTTPS and redirect HTTP requests")
		total = total / 2
	}
	r.Warnings = append(r.Warnings, deprecatedWarnings(h)...)
	r.Disclosed = Disclosures(h)
	for _, name := range disclosureHeaders {
		if v, ok := r.Disclosed[name]; ok {
			r.Warnings = append(r.Warnings, fmt.Sprintf("%s header exposes server information: %q", name, v))
		}
	}

	r.Score = total * 100 / maxTotal
	r.Grade = grade(r.Score)
	return r
}

// Disclosures returns the information-disclosure headers present in h.
func Disclosures(h http.Header) map[string]string {
	out := map[string]string{}
	for _, name := range disclosureHeaders {
		if v := h.Get(name); v != "" {
			out[name] = v
		}
	}
	return out
}

func deprecatedWarnings(h http.Header) []string {
	var out []string
	if v := h.Get("X-XSS-Protection"); v != "" && v != "0" {
		out = append(out, "X-XSS-Protection is deprecated; set it to '0' or remove it")
	}
	if h.Get("Expect-CT") != "" {
		out = append(out, "Expect-CT is deprecated; remove it")
	}
	if h.Get("Public-Key-Pins") != "" {
		out = append(out, "Public-Key-Pins is deprecated and dangerous; remove it")
	}
	return out
}

func evaluateHSTS(value string) (int, []string, string) {
	v := strings.ToLower(value)
	score := 20
	var issues []string
	switch {
	case !strings.Contains(v, "max-age="):
		issues = append(issues, "Missing 'max-age' directive")
		score -= 10
	case strings.Contains(v, "max-age=0"):
		return 0, []string{"max-age=0 disables HSTS"}, "Set max-age to at least 31536000"
	case !strings.Contains(v, "max-age=31536000") && !strings.Contains(v, "max-age=63072000"):
		issues = append(issues, "max-age shorter than one year")
		score -= 3
	}
	if !strings.Contains(v, "includesubdomains") {
		issues = append(issues, "Missing 'includeSubDomains'")
		score -= 5
	}
	if !strings.Contains(v, "preload") {
		issues = append(issues, "Missing 'preload'")
		score -= 2
	}
	if len(issues) == 0 {
		return score, nil, "HSTS is well configured"
	}
	return max(score, 0), issues, "Strengthen the Strict-Transport-Security policy"
}

func evaluateCSP(value string) (int, []string, string) {
	v := strings.ToLower(value)
	directives := cspDirectives(v)
	score := 20
	var issues []string

	if strings.Contains(v, "'unsafe-inline'") {
		issues = append(issues, "'unsafe-inline' weakens the policy")
		score -= 5
	}
	if strings.Contains(v, "'unsafe-eval'") {
		issues = append(issues, "'unsafe-eval' allows eval()")
		score -= 5
	}
	for _, tokens := range directives {
		for _, tok := range tokens {
			if tok == "*" {
				issues = append(issues, "Wildcard source is too permissive")
				score -= 3
			}
		}
	}
	if _, ok := directives["default-src"]; !ok {
		issues = append(issues, "Missing 'default-src' fallback")
		score -= 3
	}
	for _, tok := range directives["script-src"] {
		if tok == "data:" || tok == "blob:" || strings.HasPrefix(tok, "http:") {
			issues = append(issues, fmt.Sprintf("script-src allows %s", tok))
			score -= 2
		}
	}
	if len(issues) == 0 {
		return score, nil, "CSP is well configured"
	}
	return max(score, 0), issues, "Tighten the Content-Security-Policy"
}

func cspDirectives(v string) map[string][]string {
	out := make(map[string][]string)
	for _, part := range strings.Split(v, ";") {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		out[fields[0]] = fields[1:]
	}
	return out
}

func evaluateFrameOptions(value string) (int, []string, string) {
	v := strings.ToUpper(strings.TrimSpace(value))
	switch {
	case v == "DENY" || v == "SAMEORIGIN":
		return 15, nil, "X-Frame-Options is well configured"
	case strings.HasPrefix(v, "ALLOW-FROM"):
		return 5, []string{"ALLOW-FROM is not supported by modern browsers"}, "Use CSP frame-ancestors instead"
	default:
		return 0, []string{"Invalid X-Frame-Options value"}, "Set to 'DENY' or 'SAMEORIGIN'"
	}
}

func evaluateNoSniff(value string) (int, []string, string) {
	if strings.EqualFold(strings.TrimSpace(value), "nosniff") {
		return 15, nil, "X-Content-Type-Options is well configured"
	}
	return 0, []string{"Value should be 'nosniff'"}, "Set to 'nosniff'"
}

func evaluateReferrer(value string) (int, []string, string) {
	v := strings.ToLower(value)
	for _, good := range []string{"no-referrer", "strict-origin", "same-origin"} {
		if strings.Contains(v, good) && !strings.Contains(v, "no-referrer-when-downgrade") {
			return 10, nil, "Referrer-Policy is well configured"
		}
	}
	if strings.Contains(v, "unsafe-url") || strings.Contains(v, "origin-when-cross-origin") {
		return 5, []string{"Policy may leak URLs in the referrer"}, "Use 'strict-origin-when-cross-origin' or 'no-referrer'"
	}
	return 7, []string{"Weak referrer policy"}, "Use 'strict-origin-when-cross-origin'"
}

func evaluatePermissions(value string) (int, []string, string) {
	if len(strings.TrimSpace(value)) < 10 {
		return 7, []string{"Permissions-Policy restricts very little"}, "Restrict more features such as geolocation, camera and microphone"
	}
	return 10, nil, "Permissions-Policy is present"
}

func oneOf(good ...string) func(string) (int, []string, string) {
	return func(value string) (int, []string, string) {
		v := strings.ToLower(strings.TrimSpace(value))
		for _, g := range good {
			if v == g {
				return 5, nil, "Properly configured"
			}
		}
		if v == "unsafe-none" {
			return 1, []string{"'unsafe-none' provides no isolation"}, "Set to " + good[0]
		}
		return 0, []string{"Invalid value"}, "Set to " + good[0]
	}
}

func grade(score int) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}
