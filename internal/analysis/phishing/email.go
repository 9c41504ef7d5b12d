package phishing

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
)

var urgencyPhrases = []string{
	"urgent", "immediately", "within 24 hours", "within 48 hours", "act now", "final notice",
	"account will be suspended", "account will be closed", "suspended", "unusual activity",
	"limited time", "action required",
}

var credentialRequests = []string{
	"password", "social security", "ssn", "credit card", "card number", "cvv", "pin code",
	"login credentials", "verify your identity", "verify your account", "bank account",
}

var genericGreetings = []string{"dear customer", "dear user", "dear valued", "dear account holder", "dear client"}

var riskyExtensions = []string{
	".exe", ".scr", ".js", ".vbs", ".bat", ".cmd", ".ps1", ".jar", ".iso", ".img",
	".docm", ".xlsm", ".pptm", ".html", ".htm", ".lnk", ".hta",
}

var (
	anchorRegex     = regexp.MustCompile(`(?is)<a\s[^>]*href\s*=\s*["']([^"']+)["'][^>]*>(.*?)</a>`)
	tagRegex        = regexp.MustCompile(`<[^>]+>`)
	urlRegex        = regexp.MustCompile(`https?://[^\s"'<>)]+`)
	attachmentRegex = regexp.MustCompile(`(?i)(?:filename|name)\s*=\s*"?([^";\r\n]+)"?`)
	domainTextRegex = regexp.MustCompile(`(?i)^(?:https?://)?([a-z0-9-]+(?:\.[a-z0-9-]+)+)`)
)

// EmailSignals evaluates raw email content (headers and body, plain or HTML).
func EmailSignals(content string) []Signal {
	lower := strings.ToLower(content)
	var out []Signal

	if hit := firstMatch(lower, urgencyPhrases); hit != "" {
		out = append(out, Signal{"urgency", "Message pressures the reader (\"" + hit + "\")", assessment.SeverityMedium, 15})
	}
	if hit := firstMatch(lower, credentialRequests); hit != "" {
		out = append(out, Signal{"credential_request", "Message asks for sensitive information (\"" + hit + "\")", assessment.SeverityHigh, 25})
	}
	if hit := firstMatch(lower, genericGreetings); hit != "" {
		out = append(out, Signal{"generic_greeting", "Message uses a generic greeting", assessment.SeverityLow, 5})
	}
	if links := mismatchedLinks(content); len(links) > 0 {
		out = append(out, Signal{"mismatched_link", links[0], assessment.SeverityHigh, 25})
	}
	if names := riskyAttachments(content); len(names) > 0 {
		out = append(out, Signal{"suspicious_attachment", "Attachment type is commonly used for malware: " + strings.Join(names, ", "), assessment.SeverityHigh, 20})
	}
	return out
}

// Links returns the distinct http(s) URLs found in content, in order of appearance.
func Links(content string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range urlRegex.FindAllString(content, -1) {
		m = strings.TrimRight(m, ".,;")
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

func mismatchedLinks(content string) []string {
	var out []string
	for _, m := range anchorRegex.FindAllStringSubmatch(content, -1) {
		href, text := m[1], strings.TrimSpace(tagRegex.ReplaceAllString(m[2], ""))
		shown := domainTextRegex.FindStringSubmatch(text)
		if shown == nil {
			continue
		}
		u, err := url.Parse(href)
		if err != nil || u.Hostname() == "" {
			continue
		}
		actual := strings.ToLower(u.Hostname())
		display := strings.ToLower(shown[1])
		if actual != display && !strings.HasSuffix(actual, "."+display) {
			out = append(out, "Link text shows "+display+" but points to "+actual)
		}
	}
	return out
}

func riskyAttachments(content string) []string {
	found := map[string]bool{}
	for _, m := range attachmentRegex.FindAllStringSubmatch(content, -1) {
		name := strings.ToLower(strings.TrimSpace(m[1]))
		for _, ext := range riskyExtensions {
			if strings.HasSuffix(name, ext) {
				found[name] = true
			}
		}
	}
	out := make([]string, 0, len(found))
	for name := range found {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func firstMatch(haystack string, needles []string) string {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return n
		}
	}
	return ""
}

// AnalyzeEmail scores the message itself and adds half of the worst linked
// URL's score.
func AnalyzeEmail(content string) assessment.PhishingResult {
	signals := EmailSignals(content)

	worst, worstURL := 0, ""
	for _, link := range Links(content) {
		if s := total(URLSignals(link)); s > worst {
			worst, worstURL = s, link
		}
	}
	if worst > 0 {
		signals = append(signals, Signal{
			Type:        "suspicious_link",
			Description: "Message links to a suspicious URL: " + worstURL,
			Severity:    assessment.RiskBand(float64(worst)),
			Weight:      worst / 2,
		})
	}
	res := build(signals)
	res.URL = assessment.Text(worstURL)
	return res
}
