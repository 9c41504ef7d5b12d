// Package phishing implements the offline heuristics for URL and email
// phishing checks. The scores are coarse: each signal adds a fixed weight and
// the sum is capped at 100.
package phishing

import (
	"net"
	"net/url"
	"strings"

	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
)

// Signal is one heuristic hit with the weight it adds to the phishing score.
type Signal struct {
	Type        string
	Description string
	Severity    string
	Weight      int
}

const (
	longURLLength   = 75
	maxSubdomains   = 3
	maxHyphens      = 3
	weightCap       = 100
	defaultHTTPPort = "80"
	defaultTLSPort  = "443"
)

var suspiciousTLDs = map[string]bool{
	"tk": true, "ml": true, "ga": true, "cf": true, "gq": true, "xyz": true, "top": true,
	"zip": true, "mov": true, "click": true, "country": true, "work": true, "loan": true,
	"support": true, "rest": true, "cam": true,
}

var credentialKeywords = []string{
	"login", "signin", "sign-in", "verify", "verification", "account", "update", "secure",
	"banking", "password", "confirm", "unlock", "wallet", "billing",
}

var brands = []string{
	"paypal", "apple", "microsoft", "office365", "outlook", "google", "amazon", "netflix",
	"facebook", "instagram", "linkedin", "dropbox", "docusign", "wellsfargo", "coinbase",
}

var homoglyphs = strings.NewReplacer("0", "o", "1", "l", "3", "e", "4", "a", "5", "s", "7", "t", "rn", "m", "vv", "w")

// URLSignals evaluates raw against the URL heuristics. Unparseable input is
// itself a signal.
func URLSignals(raw string) []Signal {
	raw = strings.TrimSpace(raw)
	target := raw
	if !strings.Contains(target, "://") {
		target = "http://" + target
	}
	u, err := url.Parse(target)
	if err != nil || u.Hostname() == "" {
		return []Signal{{"malformed_url", "URL could not be parsed", assessment.SeverityMedium, 20}}
	}

	var out []Signal
	host := strings.ToLower(u.Hostname())

	if net.ParseIP(host) != nil {
		out = append(out, Signal{"ip_address", "Host is a raw IP address instead of a domain name", assessment.SeverityHigh, 30})
	}
	if u.User != nil {
		out = append(out, Signal{"at_symbol", "URL contains '@', which hides the real destination", assessment.SeverityHigh, 25})
	}
	if strings.Contains(host, "xn--") {
		out = append(out, Signal{"punycode", "Domain uses punycode and may imitate another domain", assessment.SeverityMedium, 20})
	}

	labels := strings.Split(host, ".")
	if net.ParseIP(host) == nil {
		if len(labels)-2 > maxSubdomains {
			out = append(out, Signal{"excessive_subdomains", "Domain has an unusual number of subdomains", assessment.SeverityMedium, 15})
		}
		if tld := labels[len(labels)-1]; suspiciousTLDs[tld] {
			out = append(out, Signal{"suspicious_tld", "Top-level domain ." + tld + " is common in phishing campaigns", assessment.SeverityMedium, 15})
		}
		if strings.Count(strings.TrimPrefix(registrable(labels), "xn--"), "-") >= maxHyphens {
			out = append(out, Signal{"hyphenated_domain", "Domain contains many hyphens", assessment.SeverityLow, 5})
		}
		if brand, ok := lookalike(labels); ok {
			out = append(out, Signal{"brand_impersonation", "Domain imitates " + brand + " but is not owned by it", assessment.SeverityHigh, 30})
		}
	}

	if len(raw) > longURLLength {
		out = append(out, Signal{"long_url", "URL is unusually long", assessment.SeverityLow, 10})
	}
	if u.Scheme != "https" {
		out = append(out, Signal{"no_https", "Connection is not encrypted with HTTPS", assessment.SeverityMedium, 15})
	}
	if port := u.Port(); port != "" && port != defaultHTTPPort && port != defaultTLSPort {
		out = append(out, Signal{"non_standard_port", "URL uses non-standard port " + port, assessment.SeverityLow, 5})
	}

	rest := strings.ToLower(u.EscapedPath() + "?" + u.RawQuery)
	for _, kw := range credentialKeywords {
		if strings.Contains(rest, kw) {
			out = append(out, Signal{"credential_keywords", "Path asks for credentials or account action (" + kw + ")", assessment.SeverityMedium, 10})
			break
		}
	}
	return out
}

// registrable approximates the registrable domain by its last two labels.
func registrable(labels []string) string {
	if len(labels) < 2 {
		return strings.Join(labels, ".")
	}
	return labels[len(labels)-2] + "." + labels[len(labels)-1]
}

// lookalike reports a brand named in the host, directly or through digit
// substitution, when the registrable domain is not the brand itself.
func lookalike(labels []string) (string, bool) {
	if len(labels) < 2 {
		return "", false
	}
	owner := labels[len(labels)-2]
	for _, brand := range brands {
		if owner == brand {
			return "", false
		}
	}
	host := strings.Join(labels, ".")
	folded := homoglyphs.Replace(host)
	for _, brand := range brands {
		if strings.Contains(host, brand) || strings.Contains(folded, brand) {
			return brand, true
		}
	}
	return "", false
}

// AnalyzeURL runs the URL heuristics and builds a result.
func AnalyzeURL(raw string) assessment.PhishingResult {
	signals := URLSignals(raw)
	res := build(signals)
	res.URL = assessment.Text(strings.TrimSpace(raw))
	res.SSLValid = assessment.Flag(strings.HasPrefix(strings.ToLower(strings.TrimSpace(raw)), "https://"))
	return res
}
