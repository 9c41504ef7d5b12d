package phishing

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
)

func signalTypes(signals []Signal) []string {
	out := make([]string, 0, len(signals))
	for _, s := range signals {
		out = append(out, s.Type)
	}
	return out
}

func TestURLSignals(t *testing.T) {
	tests := []struct {
		url   string
		types []string
		score int
	}{
		{"https://www.google.com/search?q=go", []string{}, 0},
		{"http://192.168.10.5/login.php", []string{"ip_address", "no_https", "credential_keywords"}, 55},
		{"http://paypa1-secure-login.tk/account/verify", []string{"suspicious_tld", "brand_impersonation", "no_https", "credential_keywords"}, 70},
		{"https://user@evil.example", []string{"at_symbol"}, 25},
		{"https://xn--pple-43d.com", []string{"punycode"}, 20},
		{"https://a.b.c.d.example.com:8443/", []string{"excessive_subdomains", "non_standard_port"}, 20},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			signals := URLSignals(tt.url)
			if diff := cmp.Diff(tt.types, signalTypes(signals)); diff != "" {
				t.Fatalf("signal mismatch (-want +got):\n%s", diff)
			}
			if got := total(signals); got != tt.score {
				t.Fatalf("score = %d, want %d", got, tt.score)
			}
		})
	}
}

func TestAnalyzeURL(t *testing.T) {
	res := AnalyzeURL("http://paypa1-secure-login.tk/account/verify")
	if res.Verdict != "Likely Phishing" {
		t.Fatalf("verdict = %q", res.Verdict)
	}
	if res.PhishingScore != 70 || res.TrustScore != 30 {
		t.Fatalf("scores = %v/%v, want 70/30", res.PhishingScore, res.TrustScore)
	}
	if res.RiskLevel != assessment.SeverityHigh {
		t.Fatalf("risk level = %q", res.RiskLevel)
	}
	if res.SSLValid {
		t.Fatal("plain http should not be marked as SSL")
	}
	if res.DomainAge() != -1 {
		t.Fatalf("domain age should be unknown offline, got %v", res.DomainAge())
	}

	safe := AnalyzeURL("https://www.google.com")
	if safe.Verdict != "Likely Safe" || safe.TrustScore != 100 {
		t.Fatalf("unexpected safe result: %+v", safe)
	}
	if len(safe.Indicators) != 0 || len(safe.Recommendations) == 0 {
		t.Fatalf("safe result should have no indicators and a recommendation: %+v", safe)
	}
}

func TestAnalyzeEmail(t *testing.T) {
	msg := `From: "PayPal Support" <support@paypa1-alerts.xyz>
Subject: Notice

Dear customer,
We detected unusual activity. Your account will be suspended within 24 hours.
Please confirm your password at <a href="http://paypa1-alerts.xyz/login">https://www.paypal.com</a>.
Content-Disposition: attachment; filename="invoice.pdf.exe"
`
	signals := EmailSignals(msg)
	want := []string{"urgency", "credential_request", "generic_greeting", "mismatched_link", "suspicious_attachment"}
	if diff := cmp.Diff(want, signalTypes(signals)); diff != "" {
		t.Fatalf("signal mismatch (-want +got):\n%s", diff)
	}

	res := AnalyzeEmail(msg)
	if res.PhishingScore != 100 {
		t.Fatalf("score = %v, want capped 100", res.PhishingScore)
	}
	if res.URL != "http://paypa1-alerts.xyz/login" {
		t.Fatalf("worst link = %q", res.URL)
	}
	if len(res.Indicators) != 6 {
		t.Fatalf("expected 6 indicators, got %d", len(res.Indicators))
	}
	if res.RiskLevel != assessment.SeverityCritical {
		t.Fatalf("risk level = %q", res.RiskLevel)
	}
}

func TestAnalyzeEmailBenign(t *testing.T) {
	res := AnalyzeEmail("Hi Sam,\nLunch tomorrow at noon? Menu: https://example.com/menu\n")
	if res.PhishingScore != 0 || res.Verdict != "Likely Safe" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestLinks(t *testing.T) {
	got := Links("see https://a.example/x, and https://a.example/x. also (http://b.example/y)")
	want := []string{"https://a.example/x", "http://b.example/y"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("links mismatch (-want +got):\n%s", diff)
	}
}

func TestWithDomainAge(t *testing.T) {
	base := AnalyzeURL("https://example.com")

	young := WithDomainAge(base, 10)
	if young.PhishingScore != 25 || young.DomainAge() != 10 {
		t.Fatalf("young domain: score=%v age=%v", young.PhishingScore, young.DomainAge())
	}
	if last := young.Indicators[len(young.Indicators)-1]; last.Severity != assessment.SeverityHigh {
		t.Fatalf("young domain indicator severity = %q", last.Severity)
	}

	old := WithDomainAge(base, 400)
	if old.PhishingScore != 0 || len(old.Indicators) != 0 || old.DomainAge() != 400 {
		t.Fatalf("old domain should only record its age: %+v", old)
	}
}
