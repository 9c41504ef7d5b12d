package render

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/khanhnv2901/seca-suite/internal/analysis/capture"
	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
	"github.com/khanhnv2901/seca-suite/internal/domain/threatmodel"
)

// textWriter remembers the first write error so renderers can print freely.
type textWriter struct {
	w   io.Writer
	err error
}

func (t *textWriter) printf(format string, args ...any) {
	if t.err != nil {
		return
	}
	_, t.err = fmt.Fprintf(t.w, format, args...)
}

func (t *textWriter) section(title string) {
	t.printf("\n%s\n", colorTitle(title))
}

func (t *textWriter) list(title string, items []string) {
	if len(items) == 0 {
		return
	}
	t.section(title)
	for _, it := range items {
		t.printf("  - %s\n", it)
	}
}

func (t *textWriter) table(header string, rows [][]string) {
	if t.err != nil || len(rows) == 0 {
		return
	}
	tw := tabwriter.NewWriter(t.w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  "+header)
	for _, r := range rows {
		fmt.Fprintln(tw, "  "+strings.Join(r, "\t"))
	}
	t.err = tw.Flush()
}

// Text writes a human-readable rendering of a result.
func Text(w io.Writer, v any) error {
	t := &textWriter{w: w}
	switch r := v.(type) {
	case *assessment.GRCQuestionnaire:
		grcQuestionnaireText(t, r)
	case *assessment.GRCResult:
		grcText(t, r)
	case *assessment.NetworkResult:
		networkText(t, r)
	case *assessment.PasswordResult:
		passwordText(t, r)
	case *assessment.PhishingResult:
		phishingText(t, r)
	case *assessment.ThreatModelResult:
		threatModelText(t, r)
	case *assessment.AssistantReply:
		t.printf("%s\n\n%s\n", colorMuted("model: "+string(r.Model)), r.Response)
	case []threatmodel.Finding:
		findingsText(t, r)
	case *capture.Summary:
		captureText(t, r)
	default:
		return fmt.Errorf("no text renderer for %T", v)
	}
	return t.err
}

func grcQuestionnaireText(t *textWriter, q *assessment.GRCQuestionnaire) {
	t.printf("%s %s (%d questions)\n", colorTitle("Framework:"), q.Framework.Or("-"), len(q.Questions))
	for _, cat := range q.Categories() {
		t.section(cat)
		for _, qq := range q.Questions {
			if string(qq.Category) != cat {
				continue
			}
			t.printf("  [%s] %s %s\n", qq.ID, qq.Text, colorMuted("("+strings.Join(qq.Options, "/")+")"))
		}
	}
}

func grcText(t *textWriter, r *assessment.GRCResult) {
	t.printf("%s %s   %s %s\n", colorTitle("Overall score:"), Score(float64(r.OverallScore)), colorTitle("Risk:"), Severity(string(r.RiskLevel)))
	if r.Summary != "" {
		t.printf("\n%s\n", r.Summary)
	}

	if len(r.CategoryScores) > 0 {
		t.section("Category scores")
		names := make([]string, 0, len(r.CategoryScores))
		for k := range r.CategoryScores {
			names = append(names, k)
		}
		sort.Strings(names)
		rows := make([][]string, 0, len(names))
		for _, n := range names {
			rows = append(rows, []string{n, Score(float64(r.CategoryScores[n]))})
		}
		t.table("CATEGORY\tSCORE", rows)
	}

	if len(r.Frameworks) > 0 {
		t.section("Compliance status")
		rows := make([][]string, 0, len(r.Frameworks))
		for _, f := range r.Frameworks {
			rows = append(rows, []string{string(f.Name), Score(float64(f.Score)), f.Status.Or("-")})
		}
		t.table("FRAMEWORK\tSCORE\tSTATUS", rows)
	}

	if len(r.Gaps) > 0 {
		t.section("Gaps")
		for _, g := range r.Gaps {
			t.printf("  %s %s: %s\n", Severity(string(g.Severity)), g.Area.Or("General"), g.Description)
			if g.Recommendation != "" {
				t.printf("      %s %s\n", colorMuted("->"), g.Recommendation)
			}
		}
	}
	t.list("Recommendations", r.Recommendations)
	t.list("Roadmap", r.Roadmap)
}

func networkText(t *textWriter, r *assessment.NetworkResult) {
	t.printf("%s %s", colorTitle("Analysis:"), r.AnalysisType)
	if r.Target != "" {
		t.printf(" of %s", r.Target)
	}
	t.printf("\n%s %s   %s %s\n", colorTitle("Security score:"), Score(float64(r.SecurityScore)), colorTitle("Risk:"), Severity(string(r.RiskLevel)))

	if s := r.Summary; s.TotalPackets > 0 || s.TotalBytes > 0 {
		t.section("Traffic")
		t.printf("  packets %d, bytes %d, duration %.2fs\n", s.TotalPackets.Int(), s.TotalBytes.Int(), float64(s.Duration))
		if len(s.Protocols) > 0 {
			names := make([]string, 0, len(s.Protocols))
			for k := range s.Protocols {
				names = append(names, k)
			}
			sort.Slice(names, func(i, j int) bool {
				if s.Protocols[names[i]] != s.Protocols[names[j]] {
					return s.Protocols[names[i]] > s.Protocols[names[j]]
				}
				return names[i] < names[j]
			})
			rows := make([][]string, 0, len(names))
			for _, n := range names {
				rows = append(rows, []string{n, fmt.Sprint(s.Protocols[n].Int())})
			}
			t.table("PROTOCOL\tCOUNT", rows)
		}
		if len(s.TopTalkers) > 0 {
			rows := make([][]string, 0, len(s.TopTalkers))
			for _, tk := range s.TopTalkers {
				rows = append(rows, []string{string(tk.Address), fmt.Sprint(tk.Packets.Int()), fmt.Sprint(tk.Bytes.Int())})
			}
			t.table("HOST\tPACKETS\tBYTES", rows)
		}
	}

	if len(r.Headers) > 0 {
		t.section("Security headers")
		rows := make([][]string, 0, len(r.Headers))
		for _, h := range r.Headers {
			state := colorLow("present")
			if !h.Present {
				state = colorHigh("missing")
			}
			rows = append(rows, []string{string(h.Name), state, Severity(string(h.Severity))})
		}
		t.table("HEADER\tSTATE\tSEVERITY", rows)
	}

	if len(r.Threats) > 0 {
		t.section("Threats")
		for _, th := range r.Threats {
			t.printf("  %s %s: %s\n", Severity(string(th.Severity)), th.Type, th.Description)
		}
	}
	t.list("Recommendations", r.Recommendations)
	if r.AIAnalysis != "" {
		t.section("AI analysis")
		t.printf("%s\n", r.AIAnalysis)
	}
}

func passwordText(t *textWriter, r *assessment.PasswordResult) {
	t.printf("%s %s (%s)\n", colorTitle("Strength:"), Score(float64(r.Score)), r.Strength)
	t.printf("%s %s   %s %.1f bits   %s %d\n",
		colorTitle("Crack time:"), r.CrackTime, colorTitle("Entropy:"), float64(r.Entropy), colorTitle("Length:"), r.Length.Int())

	mark := func(ok assessment.Flag) string {
		if ok {
			return colorLow("yes")
		}
		return colorMuted("no")
	}
	t.printf("  lowercase %s  uppercase %s  digits %s  special %s\n",
		mark(r.Classes.Lowercase), mark(r.Classes.Uppercase), mark(r.Classes.Digits), mark(r.Classes.Special))
	if r.Common {
		t.printf("  %s\n", colorCritical("found in common password list"))
	}
	t.list("Feedback", r.Feedback)
	t.list("Suggestions", r.Suggestions)
	if r.AIAnalysis != "" {
		t.section("AI analysis")
		t.printf("%s\n", r.AIAnalysis)
	}
}

func phishingText(t *textWriter, r *assessment.PhishingResult) {
	if r.URL != "" {
		t.printf("%s %s\n", colorTitle("URL:"), r.URL)
	}
	t.printf("%s %s   %s %s   %s %s\n",
		colorTitle("Verdict:"), severityColor(string(r.RiskLevel))(string(r.Verdict)),
		colorTitle("Phishing score:"), RiskScore(float64(r.PhishingScore)),
		colorTitle("Trust:"), Score(float64(r.TrustScore)))
	if age := r.DomainAge(); age >= 0 {
		t.printf("%s %d days (%s)\n", colorTitle("Domain age:"), int(age), Severity(assessment.DomainAgeSeverity(age)))
	}
	if r.SSLValid {
		t.printf("%s %s\n", colorTitle("TLS:"), colorLow("valid"))
	} else {
		t.printf("%s %s\n", colorTitle("TLS:"), colorHigh("not valid"))
	}

	if len(r.Indicators) > 0 {
		t.section("Indicators")
		for _, in := range r.Indicators {
			t.printf("  %s %s: %s\n", Severity(string(in.Severity)), in.Type, in.Description)
		}
	}
	t.list("Recommendations", r.Recommendations)
	if r.AIAnalysis != "" {
		t.section("AI analysis")
		t.printf("%s\n", r.AIAnalysis)
	}
}

func threatModelText(t *textWriter, r *assessment.ThreatModelResult) {
	t.printf("%s %s   %s %s\n", colorTitle("Risk score:"), RiskScore(float64(r.RiskScore)), colorTitle("Risk:"), Severity(string(r.RiskLevel)))
	if r.Summary != "" {
		t.printf("\n%s\n", r.Summary)
	}

	counts := r.CountBySeverity()
	var parts []string
	for _, sev := range []string{assessment.SeverityCritical, assessment.SeverityHigh, assessment.SeverityMedium, assessment.SeverityLow} {
		if counts[sev] > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", Severity(sev), counts[sev]))
		}
	}
	if len(parts) > 0 {
		t.printf("%s %s\n", colorTitle("Threats:"), strings.Join(parts, "  "))
	}

	for _, th := range r.Threats {
		t.printf("\n  %s %s %s\n", colorMuted(string(th.ID)), Severity(string(th.Severity)), th.Title)
		var meta []string
		for _, kv := range [][2]string{{"category", string(th.Category)}, {"component", string(th.Component)}, {"likelihood", string(th.Likelihood)}, {"impact", string(th.Impact)}} {
			if kv[1] != "" {
				meta = append(meta, kv[0]+"="+kv[1])
			}
		}
		if len(meta) > 0 {
			t.printf("      %s\n", colorMuted(strings.Join(meta, " ")))
		}
		if th.Description != "" {
			t.printf("      %s\n", th.Description)
		}
		for _, m := range th.Mitigations {
			t.printf("      %s %s\n", colorLow("+"), m)
		}
	}

	t.list("Attack paths", r.AttackPaths)
	if len(r.Compliance) > 0 {
		t.section("Compliance mapping")
		names := make([]string, 0, len(r.Compliance))
		for k := range r.Compliance {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, n := range names {
			t.printf("  %s: %s\n", n, strings.Join(r.Compliance[n], ", "))
		}
	}
	t.list("Recommendations", r.Recommendations)
}

func findingsText(t *textWriter, findings []threatmodel.Finding) {
	if len(findings) == 0 {
		t.printf("%s\n", colorLow("No structural issues found."))
		return
	}
	t.printf("%s %d\n", colorTitle("Findings:"), len(findings))
	for _, f := range findings {
		t.printf("  %s %s: %s\n", Severity(f.Severity), f.Threat, f.Subject)
		t.printf("      %s\n", f.Detail)
		if len(f.Requirements) > 0 {
			names := make([]string, 0, len(f.Requirements))
			for k := range f.Requirements {
				names = append(names, k)
			}
			sort.Strings(names)
			for _, n := range names {
				t.printf("      %s %s\n", colorMuted(n+":"), strings.Join(f.Requirements[n], ", "))
			}
		}
	}
}

func captureText(t *textWriter, s *capture.Summary) {
	t.printf("%s %s (%s, snaplen %d)\n", colorTitle("Capture:"), s.Format, s.LinkName, s.SnapLen)
	t.printf("  packets %d, bytes %d, duration %s\n", s.Packets, s.Bytes, s.Duration)
	if !s.FirstPacket.IsZero() {
		t.printf("  first %s, last %s\n", s.FirstPacket.Format("2006-01-02 15:04:05.000"), s.LastPacket.Format("2006-01-02 15:04:05.000"))
	}
	if s.Truncated {
		t.printf("  %s\n", colorMedium("capture ends with a truncated record"))
	}
}
