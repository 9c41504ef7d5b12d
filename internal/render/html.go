package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/khanhnv2901/seca-suite/internal/analysis/capture"
	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
	"github.com/khanhnv2901/seca-suite/internal/domain/threatmodel"
)

const htmlTemplatePath = "templates/report.html"

//go:embed templates/report.html
var templateFS embed.FS

var (
	htmlTemplateFuncs = template.FuncMap{
		"markdown":   func(t assessment.Text) template.HTML { return Markdown(string(t)) },
		"scoreClass": func(n assessment.Number) string { return assessment.ScoreClass(float64(n)) },
		"severity":   func(s assessment.Text) string { return assessment.NormalizeSeverity(string(s)) },
		"upper":      strings.ToUpper,
		"join":       strings.Join,
		"sortedKeys": sortedKeys,
		"num":        func(n assessment.Number) string { return strings.TrimSuffix(formatScore(float64(n)), "/100") },
		"formatTime": func(t time.Time) string { return t.UTC().Format("2006-01-02 15:04 MST") },
	}

	htmlReportTemplate = template.Must(
		template.New("report.html").Funcs(htmlTemplateFuncs).ParseFS(templateFS, htmlTemplatePath),
	)
)

// Page is the data behind an HTML report.
type Page struct {
	Title       string
	Tool        assessment.Tool
	Target      string
	Source      assessment.Source
	Note        string
	GeneratedAt time.Time

	Questionnaire *assessment.GRCQuestionnaire
	GRC           *assessment.GRCResult
	Network       *assessment.NetworkResult
	Password      *assessment.PasswordResult
	Phishing      *assessment.PhishingResult
	ThreatModel   *assessment.ThreatModelResult
	Assistant     *assessment.AssistantReply
	Findings      []threatmodel.Finding
	Capture       *capture.Summary
}

// NewPage places a result into the matching slot of a page.
func NewPage(tool assessment.Tool, v any) (*Page, error) {
	p := &Page{Tool: tool, Title: tool.Label(), GeneratedAt: time.Now()}
	switch r := v.(type) {
	case *assessment.GRCQuestionnaire:
		p.Questionnaire = r
	case *assessment.GRCResult:
		p.GRC = r
	case *assessment.NetworkResult:
		p.Network = r
		p.Target = string(r.Target)
	case *assessment.PasswordResult:
		p.Password = r
	case *assessment.PhishingResult:
		p.Phishing = r
		p.Target = string(r.URL)
	case *assessment.ThreatModelResult:
		p.ThreatModel = r
	case *assessment.AssistantReply:
		p.Assistant = r
	case []threatmodel.Finding:
		p.Findings = r
	case *capture.Summary:
		p.Capture = r
	default:
		return nil, fmt.Errorf("no HTML renderer for %T", v)
	}
	return p, nil
}

// HTML writes a standalone HTML report.
func HTML(w io.Writer, p *Page) error {
	if err := htmlReportTemplate.Execute(w, p); err != nil {
		return fmt.Errorf("failed to execute %s template: %w", htmlReportTemplate.Name(), err)
	}
	return nil
}

func sortedKeys(m any) []string {
	var keys []string
	switch mm := m.(type) {
	case map[string]assessment.Number:
		for k := range mm {
			keys = append(keys, k)
		}
	case map[string]assessment.TextList:
		for k := range mm {
			keys = append(keys, k)
		}
	case map[string][]string:
		for k := range mm {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
