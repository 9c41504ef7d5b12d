package assessment

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	sharedErrors "github.com/khanhnv2901/seca-suite/internal/shared/errors"
)

func TestScoreClass(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{85, ClassExcellent},
		{80, ClassExcellent},
		{65, ClassGood},
		{45, ClassModerate},
		{25, ClassPoor},
		{5, ClassCritical},
		{0, ClassCritical},
	}
	for _, tt := range tests {
		if got := ScoreClass(tt.score); got != tt.want {
			t.Fatalf("ScoreClass(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestDomainAgeSeverity(t *testing.T) {
	tests := []struct {
		days float64
		want string
	}{
		{10, SeverityHigh},
		{29, SeverityHigh},
		{30, SeverityMedium},
		{364, SeverityMedium},
		{400, SeverityLow},
		{-1, SeverityUnknown},
	}
	for _, tt := range tests {
		if got := DomainAgeSeverity(tt.days); got != tt.want {
			t.Fatalf("DomainAgeSeverity(%v) = %q, want %q", tt.days, got, tt.want)
		}
	}
}

func TestLenientScalars(t *testing.T) {
	var payload struct {
		A Number   `json:"a"`
		B Number   `json:"b"`
		C Number   `json:"c"`
		D Text     `json:"d"`
		E TextList `json:"e"`
		F TextList `json:"f"`
		G TextList `json:"g"`
		H Flag     `json:"h"`
		I Number   `json:"i"`
	}
	raw := `{
		"a": "85%",
		"b": null,
		"c": 12.5,
		"d": 42,
		"e": "single tip",
		"f": ["one", 2, {"recommendation": "three"}, "", null],
		"g": null,
		"h": "yes",
		"i": "n/a"
	}`
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if payload.A != 85 || payload.B != 0 || payload.C != 12.5 || payload.I != 0 {
		t.Fatalf("unexpected numbers: %v %v %v %v", payload.A, payload.B, payload.C, payload.I)
	}
	if payload.D != "42" {
		t.Fatalf("unexpected text %q", payload.D)
	}
	if diff := cmp.Diff(TextList{"single tip"}, payload.E); diff != "" {
		t.Fatalf("single string list mismatch:\n%s", diff)
	}
	if diff := cmp.Diff(TextList{"one", "2", "three"}, payload.F); diff != "" {
		t.Fatalf("mixed list mismatch:\n%s", diff)
	}
	if payload.G == nil || len(payload.G) != 0 {
		t.Fatalf("null list should decode to empty, got %#v", payload.G)
	}
	if !payload.H {
		t.Fatal("expected flag to be true")
	}
}

func TestLenientNumberWrappers(t *testing.T) {
	tests := []struct {
		raw  string
		want Number
	}{
		{`{"value": 72}`, 72},
		{`{"score": "64%"}`, 64},
		{`{"label": "high"}`, 0},
		{`[80, 90]`, 80},
		{`["55"]`, 55},
		{`[]`, 0},
	}
	for _, tt := range tests {
		var n Number
		if err := json.Unmarshal([]byte(tt.raw), &n); err != nil {
			t.Fatalf("Number(%s) failed: %v", tt.raw, err)
		}
		if n != tt.want {
			t.Fatalf("Number(%s) = %v, want %v", tt.raw, n, tt.want)
		}
	}
}

func TestResultsSurviveOddShapes(t *testing.T) {
	var pw PasswordResult
	if err := json.Unmarshal([]byte(`{"score":{"value":72},"strength":"Strong","character_types":"mixed"}`), &pw); err != nil {
		t.Fatalf("password result failed: %v", err)
	}
	if pw.Score != 72 || pw.Strength != "Strong" || pw.Classes.Count() != 0 {
		t.Fatalf("unexpected password result: %+v", pw)
	}

	var nr NetworkResult
	if err := json.Unmarshal([]byte(`{"security_score":[80]}`), &nr); err != nil {
		t.Fatalf("network result failed: %v", err)
	}
	if nr.SecurityScore != 80 {
		t.Fatalf("security score = %v, want 80", nr.SecurityScore)
	}
}

func TestCharacterClassesForms(t *testing.T) {
	tests := []struct {
		raw  string
		want CharacterClasses
	}{
		{`{"lowercase": true, "numbers": "yes"}`, CharacterClasses{Lowercase: true, Digits: true}},
		{`["Uppercase", "digits", "symbols"]`, CharacterClasses{Uppercase: true, Digits: true, Special: true}},
		{`"lower and upper case letters"`, CharacterClasses{Lowercase: true, Uppercase: true}},
		{`"mixed"`, CharacterClasses{}},
		{`42`, CharacterClasses{}},
		{`null`, CharacterClasses{}},
	}
	for _, tt := range tests {
		var c CharacterClasses
		if err := json.Unmarshal([]byte(tt.raw), &c); err != nil {
			t.Fatalf("CharacterClasses(%s) failed: %v", tt.raw, err)
		}
		if diff := cmp.Diff(tt.want, c); diff != "" {
			t.Fatalf("CharacterClasses(%s) mismatch (-want +got):\n%s", tt.raw, diff)
		}
	}
}

func TestPhishingNormalizeDerivesScores(t *testing.T) {
	var r PhishingResult
	if err := json.Unmarshal([]byte(`{"trust_score":"20","indicators":[{"type":"url","severity":"HIGH"}]}`), &r); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	r.Normalize()

	if r.PhishingScore != 80 {
		t.Fatalf("expected derived phishing score 80, got %v", r.PhishingScore)
	}
	if r.RiskLevel != SeverityCritical {
		t.Fatalf("expected critical risk, got %q", r.RiskLevel)
	}
	if r.Verdict != "Likely Phishing" {
		t.Fatalf("unexpected verdict %q", r.Verdict)
	}
	if r.Indicators[0].Severity != SeverityHigh {
		t.Fatalf("severity not normalized: %q", r.Indicators[0].Severity)
	}
	if r.DomainAge() != -1 {
		t.Fatalf("missing domain age should be unknown, got %v", r.DomainAge())
	}
	if r.Recommendations == nil {
		t.Fatal("recommendations should default to an empty list")
	}
}

func TestThreatModelNormalizeOrdersThreats(t *testing.T) {
	raw := `{
		"risk_score": 150,
		"threats": [
			{"title": "Verbose errors", "severity": "low"},
			{"severity": "Critical", "mitigations": "Rotate keys"},
			{"title": "SQL injection", "severity": "high"}
		]
	}`
	var r ThreatModelResult
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	r.Normalize()

	if r.RiskScore != 100 {
		t.Fatalf("risk score should clamp to 100, got %v", r.RiskScore)
	}
	if r.RiskLevel != SeverityCritical {
		t.Fatalf("unexpected risk level %q", r.RiskLevel)
	}
	var titles []string
	for _, th := range r.Threats {
		titles = append(titles, string(th.Title))
	}
	if diff := cmp.Diff([]string{"Untitled threat", "SQL injection", "Verbose errors"}, titles); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(TextList{"Rotate keys"}, r.Threats[0].Mitigations); diff != "" {
		t.Fatalf("mitigations mismatch:\n%s", diff)
	}
	if got := r.CountBySeverity(); got[SeverityCritical] != 1 || got[SeverityHigh] != 1 || got[SeverityLow] != 1 {
		t.Fatalf("unexpected counts %v", got)
	}
}

func TestQuestionnaireDefaults(t *testing.T) {
	q := GRCQuestionnaire{Questions: []GRCQuestion{{Text: "Do you have an incident response plan?"}}}
	q.Normalize()

	got := q.Questions[0]
	if got.ID != "q1" || got.Category != "General" || got.Type != "yes_no" || got.Weight != 1 {
		t.Fatalf("unexpected defaults %+v", got)
	}
	if len(got.Options) != 3 {
		t.Fatalf("expected yes/partial/no options, got %v", got.Options)
	}
}

func TestPasswordNormalizeLabel(t *testing.T) {
	r := PasswordResult{Score: 72}
	r.Normalize()
	if r.Strength != "Strong" || r.CrackTime != "Unknown" {
		t.Fatalf("unexpected defaults %+v", r)
	}
}

func TestParseTool(t *testing.T) {
	if tool, err := ParseTool("threat_modeling"); err != nil || tool != ToolThreatModel {
		t.Fatalf("unexpected result %q %v", tool, err)
	}
	if _, err := ParseTool("nmap"); !errors.Is(err, sharedErrors.ErrUnsupportedTool) {
		t.Fatalf("expected ErrUnsupportedTool, got %v", err)
	}
}
