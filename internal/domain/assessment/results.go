package assessment

import (
	"sort"
	"strconv"
	"strings"
)

// GRCQuestion is one item of the governance questionnaire.
type GRCQuestion struct {
	ID       Text     `json:"id"`
	Category Text     `json:"category"`
	Text     Text     `json:"question"`
	Type     Text     `json:"type"`
	Options  TextList `json:"options"`
	Weight   Number   `json:"weight"`
	Help     Text     `json:"help"`
}

// GRCQuestionnaire is the response of the grc_questions tool.
type GRCQuestionnaire struct {
	Framework Text          `json:"framework"`
	Questions []GRCQuestion `json:"questions"`
}

// Normalize fills the defaults of a questionnaire.
func (q *GRCQuestionnaire) Normalize() {
	if q.Questions == nil {
		q.Questions = []GRCQuestion{}
	}
	for i := range q.Questions {
		qq := &q.Questions[i]
		if qq.ID == "" {
			qq.ID = Text("q" + strconv.Itoa(i+1))
		}
		qq.Category = Text(qq.Category.Or("General"))
		qq.Type = Text(strings.ToLower(qq.Type.Or("yes_no")))
		if qq.Options == nil {
			qq.Options = TextList{}
		}
		if qq.Type == "yes_no" && len(qq.Options) == 0 {
			qq.Options = TextList{"yes", "partial", "no"}
		}
		if qq.Weight <= 0 {
			qq.Weight = 1
		}
	}
}

// Categories returns the question categories in first-seen order.
func (q GRCQuestionnaire) Categories() []string {
	seen := map[string]bool{}
	var out []string
	for _, qq := range q.Questions {
		c := string(qq.Category)
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// GRCGap is a control gap identified by the assessment.
type GRCGap struct {
	Area           Text `json:"area"`
	Description    Text `json:"description"`
	Severity       Text `json:"severity"`
	Recommendation Text `json:"recommendation"`
}

// FrameworkStatus reports compliance against one framework.
type FrameworkStatus struct {
	Name   Text   `json:"name"`
	Score  Number `json:"score"`
	Status Text   `json:"status"`
}

// GRCResult is the response of the grc tool.
type GRCResult struct {
	OverallScore    Number            `json:"overall_score"`
	RiskLevel       Text              `json:"risk_level"`
	Summary         Text              `json:"summary"`
	CategoryScores  map[string]Number `json:"category_scores"`
	Gaps            []GRCGap          `json:"gaps"`
	Frameworks      []FrameworkStatus `json:"compliance_status"`
	Recommendations TextList          `json:"recommendations"`
	Roadmap         TextList          `json:"roadmap"`
}

// Normalize fills the defaults of a GRC result.
func (r *GRCResult) Normalize() {
	r.OverallScore = clampScore(r.OverallScore)
	r.RiskLevel = Text(normalizeLevel(string(r.RiskLevel)))
	if r.CategoryScores == nil {
		r.CategoryScores = map[string]Number{}
	}
	if r.Gaps == nil {
		r.Gaps = []GRCGap{}
	}
	for i := range r.Gaps {
		r.Gaps[i].Severity = Text(NormalizeSeverity(string(r.Gaps[i].Severity)))
	}
	sort.SliceStable(r.Gaps, func(i, j int) bool {
		return SeverityRank(string(r.Gaps[i].Severity)) > SeverityRank(string(r.Gaps[j].Severity))
	})
	if r.Frameworks == nil {
		r.Frameworks = []FrameworkStatus{}
	}
	r.Recommendations = nonNil(r.Recommendations)
	r.Roadmap = nonNil(r.Roadmap)
}

// Talker is a host ranked by traffic volume.
type Talker struct {
	Address Text   `json:"address"`
	Packets Number `json:"packets"`
	Bytes   Number `json:"bytes"`
}

// TrafficSummary aggregates a packet capture.
type TrafficSummary struct {
	TotalPackets Number            `json:"total_packets"`
	TotalBytes   Number            `json:"total_bytes"`
	Duration     Number            `json:"duration"`
	Protocols    map[string]Number `json:"protocols"`
	TopTalkers   []Talker          `json:"top_talkers"`
}

// NetworkThreat is a suspicious pattern seen in traffic.
type NetworkThreat struct {
	Type        Text `json:"type"`
	Severity    Text `json:"severity"`
	Description Text `json:"description"`
	Source      Text `json:"source"`
	Destination Text `json:"destination"`
}

// HeaderCheck is the evaluation of one HTTP security header.
type HeaderCheck struct {
	Name           Text `json:"name"`
	Present        Flag `json:"present"`
	Value          Text `json:"value"`
	Severity       Text `json:"severity"`
	Recommendation Text `json:"recommendation"`
}

// NetworkResult is the response of the network tool for both PCAP and URL mode.
type NetworkResult struct {
	AnalysisType    Text            `json:"analysis_type"`
	Target          Text            `json:"target"`
	SecurityScore   Number          `json:"security_score"`
	RiskLevel       Text            `json:"risk_level"`
	Summary         TrafficSummary  `json:"summary"`
	Threats         []NetworkThreat `json:"threats"`
	Headers         []HeaderCheck   `json:"security_headers"`
	Recommendations TextList        `json:"recommendations"`
	AIAnalysis      Text            `json:"ai_analysis"`
}

// Normalize fills the defaults of a network result.
func (r *NetworkResult) Normalize() {
	r.AnalysisType = Text(r.AnalysisType.Or("pcap"))
	r.SecurityScore = clampScore(r.SecurityScore)
	r.RiskLevel = Text(normalizeLevel(string(r.RiskLevel)))
	if r.Summary.Protocols == nil {
		r.Summary.Protocols = map[string]Number{}
	}
	if r.Summary.TopTalkers == nil {
		r.Summary.TopTalkers = []Talker{}
	}
	if r.Threats == nil {
		r.Threats = []NetworkThreat{}
	}
	for i := range r.Threats {
		r.Threats[i].Severity = Text(NormalizeSeverity(string(r.Threats[i].Severity)))
		r.Threats[i].Type = Text(r.Threats[i].Type.Or("Unclassified"))
	}
	if r.Headers == nil {
		r.Headers = []HeaderCheck{}
	}
	for i := range r.Headers {
		r.Headers[i].Severity = Text(NormalizeSeverity(string(r.Headers[i].Severity)))
	}
	r.Recommendations = nonNil(r.Recommendations)
}

// CharacterClasses reports which character classes a password uses.
type CharacterClasses struct {
	Lowercase Flag `json:"lowercase"`
	Uppercase Flag `json:"uppercase"`
	Digits    Flag `json:"numbers"`
	Special   Flag `json:"special"`
}

// Count returns how many classes are present.
func (c CharacterClasses) Count() int {
	n := 0
	for _, b := range []Flag{c.Lowercase, c.Uppercase, c.Digits, c.Special} {
		if b {
			n++
		}
	}
	return n
}

// PasswordResult is the response of the password tool and of the local scorer.
type PasswordResult struct {
	Score       Number           `json:"score"`
	Strength    Text             `json:"strength"`
	CrackTime   Text             `json:"crack_time"`
	Entropy     Number           `json:"entropy"`
	Length      Number           `json:"length"`
	Classes     CharacterClasses `json:"character_types"`
	Common      Flag             `json:"is_common"`
	Feedback    TextList         `json:"feedback"`
	Suggestions TextList         `json:"suggestions"`
	AIAnalysis  Text             `json:"ai_analysis"`
}

// Normalize fills the defaults of a password result.
func (r *PasswordResult) Normalize() {
	r.Score = clampScore(r.Score)
	r.Strength = Text(r.Strength.Or(StrengthLabel(float64(r.Score))))
	r.CrackTime = Text(r.CrackTime.Or("Unknown"))
	r.Feedback = nonNil(r.Feedback)
	r.Suggestions = nonNil(r.Suggestions)
}

// StrengthLabel maps a 0-100 password score to its label.
func StrengthLabel(score float64) string {
	switch {
	case score >= 80:
		return "Very Strong"
	case score >= 60:
		return "Strong"
	case score >= 40:
		return "Fair"
	case score >= 20:
		return "Weak"
	default:
		return "Very Weak"
	}
}

// Indicator is one phishing signal.
type Indicator struct {
	Type        Text `json:"type"`
	Description Text `json:"description"`
	Severity    Text `json:"severity"`
}

// PhishingResult is the response of the phishing tool and of the local heuristics.
type PhishingResult struct {
	URL             Text        `json:"url"`
	PhishingScore   Number      `json:"phishing_score"`
	TrustScore      Number      `json:"trust_score"`
	Verdict         Text        `json:"verdict"`
	RiskLevel       Text        `json:"risk_level"`
	DomainAgeDays   *Number     `json:"domain_age_days"`
	SSLValid        Flag        `json:"ssl_valid"`
	Indicators      []Indicator `json:"indicators"`
	Recommendations TextList    `json:"recommendations"`
	AIAnalysis      Text        `json:"ai_analysis"`
}

// DomainAge returns the domain age in days, or -1 when unknown.
func (r PhishingResult) DomainAge() float64 {
	if r.DomainAgeDays == nil {
		return -1
	}
	return float64(*r.DomainAgeDays)
}

// Normalize fills the defaults of a phishing result. When only one of the two
// scores was returned the other is derived from it.
func (r *PhishingResult) Normalize() {
	r.PhishingScore = clampScore(r.PhishingScore)
	r.TrustScore = clampScore(r.TrustScore)
	switch {
	case r.TrustScore == 0 && r.PhishingScore > 0:
		r.TrustScore = 100 - r.PhishingScore
	case r.PhishingScore == 0 && r.TrustScore > 0:
		r.PhishingScore = 100 - r.TrustScore
	}
	level := normalizeLevel(string(r.RiskLevel))
	if level == SeverityUnknown && (r.PhishingScore > 0 || r.TrustScore > 0) {
		level = RiskBand(float64(r.PhishingScore))
	}
	r.RiskLevel = Text(level)
	r.Verdict = Text(r.Verdict.Or(VerdictFor(float64(r.PhishingScore))))
	if r.Indicators == nil {
		r.Indicators = []Indicator{}
	}
	for i := range r.Indicators {
		r.Indicators[i].Severity = Text(NormalizeSeverity(string(r.Indicators[i].Severity)))
	}
	r.Recommendations = nonNil(r.Recommendations)
}

// VerdictFor maps a phishing score to a verdict.
func VerdictFor(score float64) string {
	switch {
	case score >= 70:
		return "Likely Phishing"
	case score >= 40:
		return "Suspicious"
	default:
		return "Likely Safe"
	}
}

// Threat is one threat identified in a threat model.
type Threat struct {
	ID          Text     `json:"id"`
	Title       Text     `json:"title"`
	Category    Text     `json:"category"`
	Severity    Text     `json:"severity"`
	Likelihood  Text     `json:"likelihood"`
	Impact      Text     `json:"impact"`
	Component   Text     `json:"component"`
	Description Text     `json:"description"`
	Methodology Text     `json:"methodology"`
	Mitigations TextList `json:"mitigations"`
}

// ThreatModelResult is the response of the threat_modeling tool.
type ThreatModelResult struct {
	RiskScore       Number              `json:"risk_score"`
	RiskLevel       Text                `json:"risk_level"`
	Summary         Text                `json:"summary"`
	Threats         []Threat            `json:"threats"`
	AttackPaths     TextList            `json:"attack_paths"`
	Compliance      map[string]TextList `json:"compliance_mapping"`
	Recommendations TextList            `json:"recommendations"`
}

// Normalize fills the defaults of a threat model result and orders threats by severity.
func (r *ThreatModelResult) Normalize() {
	r.RiskScore = clampScore(r.RiskScore)
	level := normalizeLevel(string(r.RiskLevel))
	if level == SeverityUnknown && r.RiskScore > 0 {
		level = RiskBand(float64(r.RiskScore))
	}
	r.RiskLevel = Text(level)
	if r.Threats == nil {
		r.Threats = []Threat{}
	}
	for i := range r.Threats {
		th := &r.Threats[i]
		if th.ID == "" {
			th.ID = Text("T" + strconv.Itoa(i+1))
		}
		th.Title = Text(th.Title.Or("Untitled threat"))
		th.Severity = Text(NormalizeSeverity(string(th.Severity)))
		th.Mitigations = nonNil(th.Mitigations)
	}
	sort.SliceStable(r.Threats, func(i, j int) bool {
		return SeverityRank(string(r.Threats[i].Severity)) > SeverityRank(string(r.Threats[j].Severity))
	})
	if r.Compliance == nil {
		r.Compliance = map[string]TextList{}
	}
	r.AttackPaths = nonNil(r.AttackPaths)
	r.Recommendations = nonNil(r.Recommendations)
}

// CountBySeverity tallies threats per severity.
func (r ThreatModelResult) CountBySeverity() map[string]int {
	out := map[string]int{}
	for _, th := range r.Threats {
		out[NormalizeSeverity(string(th.Severity))]++
	}
	return out
}

// AssistantReply is the response of the ollama tool.
type AssistantReply struct {
	Response Text `json:"response"`
	Model    Text `json:"model"`
}

// Normalize fills the defaults of an assistant reply.
func (r *AssistantReply) Normalize() {
	r.Model = Text(r.Model.Or("unknown"))
}

// Normalizer is implemented by every result type.
type Normalizer interface {
	Normalize()
}

func clampScore(n Number) Number {
	switch {
	case n < 0:
		return 0
	case n > 100:
		return 100
	}
	return n
}

func normalizeLevel(s string) string {
	if strings.TrimSpace(s) == "" {
		return SeverityUnknown
	}
	return NormalizeSeverity(s)
}

func nonNil(l TextList) TextList {
	if l == nil {
		return TextList{}
	}
	return l
}
