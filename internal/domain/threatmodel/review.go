package threatmodel

import (
	"fmt"
	"sort"

	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
	"github.com/khanhnv2901/seca-suite/internal/domain/diagram"
)

// Finding is a structural issue detected in a diagram without the backend.
type Finding struct {
	Check        string              `json:"check"`
	Severity     string              `json:"severity"`
	Threat       string              `json:"threat"`
	Subject      string              `json:"subject"`
	Detail       string              `json:"detail"`
	Requirements map[string][]string `json:"requirements,omitempty"`
}

// Review flags data flows that are unencrypted and flows from components
// outside the trust boundary into high sensitivity components.
func Review(data diagram.SystemData) []Finding {
	byID := make(map[string]diagram.Component, len(data.Components))
	for _, c := range data.Components {
		byID[c.ID] = c
	}

	var findings []Finding
	for _, flow := range data.DataFlows {
		src, okSrc := byID[flow.SourceID]
		dst, okDst := byID[flow.DestinationID]
		if !okSrc || !okDst {
			continue
		}
		subject := fmt.Sprintf("%s -> %s", src.Name, dst.Name)

		sensitive := src.Sensitivity == diagram.SensitivityHigh || dst.Sensitivity == diagram.SensitivityHigh
		if !diagram.IsEncrypted(flow.Protocol) && sensitive {
			findings = append(findings, newFinding("Unencrypted data flow", subject,
				fmt.Sprintf("%s carries %s to or from a high sensitivity component without transport encryption", flow.Protocol, flow.DataType),
				data.Frameworks))
		}

		kind, _ := diagram.LookupComponentKind(src.Type)
		if !kind.Trusted && dst.Sensitivity == diagram.SensitivityHigh {
			findings = append(findings, newFinding("Untrusted source reaches sensitive component", subject,
				fmt.Sprintf("%s (%s) connects directly to %s", src.Name, src.Type.Label(), dst.Name),
				data.Frameworks))
		}
	}
	return findings
}

func newFinding(check, subject, detail string, frameworkTags []string) Finding {
	f := Finding{Check: check, Subject: subject, Detail: detail, Severity: "medium"}
	if m := GetMappingForCheck(check); m != nil {
		f.Threat = m.Threat
		f.Severity = severityForPriority(m.Priority)
		f.Requirements = RequirementsFor(check, frameworkTags)
	}
	return f
}

func severityForPriority(priority string) string {
	switch priority {
	case "Critical":
		return "critical"
	case "High":
		return "high"
	case "Low":
		return "low"
	default:
		return "medium"
	}
}

var mitigations = map[string]string{
	"Unencrypted data flow":                        "Move the flow to an encrypted protocol such as HTTPS, SSH or a VPN tunnel.",
	"Untrusted source reaches sensitive component": "Route the flow through an authenticated gateway, WAF or firewall instead of a direct connection.",
}

var severityWeight = map[string]float64{
	assessment.SeverityCritical: 30,
	assessment.SeverityHigh:     20,
	assessment.SeverityMedium:   10,
	assessment.SeverityLow:      5,
}

// ReviewResult runs Review and shapes the findings like a backend threat model
// response, so offline analyses render and record the same way.
func ReviewResult(data diagram.SystemData) assessment.ThreatModelResult {
	findings := Review(data)

	res := assessment.ThreatModelResult{
		Compliance: map[string]assessment.TextList{},
	}
	var score float64
	seenRec := map[string]bool{}
	reqs := map[string]map[string]bool{}
	for _, f := range findings {
		score += severityWeight[f.Severity]
		th := assessment.Threat{
			Title:       assessment.Text(f.Check),
			Category:    assessment.Text(f.Threat),
			Severity:    assessment.Text(f.Severity),
			Component:   assessment.Text(f.Subject),
			Description: assessment.Text(f.Detail),
			Methodology: "stride",
		}
		if m, ok := mitigations[f.Check]; ok {
			th.Mitigations = assessment.TextList{m}
			if !seenRec[m] {
				seenRec[m] = true
				res.Recommendations = append(res.Recommendations, m)
			}
		}
		res.Threats = append(res.Threats, th)
		for fw, ids := range f.Requirements {
			if reqs[fw] == nil {
				reqs[fw] = map[string]bool{}
			}
			for _, id := range ids {
				reqs[fw][id] = true
			}
		}
	}
	for fw, set := range reqs {
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		res.Compliance[fw] = ids
	}

	res.RiskScore = assessment.Number(min(score, 100))
	res.Summary = assessment.Text(fmt.Sprintf("Offline structural review of %q: %d component(s), %d data flow(s), %d finding(s).",
		data.Name, len(data.Components), len(data.DataFlows), len(findings)))
	if len(findings) == 0 {
		res.RiskLevel = assessment.SeverityLow
	}
	res.Normalize()
	return res
}
