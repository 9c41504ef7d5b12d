package phishing

import (
	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
)

func total(signals []Signal) int {
	sum := 0
	for _, s := range signals {
		sum += s.Weight
	}
	return min(sum, weightCap)
}

func build(signals []Signal) assessment.PhishingResult {
	score := total(signals)
	res := assessment.PhishingResult{
		PhishingScore:   assessment.Number(score),
		TrustScore:      assessment.Number(100 - score),
		Verdict:         assessment.Text(assessment.VerdictFor(float64(score))),
		RiskLevel:       assessment.Text(assessment.RiskBand(float64(score))),
		Indicators:      make([]assessment.Indicator, 0, len(signals)),
		Recommendations: recommendations(score),
	}
	for _, s := range signals {
		res.Indicators = append(res.Indicators, assessment.Indicator{
			Type:        assessment.Text(s.Type),
			Description: assessment.Text(s.Description),
			Severity:    assessment.Text(s.Severity),
		})
	}
	return res
}

// WithDomainAge records a known domain age on res and raises the score for
// young domains.
func WithDomainAge(res assessment.PhishingResult, days float64) assessment.PhishingResult {
	age := assessment.Number(days)
	res.DomainAgeDays = &age

	severity := assessment.DomainAgeSeverity(days)
	weight := 0
	switch severity {
	case assessment.SeverityHigh:
		weight = 25
	case assessment.SeverityMedium:
		weight = 10
	}
	if weight == 0 {
		return res
	}
	res.Indicators = append(res.Indicators, assessment.Indicator{
		Type:        "young_domain",
		Description: assessment.Text("Domain was registered recently"),
		Severity:    assessment.Text(severity),
	})
	score := min(int(res.PhishingScore)+weight, weightCap)
	res.PhishingScore = assessment.Number(score)
	res.TrustScore = assessment.Number(100 - score)
	res.Verdict = assessment.Text(assessment.VerdictFor(float64(score)))
	res.RiskLevel = assessment.Text(assessment.RiskBand(float64(score)))
	res.Recommendations = recommendations(score)
	return res
}

func recommendations(score int) assessment.TextList {
	switch {
	case score >= 70:
		return assessment.TextList{
			"Do not open the link or enter any credentials",
			"Report the message to your security team",
			"If you already entered credentials, change the password and enable MFA",
		}
	case score >= 40:
		return assessment.TextList{
			"Verify the sender through a separate channel before acting",
			"Navigate to the site by typing its address instead of following the link",
		}
	default:
		return assessment.TextList{
			"No strong phishing signals found; stay cautious with unexpected requests",
		}
	}
}
