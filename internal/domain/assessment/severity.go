package assessment

import "strings"

// Score classes used to color 0-100 quality scores (higher is better).
const (
	ClassExcellent = "excellent"
	ClassGood      = "good"
	ClassModerate  = "moderate"
	ClassPoor      = "poor"
	ClassCritical  = "critical"
)

// Severity levels.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
	SeverityInfo     = "info"
	SeverityUnknown  = "unknown"
)

// ScoreClass maps a 0-100 score to its display class.
func ScoreClass(score float64) string {
	switch {
	case score >= 80:
		return ClassExcellent
	case score >= 60:
		return ClassGood
	case score >= 40:
		return ClassModerate
	case score >= 20:
		return ClassPoor
	default:
		return ClassCritical
	}
}

// DomainAgeSeverity grades how suspicious a domain's age is. Young domains are
// a strong phishing signal. Negative ages mean the age is unknown.
func DomainAgeSeverity(days float64) string {
	switch {
	case days < 0:
		return SeverityUnknown
	case days < 30:
		return SeverityHigh
	case days < 365:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// RiskBand maps a 0-100 risk score (higher is worse) to a severity.
func RiskBand(score float64) string {
	switch {
	case score >= 80:
		return SeverityCritical
	case score >= 60:
		return SeverityHigh
	case score >= 40:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// NormalizeSeverity folds the spellings the backend uses into the known levels.
func NormalizeSeverity(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical", "severe", "very high":
		return SeverityCritical
	case "high":
		return SeverityHigh
	case "medium", "moderate", "med":
		return SeverityMedium
	case "low", "minor":
		return SeverityLow
	case "info", "informational", "none":
		return SeverityInfo
	default:
		return SeverityUnknown
	}
}

// SeverityRank orders severities for sorting, most severe first.
func SeverityRank(s string) int {
	switch NormalizeSeverity(s) {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	case SeverityInfo:
		return 1
	}
	return 0
}
