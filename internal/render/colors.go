package render

import (
	"math"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
)

var (
	colorCritical = color.New(color.FgHiRed, color.Bold).SprintFunc()
	colorHigh     = color.New(color.FgRed).SprintFunc()
	colorMedium   = color.New(color.FgYellow).SprintFunc()
	colorLow      = color.New(color.FgGreen).SprintFunc()
	colorInfo     = color.New(color.FgCyan).SprintFunc()
	colorTitle    = color.New(color.FgCyan, color.Bold).SprintFunc()
	colorMuted    = color.New(color.Faint).SprintFunc()
)

// Severity colors a severity label.
func Severity(sev string) string {
	level := assessment.NormalizeSeverity(sev)
	return severityColor(level)(strings.ToUpper(level))
}

func severityColor(level string) func(a ...interface{}) string {
	switch level {
	case assessment.SeverityCritical:
		return colorCritical
	case assessment.SeverityHigh:
		return colorHigh
	case assessment.SeverityMedium:
		return colorMedium
	case assessment.SeverityLow:
		return colorLow
	case assessment.SeverityInfo:
		return colorInfo
	}
	return colorMuted
}

// Score colors a 0-100 score where higher is better.
func Score(score float64) string {
	s := formatScore(score)
	switch assessment.ScoreClass(score) {
	case assessment.ClassExcellent, assessment.ClassGood:
		return colorLow(s)
	case assessment.ClassModerate:
		return colorMedium(s)
	case assessment.ClassPoor:
		return colorHigh(s)
	}
	return colorCritical(s)
}

// RiskScore colors a 0-100 score where higher is worse.
func RiskScore(score float64) string {
	return severityColor(assessment.RiskBand(score))(formatScore(score))
}

func formatScore(score float64) string {
	return strconv.FormatFloat(math.Round(score*10)/10, 'f', -1, 64) + "/100"
}
