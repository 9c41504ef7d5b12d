package cmd

import (
	"strings"

	"github.com/fatih/color"

	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
)

var (
	colorSuccess = color.New(color.FgGreen).SprintFunc()
	colorInfo    = color.New(color.FgCyan).SprintFunc()
	colorWarn    = color.New(color.FgYellow).SprintFunc()
	colorError   = color.New(color.FgRed).SprintFunc()
	colorMuted   = color.New(color.Faint).SprintFunc()
)

func formatStatusWithColor(status string) string {
	switch strings.ToLower(status) {
	case "ok", "success", "pass", "done":
		return colorSuccess(status)
	case "error", "fail", "failed":
		return colorError(status)
	case "local", "running", "pending":
		return colorWarn(status)
	default:
		return status
	}
}

// formatSourceWithColor marks where a result came from.
func formatSourceWithColor(src assessment.Source) string {
	switch src {
	case assessment.SourceRemote:
		return colorSuccess(string(src))
	case assessment.SourceRepaired:
		return colorInfo(string(src))
	case assessment.SourceLocal:
		return colorWarn(string(src))
	}
	return string(src)
}
