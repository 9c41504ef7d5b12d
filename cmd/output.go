package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/khanhnv2901/seca-suite/internal/application/tools"
	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
	"github.com/khanhnv2901/seca-suite/internal/render"
)

// writeReport prints where a result came from on stderr, then renders the
// result in the configured format.
func writeReport(cmd *cobra.Command, rep *tools.Report) error {
	printSourceNotice(cmd.ErrOrStderr(), rep)
	return writeValue(cmd, rep.Tool, rep.Result)
}

// writeValue renders v to stdout or the --output file.
func writeValue(cmd *cobra.Command, tool assessment.Tool, v any) error {
	cfg := getAppContext(cmd).Config
	w, closeFn, err := openOutput(cmd.OutOrStdout(), cfg.Output, cfg.Force)
	if err != nil {
		return err
	}
	if err := render.Write(w, cfg.Format, tool, v); err != nil {
		_ = closeFn()
		return err
	}
	if err := closeFn(); err != nil {
		return err
	}
	if cfg.Output != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s wrote %s\n", colorSuccess("✓"), cfg.Output)
	}
	return nil
}

func printSourceNotice(w io.Writer, rep *tools.Report) {
	switch rep.Source {
	case assessment.SourceLocal:
		if rep.FallbackReason != "" {
			fmt.Fprintf(w, "%s local analysis (%s)\n", colorWarn("⚠"), rep.FallbackReason)
		} else {
			fmt.Fprintf(w, "%s local analysis\n", colorWarn("⚠"))
		}
	case assessment.SourceRepaired:
		fmt.Fprintf(w, "%s the server response was malformed and has been repaired\n", colorInfo("ℹ"))
	}
	if rep.HistoryID != "" {
		fmt.Fprintf(w, "%s saved as %s\n", colorMuted("history:"), rep.HistoryID)
	}
}

// runWithSpinner runs fn while a spinner labelled with the tool name turns.
func runWithSpinner(cmd *cobra.Command, tool assessment.Tool, fn func() (*tools.Report, error)) (*tools.Report, error) {
	if getAppContext(cmd).Config.Format != render.FormatText {
		return fn()
	}
	s := startSpinner(cmd.ErrOrStderr(), tool.Label())
	rep, err := fn()
	s.Stop()
	return rep, err
}
