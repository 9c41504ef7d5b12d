package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	historyapp "github.com/khanhnv2901/seca-suite/internal/application/history"
	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
	"github.com/khanhnv2901/seca-suite/internal/domain/history"
	"github.com/khanhnv2901/seca-suite/internal/render"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse past analyses",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded analyses, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := historyFilter(cmd)
		if err != nil {
			return err
		}
		services, err := getAppContext(cmd).Services()
		if err != nil {
			return err
		}
		entries, err := services.History.List(commandContext(cmd), filter)
		if err != nil {
			return err
		}
		if getAppContext(cmd).Config.Format == render.FormatJSON {
			views := make([]historyEntryView, 0, len(entries))
			for _, e := range entries {
				views = append(views, toHistoryEntryView(e))
			}
			return render.JSON(cmd.OutOrStdout(), views)
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No analyses recorded.")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tWhen\tTool\tTarget\tSource\tScore\tRisk")
		fmt.Fprintln(w, "--\t----\t----\t------\t------\t-----\t----")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.0f\t%s\n",
				e.ID(), e.CreatedAt().Local().Format("2006-01-02 15:04"), e.Tool(),
				truncate(e.Target(), 40), formatSourceWithColor(e.Source()), e.Score(), e.RiskLevel())
		}
		return w.Flush()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <entry-id>",
	Short: "Show a recorded analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := getAppContext(cmd).Services()
		if err != nil {
			return err
		}
		e, err := services.History.Get(commandContext(cmd), args[0])
		if err != nil {
			return err
		}
		result, err := historyapp.Result(e)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %s %s, %s\n", colorMuted(e.ID()), e.Tool().Label(),
			e.CreatedAt().Local().Format(time.RFC1123), formatSourceWithColor(e.Source()))
		return writeValue(cmd, e.Tool(), result)
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete analyses older than the retention period",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		days := getAppContext(cmd).Config.History.RetentionDays
		if cmd.Flags().Changed("days") {
			days, _ = cmd.Flags().GetInt("days")
		}
		if days <= 0 {
			return &InputError{Flag: "days", Reason: "must be positive"}
		}
		services, err := getAppContext(cmd).Services()
		if err != nil {
			return err
		}
		n, err := services.History.Prune(commandContext(cmd), days)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s removed %d entr%s older than %d days\n", colorSuccess("✓"), n, plural(n, "y", "ies"), days)
		return nil
	},
}

func historyFilter(cmd *cobra.Command) (history.Filter, error) {
	var f history.Filter
	toolName, _ := cmd.Flags().GetString("tool")
	if toolName != "" {
		tool, err := assessment.ParseTool(toolName)
		if err != nil {
			return f, &InputError{Flag: "tool", Reason: err.Error()}
		}
		f.Tool = tool
	}
	f.ScheduleID, _ = cmd.Flags().GetString("schedule")
	f.Limit, _ = cmd.Flags().GetInt("limit")

	since, _ := cmd.Flags().GetString("since")
	if since != "" {
		t, err := parseSince(since, time.Now())
		if err != nil {
			return f, &InputError{Flag: "since", Reason: err.Error()}
		}
		f.Since = t
	}
	return f, nil
}

// parseSince accepts a duration back from now ("72h") or an RFC 3339 time.
func parseSince(s string, now time.Time) (time.Time, error) {
	if d, err := time.ParseDuration(s); err == nil {
		if d < 0 {
			d = -d
		}
		return now.Add(-d), nil
	}
	if strings.HasSuffix(s, "d") {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err == nil && days > 0 {
			return now.AddDate(0, 0, -days), nil
		}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("use a duration such as 72h or 7d, or an RFC 3339 time")
	}
	return t, nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

type historyEntryView struct {
	ID         string            `json:"id"`
	Tool       assessment.Tool   `json:"tool"`
	Target     string            `json:"target,omitempty"`
	Source     assessment.Source `json:"source"`
	Score      float64           `json:"score"`
	RiskLevel  string            `json:"risk_level,omitempty"`
	Summary    string            `json:"summary,omitempty"`
	ScheduleID string            `json:"schedule_id,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

func toHistoryEntryView(e *history.Entry) historyEntryView {
	return historyEntryView{
		ID:         e.ID(),
		Tool:       e.Tool(),
		Target:     e.Target(),
		Source:     e.Source(),
		Score:      e.Score(),
		RiskLevel:  e.RiskLevel(),
		Summary:    e.Summary(),
		ScheduleID: e.ScheduleID(),
		CreatedAt:  e.CreatedAt(),
	}
}

func init() {
	historyListCmd.Flags().String("tool", "", "only this tool")
	historyListCmd.Flags().String("schedule", "", "only runs of this schedule")
	historyListCmd.Flags().String("since", "", "only analyses newer than a duration (72h, 7d) or RFC 3339 time")
	historyListCmd.Flags().Int("limit", 50, "maximum number of entries")

	historyPruneCmd.Flags().Int("days", 0, "retention in days (default from config)")

	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyPruneCmd)
	rootCmd.AddCommand(historyCmd)
}
