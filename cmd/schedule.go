package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	scheduleapp "github.com/khanhnv2901/seca-suite/internal/application/schedule"
	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
	"github.com/khanhnv2901/seca-suite/internal/domain/schedule"
	"github.com/khanhnv2901/seca-suite/internal/render"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Recurring analyses",
	Long: `Manage scheduled scans. Schedules run while ` + "`seca-suite serve`" + ` is up, or on demand
with ` + "`schedule run`" + `. Network, phishing and threat-modeling analyses can be scheduled.`,
}

var scheduleAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a schedule",
	Example: `  seca-suite schedule add --name nightly-site --tool network --target https://example.com --every 24h
  seca-suite schedule add --name shop-model --tool threat_modeling --target shop --every 168h`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		toolName, _ := cmd.Flags().GetString("tool")
		target, _ := cmd.Flags().GetString("target")
		every, _ := cmd.Flags().GetDuration("every")
		mode, _ := cmd.Flags().GetString("mode")
		emailFile, _ := cmd.Flags().GetString("email-file")

		tool, err := assessment.ParseTool(toolName)
		if err != nil {
			return &InputError{Flag: "tool", Reason: err.Error()}
		}
		options := map[string]string{}
		if mode != "" {
			options[scheduleapp.OptionMode] = strings.ToLower(mode)
		}
		if emailFile != "" {
			options[scheduleapp.OptionEmailFile] = emailFile
		}

		services, err := getAppContext(cmd).Services()
		if err != nil {
			return err
		}
		s, err := services.Schedules.Add(commandContext(cmd), name, tool, target, options, every)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s schedule %s created, first run %s\n",
			colorSuccess("✓"), s.ID(), s.NextRun().Local().Format(time.RFC3339))
		return nil
	},
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List schedules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := getAppContext(cmd).Services()
		if err != nil {
			return err
		}
		list, err := services.Schedules.List(commandContext(cmd))
		if err != nil {
			return err
		}
		if getAppContext(cmd).Config.Format == render.FormatJSON {
			views := make([]scheduleView, 0, len(list))
			for _, s := range list {
				views = append(views, toScheduleView(s))
			}
			return render.JSON(cmd.OutOrStdout(), views)
		}
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No schedules. Create one with `seca-suite schedule add`.")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tName\tTool\tTarget\tEvery\tNext run\tLast status")
		fmt.Fprintln(w, "--\t----\t----\t------\t-----\t--------\t-----------")
		for _, s := range list {
			next := s.NextRun().Local().Format("2006-01-02 15:04")
			if !s.Enabled() {
				next = colorMuted("disabled")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				s.ID(), s.Name(), s.Tool(), truncate(s.Target(), 40), s.Interval(), next,
				formatStatusWithColor(string(s.LastStatus())))
		}
		return w.Flush()
	},
}

var scheduleRemoveCmd = &cobra.Command{
	Use:   "remove <schedule-id>",
	Short: "Delete a schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := getAppContext(cmd).Services()
		if err != nil {
			return err
		}
		ctx := commandContext(cmd)
		s, err := services.Schedules.Get(ctx, args[0])
		if err != nil {
			return err
		}
		if err := confirmAction(cmd, fmt.Sprintf("Delete schedule %q", s.Name())); err != nil {
			return err
		}
		if err := services.Schedules.Remove(ctx, s.ID()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s schedule %s removed\n", colorSuccess("✓"), s.ID())
		return nil
	},
}

var scheduleRunCmd = &cobra.Command{
	Use:   "run [schedule-id]",
	Short: "Run one schedule now, or every due schedule with --due",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		due, _ := cmd.Flags().GetBool("due")
		if due == (len(args) == 1) {
			return &InputError{Reason: "specify a schedule id or --due"}
		}
		services, err := getAppContext(cmd).Services()
		if err != nil {
			return err
		}
		ctx := commandContext(cmd)

		var results []scheduleapp.RunResult
		if due {
			if results, err = services.Schedules.RunDue(ctx); err != nil {
				return err
			}
		} else {
			res, err := services.Schedules.RunNow(ctx, args[0])
			if err != nil {
				return err
			}
			results = append(results, res)
		}

		if getAppContext(cmd).Config.Format == render.FormatJSON {
			return render.JSON(cmd.OutOrStdout(), results)
		}
		if len(results) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No schedules are due.")
			return nil
		}
		failed := 0
		for _, r := range results {
			line := fmt.Sprintf("%s  %s  %s", r.Name, formatStatusWithColor(string(r.Status)), r.Duration.Round(time.Millisecond))
			if r.Report != nil && r.Report.HistoryID != "" {
				line += "  " + colorMuted("history: "+r.Report.HistoryID)
			}
			if r.Error != "" {
				failed++
				line += "\n    " + colorError(r.Error)
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d scheduled run(s) failed", failed, len(results))
		}
		return nil
	},
}

func setEnabledCmd(use, short string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <schedule-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := getAppContext(cmd).Services()
			if err != nil {
				return err
			}
			s, err := services.Schedules.SetEnabled(commandContext(cmd), args[0], enabled)
			if err != nil {
				return err
			}
			state := "disabled"
			if s.Enabled() {
				state = "enabled, next run " + s.NextRun().Local().Format(time.RFC3339)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s schedule %s %s\n", colorSuccess("✓"), s.ID(), state)
			return nil
		},
	}
}

type scheduleView struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Tool       assessment.Tool   `json:"tool"`
	Target     string            `json:"target"`
	Options    map[string]string `json:"options,omitempty"`
	Interval   string            `json:"interval"`
	Enabled    bool              `json:"enabled"`
	NextRun    time.Time         `json:"next_run"`
	LastRun    *time.Time        `json:"last_run,omitempty"`
	LastStatus schedule.Status   `json:"last_status"`
	LastError  string            `json:"last_error,omitempty"`
}

func toScheduleView(s *schedule.Schedule) scheduleView {
	v := scheduleView{
		ID:         s.ID(),
		Name:       s.Name(),
		Tool:       s.Tool(),
		Target:     s.Target(),
		Options:    s.Options(),
		Interval:   s.Interval().String(),
		Enabled:    s.Enabled(),
		NextRun:    s.NextRun(),
		LastStatus: s.LastStatus(),
		LastError:  s.LastError(),
	}
	if last := s.LastRun(); !last.IsZero() {
		v.LastRun = &last
	}
	return v
}

func init() {
	scheduleAddCmd.Flags().String("name", "", "schedule name")
	scheduleAddCmd.Flags().String("tool", "", "network, phishing or threat_modeling")
	scheduleAddCmd.Flags().String("target", "", "URL, capture path or diagram id")
	scheduleAddCmd.Flags().Duration("every", 24*time.Hour, "interval between runs (at least 1m)")
	scheduleAddCmd.Flags().String("mode", "", "network mode: url or pcap")
	scheduleAddCmd.Flags().String("email-file", "", "phishing: check this email file instead of the target URL")

	scheduleRunCmd.Flags().Bool("due", false, "run every schedule that is due")
	scheduleRemoveCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")

	scheduleCmd.AddCommand(
		scheduleAddCmd, scheduleListCmd, scheduleRemoveCmd, scheduleRunCmd,
		setEnabledCmd("enable", "Resume a schedule", true),
		setEnabledCmd("disable", "Pause a schedule", false),
	)
	rootCmd.AddCommand(scheduleCmd)
}
