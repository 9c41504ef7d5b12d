package cmd

import (
	"github.com/spf13/cobra"

	"github.com/khanhnv2901/seca-suite/internal/application/tools"
	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
)

var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "Network traffic and URL analysis",
}

var networkAnalyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a packet capture (--pcap) or a URL (--url)",
	Example: `  seca-suite network analyze --pcap office.pcapng
  seca-suite network analyze --url https://example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		pcap, _ := cmd.Flags().GetString("pcap")
		target, _ := cmd.Flags().GetString("url")
		if (pcap == "") == (target == "") {
			return &InputError{Reason: "specify exactly one of --pcap or --url"}
		}

		services, err := getAppContext(cmd).Services()
		if err != nil {
			return err
		}
		ctx := commandContext(cmd)

		var rep *tools.Report
		if pcap != "" {
			// The upload bar replaces the spinner for captures.
			rep, err = services.Tools.NetworkCapture(ctx, pcap, uploadProgress(cmd.ErrOrStderr(), "Uploading capture"))
		} else {
			rep, err = runWithSpinner(cmd, assessment.ToolNetwork, func() (*tools.Report, error) {
				return services.Tools.NetworkURL(ctx, target)
			})
		}
		if err != nil {
			return err
		}
		return writeReport(cmd, rep)
	},
}

func init() {
	networkAnalyzeCmd.Flags().String("pcap", "", "pcap or pcapng capture file")
	networkAnalyzeCmd.Flags().String("url", "", "URL to analyze")

	networkCmd.AddCommand(networkAnalyzeCmd)
	rootCmd.AddCommand(networkCmd)
}
