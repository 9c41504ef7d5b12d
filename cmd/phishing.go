package cmd

import (
	"github.com/spf13/cobra"

	"github.com/khanhnv2901/seca-suite/internal/application/tools"
	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
	"github.com/khanhnv2901/seca-suite/internal/infrastructure/backend"
)

const maxEmailBytes = 1 << 20

var phishingCmd = &cobra.Command{
	Use:   "phishing",
	Short: "Phishing URL and email detection",
}

var phishingCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check a URL (--url) or a raw email (--email-file)",
	RunE: func(cmd *cobra.Command, args []string) error {
		target, _ := cmd.Flags().GetString("url")
		emailFile, _ := cmd.Flags().GetString("email-file")
		if target == "" && emailFile == "" {
			return &InputError{Reason: "specify --url, --email-file or both"}
		}

		in := backend.PhishingInput{URL: target}
		if emailFile != "" {
			data, err := readInputFile("email-file", emailFile, maxEmailBytes)
			if err != nil {
				return err
			}
			in.Email = string(data)
		}

		services, err := getAppContext(cmd).Services()
		if err != nil {
			return err
		}
		rep, err := runWithSpinner(cmd, assessment.ToolPhishing, func() (*tools.Report, error) {
			return services.Tools.Phishing(commandContext(cmd), in)
		})
		if err != nil {
			return err
		}
		return writeReport(cmd, rep)
	},
}

func init() {
	phishingCheckCmd.Flags().String("url", "", "URL to check")
	phishingCheckCmd.Flags().String("email-file", "", "raw email (.eml or text) to check")

	phishingCmd.AddCommand(phishingCheckCmd)
	rootCmd.AddCommand(phishingCmd)
}
