package cmd

import (
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/khanhnv2901/seca-suite/internal/application/tools"
	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the security assistant",
	Long:  `The question is taken from the arguments, or from stdin when none are given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt := strings.TrimSpace(strings.Join(args, " "))
		if prompt == "" {
			data, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), 64<<10))
			if err != nil {
				return err
			}
			prompt = strings.TrimSpace(string(data))
		}
		if prompt == "" {
			return &InputError{Reason: "a question is required"}
		}
		model, _ := cmd.Flags().GetString("model")

		services, err := getAppContext(cmd).Services()
		if err != nil {
			return err
		}
		rep, err := runWithSpinner(cmd, assessment.ToolAssistant, func() (*tools.Report, error) {
			return services.Tools.Ask(commandContext(cmd), prompt, model)
		})
		if err != nil {
			return err
		}
		return writeReport(cmd, rep)
	},
}

func init() {
	askCmd.Flags().String("model", "", "model name (default from config)")
	rootCmd.AddCommand(askCmd)
}
