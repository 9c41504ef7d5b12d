package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/khanhnv2901/seca-suite/internal/application/tools"
	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
)

var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Password strength analysis",
}

var passwordCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Score a password",
	Long: `Reads the password from --stdin or, on a terminal, from a masked prompt.
The password is never stored in history.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fromStdin, _ := cmd.Flags().GetBool("stdin")
		ai, _ := cmd.Flags().GetBool("ai")

		pw, err := readPassword(cmd.InOrStdin(), fromStdin)
		if err != nil {
			return err
		}

		services, err := getAppContext(cmd).Services()
		if err != nil {
			return err
		}
		rep, err := runWithSpinner(cmd, assessment.ToolPassword, func() (*tools.Report, error) {
			return services.Tools.Password(commandContext(cmd), pw, tools.PasswordOptions{AI: ai})
		})
		if err != nil {
			return err
		}
		return writeReport(cmd, rep)
	},
}

func readPassword(in io.Reader, fromStdin bool) (string, error) {
	if fromStdin {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		pw := strings.TrimRight(line, "\r\n")
		if pw == "" {
			return "", &InputError{Flag: "stdin", Reason: "no password on stdin"}
		}
		return pw, nil
	}
	if !isTerminal(os.Stdin) {
		return "", &InputError{Flag: "stdin", Reason: "use --stdin when stdin is not a terminal"}
	}
	prompt := promptui.Prompt{
		Label: "Password",
		Mask:  '•',
		Validate: func(s string) error {
			if s == "" {
				return errors.New("password cannot be empty")
			}
			return nil
		},
	}
	return prompt.Run()
}

func init() {
	passwordCheckCmd.Flags().Bool("stdin", false, "read the password from the first line of stdin")
	passwordCheckCmd.Flags().Bool("ai", false, "ask the local model for an assessment of the metrics")

	passwordCmd.AddCommand(passwordCheckCmd)
	rootCmd.AddCommand(passwordCmd)
}
