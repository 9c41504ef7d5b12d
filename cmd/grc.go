package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/khanhnv2901/seca-suite/internal/application/tools"
	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
	"github.com/khanhnv2901/seca-suite/internal/infrastructure/backend"
	"github.com/khanhnv2901/seca-suite/internal/jsonrepair"
)

const maxAnswersBytes = 1 << 20

var grcCmd = &cobra.Command{
	Use:   "grc",
	Short: "Governance, risk and compliance assessment",
}

var grcQuestionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "Show the questionnaire of a compliance framework",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := getAppContext(cmd).Services()
		if err != nil {
			return err
		}
		framework, _ := cmd.Flags().GetString("framework")
		rep, err := runWithSpinner(cmd, assessment.ToolGRCQuestions, func() (*tools.Report, error) {
			return services.Tools.GRCQuestions(commandContext(cmd), framework)
		})
		if err != nil {
			return err
		}
		return writeReport(cmd, rep)
	},
}

var grcAssessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Answer the questionnaire and submit it for assessment",
	Long: `Answers come from --answers-file (a JSON object of question id to answer)
or, on a terminal, from an interactive questionnaire.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := getAppContext(cmd).Services()
		if err != nil {
			return err
		}
		ctx := commandContext(cmd)
		framework, _ := cmd.Flags().GetString("framework")
		answersFile, _ := cmd.Flags().GetString("answers-file")
		organization, _ := cmd.Flags().GetString("organization")
		industry, _ := cmd.Flags().GetString("industry")

		var answers map[string]string
		if answersFile != "" {
			if answers, err = loadAnswers(answersFile); err != nil {
				return err
			}
		} else {
			if !isTerminal(os.Stdin) {
				return &InputError{Flag: "answers-file", Reason: "required when stdin is not a terminal"}
			}
			rep, err := services.Tools.GRCQuestions(ctx, framework)
			if err != nil {
				return err
			}
			questionnaire, ok := rep.Result.(*assessment.GRCQuestionnaire)
			if !ok {
				return fmt.Errorf("unexpected questionnaire type %T", rep.Result)
			}
			if answers, err = askQuestions(questionnaire); err != nil {
				return err
			}
		}

		rep, err := runWithSpinner(cmd, assessment.ToolGRC, func() (*tools.Report, error) {
			return services.Tools.GRCAssess(ctx, backend.GRCSubmission{
				Framework:    framework,
				Organization: organization,
				Industry:     industry,
				Answers:      answers,
			})
		})
		if err != nil {
			return err
		}
		return writeReport(cmd, rep)
	},
}

// loadAnswers reads the answers file, tolerating hand-edited near-JSON.
func loadAnswers(path string) (map[string]string, error) {
	data, err := readInputFile("answers-file", path, maxAnswersBytes)
	if err != nil {
		return nil, err
	}
	answers, _, err := jsonrepair.Decode[map[string]string](string(data))
	if err != nil {
		return nil, &InputError{Flag: "answers-file", Reason: err.Error()}
	}
	if len(answers) == 0 {
		return nil, &InputError{Flag: "answers-file", Reason: "no answers found"}
	}
	return answers, nil
}

// askQuestions walks the questionnaire category by category.
func askQuestions(q *assessment.GRCQuestionnaire) (map[string]string, error) {
	answers := make(map[string]string, len(q.Questions))
	for _, category := range q.Categories() {
		fmt.Fprintf(os.Stderr, "\n%s\n", colorInfo(category))
		for _, question := range q.Questions {
			if question.Category.String() != category {
				continue
			}
			answer, err := askQuestion(question)
			if err != nil {
				return nil, fmt.Errorf("question %s: %w", question.ID, err)
			}
			answers[question.ID.String()] = answer
		}
	}
	return answers, nil
}

func askQuestion(q assessment.GRCQuestion) (string, error) {
	label := q.Text.String()
	if q.Help != "" {
		label += " " + colorMuted("("+q.Help.String()+")")
	}
	if len(q.Options) > 0 {
		sel := promptui.Select{Label: label, Items: []string(q.Options)}
		_, answer, err := sel.Run()
		return answer, err
	}
	prompt := promptui.Prompt{
		Label: label,
		Validate: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("an answer is required")
			}
			return nil
		},
	}
	return prompt.Run()
}

func init() {
	for _, c := range []*cobra.Command{grcQuestionsCmd, grcAssessCmd} {
		c.Flags().String("framework", "iso27001", "compliance framework")
	}
	grcAssessCmd.Flags().String("answers-file", "", "JSON file with answers keyed by question id")
	grcAssessCmd.Flags().String("organization", "", "organization name")
	grcAssessCmd.Flags().String("industry", "", "industry sector")

	grcCmd.AddCommand(grcQuestionsCmd, grcAssessCmd)
	rootCmd.AddCommand(grcCmd)
}
