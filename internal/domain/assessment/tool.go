package assessment

import (
	"fmt"

	sharedErrors "github.com/khanhnv2901/seca-suite/internal/shared/errors"
)

// Tool is the discriminator sent in the "tool" field of every request.
type Tool string

const (
	ToolGRC          Tool = "grc"
	ToolGRCQuestions Tool = "grc_questions"
	ToolNetwork      Tool = "network"
	ToolPassword     Tool = "password"
	ToolPhishing     Tool = "phishing"
	ToolAssistant    Tool = "ollama"
	ToolThreatModel  Tool = "threat_modeling"
)

// Tools lists every tool the suite endpoint understands.
var Tools = []Tool{ToolGRC, ToolGRCQuestions, ToolNetwork, ToolPassword, ToolPhishing, ToolAssistant, ToolThreatModel}

// ParseTool validates a tool name.
func ParseTool(s string) (Tool, error) {
	for _, t := range Tools {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", sharedErrors.ErrUnsupportedTool, s)
}

// Label is the human name of the tool.
func (t Tool) Label() string {
	switch t {
	case ToolGRC:
		return "GRC Assessment"
	case ToolGRCQuestions:
		return "GRC Questionnaire"
	case ToolNetwork:
		return "Network Analysis"
	case ToolPassword:
		return "Password Analysis"
	case ToolPhishing:
		return "Phishing Detection"
	case ToolAssistant:
		return "AI Assistant"
	case ToolThreatModel:
		return "Threat Modeling"
	}
	return string(t)
}

// Source records where a result came from.
type Source string

const (
	SourceRemote   Source = "remote"
	SourceRepaired Source = "repaired"
	SourceLocal    Source = "local"
)
