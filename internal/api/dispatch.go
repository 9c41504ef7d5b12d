package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/khanhnv2901/seca-suite/internal/application/tools"
	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
	"github.com/khanhnv2901/seca-suite/internal/domain/diagram"
	"github.com/khanhnv2901/seca-suite/internal/infrastructure/backend"
	"github.com/khanhnv2901/seca-suite/internal/jsonrepair"
	sharedErrors "github.com/khanhnv2901/seca-suite/internal/shared/errors"
)

// ToolService runs the analyses behind POST /api.php and jobs.
type ToolService interface {
	GRCQuestions(ctx context.Context, framework string) (*tools.Report, error)
	GRCAssess(ctx context.Context, sub backend.GRCSubmission) (*tools.Report, error)
	NetworkCapture(ctx context.Context, path string, progress backend.ProgressFunc) (*tools.Report, error)
	NetworkURL(ctx context.Context, target string) (*tools.Report, error)
	Password(ctx context.Context, pw string, opts tools.PasswordOptions) (*tools.Report, error)
	Phishing(ctx context.Context, in backend.PhishingInput) (*tools.Report, error)
	Ask(ctx context.Context, prompt, model string) (*tools.Report, error)
	ThreatModel(ctx context.Context, data diagram.SystemData) (*tools.Report, error)
}

// fieldFunc reads one request field.
type fieldFunc func(name string) string

// dispatch runs tool with the given fields. capturePath is the uploaded
// capture for network requests in pcap mode.
func dispatch(ctx context.Context, svc ToolService, tool assessment.Tool, field fieldFunc, capturePath string) (*tools.Report, error) {
	switch tool {
	case assessment.ToolGRCQuestions:
		return svc.GRCQuestions(ctx, field("framework"))

	case assessment.ToolGRC:
		sub := backend.GRCSubmission{
			Framework:    field("framework"),
			Organization: field("organization"),
			Industry:     field("industry"),
		}
		answers, err := decodeAnswers(field("answers"))
		if err != nil {
			return nil, err
		}
		sub.Answers = answers
		return svc.GRCAssess(ctx, sub)

	case assessment.ToolNetwork:
		mode := strings.ToLower(field("analysis_type"))
		if mode == "pcap" || (mode == "" && capturePath != "") {
			if capturePath == "" {
				return nil, fmt.Errorf("%w: pcap_file upload", sharedErrors.ErrMissingRequired)
			}
			return svc.NetworkCapture(ctx, capturePath, nil)
		}
		return svc.NetworkURL(ctx, field("target"))

	case assessment.ToolPassword:
		ai, _ := strconv.ParseBool(field("ai"))
		return svc.Password(ctx, field("password"), tools.PasswordOptions{AI: ai})

	case assessment.ToolPhishing:
		return svc.Phishing(ctx, backend.PhishingInput{URL: field("url"), Email: field("email_content")})

	case assessment.ToolAssistant:
		prompt := field("prompt")
		if strings.TrimSpace(prompt) == "" {
			return nil, fmt.Errorf("%w: prompt", sharedErrors.ErrMissingRequired)
		}
		return svc.Ask(ctx, prompt, field("model"))

	case assessment.ToolThreatModel:
		data, err := decodeSystemData(field("system_data"))
		if err != nil {
			return nil, err
		}
		if len(data.Methodologies) == 0 {
			data.Methodologies = splitList(field("methodologies"))
		}
		if len(data.Frameworks) == 0 {
			data.Frameworks = splitList(field("frameworks"))
		}
		return svc.ThreatModel(ctx, data)
	}
	return nil, fmt.Errorf("%w: %s", sharedErrors.ErrUnsupportedTool, tool)
}

// decodeAnswers accepts the answers JSON object, repairing browser-made
// near-JSON.
func decodeAnswers(raw string) (map[string]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: answers", sharedErrors.ErrMissingRequired)
	}
	loose, _, err := jsonrepair.Decode[map[string]any](raw)
	if err != nil {
		return nil, fmt.Errorf("%w: answers: %v", sharedErrors.ErrInvalidInput, err)
	}
	answers := make(map[string]string, len(loose))
	for k, v := range loose {
		switch t := v.(type) {
		case string:
			answers[k] = t
		case nil:
		default:
			b, _ := json.Marshal(t)
			answers[k] = string(b)
		}
	}
	return answers, nil
}

func decodeSystemData(raw string) (diagram.SystemData, error) {
	if strings.TrimSpace(raw) == "" {
		return diagram.SystemData{}, fmt.Errorf("%w: system_data", sharedErrors.ErrMissingRequired)
	}
	data, _, err := jsonrepair.Decode[diagram.SystemData](raw)
	if err != nil {
		return diagram.SystemData{}, fmt.Errorf("%w: system_data: %v", sharedErrors.ErrInvalidInput, err)
	}
	return data, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ToolJobs adapts svc into the JobFunc behind /api/v1/jobs. Jobs cannot
// reference server-side files, so network jobs always run in URL mode.
func ToolJobs(svc ToolService) JobFunc {
	return func(ctx context.Context, req JobRequest) (*tools.Report, error) {
		tool, err := assessment.ParseTool(req.Tool)
		if err != nil {
			return nil, err
		}
		fields := req.Fields
		if tool == assessment.ToolNetwork {
			fields = make(map[string]string, len(req.Fields))
			for k, v := range req.Fields {
				fields[k] = v
			}
			fields["analysis_type"] = "url"
		}
		return dispatch(ctx, svc, tool, func(name string) string { return fields[name] }, "")
	}
}
