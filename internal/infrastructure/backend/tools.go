package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/khanhnv2901/seca-suite/internal/analysis/capture"
	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
	"github.com/khanhnv2901/seca-suite/internal/domain/diagram"
	"github.com/khanhnv2901/seca-suite/internal/domain/threatmodel"
	"github.com/khanhnv2901/seca-suite/internal/jsonrepair"
	"github.com/khanhnv2901/seca-suite/internal/shared/constants"
)

// Meta describes how a typed result was obtained.
type Meta struct {
	Status   int
	Repaired bool
	Message  string
}

type normalizing[T any] interface {
	*T
	assessment.Normalizer
}

// decodeData unmarshals the response data into T and normalizes it. Data that
// arrives as a JSON string (model output passed through verbatim) is repaired
// before decoding.
func decodeData[T any, PT normalizing[T]](tool assessment.Tool, resp *Response) (T, Meta, error) {
	var out T
	meta := Meta{Status: resp.Status, Repaired: resp.Repaired, Message: resp.Message}

	data := resp.Data
	var text string
	if len(data) > 0 && data[0] == '"' && json.Unmarshal(data, &text) == nil {
		fixed, err := jsonrepair.Repair(text)
		if err != nil {
			return out, meta, parseError(tool, resp.Status, text, err)
		}
		data = json.RawMessage(fixed.JSON)
		meta.Repaired = meta.Repaired || fixed.Repaired
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, meta, parseError(tool, resp.Status, string(data), err)
	}
	PT(&out).Normalize()
	return out, meta, nil
}

func parseError(tool assessment.Tool, status int, body string, err error) error {
	return &Error{
		Kind:    KindParse,
		Tool:    tool,
		Status:  status,
		Message: "result does not match the expected format",
		Body:    snippet([]byte(body)),
		Err:     err,
	}
}

func validationError(tool assessment.Tool, err error, hint string) error {
	return &Error{Kind: KindValidation, Tool: tool, Message: err.Error(), Hint: hint, Err: err}
}

func call[T any, PT normalizing[T]](ctx context.Context, c *Client, req Request) (T, Meta, error) {
	resp, err := c.Post(ctx, req)
	if err != nil {
		var zero T
		return zero, Meta{}, err
	}
	return decodeData[T, PT](req.Tool, resp)
}

// FetchGRCQuestions loads the questionnaire for framework.
func (c *Client) FetchGRCQuestions(ctx context.Context, framework string) (assessment.GRCQuestionnaire, Meta, error) {
	fields := url.Values{}
	if framework != "" {
		fields.Set("framework", framework)
	}
	return call[assessment.GRCQuestionnaire](ctx, c, Request{Tool: assessment.ToolGRCQuestions, Fields: fields})
}

// GRCSubmission is a completed questionnaire.
type GRCSubmission struct {
	Framework    string            `json:"framework"`
	Organization string            `json:"organization,omitempty"`
	Industry     string            `json:"industry,omitempty"`
	Answers      map[string]string `json:"answers"`
}

// SubmitGRC sends the answers for scoring. It uses the long GRC timeout.
func (c *Client) SubmitGRC(ctx context.Context, sub GRCSubmission) (assessment.GRCResult, Meta, error) {
	if len(sub.Answers) == 0 {
		return assessment.GRCResult{}, Meta{}, validationError(assessment.ToolGRC,
			errors.New("no answers provided"), "Answer at least one question before submitting.")
	}
	answers, err := json.Marshal(sub.Answers)
	if err != nil {
		return assessment.GRCResult{}, Meta{}, validationError(assessment.ToolGRC, err, "")
	}
	fields := url.Values{}
	fields.Set("framework", sub.Framework)
	fields.Set("answers", string(answers))
	if sub.Organization != "" {
		fields.Set("organization", sub.Organization)
	}
	if sub.Industry != "" {
		fields.Set("industry", sub.Industry)
	}
	return call[assessment.GRCResult](ctx, c, Request{Tool: assessment.ToolGRC, Fields: fields})
}

// AnalyzeCapture uploads a pcap or pcapng file.
func (c *Client) AnalyzeCapture(ctx context.Context, path string, progress ProgressFunc) (assessment.NetworkResult, Meta, error) {
	info, err := capture.Validate(path, constants.MaxCaptureBytes)
	if err != nil {
		var verr *capture.ValidationError
		if errors.As(err, &verr) {
			return assessment.NetworkResult{}, Meta{}, validationError(assessment.ToolNetwork, err, verr.Hint)
		}
		return assessment.NetworkResult{}, Meta{}, validationError(assessment.ToolNetwork, err, "")
	}
	f, err := os.Open(path)
	if err != nil {
		return assessment.NetworkResult{}, Meta{}, validationError(assessment.ToolNetwork, err, "")
	}
	defer f.Close()

	fields := url.Values{}
	fields.Set("analysis_type", "pcap")
	return call[assessment.NetworkResult](ctx, c, Request{
		Tool:     assessment.ToolNetwork,
		Fields:   fields,
		Files:    []File{{Field: "pcap_file", Name: filepath.Base(path), Reader: f, Size: info.Size}},
		Progress: progress,
	})
}

// AnalyzeURL asks for a URL-mode network analysis.
func (c *Client) AnalyzeURL(ctx context.Context, target string) (assessment.NetworkResult, Meta, error) {
	if err := capture.ValidateURL(target); err != nil {
		return assessment.NetworkResult{}, Meta{}, validationError(assessment.ToolNetwork, err,
			"Enter a full URL such as https://example.com.")
	}
	fields := url.Values{}
	fields.Set("analysis_type", "url")
	fields.Set("target", strings.TrimSpace(target))
	return call[assessment.NetworkResult](ctx, c, Request{Tool: assessment.ToolNetwork, Fields: fields})
}

// AnalyzePassword asks for a password strength analysis.
func (c *Client) AnalyzePassword(ctx context.Context, password string) (assessment.PasswordResult, Meta, error) {
	if password == "" {
		return assessment.PasswordResult{}, Meta{}, validationError(assessment.ToolPassword,
			errors.New("password is empty"), "")
	}
	fields := url.Values{}
	fields.Set("password", password)
	return call[assessment.PasswordResult](ctx, c, Request{Tool: assessment.ToolPassword, Fields: fields})
}

// PhishingInput selects what the phishing tool inspects. At least one field is required.
type PhishingInput struct {
	URL   string
	Email string
}

// AnalyzePhishing asks for a phishing verdict on a URL, an email or both.
func (c *Client) AnalyzePhishing(ctx context.Context, in PhishingInput) (assessment.PhishingResult, Meta, error) {
	in.URL = strings.TrimSpace(in.URL)
	if in.URL == "" && strings.TrimSpace(in.Email) == "" {
		return assessment.PhishingResult{}, Meta{}, validationError(assessment.ToolPhishing,
			errors.New("provide a URL or email content"), "")
	}
	fields := url.Values{}
	if in.URL != "" {
		fields.Set("url", in.URL)
	}
	if in.Email != "" {
		fields.Set("email_content", in.Email)
	}
	return call[assessment.PhishingResult](ctx, c, Request{Tool: assessment.ToolPhishing, Fields: fields})
}

// AskAssistant sends a free-form prompt to the model behind the suite.
func (c *Client) AskAssistant(ctx context.Context, prompt, model string) (assessment.AssistantReply, Meta, error) {
	if strings.TrimSpace(prompt) == "" {
		return assessment.AssistantReply{}, Meta{}, validationError(assessment.ToolAssistant,
			errors.New("prompt is empty"), "")
	}
	fields := url.Values{}
	fields.Set("prompt", prompt)
	if model != "" {
		fields.Set("model", model)
	}
	return call[assessment.AssistantReply](ctx, c, Request{Tool: assessment.ToolAssistant, Fields: fields})
}

// AnalyzeThreatModel posts a diagram for threat analysis.
func (c *Client) AnalyzeThreatModel(ctx context.Context, data diagram.SystemData) (assessment.ThreatModelResult, Meta, error) {
	data = threatmodel.Normalize(data)
	if err := threatmodel.Validate(data); err != nil {
		return assessment.ThreatModelResult{}, Meta{}, validationError(assessment.ToolThreatModel, err,
			"Name the system and add at least one component.")
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return assessment.ThreatModelResult{}, Meta{}, validationError(assessment.ToolThreatModel,
			fmt.Errorf("encode system data: %w", err), "")
	}
	fields := url.Values{}
	fields.Set("system_data", string(payload))
	fields.Set("methodologies", strings.Join(data.Methodologies, ","))
	fields.Set("frameworks", strings.Join(data.Frameworks, ","))
	return call[assessment.ThreatModelResult](ctx, c, Request{Tool: assessment.ToolThreatModel, Fields: fields})
}
