package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
	"github.com/khanhnv2901/seca-suite/internal/jsonrepair"
)

const assistantPrompt = "You are a security assistant. Answer concisely and practically. Use Markdown for lists and code."

// Ask sends a free-form question and returns it as an assistant reply.
func Ask(ctx context.Context, p Provider, prompt, model string) (assessment.AssistantReply, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return assessment.AssistantReply{}, fmt.Errorf("prompt cannot be empty")
	}
	resp, err := p.Complete(ctx, CompletionRequest{
		Model: model,
		Messages: []Message{
			{Role: RoleSystem, Content: assistantPrompt},
			{Role: RoleUser, Content: prompt},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return assessment.AssistantReply{}, err
	}
	reply := assessment.AssistantReply{
		Response: assessment.Text(strings.TrimSpace(resp.Content)),
		Model:    assessment.Text(resp.Model),
	}
	reply.Normalize()
	return reply, nil
}

// PasswordInsight is the model's structured opinion on a scored password.
type PasswordInsight struct {
	Analysis    assessment.Text     `json:"analysis"`
	Suggestions assessment.TextList `json:"suggestions"`
	RiskScore   assessment.Number   `json:"risk_score"`
}

const passwordPrompt = `You review password strength reports. Reply with a JSON object only:
{"analysis": "<two or three sentences>", "suggestions": ["<suggestion>", ...], "risk_score": <0-100>}`

// InsightForPassword asks the model to comment on a local password result.
// The password itself is never sent, only its metrics. Model output is run
// through jsonrepair and the returned Result tells whether it needed fixing.
func InsightForPassword(ctx context.Context, p Provider, r assessment.PasswordResult) (PasswordInsight, jsonrepair.Result, error) {
	summary := fmt.Sprintf("score=%d strength=%s length=%d entropy=%.1f classes=%d common=%t crack_time=%q feedback=%s",
		int(r.Score), r.Strength, int(r.Length), float64(r.Entropy), r.Classes.Count(), bool(r.Common), string(r.CrackTime),
		strings.Join(r.Feedback, "; "))

	resp, err := p.Complete(ctx, CompletionRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: passwordPrompt},
			{Role: RoleUser, Content: summary},
		},
		JSONMode:    true,
		Temperature: 0.2,
	})
	if err != nil {
		return PasswordInsight{}, jsonrepair.Result{}, err
	}

	insight, res, err := jsonrepair.Decode[PasswordInsight](resp.Content)
	if err != nil {
		return PasswordInsight{}, res, fmt.Errorf("password insight: %w", err)
	}
	return insight, res, nil
}

// Apply merges the insight into the result's AI fields and suggestions.
func (in PasswordInsight) Apply(r *assessment.PasswordResult) {
	r.AIAnalysis = in.Analysis
	seen := make(map[string]bool, len(r.Suggestions))
	for _, s := range r.Suggestions {
		seen[s] = true
	}
	for _, s := range in.Suggestions {
		if s != "" && !seen[s] {
			r.Suggestions = append(r.Suggestions, s)
			seen[s] = true
		}
	}
}
