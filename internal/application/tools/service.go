// Package tools runs the suite's analyses: remote first, local heuristics when
// the backend cannot answer, and every completed analysis recorded in history.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/khanhnv2901/seca-suite/internal/analysis/capture"
	"github.com/khanhnv2901/seca-suite/internal/analysis/headers"
	"github.com/khanhnv2901/seca-suite/internal/analysis/password"
	"github.com/khanhnv2901/seca-suite/internal/analysis/phishing"
	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
	"github.com/khanhnv2901/seca-suite/internal/domain/diagram"
	"github.com/khanhnv2901/seca-suite/internal/domain/history"
	"github.com/khanhnv2901/seca-suite/internal/domain/threatmodel"
	"github.com/khanhnv2901/seca-suite/internal/infrastructure/backend"
	"github.com/khanhnv2901/seca-suite/internal/llm"
)

// Backend is the remote analysis endpoint.
type Backend interface {
	FetchGRCQuestions(ctx context.Context, framework string) (assessment.GRCQuestionnaire, backend.Meta, error)
	SubmitGRC(ctx context.Context, sub backend.GRCSubmission) (assessment.GRCResult, backend.Meta, error)
	AnalyzeCapture(ctx context.Context, path string, progress backend.ProgressFunc) (assessment.NetworkResult, backend.Meta, error)
	AnalyzeURL(ctx context.Context, target string) (assessment.NetworkResult, backend.Meta, error)
	AnalyzePassword(ctx context.Context, password string) (assessment.PasswordResult, backend.Meta, error)
	AnalyzePhishing(ctx context.Context, in backend.PhishingInput) (assessment.PhishingResult, backend.Meta, error)
	AskAssistant(ctx context.Context, prompt, model string) (assessment.AssistantReply, backend.Meta, error)
	AnalyzeThreatModel(ctx context.Context, data diagram.SystemData) (assessment.ThreatModelResult, backend.Meta, error)
}

// HeaderScanner fetches a URL for the local header analysis.
type HeaderScanner interface {
	Scan(ctx context.Context, target string) (headers.Report, error)
}

// Report is the outcome of one analysis.
type Report struct {
	Tool           assessment.Tool   `json:"tool"`
	Target         string            `json:"target,omitempty"`
	Source         assessment.Source `json:"source"`
	FallbackReason string            `json:"fallback_reason,omitempty"`
	HistoryID      string            `json:"history_id,omitempty"`
	Elapsed        time.Duration     `json:"elapsed"`
	Result         any               `json:"result"`
}

// Local reports whether the result came from the local fallback.
func (r *Report) Local() bool { return r.Source == assessment.SourceLocal }

// Options tune a Service.
type Options struct {
	// Offline skips the backend entirely.
	Offline bool
	// DisableFallback returns backend errors instead of answering locally.
	DisableFallback bool
	// Frameworks tag local header findings with compliance references.
	Frameworks []string
	// Model is passed to the assistant when the caller names none.
	Model string
}

// Service runs analyses against the backend with local fallbacks.
type Service struct {
	backend  Backend
	history  history.Repository
	provider llm.Provider
	scanner  HeaderScanner
	logger   *zap.Logger
	opts     Options
}

// NewService creates a tool service. history and provider may be nil.
func NewService(b Backend, hist history.Repository, provider llm.Provider, scanner HeaderScanner, logger *zap.Logger, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		backend:  b,
		history:  hist,
		provider: provider,
		scanner:  scanner,
		logger:   logger,
		opts:     opts,
	}
}

// ErrNoFallback is returned when the backend failed and the tool has no local
// implementation.
var ErrNoFallback = errors.New("no local analysis available")

var errOffline = errors.New("offline mode")

// run executes the remote call and, when allowed, the local one. remote may
// be nil for tools that only run locally.
func run[T any](ctx context.Context, s *Service, tool assessment.Tool, target string,
	remote func(context.Context) (T, backend.Meta, error),
	local func(context.Context) (T, error),
) (*Report, T, error) {
	start := time.Now()
	rep := &Report{Tool: tool, Target: target}

	var (
		res T
		err = errOffline
	)
	if !s.opts.Offline && remote != nil {
		var meta backend.Meta
		res, meta, err = remote(ctx)
		if err == nil {
			rep.Source = assessment.SourceRemote
			if meta.Repaired {
				rep.Source = assessment.SourceRepaired
			}
		}
	}

	if err != nil {
		offline := errors.Is(err, errOffline)
		if !offline && (s.opts.DisableFallback || !backend.Fallbackable(err)) {
			return nil, res, err
		}
		if local == nil {
			if offline {
				return nil, res, fmt.Errorf("%s: %w", tool.Label(), ErrNoFallback)
			}
			return nil, res, err
		}
		reason := "offline mode"
		if !offline {
			reason = fallbackReason(err)
			s.logger.Warn("backend unavailable, using local analysis",
				zap.String("tool", string(tool)), zap.Error(err))
		}
		localRes, lerr := local(ctx)
		if lerr != nil {
			if offline {
				return nil, res, lerr
			}
			return nil, res, fmt.Errorf("%w (local analysis also failed: %v)", err, lerr)
		}
		res = localRes
		rep.Source = assessment.SourceLocal
		rep.FallbackReason = reason
	}

	rep.Elapsed = time.Since(start)
	rep.Result = &res
	return rep, res, nil
}

func fallbackReason(err error) string {
	var be *backend.Error
	if errors.As(err, &be) {
		if be.Status > 0 {
			return fmt.Sprintf("%s error (HTTP %d): %s", be.Kind, be.Status, be.Message)
		}
		return fmt.Sprintf("%s error: %s", be.Kind, be.Message)
	}
	return err.Error()
}

// record stores a finished analysis. Failures are logged, never returned:
// the analysis itself succeeded.
func (s *Service) record(ctx context.Context, rep *Report, score float64, risk, summary string) {
	if s.history == nil {
		return
	}
	payload, err := json.Marshal(rep.Result)
	if err != nil {
		s.logger.Warn("history payload", zap.Error(err))
		return
	}
	entry, err := history.NewEntry(rep.Tool, rep.Target, rep.Source, score, risk, summary, payload)
	if err != nil {
		s.logger.Warn("history entry", zap.Error(err))
		return
	}
	if id := scheduleFrom(ctx); id != "" {
		entry.AttachSchedule(id)
	}
	if err := s.history.Save(ctx, entry); err != nil {
		s.logger.Warn("history save", zap.String("tool", string(rep.Tool)), zap.Error(err))
		return
	}
	rep.HistoryID = entry.ID()
}

type scheduleKey struct{}

// WithSchedule marks analyses run under ctx as produced by a schedule.
func WithSchedule(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, scheduleKey{}, id)
}

func scheduleFrom(ctx context.Context) string {
	id, _ := ctx.Value(scheduleKey{}).(string)
	return id
}

// GRCQuestions loads the questionnaire of a framework. It has no local fallback.
func (s *Service) GRCQuestions(ctx context.Context, framework string) (*Report, error) {
	framework = strings.TrimSpace(framework)
	rep, _, err := run(ctx, s, assessment.ToolGRCQuestions, framework,
		func(ctx context.Context) (assessment.GRCQuestionnaire, backend.Meta, error) {
			return s.backend.FetchGRCQuestions(ctx, framework)
		}, nil)
	return rep, err
}

// GRCAssess submits questionnaire answers. It has no local fallback.
func (s *Service) GRCAssess(ctx context.Context, sub backend.GRCSubmission) (*Report, error) {
	rep, res, err := run(ctx, s, assessment.ToolGRC, sub.Framework,
		func(ctx context.Context) (assessment.GRCResult, backend.Meta, error) {
			return s.backend.SubmitGRC(ctx, sub)
		}, nil)
	if err != nil {
		return nil, err
	}
	s.record(ctx, rep, float64(res.OverallScore), string(res.RiskLevel), string(res.Summary))
	return rep, nil
}

// NetworkCapture analyzes a capture file. Offline, classic pcap files are
// summarized locally; pcapng needs the backend.
func (s *Service) NetworkCapture(ctx context.Context, path string, progress backend.ProgressFunc) (*Report, error) {
	rep, res, err := run(ctx, s, assessment.ToolNetwork, path,
		func(ctx context.Context) (assessment.NetworkResult, backend.Meta, error) {
			return s.backend.AnalyzeCapture(ctx, path, progress)
		},
		func(ctx context.Context) (assessment.NetworkResult, error) {
			sum, err := capture.SummarizeFile(path)
			if err != nil {
				return assessment.NetworkResult{}, err
			}
			return sum.NetworkResult(path), nil
		})
	if err != nil {
		return nil, err
	}
	s.record(ctx, rep, float64(res.SecurityScore), string(res.RiskLevel), networkSummary(res))
	return rep, nil
}

// NetworkURL analyzes a site. Offline, its security headers are scored locally.
func (s *Service) NetworkURL(ctx context.Context, target string) (*Report, error) {
	target = strings.TrimSpace(target)
	var local func(context.Context) (assessment.NetworkResult, error)
	if s.scanner != nil {
		local = func(ctx context.Context) (assessment.NetworkResult, error) {
			r, err := s.scanner.Scan(ctx, target)
			if err != nil {
				return assessment.NetworkResult{}, err
			}
			return headers.ToNetworkResult(r, s.opts.Frameworks), nil
		}
	}
	if s.opts.Offline {
		if err := capture.ValidateURL(target); err != nil {
			return nil, err
		}
	}
	rep, res, err := run(ctx, s, assessment.ToolNetwork, target,
		func(ctx context.Context) (assessment.NetworkResult, backend.Meta, error) {
			return s.backend.AnalyzeURL(ctx, target)
		}, local)
	if err != nil {
		return nil, err
	}
	s.record(ctx, rep, float64(res.SecurityScore), string(res.RiskLevel), networkSummary(res))
	return rep, nil
}

func networkSummary(r assessment.NetworkResult) string {
	return fmt.Sprintf("%s analysis: %d threat(s), score %d", r.AnalysisType, len(r.Threats), r.SecurityScore.Int())
}

// PasswordOptions tune a password analysis.
type PasswordOptions struct {
	// AI asks the model for an opinion on the metrics when the result has none.
	AI bool
}

// Password scores a password. The password is never written to history.
func (s *Service) Password(ctx context.Context, pw string, opts PasswordOptions) (*Report, error) {
	if pw == "" {
		return nil, fmt.Errorf("%s: password is empty", assessment.ToolPassword.Label())
	}
	rep, res, err := run(ctx, s, assessment.ToolPassword, "",
		func(ctx context.Context) (assessment.PasswordResult, backend.Meta, error) {
			return s.backend.AnalyzePassword(ctx, pw)
		},
		func(ctx context.Context) (assessment.PasswordResult, error) {
			return password.Analyze(pw), nil
		})
	if err != nil {
		return nil, err
	}

	if opts.AI && s.provider != nil && res.AIAnalysis == "" {
		insight, _, aerr := llm.InsightForPassword(ctx, s.provider, res)
		if aerr != nil {
			s.logger.Warn("password insight", zap.Error(aerr))
		} else {
			insight.Apply(&res)
			rep.Result = &res
		}
	}

	s.record(ctx, rep, float64(res.Score), assessment.RiskBand(100-float64(res.Score)), string(res.Strength))
	return rep, nil
}

// Phishing inspects a URL or an email. Offline, heuristics stand in; an email
// takes precedence over a URL when both are given.
func (s *Service) Phishing(ctx context.Context, in backend.PhishingInput) (*Report, error) {
	in.URL = strings.TrimSpace(in.URL)
	if in.URL == "" && strings.TrimSpace(in.Email) == "" {
		return nil, fmt.Errorf("%s: provide a URL or email content", assessment.ToolPhishing.Label())
	}
	target := in.URL
	if target == "" {
		target = "email"
	}
	rep, res, err := run(ctx, s, assessment.ToolPhishing, target,
		func(ctx context.Context) (assessment.PhishingResult, backend.Meta, error) {
			return s.backend.AnalyzePhishing(ctx, in)
		},
		func(ctx context.Context) (assessment.PhishingResult, error) {
			if strings.TrimSpace(in.Email) != "" {
				return phishing.AnalyzeEmail(in.Email), nil
			}
			return phishing.AnalyzeURL(in.URL), nil
		})
	if err != nil {
		return nil, err
	}
	s.record(ctx, rep, float64(res.PhishingScore), string(res.RiskLevel), string(res.Verdict))
	return rep, nil
}

// Ask sends a prompt to the assistant. Offline, the local model answers
// directly when one is configured. Conversations are not recorded.
func (s *Service) Ask(ctx context.Context, prompt, model string) (*Report, error) {
	if model == "" {
		model = s.opts.Model
	}
	var local func(context.Context) (assessment.AssistantReply, error)
	if s.provider != nil {
		local = func(ctx context.Context) (assessment.AssistantReply, error) {
			return llm.Ask(ctx, s.provider, prompt, model)
		}
	}
	rep, _, err := run(ctx, s, assessment.ToolAssistant, "",
		func(ctx context.Context) (assessment.AssistantReply, backend.Meta, error) {
			return s.backend.AskAssistant(ctx, prompt, model)
		}, local)
	return rep, err
}

// ThreatModel analyzes a diagram. Offline, a structural review stands in.
func (s *Service) ThreatModel(ctx context.Context, data diagram.SystemData) (*Report, error) {
	data = threatmodel.Normalize(data)
	if s.opts.Offline {
		if err := threatmodel.Validate(data); err != nil {
			return nil, err
		}
	}
	rep, res, err := run(ctx, s, assessment.ToolThreatModel, data.Name,
		func(ctx context.Context) (assessment.ThreatModelResult, backend.Meta, error) {
			return s.backend.AnalyzeThreatModel(ctx, data)
		},
		func(ctx context.Context) (assessment.ThreatModelResult, error) {
			return threatmodel.ReviewResult(data), nil
		})
	if err != nil {
		return nil, err
	}
	s.record(ctx, rep, float64(res.RiskScore), string(res.RiskLevel), fmt.Sprintf("%d threat(s)", len(res.Threats)))
	return rep, nil
}
