package history

import (
	"context"
	"fmt"
	"time"

	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
	"github.com/khanhnv2901/seca-suite/internal/domain/history"
	sharedErrors "github.com/khanhnv2901/seca-suite/internal/shared/errors"
)

// Service provides application-level history operations
type Service struct {
	repo history.Repository
	now  func() time.Time
}

// NewService creates a new history service
func NewService(repo history.Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// List retrieves entries matching the filter, newest first
func (s *Service) List(ctx context.Context, f history.Filter) ([]*history.Entry, error) {
	entries, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return entries, nil
}

// Get retrieves an entry by ID
func (s *Service) Get(ctx context.Context, id string) (*history.Entry, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get history entry: %w", err)
	}
	return entry, nil
}

// Prune removes entries older than the retention period
func (s *Service) Prune(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, fmt.Errorf("%w: retention must be at least one day", sharedErrors.ErrInvalidInput)
	}
	cutoff := s.now().UTC().AddDate(0, 0, -retentionDays)
	n, err := s.repo.Prune(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return n, nil
}

// Result decodes an entry's payload into the result type of its tool.
func Result(e *history.Entry) (any, error) {
	var v any
	switch e.Tool() {
	case assessment.ToolGRC:
		v = &assessment.GRCResult{}
	case assessment.ToolGRCQuestions:
		v = &assessment.GRCQuestionnaire{}
	case assessment.ToolNetwork:
		v = &assessment.NetworkResult{}
	case assessment.ToolPassword:
		v = &assessment.PasswordResult{}
	case assessment.ToolPhishing:
		v = &assessment.PhishingResult{}
	case assessment.ToolThreatModel:
		v = &assessment.ThreatModelResult{}
	case assessment.ToolAssistant:
		v = &assessment.AssistantReply{}
	default:
		return nil, fmt.Errorf("%w: %s", sharedErrors.ErrUnsupportedTool, e.Tool())
	}
	if err := e.DecodePayload(v); err != nil {
		return nil, fmt.Errorf("%w: %v", sharedErrors.ErrDeserializationFailed, err)
	}
	if n, ok := v.(assessment.Normalizer); ok {
		n.Normalize()
	}
	return v, nil
}
