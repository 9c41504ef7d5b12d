package schedule

import (
	"context"
	"fmt"
	"strings"

	"github.com/khanhnv2901/seca-suite/internal/application/tools"
	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
	"github.com/khanhnv2901/seca-suite/internal/domain/schedule"
	"github.com/khanhnv2901/seca-suite/internal/infrastructure/backend"
	sharedErrors "github.com/khanhnv2901/seca-suite/internal/shared/errors"
)

// Option keys understood by the tool executor.
const (
	// OptionMode selects "url" (default) or "pcap" for network schedules.
	OptionMode = "mode"
	// OptionEmailFile names a file whose content is checked for phishing
	// instead of the target URL.
	OptionEmailFile = "email_file"
)

// Executor runs the analysis behind one schedule.
type Executor interface {
	Execute(ctx context.Context, s *schedule.Schedule) (*tools.Report, error)
}

// DiagramAnalyzer analyzes a stored diagram by id.
type DiagramAnalyzer interface {
	Analyze(ctx context.Context, id string) (*tools.Report, error)
}

// ToolExecutor maps schedules onto the tool service.
type ToolExecutor struct {
	Tools    *tools.Service
	Diagrams DiagramAnalyzer
	// ReadFile loads email files; tests replace it.
	ReadFile func(path string) ([]byte, error)
}

// Execute implements Executor.
func (e *ToolExecutor) Execute(ctx context.Context, s *schedule.Schedule) (*tools.Report, error) {
	ctx = tools.WithSchedule(ctx, s.ID())
	switch s.Tool() {
	case assessment.ToolNetwork:
		switch strings.ToLower(s.Option(OptionMode)) {
		case "", "url":
			return e.Tools.NetworkURL(ctx, s.Target())
		case "pcap":
			return e.Tools.NetworkCapture(ctx, s.Target(), nil)
		default:
			return nil, fmt.Errorf("%w: network mode %q", sharedErrors.ErrInvalidInput, s.Option(OptionMode))
		}
	case assessment.ToolPhishing:
		in := backend.PhishingInput{URL: s.Target()}
		if path := s.Option(OptionEmailFile); path != "" && e.ReadFile != nil {
			raw, err := e.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read email file: %w", err)
			}
			in = backend.PhishingInput{Email: string(raw)}
		}
		return e.Tools.Phishing(ctx, in)
	case assessment.ToolThreatModel:
		if e.Diagrams == nil {
			return nil, fmt.Errorf("%w: no diagram store", sharedErrors.ErrUnsupportedTool)
		}
		return e.Diagrams.Analyze(ctx, s.Target())
	}
	return nil, fmt.Errorf("%w: %s cannot be scheduled", sharedErrors.ErrUnsupportedTool, s.Tool())
}
