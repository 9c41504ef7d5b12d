package threatmodel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/khanhnv2901/seca-suite/internal/application/tools"
	"github.com/khanhnv2901/seca-suite/internal/domain/diagram"
	"github.com/khanhnv2901/seca-suite/internal/domain/threatmodel"
	"github.com/khanhnv2901/seca-suite/internal/render"
	sharedErrors "github.com/khanhnv2901/seca-suite/internal/shared/errors"
)

// Format is a diagram export or import format.
type Format string

const (
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatMermaid Format = "mermaid"
	FormatSVG     Format = "svg"
)

// ParseFormat resolves a format name or file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "mermaid", "mmd":
		return FormatMermaid, nil
	case "svg":
		return FormatSVG, nil
	}
	return "", fmt.Errorf("%w: unknown diagram format %q", sharedErrors.ErrInvalidInput, s)
}

// Analyzer runs the remote threat analysis with its local fallback.
type Analyzer interface {
	ThreatModel(ctx context.Context, data diagram.SystemData) (*tools.Report, error)
}

// Service provides application-level diagram operations
type Service struct {
	repo     diagram.Repository
	analyzer Analyzer
	canvas   diagram.Canvas
	logger   *zap.Logger
}

// NewService creates a new diagram service. New diagrams get the given canvas.
func NewService(repo diagram.Repository, analyzer Analyzer, canvas diagram.Canvas, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, analyzer: analyzer, canvas: canvas, logger: logger}
}

// Canvas returns the canvas used for new diagrams.
func (s *Service) Canvas() diagram.Canvas { return s.canvas }

// Create stores an empty diagram. It fails when the id is taken.
func (s *Service) Create(ctx context.Context, id, name string) (*Session, error) {
	exists, err := s.repo.Exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", sharedErrors.ErrDiagramExists, id)
	}
	if strings.TrimSpace(name) == "" {
		name = id
	}
	sess := &Session{id: id, editor: diagram.NewEditor(diagram.NewModel(name, s.canvas), nil)}
	if err := s.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Open loads a diagram into an editing session. confirm approves destructive
// actions; nil declines them.
func (s *Service) Open(ctx context.Context, id string, confirm diagram.Confirmer) (*Session, error) {
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get diagram: %w", err)
	}
	canvas := doc.Canvas
	if canvas.Width <= 0 || canvas.Height <= 0 {
		canvas = s.canvas
	}
	model, err := diagram.FromSystemData(doc.Data, canvas)
	if err != nil {
		return nil, fmt.Errorf("failed to load diagram %s: %w", id, err)
	}
	return &Session{id: id, editor: diagram.NewEditor(model, confirm)}, nil
}

// Save persists the session's current model.
func (s *Service) Save(ctx context.Context, sess *Session) error {
	doc := &diagram.Document{
		ID:     sess.id,
		Data:   sess.editor.Model().Snapshot(),
		Canvas: sess.editor.Model().Graph.Canvas(),
	}
	if err := s.repo.Save(ctx, doc); err != nil {
		return fmt.Errorf("failed to save diagram: %w", err)
	}
	sess.dirty = false
	return nil
}

// Apply opens a diagram, dispatches the actions in order and saves it when
// anything changed. Outcomes are returned in dispatch order.
func (s *Service) Apply(ctx context.Context, id string, actions ...diagram.Action) ([]diagram.Outcome, error) {
	sess, err := s.Open(ctx, id, diagram.AlwaysConfirm)
	if err != nil {
		return nil, err
	}
	outcomes := make([]diagram.Outcome, 0, len(actions))
	for _, a := range actions {
		outcomes = append(outcomes, sess.Dispatch(a))
	}
	if sess.Dirty() {
		if err := s.Save(ctx, sess); err != nil {
			return outcomes, err
		}
	}
	return outcomes, nil
}

// Get retrieves a stored diagram
func (s *Service) Get(ctx context.Context, id string) (*diagram.Document, error) {
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get diagram: %w", err)
	}
	return doc, nil
}

// List retrieves all stored diagrams
func (s *Service) List(ctx context.Context) ([]*diagram.Document, error) {
	docs, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list diagrams: %w", err)
	}
	return docs, nil
}

// Delete removes a stored diagram
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// Export writes a stored diagram in the given format.
func (s *Service) Export(ctx context.Context, id string, format Format, w io.Writer) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return Encode(w, format, doc.Data, doc.Canvas)
}

// Encode writes system data in the given format.
func Encode(w io.Writer, format Format, data diagram.SystemData, canvas diagram.Canvas) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		b, err := render.YAML(data, canvas)
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	case FormatMermaid:
		_, err := io.WriteString(w, render.Mermaid(data))
		return err
	case FormatSVG:
		return render.SVG(w, data, canvas)
	}
	return fmt.Errorf("%w: cannot export diagrams as %q", sharedErrors.ErrInvalidInput, format)
}

// Import stores a diagram read from JSON or YAML, replacing any diagram with
// the same id. Components outside the canvas are rejected by the model.
func (s *Service) Import(ctx context.Context, id string, format Format, r io.Reader) (*diagram.Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var (
		data   diagram.SystemData
		canvas = s.canvas
	)
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&data); err != nil {
			return nil, fmt.Errorf("%w: %v", sharedErrors.ErrDeserializationFailed, err)
		}
	case FormatYAML:
		var c diagram.Canvas
		if data, c, err = render.ParseYAML(raw); err != nil {
			return nil, fmt.Errorf("%w: %v", sharedErrors.ErrDeserializationFailed, err)
		}
		if c.Width > 0 && c.Height > 0 {
			canvas = c
		}
	default:
		return nil, fmt.Errorf("%w: cannot import diagrams from %q", sharedErrors.ErrInvalidInput, format)
	}

	model, err := diagram.FromSystemData(data, canvas)
	if err != nil {
		return nil, err
	}
	doc := &diagram.Document{ID: id, Data: model.Snapshot(), Canvas: canvas}
	if err := s.repo.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to save diagram: %w", err)
	}
	s.logger.Info("diagram imported", zap.String("id", id), zap.Int("components", len(doc.Data.Components)))
	return doc, nil
}

// Validate checks that a stored diagram is ready for analysis.
func (s *Service) Validate(ctx context.Context, id string) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return threatmodel.Validate(threatmodel.Normalize(doc.Data))
}

// Review runs the structural checks on a stored diagram without the backend.
func (s *Service) Review(ctx context.Context, id string) ([]threatmodel.Finding, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return threatmodel.Review(threatmodel.Normalize(doc.Data)), nil
}

// Analyze sends a stored diagram for threat analysis.
func (s *Service) Analyze(ctx context.Context, id string) (*tools.Report, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.analyzer.ThreatModel(ctx, doc.Data)
}

// Session is an open diagram being edited.
type Session struct {
	id     string
	editor *diagram.Editor
	dirty  bool
}

// ID returns the diagram id.
func (s *Session) ID() string { return s.id }

// Editor returns the underlying editor.
func (s *Session) Editor() *diagram.Editor { return s.editor }

// Dirty reports whether the model changed since it was loaded or saved.
func (s *Session) Dirty() bool { return s.dirty }

// Dispatch forwards an action to the editor and tracks unsaved changes.
func (s *Session) Dispatch(a diagram.Action) diagram.Outcome {
	out := s.editor.Dispatch(a)
	if out.Changed {
		s.dirty = true
	}
	return out
}

// Snapshot returns the current system data.
func (s *Session) Snapshot() diagram.SystemData {
	return s.editor.Model().Snapshot()
}
