package json

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/khanhnv2901/seca-suite/internal/domain/diagram"
	"github.com/khanhnv2901/seca-suite/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-suite/internal/shared/errors"
	"github.com/khanhnv2901/seca-suite/internal/shared/security"
)

const diagramExt = ".json"

// diagramDTO is the data transfer object for JSON serialization
type diagramDTO struct {
	ID         string             `json:"id"`
	SystemData diagram.SystemData `json:"system_data"`
	Canvas     diagram.Canvas     `json:"canvas"`
	CreatedAt  string             `json:"created_at"`
	UpdatedAt  string             `json:"updated_at"`
}

// DiagramRepository implements the diagram.Repository interface with one
// JSON file per diagram.
type DiagramRepository struct {
	dir string
	mu  sync.RWMutex
}

// NewDiagramRepository creates a new JSON-based diagram repository
func NewDiagramRepository(dataDir string) (*DiagramRepository, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory cannot be empty")
	}
	dir, err := security.ResolveWithin(dataDir, "diagrams")
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, constants.DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create diagram directory: %w", err)
	}
	return &DiagramRepository{dir: dir}, nil
}

// Save persists a diagram, keeping the original creation time on update
func (r *DiagramRepository) Save(ctx context.Context, doc *diagram.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	path, err := r.pathFor(doc.ID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		if existing, err := r.load(path); err == nil {
			doc.CreatedAt = existing.CreatedAt
		} else {
			doc.CreatedAt = now
		}
	}
	doc.UpdatedAt = now

	data, err := json.MarshalIndent(toDiagramDTO(doc), "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", sharedErrors.ErrSerializationFailed, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, constants.DefaultFilePerm); err != nil {
		return fmt.Errorf("%w: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	return nil
}

// FindByID retrieves a diagram by its ID
func (r *DiagramRepository) FindByID(ctx context.Context, id string) (*diagram.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	path, err := r.pathFor(id)
	if err != nil {
		return nil, err
	}
	return r.load(path)
}

// FindAll retrieves all diagrams ordered by ID
func (r *DiagramRepository) FindAll(ctx context.Context) ([]*diagram.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list diagrams: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), diagramExt) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	result := make([]*diagram.Document, 0, len(names))
	for _, name := range names {
		doc, err := r.load(filepath.Join(r.dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to load diagram %s: %w", strings.TrimSuffix(name, diagramExt), err)
		}
		result = append(result, doc)
	}
	return result, nil
}

// Delete removes a diagram by its ID
func (r *DiagramRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	path, err := r.pathFor(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return sharedErrors.ErrDiagramNotFound
		}
		return fmt.Errorf("%w: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	return nil
}

// Exists checks if a diagram exists by ID
func (r *DiagramRepository) Exists(ctx context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	path, err := r.pathFor(id)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	}
	return false, err
}

// Helper methods

func (r *DiagramRepository) pathFor(id string) (string, error) {
	if err := security.ValidateIdentifier("diagram", id); err != nil {
		return "", fmt.Errorf("%w: %v", sharedErrors.ErrInvalidInput, err)
	}
	return security.ResolveWithin(r.dir, id+diagramExt)
}

func (r *DiagramRepository) load(path string) (*diagram.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, sharedErrors.ErrDiagramNotFound
		}
		return nil, fmt.Errorf("%w: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	var dto diagramDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("%w: %v", sharedErrors.ErrDeserializationFailed, err)
	}
	return fromDiagramDTO(dto)
}

func toDiagramDTO(doc *diagram.Document) diagramDTO {
	return diagramDTO{
		ID:         doc.ID,
		SystemData: doc.Data,
		Canvas:     doc.Canvas,
		CreatedAt:  doc.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  doc.UpdatedAt.Format(time.RFC3339),
	}
}

func fromDiagramDTO(dto diagramDTO) (*diagram.Document, error) {
	doc := &diagram.Document{ID: dto.ID, Data: dto.SystemData, Canvas: dto.Canvas}
	var err error
	if dto.CreatedAt != "" {
		if doc.CreatedAt, err = time.Parse(time.RFC3339, dto.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
	}
	if dto.UpdatedAt != "" {
		if doc.UpdatedAt, err = time.Parse(time.RFC3339, dto.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to parse updated_at: %w", err)
		}
	}
	return doc, nil
}
