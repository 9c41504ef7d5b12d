package application

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/khanhnv2901/seca-suite/internal/analysis/headers"
	historyapp "github.com/khanhnv2901/seca-suite/internal/application/history"
	scheduleapp "github.com/khanhnv2901/seca-suite/internal/application/schedule"
	threatmodelapp "github.com/khanhnv2901/seca-suite/internal/application/threatmodel"
	"github.com/khanhnv2901/seca-suite/internal/application/tools"
	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
	"github.com/khanhnv2901/seca-suite/internal/domain/diagram"
	"github.com/khanhnv2901/seca-suite/internal/domain/history"
	"github.com/khanhnv2901/seca-suite/internal/domain/schedule"
	"github.com/khanhnv2901/seca-suite/internal/infrastructure/backend"
	"github.com/khanhnv2901/seca-suite/internal/infrastructure/persistence/json"
	"github.com/khanhnv2901/seca-suite/internal/infrastructure/persistence/sqlite"
	"github.com/khanhnv2901/seca-suite/internal/llm"
	"github.com/khanhnv2901/seca-suite/internal/shared/constants"
)

// DatabaseFile is the SQLite file holding history and schedules.
const DatabaseFile = "seca-suite.db"

// Config selects how the container is wired.
type Config struct {
	DataDir  string
	Endpoint string // empty runs every tool offline
	Token    string
	Timeouts map[assessment.Tool]time.Duration

	Canvas          diagram.Canvas
	Frameworks      []string // tags for local header findings
	DisableFallback bool
	HeaderTimeout   time.Duration

	LLMEnabled bool
	LLM        llm.Config
	LLMRPM     int

	Scheduler scheduleapp.Config
}

// Container holds all application services and repositories
// This is a simple dependency injection container
type Container struct {
	// Storage
	DB           *sqlite.DB
	DiagramRepo  diagram.Repository
	HistoryRepo  history.Repository
	ScheduleRepo schedule.Repository

	// Infrastructure
	Backend  *backend.Client // nil when offline
	Provider llm.Provider    // nil when the local model is disabled

	// Services
	Tools     *tools.Service
	Diagrams  *threatmodelapp.Service
	History   *historyapp.Service
	Scheduler *scheduleapp.Scheduler
	Schedules *scheduleapp.Service
}

// NewContainer creates a new application service container
func NewContainer(cfg Config, logger *zap.Logger) (*Container, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data directory cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Canvas.Width <= 0 || cfg.Canvas.Height <= 0 {
		cfg.Canvas = diagram.Canvas{Width: constants.DefaultCanvasWidth, Height: constants.DefaultCanvasHeight}
	}

	// Initialize repositories
	diagramRepo, err := json.NewDiagramRepository(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create diagram repository: %w", err)
	}

	db, err := sqlite.Open(filepath.Join(cfg.DataDir, DatabaseFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	historyRepo := sqlite.NewHistoryRepository(db)
	scheduleRepo := sqlite.NewScheduleRepository(db)

	// Initialize infrastructure
	var client *backend.Client
	var remote tools.Backend
	if cfg.Endpoint != "" {
		opts := []backend.Option{backend.WithLogger(logger.Named("backend"))}
		if cfg.Token != "" {
			opts = append(opts, backend.WithToken(cfg.Token))
		}
		for tool, d := range cfg.Timeouts {
			opts = append(opts, backend.WithTimeout(tool, d))
		}
		client = backend.New(cfg.Endpoint, opts...)
		remote = client
	}

	var provider llm.Provider
	if cfg.LLMEnabled {
		provider = llm.NewRateLimitedProvider(llm.NewOllamaProvider(cfg.LLM), cfg.LLMRPM)
	}

	headerTimeout := cfg.HeaderTimeout
	if headerTimeout <= 0 {
		headerTimeout = 15 * time.Second
	}

	// Initialize services
	toolService := tools.NewService(remote, historyRepo, provider, headers.NewScanner(headerTimeout), logger.Named("tools"), tools.Options{
		Offline:         cfg.Endpoint == "",
		DisableFallback: cfg.DisableFallback,
		Frameworks:      cfg.Frameworks,
		Model:           cfg.LLM.Model,
	})
	diagramService := threatmodelapp.NewService(diagramRepo, toolService, cfg.Canvas, logger.Named("diagrams"))
	scheduler := scheduleapp.NewScheduler(scheduleRepo, &scheduleapp.ToolExecutor{
		Tools:    toolService,
		Diagrams: diagramService,
		ReadFile: readEmailFile,
	}, cfg.Scheduler, logger.Named("scheduler"))

	return &Container{
		DB:           db,
		DiagramRepo:  diagramRepo,
		HistoryRepo:  historyRepo,
		ScheduleRepo: scheduleRepo,
		Backend:      client,
		Provider:     provider,
		Tools:        toolService,
		Diagrams:     diagramService,
		History:      historyapp.NewService(historyRepo),
		Scheduler:    scheduler,
		Schedules:    scheduleapp.NewService(scheduleRepo, scheduler),
	}, nil
}

// Check reports whether the database answers.
func (c *Container) Check(ctx context.Context) error {
	if err := c.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database unavailable: %w", err)
	}
	return nil
}

// Ready also requires the diagram store to be listable.
func (c *Container) Ready(ctx context.Context) error {
	if err := c.Check(ctx); err != nil {
		return err
	}
	if _, err := c.DiagramRepo.FindAll(ctx); err != nil {
		return fmt.Errorf("diagram store unavailable: %w", err)
	}
	return nil
}

// Close releases the database.
func (c *Container) Close() error {
	return c.DB.Close()
}

const maxEmailBytes = 1 << 20

func readEmailFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxEmailBytes {
		return nil, fmt.Errorf("email file %s is larger than %d bytes", path, maxEmailBytes)
	}
	return os.ReadFile(path)
}
