package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/lib/pq"

	"P3Recon/internal/collector"
	"P3Recon/internal/config"
	"P3Recon/internal/fetch"
	"P3Recon/internal/infrastructure/collectors"
	"P3Recon/internal/infrastructure/storage"
	"P3Recon/internal/ingest"
	"P3Recon/internal/logging"
	"P3Recon/internal/ports"
	"P3Recon/internal/scoring"
	"P3Recon/internal/usecase"
)

// Application wires config to the refresh pipeline and its adapters.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	supervisor *usecase.Supervisor
	db         *sql.DB
	repository *storage.PostgresRepository
}

// New builds a runnable application instance. An empty database DSN runs
// the pipeline without persistence.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}

	policies := map[string]fetch.SourcePolicy{}
	for key, src := range cfg.Sources {
		policies[key] = fetch.SourcePolicy{
			FreshFor:   src.FreshnessWindow.Std(),
			Politeness: src.PolitenessDelay.Std(),
		}
	}
	gate := fetch.NewGate(httpClient, policies, baseLogger.With("component", "fetch"))

	registry := collector.NewRegistry()
	registry.Register(collectors.NewNewsCollector(
		gate,
		cfg.Sources[config.SourceNews].BaseURL,
		cfg.Refresh.NewsLookback.Std(),
		baseLogger.With("component", "collector.news"),
	))
	registry.Register(collectors.NewLaborNoticeCollector(
		gate,
		cfg.Sources[config.SourceLabor].BaseURL,
		baseLogger.With("component", "collector.labor"),
	))
	registry.Register(collectors.NewTaxKeywordCollector(
		gate,
		cfg.Sources[config.SourceTaxKeyword].BaseURL,
		nil,
		baseLogger.With("component", "collector.tax"),
	))

	a := &Application{cfg: cfg, logger: baseLogger}

	if cfg.Database.DSN != "" {
		db, err := sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.db = db
		a.repository = storage.NewPostgresRepository(db)
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:      ingest.NewIngestor(httpClient, cfg.Dataset.FallbackPath, baseLogger.With("component", "ingest")),
		Registry:    registry,
		Engine:      scoring.NewEngine(cfg.Scoring),
		Repository:  repositoryOrNil(a.repository),
		DatasetURL:  cfg.Dataset.URL,
		Concurrency: cfg.Refresh.Concurrency,
		Logger:      baseLogger.With("component", "pipeline"),
	})
	a.supervisor = usecase.NewSupervisor(pipeline)
	return a, nil
}

// Run migrates storage when configured and executes one refresh over the
// configured scan area.
func (a *Application) Run(ctx context.Context) error {
	if a.repository != nil {
		if err := a.repository.Migrate(ctx); err != nil {
			return err
		}
	}

	result, err := a.supervisor.Refresh(ctx,
		a.cfg.Refresh.CenterLat,
		a.cfg.Refresh.CenterLng,
		a.cfg.Refresh.RadiusMiles,
		a.cfg.Thresholds.Thresholds(),
	)
	if err != nil {
		return err
	}

	for _, warning := range result.Warnings {
		a.logger.Warn("refresh warning", "warning", warning)
	}
	a.logger.Info("refresh complete",
		"candidates", len(result.Candidates),
		"scored", len(result.Scores))
	return nil
}

// Close releases the database handle.
func (a *Application) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

// repositoryOrNil keeps a typed nil out of the interface field.
func repositoryOrNil(repo *storage.PostgresRepository) ports.LeadRepository {
	if repo == nil {
		return nil
	}
	return repo
}
