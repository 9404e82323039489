// Package app builds the long-lived services shared by the CLI and the HTTP
// server from one Config.
package app

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/david/grant-extractor/internal/ai"
	"github.com/david/grant-extractor/internal/artifact"
	"github.com/david/grant-extractor/internal/config"
	"github.com/david/grant-extractor/internal/db"
	"github.com/david/grant-extractor/internal/ingest"
	"github.com/david/grant-extractor/internal/models"
	"github.com/david/grant-extractor/internal/sink"
	"github.com/david/grant-extractor/internal/storage"
	"github.com/david/grant-extractor/internal/taxonomy"
)

// RunLister returns recent runs, newest first.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]models.RunMetrics, error)
}

// App holds the services for one process. Close releases the database pool
// and the storage client.
type App struct {
	Config   config.Config
	Logger   *zap.Logger
	Pipeline *ingest.Pipeline
	Runs     RunLister

	pool     *pgxpool.Pool
	uploader *storage.GCSUploader
}

// New wires the pipeline. The Postgres ledger and the GCS mirror are only
// opened when their settings are present; any failure opening them is fatal
// so a misconfigured deployment does not silently drop metrics.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	normalizer := taxonomy.NewNormalizer(logger.Named("taxonomy"))
	if cfg.Taxonomy.SynonymsPath != "" {
		if err := normalizer.LoadSynonyms(cfg.Taxonomy.SynonymsPath); err != nil {
			return nil, fmt.Errorf("failed to load synonyms: %w", err)
		}
	}

	artifacts, err := artifact.New(cfg.Pipeline.ArtifactDir)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare artifact dir: %w", err)
	}

	gen := NewGenerator(cfg.LLM)
	extractor := ai.NewExtractor(gen, ai.ExtractorConfig{
		MaxAttempts:     cfg.LLM.MaxAttempts,
		BaseBackoff:     cfg.LLM.BaseBackoff,
		Temperature:     cfg.LLM.Temperature,
		MaxOutputTokens: cfg.LLM.MaxOutputTokens,
		Tools: ai.Tools{
			URLContext:   cfg.LLM.URLContext,
			GoogleSearch: cfg.LLM.GoogleSearch,
		},
	}, artifacts, logger.Named("ai"))

	validator := ingest.NewValidator(normalizer, artifacts, logger.Named("validator"), cfg.Pipeline.DefaultCurrency)
	gate := ingest.NewQualityGate(cfg.Quality.MinDescriptionLength, cfg.Quality.BoilerplatePhrases)

	opts := ingest.PipelineOptions{
		OutputDir: cfg.Pipeline.OutputDir,
		Delay:     cfg.Pipeline.Delay,
	}

	pool, store, err := openLedger(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if store != nil {
		a.pool = pool
		a.Runs = store
		opts.Mirrors = append(opts.Mirrors, store)
	} else {
		a.Runs = csvRuns(cfg)
	}

	if cfg.Storage.Bucket != "" {
		uploader, err := storage.NewGCSUploader(ctx, storage.Config{
			Bucket:      cfg.Storage.Bucket,
			Prefix:      cfg.Storage.Prefix,
			Concurrency: cfg.Storage.Concurrency,
		}, logger.Named("storage"))
		if err != nil {
			a.Close()
			return nil, err
		}
		a.uploader = uploader
		opts.Uploader = uploader
	}

	logger.Info("pipeline ready",
		zap.String("model", gen.Name()),
		zap.String("output_dir", opts.OutputDir),
		zap.Bool("ledger", store != nil),
		zap.Bool("gcs_mirror", a.uploader != nil),
	)

	a.Pipeline = ingest.NewPipeline(extractor, validator, gate, opts, logger.Named("pipeline"))
	return a, nil
}

// NewGenerator returns the model client cfg selects.
func NewGenerator(cfg config.LLMConfig) ai.Generator {
	if cfg.Provider == config.ProviderOllama {
		return ai.NewOllamaClient(cfg.OllamaHost, cfg.Model, cfg.Timeout)
	}
	return ai.NewGeminiClient(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Timeout)
}

// OpenRuns opens run history without the rest of the pipeline. The returned
// func releases any database connection.
func OpenRuns(ctx context.Context, cfg config.Config, logger *zap.Logger) (RunLister, func(), error) {
	pool, store, err := openLedger(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	if store == nil {
		return csvRuns(cfg), func() {}, nil
	}
	return store, pool.Close, nil
}

func openLedger(ctx context.Context, cfg config.Config, logger *zap.Logger) (*pgxpool.Pool, *db.RunStore, error) {
	if cfg.Database.DSN == "" {
		return nil, nil, nil
	}
	pool, err := db.Connect(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.ApplyMigrations(ctx, pool, logger.Named("db")); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migration failed: %w", err)
	}
	return pool, db.NewRunStore(pool), nil
}

func csvRuns(cfg config.Config) sink.RunLog {
	return sink.RunLog{Path: filepath.Join(cfg.Pipeline.OutputDir, sink.MetricsFile)}
}

func (a *App) Close() {
	if a.uploader != nil {
		if err := a.uploader.Close(); err != nil {
			a.Logger.Warn("failed to close storage client", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
