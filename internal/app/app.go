// Package app provides the application bootstrap and runtime orchestration.
//
// The App type wires together all dependencies and exposes methods to run
// the pipeline worker: scheduled cycles on the main ticker, arc retention
// sweeps on the secondary ticker, and the health/metrics server.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/heymarcell/zeitgeistai/internal/arc"
	"github.com/heymarcell/zeitgeistai/internal/collect"
	"github.com/heymarcell/zeitgeistai/internal/core/embeddings"
	"github.com/heymarcell/zeitgeistai/internal/pipeline"
	"github.com/heymarcell/zeitgeistai/internal/platform/config"
	"github.com/heymarcell/zeitgeistai/internal/platform/observability"
	"github.com/heymarcell/zeitgeistai/internal/platform/worker"
	"github.com/heymarcell/zeitgeistai/internal/process/cluster"
	"github.com/heymarcell/zeitgeistai/internal/process/divergence"
	"github.com/heymarcell/zeitgeistai/internal/process/scoring"
	db "github.com/heymarcell/zeitgeistai/internal/storage"
)

const (
	workerName    = "pipeline"
	sweepInterval = 6 * time.Hour

	arcSnapshotFile = "story_arcs.json"
)

// App holds the application dependencies.
type App struct {
	cfg      *config.Config
	database *db.DB
	pipeline *pipeline.Pipeline
	registry *arc.Registry
	logger   *zerolog.Logger
}

// New wires the processing stages from configuration. database may be nil;
// the arc registry then runs on its snapshot-backed memory store alone.
func New(cfg *config.Config, database *db.DB, logger *zerolog.Logger) *App {
	embedder := newEmbedder(cfg, logger)

	engine := cluster.NewEngine(embedder, cluster.Config{
		MinClusterSize:       cfg.MinClusterSize,
		MinSamples:           cfg.MinSamples,
		ProjectionComponents: cfg.ProjectionComponents,
	}, logger)

	var store arc.Store
	if database != nil {
		store = database
	}

	fallback := arc.NewMemoryStore(filepath.Join(cfg.OutputDir, arcSnapshotFile))
	registry := arc.NewRegistry(store, fallback, cfg.ArcSimilarityThreshold, cfg.ArcRetentionAge, cfg.EmbeddingDimensions, logger)

	pipe := pipeline.New(
		newCollectors(cfg, logger),
		engine,
		scoring.NewScorer(cfg.FreshnessHalfLife, logger),
		registry,
		divergence.NewDetector(cfg.DivergenceBaselineRatio, logger),
		collect.NewStaticTrends(cfg.TrendingTopics),
		cfg.OutputDir,
		logger,
	)

	return &App{
		cfg:      cfg,
		database: database,
		pipeline: pipe,
		registry: registry,
		logger:   logger,
	}
}

// StartHealthServer starts the health check and metrics server. It blocks
// until the context is canceled.
func (a *App) StartHealthServer(ctx context.Context) error {
	var pinger observability.Pinger
	if a.database != nil {
		pinger = a.database
	}

	srv := observability.NewServer(pinger, a.cfg.HealthPort, a.logger)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("health server start: %w", err)
	}

	return nil
}

// RunWorker runs the scheduled pipeline. With once set it executes a single
// cycle plus a retention sweep and returns.
func (a *App) RunWorker(ctx context.Context, once bool) error {
	if once {
		if _, err := a.pipeline.RunCycle(ctx); err != nil {
			return fmt.Errorf("run cycle: %w", err)
		}

		a.registry.Sweep(ctx)

		return nil
	}

	return worker.SingleTickerLoop(ctx, worker.SingleTickerConfig{
		Name:       workerName,
		Interval:   a.cfg.CycleInterval,
		RunOnStart: true,
		OnTick: func(ctx context.Context) {
			// Cycle failures are logged and counted inside RunCycle;
			// the loop keeps ticking.
			_, _ = a.pipeline.RunCycle(ctx)
		},
		SecondaryInterval: sweepInterval,
		OnSecondaryTick: func(ctx context.Context) {
			a.registry.Sweep(ctx)
		},
		Logger: a.logger,
	})
}

// newEmbedder builds the provider registry: OpenAI first when an API key is
// configured, with the deterministic mock as the always-available fallback.
func newEmbedder(cfg *config.Config, logger *zerolog.Logger) *embeddings.Registry {
	registry := embeddings.NewRegistry(cfg.EmbeddingDimensions, logger)

	if cfg.EmbeddingAPIKey != "" {
		registry.Register(embeddings.NewOpenAIProvider(embeddings.OpenAIConfig{
			APIKey:     cfg.EmbeddingAPIKey,
			Model:      cfg.EmbeddingModel,
			Dimensions: cfg.EmbeddingDimensions,
			RateLimit:  cfg.EmbeddingRateLimit,
		}), embeddings.DefaultCircuitBreakerConfig())
	}

	registry.Register(
		embeddings.NewMockProviderWithDimensions(cfg.EmbeddingDimensions),
		embeddings.DefaultCircuitBreakerConfig(),
	)

	return registry
}

func newCollectors(cfg *config.Config, logger *zerolog.Logger) []collect.Collector {
	var collectors []collect.Collector

	if cfg.GDELTEnabled {
		collectors = append(collectors, collect.NewGDELTCollector(collect.GDELTConfig{
			Query:          cfg.GDELTQuery,
			MaxArticles:    cfg.GDELTMaxArticles,
			RequestsPerMin: cfg.GDELTRPM,
			Timeout:        cfg.GDELTTimeout,
		}))
	}

	if len(cfg.RSSFeeds) > 0 {
		collectors = append(collectors, collect.NewRSSCollector(cfg.RSSFeeds, logger))
	}

	if cfg.MastodonEnabled {
		collectors = append(collectors, collect.NewMastodonCollector(collect.MastodonConfig{
			Instance:   cfg.MastodonInstance,
			SampleSize: cfg.MastodonSampleSize,
			Timeout:    cfg.MastodonTimeout,
		}))
	}

	return collectors
}
