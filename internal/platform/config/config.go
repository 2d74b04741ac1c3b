// Package config loads application configuration from environment variables
// and an optional .env file.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	coreerrors "github.com/heymarcell/zeitgeistai/internal/core/errors"
)

// Config holds the full application configuration.
type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"local"`

	// Persistence. When PostgresDSN is empty the registry runs purely on
	// the in-memory store with an optional JSON snapshot.
	PostgresDSN string `env:"POSTGRES_DSN"`
	OutputDir   string `env:"OUTPUT_DIR" envDefault:"./output"`

	// Embeddings.
	EmbeddingAPIKey     string `env:"EMBEDDING_API_KEY"`
	EmbeddingModel      string `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
	EmbeddingDimensions int    `env:"EMBEDDING_DIMENSIONS" envDefault:"768"`
	EmbeddingRateLimit  int    `env:"EMBEDDING_RATE_LIMIT_RPS" envDefault:"2"`

	// Clustering.
	MinClusterSize       int `env:"MIN_CLUSTER_SIZE" envDefault:"5"`
	MinSamples           int `env:"MIN_SAMPLES" envDefault:"2"`
	ProjectionComponents int `env:"PROJECTION_COMPONENTS" envDefault:"50"`

	// Story arcs.
	ArcSimilarityThreshold float64       `env:"ARC_SIMILARITY_THRESHOLD" envDefault:"0.85"`
	ArcRetentionAge        time.Duration `env:"ARC_RETENTION_AGE" envDefault:"168h"`

	// Divergence.
	DivergenceBaselineRatio float64 `env:"DIVERGENCE_BASELINE_RATIO" envDefault:"10.0"`

	// Scoring.
	FreshnessHalfLife time.Duration `env:"FRESHNESS_HALF_LIFE" envDefault:"4h"`

	// Collectors.
	GDELTEnabled     bool          `env:"GDELT_ENABLED" envDefault:"false"`
	GDELTMaxArticles int           `env:"GDELT_MAX_ARTICLES" envDefault:"250"`
	GDELTQuery       string        `env:"GDELT_QUERY" envDefault:"sourcelang:english"`
	GDELTTimeout     time.Duration `env:"GDELT_TIMEOUT" envDefault:"30s"`
	GDELTRPM         int           `env:"GDELT_RPM" envDefault:"60"`

	RSSFeeds []string `env:"RSS_FEEDS" envSeparator:","`

	MastodonEnabled    bool          `env:"MASTODON_ENABLED" envDefault:"false"`
	MastodonInstance   string        `env:"MASTODON_INSTANCE" envDefault:"https://mastodon.social"`
	MastodonSampleSize int           `env:"MASTODON_SAMPLE_SIZE" envDefault:"100"`
	MastodonTimeout    time.Duration `env:"MASTODON_TIMEOUT" envDefault:"30s"`

	TrendingTopics []string `env:"TRENDING_TOPICS" envSeparator:","`

	// Scheduling.
	CycleInterval time.Duration `env:"CYCLE_INTERVAL" envDefault:"4h"`
	HealthPort    int           `env:"HEALTH_PORT" envDefault:"8080"`
}

// Load reads configuration from the environment, applying defaults, and
// validates it. Configuration defects are fatal at startup, not during a
// cycle.
func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env file is optional, error is expected when not present

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks configuration invariants that would otherwise surface as
// silent mid-cycle defects.
func (c *Config) Validate() error {
	if c.MinClusterSize <= 0 {
		return fmt.Errorf("%w: MIN_CLUSTER_SIZE must be positive, got %d", coreerrors.ErrInvalidConfig, c.MinClusterSize)
	}

	if c.MinSamples <= 0 {
		return fmt.Errorf("%w: MIN_SAMPLES must be positive, got %d", coreerrors.ErrInvalidConfig, c.MinSamples)
	}

	if c.EmbeddingDimensions <= 0 {
		return fmt.Errorf("%w: EMBEDDING_DIMENSIONS must be positive, got %d", coreerrors.ErrInvalidConfig, c.EmbeddingDimensions)
	}

	if c.ArcSimilarityThreshold <= 0 || c.ArcSimilarityThreshold > 1 {
		return fmt.Errorf("%w: ARC_SIMILARITY_THRESHOLD must be in (0,1], got %v", coreerrors.ErrInvalidConfig, c.ArcSimilarityThreshold)
	}

	if c.DivergenceBaselineRatio <= 0 {
		return fmt.Errorf("%w: DIVERGENCE_BASELINE_RATIO must be positive, got %v", coreerrors.ErrInvalidConfig, c.DivergenceBaselineRatio)
	}

	if c.ArcRetentionAge <= 0 {
		return fmt.Errorf("%w: ARC_RETENTION_AGE must be positive, got %v", coreerrors.ErrInvalidConfig, c.ArcRetentionAge)
	}

	return nil
}
