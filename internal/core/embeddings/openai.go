package embeddings

import (
	"context"
	"fmt"
	"sync"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	coreerrors "github.com/heymarcell/zeitgeistai/internal/core/errors"
)

// OpenAI model constants.
const (
	ModelTextEmbedding3Large = "text-embedding-3-large"
	ModelTextEmbedding3Small = "text-embedding-3-small"

	// Maximum dimensions for text-embedding-3-large.
	maxLargeDimensions = 3072

	// Maximum inputs per embeddings request.
	openaiMaxBatch = 100

	// Default rate limiter burst.
	openaiRateLimiterBurst = 5
)

// API key constants.
const mockAPIKey = "mock"

// OpenAIProvider implements the embedding Provider interface for OpenAI.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	dimensions  int
	rateLimiter *rate.Limiter
	mu          sync.RWMutex
	available   bool
}

// OpenAIConfig holds configuration for the OpenAI provider.
type OpenAIConfig struct {
	APIKey     string
	Model      string // "text-embedding-3-large" or "text-embedding-3-small"
	Dimensions int    // Output dimensions (3072 max for large, 1536 for small)
	RateLimit  int    // Requests per second
}

// NewOpenAIProvider creates a new OpenAI embedding provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.Model == "" {
		cfg.Model = ModelTextEmbedding3Small
	}

	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}

	if cfg.RateLimit == 0 {
		cfg.RateLimit = 1
	}

	return &OpenAIProvider{
		client:      openai.NewClient(cfg.APIKey),
		model:       cfg.Model,
		dimensions:  cfg.Dimensions,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), openaiRateLimiterBurst),
		available:   cfg.APIKey != "" && cfg.APIKey != mockAPIKey,
	}
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() ProviderName {
	return ProviderOpenAI
}

// Priority returns the provider priority.
func (p *OpenAIProvider) Priority() int {
	return PriorityPrimary
}

// Dimensions returns the configured output dimensions.
func (p *OpenAIProvider) Dimensions() int {
	return p.dimensions
}

// Model returns the configured model name.
func (p *OpenAIProvider) Model() string {
	return p.model
}

// IsAvailable returns true if the provider is configured and available.
func (p *OpenAIProvider) IsAvailable() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.available
}

// Embed generates embeddings for the given texts using the OpenAI API,
// batching requests to the API limit.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string, _ Purpose) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += openaiMaxBatch {
		end := start + openaiMaxBatch
		if end > len(texts) {
			end = len(texts)
		}

		vectors, err := p.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}

		out = append(out, vectors...)
	}

	return out, nil
}

func (p *OpenAIProvider) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	if err := p.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req := openai.EmbeddingRequest{
		Input: batch,
		Model: openai.EmbeddingModel(p.model),
	}

	// text-embedding-3 models support dimension reduction via API parameter.
	if p.dimensions > 0 && p.dimensions < maxLargeDimensions {
		req.Dimensions = p.dimensions
	}

	resp, err := p.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}

	if len(resp.Data) != len(batch) {
		return nil, fmt.Errorf("openai embeddings: %w: got %d vectors for %d inputs",
			coreerrors.ErrEmptyResponse, len(resp.Data), len(batch))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}

	return vectors, nil
}
