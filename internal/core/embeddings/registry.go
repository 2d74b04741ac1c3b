package embeddings

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Registry errors.
var (
	ErrNoProvidersAvailable = errors.New("no embedding providers available")
	ErrAllProvidersFailed   = errors.New("all embedding providers failed")
)

// Log key constants.
const logKeyProvider = "provider"

// Registry manages embedding providers with fallback support.
//
// Embed never returns an error to callers: when every provider fails the
// result degrades to zero vectors of the target dimension, which downstream
// clustering tolerates (zero vectors tend toward noise).
type Registry struct {
	mu              sync.RWMutex
	providers       map[ProviderName]Provider
	order           []ProviderName // Priority order (highest first)
	circuitBreakers map[ProviderName]*CircuitBreaker
	targetDimension int
	logger          *zerolog.Logger
}

// NewRegistry creates a new provider registry.
func NewRegistry(targetDimension int, logger *zerolog.Logger) *Registry {
	return &Registry{
		providers:       make(map[ProviderName]Provider),
		order:           make([]ProviderName, 0),
		circuitBreakers: make(map[ProviderName]*CircuitBreaker),
		targetDimension: targetDimension,
		logger:          logger,
	}
}

// Dimensions returns the registry's target vector dimension.
func (r *Registry) Dimensions() int {
	return r.targetDimension
}

// Register adds a provider to the registry.
func (r *Registry) Register(p Provider, cfg CircuitBreakerConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	r.providers[name] = p
	r.order = append(r.order, name)
	r.circuitBreakers[name] = NewCircuitBreaker(cfg, r.logger)

	sort.SliceStable(r.order, func(i, j int) bool {
		return r.providers[r.order[i]].Priority() > r.providers[r.order[j]].Priority()
	})

	SetEmbeddingProviderAvailable(string(name), p.IsAvailable())

	r.logger.Info().
		Str(logKeyProvider, string(name)).
		Int("priority", p.Priority()).
		Int("dimensions", p.Dimensions()).
		Msg("registered embedding provider")
}

// Embed returns one vector per text, each padded or truncated to the target
// dimension. Failures degrade to zero vectors and are logged, never raised.
func (r *Registry) Embed(ctx context.Context, texts []string, purpose Purpose) [][]float32 {
	if len(texts) == 0 {
		return nil
	}

	vectors, err := r.embed(ctx, texts, purpose)
	if err != nil {
		r.logger.Warn().Err(err).Int("texts", len(texts)).Msg("embedding degraded to zero vectors")

		return ZeroVectors(len(texts), r.targetDimension)
	}

	return vectors
}

func (r *Registry) embed(ctx context.Context, texts []string, purpose Purpose) ([][]float32, error) {
	r.mu.RLock()
	providers := r.getActiveProviders()

	primaryProvider := ""
	if len(r.order) > 0 {
		primaryProvider = string(r.order[0])
	}
	r.mu.RUnlock()

	if len(providers) == 0 {
		return nil, ErrNoProvidersAvailable
	}

	var lastErr error

	for _, p := range providers {
		cb := r.getCircuitBreaker(p.Name())
		providerName := string(p.Name())

		if !cb.CanAttempt() {
			r.logger.Debug().
				Str(logKeyProvider, providerName).
				Msg("skipping provider - circuit breaker open")
			SetEmbeddingProviderAvailable(providerName, false)

			continue
		}

		start := time.Now()
		vectors, err := p.Embed(ctx, texts, purpose)

		RecordEmbeddingLatency(providerName, r.modelFor(p), time.Since(start))

		if err != nil {
			cb.RecordFailure(p.Name())
			RecordEmbeddingRequest(providerName, r.modelFor(p), false)

			lastErr = err

			r.logger.Warn().
				Err(err).
				Str(logKeyProvider, providerName).
				Msg("embedding provider failed, trying fallback")

			continue
		}

		cb.RecordSuccess()
		RecordEmbeddingRequest(providerName, r.modelFor(p), true)
		SetEmbeddingProviderAvailable(providerName, true)

		if primaryProvider != "" && providerName != primaryProvider {
			RecordEmbeddingFallback(primaryProvider, providerName)
			r.logger.Info().
				Str(logKeyProvider, providerName).
				Str("from_provider", primaryProvider).
				Msg("used fallback embedding provider")
		}

		for i := range vectors {
			vectors[i] = PadToTargetDimensions(vectors[i], r.targetDimension)
		}

		return vectors, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}

	return nil, ErrAllProvidersFailed
}

// getActiveProviders returns available providers in priority order.
// Caller must hold at least a read lock.
func (r *Registry) getActiveProviders() []Provider {
	active := make([]Provider, 0, len(r.order))

	for _, name := range r.order {
		p := r.providers[name]
		if p != nil && p.IsAvailable() {
			active = append(active, p)
		}
	}

	return active
}

func (r *Registry) getCircuitBreaker(name ProviderName) *CircuitBreaker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.circuitBreakers[name]
}

func (r *Registry) modelFor(p Provider) string {
	if op, ok := p.(*OpenAIProvider); ok {
		return op.Model()
	}

	return string(p.Name())
}
