// Package embeddings turns text into fixed-length vectors. It manages a set
// of providers with priority ordering, circuit breaking, and fallback, and
// guarantees that callers always receive vectors of the configured
// dimension: on total provider failure the result degrades to zero vectors
// rather than an error.
package embeddings

import (
	"context"
	"time"
)

// ProviderName identifies an embedding provider.
type ProviderName string

// Provider name constants.
const (
	ProviderOpenAI ProviderName = "openai"
	ProviderMock   ProviderName = "mock"
)

// Priority constants for provider ordering.
const (
	PriorityPrimary = 100 // Primary provider (OpenAI)
	PriorityMock    = 0   // Mock provider for testing
)

// Purpose describes what the embedding will be used for. Some backends
// tune the vector for the task.
type Purpose string

// Purpose constants.
const (
	PurposeClustering Purpose = "clustering"
	PurposeSimilarity Purpose = "similarity"
)

// DefaultDimensions is the registry's default target dimension.
const DefaultDimensions = 768

// Circuit breaker constants.
const defaultCircuitThreshold = 5

// Provider defines the interface for embedding providers.
type Provider interface {
	// Name returns the provider identifier.
	Name() ProviderName

	// Embed generates one vector per input text, in input order.
	// Must tolerate empty input.
	Embed(ctx context.Context, texts []string, purpose Purpose) ([][]float32, error)

	// IsAvailable returns true if the provider is currently available.
	IsAvailable() bool

	// Priority returns the provider priority (higher = preferred).
	Priority() int

	// Dimensions returns the native output dimensions of this provider.
	Dimensions() int
}

// CircuitBreakerConfig defines circuit breaker settings.
type CircuitBreakerConfig struct {
	Threshold  int           // Number of failures before opening circuit
	ResetAfter time.Duration // Time before attempting recovery
}

// DefaultCircuitBreakerConfig returns sensible defaults for circuit breaker.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Threshold:  defaultCircuitThreshold,
		ResetAfter: time.Minute,
	}
}

// ZeroVectors returns n zero vectors of the given dimension. This is the
// documented degradation value when no provider can serve a request.
func ZeroVectors(n, dim int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = make([]float32, dim)
	}

	return out
}
