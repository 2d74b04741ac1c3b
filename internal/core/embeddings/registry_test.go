package embeddings

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// failingProvider always errors, for fallback tests.
type failingProvider struct {
	dims  int
	calls int
}

func (p *failingProvider) Name() ProviderName { return ProviderName("failing") }
func (p *failingProvider) Priority() int      { return PriorityPrimary }
func (p *failingProvider) Dimensions() int    { return p.dims }
func (p *failingProvider) IsAvailable() bool  { return true }

func (p *failingProvider) Embed(context.Context, []string, Purpose) ([][]float32, error) {
	p.calls++

	return nil, errors.New("boom")
}

func testRegistry(t *testing.T, dims int) *Registry {
	t.Helper()

	logger := zerolog.Nop()

	return NewRegistry(dims, &logger)
}

func TestRegistryEmbedFallsBackToSecondaryProvider(t *testing.T) {
	r := testRegistry(t, 8)

	failing := &failingProvider{dims: 8}
	r.Register(failing, DefaultCircuitBreakerConfig())
	r.Register(NewMockProviderWithDimensions(8), DefaultCircuitBreakerConfig())

	vectors := r.Embed(context.Background(), []string{"a", "b"}, PurposeClustering)

	require.Len(t, vectors, 2)
	require.Equal(t, 1, failing.calls)

	for _, v := range vectors {
		require.Len(t, v, 8)
		require.NotEqual(t, make([]float32, 8), v)
	}
}

func TestRegistryEmbedDegradesToZeroVectors(t *testing.T) {
	r := testRegistry(t, 4)
	r.Register(&failingProvider{dims: 4}, DefaultCircuitBreakerConfig())

	vectors := r.Embed(context.Background(), []string{"x", "y", "z"}, PurposeSimilarity)

	require.Len(t, vectors, 3)

	for _, v := range vectors {
		require.Equal(t, make([]float32, 4), v)
	}
}

func TestRegistryEmbedEmptyInput(t *testing.T) {
	r := testRegistry(t, 4)
	r.Register(NewMockProviderWithDimensions(4), DefaultCircuitBreakerConfig())

	require.Nil(t, r.Embed(context.Background(), nil, PurposeClustering))
}

func TestRegistryEmbedPadsToTargetDimension(t *testing.T) {
	r := testRegistry(t, 16)
	r.Register(NewMockProviderWithDimensions(8), DefaultCircuitBreakerConfig())

	vectors := r.Embed(context.Background(), []string{"pad me"}, PurposeClustering)

	require.Len(t, vectors, 1)
	require.Len(t, vectors[0], 16)
	// Padding must be zeros beyond the native dimension.
	for i := 8; i < 16; i++ {
		require.Zero(t, vectors[0][i])
	}
}

func TestMockProviderDeterministic(t *testing.T) {
	p := NewMockProviderWithDimensions(32)

	a1, err := p.Embed(context.Background(), []string{"NATO SUMMIT"}, PurposeClustering)
	require.NoError(t, err)

	a2, err := p.Embed(context.Background(), []string{"NATO SUMMIT"}, PurposeClustering)
	require.NoError(t, err)

	require.Equal(t, a1, a2)

	b, err := p.Embed(context.Background(), []string{"something else entirely"}, PurposeClustering)
	require.NoError(t, err)
	require.NotEqual(t, a1[0], b[0])
}

func TestPadToTargetDimensions(t *testing.T) {
	tests := []struct {
		name   string
		vec    []float32
		target int
		want   []float32
	}{
		{"exact", []float32{1, 2}, 2, []float32{1, 2}},
		{"truncate", []float32{1, 2, 3}, 2, []float32{1, 2}},
		{"pad", []float32{1}, 3, []float32{1, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, PadToTargetDimensions(tt.vec, tt.target))
		})
	}
}
