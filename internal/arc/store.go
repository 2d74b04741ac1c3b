package arc

import (
	"context"

	"github.com/heymarcell/zeitgeistai/internal/core/domain"
)

// ScoredArc pairs a stored arc with its similarity to a query fingerprint.
type ScoredArc struct {
	Arc        domain.StoryArc
	Similarity float64
}

// Store persists story arcs across pipeline cycles.
type Store interface {
	// Upsert writes an arc, replacing any existing arc with the same id.
	Upsert(ctx context.Context, arc domain.StoryArc) error

	// Search returns up to limit arcs ranked by fingerprint similarity
	// descending. An empty result is not an error.
	Search(ctx context.Context, fingerprint []float32, limit int) ([]ScoredArc, error)

	// ScrollAll returns every stored arc.
	ScrollAll(ctx context.Context) ([]domain.StoryArc, error)

	// Delete removes the arcs with the given ids. Unknown ids are ignored.
	Delete(ctx context.Context, arcIDs []string) error
}
