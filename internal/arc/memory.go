package arc

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/heymarcell/zeitgeistai/internal/core/domain"
	"github.com/heymarcell/zeitgeistai/internal/core/embeddings"
	"github.com/heymarcell/zeitgeistai/internal/process/dedup"
)

const snapshotFileMode = 0o644

// MemoryStore is an in-process Store used as the transparent fallback when
// the vector database is unavailable. When a snapshot path is set the store
// persists its contents to a JSON file after every mutation, so arcs survive
// restarts even without a database.
type MemoryStore struct {
	mu   sync.RWMutex
	arcs map[string]domain.StoryArc

	snapshotPath string
}

// NewMemoryStore creates an empty in-memory store. snapshotPath may be
// empty to disable file persistence; when set, any existing snapshot is
// loaded eagerly.
func NewMemoryStore(snapshotPath string) *MemoryStore {
	store := &MemoryStore{
		arcs:         make(map[string]domain.StoryArc),
		snapshotPath: snapshotPath,
	}

	if snapshotPath != "" {
		store.loadSnapshot()
	}

	return store
}

func (m *MemoryStore) Upsert(_ context.Context, arc domain.StoryArc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.arcs[arc.ArcID] = arc

	return m.writeSnapshot()
}

func (m *MemoryStore) Search(_ context.Context, fingerprint []float32, limit int) ([]ScoredArc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	scored := make([]ScoredArc, 0, len(m.arcs))

	for _, arc := range m.arcs {
		// Arcs persisted under an older embedding dimension are padded or
		// truncated to the query's dimension before comparison.
		stored := embeddings.PadToTargetDimensions(arc.Fingerprint, len(fingerprint))

		scored = append(scored, ScoredArc{
			Arc:        arc,
			Similarity: float64(dedup.CosineSimilarity(fingerprint, stored)),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}

	return scored, nil
}

func (m *MemoryStore) ScrollAll(_ context.Context) ([]domain.StoryArc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	arcs := make([]domain.StoryArc, 0, len(m.arcs))
	for _, arc := range m.arcs {
		arcs = append(arcs, arc)
	}

	sort.Slice(arcs, func(i, j int) bool {
		return arcs[i].ArcID < arcs[j].ArcID
	})

	return arcs, nil
}

func (m *MemoryStore) Delete(_ context.Context, arcIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range arcIDs {
		delete(m.arcs, id)
	}

	return m.writeSnapshot()
}

// writeSnapshot must be called with the write lock held.
func (m *MemoryStore) writeSnapshot() error {
	if m.snapshotPath == "" {
		return nil
	}

	arcs := make([]domain.StoryArc, 0, len(m.arcs))
	for _, arc := range m.arcs {
		arcs = append(arcs, arc)
	}

	sort.Slice(arcs, func(i, j int) bool {
		return arcs[i].ArcID < arcs[j].ArcID
	})

	data, err := json.MarshalIndent(arcs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal arc snapshot: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(m.snapshotPath), 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	if err = os.WriteFile(m.snapshotPath, data, snapshotFileMode); err != nil {
		return fmt.Errorf("write arc snapshot: %w", err)
	}

	return nil
}

func (m *MemoryStore) loadSnapshot() {
	data, err := os.ReadFile(m.snapshotPath)
	if err != nil {
		return
	}

	var arcs []domain.StoryArc
	if err = json.Unmarshal(data, &arcs); err != nil {
		return
	}

	for _, arc := range arcs {
		m.arcs[arc.ArcID] = arc
	}
}
