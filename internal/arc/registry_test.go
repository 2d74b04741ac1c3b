package arc

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heymarcell/zeitgeistai/internal/core/domain"
)

var errStoreDown = errors.New("store down")

// brokenStore fails every operation, forcing the registry onto its
// memory fallback.
type brokenStore struct{}

func (brokenStore) Upsert(context.Context, domain.StoryArc) error { return errStoreDown }
func (brokenStore) Search(context.Context, []float32, int) ([]ScoredArc, error) {
	return nil, errStoreDown
}
func (brokenStore) ScrollAll(context.Context) ([]domain.StoryArc, error) { return nil, errStoreDown }
func (brokenStore) Delete(context.Context, []string) error               { return errStoreDown }

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	return NewRegistry(nil, NewMemoryStore(""), 0.85, 168*time.Hour, 3, nil)
}

func clusterWith(centroid []float32, score float64, topics ...string) domain.Cluster {
	return domain.Cluster{
		Topics:        topics,
		Centroid:      centroid,
		Size:          len(topics),
		ViralityScore: score,
	}
}

func TestMatchOrCreateNewArc(t *testing.T) {
	registry := newTestRegistry(t)

	cluster := clusterWith([]float32{1, 0, 0}, 0.6, "NATO", "SUMMIT", "EUROPE", "DEFENSE", "BUDGET", "EXTRA")

	match, err := registry.MatchOrCreate(context.Background(), &cluster, "2026-08-26-10")
	require.NoError(t, err)

	assert.True(t, match.IsNew)
	assert.Equal(t, domain.PhaseEmerging, match.Phase)
	assert.Equal(t, "Nato - Summit - Europe", match.Title)
	assert.Equal(t, 1, match.Appearances)

	arcs := registry.ActiveArcs(context.Background(), 0)
	require.Len(t, arcs, 1)
	assert.Equal(t, []string{"NATO", "SUMMIT", "EUROPE", "DEFENSE", "BUDGET"}, arcs[0].CoreEntities)
	assert.Equal(t, []float64{0.6}, arcs[0].VelocityHistory)
	assert.InDelta(t, 0.6, arcs[0].PeakVelocity, 1e-9)
}

func TestMatchOrCreateMatchesSimilarCentroid(t *testing.T) {
	registry := newTestRegistry(t)
	ctx := context.Background()

	first := clusterWith([]float32{1, 0, 0}, 0.6, "NATO", "SUMMIT")
	created, err := registry.MatchOrCreate(ctx, &first, "2026-08-26-10")
	require.NoError(t, err)

	// Nearly identical direction, well above the 0.85 threshold.
	second := clusterWith([]float32{0.99, 0.05, 0}, 0.8, "NATO", "TALKS")
	matched, err := registry.MatchOrCreate(ctx, &second, "2026-08-26-14")
	require.NoError(t, err)

	assert.False(t, matched.IsNew)
	assert.Equal(t, created.ArcID, matched.ArcID)
	assert.Equal(t, 2, matched.Appearances)
	assert.GreaterOrEqual(t, matched.Similarity, 0.85)

	arcs := registry.ActiveArcs(ctx, 0)
	require.Len(t, arcs, 1)

	// Fingerprint drifts toward the new centroid but keeps its history.
	assert.InDelta(t, 0.7*1+0.3*0.99, arcs[0].Fingerprint[0], 1e-6)
	assert.InDelta(t, 0.3*0.05, arcs[0].Fingerprint[1], 1e-6)
	assert.Equal(t, []float64{0.6, 0.8}, arcs[0].VelocityHistory)
	assert.InDelta(t, 0.8, arcs[0].PeakVelocity, 1e-9)
}

func TestMatchOrCreateOrthogonalCreatesSecondArc(t *testing.T) {
	registry := newTestRegistry(t)
	ctx := context.Background()

	first := clusterWith([]float32{1, 0, 0}, 0.5, "NATO")
	_, err := registry.MatchOrCreate(ctx, &first, "2026-08-26-10")
	require.NoError(t, err)

	second := clusterWith([]float32{0, 1, 0}, 0.5, "WILDFIRE")
	match, err := registry.MatchOrCreate(ctx, &second, "2026-08-26-10")
	require.NoError(t, err)

	assert.True(t, match.IsNew)
	assert.Len(t, registry.ActiveArcs(ctx, 0), 2)
}

func TestReplayedCycleIsIdempotent(t *testing.T) {
	registry := newTestRegistry(t)
	ctx := context.Background()

	cluster := clusterWith([]float32{1, 0, 0}, 0.6, "NATO")
	_, err := registry.MatchOrCreate(ctx, &cluster, "2026-08-26-10")
	require.NoError(t, err)

	replay := clusterWith([]float32{1, 0, 0}, 0.9, "NATO")
	match, err := registry.MatchOrCreate(ctx, &replay, "2026-08-26-10")
	require.NoError(t, err)

	assert.Equal(t, 1, match.Appearances)

	arcs := registry.ActiveArcs(ctx, 0)
	require.Len(t, arcs, 1)
	assert.Equal(t, []string{"2026-08-26-10"}, arcs[0].Appearances)
	assert.Equal(t, []float64{0.6}, arcs[0].VelocityHistory)

	// Peak still tracks the replayed score.
	assert.InDelta(t, 0.9, arcs[0].PeakVelocity, 1e-9)
}

func TestPeakVelocityNeverDecreases(t *testing.T) {
	registry := newTestRegistry(t)
	ctx := context.Background()

	high := clusterWith([]float32{1, 0, 0}, 0.9, "NATO")
	_, err := registry.MatchOrCreate(ctx, &high, "2026-08-26-10")
	require.NoError(t, err)

	low := clusterWith([]float32{1, 0, 0}, 0.2, "NATO")
	_, err = registry.MatchOrCreate(ctx, &low, "2026-08-26-14")
	require.NoError(t, err)

	arcs := registry.ActiveArcs(ctx, 0)
	require.Len(t, arcs, 1)
	assert.InDelta(t, 0.9, arcs[0].PeakVelocity, 1e-9)
}

func TestPhaseMachine(t *testing.T) {
	base := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		age      time.Duration
		peak     float64
		latest   float64
		expected domain.Phase
	}{
		{
			name:     "young arc is emerging regardless of velocity",
			age:      10 * time.Hour,
			peak:     1.0,
			latest:   0.1,
			expected: domain.PhaseEmerging,
		},
		{
			name:     "mid-age arc near its peak",
			age:      48 * time.Hour,
			peak:     1.0,
			latest:   0.95,
			expected: domain.PhasePeak,
		},
		{
			name:     "mid-age arc below the peak band",
			age:      48 * time.Hour,
			peak:     1.0,
			latest:   0.5,
			expected: domain.PhaseDeveloping,
		},
		{
			name:     "old arc with collapsed velocity fades",
			age:      96 * time.Hour,
			peak:     1.0,
			latest:   0.2,
			expected: domain.PhaseFading,
		},
		{
			name:     "old arc that re-accelerates returns to developing",
			age:      96 * time.Hour,
			peak:     1.0,
			latest:   0.7,
			expected: domain.PhaseDeveloping,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := newTestRegistry(t)
			registry.now = func() time.Time { return base.Add(tt.age) }

			arc := domain.StoryArc{
				FirstSeenAt:     base,
				PeakVelocity:    tt.peak,
				VelocityHistory: []float64{tt.latest},
			}

			assert.Equal(t, tt.expected, registry.classifyPhase(arc))
		})
	}
}

func TestSweepRemovesExpiredArcs(t *testing.T) {
	registry := newTestRegistry(t)
	ctx := context.Background()

	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	registry.now = func() time.Time { return now.Add(-8 * 24 * time.Hour) }
	stale := clusterWith([]float32{1, 0, 0}, 0.5, "OLD")
	_, err := registry.MatchOrCreate(ctx, &stale, "2026-08-18-10")
	require.NoError(t, err)

	registry.now = func() time.Time { return now }
	fresh := clusterWith([]float32{0, 1, 0}, 0.5, "FRESH")
	_, err = registry.MatchOrCreate(ctx, &fresh, "2026-08-26-10")
	require.NoError(t, err)

	removed := registry.Sweep(ctx)
	assert.Equal(t, 1, removed)

	arcs := registry.ActiveArcs(ctx, 0)
	require.Len(t, arcs, 1)
	assert.Equal(t, "Fresh", arcs[0].CanonicalTitle)
}

func TestActiveArcsExcludesStaleArcs(t *testing.T) {
	registry := newTestRegistry(t)
	ctx := context.Background()

	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	// Last seen five days ago, still within retention and never
	// reclassified, so the phase is stuck at EMERGING.
	registry.now = func() time.Time { return now.Add(-5 * 24 * time.Hour) }
	stale := clusterWith([]float32{1, 0, 0}, 0.5, "OLD")
	_, err := registry.MatchOrCreate(ctx, &stale, "2026-08-21-12")
	require.NoError(t, err)

	registry.now = func() time.Time { return now }
	fresh := clusterWith([]float32{0, 1, 0}, 0.5, "FRESH")
	_, err = registry.MatchOrCreate(ctx, &fresh, "2026-08-26-10")
	require.NoError(t, err)

	active := registry.ActiveArcs(ctx, 0)
	require.Len(t, active, 1)
	assert.Equal(t, "Fresh", active[0].CanonicalTitle)

	// The stale arc is retained, just not active at the default window.
	assert.Len(t, registry.AllArcs(ctx), 2)
	assert.Len(t, registry.ActiveArcs(ctx, 10*24*time.Hour), 2)
}

func TestFingerprintPaddedToRegistryDimensions(t *testing.T) {
	registry := NewRegistry(nil, NewMemoryStore(""), 0.85, 168*time.Hour, 4, nil)
	ctx := context.Background()

	short := clusterWith([]float32{1, 0}, 0.5, "NATO")
	created, err := registry.MatchOrCreate(ctx, &short, "2026-08-26-10")
	require.NoError(t, err)
	assert.True(t, created.IsNew)

	arcs := registry.AllArcs(ctx)
	require.Len(t, arcs, 1)
	assert.Equal(t, []float32{1, 0, 0, 0}, arcs[0].Fingerprint)

	// A wider centroid from a different provider still matches the arc
	// and blends at the stored dimension instead of replacing history.
	wide := clusterWith([]float32{0.99, 0.05, 0, 0, 0, 0}, 0.6, "NATO")
	matched, err := registry.MatchOrCreate(ctx, &wide, "2026-08-26-14")
	require.NoError(t, err)
	assert.False(t, matched.IsNew)
	assert.Equal(t, created.ArcID, matched.ArcID)

	arcs = registry.AllArcs(ctx)
	require.Len(t, arcs, 1)
	require.Len(t, arcs[0].Fingerprint, 4)
	assert.InDelta(t, 0.7*1+0.3*0.99, arcs[0].Fingerprint[0], 1e-6)
	assert.InDelta(t, 0.3*0.05, arcs[0].Fingerprint[1], 1e-6)
}

func TestBlendKeepsStoredFingerprintOnSizeMismatch(t *testing.T) {
	old := []float32{0.5, 0.5, 0}
	blended := blendFingerprints(old, []float32{1})

	assert.Equal(t, old, blended)
}

func TestBrokenStoreFallsBackToMemory(t *testing.T) {
	registry := NewRegistry(brokenStore{}, NewMemoryStore(""), 0.85, 168*time.Hour, 3, nil)
	ctx := context.Background()

	cluster := clusterWith([]float32{1, 0, 0}, 0.5, "NATO")
	created, err := registry.MatchOrCreate(ctx, &cluster, "2026-08-26-10")
	require.NoError(t, err)
	assert.True(t, created.IsNew)

	again := clusterWith([]float32{1, 0, 0}, 0.7, "NATO")
	matched, err := registry.MatchOrCreate(ctx, &again, "2026-08-26-14")
	require.NoError(t, err)

	assert.False(t, matched.IsNew)
	assert.Equal(t, created.ArcID, matched.ArcID)
	assert.Len(t, registry.ActiveArcs(ctx, 0), 1)
}

func TestMemoryStoreSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arcs.json")
	ctx := context.Background()

	registry := NewRegistry(nil, NewMemoryStore(path), 0.85, 168*time.Hour, 3, nil)

	cluster := clusterWith([]float32{0.6, 0.8, 0}, 0.7, "NATO", "SUMMIT")
	created, err := registry.MatchOrCreate(ctx, &cluster, "2026-08-26-10")
	require.NoError(t, err)

	reloaded := NewRegistry(nil, NewMemoryStore(path), 0.85, 168*time.Hour, 3, nil)

	arcs := reloaded.ActiveArcs(ctx, 0)
	require.Len(t, arcs, 1)
	assert.Equal(t, created.ArcID, arcs[0].ArcID)
	assert.Equal(t, domain.PhaseEmerging, arcs[0].Phase)
	assert.InDelta(t, 0.6, arcs[0].Fingerprint[0], 1e-6)
	assert.InDelta(t, 0.8, arcs[0].Fingerprint[1], 1e-6)

	// The reloaded registry matches the same narrative to the same arc.
	next := clusterWith([]float32{0.6, 0.8, 0}, 0.9, "NATO", "SUMMIT")
	matched, err := reloaded.MatchOrCreate(ctx, &next, "2026-08-26-14")
	require.NoError(t, err)
	assert.Equal(t, created.ArcID, matched.ArcID)
}
