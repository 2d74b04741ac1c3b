// Package arc tracks story arcs: persistent fingerprints that let the
// pipeline recognize when a cycle's cluster continues a narrative seen in
// earlier cycles, and classify each narrative's lifecycle phase.
package arc

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/heymarcell/zeitgeistai/internal/core/domain"
	"github.com/heymarcell/zeitgeistai/internal/core/embeddings"
	"github.com/heymarcell/zeitgeistai/internal/platform/observability"
)

// Fingerprint update is an exponential moving average: the stored vector
// keeps most of its history while drifting toward the latest centroid.
const (
	fingerprintDecay = 0.7
	fingerprintBlend = 0.3
)

// Phase machine boundaries.
const (
	emergingWindow = 24 * time.Hour
	peakWindow     = 72 * time.Hour

	peakVelocityRatio   = 0.9
	fadingVelocityRatio = 0.5
)

// DefaultActiveWindow bounds how long ago an arc must have been seen to
// still count as active for digest purposes.
const DefaultActiveWindow = 72 * time.Hour

const (
	canonicalTitleTopics = 3
	coreEntityCount      = 5
	titleSeparator       = " - "
)

// Match outcome labels for metrics.
const (
	outcomeMatched = "matched"
	outcomeCreated = "created"
)

// Registry matches cluster centroids against persisted story arcs. All
// mutation goes through a single mutex; the registry is the only writer of
// arc state.
type Registry struct {
	mu sync.Mutex

	store    Store
	fallback *MemoryStore

	similarityThreshold float64
	retentionAge        time.Duration
	dimensions          int

	titleCaser cases.Caser
	now        func() time.Time
	logger     *zerolog.Logger
}

// NewRegistry creates a registry backed by store, with fallback absorbing
// operations whenever store fails. store may be nil, in which case the
// fallback serves everything. Fingerprints are padded or truncated to
// dimensions so arcs stay comparable when the embedding provider changes.
func NewRegistry(
	store Store,
	fallback *MemoryStore,
	similarityThreshold float64,
	retentionAge time.Duration,
	dimensions int,
	logger *zerolog.Logger,
) *Registry {
	return &Registry{
		store:               store,
		fallback:            fallback,
		similarityThreshold: similarityThreshold,
		retentionAge:        retentionAge,
		dimensions:          dimensions,
		titleCaser:          cases.Title(language.English),
		now:                 time.Now,
		logger:              logger,
	}
}

// Track matches every cluster against the registry, updating matched arcs
// and creating arcs for unmatched clusters. Each cluster gets a StoryArc
// summary attached. cycleID makes the operation idempotent: replaying the
// same cycle never duplicates appearances or velocity history.
func (r *Registry) Track(ctx context.Context, clusters []domain.Cluster, cycleID string) []domain.Cluster {
	for i := range clusters {
		match, err := r.MatchOrCreate(ctx, &clusters[i], cycleID)
		if err != nil {
			if r.logger != nil {
				r.logger.Error().Err(err).
					Strs("topics", clusters[i].Topics).
					Msg("arc tracking failed for cluster")
			}

			continue
		}

		clusters[i].StoryArc = match
	}

	r.updateActiveGauge(ctx)

	return clusters
}

// MatchOrCreate finds the most similar stored arc for the cluster's
// centroid. Above the similarity threshold the arc is updated; otherwise a
// new arc is created in the EMERGING phase.
func (r *Registry) MatchOrCreate(ctx context.Context, cluster *domain.Cluster, cycleID string) (*domain.ArcMatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	best, found := r.search(ctx, cluster.Centroid)
	if found && best.Similarity >= r.similarityThreshold {
		return r.update(ctx, best, cluster, cycleID)
	}

	return r.create(ctx, cluster, cycleID)
}

func (r *Registry) update(ctx context.Context, best ScoredArc, cluster *domain.Cluster, cycleID string) (*domain.ArcMatch, error) {
	arc := best.Arc

	latest := embeddings.PadToTargetDimensions(cluster.Centroid, len(arc.Fingerprint))
	arc.Fingerprint = blendFingerprints(arc.Fingerprint, latest)
	arc.LastSeenAt = r.now()

	if !containsCycle(arc.Appearances, cycleID) {
		arc.Appearances = append(arc.Appearances, cycleID)
		arc.VelocityHistory = append(arc.VelocityHistory, cluster.ViralityScore)
	}

	if cluster.ViralityScore > arc.PeakVelocity {
		arc.PeakVelocity = cluster.ViralityScore
	}

	arc.Phase = r.classifyPhase(arc)

	if err := r.upsert(ctx, arc); err != nil {
		return nil, err
	}

	observability.ArcMatches.WithLabelValues(outcomeMatched).Inc()

	if r.logger != nil {
		r.logger.Debug().
			Str("arc_id", arc.ArcID).
			Str("phase", string(arc.Phase)).
			Float64("similarity", best.Similarity).
			Msg("cluster matched existing arc")
	}

	return &domain.ArcMatch{
		ArcID:       arc.ArcID,
		Title:       arc.CanonicalTitle,
		Phase:       arc.Phase,
		IsNew:       false,
		Similarity:  best.Similarity,
		Appearances: len(arc.Appearances),
	}, nil
}

func (r *Registry) create(ctx context.Context, cluster *domain.Cluster, cycleID string) (*domain.ArcMatch, error) {
	now := r.now()

	arc := domain.StoryArc{
		ArcID:           uuid.NewString(),
		Fingerprint:     r.normalizeFingerprint(cluster.Centroid),
		CanonicalTitle:  r.canonicalTitle(cluster.Topics),
		CoreEntities:    coreEntities(cluster.Topics),
		FirstSeenAt:     now,
		LastSeenAt:      now,
		Appearances:     []string{cycleID},
		Phase:           domain.PhaseEmerging,
		PeakVelocity:    cluster.ViralityScore,
		VelocityHistory: []float64{cluster.ViralityScore},
	}

	if err := r.upsert(ctx, arc); err != nil {
		return nil, err
	}

	observability.ArcMatches.WithLabelValues(outcomeCreated).Inc()

	if r.logger != nil {
		r.logger.Info().
			Str("arc_id", arc.ArcID).
			Str("title", arc.CanonicalTitle).
			Msg("new story arc created")
	}

	return &domain.ArcMatch{
		ArcID:       arc.ArcID,
		Title:       arc.CanonicalTitle,
		Phase:       arc.Phase,
		IsNew:       true,
		Similarity:  1.0,
		Appearances: 1,
	}, nil
}

// ActiveArcs returns the arcs seen within maxAge that have not faded,
// sorted by peak velocity descending. A maxAge of zero or less means
// DefaultActiveWindow.
func (r *Registry) ActiveArcs(ctx context.Context, maxAge time.Duration) []domain.StoryArc {
	if maxAge <= 0 {
		maxAge = DefaultActiveWindow
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxAge)
	arcs := make([]domain.StoryArc, 0)

	for _, a := range r.scrollAll(ctx) {
		if a.Phase == domain.PhaseFading || a.LastSeenAt.Before(cutoff) {
			continue
		}

		arcs = append(arcs, a)
	}

	sort.SliceStable(arcs, func(i, j int) bool {
		return arcs[i].PeakVelocity > arcs[j].PeakVelocity
	})

	return arcs
}

// AllArcs returns every retained arc regardless of phase, most recently
// seen first.
func (r *Registry) AllArcs(ctx context.Context) []domain.StoryArc {
	r.mu.Lock()
	defer r.mu.Unlock()

	arcs := r.scrollAll(ctx)

	sort.SliceStable(arcs, func(i, j int) bool {
		return arcs[i].LastSeenAt.After(arcs[j].LastSeenAt)
	})

	return arcs
}

// Sweep removes arcs whose last appearance is older than the retention age
// and returns the number removed.
func (r *Registry) Sweep(ctx context.Context) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.retentionAge)

	var stale []string

	for _, arc := range r.scrollAll(ctx) {
		if arc.LastSeenAt.Before(cutoff) {
			stale = append(stale, arc.ArcID)
		}
	}

	if len(stale) == 0 {
		return 0
	}

	r.delete(ctx, stale)

	observability.ArcsSwept.Add(float64(len(stale)))

	if r.logger != nil {
		r.logger.Info().Int("count", len(stale)).Msg("swept expired story arcs")
	}

	return len(stale)
}

// classifyPhase applies the lifecycle machine based on arc age and the
// latest velocity relative to the historical peak.
func (r *Registry) classifyPhase(arc domain.StoryArc) domain.Phase {
	age := r.now().Sub(arc.FirstSeenAt)

	latest := 0.0
	if len(arc.VelocityHistory) > 0 {
		latest = arc.VelocityHistory[len(arc.VelocityHistory)-1]
	}

	switch {
	case age < emergingWindow:
		return domain.PhaseEmerging
	case age < peakWindow:
		if arc.PeakVelocity > 0 && latest >= peakVelocityRatio*arc.PeakVelocity {
			return domain.PhasePeak
		}

		return domain.PhaseDeveloping
	default:
		if latest < fadingVelocityRatio*arc.PeakVelocity {
			return domain.PhaseFading
		}

		return domain.PhaseDeveloping
	}
}

func (r *Registry) canonicalTitle(topics []string) string {
	n := len(topics)
	if n > canonicalTitleTopics {
		n = canonicalTitleTopics
	}

	parts := make([]string, 0, n)
	for _, topic := range topics[:n] {
		parts = append(parts, r.titleCaser.String(strings.ToLower(topic)))
	}

	return strings.Join(parts, titleSeparator)
}

func coreEntities(topics []string) []string {
	n := len(topics)
	if n > coreEntityCount {
		n = coreEntityCount
	}

	entities := make([]string, n)
	copy(entities, topics[:n])

	return entities
}

// search queries the primary store, falling back to memory on error.
func (r *Registry) search(ctx context.Context, fingerprint []float32) (ScoredArc, bool) {
	if r.store != nil {
		scored, err := r.store.Search(ctx, fingerprint, 1)
		if err == nil {
			if len(scored) == 0 {
				return ScoredArc{}, false
			}

			return scored[0], true
		}

		r.recordFallback(err, "search")
	}

	scored, _ := r.fallback.Search(ctx, fingerprint, 1)
	if len(scored) == 0 {
		return ScoredArc{}, false
	}

	return scored[0], true
}

// upsert mirrors every write into the memory fallback so a later store
// outage still sees current arc state.
func (r *Registry) upsert(ctx context.Context, arc domain.StoryArc) error {
	if err := r.fallback.Upsert(ctx, arc); err != nil {
		return err
	}

	if r.store != nil {
		if err := r.store.Upsert(ctx, arc); err != nil {
			r.recordFallback(err, "upsert")
		}
	}

	return nil
}

func (r *Registry) scrollAll(ctx context.Context) []domain.StoryArc {
	if r.store != nil {
		arcs, err := r.store.ScrollAll(ctx)
		if err == nil {
			return arcs
		}

		r.recordFallback(err, "scroll")
	}

	arcs, _ := r.fallback.ScrollAll(ctx)

	return arcs
}

func (r *Registry) delete(ctx context.Context, arcIDs []string) {
	if err := r.fallback.Delete(ctx, arcIDs); err != nil && r.logger != nil {
		r.logger.Warn().Err(err).Msg("fallback arc delete failed")
	}

	if r.store != nil {
		if err := r.store.Delete(ctx, arcIDs); err != nil {
			r.recordFallback(err, "delete")
		}
	}
}

func (r *Registry) updateActiveGauge(ctx context.Context) {
	observability.ArcsActive.Set(float64(len(r.AllArcs(ctx))))
}

func (r *Registry) recordFallback(err error, op string) {
	observability.ArcStoreFallbacks.Inc()

	if r.logger != nil {
		r.logger.Warn().Err(err).Str("op", op).Msg("arc store unavailable, using memory fallback")
	}
}

// normalizeFingerprint pads or truncates a centroid to the registry's
// configured dimension, leaving the caller's slice untouched.
func (r *Registry) normalizeFingerprint(v []float32) []float32 {
	if r.dimensions > 0 {
		v = embeddings.PadToTargetDimensions(v, r.dimensions)
	}

	return cloneVector(v)
}

// blendFingerprints averages the stored fingerprint toward the latest
// centroid. On a residual size mismatch the stored fingerprint wins; its
// history is worth more than one cycle's centroid.
func blendFingerprints(old, latest []float32) []float32 {
	if len(old) != len(latest) {
		return cloneVector(old)
	}

	blended := make([]float32, len(old))
	for i := range old {
		blended[i] = fingerprintDecay*old[i] + fingerprintBlend*latest[i]
	}

	return blended
}

func cloneVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)

	return out
}

func containsCycle(appearances []string, cycleID string) bool {
	for _, id := range appearances {
		if id == cycleID {
			return true
		}
	}

	return false
}
