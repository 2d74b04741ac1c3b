// Package pipeline orchestrates one processing cycle: collect raw items,
// deduplicate, cluster, score, track story arcs, measure narrative
// divergence, and write the cycle digest to disk.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/heymarcell/zeitgeistai/internal/arc"
	"github.com/heymarcell/zeitgeistai/internal/collect"
	"github.com/heymarcell/zeitgeistai/internal/core/domain"
	"github.com/heymarcell/zeitgeistai/internal/platform/observability"
	"github.com/heymarcell/zeitgeistai/internal/process/cluster"
	"github.com/heymarcell/zeitgeistai/internal/process/dedup"
	"github.com/heymarcell/zeitgeistai/internal/process/divergence"
	"github.com/heymarcell/zeitgeistai/internal/process/scoring"
)

// cycleIDLayout yields one id per scheduling slot, which is what makes
// replayed cycles idempotent in the arc registry.
const cycleIDLayout = "2006-01-02-15"

const (
	digestFilePrefix = "digest-"
	digestFileMode   = 0o644

	cycleStatusSuccess = "success"
	cycleStatusFailure = "failure"

	dropReasonDuplicate       = "duplicate"
	dropReasonMissingIdentity = "missing_identity"
)

// editionHours maps publication slots to edition names. A cycle is labeled
// with the slot closest to its UTC hour.
var editionHours = map[int]string{
	2:  "Overnight Edition",
	6:  "Dawn Edition",
	10: "Morning Brief",
	14: "Afternoon Update",
	18: "Evening Digest",
	22: "Night Report",
}

// Digest is the JSON record written at the end of every cycle.
type Digest struct {
	CycleID     string    `json:"cycle_id"`
	Edition     string    `json:"edition"`
	GeneratedAt time.Time `json:"generated_at"`

	ItemsCollected    int `json:"items_collected"`
	DuplicatesRemoved int `json:"duplicates_removed"`

	Clusters      []ClusterRecord   `json:"clusters"`
	HiddenStories []ClusterRecord   `json:"hidden_stories"`
	ActiveArcs    []domain.StoryArc `json:"active_arcs"`
}

// ClusterRecord is the digest view of one scored cluster.
type ClusterRecord struct {
	Topics         []string                  `json:"topics"`
	Size           int                       `json:"size"`
	ViralityScore  float64                   `json:"virality_score"`
	ScoreBreakdown domain.ScoreBreakdown     `json:"score_breakdown"`
	StoryArc       *domain.ArcMatch          `json:"story_arc,omitempty"`
	Divergence     *domain.DivergenceVerdict `json:"divergence,omitempty"`
}

// clusterRecords maps scored clusters to their digest view.
func clusterRecords(clusters []domain.Cluster) []ClusterRecord {
	records := make([]ClusterRecord, 0, len(clusters))
	for _, c := range clusters {
		records = append(records, ClusterRecord{
			Topics:         c.Topics,
			Size:           c.Size,
			ViralityScore:  c.ViralityScore,
			ScoreBreakdown: c.ScoreBreakdown,
			StoryArc:       c.StoryArc,
			Divergence:     c.Divergence,
		})
	}

	return records
}

// Pipeline wires the processing stages together. Stage failures degrade
// the cycle output; only digest persistence can fail the cycle.
type Pipeline struct {
	collectors []collect.Collector
	clusterer  *cluster.Engine
	scorer     *scoring.Scorer
	arcs       *arc.Registry
	detector   *divergence.Detector

	trends    collect.TrendSource
	outputDir string

	now    func() time.Time
	logger *zerolog.Logger
}

// New assembles a pipeline from its stage implementations.
func New(
	collectors []collect.Collector,
	clusterer *cluster.Engine,
	scorer *scoring.Scorer,
	arcs *arc.Registry,
	detector *divergence.Detector,
	trends collect.TrendSource,
	outputDir string,
	logger *zerolog.Logger,
) *Pipeline {
	return &Pipeline{
		collectors: collectors,
		clusterer:  clusterer,
		scorer:     scorer,
		arcs:       arcs,
		detector:   detector,
		trends:     trends,
		outputDir:  outputDir,
		now:        time.Now,
		logger:     logger,
	}
}

// RunCycle executes one full processing cycle and writes its digest.
func (p *Pipeline) RunCycle(ctx context.Context) (*Digest, error) {
	started := p.now()
	cycleID := started.UTC().Format(cycleIDLayout)

	logger := p.cycleLogger(cycleID)
	logger.Info().Msg("cycle started")

	digest, err := p.runCycle(ctx, cycleID, started, logger)

	observability.CycleDuration.Observe(p.now().Sub(started).Seconds())

	if err != nil {
		observability.CyclesTotal.WithLabelValues(cycleStatusFailure).Inc()
		logger.Error().Err(err).Msg("cycle failed")

		return nil, err
	}

	observability.CyclesTotal.WithLabelValues(cycleStatusSuccess).Inc()
	logger.Info().
		Int("clusters", len(digest.Clusters)).
		Int("hidden_stories", len(digest.HiddenStories)).
		Msg("cycle complete")

	return digest, nil
}

func (p *Pipeline) runCycle(ctx context.Context, cycleID string, started time.Time, logger zerolog.Logger) (*Digest, error) {
	raw := collect.Gather(ctx, p.collectors, &logger)

	result := dedup.Deduplicate(raw, &logger)
	observability.ItemsDeduplicated.Add(float64(len(result.Items)))
	observability.ItemsDropped.WithLabelValues(dropReasonDuplicate).Add(float64(result.DuplicatesRemoved))
	observability.ItemsDropped.WithLabelValues(dropReasonMissingIdentity).Add(float64(result.MissingIdentity))

	mainstream, grassroots := splitBySource(result.Items)

	clusters := p.clusterer.Cluster(ctx, mainstream)
	observability.ClustersProduced.Observe(float64(len(clusters)))
	observability.ClusterNoiseItems.Add(float64(noiseCount(mainstream, clusters)))

	var trending []string
	if p.trends != nil {
		trending = p.trends.Trending(ctx)
	}

	clusters = p.scorer.Score(clusters, grassroots, trending)
	clusters = p.arcs.Track(ctx, clusters, cycleID)
	clusters = p.detector.Detect(clusters, mainstream, grassroots)

	digest := &Digest{
		CycleID:           cycleID,
		Edition:           EditionName(started.UTC()),
		GeneratedAt:       started.UTC(),
		ItemsCollected:    len(raw),
		DuplicatesRemoved: result.DuplicatesRemoved,
		Clusters:          clusterRecords(clusters),
		HiddenStories:     clusterRecords(divergence.HiddenStories(clusters)),
		ActiveArcs:        p.arcs.ActiveArcs(ctx, arc.DefaultActiveWindow),
	}

	if err := p.writeDigest(digest); err != nil {
		return nil, err
	}

	return digest, nil
}

// EditionName returns the publication slot label closest to the given UTC
// time's hour, wrapping around midnight.
func EditionName(t time.Time) string {
	bestName := ""
	bestHour := -1
	bestDistance := 24

	// Plain hour distance, no midnight wrap: hour 0 belongs to the
	// overnight edition, not the previous night's. Ties go to the
	// earlier slot.
	for hour, name := range editionHours {
		distance := t.Hour() - hour
		if distance < 0 {
			distance = -distance
		}

		if distance < bestDistance || (distance == bestDistance && hour < bestHour) {
			bestDistance = distance
			bestHour = hour
			bestName = name
		}
	}

	return bestName
}

func (p *Pipeline) writeDigest(digest *Digest) error {
	if err := os.MkdirAll(p.outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	data, err := json.MarshalIndent(digest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal digest: %w", err)
	}

	path := filepath.Join(p.outputDir, digestFilePrefix+digest.CycleID+".json")
	if err = os.WriteFile(path, data, digestFileMode); err != nil {
		return fmt.Errorf("write digest: %w", err)
	}

	return nil
}

func (p *Pipeline) cycleLogger(cycleID string) zerolog.Logger {
	if p.logger == nil {
		return zerolog.Nop()
	}

	return p.logger.With().Str("cycle_id", cycleID).Logger()
}

func splitBySource(items []domain.RawItem) (mainstream, grassroots []domain.RawItem) {
	for _, item := range items {
		if item.Source == domain.SourceGrassroots {
			grassroots = append(grassroots, item)
			continue
		}

		mainstream = append(mainstream, item)
	}

	return mainstream, grassroots
}

func noiseCount(items []domain.RawItem, clusters []domain.Cluster) int {
	clustered := 0
	for _, c := range clusters {
		clustered += c.Size
	}

	if clustered > len(items) {
		return 0
	}

	return len(items) - clustered
}
