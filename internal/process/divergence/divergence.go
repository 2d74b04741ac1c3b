// Package divergence compares mainstream and grassroots mention volume per
// cluster to flag over- and under-reported stories and adjust virality
// scores accordingly.
package divergence

import (
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/heymarcell/zeitgeistai/internal/core/domain"
	"github.com/heymarcell/zeitgeistai/internal/platform/observability"
)

// Classification thresholds on the narrative divergence index.
const (
	severelyUnderreportedThreshold = 3.0
	underreportedThreshold         = 2.0
	overreportedThreshold          = 0.5
)

// Score multipliers per verdict.
const (
	severeBoost     = 1.20
	moderateBoost   = 1.15
	overreportedCut = 0.90
	noAdjustment    = 1.00
)

// minGrassrootsTokenLen filters short words from grassroots free text.
const minGrassrootsTokenLen = 3

// Detector computes narrative divergence verdicts.
type Detector struct {
	baselineRatio float64
	logger        *zerolog.Logger
}

// NewDetector creates a detector with the expected mainstream:grassroots
// coverage ratio (default 10:1 in configuration).
func NewDetector(baselineRatio float64, logger *zerolog.Logger) *Detector {
	return &Detector{
		baselineRatio: baselineRatio,
		logger:        logger,
	}
}

// Detect attaches a DivergenceVerdict to every cluster and applies the
// verdict's multiplier to the cluster's virality score in place.
//
// Mention tables are built independently per source class: mainstream
// counts come from structured theme fields, grassroots counts from
// free-text word tokens longer than three characters.
func (d *Detector) Detect(clusters []domain.Cluster, mainstream, grassroots []domain.RawItem) []domain.Cluster {
	mainstreamCounts := countThemeMentions(mainstream)
	grassrootsCounts := countTextMentions(grassroots)

	for i := range clusters {
		cluster := &clusters[i]

		mainstreamVolume := 0
		grassrootsVolume := 0

		for _, topic := range cluster.Topics {
			key := strings.ToLower(topic)
			mainstreamVolume += mainstreamCounts[key]
			grassrootsVolume += grassrootsCounts[key]
		}

		nd := d.index(mainstreamVolume, grassrootsVolume)
		verdictType, multiplier := interpret(nd)

		cluster.ViralityScore *= multiplier
		cluster.Divergence = &domain.DivergenceVerdict{
			NdScore:          nd,
			Type:             verdictType,
			MainstreamVolume: mainstreamVolume,
			GrassrootsVolume: grassrootsVolume,
			Adjustment:       multiplier,
		}

		observability.HiddenStories.WithLabelValues(string(verdictType)).Inc()

		if d.logger != nil && (verdictType == domain.SeverelyUnderreported || verdictType == domain.Underreported) {
			d.logger.Info().
				Strs("topics", cluster.Topics).
				Float64("nd_score", nd).
				Str("type", string(verdictType)).
				Msg("hidden story detected")
		}
	}

	return clusters
}

// HiddenStories returns the clusters flagged as underreported, sorted by
// divergence score descending.
func HiddenStories(clusters []domain.Cluster) []domain.Cluster {
	hidden := make([]domain.Cluster, 0)

	for _, cluster := range clusters {
		if cluster.Divergence == nil {
			continue
		}

		switch cluster.Divergence.Type {
		case domain.SeverelyUnderreported, domain.Underreported:
			hidden = append(hidden, cluster)
		}
	}

	sort.SliceStable(hidden, func(i, j int) bool {
		return hidden[i].Divergence.NdScore > hidden[j].Divergence.NdScore
	})

	return hidden
}

// index computes nd = baseline / (mainstream / grassroots). Volumes are
// floored at 1 to avoid division by zero. A high index means grassroots is
// discussing the story more than mainstream covers it.
func (d *Detector) index(mainstreamVolume, grassrootsVolume int) float64 {
	if mainstreamVolume < 1 {
		mainstreamVolume = 1
	}

	if grassrootsVolume < 1 {
		grassrootsVolume = 1
	}

	actualRatio := float64(mainstreamVolume) / float64(grassrootsVolume)

	return d.baselineRatio / actualRatio
}

func interpret(nd float64) (domain.DivergenceType, float64) {
	switch {
	case nd > severelyUnderreportedThreshold:
		return domain.SeverelyUnderreported, severeBoost
	case nd > underreportedThreshold:
		return domain.Underreported, moderateBoost
	case nd < overreportedThreshold:
		return domain.Overreported, overreportedCut
	default:
		return domain.NormalCoverage, noAdjustment
	}
}

// countThemeMentions counts per-topic mentions from structured theme fields.
func countThemeMentions(items []domain.RawItem) map[string]int {
	counts := make(map[string]int)

	for _, item := range items {
		for _, theme := range item.Themes {
			counts[strings.ToLower(theme)]++
		}
	}

	return counts
}

// countTextMentions counts per-word mentions from free text, keeping words
// longer than three characters after stripping social punctuation.
func countTextMentions(items []domain.RawItem) map[string]int {
	counts := make(map[string]int)

	for _, item := range items {
		for _, word := range strings.Fields(strings.ToLower(item.Text)) {
			word = strings.Trim(word, "#@.,!?")
			if len(word) > minGrassrootsTokenLen {
				counts[word]++
			}
		}
	}

	return counts
}
