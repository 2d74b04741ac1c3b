// Package scoring computes composite virality scores for clusters from a
// fixed weighted formula over seven normalized signals.
package scoring

import (
	"math"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/heymarcell/zeitgeistai/internal/core/domain"
)

// Weights of the composite score. They sum to exactly 1.0.
const (
	WeightEmotional      = 0.28
	WeightVelocity       = 0.22
	WeightCrisis         = 0.15
	WeightFreshness      = 0.12
	WeightPractical      = 0.10
	WeightTrendAlignment = 0.08
	WeightCredibility    = 0.05
)

// Normalization divisors and caps.
const (
	emotionalDivisor = 3.0
	velocityDivisor  = 100.0
	crisisDivisor    = 2.0
	practicalDivisor = 2.0
	trendDivisor     = 2.0

	// defaultFreshness is used when no member carries a timestamp.
	defaultFreshness = 0.8

	// minGrassrootsTokenLen filters short words from grassroots text.
	minGrassrootsTokenLen = 3
)

// Source credibility tiers.
var (
	tier1Domains = []string{"reuters.com", "apnews.com", "afp.com"}
	tier2Domains = []string{"nytimes.com", "washingtonpost.com", "theguardian.com", "bbc.com"}
)

const (
	tier1Score   = 1.0
	tier2Score   = 0.8
	defaultScore = 0.5
)

// highArousalThemes are themes with strong emotional triggers.
var highArousalThemes = themeSet(
	"CRISIS", "WAR", "CONFLICT", "DEATH", "DISASTER", "PROTEST",
	"SCANDAL", "CONTROVERSY", "BREAKTHROUGH", "HISTORIC", "SHOCKING",
)

// crisisThemes mark crisis/viral category coverage.
var crisisThemes = themeSet(
	"WAR", "CONFLICT", "PROTEST", "TERROR", "DISASTER",
	"EPIDEMIC", "EMERGENCY", "CRISIS",
)

// practicalThemes mark practical-value coverage.
var practicalThemes = themeSet(
	"HOWTO", "TIPS", "GUIDE", "ADVICE", "EXPLAINER",
	"TUTORIAL", "EDUCATION", "HEALTH",
)

// Scorer computes virality scores. It is a pure function over its inputs;
// the only state is configuration.
type Scorer struct {
	freshnessHalfLife time.Duration
	now               func() time.Time
	logger            *zerolog.Logger
}

// NewScorer creates a scorer with the given freshness half-life.
func NewScorer(freshnessHalfLife time.Duration, logger *zerolog.Logger) *Scorer {
	return &Scorer{
		freshnessHalfLife: freshnessHalfLife,
		now:               time.Now,
		logger:            logger,
	}
}

// Score assigns a virality score and breakdown to every cluster and returns
// the clusters re-sorted by score descending. The grassroots mention table
// and trending topics come from external collectors; empty inputs are valid.
func (s *Scorer) Score(clusters []domain.Cluster, grassroots []domain.RawItem, trending []string) []domain.Cluster {
	mentions := GrassrootsMentions(grassroots)

	trendingSet := make([]string, 0, len(trending))
	for _, t := range trending {
		trendingSet = append(trendingSet, strings.ToLower(t))
	}

	for i := range clusters {
		breakdown := s.breakdownFor(&clusters[i], mentions, trendingSet)

		clusters[i].ScoreBreakdown = breakdown
		clusters[i].ViralityScore = WeightEmotional*breakdown.Emotional +
			WeightVelocity*breakdown.Velocity +
			WeightCrisis*breakdown.Crisis +
			WeightFreshness*breakdown.Freshness +
			WeightPractical*breakdown.Practical +
			WeightTrendAlignment*breakdown.TrendAlignment +
			WeightCredibility*breakdown.Credibility
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].ViralityScore > clusters[j].ViralityScore
	})

	if s.logger != nil && len(clusters) > 0 {
		s.logger.Info().
			Int("clusters", len(clusters)).
			Float64("top_score", clusters[0].ViralityScore).
			Msg("scoring complete")
	}

	return clusters
}

func (s *Scorer) breakdownFor(cluster *domain.Cluster, mentions map[string]int, trending []string) domain.ScoreBreakdown {
	upper := make(map[string]struct{}, len(cluster.Topics))
	lower := make([]string, 0, len(cluster.Topics))

	for _, topic := range cluster.Topics {
		upper[strings.ToUpper(topic)] = struct{}{}
		lower = append(lower, strings.ToLower(topic))
	}

	return domain.ScoreBreakdown{
		Emotional:      cappedOverlap(upper, highArousalThemes, emotionalDivisor),
		Velocity:       velocityScore(lower, mentions),
		Crisis:         cappedOverlap(upper, crisisThemes, crisisDivisor),
		Freshness:      s.freshnessScore(cluster.Members),
		Practical:      cappedOverlap(upper, practicalThemes, practicalDivisor),
		TrendAlignment: trendAlignmentScore(lower, trending),
		Credibility:    credibilityScore(cluster.Members),
	}
}

// cappedOverlap counts topics present in the theme set, divides, and caps
// at 1.
func cappedOverlap(topics map[string]struct{}, themes map[string]struct{}, divisor float64) float64 {
	matches := 0

	for topic := range topics {
		if _, ok := themes[topic]; ok {
			matches++
		}
	}

	return math.Min(float64(matches)/divisor, 1.0)
}

// velocityScore sums grassroots mentions of the cluster topics, normalized
// so that 100 mentions saturates the signal.
func velocityScore(topics []string, mentions map[string]int) float64 {
	total := 0
	for _, topic := range topics {
		total += mentions[topic]
	}

	return math.Min(float64(total)/velocityDivisor, 1.0)
}

// freshnessScore decays exponentially with the mean member age. Members
// without timestamps fall back to a constant.
func (s *Scorer) freshnessScore(members []domain.RawItem) float64 {
	if s.freshnessHalfLife <= 0 {
		return defaultFreshness
	}

	now := s.now()

	var totalAge time.Duration

	dated := 0

	for _, m := range members {
		if m.PublishedAt.IsZero() {
			continue
		}

		age := now.Sub(m.PublishedAt)
		if age < 0 {
			age = 0
		}

		totalAge += age
		dated++
	}

	if dated == 0 {
		return defaultFreshness
	}

	meanAge := totalAge / time.Duration(dated)

	return math.Exp2(-meanAge.Hours() / s.freshnessHalfLife.Hours())
}

// trendAlignmentScore counts cluster topics that appear as substrings of
// any trending topic string.
func trendAlignmentScore(topics []string, trending []string) float64 {
	matches := 0

	for _, topic := range topics {
		for _, trend := range trending {
			if strings.Contains(trend, topic) {
				matches++
				break
			}
		}
	}

	return math.Min(float64(matches)/trendDivisor, 1.0)
}

// credibilityScore averages per-member source-tier scores.
func credibilityScore(members []domain.RawItem) float64 {
	if len(members) == 0 {
		return defaultScore
	}

	var sum float64

	for _, m := range members {
		sum += domainTier(m.URL)
	}

	return sum / float64(len(members))
}

func domainTier(rawURL string) float64 {
	host := hostOf(rawURL)
	if host == "" {
		return defaultScore
	}

	for _, d := range tier1Domains {
		if matchesDomain(host, d) {
			return tier1Score
		}
	}

	for _, d := range tier2Domains {
		if matchesDomain(host, d) {
			return tier2Score
		}
	}

	return defaultScore
}

// hostOf extracts the lowercased hostname so tier matching never picks up
// domain names appearing in the URL path or query.
func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	return strings.ToLower(parsed.Hostname())
}

func matchesDomain(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// GrassrootsMentions builds a keyword frequency table from grassroots post
// text. Words are lowercased, stripped of leading/trailing punctuation, and
// must be longer than three characters.
func GrassrootsMentions(posts []domain.RawItem) map[string]int {
	mentions := make(map[string]int)

	for _, post := range posts {
		for _, word := range strings.Fields(strings.ToLower(post.Text)) {
			word = strings.Trim(word, "#@.,!?")
			if len(word) > minGrassrootsTokenLen {
				mentions[word]++
			}
		}
	}

	return mentions
}

func themeSet(themes ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(themes))
	for _, t := range themes {
		set[t] = struct{}{}
	}

	return set
}
