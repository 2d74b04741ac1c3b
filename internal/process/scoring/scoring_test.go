package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/heymarcell/zeitgeistai/internal/core/domain"
)

func TestWeightsSumToOne(t *testing.T) {
	sum := WeightEmotional + WeightVelocity + WeightCrisis + WeightFreshness +
		WeightPractical + WeightTrendAlignment + WeightCredibility

	require.Equal(t, 1.0, sum)
}

func TestScoreBreakdownBounds(t *testing.T) {
	s := NewScorer(4*time.Hour, nil)

	clusters := []domain.Cluster{
		{
			Topics: []string{"WAR", "CRISIS", "PROTEST", "SCANDAL", "DISASTER"},
			Members: []domain.RawItem{
				{URL: "https://reuters.com/a"},
				{URL: "https://random.blog/b"},
			},
		},
		{
			Topics:  []string{"GARDENING"},
			Members: []domain.RawItem{{URL: "https://random.blog/c"}},
		},
	}

	grassroots := make([]domain.RawItem, 0, 200)
	for i := 0; i < 200; i++ {
		grassroots = append(grassroots, domain.RawItem{Text: "war crisis everywhere"})
	}

	scored := s.Score(clusters, grassroots, []string{"war updates", "crisis watch"})

	for _, c := range scored {
		b := c.ScoreBreakdown
		for name, v := range map[string]float64{
			"emotional":       b.Emotional,
			"velocity":        b.Velocity,
			"crisis":          b.Crisis,
			"freshness":       b.Freshness,
			"practical":       b.Practical,
			"trend_alignment": b.TrendAlignment,
			"credibility":     b.Credibility,
		} {
			require.GreaterOrEqual(t, v, 0.0, name)
			require.LessOrEqual(t, v, 1.0, name)
		}

		want := WeightEmotional*b.Emotional + WeightVelocity*b.Velocity +
			WeightCrisis*b.Crisis + WeightFreshness*b.Freshness +
			WeightPractical*b.Practical + WeightTrendAlignment*b.TrendAlignment +
			WeightCredibility*b.Credibility

		require.InDelta(t, want, c.ViralityScore, 1e-9)
	}
}

func TestScoreSortsDescending(t *testing.T) {
	s := NewScorer(0, nil)

	clusters := []domain.Cluster{
		{Topics: []string{"GARDENING"}, Members: []domain.RawItem{{URL: "https://random.blog/1"}}},
		{Topics: []string{"WAR", "CRISIS", "DISASTER"}, Members: []domain.RawItem{{URL: "https://reuters.com/1"}}},
	}

	scored := s.Score(clusters, nil, nil)

	require.Len(t, scored, 2)
	require.GreaterOrEqual(t, scored[0].ViralityScore, scored[1].ViralityScore)
	require.Equal(t, []string{"WAR", "CRISIS", "DISASTER"}, scored[0].Topics)
}

func TestEmotionalScoreCapped(t *testing.T) {
	s := NewScorer(0, nil)

	// Four high-arousal topics: 4/3 caps at 1.
	clusters := s.Score([]domain.Cluster{{
		Topics: []string{"WAR", "CRISIS", "DISASTER", "SCANDAL"},
	}}, nil, nil)

	require.Equal(t, 1.0, clusters[0].ScoreBreakdown.Emotional)
}

func TestVelocityScoreFromMentions(t *testing.T) {
	s := NewScorer(0, nil)

	grassroots := make([]domain.RawItem, 50)
	for i := range grassroots {
		grassroots[i] = domain.RawItem{Text: "big nato news today"}
	}

	clusters := s.Score([]domain.Cluster{{Topics: []string{"NATO"}}}, grassroots, nil)

	// 50 mentions of "nato" / 100 = 0.5.
	require.InDelta(t, 0.5, clusters[0].ScoreBreakdown.Velocity, 1e-9)
}

func TestCredibilityTiers(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want float64
	}{
		{"tier1 wire service", "https://www.reuters.com/world/x", 1.0},
		{"tier2 newspaper", "https://www.bbc.com/news/y", 0.8},
		{"unknown source", "https://some.blog/z", 0.5},
		{"tier domain in path only", "https://some.blog/reuters.com-analysis", 0.5},
		{"tier domain in query only", "https://agg.example/read?src=apnews.com", 0.5},
		{"tier1 subdomain", "https://live.apnews.com/hub", 1.0},
		{"lookalike host", "https://notreuters.com/x", 0.5},
		{"unparseable url", "://bad", 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, domainTier(tt.url))
		})
	}
}

func TestFreshnessScoreDecays(t *testing.T) {
	s := NewScorer(4*time.Hour, nil)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	fresh := s.freshnessScore([]domain.RawItem{{PublishedAt: now}})
	old := s.freshnessScore([]domain.RawItem{{PublishedAt: now.Add(-8 * time.Hour)}})

	require.InDelta(t, 1.0, fresh, 1e-9)
	require.InDelta(t, 0.25, old, 1e-9)
	require.Greater(t, fresh, old)

	// No timestamps falls back to the constant.
	require.Equal(t, 0.8, s.freshnessScore([]domain.RawItem{{}}))
}

func TestGrassrootsMentionsTokenization(t *testing.T) {
	posts := []domain.RawItem{
		{Text: "Climate protest happening now! #climate"},
		{Text: "the and for not counted"},
	}

	mentions := GrassrootsMentions(posts)

	require.Equal(t, 2, mentions["climate"])
	require.Equal(t, 1, mentions["protest"])
	require.Zero(t, mentions["the"])
	require.Zero(t, mentions["now"])
	require.Equal(t, 1, mentions["counted"])
}

func TestTrendAlignmentSubstringMatch(t *testing.T) {
	s := NewScorer(0, nil)

	clusters := s.Score([]domain.Cluster{{
		Topics: []string{"NATO", "SUMMIT"},
	}}, nil, []string{"nato defense spending", "emergency summit coverage"})

	// Both topics match as substrings: 2/2 = 1.0.
	require.Equal(t, 1.0, clusters[0].ScoreBreakdown.TrendAlignment)
}
