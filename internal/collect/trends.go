package collect

import "context"

// TrendSource supplies the trending phrases the scorer aligns topics
// against. Sources return an empty list rather than failing.
type TrendSource interface {
	Trending(ctx context.Context) []string
}

// StaticTrends serves a fixed, configuration-seeded trend list.
type StaticTrends struct {
	topics []string
}

func NewStaticTrends(topics []string) StaticTrends {
	return StaticTrends{topics: topics}
}

func (s StaticTrends) Trending(context.Context) []string {
	return s.topics
}
