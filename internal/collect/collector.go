// Package collect gathers raw items from external signal sources: GDELT
// for mainstream press, RSS feeds, and Mastodon public timelines for
// grassroots social posts.
package collect

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/heymarcell/zeitgeistai/internal/core/domain"
	"github.com/heymarcell/zeitgeistai/internal/platform/observability"
)

const maxThemesPerItem = 10

// minThemeTokenLen filters short words when deriving themes from titles.
const minThemeTokenLen = 4

// Collector fetches one batch of raw items from a single source.
type Collector interface {
	Name() string
	Collect(ctx context.Context) ([]domain.RawItem, error)
}

// Gather runs every collector and concatenates the results. A failing
// collector contributes an empty batch; the cycle proceeds with whatever
// the healthy sources returned.
func Gather(ctx context.Context, collectors []Collector, logger *zerolog.Logger) []domain.RawItem {
	var items []domain.RawItem

	for _, collector := range collectors {
		batch, err := collector.Collect(ctx)
		if err != nil {
			if logger != nil {
				logger.Warn().Err(err).Str("collector", collector.Name()).Msg("collector failed, skipping batch")
			}

			continue
		}

		observability.ItemsCollected.WithLabelValues(collector.Name()).Add(float64(len(batch)))
		items = append(items, batch...)

		if logger != nil {
			logger.Debug().Str("collector", collector.Name()).Int("count", len(batch)).Msg("collected batch")
		}
	}

	return items
}

var themeStopWords = map[string]struct{}{
	"about": {}, "after": {}, "against": {}, "along": {}, "amid": {},
	"because": {}, "before": {}, "between": {}, "could": {}, "every": {},
	"from": {}, "have": {}, "into": {}, "over": {}, "said": {},
	"says": {}, "than": {}, "that": {}, "their": {}, "there": {},
	"these": {}, "they": {}, "this": {}, "urges": {}, "were": {},
	"what": {}, "when": {}, "where": {}, "which": {}, "while": {},
	"will": {}, "with": {}, "would": {}, "your": {},
}

// titleThemes derives uppercase theme tokens from a headline, keeping the
// first significant words in order.
func titleThemes(title string) []string {
	themes := make([]string, 0, maxThemesPerItem)

	for _, word := range strings.Fields(title) {
		word = strings.Trim(word, ".,!?:;\"'()[]")
		if len(word) < minThemeTokenLen {
			continue
		}

		if _, stop := themeStopWords[strings.ToLower(word)]; stop {
			continue
		}

		themes = append(themes, strings.ToUpper(word))
		if len(themes) == maxThemesPerItem {
			break
		}
	}

	return themes
}
