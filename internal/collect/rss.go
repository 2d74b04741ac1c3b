package collect

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/heymarcell/zeitgeistai/internal/core/domain"
)

const (
	rssCollectorName  = "rss"
	rssDefaultTimeout = 30 * time.Second
	rssUserAgent      = "zeitgeistai/1.0 (+https://github.com/heymarcell/zeitgeistai)"
)

// RSSCollector fetches a fixed set of RSS/Atom feeds and maps entries to
// mainstream raw items. A failing feed is skipped; the batch carries the
// entries of the feeds that parsed.
type RSSCollector struct {
	feedURLs   []string
	httpClient *http.Client
	feedParser *gofeed.Parser
	logger     *zerolog.Logger
}

func NewRSSCollector(feedURLs []string, logger *zerolog.Logger) *RSSCollector {
	return &RSSCollector{
		feedURLs:   feedURLs,
		httpClient: &http.Client{Timeout: rssDefaultTimeout},
		feedParser: gofeed.NewParser(),
		logger:     logger,
	}
}

func (c *RSSCollector) Name() string {
	return rssCollectorName
}

func (c *RSSCollector) Collect(ctx context.Context) ([]domain.RawItem, error) {
	var items []domain.RawItem

	for _, feedURL := range c.feedURLs {
		feed, err := c.fetchFeed(ctx, feedURL)
		if err != nil {
			if c.logger != nil {
				c.logger.Warn().Err(err).Str("feed", feedURL).Msg("feed fetch failed, skipping")
			}

			continue
		}

		for _, entry := range feed.Items {
			if entry.Link == "" {
				continue
			}

			items = append(items, feedItem(entry))
		}
	}

	return items, nil
}

func (c *RSSCollector) fetchFeed(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create feed request: %w", err)
	}

	req.Header.Set("User-Agent", rssUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch feed: unexpected status %d", resp.StatusCode)
	}

	feed, err := c.feedParser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	return feed, nil
}

// feedItem maps a feed entry to a raw item. Feed categories become themes
// when present; otherwise themes are derived from the headline.
func feedItem(entry *gofeed.Item) domain.RawItem {
	themes := make([]string, 0, maxThemesPerItem)

	for _, category := range entry.Categories {
		category = strings.TrimSpace(category)
		if category == "" {
			continue
		}

		themes = append(themes, strings.ToUpper(category))
		if len(themes) == maxThemesPerItem {
			break
		}
	}

	if len(themes) == 0 {
		themes = titleThemes(entry.Title)
	}

	item := domain.RawItem{
		URL:    entry.Link,
		Themes: themes,
		Source: domain.SourceMainstream,
		Text:   entry.Title,
	}

	switch {
	case entry.PublishedParsed != nil:
		item.PublishedAt = *entry.PublishedParsed
	case entry.Published != "":
		if ts, err := dateparse.ParseAny(entry.Published); err == nil {
			item.PublishedAt = ts
		}
	}

	return item
}
