package collect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/heymarcell/zeitgeistai/internal/core/domain"
)

const (
	mastodonCollectorName  = "mastodon"
	mastodonDefaultTimeout = 30 * time.Second

	// The public timeline endpoint caps a single page at 40 statuses.
	mastodonPageLimit = 40
)

var errMastodonUnexpectedStatus = errors.New("mastodon unexpected status")

// MastodonConfig configures the public timeline collector.
type MastodonConfig struct {
	Instance   string
	SampleSize int
	Timeout    time.Duration
}

// MastodonCollector samples the public timeline of one Mastodon instance
// and maps statuses to grassroots raw items.
type MastodonCollector struct {
	instance   string
	sampleSize int
	httpClient *http.Client
}

func NewMastodonCollector(cfg MastodonConfig) *MastodonCollector {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = mastodonDefaultTimeout
	}

	return &MastodonCollector{
		instance:   strings.TrimRight(cfg.Instance, "/"),
		sampleSize: cfg.SampleSize,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *MastodonCollector) Name() string {
	return mastodonCollectorName
}

func (c *MastodonCollector) Collect(ctx context.Context) ([]domain.RawItem, error) {
	var (
		items []domain.RawItem
		maxID string
	)

	for len(items) < c.sampleSize {
		statuses, err := c.fetchPage(ctx, maxID)
		if err != nil {
			return nil, err
		}

		if len(statuses) == 0 {
			break
		}

		for _, status := range statuses {
			if status.URL == "" {
				continue
			}

			items = append(items, statusItem(status))
			if len(items) == c.sampleSize {
				break
			}
		}

		maxID = statuses[len(statuses)-1].ID
	}

	return items, nil
}

type mastodonStatus struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Tags      []struct {
		Name string `json:"name"`
	} `json:"tags"`
}

func (c *MastodonCollector) fetchPage(ctx context.Context, maxID string) ([]mastodonStatus, error) {
	limit := c.sampleSize
	if limit > mastodonPageLimit {
		limit = mastodonPageLimit
	}

	params := url.Values{}
	params.Set("limit", fmt.Sprintf("%d", limit))

	if maxID != "" {
		params.Set("max_id", maxID)
	}

	endpoint := c.instance + "/api/v1/timelines/public?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create mastodon request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mastodon request: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", errMastodonUnexpectedStatus, resp.StatusCode)
	}

	var statuses []mastodonStatus
	if err = json.NewDecoder(resp.Body).Decode(&statuses); err != nil {
		return nil, fmt.Errorf("decode mastodon response: %w", err)
	}

	return statuses, nil
}

func statusItem(status mastodonStatus) domain.RawItem {
	themes := make([]string, 0, len(status.Tags))

	for _, tag := range status.Tags {
		if tag.Name == "" {
			continue
		}

		themes = append(themes, strings.ToUpper(tag.Name))
		if len(themes) == maxThemesPerItem {
			break
		}
	}

	return domain.RawItem{
		URL:         status.URL,
		Themes:      themes,
		Source:      domain.SourceGrassroots,
		Text:        stripHTML(status.Content),
		PublishedAt: status.CreatedAt,
	}
}

// stripHTML removes markup from status content, inserting spaces at tag
// boundaries so adjacent paragraphs keep word separation.
func stripHTML(content string) string {
	var (
		builder strings.Builder
		inTag   bool
	)

	for _, r := range content {
		switch {
		case r == '<':
			inTag = true

			builder.WriteRune(' ')
		case r == '>':
			inTag = false
		case !inTag:
			builder.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(builder.String()), " ")
}
