package collect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/heymarcell/zeitgeistai/internal/core/domain"
)

const (
	gdeltBaseURL        = "https://api.gdeltproject.org/api/v2/doc/doc"
	gdeltDefaultTimeout = 30 * time.Second
	gdeltDefaultRPM     = 60

	gdeltCollectorName  = "gdelt"
	gdeltSeenDateLayout = "20060102T150405Z"

	secondsPerMinute = 60
	errSnippetLen    = 200
)

var (
	errGDELTUnexpectedStatus = errors.New("gdelt unexpected status")
	errGDELTAPIError         = errors.New("gdelt api error")
)

// GDELTConfig configures the GDELT document API collector.
type GDELTConfig struct {
	Query          string
	MaxArticles    int
	RequestsPerMin int
	Timeout        time.Duration
}

// GDELTCollector pulls recent articles from the GDELT DOC 2.0 API and maps
// them to mainstream raw items.
type GDELTCollector struct {
	baseURL     string
	query       string
	maxArticles int
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

func NewGDELTCollector(cfg GDELTConfig) *GDELTCollector {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = gdeltDefaultTimeout
	}

	rpm := cfg.RequestsPerMin
	if rpm <= 0 {
		rpm = gdeltDefaultRPM
	}

	return &GDELTCollector{
		baseURL:     gdeltBaseURL,
		query:       cfg.Query,
		maxArticles: cfg.MaxArticles,
		httpClient:  &http.Client{Timeout: timeout},
		rateLimiter: rate.NewLimiter(rate.Limit(float64(rpm)/secondsPerMinute), 1),
	}
}

func (c *GDELTCollector) Name() string {
	return gdeltCollectorName
}

func (c *GDELTCollector) Collect(ctx context.Context) ([]domain.RawItem, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("gdelt rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("create gdelt request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gdelt request: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", errGDELTUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read gdelt response: %w", err)
	}

	return parseGDELTResponse(body)
}

func (c *GDELTCollector) buildURL() string {
	params := url.Values{}
	params.Set("query", c.query)
	params.Set("mode", "ArtList")
	params.Set("maxrecords", fmt.Sprintf("%d", c.maxArticles))
	params.Set("format", "json")
	params.Set("sort", "DateDesc")

	return c.baseURL + "?" + params.Encode()
}

type gdeltResponse struct {
	Articles []gdeltArticle `json:"articles"`
}

type gdeltArticle struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Domain   string `json:"domain"`
	SeenDate string `json:"seendate"`
}

// parseGDELTResponse decodes the ArtList payload. GDELT returns plain-text
// error prose with a 200 status, so non-JSON bodies are surfaced as API
// errors with a snippet of the message.
func parseGDELTResponse(body []byte) ([]domain.RawItem, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		snippet := string(trimmed)
		if len(snippet) > errSnippetLen {
			snippet = snippet[:errSnippetLen]
		}

		return nil, fmt.Errorf("%w: %s", errGDELTAPIError, snippet)
	}

	var parsed gdeltResponse
	if err := json.Unmarshal(trimmed, &parsed); err != nil {
		return nil, fmt.Errorf("decode gdelt response: %w", err)
	}

	items := make([]domain.RawItem, 0, len(parsed.Articles))

	for _, article := range parsed.Articles {
		if article.URL == "" {
			continue
		}

		item := domain.RawItem{
			URL:    article.URL,
			Themes: titleThemes(article.Title),
			Source: domain.SourceMainstream,
			Text:   article.Title,
		}

		if ts, err := time.Parse(gdeltSeenDateLayout, article.SeenDate); err == nil {
			item.PublishedAt = ts
		}

		items = append(items, item)
	}

	return items, nil
}
