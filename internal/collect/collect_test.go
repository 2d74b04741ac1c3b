package collect

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heymarcell/zeitgeistai/internal/core/domain"
)

type staticCollector struct {
	name  string
	items []domain.RawItem
	err   error
}

func (s staticCollector) Name() string { return s.name }

func (s staticCollector) Collect(context.Context) ([]domain.RawItem, error) {
	return s.items, s.err
}

func TestGatherSkipsFailingCollector(t *testing.T) {
	collectors := []Collector{
		staticCollector{name: "good", items: []domain.RawItem{{URL: "https://a.example/1"}}},
		staticCollector{name: "broken", err: errors.New("boom")},
		staticCollector{name: "also-good", items: []domain.RawItem{{URL: "https://b.example/1"}}},
	}

	items := Gather(context.Background(), collectors, nil)

	require.Len(t, items, 2)
	assert.Equal(t, "https://a.example/1", items[0].URL)
	assert.Equal(t, "https://b.example/1", items[1].URL)
}

func TestTitleThemes(t *testing.T) {
	themes := titleThemes("NATO summit: leaders said defense budget will grow")

	assert.Equal(t, []string{"NATO", "SUMMIT", "LEADERS", "DEFENSE", "BUDGET", "GROW"}, themes)
}

func TestGDELTCollectSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)

		_, err := w.Write([]byte(`{"articles": [
			{"url": "https://example.com/1", "title": "NATO summit opens", "domain": "example.com", "seendate": "20260826T065540Z"},
			{"url": "", "title": "missing url is dropped"}
		]}`))
		require.NoError(t, err)
	}))
	defer ts.Close()

	collector := NewGDELTCollector(GDELTConfig{
		Query:       "sourcelang:english",
		MaxArticles: 10,
		Timeout:     5 * time.Second,
	})
	collector.baseURL = ts.URL

	items, err := collector.Collect(context.Background())
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, "https://example.com/1", items[0].URL)
	assert.Equal(t, domain.SourceMainstream, items[0].Source)
	assert.Equal(t, []string{"NATO", "SUMMIT", "OPENS"}, items[0].Themes)
	assert.False(t, items[0].PublishedAt.IsZero())
}

func TestGDELTCollectNonJSONResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)

		_, err := w.Write([]byte("Your query was too broad. Please try again."))
		require.NoError(t, err)
	}))
	defer ts.Close()

	collector := NewGDELTCollector(GDELTConfig{Query: "q", MaxArticles: 10})
	collector.baseURL = ts.URL

	items, err := collector.Collect(context.Background())
	require.ErrorIs(t, err, errGDELTAPIError)
	assert.Empty(t, items)
}

func TestGDELTCollectUnexpectedStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	collector := NewGDELTCollector(GDELTConfig{Query: "q", MaxArticles: 10})
	collector.baseURL = ts.URL

	_, err := collector.Collect(context.Background())
	require.ErrorIs(t, err, errGDELTUnexpectedStatus)
}

func TestRSSCollectMapsEntries(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")

		_, err := w.Write([]byte(`<?xml version="1.0"?>
<rss version="2.0"><channel>
  <title>Example Wire</title>
  <item>
    <title>Wildfire spreads across coastal region</title>
    <link>https://example.com/wildfire</link>
    <category>Climate</category>
    <category>Disaster</category>
    <pubDate>Tue, 25 Aug 2026 10:00:00 GMT</pubDate>
  </item>
</channel></rss>`))
		require.NoError(t, err)
	}))
	defer ts.Close()

	collector := NewRSSCollector([]string{ts.URL}, nil)

	items, err := collector.Collect(context.Background())
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, "https://example.com/wildfire", items[0].URL)
	assert.Equal(t, domain.SourceMainstream, items[0].Source)
	assert.Equal(t, []string{"CLIMATE", "DISASTER"}, items[0].Themes)
	assert.Equal(t, 2026, items[0].PublishedAt.Year())
}

func TestRSSCollectSkipsBrokenFeed(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, err := w.Write([]byte(`<?xml version="1.0"?>
<rss version="2.0"><channel><title>W</title>
  <item><title>Story headline here</title><link>https://example.com/s</link></item>
</channel></rss>`))
		require.NoError(t, err)
	}))
	defer good.Close()

	collector := NewRSSCollector([]string{broken.URL, good.URL}, nil)

	items, err := collector.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "https://example.com/s", items[0].URL)
}

func TestMastodonCollectSamplesTimeline(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/timelines/public", r.URL.Path)

		// Second page (max_id set) ends the scroll.
		if r.URL.Query().Get("max_id") != "" {
			_, err := w.Write([]byte(`[]`))
			require.NoError(t, err)

			return
		}

		_, err := w.Write([]byte(`[
			{"id": "2", "url": "https://social.example/@a/2",
			 "content": "<p>Huge <b>pipeline</b> leak upstream</p>",
			 "created_at": "2026-08-26T08:00:00Z",
			 "tags": [{"name": "pipeline"}, {"name": "environment"}]},
			{"id": "1", "url": "", "content": "boost with no url"}
		]`))
		require.NoError(t, err)
	}))
	defer ts.Close()

	collector := NewMastodonCollector(MastodonConfig{
		Instance:   ts.URL,
		SampleSize: 10,
		Timeout:    5 * time.Second,
	})

	items, err := collector.Collect(context.Background())
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, domain.SourceGrassroots, items[0].Source)
	assert.Equal(t, []string{"PIPELINE", "ENVIRONMENT"}, items[0].Themes)
	assert.Equal(t, "Huge pipeline leak upstream", items[0].Text)
	assert.Equal(t, time.Date(2026, 8, 26, 8, 0, 0, 0, time.UTC), items[0].PublishedAt)
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "paragraphs keep word separation",
			content: "<p>first</p><p>second</p>",
			want:    "first second",
		},
		{
			name:    "plain text passes through",
			content: "no markup at all",
			want:    "no markup at all",
		},
		{
			name:    "empty",
			content: "",
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripHTML(tt.content))
		})
	}
}
