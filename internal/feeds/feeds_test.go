package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newspulse/internal/store"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:media="http://search.yahoo.com/mrss/">
  <channel>
    <title>World News</title>
    <item>
      <title>Summit reaches climate accord</title>
      <link>https://news.example.com/accord</link>
      <description>&lt;p&gt;Delegates agreed on &lt;b&gt;binding&lt;/b&gt; targets.&lt;/p&gt;</description>
      <pubDate>Mon, 02 Jun 2025 08:30:00 +0000</pubDate>
      <media:content url="https://cdn.example.com/accord.jpg" />
    </item>
    <item>
      <title>Markets rally on the news</title>
      <link>https://news.example.com/markets</link>
      <description>Stocks climbed across the board.</description>
      <pubDate>not a date</pubDate>
    </item>
    <item>
      <title></title>
      <link>https://news.example.com/untitled</link>
    </item>
  </channel>
</rss>`

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFetchAllStoresParsedItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	s := newTestStore(t)
	f := NewFetcher(s, []string{srv.URL}, 5*time.Second)

	created, err := f.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, created, "the untitled item is dropped")

	articles, err := s.UnprocessedArticles()
	require.NoError(t, err)
	require.Len(t, articles, 2)

	accord := articles[0]
	assert.Equal(t, "Summit reaches climate accord", accord.Title)
	assert.Equal(t, "https://news.example.com/accord", accord.URL)
	assert.Equal(t, "Delegates agreed on binding targets.", accord.Content, "markup is stripped")
	assert.Equal(t, "https://cdn.example.com/accord.jpg", accord.Multimedia)
	assert.Equal(t, time.Date(2025, 6, 2, 8, 30, 0, 0, time.UTC), accord.PublishedAt.UTC())

	// Unparseable pubDate falls back to ingestion time instead of dropping.
	assert.WithinDuration(t, time.Now().UTC(), articles[1].PublishedAt.UTC(), time.Minute)
}

func TestFetchAllIsIdempotentByURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	s := newTestStore(t)
	f := NewFetcher(s, []string{srv.URL}, 5*time.Second)

	first, err := f.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, first)

	second, err := f.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second, "a second pull of the same feed creates nothing")
}

func TestFailingFeedIsSkipped(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer good.Close()

	s := newTestStore(t)
	f := NewFetcher(s, []string{bad.URL, good.URL}, 5*time.Second)

	created, err := f.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, created, "healthy feeds still ingest")
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "plain text", StripHTML("plain text"))
	assert.Equal(t, "nested and inline", StripHTML("<div><p>nested</p> and <em>inline</em></div>"))
	assert.Equal(t, "", StripHTML("  "))
}
