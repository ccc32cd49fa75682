// Package feeds ingests articles from RSS feeds into the store.
package feeds

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"newspulse/internal/core"
	"newspulse/internal/logger"
	"newspulse/internal/metrics"
	"newspulse/internal/store"
)

// rssFeed models the subset of RSS 2.0 we consume.
type rssFeed struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Title string    `xml:"title"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	Encoded     string `xml:"encoded"` // content:encoded full body when present
	Enclosure   struct {
		URL string `xml:"url,attr"`
	} `xml:"enclosure"`
	Media struct {
		URL string `xml:"url,attr"`
	} `xml:"content"` // media:content image or video
}

// pubDate layouts seen in the wild, tried in order.
var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
}

// Fetcher pulls configured RSS feeds and stores new articles.
type Fetcher struct {
	store  *store.Store
	client *http.Client
	urls   []string
}

// NewFetcher builds a fetcher over the given feed URLs with a bounded
// per-request timeout.
func NewFetcher(s *store.Store, urls []string, timeout time.Duration) *Fetcher {
	return &Fetcher{
		store:  s,
		client: &http.Client{Timeout: timeout},
		urls:   urls,
	}
}

// FetchAll pulls every configured feed once and returns how many new
// articles were stored. A failing feed is logged and skipped.
func (f *Fetcher) FetchAll(ctx context.Context) (int, error) {
	created := 0
	for _, feedURL := range f.urls {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		n, err := f.fetchFeed(ctx, feedURL)
		if err != nil {
			logger.Warn("feed fetch failed", "url", feedURL, "reason", err.Error())
			continue
		}
		created += n
	}
	logger.Info("feed ingestion complete", "feeds", len(f.urls), "new_articles", created)
	return created, nil
}

// RunLoop fetches all feeds on a fixed interval until the context is
// cancelled. The first fetch happens immediately.
func (f *Fetcher) RunLoop(ctx context.Context, interval time.Duration) {
	logger.Info("feed fetcher started", "feeds", len(f.urls), "interval", interval.String())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := f.FetchAll(ctx); err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (f *Fetcher) fetchFeed(ctx context.Context, feedURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build feed request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("feed request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	var feed rssFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return 0, fmt.Errorf("failed to parse feed XML: %w", err)
	}

	created := 0
	for _, item := range feed.Channel.Items {
		article, ok := itemToArticle(item)
		if !ok {
			continue
		}
		_, isNew, err := f.store.InsertArticle(article)
		if err != nil {
			logger.Error("failed to store article", err, "url", article.URL)
			continue
		}
		if isNew {
			created++
			metrics.ArticlesIngested.Inc()
		}
	}
	logger.Info("feed fetched", "url", feedURL, "items", len(feed.Channel.Items), "new", created)
	return created, nil
}

// itemToArticle maps an RSS item to an article. Items without a title or
// link are unusable and dropped.
func itemToArticle(item rssItem) (core.Article, bool) {
	title := strings.TrimSpace(item.Title)
	link := strings.TrimSpace(item.Link)
	if title == "" || link == "" {
		return core.Article{}, false
	}

	content := item.Encoded
	if content == "" {
		content = item.Description
	}

	multimedia := item.Media.URL
	if multimedia == "" {
		multimedia = item.Enclosure.URL
	}

	return core.Article{
		Title:       title,
		URL:         link,
		PublishedAt: parsePubDate(item.PubDate),
		Content:     StripHTML(content),
		Multimedia:  multimedia,
	}, true
}

// parsePubDate tries the common RSS date layouts, falling back to the
// current time so an unparseable date never drops the article.
func parsePubDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range pubDateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC()
		}
	}
	return time.Now().UTC()
}

// StripHTML reduces feed entry markup to plain text.
func StripHTML(s string) string {
	if !strings.Contains(s, "<") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(doc.Text())
}
