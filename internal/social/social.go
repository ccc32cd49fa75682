// Package social collects public social media posts for ranked topics.
package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"newspulse/internal/bus"
	"newspulse/internal/core"
	"newspulse/internal/logger"
	"newspulse/internal/metrics"
	"newspulse/internal/store"
)

// Post is one social media post returned by a search backend.
type Post struct {
	Text      string
	CreatedAt time.Time
	Views     int64
	Likes     int64
}

// Searcher finds public posts matching a free-text query.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Post, error)
}

// BskyClient searches the Bluesky app.bsky.feed.searchPosts endpoint.
// The endpoint is public and needs no authentication.
type BskyClient struct {
	endpoint string
	client   *http.Client
}

// NewBskyClient builds a search client for the given endpoint with a bounded
// request timeout.
func NewBskyClient(endpoint string, timeout time.Duration) *BskyClient {
	return &BskyClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// bskyPost mirrors the subset of the searchPosts response we keep.
type bskyPost struct {
	Record struct {
		Text      string    `json:"text"`
		CreatedAt time.Time `json:"createdAt"`
	} `json:"record"`
	LikeCount  int64 `json:"likeCount"`
	QuoteCount int64 `json:"quoteCount"`
}

// Search queries the endpoint and maps the result posts. Quote counts stand
// in for view counts, which the public endpoint does not expose.
func (c *BskyClient) Search(ctx context.Context, query string, limit int) ([]Post, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post search failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("post search returned status %d", resp.StatusCode)
	}

	var body struct {
		Posts []bskyPost `json:"posts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	posts := make([]Post, 0, len(body.Posts))
	for _, p := range body.Posts {
		if p.Record.Text == "" {
			continue
		}
		posts = append(posts, Post{
			Text:      p.Record.Text,
			CreatedAt: p.Record.CreatedAt,
			Views:     p.QuoteCount,
			Likes:     p.LikeCount,
		})
	}
	return posts, nil
}

// Ingester stores search results for ranked topics whenever a new ranking
// is published.
type Ingester struct {
	store    *store.Store
	searcher Searcher
	limit    int
}

// NewIngester wires the social ingester.
func NewIngester(s *store.Store, searcher Searcher, limit int) *Ingester {
	return &Ingester{store: s, searcher: searcher, limit: limit}
}

// Run is the subscriber loop on ranking-created.
func (in *Ingester) Run(ctx context.Context, sub *bus.Subscription) {
	logger.Info("social ingester started")
	for {
		msg, err := sub.Receive(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, bus.ErrClosed) {
				logger.Error("social subscriber receive failed", err)
			}
			return
		}
		payload, ok := msg.Payload.(core.RankingCreated)
		if !ok {
			logger.Warn("unexpected payload on ranking-created", "message_id", msg.ID)
			continue
		}
		if err := in.ProcessRanking(ctx, payload.RankingID); err != nil {
			logger.Error("social ingestion run failed", err, "ranking_id", payload.RankingID)
		}
	}
}

// ProcessRanking searches for posts about every topic of the ranking. A
// failed search or insert is logged and the next topic is processed.
func (in *Ingester) ProcessRanking(ctx context.Context, rankingID int64) error {
	topics, err := in.store.RankedTopics(rankingID)
	if err != nil {
		return fmt.Errorf("failed to load ranked topics for ranking %d: %w", rankingID, err)
	}

	stored := 0
	for _, topic := range topics {
		if err := ctx.Err(); err != nil {
			return err
		}
		posts, err := in.searcher.Search(ctx, topic.Name, in.limit)
		if err != nil {
			logger.Warn("post search failed for topic", "topic_id", topic.ID, "reason", err.Error())
			continue
		}
		for _, p := range posts {
			if _, err := in.store.InsertSocialPost(core.SocialPost{
				TopicID:   topic.ID,
				Content:   p.Text,
				CreatedAt: p.CreatedAt,
				Views:     p.Views,
				Likes:     p.Likes,
			}); err != nil {
				logger.Error("failed to store social post", err, "topic_id", topic.ID)
				continue
			}
			stored++
			metrics.SocialPostsIngested.Inc()
		}
	}
	logger.Info("social ingestion complete", "ranking_id", rankingID, "topics", len(topics), "posts", stored)
	return nil
}
