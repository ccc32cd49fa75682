package social

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newspulse/internal/bus"
	"newspulse/internal/core"
	"newspulse/internal/store"
)

type fakeSearcher struct {
	posts   map[string][]Post
	err     error
	queries []string
}

func (f *fakeSearcher) Search(ctx context.Context, query string, limit int) ([]Post, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.posts[query], nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func rankedTopic(t *testing.T, s *store.Store, name string) (int64, int64) {
	t.Helper()
	id, created, err := s.InsertArticle(core.Article{
		Title:       name,
		URL:         "https://example.com/" + name,
		PublishedAt: time.Now().UTC(),
		Content:     "content",
	})
	require.NoError(t, err)
	require.True(t, created)

	topicIDs, err := s.CommitClusters([]store.Cluster{{Name: name, ArticleIDs: []int64{id}}})
	require.NoError(t, err)
	rankingID, err := s.CreateRanking(topicIDs)
	require.NoError(t, err)
	return topicIDs[0], rankingID
}

func TestProcessRankingStoresPostsPerTopic(t *testing.T) {
	s := newTestStore(t)
	topicID, rankingID := rankedTopic(t, s, "election results")

	now := time.Now().UTC().Truncate(time.Second)
	searcher := &fakeSearcher{posts: map[string][]Post{
		"election results": {
			{Text: "counting is underway", CreatedAt: now, Views: 7, Likes: 12},
			{Text: "turnout was record high", CreatedAt: now},
		},
	}}

	in := NewIngester(s, searcher, 25)
	require.NoError(t, in.ProcessRanking(context.Background(), rankingID))

	posts, err := s.SocialPostsByTopic(topicID)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "counting is underway", posts[0].Content)
	assert.Equal(t, int64(12), posts[0].Likes)
	assert.Equal(t, []string{"election results"}, searcher.queries, "topic name is the search query")
}

func TestSearchFailureDoesNotAbortRun(t *testing.T) {
	s := newTestStore(t)
	_, rankingID := rankedTopic(t, s, "storm warning")

	in := NewIngester(s, &fakeSearcher{err: errors.New("backend down")}, 25)
	assert.NoError(t, in.ProcessRanking(context.Background(), rankingID))
}

func TestRunConsumesRankingCreatedEvents(t *testing.T) {
	s := newTestStore(t)
	b := bus.New()
	sub := b.Subscribe(bus.RankingCreated, "social")
	topicID, rankingID := rankedTopic(t, s, "trade talks")

	searcher := &fakeSearcher{posts: map[string][]Post{
		"trade talks": {{Text: "markets react", CreatedAt: time.Now().UTC()}},
	}}
	in := NewIngester(s, searcher, 25)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		in.Run(ctx, sub)
		close(done)
	}()

	b.Publish(bus.RankingCreated, core.RankingCreated{RankingID: rankingID})

	require.Eventually(t, func() bool {
		posts, err := s.SocialPostsByTopic(topicID)
		return err == nil && len(posts) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestBskyClientParsesSearchResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "wild fires", r.URL.Query().Get("q"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"posts": [
			{"record": {"text": "smoke over the valley", "createdAt": "2025-06-01T12:00:00Z"}, "likeCount": 4, "quoteCount": 1},
			{"record": {"text": "", "createdAt": "2025-06-01T12:01:00Z"}, "likeCount": 9}
		]}`))
	}))
	defer srv.Close()

	c := NewBskyClient(srv.URL, 5*time.Second)
	posts, err := c.Search(context.Background(), "wild fires", 10)
	require.NoError(t, err)
	require.Len(t, posts, 1, "posts without text are dropped")
	assert.Equal(t, "smoke over the valley", posts[0].Text)
	assert.Equal(t, int64(4), posts[0].Likes)
	assert.Equal(t, int64(1), posts[0].Views)
}

func TestBskyClientRejectsNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewBskyClient(srv.URL, 5*time.Second)
	_, err := c.Search(context.Background(), "anything", 10)
	assert.Error(t, err)
}
