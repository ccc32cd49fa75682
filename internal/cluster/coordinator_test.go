package cluster

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newspulse/internal/bus"
	"newspulse/internal/core"
	"newspulse/internal/store"
)

// mapEmbedder returns a fixed vector per text.
type mapEmbedder struct {
	vectors map[string][]float64
	err     error
}

func (m *mapEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		vec, ok := m.vectors[text]
		if !ok {
			return nil, errors.New("no vector for " + text)
		}
		out[i] = vec
	}
	return out, nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func insertArticle(t *testing.T, s *store.Store, title, url string) int64 {
	t.Helper()
	id, created, err := s.InsertArticle(core.Article{
		Title:       title,
		URL:         url,
		PublishedAt: time.Now().UTC(),
		Content:     "body of " + title,
	})
	require.NoError(t, err)
	require.True(t, created)
	return id
}

func TestRunCreatesOneTopicFromOneCluster(t *testing.T) {
	s := newTestStore(t)
	b := bus.New()
	sub := b.Subscribe(bus.TopicsGenerated, "test")

	insertArticle(t, s, "storm hits coast", "https://a.com/1")
	insertArticle(t, s, "coastal storm damage", "https://b.com/2")
	insertArticle(t, s, "storm recovery begins", "https://c.com/3")

	embedder := &mapEmbedder{vectors: map[string][]float64{
		"storm hits coast":      {1, 0, 0},
		"coastal storm damage":  {0.99, 0.01, 0},
		"storm recovery begins": {0.98, 0.02, 0},
	}}
	c := NewCoordinator(s, embedder, NewDBSCANGrouper(0.1, 2), b)

	require.NoError(t, c.Run(context.Background()))

	topics, err := s.Topics()
	require.NoError(t, err)
	require.Len(t, topics, 1)
	assert.Equal(t, "storm hits coast & coastal storm damage & storm recovery begins", topics[0].Name)

	unprocessed, err := s.UnprocessedArticles()
	require.NoError(t, err)
	assert.Empty(t, unprocessed)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := sub.Receive(ctx)
	require.NoError(t, err)
	payload := msg.Payload.(core.TopicsGenerated)
	assert.Equal(t, []int64{topics[0].ID}, payload.TopicIDs)
}

func TestRunTwiceCreatesNoNewTopics(t *testing.T) {
	s := newTestStore(t)
	b := bus.New()
	sub := b.Subscribe(bus.TopicsGenerated, "test")

	insertArticle(t, s, "a", "https://a.com/1")
	insertArticle(t, s, "b", "https://b.com/2")

	embedder := &mapEmbedder{vectors: map[string][]float64{
		"a": {1, 0},
		"b": {0.99, 0.01},
	}}
	c := NewCoordinator(s, embedder, NewDBSCANGrouper(0.1, 2), b)

	require.NoError(t, c.Run(context.Background()))
	require.NoError(t, c.Run(context.Background()))

	topics, err := s.Topics()
	require.NoError(t, err)
	assert.Len(t, topics, 1, "processed articles must not be reclustered")
	assert.Equal(t, 1, sub.Pending(), "second run must not publish")
}

func TestRunWithNoArticlesIsNoop(t *testing.T) {
	s := newTestStore(t)
	b := bus.New()
	sub := b.Subscribe(bus.TopicsGenerated, "test")

	c := NewCoordinator(s, &mapEmbedder{}, NewDBSCANGrouper(0.1, 2), b)
	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, 0, sub.Pending())
}

func TestEmbedderFailureAbortsWithoutPartialCommit(t *testing.T) {
	s := newTestStore(t)
	b := bus.New()
	sub := b.Subscribe(bus.TopicsGenerated, "test")

	insertArticle(t, s, "a", "https://a.com/1")
	insertArticle(t, s, "b", "https://b.com/2")

	c := NewCoordinator(s, &mapEmbedder{err: errors.New("embedding service down")}, NewDBSCANGrouper(0.1, 2), b)
	err := c.Run(context.Background())
	require.Error(t, err)

	topics, err := s.Topics()
	require.NoError(t, err)
	assert.Empty(t, topics)

	unprocessed, err := s.UnprocessedArticles()
	require.NoError(t, err)
	assert.Len(t, unprocessed, 2, "run must be retryable wholesale")
	assert.Equal(t, 0, sub.Pending())
}

func TestNoiseArticlesStayUnprocessed(t *testing.T) {
	s := newTestStore(t)
	b := bus.New()

	insertArticle(t, s, "a", "https://a.com/1")
	insertArticle(t, s, "b", "https://b.com/2")
	loner := insertArticle(t, s, "c", "https://c.com/3")

	embedder := &mapEmbedder{vectors: map[string][]float64{
		"a": {1, 0, 0},
		"b": {0.99, 0.01, 0},
		"c": {0, 0, 1},
	}}
	c := NewCoordinator(s, embedder, NewDBSCANGrouper(0.1, 2), b)
	require.NoError(t, c.Run(context.Background()))

	unprocessed, err := s.UnprocessedArticles()
	require.NoError(t, err)
	require.Len(t, unprocessed, 1)
	assert.Equal(t, loner, unprocessed[0].ID, "noise articles are retried on the next pass")
}
