package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newspulse/internal/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func insertTestArticle(t *testing.T, s *Store, title, url string) int64 {
	t.Helper()
	id, created, err := s.InsertArticle(core.Article{
		Title:       title,
		URL:         url,
		PublishedAt: time.Now().UTC(),
		Content:     "content of " + title,
	})
	require.NoError(t, err)
	require.True(t, created)
	return id
}

func TestInsertArticleIsIdempotentOnURL(t *testing.T) {
	s := newTestStore(t)

	id, created, err := s.InsertArticle(core.Article{Title: "a", URL: "https://example.com/a", PublishedAt: time.Now().UTC()})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, id)

	_, created, err = s.InsertArticle(core.Article{Title: "a again", URL: "https://example.com/a", PublishedAt: time.Now().UTC()})
	require.NoError(t, err)
	assert.False(t, created, "same URL must not be ingested twice")

	unprocessed, err := s.UnprocessedArticles()
	require.NoError(t, err)
	assert.Len(t, unprocessed, 1)
}

func TestCommitClustersLinksAndMarksProcessed(t *testing.T) {
	s := newTestStore(t)

	a1 := insertTestArticle(t, s, "one", "https://a.com/1")
	a2 := insertTestArticle(t, s, "two", "https://b.com/2")
	a3 := insertTestArticle(t, s, "three", "https://c.com/3")

	topicIDs, err := s.CommitClusters([]Cluster{
		{Name: "one & two", ArticleIDs: []int64{a1, a2}},
		{Name: "three", ArticleIDs: []int64{a3}},
	})
	require.NoError(t, err)
	require.Len(t, topicIDs, 2)

	unprocessed, err := s.UnprocessedArticles()
	require.NoError(t, err)
	assert.Empty(t, unprocessed)

	members, err := s.ArticlesByTopic(topicIDs[0])
	require.NoError(t, err)
	require.Len(t, members, 2)
	for _, a := range members {
		assert.True(t, a.Processed)
		assert.Equal(t, topicIDs[0], a.TopicID)
	}
}

func TestCreateRankingPersistsOrderedEntries(t *testing.T) {
	s := newTestStore(t)

	a1 := insertTestArticle(t, s, "one", "https://a.com/1")
	a2 := insertTestArticle(t, s, "two", "https://b.com/2")
	topicIDs, err := s.CommitClusters([]Cluster{
		{Name: "t1", ArticleIDs: []int64{a1}},
		{Name: "t2", ArticleIDs: []int64{a2}},
	})
	require.NoError(t, err)

	rankingID, err := s.CreateRanking([]int64{topicIDs[1], topicIDs[0]})
	require.NoError(t, err)

	entries, err := s.RankingEntries(rankingID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].Position)
	assert.Equal(t, topicIDs[1], entries[0].TopicID)
	assert.Equal(t, 2, entries[1].Position)
	assert.Equal(t, topicIDs[0], entries[1].TopicID)

	ranked, err := s.RankedTopics(rankingID)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, "t2", ranked[0].Name)
}

func TestLatestRanking(t *testing.T) {
	s := newTestStore(t)

	latest, err := s.LatestRanking()
	require.NoError(t, err)
	assert.Nil(t, latest, "no ranking yet is a normal empty state")

	a := insertTestArticle(t, s, "one", "https://a.com/1")
	topicIDs, err := s.CommitClusters([]Cluster{{Name: "t", ArticleIDs: []int64{a}}})
	require.NoError(t, err)

	first, err := s.CreateRanking(topicIDs)
	require.NoError(t, err)
	second, err := s.CreateRanking(topicIDs)
	require.NoError(t, err)

	latest, err = s.LatestRanking()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second, latest.ID)
	assert.NotEqual(t, first, latest.ID)
}

func TestLatestInsightByTypeReturnsMostRecent(t *testing.T) {
	s := newTestStore(t)

	a := insertTestArticle(t, s, "one", "https://a.com/1")
	topicIDs, err := s.CommitClusters([]Cluster{{Name: "t", ArticleIDs: []int64{a}}})
	require.NoError(t, err)
	topicID := topicIDs[0]

	_, err = s.SaveInsight(topicID, core.InsightSummary, "old summary")
	require.NoError(t, err)
	_, err = s.SaveInsight(topicID, core.InsightSummary, "new summary")
	require.NoError(t, err)
	_, err = s.SaveInsight(topicID, core.InsightSentiment, `{"sentiments":{},"emotions":{}}`)
	require.NoError(t, err)

	latest, err := s.LatestInsightByType(topicID, core.InsightSummary)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "new summary", latest.Content)

	none, err := s.LatestInsightByType(topicID, core.InsightBackground)
	require.NoError(t, err)
	assert.Nil(t, none)

	all, err := s.InsightsByTopic(topicID)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSocialPostsRoundTrip(t *testing.T) {
	s := newTestStore(t)

	a := insertTestArticle(t, s, "one", "https://a.com/1")
	topicIDs, err := s.CommitClusters([]Cluster{{Name: "t", ArticleIDs: []int64{a}}})
	require.NoError(t, err)

	_, err = s.InsertSocialPost(core.SocialPost{
		TopicID:   topicIDs[0],
		Content:   "hot take",
		CreatedAt: time.Now().UTC(),
		Views:     10,
		Likes:     3,
	})
	require.NoError(t, err)

	posts, err := s.SocialPostsByTopic(topicIDs[0])
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "hot take", posts[0].Content)
	assert.Equal(t, int64(10), posts[0].Views)
}

func TestTopicIDsWithArticles(t *testing.T) {
	s := newTestStore(t)

	a1 := insertTestArticle(t, s, "one", "https://a.com/1")
	a2 := insertTestArticle(t, s, "two", "https://b.com/2")
	topicIDs, err := s.CommitClusters([]Cluster{
		{Name: "t1", ArticleIDs: []int64{a1}},
		{Name: "t2", ArticleIDs: []int64{a2}},
	})
	require.NoError(t, err)

	ids, err := s.TopicIDsWithArticles(10)
	require.NoError(t, err)
	assert.Equal(t, topicIDs, ids)

	ids, err = s.TopicIDsWithArticles(1)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}
