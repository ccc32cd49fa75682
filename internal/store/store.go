// Package store is the persistence layer, a single SQLite database holding
// articles, topics, rankings, insights and social posts. Multi-row writes
// that must become visible together (a ranking and its entries, a clustering
// pass) run inside one transaction.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"newspulse/internal/core"
)

// Store wraps the SQLite database.
type Store struct {
	db   *sql.DB
	path string
}

// Cluster is one detected article cluster to be materialized as a topic.
type Cluster struct {
	Name       string  // Topic display name
	ArticleIDs []int64 // Member articles, linked and marked processed on commit
}

// NewStore opens (creating if necessary) the database under dataDir.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "newspulse.db")
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, nil
}

// initialize creates the necessary tables
func (s *Store) initialize() error {
	articlesTable := `
	CREATE TABLE IF NOT EXISTS articles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT,
		url TEXT UNIQUE,
		published_at DATETIME,
		content TEXT,
		processed BOOLEAN NOT NULL DEFAULT 0,
		topic_id INTEGER REFERENCES topics (id),
		multimedia TEXT
	);`

	topicsTable := `
	CREATE TABLE IF NOT EXISTS topics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT,
		created_at DATETIME
	);`

	rankingsTable := `
	CREATE TABLE IF NOT EXISTS rankings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at DATETIME
	);`

	rankingsTopicsTable := `
	CREATE TABLE IF NOT EXISTS rankings_topics (
		ranking_id INTEGER NOT NULL REFERENCES rankings (id),
		topic_id INTEGER NOT NULL REFERENCES topics (id),
		position INTEGER NOT NULL,
		PRIMARY KEY (ranking_id, topic_id)
	);`

	insightsTable := `
	CREATE TABLE IF NOT EXISTS insights (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		topic_id INTEGER NOT NULL REFERENCES topics (id),
		content TEXT,
		insight_type TEXT NOT NULL
	);`

	socialPostsTable := `
	CREATE TABLE IF NOT EXISTS social_posts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		topic_id INTEGER NOT NULL REFERENCES topics (id),
		content TEXT,
		created_at DATETIME,
		views INTEGER NOT NULL DEFAULT 0,
		likes INTEGER NOT NULL DEFAULT 0
	);`

	tables := []string{articlesTable, topicsTable, rankingsTable, rankingsTopicsTable, insightsTable, socialPostsTable}
	for _, table := range tables {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertArticle stores an article unless its URL was already ingested.
// It reports whether a new row was created; a URL is ingested at most once.
func (s *Store) InsertArticle(a core.Article) (int64, bool, error) {
	res, err := s.db.Exec(`
	INSERT OR IGNORE INTO articles (title, url, published_at, content, processed, multimedia)
	VALUES (?, ?, ?, ?, 0, ?)`,
		a.Title, a.URL, a.PublishedAt, a.Content, a.Multimedia)
	if err != nil {
		return 0, false, fmt.Errorf("failed to insert article: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return 0, false, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("failed to read inserted article id: %w", err)
	}
	return id, true, nil
}

// UnprocessedArticles returns every article not yet consumed by clustering.
func (s *Store) UnprocessedArticles() ([]core.Article, error) {
	rows, err := s.db.Query(`
	SELECT id, title, url, published_at, content, processed, topic_id, multimedia
	FROM articles WHERE processed = 0 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query unprocessed articles: %w", err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

// ArticlesByTopic returns every article linked to the topic.
func (s *Store) ArticlesByTopic(topicID int64) ([]core.Article, error) {
	rows, err := s.db.Query(`
	SELECT id, title, url, published_at, content, processed, topic_id, multimedia
	FROM articles WHERE topic_id = ? ORDER BY id`, topicID)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles for topic %d: %w", topicID, err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

func scanArticles(rows *sql.Rows) ([]core.Article, error) {
	var articles []core.Article
	for rows.Next() {
		var (
			a          core.Article
			topicID    sql.NullInt64
			multimedia sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.Title, &a.URL, &a.PublishedAt, &a.Content, &a.Processed, &topicID, &multimedia); err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		a.TopicID = topicID.Int64
		a.Multimedia = multimedia.String
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// CommitClusters materializes every cluster as a topic, links its member
// articles and marks them processed, all in a single transaction. On any
// failure nothing commits, so a clustering pass can simply be retried.
// Returned topic ids follow the input cluster order.
func (s *Store) CommitClusters(clusters []Cluster) ([]int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin clustering transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	topicIDs := make([]int64, 0, len(clusters))
	for _, c := range clusters {
		res, err := tx.Exec(`INSERT INTO topics (name, created_at) VALUES (?, ?)`, c.Name, now)
		if err != nil {
			return nil, fmt.Errorf("failed to insert topic %q: %w", c.Name, err)
		}
		topicID, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("failed to read inserted topic id: %w", err)
		}
		for _, articleID := range c.ArticleIDs {
			if _, err := tx.Exec(`UPDATE articles SET topic_id = ?, processed = 1 WHERE id = ?`, topicID, articleID); err != nil {
				return nil, fmt.Errorf("failed to assign article %d to topic %d: %w", articleID, topicID, err)
			}
		}
		topicIDs = append(topicIDs, topicID)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit clustering transaction: %w", err)
	}
	return topicIDs, nil
}

// Topics returns all topics ordered by id.
func (s *Store) Topics() ([]core.Topic, error) {
	rows, err := s.db.Query(`SELECT id, name, created_at FROM topics ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query topics: %w", err)
	}
	defer rows.Close()
	return scanTopics(rows)
}

// TopicByID returns the topic, or nil if it does not exist.
func (s *Store) TopicByID(id int64) (*core.Topic, error) {
	var t core.Topic
	err := s.db.QueryRow(`SELECT id, name, created_at FROM topics WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query topic %d: %w", id, err)
	}
	return &t, nil
}

func scanTopics(rows *sql.Rows) ([]core.Topic, error) {
	var topics []core.Topic
	for rows.Next() {
		var t core.Topic
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan topic: %w", err)
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

// CreateRanking persists a new ranking whose entries are the given topic ids
// in rank order, positions 1..N. The ranking row and all entries commit
// together or not at all.
func (s *Store) CreateRanking(topicIDs []int64) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin ranking transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO rankings (created_at) VALUES (?)`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to insert ranking: %w", err)
	}
	rankingID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted ranking id: %w", err)
	}

	for i, topicID := range topicIDs {
		if _, err := tx.Exec(`
		INSERT INTO rankings_topics (ranking_id, topic_id, position) VALUES (?, ?, ?)`,
			rankingID, topicID, i+1); err != nil {
			return 0, fmt.Errorf("failed to insert rank entry %d for topic %d: %w", i+1, topicID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit ranking transaction: %w", err)
	}
	return rankingID, nil
}

// LatestRanking returns the most recently created ranking, or nil if no
// ranking exists yet.
func (s *Store) LatestRanking() (*core.Ranking, error) {
	var r core.Ranking
	err := s.db.QueryRow(`SELECT id, created_at FROM rankings ORDER BY created_at DESC, id DESC LIMIT 1`).
		Scan(&r.ID, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest ranking: %w", err)
	}
	return &r, nil
}

// RankingEntries returns the entries of a ranking ordered by position.
func (s *Store) RankingEntries(rankingID int64) ([]core.RankEntry, error) {
	rows, err := s.db.Query(`
	SELECT ranking_id, topic_id, position FROM rankings_topics
	WHERE ranking_id = ? ORDER BY position`, rankingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rank entries for ranking %d: %w", rankingID, err)
	}
	defer rows.Close()

	var entries []core.RankEntry
	for rows.Next() {
		var e core.RankEntry
		if err := rows.Scan(&e.RankingID, &e.TopicID, &e.Position); err != nil {
			return nil, fmt.Errorf("failed to scan rank entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RankedTopics returns the topics of a ranking ordered by position.
func (s *Store) RankedTopics(rankingID int64) ([]core.Topic, error) {
	rows, err := s.db.Query(`
	SELECT t.id, t.name, t.created_at
	FROM rankings_topics rt JOIN topics t ON t.id = rt.topic_id
	WHERE rt.ranking_id = ? ORDER BY rt.position`, rankingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ranked topics for ranking %d: %w", rankingID, err)
	}
	defer rows.Close()
	return scanTopics(rows)
}

// SaveInsight stores a new insight for a topic.
func (s *Store) SaveInsight(topicID int64, insightType core.InsightType, content string) (int64, error) {
	res, err := s.db.Exec(`INSERT INTO insights (topic_id, content, insight_type) VALUES (?, ?, ?)`,
		topicID, content, string(insightType))
	if err != nil {
		return 0, fmt.Errorf("failed to insert insight for topic %d: %w", topicID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted insight id: %w", err)
	}
	return id, nil
}

// InsightsByTopic returns all insights for the topic in creation order.
func (s *Store) InsightsByTopic(topicID int64) ([]core.Insight, error) {
	rows, err := s.db.Query(`
	SELECT id, topic_id, content, insight_type FROM insights
	WHERE topic_id = ? ORDER BY id`, topicID)
	if err != nil {
		return nil, fmt.Errorf("failed to query insights for topic %d: %w", topicID, err)
	}
	defer rows.Close()

	var insights []core.Insight
	for rows.Next() {
		var in core.Insight
		var typ string
		if err := rows.Scan(&in.ID, &in.TopicID, &in.Content, &typ); err != nil {
			return nil, fmt.Errorf("failed to scan insight: %w", err)
		}
		in.Type = core.InsightType(typ)
		insights = append(insights, in)
	}
	return insights, rows.Err()
}

// LatestInsightByType returns the most recent insight of the given type for
// the topic, or nil if none exists.
func (s *Store) LatestInsightByType(topicID int64, insightType core.InsightType) (*core.Insight, error) {
	var in core.Insight
	var typ string
	err := s.db.QueryRow(`
	SELECT id, topic_id, content, insight_type FROM insights
	WHERE topic_id = ? AND insight_type = ? ORDER BY id DESC LIMIT 1`,
		topicID, string(insightType)).
		Scan(&in.ID, &in.TopicID, &in.Content, &typ)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest %s insight for topic %d: %w", insightType, topicID, err)
	}
	in.Type = core.InsightType(typ)
	return &in, nil
}

// InsertSocialPost stores a social post collected for a topic.
func (s *Store) InsertSocialPost(p core.SocialPost) (int64, error) {
	res, err := s.db.Exec(`
	INSERT INTO social_posts (topic_id, content, created_at, views, likes)
	VALUES (?, ?, ?, ?, ?)`,
		p.TopicID, p.Content, p.CreatedAt, p.Views, p.Likes)
	if err != nil {
		return 0, fmt.Errorf("failed to insert social post for topic %d: %w", p.TopicID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted social post id: %w", err)
	}
	return id, nil
}

// SocialPostsByTopic returns all social posts for the topic.
func (s *Store) SocialPostsByTopic(topicID int64) ([]core.SocialPost, error) {
	rows, err := s.db.Query(`
	SELECT id, topic_id, content, created_at, views, likes FROM social_posts
	WHERE topic_id = ? ORDER BY id`, topicID)
	if err != nil {
		return nil, fmt.Errorf("failed to query social posts for topic %d: %w", topicID, err)
	}
	defer rows.Close()

	var posts []core.SocialPost
	for rows.Next() {
		var p core.SocialPost
		if err := rows.Scan(&p.ID, &p.TopicID, &p.Content, &p.CreatedAt, &p.Views, &p.Likes); err != nil {
			return nil, fmt.Errorf("failed to scan social post: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// TopicIDsWithArticles returns up to limit topic ids that own at least one
// article, ordered by id.
func (s *Store) TopicIDsWithArticles(limit int) ([]int64, error) {
	rows, err := s.db.Query(`
	SELECT DISTINCT topic_id FROM articles
	WHERE topic_id IS NOT NULL ORDER BY topic_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query topics with articles: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan topic id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
