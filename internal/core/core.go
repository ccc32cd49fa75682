package core

import "time"

// Article represents a single news article pulled in by ingestion.
type Article struct {
	ID          int64     `json:"id"`           // Unique identifier for the article
	Title       string    `json:"title"`        // Title of the article
	URL         string    `json:"url"`          // Canonical URL (unique per article)
	PublishedAt time.Time `json:"published_at"` // Publication timestamp
	Content     string    `json:"content"`      // Raw text content
	Processed   bool      `json:"processed"`    // Whether clustering has consumed this article
	TopicID     int64     `json:"topic_id"`     // Owning topic, 0 while unassigned
	Multimedia  string    `json:"multimedia"`   // Optional multimedia reference (can be empty)
}

// Topic is a cluster of semantically related articles.
type Topic struct {
	ID        int64     `json:"id"`         // Unique identifier for the topic
	Name      string    `json:"name"`       // Display name derived from member article titles
	CreatedAt time.Time `json:"created_at"` // When the topic was materialized
}

// Ranking is an ordered snapshot of the top topics at a point in time.
type Ranking struct {
	ID        int64     `json:"id"`         // Unique identifier for the ranking
	CreatedAt time.Time `json:"created_at"` // When the ranking was created
}

// RankEntry ties a topic to its position inside one ranking.
// Positions start at 1 and form a gapless permutation within the ranking.
type RankEntry struct {
	RankingID int64 `json:"ranking_id"` // Owning ranking
	TopicID   int64 `json:"topic_id"`   // Ranked topic
	Position  int   `json:"position"`   // 1-based rank position
}

// InsightType tags the kind of derived analysis stored in an Insight.
type InsightType string

const (
	InsightSummary            InsightType = "summary"
	InsightPersonal           InsightType = "personal"
	InsightBackground         InsightType = "background"
	InsightMultimedia         InsightType = "multimedia"
	InsightMultimediaLocation InsightType = "multimedia_location"
	InsightSentiment          InsightType = "sentiment"
	InsightSourceDiversity    InsightType = "source_diversity"
)

// Insight is a derived, typed piece of analysis attached to a topic.
// For sentiment and source_diversity the content is a JSON document; the most
// recently created insight of a type is authoritative for readers.
type Insight struct {
	ID      int64       `json:"id"`       // Unique identifier for the insight
	TopicID int64       `json:"topic_id"` // Owning topic
	Content string      `json:"content"`  // Free text or JSON payload
	Type    InsightType `json:"type"`     // Insight type tag
}

// SocialPost is a social media post collected for a topic.
type SocialPost struct {
	ID        int64     `json:"id"`         // Unique identifier for the post
	TopicID   int64     `json:"topic_id"`   // Owning topic
	Content   string    `json:"content"`    // Post text
	CreatedAt time.Time `json:"created_at"` // When the post was published
	Views     int64     `json:"views"`      // View count reported by the source
	Likes     int64     `json:"likes"`      // Like count reported by the source
}

// TopicsGenerated is the payload published on the topics-generated channel.
type TopicsGenerated struct {
	TopicIDs []int64 `json:"topic_ids"` // Identifiers of the newly created topics
}

// RankingCreated is the payload published on the ranking-created channel.
type RankingCreated struct {
	RankingID int64 `json:"ranking_id"` // Identifier of the new ranking
}
