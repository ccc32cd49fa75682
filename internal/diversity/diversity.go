// Package diversity quantifies how varied a topic's source articles are,
// producing a 0-100 score from domain spread and content-length dispersion.
package diversity

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"sort"

	"newspulse/internal/core"
	"newspulse/internal/logger"
	"newspulse/internal/metrics"
	"newspulse/internal/store"
)

// Component weights and the domain count at which the normalized domain
// term reaches 1 (1 domain -> 0, 10+ domains -> 1).
const (
	weightDomainCount  = 0.6
	weightDistribution = 0.3
	weightContent      = 0.1
	domainCountCeiling = 10

	// batch fallback size when no ranked topic has articles
	fallbackTopicLimit = 10
)

// Metrics is the per-component breakdown behind a diversity score.
type Metrics struct {
	DomainCount        int     `json:"domain_count"`        // Unique source domains
	TotalArticles      int     `json:"total_articles"`      // Articles with a parseable domain
	DomainDistribution float64 `json:"domain_distribution"` // Evenness of articles across domains
	ContentDiversity   float64 `json:"content_diversity"`   // Content-length dispersion, capped at 1
}

// DomainCount is one domain and how many of the topic's articles it supplied.
type DomainCount struct {
	Domain string `json:"domain"`
	Count  int    `json:"count"`
}

// Report is the full diversity result, persisted verbatim as a
// source_diversity insight and returned to the caller.
type Report struct {
	Score   int           `json:"score"`
	Metrics Metrics       `json:"metrics"`
	Domains []DomainCount `json:"domains"`
}

// Scorer computes and persists source diversity for topics.
type Scorer struct {
	store *store.Store
}

// NewScorer creates a diversity scorer over the store.
func NewScorer(s *store.Store) *Scorer {
	return &Scorer{store: s}
}

// Score computes the diversity report for a topic, persists it as a
// source_diversity insight and returns it. A topic with no articles or no
// parseable domains yields (nil, nil): "no data" is a normal empty state,
// not an error.
func (sc *Scorer) Score(topicID int64) (*Report, error) {
	articles, err := sc.store.ArticlesByTopic(topicID)
	if err != nil {
		return nil, fmt.Errorf("failed to load articles for topic %d: %w", topicID, err)
	}
	if len(articles) == 0 {
		logger.Info("no articles found for topic, skipping diversity analysis", "topic_id", topicID)
		return nil, nil
	}

	report := Compute(articles)
	if report == nil {
		return nil, nil
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to encode diversity report for topic %d: %w", topicID, err)
	}
	if _, err := sc.store.SaveInsight(topicID, core.InsightSourceDiversity, string(payload)); err != nil {
		return nil, fmt.Errorf("failed to save diversity insight for topic %d: %w", topicID, err)
	}

	metrics.InsightsGenerated.WithLabelValues(string(core.InsightSourceDiversity)).Inc()
	logger.Info("saved source diversity score", "topic_id", topicID, "score", report.Score)
	return report, nil
}

// Compute derives the diversity report from a topic's articles, or nil if
// no article has a parseable source domain.
func Compute(articles []core.Article) *Report {
	domainCounts := make(map[string]int)
	var contentLengths []float64
	for _, a := range articles {
		if u, err := url.Parse(a.URL); err == nil && u.Host != "" {
			domainCounts[u.Host]++
		}
		if a.Content != "" {
			contentLengths = append(contentLengths, float64(len(a.Content)))
		}
	}
	if len(domainCounts) == 0 {
		return nil
	}

	totalArticles := 0
	maxCount, minCount := 0, math.MaxInt
	domains := make([]DomainCount, 0, len(domainCounts))
	for domain, count := range domainCounts {
		totalArticles += count
		if count > maxCount {
			maxCount = count
		}
		if count < minCount {
			minCount = count
		}
		domains = append(domains, DomainCount{Domain: domain, Count: count})
	}
	sort.Slice(domains, func(i, j int) bool {
		if domains[i].Count != domains[j].Count {
			return domains[i].Count > domains[j].Count
		}
		return domains[i].Domain < domains[j].Domain
	})

	// Evenness of the distribution: 0 with a single domain, 1 when every
	// domain contributed equally.
	distribution := 0.0
	if len(domainCounts) > 1 {
		distribution = 1 - float64(maxCount-minCount)/float64(maxCount+minCount)
	}

	// Content-length dispersion: population std dev over mean, capped at 1.
	contentDiversity := 0.0
	if len(contentLengths) > 1 {
		var sum float64
		for _, l := range contentLengths {
			sum += l
		}
		mean := sum / float64(len(contentLengths))
		var variance float64
		for _, l := range contentLengths {
			variance += (l - mean) * (l - mean)
		}
		stdDev := math.Sqrt(variance / float64(len(contentLengths)))
		contentDiversity = math.Min(1, stdDev/mean)
	}

	// 1 domain -> 0, domainCountCeiling or more -> 1, linear in between.
	normalizedDomainCount := math.Min(1, math.Max(0, float64(len(domainCounts)-1)/float64(domainCountCeiling-1)))

	score := int(math.Round((normalizedDomainCount*weightDomainCount +
		distribution*weightDistribution +
		contentDiversity*weightContent) * 100))
	if score < 0 {
		score = 0
	} else if score > 100 {
		score = 100
	}

	return &Report{
		Score: score,
		Metrics: Metrics{
			DomainCount:        len(domainCounts),
			TotalArticles:      totalArticles,
			DomainDistribution: distribution,
			ContentDiversity:   contentDiversity,
		},
		Domains: domains,
	}
}

// ScoreRanked recomputes diversity for every topic in the latest ranking, in
// rank order. If none of the ranked topics produced a report, it falls back
// to the first topics that own articles, guarding against an empty initial
// ranking. It returns the number of reports produced.
func (sc *Scorer) ScoreRanked() (int, error) {
	latest, err := sc.store.LatestRanking()
	if err != nil {
		return 0, fmt.Errorf("failed to load latest ranking: %w", err)
	}
	if latest == nil {
		logger.Info("no rankings found, skipping diversity score calculation")
		return 0, nil
	}

	entries, err := sc.store.RankingEntries(latest.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to load entries for ranking %d: %w", latest.ID, err)
	}
	logger.Info("calculating diversity scores for ranked topics", "ranking_id", latest.ID, "topics", len(entries))

	calculated := 0
	for _, entry := range entries {
		report, err := sc.Score(entry.TopicID)
		if err != nil {
			logger.Error("diversity calculation failed", err, "topic_id", entry.TopicID)
			continue
		}
		if report != nil {
			calculated++
		}
	}

	if calculated == 0 {
		logger.Info("no ranked topics had articles, falling back to topics with articles")
		topicIDs, err := sc.store.TopicIDsWithArticles(fallbackTopicLimit)
		if err != nil {
			return 0, fmt.Errorf("failed to find topics with articles: %w", err)
		}
		for _, topicID := range topicIDs {
			report, err := sc.Score(topicID)
			if err != nil {
				logger.Error("diversity calculation failed", err, "topic_id", topicID)
				continue
			}
			if report != nil {
				calculated++
			}
		}
	}

	logger.Info("diversity scores calculated", "count", calculated)
	return calculated, nil
}
