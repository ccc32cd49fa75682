// Package rank scores topics by importance and persists ordered rankings.
package rank

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"sort"
	"sync"
	"time"

	"newspulse/internal/bus"
	"newspulse/internal/core"
	"newspulse/internal/logger"
	"newspulse/internal/metrics"
	"newspulse/internal/store"
)

// Scoring constants. The weights deliberately do not sum to 1.
const (
	DecayHours = 24.0
	WRecency   = 0.6
	WVolume    = 0.4
	WDiversity = 0.2

	// distinct source domains at which the diversity term saturates
	diversityCap = 3
)

// Engine builds rankings. Two drivers invoke it concurrently (the
// topics-generated subscriber and the periodic timer); a mutex serializes
// ranking builds so two triggers cannot interleave one ranking's writes.
type Engine struct {
	store    *store.Store
	bus      *bus.Bus
	topK     int
	interval time.Duration

	mu  sync.Mutex
	now func() time.Time
}

// NewEngine wires a ranking engine ranking the top topK topics every
// interval and on every topics-generated event.
func NewEngine(s *store.Store, b *bus.Bus, topK int, interval time.Duration) *Engine {
	return &Engine{store: s, bus: b, topK: topK, interval: interval, now: time.Now}
}

// scored pairs a topic with its computed score for sorting.
type scored struct {
	topicID int64
	score   float64
}

// CreateRanking scores every known topic against a single "now" instant,
// persists the top-K ordering transactionally and publishes ranking-created.
// It returns the new ranking id. On persistence failure no partial ranking
// is left visible and no event is published.
func (e *Engine) CreateRanking(ctx context.Context) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	topics, err := e.store.Topics()
	if err != nil {
		return 0, fmt.Errorf("failed to load topics: %w", err)
	}
	if len(topics) == 0 {
		logger.Info("no topics to rank")
		return 0, nil
	}

	// One shared instant keeps recency comparable across all topics.
	now := e.now().UTC()

	candidates := make([]scored, 0, len(topics))
	for _, topic := range topics {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		articles, err := e.store.ArticlesByTopic(topic.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to load articles for topic %d: %w", topic.ID, err)
		}
		candidates = append(candidates, scored{topicID: topic.ID, score: Score(articles, now)})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].topicID < candidates[j].topicID
	})
	if len(candidates) > e.topK {
		candidates = candidates[:e.topK]
	}

	topicIDs := make([]int64, len(candidates))
	for i, c := range candidates {
		topicIDs[i] = c.topicID
	}

	rankingID, err := e.store.CreateRanking(topicIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to persist ranking: %w", err)
	}

	metrics.RankingsCreated.Inc()
	logger.Info("ranking created", "ranking_id", rankingID, "topics", len(topicIDs))
	e.bus.Publish(bus.RankingCreated, core.RankingCreated{RankingID: rankingID})
	return rankingID, nil
}

// Score computes the composite importance score of a topic from its member
// articles, evaluated at the shared instant now:
//
//	recency(a)  = exp(-age_hours(a) / DecayHours)
//	avg_recency = mean over articles, 0 if none
//	volume      = ln(1 + article count)
//	diversity   = min(1, distinct source domains / diversityCap)
//	score       = WRecency*avg_recency + WVolume*volume + WDiversity*diversity
func Score(articles []core.Article, now time.Time) float64 {
	var avgRecency float64
	if len(articles) > 0 {
		var sum float64
		for _, a := range articles {
			ageHours := now.Sub(a.PublishedAt).Hours()
			sum += math.Exp(-ageHours / DecayHours)
		}
		avgRecency = sum / float64(len(articles))
	}

	volume := math.Log(1 + float64(len(articles)))

	domains := make(map[string]struct{})
	for _, a := range articles {
		if d := sourceDomain(a.URL); d != "" {
			domains[d] = struct{}{}
		}
	}
	diversity := math.Min(1, float64(len(domains))/diversityCap)

	return WRecency*avgRecency + WVolume*volume + WDiversity*diversity
}

func sourceDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// RunSubscriber consumes topics-generated events, re-ranking all known
// topics on each so new topics immediately contend for top-K placement.
func (e *Engine) RunSubscriber(ctx context.Context, sub *bus.Subscription) {
	logger.Info("ranking subscriber started")
	for {
		msg, err := sub.Receive(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, bus.ErrClosed) {
				logger.Error("ranking subscriber receive failed", err)
			}
			return
		}
		payload, ok := msg.Payload.(core.TopicsGenerated)
		if !ok {
			logger.Warn("unexpected payload on topics-generated", "message_id", msg.ID)
			continue
		}
		logger.Info("ranking triggered by new topics", "new_topics", len(payload.TopicIDs), "message_id", msg.ID)
		if _, err := e.CreateRanking(ctx); err != nil {
			logger.Error("event-triggered ranking failed", err)
		}
	}
}

// RunTimer re-ranks all topics on a fixed interval.
func (e *Engine) RunTimer(ctx context.Context) {
	logger.Info("ranking timer started", "interval", e.interval.String())
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.CreateRanking(ctx); err != nil {
				logger.Error("periodic ranking failed", err)
			}
		}
	}
}
