// Package insights runs the multi-step generation workflow for each ranked
// topic: summary, personal impact, background, multimedia hints, sentiment
// and source diversity. Every step is independently fault-tolerant.
package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"newspulse/internal/bus"
	"newspulse/internal/core"
	"newspulse/internal/diversity"
	"newspulse/internal/llm"
	"newspulse/internal/logger"
	"newspulse/internal/metrics"
	"newspulse/internal/store"
)

// LocationExtractor pulls location mentions out of article text. It is an
// external natural-language collaborator.
type LocationExtractor interface {
	ExtractLocations(ctx context.Context, text string) ([]string, error)
}

// Orchestrator consumes ranking-created events and generates insights for
// every ranked topic in rank order.
type Orchestrator struct {
	store     *store.Store
	gen       llm.Generator
	scorer    *diversity.Scorer
	locations LocationExtractor
	rng       *rand.Rand
}

// NewOrchestrator wires the insight orchestrator. gen is expected to be the
// rate-limited generation client.
func NewOrchestrator(s *store.Store, gen llm.Generator, scorer *diversity.Scorer, locations LocationExtractor) *Orchestrator {
	return &Orchestrator{
		store:     s,
		gen:       gen,
		scorer:    scorer,
		locations: locations,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run is the subscriber loop on ranking-created. It returns when the
// context is cancelled or the bus is closed.
func (o *Orchestrator) Run(ctx context.Context, sub *bus.Subscription) {
	logger.Info("insights orchestrator started")
	for {
		msg, err := sub.Receive(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, bus.ErrClosed) {
				logger.Error("insights subscriber receive failed", err)
			}
			return
		}
		payload, ok := msg.Payload.(core.RankingCreated)
		if !ok {
			logger.Warn("unexpected payload on ranking-created", "message_id", msg.ID)
			continue
		}
		if err := o.ProcessRanking(ctx, payload.RankingID); err != nil {
			logger.Error("insight run failed", err, "ranking_id", payload.RankingID)
		}
	}
}

// DrainTopicsGenerated discards topics-generated events. The orchestrator
// is driven by ranking-created only; this keeps its other queue from
// growing without bound.
func (o *Orchestrator) DrainTopicsGenerated(ctx context.Context, sub *bus.Subscription) {
	for {
		if _, err := sub.Receive(ctx); err != nil {
			return
		}
	}
}

// ProcessRanking generates insights for every topic of the ranking in rank
// order. A failure while processing one topic is logged and processing
// continues with the next; only an unrecoverable infrastructure error (the
// ranking itself cannot be read) aborts the run.
func (o *Orchestrator) ProcessRanking(ctx context.Context, rankingID int64) error {
	topics, err := o.store.RankedTopics(rankingID)
	if err != nil {
		return fmt.Errorf("failed to load ranked topics for ranking %d: %w", rankingID, err)
	}

	for _, topic := range topics {
		if err := ctx.Err(); err != nil {
			return err
		}
		o.processTopic(ctx, topic)
	}
	logger.Info("insight generation complete", "ranking_id", rankingID, "topics", len(topics))
	return nil
}

// processTopic runs the generation steps for one topic. Later steps run
// even when an earlier one fails; a panic is contained to the topic.
func (o *Orchestrator) processTopic(ctx context.Context, topic core.Topic) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("insight generation panicked for topic", fmt.Errorf("%v", r), "topic_id", topic.ID)
		}
	}()

	articles, err := o.store.ArticlesByTopic(topic.ID)
	if err != nil {
		logger.Error("failed to load topic articles", err, "topic_id", topic.ID)
		return
	}
	body := articleBodies(articles)

	o.generateAndStore(ctx, topic.ID, core.InsightSummary,
		fmt.Sprintf("Summarize the following news coverage of the topic %q concisely:\n\n%s", topic.Name, body))

	o.generateAndStore(ctx, topic.ID, core.InsightPersonal,
		fmt.Sprintf("Based on the following news coverage of %q, explain how an average reader is affected:\n\n%s", topic.Name, body))

	o.generateAndStore(ctx, topic.ID, core.InsightBackground,
		fmt.Sprintf("Provide the contextual background a reader needs to understand the topic %q:\n\n%s", topic.Name, body))

	o.extractMultimedia(ctx, topic, articles)
	o.generateSentiment(ctx, topic)

	if _, err := o.scorer.Score(topic.ID); err != nil {
		logger.Error("diversity scoring failed", err, "topic_id", topic.ID)
	}
}

// generateAndStore calls the generation endpoint and persists the output as
// an insight. Empty or failed output is logged and skipped, never fatal.
func (o *Orchestrator) generateAndStore(ctx context.Context, topicID int64, insightType core.InsightType, prompt string) {
	out, err := o.gen.Generate(ctx, prompt)
	if err != nil {
		logger.Warn("generation step skipped", "topic_id", topicID, "type", string(insightType), "reason", err.Error())
		return
	}
	out = strings.TrimSpace(out)
	if out == "" {
		logger.Warn("generation step produced no content", "topic_id", topicID, "type", string(insightType))
		return
	}
	if _, err := o.store.SaveInsight(topicID, insightType, out); err != nil {
		logger.Error("failed to save insight", err, "topic_id", topicID, "type", string(insightType))
		return
	}
	metrics.InsightsGenerated.WithLabelValues(string(insightType)).Inc()
	logger.Info("insight generated", "topic_id", topicID, "type", string(insightType))
}

// extractMultimedia writes at most one multimedia_location insight (first
// article with extractable locations) and at most one multimedia insight
// (first article carrying a multimedia reference), then stops.
func (o *Orchestrator) extractMultimedia(ctx context.Context, topic core.Topic, articles []core.Article) {
	locationDone := false
	for _, a := range articles {
		if locationDone {
			break
		}
		locs, err := o.locations.ExtractLocations(ctx, a.Content)
		if err != nil {
			logger.Warn("location extraction failed", "topic_id", topic.ID, "article_id", a.ID, "reason", err.Error())
			continue
		}
		if len(locs) == 0 {
			continue
		}
		if _, err := o.store.SaveInsight(topic.ID, core.InsightMultimediaLocation, locs[0]); err != nil {
			logger.Error("failed to save location insight", err, "topic_id", topic.ID)
		} else {
			metrics.InsightsGenerated.WithLabelValues(string(core.InsightMultimediaLocation)).Inc()
		}
		locationDone = true
	}

	for _, a := range articles {
		if a.Multimedia == "" {
			continue
		}
		if _, err := o.store.SaveInsight(topic.ID, core.InsightMultimedia, a.Multimedia); err != nil {
			logger.Error("failed to save multimedia insight", err, "topic_id", topic.ID)
		} else {
			metrics.InsightsGenerated.WithLabelValues(string(core.InsightMultimedia)).Inc()
		}
		break // at most one multimedia insight per topic per run
	}
}

// generateSentiment asks the model for a sentiment/emotion percentage
// breakdown across the topic's social posts and persists it. With no posts
// the step is skipped. Any failure falls back to locally synthesized data,
// which never fails.
func (o *Orchestrator) generateSentiment(ctx context.Context, topic core.Topic) {
	posts, err := o.store.SocialPostsByTopic(topic.ID)
	if err != nil {
		logger.Error("failed to load social posts", err, "topic_id", topic.ID)
		return
	}
	if len(posts) == 0 {
		logger.Info("no social posts for topic, skipping sentiment", "topic_id", topic.ID)
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Analyze the sentiment of the following social media posts about %q.\n", topic.Name)
	sb.WriteString("Respond with a JSON object of the form ")
	sb.WriteString(`{"sentiments": {"Positive": 0-100, "Negative": 0-100, "Neutral": 0-100}, "emotions": {"Joy": 0-100, "Anger": 0-100, "Sadness": 0-100, "Fear": 0-100, "Surprise": 0-100}}`)
	sb.WriteString(" where each group's percentages sum to 100.\n\nPosts:\n")
	for _, p := range posts {
		sb.WriteString("- ")
		sb.WriteString(p.Content)
		sb.WriteString("\n")
	}

	breakdown := o.sentimentFromModel(ctx, topic.ID, sb.String())

	payload, err := json.Marshal(breakdown)
	if err != nil {
		logger.Error("failed to encode sentiment payload", err, "topic_id", topic.ID)
		return
	}
	if _, err := o.store.SaveInsight(topic.ID, core.InsightSentiment, string(payload)); err != nil {
		logger.Error("failed to save sentiment insight", err, "topic_id", topic.ID)
		return
	}
	metrics.InsightsGenerated.WithLabelValues(string(core.InsightSentiment)).Inc()
	logger.Info("sentiment insight generated", "topic_id", topic.ID, "posts", len(posts))
}

func (o *Orchestrator) sentimentFromModel(ctx context.Context, topicID int64, prompt string) *SentimentBreakdown {
	out, err := o.gen.Generate(ctx, prompt)
	if err != nil {
		logger.Warn("sentiment generation failed, using fallback", "topic_id", topicID, "reason", err.Error())
		return synthesizeSentiment(o.rng)
	}
	breakdown, err := parseSentiment(out)
	if err != nil {
		logger.Warn("sentiment output unusable, using fallback", "topic_id", topicID, "reason", err.Error())
		return synthesizeSentiment(o.rng)
	}
	return breakdown
}

func articleBodies(articles []core.Article) string {
	parts := make([]string, 0, len(articles))
	for _, a := range articles {
		if a.Content != "" {
			parts = append(parts, a.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}
