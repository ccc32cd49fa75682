package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline metrics
	ArticlesIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "newspulse_articles_ingested_total",
			Help: "Total number of articles ingested from feeds",
		},
	)

	TopicsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "newspulse_topics_created_total",
			Help: "Total number of topics created by clustering",
		},
	)

	RankingsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "newspulse_rankings_created_total",
			Help: "Total number of rankings created",
		},
	)

	InsightsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newspulse_insights_generated_total",
			Help: "Total number of insights generated",
		},
		[]string{"type"},
	)

	SocialPostsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "newspulse_social_posts_ingested_total",
			Help: "Total number of social posts ingested",
		},
	)

	// Generation endpoint metrics
	LLMCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newspulse_llm_calls_total",
			Help: "Total number of generation endpoint calls",
		},
		[]string{"status"},
	)

	LLMRateLimitSleeps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "newspulse_llm_rate_limit_sleeps_total",
			Help: "Total number of sleeps enforced by the local rate limiter",
		},
	)

	// Message bus metrics
	BusMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newspulse_bus_messages_published_total",
			Help: "Total number of messages published to the bus",
		},
		[]string{"channel"},
	)

	BusQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "newspulse_bus_queue_depth",
			Help: "Current number of undelivered messages per subscriber queue",
		},
		[]string{"channel", "subscriber"},
	)
)
