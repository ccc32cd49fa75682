package handlers

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"newspulse/internal/bus"
	"newspulse/internal/cluster"
	"newspulse/internal/diversity"
	"newspulse/internal/feeds"
	"newspulse/internal/insights"
	"newspulse/internal/logger"
	"newspulse/internal/rank"
	"newspulse/internal/server"
	"newspulse/internal/social"
)

// NewRunCmd creates the full-pipeline command.
func NewRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline: ingestion, clustering, ranking, insights and the read API",
		Long: `Start every pipeline stage and the read API, connected through the
in-process message bus. Stops cleanly on SIGINT or SIGTERM.`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := runPipeline(); err != nil {
				logger.Error("Pipeline failed", err)
				os.Exit(1)
			}
		},
	}
}

func runPipeline() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	generator, client, err := newGenerator(ctx, cfg)
	if err != nil {
		return err
	}

	b := bus.New()

	coordinator := cluster.NewCoordinator(s, client,
		cluster.NewDBSCANGrouper(cfg.Cluster.Epsilon, cfg.Cluster.MinPoints), b)
	engine := rank.NewEngine(s, b, cfg.Ranking.TopK, cfg.Ranking.Interval)
	scorer := diversity.NewScorer(s)
	orchestrator := insights.NewOrchestrator(s, generator, scorer, insights.NewGeminiLocations(generator))
	ingester := social.NewIngester(s,
		social.NewBskyClient(cfg.Social.Endpoint, cfg.Social.Timeout), cfg.Social.Limit)
	fetcher := feeds.NewFetcher(s, cfg.Feeds.URLs, cfg.Feeds.Timeout)
	api := server.New(s, cfg.Server.Host, cfg.Server.Port)

	rankingForInsights := b.Subscribe(bus.RankingCreated, "insights")
	rankingForSocial := b.Subscribe(bus.RankingCreated, "social")
	topicsForRanking := b.Subscribe(bus.TopicsGenerated, "ranking")
	topicsForInsights := b.Subscribe(bus.TopicsGenerated, "insights")

	var wg sync.WaitGroup
	start := func(f func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f()
		}()
	}

	start(func() { ingestAndCluster(ctx, fetcher, coordinator, cfg.Feeds.Interval) })
	start(func() { engine.RunSubscriber(ctx, topicsForRanking) })
	start(func() { engine.RunTimer(ctx) })
	start(func() { orchestrator.Run(ctx, rankingForInsights) })
	start(func() { orchestrator.DrainTopicsGenerated(ctx, topicsForInsights) })
	start(func() { ingester.Run(ctx, rankingForSocial) })

	logger.Info("pipeline started")
	err = api.Run(ctx)

	stop()
	wg.Wait()
	b.Close()
	logger.Info("pipeline stopped")
	return err
}

// ingestAndCluster pulls the feeds and then runs a clustering pass, on a
// fixed interval. Clustering right after ingestion keeps unprocessed
// articles from accumulating between passes.
func ingestAndCluster(ctx context.Context, fetcher *feeds.Fetcher, coordinator *cluster.Coordinator, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := fetcher.FetchAll(ctx); err != nil {
			return
		}
		if err := coordinator.Run(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("clustering pass failed", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
