// Package cluster converts batches of unprocessed articles into topics.
package cluster

import (
	"context"
	"fmt"
	"strings"

	"newspulse/internal/bus"
	"newspulse/internal/core"
	"newspulse/internal/llm"
	"newspulse/internal/logger"
	"newspulse/internal/metrics"
	"newspulse/internal/store"
)

// maxTitlesInName bounds how many member titles make up a topic name.
const maxTitlesInName = 3

// Coordinator embeds unprocessed articles, groups them in embedding space
// and materializes one topic per detected cluster.
//
// Unassigned (noise) articles stay unprocessed and are retried on the next
// run; they are never silently dropped and never forced into singleton
// topics.
type Coordinator struct {
	store    *store.Store
	embedder llm.Embedder
	grouper  Grouper
	bus      *bus.Bus
}

// NewCoordinator wires the clustering coordinator.
func NewCoordinator(s *store.Store, embedder llm.Embedder, grouper Grouper, b *bus.Bus) *Coordinator {
	return &Coordinator{store: s, embedder: embedder, grouper: grouper, bus: b}
}

// Run processes all currently unprocessed articles. A failure in the
// embedding or grouping collaborator, or in persistence, aborts the run
// before anything commits, so the whole pass is safe to retry.
//
// When at least one topic was created, a topics-generated event carrying the
// new topic ids is published; otherwise no event goes out.
func (c *Coordinator) Run(ctx context.Context) error {
	articles, err := c.store.UnprocessedArticles()
	if err != nil {
		return fmt.Errorf("failed to load unprocessed articles: %w", err)
	}
	if len(articles) == 0 {
		logger.Info("no unprocessed articles found")
		return nil
	}

	titles := make([]string, len(articles))
	for i, a := range articles {
		titles[i] = a.Title
	}

	vectors, err := c.embedder.Embed(ctx, titles)
	if err != nil {
		return fmt.Errorf("embedding collaborator failed, aborting clustering pass: %w", err)
	}
	if len(vectors) != len(articles) {
		return fmt.Errorf("embedding collaborator returned %d vectors for %d articles", len(vectors), len(articles))
	}

	labels, err := c.grouper.Group(vectors)
	if err != nil {
		return fmt.Errorf("grouping collaborator failed, aborting clustering pass: %w", err)
	}

	clusters, noise := buildClusters(articles, labels)
	if len(clusters) == 0 {
		logger.Info("no clusters detected", "articles", len(articles), "noise", noise)
		return nil
	}

	topicIDs, err := c.store.CommitClusters(clusters)
	if err != nil {
		return fmt.Errorf("failed to commit clustering pass: %w", err)
	}

	metrics.TopicsCreated.Add(float64(len(topicIDs)))
	logger.Info("topics generated", "topics", len(topicIDs), "articles", len(articles), "noise", noise)
	c.bus.Publish(bus.TopicsGenerated, core.TopicsGenerated{TopicIDs: topicIDs})
	return nil
}

// buildClusters groups articles by label in order of first label occurrence
// and derives each topic name from its first member titles. It returns the
// clusters and the number of noise articles left for the next pass.
func buildClusters(articles []core.Article, labels []int) ([]store.Cluster, int) {
	byLabel := make(map[int]int) // label -> index into clusters
	var clusters []store.Cluster
	names := make(map[int][]string)
	noise := 0

	for i, label := range labels {
		if label == Noise {
			noise++
			continue
		}
		idx, seen := byLabel[label]
		if !seen {
			idx = len(clusters)
			byLabel[label] = idx
			clusters = append(clusters, store.Cluster{})
		}
		clusters[idx].ArticleIDs = append(clusters[idx].ArticleIDs, articles[i].ID)
		if len(names[label]) < maxTitlesInName {
			names[label] = append(names[label], articles[i].Title)
		}
	}

	for label, idx := range byLabel {
		clusters[idx].Name = strings.Join(names[label], " & ")
	}
	return clusters, noise
}
