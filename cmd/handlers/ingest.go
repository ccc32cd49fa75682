package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"newspulse/internal/feeds"
	"newspulse/internal/logger"
)

// NewIngestCmd creates the one-shot feed ingestion command.
func NewIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Pull all configured RSS feeds once",
		Long:  `Fetch every configured feed, store new articles and exit. Articles already ingested (same URL) are skipped.`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := runIngest(); err != nil {
				logger.Error("Ingestion failed", err)
				os.Exit(1)
			}
		},
	}
}

func runIngest() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	fetcher := feeds.NewFetcher(s, cfg.Feeds.URLs, cfg.Feeds.Timeout)
	created, err := fetcher.FetchAll(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("Ingested %d new articles from %d feeds\n", created, len(cfg.Feeds.URLs))
	return nil
}
