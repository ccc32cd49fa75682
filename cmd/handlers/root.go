// Package handlers wires the CLI commands to the pipeline components.
package handlers

import (
	"github.com/spf13/cobra"
)

var cfgFile string

// NewRootCmd creates the newspulse root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "newspulse",
		Short: "Event-driven news aggregation and insight pipeline",
		Long: `NewsPulse - News Aggregation Pipeline

Pulls articles from RSS feeds, clusters them into topics, ranks the topics
and generates per-topic insights (summary, personal impact, background,
multimedia hints, sentiment, source diversity).

Examples:
  # Run the full pipeline with the read API
  newspulse run

  # Pull the configured feeds once
  newspulse ingest

  # Build a ranking from the current topics
  newspulse rank

  # Serve the read API over existing data
  newspulse serve`,
		Version: "1.0.0",
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .newspulse.yaml)")

	rootCmd.AddCommand(NewRunCmd())
	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewIngestCmd())
	rootCmd.AddCommand(NewRankCmd())
	rootCmd.AddCommand(NewDiversityCmd())
	rootCmd.AddCommand(NewInitDBCmd())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
