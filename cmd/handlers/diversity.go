package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"newspulse/internal/diversity"
	"newspulse/internal/logger"
)

// NewDiversityCmd creates the one-shot diversity scoring command.
func NewDiversityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diversity",
		Short: "Compute source diversity scores for the latest ranking",
		Long:  `Score how varied the sources behind each ranked topic are and persist the results as source_diversity insights.`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := runDiversity(); err != nil {
				logger.Error("Diversity scoring failed", err)
				os.Exit(1)
			}
		},
	}
}

func runDiversity() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	count, err := diversity.NewScorer(s).ScoreRanked()
	if err != nil {
		return err
	}
	fmt.Printf("Calculated diversity scores for %d topics\n", count)
	return nil
}
