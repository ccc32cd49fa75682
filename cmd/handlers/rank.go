package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"newspulse/internal/bus"
	"newspulse/internal/logger"
	"newspulse/internal/rank"
)

// NewRankCmd creates the one-shot ranking command.
func NewRankCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rank",
		Short: "Build a ranking from the current topics",
		Long:  `Score every topic and persist a fresh ranking of the top ones. With no topics in the store, nothing is created.`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := runRank(); err != nil {
				logger.Error("Ranking failed", err)
				os.Exit(1)
			}
		},
	}
}

func runRank() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	engine := rank.NewEngine(s, bus.New(), cfg.Ranking.TopK, cfg.Ranking.Interval)
	rankingID, err := engine.CreateRanking(context.Background())
	if err != nil {
		return err
	}
	if rankingID == 0 {
		fmt.Println("No topics to rank")
		return nil
	}

	entries, err := s.RankingEntries(rankingID)
	if err != nil {
		return err
	}
	fmt.Printf("Created ranking %d with %d topics:\n", rankingID, len(entries))
	for _, entry := range entries {
		topic, err := s.TopicByID(entry.TopicID)
		if err != nil || topic == nil {
			continue
		}
		fmt.Printf("%3d. %s\n", entry.Position, topic.Name)
	}
	return nil
}
