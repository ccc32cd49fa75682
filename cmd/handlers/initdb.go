package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"newspulse/internal/logger"
)

// NewInitDBCmd creates the database initialization command.
func NewInitDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create the data directory and database schema",
		Long:  `Initialize the sqlite database under the configured data directory. Safe to run repeatedly; existing data is untouched.`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := runInitDB(); err != nil {
				logger.Error("Database initialization failed", err)
				os.Exit(1)
			}
		},
	}
}

func runInitDB() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Printf("Database initialized in %s\n", cfg.App.DataDir)
	return nil
}
