package handlers

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"newspulse/internal/logger"
	"newspulse/internal/server"
)

// NewServeCmd creates the read-API-only command.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the read API over existing pipeline data",
		Long:  `Start only the HTTP read API. No ingestion or generation runs; the server answers from whatever the store already holds.`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := runServe(); err != nil {
				logger.Error("Server failed", err)
				os.Exit(1)
			}
		},
	}
}

func runServe() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.New(s, cfg.Server.Host, cfg.Server.Port).Run(ctx)
}
