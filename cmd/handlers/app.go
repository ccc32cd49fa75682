package handlers

import (
	"context"
	"fmt"

	"newspulse/internal/config"
	"newspulse/internal/llm"
	"newspulse/internal/logger"
	"newspulse/internal/store"
)

// loadConfig loads configuration and initializes logging for a command run.
func loadConfig() (*config.Config, error) {
	logger.Init()
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// openStore opens the sqlite store under the configured data directory.
func openStore(cfg *config.Config) (*store.Store, error) {
	s, err := store.NewStore(cfg.App.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open store in %s: %w", cfg.App.DataDir, err)
	}
	return s, nil
}

// newGenerator builds the rate-limited generation client.
func newGenerator(ctx context.Context, cfg *config.Config) (*llm.RateLimited, *llm.Client, error) {
	client, err := llm.NewClient(ctx, cfg.Gemini)
	if err != nil {
		return nil, nil, err
	}
	limited := llm.NewRateLimited(client, cfg.Gemini.RequestLimit, cfg.Gemini.RequestWindow, cfg.Gemini.MaxRetries)
	return limited, client, nil
}
