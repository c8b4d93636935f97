package main

import (
	"fmt"
	"log/slog"

	"github.com/phrazzld/tokensmith/internal/config"
	"github.com/phrazzld/tokensmith/internal/platform/logger"
	"github.com/spf13/cobra"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "tokensmith",
		Short:         "Design-token extraction service with background jobs",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"path to a YAML config file (default: ./config.yaml when present)")

	cmd.AddCommand(
		newServeCommand(opts),
		newMigrateCommand(opts),
		newTokenCommand(opts),
	)
	return cmd
}

// loadConfig loads and validates configuration and installs the JSON logger.
func (o *rootOptions) loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadFrom(o.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	log.Debug("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"storage_configured", cfg.Storage.Endpoint != "",
		"gemini_configured", cfg.LLM.GeminiAPIKey != "",
		"scheduler_enabled", cfg.Scheduler.Enabled)
	return cfg, log, nil
}
