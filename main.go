package main

import (
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/lexiday/internal/database"
	"github.com/example/lexiday/pkg/config"
	"github.com/example/lexiday/pkg/logger"
)

var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "lexiday",
	Short: "One new word a day",
	Long: `lexiday serves the daily vocabulary lesson API.

Running it without a subcommand starts the server.`,
	Version:      version,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(importBankCmd)
	rootCmd.AddCommand(exportWordsCmd)
}

// bootstrap loads config, builds the logger and opens the database
func bootstrap() (*config.Config, *zap.Logger, *sqlx.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.Server.Env)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	for _, w := range cfg.Warnings {
		log.Warn("config", zap.String("warning", w))
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		_ = log.Sync()
		return nil, nil, nil, err
	}
	log.Info("database connected", zap.String("type", cfg.Database.Type))
	return cfg, log, db, nil
}
