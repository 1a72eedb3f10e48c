// Package main implements jobctl, the operator CLI for the job mail pipeline.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/cuongbtq/jobmail/internal/board"
	"github.com/cuongbtq/jobmail/internal/bootstrap"
	"github.com/cuongbtq/jobmail/internal/config"
	"github.com/cuongbtq/jobmail/internal/storage"
	"github.com/cuongbtq/jobmail/shared/logger"
)

const defaultConfigPath = "configs/worker-service/config.yaml"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "jobctl",
	Short:         "Job mail pipeline operator CLI",
	Long:          "jobctl runs ingestion batches, authorizes the Gmail connector and manages the stored job board from the command line.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	path := os.Getenv("JOBCTL_CONFIG_PATH")
	if path == "" {
		path = defaultConfigPath
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", path, "Path to configuration file")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and builds a logger from its logging section
func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := bootstrap.Logger(&cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, log, nil
}

// openBoard opens the configured store and wraps it in a board service.
// The caller closes the returned store.
func openBoard(ctx context.Context, cfg *config.Config, log *slog.Logger) (*board.Service, storage.Store, error) {
	store, _, err := bootstrap.Store(ctx, cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return board.NewService(store, log), store, nil
}
