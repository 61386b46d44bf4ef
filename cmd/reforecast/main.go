// Package main provides the entry point for the generation data collector CLI.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/DridrM/renewable-energy-forecast/internal/api/rte"
	"github.com/DridrM/renewable-energy-forecast/internal/config"
	"github.com/DridrM/renewable-energy-forecast/internal/pipeline"
	"github.com/DridrM/renewable-energy-forecast/internal/ratelimit"
	"github.com/DridrM/renewable-energy-forecast/internal/registry"
	"github.com/DridrM/renewable-energy-forecast/internal/storage"
)

var (
	// Version is set at build time.
	Version = "dev"
	// Commit is set at build time.
	Commit = "none"
	// BuildDate is set at build time.
	BuildDate = "unknown"
)

var cfg *config.Config

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	cfg = config.DefaultConfig()
	cfg.LoadFromEnv()

	rootCmd := &cobra.Command{
		Use:   "reforecast",
		Short: "Renewable energy forecast - generation data collector",
		Long: `reforecast downloads electricity generation data from the grid operator API
and keeps it in a local file cache ready for forecasting.

Features:
  - Three generation resources (per production type, per unit, 15 minute mix)
  - Automatic slicing of long date ranges under the API span limits
  - Per resource rate limiting
  - Ledger of stored datasets, every request is fetched once
  - Daily default-call acquisition with Prometheus metrics and a status endpoint
  - Export of stored datasets to PostgreSQL`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Directory holding the ledger and dataset files")
	rootCmd.PersistentFlags().StringVar(&cfg.API.BaseURL, "base-url", cfg.API.BaseURL, "Base URL of the grid operator API")
	rootCmd.PersistentFlags().StringVar(&cfg.PostgresDSN, "postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	rootCmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (json, console)")
	rootCmd.PersistentFlags().StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP server address for /metrics, /status")

	rootCmd.AddCommand(fetchCmd())
	rootCmd.AddCommand(unitsCmd())
	rootCmd.AddCommand(registryCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setupLogger() zerolog.Logger {
	var logger zerolog.Logger

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Logs go to stderr so command output on stdout stays pipeable.
	if cfg.LogFormat == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stderr).
			With().
			Timestamp().
			Logger()
	}

	return logger
}

// newPipeline wires storage, ledger, limiter and the API client.
func newPipeline(logger zerolog.Logger, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	store, err := storage.New(cfg.DataDir, cfg.CacheSize, logger)
	if err != nil {
		return nil, err
	}
	reg := registry.New(cfg.DataDir, store, logger)

	limiterOpts := make([]ratelimit.Option, 0, len(cfg.MinIntervals))
	for kind, d := range cfg.MinIntervals {
		limiterOpts = append(limiterOpts, ratelimit.WithInterval(kind, d))
	}
	limiter := ratelimit.New(limiterOpts...)

	if cfg.API.ClientSecret == "" {
		logger.Warn().Msg("CLIENT_SECRET is not set, upstream calls will be rejected")
	}
	client := rte.New(cfg.API, logger)

	return pipeline.New(client, reg, store, limiter, logger, opts...), nil
}
