package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/DridrM/renewable-energy-forecast/internal/config"
	"github.com/DridrM/renewable-energy-forecast/internal/database"
	"github.com/DridrM/renewable-energy-forecast/internal/http"
	"github.com/DridrM/renewable-energy-forecast/internal/pipeline"
	"github.com/DridrM/renewable-energy-forecast/internal/scheduler"
)

func runCmd() *cobra.Command {
	var kinds string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the continuous acquisition service",
		Long: `Starts the acquisition service with an internal scheduler fetching the default
dataset of every configured resource daily at the specified hour. Records are
exported to PostgreSQL when --postgres-dsn is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()

			if kinds != "" {
				parsed, err := config.ParseKinds(kinds)
				if err != nil {
					return err
				}
				cfg.Kinds = parsed
			}

			names := make([]string, len(cfg.Kinds))
			for i, k := range cfg.Kinds {
				names[i] = k.Name()
			}

			logger.Info().
				Str("version", Version).
				Str("commit", Commit).
				Str("buildDate", BuildDate).
				Str("httpAddr", cfg.HTTPAddr).
				Str("dataDir", cfg.DataDir).
				Int("scheduleHour", cfg.ScheduleHour).
				Strs("resources", names).
				Msg("starting generation data collector")

			promReg := prometheus.NewRegistry()
			promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			metrics := http.NewMetrics(promReg)

			p, err := newPipeline(logger, pipeline.WithObserver(metrics))
			if err != nil {
				return err
			}

			var acquirer scheduler.Acquirer = p
			var db *database.DB
			if cfg.PostgresDSN != "" {
				db, err = database.New(cfg.PostgresDSN, logger)
				if err != nil {
					return err
				}
				defer db.Close()
				if err := db.EnsureSchema(cmd.Context()); err != nil {
					return err
				}
				acquirer = &exporter{pipeline: p, db: db, metrics: metrics, logger: logger}
			}

			sched := scheduler.New(acquirer, cfg.Kinds, cfg.ScheduleHour, logger)
			httpServer := http.NewServer(cfg.HTTPAddr, promReg, p, sched, db, logger)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			go func() {
				if err := httpServer.Start(); err != nil {
					logger.Error().Err(err).Msg("HTTP server error")
					cancel()
				}
			}()

			go func() {
				if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error().Err(err).Msg("scheduler error")
					cancel()
				}
			}()

			select {
			case sig := <-sigCh:
				logger.Info().Str("signal", sig.String()).Msg("received signal, shutting down")
			case <-ctx.Done():
			}
			cancel()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer shutdownCancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("HTTP server shutdown error")
			}

			logger.Info().Msg("shutdown complete")
			return nil
		},
	}

	cmd.Flags().IntVar(&cfg.ScheduleHour, "schedule-hour", cfg.ScheduleHour, "Hour of day (0-23) to run the acquisition")
	cmd.Flags().StringVar(&kinds, "kinds", "", "Comma-separated resources to acquire (numbers or names), defaults to all")

	return cmd
}
