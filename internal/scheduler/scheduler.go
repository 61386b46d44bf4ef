// Package scheduler runs the daily default-call acquisition of each resource.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/DridrM/renewable-energy-forecast/internal/models"
	"github.com/DridrM/renewable-energy-forecast/internal/pipeline"
	"github.com/DridrM/renewable-energy-forecast/internal/ratelimit"
	"github.com/DridrM/renewable-energy-forecast/internal/resource"
)

// Acquirer serves dataset requests.
type Acquirer interface {
	Get(ctx context.Context, req pipeline.Request) (*models.Dataset, error)
	Registered(req pipeline.Request) (bool, error)
}

// Scheduler manages the daily acquisition schedule.
type Scheduler struct {
	acquirer Acquirer
	kinds    []resource.Kind
	runHour  int
	now      func() time.Time
	logger   zerolog.Logger

	mu        sync.RWMutex
	nextRunAt time.Time
	lastRunAt *time.Time
	running   bool
}

// New creates a new Scheduler fetching the default dataset of every kind at runHour.
func New(a Acquirer, kinds []resource.Kind, runHour int, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		acquirer: a,
		kinds:    kinds,
		runHour:  runHour,
		now:      time.Now,
		logger:   logger.With().Str("component", "scheduler").Logger(),
	}
}

// Start starts the scheduler and blocks until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.logger.Info().Int("runHour", s.runHour).Msg("starting scheduler")

	// Fetch today's datasets right away when they are missing.
	s.runIfNeeded(ctx)

	next := s.calculateNextRunTime()
	s.setNextRun(next)

	s.logger.Info().
		Time("nextRun", next).
		Dur("duration", next.Sub(s.now())).
		Msg("next run scheduled")

	timer := time.NewTimer(next.Sub(s.now()))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scheduler stopped")
			return ctx.Err()
		case <-timer.C:
			s.RunAll(ctx)

			next = s.calculateNextRunTime()
			s.setNextRun(next)

			s.logger.Info().
				Time("nextRun", next).
				Msg("next run scheduled")

			timer.Reset(next.Sub(s.now()))
		}
	}
}

func (s *Scheduler) setNextRun(t time.Time) {
	s.mu.Lock()
	s.nextRunAt = t
	s.mu.Unlock()
}

// calculateNextRunTime returns the next occurrence of the run hour.
func (s *Scheduler) calculateNextRunTime() time.Time {
	now := s.now()

	next := time.Date(now.Year(), now.Month(), now.Day(), s.runHour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// runIfNeeded fetches the default dataset of every kind not registered today.
func (s *Scheduler) runIfNeeded(ctx context.Context) {
	for _, kind := range s.kinds {
		req := pipeline.Request{Kind: kind}

		registered, err := s.acquirer.Registered(req)
		if err != nil {
			s.logger.Error().
				Err(err).
				Str("resource", kind.Name()).
				Msg("failed to check today's dataset")
			continue
		}

		if registered {
			s.logger.Info().
				Str("resource", kind.Name()).
				Msg("today's dataset already stored, skipping initial run")
			continue
		}

		s.logger.Info().
			Str("resource", kind.Name()).
			Msg("no dataset for today, running initial acquisition")
		s.runKind(ctx, kind)
	}
}

// RunAll runs the default call of every kind once.
func (s *Scheduler) RunAll(ctx context.Context) {
	s.logger.Info().Msg("running scheduled acquisition")

	now := s.now()
	s.mu.Lock()
	s.lastRunAt = &now
	s.mu.Unlock()

	failed := 0
	for _, kind := range s.kinds {
		if !s.runKind(ctx, kind) {
			failed++
		}
	}

	if failed > 0 {
		s.logger.Error().Int("failed", failed).Msg("scheduled acquisition incomplete")
	} else {
		s.logger.Info().Msg("scheduled acquisition completed")
	}
}

func (s *Scheduler) runKind(ctx context.Context, kind resource.Kind) bool {
	ds, err := s.acquirer.Get(ctx, pipeline.Request{Kind: kind})
	if err != nil {
		var cooldown *ratelimit.CooldownError
		if errors.As(err, &cooldown) {
			s.logger.Warn().
				Str("resource", kind.Name()).
				Dur("retry_after", cooldown.RetryAfter).
				Msg("resource cooling down, skipping")
			return true
		}
		s.logger.Error().
			Err(err).
			Str("resource", kind.Name()).
			Msg("acquisition failed")
		return false
	}

	s.logger.Info().
		Str("resource", kind.Name()).
		Str("file", ds.FileName).
		Int("records", len(ds.Records)).
		Bool("cached", ds.Cached).
		Msg("acquisition done")
	return true
}

// NextRunAt returns the time of the next scheduled run.
func (s *Scheduler) NextRunAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextRunAt
}

// LastRunAt returns the time of the last scheduled run.
func (s *Scheduler) LastRunAt() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRunAt
}

// IsRunning returns whether the scheduler is currently running.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
