// Package pipeline orchestrates the acquisition of generation datasets:
// canonicalize the request, serve it from the registry when already stored,
// otherwise fetch it slice by slice under the rate limiter, store it and read
// it back filtered.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/DridrM/renewable-energy-forecast/internal/api"
	"github.com/DridrM/renewable-energy-forecast/internal/daterange"
	"github.com/DridrM/renewable-energy-forecast/internal/extract"
	"github.com/DridrM/renewable-energy-forecast/internal/models"
	"github.com/DridrM/renewable-energy-forecast/internal/ratelimit"
	"github.com/DridrM/renewable-energy-forecast/internal/registry"
	"github.com/DridrM/renewable-energy-forecast/internal/resource"
	"github.com/DridrM/renewable-energy-forecast/internal/storage"
)

// Request describes one dataset acquisition. Zero times mean the bound was
// not provided, which turns the request into a default call.
type Request struct {
	Kind   resource.Kind
	Start  time.Time
	End    time.Time
	Filter resource.Filter
}

// SliceError reports the failure of one window of a sliced fetch. The whole
// fetch is abandoned and nothing is stored.
type SliceError struct {
	Index int
	Range daterange.DateRange
	Err   error
}

func (e *SliceError) Error() string {
	return fmt.Sprintf("slice %d (%s): %v", e.Index, e.Range, e.Err)
}

func (e *SliceError) Unwrap() error {
	return e.Err
}

// Observer receives acquisition events, typically to export them as metrics.
type Observer interface {
	ObserveFetch(kind resource.Kind, success bool, duration time.Duration, records int)
	ObserveCacheHit(kind resource.Kind)
	ObserveCooldown(kind resource.Kind)
}

// Pipeline serves dataset requests. Requests are serialized so every entry
// point of the process shares one limiter and one ledger.
type Pipeline struct {
	source   api.Source
	registry *registry.Registry
	store    *storage.Store
	limiter  *ratelimit.Limiter
	observer Observer
	now      func() time.Time
	logger   zerolog.Logger

	mu      sync.Mutex
	metrics map[resource.Kind]*Metrics
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithObserver attaches an Observer.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		p.observer = o
	}
}

// WithNow replaces the clock used to resolve ranges and name default datasets.
func WithNow(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// New creates a Pipeline.
func New(source api.Source, reg *registry.Registry, store *storage.Store, limiter *ratelimit.Limiter, logger zerolog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		source:   source,
		registry: reg,
		store:    store,
		limiter:  limiter,
		now:      time.Now,
		logger:   logger.With().Str("component", "pipeline").Logger(),
		metrics:  make(map[resource.Kind]*Metrics),
	}
	for _, kind := range resource.All() {
		p.metrics[kind] = &Metrics{}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Get returns the dataset described by req, fetching it only when it is not
// registered yet. A cooldown refusal is returned as *ratelimit.CooldownError,
// a failed window as *SliceError.
func (p *Pipeline) Get(ctx context.Context, req Request) (*models.Dataset, error) {
	kind := req.Kind
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown resource %s", kind)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	metrics := p.metrics[kind]
	metrics.incRequests()

	now := p.now()
	logger := p.logger.With().Str("resource", kind.Name()).Logger()

	filter, dropped := kind.Canonical(req.Filter)
	if len(dropped) > 0 {
		logger.Warn().
			Strs("filters", dropped).
			Msg("filters do not apply to this resource, ignoring them")
	}

	dr, reason := daterange.Resolve(kind, req.Start, req.End, now)
	if reason != daterange.Kept {
		logger.Warn().
			Str("reason", string(reason)).
			Msg("falling back to the default call")
	}

	name := registry.DatasetName(kind, dr, filter, now)
	logger = logger.With().Str("file", name).Logger()

	exists, err := p.registry.Exists(name)
	if err != nil {
		metrics.recordError(err)
		return nil, fmt.Errorf("checking registry: %w", err)
	}

	cached := exists
	if exists {
		metrics.incCacheHits()
		p.observeCacheHit(kind)
		logger.Debug().Msg("dataset already registered, reading it")
	} else {
		if err := p.fetchAndStore(ctx, logger, metrics, kind, dr, filter, name); err != nil {
			return nil, err
		}
	}

	records, err := p.store.Read(name, kind)
	if err != nil {
		metrics.recordError(err)
		return nil, fmt.Errorf("reading dataset: %w", err)
	}

	filtered := records[:0]
	for _, rec := range records {
		if rec.Matches(filter) {
			filtered = append(filtered, rec)
		}
	}

	return &models.Dataset{
		Kind:     kind,
		FileName: name,
		Range:    dr,
		Filter:   filter,
		Records:  filtered,
		Cached:   cached,
	}, nil
}

func (p *Pipeline) fetchAndStore(ctx context.Context, logger zerolog.Logger, metrics *Metrics, kind resource.Kind, dr daterange.DateRange, filter resource.Filter, name string) error {
	if err := p.limiter.Acquire(kind); err != nil {
		var cooldown *ratelimit.CooldownError
		if errors.As(err, &cooldown) {
			metrics.incCooldowns()
			p.observeCooldown(kind)
			logger.Warn().
				Dur("retry_after", cooldown.RetryAfter).
				Msg("resource called too recently")
		}
		return err
	}

	start := time.Now()
	records, err := p.fetch(ctx, logger, metrics, kind, dr, filter)
	duration := time.Since(start)

	if err != nil {
		metrics.recordFetch(p.now(), duration, 0, err)
		p.observeFetch(kind, false, duration, 0)
		logger.Error().Err(err).Dur("duration", duration).Msg("fetch failed")
		return err
	}

	if err := p.store.Write(name, kind, records); err != nil {
		metrics.recordFetch(p.now(), duration, 0, err)
		p.observeFetch(kind, false, duration, 0)
		return fmt.Errorf("storing dataset: %w", err)
	}
	if _, err := p.registry.Record(kind, dr, filter, name); err != nil {
		metrics.recordFetch(p.now(), duration, 0, err)
		p.observeFetch(kind, false, duration, 0)
		return fmt.Errorf("registering dataset: %w", err)
	}

	metrics.recordFetch(p.now(), duration, len(records), nil)
	p.observeFetch(kind, true, duration, len(records))

	logger.Info().
		Int("records", len(records)).
		Dur("duration", duration).
		Msg("stored dataset")
	return nil
}

// fetch downloads every window of dr and concatenates the flattened records.
func (p *Pipeline) fetch(ctx context.Context, logger zerolog.Logger, metrics *Metrics, kind resource.Kind, dr daterange.DateRange, filter resource.Filter) ([]models.GenerationRecord, error) {
	windows := daterange.Slice(kind, dr)
	logger.Info().
		Str("range", dr.String()).
		Int("slices", len(windows)).
		Msg("fetching dataset")

	var all []models.GenerationRecord
	for i, w := range windows {
		params := kind.Params(filter)
		if !w.IsDefault() {
			params.Set("start_date", daterange.APIFormat(w.Start))
			params.Set("end_date", daterange.APIFormat(w.End))
		}

		metrics.incSlices()
		payload, err := p.source.Fetch(ctx, kind, params)
		if err != nil {
			return nil, &SliceError{Index: i, Range: w, Err: err}
		}

		records, err := extract.Records(kind, payload)
		if err != nil {
			logger.Error().
				Int("slice", i).
				Bytes("payload", payload).
				Msg("unexpected payload, abandoning fetch")
			return nil, &SliceError{Index: i, Range: w, Err: err}
		}
		all = append(all, records...)

		logger.Debug().
			Int("slice", i).
			Str("window", w.String()).
			Int("records", len(records)).
			Msg("fetched slice")

		if i == len(windows)-1 {
			break
		}
		if err := p.limiter.Pause(ctx, kind); err != nil {
			return nil, fmt.Errorf("waiting before slice %d: %w", i+1, err)
		}
	}

	return all, nil
}

// Units returns the distinct units of a resource. The list is fetched once
// with a default call and then served from its file; it has no ledger row.
func (p *Pipeline) Units(ctx context.Context, kind resource.Kind) ([]models.Unit, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown resource %s", kind)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	metrics := p.metrics[kind]
	metrics.incRequests()

	name := registry.UnitsName(kind)
	logger := p.logger.With().Str("resource", kind.Name()).Str("file", name).Logger()

	exists, err := p.store.Exists(name)
	if err != nil {
		metrics.recordError(err)
		return nil, err
	}
	if exists {
		metrics.incCacheHits()
		p.observeCacheHit(kind)
		return p.store.ReadUnits(name, kind)
	}

	if err := p.limiter.Acquire(kind); err != nil {
		var cooldown *ratelimit.CooldownError
		if errors.As(err, &cooldown) {
			metrics.incCooldowns()
			p.observeCooldown(kind)
		}
		return nil, err
	}

	start := time.Now()
	units, err := p.fetchUnits(ctx, metrics, kind, name)
	duration := time.Since(start)
	metrics.recordFetch(p.now(), duration, len(units), err)
	p.observeFetch(kind, err == nil, duration, len(units))

	if err != nil {
		logger.Error().Err(err).Msg("fetching units names failed")
		return nil, err
	}
	logger.Info().Int("units", len(units)).Msg("stored units names")
	return units, nil
}

func (p *Pipeline) fetchUnits(ctx context.Context, metrics *Metrics, kind resource.Kind, name string) ([]models.Unit, error) {
	metrics.incSlices()
	payload, err := p.source.Fetch(ctx, kind, nil)
	if err != nil {
		return nil, err
	}
	units, err := extract.Units(kind, payload)
	if err != nil {
		return nil, err
	}
	if _, err := p.store.WriteUnits(name, kind, units); err != nil {
		return nil, fmt.Errorf("storing units names: %w", err)
	}
	return units, nil
}

// List returns the registered datasets.
func (p *Pipeline) List() ([]registry.Entry, error) {
	return p.registry.List()
}

// Remove deletes a registered dataset together with its file.
func (p *Pipeline) Remove(id string) (registry.Entry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.registry.Remove(id)
}

// RemoveUnits deletes the units-name file of kind so the next Units call
// downloads it again. It reports whether a file was removed; a file that is
// already gone is not an error.
func (p *Pipeline) RemoveUnits(kind resource.Kind) (bool, error) {
	if !kind.Valid() {
		return false, fmt.Errorf("unknown resource %s", kind)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	name := registry.UnitsName(kind)
	if err := p.store.Remove(name); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			p.logger.Debug().Str("resource", kind.Name()).Str("file", name).Msg("no units names stored")
			return false, nil
		}
		return false, err
	}

	p.logger.Info().Str("resource", kind.Name()).Str("file", name).Msg("removed units names")
	return true, nil
}

// Registered reports whether the dataset req would resolve to is already stored.
func (p *Pipeline) Registered(req Request) (bool, error) {
	now := p.now()
	filter, _ := req.Kind.Canonical(req.Filter)
	dr, _ := daterange.Resolve(req.Kind, req.Start, req.End, now)
	return p.registry.Exists(registry.DatasetName(req.Kind, dr, filter, now))
}

func (p *Pipeline) observeFetch(kind resource.Kind, success bool, d time.Duration, records int) {
	if p.observer != nil {
		p.observer.ObserveFetch(kind, success, d, records)
	}
}

func (p *Pipeline) observeCacheHit(kind resource.Kind) {
	if p.observer != nil {
		p.observer.ObserveCacheHit(kind)
	}
}

func (p *Pipeline) observeCooldown(kind resource.Kind) {
	if p.observer != nil {
		p.observer.ObserveCooldown(kind)
	}
}
