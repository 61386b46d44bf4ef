// Package ratelimit keeps calls to each upstream resource at least a minimum
// interval apart.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/DridrM/renewable-energy-forecast/internal/resource"
)

// Clock abstracts time so the limiter can be driven deterministically.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// CooldownError is returned when a call comes before the resource's minimum
// interval has elapsed since the previous call. The call was not made; the
// caller should retry after RetryAfter.
type CooldownError struct {
	Kind       resource.Kind
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s: called too soon, retry in %s", e.Kind.Name(), e.RetryAfter.Round(time.Second))
}

// Limiter tracks the last call per resource kind.
type Limiter struct {
	clock     Clock
	mu        sync.Mutex
	intervals map[resource.Kind]time.Duration
	limiters  map[resource.Kind]*rate.Limiter
	last      map[resource.Kind]time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(l *Limiter) {
		l.clock = c
	}
}

// WithInterval overrides the minimum interval of one kind.
func WithInterval(kind resource.Kind, d time.Duration) Option {
	return func(l *Limiter) {
		l.intervals[kind] = d
	}
}

// New creates a Limiter using each kind's default minimum interval unless overridden.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		clock:     SystemClock,
		intervals: make(map[resource.Kind]time.Duration),
		limiters:  make(map[resource.Kind]*rate.Limiter),
		last:      make(map[resource.Kind]time.Time),
	}
	for _, k := range resource.All() {
		l.intervals[k] = k.MinInterval()
	}
	for _, opt := range opts {
		opt(l)
	}
	for k, d := range l.intervals {
		l.limiters[k] = newLimiter(d)
	}
	return l
}

func newLimiter(d time.Duration) *rate.Limiter {
	if d <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(d), 1)
}

// Interval returns the minimum interval enforced for kind.
func (l *Limiter) Interval(kind resource.Kind) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.intervals[kind]
}

// Acquire records a call to kind, or refuses it with a *CooldownError when the
// previous call was less than the minimum interval ago. The first call always
// passes. Refused calls are not recorded.
func (l *Limiter) Acquire(kind resource.Kind) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[kind]
	if !ok {
		return fmt.Errorf("no rate limit configured for %s", kind)
	}

	now := l.clock.Now()
	if !lim.AllowN(now, 1) {
		retry := l.last[kind].Add(l.intervals[kind]).Sub(now)
		return &CooldownError{Kind: kind, RetryAfter: retry}
	}
	l.last[kind] = now
	return nil
}

// Pause blocks for the full minimum interval of kind, then records the next
// call. It is used between consecutive slices of a single fetch.
func (l *Limiter) Pause(ctx context.Context, kind resource.Kind) error {
	if err := l.clock.Sleep(ctx, l.Interval(kind)); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock.Now()
	if lim, ok := l.limiters[kind]; ok {
		lim.AllowN(now, 1)
	}
	l.last[kind] = now
	return nil
}

// Last returns the time of the last recorded call to kind.
func (l *Limiter) Last(kind resource.Kind) (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.last[kind]
	return t, ok
}
