package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DridrM/renewable-energy-forecast/internal/resource"
)

type fakeClock struct {
	now    time.Time
	slept  []time.Duration
	sleepE error
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if c.sleepE != nil {
		return c.sleepE
	}
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
	return nil
}

func newFake() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func TestAcquireFirstCallPasses(t *testing.T) {
	clock := newFake()
	l := New(WithClock(clock))

	require.NoError(t, l.Acquire(resource.Unit))
	last, ok := l.Last(resource.Unit)
	require.True(t, ok)
	assert.Equal(t, clock.now, last)
}

func TestAcquireRefusesWithinInterval(t *testing.T) {
	clock := newFake()
	l := New(WithClock(clock), WithInterval(resource.ProductionType, 900*time.Second))

	require.NoError(t, l.Acquire(resource.ProductionType))

	clock.now = clock.now.Add(899 * time.Second)
	err := l.Acquire(resource.ProductionType)
	require.Error(t, err)

	var cooldown *CooldownError
	require.True(t, errors.As(err, &cooldown))
	assert.Equal(t, resource.ProductionType, cooldown.Kind)
	assert.Equal(t, time.Second, cooldown.RetryAfter)
}

func TestAcquireAllowsAtInterval(t *testing.T) {
	clock := newFake()
	l := New(WithClock(clock), WithInterval(resource.ProductionType, 900*time.Second))

	require.NoError(t, l.Acquire(resource.ProductionType))
	clock.now = clock.now.Add(900 * time.Second)
	assert.NoError(t, l.Acquire(resource.ProductionType))

	clock.now = clock.now.Add(3600 * time.Second)
	assert.NoError(t, l.Acquire(resource.ProductionType))
}

func TestAcquireKindsAreIndependent(t *testing.T) {
	clock := newFake()
	l := New(WithClock(clock))

	require.NoError(t, l.Acquire(resource.Unit))
	assert.NoError(t, l.Acquire(resource.Mix15Min))
	assert.Error(t, l.Acquire(resource.Unit))
}

func TestRefusedCallIsNotRecorded(t *testing.T) {
	clock := newFake()
	l := New(WithClock(clock), WithInterval(resource.Unit, time.Hour))

	start := clock.now
	require.NoError(t, l.Acquire(resource.Unit))
	clock.now = start.Add(30 * time.Minute)
	require.Error(t, l.Acquire(resource.Unit))

	last, _ := l.Last(resource.Unit)
	assert.Equal(t, start, last)

	clock.now = start.Add(time.Hour)
	assert.NoError(t, l.Acquire(resource.Unit))
}

func TestPauseSleepsFullInterval(t *testing.T) {
	clock := newFake()
	l := New(WithClock(clock), WithInterval(resource.Mix15Min, 15*time.Minute))

	require.NoError(t, l.Acquire(resource.Mix15Min))
	require.NoError(t, l.Pause(context.Background(), resource.Mix15Min))

	assert.Equal(t, []time.Duration{15 * time.Minute}, clock.slept)
	last, _ := l.Last(resource.Mix15Min)
	assert.Equal(t, clock.now, last)

	// The pause counts as a call, so an immediate Acquire is refused.
	assert.Error(t, l.Acquire(resource.Mix15Min))
}

func TestPauseHonorsContext(t *testing.T) {
	clock := newFake()
	clock.sleepE = context.Canceled
	l := New(WithClock(clock))

	err := l.Pause(context.Background(), resource.Unit)
	assert.ErrorIs(t, err, context.Canceled)
	_, ok := l.Last(resource.Unit)
	assert.False(t, ok)
}

func TestZeroIntervalNeverRefuses(t *testing.T) {
	clock := newFake()
	l := New(WithClock(clock), WithInterval(resource.Unit, 0))

	for i := 0; i < 3; i++ {
		assert.NoError(t, l.Acquire(resource.Unit))
	}
}

func TestSystemClockSleepCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := SystemClock.Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}
