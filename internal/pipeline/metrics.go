package pipeline

import (
	"sync"
	"time"

	"github.com/DridrM/renewable-energy-forecast/internal/models"
	"github.com/DridrM/renewable-energy-forecast/internal/resource"
)

// Metrics holds acquisition metrics for a resource.
type Metrics struct {
	mu               sync.RWMutex
	TotalRequests    int64
	TotalSlices      int64
	TotalErrors      int64
	TotalCacheHits   int64
	TotalCooldowns   int64
	LastFetchAt      *time.Time
	LastFetchSuccess bool
	LastDuration     time.Duration
	LastRecords      int
	LastError        *string
}

// GetSnapshot returns a thread-safe snapshot of the metrics.
func (m *Metrics) GetSnapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return MetricsSnapshot{
		TotalRequests:    m.TotalRequests,
		TotalSlices:      m.TotalSlices,
		TotalErrors:      m.TotalErrors,
		TotalCacheHits:   m.TotalCacheHits,
		TotalCooldowns:   m.TotalCooldowns,
		LastFetchAt:      m.LastFetchAt,
		LastFetchSuccess: m.LastFetchSuccess,
		LastDuration:     m.LastDuration,
		LastRecords:      m.LastRecords,
		LastError:        m.LastError,
	}
}

// MetricsSnapshot is a thread-safe copy of Metrics data.
type MetricsSnapshot struct {
	TotalRequests    int64
	TotalSlices      int64
	TotalErrors      int64
	TotalCacheHits   int64
	TotalCooldowns   int64
	LastFetchAt      *time.Time
	LastFetchSuccess bool
	LastDuration     time.Duration
	LastRecords      int
	LastError        *string
}

func (m *Metrics) incRequests() {
	m.mu.Lock()
	m.TotalRequests++
	m.mu.Unlock()
}

func (m *Metrics) incSlices() {
	m.mu.Lock()
	m.TotalSlices++
	m.mu.Unlock()
}

func (m *Metrics) incCacheHits() {
	m.mu.Lock()
	m.TotalCacheHits++
	m.mu.Unlock()
}

func (m *Metrics) incCooldowns() {
	m.mu.Lock()
	m.TotalCooldowns++
	m.mu.Unlock()
}

func (m *Metrics) recordError(err error) {
	errStr := err.Error()
	m.mu.Lock()
	m.TotalErrors++
	m.LastError = &errStr
	m.mu.Unlock()
}

// recordFetch stores the outcome of an upstream fetch.
func (m *Metrics) recordFetch(at time.Time, d time.Duration, records int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastFetchAt = &at
	m.LastDuration = d
	m.LastRecords = records
	if err != nil {
		m.TotalErrors++
		m.LastFetchSuccess = false
		errStr := err.Error()
		m.LastError = &errStr
		return
	}
	m.LastFetchSuccess = true
	m.LastError = nil
}

// GetMetrics returns the metrics of a resource.
func (p *Pipeline) GetMetrics(kind resource.Kind) *Metrics {
	return p.metrics[kind]
}

// Status combines the metrics of a resource with its rate limiter state.
func (p *Pipeline) Status(kind resource.Kind) models.ResourceStatus {
	snapshot := p.metrics[kind].GetSnapshot()
	status := models.ResourceStatus{
		LastFetchAt:       snapshot.LastFetchAt,
		LastFetchSuccess:  snapshot.LastFetchSuccess,
		LastDurationMs:    snapshot.LastDuration.Milliseconds(),
		LastRecords:       snapshot.LastRecords,
		LastError:         snapshot.LastError,
		TotalRequests:     snapshot.TotalRequests,
		TotalSlices:       snapshot.TotalSlices,
		TotalErrors:       snapshot.TotalErrors,
		TotalCacheHits:    snapshot.TotalCacheHits,
		TotalCooldowns:    snapshot.TotalCooldowns,
		MinIntervalSecond: int64(p.limiter.Interval(kind).Seconds()),
	}
	if last, ok := p.limiter.Last(kind); ok {
		status.LastUpstreamCall = &last
	}
	return status
}
