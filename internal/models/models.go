// Package models provides shared data types for the generation data pipeline.
package models

import (
	"time"

	"github.com/DridrM/renewable-energy-forecast/internal/daterange"
	"github.com/DridrM/renewable-energy-forecast/internal/resource"
)

// Unit holds the identifier fields of a production unit, keyed by column
// name (e.g. "production_type", or "eic_code" and "unit_name").
type Unit map[string]string

// Equal reports whether both units carry the same identifier fields.
func (u Unit) Equal(o Unit) bool {
	if len(u) != len(o) {
		return false
	}
	for k, v := range u {
		if o[k] != v {
			return false
		}
	}
	return true
}

// GenerationRecord is one flat observation of a unit.
type GenerationRecord struct {
	// StartDate is the beginning of the sampling interval.
	StartDate time.Time
	// EndDate is the end of the sampling interval.
	EndDate time.Time
	// UpdatedDate is when the upstream last revised the value; zero when not provided.
	UpdatedDate time.Time
	// Value is the generated power in MW.
	Value float64
	// Unit carries the identifier fields of the unit the value belongs to.
	Unit Unit
}

// Matches reports whether the record satisfies every set field of f.
func (r GenerationRecord) Matches(f resource.Filter) bool {
	for _, col := range []string{resource.ColEICCode, resource.ColProductionType, resource.ColProductionSubtype} {
		want := f.Get(col)
		if want != "" && r.Unit[col] != want {
			return false
		}
	}
	return true
}

// Dataset is the result of an acquisition.
type Dataset struct {
	Kind     resource.Kind
	FileName string
	// Range is the resolved request range; the default marker for default calls.
	Range   daterange.DateRange
	Filter  resource.Filter
	Records []GenerationRecord
	// Cached is true when the data came from a previously stored file.
	Cached bool
}

// ResourceStatus holds the operational status of one resource kind.
type ResourceStatus struct {
	LastFetchAt       *time.Time `json:"last_fetch_at"`
	LastFetchSuccess  bool       `json:"last_fetch_success"`
	LastDurationMs    int64      `json:"last_duration_ms"`
	LastRecords       int        `json:"last_records"`
	LastError         *string    `json:"last_error"`
	TotalRequests     int64      `json:"total_requests"`
	TotalSlices       int64      `json:"total_slices"`
	TotalErrors       int64      `json:"total_errors"`
	TotalCacheHits    int64      `json:"total_cache_hits"`
	TotalCooldowns    int64      `json:"total_cooldowns"`
	LastUpstreamCall  *time.Time `json:"last_upstream_call,omitempty"`
	MinIntervalSecond int64      `json:"min_interval_seconds"`
}

// StatusResponse is the response for the /status endpoint.
type StatusResponse struct {
	Status             string                    `json:"status"`
	UptimeSeconds      int64                     `json:"uptime_seconds"`
	SchedulerRunning   bool                      `json:"scheduler_running"`
	NextRunAt          *time.Time                `json:"next_run_at,omitempty"`
	LastScheduledRunAt *time.Time                `json:"last_scheduled_run_at,omitempty"`
	Resources          map[string]ResourceStatus `json:"resources"`
	Registry           RegistryStatus            `json:"registry"`
	Database           DatabaseStatus            `json:"database"`
}

// RegistryStatus summarizes the dataset ledger.
type RegistryStatus struct {
	Entries int    `json:"entries"`
	Error   string `json:"error,omitempty"`
}

// DatabaseStatus holds the database connection status.
type DatabaseStatus struct {
	Enabled            bool  `json:"enabled"`
	Connected          bool  `json:"connected"`
	TotalRecordsStored int64 `json:"total_records_stored"`
}
