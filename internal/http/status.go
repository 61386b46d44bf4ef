package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/DridrM/renewable-energy-forecast/internal/database"
	"github.com/DridrM/renewable-energy-forecast/internal/models"
	"github.com/DridrM/renewable-energy-forecast/internal/pipeline"
	"github.com/DridrM/renewable-energy-forecast/internal/resource"
	"github.com/DridrM/renewable-energy-forecast/internal/scheduler"
)

// StatusHandler handles the /status endpoint.
type StatusHandler struct {
	pipeline  *pipeline.Pipeline
	scheduler *scheduler.Scheduler
	db        *database.DB
	startTime time.Time
}

// NewStatusHandler creates a new StatusHandler. sched and db may be nil.
func NewStatusHandler(p *pipeline.Pipeline, sched *scheduler.Scheduler, db *database.DB) *StatusHandler {
	return &StatusHandler{
		pipeline:  p,
		scheduler: sched,
		db:        db,
		startTime: time.Now(),
	}
}

// ServeHTTP implements the http.Handler interface.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	response := models.StatusResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Resources:     make(map[string]models.ResourceStatus),
	}

	if h.scheduler != nil {
		response.SchedulerRunning = h.scheduler.IsRunning()
		response.LastScheduledRunAt = h.scheduler.LastRunAt()
		next := h.scheduler.NextRunAt()
		if !next.IsZero() {
			response.NextRunAt = &next
		}
	}

	for _, kind := range resource.All() {
		response.Resources[kind.Name()] = h.pipeline.Status(kind)
	}

	entries, err := h.pipeline.List()
	if err != nil {
		response.Status = "degraded"
		response.Registry.Error = err.Error()
	}
	response.Registry.Entries = len(entries)

	response.Database = h.getDatabaseStatus(ctx)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
}

func (h *StatusHandler) getDatabaseStatus(ctx context.Context) models.DatabaseStatus {
	status := models.DatabaseStatus{}

	if h.db == nil {
		return status
	}
	status.Enabled = true

	if err := h.db.Ping(); err != nil {
		return status
	}
	status.Connected = true

	count, err := h.db.CountRecords(ctx, 0)
	if err == nil {
		status.TotalRecordsStored = count
	}

	return status
}
