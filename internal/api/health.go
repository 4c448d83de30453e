package api

import (
	"net/http"
	"time"

	"github.com/snarg/lectern/internal/ingest"
	"github.com/snarg/lectern/internal/mqttclient"
	"github.com/snarg/lectern/internal/store"
	"github.com/snarg/lectern/internal/transcribe"
)

type HealthResponse struct {
	Status        string                 `json:"status"`
	Version       string                 `json:"version"`
	UptimeSeconds int64                  `json:"uptime_seconds"`
	Checks        map[string]string      `json:"checks"`
	Watcher       *ingest.WatcherStatus  `json:"watcher,omitempty"`
	Queue         *transcribe.QueueStats `json:"queue,omitempty"`
	MQTT          *mqttclient.Stats      `json:"mqtt,omitempty"`
}

// HealthHandler reports liveness of the store and the optional pipeline
// services. Nil services show up as not_configured rather than failures.
type HealthHandler struct {
	db        *store.DB
	mqtt      *mqttclient.Subscriber
	watcher   *ingest.Watcher
	pool      *transcribe.WorkerPool
	version   string
	startTime time.Time
}

func NewHealthHandler(db *store.DB, mqtt *mqttclient.Subscriber, watcher *ingest.Watcher, pool *transcribe.WorkerPool, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		db:        db,
		mqtt:      mqtt,
		watcher:   watcher,
		pool:      pool,
		version:   version,
		startTime: startTime,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.db.HealthCheck(r.Context()); err != nil {
		checks["database"] = "error"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	resp := HealthResponse{
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
	}

	if h.watcher != nil {
		ws := h.watcher.Status()
		checks["watcher"] = ws.Status
		resp.Watcher = &ws
	} else {
		checks["watcher"] = "not_configured"
	}

	if h.mqtt != nil {
		ms := h.mqtt.Stats()
		resp.MQTT = &ms
		if h.mqtt.IsConnected() {
			checks["mqtt"] = "ok"
		} else {
			checks["mqtt"] = "disconnected"
			if status == "healthy" {
				status = "degraded"
			}
		}
	} else {
		checks["mqtt"] = "not_configured"
	}

	if h.pool != nil {
		qs := h.pool.Stats()
		checks["transcription"] = "ok"
		resp.Queue = &qs
	} else {
		checks["transcription"] = "not_configured"
	}

	resp.Status = status
	WriteJSON(w, httpStatus, resp)
}
