package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/snarg/lectern/internal/ingest"
)

// SyncHandler triggers a collection sync over the API.
type SyncHandler struct {
	syncer *ingest.Syncer
	dir    string
}

func NewSyncHandler(syncer *ingest.Syncer, dir string) *SyncHandler {
	return &SyncHandler{syncer: syncer, dir: dir}
}

func (h *SyncHandler) Routes(r chi.Router) {
	r.Post("/sync", h.TriggerSync)
}

type syncResponse struct {
	ingest.Report
	Total      int   `json:"total"`
	DurationMS int64 `json:"duration_ms"`
}

// TriggerSync runs a full directory sync and reports per-outcome counts.
// The sync runs inline; the response returns when it finishes.
func (h *SyncHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if h.syncer == nil {
		WriteError(w, http.StatusServiceUnavailable, "sync not available")
		return
	}

	force, _ := QueryBool(r, "force")
	log := hlog.FromRequest(r)
	log.Info().Str("dir", h.dir).Bool("force", force).Msg("sync triggered over API")

	start := time.Now()
	report, err := h.syncer.SyncDir(r.Context(), h.dir, force)
	if err != nil {
		WriteErrorDetail(w, http.StatusInternalServerError, "sync failed", err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, syncResponse{
		Report:     report,
		Total:      report.Total(),
		DurationMS: time.Since(start).Milliseconds(),
	})
}
