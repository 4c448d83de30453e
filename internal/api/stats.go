package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/snarg/lectern/internal/store"
)

type StatsHandler struct {
	db *store.DB
}

func NewStatsHandler(db *store.DB) *StatsHandler {
	return &StatsHandler{db: db}
}

// GetStats returns collection-wide statistics.
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.db.GetStats(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

// Routes registers stats routes on the given router.
func (h *StatsHandler) Routes(r chi.Router) {
	r.Get("/stats", h.GetStats)
}
