package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/snarg/lectern/internal/store"
)

type TranscriptsHandler struct {
	db *store.DB
}

func NewTranscriptsHandler(db *store.DB) *TranscriptsHandler {
	return &TranscriptsHandler{db: db}
}

func (h *TranscriptsHandler) Routes(r chi.Router) {
	r.Get("/transcripts", h.ListTranscripts)
	r.Get("/transcripts/{stem}", h.GetTranscript)
	r.Get("/transcripts/{stem}/segments", h.ListSegments)
}

// ListTranscripts returns transcripts newest first. Without a limit the
// full collection is returned.
func (h *TranscriptsHandler) ListTranscripts(w http.ResponseWriter, r *http.Request) {
	limit, err := ParseLimit(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	transcripts, err := h.db.ListTranscripts(r.Context(), limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to list transcripts")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"transcripts": transcripts,
		"total":       len(transcripts),
	})
}

// GetTranscript returns one transcript's metadata by filename stem.
func (h *TranscriptsHandler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	stem := chi.URLParam(r, "stem")

	t, err := h.db.GetTranscript(r.Context(), stem)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "transcript not found")
			return
		}
		WriteError(w, http.StatusInternalServerError, "failed to get transcript")
		return
	}
	WriteJSON(w, http.StatusOK, t)
}

// ListSegments returns a transcript's segments in order, optionally
// filtered to one speaker.
func (h *TranscriptsHandler) ListSegments(w http.ResponseWriter, r *http.Request) {
	stem := chi.URLParam(r, "stem")

	t, err := h.db.GetTranscript(r.Context(), stem)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "transcript not found")
			return
		}
		WriteError(w, http.StatusInternalServerError, "failed to get transcript")
		return
	}

	limit, err := ParseLimit(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter := store.SegmentFilter{TranscriptID: t.ID, Limit: limit}
	if v, ok := QueryString(r, "speaker"); ok {
		filter.Speaker = v
	}

	segments, err := h.db.ListSegments(r.Context(), filter)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to list segments")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"filename": t.Filename,
		"segments": segments,
		"total":    len(segments),
	})
}
