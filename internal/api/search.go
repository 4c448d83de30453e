package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/snarg/lectern/internal/search"
)

// SearchHandler serves queries over whichever index backend the server
// was started with.
type SearchHandler struct {
	searcher search.Searcher
}

func NewSearchHandler(s search.Searcher) *SearchHandler {
	return &SearchHandler{searcher: s}
}

func (h *SearchHandler) Routes(r chi.Router) {
	r.Get("/search", h.Search)
	r.Get("/kwic", h.KWIC)
	r.Get("/hits", h.Hits)
}

// Search returns ranked segment hits with snippets.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		WriteError(w, http.StatusBadRequest, "q parameter is required")
		return
	}
	limit, err := ParseLimit(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit = search.ClampLimit(limit)

	hits, err := h.searcher.Search(r.Context(), q, limit)
	if err != nil {
		if errors.Is(err, search.ErrEmptyQuery) {
			WriteError(w, http.StatusBadRequest, "query is empty")
			return
		}
		hlog.FromRequest(r).Warn().Err(err).Str("query", q).Msg("search failed")
		WriteError(w, http.StatusInternalServerError, "search failed")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"query":   q,
		"results": hits,
		"total":   len(hits),
		"limit":   limit,
	})
}

// KWIC returns hits with a left/keyword/right context triple around the
// matched term.
func (h *SearchHandler) KWIC(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		WriteError(w, http.StatusBadRequest, "q parameter is required")
		return
	}
	limit, err := ParseLimit(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit = search.ClampLimit(limit)
	contextWords, _ := QueryInt(r, "context")

	hits, err := search.KWIC(r.Context(), h.searcher, q, contextWords, limit)
	if err != nil {
		if errors.Is(err, search.ErrEmptyQuery) {
			WriteError(w, http.StatusBadRequest, "query is empty")
			return
		}
		hlog.FromRequest(r).Warn().Err(err).Str("query", q).Msg("kwic search failed")
		WriteError(w, http.StatusInternalServerError, "search failed")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"query":   q,
		"results": hits,
		"total":   len(hits),
		"limit":   limit,
	})
}

// Hits returns match counts aggregated by file or speaker.
func (h *SearchHandler) Hits(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		WriteError(w, http.StatusBadRequest, "q parameter is required")
		return
	}
	groupBy := search.GroupByFile
	if v, ok := QueryString(r, "group_by"); ok {
		gb, err := search.ParseGroupBy(v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		groupBy = gb
	}

	groups, err := h.searcher.AggregateHits(r.Context(), q, groupBy)
	if err != nil {
		if errors.Is(err, search.ErrEmptyQuery) {
			WriteError(w, http.StatusBadRequest, "query is empty")
			return
		}
		hlog.FromRequest(r).Warn().Err(err).Str("query", q).Msg("hit aggregation failed")
		WriteError(w, http.StatusInternalServerError, "aggregation failed")
		return
	}

	total := 0
	for _, g := range groups {
		total += g.Count
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"query":    q,
		"group_by": string(groupBy),
		"groups":   groups,
		"total":    total,
	})
}
