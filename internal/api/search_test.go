package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/snarg/lectern/internal/search"
)

// fakeSearcher records the last call and returns canned results.
type fakeSearcher struct {
	hits   []search.Hit
	groups []search.GroupCount
	err    error

	gotQuery   string
	gotLimit   int
	gotGroupBy search.GroupBy
}

func (f *fakeSearcher) Search(_ context.Context, query string, limit int) ([]search.Hit, error) {
	f.gotQuery, f.gotLimit = query, limit
	return f.hits, f.err
}

func (f *fakeSearcher) AggregateHits(_ context.Context, query string, groupBy search.GroupBy) ([]search.GroupCount, error) {
	f.gotQuery, f.gotGroupBy = query, groupBy
	return f.groups, f.err
}

func searchRouter(f *fakeSearcher) http.Handler {
	r := chi.NewRouter()
	NewSearchHandler(f).Routes(r)
	return r
}

func speaker(s string) *string { return &s }

func TestSearchEndpoint(t *testing.T) {
	t.Run("returns_ranked_hits", func(t *testing.T) {
		f := &fakeSearcher{hits: []search.Hit{
			{SegmentID: 1, Filename: "algebra-01", Speaker: speaker("SPEAKER_00"), Text: "we factor the quadratic", Snippet: "we <mark>factor</mark> the quadratic"},
			{SegmentID: 7, Filename: "algebra-02", Text: "factor pairs"},
		}}
		rec := doRequest(searchRouter(f), "GET", "/search?q=factor&limit=10", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp struct {
			Query   string       `json:"query"`
			Results []search.Hit `json:"results"`
			Total   int          `json:"total"`
			Limit   int          `json:"limit"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if resp.Query != "factor" || resp.Total != 2 || resp.Limit != 10 {
			t.Errorf("unexpected envelope: %+v", resp)
		}
		if len(resp.Results) != 2 || resp.Results[0].Filename != "algebra-01" {
			t.Errorf("unexpected results: %+v", resp.Results)
		}
		if f.gotQuery != "factor" || f.gotLimit != 10 {
			t.Errorf("searcher saw query=%q limit=%d", f.gotQuery, f.gotLimit)
		}
	})

	t.Run("missing_q_400", func(t *testing.T) {
		rec := doRequest(searchRouter(&fakeSearcher{}), "GET", "/search", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("invalid_limit_400", func(t *testing.T) {
		rec := doRequest(searchRouter(&fakeSearcher{}), "GET", "/search?q=x&limit=ten", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("limit_clamped", func(t *testing.T) {
		f := &fakeSearcher{}
		doRequest(searchRouter(f), "GET", "/search?q=x&limit=9999", nil)
		if f.gotLimit != search.DefaultLimit {
			t.Errorf("oversized limit should clamp to %d, saw %d", search.DefaultLimit, f.gotLimit)
		}
	})

	t.Run("blank_query_400", func(t *testing.T) {
		f := &fakeSearcher{err: search.ErrEmptyQuery}
		rec := doRequest(searchRouter(f), "GET", "/search?q=%20%20", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("backend_error_500", func(t *testing.T) {
		f := &fakeSearcher{err: errors.New("index corrupt")}
		rec := doRequest(searchRouter(f), "GET", "/search?q=x", nil)
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})
}

func TestKWICEndpoint(t *testing.T) {
	t.Run("context_triple", func(t *testing.T) {
		f := &fakeSearcher{hits: []search.Hit{
			{SegmentID: 3, Filename: "fox", Text: "the quick brown fox jumps"},
		}}
		rec := doRequest(searchRouter(f), "GET", "/kwic?q=quick&context=1", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp struct {
			Results []search.KwicHit `json:"results"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if len(resp.Results) != 1 {
			t.Fatalf("expected 1 result, got %d", len(resp.Results))
		}
		kh := resp.Results[0]
		if kh.LeftContext != "the" || kh.Keyword != "quick" || kh.RightContext != "brown" {
			t.Errorf("context triple = %q / %q / %q", kh.LeftContext, kh.Keyword, kh.RightContext)
		}
	})

	t.Run("degraded_hit_without_context", func(t *testing.T) {
		// Index matched but the literal substring is absent from the text.
		f := &fakeSearcher{hits: []search.Hit{
			{SegmentID: 4, Filename: "fox", Text: "something else entirely"},
		}}
		rec := doRequest(searchRouter(f), "GET", "/kwic?q=quick", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp struct {
			Results []search.KwicHit `json:"results"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if resp.Results[0].Keyword != "" {
			t.Errorf("expected empty keyword on degraded hit, got %q", resp.Results[0].Keyword)
		}
		if resp.Results[0].Text == "" {
			t.Error("degraded hit must keep raw text")
		}
	})

	t.Run("missing_q_400", func(t *testing.T) {
		rec := doRequest(searchRouter(&fakeSearcher{}), "GET", "/kwic", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}

func TestHitsEndpoint(t *testing.T) {
	t.Run("groups_by_file_by_default", func(t *testing.T) {
		f := &fakeSearcher{groups: []search.GroupCount{
			{Group: "algebra-01", Count: 3},
			{Group: "algebra-02", Count: 2},
		}}
		rec := doRequest(searchRouter(f), "GET", "/hits?q=factor", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if f.gotGroupBy != search.GroupByFile {
			t.Errorf("expected default group_by=file, saw %q", f.gotGroupBy)
		}

		var resp struct {
			GroupBy string              `json:"group_by"`
			Groups  []search.GroupCount `json:"groups"`
			Total   int                 `json:"total"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if resp.Total != 5 {
			t.Errorf("expected summed total 5, got %d", resp.Total)
		}
		if len(resp.Groups) != 2 || resp.Groups[0].Count != 3 {
			t.Errorf("unexpected groups: %+v", resp.Groups)
		}
	})

	t.Run("group_by_speaker", func(t *testing.T) {
		f := &fakeSearcher{}
		rec := doRequest(searchRouter(f), "GET", "/hits?q=x&group_by=speaker", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if f.gotGroupBy != search.GroupBySpeaker {
			t.Errorf("expected group_by=speaker, saw %q", f.gotGroupBy)
		}
	})

	t.Run("invalid_group_by_400", func(t *testing.T) {
		rec := doRequest(searchRouter(&fakeSearcher{}), "GET", "/hits?q=x&group_by=color", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}
