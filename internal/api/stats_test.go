package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/snarg/lectern/internal/store"
)

func TestGetStats(t *testing.T) {
	db := seededDB(t)
	r := chi.NewRouter()
	NewStatsHandler(db).Routes(r)

	rec := doRequest(r, "GET", "/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp store.StatsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Transcripts != 2 || resp.Segments != 4 || resp.Speakers != 2 {
		t.Errorf("counts wrong: %+v", resp)
	}
	if resp.TotalSeconds != 18 {
		t.Errorf("expected 18 total seconds, got %v", resp.TotalSeconds)
	}
	if len(resp.Longest) != 2 || resp.Longest[0].Filename != "algebra-01" {
		t.Errorf("longest-first order wrong: %+v", resp.Longest)
	}
}
