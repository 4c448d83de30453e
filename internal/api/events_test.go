package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/snarg/lectern/internal/ingest"
)

func eventsRouter(bus *ingest.EventBus) http.Handler {
	r := chi.NewRouter()
	NewEventsHandler(bus).Routes(r)
	return r
}

func TestStreamEventsUnavailable(t *testing.T) {
	rec := doRequest(eventsRouter(nil), "GET", "/events", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestStreamEventsReplay(t *testing.T) {
	bus := ingest.NewEventBus(16)
	bus.Publish(ingest.EventData{Type: "transcript", Outcome: "imported", Filename: "algebra-01"})
	bus.Publish(ingest.EventData{Type: "transcript", Outcome: "updated", Filename: "biology-01"})
	bus.Publish(ingest.EventData{Type: "sync", Outcome: "complete"})

	all := bus.ReplaySince("", ingest.EventFilter{})
	if len(all) != 3 {
		t.Fatalf("expected 3 buffered events, got %d", len(all))
	}

	// A canceled request context stops the stream right after replay.
	req := httptest.NewRequest("GET", "/events", nil)
	req.Header.Set("Last-Event-ID", all[0].ID)
	ctx, cancel := context.WithCancel(req.Context())
	cancel()
	rec := httptest.NewRecorder()
	eventsRouter(bus).ServeHTTP(rec, req.WithContext(ctx))

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected text/event-stream, got %q", ct)
	}
	body := rec.Body.String()
	if strings.Contains(body, `"filename":"algebra-01"`) {
		t.Error("event before Last-Event-ID should not be replayed")
	}
	if !strings.Contains(body, `"filename":"biology-01"`) {
		t.Errorf("missing replayed transcript event:\n%s", body)
	}
	if !strings.Contains(body, "event: sync\n") {
		t.Errorf("missing replayed sync event:\n%s", body)
	}
	if !strings.Contains(body, "id: "+all[1].ID+"\n") {
		t.Error("replayed events must carry their SSE ids")
	}
}

func TestStreamEventsTypeFilter(t *testing.T) {
	bus := ingest.NewEventBus(16)
	bus.Publish(ingest.EventData{Type: "transcript", Outcome: "imported", Filename: "algebra-01"})
	bus.Publish(ingest.EventData{Type: "sync", Outcome: "complete"})

	all := bus.ReplaySince("", ingest.EventFilter{})

	req := httptest.NewRequest("GET", "/events?types=sync", nil)
	req.Header.Set("Last-Event-ID", "bogus-id")
	ctx, cancel := context.WithCancel(req.Context())
	cancel()
	rec := httptest.NewRecorder()
	eventsRouter(bus).ServeHTTP(rec, req.WithContext(ctx))

	body := rec.Body.String()
	if strings.Contains(body, "event: transcript\n") {
		t.Errorf("type filter leaked a transcript event:\n%s", body)
	}
	// An unknown Last-Event-ID replays everything still buffered.
	if !strings.Contains(body, "id: "+all[1].ID+"\n") {
		t.Errorf("missing sync event after unknown-id fallback:\n%s", body)
	}
}

func TestStreamEventsLive(t *testing.T) {
	bus := ingest.NewEventBus(16)

	req := httptest.NewRequest("GET", "/events", nil)
	ctx, cancel := context.WithCancel(req.Context())
	rec := httptest.NewRecorder()

	go func() {
		time.Sleep(50 * time.Millisecond)
		bus.Publish(ingest.EventData{Type: "transcript", Outcome: "imported", Filename: "chem-01"})
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	eventsRouter(bus).ServeHTTP(rec, req.WithContext(ctx))

	body := rec.Body.String()
	if !strings.Contains(body, `"filename":"chem-01"`) {
		t.Errorf("live event not delivered:\n%s", body)
	}
}
