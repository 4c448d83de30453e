package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func doRequest(h http.Handler, method, target string, hdr map[string]string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	h.ServeHTTP(rec, req)
	return rec
}

// ── request id ──

func TestRequestID(t *testing.T) {
	t.Run("generates_id_when_missing", func(t *testing.T) {
		rec := doRequest(RequestID(okHandler), "GET", "/", nil)
		id := rec.Header().Get("X-Request-ID")
		if len(id) != 16 {
			t.Errorf("expected 16-char hex ID, got %q (len %d)", id, len(id))
		}
	})

	t.Run("preserves_provided_id", func(t *testing.T) {
		rec := doRequest(RequestID(okHandler), "GET", "/", map[string]string{"X-Request-ID": "req-42"})
		if got := rec.Header().Get("X-Request-ID"); got != "req-42" {
			t.Errorf("expected preserved ID, got %q", got)
		}
	})
}

// ── cors ──

func TestCORSWithOrigins(t *testing.T) {
	t.Run("empty_origins_allows_all", func(t *testing.T) {
		rec := doRequest(CORSWithOrigins(nil)(okHandler), "GET", "/", nil)
		if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Error("missing Access-Control-Allow-Origin: *")
		}
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("allowed_origin_echoed", func(t *testing.T) {
		mw := CORSWithOrigins([]string{"https://notes.example"})
		rec := doRequest(mw(okHandler), "GET", "/", map[string]string{"Origin": "https://notes.example"})
		if rec.Header().Get("Access-Control-Allow-Origin") != "https://notes.example" {
			t.Error("expected origin echo")
		}
		if rec.Header().Get("Vary") != "Origin" {
			t.Error("expected Vary: Origin")
		}
	})

	t.Run("disallowed_origin_served_without_headers", func(t *testing.T) {
		mw := CORSWithOrigins([]string{"https://notes.example"})
		rec := doRequest(mw(okHandler), "GET", "/", map[string]string{"Origin": "https://other.example"})
		if rec.Header().Get("Access-Control-Allow-Origin") != "" {
			t.Error("should not set CORS header for disallowed origin")
		}
		if rec.Code != http.StatusOK {
			t.Errorf("request should still be served, got %d", rec.Code)
		}
	})

	t.Run("disallowed_origin_preflight_403", func(t *testing.T) {
		mw := CORSWithOrigins([]string{"https://notes.example"})
		rec := doRequest(mw(okHandler), "OPTIONS", "/", map[string]string{"Origin": "https://other.example"})
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("preflight_204_skips_inner", func(t *testing.T) {
		called := false
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
		rec := doRequest(CORSWithOrigins(nil)(inner), "OPTIONS", "/", nil)
		if rec.Code != http.StatusNoContent {
			t.Errorf("expected 204, got %d", rec.Code)
		}
		if called {
			t.Error("inner handler should not run on preflight")
		}
		if rec.Header().Get("Access-Control-Allow-Methods") == "" {
			t.Error("expected Allow-Methods on preflight")
		}
	})
}

// ── rate limiting ──

func TestRateLimiter(t *testing.T) {
	t.Run("blocks_after_burst", func(t *testing.T) {
		// 1 req/s with burst 2: the third immediate request is refused.
		handler := RateLimiter(1, 2)(okHandler)
		for i := 0; i < 2; i++ {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = "192.0.2.1:4000"
			handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusOK {
				t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
			}
		}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "192.0.2.1:4000"
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusTooManyRequests {
			t.Errorf("expected 429, got %d", rec.Code)
		}
		if rec.Header().Get("Retry-After") != "1" {
			t.Error("expected Retry-After header")
		}
	})

	t.Run("buckets_are_per_ip", func(t *testing.T) {
		handler := RateLimiter(1, 1)(okHandler)

		exhaust := httptest.NewRequest("GET", "/", nil)
		exhaust.RemoteAddr = "192.0.2.10:1"
		handler.ServeHTTP(httptest.NewRecorder(), exhaust)

		rec := httptest.NewRecorder()
		again := httptest.NewRequest("GET", "/", nil)
		again.RemoteAddr = "192.0.2.10:1"
		handler.ServeHTTP(rec, again)
		if rec.Code != http.StatusTooManyRequests {
			t.Errorf("same IP second request: expected 429, got %d", rec.Code)
		}

		rec2 := httptest.NewRecorder()
		other := httptest.NewRequest("GET", "/", nil)
		other.RemoteAddr = "192.0.2.11:1"
		handler.ServeHTTP(rec2, other)
		if rec2.Code != http.StatusOK {
			t.Errorf("other IP: expected 200, got %d", rec2.Code)
		}
	})
}

// ── auth ──

func TestBearerAuth(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		target string
		header string
		want   int
	}{
		{"empty_token_passes_all", "", "/", "", http.StatusOK},
		{"valid_bearer_header", "s3cret", "/", "Bearer s3cret", http.StatusOK},
		{"wrong_bearer_header", "s3cret", "/", "Bearer nope", http.StatusUnauthorized},
		{"missing_auth", "s3cret", "/", "", http.StatusUnauthorized},
		{"query_param_fallback", "s3cret", "/?token=s3cret", "", http.StatusOK},
		{"wrong_query_param", "s3cret", "/?token=nope", "", http.StatusUnauthorized},
		{"non_bearer_scheme", "s3cret", "/", "Basic czNjcmV0", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hdr := map[string]string{}
			if tt.header != "" {
				hdr["Authorization"] = tt.header
			}
			rec := doRequest(BearerAuth(tt.token)(okHandler), "GET", tt.target, hdr)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestRequireAuth(t *testing.T) {
	t.Run("unconfigured_token_403", func(t *testing.T) {
		rec := doRequest(RequireAuth("")(okHandler), "POST", "/", nil)
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("configured_token_passes_through", func(t *testing.T) {
		rec := doRequest(RequireAuth("s3cret")(okHandler), "POST", "/", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})
}

// ── panic recovery ──

func TestRecoverer(t *testing.T) {
	t.Run("normal_request_passes_through", func(t *testing.T) {
		rec := doRequest(Recoverer(okHandler), "GET", "/", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("panic_produces_500_json", func(t *testing.T) {
		panicker := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		})
		rec := doRequest(Recoverer(panicker), "GET", "/", nil)
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %q", ct)
		}
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("response is not valid JSON: %v", err)
		}
		if body["error"] != "internal server error" {
			t.Errorf("unexpected body: %v", body)
		}
	})
}
