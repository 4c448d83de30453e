package transcribe

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lecture.mp3")
	if err := os.WriteFile(path, []byte("fake-audio-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestWhisperClientTranscribe(t *testing.T) {
	var gotForm url.Values
	var gotFilename string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotForm = url.Values(r.MultipartForm.Value)
		if _, hdr, err := r.FormFile("file"); err == nil {
			gotFilename = hdr.Filename
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"text": " Welcome to class. Today we factor. ",
			"language": "en",
			"duration": 12.5,
			"segments": [
				{"start": 0, "end": 2.0, "text": " Welcome to class."},
				{"start": 2.0, "end": 5.5, "text": " Today we factor."}
			]
		}`)
	}))
	defer srv.Close()

	client := NewWhisperClient(srv.URL, "large-v3", 5*time.Second)
	audio := writeAudio(t)

	resp, err := client.Transcribe(context.Background(), audio, TranscribeOpts{})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	// ── response parsing ──

	if resp.Text != "Welcome to class. Today we factor." {
		t.Errorf("Text = %q, want trimmed text", resp.Text)
	}
	if resp.Language != "en" {
		t.Errorf("Language = %q, want en", resp.Language)
	}
	if resp.Duration != 12.5 {
		t.Errorf("Duration = %v, want 12.5", resp.Duration)
	}
	if len(resp.Segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(resp.Segments))
	}
	if resp.Segments[1].Start != 2.0 || resp.Segments[1].End != 5.5 {
		t.Errorf("segment 1 = %v..%v, want 2..5.5", resp.Segments[1].Start, resp.Segments[1].End)
	}

	// ── request form fields ──

	if gotFilename != "lecture.mp3" {
		t.Errorf("upload filename = %q, want lecture.mp3", gotFilename)
	}
	if got := gotForm.Get("model"); got != "large-v3" {
		t.Errorf("model = %q, want large-v3", got)
	}
	if got := gotForm.Get("language"); got != "en" {
		t.Errorf("language = %q, want en (default)", got)
	}
	if got := gotForm.Get("temperature"); got != "0.00" {
		t.Errorf("temperature = %q, want 0.00", got)
	}
	if got := gotForm.Get("response_format"); got != "verbose_json" {
		t.Errorf("response_format = %q, want verbose_json", got)
	}
	if got := gotForm.Get("timestamp_granularities[]"); got != "segment" {
		t.Errorf("timestamp_granularities = %q, want segment", got)
	}
	// Extended params should be absent at their zero values
	for _, field := range []string{"prompt", "hotwords", "beam_size", "condition_on_previous_text", "vad_filter"} {
		if _, ok := gotForm[field]; ok {
			t.Errorf("field %q should be omitted at zero value", field)
		}
	}
}

func TestWhisperClientExtendedParams(t *testing.T) {
	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseMultipartForm(32 << 20)
		gotForm = url.Values(r.MultipartForm.Value)
		fmt.Fprint(w, `{"text":"ok","segments":[]}`)
	}))
	defer srv.Close()

	cond := false
	client := NewWhisperClient(srv.URL, "large-v3", 5*time.Second)
	_, err := client.Transcribe(context.Background(), writeAudio(t), TranscribeOpts{
		Temperature:             0.2,
		Language:                "de",
		Prompt:                  "Algebra, Bruchrechnung",
		Hotwords:                "Nenner",
		BeamSize:                5,
		ConditionOnPreviousText: &cond,
		VadFilter:               true,
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	want := map[string]string{
		"language":                   "de",
		"temperature":                "0.20",
		"prompt":                     "Algebra, Bruchrechnung",
		"hotwords":                   "Nenner",
		"beam_size":                  "5",
		"condition_on_previous_text": "false",
		"vad_filter":                 "true",
	}
	for field, val := range want {
		if got := gotForm.Get(field); got != val {
			t.Errorf("%s = %q, want %q", field, got, val)
		}
	}
}

func TestWhisperClientErrors(t *testing.T) {
	t.Run("api_error_includes_status_and_body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not loaded", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		client := NewWhisperClient(srv.URL, "large-v3", 5*time.Second)
		_, err := client.Transcribe(context.Background(), writeAudio(t), TranscribeOpts{})
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "status 503") || !strings.Contains(err.Error(), "model not loaded") {
			t.Errorf("err = %v, want status and body", err)
		}
	})

	t.Run("bad_json_response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "<html>not json</html>")
		}))
		defer srv.Close()

		client := NewWhisperClient(srv.URL, "large-v3", 5*time.Second)
		if _, err := client.Transcribe(context.Background(), writeAudio(t), TranscribeOpts{}); err == nil {
			t.Error("expected decode error")
		}
	})

	t.Run("missing_audio_file", func(t *testing.T) {
		client := NewWhisperClient("http://unused", "large-v3", time.Second)
		_, err := client.Transcribe(context.Background(), "/nonexistent/file.mp3", TranscribeOpts{})
		if err == nil || !strings.Contains(err.Error(), "open audio file") {
			t.Errorf("err = %v, want open audio file", err)
		}
	})
}

func TestWhisperClientIdentity(t *testing.T) {
	client := NewWhisperClient("http://localhost", "large-v3", time.Second)
	if client.Name() != "whisper" {
		t.Errorf("Name = %q, want whisper", client.Name())
	}
	if client.Model() != "large-v3" {
		t.Errorf("Model = %q, want large-v3", client.Model())
	}
}
