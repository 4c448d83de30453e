package export

import (
	"strings"
	"testing"

	"github.com/snarg/lectern/internal/model"
	"github.com/snarg/lectern/internal/search"
)

func sp(s string) *string { return &s }

func classSegments() []model.Segment {
	return []model.Segment{
		{Start: 0, End: 2, Speaker: sp("SPEAKER_00"), Text: "Welcome to class everyone."},
		{Start: 2, End: 5, Speaker: sp("SPEAKER_00"), Text: "Today we will learn about math."},
		{Start: 5, End: 7, Speaker: sp("SPEAKER_01"), Text: "Math is fun."},
		{Start: 7, End: 9, Text: "Time for the exit ticket."},
	}
}

// ── Timestamp formats ────────────────────────────────────────────────

func TestFormatTimes(t *testing.T) {
	tests := []struct {
		name    string
		seconds float64
		srt     string
		vtt     string
		clock   string
	}{
		{"zero", 0, "00:00:00,000", "00:00:00.000", "00:00:00"},
		{"whole_seconds", 2, "00:00:02,000", "00:00:02.000", "00:00:02"},
		{"millis", 3.5, "00:00:03,500", "00:00:03.500", "00:00:03"},
		{"minute_rollover", 65.25, "00:01:05,250", "00:01:05.250", "00:01:05"},
		{"hour_rollover", 3723.5, "01:02:03,500", "01:02:03.500", "01:02:03"},
		{"exact_hour", 3600, "01:00:00,000", "01:00:00.000", "01:00:00"},
		{"negative_clamped", -1, "00:00:00,000", "00:00:00.000", "00:00:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatSRTTime(tt.seconds); got != tt.srt {
				t.Errorf("FormatSRTTime(%v) = %q, want %q", tt.seconds, got, tt.srt)
			}
			if got := FormatVTTTime(tt.seconds); got != tt.vtt {
				t.Errorf("FormatVTTTime(%v) = %q, want %q", tt.seconds, got, tt.vtt)
			}
			if got := FormatClock(tt.seconds); got != tt.clock {
				t.Errorf("FormatClock(%v) = %q, want %q", tt.seconds, got, tt.clock)
			}
		})
	}
}

// ── Segment writers ──────────────────────────────────────────────────

func TestWriteSRT(t *testing.T) {
	var b strings.Builder
	if err := WriteSRT(&b, classSegments()); err != nil {
		t.Fatalf("write: %v", err)
	}

	want := "1\n" +
		"00:00:00,000 --> 00:00:02,000\n" +
		"[SPEAKER_00] Welcome to class everyone.\n" +
		"\n" +
		"2\n" +
		"00:00:02,000 --> 00:00:05,000\n" +
		"[SPEAKER_00] Today we will learn about math.\n" +
		"\n" +
		"3\n" +
		"00:00:05,000 --> 00:00:07,000\n" +
		"[SPEAKER_01] Math is fun.\n" +
		"\n" +
		"4\n" +
		"00:00:07,000 --> 00:00:09,000\n" +
		"Time for the exit ticket.\n" +
		"\n"
	if b.String() != want {
		t.Errorf("SRT output:\n%q\nwant:\n%q", b.String(), want)
	}
}

func TestWriteVTT(t *testing.T) {
	var b strings.Builder
	if err := WriteVTT(&b, classSegments()[:2]); err != nil {
		t.Fatalf("write: %v", err)
	}

	want := "WEBVTT\n" +
		"\n" +
		"00:00:00.000 --> 00:00:02.000\n" +
		"[SPEAKER_00] Welcome to class everyone.\n" +
		"\n" +
		"00:00:02.000 --> 00:00:05.000\n" +
		"[SPEAKER_00] Today we will learn about math.\n" +
		"\n"
	if b.String() != want {
		t.Errorf("VTT output:\n%q\nwant:\n%q", b.String(), want)
	}
}

func TestWriteTXT(t *testing.T) {
	var b strings.Builder
	if err := WriteTXT(&b, classSegments()); err != nil {
		t.Fatalf("write: %v", err)
	}

	// A heading per speaker change; the unattributed segment continues
	// under the last heading.
	want := "\n\n[SPEAKER_00]\n" +
		"Welcome to class everyone. Today we will learn about math. " +
		"\n\n[SPEAKER_01]\n" +
		"Math is fun. Time for the exit ticket. "
	if b.String() != want {
		t.Errorf("TXT output:\n%q\nwant:\n%q", b.String(), want)
	}
}

func TestWriteTXTNoSpeakers(t *testing.T) {
	var b strings.Builder
	segs := []model.Segment{
		{Start: 0, End: 2, Text: "One."},
		{Start: 2, End: 4, Text: "Two."},
	}
	if err := WriteTXT(&b, segs); err != nil {
		t.Fatalf("write: %v", err)
	}
	if b.String() != "One. Two. " {
		t.Errorf("TXT output = %q, want running text without headings", b.String())
	}
}

func TestWriteCSV(t *testing.T) {
	var b strings.Builder
	if err := WriteCSV(&b, classSegments()); err != nil {
		t.Fatalf("write: %v", err)
	}

	want := "start_time,end_time,speaker,text\n" +
		"0,2,SPEAKER_00,Welcome to class everyone.\n" +
		"2,5,SPEAKER_00,Today we will learn about math.\n" +
		"5,7,SPEAKER_01,Math is fun.\n" +
		"7,9,N/A,Time for the exit ticket.\n"
	if b.String() != want {
		t.Errorf("CSV output:\n%q\nwant:\n%q", b.String(), want)
	}
}

func TestWriteCSVQuotesCommas(t *testing.T) {
	var b strings.Builder
	segs := []model.Segment{
		{Start: 0, End: 1.5, Speaker: sp("SPEAKER_00"), Text: "First, a question."},
	}
	if err := WriteCSV(&b, segs); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(b.String(), `"First, a question."`) {
		t.Errorf("comma-bearing text not quoted: %q", b.String())
	}
	if !strings.Contains(b.String(), "0,1.5,") {
		t.Errorf("fractional time mangled: %q", b.String())
	}
}

// ── Search hit export ────────────────────────────────────────────────

func TestWriteHitsCSV(t *testing.T) {
	var b strings.Builder
	hits := []search.Hit{
		{Filename: "algebra-01", Speaker: sp("SPEAKER_01"), Text: "Math is fun.", Start: 5, End: 7},
		{Filename: "geometry-02", Text: "Triangles today.", Start: 0, End: 3.25},
	}
	if err := WriteHitsCSV(&b, hits); err != nil {
		t.Fatalf("write: %v", err)
	}

	want := "file,speaker,start_s,end_s,text\n" +
		"algebra-01,SPEAKER_01,5.000,7.000,Math is fun.\n" +
		"geometry-02,,0.000,3.250,Triangles today.\n"
	if b.String() != want {
		t.Errorf("hits CSV:\n%q\nwant:\n%q", b.String(), want)
	}
}
