package export

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/snarg/lectern/internal/model"
)

// ── Atomic writes ────────────────────────────────────────────────────

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()

	t.Run("writes_content", func(t *testing.T) {
		path := filepath.Join(dir, "out.txt")
		err := WriteFileAtomic(path, func(w io.Writer) error {
			_, err := io.WriteString(w, "hello")
			return err
		})
		if err != nil {
			t.Fatalf("write: %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read back: %v", err)
		}
		if string(data) != "hello" {
			t.Errorf("content = %q, want hello", data)
		}
	})

	t.Run("overwrites_existing", func(t *testing.T) {
		path := filepath.Join(dir, "out.txt")
		err := WriteFileAtomic(path, func(w io.Writer) error {
			_, err := io.WriteString(w, "second")
			return err
		})
		if err != nil {
			t.Fatalf("write: %v", err)
		}
		data, _ := os.ReadFile(path)
		if string(data) != "second" {
			t.Errorf("content = %q, want second", data)
		}
	})

	t.Run("failed_write_leaves_no_file", func(t *testing.T) {
		path := filepath.Join(dir, "never.txt")
		boom := errors.New("boom")
		err := WriteFileAtomic(path, func(io.Writer) error { return boom })
		if !errors.Is(err, boom) {
			t.Fatalf("err = %v, want wrapped boom", err)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Error("target file exists after failed write")
		}
	})

	t.Run("no_temp_litter", func(t *testing.T) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("readdir: %v", err)
		}
		for _, ent := range entries {
			if strings.HasSuffix(ent.Name(), ".tmp") {
				t.Errorf("leftover temp file %s", ent.Name())
			}
		}
	})

	t.Run("creates_parent_dirs", func(t *testing.T) {
		path := filepath.Join(dir, "a", "b", "deep.txt")
		err := WriteFileAtomic(path, func(w io.Writer) error {
			_, err := io.WriteString(w, "x")
			return err
		})
		if err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("nested file missing: %v", err)
		}
	})
}

// ── Per-transcript artifact set ──────────────────────────────────────

func TestWriteArtifacts(t *testing.T) {
	dir := t.TempDir()
	tf := &model.TranscriptFile{
		AudioPath: "/recordings/algebra-01.mp3",
		Language:  "en",
		Segments: []model.FileSegment{
			{Start: 0, End: 2, Speaker: "SPEAKER_00", Text: "Welcome to class everyone."},
			{Start: 2, End: 5, Text: "Today we will learn about math."},
		},
	}

	paths, err := WriteArtifacts(dir, "algebra-01", tf)
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	want := ArtifactPaths{
		JSON: filepath.Join(dir, "algebra-01.json"),
		SRT:  filepath.Join(dir, "algebra-01.srt"),
		VTT:  filepath.Join(dir, "algebra-01.vtt"),
		TXT:  filepath.Join(dir, "algebra-01.txt"),
	}
	if paths != want {
		t.Errorf("paths = %+v, want %+v", paths, want)
	}

	// The JSON artifact round-trips to the same document.
	data, err := os.ReadFile(paths.JSON)
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	var back model.TranscriptFile
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("reparse json: %v", err)
	}
	if back.AudioPath != tf.AudioPath || len(back.Segments) != 2 {
		t.Errorf("round-trip lost data: %+v", back)
	}

	srt, err := os.ReadFile(paths.SRT)
	if err != nil {
		t.Fatalf("read srt: %v", err)
	}
	if !strings.HasPrefix(string(srt), "1\n00:00:00,000 --> 00:00:02,000\n[SPEAKER_00] ") {
		t.Errorf("srt content unexpected:\n%s", srt)
	}

	vtt, err := os.ReadFile(paths.VTT)
	if err != nil {
		t.Fatalf("read vtt: %v", err)
	}
	if !strings.HasPrefix(string(vtt), "WEBVTT\n") {
		t.Errorf("vtt missing header:\n%s", vtt)
	}

	txt, err := os.ReadFile(paths.TXT)
	if err != nil {
		t.Fatalf("read txt: %v", err)
	}
	if !strings.Contains(string(txt), "[SPEAKER_00]\nWelcome to class everyone.") {
		t.Errorf("txt content unexpected:\n%s", txt)
	}
}

func TestExportCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "algebra-01.csv")
	if err := ExportCSV(path, classSegments()); err != nil {
		t.Fatalf("export: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !strings.HasPrefix(string(data), "start_time,end_time,speaker,text\n") {
		t.Errorf("csv header missing:\n%s", data)
	}
}
