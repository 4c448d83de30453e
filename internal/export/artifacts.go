package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/snarg/lectern/internal/model"
)

// WriteFileAtomic streams write's output to a temp file in the target
// directory and renames it over path, so readers never observe a partial
// artifact.
func WriteFileAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".artifact-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// ArtifactPaths lists the files written for one transcript.
type ArtifactPaths struct {
	JSON string
	SRT  string
	VTT  string
	TXT  string
}

// WriteArtifacts renders a transcript document plus its subtitle and
// plain-text artifacts into dir, all named by stem. Every file is written
// atomically; the first failure aborts the set.
func WriteArtifacts(dir, stem string, tf *model.TranscriptFile) (ArtifactPaths, error) {
	segs := tf.ToSegments()
	paths := ArtifactPaths{
		JSON: filepath.Join(dir, stem+".json"),
		SRT:  filepath.Join(dir, stem+".srt"),
		VTT:  filepath.Join(dir, stem+".vtt"),
		TXT:  filepath.Join(dir, stem+".txt"),
	}

	err := WriteFileAtomic(paths.JSON, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(tf)
	})
	if err != nil {
		return ArtifactPaths{}, err
	}
	if err := WriteFileAtomic(paths.SRT, func(w io.Writer) error { return WriteSRT(w, segs) }); err != nil {
		return ArtifactPaths{}, err
	}
	if err := WriteFileAtomic(paths.VTT, func(w io.Writer) error { return WriteVTT(w, segs) }); err != nil {
		return ArtifactPaths{}, err
	}
	if err := WriteFileAtomic(paths.TXT, func(w io.Writer) error { return WriteTXT(w, segs) }); err != nil {
		return ArtifactPaths{}, err
	}
	return paths, nil
}

// ExportCSV writes a transcript's segments to a CSV file atomically.
func ExportCSV(path string, segs []model.Segment) error {
	return WriteFileAtomic(path, func(w io.Writer) error { return WriteCSV(w, segs) })
}
