package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalSource serves recordings straight from a directory on disk.
type LocalSource struct {
	dir  string
	exts map[string]bool
}

// NewLocalSource creates a source over a local recordings directory.
func NewLocalSource(dir string, exts map[string]bool) *LocalSource {
	return &LocalSource{dir: dir, exts: exts}
}

func (s *LocalSource) List(ctx context.Context) ([]Recording, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read recordings dir %s: %w", s.dir, err)
	}

	var recs []Recording
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !matchesExt(s.exts, name) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		recs = append(recs, Recording{Key: name, Size: info.Size(), ModTime: info.ModTime()})
	}

	sort.Slice(recs, func(i, j int) bool { return recs[i].Key < recs[j].Key })
	return recs, nil
}

// Fetch verifies the recording exists and returns its path. Local recordings
// are never copied.
func (s *LocalSource) Fetch(ctx context.Context, key string) (string, error) {
	path := filepath.Join(s.dir, filepath.FromSlash(key))
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("recording %s: %w", key, err)
	}
	return path, nil
}

func (s *LocalSource) Type() string { return "local" }

// Dir returns the recordings directory path.
func (s *LocalSource) Dir() string { return s.dir }

// saveStream writes r to path atomically (temp file + rename).
func saveStream(path string, r io.Reader) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".rec-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write: %w", err)
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
