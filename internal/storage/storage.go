package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/lectern/internal/config"
)

// Source lists and fetches recordings for the transcription pipeline.
type Source interface {
	// List returns the available recordings sorted by key.
	List(ctx context.Context) ([]Recording, error)

	// Fetch makes a recording available on local disk and returns its path.
	Fetch(ctx context.Context, key string) (string, error)

	// Type returns "local" or "s3".
	Type() string
}

// Recording describes one source recording.
type Recording struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// Stem returns the recording's filename without directory or extension.
func (r Recording) Stem() string {
	base := filepath.Base(r.Key)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// New creates a recording source based on config. Returns the source and
// optional background services (cache pruner) that the caller must Start/Stop.
// Returns an error if S3 is configured but unreachable.
func New(cfg *config.Config, log zerolog.Logger) (Source, []BackgroundService, error) {
	exts := ParseExtList(cfg.IncludeExt)

	if !cfg.S3.Enabled() {
		return NewLocalSource(cfg.RecordingsDir, exts), nil, nil
	}

	src, err := NewS3Source(cfg.S3, cfg.CacheDir, exts, log)
	if err != nil {
		return nil, nil, fmt.Errorf("S3 init failed: %w", err)
	}

	// Startup validation: verify credentials and bucket access
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := src.HeadBucket(ctx); err != nil {
		return nil, nil, fmt.Errorf("S3 startup check failed (bucket=%q endpoint=%q): %w",
			cfg.S3.Bucket, cfg.S3.Endpoint, err)
	}
	log.Info().Str("bucket", cfg.S3.Bucket).Str("endpoint", cfg.S3.Endpoint).Msg("S3 connection verified")

	var services []BackgroundService
	if cfg.S3.CacheRetention > 0 || cfg.S3.CacheMaxGB > 0 {
		services = append(services, NewCachePruner(cfg.CacheDir, cfg.S3.CacheRetention, cfg.S3.CacheMaxGB, src, log))
	}

	return src, services, nil
}

// BackgroundService is a stoppable background goroutine.
type BackgroundService interface {
	Start()
	Stop()
}

// ParseExtList splits a comma-separated extension list (".mp3,.wav") into a
// lowercase lookup set. Returns nil for an empty list, which matches any file.
func ParseExtList(s string) map[string]bool {
	exts := make(map[string]bool)
	for _, ext := range strings.Split(s, ",") {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[ext] = true
	}
	if len(exts) == 0 {
		return nil
	}
	return exts
}

func matchesExt(exts map[string]bool, name string) bool {
	if exts == nil {
		return true
	}
	return exts[strings.ToLower(filepath.Ext(name))]
}
