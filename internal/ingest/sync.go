// Package ingest reconciles transcript files on disk with the persisted
// store. A file is reimported only when its content fingerprint changes, so
// re-running a sync over an unchanged collection is a no-op. The package
// also carries the directory watcher and the event bus that feeds SSE
// subscribers.
package ingest

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/snarg/lectern/internal/metrics"
	"github.com/snarg/lectern/internal/model"
	"github.com/snarg/lectern/internal/store"
)

// Fingerprint returns the MD5 hex digest of a transcript file's raw bytes.
// The digest detects content changes between sync runs; it is not a
// security boundary.
func Fingerprint(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// ParseTranscriptFile decodes a transcript document. A document without a
// segments field is rejected: every other field is optional, but a file
// carrying no utterance list at all is a truncated or foreign JSON file,
// not ASR output.
func ParseTranscriptFile(data []byte) (*model.TranscriptFile, error) {
	var tf model.TranscriptFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parsing transcript: %w", err)
	}
	if tf.Segments == nil {
		return nil, errors.New("parsing transcript: missing segments field")
	}
	return &tf, nil
}

// Report counts per-file outcomes of a directory sync.
type Report struct {
	Imported int `json:"imported"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Errors   int `json:"errors"`
}

// Total returns the number of files examined.
func (r Report) Total() int { return r.Imported + r.Updated + r.Skipped + r.Errors }

// Syncer imports transcript files into the store. An optional event bus
// receives an event per imported or updated file.
type Syncer struct {
	db  *store.DB
	bus *EventBus
	log zerolog.Logger
}

// NewSyncer creates a syncer. bus may be nil when no one listens.
func NewSyncer(db *store.DB, bus *EventBus, log zerolog.Logger) *Syncer {
	return &Syncer{
		db:  db,
		bus: bus,
		log: log.With().Str("component", "sync").Logger(),
	}
}

// SyncFile imports one transcript file:
// 1) Fingerprints the raw bytes and short-circuits to skipped when the
//    stored transcript carries the same digest, unless force is set.
//    Unchanged files are never reparsed.
// 2) Parses the document and derives segment rows.
// 3) Resolves sibling artifacts (.srt/.vtt/.txt next to the source file).
// 4) Imports metadata, segments, and index entries in one transaction.
// The transcript's identity is the filename stem: "algebra-01.json"
// becomes "algebra-01".
func (s *Syncer) SyncFile(ctx context.Context, path string, force bool) (store.Outcome, error) {
	outcome, err := s.syncFile(ctx, path, force)
	if err != nil {
		metrics.SyncOutcomesTotal.WithLabelValues("error").Inc()
	} else {
		metrics.SyncOutcomesTotal.WithLabelValues(outcome.String()).Inc()
	}
	return outcome, err
}

func (s *Syncer) syncFile(ctx context.Context, path string, force bool) (store.Outcome, error) {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	data, err := os.ReadFile(path)
	if err != nil {
		return store.OutcomeSkipped, fmt.Errorf("reading %s: %w", path, err)
	}
	fp := Fingerprint(data)

	existing, err := s.db.GetTranscript(ctx, stem)
	switch {
	case err == nil:
		if existing.Fingerprint == fp && !force {
			s.log.Debug().Str("filename", stem).Msg("Unchanged, skipping")
			return store.OutcomeSkipped, nil
		}
	case errors.Is(err, store.ErrNotFound):
		// first sight of this file
	default:
		return store.OutcomeSkipped, err
	}

	tf, err := ParseTranscriptFile(data)
	if err != nil {
		return store.OutcomeSkipped, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	segs := tf.ToSegments()

	meta := store.TranscriptUpsert{
		Filename:    stem,
		Fingerprint: fp,
		Title:       GenerateTitle(stem),
		Language:    tf.Language,
		AudioPath:   tf.AudioPath,
		JSONPath:    path,
		SRTPath:     siblingPath(path, ".srt"),
		VTTPath:     siblingPath(path, ".vtt"),
		TXTPath:     siblingPath(path, ".txt"),
	}

	id, outcome, err := s.db.ImportTranscript(ctx, meta, segs, force)
	if err != nil {
		return store.OutcomeSkipped, err
	}

	if outcome != store.OutcomeSkipped {
		s.log.Info().
			Str("filename", stem).
			Int("segments", len(segs)).
			Str("outcome", outcome.String()).
			Msg("Transcript synced")
		s.bus.Publish(EventData{
			Type:     "transcript",
			Outcome:  outcome.String(),
			Filename: stem,
			Payload: map[string]any{
				"transcript_id": id,
				"filename":      stem,
				"segments":      len(segs),
			},
		})
	}
	return outcome, nil
}

// SyncDir imports every transcript file directly under dir, in filename
// order. A file that fails to read or parse is counted as an error and does
// not stop the batch. Subdirectories are not descended into.
func (s *Syncer) SyncDir(ctx context.Context, dir string, force bool) (Report, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Report{}, fmt.Errorf("reading transcript dir: %w", err)
	}

	var rep Report
	for _, ent := range entries {
		if ent.IsDir() || !IsTranscriptName(ent.Name()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return rep, err
		}

		outcome, err := s.SyncFile(ctx, filepath.Join(dir, ent.Name()), force)
		if err != nil {
			rep.Errors++
			s.log.Error().Err(err).Str("file", ent.Name()).Msg("Transcript sync failed")
			continue
		}
		switch outcome {
		case store.OutcomeImported:
			rep.Imported++
		case store.OutcomeUpdated:
			rep.Updated++
		default:
			rep.Skipped++
		}
	}

	s.log.Info().
		Str("dir", dir).
		Int("imported", rep.Imported).
		Int("updated", rep.Updated).
		Int("skipped", rep.Skipped).
		Int("errors", rep.Errors).
		Msg("Sync complete")
	s.bus.Publish(EventData{Type: "sync", Outcome: "complete", Payload: rep})
	return rep, nil
}

// IsTranscriptName reports whether a directory entry looks like a source
// transcript. Summary and diarization sidecars can live in the same
// directory and are excluded, otherwise every sync run would report them
// as parse errors.
func IsTranscriptName(name string) bool {
	if !strings.HasSuffix(name, ".json") {
		return false
	}
	if strings.HasSuffix(name, ".summary.json") || strings.HasSuffix(name, ".diarization.json") || name == "all_summaries.json" {
		return false
	}
	return true
}

// siblingPath returns the path of an artifact next to the source file
// ("talk.json" + ".srt" gives "talk.srt"), or "" when no such file exists.
func siblingPath(src, ext string) string {
	p := strings.TrimSuffix(src, filepath.Ext(src)) + ext
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}
