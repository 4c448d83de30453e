package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/snarg/lectern/internal/model"
)

// Outcome reports what an import did to the store for one file.
type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeImported
	OutcomeUpdated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeImported:
		return "imported"
	case OutcomeUpdated:
		return "updated"
	default:
		return "skipped"
	}
}

// TranscriptUpsert is the metadata input for importing one transcript file.
// Filename is the source file stem and acts as the natural key.
type TranscriptUpsert struct {
	Filename    string
	Fingerprint string
	Title       string
	Language    string
	AudioPath   string
	JSONPath    string
	SRTPath     string
	VTTPath     string
	TXTPath     string
}

const transcriptColumns = `
	id, filename, file_hash, title, language, duration_seconds,
	segment_count, speaker_count,
	COALESCE(source_audio_path, ''),
	COALESCE(transcript_json_path, ''), COALESCE(transcript_srt_path, ''),
	COALESCE(transcript_vtt_path, ''), COALESCE(transcript_txt_path, ''),
	created_at, updated_at`

func scanTranscript(row rowScanner) (model.Transcript, error) {
	var t model.Transcript
	var created, updated float64
	err := row.Scan(
		&t.ID, &t.Filename, &t.Fingerprint, &t.Title, &t.Language, &t.Duration,
		&t.SegmentCount, &t.SpeakerCount,
		&t.AudioPath,
		&t.JSONPath, &t.SRTPath,
		&t.VTTPath, &t.TXTPath,
		&created, &updated,
	)
	if err != nil {
		return model.Transcript{}, err
	}
	t.CreatedAt = timeFromUnix(created)
	t.UpdatedAt = timeFromUnix(updated)
	return t, nil
}

// ImportTranscript imports one transcript file in a single transaction:
// 1) Looks up the existing row by filename and compares fingerprints
// 2) Skips unchanged files unless force is set
// 3) Inserts or updates the metadata row
// 4) Replaces the segment rows, renumbering ordinals 0..N-1 in input order
// 5) Rewrites the full-text index entries for the transcript
// Duration, segment count, and speaker count are derived from the segments.
func (db *DB) ImportTranscript(ctx context.Context, meta TranscriptUpsert, segs []model.Segment, force bool) (int64, Outcome, error) {
	if meta.Filename == "" {
		return 0, OutcomeSkipped, errors.New("import transcript: empty filename")
	}

	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return 0, OutcomeSkipped, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	id, isNew, skipped, err := upsertTranscriptTx(ctx, tx, meta, segs, force)
	if err != nil {
		return 0, OutcomeSkipped, err
	}
	if skipped {
		return id, OutcomeSkipped, nil
	}

	if err := replaceSegmentsTx(ctx, tx, id, meta.Filename, meta.Title, segs); err != nil {
		return 0, OutcomeSkipped, err
	}

	if err := tx.Commit(); err != nil {
		return 0, OutcomeSkipped, fmt.Errorf("commit tx: %w", err)
	}

	outcome := OutcomeUpdated
	if isNew {
		outcome = OutcomeImported
	}
	db.log.Debug().
		Str("filename", meta.Filename).
		Int64("transcript_id", id).
		Int("segments", len(segs)).
		Str("outcome", outcome.String()).
		Msg("transcript imported")
	return id, outcome, nil
}

// UpsertTranscript inserts or updates the metadata row only. On an existing
// filename with an identical fingerprint and force unset, it performs no
// write. Segment-derived counters are not touched; use ImportTranscript for
// the full replace.
func (db *DB) UpsertTranscript(ctx context.Context, meta TranscriptUpsert, force bool) (int64, bool, error) {
	if meta.Filename == "" {
		return 0, false, errors.New("upsert transcript: empty filename")
	}

	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	id, isNew, _, err := upsertTranscriptTx(ctx, tx, meta, nil, force)
	if err != nil {
		return 0, false, err
	}
	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("commit tx: %w", err)
	}
	return id, isNew, nil
}

// upsertTranscriptTx writes the metadata row inside tx. When segs is non-nil
// the derived counters are recomputed from it; a nil segs leaves the stored
// counters alone on update. skipped is true when the fingerprint matched and
// force was unset.
func upsertTranscriptTx(ctx context.Context, tx *sql.Tx, meta TranscriptUpsert, segs []model.Segment, force bool) (id int64, isNew, skipped bool, err error) {
	var prevHash string
	err = tx.QueryRowContext(ctx,
		`SELECT id, file_hash FROM transcripts WHERE filename = ?`, meta.Filename,
	).Scan(&id, &prevHash)
	switch {
	case err == nil:
		if prevHash == meta.Fingerprint && !force {
			return id, false, true, nil
		}
	case errors.Is(err, sql.ErrNoRows):
		id = 0
	default:
		return 0, false, false, fmt.Errorf("lookup transcript: %w", err)
	}

	now := unixSeconds(time.Now())
	duration, segCount, spkCount := deriveStats(segs)

	if id == 0 {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO transcripts (
				filename, file_hash, title, language, duration_seconds,
				segment_count, speaker_count, source_audio_path,
				transcript_json_path, transcript_srt_path,
				transcript_vtt_path, transcript_txt_path,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, meta.Filename, meta.Fingerprint, meta.Title, meta.Language, duration,
			segCount, spkCount, meta.AudioPath,
			meta.JSONPath, meta.SRTPath,
			meta.VTTPath, meta.TXTPath,
			now, now)
		if err != nil {
			return 0, false, false, fmt.Errorf("insert transcript: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return 0, false, false, fmt.Errorf("insert transcript id: %w", err)
		}
		return id, true, false, nil
	}

	if segs == nil {
		_, err = tx.ExecContext(ctx, `
			UPDATE transcripts SET
				file_hash = ?, title = ?, language = ?,
				source_audio_path = ?,
				transcript_json_path = ?, transcript_srt_path = ?,
				transcript_vtt_path = ?, transcript_txt_path = ?,
				updated_at = ?
			WHERE id = ?
		`, meta.Fingerprint, meta.Title, meta.Language,
			meta.AudioPath,
			meta.JSONPath, meta.SRTPath,
			meta.VTTPath, meta.TXTPath,
			now, id)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE transcripts SET
				file_hash = ?, title = ?, language = ?, duration_seconds = ?,
				segment_count = ?, speaker_count = ?, source_audio_path = ?,
				transcript_json_path = ?, transcript_srt_path = ?,
				transcript_vtt_path = ?, transcript_txt_path = ?,
				updated_at = ?
			WHERE id = ?
		`, meta.Fingerprint, meta.Title, meta.Language, duration,
			segCount, spkCount, meta.AudioPath,
			meta.JSONPath, meta.SRTPath,
			meta.VTTPath, meta.TXTPath,
			now, id)
	}
	if err != nil {
		return 0, false, false, fmt.Errorf("update transcript: %w", err)
	}
	return id, false, false, nil
}

func deriveStats(segs []model.Segment) (duration float64, segments, speakers int) {
	seen := make(map[string]struct{})
	for _, s := range segs {
		if s.End > duration {
			duration = s.End
		}
		if s.Speaker != nil && *s.Speaker != "" {
			seen[*s.Speaker] = struct{}{}
		}
	}
	return duration, len(segs), len(seen)
}

// GetTranscript returns the transcript row for a filename stem.
func (db *DB) GetTranscript(ctx context.Context, filename string) (*model.Transcript, error) {
	row := db.sql.QueryRowContext(ctx,
		`SELECT`+transcriptColumns+` FROM transcripts WHERE filename = ?`, filename)
	t, err := scanTranscript(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transcript %q: %w", filename, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTranscripts returns transcripts newest first. A limit <= 0 returns
// the full collection.
func (db *DB) ListTranscripts(ctx context.Context, limit int) ([]model.Transcript, error) {
	query := `SELECT` + transcriptColumns + ` FROM transcripts ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Transcript
	for rows.Next() {
		t, err := scanTranscript(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	if result == nil {
		result = []model.Transcript{}
	}
	return result, rows.Err()
}
