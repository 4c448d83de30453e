package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/snarg/lectern/internal/model"
)

// The FTS5 table mirrors searchable segments row-for-row (rowid equals
// segments.id) and is maintained explicitly: every code path that writes
// segment rows runs inside a transaction that also rewrites the matching
// index entries. Filename, title, and speaker ride along as stored
// attributes so query paths do not need a join for them.

// replaceSegmentsTx deletes all segment rows for a transcript and inserts
// the new ordered list, renumbering ordinals 0..N-1 in input order. Index
// entries are dropped before the rows they mirror and recreated after.
func replaceSegmentsTx(ctx context.Context, tx *sql.Tx, transcriptID int64, filename, title string, segs []model.Segment) error {
	if err := deindexTranscriptTx(ctx, tx, transcriptID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM segments WHERE transcript_id = ?`, transcriptID); err != nil {
		return fmt.Errorf("delete segments: %w", err)
	}

	for i, seg := range segs {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO segments (transcript_id, segment_index, start_time, end_time, speaker, text, confidence)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, transcriptID, i, seg.Start, seg.End, nullString(seg.Speaker), seg.Text, seg.Confidence)
		if err != nil {
			return fmt.Errorf("insert segment %d: %w", i, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("insert segment %d id: %w", i, err)
		}
		if err := indexSegmentTx(ctx, tx, id, seg, filename, title); err != nil {
			return err
		}
	}
	return nil
}

// indexSegmentTx inserts the index entry for one segment row. Blank text is
// not indexed; such segments exist in the store but never match a query.
func indexSegmentTx(ctx context.Context, tx *sql.Tx, segmentID int64, seg model.Segment, filename, title string) error {
	if strings.TrimSpace(seg.Text) == "" {
		return nil
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO segments_fts (rowid, text, speaker, filename, title)
		VALUES (?, ?, ?, ?, ?)
	`, segmentID, seg.Text, nullString(seg.Speaker), filename, title)
	if err != nil {
		return fmt.Errorf("index segment %d: %w", segmentID, err)
	}
	return nil
}

func deindexTranscriptTx(ctx context.Context, tx *sql.Tx, transcriptID int64) error {
	_, err := tx.ExecContext(ctx, `
		DELETE FROM segments_fts
		WHERE rowid IN (SELECT id FROM segments WHERE transcript_id = ?)
	`, transcriptID)
	if err != nil {
		return fmt.Errorf("deindex transcript %d: %w", transcriptID, err)
	}
	return nil
}

// ReplaceSegments replaces the segment rows for a transcript in its own
// transaction. The import path composes this with the metadata upsert;
// this entry point serves callers that already hold a transcript id.
func (db *DB) ReplaceSegments(ctx context.Context, transcriptID int64, segs []model.Segment) error {
	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var filename, title string
	err = tx.QueryRowContext(ctx,
		`SELECT filename, title FROM transcripts WHERE id = ?`, transcriptID,
	).Scan(&filename, &title)
	if err != nil {
		return fmt.Errorf("lookup transcript %d: %w", transcriptID, err)
	}

	if err := replaceSegmentsTx(ctx, tx, transcriptID, filename, title, segs); err != nil {
		return err
	}
	return tx.Commit()
}

// IndexSegment writes the index entry for one stored segment, replacing
// any stale entry first so repeated calls converge.
func (db *DB) IndexSegment(ctx context.Context, segmentID int64) error {
	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM segments_fts WHERE rowid = ?`, segmentID); err != nil {
		return fmt.Errorf("deindex segment %d: %w", segmentID, err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO segments_fts (rowid, text, speaker, filename, title)
		SELECT s.id, s.text, s.speaker, t.filename, t.title
		FROM segments s
		JOIN transcripts t ON t.id = s.transcript_id
		WHERE s.id = ? AND TRIM(s.text) <> ''
	`, segmentID)
	if err != nil {
		return fmt.Errorf("index segment %d: %w", segmentID, err)
	}
	return tx.Commit()
}

// DeindexSegment removes a segment's index entry. Removing an id that was
// never indexed is a no-op.
func (db *DB) DeindexSegment(ctx context.Context, segmentID int64) error {
	_, err := db.sql.ExecContext(ctx, `DELETE FROM segments_fts WHERE rowid = ?`, segmentID)
	if err != nil {
		return fmt.Errorf("deindex segment %d: %w", segmentID, err)
	}
	return nil
}

// ReindexTranscript rebuilds the index entries for one transcript from its
// current segment rows. This is the recovery path for index drift; the
// import path maintains entries inline.
func (db *DB) ReindexTranscript(ctx context.Context, transcriptID int64) error {
	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := deindexTranscriptTx(ctx, tx, transcriptID); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO segments_fts (rowid, text, speaker, filename, title)
		SELECT s.id, s.text, s.speaker, t.filename, t.title
		FROM segments s
		JOIN transcripts t ON t.id = s.transcript_id
		WHERE s.transcript_id = ? AND TRIM(s.text) <> ''
	`, transcriptID)
	if err != nil {
		return fmt.Errorf("reindex transcript %d: %w", transcriptID, err)
	}
	return tx.Commit()
}

// RebuildSearchIndex drops and refills the entire index from the segment
// rows.
func (db *DB) RebuildSearchIndex(ctx context.Context) error {
	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM segments_fts`); err != nil {
		return fmt.Errorf("clear index: %w", err)
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO segments_fts (rowid, text, speaker, filename, title)
		SELECT s.id, s.text, s.speaker, t.filename, t.title
		FROM segments s
		JOIN transcripts t ON t.id = s.transcript_id
		WHERE TRIM(s.text) <> ''
	`)
	if err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	n, _ := res.RowsAffected()
	db.log.Info().Int64("entries", n).Msg("search index rebuilt")
	return nil
}
