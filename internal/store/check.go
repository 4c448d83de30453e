package store

import "context"

// IntegrityReport counts rows per table plus cross-table inconsistencies.
// A healthy store reports zero for every drift field.
type IntegrityReport struct {
	Transcripts     int `json:"transcripts"`
	Segments        int `json:"segments"`
	IndexedSegments int `json:"indexed_segments"`
	OrphanSegments  int `json:"orphan_segments"`
	StaleCounts     int `json:"stale_counts"`
}

// Healthy reports whether the audit found no inconsistencies.
func (r *IntegrityReport) Healthy() bool {
	return r.OrphanSegments == 0 && r.StaleCounts == 0 && r.Segments == r.IndexedSegments
}

// CheckIntegrity audits the store: per-table row counts, segments whose
// transcript row is gone, transcripts whose denormalized segment_count no
// longer matches the actual segment rows, and FTS index size. Drift means
// a write path bypassed the transactional import.
func (db *DB) CheckIntegrity(ctx context.Context) (*IntegrityReport, error) {
	var r IntegrityReport
	err := db.sql.QueryRowContext(ctx, `
		SELECT
			(SELECT count(*) FROM transcripts),
			(SELECT count(*) FROM segments),
			(SELECT count(*) FROM segments_fts),
			(SELECT count(*) FROM segments s
				WHERE NOT EXISTS (SELECT 1 FROM transcripts t WHERE t.id = s.transcript_id)),
			(SELECT count(*) FROM transcripts t
				WHERE t.segment_count <> (SELECT count(*) FROM segments s WHERE s.transcript_id = t.id))
	`).Scan(&r.Transcripts, &r.Segments, &r.IndexedSegments, &r.OrphanSegments, &r.StaleCounts)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
