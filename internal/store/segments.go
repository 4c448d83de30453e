package store

import (
	"context"
	"database/sql"

	"github.com/snarg/lectern/internal/model"
)

const segmentColumns = `id, transcript_id, segment_index, start_time, end_time, speaker, text, confidence`

func scanSegment(row rowScanner) (model.Segment, error) {
	var s model.Segment
	var speaker sql.NullString
	err := row.Scan(&s.ID, &s.TranscriptID, &s.Index, &s.Start, &s.End, &speaker, &s.Text, &s.Confidence)
	if err != nil {
		return model.Segment{}, err
	}
	s.Speaker = stringPtr(speaker)
	return s, nil
}

// GetSegments returns a transcript's segments in ordinal order.
func (db *DB) GetSegments(ctx context.Context, transcriptID int64) ([]model.Segment, error) {
	rows, err := db.sql.QueryContext(ctx,
		`SELECT `+segmentColumns+` FROM segments WHERE transcript_id = ? ORDER BY segment_index`,
		transcriptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Segment
	for rows.Next() {
		s, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if result == nil {
		result = []model.Segment{}
	}
	return result, rows.Err()
}

// SegmentFilter specifies filters for listing segments.
type SegmentFilter struct {
	TranscriptID int64
	Speaker      string
	Limit        int
}

// ListSegments returns segments matching the filter, ordered by transcript
// then ordinal.
func (db *DB) ListSegments(ctx context.Context, filter SegmentFilter) ([]model.Segment, error) {
	qb := newQueryBuilder()
	if filter.TranscriptID != 0 {
		qb.Add("transcript_id = ?", filter.TranscriptID)
	}
	if filter.Speaker != "" {
		qb.Add("speaker = ?", filter.Speaker)
	}

	query := `SELECT ` + segmentColumns + ` FROM segments` + qb.WhereClause() +
		` ORDER BY transcript_id, segment_index`
	args := qb.Args()
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := db.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Segment
	for rows.Next() {
		s, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if result == nil {
		result = []model.Segment{}
	}
	return result, rows.Err()
}
