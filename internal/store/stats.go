package store

import (
	"context"

	"github.com/snarg/lectern/internal/model"
)

// StatsResponse contains overall collection statistics.
type StatsResponse struct {
	Transcripts  int                `json:"transcripts"`
	Segments     int                `json:"segments"`
	Speakers     int                `json:"speakers"`
	TotalSeconds float64            `json:"total_duration_seconds"`
	TotalHours   float64            `json:"total_duration_hours"`
	Longest      []model.Transcript `json:"longest"`
}

// GetStats returns overall collection statistics, including the five
// longest transcripts by duration.
func (db *DB) GetStats(ctx context.Context) (*StatsResponse, error) {
	var s StatsResponse
	err := db.sql.QueryRowContext(ctx, `
		SELECT
			(SELECT count(*) FROM transcripts),
			(SELECT count(*) FROM segments),
			(SELECT count(DISTINCT speaker) FROM segments WHERE speaker IS NOT NULL AND speaker <> ''),
			COALESCE((SELECT sum(duration_seconds) FROM transcripts), 0)
	`).Scan(&s.Transcripts, &s.Segments, &s.Speakers, &s.TotalSeconds)
	if err != nil {
		return nil, err
	}
	s.TotalHours = s.TotalSeconds / 3600.0

	// Five longest by duration; filename breaks ties so the order is stable.
	rows, err := db.sql.QueryContext(ctx,
		`SELECT`+transcriptColumns+` FROM transcripts ORDER BY duration_seconds DESC, filename ASC LIMIT 5`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		t, err := scanTranscript(rows)
		if err != nil {
			return nil, err
		}
		s.Longest = append(s.Longest, t)
	}
	if s.Longest == nil {
		s.Longest = []model.Transcript{}
	}
	return &s, rows.Err()
}
