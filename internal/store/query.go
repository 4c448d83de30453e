package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/snarg/lectern/internal/model"
	"github.com/snarg/lectern/internal/search"
)

// ftsQuote wraps s as an FTS5 string literal, doubling embedded quotes, so
// user text never reaches the MATCH parser as syntax.
func ftsQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// matchExpr converts a parsed query to an FTS5 MATCH expression. A phrase
// becomes a single quoted string (adjacent-token semantics); a keyword
// query becomes an OR union of its tokens.
func matchExpr(q search.Query) string {
	if q.IsPhrase() {
		return ftsQuote(q.Phrase)
	}
	quoted := make([]string, len(q.Terms))
	for i, t := range q.Terms {
		quoted[i] = ftsQuote(t)
	}
	return strings.Join(quoted, " OR ")
}

// Search implements search.Searcher over the persisted index. Ranking is
// bm25 best-first; ties fall back to segment id, which is insertion order.
func (db *DB) Search(ctx context.Context, query string, limit int) ([]search.Hit, error) {
	q, err := search.Parse(query)
	if err != nil {
		return nil, err
	}
	limit = search.ClampLimit(limit)

	rows, err := db.sql.QueryContext(ctx, `
		SELECT s.id, s.transcript_id, segments_fts.filename, segments_fts.title,
			segments_fts.speaker, s.text,
			snippet(segments_fts, 0, '<mark>', '</mark>', '...', 32),
			s.start_time, s.end_time, s.confidence, t.duration_seconds
		FROM segments_fts
		JOIN segments s ON s.id = segments_fts.rowid
		JOIN transcripts t ON t.id = s.transcript_id
		WHERE segments_fts MATCH ?
		ORDER BY rank, s.id
		LIMIT ?
	`, matchExpr(q), limit)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	var hits []search.Hit
	for rows.Next() {
		var h search.Hit
		var speaker sql.NullString
		if err := rows.Scan(
			&h.SegmentID, &h.TranscriptID, &h.Filename, &h.Title,
			&speaker, &h.Text, &h.Snippet,
			&h.Start, &h.End, &h.Confidence, &h.Duration,
		); err != nil {
			return nil, err
		}
		h.Speaker = stringPtr(speaker)
		hits = append(hits, h)
	}
	if hits == nil {
		hits = []search.Hit{}
	}
	return hits, rows.Err()
}

// AggregateHits groups matching segments by filename or speaker, ordered by
// descending count with ties broken by group value ascending. Unattributed
// segments group under model.UnknownSpeaker. The stored index attributes
// make this a single-table query.
func (db *DB) AggregateHits(ctx context.Context, query string, groupBy search.GroupBy) ([]search.GroupCount, error) {
	q, err := search.Parse(query)
	if err != nil {
		return nil, err
	}

	var (
		sqlText string
		args    []any
	)
	switch groupBy {
	case search.GroupBySpeaker:
		sqlText = `
			SELECT COALESCE(NULLIF(speaker, ''), ?) AS grp, COUNT(*) AS cnt
			FROM segments_fts
			WHERE segments_fts MATCH ?
			GROUP BY grp
			ORDER BY cnt DESC, grp ASC`
		args = []any{model.UnknownSpeaker, matchExpr(q)}
	default:
		sqlText = `
			SELECT filename AS grp, COUNT(*) AS cnt
			FROM segments_fts
			WHERE segments_fts MATCH ?
			GROUP BY grp
			ORDER BY cnt DESC, grp ASC`
		args = []any{matchExpr(q)}
	}

	rows, err := db.sql.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregate hits: %w", err)
	}
	defer rows.Close()

	var groups []search.GroupCount
	for rows.Next() {
		var g search.GroupCount
		if err := rows.Scan(&g.Group, &g.Count); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	if groups == nil {
		groups = []search.GroupCount{}
	}
	return groups, rows.Err()
}
