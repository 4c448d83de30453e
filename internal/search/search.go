// Package search defines the query contract shared by both index
// backends: query parsing, hit types, KWIC context extraction, and
// snippet generation. The persisted store and the in-memory index each
// implement Searcher; everything layered on top (KWIC, the API, the CLI)
// is backend-agnostic.
package search

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyQuery is returned when a query is empty after trimming. An empty
// query never matches the full corpus.
var ErrEmptyQuery = errors.New("empty query")

const (
	// DefaultLimit applies when a caller passes limit <= 0.
	DefaultLimit = 50
	// MaxLimit caps a single result page.
	MaxLimit = 200
	// DefaultContextWords is the KWIC window when a caller passes
	// contextWords <= 0.
	DefaultContextWords = 10
)

// ClampLimit normalizes a caller-supplied result limit.
func ClampLimit(limit int) int {
	if limit <= 0 || limit > MaxLimit {
		return DefaultLimit
	}
	return limit
}

// Hit is one ranked search result: the segment plus the denormalized
// transcript attributes needed to display it without a second lookup.
type Hit struct {
	SegmentID    int64   `json:"segment_id"`
	TranscriptID int64   `json:"transcript_id"`
	Filename     string  `json:"filename"`
	Title        string  `json:"title"`
	Speaker      *string `json:"speaker"`
	Text         string  `json:"text"`
	Snippet      string  `json:"snippet"`
	Start        float64 `json:"start_time"`
	End          float64 `json:"end_time"`
	Confidence   float64 `json:"confidence,omitempty"`
	Duration     float64 `json:"duration_seconds,omitempty"`
}

// KwicHit is a Hit enriched with a keyword-in-context triple. When the
// literal query substring cannot be located in the segment text (an index
// match on a tokenized form), the three context fields are empty and the
// caller should fall back to Text. That is a degraded result, not an error.
type KwicHit struct {
	Hit
	LeftContext  string `json:"left_context,omitempty"`
	Keyword      string `json:"keyword,omitempty"`
	RightContext string `json:"right_context,omitempty"`
}

// GroupBy selects the aggregation dimension for hit counts.
type GroupBy string

const (
	GroupByFile    GroupBy = "file"
	GroupBySpeaker GroupBy = "speaker"
)

// ParseGroupBy validates a group-by value from user input.
func ParseGroupBy(s string) (GroupBy, error) {
	switch GroupBy(s) {
	case GroupByFile, GroupBySpeaker:
		return GroupBy(s), nil
	}
	return "", fmt.Errorf("invalid group_by %q (want file or speaker)", s)
}

// GroupCount is one aggregation row: a group value and its hit count.
// Results are ordered by count descending, then group ascending.
type GroupCount struct {
	Group string `json:"group"`
	Count int    `json:"count"`
}

// Searcher is the query contract both index backends satisfy. Search
// runs a parsed query and returns ranked hits; ranking always runs over the
// full match set before the limit truncates it. AggregateHits counts every
// match grouped by file or speaker, unlimited.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Hit, error)
	AggregateHits(ctx context.Context, query string, groupBy GroupBy) ([]GroupCount, error)
}

// KWIC runs a search and splits each hit's text into a left/keyword/right
// context triple around the first case-insensitive occurrence of the
// dequoted query. The split itself lives in one place so both backends
// produce identical context output.
func KWIC(ctx context.Context, s Searcher, query string, contextWords, limit int) ([]KwicHit, error) {
	if contextWords <= 0 {
		contextWords = DefaultContextWords
	}
	q, err := Parse(query)
	if err != nil {
		return nil, err
	}
	hits, err := s.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	out := make([]KwicHit, 0, len(hits))
	for _, h := range hits {
		kh := KwicHit{Hit: h}
		if left, kw, right, ok := SplitContext(h.Text, q.Needle(), contextWords); ok {
			kh.LeftContext = left
			kh.Keyword = kw
			kh.RightContext = right
		}
		out = append(out, kh)
	}
	return out, nil
}
