package memindex

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/snarg/lectern/internal/search"
)

const (
	k1 = 1.2
	b  = 0.75
)

type scoredDoc struct {
	segmentID int64
	score     float64
}

// Search implements search.Searcher over the in-memory index. Scoring is
// bm25 summed per query phrase; ties fall back to segment id, which is
// insertion order.
func (ix *Index) Search(ctx context.Context, query string, limit int) ([]search.Hit, error) {
	q, err := search.Parse(query)
	if err != nil {
		return nil, err
	}
	limit = search.ClampLimit(limit)

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	scored := ix.matchLocked(q)
	if len(scored) > limit {
		scored = scored[:limit]
	}

	hits := make([]search.Hit, 0, len(scored))
	for _, sd := range scored {
		hits = append(hits, ix.hitLocked(ix.docs[sd.segmentID], q))
	}
	return hits, nil
}

// AggregateHits groups matching segments by filename or speaker, ordered by
// descending count with ties broken by group value ascending. Unattributed
// segments group under the unknown-speaker sentinel.
func (ix *Index) AggregateHits(ctx context.Context, query string, groupBy search.GroupBy) ([]search.GroupCount, error) {
	q, err := search.Parse(query)
	if err != nil {
		return nil, err
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	counts := make(map[string]int)
	for _, sd := range ix.matchLocked(q) {
		doc := ix.docs[sd.segmentID]
		switch groupBy {
		case search.GroupBySpeaker:
			counts[doc.segment.SpeakerOrUnknown()]++
		default:
			counts[doc.filename]++
		}
	}

	groups := make([]search.GroupCount, 0, len(counts))
	for g, n := range counts {
		groups = append(groups, search.GroupCount{Group: g, Count: n})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].Group < groups[j].Group
	})
	return groups, nil
}

// matchLocked resolves a parsed query to ranked segment ids. A quoted
// query is one phrase; an unquoted query is a union of phrases, one per
// whitespace token (a hyphenated token tokenizes to several adjacent
// terms, mirroring how the persisted index treats it).
func (ix *Index) matchLocked(q search.Query) []scoredDoc {
	var phrases [][]string
	if q.IsPhrase() {
		if ts := termList(q.Phrase); len(ts) > 0 {
			phrases = append(phrases, ts)
		}
	} else {
		for _, raw := range q.Terms {
			if ts := termList(raw); len(ts) > 0 {
				phrases = append(phrases, ts)
			}
		}
	}

	avg := ix.avgDocLenLocked()
	scores := make(map[int64]float64)
	for _, phrase := range phrases {
		for id := range ix.phraseDocsLocked(phrase) {
			scores[id] += ix.scorePhraseLocked(id, phrase, avg)
		}
	}

	out := make([]scoredDoc, 0, len(scores))
	for id, s := range scores {
		out = append(out, scoredDoc{segmentID: id, score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].segmentID < out[j].segmentID
	})
	return out
}

// phraseDocsLocked returns the ids of documents containing the given terms
// at adjacent positions.
func (ix *Index) phraseDocsLocked(terms []string) map[int64]struct{} {
	first, ok := ix.postings[terms[0]]
	if !ok {
		return nil
	}
	out := make(map[int64]struct{})
	for id, p := range first {
		if len(terms) == 1 || ix.adjacentLocked(id, terms, p.positions) {
			out[id] = struct{}{}
		}
	}
	return out
}

// adjacentLocked reports whether some position in starts begins a run of
// the full term sequence within one document.
func (ix *Index) adjacentLocked(id int64, terms []string, starts []int) bool {
	for _, start := range starts {
		ok := true
		for i := 1; i < len(terms); i++ {
			p, exists := ix.postings[terms[i]][id]
			if !exists || !containsInt(p.positions, start+i) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func (ix *Index) scorePhraseLocked(id int64, terms []string, avgLen float64) float64 {
	doc := ix.docs[id]
	var score float64
	for _, term := range terms {
		byDoc := ix.postings[term]
		p, ok := byDoc[id]
		if !ok {
			continue
		}
		idf := computeIDF(len(ix.docs), len(byDoc))
		score += idf * computeTFNorm(float64(p.frequency), float64(doc.length), avgLen)
	}
	return score
}

func (ix *Index) avgDocLenLocked() float64 {
	if len(ix.docs) == 0 {
		return 0
	}
	return float64(ix.totalLen) / float64(len(ix.docs))
}

func (ix *Index) hitLocked(doc *document, q search.Query) search.Hit {
	seg := doc.segment
	return search.Hit{
		SegmentID:    seg.ID,
		TranscriptID: seg.TranscriptID,
		Filename:     doc.filename,
		Title:        doc.title,
		Speaker:      seg.Speaker,
		Text:         seg.Text,
		Snippet:      search.MakeSnippet(seg.Text, snippetNeedle(q, seg.Text), search.SnippetWindow, search.MarkStart, search.MarkEnd),
		Start:        seg.Start,
		End:          seg.End,
		Confidence:   seg.Confidence,
		Duration:     doc.duration,
	}
}

// snippetNeedle picks the substring to highlight: the phrase for quoted
// queries, otherwise the first query token present in the text.
func snippetNeedle(q search.Query, text string) string {
	if q.IsPhrase() {
		return q.Phrase
	}
	lower := strings.ToLower(text)
	for _, term := range q.Terms {
		if strings.Contains(lower, strings.ToLower(term)) {
			return term
		}
	}
	return q.Needle()
}

func termList(s string) []string {
	tokens := Tokenize(s)
	terms := make([]string, len(tokens))
	for i, t := range tokens {
		terms[i] = t.Term
	}
	return terms
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func computeIDF(totalDocs, docFreq int) float64 {
	return math.Log((float64(totalDocs)-float64(docFreq))/(float64(docFreq)+0.5) + 1)
}

func computeTFNorm(termFreq, docLength, avgDocLength float64) float64 {
	if avgDocLength == 0 {
		return 0
	}
	return (termFreq * (k1 + 1)) / (termFreq + k1*(1-b+b*(docLength/avgDocLength)))
}
