package memindex

import (
	"fmt"
	"sync"

	"github.com/snarg/lectern/internal/model"
)

// UnknownTranscriptError reports an attempt to index a segment whose
// transcript was never registered.
type UnknownTranscriptError struct {
	TranscriptID int64
}

func (e *UnknownTranscriptError) Error() string {
	return fmt.Sprintf("transcript %d not registered in index", e.TranscriptID)
}

// posting records one term's occurrences within one segment.
type posting struct {
	frequency int
	positions []int
}

// document is an indexed segment plus the transcript attributes stored
// alongside it, so hits can be answered without a second lookup.
type document struct {
	segment  model.Segment
	filename string
	title    string
	duration float64
	length   int      // token count, used by the ranker
	terms    []string // distinct terms, used to unwind postings on deindex
}

type transcriptMeta struct {
	filename string
	title    string
	duration float64
}

// Index is an inverted index over segment text with token positions for
// phrase matching. A RWMutex guards it: the watcher rebuilds transcripts
// in place while query traffic reads.
type Index struct {
	mu          sync.RWMutex
	postings    map[string]map[int64]*posting // term -> segment id -> posting
	docs        map[int64]*document           // segment id -> stored fields
	transcripts map[int64]transcriptMeta
	totalLen    int // sum of document lengths, for the ranker's average
}

func New() *Index {
	return &Index{
		postings:    make(map[string]map[int64]*posting),
		docs:        make(map[int64]*document),
		transcripts: make(map[int64]transcriptMeta),
	}
}

// AddTranscript registers a transcript's attributes and indexes its
// segments, replacing anything previously indexed for the same transcript
// id. This is both the load path and the reindex-on-update path.
func (ix *Index) AddTranscript(tr model.Transcript, segs []model.Segment) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for _, id := range ix.segmentIDsLocked(tr.ID) {
		ix.deindexLocked(id)
	}
	ix.transcripts[tr.ID] = transcriptMeta{
		filename: tr.Filename,
		title:    tr.Title,
		duration: tr.Duration,
	}
	for _, seg := range segs {
		ix.indexLocked(seg)
	}
}

// RemoveTranscript drops a transcript's attributes and all of its index
// entries.
func (ix *Index) RemoveTranscript(transcriptID int64) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for _, id := range ix.segmentIDsLocked(transcriptID) {
		ix.deindexLocked(id)
	}
	delete(ix.transcripts, transcriptID)
}

// IndexSegment inserts one segment's entry. The owning transcript must
// already be registered via AddTranscript. Blank text is not indexed,
// matching the persisted index.
func (ix *Index) IndexSegment(seg model.Segment) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.indexLocked(seg)
}

// DeindexSegment removes one segment's entry. Removing an id that was
// never indexed is a no-op.
func (ix *Index) DeindexSegment(segmentID int64) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.deindexLocked(segmentID)
}

// DocCount returns the number of indexed segments.
func (ix *Index) DocCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// Reset drops the entire index.
func (ix *Index) Reset() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.postings = make(map[string]map[int64]*posting)
	ix.docs = make(map[int64]*document)
	ix.transcripts = make(map[int64]transcriptMeta)
	ix.totalLen = 0
}

func (ix *Index) segmentIDsLocked(transcriptID int64) []int64 {
	var ids []int64
	for id, doc := range ix.docs {
		if doc.segment.TranscriptID == transcriptID {
			ids = append(ids, id)
		}
	}
	return ids
}

func (ix *Index) indexLocked(seg model.Segment) error {
	meta, ok := ix.transcripts[seg.TranscriptID]
	if !ok {
		return &UnknownTranscriptError{TranscriptID: seg.TranscriptID}
	}

	ix.deindexLocked(seg.ID)

	tokens := Tokenize(seg.Text)
	if len(tokens) == 0 {
		return nil
	}

	doc := &document{
		segment:  seg,
		filename: meta.filename,
		title:    meta.title,
		duration: meta.duration,
		length:   len(tokens),
	}
	for _, tok := range tokens {
		byDoc, ok := ix.postings[tok.Term]
		if !ok {
			byDoc = make(map[int64]*posting)
			ix.postings[tok.Term] = byDoc
		}
		p, ok := byDoc[seg.ID]
		if !ok {
			p = &posting{positions: make([]int, 0, 4)}
			byDoc[seg.ID] = p
			doc.terms = append(doc.terms, tok.Term)
		}
		p.frequency++
		p.positions = append(p.positions, tok.Position)
	}

	ix.docs[seg.ID] = doc
	ix.totalLen += doc.length
	return nil
}

func (ix *Index) deindexLocked(segmentID int64) {
	doc, ok := ix.docs[segmentID]
	if !ok {
		return
	}
	for _, term := range doc.terms {
		byDoc := ix.postings[term]
		delete(byDoc, segmentID)
		if len(byDoc) == 0 {
			delete(ix.postings, term)
		}
	}
	ix.totalLen -= doc.length
	delete(ix.docs, segmentID)
}
