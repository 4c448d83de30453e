// Package model holds the data types shared by the store, the indexes,
// and the sync pipeline.
package model

import "time"

// Transcript is one source recording's metadata. Identity is the source
// filename stem; Fingerprint is an MD5 hex digest of the raw file bytes.
type Transcript struct {
	ID           int64     `json:"id"`
	Filename     string    `json:"filename"`
	Fingerprint  string    `json:"fingerprint"`
	Title        string    `json:"title"`
	Duration     float64   `json:"duration_seconds"`
	SegmentCount int       `json:"segment_count"`
	SpeakerCount int       `json:"speaker_count"`
	Language     string    `json:"language,omitempty"`
	AudioPath    string    `json:"source_audio_path,omitempty"`
	JSONPath     string    `json:"json_path,omitempty"`
	SRTPath      string    `json:"srt_path,omitempty"`
	VTTPath      string    `json:"vtt_path,omitempty"`
	TXTPath      string    `json:"txt_path,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Segment is one utterance. Index is the ordinal position within the
// transcript (0..N-1, gap-free after any rewrite). Speaker is nil when the
// utterance is unattributed.
type Segment struct {
	ID           int64   `json:"id"`
	TranscriptID int64   `json:"transcript_id"`
	Index        int     `json:"segment_index"`
	Start        float64 `json:"start_time"`
	End          float64 `json:"end_time"`
	Speaker      *string `json:"speaker"`
	Text         string  `json:"text"`
	Confidence   float64 `json:"confidence,omitempty"`
}

// SpeakerOrUnknown returns the speaker label, or UnknownSpeaker when the
// segment is unattributed.
func (s Segment) SpeakerOrUnknown() string {
	if s.Speaker == nil || *s.Speaker == "" {
		return UnknownSpeaker
	}
	return *s.Speaker
}

// UnknownSpeaker is the sentinel label for segments without a speaker.
// It groups unattributed segments in aggregations and never collides with
// diarization output, which uses SPEAKER_NN labels.
const UnknownSpeaker = "UNK"

// TranscriptFile is the on-disk transcript document produced by the ASR
// collaborator: a top-level object carrying the source audio path and the
// ordered segment list.
type TranscriptFile struct {
	AudioPath string        `json:"audio_file,omitempty"`
	Language  string        `json:"language,omitempty"`
	Speakers  []string      `json:"speakers,omitempty"`
	Segments  []FileSegment `json:"segments"`
}

// FileSegment is one segment as it appears in a transcript file. Start and
// End tolerate both JSON numbers and numeric strings, which differ between
// ASR backends.
type FileSegment struct {
	Start      Seconds `json:"start"`
	End        Seconds `json:"end"`
	Text       string  `json:"text"`
	Speaker    string  `json:"speaker,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// ToSegments converts the document's segment list into store segments with
// gap-free ordinals. An empty speaker label becomes nil so unattributed
// utterances never masquerade as a speaker called "".
func (tf *TranscriptFile) ToSegments() []Segment {
	segs := make([]Segment, len(tf.Segments))
	for i, fs := range tf.Segments {
		seg := Segment{
			Index:      i,
			Start:      fs.Start.Float(),
			End:        fs.End.Float(),
			Text:       fs.Text,
			Confidence: fs.Confidence,
		}
		if fs.Speaker != "" {
			sp := fs.Speaker
			seg.Speaker = &sp
		}
		segs[i] = seg
	}
	return segs
}
