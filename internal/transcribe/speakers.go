package transcribe

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/snarg/lectern/internal/model"
)

// SpeakerUnknown is the label written into transcript files when diarization
// ran but no turn overlaps a segment.
const SpeakerUnknown = "SPEAKER_UNKNOWN"

// Turn is one diarization interval: a single speaker from Start to End.
type Turn struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

// diarizationDoc is the sidecar document produced by the diarization stage.
type diarizationDoc struct {
	Segments []Turn `json:"segments"`
}

// DiarizationSidecar returns the path of the diarization sidecar for an
// audio file: the audio path with its extension replaced by
// ".diarization.json".
func DiarizationSidecar(audioPath string) string {
	return strings.TrimSuffix(audioPath, filepath.Ext(audioPath)) + ".diarization.json"
}

// LoadTurns reads a diarization sidecar and returns its turns sorted by
// start time. A missing file is the caller's signal that diarization did
// not run; it is reported via os.IsNotExist on the returned error.
func LoadTurns(path string) ([]Turn, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc diarizationDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse diarization %s: %w", filepath.Base(path), err)
	}
	turns := doc.Segments
	sort.SliceStable(turns, func(i, j int) bool { return turns[i].Start < turns[j].Start })
	return turns, nil
}

// AssignSpeakers labels each transcription segment with the speaker whose
// turn overlaps it the most. Ties keep the earlier turn. Segments no turn
// overlaps get SpeakerUnknown. With no turns at all, segments stay
// unattributed.
func AssignSpeakers(segs []Segment, turns []Turn) []model.FileSegment {
	out := make([]model.FileSegment, len(segs))
	for i, s := range segs {
		fs := model.FileSegment{
			Start: model.Seconds(s.Start),
			End:   model.Seconds(s.End),
			Text:  strings.TrimSpace(s.Text),
		}
		if len(turns) > 0 {
			fs.Speaker = bestTurn(s, turns)
		}
		out[i] = fs
	}
	return out
}

func bestTurn(s Segment, turns []Turn) string {
	speaker := SpeakerUnknown
	best := 0.0
	for _, t := range turns {
		start := s.Start
		if t.Start > start {
			start = t.Start
		}
		end := s.End
		if t.End < end {
			end = t.End
		}
		if overlap := end - start; overlap > best {
			best = overlap
			speaker = t.Speaker
		}
	}
	return speaker
}

// SpeakerSet returns the distinct speakers across the turns, sorted.
func SpeakerSet(turns []Turn) []string {
	seen := make(map[string]bool, len(turns))
	var speakers []string
	for _, t := range turns {
		if t.Speaker == "" || seen[t.Speaker] {
			continue
		}
		seen[t.Speaker] = true
		speakers = append(speakers, t.Speaker)
	}
	sort.Strings(speakers)
	return speakers
}
