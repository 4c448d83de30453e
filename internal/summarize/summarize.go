package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/snarg/lectern/internal/model"
)

const summaryPrompt = `Please provide a concise summary of this lecture transcript in 1-3 paragraphs. Focus on:
- Main topics and themes discussed
- Key learning objectives or educational content
- Important interactions or activities mentioned
- Any notable outcomes or conclusions

Transcript:
%s

Summary:`

const maxPromptChars = 8000

// Summary is the sidecar document written next to each transcript.
type Summary struct {
	File         string   `json:"file"`
	Filename     string   `json:"filename"`
	Summary      string   `json:"summary"`
	Segments     int      `json:"total_segments"`
	Duration     float64  `json:"total_duration_seconds"`
	SpeakerCount int      `json:"speaker_count"`
	Speakers     []string `json:"speakers"`
	GeneratedAt  string   `json:"generated_at"`
}

// SidecarPath returns the summary path for a transcript JSON path.
func SidecarPath(jsonPath string) string {
	return strings.TrimSuffix(jsonPath, filepath.Ext(jsonPath)) + ".summary.json"
}

// SummarizeFile reads one transcript JSON file, sends its text to the LLM
// and returns the summary document. Transcripts without segments or without
// any text are an error; the batch runner counts them as failures.
func (c *Client) SummarizeFile(ctx context.Context, jsonPath string) (*Summary, error) {
	raw, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	var tf model.TranscriptFile
	if err := json.Unmarshal(raw, &tf); err != nil {
		return nil, fmt.Errorf("parse transcript %s: %w", filepath.Base(jsonPath), err)
	}
	if len(tf.Segments) == 0 {
		return nil, fmt.Errorf("transcript %s has no segments", filepath.Base(jsonPath))
	}

	text := prepareText(tf.Segments)
	if text == "" {
		return nil, fmt.Errorf("transcript %s has no text content", filepath.Base(jsonPath))
	}
	text = truncateText(text, maxPromptChars)

	reply, err := c.Complete(ctx, fmt.Sprintf(summaryPrompt, text))
	if err != nil {
		return nil, err
	}

	duration, speakers := segmentStats(tf.Segments)
	return &Summary{
		File:         jsonPath,
		Filename:     filepath.Base(jsonPath),
		Summary:      reply,
		Segments:     len(tf.Segments),
		Duration:     duration,
		SpeakerCount: len(speakers),
		Speakers:     speakers,
		GeneratedAt:  time.Now().Format("2006-01-02 15:04:05"),
	}, nil
}

// prepareText flattens segments into prompt text, inserting a [SPEAKER]
// marker whenever the speaker changes. Unattributed segments keep flowing
// under the previous marker.
func prepareText(segs []model.FileSegment) string {
	var parts []string
	current := ""
	for _, s := range segs {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		if s.Speaker != "" && s.Speaker != current {
			current = s.Speaker
			parts = append(parts, "\n["+s.Speaker+"]")
		}
		parts = append(parts, text)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// truncateText bounds the prompt size for long lectures, keeping the first
// 60% and last 20% of the budget and dropping the middle.
func truncateText(text string, maxChars int) string {
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	keepStart := int(float64(maxChars) * 0.6)
	keepEnd := int(float64(maxChars) * 0.2)
	return string(runes[:keepStart]) +
		"\n\n[... middle portion omitted for length ...]\n\n" +
		string(runes[len(runes)-keepEnd:])
}

func segmentStats(segs []model.FileSegment) (duration float64, speakers []string) {
	seen := make(map[string]struct{})
	for _, s := range segs {
		if end := s.End.Float(); end > duration {
			duration = end
		}
		if s.Speaker != "" {
			seen[s.Speaker] = struct{}{}
		}
	}
	speakers = make([]string, 0, len(seen))
	for sp := range seen {
		speakers = append(speakers, sp)
	}
	sort.Strings(speakers)
	return duration, speakers
}
