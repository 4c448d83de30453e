// Package export renders transcripts into subtitle, plain-text, and CSV
// artifacts, and publishes the static browse data for the collection.
// Writers take an io.Writer; the file-level helpers write atomically via
// temp file + rename so a crash never leaves a half-written artifact.
package export

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/snarg/lectern/internal/model"
	"github.com/snarg/lectern/internal/search"
)

// FormatSRTTime renders a second offset as a SubRip timestamp:
// 3723.5 becomes "01:02:03,500".
func FormatSRTTime(seconds float64) string {
	return strings.Replace(formatStamp(seconds), ".", ",", 1)
}

// FormatVTTTime renders a second offset as a WebVTT timestamp:
// 3723.5 becomes "01:02:03.500".
func FormatVTTTime(seconds float64) string {
	return formatStamp(seconds)
}

// FormatClock renders a second offset as a whole-second HH:MM:SS clock,
// the display format for durations.
func FormatClock(seconds float64) string {
	h, m, s := splitClock(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", h, m, int(s))
}

func formatStamp(seconds float64) string {
	h, m, s := splitClock(seconds)
	return fmt.Sprintf("%02d:%02d:%06.3f", h, m, s)
}

func splitClock(seconds float64) (int, int, float64) {
	if seconds < 0 {
		seconds = 0
	}
	whole := int(seconds)
	h := whole / 3600
	m := (whole % 3600) / 60
	s := seconds - float64(h*3600+m*60)
	return h, m, s
}

// cueText is a segment's display line: the trimmed text, prefixed with the
// bracketed speaker label when one is attributed.
func cueText(seg model.Segment) string {
	text := strings.TrimSpace(seg.Text)
	if seg.Speaker != nil && *seg.Speaker != "" {
		return "[" + *seg.Speaker + "] " + text
	}
	return text
}

// WriteSRT writes numbered SubRip cues, one per segment, in segment order.
func WriteSRT(w io.Writer, segs []model.Segment) error {
	bw := bufio.NewWriter(w)
	for i, seg := range segs {
		fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n\n",
			i+1, FormatSRTTime(seg.Start), FormatSRTTime(seg.End), cueText(seg))
	}
	return bw.Flush()
}

// WriteVTT writes a WebVTT file: the header line, then unnumbered cues.
func WriteVTT(w io.Writer, segs []model.Segment) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("WEBVTT\n\n")
	for _, seg := range segs {
		fmt.Fprintf(bw, "%s --> %s\n%s\n\n",
			FormatVTTTime(seg.Start), FormatVTTTime(seg.End), cueText(seg))
	}
	return bw.Flush()
}

// WriteTXT writes a reading copy: running text with a [SPEAKER] heading
// wherever the speaker changes. Unattributed segments continue under the
// previous heading.
func WriteTXT(w io.Writer, segs []model.Segment) error {
	bw := bufio.NewWriter(w)
	current := ""
	for _, seg := range segs {
		if seg.Speaker != nil && *seg.Speaker != "" && *seg.Speaker != current {
			current = *seg.Speaker
			fmt.Fprintf(bw, "\n\n[%s]\n", current)
		}
		bw.WriteString(strings.TrimSpace(seg.Text) + " ")
	}
	return bw.Flush()
}

// WriteCSV writes one row per segment with start_time, end_time, speaker,
// and text columns. Unattributed segments carry "N/A" so the column is
// never ambiguous in a spreadsheet.
func WriteCSV(w io.Writer, segs []model.Segment) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"start_time", "end_time", "speaker", "text"}); err != nil {
		return err
	}
	for _, seg := range segs {
		speaker := "N/A"
		if seg.Speaker != nil && *seg.Speaker != "" {
			speaker = *seg.Speaker
		}
		rec := []string{
			strconv.FormatFloat(seg.Start, 'f', -1, 64),
			strconv.FormatFloat(seg.End, 'f', -1, 64),
			speaker,
			strings.TrimSpace(seg.Text),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteHitsCSV writes search results as CSV with file, speaker, start_s,
// end_s, and text columns. Times carry millisecond precision; an
// unattributed speaker is an empty cell.
func WriteHitsCSV(w io.Writer, hits []search.Hit) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"file", "speaker", "start_s", "end_s", "text"}); err != nil {
		return err
	}
	for _, h := range hits {
		speaker := ""
		if h.Speaker != nil {
			speaker = *h.Speaker
		}
		rec := []string{
			h.Filename,
			speaker,
			fmt.Sprintf("%.3f", h.Start),
			fmt.Sprintf("%.3f", h.End),
			h.Text,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
