package summarize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/lectern/internal/export"
)

// Collate renders every .summary.json in dir into one Markdown document.
// outPath defaults to dir/all_summaries.md when empty. Returns the written
// path and the number of summaries included. Unreadable summary files are
// logged and skipped.
func Collate(dir, outPath string, log zerolog.Logger) (string, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", 0, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var files []string
	for _, ent := range entries {
		if !ent.IsDir() && strings.HasSuffix(ent.Name(), ".summary.json") {
			files = append(files, ent.Name())
		}
	}
	if len(files) == 0 {
		return "", 0, fmt.Errorf("no summary files found in %s", dir)
	}
	sort.Strings(files)

	if outPath == "" {
		outPath = filepath.Join(dir, "all_summaries.md")
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# Transcript Summaries\n\n")
	fmt.Fprintf(&buf, "*Generated on %s*\n\n", time.Now().Format("2006-01-02 at 15:04:05"))
	fmt.Fprintf(&buf, "This document contains AI-generated summaries of %d transcripts.\n\n", len(files))
	buf.WriteString("---\n\n")

	written := 0
	for _, name := range files {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Warn().Err(err).Str("file", name).Msg("skipping unreadable summary")
			continue
		}
		var s Summary
		if err := json.Unmarshal(raw, &s); err != nil {
			log.Warn().Err(err).Str("file", name).Msg("skipping malformed summary")
			continue
		}

		written++
		stem := strings.TrimSuffix(s.Filename, filepath.Ext(s.Filename))
		fmt.Fprintf(&buf, "## %d. %s\n\n", written, stem)
		fmt.Fprintf(&buf, "**File:** `%s`  \n", s.Filename)
		fmt.Fprintf(&buf, "**Duration:** %.1f minutes  \n", s.Duration/60)
		fmt.Fprintf(&buf, "**Segments:** %d  \n", s.Segments)
		if s.SpeakerCount > 0 {
			fmt.Fprintf(&buf, "**Speakers:** %d (%s)  \n", s.SpeakerCount, strings.Join(s.Speakers, ", "))
		} else {
			buf.WriteString("**Speakers:** Not available  \n")
		}
		fmt.Fprintf(&buf, "**Generated:** %s  \n\n", s.GeneratedAt)
		fmt.Fprintf(&buf, "%s\n\n", s.Summary)
		buf.WriteString("---\n\n")
	}

	if err := export.WriteFileAtomic(outPath, func(w io.Writer) error {
		_, werr := w.Write(buf.Bytes())
		return werr
	}); err != nil {
		return "", 0, err
	}
	return outPath, written, nil
}
