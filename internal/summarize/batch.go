package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/snarg/lectern/internal/export"
)

// BatchReport counts per-file outcomes of a summarization run.
type BatchReport struct {
	Summarized int `json:"summarized"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

type batchDoc struct {
	GeneratedAt string    `json:"generated_at"`
	TotalFiles  int       `json:"total_files"`
	Summaries   []Summary `json:"summaries"`
}

// BatchFile is the collected document written after a batch run.
const BatchFile = "all_summaries.json"

// SummarizeDir summarizes every transcript JSON in dir. The endpoint is
// pinged once up front and a failed ping aborts the batch; after that,
// per-file failures are counted and the batch continues. Existing
// .summary.json sidecars are skipped unless force is set.
func (c *Client) SummarizeDir(ctx context.Context, dir string, force bool) (BatchReport, error) {
	if err := c.Ping(ctx); err != nil {
		return BatchReport{}, fmt.Errorf("summarizer pre-check: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return BatchReport{}, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var rep BatchReport
	var summaries []Summary
	for _, ent := range entries {
		if ent.IsDir() || !isTranscriptName(ent.Name()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return rep, err
		}

		jsonPath := filepath.Join(dir, ent.Name())
		sidecar := SidecarPath(jsonPath)
		if !force {
			if _, err := os.Stat(sidecar); err == nil {
				rep.Skipped++
				continue
			}
		}

		s, err := c.SummarizeFile(ctx, jsonPath)
		if err != nil {
			rep.Failed++
			c.log.Warn().Err(err).Str("file", ent.Name()).Msg("summarization failed")
			continue
		}
		if err := writeJSON(sidecar, s); err != nil {
			rep.Failed++
			c.log.Warn().Err(err).Str("file", ent.Name()).Msg("could not write summary")
			continue
		}
		summaries = append(summaries, *s)
		rep.Summarized++
		c.log.Info().Str("file", ent.Name()).Msg("summary written")
	}

	if len(summaries) > 0 {
		sort.Slice(summaries, func(i, j int) bool { return summaries[i].Filename < summaries[j].Filename })
		batch := batchDoc{
			GeneratedAt: time.Now().Format("2006-01-02 15:04:05"),
			TotalFiles:  len(summaries),
			Summaries:   summaries,
		}
		if err := writeJSON(filepath.Join(dir, BatchFile), batch); err != nil {
			return rep, fmt.Errorf("write batch summary: %w", err)
		}
	}

	c.log.Info().
		Int("summarized", rep.Summarized).
		Int("skipped", rep.Skipped).
		Int("failed", rep.Failed).
		Msg("summarization batch complete")
	return rep, nil
}

// isTranscriptName filters directory entries to source transcripts,
// excluding the sidecar documents this package and the diarization step
// write next to them.
func isTranscriptName(name string) bool {
	if !strings.HasSuffix(name, ".json") {
		return false
	}
	if strings.HasSuffix(name, ".summary.json") || strings.HasSuffix(name, ".diarization.json") || name == BatchFile {
		return false
	}
	return true
}

func writeJSON(path string, v any) error {
	return export.WriteFileAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}
