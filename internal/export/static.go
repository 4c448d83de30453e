package export

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/snarg/lectern/internal/store"
)

// ManifestEntry is one transcript row in the static browse manifest.
type ManifestEntry struct {
	FileStem    string  `json:"file_stem"`
	FilePath    string  `json:"file_path"`
	Segments    int     `json:"segments"`
	Words       int     `json:"words"`
	DurationMin float64 `json:"duration_min"`
}

// IndexEntry is one segment row in the static search index. A client-side
// browser loads the whole array and searches it locally, so no server is
// needed to read the collection.
type IndexEntry struct {
	FileStem string  `json:"file_stem"`
	FilePath string  `json:"file_path"`
	Speaker  *string `json:"speaker"`
	StartS   float64 `json:"start_s"`
	EndS     float64 `json:"end_s"`
	Text     string  `json:"text"`
}

// BuildStatic reads the whole collection and produces the manifest (one row
// per transcript) and the flat segment index, both in filename order.
func BuildStatic(ctx context.Context, db *store.DB) ([]ManifestEntry, []IndexEntry, error) {
	transcripts, err := db.ListTranscripts(ctx, 0)
	if err != nil {
		return nil, nil, err
	}
	sort.Slice(transcripts, func(i, j int) bool {
		return transcripts[i].Filename < transcripts[j].Filename
	})

	manifest := make([]ManifestEntry, 0, len(transcripts))
	index := []IndexEntry{}
	for _, tr := range transcripts {
		segs, err := db.GetSegments(ctx, tr.ID)
		if err != nil {
			return nil, nil, err
		}

		filePath := tr.AudioPath
		if filePath == "" {
			filePath = tr.Filename
		}

		words := 0
		for _, seg := range segs {
			text := strings.TrimSpace(seg.Text)
			words += len(strings.Fields(text))
			index = append(index, IndexEntry{
				FileStem: tr.Filename,
				FilePath: filePath,
				Speaker:  seg.Speaker,
				StartS:   seg.Start,
				EndS:     seg.End,
				Text:     text,
			})
		}

		manifest = append(manifest, ManifestEntry{
			FileStem:    tr.Filename,
			FilePath:    filePath,
			Segments:    len(segs),
			Words:       words,
			DurationMin: math.Round(tr.Duration/60*10) / 10,
		})
	}
	return manifest, index, nil
}

// WriteStatic writes manifest.json and index.json into dir atomically.
func WriteStatic(dir string, manifest []ManifestEntry, index []IndexEntry) error {
	err := WriteFileAtomic(filepath.Join(dir, "manifest.json"), func(w io.Writer) error {
		return writeJSON(w, manifest)
	})
	if err != nil {
		return err
	}
	return WriteFileAtomic(filepath.Join(dir, "index.json"), func(w io.Writer) error {
		return writeJSON(w, index)
	})
}

// ExportStatic builds the browse data from the store and writes it to dir.
func ExportStatic(ctx context.Context, db *store.DB, dir string) error {
	manifest, index, err := BuildStatic(ctx, db)
	if err != nil {
		return err
	}
	return WriteStatic(dir, manifest, index)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
