package export

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/snarg/lectern/internal/model"
	"github.com/snarg/lectern/internal/store"
)

func newStaticFixture(t *testing.T) *store.DB {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(ctx, filepath.Join(t.TempDir(), "lectern.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.InitSchema(ctx); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	// Imported out of filename order on purpose; the static build re-sorts.
	_, _, err = db.ImportTranscript(ctx, store.TranscriptUpsert{
		Filename:    "geometry-02",
		Fingerprint: "bbbb",
		Title:       "Geometry",
	}, []model.Segment{
		{Start: 0, End: 12, Speaker: sp("SPEAKER_00"), Text: "Triangles today."},
	}, false)
	if err != nil {
		t.Fatalf("import geometry: %v", err)
	}
	_, _, err = db.ImportTranscript(ctx, store.TranscriptUpsert{
		Filename:    "algebra-01",
		Fingerprint: "aaaa",
		Title:       "Algebra",
		AudioPath:   "/recordings/algebra-01.mp3",
	}, classSegments(), false)
	if err != nil {
		t.Fatalf("import algebra: %v", err)
	}
	return db
}

// ── BuildStatic ──────────────────────────────────────────────────────

func TestBuildStatic(t *testing.T) {
	db := newStaticFixture(t)
	manifest, index, err := BuildStatic(context.Background(), db)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if len(manifest) != 2 {
		t.Fatalf("got %d manifest rows, want 2", len(manifest))
	}
	if manifest[0].FileStem != "algebra-01" || manifest[1].FileStem != "geometry-02" {
		t.Errorf("manifest order = %q, %q; want filename order",
			manifest[0].FileStem, manifest[1].FileStem)
	}

	alg := manifest[0]
	if alg.Segments != 4 {
		t.Errorf("algebra segments = %d, want 4", alg.Segments)
	}
	if alg.Words != 18 {
		t.Errorf("algebra words = %d, want 18", alg.Words)
	}
	if alg.DurationMin != 0.1 {
		t.Errorf("algebra duration_min = %v, want 0.1", alg.DurationMin)
	}
	if alg.FilePath != "/recordings/algebra-01.mp3" {
		t.Errorf("algebra file_path = %q", alg.FilePath)
	}

	geo := manifest[1]
	if geo.DurationMin != 0.2 {
		t.Errorf("geometry duration_min = %v, want 0.2", geo.DurationMin)
	}
	// No audio path recorded falls back to the stem.
	if geo.FilePath != "geometry-02" {
		t.Errorf("geometry file_path = %q, want stem fallback", geo.FilePath)
	}

	if len(index) != 5 {
		t.Fatalf("got %d index rows, want 5", len(index))
	}
	first := index[0]
	if first.FileStem != "algebra-01" || first.Text != "Welcome to class everyone." {
		t.Errorf("first index row = %+v", first)
	}
	// The unattributed segment keeps a null speaker, not "".
	if index[3].Speaker != nil {
		t.Errorf("segment 3 speaker = %v, want nil", *index[3].Speaker)
	}
}

func TestBuildStaticEmptyStore(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(ctx, filepath.Join(t.TempDir(), "lectern.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.InitSchema(ctx); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	manifest, index, err := BuildStatic(ctx, db)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(manifest) != 0 || len(index) != 0 {
		t.Errorf("empty store produced %d/%d rows", len(manifest), len(index))
	}
}

// ── ExportStatic ─────────────────────────────────────────────────────

func TestExportStatic(t *testing.T) {
	db := newStaticFixture(t)
	dir := t.TempDir()

	if err := ExportStatic(context.Background(), db, dir); err != nil {
		t.Fatalf("export: %v", err)
	}

	var manifest []ManifestEntry
	data, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		t.Fatalf("parse manifest: %v", err)
	}
	if len(manifest) != 2 {
		t.Errorf("manifest rows = %d, want 2", len(manifest))
	}

	var index []IndexEntry
	data, err = os.ReadFile(filepath.Join(dir, "index.json"))
	if err != nil {
		t.Fatalf("read index: %v", err)
	}
	if err := json.Unmarshal(data, &index); err != nil {
		t.Fatalf("parse index: %v", err)
	}
	if len(index) != 5 {
		t.Errorf("index rows = %d, want 5", len(index))
	}

	// The segment rows carry what a client-side browser needs to render a
	// KWIC line without any server.
	if index[4].FileStem != "geometry-02" || index[4].EndS != 12 {
		t.Errorf("last index row = %+v", index[4])
	}
}
