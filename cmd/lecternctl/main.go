package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/snarg/lectern/internal/config"
	"github.com/snarg/lectern/internal/export"
	"github.com/snarg/lectern/internal/ingest"
	"github.com/snarg/lectern/internal/memindex"
	"github.com/snarg/lectern/internal/model"
	"github.com/snarg/lectern/internal/search"
	"github.com/snarg/lectern/internal/storage"
	"github.com/snarg/lectern/internal/store"
	"github.com/snarg/lectern/internal/summarize"
	"github.com/snarg/lectern/internal/transcribe"
)

// lecternctl operates on a transcript collection directly, without a
// running server. Flags default to the same configuration the server
// reads, so `lecternctl stats` next to a .env file needs no arguments.
//
// Usage:
//
//	lecternctl sync      -db lectern.db -transcripts ./transcripts [-force]
//	lecternctl search    -query "cell wall" [-limit 50] [-mem] [-csv hits.csv]
//	lecternctl kwic      -query photosynthesis [-context 10] [-limit 50]
//	lecternctl hits      -query mitosis [-group-by file|speaker]
//	lecternctl list      [-limit 50]
//	lecternctl stats
//	lecternctl check
//	lecternctl export    -transcripts ./transcripts [-force]
//	lecternctl static    [-out ./static_site]
//	lecternctl summarize [-force] [-test]
//	lecternctl collate   [-out all_summaries.md]
//	lecternctl pipeline  [-force] [-keep-fetched]
func main() {
	flag.Usage = printUsage
	envFile := flag.String("env-file", "", "path to .env file")
	verbose := flag.Bool("v", false, "debug logging on stderr")
	flag.Parse()

	cfg, err := config.Load(config.Overrides{EnvFile: *envFile})
	if err != nil {
		fatal("failed to load config: %v", err)
	}

	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	switch cmd, rest := args[0], args[1:]; cmd {
	case "sync":
		cmdSync(ctx, cfg, log, rest)
	case "search":
		cmdSearch(ctx, cfg, log, rest)
	case "kwic":
		cmdKwic(ctx, cfg, log, rest)
	case "hits":
		cmdHits(ctx, cfg, log, rest)
	case "list":
		cmdList(ctx, cfg, log, rest)
	case "stats":
		cmdStats(ctx, cfg, log, rest)
	case "check":
		cmdCheck(ctx, cfg, log, rest)
	case "export":
		cmdExport(cfg, rest)
	case "static":
		cmdStatic(ctx, cfg, log, rest)
	case "summarize":
		cmdSummarize(ctx, cfg, log, rest)
	case "collate":
		cmdCollate(cfg, log, rest)
	case "pipeline":
		cmdPipeline(ctx, cfg, log, rest)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

// ── store commands ──

func cmdSync(ctx context.Context, cfg *config.Config, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	dbPath := fs.String("db", cfg.DatabasePath, "store path")
	dir := fs.String("transcripts", cfg.TranscriptsDir, "transcripts directory")
	force := fs.Bool("force", false, "reimport files with unchanged fingerprints")
	fs.Parse(args)

	db := openStore(ctx, *dbPath, log)
	defer db.Close()

	report, err := ingest.NewSyncer(db, nil, log).SyncDir(ctx, *dir, *force)
	if err != nil {
		fatal("sync failed: %v", err)
	}

	fmt.Printf("Sync of %s complete:\n", *dir)
	fmt.Printf("  imported: %d\n", report.Imported)
	fmt.Printf("  updated:  %d\n", report.Updated)
	fmt.Printf("  skipped:  %d\n", report.Skipped)
	fmt.Printf("  errors:   %d\n", report.Errors)
	if report.Errors > 0 {
		os.Exit(1)
	}
}

func cmdSearch(ctx context.Context, cfg *config.Config, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	dbPath := fs.String("db", cfg.DatabasePath, "store path")
	query := fs.String("query", "", "search query; quote for a phrase match")
	limit := fs.Int("limit", search.DefaultLimit, "maximum results")
	mem := fs.Bool("mem", false, "query an in-memory index instead of FTS")
	csvPath := fs.String("csv", "", "write hits to a CSV file instead of stdout")
	fs.Parse(args)
	if *query == "" {
		fatal("error: -query is required")
	}

	db := openStore(ctx, *dbPath, log)
	defer db.Close()

	s, err := searcherFor(ctx, db, *mem)
	if err != nil {
		fatal("failed to build index: %v", err)
	}
	hits, err := s.Search(ctx, *query, *limit)
	if err != nil {
		fatal("search failed: %v", err)
	}

	if *csvPath != "" {
		err := export.WriteFileAtomic(*csvPath, func(w io.Writer) error {
			return export.WriteHitsCSV(w, hits)
		})
		if err != nil {
			fatal("csv export failed: %v", err)
		}
		fmt.Printf("Wrote %d hit(s) to %s\n", len(hits), *csvPath)
		return
	}

	if len(hits) == 0 {
		fmt.Printf("No results for %q\n", *query)
		return
	}
	fmt.Printf("Found %d result(s) for %q:\n\n", len(hits), *query)
	for i, h := range hits {
		fmt.Printf("[%2d] %s (%s)\n", i+1, h.Title, h.Filename)
		fmt.Printf("     speaker: %s | time: %s-%s\n",
			speakerLabel(h.Speaker), export.FormatClock(h.Start), export.FormatClock(h.End))
		snippet := h.Snippet
		if snippet == "" {
			snippet = h.Text
		}
		fmt.Printf("     %s\n\n", snippet)
	}
}

func cmdKwic(ctx context.Context, cfg *config.Config, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("kwic", flag.ExitOnError)
	dbPath := fs.String("db", cfg.DatabasePath, "store path")
	query := fs.String("query", "", "search query; quote for a phrase match")
	window := fs.Int("context", search.DefaultContextWords, "context words on each side")
	limit := fs.Int("limit", search.DefaultLimit, "maximum results")
	mem := fs.Bool("mem", false, "query an in-memory index instead of FTS")
	fs.Parse(args)
	if *query == "" {
		fatal("error: -query is required")
	}

	db := openStore(ctx, *dbPath, log)
	defer db.Close()

	s, err := searcherFor(ctx, db, *mem)
	if err != nil {
		fatal("failed to build index: %v", err)
	}
	hits, err := search.KWIC(ctx, s, *query, *window, *limit)
	if err != nil {
		fatal("kwic failed: %v", err)
	}

	if len(hits) == 0 {
		fmt.Printf("No results for %q\n", *query)
		return
	}
	fmt.Printf("KWIC results for %q:\n\n", *query)
	for i, h := range hits {
		fmt.Printf("[%2d] %s - %s @ %s\n", i+1, h.Title, speakerLabel(h.Speaker), export.FormatClock(h.Start))
		if h.Keyword != "" {
			fmt.Printf("     ...%s **%s** %s...\n\n", h.LeftContext, h.Keyword, h.RightContext)
		} else {
			fmt.Printf("     %s\n\n", h.Text)
		}
	}
}

func cmdHits(ctx context.Context, cfg *config.Config, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("hits", flag.ExitOnError)
	dbPath := fs.String("db", cfg.DatabasePath, "store path")
	query := fs.String("query", "", "search query; quote for a phrase match")
	groupBy := fs.String("group-by", "file", "aggregation dimension: file or speaker")
	mem := fs.Bool("mem", false, "query an in-memory index instead of FTS")
	fs.Parse(args)
	if *query == "" {
		fatal("error: -query is required")
	}
	gb, err := search.ParseGroupBy(*groupBy)
	if err != nil {
		fatal("error: %v", err)
	}

	db := openStore(ctx, *dbPath, log)
	defer db.Close()

	s, err := searcherFor(ctx, db, *mem)
	if err != nil {
		fatal("failed to build index: %v", err)
	}
	groups, err := s.AggregateHits(ctx, *query, gb)
	if err != nil {
		fatal("hits failed: %v", err)
	}

	if len(groups) == 0 {
		fmt.Printf("No results for %q\n", *query)
		return
	}
	header := "File"
	if gb == search.GroupBySpeaker {
		header = "Speaker"
	}
	fmt.Printf("%-44s %s\n", header, "Hits")
	fmt.Println(strings.Repeat("─", 52))
	total := 0
	for _, g := range groups {
		fmt.Printf("%-44s %d\n", g.Group, g.Count)
		total += g.Count
	}
	fmt.Printf("\nTotal: %d hit(s) across %d group(s)\n", total, len(groups))
}

func cmdList(ctx context.Context, cfg *config.Config, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	dbPath := fs.String("db", cfg.DatabasePath, "store path")
	limit := fs.Int("limit", search.DefaultLimit, "maximum transcripts to show")
	fs.Parse(args)

	db := openStore(ctx, *dbPath, log)
	defer db.Close()

	trs, err := db.ListTranscripts(ctx, *limit)
	if err != nil {
		fatal("list failed: %v", err)
	}
	if len(trs) == 0 {
		fmt.Println("No transcripts in store.")
		return
	}

	fmt.Printf("Transcripts in %s:\n\n", *dbPath)
	for i, t := range trs {
		fmt.Printf("[%2d] %s (%s)\n", i+1, t.Title, t.Filename)
		fmt.Printf("     duration: %s | segments: %d | speakers: %d\n",
			export.FormatClock(t.Duration), t.SegmentCount, t.SpeakerCount)
		fmt.Printf("     created: %s\n\n", t.CreatedAt.Format("2006-01-02 15:04:05"))
	}
}

func cmdStats(ctx context.Context, cfg *config.Config, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	dbPath := fs.String("db", cfg.DatabasePath, "store path")
	fs.Parse(args)

	db := openStore(ctx, *dbPath, log)
	defer db.Close()

	st, err := db.GetStats(ctx)
	if err != nil {
		fatal("stats failed: %v", err)
	}

	fmt.Println("── Collection ──")
	fmt.Printf("  transcripts:    %s\n", humanize.Comma(int64(st.Transcripts)))
	fmt.Printf("  segments:       %s\n", humanize.Comma(int64(st.Segments)))
	fmt.Printf("  speakers:       %d\n", st.Speakers)
	fmt.Printf("  total duration: %.1f hours (%s)\n", st.TotalHours, export.FormatClock(st.TotalSeconds))

	if len(st.Longest) > 0 {
		fmt.Println("\n── Longest Transcripts ──")
		for i, t := range st.Longest {
			fmt.Printf("  %d. %s (%s)\n", i+1, t.Filename, export.FormatClock(t.Duration))
		}
	}
}

func cmdCheck(ctx context.Context, cfg *config.Config, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	dbPath := fs.String("db", cfg.DatabasePath, "store path")
	fs.Parse(args)

	db := openStore(ctx, *dbPath, log)
	defer db.Close()

	r, err := db.CheckIntegrity(ctx)
	if err != nil {
		fatal("check failed: %v", err)
	}

	fmt.Println("Table                    Count")
	fmt.Println(strings.Repeat("─", 30))
	fmt.Printf("%-24s %d\n", "transcripts", r.Transcripts)
	fmt.Printf("%-24s %d\n", "segments", r.Segments)
	fmt.Printf("%-24s %d\n", "segments_fts", r.IndexedSegments)

	fmt.Println("\n── Integrity ──")
	fmt.Printf("  orphan segments:      %d\n", r.OrphanSegments)
	fmt.Printf("  stale segment counts: %d\n", r.StaleCounts)
	fmt.Printf("  index drift:          %d\n", r.Segments-r.IndexedSegments)

	if !r.Healthy() {
		fmt.Println("\nStore has inconsistencies.")
		os.Exit(1)
	}
	fmt.Println("\nStore is consistent.")
}

// ── artifact commands ──

func cmdExport(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	dir := fs.String("transcripts", cfg.TranscriptsDir, "transcripts directory")
	force := fs.Bool("force", false, "overwrite existing CSV files")
	fs.Parse(args)

	entries, err := os.ReadDir(*dir)
	if err != nil {
		fatal("read dir %s: %v", *dir, err)
	}

	var exported, skipped, failed int
	for _, ent := range entries {
		if ent.IsDir() || !ingest.IsTranscriptName(ent.Name()) {
			continue
		}
		src := filepath.Join(*dir, ent.Name())
		dst := strings.TrimSuffix(src, ".json") + ".csv"
		if !*force {
			if _, err := os.Stat(dst); err == nil {
				skipped++
				continue
			}
		}
		data, err := os.ReadFile(src)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skipping %s: %v\n", ent.Name(), err)
			failed++
			continue
		}
		tf, err := ingest.ParseTranscriptFile(data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skipping %s: %v\n", ent.Name(), err)
			failed++
			continue
		}
		if err := export.ExportCSV(dst, tf.ToSegments()); err != nil {
			fmt.Fprintf(os.Stderr, "export %s: %v\n", ent.Name(), err)
			failed++
			continue
		}
		exported++
	}

	fmt.Printf("CSV export complete: %d exported, %d skipped, %d failed\n", exported, skipped, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func cmdStatic(ctx context.Context, cfg *config.Config, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("static", flag.ExitOnError)
	dbPath := fs.String("db", cfg.DatabasePath, "store path")
	out := fs.String("out", "./static_site", "output directory")
	fs.Parse(args)

	db := openStore(ctx, *dbPath, log)
	defer db.Close()

	if err := export.ExportStatic(ctx, db, *out); err != nil {
		fatal("static export failed: %v", err)
	}
	fmt.Printf("Wrote manifest.json and index.json to %s\n", *out)
}

func cmdSummarize(ctx context.Context, cfg *config.Config, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("summarize", flag.ExitOnError)
	dir := fs.String("transcripts", cfg.TranscriptsDir, "transcripts directory")
	force := fs.Bool("force", false, "regenerate existing summaries")
	test := fs.Bool("test", false, "only test the LLM connection")
	fs.Parse(args)

	if cfg.LLMURL == "" {
		fatal("LLM_URL is not configured")
	}
	client := summarize.NewClient(cfg.LLMURL, cfg.LLMModel, cfg.LLMTimeout, log)

	if *test {
		if err := client.Ping(ctx); err != nil {
			fatal("LLM connection test failed: %v", err)
		}
		fmt.Println("LLM connection test succeeded.")
		return
	}

	report, err := client.SummarizeDir(ctx, *dir, *force)
	if err != nil {
		fatal("summarize failed: %v", err)
	}
	fmt.Printf("Summarization complete: %d summarized, %d skipped, %d failed\n",
		report.Summarized, report.Skipped, report.Failed)
	if report.Failed > 0 {
		os.Exit(1)
	}
}

func cmdCollate(cfg *config.Config, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("collate", flag.ExitOnError)
	dir := fs.String("transcripts", cfg.TranscriptsDir, "transcripts directory")
	out := fs.String("out", "", "output Markdown path (default <transcripts>/all_summaries.md)")
	fs.Parse(args)

	path, n, err := summarize.Collate(*dir, *out, log)
	if err != nil {
		fatal("collate failed: %v", err)
	}
	fmt.Printf("Collated %d summaries into %s\n", n, path)
}

func cmdPipeline(ctx context.Context, cfg *config.Config, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("pipeline", flag.ExitOnError)
	dbPath := fs.String("db", cfg.DatabasePath, "store path")
	outDir := fs.String("transcripts", cfg.TranscriptsDir, "output directory for transcript artifacts")
	force := fs.Bool("force", false, "reprocess recordings with done markers")
	keep := fs.Bool("keep-fetched", false, "keep downloaded recordings after processing")
	fs.Parse(args)

	if cfg.ASRURL == "" {
		fatal("ASR_URL is not configured")
	}

	db := openStore(ctx, *dbPath, log)
	defer db.Close()

	src, services, err := storage.New(cfg, log)
	if err != nil {
		fatal("failed to initialize recording source: %v", err)
	}
	for _, svc := range services {
		svc.Start()
	}
	defer func() {
		for _, svc := range services {
			svc.Stop()
		}
	}()

	pool := transcribe.NewWorkerPool(transcribe.WorkerPoolOptions{
		Source:    src,
		Provider:  transcribe.NewWhisperClient(cfg.ASRURL, cfg.ASRModel, cfg.ASRTimeout),
		Syncer:    ingest.NewSyncer(db, nil, log),
		OutputDir: *outDir,
		ASROpts:   transcribe.TranscribeOpts{Language: cfg.ASRLanguage},
		Workers:   cfg.ASRWorkers,
		QueueSize: cfg.ASRQueue,
		DiskWait: storage.WaitOptions{
			MinFreeGB:     cfg.MinFreeGB,
			CheckInterval: cfg.DiskCheckInterval,
			MaxWait:       cfg.DiskMaxWait,
		},
		KeepFetched: *keep,
		RunLogPath:  filepath.Join(*outDir, "run_log.csv"),
		Timeout:     cfg.ASRTimeout,
		Log:         log,
	})

	stats, err := transcribe.RunBatch(ctx, pool, *force, log)
	if err != nil {
		fatal("pipeline failed: %v", err)
	}
	fmt.Printf("Pipeline complete: %d transcribed, %d skipped, %d failed\n",
		stats.Completed, stats.Skipped, stats.Failed)
	if stats.Failed > 0 {
		os.Exit(1)
	}
}

// ── helpers ──

func openStore(ctx context.Context, path string, log zerolog.Logger) *store.DB {
	db, err := store.Open(ctx, path, log)
	if err != nil {
		fatal("failed to open store %s: %v", path, err)
	}
	if err := db.InitSchema(ctx); err != nil {
		db.Close()
		fatal("failed to initialize schema: %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		fatal("failed to run migrations: %v", err)
	}
	return db
}

// searcherFor returns the FTS-backed store, or an in-memory index loaded
// from it when mem is set.
func searcherFor(ctx context.Context, db *store.DB, mem bool) (search.Searcher, error) {
	if !mem {
		return db, nil
	}
	ix := memindex.New()
	trs, err := db.ListTranscripts(ctx, 0)
	if err != nil {
		return nil, err
	}
	for _, tr := range trs {
		segs, err := db.ListSegments(ctx, store.SegmentFilter{TranscriptID: tr.ID})
		if err != nil {
			return nil, err
		}
		ix.AddTranscript(tr, segs)
	}
	return ix, nil
}

func speakerLabel(sp *string) string {
	if sp == nil || *sp == "" {
		return model.UnknownSpeaker
	}
	return *sp
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: lecternctl [-env-file PATH] [-v] <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  sync       Import transcript files into the store")
	fmt.Fprintln(os.Stderr, "  search     Search segments, ranked")
	fmt.Fprintln(os.Stderr, "  kwic       Keyword-in-context search")
	fmt.Fprintln(os.Stderr, "  hits       Count matches per file or speaker")
	fmt.Fprintln(os.Stderr, "  list       List transcripts")
	fmt.Fprintln(os.Stderr, "  stats      Collection statistics")
	fmt.Fprintln(os.Stderr, "  check      Audit store integrity")
	fmt.Fprintln(os.Stderr, "  export     Write CSV siblings for transcript JSON files")
	fmt.Fprintln(os.Stderr, "  static     Export manifest.json and index.json for static hosting")
	fmt.Fprintln(os.Stderr, "  summarize  Summarize transcripts via the configured LLM")
	fmt.Fprintln(os.Stderr, "  collate    Merge summaries into one Markdown document")
	fmt.Fprintln(os.Stderr, "  pipeline   Transcribe unprocessed recordings in batch")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Examples:")
	fmt.Fprintln(os.Stderr, `  lecternctl sync -db lectern.db -transcripts ./transcripts`)
	fmt.Fprintln(os.Stderr, `  lecternctl search -query "cell wall" -limit 20`)
	fmt.Fprintln(os.Stderr, `  lecternctl kwic -query photosynthesis -context 8`)
	fmt.Fprintln(os.Stderr, `  lecternctl hits -query mitosis -group-by speaker`)
}
