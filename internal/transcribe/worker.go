package transcribe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/lectern/internal/export"
	"github.com/snarg/lectern/internal/ingest"
	"github.com/snarg/lectern/internal/metrics"
	"github.com/snarg/lectern/internal/model"
	"github.com/snarg/lectern/internal/storage"
)

// Job is one recording queued for transcription.
type Job struct {
	Key   string // recording key within the source
	Force bool   // retranscribe even when a done marker exists
}

// QueueStats reports the current state of the transcription queue.
type QueueStats struct {
	Pending   int   `json:"pending"`
	Completed int64 `json:"completed"`
	Skipped   int64 `json:"skipped"`
	Failed    int64 `json:"failed"`
}

// Run-log outcomes.
const (
	outcomeTranscribed = "transcribed"
	outcomeSkipped     = "skipped"
	outcomeFailed      = "failed"
)

// WorkerPoolOptions configures the transcription worker pool.
type WorkerPoolOptions struct {
	Source   storage.Source
	Provider Provider
	Syncer   *ingest.Syncer   // nil = write artifacts without importing
	Bus      *ingest.EventBus // nil = no events

	OutputDir string // transcript artifacts + done markers
	ASROpts   TranscribeOpts
	Workers   int
	QueueSize int

	// Disk-space wait before each fetch; zero MinFreeGB disables it.
	DiskWait storage.WaitOptions
	WaitPath string // filesystem checked for free space (defaults to OutputDir)

	KeepFetched bool          // keep downloaded recordings after processing
	RunLogPath  string        // optional per-recording CSV run log
	Timeout     time.Duration // per-job ceiling (defaults to 15m)
	Log         zerolog.Logger
}

// WorkerPool manages transcription workers.
type WorkerPool struct {
	jobs     chan Job
	provider Provider
	syncer   *ingest.Syncer
	bus      *ingest.EventBus
	runLog   *RunLog
	opts     WorkerPoolOptions
	waitPath string
	timeout  time.Duration
	log      zerolog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopped  atomic.Bool

	completed atomic.Int64
	skipped   atomic.Int64
	failed    atomic.Int64
}

// NewWorkerPool creates a new transcription worker pool.
func NewWorkerPool(opts WorkerPoolOptions) *WorkerPool {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 32
	}
	waitPath := opts.WaitPath
	if waitPath == "" {
		waitPath = opts.OutputDir
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		jobs:     make(chan Job, opts.QueueSize),
		provider: opts.Provider,
		syncer:   opts.Syncer,
		bus:      opts.Bus,
		runLog:   NewRunLog(opts.RunLogPath),
		opts:     opts,
		waitPath: waitPath,
		timeout:  timeout,
		log:      opts.Log,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start() {
	for i := 0; i < wp.opts.Workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
	wp.log.Info().Int("workers", wp.opts.Workers).Int("queue_size", wp.opts.QueueSize).Msg("transcription worker pool started")
}

// Stop signals workers to drain and waits for completion. Safe to call
// more than once.
func (wp *WorkerPool) Stop() {
	if wp.stopped.Swap(true) {
		return
	}
	close(wp.jobs)
	wp.wg.Wait()
	wp.cancel()
	wp.log.Info().
		Int64("completed", wp.completed.Load()).
		Int64("skipped", wp.skipped.Load()).
		Int64("failed", wp.failed.Load()).
		Msg("transcription worker pool stopped")
}

// Enqueue adds a job to the transcription queue. Returns false if the
// queue is full or the pool has stopped.
func (wp *WorkerPool) Enqueue(j Job) bool {
	if wp.stopped.Load() {
		return false
	}
	select {
	case wp.jobs <- j:
		return true
	default:
		return false
	}
}

// Stats returns current queue statistics.
func (wp *WorkerPool) Stats() QueueStats {
	return QueueStats{
		Pending:   len(wp.jobs),
		Completed: wp.completed.Load(),
		Skipped:   wp.skipped.Load(),
		Failed:    wp.failed.Load(),
	}
}

// Model returns the configured ASR model name.
func (wp *WorkerPool) Model() string { return wp.provider.Model() }

// Workers returns the number of worker goroutines.
func (wp *WorkerPool) Workers() int { return wp.opts.Workers }

// OutputDir returns the directory receiving transcript artifacts.
func (wp *WorkerPool) OutputDir() string { return wp.opts.OutputDir }

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()
	log := wp.log.With().Int("worker", id).Logger()

	for job := range wp.jobs {
		start := time.Now()
		outcome, err := wp.processJob(log, job)
		took := time.Since(start)
		switch {
		case err != nil:
			wp.failed.Add(1)
			metrics.TranscriptionsTotal.WithLabelValues(outcomeFailed).Inc()
			log.Warn().Err(err).Str("key", job.Key).Msg("transcription failed")
			wp.appendRunLog(job.Key, outcomeFailed, took, err)
		case outcome == outcomeSkipped:
			wp.skipped.Add(1)
			metrics.TranscriptionsTotal.WithLabelValues(outcomeSkipped).Inc()
		default:
			wp.completed.Add(1)
			metrics.TranscriptionsTotal.WithLabelValues(outcome).Inc()
			metrics.TranscriptionDuration.Observe(took.Seconds())
			wp.appendRunLog(job.Key, outcome, took, nil)
		}
	}
}

func (wp *WorkerPool) processJob(log zerolog.Logger, job Job) (string, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(wp.ctx, wp.timeout)
	defer cancel()

	stem := storage.Recording{Key: job.Key}.Stem()
	marker := doneMarkerPath(wp.opts.OutputDir, stem)

	// 1. Skip recordings that already carry a done marker
	if !job.Force {
		if _, err := os.Stat(marker); err == nil {
			log.Debug().Str("key", job.Key).Msg("already transcribed, skipping")
			return outcomeSkipped, nil
		}
	}

	// 2. Wait for disk space before pulling audio down
	if wp.opts.DiskWait.MinFreeGB > 0 {
		if err := storage.WaitForDiskSpace(ctx, wp.waitPath, wp.opts.DiskWait, log); err != nil {
			return outcomeFailed, errorf("disk space: %w", err)
		}
	}

	// 3. Fetch the recording
	audioPath, err := wp.opts.Source.Fetch(ctx, job.Key)
	if err != nil {
		return outcomeFailed, errorf("fetch: %w", err)
	}
	if !wp.opts.KeepFetched && wp.opts.Source.Type() == "s3" {
		defer wp.cleanupFetched(log, audioPath)
	}

	// 4. Send to the ASR provider
	resp, err := wp.provider.Transcribe(ctx, audioPath, wp.opts.ASROpts)
	if err != nil {
		return outcomeFailed, errorf("%s: %w", wp.provider.Name(), err)
	}

	// 5. Speaker assignment from the diarization sidecar, when one exists
	var turns []Turn
	if sidecarPath, serr := wp.opts.Source.Fetch(ctx, DiarizationSidecar(job.Key)); serr == nil {
		if turns, serr = LoadTurns(sidecarPath); serr != nil {
			log.Warn().Err(serr).Str("key", job.Key).Msg("diarization sidecar unreadable, continuing without speakers")
		}
	}
	tf := &model.TranscriptFile{
		AudioPath: job.Key,
		Language:  resp.Language,
		Speakers:  SpeakerSet(turns),
		Segments:  AssignSpeakers(resp.Segments, turns),
	}

	// 6. Write transcript JSON + subtitle artifacts
	paths, err := export.WriteArtifacts(wp.opts.OutputDir, stem, tf)
	if err != nil {
		return outcomeFailed, errorf("write artifacts: %w", err)
	}

	// 7. Import into the store
	if wp.syncer != nil {
		if _, err := wp.syncer.SyncFile(ctx, paths.JSON, false); err != nil {
			return outcomeFailed, errorf("import: %w", err)
		}
	}

	// 8. Mark the recording processed
	if err := os.WriteFile(marker, nil, 0o644); err != nil {
		return outcomeFailed, errorf("done marker: %w", err)
	}

	took := time.Since(start)
	wp.bus.Publish(ingest.EventData{
		Type:     "transcribe",
		Outcome:  "completed",
		Filename: stem,
		Payload: map[string]any{
			"key":         job.Key,
			"segments":    len(tf.Segments),
			"audio_s":     resp.Duration,
			"model":       wp.provider.Model(),
			"duration_ms": took.Milliseconds(),
		},
	})

	log.Info().
		Str("key", job.Key).
		Int("segments", len(tf.Segments)).
		Int("speakers", len(tf.Speakers)).
		Float64("audio_s", resp.Duration).
		Dur("took", took).
		Msg("transcription complete")

	return outcomeTranscribed, nil
}

// cleanupFetched removes a recording downloaded for this job. The cache
// pruner would get it eventually; removing it now keeps scratch space flat
// during long batches.
func (wp *WorkerPool) cleanupFetched(log zerolog.Logger, path string) {
	if err := os.Remove(path); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("could not clean up fetched recording")
		return
	}
	log.Debug().Str("path", path).Msg("cleaned up fetched recording")
}

func (wp *WorkerPool) appendRunLog(key, outcome string, took time.Duration, runErr error) {
	if err := wp.runLog.Append(key, outcome, took, runErr); err != nil {
		wp.log.Warn().Err(err).Msg("run log append failed")
	}
}

// doneMarkerPath returns the marker recording that a stem was processed.
func doneMarkerPath(outputDir, stem string) string {
	return filepath.Join(outputDir, stem+".done")
}

func errorf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}
