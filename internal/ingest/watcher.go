package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/snarg/lectern/internal/store"
)

// Watcher monitors the transcript collection directory and syncs files as
// they appear or change, so the index stays current without re-running the
// sync command by hand. Deletions are deliberately ignored: a transcript
// stays in the store until it is removed explicitly.
type Watcher struct {
	syncer   *Syncer
	watchDir string
	log      zerolog.Logger

	watcher *fsnotify.Watcher
	ctx     context.Context

	// Debounce: coalesce rapid Create+Write events on the same file.
	debounceMu     sync.Mutex
	debounceTimers map[string]*time.Timer

	// Stats
	filesSynced  atomic.Int64
	filesSkipped atomic.Int64
	filesErrored atomic.Int64
	status       atomic.Value // string: "starting", "syncing", "watching", "stopped"
}

// WatcherStatus is the watcher's state as reported by the health endpoint.
type WatcherStatus struct {
	Status       string `json:"status"`
	WatchDir     string `json:"watch_dir"`
	FilesSynced  int64  `json:"files_synced"`
	FilesSkipped int64  `json:"files_skipped"`
	FilesErrored int64  `json:"files_errored"`
}

// NewWatcher creates a watcher over dir. Call Start to begin watching.
func NewWatcher(syncer *Syncer, dir string, log zerolog.Logger) *Watcher {
	w := &Watcher{
		syncer:         syncer,
		watchDir:       dir,
		log:            log.With().Str("component", "watcher").Logger(),
		debounceTimers: make(map[string]*time.Timer),
	}
	w.status.Store("starting")
	return w
}

// Start begins watching the collection directory and kicks off an initial
// full sync in the background. The watcher stops when ctx is cancelled or
// Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.watchDir); err != nil {
		fsw.Close()
		return err
	}
	w.watcher = fsw
	w.ctx = ctx

	w.log.Info().Str("watch_dir", w.watchDir).Msg("File watcher initialized")

	go w.watchLoop()
	go w.initialSync()

	return nil
}

// Stop closes the fsnotify watcher. Debounced files still in flight are
// dropped.
func (w *Watcher) Stop() {
	w.status.Store("stopped")
	if w.watcher != nil {
		w.watcher.Close()
	}
	w.log.Info().
		Int64("files_synced", w.filesSynced.Load()).
		Int64("files_skipped", w.filesSkipped.Load()).
		Int64("files_errored", w.filesErrored.Load()).
		Msg("File watcher stopped")
}

// Status returns the current watcher state for the health endpoint.
func (w *Watcher) Status() WatcherStatus {
	s, _ := w.status.Load().(string)
	return WatcherStatus{
		Status:       s,
		WatchDir:     w.watchDir,
		FilesSynced:  w.filesSynced.Load(),
		FilesSkipped: w.filesSkipped.Load(),
		FilesErrored: w.filesErrored.Load(),
	}
}

// initialSync brings the store up to date with files that changed while the
// server was down, then flips the watcher to its steady state.
func (w *Watcher) initialSync() {
	w.status.Store("syncing")
	start := time.Now()

	rep, err := w.syncer.SyncDir(w.ctx, w.watchDir, false)
	if err != nil {
		w.log.Error().Err(err).Msg("Initial sync failed")
	}
	w.filesSynced.Add(int64(rep.Imported + rep.Updated))
	w.filesSkipped.Add(int64(rep.Skipped))
	w.filesErrored.Add(int64(rep.Errors))

	w.status.Store("watching")
	w.log.Info().
		Int("imported", rep.Imported).
		Int("updated", rep.Updated).
		Dur("elapsed", time.Since(start)).
		Msg("Initial sync complete")
}

// watchLoop is the main event loop that processes fsnotify events.
func (w *Watcher) watchLoop() {
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}

			// The collection is flat; anything that isn't a transcript
			// document (subdirectories, artifacts, summary sidecars) is
			// ignored.
			if info, err := os.Stat(event.Name); err != nil || info.IsDir() {
				continue
			}
			if !IsTranscriptName(strings.ToLower(filepath.Base(event.Name))) {
				continue
			}

			w.scheduleSync(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("fsnotify error")
		}
	}
}

// scheduleSync debounces file processing by 500ms. This coalesces rapid
// Create+Write events and ensures the file is fully written before reading.
func (w *Watcher) scheduleSync(path string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if t, ok := w.debounceTimers[path]; ok {
		t.Reset(500 * time.Millisecond)
		return
	}

	w.debounceTimers[path] = time.AfterFunc(500*time.Millisecond, func() {
		w.debounceMu.Lock()
		delete(w.debounceTimers, path)
		w.debounceMu.Unlock()

		w.syncFile(path)
	})
}

// syncFile imports one changed file and updates the counters.
func (w *Watcher) syncFile(path string) {
	outcome, err := w.syncer.SyncFile(w.ctx, path, false)
	if err != nil {
		w.filesErrored.Add(1)
		w.log.Warn().Err(err).Str("path", path).Msg("Failed to sync watched file")
		return
	}
	if outcome == store.OutcomeSkipped {
		w.filesSkipped.Add(1)
		return
	}
	w.filesSynced.Add(1)
}
