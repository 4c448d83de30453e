package transcribe

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// RunBatch lists the pool's source and pushes every unprocessed recording
// through it, blocking until the batch drains. The pool must not have been
// started; RunBatch owns its lifecycle. force requeues recordings that
// already carry done markers.
func RunBatch(ctx context.Context, pool *WorkerPool, force bool, log zerolog.Logger) (QueueStats, error) {
	recs, err := pool.opts.Source.List(ctx)
	if err != nil {
		return QueueStats{}, err
	}

	var queued, alreadyDone int
	pool.Start()
	for _, rec := range recs {
		if !force {
			if _, err := os.Stat(doneMarkerPath(pool.OutputDir(), rec.Stem())); err == nil {
				alreadyDone++
				continue
			}
		}
		job := Job{Key: rec.Key, Force: force}
		for !pool.Enqueue(job) {
			select {
			case <-ctx.Done():
				pool.Stop()
				return pool.Stats(), ctx.Err()
			case <-time.After(100 * time.Millisecond):
			}
		}
		queued++
	}
	pool.Stop()

	stats := pool.Stats()
	log.Info().
		Int("listed", len(recs)).
		Int("queued", queued).
		Int("already_done", alreadyDone).
		Int64("completed", stats.Completed).
		Int64("failed", stats.Failed).
		Msg("batch complete")
	return stats, nil
}
