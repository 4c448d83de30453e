package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// DiskFreeGB returns the free disk space in GB for the filesystem holding path.
func DiskFreeGB(path string) (float64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return float64(st.Bavail) * float64(st.Bsize) / (1 << 30), nil
}

// WaitOptions controls the disk-space wait policy.
type WaitOptions struct {
	MinFreeGB     float64
	CheckInterval time.Duration
	MaxWait       time.Duration
}

// WaitForDiskSpace blocks until the filesystem holding path has at least
// MinFreeGB free, rechecking every CheckInterval. Returns an error when
// MaxWait elapses or the context is cancelled.
func WaitForDiskSpace(ctx context.Context, path string, opts WaitOptions, log zerolog.Logger) error {
	if opts.MinFreeGB <= 0 {
		return nil
	}
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = 30 * time.Second
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = 60 * time.Minute
	}

	deadline := time.Now().Add(opts.MaxWait)
	for {
		free, err := DiskFreeGB(path)
		if err != nil {
			return err
		}
		if free >= opts.MinFreeGB {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("insufficient disk space after waiting %s: %.1fGB available, %.1fGB required",
				opts.MaxWait, free, opts.MinFreeGB)
		}

		log.Warn().
			Float64("free_gb", free).
			Float64("required_gb", opts.MinFreeGB).
			Msg("insufficient disk space, waiting")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(opts.CheckInterval):
		}
	}
}
