package transcribe

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// RunLog appends one CSV row per processed recording so long batches leave
// an auditable trail. Columns: file, outcome, duration_s, error.
type RunLog struct {
	mu   sync.Mutex
	path string
}

// NewRunLog creates a run log writer. An empty path returns nil; Append is
// safe on a nil receiver.
func NewRunLog(path string) *RunLog {
	if path == "" {
		return nil
	}
	return &RunLog{path: path}
}

// Append writes one row, creating the file with a header row on first use.
func (rl *RunLog) Append(file, outcome string, took time.Duration, runErr error) error {
	if rl == nil {
		return nil
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if dir := filepath.Dir(rl.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	writeHeader := false
	if _, err := os.Stat(rl.path); os.IsNotExist(err) {
		writeHeader = true
	}

	f, err := os.OpenFile(rl.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open run log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if writeHeader {
		if err := cw.Write([]string{"file", "outcome", "duration_s", "error"}); err != nil {
			return err
		}
	}
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	if err := cw.Write([]string{file, outcome, fmt.Sprintf("%.1f", took.Seconds()), msg}); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}
