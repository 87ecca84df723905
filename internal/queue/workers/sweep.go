package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/kokorotts/internal/queue"
)

// SweepWorker deletes generated artifacts older than a cutoff.
type SweepWorker struct {
	dir    string
	maxAge time.Duration
	now    func() time.Time
}

func NewSweepWorker(dir string, maxAge time.Duration) *SweepWorker {
	return &SweepWorker{dir: dir, maxAge: maxAge, now: time.Now}
}

func (w *SweepWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	maxAge := w.maxAge
	var payload queue.ArtifactSweepPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
		}
		if payload.MaxAgeSeconds > 0 {
			maxAge = time.Duration(payload.MaxAgeSeconds) * time.Second
		}
	}

	removed, err := w.Sweep(ctx, maxAge)
	if err != nil {
		return err
	}
	slog.Info("artifact sweep finished", "dir", w.dir, "removed", removed, "max_age", maxAge)
	return nil
}

// Sweep removes .wav files in the output directory last modified more than
// maxAge ago and returns how many were deleted.
func (w *SweepWorker) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read output dir: %w", err)
	}

	cutoff := w.now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".wav") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(w.dir, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to remove artifact", "file", e.Name(), "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}
