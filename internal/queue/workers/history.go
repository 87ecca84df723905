package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/kokorotts/internal/models"
	"github.com/nikhilbhutani/kokorotts/internal/queue"
	"github.com/nikhilbhutani/kokorotts/internal/users"
)

type HistoryStore interface {
	RecordHistory(ctx context.Context, id int64, entry models.HistoryEntry) error
}

type HistoryWorker struct {
	store HistoryStore
}

func NewHistoryWorker(store HistoryStore) *HistoryWorker {
	return &HistoryWorker{store: store}
}

func (w *HistoryWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.HistoryRecordPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	err := w.store.RecordHistory(ctx, payload.UserID, payload.Entry)
	if errors.Is(err, users.ErrNotFound) {
		slog.Warn("dropping history entry for missing user", "user_id", payload.UserID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("record history for user %d: %w", payload.UserID, err)
	}

	slog.Info("recorded history entry", "user_id", payload.UserID, "audio_file", payload.Entry.AudioFile)
	return nil
}
