package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/kokorotts/internal/config"
	"github.com/nikhilbhutani/kokorotts/internal/models"
)

type Client struct {
	client *asynq.Client
}

func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{client: asynq.NewClient(RedisOpt(cfg))}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// RecordHistory enqueues a history entry for the worker to persist. It has
// the same shape as users.Repository.RecordHistory so the API can use either.
func (c *Client) RecordHistory(ctx context.Context, userID int64, entry models.HistoryEntry) error {
	payload := HistoryRecordPayload{UserID: userID, Entry: entry}
	return c.enqueue(ctx, TypeHistoryRecord, payload, asynq.MaxRetry(5), asynq.Timeout(30*time.Second))
}

func (c *Client) enqueue(ctx context.Context, taskType string, payload interface{}, opts ...asynq.Option) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(taskType, data)
	if _, err := c.client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}

// NewSweepTask builds the periodic artifact housekeeping task.
func NewSweepTask(maxAge time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(ArtifactSweepPayload{MaxAgeSeconds: int64(maxAge / time.Second)})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(TypeArtifactSweep, data, asynq.MaxRetry(0), asynq.Timeout(5*time.Minute)), nil
}
