package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Queue key constants. Both queues are plain Redis lists: producers LPUSH,
// the single consumer RPOP, giving durable FIFO order across restarts.
const (
	PrimaryQueueKey = "notification:queue"
	RetryQueueKey   = "notification:retry"
)

// Queue is a durable FIFO backed by a Redis list.
type Queue struct {
	client *Client
	key    string
	logger *zap.Logger
}

// NewQueue creates a queue over the given list key.
func NewQueue(client *Client, key string, logger *zap.Logger) *Queue {
	return &Queue{
		client: client,
		key:    key,
		logger: logger,
	}
}

// Key returns the underlying list key.
func (q *Queue) Key() string {
	return q.key
}

// Push appends an item to the queue head.
func (q *Queue) Push(ctx context.Context, item string) error {
	if err := q.client.rdb.LPush(ctx, q.key, item).Err(); err != nil {
		q.logger.Error("failed to push queue item",
			zap.Error(err),
			zap.String("queue", q.key),
		)
		return fmt.Errorf("lpush %s: %w", q.key, err)
	}
	return nil
}

// Pop removes and returns the oldest item. The second return value is
// false when the queue is empty.
func (q *Queue) Pop(ctx context.Context) (string, bool, error) {
	val, err := q.client.rdb.RPop(ctx, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("rpop %s: %w", q.key, err)
	}
	return val, true, nil
}

// Len reports the current queue depth.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.rdb.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("llen %s: %w", q.key, err)
	}
	return n, nil
}
