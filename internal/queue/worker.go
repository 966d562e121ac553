// Package queue holds the durable notification queue wire format and
// the background worker that drains it.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/heraldapp/herald/internal/db"
	"github.com/heraldapp/herald/internal/metrics"
)

// Queue is the Redis list surface the worker drains.
type Queue interface {
	Push(ctx context.Context, item string) error
	Pop(ctx context.Context) (string, bool, error)
	Len(ctx context.Context) (int64, error)
}

// Repository is the audit-log surface the retry path needs.
type Repository interface {
	GetLog(ctx context.Context, id uuid.UUID) (*db.NotificationLog, error)
	UpdateLogOutcome(ctx context.Context, id uuid.UUID, status string, retryCount int, errorMsg *string, sentAt *time.Time) error
}

// Dispatcher drives one notification attempt end to end.
type Dispatcher interface {
	DispatchQueued(ctx context.Context, item *Item) (*db.NotificationLog, error)
	Resend(ctx context.Context, log *db.NotificationLog) (*db.NotificationLog, error)
}

// Config holds the drain cadence for both loops. Each cycle pops items
// for at most the drain window, then sleeps until the next tick; a
// per-item idle wait bounds how long an empty pop stalls a cycle.
type Config struct {
	PrimaryInterval time.Duration
	PrimaryWindow   time.Duration
	PrimaryIdleWait time.Duration

	RetryInterval time.Duration
	RetryWindow   time.Duration
	RetryIdleWait time.Duration

	MaxRetries int
}

// Worker drains the primary and retry queues on independent cadences.
type Worker struct {
	primary    Queue
	retry      Queue
	repo       Repository
	dispatcher Dispatcher
	config     Config
	logger     *zap.Logger
}

func New(primary, retry Queue, repo Repository, dispatcher Dispatcher, cfg Config, logger *zap.Logger) *Worker {
	if cfg.PrimaryInterval == 0 {
		cfg.PrimaryInterval = 5 * time.Second
	}
	if cfg.PrimaryWindow == 0 {
		cfg.PrimaryWindow = 4 * time.Second
	}
	if cfg.PrimaryIdleWait == 0 {
		cfg.PrimaryIdleWait = 1 * time.Second
	}
	if cfg.RetryInterval == 0 {
		cfg.RetryInterval = 30 * time.Second
	}
	if cfg.RetryWindow == 0 {
		cfg.RetryWindow = 25 * time.Second
	}
	if cfg.RetryIdleWait == 0 {
		cfg.RetryIdleWait = 5 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}

	return &Worker{
		primary:    primary,
		retry:      retry,
		repo:       repo,
		dispatcher: dispatcher,
		config:     cfg,
		logger:     logger,
	}
}

// Start runs both drain loops until the context is cancelled.
func (w *Worker) Start(ctx context.Context) {
	go w.runLoop(ctx, "primary", w.primary, w.config.PrimaryInterval, w.config.PrimaryWindow, w.config.PrimaryIdleWait, w.processPrimaryItem)
	w.runLoop(ctx, "retry", w.retry, w.config.RetryInterval, w.config.RetryWindow, w.config.RetryIdleWait, w.processRetryItem)
}

// runLoop ticks at interval and drains items for at most window per
// cycle. An empty pop sleeps for idleWait before trying again inside
// the same window, so a quiet queue does not spin.
func (w *Worker) runLoop(ctx context.Context, name string, q Queue, interval, window, idleWait time.Duration, process func(context.Context, string)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("queue worker stopping", zap.String("loop", name))
			return
		case <-ticker.C:
			w.drain(ctx, name, q, window, idleWait, process)
		}
	}
}

func (w *Worker) drain(ctx context.Context, name string, q Queue, window, idleWait time.Duration, process func(context.Context, string)) {
	deadline := time.Now().Add(window)
	drained := 0

	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return
		}

		raw, ok, err := q.Pop(ctx)
		if err != nil {
			w.logger.Error("queue pop failed",
				zap.String("loop", name),
				zap.Error(err),
			)
			return
		}
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(idleWait):
			}
			continue
		}

		process(ctx, raw)
		drained++
	}

	if drained > 0 {
		metrics.RecordDrained(name, drained)
		w.logger.Info("drain cycle complete",
			zap.String("loop", name),
			zap.Int("items", drained),
		)
	}
}

// processPrimaryItem parses and dispatches one primary-queue entry.
// Malformed entries are logged and dropped; a FAILED dispatch is
// admitted to the retry queue.
func (w *Worker) processPrimaryItem(ctx context.Context, raw string) {
	item, err := ParseItem(raw)
	if err != nil {
		w.logger.Warn("dropping malformed queue item",
			zap.String("item", raw),
			zap.Error(err),
		)
		return
	}

	log, err := w.dispatcher.DispatchQueued(ctx, item)
	if err != nil {
		w.logger.Error("queued dispatch failed",
			zap.String("recipient", item.Recipient),
			zap.Error(err),
		)
		return
	}

	if log.Status == db.StatusFailed {
		w.EnqueueRetry(ctx, log.LogID, 0)
	}
}

// processRetryItem reloads the referenced log, marks it PENDING with
// the bumped retry count, and re-drives it through the dispatcher. A
// still-failing send goes back on the retry queue until the cap.
func (w *Worker) processRetryItem(ctx context.Context, raw string) {
	item, err := ParseRetryItem(raw)
	if err != nil {
		w.logger.Warn("dropping malformed retry item",
			zap.String("item", raw),
			zap.Error(err),
		)
		return
	}

	log, err := w.repo.GetLog(ctx, item.LogID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			w.logger.Warn("dropping retry for missing log",
				zap.String("log_id", item.LogID.String()),
			)
			return
		}
		w.logger.Error("failed to load log for retry",
			zap.String("log_id", item.LogID.String()),
			zap.Error(err),
		)
		return
	}

	newCount := item.RetryCount + 1
	if err := w.repo.UpdateLogOutcome(ctx, log.LogID, db.StatusPending, newCount, nil, nil); err != nil {
		w.logger.Error("failed to mark log pending for retry",
			zap.String("log_id", log.LogID.String()),
			zap.Error(err),
		)
		return
	}
	log.Status = db.StatusPending
	log.RetryCount = newCount

	w.logger.Info("retrying notification",
		zap.String("log_id", log.LogID.String()),
		zap.Int("retry_count", newCount),
	)
	metrics.RecordRetry(log.NotificationType)

	updated, err := w.dispatcher.Resend(ctx, log)
	if err != nil {
		w.logger.Error("resend failed",
			zap.String("log_id", log.LogID.String()),
			zap.Error(err),
		)
		return
	}

	if updated.Status == db.StatusFailed {
		w.EnqueueRetry(ctx, updated.LogID, newCount)
	}
}

// EnqueueRetry admits a failed notification to the retry queue unless
// the retry budget is already spent. RetryCount is the number of
// retries performed so far.
func (w *Worker) EnqueueRetry(ctx context.Context, logID uuid.UUID, retryCount int) {
	if retryCount >= w.config.MaxRetries {
		w.logger.Warn("retry budget exhausted",
			zap.String("log_id", logID.String()),
			zap.Int("retry_count", retryCount),
		)
		return
	}

	item := RetryItem{LogID: logID, RetryCount: retryCount}
	if err := w.retry.Push(ctx, item.Encode()); err != nil {
		w.logger.Error("failed to enqueue retry",
			zap.String("log_id", logID.String()),
			zap.Error(err),
		)
	}
}
