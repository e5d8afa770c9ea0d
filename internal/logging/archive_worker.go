package logging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"llm_router/internal/queue"
	"llm_router/internal/utils"
)

// ArchiveWorker drains session records from a queue and writes them to a
// BatchWriter in batches. A batch that keeps failing is moved to the DLQ.
type ArchiveWorker struct {
	queue  queue.Queue
	dlq    queue.DeadLetterQueue
	writer BatchWriter
	config *queue.Config
	logger *utils.Logger

	// drainTimeout bounds the final flush after ctx is cancelled
	drainTimeout time.Duration
}

// NewArchiveWorker creates a worker. dlq may be nil, in which case failed
// batches are dropped after logging.
func NewArchiveWorker(q queue.Queue, dlq queue.DeadLetterQueue, writer BatchWriter, config *queue.Config) *ArchiveWorker {
	if config == nil {
		config = queue.DefaultConfig("sessions")
	}

	return &ArchiveWorker{
		queue:        q,
		dlq:          dlq,
		writer:       writer,
		config:       config,
		logger:       utils.NewLogger("archive-worker"),
		drainTimeout: 10 * time.Second,
	}
}

// Run processes batches until ctx is cancelled, then flushes what is left
// in the queue. It returns nil on a normal shutdown.
func (w *ArchiveWorker) Run(ctx context.Context) error {
	w.logger.Info("Archive worker started", "batch_size", w.config.BatchSize, "batch_timeout", w.config.BatchTimeout)

	for ctx.Err() == nil {
		items, err := w.queue.DequeueWithTimeout(ctx, w.config.BatchSize, w.config.BatchTimeout)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, queue.ErrQueueClosed) {
				w.logger.Info("Archive worker queue closed")
				return nil
			}
			w.logger.Error("Failed to dequeue session records", "error", err)
			sleep(ctx, time.Second)
			continue
		}

		w.processBatch(ctx, items)
	}

	w.drain()
	w.logger.Info("Archive worker stopped")
	return nil
}

// drain flushes queued records with a fresh deadline once Run's ctx is done.
func (w *ArchiveWorker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), w.drainTimeout)
	defer cancel()

	for ctx.Err() == nil {
		n, err := w.queue.Length(ctx)
		if err != nil || n == 0 {
			return
		}
		items, err := w.queue.DequeueWithTimeout(ctx, w.config.BatchSize, time.Second)
		if err != nil || len(items) == 0 {
			return
		}
		w.processBatch(ctx, items)
	}
}

func (w *ArchiveWorker) processBatch(ctx context.Context, items [][]byte) {
	if len(items) == 0 {
		return
	}

	records := make([]*SessionRecord, 0, len(items))
	payloads := make([][]byte, 0, len(items))
	for _, item := range items {
		var rec SessionRecord
		if err := json.Unmarshal(item, &rec); err != nil {
			w.deadLetter(ctx, item, fmt.Errorf("failed to decode session record: %w", err))
			continue
		}
		records = append(records, &rec)
		payloads = append(payloads, item)
	}
	if len(records) == 0 {
		return
	}

	w.logger.Debug("Archiving session batch", "count", len(records))

	var lastErr error
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := w.config.RetryBackoff * time.Duration(1<<uint(attempt-1))
			w.logger.Debug("Retrying session batch", "attempt", attempt, "backoff", backoff)
			if !sleep(ctx, backoff) {
				break
			}
		}

		if _, err := w.writer.WriteBatch(ctx, records); err != nil {
			lastErr = err
			w.logger.Error("Failed to write session batch", "attempt", attempt, "error", err)
			continue
		}
		return
	}

	cause := fmt.Errorf("%w: %v", queue.ErrMaxRetriesExceeded, lastErr)
	for _, p := range payloads {
		w.deadLetter(ctx, p, cause)
	}
	w.logger.Warn("Session batch moved to DLQ", "count", len(payloads), "error", lastErr)
}

func (w *ArchiveWorker) deadLetter(ctx context.Context, payload []byte, cause error) {
	if w.dlq == nil {
		w.logger.Error("Dropped session record", "error", cause)
		return
	}
	if err := w.dlq.Add(context.WithoutCancel(ctx), payload, cause); err != nil {
		w.logger.Error("Failed to add to dead letter queue", "error", err)
	}
}

// QueueLength returns the number of records waiting to be archived
func (w *ArchiveWorker) QueueLength(ctx context.Context) (int, error) {
	return w.queue.Length(ctx)
}

// DeadLetters lists records that could not be archived
func (w *ArchiveWorker) DeadLetters(ctx context.Context, maxItems int) ([]queue.DeadLetterItem, error) {
	if w.dlq == nil {
		return nil, fmt.Errorf("dead letter queue not configured")
	}
	return w.dlq.List(ctx, maxItems)
}

// RetryDeadLetter puts a dead letter back on the queue
func (w *ArchiveWorker) RetryDeadLetter(ctx context.Context, id string) error {
	if w.dlq == nil {
		return fmt.Errorf("dead letter queue not configured")
	}

	items, err := w.dlq.List(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to list dead letter items: %w", err)
	}

	for _, item := range items {
		if item.ID != id {
			continue
		}
		if err := w.queue.Enqueue(ctx, item.Payload); err != nil {
			return fmt.Errorf("failed to re-enqueue item: %w", err)
		}
		return w.dlq.Remove(ctx, id)
	}
	return queue.ErrItemNotFound
}

// sleep waits for d or until ctx is done. It reports whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
