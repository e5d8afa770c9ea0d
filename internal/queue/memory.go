package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue implements Queue on a buffered channel
type MemoryQueue struct {
	items     chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewMemoryQueue creates a new in-memory queue
func NewMemoryQueue(config *Config) *MemoryQueue {
	if config == nil {
		config = DefaultConfig("memory")
	}
	capacity := config.Capacity
	if capacity <= 0 {
		capacity = config.BatchSize * 10
	}

	return &MemoryQueue{
		items: make(chan []byte, capacity),
		done:  make(chan struct{}),
	}
}

func (q *MemoryQueue) isClosed() bool {
	select {
	case <-q.done:
		return true
	default:
		return false
	}
}

// Enqueue adds a payload without blocking. A full queue returns ErrQueueFull.
func (q *MemoryQueue) Enqueue(ctx context.Context, payload []byte) error {
	if q.isClosed() {
		return ErrQueueClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case q.items <- payload:
		return nil
	default:
		return ErrQueueFull
	}
}

// Dequeue retrieves payloads from the queue
func (q *MemoryQueue) Dequeue(ctx context.Context, maxItems int) ([][]byte, error) {
	return q.dequeue(ctx, maxItems, nil)
}

// DequeueWithTimeout retrieves payloads with a timeout
func (q *MemoryQueue) DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([][]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	return q.dequeue(ctx, maxItems, timer.C)
}

func (q *MemoryQueue) dequeue(ctx context.Context, maxItems int, deadline <-chan time.Time) ([][]byte, error) {
	if maxItems <= 0 {
		maxItems = 1
	}

	var items [][]byte
	select {
	case item := <-q.items:
		items = append(items, item)
	case <-deadline:
		return [][]byte{}, nil
	case <-q.done:
		return q.drain(maxItems)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	for len(items) < maxItems {
		select {
		case item := <-q.items:
			items = append(items, item)
		default:
			return items, nil
		}
	}
	return items, nil
}

// drain hands out what is left after Close, then reports ErrQueueClosed.
func (q *MemoryQueue) drain(maxItems int) ([][]byte, error) {
	var items [][]byte
	for len(items) < maxItems {
		select {
		case item := <-q.items:
			items = append(items, item)
		default:
			if len(items) == 0 {
				return nil, ErrQueueClosed
			}
			return items, nil
		}
	}
	return items, nil
}

// Length returns the current queue length
func (q *MemoryQueue) Length(ctx context.Context) (int, error) {
	return len(q.items), nil
}

// Close stops accepting payloads. Queued payloads can still be dequeued.
func (q *MemoryQueue) Close() error {
	q.closeOnce.Do(func() { close(q.done) })
	return nil
}

// MemoryDeadLetterQueue implements DeadLetterQueue in memory
type MemoryDeadLetterQueue struct {
	mu     sync.RWMutex
	items  []DeadLetterItem
	closed bool
	now    func() time.Time
}

// NewMemoryDeadLetterQueue creates a new in-memory dead letter queue
func NewMemoryDeadLetterQueue() *MemoryDeadLetterQueue {
	return &MemoryDeadLetterQueue{now: time.Now}
}

// Add records a failed payload
func (q *MemoryDeadLetterQueue) Add(ctx context.Context, payload []byte, cause error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.items = append(q.items, newDeadLetter(payload, cause, q.now()))
	return nil
}

// List returns up to maxItems dead letters, oldest first. maxItems <= 0 means all.
func (q *MemoryDeadLetterQueue) List(ctx context.Context, maxItems int) ([]DeadLetterItem, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	if maxItems <= 0 || maxItems > len(q.items) {
		maxItems = len(q.items)
	}

	result := make([]DeadLetterItem, maxItems)
	copy(result, q.items[:maxItems])
	return result, nil
}

// Remove deletes a dead letter by id
func (q *MemoryDeadLetterQueue) Remove(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	for i, item := range q.items {
		if item.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return nil
		}
	}
	return ErrItemNotFound
}

// Close shuts down the dead letter queue
func (q *MemoryDeadLetterQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.items = nil
	return nil
}

func newDeadLetter(payload []byte, cause error, at time.Time) DeadLetterItem {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return DeadLetterItem{
		ID:        uuid.NewString(),
		Payload:   payload,
		Error:     msg,
		Timestamp: at.UTC(),
	}
}
