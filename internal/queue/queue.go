// Package queue buffers session telemetry between the chat handlers and the
// archive worker. Two backends share one interface:
//
//   - MemoryQueue: a bounded channel. Nothing survives a restart and a full
//     queue refuses new records instead of blocking the request path.
//   - RedisQueue: a Redis list shared by every router replica, so any pod
//     can drain what another one produced.
//
// Payloads are opaque JSON documents. Encoding and decoding belong to the
// producer and the consumer.
//
//	chat session ──► Sink ──► Queue ──► ArchiveWorker ──► S3 (JSONL)
//	                                          │
//	                                          └── retries spent ──► DLQ
package queue

import (
	"context"
	"time"
)

// Queue is a FIFO of encoded telemetry records.
type Queue interface {
	// Enqueue appends one payload
	Enqueue(ctx context.Context, payload []byte) error

	// Dequeue blocks until at least one payload is available and returns
	// up to maxItems of them.
	Dequeue(ctx context.Context, maxItems int) ([][]byte, error)

	// DequeueWithTimeout is Dequeue bounded by timeout. It returns an empty
	// slice when nothing arrived in time.
	DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([][]byte, error)

	// Length returns the number of queued payloads
	Length(ctx context.Context) (int, error)

	Close() error
}

// DeadLetterQueue keeps payloads the worker gave up on.
type DeadLetterQueue interface {
	Add(ctx context.Context, payload []byte, cause error) error
	List(ctx context.Context, maxItems int) ([]DeadLetterItem, error)
	Remove(ctx context.Context, id string) error
	Close() error
}

// DeadLetterItem is a failed payload and the reason it failed.
type DeadLetterItem struct {
	ID        string    `json:"id"`
	Payload   []byte    `json:"payload"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// Config holds queue and batching settings
type Config struct {
	// Name keys the Redis list ("queue:<name>") and hash ("dlq:<name>")
	Name string

	// Capacity bounds the memory backend
	Capacity int

	// BatchSize is the maximum number of payloads handed to the worker at once
	BatchSize int

	// BatchTimeout is how long the worker waits before flushing a partial batch
	BatchTimeout time.Duration

	// MaxRetries is the number of retries after the first failed flush
	MaxRetries int

	// RetryBackoff is the initial backoff between retries. It doubles each time.
	RetryBackoff time.Duration
}

// DefaultConfig returns default queue configuration
func DefaultConfig(name string) *Config {
	return &Config{
		Name:         name,
		Capacity:     1000,
		BatchSize:    100,
		BatchTimeout: 5 * time.Second,
		MaxRetries:   3,
		RetryBackoff: time.Second,
	}
}
