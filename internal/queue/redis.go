package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue implements Queue on a Redis list. The client is shared and is
// not closed by the queue.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue creates a Redis-backed queue on an existing client
func NewRedisQueue(client *redis.Client, config *Config) (*RedisQueue, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if config == nil || config.Name == "" {
		return nil, fmt.Errorf("queue name is required")
	}

	return &RedisQueue{
		client: client,
		key:    "queue:" + config.Name,
	}, nil
}

// Enqueue adds a payload to the tail of the list
func (q *RedisQueue) Enqueue(ctx context.Context, payload []byte) error {
	if err := q.client.RPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("failed to push to Redis: %w", err)
	}
	return nil
}

// Dequeue blocks until a payload is available
func (q *RedisQueue) Dequeue(ctx context.Context, maxItems int) ([][]byte, error) {
	return q.dequeue(ctx, maxItems, 0)
}

// DequeueWithTimeout retrieves payloads with a timeout
func (q *RedisQueue) DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([][]byte, error) {
	return q.dequeue(ctx, maxItems, timeout)
}

func (q *RedisQueue) dequeue(ctx context.Context, maxItems int, timeout time.Duration) ([][]byte, error) {
	result, err := q.client.BLPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return [][]byte{}, nil
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("failed to pop from Redis: %w", err)
	}

	// result[0] is the key, result[1] the value
	items := [][]byte{[]byte(result[1])}
	if maxItems > 1 {
		rest, err := q.client.LPopCount(ctx, q.key, maxItems-1).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return items, nil // keep what was already popped
		}
		for _, r := range rest {
			items = append(items, []byte(r))
		}
	}
	return items, nil
}

// Length returns the current queue length
func (q *RedisQueue) Length(ctx context.Context) (int, error) {
	length, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue length: %w", err)
	}
	return int(length), nil
}

// Close is a no-op; the shared client is closed by its owner.
func (q *RedisQueue) Close() error {
	return nil
}

// RedisDeadLetterQueue implements DeadLetterQueue on a Redis hash
type RedisDeadLetterQueue struct {
	client *redis.Client
	key    string
	now    func() time.Time
}

// NewRedisDeadLetterQueue creates a Redis-backed dead letter queue
func NewRedisDeadLetterQueue(client *redis.Client, config *Config) (*RedisDeadLetterQueue, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if config == nil || config.Name == "" {
		return nil, fmt.Errorf("queue name is required")
	}

	return &RedisDeadLetterQueue{
		client: client,
		key:    "dlq:" + config.Name,
		now:    time.Now,
	}, nil
}

// Add records a failed payload
func (q *RedisDeadLetterQueue) Add(ctx context.Context, payload []byte, cause error) error {
	item := newDeadLetter(payload, cause, q.now())

	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter item: %w", err)
	}

	if err := q.client.HSet(ctx, q.key, item.ID, data).Err(); err != nil {
		return fmt.Errorf("failed to add to dead letter queue: %w", err)
	}
	return nil
}

// List returns up to maxItems dead letters, oldest first
func (q *RedisDeadLetterQueue) List(ctx context.Context, maxItems int) ([]DeadLetterItem, error) {
	results, err := q.client.HGetAll(ctx, q.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letter items: %w", err)
	}

	items := make([]DeadLetterItem, 0, len(results))
	for _, data := range results {
		var item DeadLetterItem
		if err := json.Unmarshal([]byte(data), &item); err != nil {
			continue // skip malformed entries
		}
		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].Timestamp.Before(items[j].Timestamp)
	})
	if maxItems > 0 && len(items) > maxItems {
		items = items[:maxItems]
	}
	return items, nil
}

// Remove deletes a dead letter by id
func (q *RedisDeadLetterQueue) Remove(ctx context.Context, id string) error {
	n, err := q.client.HDel(ctx, q.key, id).Result()
	if err != nil {
		return fmt.Errorf("failed to remove from dead letter queue: %w", err)
	}
	if n == 0 {
		return ErrItemNotFound
	}
	return nil
}

// Close is a no-op; the shared client is closed by its owner.
func (q *RedisDeadLetterQueue) Close() error {
	return nil
}
