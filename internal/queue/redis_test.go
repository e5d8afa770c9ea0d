package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestNewRedisQueue_Validation(t *testing.T) {
	_, client := setupTestRedis(t)

	if _, err := NewRedisQueue(nil, DefaultConfig("x")); err == nil {
		t.Error("Expected error for nil client")
	}
	if _, err := NewRedisQueue(client, &Config{}); err == nil {
		t.Error("Expected error for empty name")
	}
	if _, err := NewRedisDeadLetterQueue(client, nil); err == nil {
		t.Error("Expected error for nil config")
	}
}

func TestRedisQueue_EnqueueDequeue(t *testing.T) {
	mr, client := setupTestRedis(t)

	q, err := NewRedisQueue(client, DefaultConfig("sessions"))
	if err != nil {
		t.Fatalf("NewRedisQueue failed: %v", err)
	}
	defer q.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := q.Enqueue(ctx, []byte(fmt.Sprintf(`{"n":%d}`, i))); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	if !mr.Exists("queue:sessions") {
		t.Fatal("Expected list queue:sessions to exist")
	}

	length, err := q.Length(ctx)
	if err != nil {
		t.Fatalf("Length failed: %v", err)
	}
	if length != 5 {
		t.Errorf("Expected length 5, got %d", length)
	}

	items, err := q.Dequeue(ctx, 3)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("Expected 3 items, got %d", len(items))
	}
	for i, item := range items {
		if want := fmt.Sprintf(`{"n":%d}`, i); string(item) != want {
			t.Errorf("item %d: expected %s, got %s", i, want, item)
		}
	}

	items, err = q.DequeueWithTimeout(ctx, 10, time.Second)
	if err != nil {
		t.Fatalf("DequeueWithTimeout failed: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("Expected 2 items, got %d", len(items))
	}
}

func TestRedisQueue_DequeueWithTimeoutEmpty(t *testing.T) {
	_, client := setupTestRedis(t)

	q, err := NewRedisQueue(client, DefaultConfig("empty"))
	if err != nil {
		t.Fatalf("NewRedisQueue failed: %v", err)
	}

	items, err := q.DequeueWithTimeout(context.Background(), 10, time.Second)
	if err != nil {
		t.Fatalf("DequeueWithTimeout failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("Expected 0 items, got %d", len(items))
	}
}

func TestRedisQueue_SharedAcrossInstances(t *testing.T) {
	_, client := setupTestRedis(t)

	producer, _ := NewRedisQueue(client, DefaultConfig("shared"))
	consumer, _ := NewRedisQueue(client, DefaultConfig("shared"))

	ctx := context.Background()
	if err := producer.Enqueue(ctx, []byte("hello")); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	items, err := consumer.DequeueWithTimeout(ctx, 1, time.Second)
	if err != nil {
		t.Fatalf("DequeueWithTimeout failed: %v", err)
	}
	if len(items) != 1 || string(items[0]) != "hello" {
		t.Errorf("Expected hello, got %q", items)
	}
}

func TestRedisQueue_ConnectionFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	q, _ := NewRedisQueue(client, DefaultConfig("down"))
	if err := q.Enqueue(context.Background(), []byte("x")); err == nil {
		t.Error("Expected error when Redis is down")
	}
	if _, err := q.Length(context.Background()); err == nil {
		t.Error("Expected error when Redis is down")
	}
}

func TestRedisDeadLetterQueue(t *testing.T) {
	mr, client := setupTestRedis(t)

	dlq, err := NewRedisDeadLetterQueue(client, DefaultConfig("sessions"))
	if err != nil {
		t.Fatalf("NewRedisDeadLetterQueue failed: %v", err)
	}
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	tick := 0
	dlq.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	ctx := context.Background()
	if err := dlq.Add(ctx, []byte(`{"n":1}`), errors.New("first")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := dlq.Add(ctx, []byte(`{"n":2}`), ErrMaxRetriesExceeded); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if !mr.Exists("dlq:sessions") {
		t.Fatal("Expected hash dlq:sessions to exist")
	}

	items, err := dlq.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}
	if items[0].Error != "first" || string(items[0].Payload) != `{"n":1}` {
		t.Errorf("Expected oldest first, got %+v", items[0])
	}

	// malformed entries are skipped
	mr.HSet("dlq:sessions", "garbage", "not json")
	items, err = dlq.List(ctx, 1)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("Expected 1 item, got %d", len(items))
	}

	if err := dlq.Remove(ctx, items[0].ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := dlq.Remove(ctx, items[0].ID); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("Expected ErrItemNotFound, got %v", err)
	}
}
