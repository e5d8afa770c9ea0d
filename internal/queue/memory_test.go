package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

var (
	_ Queue           = (*MemoryQueue)(nil)
	_ Queue           = (*RedisQueue)(nil)
	_ DeadLetterQueue = (*MemoryDeadLetterQueue)(nil)
	_ DeadLetterQueue = (*RedisDeadLetterQueue)(nil)
)

func TestMemoryQueue_EnqueueDequeue(t *testing.T) {
	q := NewMemoryQueue(DefaultConfig("test"))
	defer q.Close()

	ctx := context.Background()

	payload := []byte(`{"requestId":"req-1"}`)
	if err := q.Enqueue(ctx, payload); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	items, err := q.Dequeue(ctx, 1)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(items))
	}
	if string(items[0]) != string(payload) {
		t.Errorf("Expected %s, got %s", payload, items[0])
	}
}

func TestMemoryQueue_MultipleBatch(t *testing.T) {
	config := DefaultConfig("test")
	config.BatchSize = 5
	q := NewMemoryQueue(config)
	defer q.Close()

	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := q.Enqueue(ctx, []byte(fmt.Sprintf(`{"n":%d}`, i))); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	items, err := q.Dequeue(ctx, 5)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if len(items) != 5 {
		t.Errorf("Expected 5 items, got %d", len(items))
	}
	if string(items[0]) != `{"n":0}` {
		t.Errorf("Expected FIFO order, got %s first", items[0])
	}

	items, err = q.Dequeue(ctx, 10)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if len(items) != 5 {
		t.Errorf("Expected 5 items, got %d", len(items))
	}
}

func TestMemoryQueue_DequeueWithTimeout(t *testing.T) {
	q := NewMemoryQueue(DefaultConfig("test"))
	defer q.Close()

	start := time.Now()
	items, err := q.DequeueWithTimeout(context.Background(), 10, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("DequeueWithTimeout failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("Expected 0 items, got %d", len(items))
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Errorf("Returned before the timeout elapsed")
	}
}

func TestMemoryQueue_Full(t *testing.T) {
	config := DefaultConfig("test")
	config.Capacity = 2
	q := NewMemoryQueue(config)
	defer q.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := q.Enqueue(ctx, []byte("x")); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	if err := q.Enqueue(ctx, []byte("x")); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Expected ErrQueueFull, got %v", err)
	}
}

func TestMemoryQueue_ContextCancellation(t *testing.T) {
	q := NewMemoryQueue(DefaultConfig("test"))
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx, 1)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context.DeadlineExceeded, got %v", err)
	}
}

func TestMemoryQueue_Close(t *testing.T) {
	q := NewMemoryQueue(DefaultConfig("test"))
	ctx := context.Background()

	if err := q.Enqueue(ctx, []byte("left-over")); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// closing twice is safe
	if err := q.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	if err := q.Enqueue(ctx, []byte("late")); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Expected ErrQueueClosed, got %v", err)
	}

	items, err := q.Dequeue(ctx, 10)
	if err != nil {
		t.Fatalf("Dequeue after close should drain, got %v", err)
	}
	if len(items) != 1 || string(items[0]) != "left-over" {
		t.Errorf("Expected the left-over payload, got %q", items)
	}

	if _, err := q.Dequeue(ctx, 10); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Expected ErrQueueClosed once drained, got %v", err)
	}
}

func TestMemoryQueue_CloseWakesBlockedDequeue(t *testing.T) {
	q := NewMemoryQueue(DefaultConfig("test"))

	errCh := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(context.Background(), 1)
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrQueueClosed) {
			t.Errorf("Expected ErrQueueClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not return after Close")
	}
}

func TestMemoryQueue_Concurrent(t *testing.T) {
	config := DefaultConfig("test")
	config.Capacity = 1000
	q := NewMemoryQueue(config)
	defer q.Close()

	ctx := context.Background()
	var wg sync.WaitGroup
	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				if err := q.Enqueue(ctx, []byte(fmt.Sprintf("%d-%d", w, i))); err != nil {
					t.Errorf("Enqueue failed: %v", err)
				}
			}
		}(w)
	}
	wg.Wait()

	length, err := q.Length(ctx)
	if err != nil {
		t.Fatalf("Length failed: %v", err)
	}
	if length != 100 {
		t.Errorf("Expected length 100, got %d", length)
	}
}

func TestMemoryDeadLetterQueue(t *testing.T) {
	dlq := NewMemoryDeadLetterQueue()
	defer dlq.Close()

	ctx := context.Background()

	if err := dlq.Add(ctx, []byte("a"), errors.New("s3 unavailable")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := dlq.Add(ctx, []byte("b"), ErrMaxRetriesExceeded); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	items, err := dlq.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}
	if items[0].Error != "s3 unavailable" || string(items[0].Payload) != "a" {
		t.Errorf("Unexpected first item: %+v", items[0])
	}
	if items[0].ID == items[1].ID {
		t.Errorf("Expected distinct ids")
	}

	limited, err := dlq.List(ctx, 1)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("Expected 1 item, got %d", len(limited))
	}

	if err := dlq.Remove(ctx, items[0].ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := dlq.Remove(ctx, items[0].ID); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("Expected ErrItemNotFound, got %v", err)
	}

	items, _ = dlq.List(ctx, 0)
	if len(items) != 1 || string(items[0].Payload) != "b" {
		t.Errorf("Expected only b to remain, got %+v", items)
	}

	dlq.Close()
	if err := dlq.Add(ctx, []byte("c"), ErrMaxRetriesExceeded); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Expected ErrQueueClosed, got %v", err)
	}
}
