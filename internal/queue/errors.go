package queue

import "errors"

var (
	// ErrQueueClosed is returned when operating on a closed queue
	ErrQueueClosed = errors.New("queue is closed")

	// ErrQueueFull is returned by the memory backend when Capacity is reached
	ErrQueueFull = errors.New("queue is full")

	// ErrItemNotFound is returned when a dead-letter id is unknown
	ErrItemNotFound = errors.New("item not found")

	// ErrMaxRetriesExceeded is recorded on dead letters whose flush kept failing
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)
