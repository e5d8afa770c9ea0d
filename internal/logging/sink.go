package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"llm_router/internal/chat"
	"llm_router/internal/keypool"
	"llm_router/internal/queue"
	"llm_router/internal/utils"
)

// SessionRecord is one finished chat session as archived to S3.
type SessionRecord struct {
	Timestamp      time.Time `json:"timestamp"`
	RequestID      string    `json:"request_id"`
	ChatType       string    `json:"chat_type"`
	Provider       string    `json:"provider"`
	Model          string    `json:"model"`
	CredentialID   string    `json:"credential_id,omitempty"`
	Pooled         bool      `json:"pooled"`
	MaxSteps       int       `json:"max_steps,omitempty"`
	ToolCalls      int       `json:"tool_calls"`
	Repairs        int       `json:"repairs"`
	RepairFailures int       `json:"repair_failures"`
	State          string    `json:"state"`
	FailureKind    string    `json:"failure_kind,omitempty"`
	Error          string    `json:"error,omitempty"`
	DurationMs     int64     `json:"duration_ms"`
}

// NewSessionRecord builds the archive record of a terminated session.
func NewSessionRecord(info chat.SessionInfo, summary chat.Summary) *SessionRecord {
	rec := &SessionRecord{
		Timestamp:      summary.StartedAt.UTC(),
		RequestID:      info.ID,
		ChatType:       string(info.ChatType),
		Provider:       string(info.Provider),
		Model:          info.Model,
		CredentialID:   info.CredentialID,
		Pooled:         info.CredentialSource == string(keypool.SourcePool),
		MaxSteps:       info.MaxSteps,
		ToolCalls:      summary.ToolCalls,
		Repairs:        summary.Repairs,
		RepairFailures: summary.RepairFailures,
		State:          summary.State.String(),
		DurationMs:     summary.Duration.Milliseconds(),
	}
	if summary.Cause != nil {
		rec.FailureKind = chat.FailureKind(summary.Cause)
		rec.Error = summary.Cause.Error()
	}
	return rec
}

// Sink receives session records.
type Sink interface {
	Enqueue(ctx context.Context, rec *SessionRecord) error
}

// NoopSink discards records.
type NoopSink struct{}

func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (s *NoopSink) Enqueue(context.Context, *SessionRecord) error {
	return nil
}

// QueueSink encodes records onto a queue for the archive worker.
type QueueSink struct {
	queue queue.Queue
}

func NewQueueSink(q queue.Queue) *QueueSink {
	return &QueueSink{queue: q}
}

func (s *QueueSink) Enqueue(ctx context.Context, rec *SessionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal session record: %w", err)
	}
	if err := s.queue.Enqueue(ctx, data); err != nil {
		return fmt.Errorf("failed to enqueue session record: %w", err)
	}
	return nil
}

// SinkHooks feeds terminated sessions into a Sink. Enqueue failures are
// logged and never reach the chat stream.
type SinkHooks struct {
	chat.NopHooks

	sink    Sink
	timeout time.Duration
	logger  *utils.Logger
}

// NewSinkHooks creates chat hooks publishing to sink
func NewSinkHooks(sink Sink) *SinkHooks {
	return &SinkHooks{
		sink:    sink,
		timeout: 2 * time.Second,
		logger:  utils.NewLogger("telemetry"),
	}
}

func (h *SinkHooks) OnTerminal(info chat.SessionInfo, summary chat.Summary) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if err := h.sink.Enqueue(ctx, NewSessionRecord(info, summary)); err != nil {
		h.logger.Warn("Dropped session record", "session", info.ID, "error", err)
	}
}
