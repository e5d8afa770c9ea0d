package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"llm_router/internal/models"
)

// ErrUnsupportedProvider marks a provider kind the factory has no
// constructor for. It indicates a catalog/code mismatch.
var ErrUnsupportedProvider = errors.New("unsupported provider")

// Role tags a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a complete tool invocation issued by the model.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Message is one role-tagged entry of a conversation. Assistant messages may
// carry tool calls; tool messages answer the call named by ToolCallID.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"toolCalls,omitempty"`
	ToolCallID string     `json:"toolCallId,omitempty"`
	IsError    bool       `json:"isError,omitempty"`
}

// ToolSpec describes a tool offered to the model.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// CompletionRequest is a normalized streaming completion request.
type CompletionRequest struct {
	SystemPrompt    string
	Messages        []Message
	Tools           []ToolSpec
	MaxOutputTokens int64
}

// EventType names a stream event.
type EventType string

const (
	EventTextDelta     EventType = "text_delta"
	EventToolCallStart EventType = "tool_call_start"
	EventToolCallDelta EventType = "tool_call_delta"
	EventToolCall      EventType = "tool_call"
	EventError         EventType = "error"
	EventFinish        EventType = "finish"
)

// StreamEvent is a single event of a completion stream.
type StreamEvent struct {
	Type EventType

	// Delta holds text for text_delta and partial arguments for
	// tool_call_delta.
	Delta string

	// ToolCallID and ToolName identify the call for the tool_call_* events.
	ToolCallID string
	ToolName   string

	// Arguments holds the complete argument payload of a tool_call event.
	Arguments json.RawMessage

	Err error
}

// ChatClient is a completion client bound to one provider, model and
// credential.
type ChatClient interface {
	// Provider returns the kind this client talks to
	Provider() models.ProviderKind

	// WireModel returns the model name the client was built with
	WireModel() string

	// Stream starts a completion. The channel is closed after a finish or
	// error event, or when ctx is done.
	Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error)

	// GenerateStructured asks the model for a single JSON value conforming
	// to schema.
	GenerateStructured(ctx context.Context, prompt string, schema map[string]any) (json.RawMessage, error)
}

// ProviderError is an upstream completion failure with provider context.
type ProviderError struct {
	Provider   models.ProviderKind
	Model      string
	StatusCode int // 0 when the failure did not come from an HTTP response
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s provider error (model %s, status %d): %v", e.Provider, e.Model, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s provider error (model %s): %v", e.Provider, e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
