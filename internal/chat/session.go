// Package chat runs streaming chat sessions against a provider client and
// repairs malformed tool calls once before giving up.
package chat

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"llm_router/internal/models"
	"llm_router/internal/providers"
	"llm_router/internal/tools"
)

// State is the lifecycle position of a session.
type State int32

const (
	StateIdle State = iota
	StateStreaming
	StateRepairing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateRepairing:
		return "repairing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// EventType names an event forwarded to the caller.
type EventType string

const (
	EventTextDelta     EventType = "text_delta"
	EventToolCallStart EventType = "tool_call_start"
	EventToolCallDelta EventType = "tool_call_delta"
	EventToolCall      EventType = "tool_call"
	EventError         EventType = "error"
	EventDone          EventType = "done"
)

// Event is one item of a session stream. A stream ends with exactly one
// done or error event unless the caller cancels first.
type Event struct {
	Type       EventType
	Delta      string
	ToolCallID string
	ToolName   string
	Arguments  json.RawMessage

	// Repaired marks a tool call whose arguments came from the repair
	// sub-call.
	Repaired bool

	Err error
}

// SessionInfo identifies a session to hooks.
type SessionInfo struct {
	ID               string
	ChatType         tools.ChatType
	Provider         models.ProviderKind
	Model            string
	CredentialID     string
	CredentialSource string
	MaxSteps         int
}

// Summary describes how a session ended.
type Summary struct {
	State          State
	Cause          error
	Repairs        int
	RepairFailures int
	ToolCalls      int
	StartedAt      time.Time
	Duration       time.Duration
}

// Request is the input of one session.
type Request struct {
	Info     SessionInfo
	Messages []providers.Message
}

// Session is a running chat session.
type Session struct {
	info   SessionInfo
	events chan Event
	state  atomic.Int32
}

// Info returns the session identity.
func (s *Session) Info() SessionInfo { return s.info }

// Events returns the stream of session events. It is closed when the
// session reaches a terminal state.
func (s *Session) Events() <-chan Event { return s.events }

// State returns the current state.
func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(st State) { s.state.Store(int32(st)) }
