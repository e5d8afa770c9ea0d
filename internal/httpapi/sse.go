package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"llm_router/internal/chat"
)

// wireEvent is the JSON data line of one SSE event.
type wireEvent struct {
	Delta      string          `json:"delta,omitempty"`
	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	Arguments  json.RawMessage `json:"arguments,omitempty"`
	Repaired   bool            `json:"repaired,omitempty"`
	Error      string          `json:"error,omitempty"`
	Kind       string          `json:"kind,omitempty"`
}

func toWireEvent(ev chat.Event) wireEvent {
	out := wireEvent{
		Delta:      ev.Delta,
		ToolCallID: ev.ToolCallID,
		ToolName:   ev.ToolName,
		Arguments:  ev.Arguments,
		Repaired:   ev.Repaired,
	}
	if ev.Err != nil {
		out.Error = ev.Err.Error()
		out.Kind = chat.FailureKind(ev.Err)
	}
	return out
}

// sseWriter frames server-sent events and flushes after each one.
type sseWriter struct {
	w       io.Writer
	flusher http.Flusher
}

func newSSEWriter(w io.Writer, flusher http.Flusher) *sseWriter {
	return &sseWriter{w: w, flusher: flusher}
}

func (s *sseWriter) event(name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", name, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseWriter) comment(text string) error {
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", text); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
