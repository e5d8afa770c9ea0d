package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"llm_router/internal/providers"
)

// UnknownToolError is returned when the model calls a tool outside the
// active tool set. It is never repaired.
type UnknownToolError struct {
	Name  string
	Valid []string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("Tool %q not found. Available tools: %s", e.Name, strings.Join(e.Valid, ", "))
}

// RepairFailureError is returned when malformed tool arguments could not be
// corrected by the single repair attempt.
type RepairFailureError struct {
	Tool      string
	Arguments json.RawMessage
	Err       error
}

func (e *RepairFailureError) Error() string {
	return fmt.Sprintf("failed to repair arguments for tool %q: %v", e.Tool, e.Err)
}

func (e *RepairFailureError) Unwrap() error {
	return e.Err
}

// Failure kinds reported by FailureKind.
const (
	FailureUnknownTool = "unknown_tool"
	FailureRepair      = "repair_failure"
	FailureProvider    = "provider"
	FailureCanceled    = "canceled"
	FailureInternal    = "internal"
)

// FailureKind classifies the cause of a failed session.
func FailureKind(err error) string {
	var (
		unknown  *UnknownToolError
		repair   *RepairFailureError
		provider *providers.ProviderError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &unknown):
		return FailureUnknownTool
	case errors.As(err, &repair):
		return FailureRepair
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return FailureCanceled
	case errors.As(err, &provider):
		return FailureProvider
	default:
		return FailureInternal
	}
}
