package chat

import "llm_router/internal/utils"

// Hooks observe session lifecycle. Implementations must be safe for
// concurrent use across sessions and must not block.
type Hooks interface {
	OnSessionStart(info SessionInfo)
	OnRepair(info SessionInfo, tool string, success bool)
	OnTerminal(info SessionInfo, summary Summary)
}

// NopHooks ignores every callback.
type NopHooks struct{}

func (NopHooks) OnSessionStart(SessionInfo)         {}
func (NopHooks) OnRepair(SessionInfo, string, bool) {}
func (NopHooks) OnTerminal(SessionInfo, Summary)    {}

// MultiHooks fans callbacks out in order.
type MultiHooks []Hooks

func (m MultiHooks) OnSessionStart(info SessionInfo) {
	for _, h := range m {
		h.OnSessionStart(info)
	}
}

func (m MultiHooks) OnRepair(info SessionInfo, tool string, success bool) {
	for _, h := range m {
		h.OnRepair(info, tool, success)
	}
}

func (m MultiHooks) OnTerminal(info SessionInfo, summary Summary) {
	for _, h := range m {
		h.OnTerminal(info, summary)
	}
}

// LogHooks writes lifecycle lines to a prefix logger.
type LogHooks struct {
	logger *utils.Logger
}

// NewLogHooks creates hooks logging with prefix "chat".
func NewLogHooks() *LogHooks {
	return &LogHooks{logger: utils.NewLogger("chat")}
}

func (h *LogHooks) OnSessionStart(info SessionInfo) {
	h.logger.Debug("Session started",
		"session", info.ID,
		"chat_type", info.ChatType,
		"provider", info.Provider,
		"model", info.Model,
		"credential_source", info.CredentialSource,
	)
}

func (h *LogHooks) OnRepair(info SessionInfo, tool string, success bool) {
	if success {
		h.logger.Info("Repaired tool call", "session", info.ID, "tool", tool)
		return
	}
	h.logger.Warn("Tool call repair failed", "session", info.ID, "tool", tool)
}

func (h *LogHooks) OnTerminal(info SessionInfo, summary Summary) {
	if summary.State == StateDone {
		h.logger.Info("Session done",
			"session", info.ID,
			"tool_calls", summary.ToolCalls,
			"repairs", summary.Repairs,
			"duration", summary.Duration,
		)
		return
	}

	h.logger.Error("Session failed",
		"session", info.ID,
		"kind", FailureKind(summary.Cause),
		"cause", summary.Cause,
		"duration", summary.Duration,
	)
}
