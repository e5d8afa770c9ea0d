package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"llm_router/internal/providers"
	"llm_router/internal/tools"
	"llm_router/internal/utils"
)

// DefaultMaxOutputTokens bounds completion length when none is configured.
const DefaultMaxOutputTokens = 64000

// maxRepairAttempts caps repair sub-calls per malformed tool call.
const maxRepairAttempts = 1

// Config holds orchestrator settings.
type Config struct {
	MaxOutputTokens int64
	RepairTimeout   time.Duration // 0 leaves the sub-call bounded only by the session context
}

// DefaultConfig returns default orchestrator configuration
func DefaultConfig() Config {
	return Config{
		MaxOutputTokens: DefaultMaxOutputTokens,
		RepairTimeout:   60 * time.Second,
	}
}

// Orchestrator runs chat sessions. It holds no per-session state and is
// safe for concurrent use.
type Orchestrator struct {
	cfg    Config
	hooks  Hooks
	now    func() time.Time
	logger *utils.Logger
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithHooks registers lifecycle hooks.
func WithHooks(h Hooks) Option {
	return func(o *Orchestrator) {
		if h != nil {
			o.hooks = h
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator creates a chat orchestrator
func NewOrchestrator(cfg Config, opts ...Option) *Orchestrator {
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = DefaultMaxOutputTokens
	}
	o := &Orchestrator{
		cfg:    cfg,
		hooks:  NopHooks{},
		now:    time.Now,
		logger: utils.NewLogger("chat"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start submits the conversation to client and returns the running
// session. Events are forwarded in provider order; cancelling ctx stops
// forwarding without waiting for an in-flight repair.
func (o *Orchestrator) Start(ctx context.Context, client providers.ChatClient, req Request) *Session {
	info := req.Info
	if info.ChatType == "" {
		info.ChatType = tools.ChatTypeEdit
	}
	if info.Provider == "" {
		info.Provider = client.Provider()
	}
	if info.Model == "" {
		info.Model = client.WireModel()
	}

	s := &Session{info: info, events: make(chan Event)}
	s.setState(StateIdle)

	r := &run{
		o:       o,
		s:       s,
		client:  client,
		toolset: info.ChatType.ToolSet(),
		summary: Summary{StartedAt: o.now()},
	}
	o.hooks.OnSessionStart(info)

	go r.loop(ctx, providers.CompletionRequest{
		SystemPrompt:    info.ChatType.SystemPrompt(),
		Messages:        req.Messages,
		Tools:           info.ChatType.ToolSet().Specs(),
		MaxOutputTokens: o.cfg.MaxOutputTokens,
	})
	return s
}

// run is the per-session state machine.
type run struct {
	o       *Orchestrator
	s       *Session
	client  providers.ChatClient
	toolset *tools.Set
	summary Summary
}

func (r *run) loop(ctx context.Context, creq providers.CompletionRequest) {
	defer close(r.s.events)

	// stops the provider stream once the session is terminal
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.transition(StateStreaming)
	in, err := r.client.Stream(ctx, creq)
	if err != nil {
		r.fail(ctx, err)
		return
	}

	for {
		var (
			ev providers.StreamEvent
			ok bool
		)
		select {
		case <-ctx.Done():
			r.fail(ctx, ctx.Err())
			return
		case ev, ok = <-in:
		}
		if !ok {
			if ctx.Err() != nil {
				r.fail(ctx, ctx.Err())
				return
			}
			r.finish(ctx)
			return
		}

		switch ev.Type {
		case providers.EventTextDelta:
			if !r.emit(ctx, Event{Type: EventTextDelta, Delta: ev.Delta}) {
				r.fail(ctx, ctx.Err())
				return
			}

		case providers.EventToolCallStart:
			if _, known := r.toolset.Lookup(ev.ToolName); !known && ev.ToolName != "" {
				r.fail(ctx, r.unknownTool(ev.ToolName))
				return
			}
			if !r.emit(ctx, Event{Type: EventToolCallStart, ToolCallID: ev.ToolCallID, ToolName: ev.ToolName}) {
				r.fail(ctx, ctx.Err())
				return
			}

		case providers.EventToolCallDelta:
			if !r.emit(ctx, Event{Type: EventToolCallDelta, ToolCallID: ev.ToolCallID, Delta: ev.Delta}) {
				r.fail(ctx, ctx.Err())
				return
			}

		case providers.EventToolCall:
			out, err := r.toolCall(ctx, ev)
			if err != nil {
				r.fail(ctx, err)
				return
			}
			if !r.emit(ctx, out) {
				r.fail(ctx, ctx.Err())
				return
			}

		case providers.EventError:
			cause := ev.Err
			if cause == nil {
				cause = errors.New("provider stream failed")
			}
			r.fail(ctx, cause)
			return

		case providers.EventFinish:
			r.finish(ctx)
			return
		}
	}
}

// toolCall validates a complete tool call and repairs its arguments once
// when they do not satisfy the schema.
func (r *run) toolCall(ctx context.Context, ev providers.StreamEvent) (Event, error) {
	tool, known := r.toolset.Lookup(ev.ToolName)
	if !known {
		return Event{}, r.unknownTool(ev.ToolName)
	}
	r.summary.ToolCalls++

	out := Event{Type: EventToolCall, ToolCallID: ev.ToolCallID, ToolName: ev.ToolName, Arguments: ev.Arguments}
	verr := tool.Validate(ev.Arguments)
	if verr == nil {
		return out, nil
	}

	r.o.logger.Warn("Invalid tool arguments, attempting repair",
		"session", r.s.info.ID,
		"tool", tool.Name,
		"error", verr,
	)

	r.transition(StateRepairing)
	var (
		fixed json.RawMessage
		err   error
	)
	for attempt := 0; attempt < maxRepairAttempts; attempt++ {
		fixed, err = r.repair(ctx, tool, ev.Arguments)
		r.summary.Repairs++
		if err == nil || ctx.Err() != nil {
			break
		}
	}
	if ctx.Err() != nil {
		return Event{}, ctx.Err()
	}
	if err != nil {
		r.summary.RepairFailures++
		r.o.hooks.OnRepair(r.s.info, tool.Name, false)
		return Event{}, &RepairFailureError{Tool: tool.Name, Arguments: ev.Arguments, Err: err}
	}

	r.o.hooks.OnRepair(r.s.info, tool.Name, true)
	r.transition(StateStreaming)
	out.Arguments = fixed
	out.Repaired = true
	return out, nil
}

type repairResult struct {
	args json.RawMessage
	err  error
}

// repair runs the structured sub-call in its own goroutine so that
// cancellation of ctx returns immediately.
func (r *run) repair(ctx context.Context, tool *tools.Tool, args json.RawMessage) (json.RawMessage, error) {
	var (
		subCtx context.Context
		cancel context.CancelFunc
	)
	if r.o.cfg.RepairTimeout > 0 {
		subCtx, cancel = context.WithTimeout(ctx, r.o.cfg.RepairTimeout)
	} else {
		subCtx, cancel = context.WithCancel(ctx)
	}

	done := make(chan repairResult, 1)
	go func() {
		defer cancel()
		raw, err := r.client.GenerateStructured(subCtx, repairPrompt(tool, args), tool.Schema)
		done <- repairResult{args: raw, err: err}
	}()

	select {
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		if err := tool.Validate(res.args); err != nil {
			return nil, err
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, res.args); err != nil {
			return nil, err
		}
		return compact.Bytes(), nil
	}
}

func repairPrompt(tool *tools.Tool, args json.RawMessage) string {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	schema, _ := json.Marshal(tool.Schema)
	return strings.Join([]string{
		`The model tried to call the tool "` + tool.Name + `" with the following arguments:`,
		string(args),
		`The tool accepts the following schema:`,
		string(schema),
		`Please fix the arguments.`,
	}, "\n")
}

func (r *run) unknownTool(name string) error {
	return &UnknownToolError{Name: name, Valid: r.toolset.Names()}
}

// emit forwards ev unless ctx is done first.
func (r *run) emit(ctx context.Context, ev Event) bool {
	select {
	case <-ctx.Done():
		return false
	case r.s.events <- ev:
		return true
	}
}

func (r *run) finish(ctx context.Context) {
	r.emit(ctx, Event{Type: EventDone})
	r.terminate(StateDone, nil)
}

func (r *run) fail(ctx context.Context, cause error) {
	if ctx.Err() == nil {
		r.emit(ctx, Event{Type: EventError, Err: cause})
	}
	r.terminate(StateFailed, cause)
}

func (r *run) terminate(st State, cause error) {
	r.transition(st)
	r.summary.State = st
	r.summary.Cause = cause
	r.summary.Duration = r.o.now().Sub(r.summary.StartedAt)
	r.o.hooks.OnTerminal(r.s.info, r.summary)
}

func (r *run) transition(to State) {
	from := r.s.State()
	if from.Terminal() {
		return
	}
	r.s.setState(to)
	r.o.logger.Debug("Session transition", "session", r.s.info.ID, "from", from, "to", to)
}
