package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"charm.land/fantasy"

	"llm_router/internal/models"
)

// languageModel is the part of fantasy.LanguageModel the client needs.
type languageModel interface {
	Stream(ctx context.Context, call fantasy.Call) (fantasy.StreamResponse, error)
	GenerateObject(ctx context.Context, call fantasy.ObjectCall) (*fantasy.ObjectResponse, error)
}

// structuredSchemaName names the object the model is asked to produce.
const structuredSchemaName = "tool_arguments"

// fantasyClient adapts a fantasy provider to ChatClient.
type fantasyClient struct {
	kind      models.ProviderKind
	wireModel string
	apiModel  string
	open      func(ctx context.Context) (languageModel, error)
}

func newFantasyClient(kind models.ProviderKind, wireModel string, provider fantasy.Provider) *fantasyClient {
	c := &fantasyClient{
		kind:      kind,
		wireModel: wireModel,
		apiModel:  APIModel(kind, wireModel),
	}
	c.open = func(ctx context.Context) (languageModel, error) {
		lm, err := provider.LanguageModel(ctx, c.apiModel)
		if err != nil {
			return nil, err
		}
		return lm, nil
	}
	return c
}

func (c *fantasyClient) Provider() models.ProviderKind { return c.kind }

func (c *fantasyClient) WireModel() string { return c.wireModel }

// Stream implements ChatClient.
func (c *fantasyClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	model, err := c.open(ctx)
	if err != nil {
		return nil, c.wrapError(fmt.Errorf("fantasy language model: %w", err))
	}

	seq, err := model.Stream(ctx, buildCall(req))
	if err != nil {
		return nil, c.wrapError(err)
	}

	out := make(chan StreamEvent, 64)
	go c.pump(ctx, seq, out)
	return out, nil
}

// pump forwards converted parts in order and stops after the first
// terminal event.
func (c *fantasyClient) pump(ctx context.Context, seq fantasy.StreamResponse, out chan<- StreamEvent) {
	defer close(out)

	seen := map[string]struct{}{}
	for part := range seq {
		ev, ok := convertPart(part)
		if !ok {
			continue
		}
		if ev.Type == EventToolCall {
			if _, dup := seen[ev.ToolCallID]; dup {
				continue
			}
			seen[ev.ToolCallID] = struct{}{}
		}
		if ev.Type == EventError {
			ev.Err = c.wrapError(ev.Err)
		}

		select {
		case <-ctx.Done():
			return
		case out <- ev:
		}
		if ev.Type == EventError || ev.Type == EventFinish {
			return
		}
	}

	if ctx.Err() != nil {
		return
	}
	select {
	case <-ctx.Done():
	case out <- StreamEvent{Type: EventFinish}:
	}
}

// GenerateStructured implements ChatClient on fantasy's object generation,
// which validates the result against schema before returning it.
func (c *fantasyClient) GenerateStructured(ctx context.Context, prompt string, schema map[string]any) (json.RawMessage, error) {
	objSchema, err := toObjectSchema(schema)
	if err != nil {
		return nil, err
	}

	model, err := c.open(ctx)
	if err != nil {
		return nil, c.wrapError(fmt.Errorf("fantasy language model: %w", err))
	}

	resp, err := model.GenerateObject(ctx, fantasy.ObjectCall{
		Prompt:          fantasy.Prompt{textMessage(fantasy.MessageRoleUser, prompt)},
		Schema:          objSchema,
		SchemaName:      structuredSchemaName,
		ProviderOptions: fantasy.ProviderOptions{},
	})
	if err != nil {
		return nil, c.wrapError(err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if resp == nil || resp.Object == nil {
		return nil, c.wrapError(errors.New("structured output is empty"))
	}

	raw, err := json.Marshal(resp.Object)
	if err != nil {
		return nil, c.wrapError(fmt.Errorf("failed to encode structured output: %w", err))
	}
	return raw, nil
}

// toObjectSchema converts a JSON schema document to fantasy's schema type.
func toObjectSchema(schema map[string]any) (fantasy.Schema, error) {
	var out fantasy.Schema
	raw, err := json.Marshal(schema)
	if err != nil {
		return out, fmt.Errorf("failed to encode schema: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("failed to decode schema: %w", err)
	}
	return out, nil
}

func (c *fantasyClient) wrapError(err error) error {
	if err == nil {
		err = errors.New("unknown provider error")
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}

	wrapped := &ProviderError{Provider: c.kind, Model: c.wireModel, Err: err}
	var fe *fantasy.ProviderError
	if errors.As(err, &fe) {
		wrapped.StatusCode = fe.StatusCode
	}
	return wrapped
}

// convertPart maps a fantasy stream part to an event. Parts with no
// counterpart report false.
func convertPart(part fantasy.StreamPart) (StreamEvent, bool) {
	switch part.Type {
	case fantasy.StreamPartTypeTextDelta:
		if part.Delta == "" {
			return StreamEvent{}, false
		}
		return StreamEvent{Type: EventTextDelta, Delta: part.Delta}, true
	case fantasy.StreamPartTypeToolInputStart:
		if part.ProviderExecuted {
			return StreamEvent{}, false
		}
		return StreamEvent{Type: EventToolCallStart, ToolCallID: part.ID, ToolName: part.ToolCallName}, true
	case fantasy.StreamPartTypeToolInputDelta:
		if part.ProviderExecuted {
			return StreamEvent{}, false
		}
		return StreamEvent{Type: EventToolCallDelta, ToolCallID: part.ID, Delta: part.Delta}, true
	case fantasy.StreamPartTypeToolCall:
		if part.ProviderExecuted {
			return StreamEvent{}, false
		}
		args := strings.TrimSpace(part.ToolCallInput)
		if args == "" {
			args = "{}"
		}
		return StreamEvent{
			Type:       EventToolCall,
			ToolCallID: part.ID,
			ToolName:   part.ToolCallName,
			Arguments:  json.RawMessage(args),
		}, true
	case fantasy.StreamPartTypeError:
		return StreamEvent{Type: EventError, Err: part.Error}, true
	case fantasy.StreamPartTypeFinish:
		return StreamEvent{Type: EventFinish}, true
	default:
		return StreamEvent{}, false
	}
}

func buildCall(req CompletionRequest) fantasy.Call {
	call := fantasy.Call{
		Prompt:          toPrompt(req.SystemPrompt, req.Messages),
		Tools:           toTools(req.Tools),
		ProviderOptions: fantasy.ProviderOptions{},
	}
	if req.MaxOutputTokens > 0 {
		call.MaxOutputTokens = fantasy.Opt(req.MaxOutputTokens)
	}
	if len(call.Tools) > 0 {
		choice := fantasy.ToolChoiceAuto
		call.ToolChoice = &choice
	}
	return call
}

func toPrompt(system string, input []Message) fantasy.Prompt {
	prompt := make(fantasy.Prompt, 0, len(input)+1)
	if system != "" {
		prompt = append(prompt, textMessage(fantasy.MessageRoleSystem, system))
	}

	for _, msg := range input {
		switch msg.Role {
		case RoleSystem:
			prompt = append(prompt, textMessage(fantasy.MessageRoleSystem, msg.Content))
		case RoleUser:
			prompt = append(prompt, textMessage(fantasy.MessageRoleUser, msg.Content))
		case RoleAssistant:
			parts := make([]fantasy.MessagePart, 0, 1+len(msg.ToolCalls))
			if msg.Content != "" {
				parts = append(parts, fantasy.TextPart{Text: msg.Content})
			}
			for _, call := range msg.ToolCalls {
				input := string(call.Arguments)
				if input == "" {
					input = "{}"
				}
				parts = append(parts, fantasy.ToolCallPart{
					ToolCallID: call.ID,
					ToolName:   call.Name,
					Input:      input,
				})
			}
			if len(parts) > 0 {
				prompt = append(prompt, fantasy.Message{Role: fantasy.MessageRoleAssistant, Content: parts})
			}
		case RoleTool:
			var output fantasy.ToolResultOutputContent
			if msg.IsError {
				output = fantasy.ToolResultOutputContentError{Error: errors.New(msg.Content)}
			} else {
				output = fantasy.ToolResultOutputContentText{Text: msg.Content}
			}
			prompt = append(prompt, fantasy.Message{
				Role: fantasy.MessageRoleTool,
				Content: []fantasy.MessagePart{
					fantasy.ToolResultPart{ToolCallID: msg.ToolCallID, Output: output},
				},
			})
		}
	}
	return prompt
}

func toTools(specs []ToolSpec) []fantasy.Tool {
	if len(specs) == 0 {
		return nil
	}
	tools := make([]fantasy.Tool, 0, len(specs))
	for _, spec := range specs {
		tools = append(tools, fantasy.FunctionTool{
			Name:        spec.Name,
			Description: spec.Description,
			InputSchema: spec.InputSchema,
		})
	}
	return tools
}

func textMessage(role fantasy.MessageRole, text string) fantasy.Message {
	return fantasy.Message{
		Role:    role,
		Content: []fantasy.MessagePart{fantasy.TextPart{Text: text}},
	}
}
