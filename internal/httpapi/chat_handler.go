package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"llm_router/internal/catalog"
	"llm_router/internal/chat"
	"llm_router/internal/middleware"
	"llm_router/internal/models"
	"llm_router/internal/providers"
	"llm_router/internal/tools"
	"llm_router/internal/utils"
)

const maxChatBodyBytes = 10 << 20

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Messages   []providers.Message `json:"messages"`
	MaxSteps   int                 `json:"maxSteps"`
	ChatType   string              `json:"chatType"`
	AISettings struct {
		SelectedModel string `json:"selectedModel"`
	} `json:"aiSettings"`
}

func (req *ChatRequest) validate() error {
	if len(req.Messages) == 0 {
		return errors.New("messages must not be empty")
	}
	for i, m := range req.Messages {
		switch m.Role {
		case providers.RoleSystem, providers.RoleUser, providers.RoleAssistant:
		case providers.RoleTool:
			if m.ToolCallID == "" {
				return fmt.Errorf("messages[%d]: tool message requires toolCallId", i)
			}
		default:
			return fmt.Errorf("messages[%d]: unknown role %q", i, m.Role)
		}
	}
	if req.MaxSteps < 0 {
		return errors.New("maxSteps must not be negative")
	}
	return nil
}

// handleChat resolves the model, picks a credential, builds the provider
// client and streams the session as server-sent events.
//
// Failures before the first event are JSON errors: 400 for a bad body or
// an unresolvable model, 503 when the credential store fails, 500 for a
// client that cannot be built. Once streaming, failures arrive as a
// terminal error event.
func (d *Dependencies) handleChat(w http.ResponseWriter, r *http.Request) {
	logger := utils.NewLogger("chat-handler")
	reqID := middleware.GetRequestID(r.Context())
	if reqID == "" {
		reqID = uuid.NewString()
	}

	var body ChatRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBodyBytes))
	if err := dec.Decode(&body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "", "invalid JSON body")
		return
	}
	if err := body.validate(); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "", err.Error())
		return
	}

	sel, err := d.Models.Select(body.AISettings.SelectedModel)
	if err != nil {
		var resErr *catalog.ResolutionError
		if errors.As(err, &resErr) {
			utils.RespondWithError(w, http.StatusBadRequest, "", err.Error())
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "server_error", "model resolution failed")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	lease, err := d.Credentials.Issue(ctx, sel.Provider)
	if err != nil {
		logger.Error("Credential lookup failed", "provider", sel.Provider, "request_id", reqID, "error", err)
		utils.RespondWithError(w, http.StatusServiceUnavailable, "server_error", "credential store unavailable")
		return
	}

	client, err := buildClient(d.Clients, sel.Provider, sel.WireModel, lease.Secret)
	if err != nil {
		logger.Error("Failed to build provider client", "provider", sel.Provider, "model", sel.WireModel, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "server_error", "provider client unavailable")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondWithError(w, http.StatusInternalServerError, "server_error", "streaming not supported")
		return
	}

	info := chat.SessionInfo{
		ID:               reqID,
		ChatType:         tools.ParseChatType(body.ChatType),
		Provider:         sel.Provider,
		Model:            sel.WireModel,
		CredentialSource: string(lease.Source),
		MaxSteps:         body.MaxSteps,
	}
	if lease.Pooled() {
		info.CredentialID = lease.CredentialID.String()
	}

	session := d.Orchestrator.Start(ctx, client, chat.Request{Info: info, Messages: body.Messages})

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Set("X-LLM-Provider", string(sel.Provider))
	h.Set("X-LLM-Model", sel.WireModel)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sse := newSSEWriter(w, flusher)
	if err := d.pump(ctx, sse, session.Events()); err != nil {
		logger.Debug("Stopped streaming to client", "request_id", reqID, "error", err)
	}
}

// pump forwards session events until the stream closes, ctx ends or the
// client write fails.
func (d *Dependencies) pump(ctx context.Context, sse *sseWriter, events <-chan chat.Event) error {
	var heartbeat <-chan time.Time
	if d.HeartbeatInterval > 0 {
		t := time.NewTicker(d.HeartbeatInterval)
		defer t.Stop()
		heartbeat = t.C
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := sse.event(string(ev.Type), toWireEvent(ev)); err != nil {
				return err
			}
		case <-heartbeat:
			if err := sse.comment("ping"); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// buildClient converts the factory's unsupported-provider panic into an
// error so that the request fails without tearing down the stream writer.
func buildClient(f ClientFactory, kind models.ProviderKind, wireModel, secret string) (client providers.ChatClient, err error) {
	defer func() {
		if v := recover(); v != nil {
			if e, ok := v.(error); ok && errors.Is(e, providers.ErrUnsupportedProvider) {
				err = e
				return
			}
			panic(v)
		}
	}()
	return f.Build(kind, wireModel, secret)
}
