package httpapi

import (
	"context"
	"net/http"
	"time"

	"llm_router/internal/catalog"
	"llm_router/internal/chat"
	"llm_router/internal/keypool"
	"llm_router/internal/metrics"
	"llm_router/internal/middleware"
	"llm_router/internal/models"
	"llm_router/internal/providers"
	"llm_router/internal/ratelimit"
)

// Selector resolves a client model selection.
type Selector interface {
	Select(selected string) (catalog.Selection, error)
}

// CredentialIssuer picks the credential of a chat session.
type CredentialIssuer interface {
	Issue(ctx context.Context, provider models.ProviderKind) (keypool.Lease, error)
}

// ClientFactory builds provider clients.
type ClientFactory interface {
	Build(kind models.ProviderKind, wireModel, credential string) (providers.ChatClient, error)
}

// SessionStarter runs chat sessions.
type SessionStarter interface {
	Start(ctx context.Context, client providers.ChatClient, req chat.Request) *chat.Session
}

// HealthChecker is a dependency probed by /healthz.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Dependencies aggregates all services the HTTP layer needs.
type Dependencies struct {
	Models       Selector
	Catalog      *catalog.Catalog
	Credentials  CredentialIssuer
	Pool         keypool.Acquirer
	Clients      ClientFactory
	Orchestrator SessionStarter

	Metrics  metrics.Metrics
	Observer middleware.Observer

	RateLimit          ratelimit.Limiter
	RateLimitPerMinute int

	// Health maps a component name to its probe
	Health map[string]HealthChecker

	// HeartbeatInterval spaces SSE comment lines on idle streams; 0 disables them
	HeartbeatInterval time.Duration
}

// DefaultHeartbeatInterval keeps idle streams open through proxies that cut
// silent connections.
const DefaultHeartbeatInterval = 15 * time.Second

// NewRouter creates the HTTP handler with all routes and middleware.
func NewRouter(deps *Dependencies) http.Handler {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNoopMetrics()
	}
	if deps.Observer == nil {
		deps.Observer = middleware.NopObserver{}
	}

	mux := http.NewServeMux()
	registerRoutes(mux, deps)

	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.AccessLog(deps.Observer),
		middleware.Recover,
	)
}

func registerRoutes(mux *http.ServeMux, deps *Dependencies) {
	limit := middleware.RateLimit(deps.RateLimit, deps.RateLimitPerMinute, deps.Observer)

	mux.Handle("POST /api/chat", limit(http.HandlerFunc(deps.handleChat)))
	mux.Handle("POST /api/keys/get-optimal", limit(http.HandlerFunc(deps.handleGetOptimalKey)))
	mux.HandleFunc("GET /api/models", deps.handleListModels)

	mux.HandleFunc("GET /healthz", deps.handleHealth)
	mux.Handle("GET /metrics", deps.Metrics.HTTPHandler())
}
