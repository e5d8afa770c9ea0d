package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"llm_router/internal/chat"
	"llm_router/internal/models"
)

// Metrics exposes service metrics over HTTP.
type Metrics interface {
	HTTPHandler() http.Handler
}

// NoopMetrics is used when metrics are disabled.
type NoopMetrics struct{}

func NewNoopMetrics() *NoopMetrics {
	return &NoopMetrics{}
}

func (m *NoopMetrics) HTTPHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

// Prometheus collects router metrics on its own registry. It implements
// keypool.Observer and chat.Hooks.
type Prometheus struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	rateLimited  prometheus.Counter

	poolAcquires        *prometheus.CounterVec
	poolAcquireDuration *prometheus.HistogramVec
	dailyUsageFailures  *prometheus.CounterVec

	sessionsStarted *prometheus.CounterVec
	sessionsEnded   *prometheus.CounterVec
	sessionDuration *prometheus.HistogramVec
	repairs         *prometheus.CounterVec
}

// NewPrometheus creates and registers the router collectors
func NewPrometheus() *Prometheus {
	m := &Prometheus{
		registry: prometheus.NewRegistry(),

		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_router_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llm_router_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
			},
			[]string{"method", "route"},
		),
		rateLimited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "llm_router_rate_limited_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
		),

		poolAcquires: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_router_pool_acquire_total",
				Help: "Credential acquisitions by outcome",
			},
			[]string{"provider", "outcome"}, // outcome: acquired|exhausted|timeout|error
		),
		poolAcquireDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llm_router_pool_acquire_duration_seconds",
				Help:    "Credential acquisition latency in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"provider"},
		),
		dailyUsageFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_router_pool_daily_usage_failures_total",
				Help: "Daily usage upserts that failed and were skipped",
			},
			[]string{"provider"},
		),

		sessionsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_router_chat_sessions_started_total",
				Help: "Chat sessions started",
			},
			[]string{"provider", "chat_type"},
		),
		sessionsEnded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_router_chat_sessions_total",
				Help: "Chat sessions by terminal state",
			},
			[]string{"provider", "state", "kind"},
		),
		sessionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llm_router_chat_session_duration_seconds",
				Help:    "Chat session duration in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"provider"},
		),
		repairs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_router_chat_tool_repairs_total",
				Help: "Tool call repair attempts by result",
			},
			[]string{"tool", "result"}, // result: success|failure
		),
	}

	m.registry.MustRegister(
		m.httpRequests, m.httpDuration, m.rateLimited,
		m.poolAcquires, m.poolAcquireDuration, m.dailyUsageFailures,
		m.sessionsStarted, m.sessionsEnded, m.sessionDuration, m.repairs,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Register adds an extra collector to the registry.
func (m *Prometheus) Register(c prometheus.Collector) error {
	return m.registry.Register(c)
}

// HTTPHandler serves the registry in the Prometheus exposition format.
func (m *Prometheus) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveHTTPRequest records a finished HTTP request.
func (m *Prometheus) ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveRateLimited counts a rejected request.
func (m *Prometheus) ObserveRateLimited() {
	m.rateLimited.Inc()
}

// ObserveAcquire implements keypool.Observer.
func (m *Prometheus) ObserveAcquire(provider models.ProviderKind, outcome string, elapsed time.Duration) {
	m.poolAcquires.WithLabelValues(string(provider), outcome).Inc()
	m.poolAcquireDuration.WithLabelValues(string(provider)).Observe(elapsed.Seconds())
}

// ObserveDailyUsageFailure implements keypool.Observer.
func (m *Prometheus) ObserveDailyUsageFailure(provider models.ProviderKind) {
	m.dailyUsageFailures.WithLabelValues(string(provider)).Inc()
}

// OnSessionStart implements chat.Hooks.
func (m *Prometheus) OnSessionStart(info chat.SessionInfo) {
	m.sessionsStarted.WithLabelValues(string(info.Provider), string(info.ChatType)).Inc()
}

// OnRepair implements chat.Hooks.
func (m *Prometheus) OnRepair(_ chat.SessionInfo, tool string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	m.repairs.WithLabelValues(tool, result).Inc()
}

// OnTerminal implements chat.Hooks.
func (m *Prometheus) OnTerminal(info chat.SessionInfo, summary chat.Summary) {
	m.sessionsEnded.WithLabelValues(string(info.Provider), summary.State.String(), chat.FailureKind(summary.Cause)).Inc()
	m.sessionDuration.WithLabelValues(string(info.Provider)).Observe(summary.Duration.Seconds())
}
