package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"llm_router/internal/models"
	"llm_router/internal/utils"
)

// CredentialCounter reports active credentials per provider.
type CredentialCounter interface {
	CountActiveByProvider(ctx context.Context) (map[models.ProviderKind]int, error)
}

// PoolCollector exports the active pool size per provider, read from the
// store at scrape time.
type PoolCollector struct {
	counter CredentialCounter
	timeout time.Duration
	logger  *utils.Logger

	activeCredentials *prometheus.Desc
}

// NewPoolCollector creates a pool size collector
func NewPoolCollector(counter CredentialCounter, timeout time.Duration) *PoolCollector {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PoolCollector{
		counter: counter,
		timeout: timeout,
		logger:  utils.NewLogger("metrics"),

		activeCredentials: prometheus.NewDesc(
			"llm_router_pool_active_credentials",
			"Active credentials in the pool by provider",
			[]string{"provider"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.activeCredentials
}

// Collect implements prometheus.Collector.
func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	counts, err := c.counter.CountActiveByProvider(ctx)
	if err != nil {
		c.logger.Warn("Failed to count active credentials", "error", err)
		return
	}

	for _, kind := range models.AllProviderKinds() {
		ch <- prometheus.MustNewConstMetric(
			c.activeCredentials,
			prometheus.GaugeValue,
			float64(counts[kind]),
			string(kind),
		)
	}
}
