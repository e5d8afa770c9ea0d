// Package keypool hands out provider credentials from a stored pool,
// preferring the least used and, among equals, the longest idle one.
package keypool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"llm_router/internal/models"
	"llm_router/internal/utils"
)

// Store is the persistence boundary of the pool. Implementations must not
// cache credential state between calls.
type Store interface {
	// FindActiveCredentials returns up to limit active credentials for the
	// provider ordered by usage count ascending, then last use ascending with
	// never used first, then creation ascending.
	FindActiveCredentials(ctx context.Context, provider models.ProviderKind, limit int) ([]*models.Credential, error)

	// UpdateCredentialUsage atomically increments usage_count, sets
	// last_used_at to now and returns the new usage count.
	UpdateCredentialUsage(ctx context.Context, id uuid.UUID, now time.Time) (int, error)

	// UpsertDailyUsage atomically increments (or creates with 1) the
	// request counter of (id, day).
	UpsertDailyUsage(ctx context.Context, id uuid.UUID, day time.Time) error
}

// Observer receives pool outcomes, typically for metrics.
type Observer interface {
	ObserveAcquire(provider models.ProviderKind, outcome string, elapsed time.Duration)
	ObserveDailyUsageFailure(provider models.ProviderKind)
}

// Acquire outcomes reported to the Observer.
const (
	OutcomeAcquired  = "acquired"
	OutcomeExhausted = "exhausted"
	OutcomeTimeout   = "timeout"
	OutcomeError     = "error"
)

// Config holds pool settings.
type Config struct {
	QueryTimeout   time.Duration  // bound on each store call
	CandidateLimit int            // max credentials considered per acquire
	UsageLocation  *time.Location // calendar used for daily usage dates
}

// DefaultConfig returns default pool configuration
func DefaultConfig() Config {
	return Config{
		QueryTimeout:   5 * time.Second,
		CandidateLimit: 10,
		UsageLocation:  time.UTC,
	}
}

// Manager selects credentials and records their usage.
type Manager struct {
	store    Store
	cfg      Config
	now      func() time.Time
	observer Observer
	logger   *utils.Logger
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithObserver registers an outcome observer.
func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observer = o }
}

// WithLogger overrides the component logger.
func WithLogger(l *utils.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a pool manager backed by store.
func NewManager(store Store, cfg Config, opts ...Option) *Manager {
	def := DefaultConfig()
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = def.QueryTimeout
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = def.CandidateLimit
	}
	if cfg.UsageLocation == nil {
		cfg.UsageLocation = def.UsageLocation
	}

	m := &Manager{
		store:  store,
		cfg:    cfg,
		now:    time.Now,
		logger: utils.NewLogger("keypool"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Acquire selects the optimal credential for provider and records its use.
// The returned credential reflects the recorded usage.
//
// Two concurrent callers may pick the same credential; selection is a
// load-spreading heuristic, not mutual exclusion.
func (m *Manager) Acquire(ctx context.Context, provider models.ProviderKind) (*models.Credential, error) {
	start := m.now()

	cred, err := m.Select(ctx, provider)
	if err != nil {
		m.observe(provider, outcomeFor(err), start)
		return nil, err
	}

	count, err := m.RecordUsage(ctx, cred)
	if err != nil {
		m.observe(provider, outcomeFor(err), start)
		return nil, err
	}

	picked := *cred
	picked.UsageCount = count
	used := m.now()
	picked.LastUsedAt = &used

	m.observe(provider, OutcomeAcquired, start)
	m.logger.Debug("Credential acquired",
		"provider", provider,
		"credential_id", picked.ID,
		"fingerprint", utils.Fingerprint(picked.Secret),
		"usage_count", picked.UsageCount,
	)
	return &picked, nil
}

// Select queries the active credentials of provider and returns the optimal
// one without recording usage.
func (m *Manager) Select(ctx context.Context, provider models.ProviderKind) (*models.Credential, error) {
	tctx, cancel := context.WithTimeout(ctx, m.cfg.QueryTimeout)
	defer cancel()

	creds, err := m.store.FindActiveCredentials(tctx, provider, m.cfg.CandidateLimit)
	if err != nil {
		if timedOut(ctx, tctx) {
			m.logger.Warn("Credential store lookup timed out", "provider", provider, "timeout", m.cfg.QueryTimeout)
			return nil, fmt.Errorf("%w after %s (provider %s)", ErrPoolTimeout, m.cfg.QueryTimeout, provider)
		}
		return nil, fmt.Errorf("failed to query credentials for %s: %w", provider, err)
	}

	best := SelectOptimal(creds)
	if best == nil {
		return nil, fmt.Errorf("%w: %s", ErrPoolExhausted, provider)
	}
	return best, nil
}

// RecordUsage increments the credential's usage and its daily counter. Only
// the primary counter update can fail the call; a daily counter failure is
// logged and swallowed.
func (m *Manager) RecordUsage(ctx context.Context, cred *models.Credential) (int, error) {
	now := m.now()

	uctx, cancel := context.WithTimeout(ctx, m.cfg.QueryTimeout)
	count, err := m.store.UpdateCredentialUsage(uctx, cred.ID, now)
	timeout := err != nil && timedOut(ctx, uctx)
	cancel()
	if err != nil {
		if timeout {
			return 0, fmt.Errorf("%w while recording usage of %s", ErrPoolTimeout, cred.ID)
		}
		return 0, fmt.Errorf("failed to record credential usage: %w", err)
	}

	day := models.UsageDay(now, m.cfg.UsageLocation)
	dctx, cancel := context.WithTimeout(ctx, m.cfg.QueryTimeout)
	defer cancel()
	if err := m.store.UpsertDailyUsage(dctx, cred.ID, day); err != nil {
		m.logger.Error("Failed to update daily usage",
			"credential_id", cred.ID,
			"usage_date", day.Format(time.DateOnly),
			"error", err,
		)
		if m.observer != nil {
			m.observer.ObserveDailyUsageFailure(cred.Provider)
		}
	}

	return count, nil
}

// SelectOptimal returns the credential with the lowest usage count, breaking
// ties by the oldest last use (never used first). Among fully tied
// credentials the first in input order wins. Nil for an empty slice.
func SelectOptimal(creds []*models.Credential) *models.Credential {
	var best *models.Credential
	for _, c := range creds {
		if c == nil {
			continue
		}
		switch {
		case best == nil:
			best = c
		case c.UsageCount < best.UsageCount:
			best = c
		case c.UsageCount == best.UsageCount && c.UsedBefore(best):
			best = c
		}
	}
	return best
}

func (m *Manager) observe(provider models.ProviderKind, outcome string, start time.Time) {
	if m.observer == nil {
		return
	}
	m.observer.ObserveAcquire(provider, outcome, m.now().Sub(start))
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, ErrPoolExhausted):
		return OutcomeExhausted
	case errors.Is(err, ErrPoolTimeout):
		return OutcomeTimeout
	default:
		return OutcomeError
	}
}

// timedOut reports whether the bounded child context expired while the
// caller's own context is still live.
func timedOut(parent, child context.Context) bool {
	return parent.Err() == nil && errors.Is(child.Err(), context.DeadlineExceeded)
}
