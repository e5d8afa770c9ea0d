package keypool

import (
	"context"

	"github.com/google/uuid"

	"llm_router/internal/models"
	"llm_router/internal/utils"
)

// Source tells where a lease's secret came from.
type Source string

const (
	SourcePool   Source = "pool"
	SourceStatic Source = "static"
	SourceNone   Source = "none"
)

// Lease is the credential chosen for one request.
type Lease struct {
	Provider     models.ProviderKind
	Secret       string    // empty when no credential is available at all
	CredentialID uuid.UUID // uuid.Nil unless Source is SourcePool
	UsageCount   int
	Source       Source
}

// Pooled reports whether usage of this lease was accounted in the pool.
func (l Lease) Pooled() bool {
	return l.Source == SourcePool
}

// Acquirer is the part of Manager used by Issuer.
type Acquirer interface {
	Acquire(ctx context.Context, provider models.ProviderKind) (*models.Credential, error)
}

// StaticCredentials holds the process-wide configured secret per provider.
type StaticCredentials map[models.ProviderKind]string

// Issuer applies the fallback policy: pool first, and on exhaustion or
// timeout the static secret of the same provider, without accounting. Other
// store errors are returned unchanged.
type Issuer struct {
	pool   Acquirer
	static StaticCredentials
	logger *utils.Logger
}

// NewIssuer creates an issuer. pool may be nil, in which case only static
// credentials are used.
func NewIssuer(pool Acquirer, static StaticCredentials) *Issuer {
	if static == nil {
		static = StaticCredentials{}
	}
	return &Issuer{pool: pool, static: static, logger: utils.NewLogger("keypool-issuer")}
}

// Issue returns the credential to use for provider.
func (i *Issuer) Issue(ctx context.Context, provider models.ProviderKind) (Lease, error) {
	if i.pool != nil {
		cred, err := i.pool.Acquire(ctx, provider)
		if err == nil {
			return Lease{
				Provider:     provider,
				Secret:       cred.Secret,
				CredentialID: cred.ID,
				UsageCount:   cred.UsageCount,
				Source:       SourcePool,
			}, nil
		}
		if !Unavailable(err) {
			return Lease{}, err
		}
		i.logger.Warn("Pool credential unavailable, using static fallback", "provider", provider, "error", err)
	}

	if secret := i.static[provider]; secret != "" {
		return Lease{Provider: provider, Secret: secret, Source: SourceStatic}, nil
	}
	i.logger.Warn("No credential configured, proceeding unauthenticated", "provider", provider)
	return Lease{Provider: provider, Source: SourceNone}, nil
}
