package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"llm_router/internal/models"
)

const credentialColumns = `id, provider, api_key, is_active, usage_count, last_used_at, created_at, updated_at`

// CredentialRepository persists the provider credential pool. It reads
// through to the database on every call.
type CredentialRepository struct {
	db  *DB
	enc *Encryption // nil stores secrets as given
}

// NewCredentialRepository creates a credential repository. enc may be nil.
func NewCredentialRepository(db *DB, enc *Encryption) *CredentialRepository {
	return &CredentialRepository{db: db, enc: enc}
}

// FindActiveCredentials returns up to limit active credentials of provider in
// selection order: lowest usage first, then oldest last use (never used
// first), then oldest creation. A limited window therefore always holds the
// optimal candidates.
func (r *CredentialRepository) FindActiveCredentials(ctx context.Context, provider models.ProviderKind, limit int) ([]*models.Credential, error) {
	if !provider.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProvider, provider)
	}

	query := `
		SELECT ` + credentialColumns + `
		FROM api_keys
		WHERE provider = $1 AND is_active = TRUE
		ORDER BY usage_count ASC, last_used_at ASC NULLS FIRST, created_at ASC
		LIMIT $2
	`

	var creds []*models.Credential
	if err := r.db.conn.SelectContext(ctx, &creds, query, string(provider), limit); err != nil {
		return nil, fmt.Errorf("failed to find active credentials: %w", err)
	}
	if err := r.openAll(creds); err != nil {
		return nil, err
	}
	return creds, nil
}

// UpdateCredentialUsage increments usage_count in place and stamps
// last_used_at, returning the new count.
func (r *CredentialRepository) UpdateCredentialUsage(ctx context.Context, id uuid.UUID, now time.Time) (int, error) {
	query := `
		UPDATE api_keys
		SET usage_count = usage_count + 1, last_used_at = $2, updated_at = $2
		WHERE id = $1
		RETURNING usage_count
	`

	var count int
	err := r.db.conn.QueryRowxContext(ctx, query, id, now).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrCredentialNotFound
		}
		return 0, fmt.Errorf("failed to update credential usage: %w", err)
	}
	return count, nil
}

// UpsertDailyUsage increments the (id, day) counter, creating it with 1.
// The statement is atomic under concurrent callers.
func (r *CredentialRepository) UpsertDailyUsage(ctx context.Context, id uuid.UUID, day time.Time) error {
	query := `
		INSERT INTO api_key_daily_usage (api_key_id, usage_date, request_count)
		VALUES ($1, $2::date, 1)
		ON CONFLICT (api_key_id, usage_date)
		DO UPDATE SET request_count = api_key_daily_usage.request_count + 1, updated_at = NOW()
	`

	// the date travels as text so the session time zone cannot shift it
	if _, err := r.db.conn.ExecContext(ctx, query, id, day.Format(time.DateOnly)); err != nil {
		return fmt.Errorf("failed to upsert daily usage: %w", err)
	}
	return nil
}

// Create stores a new active credential.
func (r *CredentialRepository) Create(ctx context.Context, provider models.ProviderKind, secret string) (*models.Credential, error) {
	if !provider.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProvider, provider)
	}
	if secret == "" {
		return nil, fmt.Errorf("secret is required")
	}

	stored := secret
	if r.enc != nil {
		sealed, err := r.enc.SealSecret(secret)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt secret: %w", err)
		}
		stored = sealed
	}

	query := `
		INSERT INTO api_keys (id, provider, api_key)
		VALUES ($1, $2, $3)
		RETURNING ` + credentialColumns

	var cred models.Credential
	if err := r.db.conn.GetContext(ctx, &cred, query, uuid.New(), string(provider), stored); err != nil {
		return nil, fmt.Errorf("failed to create credential: %w", err)
	}
	cred.Secret = secret
	return &cred, nil
}

// GetByID retrieves a credential by id
func (r *CredentialRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM api_keys WHERE id = $1`

	var cred models.Credential
	if err := r.db.conn.GetContext(ctx, &cred, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCredentialNotFound
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	if err := r.open(&cred); err != nil {
		return nil, err
	}
	return &cred, nil
}

// List returns all credentials, optionally filtered by provider.
func (r *CredentialRepository) List(ctx context.Context, provider models.ProviderKind) ([]*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM api_keys`
	var args []any
	if provider != "" {
		query += ` WHERE provider = $1`
		args = append(args, string(provider))
	}
	query += ` ORDER BY provider, created_at`

	var creds []*models.Credential
	if err := r.db.conn.SelectContext(ctx, &creds, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	if err := r.openAll(creds); err != nil {
		return nil, err
	}
	return creds, nil
}

// SetActive activates or deactivates a credential.
func (r *CredentialRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	query := `UPDATE api_keys SET is_active = $2, updated_at = NOW() WHERE id = $1`

	res, err := r.db.conn.ExecContext(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("failed to update credential: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrCredentialNotFound
	}
	return nil
}

// Delete removes a credential; its daily usage rows cascade.
func (r *CredentialRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.conn.ExecContext(ctx, `DELETE FROM api_keys WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCredentialNotFound
	}
	return nil
}

// DailyUsage returns the daily counters of a credential between from and to
// (inclusive dates), oldest first.
func (r *CredentialRepository) DailyUsage(ctx context.Context, id uuid.UUID, from, to time.Time) ([]*models.DailyUsageRecord, error) {
	query := `
		SELECT id, api_key_id, usage_date, request_count, created_at, updated_at
		FROM api_key_daily_usage
		WHERE api_key_id = $1 AND usage_date BETWEEN $2::date AND $3::date
		ORDER BY usage_date
	`

	var records []*models.DailyUsageRecord
	err := r.db.conn.SelectContext(ctx, &records, query, id, from.Format(time.DateOnly), to.Format(time.DateOnly))
	if err != nil {
		return nil, fmt.Errorf("failed to get daily usage: %w", err)
	}
	return records, nil
}

// CountActiveByProvider returns the number of active credentials per
// provider. Providers without credentials are absent from the map.
func (r *CredentialRepository) CountActiveByProvider(ctx context.Context) (map[models.ProviderKind]int, error) {
	query := `
		SELECT provider, COUNT(*) AS active
		FROM api_keys
		WHERE is_active = TRUE
		GROUP BY provider
	`

	var rows []struct {
		Provider models.ProviderKind `db:"provider"`
		Active   int                 `db:"active"`
	}
	if err := r.db.conn.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to count active credentials: %w", err)
	}

	counts := make(map[models.ProviderKind]int, len(rows))
	for _, row := range rows {
		counts[row.Provider] = row.Active
	}
	return counts, nil
}

func (r *CredentialRepository) open(c *models.Credential) error {
	if r.enc == nil {
		if IsSealed(c.Secret) {
			return fmt.Errorf("credential %s is encrypted but no encryption key is configured", c.ID)
		}
		return nil
	}
	secret, err := r.enc.OpenSecret(c.Secret)
	if err != nil {
		return fmt.Errorf("failed to decrypt credential %s: %w", c.ID, err)
	}
	c.Secret = secret
	return nil
}

func (r *CredentialRepository) openAll(creds []*models.Credential) error {
	for _, c := range creds {
		if err := r.open(c); err != nil {
			return err
		}
	}
	return nil
}
