package models

import (
	"time"

	"github.com/google/uuid"
)

// Credential is a stored provider API key that belongs to a rotation pool.
type Credential struct {
	ID         uuid.UUID    `db:"id"`
	Provider   ProviderKind `db:"provider"`
	Secret     string       `db:"api_key"`
	Active     bool         `db:"is_active"`
	UsageCount int          `db:"usage_count"`
	LastUsedAt *time.Time   `db:"last_used_at"` // NULL = never used
	CreatedAt  time.Time    `db:"created_at"`
	UpdatedAt  time.Time    `db:"updated_at"`
}

// NeverUsed reports whether the credential has no recorded use.
func (c *Credential) NeverUsed() bool {
	return c.LastUsedAt == nil
}

// UsedBefore reports whether c was last used strictly before other.
// A never-used credential counts as older than any used one.
func (c *Credential) UsedBefore(other *Credential) bool {
	switch {
	case c.LastUsedAt == nil && other.LastUsedAt == nil:
		return false
	case c.LastUsedAt == nil:
		return true
	case other.LastUsedAt == nil:
		return false
	}
	return c.LastUsedAt.Before(*other.LastUsedAt)
}
