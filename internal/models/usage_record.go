package models

import (
	"time"

	"github.com/google/uuid"
)

// DailyUsageRecord counts the requests served by one credential on one
// calendar day. (CredentialID, UsageDate) is unique.
type DailyUsageRecord struct {
	ID           uuid.UUID `db:"id"`
	CredentialID uuid.UUID `db:"api_key_id"`
	UsageDate    time.Time `db:"usage_date"` // date only, time component is zero
	RequestCount int       `db:"request_count"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// UsageDay truncates t to its calendar day in loc.
func UsageDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
