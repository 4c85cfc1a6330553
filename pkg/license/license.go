package license

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a license. A license is never
// mutated after creation except for this field.
type Status string

const (
	// StatusActive is set once, by the Generator, inside the issuance
	// transaction.
	StatusActive Status = "active"
	// StatusExpired marks a license superseded by a newer one for the same
	// user.
	StatusExpired Status = "expired"
	// StatusCancelled marks a license whose owning subscription was deleted
	// at the provider.
	StatusCancelled Status = "cancelled"
)

// License is an issued software license.
type License struct {
	ID             uuid.UUID  // internal identity
	LicenseID      string     // public, prefixed random identifier (lic_xxx)
	Key            string     // human-displayed redemption string
	UserID         uuid.UUID  // owner
	SubscriptionID *uuid.UUID // billing subscription snapshot, nil for manual grants
	ChargeID       *uuid.UUID // idempotency anchor, unique when present
	Plan           Plan
	Status         Status
	IssuedAt       time.Time
	ExpiresAt      time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ExpiredAt reports whether the license's validity window has elapsed at the
// given time, independent of its lifecycle status.
func (l *License) ExpiredAt(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}

// statusPriority orders licenses for display: active > cancelled > expired.
// Used to pick the "best" license for a user on dashboards.
func statusPriority(s Status) int {
	switch s {
	case StatusActive:
		return 0
	case StatusCancelled:
		return 1
	case StatusExpired:
		return 2
	default:
		return 3
	}
}
