package license

import (
	"context"

	"github.com/google/uuid"
)

// Store is the persistence boundary for license records. Implementations own
// the uniqueness invariants: one license per charge and globally unique
// public license IDs must be enforced by real constraints, not application
// checks, because concurrent issuance attempts for the same charge race past
// any read-then-write guard.
type Store interface {
	// CreateAndSupersede atomically inserts the license and marks every other
	// license owned by the same user as expired. A failure anywhere leaves
	// the prior state untouched; a reader never observes two simultaneously
	// active licenses for one user.
	//
	// Returns ErrDuplicateCharge when the charge reference is already taken
	// and ErrDuplicateLicenseID on a public ID collision.
	CreateAndSupersede(ctx context.Context, lic *License) error

	// ExistsByCharge reports whether any license references the charge.
	ExistsByCharge(ctx context.Context, chargeID uuid.UUID) (bool, error)

	// ExistsBySubscription reports whether the user already holds a license
	// for the subscription. Best-effort duplicate guard for initial
	// subscriptions; not constraint-backed.
	ExistsBySubscription(ctx context.Context, userID, subscriptionID uuid.UUID) (bool, error)

	// LicenseIDExists reports whether the public license ID is taken.
	LicenseIDExists(ctx context.Context, licenseID string) (bool, error)

	// ByLicenseID fetches a license by its public identifier.
	// Returns ErrNotFound when absent.
	ByLicenseID(ctx context.Context, licenseID string) (*License, error)

	// CancelActive marks every active license for the subscription as
	// cancelled and returns the number of licenses transitioned. Licenses
	// already expired are untouched.
	CancelActive(ctx context.Context, subscriptionID uuid.UUID) (int64, error)

	// BestByUser returns the user's most relevant license, ordered by status
	// priority (active > cancelled > expired), newest first within a status.
	// Returns ErrNotFound when the user holds no licenses.
	BestByUser(ctx context.Context, userID uuid.UUID) (*License, error)

	// ListByUser returns all of the user's licenses, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]License, error)

	// CountByUser returns the number of licenses the user holds.
	CountByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}
