package license

import "errors"

var (
	// ErrUnknownPlan indicates the subscription's price ID matches no
	// configured plan. This is a configuration error, not a transient fault:
	// callers must not retry it.
	ErrUnknownPlan = errors.New("unknown plan price ID")

	// ErrDuplicateCharge is returned by stores when an insert collides with
	// the unique constraint on the charge reference. Exactly one license may
	// ever reference a given charge.
	ErrDuplicateCharge = errors.New("license already exists for charge")

	// ErrDuplicateLicenseID is returned by stores on a public license ID
	// collision. Probability is negligible; handled anyway.
	ErrDuplicateLicenseID = errors.New("license ID already exists")

	ErrNotFound = errors.New("license not found")

	ErrInvalidCatalog      = errors.New("invalid plan catalog configuration")
	ErrGenerateLicenseID   = errors.New("failed to generate unique license ID")
	ErrMissingSubscription = errors.New("subscription is required to issue a license")
	ErrMissingCharge       = errors.New("charge is required to issue a license")
)
