package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrymomot/licensekit/pkg/billing"
	"github.com/dmitrymomot/licensekit/pkg/license"
)

// Snapshot is a read-only projection of a user's billing and license state
// for presentation layers. No side effects.
type Snapshot struct {
	Customer     *billing.Customer     `json:"customer,omitempty"`
	Subscription *billing.Subscription `json:"subscription,omitempty"`

	// Predicates evaluated on the subscription snapshot at projection time.
	Active        bool `json:"active"`
	OnGracePeriod bool `json:"on_grace_period"`
	OnTrial       bool `json:"on_trial"`

	// BestLicense is the user's most relevant license: active first, then
	// cancelled, then expired.
	BestLicense *license.License `json:"best_license,omitempty"`

	LicenseCount int64 `json:"license_count"`
	ChargeCount  int64 `json:"charge_count"`
}

// Projector builds Snapshots from the synced billing state and the license
// store.
type Projector struct {
	store    billing.SyncStore
	licenses license.Store
}

// NewProjector creates a projector. Both stores are required.
func NewProjector(store billing.SyncStore, licenses license.Store) (*Projector, error) {
	if store == nil || licenses == nil {
		return nil, errors.New("projector requires billing store and license store")
	}
	return &Projector{store: store, licenses: licenses}, nil
}

// Snapshot projects the user's current state. Missing customer,
// subscription or license are empty sections, not errors.
func (p *Projector) Snapshot(ctx context.Context, userID uuid.UUID) (*Snapshot, error) {
	snap := &Snapshot{}

	customer, err := p.store.CustomerByUser(ctx, userID)
	switch {
	case err == nil:
		snap.Customer = customer
	case errors.Is(err, billing.ErrCustomerNotFound):
		// Never subscribed.
	default:
		return nil, fmt.Errorf("resolve customer: %w", err)
	}

	if snap.Customer != nil {
		sub, err := p.store.SubscriptionByCustomer(ctx, snap.Customer.ID)
		switch {
		case err == nil:
			snap.Subscription = sub
			snap.Active = sub.Active()
			snap.OnGracePeriod = sub.OnGracePeriod()
			snap.OnTrial = sub.OnTrial()
		case errors.Is(err, billing.ErrSubscriptionNotFound):
		default:
			return nil, fmt.Errorf("resolve subscription: %w", err)
		}

		charges, err := p.store.CountChargesByCustomer(ctx, snap.Customer.ID)
		if err != nil {
			return nil, fmt.Errorf("count charges: %w", err)
		}
		snap.ChargeCount = charges
	}

	best, err := p.licenses.BestByUser(ctx, userID)
	switch {
	case err == nil:
		snap.BestLicense = best
	case errors.Is(err, license.ErrNotFound):
	default:
		return nil, fmt.Errorf("resolve best license: %w", err)
	}

	count, err := p.licenses.CountByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count licenses: %w", err)
	}
	snap.LicenseCount = count

	return snap, nil
}
