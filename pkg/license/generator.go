package license

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/licensekit/pkg/billing"
)

const (
	licenseIDPrefix = "lic_"
	licenseIDLength = 24

	// createAttempts bounds retries when a freshly generated public ID loses
	// a race against a concurrent insert of the same ID.
	createAttempts = 3
	// idAttempts bounds the generate-and-check loop for the public ID.
	idAttempts = 5
)

const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
const keyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GeneratorOption configures optional Generator settings.
type GeneratorOption func(*Generator)

// WithClock overrides the time source, used by tests for deterministic
// issued_at/expires_at values.
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// Generator computes the plan and duration from a subscription's price
// reference and atomically issues a new license while retiring prior ones.
type Generator struct {
	store   Store
	catalog *Catalog
	now     func() time.Time
}

// NewGenerator creates a license generator. Panics on nil dependencies to
// fail fast during initialization.
func NewGenerator(store Store, catalog *Catalog, opts ...GeneratorOption) *Generator {
	if store == nil {
		panic("license: Store is required")
	}
	if catalog == nil {
		panic("license: Catalog is required")
	}

	g := &Generator{
		store:   store,
		catalog: catalog,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Issue creates a license owned by userID for the subscription's plan,
// anchored to the charge. Inside a single store transaction the new license
// is inserted with status=active and every other license of the same user
// flips to expired, so a partial failure leaves the prior state intact.
//
// Returns ErrUnknownPlan (non-retriable, indicates misconfiguration) when
// the subscription's price ID matches no configured plan, and
// ErrDuplicateCharge when the charge already produced a license.
func (g *Generator) Issue(ctx context.Context, userID uuid.UUID, sub *billing.Subscription, charge *billing.Charge) (*License, error) {
	if sub == nil {
		return nil, ErrMissingSubscription
	}
	if charge == nil {
		return nil, ErrMissingCharge
	}

	plan, err := g.catalog.PlanByPrice(sub.ProcessorPlan)
	if err != nil {
		return nil, err
	}

	issuedAt := g.now()
	subID := sub.ID
	chargeID := charge.ID

	lic := &License{
		ID:             uuid.New(),
		Key:            newLicenseKey(),
		UserID:         userID,
		SubscriptionID: &subID,
		ChargeID:       &chargeID,
		Plan:           plan,
		Status:         StatusActive,
		IssuedAt:       issuedAt,
		ExpiresAt:      plan.ExpiryFrom(issuedAt),
		CreatedAt:      issuedAt,
		UpdatedAt:      issuedAt,
	}

	for attempt := 0; attempt < createAttempts; attempt++ {
		lic.LicenseID, err = g.uniqueLicenseID(ctx)
		if err != nil {
			return nil, err
		}

		err = g.store.CreateAndSupersede(ctx, lic)
		if errors.Is(err, ErrDuplicateLicenseID) {
			// Lost the insert race on the public ID; regenerate and retry.
			continue
		}
		if err != nil {
			return nil, err
		}
		return lic, nil
	}

	return nil, ErrGenerateLicenseID
}

// uniqueLicenseID generates a prefixed random public identifier, retrying on
// collision against existing records. The existence check is a fast path;
// the store's unique constraint remains the source of truth.
func (g *Generator) uniqueLicenseID(ctx context.Context) (string, error) {
	for attempt := 0; attempt < idAttempts; attempt++ {
		id := licenseIDPrefix + randomString(licenseIDLength, idAlphabet)

		exists, err := g.store.LicenseIDExists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("failed to check license ID uniqueness: %w", err)
		}
		if !exists {
			return id, nil
		}
	}
	return "", ErrGenerateLicenseID
}

// newLicenseKey produces a human-readable redemption string in the
// XXXX-XXXX-XXXX-XXXX format.
func newLicenseKey() string {
	groups := make([]string, 4)
	for i := range groups {
		groups[i] = randomString(4, keyAlphabet)
	}
	return strings.Join(groups, "-")
}

func randomString(n int, alphabet string) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the process environment is broken beyond
		// recovery; matching uuid.New precedent by panicking.
		panic(fmt.Errorf("license: crypto/rand unavailable: %w", err))
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf)
}
