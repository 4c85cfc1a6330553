package billing

import (
	"context"

	"github.com/google/uuid"
)

// SyncStore exposes the billing snapshots the license engine reads.
// The provider sync collaborator owns all writes; the engine only queries
// records that were synchronized before its handlers run.
//
// Lookup methods return the matching *NotFound sentinel from this package
// when no record exists.
type SyncStore interface {
	CustomerByID(ctx context.Context, id uuid.UUID) (*Customer, error)
	CustomerByUser(ctx context.Context, userID uuid.UUID) (*Customer, error)
	CustomerByProcessorID(ctx context.Context, processor, processorID string) (*Customer, error)

	SubscriptionByID(ctx context.Context, id uuid.UUID) (*Subscription, error)
	SubscriptionByProcessorID(ctx context.Context, processor, processorID string) (*Subscription, error)
	// SubscriptionByCustomer returns the customer's most recent subscription.
	SubscriptionByCustomer(ctx context.Context, customerID uuid.UUID) (*Subscription, error)

	ChargeByID(ctx context.Context, id uuid.UUID) (*Charge, error)
	ChargeByProcessorID(ctx context.Context, processor, processorID string) (*Charge, error)
	// ChargeByPaymentIntent correlates a checkout session with its charge via
	// the provider's payment-intent identifier. Best-effort: the charge may
	// not be synced yet when a checkout-completed event is handled.
	ChargeByPaymentIntent(ctx context.Context, customerID uuid.UUID, paymentIntentID string) (*Charge, error)
	// LatestChargeBySubscription returns the most recently created charge
	// belonging to the subscription.
	LatestChargeBySubscription(ctx context.Context, subscriptionID uuid.UUID) (*Charge, error)

	CountChargesByCustomer(ctx context.Context, customerID uuid.UUID) (int64, error)
}
