package billing

import (
	"context"
	"time"
)

// ProviderGateway is the synchronous command boundary to the payment
// provider. Every mutation here returns only the provider's immediate
// acknowledgment; the durable local effect arrives later as a webhook event
// processed by the event handlers. Keeping the command and confirmation paths
// separate means a crash between "told the provider" and "saved locally"
// cannot lose state - the webhook replays the truth.
type ProviderGateway interface {
	// CreateCheckoutSession starts a hosted subscription checkout and returns
	// the redirect target.
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)

	// CancelAtPeriodEnd schedules cancellation for the current period end.
	// The subscription stays active until then (grace period).
	CancelAtPeriodEnd(ctx context.Context, processorSubID string) error

	// Resume clears a scheduled cancellation so the subscription auto-renews.
	Resume(ctx context.Context, processorSubID string) error

	// SwapPrice moves the subscription to a different price. The provider may
	// prorate.
	SwapPrice(ctx context.Context, processorSubID, priceID string) error

	// CancelNow terminates the subscription immediately, no grace period.
	CancelNow(ctx context.Context, processorSubID string) error

	// ParseWebhook verifies the event signature and decodes the payload into
	// a normalized Event. Must reject unsigned or tampered payloads.
	ParseWebhook(ctx context.Context, payload []byte, signature string) (*Event, error)
}

// CheckoutRequest contains data needed to create a hosted checkout session.
type CheckoutRequest struct {
	PriceID             string // provider's price identifier
	ProcessorCustomerID string // existing provider customer, empty for new
	Email               string // pre-fill billing email when known
	SuccessURL          string
	CancelURL           string
}

// CheckoutSession is the provider's acknowledgment of a checkout request.
type CheckoutSession struct {
	SessionID string
	URL       string // hosted checkout redirect target
	ExpiresAt time.Time
}
