package billing

import "encoding/json"

// Event is a normalized, signature-verified provider event. Exactly one of
// the typed sections is populated depending on Type; Raw always carries the
// provider's original object payload for audit logging.
type Event struct {
	ID   string
	Type EventType

	Checkout     *CheckoutSessionEvent
	Charge       *ChargeEvent
	Subscription *SubscriptionEvent

	Raw json.RawMessage
}

// CheckoutSessionEvent carries the fields of a checkout.session.completed
// payload the engine acts on.
type CheckoutSessionEvent struct {
	SessionID           string
	Mode                string // only "subscription" sessions issue licenses
	PaymentStatus       string // only "paid" sessions issue licenses
	ProcessorCustomerID string
	ProcessorSubID      string
	PaymentIntentID     string
}

// ChargeEvent carries the fields of a charge.succeeded payload.
type ChargeEvent struct {
	ProcessorChargeID   string
	ProcessorCustomerID string
	PaymentIntentID     string
	InvoiceID           string
	Amount              int64
	Currency            string
}

// SubscriptionEvent carries the fields of customer.subscription.* payloads.
type SubscriptionEvent struct {
	ProcessorSubID      string
	ProcessorCustomerID string
	Status              string
	PriceID             string
	CancelAtPeriodEnd   bool
}
