package billing

// ProcessorStripe is the only payment processor currently wired in.
// Snapshots carry the processor name explicitly so a second processor can be
// added without a schema change.
const ProcessorStripe = "stripe"

// Status represents the provider-reported state of a subscription.
type Status string

const (
	StatusTrialing          Status = "trialing"
	StatusActive            Status = "active"
	StatusPastDue           Status = "past_due"
	StatusCanceled          Status = "canceled"
	StatusIncomplete        Status = "incomplete"
	StatusIncompleteExpired Status = "incomplete_expired"
	StatusPaused            Status = "paused"
	StatusUnpaid            Status = "unpaid"
)

// EventType is the provider's native event name. The engine keeps provider
// names instead of remapping them so webhook logs stay greppable against the
// provider dashboard.
type EventType string

const (
	EventCheckoutCompleted   EventType = "checkout.session.completed"
	EventChargeSucceeded     EventType = "charge.succeeded"
	EventSubscriptionUpdated EventType = "customer.subscription.updated"
	EventSubscriptionDeleted EventType = "customer.subscription.deleted"
)

// BillingReasonSubscriptionCycle marks an invoice created by an automatic
// subscription renewal, as opposed to the initial payment or a one-off charge.
const BillingReasonSubscriptionCycle = "subscription_cycle"
