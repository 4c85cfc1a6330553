package billing

import (
	"time"

	"github.com/google/uuid"
)

// Customer links an application user to the provider's customer record.
type Customer struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Processor   string
	ProcessorID string // provider's customer ID (cus_xxx)
	CreatedAt   time.Time
}

// Charge is a locally-synced snapshot of a provider charge. A charge is the
// unit of idempotency for license issuance: at most one license may ever
// reference a given charge.
type Charge struct {
	ID              uuid.UUID
	CustomerID      uuid.UUID
	SubscriptionID  *uuid.UUID // nil for one-off charges
	Processor       string
	ProcessorID     string // provider's charge ID (ch_xxx)
	Amount          int64  // minor currency units
	Currency        string
	PaymentIntentID string // correlates the charge with a checkout session
	// InvoiceBillingReason is copied from the charge's invoice during sync.
	// "subscription_cycle" identifies renewal charges; empty for charges
	// without an invoice.
	InvoiceBillingReason string
	CreatedAt            time.Time
}

// IsRenewal reports whether the charge was minted by an automatic
// subscription renewal.
func (c *Charge) IsRenewal() bool {
	return c.InvoiceBillingReason == BillingReasonSubscriptionCycle
}
