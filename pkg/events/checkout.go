package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/licensekit/pkg/billing"
)

// IssuanceEnqueuer is the issuance boundary the event handlers call.
// Fire-and-forget: the job's own gates absorb duplicates.
type IssuanceEnqueuer interface {
	Enqueue(ctx context.Context, userID, subscriptionID uuid.UUID, chargeID *uuid.UUID, renewal bool) error
}

// CheckoutCompletedHandler enqueues an initial license issuance when a
// subscription checkout finishes paid.
type CheckoutCompletedHandler struct {
	store  billing.SyncStore
	issuer IssuanceEnqueuer
	logger *slog.Logger
}

// NewCheckoutCompletedHandler creates the checkout.session.completed handler.
func NewCheckoutCompletedHandler(store billing.SyncStore, issuer IssuanceEnqueuer, logger *slog.Logger) *CheckoutCompletedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckoutCompletedHandler{store: store, issuer: issuer, logger: logger}
}

func (h *CheckoutCompletedHandler) EventType() billing.EventType {
	return billing.EventCheckoutCompleted
}

func (h *CheckoutCompletedHandler) Handle(ctx context.Context, event *billing.Event) error {
	checkout := event.Checkout
	if checkout == nil {
		return nil
	}
	if checkout.Mode != "subscription" || checkout.PaymentStatus != "paid" {
		return nil
	}

	log := h.logger.With(
		slog.String("event_id", event.ID),
		slog.String("session_id", checkout.SessionID))

	customer, err := h.store.CustomerByProcessorID(ctx, billing.ProcessorStripe, checkout.ProcessorCustomerID)
	if err != nil {
		if errors.Is(err, billing.ErrCustomerNotFound) {
			log.Warn("checkout completed for unknown customer, skipped",
				slog.String("processor_customer_id", checkout.ProcessorCustomerID))
			return nil
		}
		return fmt.Errorf("resolve customer: %w", err)
	}

	sub, err := h.resolveSubscription(ctx, customer, checkout)
	if err != nil {
		return err
	}
	if sub == nil {
		log.Warn("checkout completed but no subscription synced yet, skipped")
		return nil
	}

	// Best-effort charge correlation via the payment intent. The issuance
	// job falls back to the subscription's latest charge when nil.
	var chargeID *uuid.UUID
	charge, err := h.store.ChargeByPaymentIntent(ctx, customer.ID, checkout.PaymentIntentID)
	switch {
	case err == nil:
		chargeID = &charge.ID
	case errors.Is(err, billing.ErrChargeNotFound):
		// Not synced yet; fine.
	default:
		return fmt.Errorf("correlate charge: %w", err)
	}

	if err := h.issuer.Enqueue(ctx, customer.UserID, sub.ID, chargeID, false); err != nil {
		return fmt.Errorf("enqueue initial issuance: %w", err)
	}

	log.Info("initial issuance enqueued",
		slog.String("user_id", customer.UserID.String()),
		slog.String("subscription_id", sub.ID.String()))
	return nil
}

func (h *CheckoutCompletedHandler) resolveSubscription(ctx context.Context, customer *billing.Customer, checkout *billing.CheckoutSessionEvent) (*billing.Subscription, error) {
	if checkout.ProcessorSubID != "" {
		sub, err := h.store.SubscriptionByProcessorID(ctx, billing.ProcessorStripe, checkout.ProcessorSubID)
		if err == nil {
			return sub, nil
		}
		if !errors.Is(err, billing.ErrSubscriptionNotFound) {
			return nil, fmt.Errorf("resolve subscription: %w", err)
		}
	}

	sub, err := h.store.SubscriptionByCustomer(ctx, customer.ID)
	if err != nil {
		if errors.Is(err, billing.ErrSubscriptionNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve customer subscription: %w", err)
	}
	return sub, nil
}
