package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/licensekit/pkg/billing"
)

// ChargeSucceededHandler enqueues a renewal issuance for billing-cycle
// charges. It runs for every charge event, so the non-matching majority must
// exit after a single indexed lookup.
type ChargeSucceededHandler struct {
	store  billing.SyncStore
	issuer IssuanceEnqueuer
	logger *slog.Logger
}

// NewChargeSucceededHandler creates the charge.succeeded handler.
func NewChargeSucceededHandler(store billing.SyncStore, issuer IssuanceEnqueuer, logger *slog.Logger) *ChargeSucceededHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChargeSucceededHandler{store: store, issuer: issuer, logger: logger}
}

func (h *ChargeSucceededHandler) EventType() billing.EventType {
	return billing.EventChargeSucceeded
}

func (h *ChargeSucceededHandler) Handle(ctx context.Context, event *billing.Event) error {
	payload := event.Charge
	if payload == nil {
		return nil
	}

	charge, err := h.store.ChargeByProcessorID(ctx, billing.ProcessorStripe, payload.ProcessorChargeID)
	if err != nil {
		if errors.Is(err, billing.ErrChargeNotFound) {
			// Charge not synced; nothing to renew against.
			return nil
		}
		return fmt.Errorf("resolve charge: %w", err)
	}

	// Only billing-cycle charges renew licenses. One-off and initial
	// charges are handled by the checkout flow.
	if !charge.IsRenewal() {
		return nil
	}
	if charge.SubscriptionID == nil {
		return nil
	}

	customer, err := h.store.CustomerByID(ctx, charge.CustomerID)
	if err != nil {
		if errors.Is(err, billing.ErrCustomerNotFound) {
			h.logger.Warn("renewal charge for unknown customer, skipped",
				slog.String("event_id", event.ID),
				slog.String("charge_id", charge.ID.String()))
			return nil
		}
		return fmt.Errorf("resolve customer: %w", err)
	}

	if err := h.issuer.Enqueue(ctx, customer.UserID, *charge.SubscriptionID, &charge.ID, true); err != nil {
		return fmt.Errorf("enqueue renewal issuance: %w", err)
	}

	h.logger.Info("renewal issuance enqueued",
		slog.String("event_id", event.ID),
		slog.String("user_id", customer.UserID.String()),
		slog.String("subscription_id", charge.SubscriptionID.String()),
		slog.String("charge_id", charge.ID.String()))
	return nil
}
