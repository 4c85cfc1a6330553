package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/licensekit/pkg/billing"
	"github.com/dmitrymomot/licensekit/pkg/license"
)

// SubscriptionDeletedHandler cancels all active licenses of a deleted
// subscription. A status-only transition, applied synchronously: no issuance
// job is involved.
type SubscriptionDeletedHandler struct {
	store    billing.SyncStore
	licenses license.Store
	logger   *slog.Logger
}

// NewSubscriptionDeletedHandler creates the customer.subscription.deleted
// handler.
func NewSubscriptionDeletedHandler(store billing.SyncStore, licenses license.Store, logger *slog.Logger) *SubscriptionDeletedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionDeletedHandler{store: store, licenses: licenses, logger: logger}
}

func (h *SubscriptionDeletedHandler) EventType() billing.EventType {
	return billing.EventSubscriptionDeleted
}

func (h *SubscriptionDeletedHandler) Handle(ctx context.Context, event *billing.Event) error {
	payload := event.Subscription
	if payload == nil {
		return nil
	}

	sub, err := h.store.SubscriptionByProcessorID(ctx, billing.ProcessorStripe, payload.ProcessorSubID)
	if err != nil {
		if errors.Is(err, billing.ErrSubscriptionNotFound) {
			// Never synced or already purged; nothing to cancel.
			return nil
		}
		return fmt.Errorf("resolve subscription: %w", err)
	}

	cancelled, err := h.licenses.CancelActive(ctx, sub.ID)
	if err != nil {
		return fmt.Errorf("cancel licenses for subscription %s: %w", sub.ID, err)
	}

	h.logger.Info("licenses cancelled for deleted subscription",
		slog.String("event_id", event.ID),
		slog.String("subscription_id", sub.ID.String()),
		slog.Int64("cancelled", cancelled))
	return nil
}
