package issuance

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrymomot/licensekit/pkg/queue"
)

// IssueLicense is the task payload for one issuance attempt. Renewal controls
// the secondary idempotency gate: renewals reuse the subscription but must
// mint a new charge-scoped license, so the (user, subscription) check is
// skipped for them.
type IssueLicense struct {
	UserID         uuid.UUID  `json:"user_id"`
	SubscriptionID uuid.UUID  `json:"subscription_id"`
	ChargeID       *uuid.UUID `json:"charge_id,omitempty"`
	Renewal        bool       `json:"renewal"`
}

// Enqueuer is the subset of queue.Enqueuer the service needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload any, opts ...queue.EnqueueOption) error
}

// Service enqueues issuance jobs for asynchronous execution.
type Service struct {
	enqueuer Enqueuer
}

// NewService creates an issuance service over the given enqueuer.
func NewService(enqueuer Enqueuer) (*Service, error) {
	if enqueuer == nil {
		return nil, ErrEnqueuerNil
	}
	return &Service{enqueuer: enqueuer}, nil
}

// Enqueue schedules an issuance job. Fire-and-forget: the job runs on the
// worker pool with bounded retries, and its own gates make duplicate
// enqueueing harmless.
func (s *Service) Enqueue(ctx context.Context, userID, subscriptionID uuid.UUID, chargeID *uuid.UUID, renewal bool) error {
	payload := IssueLicense{
		UserID:         userID,
		SubscriptionID: subscriptionID,
		ChargeID:       chargeID,
		Renewal:        renewal,
	}
	if err := s.enqueuer.Enqueue(ctx, payload); err != nil {
		return fmt.Errorf("enqueue issuance for user %s: %w", userID, err)
	}
	return nil
}
