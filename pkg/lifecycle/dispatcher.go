package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/licensekit/pkg/billing"
	"github.com/dmitrymomot/licensekit/pkg/license"
)

// Action identifies one lifecycle command.
type Action string

const (
	ActionSubscribe         Action = "subscribe"
	ActionCancel            Action = "cancel"
	ActionResume            Action = "resume"
	ActionSwapPlan          Action = "swap_plan"
	ActionCancelImmediately Action = "cancel_immediately"
)

// Ack is the dispatcher's immediate result: the provider's acknowledgment
// plus the snapshot the precondition was evaluated against. Durable local
// state changes only after the provider's confirmation event is processed.
type Ack struct {
	Action Action

	// Before is the subscription snapshot the precondition was checked on;
	// nil for subscribe, which has no precondition.
	Before *billing.Subscription

	// RedirectURL is set for subscribe only.
	RedirectURL string

	// TargetPriceID is set for swap_plan only.
	TargetPriceID string
}

// SubscribeRequest starts a hosted checkout for a user.
type SubscribeRequest struct {
	UserID     uuid.UUID
	Email      string
	PriceID    string
	SuccessURL string
	CancelURL  string
}

// Dispatcher issues lifecycle commands against the payment provider.
// Identity is explicit on every call; the dispatcher holds no session state.
type Dispatcher struct {
	gateway billing.ProviderGateway
	store   billing.SyncStore
	catalog *license.Catalog
	logger  *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the dispatcher's logger.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher creates a lifecycle dispatcher. Gateway, store and catalog
// are required.
func NewDispatcher(gateway billing.ProviderGateway, store billing.SyncStore, catalog *license.Catalog, opts ...DispatcherOption) (*Dispatcher, error) {
	if gateway == nil || store == nil || catalog == nil {
		return nil, errors.New("lifecycle dispatcher requires gateway, store and catalog")
	}

	d := &Dispatcher{
		gateway: gateway,
		store:   store,
		catalog: catalog,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Subscribe starts a hosted checkout. Always permitted: a user with no
// subscription, or with a terminated one, subscribes through the same path.
func (d *Dispatcher) Subscribe(ctx context.Context, req SubscribeRequest) (*Ack, error) {
	checkout := billing.CheckoutRequest{
		PriceID:    req.PriceID,
		Email:      req.Email,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	}

	// Reuse the provider customer when one exists so the provider keeps the
	// payment history together.
	customer, err := d.store.CustomerByUser(ctx, req.UserID)
	switch {
	case err == nil:
		checkout.ProcessorCustomerID = customer.ProcessorID
	case errors.Is(err, billing.ErrCustomerNotFound):
		// First subscription; the provider creates the customer.
	default:
		return nil, fmt.Errorf("resolve customer: %w", err)
	}

	session, err := d.gateway.CreateCheckoutSession(ctx, checkout)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	d.logger.Info("checkout session created",
		slog.String("user_id", req.UserID.String()),
		slog.String("session_id", session.SessionID),
		slog.String("price_id", req.PriceID))

	return &Ack{Action: ActionSubscribe, RedirectURL: session.URL}, nil
}

// CancelAtPeriodEnd schedules cancellation for the current period end.
// Requires an active subscription.
func (d *Dispatcher) CancelAtPeriodEnd(ctx context.Context, userID uuid.UUID) (*Ack, error) {
	sub, err := d.subscription(ctx, userID, ActionCancel)
	if err != nil {
		return nil, err
	}
	if !sub.Active() {
		return nil, preconditionErr(ActionCancel, "an active subscription")
	}

	if err := d.gateway.CancelAtPeriodEnd(ctx, sub.ProcessorID); err != nil {
		return nil, fmt.Errorf("cancel at period end: %w", err)
	}

	d.logger.Info("cancellation scheduled",
		slog.String("user_id", userID.String()),
		slog.String("subscription_id", sub.ID.String()))

	return &Ack{Action: ActionCancel, Before: sub}, nil
}

// Resume clears a scheduled cancellation. Requires a subscription on its
// grace period.
func (d *Dispatcher) Resume(ctx context.Context, userID uuid.UUID) (*Ack, error) {
	sub, err := d.subscription(ctx, userID, ActionResume)
	if err != nil {
		return nil, err
	}
	if !sub.OnGracePeriod() {
		return nil, preconditionErr(ActionResume, "a subscription on its grace period")
	}

	if err := d.gateway.Resume(ctx, sub.ProcessorID); err != nil {
		return nil, fmt.Errorf("resume subscription: %w", err)
	}

	d.logger.Info("subscription resumed",
		slog.String("user_id", userID.String()),
		slog.String("subscription_id", sub.ID.String()))

	return &Ack{Action: ActionResume, Before: sub}, nil
}

// SwapPlan moves the subscription to the other configured price tier.
// Requires an active subscription.
func (d *Dispatcher) SwapPlan(ctx context.Context, userID uuid.UUID) (*Ack, error) {
	sub, err := d.subscription(ctx, userID, ActionSwapPlan)
	if err != nil {
		return nil, err
	}
	if !sub.Active() {
		return nil, preconditionErr(ActionSwapPlan, "an active subscription")
	}

	target, err := d.catalog.OtherPrice(sub.ProcessorPlan)
	if err != nil {
		return nil, fmt.Errorf("resolve swap target for %q: %w", sub.ProcessorPlan, err)
	}

	if err := d.gateway.SwapPrice(ctx, sub.ProcessorID, target); err != nil {
		return nil, fmt.Errorf("swap price: %w", err)
	}

	d.logger.Info("plan swap requested",
		slog.String("user_id", userID.String()),
		slog.String("subscription_id", sub.ID.String()),
		slog.String("target_price_id", target))

	return &Ack{Action: ActionSwapPlan, Before: sub, TargetPriceID: target}, nil
}

// CancelImmediately terminates the subscription now, with no grace period.
// Requires a subscription that is active or on its grace period.
func (d *Dispatcher) CancelImmediately(ctx context.Context, userID uuid.UUID) (*Ack, error) {
	sub, err := d.subscription(ctx, userID, ActionCancelImmediately)
	if err != nil {
		return nil, err
	}
	if !sub.Active() && !sub.OnGracePeriod() {
		return nil, preconditionErr(ActionCancelImmediately, "an active subscription or one on its grace period")
	}

	if err := d.gateway.CancelNow(ctx, sub.ProcessorID); err != nil {
		return nil, fmt.Errorf("cancel immediately: %w", err)
	}

	d.logger.Info("subscription cancelled immediately",
		slog.String("user_id", userID.String()),
		slog.String("subscription_id", sub.ID.String()))

	return &Ack{Action: ActionCancelImmediately, Before: sub}, nil
}

// subscription resolves the user's current subscription snapshot, mapping a
// missing customer or subscription to a precondition failure for the action.
func (d *Dispatcher) subscription(ctx context.Context, userID uuid.UUID, action Action) (*billing.Subscription, error) {
	customer, err := d.store.CustomerByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, billing.ErrCustomerNotFound) {
			return nil, preconditionErr(action, "a subscription")
		}
		return nil, fmt.Errorf("resolve customer: %w", err)
	}

	sub, err := d.store.SubscriptionByCustomer(ctx, customer.ID)
	if err != nil {
		if errors.Is(err, billing.ErrSubscriptionNotFound) {
			return nil, preconditionErr(action, "a subscription")
		}
		return nil, fmt.Errorf("resolve subscription: %w", err)
	}
	return sub, nil
}
