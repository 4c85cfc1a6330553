package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeConfig holds configuration for the Stripe gateway.
type StripeConfig struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY,required"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET,required"`
}

// StripeGateway implements ProviderGateway on top of the official Stripe SDK.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
}

// NewStripeGateway creates a Stripe-backed provider gateway.
func NewStripeGateway(cfg StripeConfig) (*StripeGateway, error) {
	if cfg.SecretKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.WebhookSecret == "" {
		return nil, ErrMissingWebhookSecret
	}

	api := &client.API{}
	api.Init(cfg.SecretKey, nil)

	return &StripeGateway{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
	}, nil
}

// CreateCheckoutSession starts a hosted subscription checkout.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if req.PriceID == "" {
		return nil, ErrMissingPriceID
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.Context = ctx

	// Reuse the provider customer when one exists so charges land on the same
	// customer record the sync collaborator mirrors.
	if req.ProcessorCustomerID != "" {
		params.Customer = stripe.String(req.ProcessorCustomerID)
	} else if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}

	session, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create stripe checkout session: %w", err)
	}
	if session.URL == "" {
		return nil, ErrNoCheckoutURL
	}

	return &CheckoutSession{
		SessionID: session.ID,
		URL:       session.URL,
		ExpiresAt: time.Unix(session.ExpiresAt, 0).UTC(),
	}, nil
}

// CancelAtPeriodEnd schedules cancellation for the current period end.
func (g *StripeGateway) CancelAtPeriodEnd(ctx context.Context, processorSubID string) error {
	if processorSubID == "" {
		return ErrMissingProcessorSubID
	}

	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	params.Context = ctx

	if _, err := g.api.Subscriptions.Update(processorSubID, params); err != nil {
		return fmt.Errorf("failed to schedule stripe cancellation: %w", err)
	}
	return nil
}

// Resume clears a scheduled cancellation.
func (g *StripeGateway) Resume(ctx context.Context, processorSubID string) error {
	if processorSubID == "" {
		return ErrMissingProcessorSubID
	}

	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(false),
	}
	params.Context = ctx

	if _, err := g.api.Subscriptions.Update(processorSubID, params); err != nil {
		return fmt.Errorf("failed to resume stripe subscription: %w", err)
	}
	return nil
}

// SwapPrice moves the subscription's single item to a different price.
// Stripe prorates by default.
func (g *StripeGateway) SwapPrice(ctx context.Context, processorSubID, priceID string) error {
	if processorSubID == "" {
		return ErrMissingProcessorSubID
	}
	if priceID == "" {
		return ErrMissingPriceID
	}

	getParams := &stripe.SubscriptionParams{}
	getParams.Context = ctx

	sub, err := g.api.Subscriptions.Get(processorSubID, getParams)
	if err != nil {
		return fmt.Errorf("failed to fetch stripe subscription for swap: %w", err)
	}
	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return ErrSubscriptionHasNoItems
	}

	params := &stripe.SubscriptionParams{
		Items: []*stripe.SubscriptionItemsParams{
			{
				ID:    stripe.String(sub.Items.Data[0].ID),
				Price: stripe.String(priceID),
			},
		},
	}
	params.Context = ctx

	if _, err := g.api.Subscriptions.Update(processorSubID, params); err != nil {
		return fmt.Errorf("failed to swap stripe subscription price: %w", err)
	}
	return nil
}

// CancelNow terminates the subscription immediately.
func (g *StripeGateway) CancelNow(ctx context.Context, processorSubID string) error {
	if processorSubID == "" {
		return ErrMissingProcessorSubID
	}

	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx

	if _, err := g.api.Subscriptions.Cancel(processorSubID, params); err != nil {
		return fmt.Errorf("failed to cancel stripe subscription: %w", err)
	}
	return nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes the payload
// into a normalized Event.
func (g *StripeGateway) ParseWebhook(ctx context.Context, payload []byte, signature string) (*Event, error) {
	stripeEvent, err := webhook.ConstructEvent(payload, signature, g.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWebhookVerification, err)
	}

	return decodeStripeEvent(stripeEvent.ID, EventType(stripeEvent.Type), stripeEvent.Data.Raw)
}

// decodeStripeEvent maps a verified Stripe payload onto the normalized Event.
// Split from signature verification so the mapping stays testable with plain
// JSON fixtures.
func decodeStripeEvent(id string, eventType EventType, raw json.RawMessage) (*Event, error) {
	event := &Event{
		ID:   id,
		Type: eventType,
		Raw:  raw,
	}

	switch eventType {
	case EventCheckoutCompleted:
		var session struct {
			ID            string `json:"id"`
			Mode          string `json:"mode"`
			PaymentStatus string `json:"payment_status"`
			Customer      string `json:"customer"`
			Subscription  string `json:"subscription"`
			PaymentIntent string `json:"payment_intent"`
		}
		if err := json.Unmarshal(raw, &session); err != nil {
			return nil, fmt.Errorf("failed to decode checkout session payload: %w", err)
		}
		event.Checkout = &CheckoutSessionEvent{
			SessionID:           session.ID,
			Mode:                session.Mode,
			PaymentStatus:       session.PaymentStatus,
			ProcessorCustomerID: session.Customer,
			ProcessorSubID:      session.Subscription,
			PaymentIntentID:     session.PaymentIntent,
		}

	case EventChargeSucceeded:
		var charge struct {
			ID            string `json:"id"`
			Customer      string `json:"customer"`
			PaymentIntent string `json:"payment_intent"`
			Invoice       string `json:"invoice"`
			Amount        int64  `json:"amount"`
			Currency      string `json:"currency"`
		}
		if err := json.Unmarshal(raw, &charge); err != nil {
			return nil, fmt.Errorf("failed to decode charge payload: %w", err)
		}
		event.Charge = &ChargeEvent{
			ProcessorChargeID:   charge.ID,
			ProcessorCustomerID: charge.Customer,
			PaymentIntentID:     charge.PaymentIntent,
			InvoiceID:           charge.Invoice,
			Amount:              charge.Amount,
			Currency:            charge.Currency,
		}

	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		var sub struct {
			ID                string `json:"id"`
			Customer          string `json:"customer"`
			Status            string `json:"status"`
			CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
			Items             struct {
				Data []struct {
					Price struct {
						ID string `json:"id"`
					} `json:"price"`
				} `json:"data"`
			} `json:"items"`
		}
		if err := json.Unmarshal(raw, &sub); err != nil {
			return nil, fmt.Errorf("failed to decode subscription payload: %w", err)
		}
		subEvent := &SubscriptionEvent{
			ProcessorSubID:      sub.ID,
			ProcessorCustomerID: sub.Customer,
			Status:              sub.Status,
			CancelAtPeriodEnd:   sub.CancelAtPeriodEnd,
		}
		if len(sub.Items.Data) > 0 {
			subEvent.PriceID = sub.Items.Data[0].Price.ID
		}
		event.Subscription = subEvent

	default:
		// Unknown events still get a normalized envelope so the recorder can
		// log them; no typed section means no handler will match.
	}

	return event, nil
}
