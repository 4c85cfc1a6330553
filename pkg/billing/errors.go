package billing

import "errors"

var (
	ErrCustomerNotFound     = errors.New("billing customer not found")
	ErrSubscriptionNotFound = errors.New("billing subscription not found")
	ErrChargeNotFound       = errors.New("billing charge not found")

	ErrMissingAPIKey          = errors.New("billing provider API key is required")
	ErrMissingWebhookSecret   = errors.New("billing provider webhook secret is required")
	ErrWebhookVerification    = errors.New("webhook signature verification failed")
	ErrNoCheckoutURL          = errors.New("no checkout URL returned from provider")
	ErrMissingPriceID         = errors.New("price ID is required")
	ErrMissingProcessorSubID  = errors.New("provider subscription ID is required")
	ErrSubscriptionHasNoItems = errors.New("provider subscription has no items to swap")
	ErrUnhandledEventType     = errors.New("unhandled provider event type")
)
