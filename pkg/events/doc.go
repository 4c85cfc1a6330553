// Package events translates verified billing provider events into license
// engine actions.
//
// Three narrow handlers cover the event types the engine cares about:
// checkout.session.completed enqueues an initial issuance, charge.succeeded
// enqueues a renewal issuance when the charge belongs to a billing cycle,
// and customer.subscription.deleted cancels the subscription's active
// licenses directly. A Dispatcher routes events to handlers and records
// every delivery for audit. Handlers read only pre-synced local snapshots
// and never call the provider API.
package events
