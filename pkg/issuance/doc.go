// Package issuance contains the asynchronous license issuance job: the
// retryable unit of work that turns a billing event into at most one license.
//
// The job is enqueued by event handlers and executed by a queue worker with
// at-least-once delivery, so every step is written to tolerate duplicate and
// concurrent executions. Two idempotency gates guard the generator: a charge
// gate backed by a store uniqueness constraint, and a best-effort
// (user, subscription) gate for initial subscriptions. Missing entities at
// execution time are silent no-ops, never errors.
package issuance
