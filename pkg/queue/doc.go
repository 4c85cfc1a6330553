// Package queue provides the asynchronous, at-least-once task machinery the
// license engine runs its issuance jobs on.
//
// An Enqueuer serializes a typed payload into a Task and persists it; a
// Worker claims pending tasks, dispatches them to registered handlers, and
// drives the retry lifecycle: failed tasks are rescheduled with polynomial
// backoff until the attempt cap, then moved to a dead letter queue for
// manual remediation. Delivery is at-least-once by construction - handlers
// must be idempotent.
//
// Two storage implementations are provided: MemoryStorage for tests and
// local development, and PostgresStorage which claims tasks with
// FOR UPDATE SKIP LOCKED so multiple workers never double-claim.
package queue
