// Package billing holds the read-only billing snapshots the license engine
// consumes and the boundary to the payment provider.
//
// Subscription, Customer and Charge records mirror state owned by the
// provider sync collaborator. The core never writes them; it only reads
// already-synced snapshots through SyncStore. All state predicates are pure
// functions over a snapshot so they produce identical answers for cached and
// freshly-fetched data.
//
// ProviderGateway is the synchronous command side of the provider boundary
// (checkout sessions, cancel/resume/swap). Its effects become visible locally
// only when the provider's confirmation webhook is processed, never as a
// direct write from the command path.
package billing
