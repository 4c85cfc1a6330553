// Package license implements the authoritative license records of the
// system: the entity itself, the persistence contract that enforces the
// uniqueness invariants, the plan catalog mapping provider price IDs to
// license durations, and the Generator that atomically issues a new license
// while retiring the owner's previous ones.
//
// The store-level uniqueness constraints (one license per charge, globally
// unique license IDs) are the actual correctness mechanism; every
// application-level existence check in this module and in pkg/issuance is a
// fast-path optimization on top of them.
package license
