// Package lifecycle exposes the synchronous subscription commands a user can
// trigger: subscribe, cancel at period end, resume, swap plan and cancel
// immediately.
//
// Every command checks its precondition against the current local
// subscription snapshot, then issues the matching provider command through
// billing.ProviderGateway. The dispatcher never writes durable local state;
// the local effect of each command arrives later as a provider webhook event
// and is applied by the event handlers. Violated preconditions surface as a
// structured PreconditionError naming the action and the missing state.
package lifecycle
