package billing

import (
	"time"

	"github.com/google/uuid"
)

// Subscription is a locally-synced snapshot of a provider subscription.
// The sync collaborator is the only writer; the license engine treats it as
// immutable input.
type Subscription struct {
	ID                 uuid.UUID
	CustomerID         uuid.UUID
	Processor          string
	ProcessorID        string // provider's subscription ID (sub_xxx)
	Status             Status
	ProcessorPlan      string // provider's price ID the subscription is on
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	EndsAt             *time.Time // set when cancellation is scheduled or done
	TrialEndsAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ActiveAt reports whether the subscription grants access at the given time.
// A subscription scheduled to stop (EndsAt set) remains active until EndsAt
// elapses; that interval is the grace period.
func (s *Subscription) ActiveAt(now time.Time) bool {
	if s.Status != StatusActive && s.Status != StatusTrialing {
		return false
	}
	return s.EndsAt == nil || s.EndsAt.After(now)
}

// Active reports whether the subscription grants access right now.
func (s *Subscription) Active() bool {
	return s.ActiveAt(time.Now().UTC())
}

// OnGracePeriodAt reports whether cancellation is scheduled but has not taken
// effect yet at the given time.
func (s *Subscription) OnGracePeriodAt(now time.Time) bool {
	return s.EndsAt != nil && s.EndsAt.After(now)
}

// OnGracePeriod reports whether the subscription is between a scheduled
// cancellation and the actual period end.
func (s *Subscription) OnGracePeriod() bool {
	return s.OnGracePeriodAt(time.Now().UTC())
}

// OnTrialAt reports whether the trial window covers the given time.
func (s *Subscription) OnTrialAt(now time.Time) bool {
	return s.TrialEndsAt != nil && s.TrialEndsAt.After(now)
}

// OnTrial reports whether the subscription is currently in its trial window.
func (s *Subscription) OnTrial() bool {
	return s.OnTrialAt(time.Now().UTC())
}

// TerminatedAt reports whether the subscription no longer grants access at
// the given time: either the provider marked it canceled or the scheduled
// stop has elapsed.
func (s *Subscription) TerminatedAt(now time.Time) bool {
	if s.Status == StatusCanceled {
		return true
	}
	return s.EndsAt != nil && !s.EndsAt.After(now)
}

// Terminated reports whether the subscription is terminated right now.
func (s *Subscription) Terminated() bool {
	return s.TerminatedAt(time.Now().UTC())
}
