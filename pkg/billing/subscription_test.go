package billing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/licensekit/pkg/billing"
)

func TestSubscription_ActiveAt(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(72 * time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name   string
		status billing.Status
		endsAt *time.Time
		want   bool
	}{
		{"active without scheduled end", billing.StatusActive, nil, true},
		{"trialing without scheduled end", billing.StatusTrialing, nil, true},
		{"active on grace period", billing.StatusActive, &future, true},
		{"active with elapsed end", billing.StatusActive, &past, false},
		{"canceled", billing.StatusCanceled, nil, false},
		{"past_due", billing.StatusPastDue, nil, false},
		{"unpaid", billing.StatusUnpaid, nil, false},
		{"paused", billing.StatusPaused, nil, false},
		{"incomplete", billing.StatusIncomplete, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sub := &billing.Subscription{Status: tt.status, EndsAt: tt.endsAt}
			assert.Equal(t, tt.want, sub.ActiveAt(now))
		})
	}
}

func TestSubscription_OnGracePeriodAt(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-time.Minute)

	t.Run("no scheduled end", func(t *testing.T) {
		t.Parallel()
		sub := &billing.Subscription{Status: billing.StatusActive}
		assert.False(t, sub.OnGracePeriodAt(now))
	})

	t.Run("scheduled end in the future", func(t *testing.T) {
		t.Parallel()
		sub := &billing.Subscription{Status: billing.StatusActive, EndsAt: &future}
		assert.True(t, sub.OnGracePeriodAt(now))
		// Access remains active throughout the grace period.
		assert.True(t, sub.ActiveAt(now))
	})

	t.Run("scheduled end elapsed", func(t *testing.T) {
		t.Parallel()
		sub := &billing.Subscription{Status: billing.StatusActive, EndsAt: &past}
		assert.False(t, sub.OnGracePeriodAt(now))
		assert.False(t, sub.ActiveAt(now))
		assert.True(t, sub.TerminatedAt(now))
	})
}

func TestSubscription_OnTrialAt(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(7 * 24 * time.Hour)
	past := now.Add(-time.Hour)

	assert.False(t, (&billing.Subscription{}).OnTrialAt(now))
	assert.True(t, (&billing.Subscription{TrialEndsAt: &future}).OnTrialAt(now))
	assert.False(t, (&billing.Subscription{TrialEndsAt: &past}).OnTrialAt(now))
}

func TestSubscription_TerminatedAt(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	exactlyNow := now

	t.Run("canceled status terminates regardless of ends_at", func(t *testing.T) {
		t.Parallel()
		sub := &billing.Subscription{Status: billing.StatusCanceled}
		assert.True(t, sub.TerminatedAt(now))
	})

	t.Run("ends_at equal to now terminates", func(t *testing.T) {
		t.Parallel()
		sub := &billing.Subscription{Status: billing.StatusActive, EndsAt: &exactlyNow}
		assert.True(t, sub.TerminatedAt(now))
	})
}

func TestCharge_IsRenewal(t *testing.T) {
	t.Parallel()

	assert.True(t, (&billing.Charge{InvoiceBillingReason: "subscription_cycle"}).IsRenewal())
	assert.False(t, (&billing.Charge{InvoiceBillingReason: "subscription_create"}).IsRenewal())
	assert.False(t, (&billing.Charge{}).IsRenewal())
}
