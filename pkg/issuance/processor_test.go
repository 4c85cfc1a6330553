package issuance_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/licensekit/pkg/billing"
	"github.com/dmitrymomot/licensekit/pkg/issuance"
	"github.com/dmitrymomot/licensekit/pkg/license"
	"github.com/dmitrymomot/licensekit/pkg/queue"
)

type fixture struct {
	users    issuance.UserDirectory
	billing  *billing.MemoryStore
	licenses *license.MemoryStore
	proc     *issuance.Processor

	user   *issuance.User
	sub    *billing.Subscription
	charge *billing.Charge
}

func newFixture(t *testing.T, opts ...issuance.ProcessorOption) *fixture {
	t.Helper()

	user := &issuance.User{ID: uuid.New(), Email: "owner@example.com", Name: "Owner"}
	customer := &billing.Customer{
		ID:          uuid.New(),
		UserID:      user.ID,
		Processor:   billing.ProcessorStripe,
		ProcessorID: "cus_test",
	}
	sub := &billing.Subscription{
		ID:            uuid.New(),
		CustomerID:    customer.ID,
		Processor:     billing.ProcessorStripe,
		ProcessorID:   "sub_test",
		Status:        billing.StatusActive,
		ProcessorPlan: "price_quarterly",
	}
	charge := &billing.Charge{
		ID:             uuid.New(),
		CustomerID:     customer.ID,
		SubscriptionID: &sub.ID,
		Processor:      billing.ProcessorStripe,
		ProcessorID:    "ch_test",
		Amount:         2900,
		Currency:       "usd",
		CreatedAt:      time.Now().UTC(),
	}

	billingStore := billing.NewMemoryStore()
	billingStore.PutCustomer(customer)
	billingStore.PutSubscription(sub)
	billingStore.PutCharge(charge)

	licenseStore := license.NewMemoryStore()
	catalog, err := license.NewCatalog(license.CatalogConfig{
		QuarterlyPriceID: "price_quarterly",
		AnnualPriceID:    "price_annual",
	})
	require.NoError(t, err)
	generator := license.NewGenerator(licenseStore, catalog)

	opts = append(opts, issuance.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	proc, err := issuance.NewProcessor(
		issuance.NewMemoryDirectory(user), billingStore, licenseStore, generator, opts...)
	require.NoError(t, err)

	return &fixture{
		users:    issuance.NewMemoryDirectory(user),
		billing:  billingStore,
		licenses: licenseStore,
		proc:     proc,
		user:     user,
		sub:      sub,
		charge:   charge,
	}
}

func (f *fixture) job() issuance.IssueLicense {
	return issuance.IssueLicense{
		UserID:         f.user.ID,
		SubscriptionID: f.sub.ID,
		ChargeID:       &f.charge.ID,
		Renewal:        false,
	}
}

func (f *fixture) licenseCount(t *testing.T) int64 {
	t.Helper()
	count, err := f.licenses.CountByUser(context.Background(), f.user.ID)
	require.NoError(t, err)
	return count
}

func TestProcessor_IssuesLicense(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, f.proc.Process(context.Background(), f.job()))

	best, err := f.licenses.BestByUser(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, license.StatusActive, best.Status)
	assert.Equal(t, license.PlanQuarterly, best.Plan)
	require.NotNil(t, best.ChargeID)
	assert.Equal(t, f.charge.ID, *best.ChargeID)
	require.NotNil(t, best.SubscriptionID)
	assert.Equal(t, f.sub.ID, *best.SubscriptionID)
}

func TestProcessor_ResolvesLatestChargeWhenNoneGiven(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	job := f.job()
	job.ChargeID = nil

	require.NoError(t, f.proc.Process(context.Background(), job))

	best, err := f.licenses.BestByUser(context.Background(), f.user.ID)
	require.NoError(t, err)
	require.NotNil(t, best.ChargeID)
	assert.Equal(t, f.charge.ID, *best.ChargeID)
}

func TestProcessor_SilentNoOps(t *testing.T) {
	t.Parallel()

	t.Run("missing user", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		job := f.job()
		job.UserID = uuid.New()

		require.NoError(t, f.proc.Process(context.Background(), job))
		assert.Zero(t, f.licenseCount(t))
	})

	t.Run("missing subscription", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		job := f.job()
		job.SubscriptionID = uuid.New()

		require.NoError(t, f.proc.Process(context.Background(), job))
		assert.Zero(t, f.licenseCount(t))
	})

	t.Run("missing explicit charge", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		job := f.job()
		missing := uuid.New()
		job.ChargeID = &missing

		require.NoError(t, f.proc.Process(context.Background(), job))
		assert.Zero(t, f.licenseCount(t))
	})

	t.Run("no charge visible for subscription", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		orphanSub := &billing.Subscription{
			ID:            uuid.New(),
			CustomerID:    f.sub.CustomerID,
			Processor:     billing.ProcessorStripe,
			ProcessorID:   "sub_orphan",
			Status:        billing.StatusActive,
			ProcessorPlan: "price_quarterly",
		}
		f.billing.PutSubscription(orphanSub)

		job := f.job()
		job.SubscriptionID = orphanSub.ID
		job.ChargeID = nil

		require.NoError(t, f.proc.Process(context.Background(), job))
		assert.Zero(t, f.licenseCount(t))
	})
}

func TestProcessor_Idempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.proc.Process(ctx, f.job()))
	first, err := f.licenses.BestByUser(ctx, f.user.ID)
	require.NoError(t, err)

	// Identical redelivery hits the charge gate and changes nothing.
	require.NoError(t, f.proc.Process(ctx, f.job()))
	assert.Equal(t, int64(1), f.licenseCount(t))

	again, err := f.licenses.BestByUser(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, first.LicenseID, again.LicenseID)
	assert.Equal(t, first.Status, again.Status)
}

func TestProcessor_SecondaryGateBlocksInitialDuplicate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.proc.Process(ctx, f.job()))

	// A second initial event for the same subscription carries a new charge,
	// so the charge gate passes; the subscription gate stops it.
	second := &billing.Charge{
		ID:             uuid.New(),
		CustomerID:     f.charge.CustomerID,
		SubscriptionID: &f.sub.ID,
		Processor:      billing.ProcessorStripe,
		ProcessorID:    "ch_second",
		Amount:         2900,
		Currency:       "usd",
		CreatedAt:      time.Now().UTC(),
	}
	f.billing.PutCharge(second)

	job := f.job()
	job.ChargeID = &second.ID
	require.NoError(t, f.proc.Process(ctx, job))
	assert.Equal(t, int64(1), f.licenseCount(t))
}

func TestProcessor_RenewalBypassesSecondaryGate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.proc.Process(ctx, f.job()))

	renewalCharge := &billing.Charge{
		ID:                   uuid.New(),
		CustomerID:           f.charge.CustomerID,
		SubscriptionID:       &f.sub.ID,
		Processor:            billing.ProcessorStripe,
		ProcessorID:          "ch_renewal",
		Amount:               2900,
		Currency:             "usd",
		InvoiceBillingReason: billing.BillingReasonSubscriptionCycle,
		CreatedAt:            time.Now().UTC(),
	}
	f.billing.PutCharge(renewalCharge)

	job := f.job()
	job.ChargeID = &renewalCharge.ID
	job.Renewal = true
	require.NoError(t, f.proc.Process(ctx, job))

	// Renewal mints a second license and the first one is superseded.
	assert.Equal(t, int64(2), f.licenseCount(t))

	best, err := f.licenses.BestByUser(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, license.StatusActive, best.Status)
	require.NotNil(t, best.ChargeID)
	assert.Equal(t, renewalCharge.ID, *best.ChargeID)
}

func TestProcessor_UnknownPlanIsDroppedNotRetried(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	misconfigured := *f.sub
	misconfigured.ProcessorPlan = "price_unconfigured"
	f.billing.PutSubscription(&misconfigured)

	// nil error keeps the worker from retrying a configuration problem.
	require.NoError(t, f.proc.Process(context.Background(), f.job()))
	assert.Zero(t, f.licenseCount(t))
}

// blindGateStore simulates the window where two concurrent initial events
// both pass the subscription gate before either has inserted: the gate is
// best effort, not store enforced.
type blindGateStore struct {
	license.Store
}

func (s *blindGateStore) ExistsBySubscription(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return false, nil
}

func TestProcessor_SecondaryGateResidualRace(t *testing.T) {
	t.Parallel()

	user := &issuance.User{ID: uuid.New(), Email: "owner@example.com"}
	customer := &billing.Customer{ID: uuid.New(), UserID: user.ID, Processor: billing.ProcessorStripe, ProcessorID: "cus_race"}
	sub := &billing.Subscription{
		ID:            uuid.New(),
		CustomerID:    customer.ID,
		Processor:     billing.ProcessorStripe,
		ProcessorID:   "sub_race",
		Status:        billing.StatusActive,
		ProcessorPlan: "price_quarterly",
	}

	billingStore := billing.NewMemoryStore()
	billingStore.PutCustomer(customer)
	billingStore.PutSubscription(sub)

	chargeA := &billing.Charge{ID: uuid.New(), CustomerID: customer.ID, SubscriptionID: &sub.ID, Processor: billing.ProcessorStripe, ProcessorID: "ch_a", CreatedAt: time.Now().UTC()}
	chargeB := &billing.Charge{ID: uuid.New(), CustomerID: customer.ID, SubscriptionID: &sub.ID, Processor: billing.ProcessorStripe, ProcessorID: "ch_b", CreatedAt: time.Now().UTC()}
	billingStore.PutCharge(chargeA)
	billingStore.PutCharge(chargeB)

	inner := license.NewMemoryStore()
	store := &blindGateStore{Store: inner}
	catalog, err := license.NewCatalog(license.CatalogConfig{
		QuarterlyPriceID: "price_quarterly",
		AnnualPriceID:    "price_annual",
	})
	require.NoError(t, err)

	proc, err := issuance.NewProcessor(
		issuance.NewMemoryDirectory(user), billingStore, store, license.NewGenerator(store, catalog),
		issuance.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	ctx := context.Background()
	jobA := issuance.IssueLicense{UserID: user.ID, SubscriptionID: sub.ID, ChargeID: &chargeA.ID}
	jobB := issuance.IssueLicense{UserID: user.ID, SubscriptionID: sub.ID, ChargeID: &chargeB.ID}
	require.NoError(t, proc.Process(ctx, jobA))
	require.NoError(t, proc.Process(ctx, jobB))

	// Both initial events slipped past the subscription gate: two licenses
	// exist for the same (user, subscription) pair. The charge constraint
	// still holds, and supersession keeps exactly one active.
	count, err := inner.CountByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	all, err := inner.ListByUser(ctx, user.ID)
	require.NoError(t, err)
	var active int
	for _, lic := range all {
		if lic.Status == license.StatusActive {
			active++
		}
	}
	assert.Equal(t, 1, active)
}

type recordingNotifier struct {
	calls []string
	fail  bool
}

func (n *recordingNotifier) LicenseIssued(_ context.Context, _ *issuance.User, lic *license.License) error {
	n.calls = append(n.calls, lic.LicenseID)
	if n.fail {
		return errors.New("smtp down")
	}
	return nil
}

func TestProcessor_NotifierFailureDoesNotFailJob(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{fail: true}
	f := newFixture(t, issuance.WithNotifier(notifier))

	require.NoError(t, f.proc.Process(context.Background(), f.job()))
	assert.Len(t, notifier.calls, 1)
	assert.Equal(t, int64(1), f.licenseCount(t))
}

func TestService_Enqueue(t *testing.T) {
	t.Parallel()

	t.Run("nil enqueuer rejected", func(t *testing.T) {
		t.Parallel()
		_, err := issuance.NewService(nil)
		assert.ErrorIs(t, err, issuance.ErrEnqueuerNil)
	})

	t.Run("payload round-trips through the queue handler", func(t *testing.T) {
		t.Parallel()

		storage := queue.NewMemoryStorage()
		t.Cleanup(func() { _ = storage.Close() })
		enq, err := queue.NewEnqueuer(storage)
		require.NoError(t, err)
		svc, err := issuance.NewService(enq)
		require.NoError(t, err)

		f := newFixture(t)
		ctx := context.Background()
		require.NoError(t, svc.Enqueue(ctx, f.user.ID, f.sub.ID, &f.charge.ID, false))

		task, err := storage.ClaimTask(ctx, uuid.New(), []string{queue.DefaultQueueName}, time.Minute)
		require.NoError(t, err)

		handler := f.proc.Handler()
		assert.Equal(t, task.TaskName, handler.Name())
		require.NoError(t, handler.Handle(ctx, task.Payload))
		assert.Equal(t, int64(1), f.licenseCount(t))
	})
}
