package licensing_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/licensekit/modules/licensing"
	"github.com/dmitrymomot/licensekit/pkg/billing"
	"github.com/dmitrymomot/licensekit/pkg/license"
	"github.com/dmitrymomot/licensekit/pkg/lifecycle"
)

// fakeGateway scripts ParseWebhook and records lifecycle commands.
type fakeGateway struct {
	parsed   *billing.Event
	parseErr error
	commands []string
}

func (g *fakeGateway) CreateCheckoutSession(ctx context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error) {
	g.commands = append(g.commands, "checkout:"+req.PriceID)
	return &billing.CheckoutSession{SessionID: "cs_test", URL: "https://checkout.example.com/cs_test"}, nil
}

func (g *fakeGateway) CancelAtPeriodEnd(ctx context.Context, processorSubID string) error {
	g.commands = append(g.commands, "cancel:"+processorSubID)
	return nil
}

func (g *fakeGateway) Resume(ctx context.Context, processorSubID string) error {
	g.commands = append(g.commands, "resume:"+processorSubID)
	return nil
}

func (g *fakeGateway) SwapPrice(ctx context.Context, processorSubID, priceID string) error {
	g.commands = append(g.commands, "swap:"+processorSubID+":"+priceID)
	return nil
}

func (g *fakeGateway) CancelNow(ctx context.Context, processorSubID string) error {
	g.commands = append(g.commands, "cancel_now:"+processorSubID)
	return nil
}

func (g *fakeGateway) ParseWebhook(ctx context.Context, payload []byte, signature string) (*billing.Event, error) {
	if g.parseErr != nil {
		return nil, g.parseErr
	}
	if signature != "valid" {
		return nil, billing.ErrWebhookVerification
	}
	return g.parsed, nil
}

// fakeSink records dispatched events.
type fakeSink struct {
	events []*billing.Event
	err    error
}

func (s *fakeSink) Dispatch(ctx context.Context, event *billing.Event) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

// headerIdentity resolves the user from the X-User-ID test header.
func headerIdentity(r *http.Request) (uuid.UUID, string, error) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		return uuid.Nil, "", errors.New("no identity")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, "", err
	}
	return id, "user@example.com", nil
}

type world struct {
	userID   uuid.UUID
	gateway  *fakeGateway
	sink     *fakeSink
	store    *billing.MemoryStore
	licenses *license.MemoryStore
	handler  http.Handler
}

func newWorld(t *testing.T) *world {
	t.Helper()

	w := &world{
		userID:   uuid.New(),
		gateway:  &fakeGateway{},
		sink:     &fakeSink{},
		store:    billing.NewMemoryStore(),
		licenses: license.NewMemoryStore(),
	}

	catalog, err := license.NewCatalog(license.CatalogConfig{
		QuarterlyPriceID: "price_q",
		AnnualPriceID:    "price_a",
	})
	require.NoError(t, err)

	dispatcher, err := lifecycle.NewDispatcher(w.gateway, w.store, catalog)
	require.NoError(t, err)
	projector, err := lifecycle.NewProjector(w.store, w.licenses)
	require.NoError(t, err)

	w.handler = licensing.Router(licensing.RouterOptions{
		Gateway:    w.gateway,
		Events:     w.sink,
		Identity:   headerIdentity,
		Lifecycle:  dispatcher,
		Projector:  projector,
		Licenses:   w.licenses,
		SuccessURL: "https://app.example.com/done",
		CancelURL:  "https://app.example.com/cancelled",
	})
	return w
}

// withSubscription syncs an active subscription for the world's user.
func (w *world) withSubscription(t *testing.T) *billing.Subscription {
	t.Helper()

	customer := &billing.Customer{
		ID:          uuid.New(),
		UserID:      w.userID,
		Processor:   billing.ProcessorStripe,
		ProcessorID: "cus_1",
		CreatedAt:   time.Now().UTC(),
	}
	w.store.PutCustomer(customer)

	sub := &billing.Subscription{
		ID:            uuid.New(),
		CustomerID:    customer.ID,
		Processor:     billing.ProcessorStripe,
		ProcessorID:   "sub_1",
		Status:        billing.StatusActive,
		ProcessorPlan: "price_q",
		CreatedAt:     time.Now().UTC(),
	}
	w.store.PutSubscription(sub)
	return sub
}

func (w *world) do(t *testing.T, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if authed {
		req.Header.Set("X-User-ID", w.userID.String())
	}
	rec := httptest.NewRecorder()
	w.handler.ServeHTTP(rec, req)
	return rec
}

func TestWebhookEndpoint(t *testing.T) {
	t.Parallel()

	postWebhook := func(t *testing.T, w *world, signature string) *httptest.ResponseRecorder {
		t.Helper()
		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"id":"evt_1"}`))
		req.Header.Set("Stripe-Signature", signature)
		rec := httptest.NewRecorder()
		w.handler.ServeHTTP(rec, req)
		return rec
	}

	t.Run("dispatches verified event", func(t *testing.T) {
		t.Parallel()
		w := newWorld(t)
		w.gateway.parsed = &billing.Event{ID: "evt_1", Type: billing.EventChargeSucceeded}

		rec := postWebhook(t, w, "valid")

		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, w.sink.events, 1)
		assert.Equal(t, "evt_1", w.sink.events[0].ID)
	})

	t.Run("rejects bad signature", func(t *testing.T) {
		t.Parallel()
		w := newWorld(t)

		rec := postWebhook(t, w, "forged")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, w.sink.events)
	})

	t.Run("handler failure returns 500 for redelivery", func(t *testing.T) {
		t.Parallel()
		w := newWorld(t)
		w.gateway.parsed = &billing.Event{ID: "evt_1", Type: billing.EventChargeSucceeded}
		w.sink.err = errors.New("store down")

		rec := postWebhook(t, w, "valid")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestSubscribeEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("returns checkout redirect", func(t *testing.T) {
		t.Parallel()
		w := newWorld(t)

		rec := w.do(t, http.MethodPost, "/actions/subscribe", `{"price_id":"price_q"}`, true)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			RedirectURL string `json:"redirect_url"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "https://checkout.example.com/cs_test", resp.RedirectURL)
		assert.Contains(t, w.gateway.commands, "checkout:price_q")
	})

	t.Run("requires price_id", func(t *testing.T) {
		t.Parallel()
		w := newWorld(t)

		rec := w.do(t, http.MethodPost, "/actions/subscribe", `{}`, true)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, w.gateway.commands)
	})

	t.Run("requires identity", func(t *testing.T) {
		t.Parallel()
		w := newWorld(t)

		rec := w.do(t, http.MethodPost, "/actions/subscribe", `{"price_id":"price_q"}`, false)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestLifecycleEndpoints(t *testing.T) {
	t.Parallel()

	t.Run("cancel with active subscription", func(t *testing.T) {
		t.Parallel()
		w := newWorld(t)
		w.withSubscription(t)

		rec := w.do(t, http.MethodPost, "/actions/cancel", "", true)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Action string `json:"action"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "cancel", resp.Action)
		assert.Contains(t, w.gateway.commands, "cancel:sub_1")
	})

	t.Run("cancel without subscription conflicts", func(t *testing.T) {
		t.Parallel()
		w := newWorld(t)

		rec := w.do(t, http.MethodPost, "/actions/cancel", "", true)

		require.Equal(t, http.StatusConflict, rec.Code)
		var resp struct {
			Action   string `json:"action"`
			Requires string `json:"requires"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "cancel", resp.Action)
		assert.Equal(t, "a subscription", resp.Requires)
		assert.Empty(t, w.gateway.commands)
	})

	t.Run("resume refused while active", func(t *testing.T) {
		t.Parallel()
		w := newWorld(t)
		w.withSubscription(t)

		rec := w.do(t, http.MethodPost, "/actions/resume", "", true)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Empty(t, w.gateway.commands)
	})

	t.Run("swap plan reports target price", func(t *testing.T) {
		t.Parallel()
		w := newWorld(t)
		w.withSubscription(t)

		rec := w.do(t, http.MethodPost, "/actions/swap-plan", "", true)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Action        string `json:"action"`
			TargetPriceID string `json:"target_price_id"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "swap_plan", resp.Action)
		assert.Equal(t, "price_a", resp.TargetPriceID)
		assert.Contains(t, w.gateway.commands, "swap:sub_1:price_a")
	})

	t.Run("cancel now with active subscription", func(t *testing.T) {
		t.Parallel()
		w := newWorld(t)
		w.withSubscription(t)

		rec := w.do(t, http.MethodPost, "/actions/cancel-now", "", true)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, w.gateway.commands, "cancel_now:sub_1")
	})
}

func TestSnapshotEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("projects billing and license state", func(t *testing.T) {
		t.Parallel()
		w := newWorld(t)
		sub := w.withSubscription(t)
		seedLicense(t, w, sub.ID, "lic_snapshot")

		rec := w.do(t, http.MethodGet, "/snapshot", "", true)

		require.Equal(t, http.StatusOK, rec.Code)
		var snap struct {
			Active       bool  `json:"active"`
			LicenseCount int64 `json:"license_count"`
			BestLicense  *struct {
				LicenseID string
			} `json:"best_license"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
		assert.True(t, snap.Active)
		assert.Equal(t, int64(1), snap.LicenseCount)
	})

	t.Run("empty state is not an error", func(t *testing.T) {
		t.Parallel()
		w := newWorld(t)

		rec := w.do(t, http.MethodGet, "/snapshot", "", true)

		require.Equal(t, http.StatusOK, rec.Code)
		var snap struct {
			Active       bool  `json:"active"`
			LicenseCount int64 `json:"license_count"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
		assert.False(t, snap.Active)
		assert.Zero(t, snap.LicenseCount)
	})

	t.Run("requires identity", func(t *testing.T) {
		t.Parallel()
		w := newWorld(t)

		rec := w.do(t, http.MethodGet, "/snapshot", "", false)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestLicenseQREndpoint(t *testing.T) {
	t.Parallel()

	t.Run("owner gets a png", func(t *testing.T) {
		t.Parallel()
		w := newWorld(t)
		sub := w.withSubscription(t)
		seedLicense(t, w, sub.ID, "lic_qr_owner")

		rec := w.do(t, http.MethodGet, "/licenses/lic_qr_owner/qr", "", true)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		body := rec.Body.Bytes()
		require.True(t, len(body) > 8)
		assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, body[:4])
	})

	t.Run("someone else's license looks missing", func(t *testing.T) {
		t.Parallel()
		w := newWorld(t)
		seedLicenseFor(t, w, uuid.New(), "lic_qr_other")

		rec := w.do(t, http.MethodGet, "/licenses/lic_qr_other/qr", "", true)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unknown license id", func(t *testing.T) {
		t.Parallel()
		w := newWorld(t)

		rec := w.do(t, http.MethodGet, "/licenses/lic_missing/qr", "", true)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("requires identity", func(t *testing.T) {
		t.Parallel()
		w := newWorld(t)

		rec := w.do(t, http.MethodGet, "/licenses/lic_any/qr", "", false)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func seedLicense(t *testing.T, w *world, subscriptionID uuid.UUID, licenseID string) {
	t.Helper()
	seedLicenseFor(t, w, w.userID, licenseID, subscriptionID)
}

func seedLicenseFor(t *testing.T, w *world, userID uuid.UUID, licenseID string, subscriptionID ...uuid.UUID) {
	t.Helper()

	now := time.Now().UTC()
	lic := &license.License{
		ID:        uuid.New(),
		LicenseID: licenseID,
		Key:       "AB12-CD34-EF56-GH78",
		UserID:    userID,
		Plan:      license.PlanQuarterly,
		Status:    license.StatusActive,
		IssuedAt:  now,
		ExpiresAt: now.AddDate(0, 3, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if len(subscriptionID) > 0 {
		subID := subscriptionID[0]
		lic.SubscriptionID = &subID
	}
	require.NoError(t, w.licenses.CreateAndSupersede(context.Background(), lic))
}
