// Package licensing is the HTTP surface of the license engine: the provider
// webhook endpoint, the lifecycle action endpoints, the state snapshot and
// the license key QR image.
package licensing

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/licensekit/pkg/billing"
	"github.com/dmitrymomot/licensekit/pkg/license"
	"github.com/dmitrymomot/licensekit/pkg/lifecycle"
)

// IdentityResolver extracts the acting user from a request. Identity is
// explicit on every operation; the module holds no session state of its own.
type IdentityResolver func(r *http.Request) (userID uuid.UUID, email string, err error)

// EventSink consumes verified provider events.
type EventSink interface {
	Dispatch(ctx context.Context, event *billing.Event) error
}

// RouterOptions wires the module's collaborators. Webhook and lifecycle
// groups are each optional: a worker-only deployment mounts the webhook
// without the user-facing actions and vice versa.
type RouterOptions struct {
	// Gateway verifies webhook signatures and decodes events.
	Gateway billing.ProviderGateway
	// Events receives every verified webhook event.
	Events EventSink

	// Identity resolves the acting user for lifecycle and license routes.
	Identity IdentityResolver
	// Lifecycle dispatches user-triggered subscription commands.
	Lifecycle *lifecycle.Dispatcher
	// Projector serves read-only state snapshots.
	Projector *lifecycle.Projector
	// Licenses serves license lookups for the QR endpoint.
	Licenses license.Store

	// SuccessURL and CancelURL are the checkout redirect targets.
	SuccessURL string
	CancelURL  string

	Logger *slog.Logger
}

// Router assembles the licensing module routes.
//
//	r := chi.NewRouter()
//	r.Mount("/billing", licensing.Router(licensing.RouterOptions{...}))
func Router(opts RouterOptions) chi.Router {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	r := chi.NewRouter()

	if opts.Gateway != nil && opts.Events != nil {
		wh := &webhookHandler{
			gateway: opts.Gateway,
			events:  opts.Events,
			logger:  opts.Logger,
		}
		r.Post("/webhook", wh.handle)
	}

	if opts.Identity != nil && opts.Lifecycle != nil {
		ah := &actionsHandler{
			identity:   opts.Identity,
			dispatcher: opts.Lifecycle,
			successURL: opts.SuccessURL,
			cancelURL:  opts.CancelURL,
			logger:     opts.Logger,
		}
		r.Route("/actions", func(actions chi.Router) {
			actions.Post("/subscribe", ah.subscribe)
			actions.Post("/cancel", ah.cancel)
			actions.Post("/resume", ah.resume)
			actions.Post("/swap-plan", ah.swapPlan)
			actions.Post("/cancel-now", ah.cancelNow)
		})
	}

	if opts.Identity != nil && opts.Projector != nil {
		sh := &snapshotHandler{
			identity:  opts.Identity,
			projector: opts.Projector,
			logger:    opts.Logger,
		}
		r.Get("/snapshot", sh.handle)
	}

	if opts.Identity != nil && opts.Licenses != nil {
		lh := &licenseHandler{
			identity: opts.Identity,
			licenses: opts.Licenses,
			logger:   opts.Logger,
		}
		r.Get("/licenses/{licenseID}/qr", lh.keyQR)
	}

	return r
}
