package licensing

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/licensekit/pkg/billing"
)

// maxWebhookBody caps the request body; provider events are a few KB.
const maxWebhookBody = 1 << 20

type webhookHandler struct {
	gateway billing.ProviderGateway
	events  EventSink
	logger  *slog.Logger
}

// handle verifies, decodes and dispatches one provider event. A failed
// signature check is the client's fault (400); a handler failure is ours
// (500), which makes the provider redeliver.
func (h *webhookHandler) handle(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read request body")
		return
	}

	event, err := h.gateway.ParseWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, billing.ErrWebhookVerification) {
			h.logger.Warn("webhook signature verification failed")
			writeError(w, http.StatusBadRequest, "signature verification failed")
			return
		}
		h.logger.Error("webhook decode failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "malformed event payload")
		return
	}

	if err := h.events.Dispatch(r.Context(), event); err != nil {
		h.logger.Error("event dispatch failed",
			slog.String("event_id", event.ID),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "event processing failed")
		return
	}

	w.WriteHeader(http.StatusOK)
}
