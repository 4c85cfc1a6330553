package licensing

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/dmitrymomot/licensekit/pkg/lifecycle"
)

type actionsHandler struct {
	identity   IdentityResolver
	dispatcher *lifecycle.Dispatcher
	successURL string
	cancelURL  string
	logger     *slog.Logger
}

type subscribeRequest struct {
	PriceID string `json:"price_id"`
}

type subscribeResponse struct {
	RedirectURL string `json:"redirect_url"`
}

type ackResponse struct {
	Action        string `json:"action"`
	TargetPriceID string `json:"target_price_id,omitempty"`
}

func (h *actionsHandler) subscribe(w http.ResponseWriter, r *http.Request) {
	userID, email, ok := h.resolve(w, r)
	if !ok {
		return
	}

	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PriceID == "" {
		writeError(w, http.StatusBadRequest, "price_id is required")
		return
	}

	ack, err := h.dispatcher.Subscribe(r.Context(), lifecycle.SubscribeRequest{
		UserID:     userID,
		Email:      email,
		PriceID:    req.PriceID,
		SuccessURL: h.successURL,
		CancelURL:  h.cancelURL,
	})
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, subscribeResponse{RedirectURL: ack.RedirectURL})
}

func (h *actionsHandler) cancel(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.dispatcher.CancelAtPeriodEnd)
}

func (h *actionsHandler) resume(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.dispatcher.Resume)
}

func (h *actionsHandler) swapPlan(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.dispatcher.SwapPlan)
}

func (h *actionsHandler) cancelNow(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.dispatcher.CancelImmediately)
}

// command runs one identity-scoped lifecycle command and writes the common
// acknowledgment shape. Subscribe has its own path because it carries a
// request body and a redirect.
func (h *actionsHandler) command(w http.ResponseWriter, r *http.Request, run func(context.Context, uuid.UUID) (*lifecycle.Ack, error)) {
	userID, _, ok := h.resolve(w, r)
	if !ok {
		return
	}

	ack, err := run(r.Context(), userID)
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ackResponse{
		Action:        string(ack.Action),
		TargetPriceID: ack.TargetPriceID,
	})
}

func (h *actionsHandler) resolve(w http.ResponseWriter, r *http.Request) (uuid.UUID, string, bool) {
	userID, email, err := h.identity(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return uuid.Nil, "", false
	}
	return userID, email, true
}

// fail maps a dispatcher error to a response: precondition failures are the
// caller's state problem (409 with the action and requirement named), anything
// else is a provider or store failure (502).
func (h *actionsHandler) fail(w http.ResponseWriter, err error) {
	var pre *lifecycle.PreconditionError
	if errors.As(err, &pre) {
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:    pre.Error(),
			Action:   string(pre.Action),
			Requires: pre.Requires,
		})
		return
	}

	h.logger.Error("lifecycle command failed", slog.String("error", err.Error()))
	writeError(w, http.StatusBadGateway, "payment provider request failed")
}
