package licensing

import (
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/licensekit/pkg/lifecycle"
)

type snapshotHandler struct {
	identity  IdentityResolver
	projector *lifecycle.Projector
	logger    *slog.Logger
}

func (h *snapshotHandler) handle(w http.ResponseWriter, r *http.Request) {
	userID, _, err := h.identity(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	snap, err := h.projector.Snapshot(r.Context(), userID)
	if err != nil {
		h.logger.Error("snapshot projection failed",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "snapshot unavailable")
		return
	}

	writeJSON(w, http.StatusOK, snap)
}
