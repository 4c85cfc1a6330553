package licensing

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/licensekit/pkg/license"
	"github.com/dmitrymomot/licensekit/pkg/qrcode"
)

type licenseHandler struct {
	identity IdentityResolver
	licenses license.Store
	logger   *slog.Logger
}

// keyQR renders the license key as a PNG QR image. A license owned by a
// different user is reported as missing, not forbidden, so the endpoint does
// not confirm which public IDs exist.
func (h *licenseHandler) keyQR(w http.ResponseWriter, r *http.Request) {
	userID, _, err := h.identity(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	lic, err := h.licenses.ByLicenseID(r.Context(), chi.URLParam(r, "licenseID"))
	if err != nil {
		if errors.Is(err, license.ErrNotFound) {
			writeError(w, http.StatusNotFound, "license not found")
			return
		}
		h.logger.Error("license lookup failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "license lookup failed")
		return
	}
	if lic.UserID != userID {
		writeError(w, http.StatusNotFound, "license not found")
		return
	}

	size := 0
	if raw := r.URL.Query().Get("size"); raw != "" {
		size, _ = strconv.Atoi(raw)
	}

	png, err := qrcode.Generate(lic.Key, size)
	if err != nil {
		h.logger.Error("qr generation failed",
			slog.String("license_id", lic.LicenseID),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "qr generation failed")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
