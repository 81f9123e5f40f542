package report

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// Handler manages report endpoints.
type Handler struct {
	client   *Client
	renderer *Renderer
	logger   *slog.Logger
}

// NewHandler creates a report handler.
func NewHandler(client *Client, renderer *Renderer, logger *slog.Logger) *Handler {
	return &Handler{client: client, renderer: renderer, logger: logger}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ping", h.ping)
	r.Get("/agreements/{agreementID}/pdf", h.agreementPDF)
}

func (h *Handler) ping(w http.ResponseWriter, r *http.Request) {
	if err := h.client.Ping(r.Context()); err != nil {
		h.logger.Warn("gotenberg ping failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// agreementPDF renders the agreement on demand, independent of the stored
// copy the worker writes.
func (h *Handler) agreementPDF(w http.ResponseWriter, r *http.Request) {
	agreementID, err := strconv.ParseInt(chi.URLParam(r, "agreementID"), 10, 64)
	if err != nil || agreementID <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	pdf, err := h.renderer.AgreementPDF(r.Context(), agreementID)
	if err != nil {
		h.logger.Error("render agreement pdf", slog.Any("error", err), slog.Int64("agreementId", agreementID))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "inline; filename=agreement.pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
