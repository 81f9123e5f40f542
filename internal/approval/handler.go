package approval

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-interiors/meridian-quotes/internal/platform/httpx"
	"github.com/meridian-interiors/meridian-quotes/internal/quotes"
	"github.com/meridian-interiors/meridian-quotes/internal/shared"
)

// Handler manages approval endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers approval routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/quotations/{id}/approve", h.approve)
	r.Get("/quotations/{id}/frozen-totals", h.frozenTotals)
	r.Get("/quotations/{id}/agreement", h.agreement)
}

func quotationID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid quotation id", shared.ErrValidation)
	}
	return id, nil
}

type approveRequest struct {
	Note string `json:"note"`
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, err := quotationID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req approveRequest
	_ = httpx.DecodeJSON(r, &req)

	agreement, err := h.service.Approve(r.Context(), id, shared.ActorFromContext(r.Context()), req.Note)
	if err != nil {
		if errors.Is(err, quotes.ErrInvalidStatus) {
			httpx.Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
			return
		}
		h.logger.Error("approve quotation", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"agreement":      agreement,
		"totalFormatted": FormatINR(agreement.TotalPaise),
	})
}

func (h *Handler) frozenTotals(w http.ResponseWriter, r *http.Request) {
	id, err := quotationID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	snapshot, err := h.service.FrozenTotals(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snapshot)
}

func (h *Handler) agreement(w http.ResponseWriter, r *http.Request) {
	id, err := quotationID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	agreement, err := h.service.Agreement(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"agreement":      agreement,
		"totalFormatted": FormatINR(agreement.TotalPaise),
	})
}
