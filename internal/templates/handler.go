package templates

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-interiors/meridian-quotes/internal/platform/httpx"
	"github.com/meridian-interiors/meridian-quotes/internal/shared"
)

// Handler manages template endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers template routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/categories", h.listCategories)
	r.Get("/{category}", h.getTemplate)
	r.Post("/quotations/{id}/preview", h.preview)
	r.Post("/quotations/{id}/apply", h.apply)
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.repo.ListCategories(r.Context())
	if err != nil {
		h.logger.Error("list template categories", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func (h *Handler) getTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, err := h.service.Load(r.Context(), chi.URLParam(r, "category"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tmpl)
}

type previewRequest struct {
	Category string `json:"category" validate:"required,max=50"`
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, fmt.Errorf("%w: invalid quotation id", shared.ErrValidation))
		return
	}
	var req previewRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed request body", shared.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}

	tmpl, machine, err := h.service.Preview(r.Context(), id, req.Category)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"template": tmpl,
		"state":    machine.State,
		"needMode": machine.HasExistingItems,
	})
}

type applyRequest struct {
	Category         string   `json:"category" validate:"required,max=50"`
	Mode             string   `json:"mode" validate:"omitempty,oneof=merge replace"`
	SelectedOptional []string `json:"selectedOptional" validate:"max=30,dive,max=100"`
	Confirmed        bool     `json:"confirmed"`
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, fmt.Errorf("%w: invalid quotation id", shared.ErrValidation))
		return
	}
	var req applyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed request body", shared.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}

	result, err := h.service.Apply(r.Context(), ApplyInput{
		QuotationID:      id,
		Category:         req.Category,
		Mode:             ApplyMode(req.Mode),
		SelectedOptional: req.SelectedOptional,
		Confirmed:        req.Confirmed,
	})
	if err != nil {
		h.logger.Error("apply template", slog.Any("error", err), slog.Int64("quotationId", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}
