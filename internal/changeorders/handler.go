package changeorders

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-interiors/meridian-quotes/internal/platform/httpx"
	"github.com/meridian-interiors/meridian-quotes/internal/pricing"
	"github.com/meridian-interiors/meridian-quotes/internal/quotes"
	"github.com/meridian-interiors/meridian-quotes/internal/shared"
)

// Handler manages change order endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers change order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Get("/{id}/items", h.listItems)
	r.Get("/{id}/totals", h.liveTotals)
	r.Put("/{id}/discount", h.setDiscount)
	r.Post("/{id}/send", h.send)
	r.Post("/{id}/approve", h.approve)
	r.Post("/{id}/reject", h.reject)
	r.Delete("/{id}", h.delete)

	r.Post("/{id}/items", h.addItem)
	r.Put("/items/{itemID}", h.updateItem)
	r.Delete("/items/{itemID}", h.deleteItem)

	r.Get("/quotations/{quotationID}", h.listByQuotation)
	r.Get("/quotations/{quotationID}/revised-total", h.revisedTotal)
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrParentNotRevisable):
		httpx.Problem(w, http.StatusConflict, "Not Revisable", err.Error())
	case errors.Is(err, ErrLocked):
		httpx.Problem(w, http.StatusConflict, "Change Order Locked", err.Error())
	case errors.Is(err, quotes.ErrInvalidStatus):
		httpx.Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", shared.ErrValidation, name)
	}
	return id, nil
}

type createRequest struct {
	QuotationID   int64   `json:"quotationId" validate:"required,gt=0"`
	Title         string  `json:"title" validate:"required,max=200"`
	DiscountType  string  `json:"discountType" validate:"omitempty,oneof=percent amount"`
	DiscountValue float64 `json:"discountValue" validate:"gte=0"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed request body", shared.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}

	co, err := h.service.Create(r.Context(), CreateInput{
		QuotationID:   req.QuotationID,
		Title:         req.Title,
		DiscountType:  pricing.DiscountType(req.DiscountType),
		DiscountValue: req.DiscountValue,
		CreatedBy:     shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.logger.Error("create change order", slog.Any("error", err))
		respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, co)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	co, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, co)
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.ListItems(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) liveTotals(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	allocation, subtotals, err := h.service.LiveTotals(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"rooms":      subtotals.Rooms,
		"allocation": allocation,
	})
}

type setDiscountRequest struct {
	DiscountType  string  `json:"discountType" validate:"required,oneof=percent amount"`
	DiscountValue float64 `json:"discountValue" validate:"gte=0"`
}

func (h *Handler) setDiscount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req setDiscountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed request body", shared.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	if err := h.service.SetDiscount(r.Context(), id, pricing.DiscountType(req.DiscountType), req.DiscountValue); err != nil {
		respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Send(r.Context(), id, shared.ActorFromContext(r.Context())); err != nil {
		respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true})
}

type approveRequest struct {
	Note string `json:"note"`
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req approveRequest
	_ = httpx.DecodeJSON(r, &req)

	if err := h.service.Approve(r.Context(), id, shared.ActorFromContext(r.Context()), req.Note); err != nil {
		h.logger.Error("approve change order", slog.Any("error", err), slog.Int64("id", id))
		respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Reject(r.Context(), id, shared.ActorFromContext(r.Context())); err != nil {
		respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id, shared.ActorFromContext(r.Context())); err != nil {
		respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true})
}

type itemRequest struct {
	RoomLabel   string  `json:"roomLabel" validate:"max=100"`
	Partition   string  `json:"partition" validate:"required,oneof=interiors false_ceiling"`
	ChangeType  string  `json:"changeType" validate:"required,oneof=addition credit"`
	Description string  `json:"description" validate:"max=500"`
	CalcMode    string  `json:"calcMode" validate:"required,oneof=SQFT COUNT LSUM"`
	Length      float64 `json:"length" validate:"gte=0"`
	Height      float64 `json:"height" validate:"gte=0"`
	Count       float64 `json:"count" validate:"gte=0"`
	UnitPrice   float64 `json:"unitPrice" validate:"gte=0"`
}

func (r itemRequest) input() ItemInput {
	return ItemInput{
		RoomLabel:   r.RoomLabel,
		Partition:   pricing.Partition(r.Partition),
		ChangeType:  ChangeType(r.ChangeType),
		Description: r.Description,
		CalcMode:    pricing.CalcMode(r.CalcMode),
		Length:      r.Length,
		Height:      r.Height,
		Count:       r.Count,
		UnitPrice:   r.UnitPrice,
	}
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req itemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed request body", shared.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	item, err := h.service.AddItem(r.Context(), id, req.input())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "itemID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req itemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed request body", shared.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	item, err := h.service.UpdateItem(r.Context(), itemID, req.input())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "itemID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteItem(r.Context(), itemID); err != nil {
		respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) listByQuotation(w http.ResponseWriter, r *http.Request) {
	quotationID, err := pathID(r, "quotationID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	orders, err := h.service.ListByQuotation(r.Context(), quotationID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"changeOrders": orders})
}

func (h *Handler) revisedTotal(w http.ResponseWriter, r *http.Request) {
	quotationID, err := pathID(r, "quotationID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	revised, err := h.service.Revised(r.Context(), quotationID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, revised)
}
