package quotes

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
	"github.com/meridian-interiors/meridian-quotes/internal/shared"
)

// Handler manages quotation endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers quotation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.createQuotation)
	r.Get("/", h.listQuotations)
	r.Get("/{id}", h.getQuotation)
	r.Get("/{id}/items", h.listItems)
	r.Get("/{id}/totals", h.liveTotals)
	r.Put("/{id}/discount", h.setDiscount)

	r.Post("/{id}/send", h.send)
	r.Post("/{id}/accept", h.accept)
	r.Post("/{id}/reject", h.reject)
	r.Post("/{id}/cancel", h.cancel)
	r.Post("/{id}/signoff/client", h.clientSignoff)
	r.Post("/{id}/signoff/company", h.companySignoff)

	r.Post("/{id}/items/interior", h.addInteriorItem)
	r.Put("/items/interior/{itemID}", h.updateInteriorItem)
	r.Delete("/items/interior/{itemID}", h.deleteInteriorItem)
	r.Post("/items/interior/{itemID}/rate-override", h.overrideRate)
	r.Delete("/items/interior/{itemID}/rate-override", h.clearRateOverride)

	r.Post("/{id}/items/false-ceiling", h.addFalseCeilingItem)
	r.Put("/items/false-ceiling/{itemID}", h.updateFalseCeilingItem)
	r.Delete("/items/false-ceiling/{itemID}", h.deleteFalseCeilingItem)

	r.Post("/{id}/items/other", h.addOtherItem)
	r.Put("/items/other/{itemID}", h.updateOtherItem)
	r.Delete("/items/other/{itemID}", h.deleteOtherItem)
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", shared.ErrValidation, name)
	}
	return id, nil
}

func (h *Handler) decodeValid(r *http.Request, target any) error {
	if err := httpx.DecodeJSON(r, target); err != nil {
		return fmt.Errorf("%w: malformed request body", shared.ErrValidation)
	}
	if err := h.validate.Struct(target); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	return nil
}

type createQuotationRequest struct {
	ProjectName   string  `json:"projectName" validate:"required,max=200"`
	ClientName    string  `json:"clientName" validate:"max=200"`
	City          string  `json:"city" validate:"max=100"`
	Category      string  `json:"category" validate:"max=100"`
	BuildType     string  `json:"buildType" validate:"omitempty,oneof=handmade factory"`
	DiscountType  string  `json:"discountType" validate:"omitempty,oneof=percent amount"`
	DiscountValue float64 `json:"discountValue" validate:"gte=0"`
}

func (h *Handler) createQuotation(w http.ResponseWriter, r *http.Request) {
	var req createQuotationRequest
	if err := h.decodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	q, err := h.service.CreateQuotation(r.Context(), CreateQuotationInput{
		ProjectName:   req.ProjectName,
		ClientName:    req.ClientName,
		City:          req.City,
		Category:      req.Category,
		BuildType:     pricing.BuildType(req.BuildType),
		DiscountType:  pricing.DiscountType(req.DiscountType),
		DiscountValue: req.DiscountValue,
		CreatedBy:     shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.logger.Error("create quotation", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, q)
}

func (h *Handler) listQuotations(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("perPage"))
	pagination := shared.NewPagination(page, perPage, 0)

	list, err := h.service.ListQuotations(r.Context(), ListQuotationsRequest{
		Status: QuotationStatus(r.URL.Query().Get("status")),
		City:   r.URL.Query().Get("city"),
		Limit:  pagination.PerPage,
		Offset: (pagination.Page - 1) * pagination.PerPage,
	})
	if err != nil {
		h.logger.Error("list quotations", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"quotations": list,
		"page":       pagination.Page,
		"perPage":    pagination.PerPage,
	})
}

func (h *Handler) getQuotation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.GetQuotation(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.ListItems(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"interiors":     items.Interiors,
		"falseCeilings": items.FalseCeilings,
		"others":        items.Others,
	})
}

func (h *Handler) liveTotals(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	allocation, subtotals, err := h.service.LiveTotals(r.Context(), id)
	if err != nil {
		h.logger.Error("live totals", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
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
	if err := h.decodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.SetDiscount(r.Context(), id, pricing.DiscountType(req.DiscountType), req.DiscountValue); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) transitionHandler(fn func(r *http.Request, id int64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		if err := fn(r, id); err != nil {
			if errors.Is(err, ErrInvalidStatus) {
				httpx.Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
				return
			}
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	h.transitionHandler(func(r *http.Request, id int64) error {
		return h.service.Send(r.Context(), id, shared.ActorFromContext(r.Context()))
	})(w, r)
}

func (h *Handler) accept(w http.ResponseWriter, r *http.Request) {
	h.transitionHandler(func(r *http.Request, id int64) error {
		return h.service.Accept(r.Context(), id, shared.ActorFromContext(r.Context()))
	})(w, r)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	h.transitionHandler(func(r *http.Request, id int64) error {
		return h.service.Reject(r.Context(), id, shared.ActorFromContext(r.Context()))
	})(w, r)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.transitionHandler(func(r *http.Request, id int64) error {
		return h.service.Cancel(r.Context(), id, shared.ActorFromContext(r.Context()))
	})(w, r)
}

type clientSignoffRequest struct {
	Token string `json:"token" validate:"required,min=8"`
}

func (h *Handler) clientSignoff(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req clientSignoffRequest
	if err := h.decodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.RecordClientSignoff(r.Context(), id, req.Token); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) companySignoff(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.RecordCompanySignoff(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true})
}

type interiorItemRequest struct {
	RoomLabel     string   `json:"roomLabel" validate:"max=100"`
	ItemKey       string   `json:"itemKey" validate:"required,max=100"`
	Description   string   `json:"description" validate:"max=500"`
	CalcMode      string   `json:"calcMode" validate:"omitempty,oneof=SQFT COUNT LSUM"`
	Length        float64  `json:"length" validate:"gte=0"`
	Height        float64  `json:"height" validate:"gte=0"`
	Count         float64  `json:"count" validate:"gte=0"`
	CoreBrand     string   `json:"coreBrand" validate:"max=100"`
	FinishBrand   string   `json:"finishBrand" validate:"max=100"`
	HardwareBrand string   `json:"hardwareBrand" validate:"max=100"`
	UnitPrice     float64  `json:"unitPrice" validate:"gte=0"`
	ManualRate    *float64 `json:"manualRate" validate:"omitempty,gte=0"`
}

func (r interiorItemRequest) input() InteriorItemInput {
	return InteriorItemInput{
		RoomLabel:     r.RoomLabel,
		ItemKey:       r.ItemKey,
		Description:   r.Description,
		CalcMode:      pricing.CalcMode(r.CalcMode),
		Length:        r.Length,
		Height:        r.Height,
		Count:         r.Count,
		CoreBrand:     r.CoreBrand,
		FinishBrand:   r.FinishBrand,
		HardwareBrand: r.HardwareBrand,
		UnitPrice:     r.UnitPrice,
		ManualRate:    r.ManualRate,
	}
}

func (h *Handler) addInteriorItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req interiorItemRequest
	if err := h.decodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.AddInteriorItem(r.Context(), id, req.input())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) updateInteriorItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "itemID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req interiorItemRequest
	if err := h.decodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.UpdateInteriorItem(r.Context(), itemID, req.input())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) deleteInteriorItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "itemID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteInteriorItem(r.Context(), itemID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true})
}

type rateOverrideRequest struct {
	Rate float64 `json:"rate" validate:"gte=0"`
}

func (h *Handler) overrideRate(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "itemID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req rateOverrideRequest
	if err := h.decodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.OverrideRate(r.Context(), itemID, req.Rate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) clearRateOverride(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "itemID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.ClearRateOverride(r.Context(), itemID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

type falseCeilingItemRequest struct {
	RoomLabel   string  `json:"roomLabel" validate:"max=100"`
	Description string  `json:"description" validate:"max=500"`
	CalcMode    string  `json:"calcMode" validate:"required,oneof=SQFT COUNT LSUM"`
	Length      float64 `json:"length" validate:"gte=0"`
	Height      float64 `json:"height" validate:"gte=0"`
	Count       float64 `json:"count" validate:"gte=0"`
	UnitPrice   float64 `json:"unitPrice" validate:"gte=0"`
}

func (r falseCeilingItemRequest) input() FalseCeilingItemInput {
	return FalseCeilingItemInput{
		RoomLabel:   r.RoomLabel,
		Description: r.Description,
		CalcMode:    pricing.CalcMode(r.CalcMode),
		Length:      r.Length,
		Height:      r.Height,
		Count:       r.Count,
		UnitPrice:   r.UnitPrice,
	}
}

func (h *Handler) addFalseCeilingItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req falseCeilingItemRequest
	if err := h.decodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.AddFalseCeilingItem(r.Context(), id, req.input())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) updateFalseCeilingItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "itemID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req falseCeilingItemRequest
	if err := h.decodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.UpdateFalseCeilingItem(r.Context(), itemID, req.input())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) deleteFalseCeilingItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "itemID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteFalseCeilingItem(r.Context(), itemID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true})
}

type otherItemRequest struct {
	Kind        string  `json:"kind" validate:"required,oneof=wall_painting fc_painting lights fan_hooks custom"`
	Description string  `json:"description" validate:"max=500"`
	CalcMode    string  `json:"calcMode" validate:"required,oneof=COUNT LSUM"`
	Count       float64 `json:"count" validate:"gte=0"`
	UnitPrice   float64 `json:"unitPrice" validate:"gte=0"`
}

func (r otherItemRequest) input() OtherItemInput {
	return OtherItemInput{
		Kind:        OtherItemKind(r.Kind),
		Description: r.Description,
		CalcMode:    pricing.CalcMode(r.CalcMode),
		Count:       r.Count,
		UnitPrice:   r.UnitPrice,
	}
}

func (h *Handler) addOtherItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req otherItemRequest
	if err := h.decodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.AddOtherItem(r.Context(), id, req.input())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) updateOtherItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "itemID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req otherItemRequest
	if err := h.decodeValid(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.UpdateOtherItem(r.Context(), itemID, req.input())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) deleteOtherItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "itemID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteOtherItem(r.Context(), itemID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true})
}
