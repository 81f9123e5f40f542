package quotes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-interiors/meridian-quotes/internal/catalog"
	"github.com/meridian-interiors/meridian-quotes/internal/observability"
	"github.com/meridian-interiors/meridian-quotes/internal/pricing"
	"github.com/meridian-interiors/meridian-quotes/internal/rules"
	"github.com/meridian-interiors/meridian-quotes/internal/shared"
)

// Audit actions emitted by the quotes service.
const (
	AuditItemCreated     = "quotes.item.created"
	AuditItemUpdated     = "quotes.item.updated"
	AuditItemDeleted     = "quotes.item.deleted"
	AuditRateOverridden  = "quotes.rate.overridden"
	AuditRateReverted    = "quotes.rate.reverted"
	AuditDiscountChanged = "quotes.discount.changed"
	AuditStatusChanged   = "quotes.status.changed"
	AuditBrandMiss       = "quotes.brand.unknown"
)

// ErrInvalidStatus indicates a transition that is not allowed from the
// quotation's current status.
var ErrInvalidStatus = errors.New("quotes: invalid status transition")

// RepositoryPort defines data access methods for quotations and their line
// items. The engine requires read-after-write consistency: a recompute issued
// immediately after a mutation must observe that mutation.
type RepositoryPort interface {
	CreateQuotation(ctx context.Context, input CreateQuotationInput) (*Quotation, error)
	GetQuotation(ctx context.Context, id int64) (*Quotation, error)
	ListQuotations(ctx context.Context, req ListQuotationsRequest) ([]Quotation, error)
	UpdateQuotationStatus(ctx context.Context, id int64, status QuotationStatus) error
	SetDiscount(ctx context.Context, id int64, discountType pricing.DiscountType, value float64) error
	SaveTotals(ctx context.Context, id int64, totals Totals) error
	SaveSignoff(ctx context.Context, id int64, signoff Signoff) error

	ListItems(ctx context.Context, quotationID int64) (LineSet, error)
	GetInteriorItem(ctx context.Context, id int64) (*InteriorItem, error)
	CreateInteriorItem(ctx context.Context, item InteriorItem) (*InteriorItem, error)
	UpdateInteriorItem(ctx context.Context, item InteriorItem) error
	DeleteInteriorItem(ctx context.Context, id int64) error
	GetFalseCeilingItem(ctx context.Context, id int64) (*FalseCeilingItem, error)
	CreateFalseCeilingItem(ctx context.Context, item FalseCeilingItem) (*FalseCeilingItem, error)
	UpdateFalseCeilingItem(ctx context.Context, item FalseCeilingItem) error
	DeleteFalseCeilingItem(ctx context.Context, id int64) error
	GetOtherItem(ctx context.Context, id int64) (*OtherItem, error)
	CreateOtherItem(ctx context.Context, item OtherItem) (*OtherItem, error)
	UpdateOtherItem(ctx context.Context, item OtherItem) error
	DeleteOtherItem(ctx context.Context, id int64) error
	DeleteAllItems(ctx context.Context, quotationID int64) error
}

// CatalogLoader loads the currently effective catalog view.
type CatalogLoader interface {
	Load(ctx context.Context) (*catalog.View, error)
}

// RulesProvider serves the currently effective global rules.
type RulesProvider interface {
	Current(ctx context.Context) (rules.GlobalRules, error)
}

// Service handles quotation business logic.
type Service struct {
	repo    RepositoryPort
	catalog CatalogLoader
	rules   RulesProvider
	audit   shared.AuditSink
	logger  *slog.Logger
	metrics *observability.Metrics
	less    pricing.RoomLess
}

// NewService builds Service instance. The room comparator defaults to the
// canonical product ordering when nil.
func NewService(repo RepositoryPort, catalogLoader CatalogLoader, rulesProvider RulesProvider, audit shared.AuditSink, logger *slog.Logger, metrics *observability.Metrics, less pricing.RoomLess) *Service {
	if less == nil {
		less = RoomLess()
	}
	return &Service{
		repo:    repo,
		catalog: catalogLoader,
		rules:   rulesProvider,
		audit:   audit,
		logger:  logger,
		metrics: metrics,
		less:    less,
	}
}

// CreateQuotationInput for creating quotations.
type CreateQuotationInput struct {
	Ref           uuid.UUID
	ProjectName   string
	ClientName    string
	City          string
	Category      string
	BuildType     pricing.BuildType
	DiscountType  pricing.DiscountType
	DiscountValue float64
	CreatedBy     int64
}

// CreateQuotation creates a draft quotation, defaulting the build type from
// global rules when unset.
func (s *Service) CreateQuotation(ctx context.Context, input CreateQuotationInput) (*Quotation, error) {
	if input.ProjectName == "" {
		return nil, fmt.Errorf("%w: project name required", shared.ErrValidation)
	}
	if input.BuildType == "" {
		current, err := s.rules.Current(ctx)
		if err != nil {
			return nil, err
		}
		input.BuildType = current.DefaultBuildType
	}
	if !input.BuildType.Valid() {
		return nil, fmt.Errorf("%w: unknown build type %q", shared.ErrValidation, input.BuildType)
	}
	if input.DiscountType == "" {
		input.DiscountType = pricing.DiscountPercent
	}
	if !input.DiscountType.Valid() {
		return nil, fmt.Errorf("%w: unknown discount type %q", shared.ErrValidation, input.DiscountType)
	}
	if input.DiscountValue < 0 {
		return nil, fmt.Errorf("%w: discount value must not be negative", shared.ErrValidation)
	}
	if input.Ref == uuid.Nil {
		input.Ref = uuid.New()
	}
	return s.repo.CreateQuotation(ctx, input)
}

// GetQuotation returns a quotation by id.
func (s *Service) GetQuotation(ctx context.Context, id int64) (*Quotation, error) {
	return s.repo.GetQuotation(ctx, id)
}

// ListQuotations returns quotations matching the filter, newest first.
func (s *Service) ListQuotations(ctx context.Context, req ListQuotationsRequest) ([]Quotation, error) {
	return s.repo.ListQuotations(ctx, req)
}

// ListItems returns the three line-item collections of a quotation.
func (s *Service) ListItems(ctx context.Context, quotationID int64) (LineSet, error) {
	return s.repo.ListItems(ctx, quotationID)
}

// editableQuotation loads a quotation and verifies direct edits are allowed.
func (s *Service) editableQuotation(ctx context.Context, id int64) (*Quotation, error) {
	q, err := s.repo.GetQuotation(ctx, id)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, shared.ErrNotFound
	}
	if !q.Status.Editable() {
		return nil, shared.ErrQuotationLocked
	}
	return q, nil
}

// InteriorItemInput describes an interior line to create or update. For
// entries whose catalog unit is locked to LSUM or COUNT, UnitPrice is taken
// as a direct monetary entry and rate resolution is bypassed.
type InteriorItemInput struct {
	RoomLabel     string
	ItemKey       string
	Description   string
	CalcMode      pricing.CalcMode
	Length        float64
	Height        float64
	Count         float64
	CoreBrand     string
	FinishBrand   string
	HardwareBrand string
	UnitPrice     float64
	ManualRate    *float64
}

// AddInteriorItem validates, prices, and persists a new interior line, then
// recomputes the quotation totals.
func (s *Service) AddInteriorItem(ctx context.Context, quotationID int64, input InteriorItemInput) (*InteriorItem, error) {
	q, err := s.editableQuotation(ctx, quotationID)
	if err != nil {
		return nil, err
	}
	if err := validateDimensions(input.CalcMode, input.Length, input.Height, input.Count); err != nil {
		return nil, err
	}

	view, err := s.catalog.Load(ctx)
	if err != nil {
		return nil, err
	}

	item := InteriorItem{
		QuotationID:   quotationID,
		RoomLabel:     input.RoomLabel,
		ItemKey:       input.ItemKey,
		Description:   input.Description,
		CalcMode:      input.CalcMode,
		Length:        input.Length,
		Height:        input.Height,
		Count:         input.Count,
		CoreBrand:     input.CoreBrand,
		FinishBrand:   input.FinishBrand,
		HardwareBrand: input.HardwareBrand,
	}
	if err := s.priceInteriorItem(ctx, q, view, &item, input.UnitPrice, input.ManualRate); err != nil {
		return nil, err
	}

	created, err := s.repo.CreateInteriorItem(ctx, item)
	if err != nil {
		return nil, err
	}
	if _, err := s.Recompute(ctx, quotationID); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, AuditItemCreated, "interior_item", created.ID, map[string]any{
		"quotationId": quotationID,
		"after":       map[string]any{"itemKey": created.ItemKey, "room": created.RoomLabel, "totalPrice": created.TotalPrice},
	})
	return created, nil
}

// UpdateInteriorItem re-validates and re-prices an existing interior line.
// A standing rate override survives the update; only RateAuto is refreshed.
func (s *Service) UpdateInteriorItem(ctx context.Context, itemID int64, input InteriorItemInput) (*InteriorItem, error) {
	item, err := s.repo.GetInteriorItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, shared.ErrNotFound
	}
	q, err := s.editableQuotation(ctx, item.QuotationID)
	if err != nil {
		return nil, err
	}
	if err := validateDimensions(input.CalcMode, input.Length, input.Height, input.Count); err != nil {
		return nil, err
	}

	view, err := s.catalog.Load(ctx)
	if err != nil {
		return nil, err
	}

	before := map[string]any{"totalPrice": item.TotalPrice, "unitPrice": item.UnitPrice}
	item.RoomLabel = input.RoomLabel
	item.ItemKey = input.ItemKey
	item.Description = input.Description
	item.CalcMode = input.CalcMode
	item.Length = input.Length
	item.Height = input.Height
	item.Count = input.Count
	item.CoreBrand = input.CoreBrand
	item.FinishBrand = input.FinishBrand
	item.HardwareBrand = input.HardwareBrand
	if err := s.priceInteriorItem(ctx, q, view, item, input.UnitPrice, input.ManualRate); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateInteriorItem(ctx, *item); err != nil {
		return nil, err
	}
	if _, err := s.Recompute(ctx, item.QuotationID); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, AuditItemUpdated, "interior_item", item.ID, map[string]any{
		"quotationId": item.QuotationID,
		"before":      before,
		"after":       map[string]any{"totalPrice": item.TotalPrice, "unitPrice": item.UnitPrice},
	})
	return item, nil
}

// priceInteriorItem fills the rate trio, unit price, and total. The catalog
// unit lock is enforced here: a locked entry pins the calc mode and, for
// LSUM/COUNT locks, switches the line to direct monetary entry.
func (s *Service) priceInteriorItem(ctx context.Context, q *Quotation, view *catalog.View, item *InteriorItem, directPrice float64, manualRate *float64) error {
	if unit, locked := view.LockedUnit(item.ItemKey); locked {
		lockedMode := unit.CalcMode()
		if item.CalcMode == "" {
			item.CalcMode = lockedMode
		}
		if item.CalcMode != lockedMode {
			return fmt.Errorf("%w: item %q unit is locked to %s", shared.ErrValidation, item.ItemKey, unit)
		}
		if lockedMode == pricing.CalcLumpSum || lockedMode == pricing.CalcCount {
			if directPrice < 0 {
				return fmt.Errorf("%w: price must not be negative", shared.ErrValidation)
			}
			item.Rate = pricing.RateFields{}
			item.UnitPrice = directPrice
			item.TotalPrice = pricing.LineTotal(item.UnitPrice, pricing.Quantity(item.CalcMode, item.dimensions()))
			return nil
		}
	}
	if !item.CalcMode.Valid() {
		return fmt.Errorf("%w: unknown calc mode %q", shared.ErrValidation, item.CalcMode)
	}

	s.auditBrandMisses(ctx, view, item)

	entry, ok := view.Entry(item.ItemKey)
	if !ok {
		// Catalog entries evolve independently of quotes; a missing key
		// resolves to zero base rather than blocking the user mid-quote.
		s.logger.Warn("rate catalog miss", slog.String("itemKey", item.ItemKey))
	}
	rateAuto := pricing.ResolveRate(entry.BaseRates(), q.BuildType, pricing.BrandSelection{
		Core:     item.CoreBrand,
		Finish:   item.FinishBrand,
		Hardware: item.HardwareBrand,
	}, view.Adder)

	item.Rate.RateAuto = rateAuto
	if manualRate != nil {
		if *manualRate < 0 {
			return fmt.Errorf("%w: rate must not be negative", shared.ErrValidation)
		}
		item.Rate = item.Rate.WithOverride(*manualRate)
	}
	item.UnitPrice = item.Rate.UnitPrice()
	item.TotalPrice = pricing.LineTotal(item.UnitPrice, pricing.Quantity(item.CalcMode, item.dimensions()))
	return nil
}

func (it *InteriorItem) dimensions() pricing.Dimensions {
	return pricing.Dimensions{Length: it.Length, Height: it.Height, Count: it.Count}
}

// auditBrandMisses logs unknown brand names. Resolution already treated them
// as zero adders; this only leaves a trail for the catalog owners.
func (s *Service) auditBrandMisses(ctx context.Context, view *catalog.View, item *InteriorItem) {
	check := func(kind pricing.AdderKind, brand string) {
		if brand == "" || view.KnownBrand(kind, brand) {
			return
		}
		s.logger.Warn("unknown brand resolved to zero adder",
			slog.String("kind", string(kind)), slog.String("brand", brand))
		s.recordAudit(ctx, AuditBrandMiss, "interior_item", item.ID, map[string]any{
			"kind":  string(kind),
			"brand": brand,
		})
	}
	check(pricing.AdderCore, item.CoreBrand)
	check(pricing.AdderFinish, item.FinishBrand)
	check(pricing.AdderHardware, item.HardwareBrand)
}

// OverrideRate applies a manual unit rate to an interior line. The resolved
// rate stays recorded so the override can be reverted.
func (s *Service) OverrideRate(ctx context.Context, itemID int64, rate float64) (*InteriorItem, error) {
	if rate < 0 {
		return nil, fmt.Errorf("%w: rate must not be negative", shared.ErrValidation)
	}
	item, err := s.repo.GetInteriorItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, shared.ErrNotFound
	}
	if _, err := s.editableQuotation(ctx, item.QuotationID); err != nil {
		return nil, err
	}

	before := map[string]any{"unitPrice": item.UnitPrice, "isRateOverridden": item.Rate.IsRateOverridden}
	item.Rate = item.Rate.WithOverride(rate)
	item.UnitPrice = item.Rate.UnitPrice()
	item.TotalPrice = pricing.LineTotal(item.UnitPrice, pricing.Quantity(item.CalcMode, item.dimensions()))

	if err := s.repo.UpdateInteriorItem(ctx, *item); err != nil {
		return nil, err
	}
	if _, err := s.Recompute(ctx, item.QuotationID); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, AuditRateOverridden, "interior_item", item.ID, map[string]any{
		"before": before,
		"after":  map[string]any{"unitPrice": item.UnitPrice, "rateAuto": item.Rate.RateAuto},
	})
	return item, nil
}

// ClearRateOverride reverts an interior line to its last resolved rate.
func (s *Service) ClearRateOverride(ctx context.Context, itemID int64) (*InteriorItem, error) {
	item, err := s.repo.GetInteriorItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, shared.ErrNotFound
	}
	if _, err := s.editableQuotation(ctx, item.QuotationID); err != nil {
		return nil, err
	}

	before := map[string]any{"unitPrice": item.UnitPrice}
	item.Rate = item.Rate.WithoutOverride()
	item.UnitPrice = item.Rate.UnitPrice()
	item.TotalPrice = pricing.LineTotal(item.UnitPrice, pricing.Quantity(item.CalcMode, item.dimensions()))

	if err := s.repo.UpdateInteriorItem(ctx, *item); err != nil {
		return nil, err
	}
	if _, err := s.Recompute(ctx, item.QuotationID); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, AuditRateReverted, "interior_item", item.ID, map[string]any{
		"before": before,
		"after":  map[string]any{"unitPrice": item.UnitPrice},
	})
	return item, nil
}

// DeleteInteriorItem removes an interior line and recomputes totals.
func (s *Service) DeleteInteriorItem(ctx context.Context, itemID int64) error {
	item, err := s.repo.GetInteriorItem(ctx, itemID)
	if err != nil {
		return err
	}
	if item == nil {
		return shared.ErrNotFound
	}
	if _, err := s.editableQuotation(ctx, item.QuotationID); err != nil {
		return err
	}
	if err := s.repo.DeleteInteriorItem(ctx, itemID); err != nil {
		return err
	}
	if _, err := s.Recompute(ctx, item.QuotationID); err != nil {
		return err
	}
	s.recordAudit(ctx, AuditItemDeleted, "interior_item", itemID, map[string]any{
		"quotationId": item.QuotationID,
		"before":      map[string]any{"totalPrice": item.TotalPrice},
	})
	return nil
}

// FalseCeilingItemInput describes a false-ceiling line. Pricing is a direct
// monetary entry.
type FalseCeilingItemInput struct {
	RoomLabel   string
	Description string
	CalcMode    pricing.CalcMode
	Length      float64
	Height      float64
	Count       float64
	UnitPrice   float64
}

// AddFalseCeilingItem validates and persists a false-ceiling line.
func (s *Service) AddFalseCeilingItem(ctx context.Context, quotationID int64, input FalseCeilingItemInput) (*FalseCeilingItem, error) {
	if _, err := s.editableQuotation(ctx, quotationID); err != nil {
		return nil, err
	}
	if err := validateDimensions(input.CalcMode, input.Length, input.Height, input.Count); err != nil {
		return nil, err
	}
	if input.UnitPrice < 0 {
		return nil, fmt.Errorf("%w: price must not be negative", shared.ErrValidation)
	}

	item := FalseCeilingItem{
		QuotationID: quotationID,
		RoomLabel:   input.RoomLabel,
		Description: input.Description,
		CalcMode:    input.CalcMode,
		Length:      input.Length,
		Height:      input.Height,
		Count:       input.Count,
		UnitPrice:   input.UnitPrice,
	}
	item.TotalPrice = pricing.LineTotal(item.UnitPrice, pricing.Quantity(item.CalcMode, pricing.Dimensions{Length: item.Length, Height: item.Height, Count: item.Count}))

	created, err := s.repo.CreateFalseCeilingItem(ctx, item)
	if err != nil {
		return nil, err
	}
	if _, err := s.Recompute(ctx, quotationID); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, AuditItemCreated, "false_ceiling_item", created.ID, map[string]any{
		"quotationId": quotationID,
		"after":       map[string]any{"room": created.RoomLabel, "totalPrice": created.TotalPrice},
	})
	return created, nil
}

// UpdateFalseCeilingItem re-validates and re-prices a false-ceiling line.
func (s *Service) UpdateFalseCeilingItem(ctx context.Context, itemID int64, input FalseCeilingItemInput) (*FalseCeilingItem, error) {
	item, err := s.repo.GetFalseCeilingItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, shared.ErrNotFound
	}
	if _, err := s.editableQuotation(ctx, item.QuotationID); err != nil {
		return nil, err
	}
	if err := validateDimensions(input.CalcMode, input.Length, input.Height, input.Count); err != nil {
		return nil, err
	}
	if input.UnitPrice < 0 {
		return nil, fmt.Errorf("%w: price must not be negative", shared.ErrValidation)
	}

	before := map[string]any{"totalPrice": item.TotalPrice}
	item.RoomLabel = input.RoomLabel
	item.Description = input.Description
	item.CalcMode = input.CalcMode
	item.Length = input.Length
	item.Height = input.Height
	item.Count = input.Count
	item.UnitPrice = input.UnitPrice
	item.TotalPrice = pricing.LineTotal(item.UnitPrice, pricing.Quantity(item.CalcMode, pricing.Dimensions{Length: item.Length, Height: item.Height, Count: item.Count}))

	if err := s.repo.UpdateFalseCeilingItem(ctx, *item); err != nil {
		return nil, err
	}
	if _, err := s.Recompute(ctx, item.QuotationID); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, AuditItemUpdated, "false_ceiling_item", item.ID, map[string]any{
		"quotationId": item.QuotationID,
		"before":      before,
		"after":       map[string]any{"totalPrice": item.TotalPrice},
	})
	return item, nil
}

// DeleteFalseCeilingItem removes a false-ceiling line and recomputes totals.
func (s *Service) DeleteFalseCeilingItem(ctx context.Context, itemID int64) error {
	item, err := s.repo.GetFalseCeilingItem(ctx, itemID)
	if err != nil {
		return err
	}
	if item == nil {
		return shared.ErrNotFound
	}
	if _, err := s.editableQuotation(ctx, item.QuotationID); err != nil {
		return err
	}
	if err := s.repo.DeleteFalseCeilingItem(ctx, itemID); err != nil {
		return err
	}
	if _, err := s.Recompute(ctx, item.QuotationID); err != nil {
		return err
	}
	return nil
}

// OtherItemInput describes a miscellaneous line (paint, lights, fan hooks).
type OtherItemInput struct {
	Kind        OtherItemKind
	Description string
	CalcMode    pricing.CalcMode
	Count       float64
	UnitPrice   float64
}

// AddOtherItem validates and persists an "other" line. Only LSUM and COUNT
// calc modes apply.
func (s *Service) AddOtherItem(ctx context.Context, quotationID int64, input OtherItemInput) (*OtherItem, error) {
	if _, err := s.editableQuotation(ctx, quotationID); err != nil {
		return nil, err
	}
	if input.CalcMode != pricing.CalcLumpSum && input.CalcMode != pricing.CalcCount {
		return nil, fmt.Errorf("%w: other items are LSUM or COUNT, got %q", shared.ErrValidation, input.CalcMode)
	}
	if input.Count < 0 || input.UnitPrice < 0 {
		return nil, fmt.Errorf("%w: count and price must not be negative", shared.ErrValidation)
	}

	item := OtherItem{
		QuotationID: quotationID,
		Kind:        input.Kind,
		Description: input.Description,
		CalcMode:    input.CalcMode,
		Count:       input.Count,
		UnitPrice:   input.UnitPrice,
	}
	item.TotalPrice = pricing.LineTotal(item.UnitPrice, pricing.Quantity(item.CalcMode, pricing.Dimensions{Count: item.Count}))

	created, err := s.repo.CreateOtherItem(ctx, item)
	if err != nil {
		return nil, err
	}
	if _, err := s.Recompute(ctx, quotationID); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, AuditItemCreated, "other_item", created.ID, map[string]any{
		"quotationId": quotationID,
		"after":       map[string]any{"kind": string(created.Kind), "totalPrice": created.TotalPrice},
	})
	return created, nil
}

// UpdateOtherItem re-validates and re-prices an "other" line.
func (s *Service) UpdateOtherItem(ctx context.Context, itemID int64, input OtherItemInput) (*OtherItem, error) {
	item, err := s.repo.GetOtherItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, shared.ErrNotFound
	}
	if _, err := s.editableQuotation(ctx, item.QuotationID); err != nil {
		return nil, err
	}
	if input.CalcMode != pricing.CalcLumpSum && input.CalcMode != pricing.CalcCount {
		return nil, fmt.Errorf("%w: other items are LSUM or COUNT, got %q", shared.ErrValidation, input.CalcMode)
	}
	if input.Count < 0 || input.UnitPrice < 0 {
		return nil, fmt.Errorf("%w: count and price must not be negative", shared.ErrValidation)
	}

	item.Kind = input.Kind
	item.Description = input.Description
	item.CalcMode = input.CalcMode
	item.Count = input.Count
	item.UnitPrice = input.UnitPrice
	item.TotalPrice = pricing.LineTotal(item.UnitPrice, pricing.Quantity(item.CalcMode, pricing.Dimensions{Count: item.Count}))

	if err := s.repo.UpdateOtherItem(ctx, *item); err != nil {
		return nil, err
	}
	if _, err := s.Recompute(ctx, item.QuotationID); err != nil {
		return nil, err
	}
	return item, nil
}

// DeleteOtherItem removes an "other" line and recomputes totals.
func (s *Service) DeleteOtherItem(ctx context.Context, itemID int64) error {
	item, err := s.repo.GetOtherItem(ctx, itemID)
	if err != nil {
		return err
	}
	if item == nil {
		return shared.ErrNotFound
	}
	if _, err := s.editableQuotation(ctx, item.QuotationID); err != nil {
		return err
	}
	if err := s.repo.DeleteOtherItem(ctx, itemID); err != nil {
		return err
	}
	if _, err := s.Recompute(ctx, item.QuotationID); err != nil {
		return err
	}
	return nil
}

// ClearItems deletes every line item of an editable quotation and recomputes
// the (now zero) totals. Used by template replace mode.
func (s *Service) ClearItems(ctx context.Context, quotationID int64) error {
	if _, err := s.editableQuotation(ctx, quotationID); err != nil {
		return err
	}
	if err := s.repo.DeleteAllItems(ctx, quotationID); err != nil {
		return err
	}
	if _, err := s.Recompute(ctx, quotationID); err != nil {
		return err
	}
	s.recordAudit(ctx, AuditItemDeleted, "quotation", quotationID, map[string]any{
		"scope": "all_items",
	})
	return nil
}

// SetDiscount changes the quotation-level discount and recomputes totals.
func (s *Service) SetDiscount(ctx context.Context, quotationID int64, discountType pricing.DiscountType, value float64) error {
	q, err := s.editableQuotation(ctx, quotationID)
	if err != nil {
		return err
	}
	if !discountType.Valid() {
		return fmt.Errorf("%w: unknown discount type %q", shared.ErrValidation, discountType)
	}
	if value < 0 {
		return fmt.Errorf("%w: discount value must not be negative", shared.ErrValidation)
	}

	before := map[string]any{"discountType": string(q.DiscountType), "discountValue": q.DiscountValue}
	if err := s.repo.SetDiscount(ctx, quotationID, discountType, value); err != nil {
		return err
	}
	if _, err := s.Recompute(ctx, quotationID); err != nil {
		return err
	}
	s.recordAudit(ctx, AuditDiscountChanged, "quotation", quotationID, map[string]any{
		"before": before,
		"after":  map[string]any{"discountType": string(discountType), "discountValue": value},
	})
	return nil
}

// Recompute derives the quotation totals from the full, current line-item
// set and persists them. It is idempotent and safe to re-run after a
// conflicting concurrent write.
func (s *Service) Recompute(ctx context.Context, quotationID int64) (pricing.Allocation, error) {
	q, err := s.repo.GetQuotation(ctx, quotationID)
	if err != nil {
		return pricing.Allocation{}, err
	}
	if q == nil {
		return pricing.Allocation{}, shared.ErrNotFound
	}

	allocation, subtotals, err := s.liveTotals(ctx, q)
	if err != nil {
		return pricing.Allocation{}, err
	}

	totals := Totals{
		InteriorsSubtotal: subtotals.Interiors,
		FCSubtotal:        subtotals.FalseCeiling,
		GrandSubtotal:     subtotals.Grand,
		UpdatedAt:         time.Now(),
	}
	if err := s.repo.SaveTotals(ctx, quotationID, totals); err != nil {
		return pricing.Allocation{}, err
	}
	s.metrics.IncRecompute("quotation")
	return allocation, nil
}

// LiveTotals computes totals from current line items and current global
// rules without persisting anything. Presentation surfaces that want
// historical figures must read the frozen snapshot instead.
func (s *Service) LiveTotals(ctx context.Context, quotationID int64) (pricing.Allocation, pricing.Subtotals, error) {
	q, err := s.repo.GetQuotation(ctx, quotationID)
	if err != nil {
		return pricing.Allocation{}, pricing.Subtotals{}, err
	}
	if q == nil {
		return pricing.Allocation{}, pricing.Subtotals{}, shared.ErrNotFound
	}
	allocation, subtotals, err := s.liveTotals(ctx, q)
	return allocation, subtotals, err
}

func (s *Service) liveTotals(ctx context.Context, q *Quotation) (pricing.Allocation, pricing.Subtotals, error) {
	items, err := s.repo.ListItems(ctx, q.ID)
	if err != nil {
		return pricing.Allocation{}, pricing.Subtotals{}, err
	}
	current, err := s.rules.Current(ctx)
	if err != nil {
		return pricing.Allocation{}, pricing.Subtotals{}, err
	}

	subtotals := pricing.Aggregate(items.Lines(), s.less)
	allocation, err := pricing.Allocate(subtotals.Interiors, subtotals.FalseCeiling, q.DiscountType, q.DiscountValue, current.TaxPercent)
	if err != nil {
		return pricing.Allocation{}, pricing.Subtotals{}, err
	}
	return allocation, subtotals, nil
}

// Send transitions a draft quotation to SENT.
func (s *Service) Send(ctx context.Context, quotationID int64, actorID int64) error {
	return s.transition(ctx, quotationID, actorID, StatusSent, func(st QuotationStatus) bool { return st == StatusDraft })
}

// Accept marks a sent quotation as accepted by the client.
func (s *Service) Accept(ctx context.Context, quotationID int64, actorID int64) error {
	return s.transition(ctx, quotationID, actorID, StatusAccepted, func(st QuotationStatus) bool { return st == StatusSent })
}

// Reject marks a quotation as rejected.
func (s *Service) Reject(ctx context.Context, quotationID int64, actorID int64) error {
	return s.transition(ctx, quotationID, actorID, StatusRejected, func(st QuotationStatus) bool { return st == StatusDraft || st == StatusSent })
}

// Cancel marks a quotation as cancelled.
func (s *Service) Cancel(ctx context.Context, quotationID int64, actorID int64) error {
	return s.transition(ctx, quotationID, actorID, StatusCancelled, func(st QuotationStatus) bool { return st != StatusApproved && st != StatusCancelled })
}

func (s *Service) transition(ctx context.Context, quotationID, actorID int64, to QuotationStatus, allowed func(QuotationStatus) bool) error {
	q, err := s.repo.GetQuotation(ctx, quotationID)
	if err != nil {
		return err
	}
	if q == nil {
		return shared.ErrNotFound
	}
	if !allowed(q.Status) {
		return ErrInvalidStatus
	}
	if err := s.repo.UpdateQuotationStatus(ctx, quotationID, to); err != nil {
		return err
	}
	s.recordAudit(ctx, AuditStatusChanged, "quotation", quotationID, map[string]any{
		"actorId": actorID,
		"before":  map[string]any{"status": string(q.Status)},
		"after":   map[string]any{"status": string(to)},
	})
	return nil
}

func (s *Service) recordAudit(ctx context.Context, action, entity string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   entity,
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func validateDimensions(mode pricing.CalcMode, length, height, count float64) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: unknown calc mode %q", shared.ErrValidation, mode)
	}
	if length < 0 || height < 0 || count < 0 {
		return fmt.Errorf("%w: dimensions must not be negative", shared.ErrValidation)
	}
	return nil
}
