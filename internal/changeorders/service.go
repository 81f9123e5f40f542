package changeorders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-interiors/meridian-quotes/internal/approval"
	"github.com/meridian-interiors/meridian-quotes/internal/observability"
	"github.com/meridian-interiors/meridian-quotes/internal/pricing"
	"github.com/meridian-interiors/meridian-quotes/internal/quotes"
	"github.com/meridian-interiors/meridian-quotes/internal/rules"
	"github.com/meridian-interiors/meridian-quotes/internal/shared"
)

// Audit actions emitted by the change order service.
const (
	AuditCreated      = "change_orders.created"
	AuditItemChanged  = "change_orders.item.changed"
	AuditApproved     = "change_orders.approved"
	AuditDeleted      = "change_orders.deleted"
	AuditStatusMoved  = "change_orders.status.changed"
	AuditDiscountedAt = "change_orders.discount.changed"
)

// ErrParentNotRevisable rejects change orders against quotations that have
// not reached an approvable state.
var ErrParentNotRevisable = errors.New("changeorders: quotation is not revisable")

// ErrLocked rejects edits to approved or rejected change orders.
var ErrLocked = errors.New("changeorders: change order is no longer editable")

// RepositoryPort defines data access for change orders.
type RepositoryPort interface {
	Create(ctx context.Context, co ChangeOrder) (*ChangeOrder, error)
	Get(ctx context.Context, id int64) (*ChangeOrder, error)
	ListByQuotation(ctx context.Context, quotationID int64) ([]ChangeOrder, error)
	UpdateStatus(ctx context.Context, id int64, status ChangeOrderStatus, actorID int64) error
	SetDiscount(ctx context.Context, id int64, discountType string, value float64) error
	SaveTotals(ctx context.Context, id int64, totals Totals) error
	Delete(ctx context.Context, id int64) error
	SumApprovedGrandTotals(ctx context.Context, quotationID int64) (float64, error)

	GetItem(ctx context.Context, id int64) (*Item, error)
	CreateItem(ctx context.Context, item Item) (*Item, error)
	UpdateItem(ctx context.Context, item Item) error
	DeleteItem(ctx context.Context, id int64) error
	ListItems(ctx context.Context, changeOrderID int64) ([]Item, error)
}

// QuotationGateway reads the parent quotation.
type QuotationGateway interface {
	GetQuotation(ctx context.Context, id int64) (*quotes.Quotation, error)
}

// FrozenTotalsProvider reads the approval snapshot of the parent quotation.
// The revised total folds onto the frozen grand total, never a live one.
type FrozenTotalsProvider interface {
	FrozenTotals(ctx context.Context, quotationID int64) (*approval.Snapshot, error)
}

// RulesProvider serves current global rules, used only as a tax fallback for
// parents approved before snapshots carried a tax percent.
type RulesProvider interface {
	Current(ctx context.Context) (rules.GlobalRules, error)
}

// ApprovalSink records approval history entries.
type ApprovalSink interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
}

// Service handles change order business logic.
type Service struct {
	repo      RepositoryPort
	quotes    QuotationGateway
	frozen    FrozenTotalsProvider
	rules     RulesProvider
	approvals ApprovalSink
	audit     shared.AuditSink
	logger    *slog.Logger
	metrics   *observability.Metrics
	less      pricing.RoomLess
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, gateway QuotationGateway, frozen FrozenTotalsProvider, rulesProvider RulesProvider, approvals ApprovalSink, audit shared.AuditSink, logger *slog.Logger, metrics *observability.Metrics, less pricing.RoomLess) *Service {
	if less == nil {
		less = quotes.RoomLess()
	}
	return &Service{
		repo:      repo,
		quotes:    gateway,
		frozen:    frozen,
		rules:     rulesProvider,
		approvals: approvals,
		audit:     audit,
		logger:    logger,
		metrics:   metrics,
		less:      less,
	}
}

// CreateInput for creating change orders.
type CreateInput struct {
	QuotationID   int64
	Title         string
	DiscountType  pricing.DiscountType
	DiscountValue float64
	CreatedBy     int64
}

// Create opens a draft change order against a revisable quotation.
func (s *Service) Create(ctx context.Context, input CreateInput) (*ChangeOrder, error) {
	if input.Title == "" {
		return nil, fmt.Errorf("%w: title required", shared.ErrValidation)
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

	parent, err := s.quotes.GetQuotation(ctx, input.QuotationID)
	if err != nil {
		return nil, err
	}
	if !parent.Status.Revisable() {
		return nil, ErrParentNotRevisable
	}

	created, err := s.repo.Create(ctx, ChangeOrder{
		Ref:           uuid.New(),
		QuotationID:   input.QuotationID,
		Title:         input.Title,
		DiscountType:  input.DiscountType,
		DiscountValue: input.DiscountValue,
		CreatedBy:     input.CreatedBy,
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, AuditCreated, created.ID, map[string]any{"quotationId": input.QuotationID, "title": input.Title})
	return created, nil
}

// Get returns a change order by id.
func (s *Service) Get(ctx context.Context, id int64) (*ChangeOrder, error) {
	return s.repo.Get(ctx, id)
}

// ListByQuotation returns a quotation's change orders.
func (s *Service) ListByQuotation(ctx context.Context, quotationID int64) ([]ChangeOrder, error) {
	return s.repo.ListByQuotation(ctx, quotationID)
}

// ListItems returns the items of a change order.
func (s *Service) ListItems(ctx context.Context, changeOrderID int64) ([]Item, error) {
	return s.repo.ListItems(ctx, changeOrderID)
}

func (s *Service) editable(ctx context.Context, id int64) (*ChangeOrder, error) {
	co, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !co.Status.Editable() {
		return nil, ErrLocked
	}
	return co, nil
}

// ItemInput describes a change order line to create or update.
type ItemInput struct {
	RoomLabel   string
	Partition   pricing.Partition
	ChangeType  ChangeType
	Description string
	CalcMode    pricing.CalcMode
	Length      float64
	Height      float64
	Count       float64
	UnitPrice   float64
}

func (in ItemInput) validate() error {
	if !in.ChangeType.Valid() {
		return fmt.Errorf("%w: unknown change type %q", shared.ErrValidation, in.ChangeType)
	}
	if in.Partition != pricing.PartitionInteriors && in.Partition != pricing.PartitionFalseCeiling {
		return fmt.Errorf("%w: unknown partition %q", shared.ErrValidation, in.Partition)
	}
	if !in.CalcMode.Valid() {
		return fmt.Errorf("%w: unknown calc mode %q", shared.ErrValidation, in.CalcMode)
	}
	if in.Length < 0 || in.Height < 0 || in.Count < 0 {
		return fmt.Errorf("%w: dimensions must not be negative", shared.ErrValidation)
	}
	if in.UnitPrice < 0 {
		return fmt.Errorf("%w: price must not be negative", shared.ErrValidation)
	}
	return nil
}

func (in ItemInput) price() float64 {
	quantity := pricing.Quantity(in.CalcMode, pricing.Dimensions{Length: in.Length, Height: in.Height, Count: in.Count})
	return in.ChangeType.Sign() * pricing.LineTotal(in.UnitPrice, quantity)
}

// AddItem validates, prices, and persists a change order line, then
// recomputes the change order totals.
func (s *Service) AddItem(ctx context.Context, changeOrderID int64, input ItemInput) (*Item, error) {
	if _, err := s.editable(ctx, changeOrderID); err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	item := Item{
		ChangeOrderID: changeOrderID,
		RoomLabel:     input.RoomLabel,
		Partition:     input.Partition,
		ChangeType:    input.ChangeType,
		Description:   input.Description,
		CalcMode:      input.CalcMode,
		Length:        input.Length,
		Height:        input.Height,
		Count:         input.Count,
		UnitPrice:     input.UnitPrice,
		TotalPrice:    input.price(),
	}
	created, err := s.repo.CreateItem(ctx, item)
	if err != nil {
		return nil, err
	}
	if _, err := s.Recompute(ctx, changeOrderID); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, AuditItemChanged, changeOrderID, map[string]any{
		"after": map[string]any{"itemId": created.ID, "changeType": string(created.ChangeType), "totalPrice": created.TotalPrice},
	})
	return created, nil
}

// UpdateItem re-validates and re-prices a change order line.
func (s *Service) UpdateItem(ctx context.Context, itemID int64, input ItemInput) (*Item, error) {
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if _, err := s.editable(ctx, item.ChangeOrderID); err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	before := map[string]any{"totalPrice": item.TotalPrice}
	item.RoomLabel = input.RoomLabel
	item.Partition = input.Partition
	item.ChangeType = input.ChangeType
	item.Description = input.Description
	item.CalcMode = input.CalcMode
	item.Length = input.Length
	item.Height = input.Height
	item.Count = input.Count
	item.UnitPrice = input.UnitPrice
	item.TotalPrice = input.price()

	if err := s.repo.UpdateItem(ctx, *item); err != nil {
		return nil, err
	}
	if _, err := s.Recompute(ctx, item.ChangeOrderID); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, AuditItemChanged, item.ChangeOrderID, map[string]any{
		"before": before,
		"after":  map[string]any{"itemId": item.ID, "totalPrice": item.TotalPrice},
	})
	return item, nil
}

// DeleteItem removes a change order line and recomputes totals.
func (s *Service) DeleteItem(ctx context.Context, itemID int64) error {
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	if _, err := s.editable(ctx, item.ChangeOrderID); err != nil {
		return err
	}
	if err := s.repo.DeleteItem(ctx, itemID); err != nil {
		return err
	}
	if _, err := s.Recompute(ctx, item.ChangeOrderID); err != nil {
		return err
	}
	return nil
}

// SetDiscount changes the change-order discount and recomputes totals.
func (s *Service) SetDiscount(ctx context.Context, changeOrderID int64, discountType pricing.DiscountType, value float64) error {
	if _, err := s.editable(ctx, changeOrderID); err != nil {
		return err
	}
	if !discountType.Valid() {
		return fmt.Errorf("%w: unknown discount type %q", shared.ErrValidation, discountType)
	}
	if value < 0 {
		return fmt.Errorf("%w: discount value must not be negative", shared.ErrValidation)
	}
	if err := s.repo.SetDiscount(ctx, changeOrderID, string(discountType), value); err != nil {
		return err
	}
	if _, err := s.Recompute(ctx, changeOrderID); err != nil {
		return err
	}
	s.recordAudit(ctx, AuditDiscountedAt, changeOrderID, map[string]any{
		"after": map[string]any{"discountType": string(discountType), "discountValue": value},
	})
	return nil
}

// taxPercentFor resolves the tax percent a change order is scoped to: the
// parent's frozen snapshot when present, current global rules otherwise.
func (s *Service) taxPercentFor(ctx context.Context, quotationID int64) (float64, error) {
	snapshot, err := s.frozen.FrozenTotals(ctx, quotationID)
	if err == nil {
		return snapshot.TaxPercent, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return 0, err
	}
	current, err := s.rules.Current(ctx)
	if err != nil {
		return 0, err
	}
	return current.TaxPercent, nil
}

// Recompute derives the change order totals from the full current item set
// and persists them. Credits can drive partition figures negative; the
// shared allocator carries the sign through discount and tax.
func (s *Service) Recompute(ctx context.Context, changeOrderID int64) (pricing.Allocation, error) {
	co, err := s.repo.Get(ctx, changeOrderID)
	if err != nil {
		return pricing.Allocation{}, err
	}
	allocation, subtotals, err := s.liveTotals(ctx, co)
	if err != nil {
		return pricing.Allocation{}, err
	}

	totals := Totals{
		InteriorsSubtotal: subtotals.Interiors,
		FCSubtotal:        subtotals.FalseCeiling,
		GrandTotal:        allocation.Grand.Total,
		UpdatedAt:         time.Now(),
	}
	if err := s.repo.SaveTotals(ctx, changeOrderID, totals); err != nil {
		return pricing.Allocation{}, err
	}
	s.metrics.IncRecompute("change_order")
	return allocation, nil
}

// LiveTotals computes totals without persisting anything.
func (s *Service) LiveTotals(ctx context.Context, changeOrderID int64) (pricing.Allocation, pricing.Subtotals, error) {
	co, err := s.repo.Get(ctx, changeOrderID)
	if err != nil {
		return pricing.Allocation{}, pricing.Subtotals{}, err
	}
	allocation, subtotals, err := s.liveTotals(ctx, co)
	return allocation, subtotals, err
}

func (s *Service) liveTotals(ctx context.Context, co *ChangeOrder) (pricing.Allocation, pricing.Subtotals, error) {
	items, err := s.repo.ListItems(ctx, co.ID)
	if err != nil {
		return pricing.Allocation{}, pricing.Subtotals{}, err
	}
	taxPercent, err := s.taxPercentFor(ctx, co.QuotationID)
	if err != nil {
		return pricing.Allocation{}, pricing.Subtotals{}, err
	}

	subtotals := pricing.Aggregate(Lines(items), s.less)
	allocation, err := pricing.Allocate(subtotals.Interiors, subtotals.FalseCeiling, co.DiscountType, co.DiscountValue, taxPercent)
	if err != nil {
		return pricing.Allocation{}, pricing.Subtotals{}, err
	}
	return allocation, subtotals, nil
}

// Send transitions a draft change order to SENT.
func (s *Service) Send(ctx context.Context, changeOrderID, actorID int64) error {
	co, err := s.repo.Get(ctx, changeOrderID)
	if err != nil {
		return err
	}
	if co.Status != StatusDraft {
		return quotes.ErrInvalidStatus
	}
	if err := s.repo.UpdateStatus(ctx, changeOrderID, StatusSent, actorID); err != nil {
		return err
	}
	s.recordAudit(ctx, AuditStatusMoved, changeOrderID, map[string]any{"after": map[string]any{"status": string(StatusSent)}})
	return nil
}

// Approve folds a change order into the revised total: final recompute,
// approval record, then the status flip that makes Folded() true.
func (s *Service) Approve(ctx context.Context, changeOrderID, actorID int64, note string) error {
	if actorID == 0 {
		return fmt.Errorf("%w: approving actor required", shared.ErrValidation)
	}
	co, err := s.repo.Get(ctx, changeOrderID)
	if err != nil {
		return err
	}
	if !co.Status.Editable() {
		return quotes.ErrInvalidStatus
	}

	if _, err := s.Recompute(ctx, changeOrderID); err != nil {
		return err
	}
	if err := s.repo.UpdateStatus(ctx, changeOrderID, StatusApproved, actorID); err != nil {
		return err
	}
	if s.approvals != nil {
		if err := s.approvals.Record(ctx, shared.ApprovalLog{
			Module:  "change_order",
			RefID:   co.Ref,
			ActorID: actorID,
			Action:  shared.ApprovalApprove,
			Note:    note,
		}); err != nil {
			s.logger.Warn("record change order approval", slog.Any("error", err))
		}
	}
	s.recordAudit(ctx, AuditApproved, changeOrderID, map[string]any{"quotationId": co.QuotationID})
	s.metrics.IncChangeOrderFold()
	return nil
}

// Reject marks a change order rejected. Rejected change orders never affect
// the revised total.
func (s *Service) Reject(ctx context.Context, changeOrderID, actorID int64) error {
	co, err := s.repo.Get(ctx, changeOrderID)
	if err != nil {
		return err
	}
	if !co.Status.Editable() {
		return quotes.ErrInvalidStatus
	}
	if err := s.repo.UpdateStatus(ctx, changeOrderID, StatusRejected, actorID); err != nil {
		return err
	}
	s.recordAudit(ctx, AuditStatusMoved, changeOrderID, map[string]any{"after": map[string]any{"status": string(StatusRejected)}})
	return nil
}

// Delete removes a change order. Its contribution disappears from the
// revised total, but the parent quotation's own totals stay untouched.
func (s *Service) Delete(ctx context.Context, changeOrderID, actorID int64) error {
	co, err := s.repo.Get(ctx, changeOrderID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, changeOrderID); err != nil {
		return err
	}
	s.recordAudit(ctx, AuditDeleted, changeOrderID, map[string]any{
		"quotationId": co.QuotationID,
		"grandTotal":  co.Totals.GrandTotal,
		"actorId":     actorID,
	})
	if co.Status.Folded() {
		s.metrics.IncChangeOrderFold()
	}
	return nil
}

// RevisedTotal reports the approved quotation grand total plus the grand
// totals of all approved change orders.
type RevisedTotal struct {
	QuotationID        int64   `json:"quotationId"`
	ApprovedGrandTotal float64 `json:"approvedGrandTotal"`
	ChangeOrdersTotal  float64 `json:"changeOrdersTotal"`
	RevisedGrandTotal  float64 `json:"revisedGrandTotal"`
}

// Revised computes the reporting figure for an approved quotation.
func (s *Service) Revised(ctx context.Context, quotationID int64) (*RevisedTotal, error) {
	snapshot, err := s.frozen.FrozenTotals(ctx, quotationID)
	if err != nil {
		return nil, err
	}
	coSum, err := s.repo.SumApprovedGrandTotals(ctx, quotationID)
	if err != nil {
		return nil, err
	}
	approved := snapshot.Allocation.Grand.Total
	return &RevisedTotal{
		QuotationID:        quotationID,
		ApprovedGrandTotal: approved,
		ChangeOrdersTotal:  coSum,
		RevisedGrandTotal:  approved + coSum,
	}, nil
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "change_order",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
