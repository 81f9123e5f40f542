package changeorders

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-interiors/meridian-quotes/internal/approval"
	"github.com/meridian-interiors/meridian-quotes/internal/pricing"
	"github.com/meridian-interiors/meridian-quotes/internal/quotes"
	"github.com/meridian-interiors/meridian-quotes/internal/rules"
	"github.com/meridian-interiors/meridian-quotes/internal/shared"
)

type memoryChangeOrderRepo struct {
	nextID int64
	orders map[int64]*ChangeOrder
	items  map[int64]*Item
}

func newMemoryChangeOrderRepo() *memoryChangeOrderRepo {
	return &memoryChangeOrderRepo{
		nextID: 1,
		orders: make(map[int64]*ChangeOrder),
		items:  make(map[int64]*Item),
	}
}

func (r *memoryChangeOrderRepo) id() int64 {
	id := r.nextID
	r.nextID++
	return id
}

func (r *memoryChangeOrderRepo) Create(ctx context.Context, co ChangeOrder) (*ChangeOrder, error) {
	co.ID = r.id()
	co.Status = StatusDraft
	stored := co
	r.orders[co.ID] = &stored
	return &co, nil
}

func (r *memoryChangeOrderRepo) Get(ctx context.Context, id int64) (*ChangeOrder, error) {
	co, ok := r.orders[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *co
	return &copied, nil
}

func (r *memoryChangeOrderRepo) ListByQuotation(ctx context.Context, quotationID int64) ([]ChangeOrder, error) {
	var out []ChangeOrder
	for _, co := range r.orders {
		if co.QuotationID == quotationID {
			out = append(out, *co)
		}
	}
	return out, nil
}

func (r *memoryChangeOrderRepo) UpdateStatus(ctx context.Context, id int64, status ChangeOrderStatus, actorID int64) error {
	co, ok := r.orders[id]
	if !ok {
		return shared.ErrNotFound
	}
	co.Status = status
	if status == StatusApproved {
		co.ApprovedBy = &actorID
	}
	return nil
}

func (r *memoryChangeOrderRepo) SetDiscount(ctx context.Context, id int64, discountType string, value float64) error {
	co, ok := r.orders[id]
	if !ok {
		return shared.ErrNotFound
	}
	co.DiscountType = pricing.DiscountType(discountType)
	co.DiscountValue = value
	return nil
}

func (r *memoryChangeOrderRepo) SaveTotals(ctx context.Context, id int64, totals Totals) error {
	co, ok := r.orders[id]
	if !ok {
		return shared.ErrNotFound
	}
	co.Totals = totals
	return nil
}

func (r *memoryChangeOrderRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.orders[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.orders, id)
	for itemID, it := range r.items {
		if it.ChangeOrderID == id {
			delete(r.items, itemID)
		}
	}
	return nil
}

func (r *memoryChangeOrderRepo) SumApprovedGrandTotals(ctx context.Context, quotationID int64) (float64, error) {
	var sum float64
	for _, co := range r.orders {
		if co.QuotationID == quotationID && co.Status == StatusApproved {
			sum += co.Totals.GrandTotal
		}
	}
	return sum, nil
}

func (r *memoryChangeOrderRepo) GetItem(ctx context.Context, id int64) (*Item, error) {
	it, ok := r.items[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *it
	return &copied, nil
}

func (r *memoryChangeOrderRepo) CreateItem(ctx context.Context, item Item) (*Item, error) {
	item.ID = r.id()
	stored := item
	r.items[item.ID] = &stored
	return &item, nil
}

func (r *memoryChangeOrderRepo) UpdateItem(ctx context.Context, item Item) error {
	if _, ok := r.items[item.ID]; !ok {
		return shared.ErrNotFound
	}
	stored := item
	r.items[item.ID] = &stored
	return nil
}

func (r *memoryChangeOrderRepo) DeleteItem(ctx context.Context, id int64) error {
	if _, ok := r.items[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *memoryChangeOrderRepo) ListItems(ctx context.Context, changeOrderID int64) ([]Item, error) {
	var out []Item
	for _, it := range r.items {
		if it.ChangeOrderID == changeOrderID {
			out = append(out, *it)
		}
	}
	return out, nil
}

type stubQuotationGateway struct {
	quotation *quotes.Quotation
}

func (g *stubQuotationGateway) GetQuotation(ctx context.Context, id int64) (*quotes.Quotation, error) {
	if g.quotation == nil || g.quotation.ID != id {
		return nil, shared.ErrNotFound
	}
	copied := *g.quotation
	return &copied, nil
}

type stubFrozenProvider struct {
	snapshots map[int64]*approval.Snapshot
}

func (p *stubFrozenProvider) FrozenTotals(ctx context.Context, quotationID int64) (*approval.Snapshot, error) {
	snap, ok := p.snapshots[quotationID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return snap, nil
}

type stubCORules struct {
	taxPercent float64
}

func (s *stubCORules) Current(ctx context.Context) (rules.GlobalRules, error) {
	return rules.GlobalRules{TaxPercent: s.taxPercent}, nil
}

type memoryCOApprovalSink struct {
	logs []shared.ApprovalLog
}

func (s *memoryCOApprovalSink) Record(ctx context.Context, log shared.ApprovalLog) error {
	s.logs = append(s.logs, log)
	return nil
}

type memoryCOAuditSink struct {
	logs []shared.AuditLog
}

func (s *memoryCOAuditSink) Record(ctx context.Context, log shared.AuditLog) error {
	s.logs = append(s.logs, log)
	return nil
}

type coFixture struct {
	service   *Service
	repo      *memoryChangeOrderRepo
	gateway   *stubQuotationGateway
	frozen    *stubFrozenProvider
	approvals *memoryCOApprovalSink
	audit     *memoryCOAuditSink
}

func newCOFixture(t *testing.T) *coFixture {
	t.Helper()

	gateway := &stubQuotationGateway{
		quotation: &quotes.Quotation{ID: 1, Status: quotes.StatusApproved},
	}
	frozen := &stubFrozenProvider{
		snapshots: map[int64]*approval.Snapshot{
			1: {
				TaxPercent: 18,
				Allocation: pricing.Allocation{
					Grand: pricing.PartitionTotals{Total: 159300},
				},
			},
		},
	}
	repo := newMemoryChangeOrderRepo()
	approvals := &memoryCOApprovalSink{}
	audit := &memoryCOAuditSink{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	service := NewService(repo, gateway, frozen, &stubCORules{taxPercent: 12}, approvals, audit, logger, nil, nil)
	return &coFixture{
		service:   service,
		repo:      repo,
		gateway:   gateway,
		frozen:    frozen,
		approvals: approvals,
		audit:     audit,
	}
}

func (f *coFixture) create(t *testing.T) *ChangeOrder {
	t.Helper()
	co, err := f.service.Create(context.Background(), CreateInput{
		QuotationID: 1,
		Title:       "Kitchen rework",
		CreatedBy:   7,
	})
	require.NoError(t, err)
	return co
}

func TestCreateRequiresRevisableParent(t *testing.T) {
	f := newCOFixture(t)
	f.gateway.quotation.Status = quotes.StatusDraft

	_, err := f.service.Create(context.Background(), CreateInput{QuotationID: 1, Title: "Too early"})
	require.ErrorIs(t, err, ErrParentNotRevisable)

	f.gateway.quotation.Status = quotes.StatusAccepted
	_, err = f.service.Create(context.Background(), CreateInput{QuotationID: 1, Title: "Now fine"})
	require.NoError(t, err)
}

func TestItemSignsFollowChangeType(t *testing.T) {
	f := newCOFixture(t)
	co := f.create(t)

	added, err := f.service.AddItem(context.Background(), co.ID, ItemInput{
		RoomLabel:  "Kitchen",
		Partition:  pricing.PartitionInteriors,
		ChangeType: ChangeAddition,
		CalcMode:   pricing.CalcSQFT,
		Length:     10,
		Height:     2,
		UnitPrice:  1000,
	})
	require.NoError(t, err)
	require.InDelta(t, 20000, added.TotalPrice, 0.001)

	credited, err := f.service.AddItem(context.Background(), co.ID, ItemInput{
		RoomLabel:  "Kitchen",
		Partition:  pricing.PartitionInteriors,
		ChangeType: ChangeCredit,
		CalcMode:   pricing.CalcCount,
		Count:      2,
		UnitPrice:  3000,
	})
	require.NoError(t, err)
	require.InDelta(t, -6000, credited.TotalPrice, 0.001)

	allocation, subtotals, err := f.service.LiveTotals(context.Background(), co.ID)
	require.NoError(t, err)
	require.InDelta(t, 14000, subtotals.Interiors, 0.001)
	require.InDelta(t, 16520, allocation.Grand.Total, 0.001) // 14000 * 1.18
}

func TestNetCreditKeepsNegativeTotal(t *testing.T) {
	f := newCOFixture(t)
	co := f.create(t)

	_, err := f.service.AddItem(context.Background(), co.ID, ItemInput{
		RoomLabel:  "Living Room",
		Partition:  pricing.PartitionInteriors,
		ChangeType: ChangeCredit,
		CalcMode:   pricing.CalcLumpSum,
		UnitPrice:  10000,
	})
	require.NoError(t, err)

	allocation, subtotals, err := f.service.LiveTotals(context.Background(), co.ID)
	require.NoError(t, err)
	require.InDelta(t, -10000, subtotals.Interiors, 0.001)
	require.InDelta(t, -10000, allocation.Interiors.Discounted, 0.001)
	require.InDelta(t, -11800, allocation.Grand.Total, 0.001)

	stored, err := f.service.Get(context.Background(), co.ID)
	require.NoError(t, err)
	require.InDelta(t, -11800, stored.Totals.GrandTotal, 0.001)
}

func TestTaxPercentComesFromFrozenSnapshot(t *testing.T) {
	f := newCOFixture(t)
	co := f.create(t)

	// Snapshot says 18, live rules say 12. The frozen figure wins.
	_, err := f.service.AddItem(context.Background(), co.ID, ItemInput{
		Partition:  pricing.PartitionFalseCeiling,
		ChangeType: ChangeAddition,
		CalcMode:   pricing.CalcLumpSum,
		UnitPrice:  10000,
	})
	require.NoError(t, err)

	allocation, _, err := f.service.LiveTotals(context.Background(), co.ID)
	require.NoError(t, err)
	require.InDelta(t, 1800, allocation.FalseCeiling.Tax, 0.001)
}

func TestTaxFallsBackToRulesWithoutSnapshot(t *testing.T) {
	f := newCOFixture(t)
	co := f.create(t)
	delete(f.frozen.snapshots, 1)

	_, err := f.service.AddItem(context.Background(), co.ID, ItemInput{
		Partition:  pricing.PartitionInteriors,
		ChangeType: ChangeAddition,
		CalcMode:   pricing.CalcLumpSum,
		UnitPrice:  10000,
	})
	require.NoError(t, err)

	allocation, _, err := f.service.LiveTotals(context.Background(), co.ID)
	require.NoError(t, err)
	require.InDelta(t, 1200, allocation.Interiors.Tax, 0.001)
}

func TestRevisedFoldsOnlyApprovedOrders(t *testing.T) {
	f := newCOFixture(t)
	ctx := context.Background()

	addLumpsum := func(co *ChangeOrder, price float64, changeType ChangeType) {
		t.Helper()
		_, err := f.service.AddItem(ctx, co.ID, ItemInput{
			Partition:  pricing.PartitionInteriors,
			ChangeType: changeType,
			CalcMode:   pricing.CalcLumpSum,
			UnitPrice:  price,
		})
		require.NoError(t, err)
	}

	approved := f.create(t)
	addLumpsum(approved, 10000, ChangeAddition)
	require.NoError(t, f.service.Approve(ctx, approved.ID, 9, "scope add"))

	creditApproved := f.create(t)
	addLumpsum(creditApproved, 2000, ChangeCredit)
	require.NoError(t, f.service.Approve(ctx, creditApproved.ID, 9, ""))

	draft := f.create(t)
	addLumpsum(draft, 99999, ChangeAddition)

	rejected := f.create(t)
	addLumpsum(rejected, 5000, ChangeAddition)
	require.NoError(t, f.service.Reject(ctx, rejected.ID, 9))

	revised, err := f.service.Revised(ctx, 1)
	require.NoError(t, err)
	require.InDelta(t, 159300, revised.ApprovedGrandTotal, 0.001)
	// 10000*1.18 - 2000*1.18 = 9440
	require.InDelta(t, 9440, revised.ChangeOrdersTotal, 0.001)
	require.InDelta(t, 168740, revised.RevisedGrandTotal, 0.001)

	require.Len(t, f.approvals.logs, 2)
	require.Equal(t, "change_order", f.approvals.logs[0].Module)
}

func TestApproveRequiresActor(t *testing.T) {
	f := newCOFixture(t)
	co := f.create(t)

	err := f.service.Approve(context.Background(), co.ID, 0, "")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestApprovedOrderIsLocked(t *testing.T) {
	f := newCOFixture(t)
	ctx := context.Background()
	co := f.create(t)

	item, err := f.service.AddItem(ctx, co.ID, ItemInput{
		Partition:  pricing.PartitionInteriors,
		ChangeType: ChangeAddition,
		CalcMode:   pricing.CalcLumpSum,
		UnitPrice:  4000,
	})
	require.NoError(t, err)
	require.NoError(t, f.service.Approve(ctx, co.ID, 9, ""))

	_, err = f.service.AddItem(ctx, co.ID, ItemInput{
		Partition:  pricing.PartitionInteriors,
		ChangeType: ChangeAddition,
		CalcMode:   pricing.CalcLumpSum,
		UnitPrice:  1000,
	})
	require.ErrorIs(t, err, ErrLocked)

	_, err = f.service.UpdateItem(ctx, item.ID, ItemInput{
		Partition:  pricing.PartitionInteriors,
		ChangeType: ChangeAddition,
		CalcMode:   pricing.CalcLumpSum,
		UnitPrice:  9999,
	})
	require.ErrorIs(t, err, ErrLocked)

	err = f.service.Approve(ctx, co.ID, 9, "")
	require.ErrorIs(t, err, quotes.ErrInvalidStatus)
}

func TestDeleteLeavesQuotationAlone(t *testing.T) {
	f := newCOFixture(t)
	ctx := context.Background()
	co := f.create(t)

	_, err := f.service.AddItem(ctx, co.ID, ItemInput{
		Partition:  pricing.PartitionInteriors,
		ChangeType: ChangeAddition,
		CalcMode:   pricing.CalcLumpSum,
		UnitPrice:  10000,
	})
	require.NoError(t, err)
	require.NoError(t, f.service.Approve(ctx, co.ID, 9, ""))

	before := *f.gateway.quotation
	require.NoError(t, f.service.Delete(ctx, co.ID, 9))

	_, err = f.service.Get(ctx, co.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Empty(t, f.repo.items)
	require.Equal(t, before, *f.gateway.quotation)

	revised, err := f.service.Revised(ctx, 1)
	require.NoError(t, err)
	require.InDelta(t, 0, revised.ChangeOrdersTotal, 0.001)
}

func TestSendAndRejectTransitions(t *testing.T) {
	f := newCOFixture(t)
	ctx := context.Background()
	co := f.create(t)

	require.NoError(t, f.service.Send(ctx, co.ID, 9))
	err := f.service.Send(ctx, co.ID, 9)
	require.ErrorIs(t, err, quotes.ErrInvalidStatus)

	require.NoError(t, f.service.Reject(ctx, co.ID, 9))
	err = f.service.Reject(ctx, co.ID, 9)
	require.ErrorIs(t, err, quotes.ErrInvalidStatus)
}
