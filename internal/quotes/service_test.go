package quotes

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-interiors/meridian-quotes/internal/catalog"
	"github.com/meridian-interiors/meridian-quotes/internal/pricing"
	"github.com/meridian-interiors/meridian-quotes/internal/rules"
	"github.com/meridian-interiors/meridian-quotes/internal/shared"
)

type memoryQuotesRepo struct {
	nextID     int64
	quotations map[int64]*Quotation
	interiors  map[int64]*InteriorItem
	fcs        map[int64]*FalseCeilingItem
	others     map[int64]*OtherItem
}

func newMemoryQuotesRepo() *memoryQuotesRepo {
	return &memoryQuotesRepo{
		nextID:     1,
		quotations: make(map[int64]*Quotation),
		interiors:  make(map[int64]*InteriorItem),
		fcs:        make(map[int64]*FalseCeilingItem),
		others:     make(map[int64]*OtherItem),
	}
}

func (r *memoryQuotesRepo) id() int64 {
	id := r.nextID
	r.nextID++
	return id
}

func (r *memoryQuotesRepo) CreateQuotation(ctx context.Context, input CreateQuotationInput) (*Quotation, error) {
	q := &Quotation{
		ID:            r.id(),
		Ref:           input.Ref,
		ProjectName:   input.ProjectName,
		ClientName:    input.ClientName,
		City:          input.City,
		Category:      input.Category,
		BuildType:     input.BuildType,
		Status:        StatusDraft,
		DiscountType:  input.DiscountType,
		DiscountValue: input.DiscountValue,
		CreatedBy:     input.CreatedBy,
	}
	r.quotations[q.ID] = q
	return q, nil
}

func (r *memoryQuotesRepo) GetQuotation(ctx context.Context, id int64) (*Quotation, error) {
	q, ok := r.quotations[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *q
	return &copied, nil
}

func (r *memoryQuotesRepo) ListQuotations(ctx context.Context, req ListQuotationsRequest) ([]Quotation, error) {
	var out []Quotation
	for _, q := range r.quotations {
		if req.Status != "" && q.Status != req.Status {
			continue
		}
		out = append(out, *q)
	}
	return out, nil
}

func (r *memoryQuotesRepo) UpdateQuotationStatus(ctx context.Context, id int64, status QuotationStatus) error {
	q, ok := r.quotations[id]
	if !ok {
		return shared.ErrNotFound
	}
	q.Status = status
	return nil
}

func (r *memoryQuotesRepo) SetDiscount(ctx context.Context, id int64, discountType pricing.DiscountType, value float64) error {
	q, ok := r.quotations[id]
	if !ok {
		return shared.ErrNotFound
	}
	q.DiscountType = discountType
	q.DiscountValue = value
	return nil
}

func (r *memoryQuotesRepo) SaveTotals(ctx context.Context, id int64, totals Totals) error {
	q, ok := r.quotations[id]
	if !ok {
		return shared.ErrNotFound
	}
	q.Totals = totals
	return nil
}

func (r *memoryQuotesRepo) SaveSignoff(ctx context.Context, id int64, signoff Signoff) error {
	q, ok := r.quotations[id]
	if !ok {
		return shared.ErrNotFound
	}
	q.Signoff = signoff
	return nil
}

func (r *memoryQuotesRepo) ListItems(ctx context.Context, quotationID int64) (LineSet, error) {
	var set LineSet
	for _, it := range r.interiors {
		if it.QuotationID == quotationID {
			set.Interiors = append(set.Interiors, *it)
		}
	}
	for _, it := range r.fcs {
		if it.QuotationID == quotationID {
			set.FalseCeilings = append(set.FalseCeilings, *it)
		}
	}
	for _, it := range r.others {
		if it.QuotationID == quotationID {
			set.Others = append(set.Others, *it)
		}
	}
	return set, nil
}

func (r *memoryQuotesRepo) GetInteriorItem(ctx context.Context, id int64) (*InteriorItem, error) {
	it, ok := r.interiors[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *it
	return &copied, nil
}

func (r *memoryQuotesRepo) CreateInteriorItem(ctx context.Context, item InteriorItem) (*InteriorItem, error) {
	item.ID = r.id()
	r.interiors[item.ID] = &item
	copied := item
	return &copied, nil
}

func (r *memoryQuotesRepo) UpdateInteriorItem(ctx context.Context, item InteriorItem) error {
	if _, ok := r.interiors[item.ID]; !ok {
		return shared.ErrNotFound
	}
	r.interiors[item.ID] = &item
	return nil
}

func (r *memoryQuotesRepo) DeleteInteriorItem(ctx context.Context, id int64) error {
	if _, ok := r.interiors[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.interiors, id)
	return nil
}

func (r *memoryQuotesRepo) GetFalseCeilingItem(ctx context.Context, id int64) (*FalseCeilingItem, error) {
	it, ok := r.fcs[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *it
	return &copied, nil
}

func (r *memoryQuotesRepo) CreateFalseCeilingItem(ctx context.Context, item FalseCeilingItem) (*FalseCeilingItem, error) {
	item.ID = r.id()
	r.fcs[item.ID] = &item
	copied := item
	return &copied, nil
}

func (r *memoryQuotesRepo) UpdateFalseCeilingItem(ctx context.Context, item FalseCeilingItem) error {
	if _, ok := r.fcs[item.ID]; !ok {
		return shared.ErrNotFound
	}
	r.fcs[item.ID] = &item
	return nil
}

func (r *memoryQuotesRepo) DeleteFalseCeilingItem(ctx context.Context, id int64) error {
	if _, ok := r.fcs[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.fcs, id)
	return nil
}

func (r *memoryQuotesRepo) GetOtherItem(ctx context.Context, id int64) (*OtherItem, error) {
	it, ok := r.others[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *it
	return &copied, nil
}

func (r *memoryQuotesRepo) CreateOtherItem(ctx context.Context, item OtherItem) (*OtherItem, error) {
	item.ID = r.id()
	r.others[item.ID] = &item
	copied := item
	return &copied, nil
}

func (r *memoryQuotesRepo) UpdateOtherItem(ctx context.Context, item OtherItem) error {
	if _, ok := r.others[item.ID]; !ok {
		return shared.ErrNotFound
	}
	r.others[item.ID] = &item
	return nil
}

func (r *memoryQuotesRepo) DeleteOtherItem(ctx context.Context, id int64) error {
	if _, ok := r.others[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.others, id)
	return nil
}

func (r *memoryQuotesRepo) DeleteAllItems(ctx context.Context, quotationID int64) error {
	for id, it := range r.interiors {
		if it.QuotationID == quotationID {
			delete(r.interiors, id)
		}
	}
	for id, it := range r.fcs {
		if it.QuotationID == quotationID {
			delete(r.fcs, id)
		}
	}
	for id, it := range r.others {
		if it.QuotationID == quotationID {
			delete(r.others, id)
		}
	}
	return nil
}

type stubCatalog struct {
	view *catalog.View
}

func (c *stubCatalog) Load(ctx context.Context) (*catalog.View, error) {
	return c.view, nil
}

type stubRules struct {
	rules rules.GlobalRules
}

func (r *stubRules) Current(ctx context.Context) (rules.GlobalRules, error) {
	return r.rules, nil
}

type memoryAudit struct {
	logs []shared.AuditLog
}

func (a *memoryAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func (a *memoryAudit) actions() []string {
	out := make([]string, 0, len(a.logs))
	for _, l := range a.logs {
		out = append(out, l.Action)
	}
	return out
}

func lockedUnit(u catalog.Unit) *catalog.Unit { return &u }

func testView() *catalog.View {
	return catalog.NewView(
		[]catalog.RateCatalogEntry{
			{ItemKey: "wardrobe", Name: "Wardrobe", Category: "storage", HandmadeRate: 1300, FactoryRate: 1500},
			{ItemKey: "tv_unit", Name: "TV Unit", Category: "living", HandmadeRate: 1200, FactoryRate: 1400},
			{ItemKey: "termite_treatment", Name: "Termite Treatment", Category: "services", LockedUnit: lockedUnit(catalog.UnitLumpSum), HandmadeRate: 0, FactoryRate: 0},
		},
		[]catalog.BrandAdjustment{
			{Kind: pricing.AdderCore, Brand: "Generic", Adder: 0},
			{Kind: pricing.AdderCore, Brand: "BWP Ply", Adder: 100},
			{Kind: pricing.AdderFinish, Brand: "Acrylic", Adder: 200},
			{Kind: pricing.AdderHardware, Brand: "Hettich", Adder: 200},
		},
	)
}

type quotesFixture struct {
	service *Service
	repo    *memoryQuotesRepo
	audit   *memoryAudit
}

func newQuotesFixture(t *testing.T) *quotesFixture {
	t.Helper()
	repo := newMemoryQuotesRepo()
	audit := &memoryAudit{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(repo, &stubCatalog{view: testView()}, &stubRules{rules: rules.GlobalRules{
		TaxPercent:       18,
		DefaultBuildType: pricing.BuildHandmade,
	}}, audit, logger, nil, nil)
	return &quotesFixture{service: svc, repo: repo, audit: audit}
}

func (f *quotesFixture) draft(t *testing.T, buildType pricing.BuildType) *Quotation {
	t.Helper()
	q, err := f.service.CreateQuotation(context.Background(), CreateQuotationInput{
		ProjectName: "3BHK Whitefield",
		BuildType:   buildType,
	})
	require.NoError(t, err)
	return q
}

func TestCreateQuotationDefaultsBuildType(t *testing.T) {
	f := newQuotesFixture(t)
	q, err := f.service.CreateQuotation(context.Background(), CreateQuotationInput{ProjectName: "Villa"})
	require.NoError(t, err)
	require.Equal(t, pricing.BuildHandmade, q.BuildType)
	require.Equal(t, StatusDraft, q.Status)
	require.NotEqual(t, "00000000-0000-0000-0000-000000000000", q.Ref.String())
}

func TestAddInteriorItemResolvesRateAndRecomputes(t *testing.T) {
	f := newQuotesFixture(t)
	q := f.draft(t, pricing.BuildFactory)

	item, err := f.service.AddInteriorItem(context.Background(), q.ID, InteriorItemInput{
		RoomLabel:     "Master Bedroom",
		ItemKey:       "wardrobe",
		CalcMode:      pricing.CalcSQFT,
		Length:        10,
		Height:        8,
		CoreBrand:     "BWP Ply",
		FinishBrand:   "Acrylic",
		HardwareBrand: "Hettich",
	})
	require.NoError(t, err)
	require.Equal(t, 2000.0, item.Rate.RateAuto)
	require.False(t, item.Rate.IsRateOverridden)
	require.Equal(t, 2000.0, item.UnitPrice)
	require.Equal(t, 160000.0, item.TotalPrice)

	stored, err := f.service.GetQuotation(context.Background(), q.ID)
	require.NoError(t, err)
	require.Equal(t, 160000.0, stored.Totals.InteriorsSubtotal)
	require.Equal(t, 160000.0, stored.Totals.GrandSubtotal)
	require.Contains(t, f.audit.actions(), AuditItemCreated)
}

func TestAddInteriorItemUnknownBrandFailsOpen(t *testing.T) {
	f := newQuotesFixture(t)
	q := f.draft(t, pricing.BuildHandmade)

	item, err := f.service.AddInteriorItem(context.Background(), q.ID, InteriorItemInput{
		ItemKey:   "wardrobe",
		CalcMode:  pricing.CalcSQFT,
		Length:    10,
		Height:    10,
		CoreBrand: "NoSuchBrand",
	})
	require.NoError(t, err)
	require.Equal(t, 1300.0, item.Rate.RateAuto)
	require.Contains(t, f.audit.actions(), AuditBrandMiss)
}

func TestAddInteriorItemEnforcesUnitLock(t *testing.T) {
	f := newQuotesFixture(t)
	q := f.draft(t, pricing.BuildHandmade)

	_, err := f.service.AddInteriorItem(context.Background(), q.ID, InteriorItemInput{
		ItemKey:  "termite_treatment",
		CalcMode: pricing.CalcSQFT,
		Length:   10,
		Height:   10,
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	item, err := f.service.AddInteriorItem(context.Background(), q.ID, InteriorItemInput{
		ItemKey:   "termite_treatment",
		UnitPrice: 9000,
	})
	require.NoError(t, err)
	require.Equal(t, pricing.CalcLumpSum, item.CalcMode)
	require.Equal(t, 9000.0, item.TotalPrice)
	require.False(t, item.Rate.IsRateOverridden)
}

func TestRateOverrideRoundTrip(t *testing.T) {
	f := newQuotesFixture(t)
	q := f.draft(t, pricing.BuildHandmade)

	item, err := f.service.AddInteriorItem(context.Background(), q.ID, InteriorItemInput{
		RoomLabel: "Kitchen",
		ItemKey:   "wardrobe",
		CalcMode:  pricing.CalcSQFT,
		Length:    10,
		Height:    10,
	})
	require.NoError(t, err)
	require.Equal(t, 1300.0, item.UnitPrice)

	overridden, err := f.service.OverrideRate(context.Background(), item.ID, 1100)
	require.NoError(t, err)
	require.True(t, overridden.Rate.IsRateOverridden)
	require.Equal(t, 1100.0, overridden.UnitPrice)
	require.Equal(t, 1300.0, overridden.Rate.RateAuto)
	require.Equal(t, 110000.0, overridden.TotalPrice)

	reverted, err := f.service.ClearRateOverride(context.Background(), item.ID)
	require.NoError(t, err)
	require.False(t, reverted.Rate.IsRateOverridden)
	require.Equal(t, 1300.0, reverted.UnitPrice)
	require.Equal(t, 130000.0, reverted.TotalPrice)
}

func TestOtherItemsLandInFalseCeilingPartition(t *testing.T) {
	f := newQuotesFixture(t)
	q := f.draft(t, pricing.BuildHandmade)

	_, err := f.service.AddOtherItem(context.Background(), q.ID, OtherItemInput{
		Kind:      OtherFanHooks,
		CalcMode:  pricing.CalcCount,
		Count:     4,
		UnitPrice: 350,
	})
	require.NoError(t, err)

	stored, err := f.service.GetQuotation(context.Background(), q.ID)
	require.NoError(t, err)
	require.Equal(t, 0.0, stored.Totals.InteriorsSubtotal)
	require.Equal(t, 1400.0, stored.Totals.FCSubtotal)
}

func TestLiveTotalsAllocation(t *testing.T) {
	f := newQuotesFixture(t)
	q := f.draft(t, pricing.BuildHandmade)

	_, err := f.service.AddFalseCeilingItem(context.Background(), q.ID, FalseCeilingItemInput{
		RoomLabel: "Living Room",
		CalcMode:  pricing.CalcSQFT,
		Length:    10,
		Height:    10,
		UnitPrice: 500,
	})
	require.NoError(t, err)
	require.NoError(t, f.service.SetDiscount(context.Background(), q.ID, pricing.DiscountPercent, 10))

	allocation, subtotals, err := f.service.LiveTotals(context.Background(), q.ID)
	require.NoError(t, err)
	require.Equal(t, 50000.0, subtotals.FalseCeiling)
	require.Equal(t, 5000.0, allocation.FalseCeiling.Discount)
	require.Equal(t, 53100.0, allocation.FalseCeiling.Total)
	require.Equal(t, allocation.FalseCeiling.Total+allocation.Interiors.Total, allocation.Grand.Total)
}

func TestEditsRejectedAfterApproval(t *testing.T) {
	f := newQuotesFixture(t)
	q := f.draft(t, pricing.BuildHandmade)
	require.NoError(t, f.repo.UpdateQuotationStatus(context.Background(), q.ID, StatusApproved))

	_, err := f.service.AddInteriorItem(context.Background(), q.ID, InteriorItemInput{
		ItemKey:  "wardrobe",
		CalcMode: pricing.CalcSQFT,
		Length:   10,
		Height:   10,
	})
	require.ErrorIs(t, err, shared.ErrQuotationLocked)

	err = f.service.SetDiscount(context.Background(), q.ID, pricing.DiscountPercent, 5)
	require.ErrorIs(t, err, shared.ErrQuotationLocked)
}

func TestStatusTransitions(t *testing.T) {
	f := newQuotesFixture(t)
	q := f.draft(t, pricing.BuildHandmade)
	ctx := context.Background()

	require.NoError(t, f.service.Send(ctx, q.ID, 7))
	require.NoError(t, f.service.Accept(ctx, q.ID, 7))

	err := f.service.Send(ctx, q.ID, 7)
	require.ErrorIs(t, err, ErrInvalidStatus)

	stored, err := f.service.GetQuotation(ctx, q.ID)
	require.NoError(t, err)
	require.Equal(t, StatusAccepted, stored.Status)
	require.Contains(t, f.audit.actions(), AuditStatusChanged)
}

func TestRecomputeIsIdempotent(t *testing.T) {
	f := newQuotesFixture(t)
	q := f.draft(t, pricing.BuildHandmade)

	_, err := f.service.AddInteriorItem(context.Background(), q.ID, InteriorItemInput{
		RoomLabel: "Study",
		ItemKey:   "wardrobe",
		CalcMode:  pricing.CalcSQFT,
		Length:    8,
		Height:    10,
	})
	require.NoError(t, err)

	first, err := f.service.Recompute(context.Background(), q.ID)
	require.NoError(t, err)
	second, err := f.service.Recompute(context.Background(), q.ID)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestClientSignoffStoresHashOnly(t *testing.T) {
	f := newQuotesFixture(t)
	q := f.draft(t, pricing.BuildHandmade)
	ctx := context.Background()

	require.NoError(t, f.service.RecordClientSignoff(ctx, q.ID, "signature-token-1"))

	stored, err := f.service.GetQuotation(ctx, q.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Signoff.ClientSignedAt)
	require.NotEqual(t, "signature-token-1", stored.Signoff.TokenHash)

	ok, err := f.service.VerifySignoffToken(ctx, q.ID, "signature-token-1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = f.service.VerifySignoffToken(ctx, q.ID, "wrong-token-99")
	require.NoError(t, err)
	require.False(t, ok)
}
