package templates

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-interiors/meridian-quotes/internal/pricing"
	"github.com/meridian-interiors/meridian-quotes/internal/quotes"
	"github.com/meridian-interiors/meridian-quotes/internal/shared"
)

type memoryTemplateRepo struct {
	templates map[string]*Template
}

func (r *memoryTemplateRepo) GetByCategory(ctx context.Context, category string) (*Template, error) {
	t, ok := r.templates[category]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return t, nil
}

func (r *memoryTemplateRepo) ListCategories(ctx context.Context) ([]string, error) {
	var out []string
	for c := range r.templates {
		out = append(out, c)
	}
	return out, nil
}

type fakeGateway struct {
	quotation *quotes.Quotation
	items     quotes.LineSet
	nextID    int64
	cleared   int
}

func (g *fakeGateway) GetQuotation(ctx context.Context, id int64) (*quotes.Quotation, error) {
	return g.quotation, nil
}

func (g *fakeGateway) ListItems(ctx context.Context, quotationID int64) (quotes.LineSet, error) {
	return g.items, nil
}

func (g *fakeGateway) AddInteriorItem(ctx context.Context, quotationID int64, input quotes.InteriorItemInput) (*quotes.InteriorItem, error) {
	g.nextID++
	item := quotes.InteriorItem{
		ID:          g.nextID,
		QuotationID: quotationID,
		RoomLabel:   input.RoomLabel,
		ItemKey:     input.ItemKey,
		CalcMode:    input.CalcMode,
		Length:      input.Length,
		Height:      input.Height,
		Count:       input.Count,
	}
	g.items.Interiors = append(g.items.Interiors, item)
	return &item, nil
}

func (g *fakeGateway) AddFalseCeilingItem(ctx context.Context, quotationID int64, input quotes.FalseCeilingItemInput) (*quotes.FalseCeilingItem, error) {
	g.nextID++
	item := quotes.FalseCeilingItem{
		ID:          g.nextID,
		QuotationID: quotationID,
		RoomLabel:   input.RoomLabel,
		Description: input.Description,
		CalcMode:    input.CalcMode,
		Length:      input.Length,
		Height:      input.Height,
		Count:       input.Count,
		UnitPrice:   input.UnitPrice,
	}
	g.items.FalseCeilings = append(g.items.FalseCeilings, item)
	return &item, nil
}

func (g *fakeGateway) AddOtherItem(ctx context.Context, quotationID int64, input quotes.OtherItemInput) (*quotes.OtherItem, error) {
	g.nextID++
	item := quotes.OtherItem{
		ID:          g.nextID,
		QuotationID: quotationID,
		Kind:        input.Kind,
		CalcMode:    input.CalcMode,
	}
	g.items.Others = append(g.items.Others, item)
	return &item, nil
}

func (g *fakeGateway) ClearItems(ctx context.Context, quotationID int64) error {
	g.cleared++
	g.items = quotes.LineSet{}
	return nil
}

func threeBHK() *Template {
	return &Template{
		ID:       1,
		Category: "3BHK",
		Name:     "Standard 3BHK",
		Rooms: []TemplateRoom{
			{ID: 1, Label: "Living Room", Items: []TemplateItem{
				{ItemKey: "tv_unit", CalcMode: pricing.CalcSQFT, Length: 8, Height: 6},
			}, FCItems: []TemplateFCItem{
				{Description: "Peripheral cove", CalcMode: pricing.CalcSQFT},
			}},
			{ID: 2, Label: "Master Bedroom", Items: []TemplateItem{
				{ItemKey: "wardrobe", CalcMode: pricing.CalcSQFT, Length: 10, Height: 8},
				{ItemKey: "bed_back_panel", CalcMode: pricing.CalcSQFT, Length: 6, Height: 8},
			}},
			{ID: 3, Label: "Pooja Room", Optional: true, Items: []TemplateItem{
				{ItemKey: "pooja_unit", CalcMode: pricing.CalcSQFT, Length: 3, Height: 6},
			}},
		},
		Others: OtherFlags{WallPainting: true, FanHooks: true},
	}
}

func newTemplatesFixture(t *testing.T, existing quotes.LineSet) (*Service, *fakeGateway) {
	t.Helper()
	repo := &memoryTemplateRepo{templates: map[string]*Template{"3BHK": threeBHK()}}
	gateway := &fakeGateway{
		quotation: &quotes.Quotation{ID: 1, Status: quotes.StatusDraft},
		items:     existing,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, gateway, nil, logger, nil), gateway
}

func TestApplyOnEmptyQuotationMaterializesStandardRooms(t *testing.T) {
	svc, gateway := newTemplatesFixture(t, quotes.LineSet{})

	result, err := svc.Apply(context.Background(), ApplyInput{QuotationID: 1, Category: "3BHK"})
	require.NoError(t, err)
	require.Equal(t, ModeMerge, result.Mode)
	require.ElementsMatch(t, []string{"Living Room", "Master Bedroom"}, result.RoomsApplied)
	require.Equal(t, 4, result.ItemsCreated)
	require.Equal(t, 2, result.OthersCreated)
	require.Len(t, gateway.items.Interiors, 3)
	require.Len(t, gateway.items.FalseCeilings, 1)
}

func TestApplySelectedOptionalRoom(t *testing.T) {
	svc, _ := newTemplatesFixture(t, quotes.LineSet{})

	result, err := svc.Apply(context.Background(), ApplyInput{
		QuotationID:      1,
		Category:         "3BHK",
		SelectedOptional: []string{"Pooja Room"},
	})
	require.NoError(t, err)
	require.Contains(t, result.RoomsApplied, "Pooja Room")
	require.Equal(t, 5, result.ItemsCreated)
}

func TestApplySeedsFalseCeilingLinesWithBlankPricing(t *testing.T) {
	svc, gateway := newTemplatesFixture(t, quotes.LineSet{})

	_, err := svc.Apply(context.Background(), ApplyInput{QuotationID: 1, Category: "3BHK"})
	require.NoError(t, err)

	require.Len(t, gateway.items.FalseCeilings, 1)
	fc := gateway.items.FalseCeilings[0]
	require.Equal(t, "Living Room", fc.RoomLabel)
	require.Equal(t, "Peripheral cove", fc.Description)
	require.Equal(t, pricing.CalcSQFT, fc.CalcMode)
	require.Zero(t, fc.Length)
	require.Zero(t, fc.Height)
	require.Zero(t, fc.Count)
	require.Zero(t, fc.UnitPrice)
}

func TestMergeIsIdempotent(t *testing.T) {
	svc, gateway := newTemplatesFixture(t, quotes.LineSet{})

	first, err := svc.Apply(context.Background(), ApplyInput{QuotationID: 1, Category: "3BHK"})
	require.NoError(t, err)
	require.Equal(t, 4, first.ItemsCreated)

	second, err := svc.Apply(context.Background(), ApplyInput{QuotationID: 1, Category: "3BHK", Mode: ModeMerge})
	require.NoError(t, err)
	require.Zero(t, second.ItemsCreated)
	require.Zero(t, second.OthersCreated)
	require.Empty(t, second.RoomsApplied)
	require.Len(t, gateway.items.Interiors, 3)
}

func TestMergeLeavesExistingRoomsUntouched(t *testing.T) {
	existing := quotes.LineSet{Interiors: []quotes.InteriorItem{
		{ID: 99, QuotationID: 1, RoomLabel: "Master Bedroom", ItemKey: "custom_wardrobe"},
	}}
	svc, gateway := newTemplatesFixture(t, existing)

	result, err := svc.Apply(context.Background(), ApplyInput{QuotationID: 1, Category: "3BHK", Mode: ModeMerge})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"Living Room"}, result.RoomsApplied)
	require.Equal(t, 0, gateway.cleared)

	var masterItems int
	for _, it := range gateway.items.Interiors {
		if it.RoomLabel == "Master Bedroom" {
			masterItems++
		}
	}
	require.Equal(t, 1, masterItems)
}

func TestReplaceRequiresConfirmation(t *testing.T) {
	existing := quotes.LineSet{Interiors: []quotes.InteriorItem{{ID: 99, RoomLabel: "Kitchen"}}}
	svc, gateway := newTemplatesFixture(t, existing)

	_, err := svc.Apply(context.Background(), ApplyInput{
		QuotationID: 1,
		Category:    "3BHK",
		Mode:        ModeReplace,
	})
	require.ErrorIs(t, err, shared.ErrConfirmationRequired)
	require.Equal(t, 0, gateway.cleared)
	require.Len(t, gateway.items.Interiors, 1)

	result, err := svc.Apply(context.Background(), ApplyInput{
		QuotationID: 1,
		Category:    "3BHK",
		Mode:        ModeReplace,
		Confirmed:   true,
	})
	require.NoError(t, err)
	require.Equal(t, 1, gateway.cleared)
	require.Equal(t, 4, result.ItemsCreated)
	require.Len(t, gateway.items.Interiors, 3)
}

func TestUnknownCategoryFallsBackToDefault(t *testing.T) {
	svc, _ := newTemplatesFixture(t, quotes.LineSet{})

	result, err := svc.Apply(context.Background(), ApplyInput{QuotationID: 1, Category: "7BHK_PENTHOUSE"})
	require.NoError(t, err)
	require.Equal(t, 4, result.ItemsCreated)
}

func TestApplyRejectedOnLockedQuotation(t *testing.T) {
	svc, gateway := newTemplatesFixture(t, quotes.LineSet{})
	gateway.quotation.Status = quotes.StatusApproved

	_, err := svc.Apply(context.Background(), ApplyInput{QuotationID: 1, Category: "3BHK"})
	require.ErrorIs(t, err, shared.ErrQuotationLocked)
}
