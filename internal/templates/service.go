package templates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/meridian-interiors/meridian-quotes/internal/observability"
	"github.com/meridian-interiors/meridian-quotes/internal/pricing"
	"github.com/meridian-interiors/meridian-quotes/internal/quotes"
	"github.com/meridian-interiors/meridian-quotes/internal/shared"
)

// AuditTemplateApplied is emitted once per completed application.
const AuditTemplateApplied = "templates.applied"

// RepositoryPort defines read access to templates.
type RepositoryPort interface {
	GetByCategory(ctx context.Context, category string) (*Template, error)
	ListCategories(ctx context.Context) ([]string, error)
}

// QuotationGateway is the slice of the quotes service the applier drives.
// Items are created through it so rate resolution and totals recomputation
// run exactly as they would for a hand-entered line.
type QuotationGateway interface {
	GetQuotation(ctx context.Context, id int64) (*quotes.Quotation, error)
	ListItems(ctx context.Context, quotationID int64) (quotes.LineSet, error)
	AddInteriorItem(ctx context.Context, quotationID int64, input quotes.InteriorItemInput) (*quotes.InteriorItem, error)
	AddFalseCeilingItem(ctx context.Context, quotationID int64, input quotes.FalseCeilingItemInput) (*quotes.FalseCeilingItem, error)
	AddOtherItem(ctx context.Context, quotationID int64, input quotes.OtherItemInput) (*quotes.OtherItem, error)
	ClearItems(ctx context.Context, quotationID int64) error
}

// Service applies templates onto quotations.
type Service struct {
	repo    RepositoryPort
	quotes  QuotationGateway
	audit   shared.AuditSink
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, gateway QuotationGateway, audit shared.AuditSink, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{repo: repo, quotes: gateway, audit: audit, logger: logger, metrics: metrics}
}

// Load resolves a template by category, falling back to the default category
// when the requested one does not exist.
func (s *Service) Load(ctx context.Context, category string) (*Template, error) {
	tmpl, err := s.repo.GetByCategory(ctx, category)
	if err == nil {
		return tmpl, nil
	}
	if !errors.Is(err, shared.ErrNotFound) || category == DefaultCategory {
		return nil, err
	}
	s.logger.Warn("unknown template category, using default",
		slog.String("category", category), slog.String("default", DefaultCategory))
	return s.repo.GetByCategory(ctx, DefaultCategory)
}

// Preview returns the template and the starting machine state for a
// quotation, with no side effects.
func (s *Service) Preview(ctx context.Context, quotationID int64, category string) (*Template, Machine, error) {
	tmpl, err := s.Load(ctx, category)
	if err != nil {
		return nil, Machine{}, err
	}
	items, err := s.quotes.ListItems(ctx, quotationID)
	if err != nil {
		return nil, Machine{}, err
	}
	return tmpl, Start(hasItems(items)), nil
}

// ApplyInput drives a full application run.
type ApplyInput struct {
	QuotationID      int64
	Category         string
	Mode             ApplyMode
	SelectedOptional []string
	Confirmed        bool
}

// ApplyResult summarizes what a run materialized.
type ApplyResult struct {
	Mode          ApplyMode
	RoomsApplied  []string
	ItemsCreated  int
	OthersCreated int
}

// Apply walks the machine to completion and materializes the template. Merge
// leaves existing rooms untouched; replace deletes all three item collections
// first and requires explicit confirmation. Applying merge twice in a row is
// a no-op the second time.
func (s *Service) Apply(ctx context.Context, input ApplyInput) (*ApplyResult, error) {
	q, err := s.quotes.GetQuotation(ctx, input.QuotationID)
	if err != nil {
		return nil, err
	}
	if !q.Status.Editable() {
		return nil, shared.ErrQuotationLocked
	}

	tmpl, err := s.Load(ctx, input.Category)
	if err != nil {
		return nil, err
	}
	existing, err := s.quotes.ListItems(ctx, input.QuotationID)
	if err != nil {
		return nil, err
	}

	m := Start(hasItems(existing))
	if m, err = m.Proceed(); err != nil {
		return nil, err
	}
	if m, err = m.SelectRooms(input.SelectedOptional); err != nil {
		return nil, err
	}
	if m.State == StateModeSelect {
		mode := input.Mode
		if mode == "" {
			mode = ModeMerge
		}
		if m, err = m.ChooseMode(mode, input.Confirmed); err != nil {
			return nil, err
		}
	}

	if m.Mode == ModeReplace {
		if err := s.quotes.ClearItems(ctx, input.QuotationID); err != nil {
			return nil, err
		}
		existing = quotes.LineSet{}
	}

	result, err := s.materialize(ctx, input.QuotationID, tmpl, m, existing)
	if err != nil {
		return nil, err
	}
	if _, err := m.Finish(); err != nil {
		return nil, err
	}

	s.metrics.IncTemplateApply(string(m.Mode))
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  shared.ActorFromContext(ctx),
			Action:   AuditTemplateApplied,
			Entity:   "quotation",
			EntityID: fmt.Sprintf("%d", input.QuotationID),
			Meta: map[string]any{
				"category":     tmpl.Category,
				"mode":         string(m.Mode),
				"roomsApplied": result.RoomsApplied,
				"itemsCreated": result.ItemsCreated,
			},
		})
	}
	return result, nil
}

func (s *Service) materialize(ctx context.Context, quotationID int64, tmpl *Template, m Machine, existing quotes.LineSet) (*ApplyResult, error) {
	selected := make(map[string]bool, len(m.SelectedOptional))
	for _, label := range m.SelectedOptional {
		selected[label] = true
	}
	existingRooms := existingRoomLabels(existing)
	existingOthers := existingOtherKinds(existing)

	result := &ApplyResult{Mode: m.Mode}
	for _, room := range tmpl.Rooms {
		if room.Optional && !selected[room.Label] {
			continue
		}
		if existingRooms[room.Label] {
			continue
		}
		for _, item := range room.Items {
			_, err := s.quotes.AddInteriorItem(ctx, quotationID, quotes.InteriorItemInput{
				RoomLabel:     room.Label,
				ItemKey:       item.ItemKey,
				Description:   item.Description,
				CalcMode:      item.CalcMode,
				Length:        item.Length,
				Height:        item.Height,
				Count:         item.Count,
				CoreBrand:     item.CoreBrand,
				FinishBrand:   item.FinishBrand,
				HardwareBrand: item.HardwareBrand,
			})
			if err != nil {
				return nil, fmt.Errorf("materialize %s/%s: %w", room.Label, item.ItemKey, err)
			}
			result.ItemsCreated++
		}
		// False-ceiling defaults go in with blank geometry and pricing; the
		// estimator measures and prices them on site.
		for _, item := range room.FCItems {
			_, err := s.quotes.AddFalseCeilingItem(ctx, quotationID, quotes.FalseCeilingItemInput{
				RoomLabel:   room.Label,
				Description: item.Description,
				CalcMode:    item.CalcMode,
			})
			if err != nil {
				return nil, fmt.Errorf("materialize %s false ceiling: %w", room.Label, err)
			}
			result.ItemsCreated++
		}
		result.RoomsApplied = append(result.RoomsApplied, room.Label)
	}

	for kind, mode := range otherKindModes(tmpl.Others) {
		if existingOthers[kind] {
			continue
		}
		_, err := s.quotes.AddOtherItem(ctx, quotationID, quotes.OtherItemInput{
			Kind:     kind,
			CalcMode: mode,
		})
		if err != nil {
			return nil, fmt.Errorf("materialize other %s: %w", kind, err)
		}
		result.OthersCreated++
	}
	return result, nil
}

// otherKindModes maps enabled template flags to zero-valued items: painting
// scopes start as lump sums, count scopes start at zero count.
func otherKindModes(flags OtherFlags) map[quotes.OtherItemKind]pricing.CalcMode {
	out := make(map[quotes.OtherItemKind]pricing.CalcMode, 4)
	if flags.WallPainting {
		out[quotes.OtherWallPainting] = pricing.CalcLumpSum
	}
	if flags.FCPainting {
		out[quotes.OtherFCPainting] = pricing.CalcLumpSum
	}
	if flags.Lights {
		out[quotes.OtherLights] = pricing.CalcCount
	}
	if flags.FanHooks {
		out[quotes.OtherFanHooks] = pricing.CalcCount
	}
	return out
}

func hasItems(set quotes.LineSet) bool {
	return len(set.Interiors) > 0 || len(set.FalseCeilings) > 0 || len(set.Others) > 0
}

func existingRoomLabels(set quotes.LineSet) map[string]bool {
	labels := make(map[string]bool)
	for _, it := range set.Interiors {
		labels[it.RoomLabel] = true
	}
	for _, it := range set.FalseCeilings {
		labels[it.RoomLabel] = true
	}
	return labels
}

func existingOtherKinds(set quotes.LineSet) map[quotes.OtherItemKind]bool {
	kinds := make(map[quotes.OtherItemKind]bool)
	for _, it := range set.Others {
		kinds[it.Kind] = true
	}
	return kinds
}
