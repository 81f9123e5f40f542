package approval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/meridian-interiors/meridian-quotes/internal/catalog"
	"github.com/meridian-interiors/meridian-quotes/internal/observability"
	"github.com/meridian-interiors/meridian-quotes/internal/pricing"
	"github.com/meridian-interiors/meridian-quotes/internal/quotes"
	"github.com/meridian-interiors/meridian-quotes/internal/rules"
	"github.com/meridian-interiors/meridian-quotes/internal/shared"
)

// AuditApproved is emitted once per completed approval.
const AuditApproved = "approval.approved"

const approvalLockTTL = 30 * time.Second

// QuotationGateway is the slice of the quotes service approval drives.
type QuotationGateway interface {
	GetQuotation(ctx context.Context, id int64) (*quotes.Quotation, error)
	Recompute(ctx context.Context, quotationID int64) (pricing.Allocation, error)
	LiveTotals(ctx context.Context, quotationID int64) (pricing.Allocation, pricing.Subtotals, error)
}

// SnapshotStore persists the frozen snapshot and approval marks on the
// quotation row.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, id int64, snapshot []byte, approvedBy int64) error
}

// AgreementStore persists generated agreements.
type AgreementStore interface {
	CreateAgreement(ctx context.Context, agreement Agreement) (*Agreement, error)
	GetAgreementByQuotation(ctx context.Context, quotationID int64) (*Agreement, error)
}

// CatalogLoader loads the currently effective catalog view.
type CatalogLoader interface {
	Load(ctx context.Context) (*catalog.View, error)
}

// RulesProvider serves the currently effective global rules.
type RulesProvider interface {
	Current(ctx context.Context) (rules.GlobalRules, error)
}

// ApprovalSink records approval history entries.
type ApprovalSink interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
}

// RenderDispatcher enqueues asynchronous agreement PDF rendering.
type RenderDispatcher interface {
	DispatchAgreementRender(ctx context.Context, agreementID int64) error
}

// Service orchestrates quotation approval.
type Service struct {
	quotes     QuotationGateway
	snapshots  SnapshotStore
	agreements AgreementStore
	catalog    CatalogLoader
	rules      RulesProvider
	approvals  ApprovalSink
	audit      shared.AuditSink
	redis      *redis.Client
	dispatcher RenderDispatcher
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewService builds Service instance. The redis client and dispatcher are
// optional; without them approval runs unlocked and skips PDF dispatch.
func NewService(
	gateway QuotationGateway,
	snapshots SnapshotStore,
	agreements AgreementStore,
	catalogLoader CatalogLoader,
	rulesProvider RulesProvider,
	approvals ApprovalSink,
	audit shared.AuditSink,
	redisClient *redis.Client,
	dispatcher RenderDispatcher,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Service {
	return &Service{
		quotes:     gateway,
		snapshots:  snapshots,
		agreements: agreements,
		catalog:    catalogLoader,
		rules:      rulesProvider,
		approvals:  approvals,
		audit:      audit,
		redis:      redisClient,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
	}
}

// Approve runs the full approval sequence: final recompute, snapshot freeze,
// agreement generation, approval record, audit, then async PDF dispatch. If
// the catalog cannot be loaded the operation aborts before anything is
// written and the quotation stays in its prior state. If a prior run froze
// the snapshot but the agreement write failed, re-running Approve finishes
// the agreement from the frozen figures.
func (s *Service) Approve(ctx context.Context, quotationID, actorID int64, note string) (*Agreement, error) {
	if actorID == 0 {
		return nil, fmt.Errorf("%w: approving actor required", shared.ErrValidation)
	}

	unlock, err := s.acquireLock(ctx, quotationID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	q, err := s.quotes.GetQuotation(ctx, quotationID)
	if err != nil {
		return nil, err
	}
	if !q.Status.Approvable() {
		if q.Status == quotes.StatusApproved && len(q.Snapshot) > 0 {
			_, agErr := s.agreements.GetAgreementByQuotation(ctx, q.ID)
			if errors.Is(agErr, shared.ErrNotFound) {
				return s.resumeApproval(ctx, q)
			}
			if agErr != nil {
				return nil, agErr
			}
		}
		return nil, quotes.ErrInvalidStatus
	}

	// A snapshot built from a partial catalog would freeze wrong figures,
	// so the catalog is loaded before any state is written.
	view, err := s.catalog.Load(ctx)
	if err != nil {
		return nil, err
	}
	current, err := s.rules.Current(ctx)
	if err != nil {
		return nil, err
	}

	allocation, err := s.quotes.Recompute(ctx, quotationID)
	if err != nil {
		return nil, err
	}
	_, subtotals, err := s.quotes.LiveTotals(ctx, quotationID)
	if err != nil {
		return nil, err
	}

	snapshot := buildSnapshot(q, view, current, subtotals, allocation)
	snapshotJSON, err := json.Marshal(snapshot)
	if err != nil {
		return nil, err
	}
	if err := s.snapshots.SaveSnapshot(ctx, quotationID, snapshotJSON, actorID); err != nil {
		return nil, err
	}

	totalPaise := Paise(allocation.Grand.Total)
	agreement, err := s.agreements.CreateAgreement(ctx, Agreement{
		Ref:         uuid.New(),
		QuotationID: quotationID,
		TotalPaise:  totalPaise,
		Milestones:  BuildMilestones(totalPaise),
		TermsText:   current.TermsText,
	})
	if err != nil {
		return nil, err
	}

	if s.approvals != nil {
		if err := s.approvals.Record(ctx, shared.ApprovalLog{
			Module:  "quotation",
			RefID:   q.Ref,
			ActorID: actorID,
			Action:  shared.ApprovalApprove,
			Note:    note,
		}); err != nil {
			s.logger.Warn("record approval entry", slog.Any("error", err))
		}
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   AuditApproved,
			Entity:   "quotation",
			EntityID: fmt.Sprintf("%d", quotationID),
			Meta: map[string]any{
				"grandTotal":  allocation.Grand.Total,
				"agreementId": agreement.ID,
			},
		})
	}
	s.metrics.IncApproval()

	if s.dispatcher != nil {
		if err := s.dispatcher.DispatchAgreementRender(ctx, agreement.ID); err != nil {
			// The agreement exists and can be re-rendered on demand.
			s.logger.Warn("dispatch agreement render", slog.Any("error", err), slog.Int64("agreementId", agreement.ID))
		}
	}
	return agreement, nil
}

// resumeApproval finishes an approval whose agreement write failed after the
// snapshot had already been frozen. Figures come from the snapshot, never a
// live recompute.
func (s *Service) resumeApproval(ctx context.Context, q *quotes.Quotation) (*Agreement, error) {
	var snapshot Snapshot
	if err := json.Unmarshal(q.Snapshot, &snapshot); err != nil {
		return nil, err
	}

	totalPaise := Paise(snapshot.Allocation.Grand.Total)
	agreement, err := s.agreements.CreateAgreement(ctx, Agreement{
		Ref:         uuid.New(),
		QuotationID: q.ID,
		TotalPaise:  totalPaise,
		Milestones:  BuildMilestones(totalPaise),
		TermsText:   snapshot.TermsText,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("resumed approval agreement",
		slog.Int64("quotationId", q.ID), slog.Int64("agreementId", agreement.ID))

	if s.dispatcher != nil {
		if err := s.dispatcher.DispatchAgreementRender(ctx, agreement.ID); err != nil {
			s.logger.Warn("dispatch agreement render", slog.Any("error", err), slog.Int64("agreementId", agreement.ID))
		}
	}
	return agreement, nil
}

func buildSnapshot(q *quotes.Quotation, view *catalog.View, current rules.GlobalRules, subtotals pricing.Subtotals, allocation pricing.Allocation) Snapshot {
	rates := make(map[string]SnapshotRate)
	for key, entry := range view.Entries() {
		rate := SnapshotRate{
			ItemKey:      key,
			HandmadeRate: entry.HandmadeRate,
			FactoryRate:  entry.FactoryRate,
		}
		if entry.LockedUnit != nil {
			rate.LockedUnit = string(*entry.LockedUnit)
		}
		rates[key] = rate
	}
	return Snapshot{
		TakenAt:       time.Now(),
		TaxPercent:    current.TaxPercent,
		BuildType:     q.BuildType,
		DiscountType:  q.DiscountType,
		DiscountValue: q.DiscountValue,
		Rates:         rates,
		Adders:        view.Adders(),
		Subtotals:     subtotals,
		Allocation:    allocation,
		TermsText:     current.TermsText,
	}
}

// FrozenTotals reads the allocation captured at approval. Presentation
// surfaces showing historical figures must use this, never a live recompute.
func (s *Service) FrozenTotals(ctx context.Context, quotationID int64) (*Snapshot, error) {
	q, err := s.quotes.GetQuotation(ctx, quotationID)
	if err != nil {
		return nil, err
	}
	if len(q.Snapshot) == 0 {
		return nil, fmt.Errorf("%w: quotation has no approval snapshot", shared.ErrNotFound)
	}
	var snapshot Snapshot
	if err := json.Unmarshal(q.Snapshot, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// Agreement returns the agreement generated for a quotation.
func (s *Service) Agreement(ctx context.Context, quotationID int64) (*Agreement, error) {
	return s.agreements.GetAgreementByQuotation(ctx, quotationID)
}

// acquireLock takes the short per-quotation approval lock. Without a redis
// client the sequence runs unlocked.
func (s *Service) acquireLock(ctx context.Context, quotationID int64) (func(), error) {
	if s.redis == nil {
		return func() {}, nil
	}
	key := shared.QuotationLockKey(quotationID)
	ok, err := s.redis.SetNX(ctx, key, time.Now().UnixNano(), approvalLockTTL).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: approval already in progress", shared.ErrValidation)
	}
	return func() {
		if err := s.redis.Del(context.WithoutCancel(ctx), key).Err(); err != nil {
			s.logger.Warn("release approval lock", slog.Any("error", err))
		}
	}, nil
}
