package quotes

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-interiors/meridian-quotes/internal/platform/db"
	"github.com/meridian-interiors/meridian-quotes/internal/pricing"
	"github.com/meridian-interiors/meridian-quotes/internal/shared"
)

// Repository provides PostgreSQL backed persistence for quotations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateQuotation inserts a draft quotation.
func (r *Repository) CreateQuotation(ctx context.Context, input CreateQuotationInput) (*Quotation, error) {
	query := `
		INSERT INTO quotations (
			ref, project_name, client_name, city, category, build_type,
			status, discount_type, discount_value, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, 'DRAFT', $7, $8, $9, NOW(), NOW())
		RETURNING id, created_at, updated_at`

	var createdBy pgtype.Int8
	if input.CreatedBy > 0 {
		createdBy = pgtype.Int8{Int64: input.CreatedBy, Valid: true}
	}

	var q Quotation
	err := r.pool.QueryRow(ctx, query,
		input.Ref,
		input.ProjectName,
		input.ClientName,
		input.City,
		input.Category,
		string(input.BuildType),
		string(input.DiscountType),
		input.DiscountValue,
		createdBy,
	).Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, err
	}

	q.Ref = input.Ref
	q.ProjectName = input.ProjectName
	q.ClientName = input.ClientName
	q.City = input.City
	q.Category = input.Category
	q.BuildType = input.BuildType
	q.Status = StatusDraft
	q.DiscountType = input.DiscountType
	q.DiscountValue = input.DiscountValue
	q.CreatedBy = input.CreatedBy

	return &q, nil
}

// GetQuotation retrieves a quotation by ID.
func (r *Repository) GetQuotation(ctx context.Context, id int64) (*Quotation, error) {
	query := `
		SELECT id, ref, project_name, client_name, city, category, build_type,
			status, discount_type, discount_value,
			interiors_subtotal, fc_subtotal, grand_subtotal, totals_updated_at,
			snapshot, client_signed_at, company_signed_at, signoff_token_hash,
			approved_at, approved_by, created_by, created_at, updated_at
		FROM quotations
		WHERE id = $1`

	var q Quotation
	var totalsUpdatedAt, clientSignedAt, companySignedAt, approvedAt pgtype.Timestamptz
	var approvedBy, createdBy pgtype.Int8
	var tokenHash pgtype.Text

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&q.ID, &q.Ref, &q.ProjectName, &q.ClientName, &q.City, &q.Category, &q.BuildType,
		&q.Status, &q.DiscountType, &q.DiscountValue,
		&q.Totals.InteriorsSubtotal, &q.Totals.FCSubtotal, &q.Totals.GrandSubtotal, &totalsUpdatedAt,
		&q.Snapshot, &clientSignedAt, &companySignedAt, &tokenHash,
		&approvedAt, &approvedBy, &createdBy, &q.CreatedAt, &q.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if totalsUpdatedAt.Valid {
		q.Totals.UpdatedAt = totalsUpdatedAt.Time
	}
	if clientSignedAt.Valid {
		q.Signoff.ClientSignedAt = &clientSignedAt.Time
	}
	if companySignedAt.Valid {
		q.Signoff.CompanySignedAt = &companySignedAt.Time
	}
	if tokenHash.Valid {
		q.Signoff.TokenHash = tokenHash.String
	}
	if approvedAt.Valid {
		q.ApprovedAt = &approvedAt.Time
	}
	if approvedBy.Valid {
		q.ApprovedBy = &approvedBy.Int64
	}
	q.CreatedBy = createdBy.Int64

	return &q, nil
}

// GetQuotationByRef retrieves a quotation by its public reference.
func (r *Repository) GetQuotationByRef(ctx context.Context, ref string) (*Quotation, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `SELECT id FROM quotations WHERE ref = $1`, ref).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.GetQuotation(ctx, id)
}

// ListQuotationsRequest filters ListQuotations.
type ListQuotationsRequest struct {
	Status QuotationStatus
	City   string
	Limit  int
	Offset int
}

// ListQuotations returns quotations with optional filtering, newest first.
func (r *Repository) ListQuotations(ctx context.Context, req ListQuotationsRequest) ([]Quotation, error) {
	query := `
		SELECT id, ref, project_name, client_name, city, category, build_type,
			status, discount_type, discount_value,
			interiors_subtotal, fc_subtotal, grand_subtotal,
			created_at, updated_at
		FROM quotations
		WHERE 1=1`

	args := []any{}
	argNum := 1

	if req.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(req.Status))
		argNum++
	}
	if req.City != "" {
		query += fmt.Sprintf(" AND city = $%d", argNum)
		args = append(args, req.City)
		argNum++
	}

	query += " ORDER BY created_at DESC"

	if req.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, req.Limit)
		argNum++
	}
	if req.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, req.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quotations []Quotation
	for rows.Next() {
		var q Quotation
		err := rows.Scan(
			&q.ID, &q.Ref, &q.ProjectName, &q.ClientName, &q.City, &q.Category, &q.BuildType,
			&q.Status, &q.DiscountType, &q.DiscountValue,
			&q.Totals.InteriorsSubtotal, &q.Totals.FCSubtotal, &q.Totals.GrandSubtotal,
			&q.CreatedAt, &q.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		quotations = append(quotations, q)
	}
	return quotations, rows.Err()
}

// UpdateQuotationStatus moves a quotation to the given status.
func (r *Repository) UpdateQuotationStatus(ctx context.Context, id int64, status QuotationStatus) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE quotations SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, string(status))
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetDiscount stores the quotation-level discount.
func (r *Repository) SetDiscount(ctx context.Context, id int64, discountType pricing.DiscountType, value float64) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE quotations SET discount_type = $2, discount_value = $3, updated_at = NOW() WHERE id = $1`,
		id, string(discountType), value)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SaveTotals stores the recomputed cached aggregate.
func (r *Repository) SaveTotals(ctx context.Context, id int64, totals Totals) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE quotations
		SET interiors_subtotal = $2, fc_subtotal = $3, grand_subtotal = $4,
			totals_updated_at = $5, updated_at = NOW()
		WHERE id = $1`,
		id, totals.InteriorsSubtotal, totals.FCSubtotal, totals.GrandSubtotal, totals.UpdatedAt)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SaveSignoff stores signature state.
func (r *Repository) SaveSignoff(ctx context.Context, id int64, signoff Signoff) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE quotations
		SET client_signed_at = $2, company_signed_at = $3, signoff_token_hash = $4, updated_at = NOW()
		WHERE id = $1`,
		id, signoff.ClientSignedAt, signoff.CompanySignedAt, signoff.TokenHash)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SaveSnapshot stores the frozen approval snapshot and approval marks.
func (r *Repository) SaveSnapshot(ctx context.Context, id int64, snapshot []byte, approvedBy int64) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE quotations
		SET snapshot = $2, status = 'APPROVED', approved_at = NOW(), approved_by = $3, updated_at = NOW()
		WHERE id = $1`,
		id, snapshot, approvedBy)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListItems loads the three line-item collections in parallel.
func (r *Repository) ListItems(ctx context.Context, quotationID int64) (LineSet, error) {
	var set LineSet
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := r.listInteriorItems(gctx, quotationID)
		set.Interiors = items
		return err
	})
	g.Go(func() error {
		items, err := r.listFalseCeilingItems(gctx, quotationID)
		set.FalseCeilings = items
		return err
	})
	g.Go(func() error {
		items, err := r.listOtherItems(gctx, quotationID)
		set.Others = items
		return err
	})
	if err := g.Wait(); err != nil {
		return LineSet{}, err
	}
	return set, nil
}

// --- Interior Items ---

// GetInteriorItem retrieves an interior line by ID.
func (r *Repository) GetInteriorItem(ctx context.Context, id int64) (*InteriorItem, error) {
	query := `
		SELECT id, quotation_id, room_label, item_key, description, calc_mode,
			length, height, count, core_brand, finish_brand, hardware_brand,
			unit_price, total_price, rate_auto, rate_override, is_rate_overridden,
			created_at, updated_at
		FROM interior_items
		WHERE id = $1`

	var it InteriorItem
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&it.ID, &it.QuotationID, &it.RoomLabel, &it.ItemKey, &it.Description, &it.CalcMode,
		&it.Length, &it.Height, &it.Count, &it.CoreBrand, &it.FinishBrand, &it.HardwareBrand,
		&it.UnitPrice, &it.TotalPrice, &it.Rate.RateAuto, &it.Rate.RateOverride, &it.Rate.IsRateOverridden,
		&it.CreatedAt, &it.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// CreateInteriorItem inserts an interior line.
func (r *Repository) CreateInteriorItem(ctx context.Context, item InteriorItem) (*InteriorItem, error) {
	query := `
		INSERT INTO interior_items (
			quotation_id, room_label, item_key, description, calc_mode,
			length, height, count, core_brand, finish_brand, hardware_brand,
			unit_price, total_price, rate_auto, rate_override, is_rate_overridden,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW(), NOW())
		RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		item.QuotationID, item.RoomLabel, item.ItemKey, item.Description, string(item.CalcMode),
		item.Length, item.Height, item.Count, item.CoreBrand, item.FinishBrand, item.HardwareBrand,
		item.UnitPrice, item.TotalPrice, item.Rate.RateAuto, item.Rate.RateOverride, item.Rate.IsRateOverridden,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateInteriorItem updates an interior line in place.
func (r *Repository) UpdateInteriorItem(ctx context.Context, item InteriorItem) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE interior_items
		SET room_label = $2, item_key = $3, description = $4, calc_mode = $5,
			length = $6, height = $7, count = $8,
			core_brand = $9, finish_brand = $10, hardware_brand = $11,
			unit_price = $12, total_price = $13,
			rate_auto = $14, rate_override = $15, is_rate_overridden = $16,
			updated_at = NOW()
		WHERE id = $1`,
		item.ID, item.RoomLabel, item.ItemKey, item.Description, string(item.CalcMode),
		item.Length, item.Height, item.Count,
		item.CoreBrand, item.FinishBrand, item.HardwareBrand,
		item.UnitPrice, item.TotalPrice,
		item.Rate.RateAuto, item.Rate.RateOverride, item.Rate.IsRateOverridden)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeleteInteriorItem removes an interior line.
func (r *Repository) DeleteInteriorItem(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM interior_items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *Repository) listInteriorItems(ctx context.Context, quotationID int64) ([]InteriorItem, error) {
	query := `
		SELECT id, quotation_id, room_label, item_key, description, calc_mode,
			length, height, count, core_brand, finish_brand, hardware_brand,
			unit_price, total_price, rate_auto, rate_override, is_rate_overridden,
			created_at, updated_at
		FROM interior_items
		WHERE quotation_id = $1
		ORDER BY id`

	rows, err := r.pool.Query(ctx, query, quotationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []InteriorItem
	for rows.Next() {
		var it InteriorItem
		err := rows.Scan(
			&it.ID, &it.QuotationID, &it.RoomLabel, &it.ItemKey, &it.Description, &it.CalcMode,
			&it.Length, &it.Height, &it.Count, &it.CoreBrand, &it.FinishBrand, &it.HardwareBrand,
			&it.UnitPrice, &it.TotalPrice, &it.Rate.RateAuto, &it.Rate.RateOverride, &it.Rate.IsRateOverridden,
			&it.CreatedAt, &it.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// --- False Ceiling Items ---

// GetFalseCeilingItem retrieves a false-ceiling line by ID.
func (r *Repository) GetFalseCeilingItem(ctx context.Context, id int64) (*FalseCeilingItem, error) {
	query := `
		SELECT id, quotation_id, room_label, description, calc_mode,
			length, height, count, unit_price, total_price, created_at, updated_at
		FROM false_ceiling_items
		WHERE id = $1`

	var it FalseCeilingItem
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&it.ID, &it.QuotationID, &it.RoomLabel, &it.Description, &it.CalcMode,
		&it.Length, &it.Height, &it.Count, &it.UnitPrice, &it.TotalPrice, &it.CreatedAt, &it.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// CreateFalseCeilingItem inserts a false-ceiling line.
func (r *Repository) CreateFalseCeilingItem(ctx context.Context, item FalseCeilingItem) (*FalseCeilingItem, error) {
	query := `
		INSERT INTO false_ceiling_items (
			quotation_id, room_label, description, calc_mode,
			length, height, count, unit_price, total_price, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		item.QuotationID, item.RoomLabel, item.Description, string(item.CalcMode),
		item.Length, item.Height, item.Count, item.UnitPrice, item.TotalPrice,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateFalseCeilingItem updates a false-ceiling line in place.
func (r *Repository) UpdateFalseCeilingItem(ctx context.Context, item FalseCeilingItem) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE false_ceiling_items
		SET room_label = $2, description = $3, calc_mode = $4,
			length = $5, height = $6, count = $7,
			unit_price = $8, total_price = $9, updated_at = NOW()
		WHERE id = $1`,
		item.ID, item.RoomLabel, item.Description, string(item.CalcMode),
		item.Length, item.Height, item.Count, item.UnitPrice, item.TotalPrice)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeleteFalseCeilingItem removes a false-ceiling line.
func (r *Repository) DeleteFalseCeilingItem(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM false_ceiling_items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *Repository) listFalseCeilingItems(ctx context.Context, quotationID int64) ([]FalseCeilingItem, error) {
	query := `
		SELECT id, quotation_id, room_label, description, calc_mode,
			length, height, count, unit_price, total_price, created_at, updated_at
		FROM false_ceiling_items
		WHERE quotation_id = $1
		ORDER BY id`

	rows, err := r.pool.Query(ctx, query, quotationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []FalseCeilingItem
	for rows.Next() {
		var it FalseCeilingItem
		err := rows.Scan(
			&it.ID, &it.QuotationID, &it.RoomLabel, &it.Description, &it.CalcMode,
			&it.Length, &it.Height, &it.Count, &it.UnitPrice, &it.TotalPrice, &it.CreatedAt, &it.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// --- Other Items ---

// GetOtherItem retrieves an "other" line by ID.
func (r *Repository) GetOtherItem(ctx context.Context, id int64) (*OtherItem, error) {
	query := `
		SELECT id, quotation_id, kind, description, calc_mode,
			count, unit_price, total_price, created_at, updated_at
		FROM other_items
		WHERE id = $1`

	var it OtherItem
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&it.ID, &it.QuotationID, &it.Kind, &it.Description, &it.CalcMode,
		&it.Count, &it.UnitPrice, &it.TotalPrice, &it.CreatedAt, &it.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// CreateOtherItem inserts an "other" line.
func (r *Repository) CreateOtherItem(ctx context.Context, item OtherItem) (*OtherItem, error) {
	query := `
		INSERT INTO other_items (
			quotation_id, kind, description, calc_mode,
			count, unit_price, total_price, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		item.QuotationID, string(item.Kind), item.Description, string(item.CalcMode),
		item.Count, item.UnitPrice, item.TotalPrice,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateOtherItem updates an "other" line in place.
func (r *Repository) UpdateOtherItem(ctx context.Context, item OtherItem) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE other_items
		SET kind = $2, description = $3, calc_mode = $4,
			count = $5, unit_price = $6, total_price = $7, updated_at = NOW()
		WHERE id = $1`,
		item.ID, string(item.Kind), item.Description, string(item.CalcMode),
		item.Count, item.UnitPrice, item.TotalPrice)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeleteOtherItem removes an "other" line.
func (r *Repository) DeleteOtherItem(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM other_items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *Repository) listOtherItems(ctx context.Context, quotationID int64) ([]OtherItem, error) {
	query := `
		SELECT id, quotation_id, kind, description, calc_mode,
			count, unit_price, total_price, created_at, updated_at
		FROM other_items
		WHERE quotation_id = $1
		ORDER BY id`

	rows, err := r.pool.Query(ctx, query, quotationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OtherItem
	for rows.Next() {
		var it OtherItem
		err := rows.Scan(
			&it.ID, &it.QuotationID, &it.Kind, &it.Description, &it.CalcMode,
			&it.Count, &it.UnitPrice, &it.TotalPrice, &it.CreatedAt, &it.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// DeleteAllItems removes every line item of a quotation. Used by the
// template "replace" mode.
func (r *Repository) DeleteAllItems(ctx context.Context, quotationID int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, table := range []string{"interior_items", "false_ceiling_items", "other_items"} {
			if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE quotation_id = $1`, quotationID); err != nil {
				return err
			}
		}
		return nil
	})
}
