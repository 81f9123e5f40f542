package changeorders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-interiors/meridian-quotes/internal/platform/db"
	"github.com/meridian-interiors/meridian-quotes/internal/shared"
)

// Repository provides PostgreSQL backed persistence for change orders.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a draft change order.
func (r *Repository) Create(ctx context.Context, co ChangeOrder) (*ChangeOrder, error) {
	var createdBy pgtype.Int8
	if co.CreatedBy > 0 {
		createdBy = pgtype.Int8{Int64: co.CreatedBy, Valid: true}
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO change_orders (
			ref, quotation_id, title, status, discount_type, discount_value,
			created_by, created_at, updated_at
		) VALUES ($1, $2, $3, 'DRAFT', $4, $5, $6, NOW(), NOW())
		RETURNING id, created_at, updated_at`,
		co.Ref, co.QuotationID, co.Title, string(co.DiscountType), co.DiscountValue, createdBy,
	).Scan(&co.ID, &co.CreatedAt, &co.UpdatedAt)
	if err != nil {
		return nil, err
	}
	co.Status = StatusDraft
	return &co, nil
}

// Get retrieves a change order by ID.
func (r *Repository) Get(ctx context.Context, id int64) (*ChangeOrder, error) {
	var co ChangeOrder
	var approvedAt, totalsUpdatedAt pgtype.Timestamptz
	var approvedBy, createdBy pgtype.Int8

	err := r.pool.QueryRow(ctx, `
		SELECT id, ref, quotation_id, title, status, discount_type, discount_value,
			interiors_subtotal, fc_subtotal, grand_total, totals_updated_at,
			approved_at, approved_by, created_by, created_at, updated_at
		FROM change_orders
		WHERE id = $1`, id).Scan(
		&co.ID, &co.Ref, &co.QuotationID, &co.Title, &co.Status, &co.DiscountType, &co.DiscountValue,
		&co.Totals.InteriorsSubtotal, &co.Totals.FCSubtotal, &co.Totals.GrandTotal, &totalsUpdatedAt,
		&approvedAt, &approvedBy, &createdBy, &co.CreatedAt, &co.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if totalsUpdatedAt.Valid {
		co.Totals.UpdatedAt = totalsUpdatedAt.Time
	}
	if approvedAt.Valid {
		co.ApprovedAt = &approvedAt.Time
	}
	if approvedBy.Valid {
		co.ApprovedBy = &approvedBy.Int64
	}
	co.CreatedBy = createdBy.Int64
	return &co, nil
}

// ListByQuotation returns a quotation's change orders, oldest first.
func (r *Repository) ListByQuotation(ctx context.Context, quotationID int64) ([]ChangeOrder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, ref, quotation_id, title, status, discount_type, discount_value,
			interiors_subtotal, fc_subtotal, grand_total,
			created_at, updated_at
		FROM change_orders
		WHERE quotation_id = $1
		ORDER BY id`, quotationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []ChangeOrder
	for rows.Next() {
		var co ChangeOrder
		err := rows.Scan(
			&co.ID, &co.Ref, &co.QuotationID, &co.Title, &co.Status, &co.DiscountType, &co.DiscountValue,
			&co.Totals.InteriorsSubtotal, &co.Totals.FCSubtotal, &co.Totals.GrandTotal,
			&co.CreatedAt, &co.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		orders = append(orders, co)
	}
	return orders, rows.Err()
}

// UpdateStatus moves a change order to the given status. Approvals also stamp
// the actor.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status ChangeOrderStatus, actorID int64) error {
	query := `UPDATE change_orders SET status = $2, updated_at = NOW() WHERE id = $1`
	args := []any{id, string(status)}
	if status == StatusApproved {
		query = `
			UPDATE change_orders
			SET status = $2, approved_at = NOW(), approved_by = $3, updated_at = NOW()
			WHERE id = $1`
		args = append(args, actorID)
	}
	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetDiscount stores the change-order discount.
func (r *Repository) SetDiscount(ctx context.Context, id int64, discountType string, value float64) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE change_orders SET discount_type = $2, discount_value = $3, updated_at = NOW() WHERE id = $1`,
		id, discountType, value)
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
		UPDATE change_orders
		SET interiors_subtotal = $2, fc_subtotal = $3, grand_total = $4,
			totals_updated_at = $5, updated_at = NOW()
		WHERE id = $1`,
		id, totals.InteriorsSubtotal, totals.FCSubtotal, totals.GrandTotal, totals.UpdatedAt)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes a change order and its items. The parent quotation's own
// totals are never touched.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM change_order_items WHERE change_order_id = $1`, id); err != nil {
			return err
		}
		result, err := tx.Exec(ctx, `DELETE FROM change_orders WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// SumApprovedGrandTotals sums the grand totals of a quotation's approved
// change orders.
func (r *Repository) SumApprovedGrandTotals(ctx context.Context, quotationID int64) (float64, error) {
	var sum float64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(grand_total), 0)
		FROM change_orders
		WHERE quotation_id = $1 AND status = 'APPROVED'`, quotationID).Scan(&sum)
	return sum, err
}

// --- Items ---

// GetItem retrieves an item by ID.
func (r *Repository) GetItem(ctx context.Context, id int64) (*Item, error) {
	var it Item
	err := r.pool.QueryRow(ctx, `
		SELECT id, change_order_id, room_label, partition, change_type, description,
			calc_mode, length, height, count, unit_price, total_price, created_at, updated_at
		FROM change_order_items
		WHERE id = $1`, id).Scan(
		&it.ID, &it.ChangeOrderID, &it.RoomLabel, &it.Partition, &it.ChangeType, &it.Description,
		&it.CalcMode, &it.Length, &it.Height, &it.Count, &it.UnitPrice, &it.TotalPrice, &it.CreatedAt, &it.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// CreateItem inserts a change order item.
func (r *Repository) CreateItem(ctx context.Context, item Item) (*Item, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO change_order_items (
			change_order_id, room_label, partition, change_type, description,
			calc_mode, length, height, count, unit_price, total_price, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		RETURNING id, created_at, updated_at`,
		item.ChangeOrderID, item.RoomLabel, string(item.Partition), string(item.ChangeType), item.Description,
		string(item.CalcMode), item.Length, item.Height, item.Count, item.UnitPrice, item.TotalPrice,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateItem updates an item in place.
func (r *Repository) UpdateItem(ctx context.Context, item Item) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE change_order_items
		SET room_label = $2, partition = $3, change_type = $4, description = $5,
			calc_mode = $6, length = $7, height = $8, count = $9,
			unit_price = $10, total_price = $11, updated_at = NOW()
		WHERE id = $1`,
		item.ID, item.RoomLabel, string(item.Partition), string(item.ChangeType), item.Description,
		string(item.CalcMode), item.Length, item.Height, item.Count, item.UnitPrice, item.TotalPrice)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeleteItem removes an item.
func (r *Repository) DeleteItem(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM change_order_items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListItems returns the items of a change order.
func (r *Repository) ListItems(ctx context.Context, changeOrderID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, change_order_id, room_label, partition, change_type, description,
			calc_mode, length, height, count, unit_price, total_price, created_at, updated_at
		FROM change_order_items
		WHERE change_order_id = $1
		ORDER BY id`, changeOrderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		err := rows.Scan(
			&it.ID, &it.ChangeOrderID, &it.RoomLabel, &it.Partition, &it.ChangeType, &it.Description,
			&it.CalcMode, &it.Length, &it.Height, &it.Count, &it.UnitPrice, &it.TotalPrice, &it.CreatedAt, &it.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
