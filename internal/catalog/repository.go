package catalog

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-interiors/meridian-quotes/internal/pricing"
)

// Repository provides PostgreSQL backed reads of the catalog tables.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListEntries returns all active rate catalog entries.
func (r *Repository) ListEntries(ctx context.Context) ([]RateCatalogEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, item_key, name, category, locked_unit, handmade_rate, factory_rate
		FROM rate_catalog_entries
		WHERE active
		ORDER BY item_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []RateCatalogEntry
	for rows.Next() {
		var e RateCatalogEntry
		var locked *string
		if err := rows.Scan(&e.ID, &e.ItemKey, &e.Name, &e.Category, &locked, &e.HandmadeRate, &e.FactoryRate); err != nil {
			return nil, err
		}
		if locked != nil {
			u := Unit(*locked)
			e.LockedUnit = &u
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListAdjustments returns all active brand adjustments.
func (r *Repository) ListAdjustments(ctx context.Context) ([]BrandAdjustment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, kind, brand, adder
		FROM brand_adjustments
		WHERE active
		ORDER BY kind, brand`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var adjustments []BrandAdjustment
	for rows.Next() {
		var a BrandAdjustment
		var kind string
		if err := rows.Scan(&a.ID, &kind, &a.Brand, &a.Adder); err != nil {
			return nil, err
		}
		a.Kind = pricing.AdderKind(kind)
		adjustments = append(adjustments, a)
	}
	return adjustments, rows.Err()
}
