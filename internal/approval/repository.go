package approval

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-interiors/meridian-quotes/internal/shared"
)

// Repository provides PostgreSQL backed persistence for agreements.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateAgreement inserts the agreement generated at approval.
func (r *Repository) CreateAgreement(ctx context.Context, agreement Agreement) (*Agreement, error) {
	milestonesJSON, err := json.Marshal(agreement.Milestones)
	if err != nil {
		return nil, err
	}
	err = r.pool.QueryRow(ctx, `
		INSERT INTO agreements (ref, quotation_id, total_paise, milestones, terms_text, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at`,
		agreement.Ref, agreement.QuotationID, agreement.TotalPaise, milestonesJSON, agreement.TermsText,
	).Scan(&agreement.ID, &agreement.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &agreement, nil
}

// GetAgreement retrieves an agreement by ID.
func (r *Repository) GetAgreement(ctx context.Context, id int64) (*Agreement, error) {
	var a Agreement
	var milestonesJSON []byte
	err := r.pool.QueryRow(ctx, `
		SELECT id, ref, quotation_id, total_paise, milestones, terms_text, COALESCE(pdf_path, ''), created_at
		FROM agreements
		WHERE id = $1`, id).Scan(
		&a.ID, &a.Ref, &a.QuotationID, &a.TotalPaise, &milestonesJSON, &a.TermsText, &a.PDFPath, &a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(milestonesJSON, &a.Milestones); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAgreementByQuotation retrieves the agreement of a quotation.
func (r *Repository) GetAgreementByQuotation(ctx context.Context, quotationID int64) (*Agreement, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`SELECT id FROM agreements WHERE quotation_id = $1 ORDER BY created_at DESC LIMIT 1`,
		quotationID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.GetAgreement(ctx, id)
}

// SetPDFPath records where the rendered agreement PDF was stored.
func (r *Repository) SetPDFPath(ctx context.Context, id int64, path string) error {
	result, err := r.pool.Exec(ctx, `UPDATE agreements SET pdf_path = $2 WHERE id = $1`, id, path)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
