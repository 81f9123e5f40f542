package rules

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads the global rules row.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns the single configured rules row, or defaults when none exists.
func (r *Repository) Get(ctx context.Context) (GlobalRules, error) {
	var (
		rules          GlobalRules
		cityFactors    []byte
		bedroomFactors []byte
	)
	err := r.pool.QueryRow(ctx, `
		SELECT tax_percent, default_build_type, city_factors, bedroom_factors, terms_text
		FROM global_rules
		ORDER BY id DESC
		LIMIT 1`).Scan(&rules.TaxPercent, &rules.DefaultBuildType, &cityFactors, &bedroomFactors, &rules.TermsText)
	if errors.Is(err, pgx.ErrNoRows) {
		return Defaults(), nil
	}
	if err != nil {
		return GlobalRules{}, err
	}
	if len(cityFactors) > 0 {
		if err := json.Unmarshal(cityFactors, &rules.CityFactors); err != nil {
			return GlobalRules{}, err
		}
	}
	if len(bedroomFactors) > 0 {
		if err := json.Unmarshal(bedroomFactors, &rules.BedroomFactors); err != nil {
			return GlobalRules{}, err
		}
	}
	return rules, nil
}
