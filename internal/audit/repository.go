package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads audit_logs. Writes go through shared.AuditLogger; this
// side only ever selects.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Window returns up to limit rows matching the filters, newest first,
// starting at offset.
func (r *Repository) Window(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	query := strings.Builder{}
	query.WriteString(`
		SELECT occurred_at, actor_id, action, entity, entity_id, meta
		FROM audit_logs
		WHERE 1=1`)
	args := []any{}
	argNum := 1

	addFilter := func(clause string, value any) {
		query.WriteString(fmt.Sprintf(clause, argNum))
		args = append(args, value)
		argNum++
	}

	if !filters.From.IsZero() {
		addFilter(" AND occurred_at >= $%d", filters.From)
	}
	if !filters.To.IsZero() {
		addFilter(" AND occurred_at <= $%d", filters.To)
	}
	if filters.ActorID > 0 {
		addFilter(" AND actor_id = $%d", filters.ActorID)
	}
	if filters.Entity != "" {
		addFilter(" AND entity = $%d", filters.Entity)
	}
	if filters.EntityID != "" {
		addFilter(" AND entity_id = $%d", filters.EntityID)
	}
	if filters.Action != "" {
		addFilter(" AND action = $%d", filters.Action)
	}

	query.WriteString(" ORDER BY occurred_at DESC, id DESC")
	addFilter(" OFFSET $%d", offset)
	addFilter(" LIMIT $%d", limit)

	rows, err := r.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TimelineRow
	for rows.Next() {
		var row TimelineRow
		var at time.Time
		var metaJSON []byte
		if err := rows.Scan(&at, &row.ActorID, &row.Action, &row.Entity, &row.EntityID, &metaJSON); err != nil {
			return nil, err
		}
		row.At = at
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &row.Meta); err != nil {
				return nil, fmt.Errorf("audit: decode meta: %w", err)
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
