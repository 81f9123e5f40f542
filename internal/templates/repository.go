package templates

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-interiors/meridian-quotes/internal/shared"
)

// Repository provides read-only PostgreSQL access to templates. The engine
// never writes templates; they are maintained out of band.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByCategory loads a template with its rooms and items.
func (r *Repository) GetByCategory(ctx context.Context, category string) (*Template, error) {
	var t Template
	err := r.pool.QueryRow(ctx, `
		SELECT id, category, name, other_wall_painting, other_fc_painting, other_lights, other_fan_hooks
		FROM templates
		WHERE category = $1`, category).Scan(
		&t.ID, &t.Category, &t.Name,
		&t.Others.WallPainting, &t.Others.FCPainting, &t.Others.Lights, &t.Others.FanHooks,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rooms, err := r.listRooms(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	t.Rooms = rooms
	return &t, nil
}

// ListCategories returns the known template categories.
func (r *Repository) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT category FROM templates ORDER BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *Repository) listRooms(ctx context.Context, templateID int64) ([]TemplateRoom, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, template_id, label, optional
		FROM template_rooms
		WHERE template_id = $1
		ORDER BY id`, templateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []TemplateRoom
	for rows.Next() {
		var room TemplateRoom
		if err := rows.Scan(&room.ID, &room.TemplateID, &room.Label, &room.Optional); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range rooms {
		items, err := r.listItems(ctx, rooms[i].ID)
		if err != nil {
			return nil, err
		}
		rooms[i].Items = items

		fcItems, err := r.listFCItems(ctx, rooms[i].ID)
		if err != nil {
			return nil, err
		}
		rooms[i].FCItems = fcItems
	}
	return rooms, nil
}

func (r *Repository) listItems(ctx context.Context, roomID int64) ([]TemplateItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, room_id, item_key, description, calc_mode,
			length, height, count, core_brand, finish_brand, hardware_brand
		FROM template_items
		WHERE room_id = $1
		ORDER BY id`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []TemplateItem
	for rows.Next() {
		var it TemplateItem
		err := rows.Scan(
			&it.ID, &it.RoomID, &it.ItemKey, &it.Description, &it.CalcMode,
			&it.Length, &it.Height, &it.Count, &it.CoreBrand, &it.FinishBrand, &it.HardwareBrand,
		)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *Repository) listFCItems(ctx context.Context, roomID int64) ([]TemplateFCItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, room_id, description, calc_mode
		FROM template_fc_items
		WHERE room_id = $1
		ORDER BY id`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []TemplateFCItem
	for rows.Next() {
		var it TemplateFCItem
		if err := rows.Scan(&it.ID, &it.RoomID, &it.Description, &it.CalcMode); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
