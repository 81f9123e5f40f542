package audit

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryAuditRepo struct {
	rows []TimelineRow
}

func (r *memoryAuditRepo) Window(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	var matched []TimelineRow
	for _, row := range r.rows {
		if filters.Entity != "" && row.Entity != filters.Entity {
			continue
		}
		if filters.Action != "" && row.Action != filters.Action {
			continue
		}
		if filters.ActorID > 0 && row.ActorID != filters.ActorID {
			continue
		}
		matched = append(matched, row)
	}
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func seedRows(n int, entity string) []TimelineRow {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rows := make([]TimelineRow, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, TimelineRow{
			At:       base.Add(time.Duration(i) * time.Minute),
			ActorID:  7,
			Action:   "quotes.item.created",
			Entity:   entity,
			EntityID: "42",
		})
	}
	return rows
}

func TestTimelinePaging(t *testing.T) {
	repo := &memoryAuditRepo{rows: seedRows(25, "quotation")}
	service := NewService(repo)

	first, err := service.Timeline(context.Background(), TimelineFilters{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, first.Rows, 10)
	require.True(t, first.Paging.HasNext)
	require.Equal(t, 2, first.Paging.NextPage)
	require.Zero(t, first.Paging.PrevPage)

	last, err := service.Timeline(context.Background(), TimelineFilters{Page: 3, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, last.Rows, 5)
	require.False(t, last.Paging.HasNext)
	require.Equal(t, 2, last.Paging.PrevPage)
}

func TestTimelineDefaultsAndCaps(t *testing.T) {
	repo := &memoryAuditRepo{rows: seedRows(120, "quotation")}
	service := NewService(repo)

	defaulted, err := service.Timeline(context.Background(), TimelineFilters{})
	require.NoError(t, err)
	require.Len(t, defaulted.Rows, 20)
	require.Equal(t, 1, defaulted.Paging.Page)

	capped, err := service.Timeline(context.Background(), TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	require.Len(t, capped.Rows, 50)
	require.Equal(t, 50, capped.Paging.PageSize)
}

func TestTimelineFiltersByEntity(t *testing.T) {
	repo := &memoryAuditRepo{rows: append(seedRows(3, "quotation"), seedRows(2, "change_order")...)}
	service := NewService(repo)

	result, err := service.Timeline(context.Background(), TimelineFilters{Entity: "change_order"})
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)
	for _, row := range result.Rows {
		require.Equal(t, "change_order", row.Entity)
	}
}

func TestWriteCSV(t *testing.T) {
	rows := []TimelineRow{
		{
			At:       time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			ActorID:  7,
			Action:   "quotes.discount.changed",
			Entity:   "quotation",
			EntityID: "42",
			Meta:     map[string]any{"after": map[string]any{"discountValue": 5}},
		},
	}
	payload, err := WriteCSV(rows)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(payload)), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "at,actor_id,action,entity,entity_id,meta", lines[0])
	require.Contains(t, lines[1], "2026-03-01T10:00:00Z")
	require.Contains(t, lines[1], "quotes.discount.changed")
	require.Contains(t, lines[1], "discountValue")
}

func TestTimelineWithoutRepository(t *testing.T) {
	service := NewService(nil)
	_, err := service.Timeline(context.Background(), TimelineFilters{})
	require.Error(t, err)
	_, err = service.Export(context.Background(), TimelineFilters{})
	require.Error(t, err)
}
