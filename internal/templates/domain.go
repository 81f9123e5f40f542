// Package templates implements category templates and their application onto
// quotations under merge or replace semantics.
package templates

import (
	"github.com/meridian-interiors/meridian-quotes/internal/pricing"
)

// DefaultCategory is the fallback template category. Category taxonomy can
// lag behind newly introduced project types, so an unknown category resolves
// to this one instead of erroring.
const DefaultCategory = "3BHK"

// Template is a reusable scope blueprint for a project category.
type Template struct {
	ID       int64
	Category string
	Name     string
	Rooms    []TemplateRoom
	Others   OtherFlags
}

// TemplateRoom carries the default items of one room. Optional rooms are only
// materialized when the caller selects them.
type TemplateRoom struct {
	ID         int64
	TemplateID int64
	Label      string
	Optional   bool
	Items      []TemplateItem
	FCItems    []TemplateFCItem
}

// TemplateItem is a default line definition materialized into an interior
// item when its room is applied.
type TemplateItem struct {
	ID            int64
	RoomID        int64
	ItemKey       string
	Description   string
	CalcMode      pricing.CalcMode
	Length        float64
	Height        float64
	Count         float64
	CoreBrand     string
	FinishBrand   string
	HardwareBrand string
}

// TemplateFCItem is a default false-ceiling line. Geometry and pricing are
// left blank on materialization; the estimator fills them in per site.
type TemplateFCItem struct {
	ID          int64
	RoomID      int64
	Description string
	CalcMode    pricing.CalcMode
}

// OtherFlags toggles the template-level "other" scopes. Each enabled flag
// materializes a zero-valued item to be priced afterward.
type OtherFlags struct {
	WallPainting bool
	FCPainting   bool
	Lights       bool
	FanHooks     bool
}

// StandardRooms returns the labels of non-optional rooms.
func (t Template) StandardRooms() []string {
	var out []string
	for _, room := range t.Rooms {
		if !room.Optional {
			out = append(out, room.Label)
		}
	}
	return out
}

// Room looks up a template room by exact label.
func (t Template) Room(label string) (TemplateRoom, bool) {
	for _, room := range t.Rooms {
		if room.Label == label {
			return room, true
		}
	}
	return TemplateRoom{}, false
}
