// Package quotes implements the quotation lifecycle and line-item pricing
// operations of the engine.
package quotes

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-interiors/meridian-quotes/internal/pricing"
)

// QuotationStatus enumerates quotation statuses.
type QuotationStatus string

const (
	StatusDraft     QuotationStatus = "DRAFT"
	StatusSent      QuotationStatus = "SENT"
	StatusAccepted  QuotationStatus = "ACCEPTED"
	StatusApproved  QuotationStatus = "APPROVED"
	StatusRejected  QuotationStatus = "REJECTED"
	StatusCancelled QuotationStatus = "CANCELLED"
)

// Editable reports whether direct line-item edits are still allowed. Once a
// quotation reaches a terminal state, changes go through a change order.
func (s QuotationStatus) Editable() bool {
	return s == StatusDraft || s == StatusSent
}

// Approvable reports whether the quotation can transition to APPROVED.
func (s QuotationStatus) Approvable() bool {
	return s == StatusDraft || s == StatusSent
}

// Revisable reports whether change orders may be created against the
// quotation.
func (s QuotationStatus) Revisable() bool {
	return s == StatusApproved || s == StatusAccepted
}

// Totals is the cached aggregate stored on the quotation. It is always
// recomputed from the full current line-item set, never patched
// incrementally, so recomputation stays idempotent under concurrent writes.
type Totals struct {
	InteriorsSubtotal float64
	FCSubtotal        float64
	GrandSubtotal     float64
	UpdatedAt         time.Time
}

// Signoff records client/company signature state. The raw signature token is
// never stored; only its bcrypt hash is.
type Signoff struct {
	ClientSignedAt  *time.Time
	CompanySignedAt *time.Time
	TokenHash       string
}

// Quotation model.
type Quotation struct {
	ID            int64
	Ref           uuid.UUID
	ProjectName   string
	ClientName    string
	City          string
	Category      string
	BuildType     pricing.BuildType
	Status        QuotationStatus
	DiscountType  pricing.DiscountType
	DiscountValue float64
	Totals        Totals
	Snapshot      json.RawMessage
	Signoff       Signoff
	ApprovedAt    *time.Time
	ApprovedBy    *int64
	CreatedBy     int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// InteriorItem is a priced interior line. Its unit rate is resolved from the
// catalog unless overridden.
type InteriorItem struct {
	ID            int64
	QuotationID   int64
	RoomLabel     string
	ItemKey       string
	Description   string
	CalcMode      pricing.CalcMode
	Length        float64
	Height        float64
	Count         float64
	CoreBrand     string
	FinishBrand   string
	HardwareBrand string
	UnitPrice     float64
	TotalPrice    float64
	Rate          pricing.RateFields
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FalseCeilingItem is a false-ceiling line. Pricing is a direct monetary
// entry, not a function of the rate catalog.
type FalseCeilingItem struct {
	ID          int64
	QuotationID int64
	RoomLabel   string
	Description string
	CalcMode    pricing.CalcMode
	Length      float64
	Height      float64
	Count       float64
	UnitPrice   float64
	TotalPrice  float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OtherItemKind tags the template-level "other" scope flags.
type OtherItemKind string

const (
	OtherWallPainting OtherItemKind = "wall_painting"
	OtherFCPainting   OtherItemKind = "fc_painting"
	OtherLights       OtherItemKind = "lights"
	OtherFanHooks     OtherItemKind = "fan_hooks"
	OtherCustom       OtherItemKind = "custom"
)

// OtherItem is a miscellaneous line (paint, lights, fan hooks). Other items
// are always attributed to the false-ceiling partition during aggregation.
type OtherItem struct {
	ID          int64
	QuotationID int64
	Kind        OtherItemKind
	Description string
	CalcMode    pricing.CalcMode
	Count       float64
	UnitPrice   float64
	TotalPrice  float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// LineSet groups the three line-item collections of a quotation.
type LineSet struct {
	Interiors     []InteriorItem
	FalseCeilings []FalseCeilingItem
	Others        []OtherItem
}

// Lines projects the set into the aggregator's input. Other items carry no
// room of their own and land in the fallback bucket.
func (s LineSet) Lines() []pricing.Line {
	lines := make([]pricing.Line, 0, len(s.Interiors)+len(s.FalseCeilings)+len(s.Others))
	for _, it := range s.Interiors {
		lines = append(lines, pricing.Line{RoomLabel: it.RoomLabel, Partition: pricing.PartitionInteriors, Total: it.TotalPrice})
	}
	for _, it := range s.FalseCeilings {
		lines = append(lines, pricing.Line{RoomLabel: it.RoomLabel, Partition: pricing.PartitionFalseCeiling, Total: it.TotalPrice})
	}
	for _, it := range s.Others {
		lines = append(lines, pricing.Line{Partition: pricing.PartitionFalseCeiling, Total: it.TotalPrice})
	}
	return lines
}

// CanonicalRoomOrder is the product-defined display order for room labels.
// It is injected into the aggregator rather than hardcoded there; labels not
// listed sort after the known ones, alphabetically.
var CanonicalRoomOrder = []string{
	"Foyer",
	"Living Room",
	"Dining Room",
	"Kitchen",
	"Master Bedroom",
	"Bedroom 2",
	"Bedroom 3",
	"Kids Bedroom",
	"Guest Bedroom",
	"Study",
	"Pooja Room",
	"Balcony",
	"Utility",
	"Other",
}

// RoomLess returns the comparator for the canonical room ordering.
func RoomLess() pricing.RoomLess {
	rank := make(map[string]int, len(CanonicalRoomOrder))
	for i, label := range CanonicalRoomOrder {
		rank[label] = i
	}
	unknown := len(CanonicalRoomOrder)
	return func(a, b string) bool {
		ra, ok := rank[a]
		if !ok {
			ra = unknown
		}
		rb, ok := rank[b]
		if !ok {
			rb = unknown
		}
		if ra != rb {
			return ra < rb
		}
		return a < b
	}
}
