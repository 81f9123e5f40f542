// Package changeorders implements post-approval revisions. A change order is
// priced exactly like a quotation from its own line items and discount, under
// the parent quotation's tax percent.
package changeorders

import (
	"time"

	"github.com/google/uuid"

	"github.com/meridian-interiors/meridian-quotes/internal/pricing"
)

// ChangeOrderStatus enumerates change order statuses.
type ChangeOrderStatus string

const (
	StatusDraft    ChangeOrderStatus = "DRAFT"
	StatusSent     ChangeOrderStatus = "SENT"
	StatusApproved ChangeOrderStatus = "APPROVED"
	StatusRejected ChangeOrderStatus = "REJECTED"
)

// Editable reports whether items may still be changed.
func (s ChangeOrderStatus) Editable() bool {
	return s == StatusDraft || s == StatusSent
}

// Folded reports whether the change order contributes to the revised total.
// Draft, sent, and rejected change orders never do.
func (s ChangeOrderStatus) Folded() bool {
	return s == StatusApproved
}

// ChangeType determines the sign of an item's contribution.
type ChangeType string

const (
	// ChangeAddition contributes positively, new scope.
	ChangeAddition ChangeType = "addition"
	// ChangeCredit contributes negatively, a refund or removal.
	ChangeCredit ChangeType = "credit"
)

// Valid reports whether the change type is a known value.
func (c ChangeType) Valid() bool {
	return c == ChangeAddition || c == ChangeCredit
}

// Sign returns the multiplier applied to the item total.
func (c ChangeType) Sign() float64 {
	if c == ChangeCredit {
		return -1
	}
	return 1
}

// Totals is the cached aggregate stored on a change order. Like quotation
// totals it is always recomputed from the full item set.
type Totals struct {
	InteriorsSubtotal float64
	FCSubtotal        float64
	GrandTotal        float64
	UpdatedAt         time.Time
}

// ChangeOrder model.
type ChangeOrder struct {
	ID            int64
	Ref           uuid.UUID
	QuotationID   int64
	Title         string
	Status        ChangeOrderStatus
	DiscountType  pricing.DiscountType
	DiscountValue float64
	Totals        Totals
	ApprovedAt    *time.Time
	ApprovedBy    *int64
	CreatedBy     int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Item is one signed line of a change order.
type Item struct {
	ID            int64
	ChangeOrderID int64
	RoomLabel     string
	Partition     pricing.Partition
	ChangeType    ChangeType
	Description   string
	CalcMode      pricing.CalcMode
	Length        float64
	Height        float64
	Count         float64
	UnitPrice     float64
	TotalPrice    float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Lines projects items into the shared aggregator's input. Credits carry
// negative totals, so partition subtotals and the allocated figures can go
// negative for a net-credit change order.
func Lines(items []Item) []pricing.Line {
	lines := make([]pricing.Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, pricing.Line{
			RoomLabel: it.RoomLabel,
			Partition: it.Partition,
			Total:     it.TotalPrice,
		})
	}
	return lines
}
