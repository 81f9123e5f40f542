// Package approval freezes quotations at approval time: final recompute,
// immutable pricing snapshot, and agreement generation.
package approval

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-interiors/meridian-quotes/internal/pricing"
)

// SnapshotRate preserves the catalog figures an item key resolved against.
type SnapshotRate struct {
	ItemKey      string  `json:"itemKey"`
	HandmadeRate float64 `json:"handmadeRate"`
	FactoryRate  float64 `json:"factoryRate"`
	LockedUnit   string  `json:"lockedUnit,omitempty"`
}

// Snapshot is the immutable record stored on the quotation at approval. It
// captures everything needed to re-explain the approved figures after the
// live catalog and rules have moved on.
type Snapshot struct {
	TakenAt       time.Time                                `json:"takenAt"`
	TaxPercent    float64                                  `json:"taxPercent"`
	BuildType     pricing.BuildType                        `json:"buildType"`
	DiscountType  pricing.DiscountType                     `json:"discountType"`
	DiscountValue float64                                  `json:"discountValue"`
	Rates         map[string]SnapshotRate                  `json:"rates"`
	Adders        map[pricing.AdderKind]map[string]float64 `json:"adders"`
	Subtotals     pricing.Subtotals                        `json:"subtotals"`
	Allocation    pricing.Allocation                       `json:"allocation"`
	TermsText     string                                   `json:"termsText"`
}

// Milestone is one entry of the agreement payment schedule. Amounts are in
// minor currency units (paise) so schedule rows sum exactly to the total.
type Milestone struct {
	Label       string `json:"label"`
	Percent     int    `json:"percent"`
	AmountPaise int64  `json:"amountPaise"`
}

// Agreement is the client-facing contract generated at approval.
type Agreement struct {
	ID          int64       `json:"id"`
	Ref         uuid.UUID   `json:"ref"`
	QuotationID int64       `json:"quotationId"`
	TotalPaise  int64       `json:"totalPaise"`
	Milestones  []Milestone `json:"milestones"`
	TermsText   string      `json:"termsText"`
	PDFPath     string      `json:"pdfPath,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// Paise converts a major-unit amount to minor units.
func Paise(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// DefaultSchedule is the standard payment split applied to new agreements.
var DefaultSchedule = []struct {
	Label   string
	Percent int
}{
	{"Booking advance", 10},
	{"Design sign-off", 40},
	{"Mid production", 40},
	{"Handover", 10},
}

// BuildMilestones splits a total into the default schedule. The last
// milestone absorbs the rounding remainder so the rows sum exactly to the
// total.
func BuildMilestones(totalPaise int64) []Milestone {
	milestones := make([]Milestone, 0, len(DefaultSchedule))
	var allocated int64
	for i, step := range DefaultSchedule {
		amount := totalPaise * int64(step.Percent) / 100
		if i == len(DefaultSchedule)-1 {
			amount = totalPaise - allocated
		}
		allocated += amount
		milestones = append(milestones, Milestone{Label: step.Label, Percent: step.Percent, AmountPaise: amount})
	}
	return milestones
}
