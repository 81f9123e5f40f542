package pricing

import (
	"errors"
	"fmt"
)

// DiscountType selects how a quotation-level discount is interpreted.
type DiscountType string

const (
	// DiscountPercent applies the same percentage to each partition.
	DiscountPercent DiscountType = "percent"
	// DiscountAmount allocates a fixed amount proportionally to each
	// partition's share of the grand subtotal.
	DiscountAmount DiscountType = "amount"
)

// Valid reports whether the discount type is a known value.
func (d DiscountType) Valid() bool {
	return d == DiscountPercent || d == DiscountAmount
}

// ErrNegativeDiscount rejects discounts below zero before any allocation runs.
var ErrNegativeDiscount = errors.New("pricing: discount value must not be negative")

// PartitionTotals is the allocation result for a single partition.
type PartitionTotals struct {
	Subtotal   float64
	Discount   float64
	Discounted float64
	Tax        float64
	Total      float64
}

// Allocation holds partition-level and grand figures. Grand totals are sums
// of the partition figures actually shown to the client, never an independent
// recomputation, so rounding stays consistent.
type Allocation struct {
	Interiors    PartitionTotals
	FalseCeiling PartitionTotals
	Grand        PartitionTotals
}

// Allocate applies a single discount across the two partitions and then a
// flat tax rate to each discounted partition.
//
// Percent discounts are applied independently per partition, which makes the
// partition discounts sum exactly to the grand discount regardless of the
// split. Amount discounts are allocated proportionally by partition share:
// one share is rounded and the other takes the remainder, so the partition
// discounts always sum to min(value, grand subtotal); a non-positive grand
// subtotal allocates zero everywhere.
func Allocate(interiorsSubtotal, fcSubtotal float64, discountType DiscountType, discountValue, taxPercent float64) (Allocation, error) {
	if !discountType.Valid() {
		return Allocation{}, fmt.Errorf("pricing: unknown discount type %q", discountType)
	}
	if discountValue < 0 {
		return Allocation{}, ErrNegativeDiscount
	}

	grandSubtotal := roundCents(interiorsSubtotal + fcSubtotal)

	var interiorsDiscount, fcDiscount float64
	switch discountType {
	case DiscountPercent:
		interiorsDiscount = roundCents(interiorsSubtotal * discountValue / 100)
		fcDiscount = roundCents(fcSubtotal * discountValue / 100)
	default:
		if grandSubtotal > 0 {
			capped := discountValue
			if capped > grandSubtotal {
				capped = grandSubtotal
			}
			interiorsDiscount = clampShare(roundCents(capped*interiorsSubtotal/grandSubtotal), interiorsSubtotal)
			fcDiscount = clampShare(roundCents(capped-interiorsDiscount), fcSubtotal)
			interiorsDiscount = clampShare(roundCents(capped-fcDiscount), interiorsSubtotal)
		}
	}

	partition := func(subtotal, discount float64) PartitionTotals {
		p := PartitionTotals{Subtotal: subtotal, Discount: discount}
		p.Discounted = roundCents(subtotal - discount)
		// Only non-negative subtotals floor at zero; a negative subtotal is
		// a net credit and must keep its sign.
		if p.Discounted < 0 && subtotal >= 0 {
			p.Discounted = 0
		}
		p.Tax = roundCents(p.Discounted * taxPercent / 100)
		p.Total = roundCents(p.Discounted + p.Tax)
		return p
	}

	out := Allocation{
		Interiors:    partition(interiorsSubtotal, interiorsDiscount),
		FalseCeiling: partition(fcSubtotal, fcDiscount),
	}
	out.Grand = PartitionTotals{
		Subtotal:   grandSubtotal,
		Discount:   roundCents(out.Interiors.Discount + out.FalseCeiling.Discount),
		Discounted: roundCents(out.Interiors.Discounted + out.FalseCeiling.Discounted),
		Tax:        roundCents(out.Interiors.Tax + out.FalseCeiling.Tax),
		Total:      roundCents(out.Interiors.Total + out.FalseCeiling.Total),
	}
	return out, nil
}

// clampShare bounds one partition's amount-discount share to [0, subtotal].
// Partitions with a non-positive subtotal absorb no discount.
func clampShare(share, subtotal float64) float64 {
	switch {
	case subtotal <= 0 || share <= 0:
		return 0
	case share > subtotal:
		return subtotal
	default:
		return share
	}
}
