// Package pricing implements the pure arithmetic core of the quotation
// engine: unit-rate resolution, room/partition aggregation, and discount/tax
// allocation. Everything in this package is side-effect free so totals can be
// recomputed at any time from the current line-item set.
package pricing

import "math"

// BuildType selects which base rate applies to an item.
type BuildType string

const (
	// BuildHandmade selects the handmade (carpenter-built) base rate.
	BuildHandmade BuildType = "handmade"
	// BuildFactory selects the factory (modular) base rate.
	BuildFactory BuildType = "factory"
)

// Valid reports whether the build type is a known value.
func (b BuildType) Valid() bool {
	return b == BuildHandmade || b == BuildFactory
}

// AdderKind identifies which brand dimension an adjustment applies to.
type AdderKind string

const (
	AdderCore     AdderKind = "core"
	AdderFinish   AdderKind = "finish"
	AdderHardware AdderKind = "hardware"
)

// BaseRates carries the two base rates of a rate catalog entry.
type BaseRates struct {
	Handmade float64
	Factory  float64
}

// BrandSelection names the materials chosen for a line item.
type BrandSelection struct {
	Core     string
	Finish   string
	Hardware string
}

// AdderFunc returns the flat per-unit adder for a brand. Implementations must
// return zero for unknown brands: catalogs evolve independently of historical
// quotes, so rate resolution fails open rather than erroring.
type AdderFunc func(kind AdderKind, brand string) float64

// ResolveRate computes the unit rate for a build type and brand selection,
// rounded to the nearest whole currency unit.
func ResolveRate(base BaseRates, buildType BuildType, sel BrandSelection, adder AdderFunc) float64 {
	rate := base.Handmade
	if buildType == BuildFactory {
		rate = base.Factory
	}
	if adder != nil {
		rate += adder(AdderCore, sel.Core)
		rate += adder(AdderFinish, sel.Finish)
		rate += adder(AdderHardware, sel.Hardware)
	}
	return math.Round(rate)
}

// RateFields records the auto/override rate pair on a line item. RateAuto is
// always kept current so an override can be reverted later.
type RateFields struct {
	RateAuto         float64
	RateOverride     float64
	IsRateOverridden bool
}

// UnitPrice returns the rate that totals must be computed from.
func (r RateFields) UnitPrice() float64 {
	if r.IsRateOverridden {
		return r.RateOverride
	}
	return r.RateAuto
}

// WithOverride returns the fields with a manual rate applied. The resolved
// rate is retained in RateAuto.
func (r RateFields) WithOverride(rate float64) RateFields {
	r.RateOverride = rate
	r.IsRateOverridden = true
	return r
}

// WithoutOverride reverts to the last resolved rate.
func (r RateFields) WithoutOverride() RateFields {
	r.RateOverride = 0
	r.IsRateOverridden = false
	return r
}

// CalcMode determines how a line item's quantity is derived.
type CalcMode string

const (
	// CalcSQFT prices by area: length multiplied by height (or width).
	CalcSQFT CalcMode = "SQFT"
	// CalcCount prices by unit count.
	CalcCount CalcMode = "COUNT"
	// CalcLumpSum is a single flat amount regardless of dimensions.
	CalcLumpSum CalcMode = "LSUM"
)

// Valid reports whether the calc mode is a known value.
func (m CalcMode) Valid() bool {
	return m == CalcSQFT || m == CalcCount || m == CalcLumpSum
}

// Dimensions holds the raw measurement fields of a line item. Only the fields
// relevant to the calc mode are consulted.
type Dimensions struct {
	Length float64
	Height float64
	Count  float64
}

// Quantity derives the billable quantity for a calc mode: area for SQFT,
// count for COUNT, and exactly one for LSUM.
func Quantity(mode CalcMode, dim Dimensions) float64 {
	switch mode {
	case CalcSQFT:
		return dim.Length * dim.Height
	case CalcCount:
		return dim.Count
	default:
		return 1
	}
}

// LineTotal computes totalPrice = unitPrice x quantity, rounded at the cent
// level so stored totals match what partition sums display.
func LineTotal(unitPrice, quantity float64) float64 {
	return roundCents(unitPrice * quantity)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
