// Package catalog exposes read-only access to rate catalog entries and brand
// adjustments. The engine never mutates the catalog; it loads a point-in-time
// view and passes it explicitly into pricing calls so historical recomputation
// and snapshotting stay testable in isolation.
package catalog

import (
	"github.com/meridian-interiors/meridian-quotes/internal/pricing"
)

// Unit is the fixed pricing unit of a catalog entry.
type Unit string

const (
	UnitSFT     Unit = "SFT"
	UnitCount   Unit = "COUNT"
	UnitLumpSum Unit = "LSUM"
)

// CalcMode maps the catalog unit to the line-item calc mode it locks.
func (u Unit) CalcMode() pricing.CalcMode {
	switch u {
	case UnitCount:
		return pricing.CalcCount
	case UnitLumpSum:
		return pricing.CalcLumpSum
	default:
		return pricing.CalcSQFT
	}
}

// RateCatalogEntry is a keyed item definition. A non-nil LockedUnit pins the
// calc mode of every line item created from this key; the lock is enforced at
// line-item creation and update time.
type RateCatalogEntry struct {
	ID           int64
	ItemKey      string
	Name         string
	Category     string
	LockedUnit   *Unit
	HandmadeRate float64
	FactoryRate  float64
}

// BaseRates converts the entry's pair of rates into the resolver's input.
func (e RateCatalogEntry) BaseRates() pricing.BaseRates {
	return pricing.BaseRates{Handmade: e.HandmadeRate, Factory: e.FactoryRate}
}

// BrandAdjustment contributes a flat per-unit adder for a brand. The
// "Generic" default brand is stored with a zero adder.
type BrandAdjustment struct {
	ID    int64
	Kind  pricing.AdderKind
	Brand string
	Adder float64
}
