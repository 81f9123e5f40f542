package catalog

import (
	"github.com/meridian-interiors/meridian-quotes/internal/pricing"
)

// View is an immutable point-in-time read model of the catalog. Pricing paths
// receive a View instead of reaching for a module-level singleton, and the
// approval flow copies one into the quotation snapshot.
type View struct {
	entries map[string]RateCatalogEntry
	adders  map[pricing.AdderKind]map[string]float64
}

// NewView indexes entries and adjustments for lookup.
func NewView(entries []RateCatalogEntry, adjustments []BrandAdjustment) *View {
	v := &View{
		entries: make(map[string]RateCatalogEntry, len(entries)),
		adders:  make(map[pricing.AdderKind]map[string]float64),
	}
	for _, e := range entries {
		v.entries[e.ItemKey] = e
	}
	for _, a := range adjustments {
		kind := v.adders[a.Kind]
		if kind == nil {
			kind = make(map[string]float64)
			v.adders[a.Kind] = kind
		}
		kind[a.Brand] = a.Adder
	}
	return v
}

// Entry looks up a catalog entry by item key.
func (v *View) Entry(itemKey string) (RateCatalogEntry, bool) {
	e, ok := v.entries[itemKey]
	return e, ok
}

// Entries returns all entries, keyed by item key.
func (v *View) Entries() map[string]RateCatalogEntry {
	out := make(map[string]RateCatalogEntry, len(v.entries))
	for k, e := range v.entries {
		out[k] = e
	}
	return out
}

// Adder returns the per-unit adder for a brand. Unknown brands resolve to
// zero rather than erroring.
func (v *View) Adder(kind pricing.AdderKind, brand string) float64 {
	return v.adders[kind][brand]
}

// KnownBrand reports whether a brand is registered for the given kind. Used
// only to audit configuration misses; resolution itself never fails on an
// unknown brand.
func (v *View) KnownBrand(kind pricing.AdderKind, brand string) bool {
	_, ok := v.adders[kind][brand]
	return ok
}

// Adders returns a copy of the full adjustment table, used when the approval
// flow freezes the catalog into a snapshot.
func (v *View) Adders() map[pricing.AdderKind]map[string]float64 {
	out := make(map[pricing.AdderKind]map[string]float64, len(v.adders))
	for kind, brands := range v.adders {
		copied := make(map[string]float64, len(brands))
		for brand, adder := range brands {
			copied[brand] = adder
		}
		out[kind] = copied
	}
	return out
}

// LockedUnit reports the pinned unit for an item key, if any.
func (v *View) LockedUnit(itemKey string) (Unit, bool) {
	e, ok := v.entries[itemKey]
	if !ok || e.LockedUnit == nil {
		return "", false
	}
	return *e.LockedUnit, true
}
