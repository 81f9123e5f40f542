package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-interiors/meridian-quotes/internal/pricing"
)

type memoryCatalogRepo struct {
	entries     []RateCatalogEntry
	adjustments []BrandAdjustment
	failEntries bool
}

func (r *memoryCatalogRepo) ListEntries(ctx context.Context) ([]RateCatalogEntry, error) {
	if r.failEntries {
		return nil, errors.New("connection refused")
	}
	return r.entries, nil
}

func (r *memoryCatalogRepo) ListAdjustments(ctx context.Context) ([]BrandAdjustment, error) {
	return r.adjustments, nil
}

func lockedUnit(u Unit) *Unit { return &u }

func TestLoadBuildsView(t *testing.T) {
	repo := &memoryCatalogRepo{
		entries: []RateCatalogEntry{
			{ItemKey: "wardrobe", Name: "Wardrobe", Category: "interiors", HandmadeRate: 1300, FactoryRate: 1500},
			{ItemKey: "termite_treatment", Name: "Termite Treatment", Category: "other", LockedUnit: lockedUnit(UnitLumpSum)},
		},
		adjustments: []BrandAdjustment{
			{Kind: pricing.AdderCore, Brand: "Century Ply", Adder: 100},
			{Kind: pricing.AdderHardware, Brand: "Blum", Adder: 200},
		},
	}
	svc := NewService(repo)

	view, err := svc.Load(context.Background())
	require.NoError(t, err)

	entry, ok := view.Entry("wardrobe")
	require.True(t, ok)
	require.Equal(t, pricing.BaseRates{Handmade: 1300, Factory: 1500}, entry.BaseRates())

	require.Equal(t, 100.0, view.Adder(pricing.AdderCore, "Century Ply"))
	require.Equal(t, 0.0, view.Adder(pricing.AdderCore, "Generic Ply"))
	require.Equal(t, 0.0, view.Adder(pricing.AdderFinish, "Anything"))

	unit, locked := view.LockedUnit("termite_treatment")
	require.True(t, locked)
	require.Equal(t, UnitLumpSum, unit)
	require.Equal(t, pricing.CalcLumpSum, unit.CalcMode())

	_, locked = view.LockedUnit("wardrobe")
	require.False(t, locked)
}

func TestLoadUnavailableCatalog(t *testing.T) {
	svc := NewService(&memoryCatalogRepo{failEntries: true})

	_, err := svc.Load(context.Background())
	require.ErrorIs(t, err, ErrCatalogUnavailable)
}

func TestViewAddersReturnsCopy(t *testing.T) {
	view := NewView(nil, []BrandAdjustment{{Kind: pricing.AdderCore, Brand: "Century Ply", Adder: 100}})

	copied := view.Adders()
	copied[pricing.AdderCore]["Century Ply"] = 999
	require.Equal(t, 100.0, view.Adder(pricing.AdderCore, "Century Ply"))
}
