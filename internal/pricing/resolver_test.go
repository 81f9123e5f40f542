package pricing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func adderTable(table map[AdderKind]map[string]float64) AdderFunc {
	return func(kind AdderKind, brand string) float64 {
		return table[kind][brand]
	}
}

func TestResolveRateBaseOnly(t *testing.T) {
	adder := adderTable(map[AdderKind]map[string]float64{
		AdderCore:     {"Century Ply": 100},
		AdderFinish:   {"Acrylic": 200},
		AdderHardware: {"Blum": 200},
	})

	rate := ResolveRate(BaseRates{Handmade: 1300, Factory: 1500}, BuildHandmade, BrandSelection{
		Core:     "Generic Ply",
		Finish:   "Generic Laminate",
		Hardware: "Nimmi",
	}, adder)
	require.Equal(t, 1300.0, rate)
}

func TestResolveRateWithAdders(t *testing.T) {
	adder := adderTable(map[AdderKind]map[string]float64{
		AdderCore:     {"Century Ply": 100},
		AdderFinish:   {"Acrylic": 200},
		AdderHardware: {"Blum": 200},
	})

	rate := ResolveRate(BaseRates{Handmade: 1300, Factory: 1500}, BuildFactory, BrandSelection{
		Core:     "Century Ply",
		Finish:   "Acrylic",
		Hardware: "Blum",
	}, adder)
	require.Equal(t, 2000.0, rate)
}

func TestResolveRateUnknownBrandFailsOpen(t *testing.T) {
	adder := adderTable(map[AdderKind]map[string]float64{})
	rate := ResolveRate(BaseRates{Handmade: 1300, Factory: 1500}, BuildHandmade, BrandSelection{
		Core:     "Brand Nobody Registered",
		Finish:   "Mystery Finish",
		Hardware: "Mystery Hinges",
	}, adder)
	require.Equal(t, 1300.0, rate)
}

func TestResolveRateRoundsToWholeUnit(t *testing.T) {
	adder := adderTable(map[AdderKind]map[string]float64{
		AdderCore: {"Half": 0.5},
	})
	rate := ResolveRate(BaseRates{Handmade: 1300}, BuildHandmade, BrandSelection{Core: "Half"}, adder)
	require.Equal(t, 1301.0, rate)
}

func TestRateOverrideRoundTrip(t *testing.T) {
	fields := RateFields{RateAuto: 1450}
	require.Equal(t, 1450.0, fields.UnitPrice())

	fields = fields.WithOverride(1200)
	require.True(t, fields.IsRateOverridden)
	require.Equal(t, 1200.0, fields.UnitPrice())
	require.Equal(t, 1450.0, fields.RateAuto)

	fields = fields.WithoutOverride()
	require.False(t, fields.IsRateOverridden)
	require.Equal(t, 1450.0, fields.UnitPrice())
}

func TestQuantityByCalcMode(t *testing.T) {
	require.Equal(t, 12.0, Quantity(CalcSQFT, Dimensions{Length: 3, Height: 4}))
	require.Equal(t, 5.0, Quantity(CalcCount, Dimensions{Count: 5}))
	require.Equal(t, 1.0, Quantity(CalcLumpSum, Dimensions{Length: 99, Height: 99, Count: 99}))
}

func TestLineTotalRoundsAtCents(t *testing.T) {
	require.Equal(t, 4350.0, LineTotal(1450, 3))
	require.Equal(t, 483.33, LineTotal(145, 3.3333))
}
