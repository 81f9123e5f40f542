package pricing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocatePercentDiscount(t *testing.T) {
	got, err := Allocate(100000, 50000, DiscountPercent, 10, 18)
	require.NoError(t, err)

	require.Equal(t, 10000.0, got.Interiors.Discount)
	require.Equal(t, 5000.0, got.FalseCeiling.Discount)
	require.Equal(t, 15000.0, got.Grand.Discount)
	require.Equal(t, 106200.0, got.Interiors.Total)
	require.Equal(t, 53100.0, got.FalseCeiling.Total)
	require.Equal(t, 159300.0, got.Grand.Total)
}

func TestAllocatePercentDiscountsSumExactly(t *testing.T) {
	for _, value := range []float64{0, 1, 2.5, 7.33, 10, 50, 100} {
		got, err := Allocate(98765.43, 12345.67, DiscountPercent, value, 18)
		require.NoError(t, err)
		require.InDelta(t, got.Grand.Discount, got.Interiors.Discount+got.FalseCeiling.Discount, 0.001)
	}
}

func TestAllocateAmountDiscountProportional(t *testing.T) {
	got, err := Allocate(100000, 50000, DiscountAmount, 15000, 18)
	require.NoError(t, err)

	require.Equal(t, 10000.0, got.Interiors.Discount)
	require.Equal(t, 5000.0, got.FalseCeiling.Discount)
	require.Equal(t, 159300.0, got.Grand.Total)
}

func TestAllocateAmountDiscountsSumToConfiguredAmount(t *testing.T) {
	got, err := Allocate(50, 50, DiscountAmount, 0.01, 18)
	require.NoError(t, err)
	require.InDelta(t, 0.01, got.Interiors.Discount+got.FalseCeiling.Discount, 0.001)

	for _, value := range []float64{0.01, 0.03, 1.11, 4999.99, 12345.67} {
		got, err := Allocate(33333.33, 66666.67, DiscountAmount, value, 18)
		require.NoError(t, err)
		require.InDelta(t, value, got.Interiors.Discount+got.FalseCeiling.Discount, 0.001)
		require.LessOrEqual(t, got.Interiors.Discount, got.Interiors.Subtotal)
		require.LessOrEqual(t, got.FalseCeiling.Discount, got.FalseCeiling.Subtotal)
	}
}

func TestAllocateAmountDiscountCapped(t *testing.T) {
	got, err := Allocate(1000, 500, DiscountAmount, 5000, 18)
	require.NoError(t, err)

	require.LessOrEqual(t, got.Interiors.Discount, got.Interiors.Subtotal)
	require.LessOrEqual(t, got.FalseCeiling.Discount, got.FalseCeiling.Subtotal)
	require.Equal(t, 1500.0, got.Interiors.Discount+got.FalseCeiling.Discount)
	require.Equal(t, 0.0, got.Grand.Total)
}

func TestAllocateAmountDiscountZeroGrand(t *testing.T) {
	got, err := Allocate(0, 0, DiscountAmount, 5000, 18)
	require.NoError(t, err)

	require.Equal(t, 0.0, got.Interiors.Discount)
	require.Equal(t, 0.0, got.FalseCeiling.Discount)
	require.Equal(t, 0.0, got.Grand.Total)
}

func TestAllocateDiscountNeverGoesNegative(t *testing.T) {
	got, err := Allocate(100, 0, DiscountPercent, 150, 18)
	require.NoError(t, err)
	require.Equal(t, 0.0, got.Interiors.Discounted)
	require.Equal(t, 0.0, got.Interiors.Total)
}

func TestAllocateRejectsNegativeDiscount(t *testing.T) {
	_, err := Allocate(100, 100, DiscountPercent, -5, 18)
	require.ErrorIs(t, err, ErrNegativeDiscount)
}

func TestAllocateRejectsUnknownDiscountType(t *testing.T) {
	_, err := Allocate(100, 100, DiscountType("coupon"), 5, 18)
	require.Error(t, err)
}

func TestAllocateGrandIsSumOfPartitions(t *testing.T) {
	got, err := Allocate(33333.33, 66666.67, DiscountAmount, 4999.99, 18)
	require.NoError(t, err)
	require.Equal(t, got.Grand.Total, roundCents(got.Interiors.Total+got.FalseCeiling.Total))
	require.Equal(t, got.Grand.Tax, roundCents(got.Interiors.Tax+got.FalseCeiling.Tax))
}
