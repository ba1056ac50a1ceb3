package pricing

import (
	"errors"
	"math"
	"testing"

	"github.com/smallbiznis/backoffice/internal/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeQuoteTotals(t *testing.T) {
	totals, err := Compute([]LineItem{{Name: "Seat", UnitPrice: 1000, Quantity: 2}}, 10, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), totals.Subtotal)
	assert.Equal(t, int64(200), totals.DiscountAmount)
	assert.Equal(t, int64(50), totals.Tax)
	assert.Equal(t, int64(1850), totals.Total)
	assert.True(t, totals.Consistent(10))
}

func TestDiscountAmountRoundsHalfUp(t *testing.T) {
	cases := []struct {
		subtotal int64
		percent  int
		want     int64
	}{
		{subtotal: 150, percent: 1, want: 2},
		{subtotal: 149, percent: 1, want: 1},
		{subtotal: 999, percent: 15, want: 150},
		{subtotal: 1000, percent: 0, want: 0},
		{subtotal: 1000, percent: 100, want: 1000},
		{subtotal: 0, percent: 50, want: 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DiscountAmount(tc.subtotal, tc.percent), "subtotal=%d percent=%d", tc.subtotal, tc.percent)
	}
}

func TestComputeRejectsInvalidInput(t *testing.T) {
	item := LineItem{Name: "Seat", UnitPrice: 100, Quantity: 1}

	_, err := Compute(nil, 0, 0)
	assert.ErrorIs(t, err, ErrEmptyItems)

	_, err = Compute([]LineItem{{Name: "Seat", UnitPrice: -1, Quantity: 1}}, 0, 0)
	assert.ErrorIs(t, err, ErrNegativeUnitPrice)

	_, err = Compute([]LineItem{{Name: "Seat", UnitPrice: 1, Quantity: -1}}, 0, 0)
	assert.ErrorIs(t, err, ErrNegativeQuantity)

	_, err = Compute([]LineItem{{Name: " ", UnitPrice: 1, Quantity: 1}}, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidItemName)

	_, err = Compute([]LineItem{item}, 101, 0)
	assert.ErrorIs(t, err, ErrInvalidDiscountPercent)

	_, err = Compute([]LineItem{item}, 0, -5)
	assert.ErrorIs(t, err, ErrNegativeTax)
	assert.True(t, errors.Is(err, apperror.ErrValidation))
}

func TestComputeRejectsAmountOverflow(t *testing.T) {
	_, err := Compute([]LineItem{{Name: "Seat", UnitPrice: math.MaxInt64/2 + 1, Quantity: 2}}, 0, 0)
	assert.ErrorIs(t, err, ErrAmountOverflow)
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	_, err = Compute([]LineItem{
		{Name: "Seat", UnitPrice: math.MaxInt64 - 10, Quantity: 1},
		{Name: "Support", UnitPrice: 11, Quantity: 1},
	}, 0, 0)
	assert.ErrorIs(t, err, ErrAmountOverflow)

	_, err = Compute([]LineItem{{Name: "Seat", UnitPrice: math.MaxInt64 - 10, Quantity: 1}}, 0, 11)
	assert.ErrorIs(t, err, ErrAmountOverflow)

	totals, err := Compute([]LineItem{{Name: "Seat", UnitPrice: math.MaxInt64, Quantity: 1}}, 100, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), totals.DiscountAmount)
	assert.Equal(t, int64(0), totals.Total)

	totals, err = Compute([]LineItem{{Name: "Seat", UnitPrice: 0, Quantity: math.MaxInt64}}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), totals.Subtotal)
}

func TestDiscountAmountLargeSubtotal(t *testing.T) {
	assert.Equal(t, int64(110680464442257310), DiscountAmount(math.MaxInt64/50, 60))
	assert.Equal(t, int64(math.MaxInt64), DiscountAmount(math.MaxInt64, 100))

	subtotal := int64(math.MaxInt64 / 50)
	discount := DiscountAmount(subtotal, 60)
	assert.Positive(t, discount)
	assert.Less(t, discount, subtotal)
}
