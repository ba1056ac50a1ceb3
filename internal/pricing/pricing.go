// Package pricing holds the line-item arithmetic shared by quotes and invoices.
package pricing

import (
	"math"
	"strings"

	"github.com/smallbiznis/backoffice/internal/apperror"
)

var (
	ErrEmptyItems             = apperror.New(apperror.KindValidation, "empty_items")
	ErrInvalidItemName        = apperror.New(apperror.KindValidation, "invalid_item_name")
	ErrNegativeUnitPrice      = apperror.New(apperror.KindValidation, "negative_unit_price")
	ErrNegativeQuantity       = apperror.New(apperror.KindValidation, "negative_quantity")
	ErrNegativeTax            = apperror.New(apperror.KindValidation, "negative_tax")
	ErrInvalidDiscountPercent = apperror.New(apperror.KindValidation, "invalid_discount_percent")
	ErrAmountOverflow         = apperror.New(apperror.KindValidation, "amount_overflow")
)

// LineItem is one priced row of a quote or invoice.
type LineItem struct {
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int64  `json:"quantity"`
}

// Amount returns unit price times quantity, or ErrAmountOverflow when the
// product does not fit in int64. Callers validate signs first.
func (i LineItem) Amount() (int64, error) {
	if i.Quantity != 0 && i.UnitPrice > math.MaxInt64/i.Quantity {
		return 0, ErrAmountOverflow
	}
	return i.UnitPrice * i.Quantity, nil
}

// Totals is the derived money breakdown. All four fields always move together.
type Totals struct {
	Subtotal       int64 `json:"subtotal"`
	DiscountAmount int64 `json:"discount_amount"`
	Tax            int64 `json:"tax"`
	Total          int64 `json:"total"`
}

// ValidateItems rejects empty item lists and negative amounts.
func ValidateItems(items []LineItem) error {
	if len(items) == 0 {
		return ErrEmptyItems
	}
	for _, item := range items {
		if strings.TrimSpace(item.Name) == "" {
			return ErrInvalidItemName
		}
		if item.UnitPrice < 0 {
			return ErrNegativeUnitPrice
		}
		if item.Quantity < 0 {
			return ErrNegativeQuantity
		}
	}
	return nil
}

// ValidatePercent checks a discount percent is within 0..100.
func ValidatePercent(percent int) error {
	if percent < 0 || percent > 100 {
		return ErrInvalidDiscountPercent
	}
	return nil
}

// Subtotal sums unit_price*quantity over validated items.
func Subtotal(items []LineItem) (int64, error) {
	var subtotal int64
	for _, item := range items {
		amount, err := item.Amount()
		if err != nil {
			return 0, err
		}
		if amount > math.MaxInt64-subtotal {
			return 0, ErrAmountOverflow
		}
		subtotal += amount
	}
	return subtotal, nil
}

// DiscountAmount is round_half_up(subtotal * percent / 100), split so the
// intermediate products stay below subtotal for percent in 0..100.
func DiscountAmount(subtotal int64, percent int) int64 {
	if subtotal <= 0 || percent <= 0 {
		return 0
	}
	p := int64(percent)
	return subtotal/100*p + (subtotal%100*p+50)/100
}

// Compute validates the inputs and derives the totals.
func Compute(items []LineItem, discountPercent int, tax int64) (Totals, error) {
	if err := ValidateItems(items); err != nil {
		return Totals{}, err
	}
	if err := ValidatePercent(discountPercent); err != nil {
		return Totals{}, err
	}
	if tax < 0 {
		return Totals{}, ErrNegativeTax
	}

	subtotal, err := Subtotal(items)
	if err != nil {
		return Totals{}, err
	}
	discount := DiscountAmount(subtotal, discountPercent)
	if tax > math.MaxInt64-(subtotal-discount) {
		return Totals{}, ErrAmountOverflow
	}
	return Totals{
		Subtotal:       subtotal,
		DiscountAmount: discount,
		Tax:            tax,
		Total:          subtotal - discount + tax,
	}, nil
}

// Consistent reports whether totals satisfy the pricing invariants for the given percent.
func (t Totals) Consistent(discountPercent int) bool {
	return t.DiscountAmount == DiscountAmount(t.Subtotal, discountPercent) &&
		t.Total == t.Subtotal-t.DiscountAmount+t.Tax
}
