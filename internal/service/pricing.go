package service

import (
	"rental-service/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Pricing is the money breakdown shared by sales and rentals
type Pricing struct {
	Gross          decimal.Decimal
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal
	Paid           decimal.Decimal
	Remaining      decimal.Decimal
}

// Settled reports whether nothing is left to pay.
func (p Pricing) Settled() bool {
	return !p.Remaining.IsPositive()
}

// ComputePricing prices units of unitPrice with a percentage discount. A nil
// paid means the customer pays the full total up front.
func ComputePricing(unitPrice decimal.Decimal, units int, discountPct decimal.Decimal, paid *decimal.Decimal) (Pricing, error) {
	if unitPrice.IsNegative() {
		return Pricing{}, models.NewValidation("unit_price", "must not be negative")
	}
	if discountPct.IsNegative() || discountPct.GreaterThan(hundred) {
		return Pricing{}, models.NewValidation("discount", "must be between 0 and 100")
	}

	gross := unitPrice.Mul(decimal.NewFromInt(int64(units)))
	discountAmount := gross.Mul(discountPct).Div(hundred).Round(2)
	total := decimal.Max(gross.Sub(discountAmount), decimal.Zero)

	p := Pricing{
		Gross:          gross,
		DiscountAmount: discountAmount,
		Total:          total,
		Paid:           total,
	}
	if paid != nil {
		if paid.IsNegative() {
			return Pricing{}, models.NewValidation("paid_amount", "must not be negative")
		}
		if paid.GreaterThan(total) {
			return Pricing{}, models.NewValidation("paid_amount", "must not exceed the total amount")
		}
		p.Paid = *paid
	}
	p.Remaining = remaining(total, p.Paid)
	return p, nil
}

// remaining is max(0, total - paid)
func remaining(total, paid decimal.Decimal) decimal.Decimal {
	return decimal.Max(total.Sub(paid), decimal.Zero)
}
