// Package pricing holds the one totals computation shared by carts, checkout
// and any other view that shows money to a customer.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/medcart-backend/pkg/config"
)

// Policy carries the tax and delivery rules applied to a subtotal.
type Policy struct {
	TaxRate               decimal.Decimal
	DeliveryFee           decimal.Decimal
	FreeDeliveryThreshold decimal.Decimal
}

// DefaultPolicy is 5% tax and a 50.00 fee waived from 500.00.
func DefaultPolicy() Policy {
	return Policy{
		TaxRate:               decimal.RequireFromString("0.05"),
		DeliveryFee:           decimal.RequireFromString("50.00"),
		FreeDeliveryThreshold: decimal.RequireFromString("500.00"),
	}
}

// FromConfig builds the policy from the MEDCART_COMMERCE_* settings.
func FromConfig(cfg config.CommerceConfig) Policy {
	tax, fee, threshold := cfg.Amounts()
	return Policy{TaxRate: tax, DeliveryFee: fee, FreeDeliveryThreshold: threshold}
}

// Totals is the priced breakdown of a basket.
type Totals struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	Tax         decimal.Decimal `json:"tax"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	Total       decimal.Decimal `json:"total"`
}

// Line is one priced quantity.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// LineTotal is unit price times quantity, rounded to cents.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}

// Subtotal sums the line totals.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(LineTotal(line.UnitPrice, line.Quantity))
	}
	return sum
}

// Compute prices a subtotal. Tax rounds half away from zero to two places.
// A zero subtotal carries no delivery fee.
func (p Policy) Compute(subtotal decimal.Decimal) Totals {
	subtotal = subtotal.Round(2)
	tax := subtotal.Mul(p.TaxRate).Round(2)

	fee := p.DeliveryFee.Round(2)
	if !subtotal.IsPositive() || subtotal.GreaterThanOrEqual(p.FreeDeliveryThreshold) {
		fee = decimal.Zero
	}

	return Totals{
		Subtotal:    subtotal,
		Tax:         tax,
		DeliveryFee: fee,
		Total:       subtotal.Add(tax).Add(fee),
	}
}

// ComputeLines is Compute over the subtotal of lines.
func (p Policy) ComputeLines(lines []Line) Totals {
	return p.Compute(Subtotal(lines))
}
