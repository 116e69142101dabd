// Package pricing computes cart totals. The same function backs the cart
// service and the client-side cart mirror so both always agree.
package pricing

import "math"

// Pricing constants in currency units.
const (
	// FreeShippingThreshold is the discounted subtotal at or above which shipping is free.
	FreeShippingThreshold = 50.00
	// FlatShippingCost is charged when the subtotal is below FreeShippingThreshold.
	FlatShippingCost = 5.99
	// TaxRate is applied to subtotal plus shipping.
	TaxRate = 0.085
)

// Line is a single priced cart line.
type Line struct {
	Price    float64
	Quantity int
}

// Totals is the derived monetary view of a cart. It is never stored; it is
// recomputed from the cart's items and discount percentage on every read.
type Totals struct {
	Subtotal float64 `json:"subtotal"`
	Discount float64 `json:"discount"`
	Tax      float64 `json:"tax"`
	Shipping float64 `json:"shipping"`
	Total    float64 `json:"total"`
}

// Zero returns the totals of an empty cart.
func Zero() Totals {
	return Totals{}
}

// ComputeTotals derives subtotal, discount, tax, shipping and total for the
// given lines. Each field is rounded to cents from its own unrounded value;
// rounded fields are never fed back into later computations.
func ComputeTotals(lines []Line, discountPercent float64) Totals {
	var rawSubtotal float64
	for _, l := range lines {
		rawSubtotal += l.Price * float64(l.Quantity)
	}

	var discount float64
	if discountPercent > 0 {
		discount = rawSubtotal * (discountPercent / 100)
	}

	subtotal := rawSubtotal - discount

	shipping := FlatShippingCost
	if subtotal >= FreeShippingThreshold {
		shipping = 0
	}

	tax := (subtotal + shipping) * TaxRate
	total := subtotal + shipping + tax

	return Totals{
		Subtotal: Round2(subtotal),
		Discount: Round2(discount),
		Tax:      Round2(tax),
		Shipping: Round2(shipping),
		Total:    Round2(total),
	}
}

// Round2 rounds x to two decimal places, half away from zero.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}
