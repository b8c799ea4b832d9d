// internal/pricing/pricing.go
package pricing

import "math"

// Line is one priced order or quote line. Discount and Tax are absolute
// amounts for the whole line, not rates.
type Line struct {
	Quantity  int
	UnitPrice float64
	Discount  float64
	Tax       float64
}

type Summary struct {
	Subtotal float64 `json:"subtotal"`
	Discount float64 `json:"discount"`
	Tax      float64 `json:"tax"`
	Shipping float64 `json:"shipping"`
	Total    float64 `json:"total"`
}

// Compute aggregates line items into a pricing summary. Rounding happens
// once, at the grand-total step, so per-line drift can never accumulate.
func Compute(lines []Line, shipping float64) Summary {
	var subtotal, discount, tax float64
	for _, l := range lines {
		subtotal += float64(l.Quantity) * l.UnitPrice
		discount += l.Discount
		tax += l.Tax
	}

	return Summary{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Shipping: shipping,
		Total:    RoundMinor(subtotal - discount + tax + shipping),
	}
}

// RoundMinor rounds half-up to the currency minor unit (two decimals).
func RoundMinor(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}

// MinorUnits converts a rounded amount to integer minor units (cents) for
// gateway APIs. Truncation would turn 19.99 into 1998.
func MinorUnits(v float64) int64 {
	return int64(math.Round(v * 100))
}

// SameAmount compares two monetary values at minor-unit precision.
func SameAmount(a, b float64) bool {
	return RoundMinor(a) == RoundMinor(b)
}

// LineTotal is the canonical per-line amount: quantity times unit price,
// minus line discount, plus line tax. Unrounded; rounding is the
// grand-total's job.
func LineTotal(l Line) float64 {
	return float64(l.Quantity)*l.UnitPrice - l.Discount + l.Tax
}
