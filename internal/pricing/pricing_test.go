// internal/pricing/pricing_test.go
package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeAggregatesLines(t *testing.T) {
	lines := []Line{
		{Quantity: 3, UnitPrice: 19.99, Discount: 5.00, Tax: 4.20},
		{Quantity: 2, UnitPrice: 7.50, Tax: 1.05},
	}

	summary := Compute(lines, 10.00)

	assert.InDelta(t, 74.97, summary.Subtotal, 1e-9)
	assert.InDelta(t, 5.00, summary.Discount, 1e-9)
	assert.InDelta(t, 5.25, summary.Tax, 1e-9)
	assert.InDelta(t, 10.00, summary.Shipping, 1e-9)
	assert.Equal(t, 85.22, summary.Total)
}

func TestComputeEmptyLines(t *testing.T) {
	summary := Compute(nil, 0)

	assert.Zero(t, summary.Subtotal)
	assert.Zero(t, summary.Total)
}

func TestComputeRoundsOnceAtGrandTotal(t *testing.T) {
	// Three lines that each carry sub-cent amounts. Rounding per line
	// before summing would give a different total.
	lines := []Line{
		{Quantity: 1, UnitPrice: 0.333},
		{Quantity: 1, UnitPrice: 0.333},
		{Quantity: 1, UnitPrice: 0.333},
	}

	summary := Compute(lines, 0)

	// 0.999 rounds to 1.00; per-line rounding would have produced 0.99.
	assert.Equal(t, 1.00, summary.Total)
}

func TestRoundMinorHalfUp(t *testing.T) {
	assert.Equal(t, 0.13, RoundMinor(0.125))
	assert.Equal(t, 0.38, RoundMinor(0.375))
	assert.Equal(t, 2.34, RoundMinor(2.344))
	assert.Equal(t, 10.00, RoundMinor(10.0))
}

func TestSameAmount(t *testing.T) {
	assert.True(t, SameAmount(10.00, 10.004))
	assert.True(t, SameAmount(125.0, 125.0))
	assert.False(t, SameAmount(10.00, 10.01))
	assert.False(t, SameAmount(0, 0.01))
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(1999), MinorUnits(19.99))
	assert.Equal(t, int64(16250), MinorUnits(162.5))
	assert.Equal(t, int64(0), MinorUnits(0))
	assert.Equal(t, int64(5), MinorUnits(0.05))
}

func TestLineTotal(t *testing.T) {
	line := Line{Quantity: 4, UnitPrice: 2.50, Discount: 1.00, Tax: 0.50}
	assert.Equal(t, 9.50, LineTotal(line))

	bare := Line{Quantity: 10, UnitPrice: 12.5}
	assert.Equal(t, 125.0, LineTotal(bare))
}
