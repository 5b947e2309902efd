// Package pricing computes line and cart totals in integer cents.
//
// Aggregate is the only place a total is derived: cart estimates and the
// authoritative order total both call it, so the two can never disagree.
package pricing

import "github.com/shopspring/decimal"

const (
	// BulkThreshold is the aggregate quantity at which the bulk rate applies.
	BulkThreshold = 50
	// MinimumOrderQuantity is the smallest aggregate quantity accepted at checkout.
	MinimumOrderQuantity = 12

	// MaxLineQuantity and MaxUnitPriceCents bound a single line so that
	// totals stay far from int64 overflow.
	MaxLineQuantity   = 10_000
	MaxUnitPriceCents = 10_000_000
)

// bulkRate is the share of the unit price charged once BulkThreshold is met.
var bulkRate = decimal.RequireFromString("0.9")

// Line is the pricing view of a cart or order line item.
type Line struct {
	UnitPriceCents int64
	Quantity       int
}

// Pricer is implemented by cart and order items.
type Pricer interface {
	PricingLine() Line
}

// Lines converts items to their pricing view.
func Lines[T Pricer](items []T) []Line {
	lines := make([]Line, len(items))
	for i, item := range items {
		lines[i] = item.PricingLine()
	}
	return lines
}

// Totals holds the aggregate pricing of a set of lines.
type Totals struct {
	SubtotalCents   int64
	TotalQuantity   int
	DiscountApplied bool
	TotalCents      int64
}

// DiscountCents returns how much the bulk discount took off the subtotal.
func (t Totals) DiscountCents() int64 {
	return t.SubtotalCents - t.TotalCents
}

// LineTotal returns unitPriceCents * quantity.
func LineTotal(unitPriceCents int64, quantity int) int64 {
	return unitPriceCents * int64(quantity)
}

// BulkUnitPrice returns the discounted unit price, floored to a whole cent.
func BulkUnitPrice(unitPriceCents int64) int64 {
	return decimal.NewFromInt(unitPriceCents).Mul(bulkRate).Floor().IntPart()
}

// Aggregate prices lines as a whole. When the total quantity reaches
// BulkThreshold every line is charged at BulkUnitPrice, flooring per unit
// before summing, so the result may differ from a flat 10% off the subtotal.
func Aggregate(lines []Line) Totals {
	var t Totals
	for _, l := range lines {
		t.TotalQuantity += l.Quantity
		t.SubtotalCents += LineTotal(l.UnitPriceCents, l.Quantity)
	}

	t.DiscountApplied = t.TotalQuantity >= BulkThreshold
	if !t.DiscountApplied {
		t.TotalCents = t.SubtotalCents
		return t
	}

	for _, l := range lines {
		t.TotalCents += LineTotal(BulkUnitPrice(l.UnitPriceCents), l.Quantity)
	}
	return t
}

// MeetsMinimum reports whether quantity satisfies MinimumOrderQuantity.
func MeetsMinimum(quantity int) bool {
	return quantity >= MinimumOrderQuantity
}
