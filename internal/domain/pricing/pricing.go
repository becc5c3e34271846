// Package pricing computes order subtotals, discount application and totals.
//
// Every function here is pure. The same Compute call backs order previews,
// order placement, order reads and dashboard revenue, so all of them agree
// on the arithmetic. Amounts are carried at full precision; rounding to
// cents is left to presentation.
package pricing

import (
	"fmt"
	"math"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/shopdesk/internal/domain/discount"
)

var hundred = decimal.NewFromInt(100)

// ErrNoLines is returned by ValidateLines for an empty line set.
var ErrNoLines = errors.New("at least one item is required")

// MaxQuantity is the largest quantity a single line may carry.
const MaxQuantity = math.MaxInt32

// Line is a product reference with a quantity.
type Line struct {
	ProductID string
	Quantity  int
}

// ValidationError reports a malformed line.
type ValidationError struct {
	ProductID string
	Quantity  int
}

func (e *ValidationError) Error() string {
	if e.Quantity > MaxQuantity {
		return fmt.Sprintf("quantity must be at most %d for product %s, got %d", MaxQuantity, e.ProductID, e.Quantity)
	}
	return fmt.Sprintf("quantity must be at least 1 for product %s, got %d", e.ProductID, e.Quantity)
}

// ValidateLines rejects empty line sets and quantities outside
// [1, MaxQuantity].
func ValidateLines(lines []Line) error {
	if len(lines) == 0 {
		return ErrNoLines
	}
	for _, l := range lines {
		if l.Quantity < 1 || l.Quantity > MaxQuantity {
			return &ValidationError{ProductID: l.ProductID, Quantity: l.Quantity}
		}
	}
	return nil
}

// PriceLookup resolves the current unit price of a product.
type PriceLookup interface {
	Price(productID string) (decimal.Decimal, bool)
}

// PriceMap is a PriceLookup backed by a map.
type PriceMap map[string]decimal.Decimal

// Price implements PriceLookup.
func (m PriceMap) Price(productID string) (decimal.Decimal, bool) {
	p, ok := m[productID]
	return p, ok
}

// Subtotal returns the sum of quantity times unit price over lines. Products
// unknown to prices contribute zero.
func Subtotal(lines []Line, prices PriceLookup) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		price, ok := prices.Price(l.ProductID)
		if !ok {
			continue
		}
		sum = sum.Add(price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return sum
}

// ApplyDiscount returns subtotal after d. A nil d leaves subtotal unchanged.
//
// Fixed discounts are floored at zero. Percentage discounts are not: a value
// above 100 yields a negative total.
func ApplyDiscount(subtotal decimal.Decimal, d *discount.Discount) decimal.Decimal {
	if d == nil {
		return subtotal
	}
	switch d.Kind {
	case discount.KindPercentage:
		return subtotal.Sub(subtotal.Mul(d.Value).Div(hundred))
	case discount.KindFixed:
		total := subtotal.Sub(d.Value)
		if total.IsNegative() {
			return decimal.Zero
		}
		return total
	default:
		return subtotal
	}
}

// Totals is the full price breakdown of a set of lines.
type Totals struct {
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal
}

// Compute prices lines and applies d.
func Compute(lines []Line, prices PriceLookup, d *discount.Discount) Totals {
	subtotal := Subtotal(lines, prices)
	total := ApplyDiscount(subtotal, d)
	return Totals{
		Subtotal:       subtotal,
		DiscountAmount: subtotal.Sub(total),
		Total:          total,
	}
}

// Round returns t with every amount rounded to cents.
func (t Totals) Round() Totals {
	return Totals{
		Subtotal:       t.Subtotal.Round(2),
		DiscountAmount: t.DiscountAmount.Round(2),
		Total:          t.Total.Round(2),
	}
}
