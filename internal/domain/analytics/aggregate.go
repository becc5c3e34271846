// Package analytics aggregates order history into dashboard figures.
//
// The aggregation functions are pure and operate on materialized orders.
// SalesTrend emits sparse daily buckets (only dates with orders) while
// ActivityByHour always emits all 24 hourly buckets.
package analytics

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/shopdesk/internal/domain/order"
	"github.com/xenking/shopdesk/internal/domain/pricing"
)

// UnknownProductName labels products that no longer resolve.
const UnknownProductName = "Unknown"

// DateLayout is the layout of DailyCount.Date.
const DateLayout = "2006-01-02"

// DailyCount is the number of orders placed on one local calendar date.
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// HourlyCount is the number of orders placed during one local hour of day.
type HourlyCount struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// ProductSales is the total quantity sold of one product.
type ProductSales struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Quantity  int64  `json:"quantity"`
}

// SalesTrend counts orders created at or after start per local date in loc,
// ascending by date. Dates without orders are omitted.
func SalesTrend(orders []order.Order, start time.Time, loc *time.Location) []DailyCount {
	counts := make(map[string]int)
	for i := range orders {
		at := orders[i].CreatedAt
		if at.Before(start) {
			continue
		}
		counts[at.In(loc).Format(DateLayout)]++
	}

	out := make([]DailyCount, 0, len(counts))
	for d, c := range counts {
		out = append(out, DailyCount{Date: d, Count: c})
	}
	slices.SortFunc(out, func(a, b DailyCount) int {
		return cmp.Compare(a.Date, b.Date)
	})
	return out
}

// ActivityByHour counts orders created at or after start per local hour of
// day in loc. The result always has 24 entries, indexed by hour.
func ActivityByHour(orders []order.Order, start time.Time, loc *time.Location) []HourlyCount {
	out := make([]HourlyCount, 24)
	for h := range out {
		out[h].Hour = h
	}
	for i := range orders {
		at := orders[i].CreatedAt
		if at.Before(start) {
			continue
		}
		out[at.In(loc).Hour()].Count++
	}
	return out
}

// TopProducts sums item quantities per product over orders and returns the n
// best sellers, descending by quantity. Ties are broken by product ID.
func TopProducts(orders []order.Order, n int) []ProductSales {
	if n <= 0 {
		return []ProductSales{}
	}

	byID := make(map[string]*ProductSales)
	for i := range orders {
		for _, it := range orders[i].Items {
			ps, ok := byID[it.ProductID]
			if !ok {
				ps = &ProductSales{ProductID: it.ProductID, Name: UnknownProductName}
				byID[it.ProductID] = ps
			}
			if it.Product != nil && it.Product.Name != "" {
				ps.Name = it.Product.Name
			}
			ps.Quantity += int64(it.Quantity)
		}
	}

	out := make([]ProductSales, 0, len(byID))
	for _, ps := range byID {
		out = append(out, *ps)
	}
	slices.SortFunc(out, func(a, b ProductSales) int {
		if c := cmp.Compare(b.Quantity, a.Quantity); c != 0 {
			return c
		}
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Revenue sums quantity times current unit price over every order line.
// Discounts are not deducted.
func Revenue(orders []order.Order) decimal.Decimal {
	total := decimal.Zero
	for i := range orders {
		total = total.Add(pricing.Subtotal(orders[i].Lines(), orders[i].Prices()))
	}
	return total
}
