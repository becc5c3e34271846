package main

import (
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/xenking/shopdesk/internal/domain/discount"
	"github.com/xenking/shopdesk/internal/domain/order"
	"github.com/xenking/shopdesk/internal/domain/product"
)

var (
	customers = []string{"Ada Lovelace", "Alan Turing", "Grace Hopper", "Edsger Dijkstra", "Barbara Liskov", "Ken Thompson"}
	streets   = []string{"Analytical St", "Enigma Rd", "Compiler Ave", "Semaphore Ln", "Substitution Pl", "Unix Blvd"}
	statuses  = []order.Status{
		order.StatusPending, order.StatusProcessing, order.StatusShipped, order.StatusDelivered, order.StatusCancelled,
	}
)

// generateOrders builds n orders placed during the days before now. Each
// order has one to four lines and a one in five chance of carrying a
// discount that was active when it was placed.
func generateOrders(
	rng *rand.Rand,
	products []product.Product,
	discounts []discount.Discount,
	n int,
	now time.Time,
	days int,
) []*order.Order {
	if len(products) == 0 || n <= 0 {
		return nil
	}
	span := time.Duration(max(days, 1)) * 24 * time.Hour

	orders := make([]*order.Order, 0, n)
	for range n {
		at := now.Add(-time.Duration(rng.Int64N(int64(span)))).Truncate(time.Second)

		items := make([]order.Item, 1+rng.IntN(min(4, len(products))))
		for i, idx := range rng.Perm(len(products))[:len(items)] {
			items[i] = order.Item{ProductID: products[idx].ID, Quantity: 1 + rng.IntN(3)}
		}

		o := &order.Order{
			ID:              uuid.NewString(),
			CustomerName:    customers[rng.IntN(len(customers))],
			DeliveryAddress: streets[rng.IntN(len(streets))],
			CreatedAt:       at,
			Status:          statuses[rng.IntN(len(statuses))],
			Items:           items,
		}
		if rng.IntN(5) == 0 {
			o.Discount = pickActive(rng, discounts, at)
		}
		orders = append(orders, o)
	}
	return orders
}

func pickActive(rng *rand.Rand, discounts []discount.Discount, at time.Time) *discount.Discount {
	var active []*discount.Discount
	for i := range discounts {
		if discounts[i].IsActive(at) {
			active = append(active, &discounts[i])
		}
	}
	if len(active) == 0 {
		return nil
	}
	return active[rng.IntN(len(active))]
}
