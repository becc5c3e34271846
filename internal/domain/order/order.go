package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/shopdesk/internal/domain/discount"
	"github.com/xenking/shopdesk/internal/domain/pricing"
	"github.com/xenking/shopdesk/internal/domain/product"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// Status is the fulfilment state of an order.
type Status string

// Order statuses. New orders start as StatusPending; later transitions happen
// outside this service.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// ParseStatus validates a status string. Matching is case-insensitive.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return st, nil
	default:
		return "", &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", s)}
	}
}

// Item is an order line. Product is populated on reads with the current
// catalog entry and is nil if the product is unknown.
type Item struct {
	ProductID string
	Quantity  int
	Product   *product.Product
}

// Order is a customer order. Totals are not stored: they are recomputed from
// current product prices and the discount attached at creation.
type Order struct {
	ID              string
	CustomerName    string
	DeliveryAddress string
	CreatedAt       time.Time
	Status          Status
	Items           []Item
	Discount        *discount.Discount
}

// Lines returns the pricing lines of the order.
func (o *Order) Lines() []pricing.Line {
	lines := make([]pricing.Line, len(o.Items))
	for i, it := range o.Items {
		lines[i] = pricing.Line{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return lines
}

// Prices returns the current unit price of every known product in the order.
func (o *Order) Prices() pricing.PriceMap {
	m := make(pricing.PriceMap, len(o.Items))
	for _, it := range o.Items {
		if it.Product != nil {
			m[it.ProductID] = it.Product.Price
		}
	}
	return m
}

// Totals prices the order at current product prices. The attached discount is
// applied as stored, without re-checking its validity window.
func (o *Order) Totals() pricing.Totals {
	return pricing.Compute(o.Lines(), o.Prices(), o.Discount)
}

// ValidationError describes a user-correctable problem with order input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid order %s: %s", e.Field, e.Reason)
}

// ProductNotFoundError indicates an order references a product that does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create persists o and its items atomically.
	Create(ctx context.Context, o *Order) error
	// Get returns an order with items, products and discount, or ErrNotFound.
	Get(ctx context.Context, id string) (*Order, error)
	// List returns orders created at or after since, newest first. A zero
	// since returns every order.
	List(ctx context.Context, since time.Time) ([]Order, error)
}
