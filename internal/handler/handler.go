// Package handler exposes the back-office operations over HTTP.
package handler

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/shopdesk/internal/domain/analytics"
	"github.com/xenking/shopdesk/internal/domain/discount"
	"github.com/xenking/shopdesk/internal/domain/order"
	"github.com/xenking/shopdesk/internal/domain/pricing"
	"github.com/xenking/shopdesk/internal/domain/product"
)

// ProductService manages the catalog.
type ProductService interface {
	Create(ctx context.Context, name string, price decimal.Decimal) (*product.Product, error)
	List(ctx context.Context) ([]product.Product, error)
}

// DiscountService manages discounts and resolves codes.
type DiscountService interface {
	Create(ctx context.Context, req discount.CreateRequest) (*discount.Discount, error)
	List(ctx context.Context) ([]discount.Discount, error)
	Resolve(ctx context.Context, code string) (discount.Resolution, error)
}

// OrderService prices, places and reads orders.
type OrderService interface {
	Quote(ctx context.Context, lines []pricing.Line, code string) (*order.QuoteResult, error)
	PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (*order.PlaceOrderResult, error)
	Get(ctx context.Context, id string) (*order.Order, error)
	List(ctx context.Context, f order.Filter) ([]order.Order, error)
}

var (
	_ ProductService  = (*product.Service)(nil)
	_ DiscountService = (*discount.Service)(nil)
	_ OrderService    = (*order.Service)(nil)
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// Location interprets plain dates in requests and labels in reports.
	Location *time.Location
}

// Handler serves the JSON API, delegating business logic to the domain
// services.
type Handler struct {
	products  ProductService
	discounts DiscountService
	orders    OrderService
	reports   analytics.Reporter
	loc       *time.Location
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg Config,
	products ProductService,
	discounts DiscountService,
	orders OrderService,
	reports analytics.Reporter,
) *Handler {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &Handler{
		products:  products,
		discounts: discounts,
		orders:    orders,
		reports:   reports,
		loc:       loc,
	}
}

// Register mounts the API routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.ListProducts)
		r.Post("/products", h.CreateProduct)

		r.Get("/discounts", h.ListDiscounts)
		r.Post("/discounts", h.CreateDiscount)
		r.Get("/discounts/apply", h.ApplyDiscount)

		r.Post("/orders/quote", h.QuoteOrder)
		r.Get("/orders", h.ListOrders)
		r.Post("/orders", h.PlaceOrder)
		r.Get("/orders/{id}", h.GetOrder)

		r.Get("/dashboard", h.Dashboard)
		r.Get("/analytics", h.Analytics)
	})
}
