package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/shopdesk/internal/domain/discount"
	"github.com/xenking/shopdesk/internal/domain/pricing"
	"github.com/xenking/shopdesk/internal/domain/product"
)

// QuoteResult is a priced, unpersisted cart.
type QuoteResult struct {
	Totals   pricing.Totals
	Discount discount.Resolution
}

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	CustomerName    string
	DeliveryAddress string
	Items           []pricing.Line
	DiscountCode    string
}

// PlaceOrderResult holds the output of a successfully placed order.
type PlaceOrderResult struct {
	Order    *Order
	Totals   pricing.Totals
	Discount discount.Resolution
}

// Service encapsulates order business logic.
type Service struct {
	products  product.Repository
	discounts discount.Resolver
	orders    Repository
	now       func() time.Time
	placed    func(ctx context.Context)
}

// NewService creates an order Service. placed, when non-nil, is called after
// every successfully persisted order.
func NewService(
	products product.Repository,
	discounts discount.Resolver,
	orders Repository,
	placed func(ctx context.Context),
) *Service {
	return &Service{
		products:  products,
		discounts: discounts,
		orders:    orders,
		now:       time.Now,
		placed:    placed,
	}
}

// Quote prices lines with an optional discount code without persisting
// anything. Unknown products are priced at zero.
func (s *Service) Quote(ctx context.Context, lines []pricing.Line, code string) (*QuoteResult, error) {
	if err := pricing.ValidateLines(lines); err != nil {
		return nil, err
	}

	fetched, err := s.products.GetByIDs(ctx, productIDs(lines))
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}

	res, err := s.discounts.Resolve(ctx, code)
	if err != nil {
		return nil, errors.Wrap(err, "resolve discount")
	}

	return &QuoteResult{
		Totals:   pricing.Compute(lines, product.Prices(fetched), res.Discount),
		Discount: res,
	}, nil
}

// PlaceOrder validates the request, fetches products in a single batch,
// resolves the discount code and persists the order as pending. An invalid
// code does not fail the order: it is placed without a discount and the
// outcome is reported in the result.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	name := strings.TrimSpace(req.CustomerName)
	if name == "" {
		return nil, &ValidationError{Field: "customerName", Reason: "must not be empty"}
	}
	address := strings.TrimSpace(req.DeliveryAddress)
	if address == "" {
		return nil, &ValidationError{Field: "deliveryAddress", Reason: "must not be empty"}
	}
	if err := pricing.ValidateLines(req.Items); err != nil {
		return nil, err
	}

	fetched, err := s.products.GetByIDs(ctx, productIDs(req.Items))
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]*product.Product, len(fetched))
	for i := range fetched {
		byID[fetched[i].ID] = &fetched[i]
	}

	items := make([]Item, len(req.Items))
	for i, l := range req.Items {
		p, ok := byID[l.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: l.ProductID}
		}
		items[i] = Item{ProductID: l.ProductID, Quantity: l.Quantity, Product: p}
	}

	res, err := s.discounts.Resolve(ctx, req.DiscountCode)
	if err != nil {
		return nil, errors.Wrap(err, "resolve discount")
	}

	o := &Order{
		ID:              uuid.New().String(),
		CustomerName:    name,
		DeliveryAddress: address,
		CreatedAt:       s.now(),
		Status:          StatusPending,
		Items:           items,
		Discount:        res.Discount,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	if s.placed != nil {
		s.placed(ctx)
	}

	return &PlaceOrderResult{
		Order:    o,
		Totals:   o.Totals(),
		Discount: res,
	}, nil
}

// Get returns a single order.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %s", id)
	}
	return o, nil
}

// List returns orders matching f, newest first. The lower date bound is
// pushed down to the repository; the rest of f is applied here.
func (s *Service) List(ctx context.Context, f Filter) ([]Order, error) {
	all, err := s.orders.List(ctx, f.From)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	out := make([]Order, 0, len(all))
	for i := range all {
		if f.Match(&all[i]) {
			out = append(out, all[i])
		}
	}
	return out, nil
}

func productIDs(lines []pricing.Line) []string {
	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	return ids
}
