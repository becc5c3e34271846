package product

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/shopdesk/internal/domain/pricing"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// maxPrice is the exclusive upper bound of a storable price.
var maxPrice = decimal.New(1, 10)

// Product represents a catalog item available for purchase.
type Product struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	CreatedAt time.Time
}

// ValidationError describes a user-correctable problem with product input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid product %s: %s", e.Field, e.Reason)
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	Create(ctx context.Context, p *Product) error
	List(ctx context.Context) ([]Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}

// Prices builds a price lookup from products.
func Prices(products []Product) pricing.PriceMap {
	m := make(pricing.PriceMap, len(products))
	for _, p := range products {
		m[p.ID] = p.Price
	}
	return m
}

// Service implements catalog management.
type Service struct {
	repo    Repository
	now     func() time.Time
	changed func(ctx context.Context)
}

// NewService creates a product Service. changed, when non-nil, is called
// after every successful Create.
func NewService(repo Repository, changed func(ctx context.Context)) *Service {
	return &Service{repo: repo, now: time.Now, changed: changed}
}

// Create validates and persists a new product.
func (s *Service) Create(ctx context.Context, name string, price decimal.Decimal) (*Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if price.IsNegative() {
		return nil, &ValidationError{Field: "price", Reason: "must not be negative"}
	}
	if price.GreaterThanOrEqual(maxPrice) {
		return nil, &ValidationError{Field: "price", Reason: "must be less than " + maxPrice.String()}
	}

	p := &Product{
		ID:        uuid.New().String(),
		Name:      name,
		Price:     price,
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create product")
	}
	if s.changed != nil {
		s.changed(ctx)
	}
	return p, nil
}

// List returns the whole catalog.
func (s *Service) List(ctx context.Context) ([]Product, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return list, nil
}
