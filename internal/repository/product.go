package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/shopdesk/internal/domain/product"
)

const (
	createProductSQL = `INSERT INTO products (id, name, price, created_at) VALUES ($1, $2, $3, $4)`

	listProductsSQL = `SELECT id, name, price, created_at FROM products ORDER BY created_at, id`

	getProductsByIDsSQL = `SELECT id, name, price, created_at FROM products WHERE id = ANY($1)`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// Create inserts a product.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	_, err := r.pool.Exec(ctx, createProductSQL, p.ID, p.Name, p.Price, p.CreatedAt)
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return &product.ValidationError{Field: "id", Reason: "already exists"}
	case isOutOfRange(err):
		return &product.ValidationError{Field: "price", Reason: "out of range"}
	default:
		if _, ok := isCheckViolation(err); ok {
			return &product.ValidationError{Field: "price", Reason: "must not be negative"}
		}
		return errors.Wrapf(err, "create product %q", p.ID)
	}
}

// List returns the whole catalog in creation order.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, errors.Wrap(err, "scan products")
	}
	return products, nil
}

// GetByIDs returns products matching any of the given IDs. Unknown IDs are
// silently absent from the result.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products by ids")
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, errors.Wrap(err, "scan products")
	}
	return products, nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.CreatedAt)
	return p, err
}
