package repository

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/shopdesk/internal/domain/discount"
	"github.com/xenking/shopdesk/internal/domain/order"
	"github.com/xenking/shopdesk/internal/domain/product"
)

const (
	createOrderSQL = `INSERT INTO orders (id, customer_name, delivery_address, order_date, status, discount_id)
		VALUES ($1, $2, $3, $4, $5, $6)`

	createOrderItemSQL = `INSERT INTO order_items (order_id, position, product_id, quantity)
		VALUES ($1, $2, $3, $4)`

	orderSelectSQL = `SELECT o.id, o.customer_name, o.delivery_address, o.order_date, o.status,
			d.id, d.name, d.kind, d.value, COALESCE(d.code, ''), d.start_date, d.end_date, d.created_at
		FROM orders o
		LEFT JOIN discounts d ON d.id = o.discount_id`

	getOrderSQL = orderSelectSQL + ` WHERE o.id = $1`

	listOrdersSQL = orderSelectSQL + ` WHERE o.order_date >= $1 ORDER BY o.order_date DESC, o.id DESC`

	listOrderItemsSQL = `SELECT i.order_id, i.product_id, i.quantity, p.id, p.name, p.price, p.created_at
		FROM order_items i
		LEFT JOIN products p ON p.id = i.product_id
		WHERE i.order_id = ANY($1)
		ORDER BY i.order_id, i.position`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Items are
// stored in their own table and joined with the current catalog on reads.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order and its items in one transaction.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	var discountID *string
	if o.Discount != nil {
		discountID = &o.Discount.ID
	}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, createOrderSQL,
			o.ID, o.CustomerName, o.DeliveryAddress, o.CreatedAt, string(o.Status), discountID,
		); err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for i, it := range o.Items {
			batch.Queue(createOrderItemSQL, o.ID, i, it.ProductID, it.Quantity)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err == nil {
		return nil
	}

	if constraint, ok := isForeignKeyViolation(err); ok {
		if constraint == "order_items_product_id_fkey" {
			return &order.ValidationError{Field: "items", Reason: "references an unknown product"}
		}
		return &order.ValidationError{Field: "discount", Reason: "references an unknown discount"}
	}
	if constraint, ok := isCheckViolation(err); ok {
		return &order.ValidationError{Field: "order", Reason: "violates " + constraint}
	}
	if isOutOfRange(err) {
		return &order.ValidationError{Field: "items", Reason: "quantity out of range"}
	}
	return errors.Wrapf(err, "create order %q", o.ID)
}

// Get returns a single order with its items and discount.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "scan order %q", id)
	}

	orders := []order.Order{o}
	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// List implements order.Repository.
func (r *OrderRepository) List(ctx context.Context, since time.Time) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL, since)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, errors.Wrap(err, "scan orders")
	}
	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// loadItems fills Items of every order with a single query.
func (r *OrderRepository) loadItems(ctx context.Context, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	byID := make(map[string]*order.Order, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		byID[orders[i].ID] = &orders[i]
	}

	rows, err := r.pool.Query(ctx, listOrderItemsSQL, ids)
	if err != nil {
		return errors.Wrap(err, "list order items")
	}

	var (
		orderID  string
		it       order.Item
		pID      *string
		pName    *string
		pPrice   decimal.NullDecimal
		pCreated *time.Time
	)
	_, err = pgx.ForEachRow(rows, []any{&orderID, &it.ProductID, &it.Quantity, &pID, &pName, &pPrice, &pCreated}, func() error {
		item := order.Item{ProductID: it.ProductID, Quantity: it.Quantity}
		if pID != nil {
			item.Product = &product.Product{ID: *pID, Name: *pName, Price: pPrice.Decimal, CreatedAt: *pCreated}
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, item)
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "scan order items")
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string

		dID      *string
		dName    *string
		dKind    *string
		dValue   decimal.NullDecimal
		dCode    string
		dStart   *time.Time
		dEnd     *time.Time
		dCreated *time.Time
	)
	err := row.Scan(
		&o.ID, &o.CustomerName, &o.DeliveryAddress, &o.CreatedAt, &status,
		&dID, &dName, &dKind, &dValue, &dCode, &dStart, &dEnd, &dCreated,
	)
	if err != nil {
		return o, err
	}
	o.Status = order.Status(status)
	if dID != nil {
		o.Discount = &discount.Discount{
			ID:        *dID,
			Name:      *dName,
			Kind:      discount.Kind(*dKind),
			Value:     dValue.Decimal,
			Code:      dCode,
			StartDate: *dStart,
			EndDate:   *dEnd,
			CreatedAt: *dCreated,
		}
	}
	return o, nil
}
