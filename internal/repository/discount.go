package repository

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/shopdesk/internal/domain/discount"
)

const (
	discountColumns = `id, name, kind, value, COALESCE(code, ''), start_date, end_date, created_at`

	createDiscountSQL = `INSERT INTO discounts (id, name, kind, value, code, start_date, end_date, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)`

	listDiscountsSQL = `SELECT ` + discountColumns + ` FROM discounts ORDER BY created_at DESC, id DESC`

	findActiveDiscountSQL = `SELECT ` + discountColumns + ` FROM discounts
		WHERE code = $1 AND start_date <= $2 AND end_date >= $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1`

	listDiscountCodesSQL = `SELECT code FROM discounts WHERE code IS NOT NULL`

	hasDiscountCodeSQL = `SELECT EXISTS (SELECT 1 FROM discounts WHERE code = $1)`
)

var _ discount.Repository = (*DiscountRepository)(nil)

// DiscountRepository implements discount.Repository backed by PostgreSQL.
// Empty codes are stored as NULL so they never match a lookup.
type DiscountRepository struct {
	pool *pgxpool.Pool
}

// NewDiscountRepository returns a DiscountRepository that uses the given pool.
func NewDiscountRepository(pool *pgxpool.Pool) *DiscountRepository {
	return &DiscountRepository{pool: pool}
}

// Create inserts a discount.
func (r *DiscountRepository) Create(ctx context.Context, d *discount.Discount) error {
	_, err := r.pool.Exec(ctx, createDiscountSQL,
		d.ID, d.Name, string(d.Kind), d.Value, d.Code, d.StartDate, d.EndDate, d.CreatedAt,
	)
	if err == nil {
		return nil
	}
	if constraint, ok := isCheckViolation(err); ok {
		return &discount.ValidationError{Field: checkField(constraint), Reason: "violates " + constraint}
	}
	if isOutOfRange(err) {
		return &discount.ValidationError{Field: "value", Reason: "out of range"}
	}
	return errors.Wrapf(err, "create discount %q", d.ID)
}

// List returns every discount, newest first.
func (r *DiscountRepository) List(ctx context.Context) ([]discount.Discount, error) {
	rows, err := r.pool.Query(ctx, listDiscountsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list discounts")
	}
	discounts, err := pgx.CollectRows(rows, scanDiscount)
	if err != nil {
		return nil, errors.Wrap(err, "scan discounts")
	}
	return discounts, nil
}

// FindActiveByCode implements discount.Repository.
func (r *DiscountRepository) FindActiveByCode(ctx context.Context, code string, at time.Time) (*discount.Discount, error) {
	rows, err := r.pool.Query(ctx, findActiveDiscountSQL, code, at)
	if err != nil {
		return nil, errors.Wrap(err, "find discount")
	}
	d, err := pgx.CollectExactlyOneRow(rows, scanDiscount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrNotFound
		}
		return nil, errors.Wrap(err, "scan discount")
	}
	return &d, nil
}

// Codes streams every non-empty discount code to fn.
func (r *DiscountRepository) Codes(ctx context.Context, fn func(code string)) error {
	rows, err := r.pool.Query(ctx, listDiscountCodesSQL)
	if err != nil {
		return errors.Wrap(err, "list discount codes")
	}
	var code string
	_, err = pgx.ForEachRow(rows, []any{&code}, func() error {
		fn(code)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "scan discount codes")
	}
	return nil
}

// HasCode reports whether any discount, active or not, uses code.
func (r *DiscountRepository) HasCode(ctx context.Context, code string) (bool, error) {
	var ok bool
	if err := r.pool.QueryRow(ctx, hasDiscountCodeSQL, code).Scan(&ok); err != nil {
		return false, errors.Wrap(err, "check discount code")
	}
	return ok, nil
}

func scanDiscount(row pgx.CollectableRow) (discount.Discount, error) {
	var (
		d    discount.Discount
		kind string
	)
	err := row.Scan(&d.ID, &d.Name, &kind, &d.Value, &d.Code, &d.StartDate, &d.EndDate, &d.CreatedAt)
	d.Kind = discount.Kind(kind)
	return d, err
}

// checkField maps a discounts CHECK constraint to the offending input field.
func checkField(constraint string) string {
	switch constraint {
	case "discounts_kind_check":
		return "type"
	case "discounts_value_check":
		return "value"
	case "discounts_end_date_check":
		return "endDate"
	default:
		return constraint
	}
}
