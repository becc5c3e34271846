package discount

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind enumerates the supported discount strategies.
type Kind string

const (
	// KindPercentage reduces the subtotal by Value percent.
	KindPercentage Kind = "percentage"
	// KindFixed subtracts Value from the subtotal, never going below zero.
	KindFixed Kind = "fixed"
)

// ParseKind converts user input into a Kind. Matching is case-insensitive so
// that both "FIXED" and "fixed" are accepted.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindPercentage:
		return KindPercentage, nil
	case KindFixed:
		return KindFixed, nil
	default:
		return "", &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown discount type %q", s)}
	}
}

// ErrNotFound is returned by a Repository when no active discount matches a code.
var ErrNotFound = errors.New("discount not found")

// ValidationError describes a user-correctable problem with discount input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid discount %s: %s", e.Field, e.Reason)
}

// maxValue is the exclusive upper bound of a storable discount value.
var maxValue = decimal.New(1, 10)

// Discount is a price reduction that may be attached to an order while its
// validity window is open.
type Discount struct {
	ID        string
	Name      string
	Kind      Kind
	Value     decimal.Decimal
	Code      string
	StartDate time.Time
	EndDate   time.Time
	CreatedAt time.Time
}

// IsActive reports whether t falls inside [StartDate, EndDate]. Both bounds
// are inclusive.
func (d *Discount) IsActive(t time.Time) bool {
	return !t.Before(d.StartDate) && !t.After(d.EndDate)
}

// Repository provides persistence for discounts.
type Repository interface {
	Create(ctx context.Context, d *Discount) error
	List(ctx context.Context) ([]Discount, error)
	// FindActiveByCode returns the most recently created discount whose code
	// equals code and whose window contains at. It returns ErrNotFound when
	// nothing matches.
	FindActiveByCode(ctx context.Context, code string, at time.Time) (*Discount, error)
}
