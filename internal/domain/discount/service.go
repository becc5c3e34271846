package discount

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Outcome tells callers how a submitted code was handled, so that an invalid
// code can be told apart from no code at all.
type Outcome string

const (
	// OutcomeNone means no code was supplied.
	OutcomeNone Outcome = "none"
	// OutcomeApplied means the code matched an active discount.
	OutcomeApplied Outcome = "applied"
	// OutcomeInvalid means a code was supplied but no active discount matched.
	OutcomeInvalid Outcome = "invalid"
)

// Resolution is the result of resolving a discount code. Discount is non-nil
// only when Outcome is OutcomeApplied.
type Resolution struct {
	Code     string
	Outcome  Outcome
	Discount *Discount
}

// Resolver resolves user-supplied discount codes.
type Resolver interface {
	Resolve(ctx context.Context, code string) (Resolution, error)
}

// CreateRequest holds the input for creating a discount.
type CreateRequest struct {
	Name      string
	Kind      string
	Value     decimal.Decimal
	Code      string
	StartDate time.Time
	EndDate   time.Time
}

// Service implements discount management and code resolution on top of a
// Repository.
type Service struct {
	repo Repository
	now  func() time.Time
}

var _ Resolver = (*Service)(nil)

// NewService creates a discount Service backed by repo.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create validates req and persists a new discount. Percentage values above
// 100 are accepted as-is.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Discount, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	kind, err := ParseKind(req.Kind)
	if err != nil {
		return nil, err
	}
	if req.Value.IsNegative() {
		return nil, &ValidationError{Field: "value", Reason: "must not be negative"}
	}
	if req.Value.GreaterThanOrEqual(maxValue) {
		return nil, &ValidationError{Field: "value", Reason: "must be less than " + maxValue.String()}
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		return nil, &ValidationError{Field: "dates", Reason: "start and end dates are required"}
	}
	if req.EndDate.Before(req.StartDate) {
		return nil, &ValidationError{Field: "dates", Reason: "end date is before start date"}
	}

	d := &Discount{
		ID:        uuid.New().String(),
		Name:      name,
		Kind:      kind,
		Value:     req.Value,
		Code:      strings.TrimSpace(req.Code),
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, errors.Wrap(err, "create discount")
	}
	return d, nil
}

// List returns all discounts.
func (s *Service) List(ctx context.Context) ([]Discount, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list discounts")
	}
	return list, nil
}

// Resolve looks up code at the current instant.
func (s *Service) Resolve(ctx context.Context, code string) (Resolution, error) {
	return s.ResolveAt(ctx, code, s.now())
}

// ResolveAt looks up the active discount for code at instant at. A blank code
// resolves to OutcomeNone and an unknown or expired code to OutcomeInvalid.
// Neither case is an error; only a failing Repository is.
func (s *Service) ResolveAt(ctx context.Context, code string, at time.Time) (Resolution, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Resolution{Outcome: OutcomeNone}, nil
	}

	d, err := s.repo.FindActiveByCode(ctx, code, at)
	switch {
	case errors.Is(err, ErrNotFound):
		return Resolution{Code: code, Outcome: OutcomeInvalid}, nil
	case err != nil:
		return Resolution{}, errors.Wrap(err, "lookup discount")
	}

	if !d.IsActive(at) {
		return Resolution{Code: code, Outcome: OutcomeInvalid}, nil
	}
	return Resolution{Code: code, Outcome: OutcomeApplied, Discount: d}, nil
}
