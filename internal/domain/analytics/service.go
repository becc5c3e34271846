package analytics

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/shopdesk/internal/domain/order"
	"github.com/xenking/shopdesk/internal/domain/product"
)

// TopN is the number of best sellers reported by Dashboard and Sales.
const TopN = 5

var (
	// ErrUnavailable is returned when the underlying data could not be read.
	// No partial results accompany it.
	ErrUnavailable = errors.New("aggregation unavailable")
	// ErrInvalidTimeRange is returned for an unknown time range keyword.
	ErrInvalidTimeRange = errors.New("invalid time range")
)

// TimeRange is a lookback window anchored at local midnight of the current day.
type TimeRange string

// Supported time ranges.
const (
	RangeWeek  TimeRange = "week"
	RangeMonth TimeRange = "month"
	RangeYear  TimeRange = "year"
)

// ParseTimeRange validates a time range keyword. An empty keyword selects
// RangeWeek.
func ParseTimeRange(s string) (TimeRange, error) {
	switch r := TimeRange(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return RangeWeek, nil
	case RangeWeek, RangeMonth, RangeYear:
		return r, nil
	default:
		return "", errors.Wrapf(ErrInvalidTimeRange, "%q", s)
	}
}

// Start returns the first instant of the window: local midnight of now's date
// in loc, minus 7 days, one month or one year.
func (r TimeRange) Start(now time.Time, loc *time.Location) time.Time {
	y, m, d := now.In(loc).Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, loc)
	switch r {
	case RangeMonth:
		return midnight.AddDate(0, -1, 0)
	case RangeYear:
		return midnight.AddDate(-1, 0, 0)
	default:
		return midnight.AddDate(0, 0, -7)
	}
}

// Dashboard is an all-time summary of the store.
type Dashboard struct {
	TotalProducts int             `json:"totalProducts"`
	TotalOrders   int             `json:"totalOrders"`
	TotalRevenue  decimal.Decimal `json:"totalRevenue"`
	TopProducts   []ProductSales  `json:"topProducts"`
}

// Sales is the analytics report for one time range.
type Sales struct {
	TimeRange      TimeRange      `json:"timeRange"`
	Start          time.Time      `json:"start"`
	SalesTrend     []DailyCount   `json:"salesTrend"`
	TopProducts    []ProductSales `json:"topProducts"`
	ActivityByHour []HourlyCount  `json:"activityByHour"`
}

// Reporter produces dashboard and sales reports.
type Reporter interface {
	Dashboard(ctx context.Context) (*Dashboard, error)
	Sales(ctx context.Context, timeRange string) (*Sales, error)
}

// ProductLister lists the product catalog.
type ProductLister interface {
	List(ctx context.Context) ([]product.Product, error)
}

// OrderLister lists orders created at or after since, with items and current
// product data. A zero since lists every order.
type OrderLister interface {
	List(ctx context.Context, since time.Time) ([]order.Order, error)
}

// Service computes reports straight from the data sources.
type Service struct {
	products ProductLister
	orders   OrderLister
	loc      *time.Location
	now      func() time.Time
	tracer   trace.Tracer
}

var _ Reporter = (*Service)(nil)

// NewService creates an analytics Service. Calendar dates and hours are
// bucketed in loc.
func NewService(products ProductLister, orders OrderLister, loc *time.Location, tp trace.TracerProvider) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		products: products,
		orders:   orders,
		loc:      loc,
		now:      time.Now,
		tracer:   tp.Tracer("github.com/xenking/shopdesk/internal/domain/analytics"),
	}
}

// Location returns the time zone used for bucketing.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Dashboard returns product and order counts, revenue at current prices and
// the all-time best sellers.
func (s *Service) Dashboard(ctx context.Context) (_ *Dashboard, rerr error) {
	ctx, span := s.tracer.Start(ctx, "analytics.Dashboard")
	defer func() { endSpan(span, rerr) }()

	var (
		products []product.Product
		orders   []order.Order
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if products, err = s.products.List(gctx); err != nil {
			return errors.Wrap(err, "list products")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if orders, err = s.orders.List(gctx, time.Time{}); err != nil {
			return errors.Wrap(err, "list orders")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, unavailable(err)
	}

	return &Dashboard{
		TotalProducts: len(products),
		TotalOrders:   len(orders),
		TotalRevenue:  Revenue(orders),
		TopProducts:   TopProducts(orders, TopN),
	}, nil
}

// Sales returns the trend and hourly activity for the window selected by
// timeRange, plus the all-time best sellers.
func (s *Service) Sales(ctx context.Context, timeRange string) (_ *Sales, rerr error) {
	r, err := ParseTimeRange(timeRange)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "analytics.Sales",
		trace.WithAttributes(attribute.String("analytics.time_range", string(r))),
	)
	defer func() { endSpan(span, rerr) }()

	start := r.Start(s.now(), s.loc)

	// One read feeds every aggregation so the report reflects a single
	// snapshot. The windowed aggregations drop orders before start.
	all, err := s.orders.List(ctx, time.Time{})
	if err != nil {
		return nil, unavailable(errors.Wrap(err, "list orders"))
	}

	return &Sales{
		TimeRange:      r,
		Start:          start,
		SalesTrend:     SalesTrend(all, start, s.loc),
		TopProducts:    TopProducts(all, TopN),
		ActivityByHour: ActivityByHour(all, start, s.loc),
	}, nil
}

// unavailableError reports a failed data read. It matches both ErrUnavailable
// and the underlying cause.
type unavailableError struct {
	err error
}

func (e *unavailableError) Error() string {
	return ErrUnavailable.Error() + ": " + e.err.Error()
}

func (e *unavailableError) Unwrap() []error {
	return []error{ErrUnavailable, e.err}
}

func unavailable(err error) error {
	return &unavailableError{err: err}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
