package analytics

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/shopdesk/internal/cache"
)

const dashboardKey = "dashboard:summary"

// SalesKey returns the cache key of the sales report for r computed on the
// local date of now.
func SalesKey(r TimeRange, now time.Time, loc *time.Location) string {
	return "analytics:sales:" + string(r) + ":" + now.In(loc).Format(DateLayout)
}

// CachedService memoizes reports of another Reporter in a cache.Cache. Keys
// are derived from the query, so a sales report computed yesterday is never
// served today. Cache failures are logged and the report is computed directly.
type CachedService struct {
	next  Reporter
	cache cache.Cache
	ttl   time.Duration
	loc   *time.Location
	now   func() time.Time

	hits   metric.Int64Counter
	misses metric.Int64Counter
}

var _ Reporter = (*CachedService)(nil)

// NewCachedService wraps next with a cache whose entries live for ttl.
func NewCachedService(
	next Reporter,
	c cache.Cache,
	ttl time.Duration,
	loc *time.Location,
	mp metric.MeterProvider,
) (*CachedService, error) {
	if loc == nil {
		loc = time.Local
	}
	meter := mp.Meter("github.com/xenking/shopdesk/internal/domain/analytics")
	hits, err := meter.Int64Counter("analytics.cache.hits",
		metric.WithDescription("Reports served from cache"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create hits counter")
	}
	misses, err := meter.Int64Counter("analytics.cache.misses",
		metric.WithDescription("Reports computed because no cached entry was usable"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create misses counter")
	}
	return &CachedService{
		next:   next,
		cache:  c,
		ttl:    ttl,
		loc:    loc,
		now:    time.Now,
		hits:   hits,
		misses: misses,
	}, nil
}

// Dashboard implements Reporter.
func (c *CachedService) Dashboard(ctx context.Context) (*Dashboard, error) {
	return cached(ctx, c, "dashboard", dashboardKey, c.next.Dashboard)
}

// Sales implements Reporter.
func (c *CachedService) Sales(ctx context.Context, timeRange string) (*Sales, error) {
	r, err := ParseTimeRange(timeRange)
	if err != nil {
		return nil, err
	}
	return cached(ctx, c, "sales", SalesKey(r, c.now(), c.loc), func(ctx context.Context) (*Sales, error) {
		return c.next.Sales(ctx, string(r))
	})
}

// Invalidate drops every report that can currently be served.
func (c *CachedService) Invalidate(ctx context.Context) error {
	now := c.now()
	keys := []string{dashboardKey}
	for _, r := range []TimeRange{RangeWeek, RangeMonth, RangeYear} {
		keys = append(keys, SalesKey(r, now, c.loc))
	}
	if err := c.cache.Delete(ctx, keys...); err != nil {
		return errors.Wrap(err, "invalidate reports")
	}
	return nil
}

// OnChange invalidates cached reports, logging failures. It matches the
// change callbacks of the product and order services.
func (c *CachedService) OnChange(ctx context.Context) {
	if err := c.Invalidate(ctx); err != nil {
		zctx.From(ctx).Warn("Report cache invalidation failed", zap.Error(err))
	}
}

func cached[T any](
	ctx context.Context,
	c *CachedService,
	report, key string,
	load func(context.Context) (*T, error),
) (*T, error) {
	lg := zctx.From(ctx).With(zap.String("cache_key", key))
	attrs := metric.WithAttributes(attribute.String("report", report))

	data, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		lg.Warn("Report cache read failed", zap.Error(err))
	}
	if ok {
		var v T
		if err := json.Unmarshal(data, &v); err == nil {
			c.hits.Add(ctx, 1, attrs)
			return &v, nil
		}
		lg.Warn("Dropping undecodable cache entry")
	}
	c.misses.Add(ctx, 1, attrs)

	v, err := load(ctx)
	if err != nil {
		return nil, err
	}

	data, err = json.Marshal(v)
	if err != nil {
		lg.Warn("Report encode failed", zap.Error(err))
		return v, nil
	}
	if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
		lg.Warn("Report cache write failed", zap.Error(err))
	}
	return v, nil
}
