package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Decision is the outcome of a rate limit check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter decides whether the request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string, now time.Time) (Decision, error)
}

// KeyFunc extracts the rate limit key from a request.
type KeyFunc func(*http.Request) string

// RateLimit rejects requests over the limit with 429 and a JSON body. Every
// response carries X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset. Limiter failures are logged and the request proceeds.
// A nil keyFunc keys by client IP.
func RateLimit(l Limiter, keyFunc KeyFunc) Middleware {
	if keyFunc == nil {
		keyFunc = ClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			d, err := l.Allow(r.Context(), keyFunc(r), now)
			if err != nil {
				zctx.From(r.Context()).Warn("Rate limiter unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

			if !d.Allowed {
				retryAfter := max(d.ResetAt.Sub(now), 0)
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP keys requests by the first X-Forwarded-For address, then
// X-Real-IP, then the remote address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SlidingWindow is an in-process Limiter approximating a sliding window by
// weighting the previous fixed window by its overlap with the current one.
type SlidingWindow struct {
	max    int
	window time.Duration

	mu      sync.Mutex
	entries map[string]*windowEntry
}

type windowEntry struct {
	prevCount float64
	prevStart time.Time
	currCount float64
	currStart time.Time
}

var _ Limiter = (*SlidingWindow)(nil)

// NewSlidingWindow allows max requests per window and key.
func NewSlidingWindow(max int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{max: max, window: window, entries: make(map[string]*windowEntry)}
}

// Allow implements Limiter.
func (l *SlidingWindow) Allow(_ context.Context, key string, now time.Time) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &windowEntry{currStart: now}
		l.entries[key] = e
	}

	if now.Sub(e.currStart) >= l.window {
		e.prevCount, e.prevStart = e.currCount, e.currStart
		e.currCount = 0
		e.currStart = now.Truncate(l.window)
		if now.Sub(e.prevStart) >= 2*l.window {
			e.prevCount = 0
		}
	}

	overlap := max(1-now.Sub(e.currStart).Seconds()/l.window.Seconds(), 0)
	effective := e.prevCount*overlap + e.currCount
	d := Decision{Limit: l.max, ResetAt: e.currStart.Add(l.window)}
	if effective >= float64(l.max) {
		return d, nil
	}

	e.currCount++
	d.Allowed = true
	d.Remaining = max(int(float64(l.max)-effective-1), 0)
	return d, nil
}

// Cleanup removes entries whose windows have fully expired.
func (l *SlidingWindow) Cleanup(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, e := range l.entries {
		if now.Sub(e.currStart) >= 2*l.window {
			delete(l.entries, key)
		}
	}
}

// StartCleanup evicts expired entries every two windows until ctx is done.
func (l *SlidingWindow) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(2 * l.window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				l.Cleanup(now)
			}
		}
	}()
}

// Counter is a shared fixed-window counter, such as the Redis cache.
type Counter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// FixedWindow is a Limiter backed by a Counter shared between replicas.
type FixedWindow struct {
	counter Counter
	max     int
	window  time.Duration
}

var _ Limiter = (*FixedWindow)(nil)

// NewFixedWindow allows max requests per window and key.
func NewFixedWindow(c Counter, max int, window time.Duration) *FixedWindow {
	return &FixedWindow{counter: c, max: max, window: window}
}

// Allow implements Limiter.
func (l *FixedWindow) Allow(ctx context.Context, key string, now time.Time) (Decision, error) {
	count, resetIn, err := l.counter.IncrWindow(ctx, key, l.window)
	if err != nil {
		return Decision{}, errors.Wrap(err, "increment window")
	}
	return Decision{
		Allowed:   count <= int64(l.max),
		Limit:     l.max,
		Remaining: int(max(int64(l.max)-count, 0)),
		ResetAt:   now.Add(resetIn),
	}, nil
}

// writeError writes the API error body {"code", "message"}.
func writeError(w http.ResponseWriter, status int, msg string) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(status) })
		e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
