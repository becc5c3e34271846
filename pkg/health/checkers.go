package health

import (
	"context"
	"runtime"
	"runtime/debug"
	"slices"
	"time"

	"github.com/go-faster/errors"
)

// Pinger is a dependency that can be probed, such as *pgxpool.Pool or the
// Redis cache.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck reports the dependency unhealthy while its Ping fails.
func PingCheck(name string, p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return errors.Wrapf(err, "ping %s", name)
		}
		return nil
	}
}

// GoroutineCountCheck fails when more than threshold goroutines are running.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}

// GCMaxPauseCheck fails when a recent stop-the-world GC pause took longer
// than threshold.
func GCMaxPauseCheck(threshold time.Duration) CheckFunc {
	return func(context.Context) error {
		var stats debug.GCStats
		debug.ReadGCStats(&stats)
		if i := slices.IndexFunc(stats.Pause, func(d time.Duration) bool { return d > threshold }); i >= 0 {
			return errors.Errorf("GC pause %s exceeds threshold %s", stats.Pause[i], threshold)
		}
		return nil
	}
}
