package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (SHOPDESK_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (SHOPDESK_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Timezone    string `default:"UTC" usage:"IANA zone for plain dates and report buckets"`
	Cache       CacheConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig

	location *time.Location
}

// CacheConfig controls the analytics report cache. Without a Redis URL an
// in-process cache is used and rate limits are tracked per replica.
type CacheConfig struct {
	TTL           time.Duration `default:"5m" usage:"Lifetime of cached reports"`
	RedisURL      string        `usage:"Redis URL (SHOPDESK_CACHE_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	SweepInterval time.Duration `default:"1m" usage:"Expired entry sweep interval of the in-process cache"`
}

// RateLimitConfig controls the per-client rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// Location returns the zone loaded from Timezone.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// LoadConfig loads configuration from flags, environment variables and YAML
// config files, then applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "SHOPDESK",
		Files:     []string{"config.yaml", "/etc/shopdesk/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set SHOPDESK_DATABASE_URL or DATABASE_URL")
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "load timezone %q", cfg.Timezone)
	}
	cfg.location = loc
	if cfg.RateLimit.Max <= 0 || cfg.RateLimit.Window <= 0 {
		return nil, errors.Errorf("invalid rate limit %d per %s", cfg.RateLimit.Max, cfg.RateLimit.Window)
	}
	if cfg.Cache.TTL <= 0 || cfg.Cache.SweepInterval <= 0 {
		return nil, errors.Errorf("invalid cache ttl %s or sweep interval %s", cfg.Cache.TTL, cfg.Cache.SweepInterval)
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// SHOPDESK_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Cache.RedisURL == "" {
		c.Cache.RedisURL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
