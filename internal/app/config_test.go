package app

import (
	"testing"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLoad(t *testing.T) (*Config, error) {
	t.Helper()
	return loadConfig(aconfig.Config{
		EnvPrefix: "SHOPDESK",
		SkipFiles: true,
		SkipFlags: true,
	})
}

func clearPlatformEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DATABASE_URL", "REDIS_URL", "PORT"} {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearPlatformEnv(t)
	t.Setenv("SHOPDESK_DATABASE_URL", "postgres://localhost/shopdesk")

	cfg, err := testLoad(t)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr)
	assert.Equal(t, "postgres://localhost/shopdesk", cfg.DatabaseURL)
	assert.Equal(t, time.UTC, cfg.Location())
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, time.Minute, cfg.Cache.SweepInterval)
	assert.Empty(t, cfg.Cache.RedisURL)
	assert.Equal(t, 100, cfg.RateLimit.Max)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, []string{"*"}, cfg.CORS.Origins)
	assert.Equal(t, 3*time.Second, cfg.Graceful.ReadinessDelay)
	assert.Equal(t, 15*time.Second, cfg.Graceful.ShutdownTimeout)
}

func TestLoadConfig_PlatformDefaults(t *testing.T) {
	clearPlatformEnv(t)
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("REDIS_URL", "redis://platform:6379/0")
	t.Setenv("PORT", "9090")

	cfg, err := testLoad(t)
	require.NoError(t, err)

	assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
	assert.Equal(t, "redis://platform:6379/0", cfg.Cache.RedisURL)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)
}

func TestLoadConfig_PrefixedWins(t *testing.T) {
	clearPlatformEnv(t)
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("SHOPDESK_DATABASE_URL", "postgres://explicit/db")
	t.Setenv("SHOPDESK_ADDR", "127.0.0.1:7000")
	t.Setenv("PORT", "9090")

	cfg, err := testLoad(t)
	require.NoError(t, err)

	assert.Equal(t, "postgres://explicit/db", cfg.DatabaseURL)
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
}

func TestLoadConfig_Timezone(t *testing.T) {
	clearPlatformEnv(t)
	t.Setenv("SHOPDESK_DATABASE_URL", "postgres://localhost/shopdesk")
	t.Setenv("SHOPDESK_TIMEZONE", "Australia/Sydney")

	cfg, err := testLoad(t)
	require.NoError(t, err)
	assert.Equal(t, "Australia/Sydney", cfg.Location().String())
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{name: "missing database", env: map[string]string{}, wantErr: "database URL is required"},
		{
			name:    "unknown timezone",
			env:     map[string]string{"SHOPDESK_DATABASE_URL": "postgres://x", "SHOPDESK_TIMEZONE": "Mars/Olympus"},
			wantErr: "load timezone",
		},
		{
			name:    "zero rate limit",
			env:     map[string]string{"SHOPDESK_DATABASE_URL": "postgres://x", "SHOPDESK_RATE_LIMIT_MAX": "0"},
			wantErr: "invalid rate limit",
		},
		{
			name:    "zero sweep interval",
			env:     map[string]string{"SHOPDESK_DATABASE_URL": "postgres://x", "SHOPDESK_CACHE_SWEEP_INTERVAL": "0s"},
			wantErr: "sweep interval 0s",
		},
		{
			name:    "negative sweep interval",
			env:     map[string]string{"SHOPDESK_DATABASE_URL": "postgres://x", "SHOPDESK_CACHE_SWEEP_INTERVAL": "-1m"},
			wantErr: "sweep interval -1m0s",
		},
		{
			name:    "zero cache ttl",
			env:     map[string]string{"SHOPDESK_DATABASE_URL": "postgres://x", "SHOPDESK_CACHE_TTL": "0s"},
			wantErr: "invalid cache ttl 0s",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearPlatformEnv(t)
			t.Setenv("SHOPDESK_DATABASE_URL", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := testLoad(t)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
