package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/kids-class-booking/internal/tpay"
)

func TestLoadMemoryDriver(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("APP_TIMEZONE", "Europe/Warsaw")
	t.Setenv("PAYMENT_LEASE_TTL", "90s")
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("AMQP_URL", "amqp://example/")

	cfg := Load()
	require.Equal(t, DriverMemory, cfg.StoreDriver)
	require.Equal(t, "Europe/Warsaw", cfg.Location.String())
	require.Equal(t, 90*time.Second, cfg.LeaseTTL)
	require.Equal(t, "amqp://example/", cfg.AMQPURL)
	require.Empty(t, cfg.DBHost)
}

func TestLoadRateLimitConfigClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_TOKENS", "-3")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "1s")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	t.Setenv("RATE_LIMIT_ENABLED", "off")

	cfg := LoadRateLimitConfig()
	require.False(t, cfg.Enabled)
	require.Equal(t, 1, cfg.Capacity)
	require.Equal(t, 1, cfg.RefillTokens)
	require.Equal(t, 5*time.Second, cfg.TTL)

	t.Setenv("RATE_LIMIT_BURST", "12")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "250ms")
	cfg = LoadRateLimitConfig()
	require.Equal(t, 12, cfg.Capacity)
	require.Equal(t, 250*time.Millisecond, cfg.RefillInterval)
}

func TestLoadCacheConfig(t *testing.T) {
	t.Setenv("CACHE_METHODS", " get, head ,")
	t.Setenv("CACHE_TTL", "bogus")
	cfg := LoadCacheConfig()
	require.True(t, cfg.Enabled)
	require.Equal(t, map[string]bool{"GET": true, "HEAD": true}, cfg.Methods)
	require.Equal(t, 5*time.Minute, cfg.TTL)
	require.Equal(t, 1<<20, cfg.MaxBodyBytes)
}

func TestLoadRedisConfigPrefersHostPort(t *testing.T) {
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("REDIS_TLS", "TRUE")
	cfg := LoadRedisConfig()
	require.Equal(t, "redis:6379", cfg.Addr)
	require.True(t, cfg.TLS)
}

func TestLoadGateway(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		enabled bool
		baseURL string
	}{
		{
			name:    "no credentials",
			env:     map[string]string{},
			baseURL: tpay.SandboxBaseURL,
		},
		{
			name: "production",
			env: map[string]string{
				"TPAY_ENV":           "production",
				"TPAY_CLIENT_ID":     "id",
				"TPAY_CLIENT_SECRET": "secret",
			},
			enabled: true,
			baseURL: tpay.ProductionBaseURL,
		},
		{
			name: "explicit base url",
			env: map[string]string{
				"TPAY_BASE_URL":      "http://tpay.local/",
				"TPAY_CLIENT_ID":     "id",
				"TPAY_CLIENT_SECRET": "secret",
			},
			enabled: true,
			baseURL: "http://tpay.local",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"TPAY_ENV", "TPAY_BASE_URL", "TPAY_CLIENT_ID", "TPAY_CLIENT_SECRET"} {
				t.Setenv(k, tt.env[k])
			}
			t.Setenv("APP_URL", "https://kids.example/")
			cfg, err := LoadGateway()
			require.NoError(t, err)
			require.Equal(t, tt.enabled, cfg.Enabled())
			require.Equal(t, tt.baseURL, cfg.ResolvedBaseURL())
			require.Equal(t, "https://kids.example", cfg.AppURL)
			require.Equal(t, uint(3), cfg.MaxAttempts)
		})
	}
}
