package app

import (
	"testing"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestConfig(t *testing.T, env map[string]string) (*Config, error) {
	t.Helper()

	for _, k := range []string{"DATABASE_URL", "PORT", "RESEND_API_KEY"} {
		t.Setenv(k, "")
	}
	for k, v := range env {
		t.Setenv(k, v)
	}
	return loadConfig(aconfig.Config{SkipFlags: true, SkipFiles: true})
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadTestConfig(t, nil)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.True(t, cfg.Storage.SeedCatalog)
	assert.Equal(t, 24*time.Hour, cfg.Storage.CacheTTL)
	assert.Empty(t, cfg.Mail.APIKey)
	assert.Equal(t, 30*time.Second, cfg.Mail.Timeout)
	assert.Equal(t, uint32(5), cfg.Mail.BreakerFailures)
	assert.Equal(t, 100, cfg.RateLimit.Max)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, []string{"*"}, cfg.CORS.Origins)
	assert.Equal(t, 3*time.Second, cfg.Graceful.ReadinessDelay)
}

func TestLoadConfig_Env(t *testing.T) {
	cfg, err := loadTestConfig(t, map[string]string{
		"BAKERY_STORAGE_DRIVER":      "postgres",
		"BAKERY_DATABASE_URL":        "postgres://bakery@localhost/bakery",
		"BAKERY_REDIS_URL":           "redis://localhost:6379/0",
		"BAKERY_MAIL_BUSINESS_EMAIL": "orders@example.com",
		"BAKERY_RATE_LIMIT_MAX":      "10",
	})
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, "postgres://bakery@localhost/bakery", cfg.DatabaseURL)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, "orders@example.com", cfg.Mail.BusinessEmail)
	assert.Equal(t, 10, cfg.RateLimit.Max)
}

func TestLoadConfig_PlatformDefaults(t *testing.T) {
	cfg, err := loadTestConfig(t, map[string]string{
		"BAKERY_STORAGE_DRIVER": "postgres",
		"DATABASE_URL":          "postgres://platform/db",
		"PORT":                  "9090",
		"RESEND_API_KEY":        "re_test",
	})
	require.NoError(t, err)

	assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)
	assert.Equal(t, "re_test", cfg.Mail.APIKey)
}

func TestLoadConfig_ExplicitWinsOverPlatform(t *testing.T) {
	cfg, err := loadTestConfig(t, map[string]string{
		"BAKERY_ADDR":         "127.0.0.1:7000",
		"BAKERY_MAIL_API_KEY": "re_explicit",
		"PORT":                "9090",
		"RESEND_API_KEY":      "re_platform",
	})
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
	assert.Equal(t, "re_explicit", cfg.Mail.APIKey)
}

func TestLoadConfig_Invalid(t *testing.T) {
	for _, tt := range []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "PostgresWithoutURL",
			env:  map[string]string{"BAKERY_STORAGE_DRIVER": "postgres"},
			want: "database URL is required",
		},
		{
			name: "UnknownDriver",
			env:  map[string]string{"BAKERY_STORAGE_DRIVER": "sqlite"},
			want: `unknown storage driver "sqlite"`,
		},
		{
			name: "ZeroRateLimit",
			env:  map[string]string{"BAKERY_RATE_LIMIT_MAX": "0"},
			want: "rate limit",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadTestConfig(t, tt.env)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
