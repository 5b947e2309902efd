package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (BAKERY_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (BAKERY_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL     string `usage:"Redis URL for the order lookup cache; empty disables caching" flag:"redis-url"`
	ImageBaseURL string `default:"" usage:"Base URL for product images (e.g. https://cdn.example.com/macarons)" flag:"image-base-url"`
	Storage      StorageConfig
	Mail         MailConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// StorageConfig selects the order and catalog backend.
type StorageConfig struct {
	Driver      string        `default:"memory" usage:"Storage driver: memory or postgres"`
	SeedCatalog bool          `default:"true" usage:"Load the bundled catalog into an empty products table" flag:"seed-catalog"`
	CacheTTL    time.Duration `default:"24h" usage:"Lifetime of cached orders" flag:"cache-ttl"`
}

// MailConfig controls confirmation emails. Without an API key confirmations
// are skipped with a warning.
type MailConfig struct {
	APIKey          string        `usage:"Resend API key (BAKERY_MAIL_API_KEY or RESEND_API_KEY)" flag:"api-key"`
	BaseURL         string        `usage:"Override the Resend API base URL" flag:"base-url"`
	From            string        `default:"Simply Macarons <orders@simplymacarons.com>" usage:"Sender address"`
	BusinessEmail   string        `usage:"Address receiving new order notifications" flag:"business-email"`
	Timeout         time.Duration `default:"30s" usage:"Deadline for sending both confirmations of one order"`
	BreakerFailures uint32        `default:"5" usage:"Consecutive send failures that open the circuit" flag:"breaker-failures"`
	BreakerCooldown time.Duration `default:"1m" usage:"How long an open circuit rejects sends" flag:"breaker-cooldown"`
}

// RateLimitConfig controls the per-client token bucket.
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
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration, including pending confirmations" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from flags, environment variables and YAML
// config files, then applies platform defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		Files: []string{"config.yaml", "/etc/bakery/config.yaml"},
	})
}

func loadConfig(base aconfig.Config) (*Config, error) {
	base.EnvPrefix = "BAKERY"
	base.FileDecoders = map[string]aconfig.FileDecoder{
		".yaml": aconfigyaml.New(),
	}

	var cfg Config
	if err := aconfig.LoaderFor(&cfg, base).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables that use
// standard names to the BAKERY_ configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Mail.APIKey == "" {
		c.Mail.APIKey = os.Getenv("RESEND_API_KEY")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required for the postgres driver: set BAKERY_DATABASE_URL or DATABASE_URL")
		}
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0 {
		return errors.New("rate limit max and window must be positive")
	}
	return nil
}
