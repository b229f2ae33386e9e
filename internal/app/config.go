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
// environment variables (FOLIO_ prefix), flags, or YAML config files.
type Config struct {
	Addr            string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL     string `usage:"PostgreSQL connection URL (FOLIO_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	AdminAPIKey     string `usage:"Shared secret for the admin routes (FOLIO_ADMIN_API_KEY or ADMIN_API_KEY)" flag:"admin-api-key"`
	CheckoutBaseURL string `default:"https://checkout.folio.local/session" usage:"Base URL joined with the session id to form checkoutUrl" flag:"checkout-base-url"`
	Checkout        CheckoutConfig
	RateLimit       RateLimitConfig
	CORS            CORSConfig
	Graceful        GracefulConfig
}

// CheckoutConfig tunes settlement.
type CheckoutConfig struct {
	SessionTTL time.Duration `default:"30m" usage:"Lifetime of a checkout session" flag:"session-ttl"`
	TxTimeout  time.Duration `default:"10s" usage:"Timeout of one settlement transaction attempt" flag:"tx-timeout"`
	MaxRetries int           `default:"5"   usage:"Attempts on serialization failure" flag:"max-retries"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window, 0 disables"`
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

// LoadConfig loads configuration from environment variables and YAML config
// files, then applies platform defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "FOLIO",
		Files:     []string{"config.yaml", "/etc/folio/config.yaml"},
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
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set FOLIO_DATABASE_URL or DATABASE_URL")
	case c.Checkout.SessionTTL <= 0:
		return errors.Errorf("checkout session TTL must be positive, got %s", c.Checkout.SessionTTL)
	case c.Checkout.MaxRetries < 1:
		return errors.Errorf("checkout max retries must be at least 1, got %d", c.Checkout.MaxRetries)
	}
	return nil
}

// applyPlatformDefaults maps the unprefixed variables that hosting platforms
// and deploy scripts set (DATABASE_URL, ADMIN_API_KEY, PORT).
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.AdminAPIKey == "" {
		c.AdminAPIKey = os.Getenv("ADMIN_API_KEY")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
