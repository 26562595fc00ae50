package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (BREW_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (BREW_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	ImageBaseURL string `default:"" usage:"Base URL for product images (e.g. https://cdn.example.com/images)" flag:"image-base-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (BREW_API_KEY_PEPPER)" flag:"api-key-pepper"`
	Cart         CartConfig
	Session      SessionConfig
	Payment      PaymentConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// CartConfig selects the cart snapshot persistence backend.
type CartConfig struct {
	// Store is the snapshot backend: memory, file, or postgres.
	Store string `default:"postgres" usage:"Cart snapshot backend: memory|file|postgres" flag:"cart-store"`
	// Dir is the snapshot directory for the file backend.
	Dir string `default:"./carts" usage:"Snapshot directory for the file backend" flag:"cart-dir"`
}

// SessionConfig controls the in-memory session registry.
type SessionConfig struct {
	IdleTTL       time.Duration `default:"30m" usage:"Evict sessions idle longer than this" flag:"session-idle-ttl"`
	SweepInterval time.Duration `default:"5m"  usage:"Idle session sweep interval" flag:"session-sweep-interval"`
}

// PaymentConfig tunes the simulated payment processor.
type PaymentConfig struct {
	AuthorizeDelay time.Duration `default:"1500ms" usage:"Simulated authorization latency" flag:"payment-authorize-delay"`
	CaptureDelay   time.Duration `default:"500ms"  usage:"Simulated capture latency" flag:"payment-capture-delay"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
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

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "BREW",
		Files:     []string{"config.yaml", "/etc/brewcart/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	switch cfg.Cart.Store {
	case "memory", "file", "postgres":
	default:
		return nil, errors.Errorf("unknown cart store %q: want memory, file, or postgres", cfg.Cart.Store)
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set BREW_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's BREW_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
