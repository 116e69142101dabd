package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	pkgconfig "github.com/ssnivlek/kelvo-ecomm/pkg/config"
)

// Cart store backends.
const (
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Coupon sources.
const (
	CouponSourceStatic   = "static"
	CouponSourceFile     = "file"
	CouponSourcePostgres = "postgres"
	CouponSourceRemote   = "remote"
)

// Config holds all configuration for the cart service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"CART_HTTP_PORT" envDefault:"8003"`

	// Cart store
	Store              string `env:"CART_STORE" envDefault:"redis"`
	CartTTLHours       int    `env:"CART_TTL_HOURS" envDefault:"24"`
	MemoryMaxEntries   int    `env:"CART_MEMORY_MAX_ENTRIES" envDefault:"0"`
	RedisAddr          string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass          string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB            int    `env:"REDIS_DB" envDefault:"0"`
	RedisMaxRetries    int    `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	RedisTimeoutMillis int    `env:"REDIS_TIMEOUT_MS" envDefault:"500"`

	// Coupons
	CouponSource        string `env:"COUPON_SOURCE" envDefault:"static"`
	CouponFile          string `env:"COUPON_FILE" envDefault:"coupons.yaml"`
	CouponServiceURL    string `env:"COUPON_SERVICE_URL" envDefault:""`
	CouponValidatePath  string `env:"COUPON_VALIDATE_PATH" envDefault:"/coupons/validate"`
	CouponTimeoutMillis int    `env:"COUPON_TIMEOUT_MS" envDefault:"2000"`
	CouponMaxRetries    int    `env:"COUPON_MAX_RETRIES" envDefault:"2"`

	// Per-client limit on coupon endpoints; 0 disables.
	CouponRateLimitRPS   float64 `env:"COUPON_RATE_LIMIT_RPS" envDefault:"2"`
	CouponRateLimitBurst int     `env:"COUPON_RATE_LIMIT_BURST" envDefault:"10"`

	// Postgres (coupon registry snapshot)
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"kelvo"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"kelvo"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"kelvo"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`
	PostgresMigrate  bool   `env:"POSTGRES_MIGRATE" envDefault:"true"`

	// Circuit breaker around the coupon collaborator
	CBMaxRequests  uint32        `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     time.Duration `env:"CB_INTERVAL" envDefault:"60s"`
	CBTimeout      time.Duration `env:"CB_TIMEOUT" envDefault:"30s"`
	CBFailureRatio float64       `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32        `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaAsync   bool     `env:"KAFKA_ASYNC" envDefault:"true"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// CORS; empty means any origin.
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

// Load reads configuration from the process environment.
func Load() (*Config, error) {
	return finish(pkgconfig.Load)
}

// LoadFrom reads configuration from environ instead of the process
// environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	return finish(func(cfg any) error { return pkgconfig.LoadFrom(cfg, environ) })
}

func finish(parse func(any) error) (*Config, error) {
	cfg := &Config{}
	if err := parse(cfg); err != nil {
		return nil, fmt.Errorf("load cart config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// CartTTL is the sliding expiry applied on every save.
func (c *Config) CartTTL() time.Duration {
	return time.Duration(c.CartTTLHours) * time.Hour
}

// RedisTimeout bounds each Redis dial, read and write.
func (c *Config) RedisTimeout() time.Duration {
	return time.Duration(c.RedisTimeoutMillis) * time.Millisecond
}

// CouponTimeout bounds each call to the coupon service.
func (c *Config) CouponTimeout() time.Duration {
	return time.Duration(c.CouponTimeoutMillis) * time.Millisecond
}

func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.CartTTLHours < 1 {
		return fmt.Errorf("CART_TTL_HOURS must be positive, got %d", c.CartTTLHours)
	}
	switch c.Store {
	case StoreRedis, StoreMemory:
	default:
		return fmt.Errorf("CART_STORE must be %q or %q, got %q", StoreRedis, StoreMemory, c.Store)
	}
	if c.RedisMaxRetries < 0 {
		return fmt.Errorf("REDIS_MAX_RETRIES must not be negative")
	}
	switch c.CouponSource {
	case CouponSourceStatic, CouponSourceFile, CouponSourcePostgres:
	case CouponSourceRemote:
		if _, err := url.ParseRequestURI(c.CouponServiceURL); err != nil {
			return fmt.Errorf("COUPON_SERVICE_URL must be an absolute URL when COUPON_SOURCE=remote: %w", err)
		}
		if !strings.HasPrefix(c.CouponValidatePath, "/") {
			return fmt.Errorf("COUPON_VALIDATE_PATH must start with /, got %q", c.CouponValidatePath)
		}
	default:
		return fmt.Errorf("unknown COUPON_SOURCE %q", c.CouponSource)
	}
	if c.CouponMaxRetries < 0 {
		return fmt.Errorf("COUPON_MAX_RETRIES must not be negative")
	}
	if c.CouponRateLimitRPS < 0 || c.CouponRateLimitBurst < 0 {
		return fmt.Errorf("coupon rate limit must not be negative")
	}
	if c.CBFailureRatio <= 0 || c.CBFailureRatio > 1 {
		return fmt.Errorf("CB_FAILURE_RATIO must be in (0, 1], got %v", c.CBFailureRatio)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED=true")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %v", c.OTELSampleRate)
	}
	return nil
}
