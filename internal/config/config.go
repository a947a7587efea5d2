package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"procurement-api/internal/models"

	"github.com/shopspring/decimal"
)

type Config struct {
	ListenAddr string

	// Backend selection
	DemoMode    bool
	URLDataCRUD string
	CRUDTimeout time.Duration
	DBDSN       string
	RedisURL    string
	CacheTTL    time.Duration

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	JWTExpiry   time.Duration

	EnableMetrics bool
	LogLevel      string
	LogFormat     string

	TaxRate   decimal.Decimal
	SchemaDir string

	// problems holds values Load could not parse; Validate reports them.
	problems []error
}

const defaultJWTSecret = "your-secret-key-change-in-production"

func Load() *Config {
	config := &Config{
		ListenAddr:    getEnv("LISTEN_ADDR", ":8080"),
		URLDataCRUD:   strings.TrimRight(os.Getenv("URL_DATA_CRUD"), "/"),
		CRUDTimeout:   getDuration("CRUD_TIMEOUT", 10*time.Second),
		DBDSN:         os.Getenv("DB_DSN"),
		RedisURL:      os.Getenv("REDIS_URL"),
		CacheTTL:      getDuration("CACHE_TTL", 30*time.Second),
		JWTSecret:     getEnv("JWT_SECRET", defaultJWTSecret),
		JWTIssuer:     getEnv("JWT_ISS", "procurement-api"),
		JWTAudience:   getEnv("JWT_AUD", "procurement-api"),
		JWTExpiry:     getDuration("JWT_EXPIRY", 24*time.Hour),
		EnableMetrics: getBool("ENABLE_METRICS", false),
		LogLevel:      strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:     strings.ToLower(getEnv("LOG_FORMAT", "json")),
		TaxRate:       models.DefaultTaxRate,
		SchemaDir:     os.Getenv("SCHEMA_DIR"),
	}

	// Demo mode is the default when no backend is configured
	config.DemoMode = getBool("DEMO_MODE", config.URLDataCRUD == "" && config.DBDSN == "")

	if raw := os.Getenv("TAX_RATE"); raw != "" {
		rate, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			config.problems = append(config.problems, fmt.Errorf("TAX_RATE %q is not a decimal number", raw))
		} else {
			config.TaxRate = rate
		}
	}

	return config
}

// Validate checks the configuration for values the server cannot start with.
func (c *Config) Validate() error {
	errs := append([]error(nil), c.problems...)

	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	} else if len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters"))
	}
	if c.JWTIssuer == "" {
		errs = append(errs, errors.New("JWT_ISS is required"))
	}
	if c.JWTAudience == "" {
		errs = append(errs, errors.New("JWT_AUD is required"))
	}
	if c.JWTExpiry <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRY must be positive"))
	} else if c.JWTExpiry < time.Minute || c.JWTExpiry > 30*24*time.Hour {
		errs = append(errs, errors.New("JWT_EXPIRY must be between 1m and 720h"))
	}
	if os.Getenv("ENVIRONMENT") == "production" && c.JWTSecret == defaultJWTSecret {
		errs = append(errs, errors.New("JWT_SECRET must be changed in production"))
	}
	if c.TaxRate.IsNegative() {
		errs = append(errs, errors.New("TAX_RATE must not be negative"))
	}
	if c.URLDataCRUD != "" {
		u, err := url.Parse(c.URLDataCRUD)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("URL_DATA_CRUD is not a valid URL: %q", c.URLDataCRUD))
		}
	}
	if !c.DemoMode && c.URLDataCRUD == "" && c.DBDSN == "" {
		errs = append(errs, errors.New("either DEMO_MODE, URL_DATA_CRUD or DB_DSN must be set"))
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", c.LogLevel))
	}

	return errors.Join(errs...)
}

// Backend names the store backend the configuration selects.
func (c *Config) Backend() string {
	switch {
	case c.DemoMode:
		return "demo"
	case c.URLDataCRUD != "":
		return "crud"
	default:
		return "postgres"
	}
}

// LoadAndValidate loads configuration from the environment and validates it.
func LoadAndValidate() (*Config, error) {
	cfg := Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
