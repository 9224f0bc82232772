package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Storage drivers accepted by STORAGE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds runtime configuration sourced from env vars. It is built once at
// startup and treated as read-only afterwards.
type Config struct {
	Port          string `envconfig:"PORT" default:"5000"`
	Env           string `envconfig:"APP_ENV" default:"development"`
	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"postgres"`
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`

	JWTSecret       string `envconfig:"JWT_SECRET"`
	JWTIssuer       string `envconfig:"JWT_ISSUER" default:"customer-be"`
	TokenExpireDays int    `envconfig:"TOKEN_EXPIRE_DAYS" default:"30"`

	CORSOrigins []string `envconfig:"CORS_ORIGIN"`
	TrustProxy  bool     `envconfig:"TRUST_PROXY" default:"false"`

	PublicDir      string `envconfig:"PUBLIC_DIR" default:"./public"`
	UploadMaxBytes int64  `envconfig:"UPLOAD_MAX_BYTES" default:"10485760"`
	BodyLimitBytes int64  `envconfig:"BODY_LIMIT_BYTES" default:"1048576"`

	RateLimit RateLimitConfig
}

// RateLimitConfig controls the global and login limiters.
type RateLimitConfig struct {
	Window   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"15m"`
	Max      int           `envconfig:"RATE_LIMIT_MAX" default:"100"`
	LoginMax int           `envconfig:"LOGIN_RATE_LIMIT_MAX" default:"5"`
	RedisURL string        `envconfig:"RATE_LIMIT_REDIS_URL"`
}

// Load reads configuration from the environment and performs minimal validation.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.StorageDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.TokenExpireDays <= 0 {
		return errors.New("TOKEN_EXPIRE_DAYS must be positive")
	}
	if c.UploadMaxBytes <= 0 || c.BodyLimitBytes <= 0 {
		return errors.New("UPLOAD_MAX_BYTES and BODY_LIMIT_BYTES must be positive")
	}
	if c.RateLimit.Window <= 0 || c.RateLimit.Max <= 0 || c.RateLimit.LoginMax <= 0 {
		return errors.New("rate limit window and maximums must be positive")
	}
	return nil
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

// IsProduction reports whether the process runs in production mode.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// TokenTTL is the lifetime shared by session tokens and their cookie.
func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenExpireDays) * 24 * time.Hour
}

func (c *Config) normalize() {
	c.Port = strings.TrimSpace(c.Port)
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.StorageDriver = strings.ToLower(strings.TrimSpace(c.StorageDriver))
	if c.Port == "" {
		c.Port = "5000"
	}
	if c.StorageDriver == "" {
		c.StorageDriver = DriverPostgres
	}
	c.DatabaseURL = strings.TrimSpace(c.DatabaseURL)
	c.JWTSecret = strings.TrimSpace(c.JWTSecret)
	c.CORSOrigins = trimAll(c.CORSOrigins)
}

func trimAll(in []string) []string {
	var out []string
	for _, part := range in {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
