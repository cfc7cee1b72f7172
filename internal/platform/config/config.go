// Package config loads service configuration from the environment. Values
// in .env and .env.local are loaded first; real environment variables win.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store backends for account activity.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// devSigningKey is only accepted outside production.
const devSigningKey = "dev-secret-key-change-in-production"

type Config struct {
	Server   Server
	Store    string `env:"KURUMA_STORE" envDefault:"memory"`
	Timezone string `env:"KURUMA_TIMEZONE" envDefault:"Asia/Tokyo"`
	Postgres PostgresConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Kafka    KafkaConfig
	Limits   RateLimitConfig

	location *time.Location
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"KURUMA_ADDR" envDefault:":8080"`
	Environment     string        `env:"KURUMA_ENV" envDefault:"development"`
	LogLevel        string        `env:"KURUMA_LOG_LEVEL" envDefault:"info"`
	ReadTimeout     time.Duration `env:"KURUMA_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"KURUMA_WRITE_TIMEOUT" envDefault:"15s"`
	ShutdownTimeout time.Duration `env:"KURUMA_SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

type PostgresConfig struct {
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME" envDefault:"30m"`
	Migrate         bool          `env:"DATABASE_MIGRATE" envDefault:"true"`
}

type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

type JWTConfig struct {
	SigningKey string        `env:"JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	Issuer     string        `env:"JWT_ISSUER" envDefault:"kuruma"`
	Audience   string        `env:"JWT_AUDIENCE" envDefault:"kuruma-api"`
	TokenTTL   time.Duration `env:"JWT_TOKEN_TTL" envDefault:"1h"`
}

// KafkaConfig enables the Kafka audit sink when Brokers is non-empty.
type KafkaConfig struct {
	Brokers      []string      `env:"KAFKA_BROKERS" envSeparator:","`
	AuditTopic   string        `env:"KAFKA_AUDIT_TOPIC" envDefault:"kuruma.audit"`
	RelayEvery   time.Duration `env:"KAFKA_RELAY_INTERVAL" envDefault:"1s"`
	CreateTopics bool          `env:"KAFKA_CREATE_TOPICS" envDefault:"true"`
}

type RateLimitConfig struct {
	Enabled       bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	ReadRequests  int           `env:"RATE_LIMIT_READ_REQUESTS" envDefault:"120"`
	WriteRequests int           `env:"RATE_LIMIT_WRITE_REQUESTS" envDefault:"30"`
	Window        time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
	// Proxies whose X-Forwarded-For is believed, as CIDRs or single IPs.
	TrustedProxies []string `env:"RATE_LIMIT_TRUSTED_PROXIES" envSeparator:","`

	trusted []netip.Prefix
}

// TrustedProxyPrefixes is TrustedProxies parsed at load time.
func (c RateLimitConfig) TrustedProxyPrefixes() []netip.Prefix {
	return c.trusted
}

func parsePrefixes(raw []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if strings.Contains(r, "/") {
			p, err := netip.ParsePrefix(r)
			if err != nil {
				return nil, err
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(r)
		if err != nil {
			return nil, err
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// Load reads .env files, parses the environment and validates the result.
func Load() (Config, error) {
	// Missing .env files are fine; the environment alone is enough.
	_ = godotenv.Load(".env", ".env.local")
	return FromEnv()
}

// FromEnv parses the current environment without touching .env files.
func FromEnv() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid KURUMA_TIMEZONE %q: %w", c.Timezone, err)
	}
	c.location = loc

	var errs []error
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.Postgres.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when KURUMA_STORE=postgres"))
		}
	case StoreRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("REDIS_URL is required when KURUMA_STORE=redis"))
		}
		// Accounts still live in Postgres when it is configured; otherwise memory.
	default:
		errs = append(errs, fmt.Errorf("KURUMA_STORE must be one of memory, postgres, redis, got %q", c.Store))
	}
	if c.Limits.Enabled && (c.Limits.ReadRequests <= 0 || c.Limits.WriteRequests <= 0 || c.Limits.Window <= 0) {
		errs = append(errs, errors.New("rate limit budgets and window must be positive"))
	}
	if trusted, err := parsePrefixes(c.Limits.TrustedProxies); err != nil {
		errs = append(errs, fmt.Errorf("invalid RATE_LIMIT_TRUSTED_PROXIES: %w", err))
	} else {
		c.Limits.trusted = trusted
	}
	if c.IsProduction() && c.JWT.SigningKey == devSigningKey {
		errs = append(errs, errors.New("JWT_SIGNING_KEY must be set in production"))
	}
	return errors.Join(errs...)
}

// Location is Timezone resolved at load time.
func (c Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// IsProduction reports whether the service runs with production safeguards.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}

// KafkaEnabled reports whether audit events go to Kafka.
func (c Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}
