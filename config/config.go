// Package config loads SoulSpace configuration.
//
// Values are layered: code defaults, then an optional YAML file named by
// SOULSPACE_CONFIG_FILE, then SOULSPACE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "SOULSPACE_"

// FileEnvVar names the optional YAML config file.
const FileEnvVar = EnvPrefix + "CONFIG_FILE"

// Environment represents the application environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all application configuration.
type Config struct {
	App           AppConfig           `yaml:"app" envPrefix:"APP_"`
	Storage       StorageConfig       `yaml:"storage" envPrefix:"STORAGE_"`
	Redis         RedisConfig         `yaml:"redis" envPrefix:"REDIS_"`
	NATS          NATSConfig          `yaml:"nats" envPrefix:"NATS_"`
	HTTP          HTTPConfig          `yaml:"http" envPrefix:"HTTP_"`
	Observability ObservabilityConfig `yaml:"observability"`
	Features      FeaturesConfig      `yaml:"features" envPrefix:"FEATURE_"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string      `yaml:"name" env:"NAME"`
	Environment Environment `yaml:"env" env:"ENV"`
	Version     string      `yaml:"version" env:"VERSION"`

	// Timezone decides when a daily challenge day starts.
	Timezone string `yaml:"timezone" env:"TIMEZONE"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`

	location *time.Location
}

// Location returns the loaded timezone, UTC before Validate succeeds.
func (a AppConfig) Location() *time.Location {
	if a.location == nil {
		return time.UTC
	}
	return a.location
}

// StorageConfig selects and configures the primary store.
type StorageConfig struct {
	Driver string `yaml:"driver" env:"DRIVER"`

	// Postgres
	DatabaseURL       string        `yaml:"database_url" env:"DATABASE_URL"`
	MaxConns          int32         `yaml:"max_conns" env:"MAX_CONNS"`
	MinConns          int32         `yaml:"min_conns" env:"MIN_CONNS"`
	MaxConnLifetime   time.Duration `yaml:"max_conn_lifetime" env:"MAX_CONN_LIFETIME"`
	MaxConnIdleTime   time.Duration `yaml:"max_conn_idle_time" env:"MAX_CONN_IDLE_TIME"`
	HealthCheckPeriod time.Duration `yaml:"health_check_period" env:"HEALTH_CHECK_PERIOD"`

	// SQLite
	SQLitePath string `yaml:"sqlite_path" env:"SQLITE_PATH"`
}

// RedisConfig holds Redis settings. Redis is optional; without it progress
// reads go straight to storage and rate limiting is off.
type RedisConfig struct {
	Enabled      bool          `yaml:"enabled" env:"ENABLED"`
	Addr         string        `yaml:"addr" env:"ADDR"`
	Password     string        `yaml:"password" env:"PASSWORD"`
	DB           int           `yaml:"db" env:"DB"`
	PoolSize     int           `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int           `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env:"DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`

	// ProgressTTL bounds how long a cached progress snapshot is served.
	ProgressTTL time.Duration `yaml:"progress_ttl" env:"PROGRESS_TTL"`
}

// NATSConfig holds broker settings for event forwarding.
type NATSConfig struct {
	Enabled        bool          `yaml:"enabled" env:"ENABLED"`
	URL            string        `yaml:"url" env:"URL"`
	PublishTimeout time.Duration `yaml:"publish_timeout" env:"PUBLISH_TIMEOUT"`
}

// HTTPConfig holds API server settings.
type HTTPConfig struct {
	Host               string        `yaml:"host" env:"HOST"`
	Port               int           `yaml:"port" env:"PORT"`
	ReadTimeout        time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout       time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	IdleTimeout        time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	MaxBodyBytes       int64         `yaml:"max_body_bytes" env:"MAX_BODY_BYTES"`
	AllowedOrigins     []string      `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
	RateLimitPerMinute int           `yaml:"rate_limit_per_minute" env:"RATE_LIMIT_PER_MINUTE"`

	// JWTSecret verifies HS256 bearer tokens from the auth provider.
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
	JWTIssuer string `yaml:"jwt_issuer" env:"JWT_ISSUER"`

	ServiceKeyHeader string `yaml:"service_key_header" env:"SERVICE_KEY_HEADER"`
	// ServiceKeyHash is a bcrypt hash; see `soulspace hash-key`.
	ServiceKeyHash string `yaml:"service_key_hash" env:"SERVICE_KEY_HASH"`
}

// ObservabilityConfig holds logging and tracing settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL"`   // debug, info, warn, error
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"` // json, console

	// Tracing is on when OTelEndpoint is set.
	OTelEndpoint    string  `yaml:"otel_endpoint" env:"OTEL_ENDPOINT"`
	OTelSampleRatio float64 `yaml:"otel_sample_ratio" env:"OTEL_SAMPLE_RATIO"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:            "soulspace-hub",
			Environment:     EnvDevelopment,
			Version:         "0.1.0",
			Timezone:        "UTC",
			ShutdownTimeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			Driver:            DriverSQLite,
			MaxConns:          10,
			MinConns:          2,
			MaxConnLifetime:   time.Hour,
			MaxConnIdleTime:   30 * time.Minute,
			HealthCheckPeriod: time.Minute,
			SQLitePath:        "soulspace.db",
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			ProgressTTL:  5 * time.Minute,
		},
		NATS: NATSConfig{
			URL:            "nats://localhost:4222",
			PublishTimeout: 10 * time.Second,
		},
		HTTP: HTTPConfig{
			Host:               "0.0.0.0",
			Port:               8080,
			ReadTimeout:        15 * time.Second,
			WriteTimeout:       15 * time.Second,
			IdleTimeout:        60 * time.Second,
			MaxBodyBytes:       64 << 10,
			AllowedOrigins:     []string{"*"},
			RateLimitPerMinute: 120,
			ServiceKeyHeader:   "X-Service-Key",
		},
		Observability: ObservabilityConfig{
			LogLevel:        "info",
			LogFormat:       "json",
			OTelSampleRatio: 1,
		},
		Features: FeaturesConfig{
			LevelUpBonus:      "true",
			AssessmentXP:      "true",
			CompanionMatching: "true",
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file and
// the process environment, then validates it.
func Load() (*Config, error) {
	return load(os.Getenv(FileEnvVar), nil)
}

// LoadFrom is Load with an explicit file path and environment.
// A nil environ reads the process environment.
func LoadFrom(path string, environ map[string]string) (*Config, error) {
	return load(path, environ)
}

func load(path string, environ map[string]string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks the configuration and resolves derived values.
// All problems are reported at once.
func (c *Config) Validate() error {
	var errs []string

	switch c.App.Environment {
	case EnvDevelopment, EnvStaging, EnvProduction:
	default:
		errs = append(errs, fmt.Sprintf("APP_ENV %q is not one of development, staging, production", c.App.Environment))
	}

	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		errs = append(errs, fmt.Sprintf("APP_TIMEZONE %q: %v", c.App.Timezone, err))
	} else {
		c.App.location = loc
	}

	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			errs = append(errs, "STORAGE_DATABASE_URL is required for the postgres driver")
		}
		if c.Storage.MinConns > c.Storage.MaxConns {
			errs = append(errs, "STORAGE_MIN_CONNS must not exceed STORAGE_MAX_CONNS")
		}
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			errs = append(errs, "STORAGE_SQLITE_PATH is required for the sqlite driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("STORAGE_DRIVER %q must be postgres or sqlite", c.Storage.Driver))
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "REDIS_ADDR is required when redis is enabled")
	}
	if c.Redis.ProgressTTL <= 0 {
		errs = append(errs, "REDIS_PROGRESS_TTL must be positive")
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, "NATS_URL is required when nats is enabled")
	}

	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		errs = append(errs, "HTTP_PORT must be 1-65535")
	}
	if c.HTTP.RateLimitPerMinute < 0 {
		errs = append(errs, "HTTP_RATE_LIMIT_PER_MINUTE must not be negative")
	}
	if c.HTTP.JWTSecret == "" {
		errs = append(errs, "HTTP_JWT_SECRET is required")
	} else if c.IsProduction() && len(c.HTTP.JWTSecret) < 32 {
		errs = append(errs, "HTTP_JWT_SECRET must be at least 32 bytes in production")
	}
	if c.IsProduction() && c.HTTP.ServiceKeyHash == "" {
		errs = append(errs, "HTTP_SERVICE_KEY_HASH is required in production")
	}

	switch strings.ToLower(c.Observability.LogLevel) {
	case "debug", "info", "warn", "warning", "error", "fatal":
	default:
		errs = append(errs, fmt.Sprintf("LOG_LEVEL %q is not a known level", c.Observability.LogLevel))
	}
	switch c.Observability.LogFormat {
	case "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("LOG_FORMAT %q must be json or console", c.Observability.LogFormat))
	}
	if r := c.Observability.OTelSampleRatio; r < 0 || r > 1 {
		errs = append(errs, "OTEL_SAMPLE_RATIO must be within [0,1]")
	}

	if err := c.Features.validate(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return errors.New("configuration errors:\n  - " + strings.Join(errs, "\n  - "))
	}
	return nil
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}

// TracingEnabled reports whether spans are exported.
func (c *Config) TracingEnabled() bool {
	return c.Observability.OTelEndpoint != ""
}

// HTTPAddr returns the listen address.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}
