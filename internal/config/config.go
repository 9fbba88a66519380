// Package config provides configuration management for the view counter.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config holds all configuration for the view counter.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Views   ViewsConfig   `mapstructure:"views"`
	CORS    CORSConfig    `mapstructure:"cors"`
	Client  ClientConfig  `mapstructure:"client"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// RequestTimeout bounds every store round trip made on behalf of a request.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// StoreConfig selects the counter store backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend"`
}

// RedisConfig represents Redis counter store configuration.
// URL, when set, takes precedence over host/port/password/db.
type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	MaxRetries   int           `mapstructure:"max_retries"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// ViewsConfig holds view counting policy.
type ViewsConfig struct {
	// ReadCollection is used by the read endpoints when no collection is given.
	ReadCollection string `mapstructure:"read_collection"`
	// RecordCollection is used by /incr when no collection is given.
	RecordCollection string        `mapstructure:"record_collection"`
	DedupWindow      time.Duration `mapstructure:"dedup_window"`
	MaxSlugLength    int           `mapstructure:"max_slug_length"`
	// ClientAddressHeader carries the client network address used for dedup.
	ClientAddressHeader string `mapstructure:"client_address_header"`
}

// CORSConfig holds allowed origins for browser callers.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ClientConfig configures the HTTP client used by viewctl and other callers.
type ClientConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
// Output is stdout, stderr, or a file path; files are rotated.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/viewcounter/")
	}

	// Read environment variables
	v.SetEnvPrefix("VIEWCOUNTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found, use defaults/env)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.request_timeout", "3s")

	// Store defaults
	v.SetDefault("store.backend", BackendRedis)

	// Redis defaults
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.pool_size", 100)
	v.SetDefault("redis.min_idle_conns", 10)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")

	// View policy defaults
	v.SetDefault("views.read_collection", "blogs")
	v.SetDefault("views.record_collection", "projects")
	v.SetDefault("views.dedup_window", "24h")
	v.SetDefault("views.max_slug_length", 100)
	v.SetDefault("views.client_address_header", "X-Forwarded-For")

	// CORS defaults
	v.SetDefault("cors.allowed_origins", []string{"*"})

	// Client defaults
	v.SetDefault("client.base_url", "http://localhost:8080")
	v.SetDefault("client.timeout", "5s")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 14)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server request timeout must be positive")
	}

	switch c.Store.Backend {
	case BackendRedis:
		if c.Redis.URL == "" && c.Redis.Host == "" {
			return fmt.Errorf("redis.url or redis.host is required for the redis backend")
		}
		if c.Redis.URL == "" && (c.Redis.Port <= 0 || c.Redis.Port > 65535) {
			return fmt.Errorf("invalid redis port: %d", c.Redis.Port)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown store backend: %q (must be %s or %s)", c.Store.Backend, BackendRedis, BackendMemory)
	}

	if c.Views.ReadCollection == "" || c.Views.RecordCollection == "" {
		return fmt.Errorf("views read and record collections are required")
	}

	if c.Views.DedupWindow <= 0 {
		return fmt.Errorf("views dedup window must be positive")
	}

	if c.Views.MaxSlugLength <= 0 {
		return fmt.Errorf("views max slug length must be positive")
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid logging format: %q", c.Logging.Format)
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
			return fmt.Errorf("invalid metrics port: %d", c.Metrics.Port)
		}
	}

	return nil
}
