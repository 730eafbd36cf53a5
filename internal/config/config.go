// Package config defines the top-level configuration for the streakvault
// service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by STREAK_* environment variables.
type Config struct {
	Engine   EngineConfig   `toml:"engine"`
	Storage  StorageConfig  `toml:"storage"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Resolver ResolverConfig `toml:"resolver"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// EngineConfig holds the protocol constants. The defaults are the production
// values; shrinking them is mainly useful for staging environments.
type EngineConfig struct {
	TaskCycleSeconds         int64 `toml:"task_cycle_seconds"`
	GracePeriodSeconds       int64 `toml:"grace_period_seconds"`
	DefaultFeeBps            int   `toml:"default_fee_bps"`
	AutoBettingWindowSeconds int64 `toml:"auto_betting_window_seconds"`
}

// StorageConfig selects the ledger backend.
type StorageConfig struct {
	// Driver is "postgres" or "memory". The memory driver keeps everything
	// in-process and is intended for development.
	Driver string `toml:"driver"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for settlement
// archives.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`

	// APIKeyHash is the PBKDF2 hash of the client API key (see
	// crypto.HashAPIKey). Empty disables client auth.
	APIKeyHash string `toml:"api_key_hash"`

	// AdminKey / AdminSecret authenticate HMAC-signed operator requests.
	// AdminSecretPath points at an encrypted secret file as an alternative
	// to the plaintext AdminSecret; AdminSecretPassword decrypts it.
	AdminKey            string `toml:"admin_key"`
	AdminSecret         string `toml:"admin_secret"`
	AdminSecretPath     string `toml:"admin_secret_path"`
	AdminSecretPassword string `toml:"admin_secret_password"`

	// RateLimit / RateWindow throttle per-client requests when Redis is
	// enabled. Zero disables rate limiting.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// ResolverConfig holds the background resolution daemon parameters.
type ResolverConfig struct {
	Enabled  bool     `toml:"enabled"`
	Interval duration `toml:"interval"`
	LockTTL  duration `toml:"lock_ttl"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{
			TaskCycleSeconds:         86400,
			GracePeriodSeconds:       300,
			DefaultFeeBps:            200,
			AutoBettingWindowSeconds: 43200,
		},
		Storage: StorageConfig{
			Driver: "postgres",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "streakvault",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    true,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "streakvault-archives",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   0,
			RateWindow:  duration{time.Second},
		},
		Resolver: ResolverConfig{
			Enabled:  true,
			Interval: duration{30 * time.Second},
			LockTTL:  duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"market_resolved", "market_closed", "early_withdrawn"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"serve":   true,
	"resolve": true,
	"migrate": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validDrivers enumerates the accepted values for StorageConfig.Driver.
var validDrivers = map[string]bool{
	"postgres": true,
	"memory":   true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, resolve, migrate, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Engine
	if c.Engine.TaskCycleSeconds <= 0 {
		errs = append(errs, "engine: task_cycle_seconds must be > 0")
	}
	if c.Engine.GracePeriodSeconds < 0 {
		errs = append(errs, "engine: grace_period_seconds must be >= 0")
	}
	if c.Engine.DefaultFeeBps < 0 || c.Engine.DefaultFeeBps > 10000 {
		errs = append(errs, fmt.Sprintf("engine: default_fee_bps must be 0-10000, got %d", c.Engine.DefaultFeeBps))
	}
	if c.Engine.AutoBettingWindowSeconds <= 0 {
		errs = append(errs, "engine: auto_betting_window_seconds must be > 0")
	}
	if c.Engine.AutoBettingWindowSeconds >= c.Engine.TaskCycleSeconds {
		errs = append(errs, "engine: auto_betting_window_seconds must be shorter than task_cycle_seconds")
	}

	// Storage
	if !validDrivers[strings.ToLower(c.Storage.Driver)] {
		errs = append(errs, fmt.Sprintf("storage: unknown driver %q (valid: postgres, memory)", c.Storage.Driver))
	}

	// Postgres — only checked when the postgres driver is selected.
	if strings.ToLower(c.Storage.Driver) == "postgres" {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit > 0 && !c.Redis.Enabled {
			errs = append(errs, "server: rate_limit requires redis to be enabled")
		}
		hasAdmin := c.Server.AdminSecret != "" || c.Server.AdminSecretPath != ""
		if hasAdmin && c.Server.AdminKey == "" {
			errs = append(errs, "server: admin_key is required when an admin secret is configured")
		}
		if c.Server.AdminSecretPath != "" && c.Server.AdminSecretPassword == "" {
			errs = append(errs, "server: admin_secret_password is required when admin_secret_path is set")
		}
	}

	// Resolver
	if c.Resolver.Enabled {
		if c.Resolver.Interval.Duration <= 0 {
			errs = append(errs, "resolver: interval must be > 0 when enabled")
		}
		if !c.Redis.Enabled {
			errs = append(errs, "resolver: requires redis for the cross-instance lock")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
