package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies STREAK_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known STREAK_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Engine ──
	setInt64(&cfg.Engine.TaskCycleSeconds, "STREAK_ENGINE_TASK_CYCLE_SECONDS")
	setInt64(&cfg.Engine.GracePeriodSeconds, "STREAK_ENGINE_GRACE_PERIOD_SECONDS")
	setInt(&cfg.Engine.DefaultFeeBps, "STREAK_ENGINE_DEFAULT_FEE_BPS")
	setInt64(&cfg.Engine.AutoBettingWindowSeconds, "STREAK_ENGINE_AUTO_BETTING_WINDOW_SECONDS")

	// ── Storage ──
	setStr(&cfg.Storage.Driver, "STREAK_STORAGE_DRIVER")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "STREAK_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "STREAK_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "STREAK_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "STREAK_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "STREAK_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "STREAK_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "STREAK_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "STREAK_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "STREAK_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "STREAK_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "STREAK_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "STREAK_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "STREAK_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "STREAK_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "STREAK_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "STREAK_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "STREAK_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "STREAK_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "STREAK_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "STREAK_S3_REGION")
	setStr(&cfg.S3.Bucket, "STREAK_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "STREAK_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "STREAK_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "STREAK_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "STREAK_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "STREAK_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "STREAK_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "STREAK_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKeyHash, "STREAK_SERVER_API_KEY_HASH")
	setStr(&cfg.Server.AdminKey, "STREAK_SERVER_ADMIN_KEY")
	setStr(&cfg.Server.AdminSecret, "STREAK_SERVER_ADMIN_SECRET")
	setStr(&cfg.Server.AdminSecretPath, "STREAK_SERVER_ADMIN_SECRET_PATH")
	setStr(&cfg.Server.AdminSecretPassword, "STREAK_SERVER_ADMIN_SECRET_PASSWORD")
	setInt(&cfg.Server.RateLimit, "STREAK_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "STREAK_SERVER_RATE_WINDOW")

	// ── Resolver ──
	setBool(&cfg.Resolver.Enabled, "STREAK_RESOLVER_ENABLED")
	setDuration(&cfg.Resolver.Interval, "STREAK_RESOLVER_INTERVAL")
	setDuration(&cfg.Resolver.LockTTL, "STREAK_RESOLVER_LOCK_TTL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "STREAK_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "STREAK_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "STREAK_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "STREAK_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "STREAK_MODE")
	setStr(&cfg.LogLevel, "STREAK_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
