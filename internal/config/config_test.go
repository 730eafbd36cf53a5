package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "full", cfg.Mode)
	assert.Equal(t, int64(86_400), cfg.Engine.TaskCycleSeconds)
	assert.Equal(t, 200, cfg.Engine.DefaultFeeBps)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.LogLevel = "verbose"
	cfg.Engine.DefaultFeeBps = 20_000
	cfg.Storage.Driver = "sqlite"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "unknown log_level")
	assert.Contains(t, err.Error(), "default_fee_bps")
	assert.Contains(t, err.Error(), "unknown driver")
}

func TestValidate_BettingWindowBound(t *testing.T) {
	cfg := Defaults()
	cfg.Engine.AutoBettingWindowSeconds = cfg.Engine.TaskCycleSeconds
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auto_betting_window_seconds")
}

func TestValidate_CrossSectionConstraints(t *testing.T) {
	// Rate limiting requires Redis.
	cfg := Defaults()
	cfg.Redis.Enabled = false
	cfg.Resolver.Enabled = false
	cfg.Server.RateLimit = 100
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate_limit requires redis")

	// Resolver requires Redis for its lock.
	cfg = Defaults()
	cfg.Redis.Enabled = false
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolver")

	// An admin secret without a key identifier is rejected.
	cfg = Defaults()
	cfg.Server.AdminSecret = "s"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "admin_key")

	// Encrypted secret file requires a password.
	cfg = Defaults()
	cfg.Server.AdminKey = "k"
	cfg.Server.AdminSecretPath = "/etc/secret.json"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "admin_secret_password")
}

func TestValidate_MemoryDriverSkipsPostgres(t *testing.T) {
	cfg := Defaults()
	cfg.Storage.Driver = "memory"
	cfg.Postgres = PostgresConfig{}
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "serve"
log_level = "debug"

[engine]
task_cycle_seconds = 3600
auto_betting_window_seconds = 1800

[storage]
driver = "memory"

[redis]
enabled = false

[resolver]
enabled = false
interval = "10s"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "serve", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, int64(3_600), cfg.Engine.TaskCycleSeconds)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 10*time.Second, cfg.Resolver.Interval.Duration)

	// Unset sections keep their defaults.
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, int64(300), cfg.Engine.GracePeriodSeconds)

	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`mode = "serve"`), 0o600))

	t.Setenv("STREAK_MODE", "resolve")
	t.Setenv("STREAK_POSTGRES_PASSWORD", "hunter2")
	t.Setenv("STREAK_SERVER_PORT", "9999")
	t.Setenv("STREAK_REDIS_ENABLED", "false")
	t.Setenv("STREAK_RESOLVER_INTERVAL", "45s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "resolve", cfg.Mode)
	assert.Equal(t, "hunter2", cfg.Postgres.Password)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 45*time.Second, cfg.Resolver.Interval.Duration)
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "dbpass"
	cfg.Postgres.DSN = "postgres://u:p@h/db"
	cfg.Redis.Password = "redispass"
	cfg.S3.SecretKey = "s3secret"
	cfg.Server.AdminSecret = "adminsecret"
	cfg.Notify.TelegramToken = "tgtoken"

	red := RedactedConfig(&cfg)

	assert.NotContains(t, red.Postgres.Password, "dbpass")
	assert.NotContains(t, red.Postgres.DSN, "p@h")
	assert.NotContains(t, red.Redis.Password, "redispass")
	assert.NotContains(t, red.S3.SecretKey, "s3secret")
	assert.NotContains(t, red.Server.AdminSecret, "adminsecret")
	assert.NotContains(t, red.Notify.TelegramToken, "tgtoken")

	// Non-secret fields pass through.
	assert.Equal(t, cfg.Server.Port, red.Server.Port)
	assert.Equal(t, cfg.Storage.Driver, red.Storage.Driver)
}
