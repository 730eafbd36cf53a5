package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	s3blob "github.com/streakvault/streakvault/internal/blob/s3"
	"github.com/streakvault/streakvault/internal/cache/redis"
	"github.com/streakvault/streakvault/internal/config"
	"github.com/streakvault/streakvault/internal/crypto"
	"github.com/streakvault/streakvault/internal/domain"
	"github.com/streakvault/streakvault/internal/engine"
	"github.com/streakvault/streakvault/internal/notify"
	"github.com/streakvault/streakvault/internal/store/memory"
	"github.com/streakvault/streakvault/internal/store/postgres"
)

// Dependencies bundles everything the application modes need to operate. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Ledger storage
	Gateway    domain.Gateway
	AuditStore domain.AuditStore

	// Caches and coordination (nil unless Redis is enabled, except SignalBus
	// which falls back to the in-process bus)
	SignalBus   domain.SignalBus
	LockManager domain.LockManager
	RateLimiter domain.RateLimiter
	MarketCache domain.MarketCache

	// Blob storage (nil unless S3 is enabled)
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   domain.SettlementArchiver

	// Engine services
	Positions *engine.PositionService
	Markets   *engine.MarketEngine
	Bets      *engine.BetService
	Admin     *engine.AdminService

	// Operator request signing (nil disables the admin API)
	AdminAuth *crypto.HMACAuth

	// Notifications (nil when no sender is configured)
	Notifier *notify.Notifier

	// Raw clients, kept for health probes. Either may be nil.
	PG    *postgres.Client
	Redis *redis.Client
}

// needsPostgres returns true when the configured driver and mode require a
// database connection.
func needsPostgres(cfg *config.Config) bool {
	if strings.ToLower(cfg.Mode) == "migrate" {
		return true
	}
	return strings.ToLower(cfg.Storage.Driver) == "postgres"
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}
	clock := func() int64 { return time.Now().Unix() }

	// --- Ledger storage ---
	if needsPostgres(cfg) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations || strings.ToLower(cfg.Mode) == "migrate" {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		deps.PG = pgClient
		deps.Gateway = postgres.NewGateway(pgClient, clock)
		deps.AuditStore = postgres.NewAuditStore(pgClient)
	} else {
		deps.Gateway = memory.NewGateway(clock)
		deps.AuditStore = memory.NewAuditStore()
	}

	// --- Redis (cache, pub/sub, locks, rate limiting) ---
	if cfg.Redis.Enabled {
		rds, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = rds.Close() })

		deps.Redis = rds
		deps.SignalBus = redis.NewSignalBus(rds)
		deps.LockManager = redis.NewLockManager(rds)
		deps.RateLimiter = redis.NewRateLimiter(rds)
		deps.MarketCache = redis.NewMarketCache(rds)
	} else {
		// In-process bus so facts still reach the WS hub and alerter.
		deps.SignalBus = memory.NewSignalBus()
	}

	// --- S3 blob storage (settlement archives) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.Archiver = s3blob.NewSettlementArchive(deps.BlobWriter, deps.AuditStore)
	}

	// --- Engine services ---
	params := engine.Params{
		TaskCycleSeconds:         cfg.Engine.TaskCycleSeconds,
		GracePeriodSeconds:       cfg.Engine.GracePeriodSeconds,
		DefaultFeeBps:            uint32(cfg.Engine.DefaultFeeBps),
		AutoBettingWindowSeconds: cfg.Engine.AutoBettingWindowSeconds,
	}
	deps.Markets = engine.NewMarketEngine(deps.Gateway, params, deps.SignalBus, deps.AuditStore, logger)
	deps.Positions = engine.NewPositionService(deps.Gateway, deps.Markets, params, deps.SignalBus, deps.AuditStore, logger)
	deps.Bets = engine.NewBetService(deps.Gateway, params, deps.SignalBus, deps.AuditStore, logger)
	deps.Admin = engine.NewAdminService(deps.Gateway, deps.SignalBus, deps.AuditStore, logger)

	// --- Operator HMAC credentials ---
	if cfg.Server.AdminKey != "" && (cfg.Server.AdminSecret != "" || cfg.Server.AdminSecretPath != "") {
		secret, err := crypto.LoadSecret(crypto.SecretConfig{
			RawSecret:     cfg.Server.AdminSecret,
			EncryptedPath: cfg.Server.AdminSecretPath,
			Password:      cfg.Server.AdminSecretPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: admin secret: %w", err)
		}
		if secret != "" {
			deps.AdminAuth = &crypto.HMACAuth{Key: cfg.Server.AdminKey, Secret: secret}
		}
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	}

	return deps, cleanup, nil
}
