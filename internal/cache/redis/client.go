// Package redis backs the coordination interfaces in domain — signal bus,
// distributed locks, rate limiting, and the market read cache — with a single
// go-redis connection pool.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ClientConfig carries the connection settings for New.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
}

// Client owns the shared connection pool. The bus, lock manager, rate limiter
// and market cache are all views over the same pool.
type Client struct {
	rdb  *redis.Client
	addr string
}

// New dials Redis and verifies the connection with a ping before returning.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	var tlsCfg *tls.Config
	if cfg.TLSEnabled {
		tlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
		TLSConfig:  tlsCfg,
	})

	c := &Client{rdb: rdb, addr: cfg.Addr}
	if err := c.Ping(ctx); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return c, nil
}

// Ping verifies connectivity. The health endpoint probes through this.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping %s: %w", c.addr, err)
	}
	return nil
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}
