package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/nerrad567/gray-logic-compliance/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 5 * time.Second
	defaultPingTimeout    = 2 * time.Second
)

// Sentinel errors for Redis operations.
var (
	// ErrConnectionFailed indicates the initial ping failed.
	ErrConnectionFailed = errors.New("redis: connection failed")

	// ErrNotConnected indicates the client has been closed.
	ErrNotConnected = errors.New("redis: not connected")
)

// Client wraps a go-redis client holding the attempt counters.
type Client struct {
	*goredis.Client
	keyPrefix string
}

// Connect creates a client for cfg and verifies it with a ping.
func Connect(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close() //nolint:errcheck // best-effort cleanup
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, cfg.Addr, err)
	}

	return &Client{Client: rdb, keyPrefix: cfg.KeyPrefix}, nil
}

// KeyPrefix returns the configured key prefix for attempt counters.
func (c *Client) KeyPrefix() string {
	return c.keyPrefix
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c == nil || c.Client == nil {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if err := c.Ping(checkCtx).Err(); err != nil {
		if errors.Is(err, goredis.ErrClosed) {
			return ErrNotConnected
		}
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Close releases the connection pool. Safe on a nil client.
func (c *Client) Close() error {
	if c == nil || c.Client == nil {
		return nil
	}
	return c.Client.Close()
}
