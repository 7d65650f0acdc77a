package influxdb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/gray-logic-compliance/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second
)

// Client writes compliance time-series to InfluxDB v2.
//
// Writes are non-blocking and batched; async failures are delivered to the
// SetOnError callback. All methods are safe for concurrent use.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI

	open atomic.Bool

	errMu   sync.RWMutex
	onError func(err error)
}

// writeOptions maps the config section onto client options, applying
// defaults for unset batch size and flush interval.
func writeOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batch := uint(defaultBatchSize)
	if cfg.BatchSize > 0 {
		batch = uint(cfg.BatchSize)
	}
	flush := defaultFlushInterval
	if cfg.FlushInterval > 0 {
		flush = time.Duration(cfg.FlushInterval) * time.Second
	}
	return influxdb2.DefaultOptions().
		SetBatchSize(batch).
		SetFlushInterval(uint(flush.Milliseconds())) //nolint:gosec // positive by construction
}

// Connect creates the client, verifies the server with a ping and starts the
// batched write API. It returns ErrDisabled when influxdb.enabled is false.
func Connect(cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, writeOptions(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()
	if err := ping(ctx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c := &Client{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
	}
	c.open.Store(true)

	go func(errs <-chan error) {
		for err := range errs {
			c.reportWriteError(err)
		}
	}(c.writeAPI.Errors())

	return c, nil
}

func ping(ctx context.Context, client influxdb2.Client) error {
	healthy, err := client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("server not healthy")
	}
	return nil
}

func (c *Client) reportWriteError(err error) {
	c.errMu.RLock()
	callback := c.onError
	c.errMu.RUnlock()

	if callback != nil {
		callback(fmt.Errorf("%w: %w", ErrWriteFailed, err))
	}
}

// Close flushes pending writes and closes the client. Later writes are dropped.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	if c.open.Swap(false) {
		c.writeAPI.Flush()
		c.client.Close()
	}
	return nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := ping(ctx, c.client); err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	return nil
}

// IsConnected reports whether the client is open. Use HealthCheck for an
// active probe.
func (c *Client) IsConnected() bool {
	return c.open.Load()
}

// SetOnError sets the callback for async write failures. Errors passed to
// it wrap ErrWriteFailed.
func (c *Client) SetOnError(callback func(err error)) {
	c.errMu.Lock()
	c.onError = callback
	c.errMu.Unlock()
}

// Flush sends all buffered points. No-op after Close.
func (c *Client) Flush() {
	if c.IsConnected() {
		c.writeAPI.Flush()
	}
}
