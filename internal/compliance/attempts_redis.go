package compliance

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultRedisKeyPrefix is prepended to the device id to form the counter hash key.
const DefaultRedisKeyPrefix = "compliance:attempts:"

// Hash fields of a counter.
const (
	fieldAttempts  = "attempts"
	fieldLastReset = "last_reset"
)

// RedisAttemptTracker implements AttemptTracker with one Redis hash per device.
type RedisAttemptTracker struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisAttemptTracker creates a tracker using client. An empty prefix
// selects DefaultRedisKeyPrefix.
func NewRedisAttemptTracker(client *redis.Client, prefix string) *RedisAttemptTracker {
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	return &RedisAttemptTracker{client: client, prefix: prefix, now: utcNow}
}

func (t *RedisAttemptTracker) key(deviceID int64) string {
	return t.prefix + strconv.FormatInt(deviceID, 10)
}

// RecordAttempt increments the counter on failure or resets it on success.
func (t *RedisAttemptTracker) RecordAttempt(ctx context.Context, deviceID int64, succeeded bool) error {
	const op = "record attempt"
	if succeeded {
		return t.reset(ctx, op, deviceID)
	}
	_, err := t.increment(ctx, op, deviceID)
	return err
}

// Increment adds one failed attempt and returns the count HINCRBY produced.
func (t *RedisAttemptTracker) Increment(ctx context.Context, deviceID int64) (int, error) {
	return t.increment(ctx, "increment attempts", deviceID)
}

func (t *RedisAttemptTracker) increment(ctx context.Context, op string, deviceID int64) (int, error) {
	if deviceID < 0 {
		return 0, deviceError(op, ErrInvalidArgument, deviceID, errNegativeID)
	}
	if t.client == nil {
		return 0, deviceError(op, ErrConfiguration, deviceID, errors.New("no redis client"))
	}

	n, err := t.client.HIncrBy(ctx, t.key(deviceID), fieldAttempts, 1).Result()
	if err != nil {
		return 0, deviceError(op, ErrPersistence, deviceID, fmt.Errorf("incrementing attempts: %w", err))
	}
	return int(n), nil
}

// Reset zeroes the counter and records the reset time.
func (t *RedisAttemptTracker) Reset(ctx context.Context, deviceID int64) error {
	return t.reset(ctx, "reset attempts", deviceID)
}

func (t *RedisAttemptTracker) reset(ctx context.Context, op string, deviceID int64) error {
	if deviceID < 0 {
		return deviceError(op, ErrInvalidArgument, deviceID, errNegativeID)
	}
	if t.client == nil {
		return deviceError(op, ErrConfiguration, deviceID, errors.New("no redis client"))
	}

	err := t.client.HSet(ctx, t.key(deviceID),
		fieldAttempts, 0,
		fieldLastReset, formatTimestamp(t.now()),
	).Err()
	if err != nil {
		return deviceError(op, ErrPersistence, deviceID, fmt.Errorf("resetting attempts: %w", err))
	}
	return nil
}

// GetAttempts returns the device's failed attempt count.
func (t *RedisAttemptTracker) GetAttempts(ctx context.Context, deviceID int64) (int, error) {
	c, err := t.counter(ctx, "get attempts", deviceID)
	if err != nil {
		return 0, err
	}
	return c.Attempts, nil
}

// Counter returns the device's attempt counter.
func (t *RedisAttemptTracker) Counter(ctx context.Context, deviceID int64) (AttemptCounter, error) {
	return t.counter(ctx, "get attempt counter", deviceID)
}

func (t *RedisAttemptTracker) counter(ctx context.Context, op string, deviceID int64) (AttemptCounter, error) {
	c := AttemptCounter{DeviceID: deviceID}
	if deviceID < 0 {
		return c, deviceError(op, ErrInvalidArgument, deviceID, errNegativeID)
	}
	if t.client == nil {
		return c, deviceError(op, ErrConfiguration, deviceID, errors.New("no redis client"))
	}

	fields, err := t.client.HGetAll(ctx, t.key(deviceID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return c, nil
		}
		return c, deviceError(op, ErrPersistence, deviceID, fmt.Errorf("reading attempts: %w", err))
	}

	if v, ok := fields[fieldAttempts]; ok {
		if c.Attempts, err = strconv.Atoi(v); err != nil {
			return c, deviceError(op, ErrPersistence, deviceID, fmt.Errorf("parsing attempts: %w", err))
		}
	}
	if v := fields[fieldLastReset]; v != "" {
		if c.LastReset, err = parseTimestamp(v); err != nil {
			return c, deviceError(op, ErrPersistence, deviceID, fmt.Errorf("parsing last_reset: %w", err))
		}
	}

	return c, nil
}
