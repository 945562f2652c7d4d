package redisclient

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

//go:embed scripts/release_lock.lua
var releaseLockScript string

//go:embed scripts/invalidate_months.lua
var invalidateMonthsScript string

type Client struct {
	rdb              *redis.Client
	releaseScript    *redis.Script
	invalidateScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:              rdb,
		releaseScript:    redis.NewScript(releaseLockScript),
		invalidateScript: redis.NewScript(invalidateMonthsScript),
	}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the Redis connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func lockKey(productID int64) string {
	return fmt.Sprintf("lock:booking:%d", productID)
}

func calendarKey(productID int64, month string) string {
	return fmt.Sprintf("calendar:%d:%s", productID, month)
}

// AcquireBookingLock takes the per-product booking lock. The returned token
// must be passed to ReleaseBookingLock; an empty token means the lock is held
// by someone else.
func (c *Client) AcquireBookingLock(ctx context.Context, productID int64, ttl time.Duration) (string, error) {
	token := uuid.New().String()
	ok, err := c.rdb.SetNX(ctx, lockKey(productID), token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("acquire booking lock failed: %w", err)
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

// ReleaseBookingLock deletes the lock only if it is still owned by token
func (c *Client) ReleaseBookingLock(ctx context.Context, productID int64, token string) error {
	_, err := c.releaseScript.Run(ctx, c.rdb, []string{lockKey(productID)}, token).Result()
	if err != nil {
		return fmt.Errorf("release booking lock script failed: %w", err)
	}
	return nil
}

// GetCalendar returns the cached month view, or nil on a miss
func (c *Client) GetCalendar(ctx context.Context, productID int64, month string) ([]byte, error) {
	data, err := c.rdb.Get(ctx, calendarKey(productID, month)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// SetCalendar caches a month view with TTL
func (c *Client) SetCalendar(ctx context.Context, productID int64, month string, data []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, calendarKey(productID, month), data, ttl).Err()
}

// InvalidateCalendar drops the cached views of the given months
func (c *Client) InvalidateCalendar(ctx context.Context, productID int64, months []string) error {
	if len(months) == 0 {
		return nil
	}
	keys := make([]string, 0, len(months))
	for _, m := range months {
		keys = append(keys, calendarKey(productID, m))
	}
	if _, err := c.invalidateScript.Run(ctx, c.rdb, keys).Result(); err != nil {
		return fmt.Errorf("invalidate calendar script failed: %w", err)
	}
	return nil
}
