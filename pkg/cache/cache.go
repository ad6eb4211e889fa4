// Package cache keeps the latest report of each board kind in Redis so
// dashboards can read current state without touching the database.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/itohio/fieldwatch/pkg/telemetry"
	"github.com/redis/go-redis/v9"
)

// KeyPrefix prefixes every key written by the cache.
const KeyPrefix = "fieldwatch:latest:"

// ErrMiss is returned when no report is cached for a kind.
var ErrMiss = errors.New("cache miss")

// Key returns the redis key holding the latest report of kind.
func Key(kind telemetry.Kind) string {
	return KeyPrefix + string(kind)
}

// Cache stores latest reports in redis with an expiry, so a silent board
// drops out of the cache.
type Cache struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

// New wraps an existing client.
func New(rdb redis.UniversalClient, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

// Dial connects to addr and checks the connection.
func Dial(ctx context.Context, addr, password string, db int, ttl time.Duration) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis unreachable at %s: %w", addr, err)
	}
	return New(rdb, ttl), nil
}

// SetLatest stores r as the latest report of its kind.
func (c *Cache) SetLatest(ctx context.Context, r telemetry.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := c.rdb.Set(ctx, Key(r.Kind), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache report: %w", err)
	}
	return nil
}

// Latest returns the cached report of kind, or ErrMiss.
func (c *Cache) Latest(ctx context.Context, kind telemetry.Kind) (telemetry.Report, error) {
	data, err := c.rdb.Get(ctx, Key(kind)).Bytes()
	if errors.Is(err, redis.Nil) {
		return telemetry.Report{}, ErrMiss
	}
	if err != nil {
		return telemetry.Report{}, fmt.Errorf("failed to read cache: %w", err)
	}

	var r telemetry.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return telemetry.Report{}, fmt.Errorf("failed to decode cached report: %w", err)
	}
	return r, nil
}

// Close closes the client.
func (c *Cache) Close() error {
	return c.rdb.Close()
}
