// Package cache keeps finalized analyses in Redis so polling clients are
// served without a database round trip.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bjhnbjh/vibecoding-camera/internal/domain"
	"github.com/bjhnbjh/vibecoding-camera/internal/metrics"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a finalized analysis stays cached.
const DefaultTTL = time.Hour

// keyPrefix namespaces entries; bump the version when domain.Analysis changes shape.
const keyPrefix = "analysis:v1:"

// Lookup results reported to metrics.
const (
	resultHit   = "hit"
	resultMiss  = "miss"
	resultError = "error"
)

// Config holds Redis connection settings.
type Config struct {
	URL      string
	Password string
	TTL      time.Duration
}

// RedisCache stores terminal analyses as JSON strings.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// Connect parses cfg.URL, opens a client and verifies it with PING.
func Connect(ctx context.Context, cfg Config) (*RedisCache, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return New(client, cfg.TTL), nil
}

// New wraps an existing client. ttl <= 0 uses DefaultTTL.
func New(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func key(id uuid.UUID) string {
	return keyPrefix + id.String()
}

// Get returns the cached analysis and whether it was present.
func (c *RedisCache) Get(ctx context.Context, id uuid.UUID) (*domain.Analysis, bool, error) {
	raw, err := c.client.Get(ctx, key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.CacheLookup(resultMiss)
			return nil, false, nil
		}
		metrics.CacheLookup(resultError)
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var entry entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		metrics.CacheLookup(resultError)
		return nil, false, fmt.Errorf("decode cached analysis: %w", err)
	}

	metrics.CacheLookup(resultHit)
	a := entry.toDomain()
	return &a, true, nil
}

// Set caches a terminal analysis. Processing analyses are ignored since
// their state is about to change.
func (c *RedisCache) Set(ctx context.Context, a *domain.Analysis) error {
	if a == nil || !a.Status.IsTerminal() {
		return nil
	}
	raw, err := json.Marshal(newEntry(a))
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	if err := c.client.Set(ctx, key(a.ID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// entry mirrors domain.Analysis including the fields its JSON form hides.
type entry struct {
	domain.Analysis
	ImageKey    string `json:"imageKey"`
	ContentType string `json:"contentType"`
}

func newEntry(a *domain.Analysis) entry {
	return entry{Analysis: *a, ImageKey: a.ImageKey, ContentType: a.ContentType}
}

func (e entry) toDomain() domain.Analysis {
	a := e.Analysis
	a.ImageKey = e.ImageKey
	a.ContentType = e.ContentType
	return a
}
