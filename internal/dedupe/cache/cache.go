// Package cache holds the redis-backed duplicate-set view cache. The view
// is a snapshot projection: it goes stale the moment any merge commits, so
// every successful merge must call Invalidate.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"rollcall/internal/contact/models"
)

const duplicateSetsKey = "dedupe:sets"

// DefaultTTL bounds staleness even if an invalidation is lost.
const DefaultTTL = 5 * time.Minute

// Redis caches the duplicate-set projection in Redis.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// Option configures a Redis cache.
type Option func(*Redis)

// WithTTL overrides the snapshot TTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Redis) {
		c.ttl = ttl
	}
}

// NewRedis constructs a duplicate-set cache. The client lifecycle is
// managed externally.
func NewRedis(client *redis.Client, opts ...Option) *Redis {
	c := &Redis{client: client, ttl: DefaultTTL}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Get returns the cached snapshot. The second return is false on a miss.
func (c *Redis) Get(ctx context.Context) ([]*models.DuplicateSet, bool, error) {
	raw, err := c.client.Get(ctx, duplicateSetsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read duplicate-set cache: %w", err)
	}

	var sets []*models.DuplicateSet
	if err := json.Unmarshal(raw, &sets); err != nil {
		// A corrupt entry behaves like a miss so the caller falls through
		// to the store.
		return nil, false, fmt.Errorf("decode duplicate-set cache: %w", err)
	}
	return sets, true, nil
}

// Set stores a fresh snapshot with the configured TTL.
func (c *Redis) Set(ctx context.Context, sets []*models.DuplicateSet) error {
	raw, err := json.Marshal(sets)
	if err != nil {
		return fmt.Errorf("encode duplicate-set cache: %w", err)
	}
	if err := c.client.Set(ctx, duplicateSetsKey, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("write duplicate-set cache: %w", err)
	}
	return nil
}

// Invalidate drops the snapshot. Called after every successful merge.
func (c *Redis) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, duplicateSetsKey).Err(); err != nil {
		return fmt.Errorf("invalidate duplicate-set cache: %w", err)
	}
	return nil
}
