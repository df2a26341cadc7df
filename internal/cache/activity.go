package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/reactivities/reactivities/internal/model"
)

// Cache key prefixes and TTLs.
const (
	activityKeyPrefix = "activity:"
	negCacheKeySuffix = ":neg"

	// DefaultActivityTTL is the TTL for cached activity details.
	DefaultActivityTTL = 10 * time.Minute

	// NegativeCacheTTL is the TTL for negative cache entries.
	NegativeCacheTTL = time.Minute
)

// Common cache errors.
var (
	ErrCacheMiss = errors.New("cache miss")
)

// GetActivity retrieves activity details from cache.
// Returns ErrCacheMiss if not found.
func (c *Cache) GetActivity(ctx context.Context, id string) (*model.Activity, error) {
	data, err := c.client.Get(ctx, activityKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var activity model.Activity
	if err := json.Unmarshal(data, &activity); err != nil {
		// Corrupted cache entry - treat as miss
		return nil, ErrCacheMiss
	}

	return &activity, nil
}

// SetActivity stores activity details in cache and clears any negative entry.
func (c *Cache) SetActivity(ctx context.Context, activity *model.Activity) error {
	data, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("failed to marshal activity: %w", err)
	}

	key := activityKey(activity.ID)
	pipe := c.client.Pipeline()
	pipe.Set(ctx, key, data, DefaultActivityTTL)
	pipe.Del(ctx, key+negCacheKeySuffix)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache activity: %w", err)
	}

	return nil
}

// DeleteActivity removes an activity from cache.
func (c *Cache) DeleteActivity(ctx context.Context, id string) error {
	key := activityKey(id)

	pipe := c.client.Pipeline()
	pipe.Del(ctx, key)
	pipe.Del(ctx, key+negCacheKeySuffix)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete activity from cache: %w", err)
	}

	return nil
}

// IsNegativelyCached checks if an activity id is in negative cache.
func (c *Cache) IsNegativelyCached(ctx context.Context, id string) (bool, error) {
	exists, err := c.client.Exists(ctx, activityKey(id)+negCacheKeySuffix).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check negative cache: %w", err)
	}

	return exists > 0, nil
}

// SetNegativeCache marks an activity id as not found.
func (c *Cache) SetNegativeCache(ctx context.Context, id string) error {
	err := c.client.SetEx(ctx, activityKey(id)+negCacheKeySuffix, "", NegativeCacheTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to set negative cache: %w", err)
	}

	return nil
}

func activityKey(id string) string {
	return activityKeyPrefix + id
}
