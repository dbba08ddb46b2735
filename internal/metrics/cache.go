package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	cacheKeyPrefix = "bizbilling:metrics"
	bumpChannel    = "bizbilling:metrics:bump"
)

// CacheObserver is told about lookups, keyed by cached view name.
type CacheObserver interface {
	CacheHit(view string)
	CacheMiss(view string)
}

type nopObserver struct{}

func (nopObserver) CacheHit(string)  {}
func (nopObserver) CacheMiss(string) {}

// Cache stores rendered views in Redis under per-business versions so a bump
// invalidates every view of that business at once.
type Cache struct {
	client   *redis.Client
	ttl      time.Duration
	observer CacheObserver
}

// NewCache instantiates the cache helper. A nil observer is ignored.
func NewCache(client *redis.Client, ttl time.Duration, observer CacheObserver) *Cache {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Cache{client: client, ttl: ttl, observer: observer}
}

func versionKey(businessID uuid.UUID) string {
	return fmt.Sprintf("%s:version:%s", cacheKeyPrefix, businessID)
}

// Version returns the business cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context, businessID uuid.UUID) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	key := versionKey(businessID)
	ver, err := c.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		// SETNX so a concurrent bump is never overwritten.
		if err := c.client.SetNX(ctx, key, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, key).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// BuildKey composes the view key with the current business version.
func (c *Cache) BuildKey(ctx context.Context, businessID uuid.UUID, parts ...string) (string, error) {
	base := strings.Join(append([]string{cacheKeyPrefix, businessID.String()}, parts...), ":")
	if c == nil || c.client == nil {
		return base, nil
	}
	ver, err := c.Version(ctx, businessID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:v%d", base, ver), nil
}

// Get loads a cached value into dest. It reports false on a miss.
func (c *Cache) Get(ctx context.Context, view, key string, dest any) (bool, error) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.observer.CacheMiss(view)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		c.observer.CacheMiss(view)
		return false, nil
	}
	c.observer.CacheHit(view)
	return true, nil
}

// Set stores value under key with the cache TTL.
func (c *Cache) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

// cacheable is implemented by views that can veto being stored.
type cacheable interface {
	Cacheable() bool
}

func storable(value any) bool {
	c, ok := value.(cacheable)
	return !ok || c.Cacheable()
}

// FetchJSON loads a cached value or populates it using the loader. Loader
// results that report themselves not cacheable are returned without a write.
func (c *Cache) FetchJSON(ctx context.Context, view, key string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("metrics: cache loader required")
	}
	if c != nil && c.client != nil {
		hit, err := c.Get(ctx, view, key, dest)
		if err != nil {
			return err
		}
		if hit {
			return nil
		}
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if c != nil && c.client != nil && storable(value) {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			return err
		}
	}
	return json.Unmarshal(raw, dest)
}

// Bump invalidates every view of the business and announces the new version.
func (c *Cache) Bump(ctx context.Context, businessID uuid.UUID) error {
	if c == nil || c.client == nil {
		return nil
	}
	ver, err := c.client.Incr(ctx, versionKey(businessID)).Result()
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, bumpChannel, fmt.Sprintf("%s:%d", businessID, ver)).Err()
}
