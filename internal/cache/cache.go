package cache

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store is a byte oriented key value store with expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Cache memoizes computed values as JSON in a Store.
// Concurrent misses for one key share a single computation.
type Cache struct {
	store  Store
	group  singleflight.Group
	logger *logrus.Entry
	onHit  func(bool)
}

func New(store Store, logger *logrus.Logger) *Cache {
	if logger == nil {
		logger = logrus.New()
	}
	return &Cache{
		store:  store,
		logger: logger.WithField("component", "cache"),
	}
}

// OnLookup registers a callback invoked with the result of every lookup.
func (c *Cache) OnLookup(fn func(hit bool)) {
	c.onHit = fn
}

// GetOrCompute loads key into dest, or runs compute and stores its result for ttl.
// Store failures are logged and never fail the call.
func GetOrCompute[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	var zero T
	if c == nil || c.store == nil || ttl <= 0 {
		return compute(ctx)
	}

	if raw, ok, err := c.store.Get(ctx, key); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("cache get failed")
	} else if ok {
		var cached T
		if err := json.Unmarshal(raw, &cached); err == nil {
			c.lookup(true)
			return cached, nil
		}
		c.logger.WithField("key", key).Warn("cache entry is corrupt")
	}
	c.lookup(false)

	v, err, _ := c.group.Do(key, func() (any, error) {
		value, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		payload, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode cache entry: %w", err)
		}
		if err := c.store.Set(ctx, key, payload, ttl); err != nil {
			c.logger.WithError(err).WithField("key", key).Warn("cache set failed")
		}
		return value, nil
	})
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

func (c *Cache) lookup(hit bool) {
	if c.onHit != nil {
		c.onHit(hit)
	}
}
