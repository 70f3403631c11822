package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"supmap-navigation/internal/gis/routing"
	"supmap-navigation/internal/navigation"
)

const keyPrefix = "navigation:route:"

// RedisRouteCache stores entries as JSON with the retention window as TTL.
type RedisRouteCache struct {
	client    *redis.Client
	retention time.Duration
	now       func() time.Time
}

func NewRedisRouteCache(client *redis.Client, opts ...Option) *RedisRouteCache {
	o := newOptions(opts)
	return &RedisRouteCache{client: client, retention: o.retention, now: o.now}
}

func (r *RedisRouteCache) Get(ctx context.Context, req navigation.RouteRequest) (*navigation.Route, bool, error) {
	key := formatKey(req)
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: getting route: %w", routing.ErrCacheUnavailable, err)
	}

	entry, err := unmarshalEntry(val)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", routing.ErrCacheUnavailable, err)
	}
	// TTL already bounds the age; this catches clock skew and shortened retention.
	if entry.expired(r.now(), r.retention) {
		_ = r.client.Del(ctx, key).Err()
		return nil, false, nil
	}
	return entry.Route, true, nil
}

func (r *RedisRouteCache) Put(ctx context.Context, req navigation.RouteRequest, route *navigation.Route) error {
	req = req.Normalized()
	data, err := marshalEntry(Entry{Route: route, Request: req, CreatedAt: r.now()})
	if err != nil {
		return fmt.Errorf("%w: %w", routing.ErrCacheUnavailable, err)
	}
	if err := r.client.Set(ctx, formatKey(req), data, r.retention).Err(); err != nil {
		return fmt.Errorf("%w: setting route: %w", routing.ErrCacheUnavailable, err)
	}
	return nil
}

func (r *RedisRouteCache) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("%w: scanning routes: %w", routing.ErrCacheUnavailable, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: deleting routes: %w", routing.ErrCacheUnavailable, err)
	}
	return nil
}

func formatKey(req navigation.RouteRequest) string {
	return keyPrefix + req.Key()
}
