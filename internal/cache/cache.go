package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"tripweaver/internal/weather"
)

// Forecasts change hourly at most; half an hour keeps repeated enrichments of
// the same trip cheap without serving stale weather.
const defaultTTL = 30 * time.Minute

// ForecastStore wraps a Redis client with typed get/set for hourly forecasts.
type ForecastStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewForecastStore constructs a ForecastStore with the default TTL.
func NewForecastStore(client *redis.Client) *ForecastStore {
	return &ForecastStore{client: client, ttl: defaultTTL}
}

// NewForecastStoreWithTTL constructs a ForecastStore with a custom TTL.
// Non-positive values fall back to the default.
func NewForecastStoreWithTTL(client *redis.Client, ttl time.Duration) *ForecastStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &ForecastStore{client: client, ttl: ttl}
}

// key identifies a forecast by rounded coordinates and day.
func key(coords weather.Coordinates, date string) string {
	return fmt.Sprintf("forecast:%.3f,%.3f:%s", coords.Lat, coords.Lon, date)
}

// Get retrieves a cached forecast. Returns nil, nil on a cache miss.
func (s *ForecastStore) Get(ctx context.Context, coords weather.Coordinates, date string) (*weather.Forecast, error) {
	val, err := s.client.Get(ctx, key(coords, date)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache get for %s: %w", date, err)
	}

	var f weather.Forecast
	if err := json.Unmarshal([]byte(val), &f); err != nil {
		return nil, fmt.Errorf("unmarshaling cached forecast for %s: %w", date, err)
	}
	return &f, nil
}

// Set stores a forecast with the configured TTL.
func (s *ForecastStore) Set(ctx context.Context, coords weather.Coordinates, date string, f *weather.Forecast) error {
	if f == nil {
		return nil
	}
	b, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshaling forecast for %s: %w", date, err)
	}
	if err := s.client.Set(ctx, key(coords, date), b, s.ttl).Err(); err != nil {
		return fmt.Errorf("cache set for %s: %w", date, err)
	}
	return nil
}

// CachedForecasts decorates a weather.ForecastSource with the Redis store.
// Cache failures are logged and fall through to the underlying source.
type CachedForecasts struct {
	src   weather.ForecastSource
	store *ForecastStore
	log   *slog.Logger
}

// NewCachedForecasts wraps src with the given store.
func NewCachedForecasts(src weather.ForecastSource, store *ForecastStore, log *slog.Logger) *CachedForecasts {
	return &CachedForecasts{src: src, store: store, log: log}
}

// Hourly serves from cache when possible, otherwise fetches and populates it.
func (c *CachedForecasts) Hourly(ctx context.Context, coords weather.Coordinates, date string) (*weather.Forecast, error) {
	cached, err := c.store.Get(ctx, coords, date)
	if err != nil {
		c.log.Warn("forecast cache get failed", "date", date, "err", err)
	}
	if cached != nil {
		return cached, nil
	}

	f, err := c.src.Hourly(ctx, coords, date)
	if err != nil {
		return nil, err
	}

	if err := c.store.Set(ctx, coords, date, f); err != nil {
		c.log.Warn("forecast cache set failed", "date", date, "err", err)
	}
	return f, nil
}
