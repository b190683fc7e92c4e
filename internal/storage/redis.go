package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Schemas are immutable, so a cached entry never goes stale; the TTL only
// bounds memory.
const DefaultCacheTTL = time.Hour

// RedisClient caches schema blobs by digest
type RedisClient struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient initializes a new Redis client
func NewRedisClient(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test the connection
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisClient{client: client, ttl: ttl}, nil
}

// Close closes the Redis connection
func (rc *RedisClient) Close() error {
	return rc.client.Close()
}

func schemaCacheKey(digest string) string {
	return fmt.Sprintf("schema:%s", digest)
}

// GetSchema returns the cached schema for digest, or nil on a cache miss
func (rc *RedisClient) GetSchema(ctx context.Context, digest string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "redis.get_schema",
		trace.WithAttributes(
			attribute.String("digest", digest),
		),
	)
	defer span.End()

	data, err := rc.client.Get(ctx, schemaCacheKey(digest)).Bytes()

	if err == redis.Nil {
		span.SetAttributes(
			attribute.Bool("cache_hit", false),
			attribute.String("cache_status", "miss"),
		)
		return nil, nil // Cache miss, not an error
	} else if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get from cache: %w", err)
	}

	span.SetAttributes(
		attribute.Bool("cache_hit", true),
		attribute.String("cache_status", "hit"),
	)
	return data, nil
}

// SetSchema stores a schema in the cache
func (rc *RedisClient) SetSchema(ctx context.Context, digest string, data []byte) error {
	ctx, span := tracer.Start(ctx, "redis.set_schema",
		trace.WithAttributes(
			attribute.String("digest", digest),
			attribute.Int("size_bytes", len(data)),
		),
	)
	defer span.End()

	err := rc.client.Set(ctx, schemaCacheKey(digest), data, rc.ttl).Err()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to set cache: %w", err)
	}

	span.SetAttributes(
		attribute.Bool("cache_set_success", true),
		attribute.Int64("ttl_seconds", int64(rc.ttl.Seconds())),
	)
	return nil
}
